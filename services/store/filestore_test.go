package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aviron/pricewatch/internal/watch"
)

func tempStorePath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "history.json")
}

func TestFileStorePutGet(t *testing.T) {
	path := tempStorePath(t)
	s, err := NewFileStore(path)
	require.NoError(t, err)

	// Absent before first put
	_, ok, err := s.Get("bike")
	require.NoError(t, err)
	assert.False(t, ok)

	checked := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	err = s.Put(watch.PriceRecord{
		ItemName:      "bike",
		LastAmount:    decimal.RequireFromString("10.501"),
		LastCurrency:  "$",
		LastCheckedAt: checked,
	})
	require.NoError(t, err)

	rec, ok, err := s.Get("bike")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "bike", rec.ItemName)
	assert.Equal(t, "10.501", rec.LastAmount.String())
	assert.Equal(t, "$", rec.LastCurrency)
	assert.True(t, checked.Equal(rec.LastCheckedAt))

	// Put fully overwrites the prior record
	err = s.Put(watch.PriceRecord{
		ItemName:      "bike",
		LastAmount:    decimal.RequireFromString("12.5"),
		LastCheckedAt: checked.Add(time.Hour),
	})
	require.NoError(t, err)

	rec, ok, err = s.Get("bike")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "12.5", rec.LastAmount.String())
	assert.Equal(t, "", rec.LastCurrency)
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := tempStorePath(t)
	s, err := NewFileStore(path)
	require.NoError(t, err)

	// Three decimal places must survive a reload byte-for-byte
	amounts := map[string]string{
		"bike":  "1234.567",
		"tread": "10.501",
		"row":   "999.999",
	}
	for name, amount := range amounts {
		require.NoError(t, s.Put(watch.PriceRecord{
			ItemName:      name,
			LastAmount:    decimal.RequireFromString(amount),
			LastCheckedAt: time.Now().UTC(),
		}))
	}

	reloaded, err := NewFileStore(path)
	require.NoError(t, err)
	assert.Equal(t, len(amounts), reloaded.Len())

	for name, amount := range amounts {
		rec, ok, err := reloaded.Get(name)
		require.NoError(t, err)
		require.True(t, ok, "record %s must survive reload", name)
		assert.Equal(t, amount, rec.LastAmount.String(),
			"decimal amount must round-trip exactly")
	}

	// The file itself stores amounts as strings, never binary floats
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"last_amount": "1234.567"`)
}

func TestFileStoreMissingFileIsEmpty(t *testing.T) {
	s, err := NewFileStore(tempStorePath(t))
	require.NoError(t, err)
	assert.Equal(t, 0, s.Len())
}

func TestFileStoreCorruptFileIsFatal(t *testing.T) {
	path := tempStorePath(t)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := NewFileStore(path)
	assert.Error(t, err, "a corrupt state file must abort, not silently reset history")
}

func TestFileStoreCommitIsDurablePerPut(t *testing.T) {
	path := tempStorePath(t)
	s, err := NewFileStore(path)
	require.NoError(t, err)

	require.NoError(t, s.Put(watch.PriceRecord{
		ItemName:      "bike",
		LastAmount:    decimal.RequireFromString("10.00"),
		LastCheckedAt: time.Now().UTC(),
	}))

	// A fresh handle opened right after Put already sees the record, i.e.
	// the write was committed before any notification could have gone out
	fresh, err := NewFileStore(path)
	require.NoError(t, err)
	_, ok, err := fresh.Get("bike")
	require.NoError(t, err)
	assert.True(t, ok)
}
