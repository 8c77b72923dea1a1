package watch

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	n := NewNormalizer()

	tests := []struct {
		raw    string
		amount string
		symbol string
	}{
		{"$12.00", "12.00", "$"},
		{"12,00", "12.00", ""},
		{"USD 12", "12", "$"},
		{"  $ 1,234.56 ", "1234.56", "$"},
		{"1.234,56", "1234.56", ""},
		{"€1 234,56", "1234.56", "€"},
		{"£99.99", "99.99", "£"},
		{"₩12,900", "12900", "₩"},
		{"12900원", "12900", "₩"},
		// A separator with three trailing digits is a grouping separator
		{"12.345", "12345", ""},
		{"1.234.567", "1234567", ""},
		{"EUR 2.499,00", "2499.00", "€"},
		{"1495", "1495", ""},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			price := n.Normalize("item", tt.raw, "")
			require.NoError(t, price.Err)
			assert.True(t, price.Amount.Equal(decimal.RequireFromString(tt.amount)),
				"expected %s, got %s", tt.amount, price.Amount)
			assert.Equal(t, tt.symbol, price.CurrencySymbol)
		})
	}
}

func TestNormalizeSameValueAcrossFormats(t *testing.T) {
	n := NewNormalizer()

	// The same numeric value in different formats must produce the same amount
	variants := []string{"$12.00", "12,00", "USD 12", "12.00", "12"}
	first := n.Normalize("item", variants[0], "")
	require.NoError(t, first.Err)

	for _, raw := range variants[1:] {
		price := n.Normalize("item", raw, "")
		require.NoError(t, price.Err)
		assert.True(t, price.Amount.Equal(first.Amount),
			"%q normalized to %s, want %s", raw, price.Amount, first.Amount)
	}
}

func TestNormalizeErrors(t *testing.T) {
	n := NewNormalizer()

	for _, raw := range []string{"", "   ", "call for price", "$-5", "-12.50"} {
		price := n.Normalize("item", raw, "")
		assert.Error(t, price.Err, "expected parse error for %q", raw)
		assert.False(t, price.Valid())
		assert.True(t, price.Amount.IsZero(), "amount must be absent when parse fails")
	}
}

func TestNormalizeWithStripRegex(t *testing.T) {
	n := NewNormalizer()

	price := n.Normalize("item", "$1,299.00", `[^0-9\.]`)
	require.NoError(t, price.Err)
	assert.True(t, price.Amount.Equal(decimal.RequireFromString("1299.00")))

	// Multiple leftover dots keep only the last one
	price = n.Normalize("item", "1.299.00", `[^0-9\.]`)
	require.NoError(t, price.Err)
	assert.True(t, price.Amount.Equal(decimal.RequireFromString("1299.00")))

	// Nothing left after stripping
	price = n.Normalize("item", "sold out", `[^0-9\.]`)
	assert.Error(t, price.Err)

	// Invalid regex is a parse error, never a panic
	price = n.Normalize("item", "$12", `[`)
	assert.Error(t, price.Err)
}
