package watchlist

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLegacyHeaders(t *testing.T) {
	csv := `competitor,product_name,product_url,price_selector_css,price_attribute,currency,normalize_regex
Peloton,Bike+,https://example.com/bike-plus?utm_source=ad&color=black,span.price,inner_text,USD,
Hydrow,Rower,https://example.com/rower,div.amount,data-price,EUR,[^0-9\.]
`
	items, err := Parse(strings.NewReader(csv), Options{StripUTM: true, DefaultCurrency: "USD"})
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "Peloton", items[0].Competitor)
	assert.Equal(t, "Bike+", items[0].Name)
	assert.Equal(t, "https://example.com/bike-plus?color=black", items[0].URL,
		"utm params must be stripped")
	assert.Equal(t, "span.price", items[0].Selector)
	assert.Equal(t, "inner_text", items[0].Attribute)
	assert.Equal(t, "USD", items[0].Currency)

	assert.Equal(t, "Rower", items[1].Name)
	assert.Equal(t, "data-price", items[1].Attribute)
	assert.Equal(t, "EUR", items[1].Currency)
	assert.Equal(t, `[^0-9\.]`, items[1].StripRegex)
}

func TestParsePlainHeaders(t *testing.T) {
	csv := `name,url,selector
Bike,https://example.com/bike,span.price
`
	items, err := Parse(strings.NewReader(csv), Options{DefaultCurrency: "USD"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Bike", items[0].Name)
	assert.Equal(t, "USD", items[0].Currency, "default currency fills empty column")
}

func TestParseSkipsInvalidRows(t *testing.T) {
	csv := `name,url,selector
,https://example.com/a,span.price
NoURL,,span.price
NoSelector,https://example.com/b,
Relative,not-a-url,span.price
Good,https://example.com/c,span.price
`
	items, err := Parse(strings.NewReader(csv), Options{})
	require.NoError(t, err)
	require.Len(t, items, 1, "invalid rows are skipped, not fatal")
	assert.Equal(t, "Good", items[0].Name)
}

func TestParsePreservesFileOrder(t *testing.T) {
	csv := `name,url,selector
C,https://example.com/c,s
A,https://example.com/a,s
B,https://example.com/b,s
`
	items, err := Parse(strings.NewReader(csv), Options{})
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, []string{"C", "A", "B"}, []string{items[0].Name, items[1].Name, items[2].Name})
}

func TestParseMissingHeader(t *testing.T) {
	_, err := Parse(strings.NewReader(""), Options{})
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/watchlist.csv", Options{})
	assert.Error(t, err)
}
