package watch

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"aviron/pricewatch/pkg/errors"
)

// currencyToken maps a recognizable currency marker to the symbol recorded on
// the normalized price. Multi-character codes come first so that "USD" is
// consumed before a stray "$" would be.
type currencyToken struct {
	token  string
	symbol string
}

var currencyTokens = []currencyToken{
	{"USD", "$"},
	{"EUR", "€"},
	{"GBP", "£"},
	{"JPY", "¥"},
	{"KRW", "₩"},
	{"CAD", "C$"},
	{"AUD", "A$"},
	{"CHF", "CHF"},
	{"INR", "₹"},
	{"$", "$"},
	{"€", "€"},
	{"£", "£"},
	{"¥", "¥"},
	{"₩", "₩"},
	{"₹", "₹"},
	{"원", "₩"},
}

// Normalizer converts free-form price text into an exact decimal amount.
type Normalizer struct {
	regexCache map[string]*regexp.Regexp
}

// NewNormalizer creates a normalizer
func NewNormalizer() *Normalizer {
	return &Normalizer{
		regexCache: make(map[string]*regexp.Regexp),
	}
}

// Normalize parses raw price text into a NormalizedPrice. It never panics;
// failures are reported only through the Err field.
//
// With an empty stripRegex the separator heuristic applies: a final "." or ","
// followed by exactly two digits is the decimal point, every other "." or ","
// is a grouping separator and is dropped. The heuristic is deliberately fuzzy;
// it trades locale correctness for working on the price fragments real shops
// render ("$1,234.56", "1.234,56 €", "USD 12").
//
// With a stripRegex every match is removed and the remainder parsed directly,
// keeping only the last "." as decimal point (legacy watchlist behavior).
func (n *Normalizer) Normalize(itemName, raw, stripRegex string) NormalizedPrice {
	text := strings.TrimSpace(raw)
	if text == "" {
		return NormalizedPrice{Err: errors.NewParse(itemName, "empty price text", nil)}
	}

	if stripRegex != "" {
		return n.normalizeWithRegex(itemName, text, stripRegex)
	}

	// Capture the first recognized currency marker, remove all of them
	symbol := ""
	for _, tok := range currencyTokens {
		if strings.Contains(text, tok.token) {
			if symbol == "" {
				symbol = tok.symbol
			}
			text = strings.ReplaceAll(text, tok.token, "")
		}
	}

	text = stripSpaces(text)
	cleaned := resolveSeparators(text)

	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return NormalizedPrice{Err: errors.NewParse(itemName, "unrecognized numeric format: "+raw, err)}
	}
	if amount.IsNegative() {
		return NormalizedPrice{Err: errors.NewParse(itemName, "negative amount: "+raw, nil)}
	}

	return NormalizedPrice{Amount: amount, CurrencySymbol: symbol}
}

// normalizeWithRegex removes every regex match and parses what is left
func (n *Normalizer) normalizeWithRegex(itemName, text, stripRegex string) NormalizedPrice {
	re, ok := n.regexCache[stripRegex]
	if !ok {
		var err error
		re, err = regexp.Compile(stripRegex)
		if err != nil {
			return NormalizedPrice{Err: errors.NewParse(itemName, "invalid strip regex: "+stripRegex, err)}
		}
		n.regexCache[stripRegex] = re
	}

	cleaned := re.ReplaceAllString(text, "")
	// Keep only the last dot as the decimal point
	if count := strings.Count(cleaned, "."); count > 1 {
		cleaned = strings.Replace(cleaned, ".", "", count-1)
	}
	if cleaned == "" {
		return NormalizedPrice{Err: errors.NewParse(itemName, "no digits left after strip regex: "+text, nil)}
	}

	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return NormalizedPrice{Err: errors.NewParse(itemName, "unrecognized numeric format: "+text, err)}
	}
	if amount.IsNegative() {
		return NormalizedPrice{Err: errors.NewParse(itemName, "negative amount: "+text, nil)}
	}

	return NormalizedPrice{Amount: amount}
}

// stripSpaces drops every kind of whitespace, including the non-breaking
// spaces some shops use as thousands separators
func stripSpaces(text string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r', ' ', ' ':
			return -1
		}
		return r
	}, text)
}

// resolveSeparators applies the decimal separator heuristic: the last "." or
// "," is the decimal point iff exactly two digits follow it; every other
// occurrence is a grouping separator and is removed.
func resolveSeparators(text string) string {
	last := strings.LastIndexAny(text, ".,")
	if last == -1 {
		return text
	}

	trailing := text[last+1:]
	isDecimalPoint := len(trailing) == 2 && isDigits(trailing)

	head := strings.NewReplacer(".", "", ",", "").Replace(text[:last])
	if isDecimalPoint {
		return head + "." + trailing
	}
	return head + strings.NewReplacer(".", "", ",", "").Replace(text[last:])
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
