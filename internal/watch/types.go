package watch

import (
	"time"

	"github.com/shopspring/decimal"
)

// WatchItem is one row of the watchlist. Immutable for the duration of a run.
type WatchItem struct {
	Competitor string `json:"competitor,omitempty"`
	Name       string `json:"name"`
	URL        string `json:"url"`
	Selector   string `json:"selector"`
	// Attribute names the HTML attribute holding the price text.
	// Empty or "inner_text" means the element's text content.
	Attribute string `json:"attribute,omitempty"`
	// Currency is the fallback currency code when the page text carries none.
	Currency string `json:"currency,omitempty"`
	// StripRegex, when set, replaces the separator heuristic: every match is
	// removed from the raw text and the remainder parsed as a plain decimal.
	StripRegex string `json:"-"`
}

// RawObservation is the result of fetching and extracting one item once.
type RawObservation struct {
	ItemName string
	RawText  string
	Err      error
}

// NormalizedPrice is the canonical numeric form of a raw price fragment.
// Err and Amount are mutually exclusive: when Err is set Amount is zero and
// must not be used.
type NormalizedPrice struct {
	Amount         decimal.Decimal
	CurrencySymbol string
	Err            error
}

// Valid reports whether the price parsed successfully
func (p NormalizedPrice) Valid() bool {
	return p.Err == nil
}

// PriceRecord is the persisted last-known observation for one item.
type PriceRecord struct {
	ItemName      string          `json:"-"`
	LastAmount    decimal.Decimal `json:"last_amount"`
	LastCurrency  string          `json:"last_currency_symbol,omitempty"`
	LastCheckedAt time.Time       `json:"last_checked_at"`
}

// OutcomeKind classifies the result of one observation against stored history
type OutcomeKind string

const (
	OutcomeInit      OutcomeKind = "INIT"
	OutcomeUnchanged OutcomeKind = "UNCHANGED"
	OutcomeChanged   OutcomeKind = "CHANGED"
	OutcomeError     OutcomeKind = "ERROR"
)

// Outcome is the classified result for one WatchItem in one run.
// OldAmount is meaningful only for CHANGED; NewAmount for INIT, UNCHANGED and
// CHANGED; Err only for ERROR.
type Outcome struct {
	Kind      OutcomeKind     `json:"kind"`
	Item      WatchItem       `json:"item"`
	OldAmount decimal.Decimal `json:"old_amount,omitempty"`
	NewAmount decimal.Decimal `json:"new_amount,omitempty"`
	Currency  string          `json:"currency,omitempty"`
	CheckedAt time.Time       `json:"checked_at"`
	Err       error           `json:"-"`
	Reason    string          `json:"reason,omitempty"`
}

// Notifiable reports whether the outcome warrants a notification.
// UNCHANGED is the quiet case the whole system exists to suppress.
func (o Outcome) Notifiable() bool {
	return o.Kind != OutcomeUnchanged
}

// PercentChange returns the absolute percent move for a CHANGED outcome
func (o Outcome) PercentChange() decimal.Decimal {
	if o.Kind != OutcomeChanged {
		return decimal.Zero
	}
	return percentChange(o.OldAmount, o.NewAmount)
}

// Record builds the store record this outcome should persist.
// Only INIT, UNCHANGED and CHANGED outcomes produce a record.
func (o Outcome) Record() (PriceRecord, bool) {
	if o.Kind == OutcomeError {
		return PriceRecord{}, false
	}
	return PriceRecord{
		ItemName:      o.Item.Name,
		LastAmount:    o.NewAmount,
		LastCurrency:  o.Currency,
		LastCheckedAt: o.CheckedAt,
	}, true
}
