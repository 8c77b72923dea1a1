package watch

import (
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// DiffOptions tunes classification
type DiffOptions struct {
	// ChangeThresholdPct folds changes below this absolute percent move into
	// UNCHANGED. Zero alerts on any change.
	ChangeThresholdPct decimal.Decimal
}

// Classify compares a new observation against the stored record and returns
// exactly one Outcome. It is a pure function: the state store write happens
// afterwards in the run loop, based on the outcome.
//
// Rules, in order: any fetch/extraction/parse error wins and produces ERROR;
// no prior record produces INIT; exact decimal equality produces UNCHANGED;
// anything else produces CHANGED carrying both amounts.
func Classify(item WatchItem, prior *PriceRecord, current NormalizedPrice, obsErr error, now time.Time, opts DiffOptions) Outcome {
	out := Outcome{
		Kind:      OutcomeError,
		Item:      item,
		CheckedAt: now,
	}

	if obsErr != nil {
		out.Err = obsErr
		out.Reason = obsErr.Error()
		return out
	}
	if current.Err != nil {
		out.Err = current.Err
		out.Reason = current.Err.Error()
		return out
	}

	out.NewAmount = current.Amount
	out.Currency = current.CurrencySymbol
	if out.Currency == "" {
		out.Currency = item.Currency
	}

	if prior == nil {
		out.Kind = OutcomeInit
		return out
	}

	if current.Amount.Equal(prior.LastAmount) {
		out.Kind = OutcomeUnchanged
		return out
	}

	if !opts.ChangeThresholdPct.IsZero() {
		if percentChange(prior.LastAmount, current.Amount).LessThan(opts.ChangeThresholdPct) {
			out.Kind = OutcomeUnchanged
			return out
		}
	}

	out.Kind = OutcomeChanged
	out.OldAmount = prior.LastAmount
	return out
}

// percentChange returns the absolute percent move from old to new.
// A zero old amount counts as a full move.
func percentChange(old, new decimal.Decimal) decimal.Decimal {
	if old.IsZero() {
		return hundred
	}
	return new.Sub(old).Abs().Div(old).Mul(hundred)
}
