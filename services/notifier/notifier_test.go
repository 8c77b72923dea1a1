package notifier

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aviron/pricewatch/internal/watch"
)

// mockSender records sent messages and can fail on demand
type mockSender struct {
	subjects []string
	bodies   []string
	err      error
}

func (m *mockSender) Send(subject, body string) error {
	if m.err != nil {
		return m.err
	}
	m.subjects = append(m.subjects, subject)
	m.bodies = append(m.bodies, body)
	return nil
}

func outcome(kind watch.OutcomeKind) watch.Outcome {
	o := watch.Outcome{
		Kind: kind,
		Item: watch.WatchItem{
			Competitor: "Peloton",
			Name:       "Bike+",
			URL:        "https://example.com/bike-plus",
		},
		Currency:  "$",
		CheckedAt: time.Now(),
	}
	switch kind {
	case watch.OutcomeInit, watch.OutcomeUnchanged:
		o.NewAmount = decimal.RequireFromString("2495")
	case watch.OutcomeChanged:
		o.OldAmount = decimal.RequireFromString("2495")
		o.NewAmount = decimal.RequireFromString("1995")
	case watch.OutcomeError:
		o.Reason = "selector matched no elements"
	}
	return o
}

func TestEmailNotifier(t *testing.T) {
	sender := &mockSender{}
	n := NewEmailNotifier(sender)

	// UNCHANGED is always suppressed
	delivery, err := n.Notify(outcome(watch.OutcomeUnchanged))
	require.NoError(t, err)
	assert.Equal(t, DeliverySuppressed, delivery)
	assert.Empty(t, sender.subjects)

	delivery, err = n.Notify(outcome(watch.OutcomeInit))
	require.NoError(t, err)
	assert.Equal(t, DeliverySent, delivery)
	require.Len(t, sender.subjects, 1)
	assert.Equal(t, "[PRICE INIT] Bike+", sender.subjects[0])
	assert.Contains(t, sender.bodies[0], "https://example.com/bike-plus")
	assert.Contains(t, sender.bodies[0], "2495")

	_, err = n.Notify(outcome(watch.OutcomeChanged))
	require.NoError(t, err)
	assert.Contains(t, sender.subjects[1], "CHANGED")
	assert.Contains(t, sender.bodies[1], "2495 → 1995")

	_, err = n.Notify(outcome(watch.OutcomeError))
	require.NoError(t, err)
	assert.Contains(t, sender.bodies[2], "selector matched no elements")

	assert.NoError(t, n.Flush())
}

func TestEmailNotifierDeliveryError(t *testing.T) {
	sender := &mockSender{err: errors.New("smtp: 550 rejected")}
	n := NewEmailNotifier(sender)

	_, err := n.Notify(outcome(watch.OutcomeChanged))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "550")
}

func TestDigestNotifier(t *testing.T) {
	sender := &mockSender{}
	n := NewDigestNotifier(sender, "[PRICE DIGEST]", false)

	delivery, err := n.Notify(outcome(watch.OutcomeInit))
	require.NoError(t, err)
	assert.Equal(t, DeliveryQueued, delivery)

	delivery, err = n.Notify(outcome(watch.OutcomeUnchanged))
	require.NoError(t, err)
	assert.Equal(t, DeliverySuppressed, delivery)

	_, err = n.Notify(outcome(watch.OutcomeChanged))
	require.NoError(t, err)
	_, err = n.Notify(outcome(watch.OutcomeError))
	require.NoError(t, err)

	// Nothing goes out until Flush
	assert.Empty(t, sender.subjects)

	require.NoError(t, n.Flush())
	require.Len(t, sender.subjects, 1, "digest sends exactly one message")
	assert.Equal(t, "[PRICE DIGEST] • 1 change(s), 1 init(s), 1 error(s)", sender.subjects[0])

	body := sender.bodies[0]
	assert.Contains(t, body, "Peloton")
	assert.Contains(t, body, "INIT • Peloton — Bike+")
	assert.Contains(t, body, "CHANGE • Peloton — Bike+: 2495 → 1995 $ (20.04%)")
	assert.Contains(t, body, "ERROR • Peloton — Bike+: selector matched no elements")
}

func TestDigestNotifierEmpty(t *testing.T) {
	sender := &mockSender{}
	n := NewDigestNotifier(sender, "[PRICE DIGEST]", false)

	// No events, no email
	require.NoError(t, n.Flush())
	assert.Empty(t, sender.subjects)

	// Unless empty digests are requested
	n = NewDigestNotifier(sender, "[PRICE DIGEST]", true)
	require.NoError(t, n.Flush())
	require.Len(t, sender.subjects, 1)
	assert.Contains(t, sender.subjects[0], "0 change(s), 0 init(s), 0 error(s)")
}

func TestDigestNotifierDeliveryError(t *testing.T) {
	sender := &mockSender{err: errors.New("connection refused")}
	n := NewDigestNotifier(sender, "[PRICE DIGEST]", false)

	_, err := n.Notify(outcome(watch.OutcomeChanged))
	require.NoError(t, err, "queueing never fails on transport errors")

	err = n.Flush()
	assert.Error(t, err)
}
