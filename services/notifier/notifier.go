package notifier

import (
	"fmt"
	"strings"

	"aviron/pricewatch/internal/watch"
	"aviron/pricewatch/logger"
)

// Delivery is the per-outcome result of a Notify call
type Delivery string

const (
	// DeliverySent means a message went out for this outcome
	DeliverySent Delivery = "sent"
	// DeliveryQueued means the outcome was added to a pending digest
	DeliveryQueued Delivery = "queued"
	// DeliverySuppressed means no message is warranted (UNCHANGED)
	DeliverySuppressed Delivery = "suppressed"
	// DeliveryLogged means the outcome was logged because mail is not configured
	DeliveryLogged Delivery = "logged"
)

// Notifier renders and dispatches messages for classified outcomes.
// Implementations must suppress UNCHANGED outcomes; cutting that noise is the
// reason the watcher exists.
type Notifier interface {
	// Notify handles one outcome. A returned error is a delivery failure; it
	// never invalidates the state store write already made for the item.
	Notify(outcome watch.Outcome) (Delivery, error)

	// Flush sends any pending digest. No-op for per-item notifiers.
	Flush() error
}

// EventLine renders the one-line summary used in digests and console output
func EventLine(o watch.Outcome) string {
	label := labelFor(o)
	switch o.Kind {
	case watch.OutcomeInit:
		return fmt.Sprintf("INIT • %s: %s %s\n%s", label, o.NewAmount, o.Currency, o.Item.URL)
	case watch.OutcomeChanged:
		return fmt.Sprintf("CHANGE • %s: %s → %s %s (%s%%)\n%s",
			label, o.OldAmount, o.NewAmount, o.Currency,
			o.PercentChange().StringFixed(2), o.Item.URL)
	case watch.OutcomeError:
		return fmt.Sprintf("ERROR • %s: %s\n%s", label, o.Reason, o.Item.URL)
	default:
		return fmt.Sprintf("%s • %s: %s %s\n%s", o.Kind, label, o.NewAmount, o.Currency, o.Item.URL)
	}
}

// RenderMessage renders the subject and body for a per-item notification
func RenderMessage(o watch.Outcome) (subject, body string) {
	subject = fmt.Sprintf("[PRICE %s] %s", o.Kind, o.Item.Name)

	var b strings.Builder
	fmt.Fprintf(&b, "Item: %s\n", o.Item.Name)
	if o.Item.Competitor != "" {
		fmt.Fprintf(&b, "Competitor: %s\n", o.Item.Competitor)
	}
	fmt.Fprintf(&b, "URL: %s\n", o.Item.URL)

	switch o.Kind {
	case watch.OutcomeInit:
		fmt.Fprintf(&b, "First observed price: %s %s\n", o.NewAmount, o.Currency)
	case watch.OutcomeChanged:
		fmt.Fprintf(&b, "Price changed: %s → %s %s (%s%%)\n",
			o.OldAmount, o.NewAmount, o.Currency, o.PercentChange().StringFixed(2))
	case watch.OutcomeError:
		fmt.Fprintf(&b, "Check failed: %s\n", o.Reason)
	}

	return subject, b.String()
}

func labelFor(o watch.Outcome) string {
	if o.Item.Competitor != "" {
		return o.Item.Competitor + " — " + o.Item.Name
	}
	return o.Item.Name
}

// LogNotifier is used when SMTP is not configured: outcomes are only logged.
type LogNotifier struct{}

// NewLogNotifier creates a log-only notifier
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

// Notify logs the outcome line instead of sending mail
func (n *LogNotifier) Notify(outcome watch.Outcome) (Delivery, error) {
	if !outcome.Notifiable() {
		return DeliverySuppressed, nil
	}
	logger.ForNotifier().Info().
		Str("outcome", string(outcome.Kind)).
		Msg("[email disabled] " + EventLine(outcome))
	return DeliveryLogged, nil
}

// Flush is a no-op
func (n *LogNotifier) Flush() error {
	return nil
}
