package notifier

import (
	"crypto/tls"
	"fmt"
	"net/smtp"
	"sort"
	"strings"
	"time"

	"github.com/jordan-wright/email"

	"aviron/pricewatch/config"
	"aviron/pricewatch/internal/watch"
	"aviron/pricewatch/pkg/errors"
)

// Sender delivers a rendered message. Abstracted so notifier behavior can be
// tested without an SMTP server.
type Sender interface {
	Send(subject, body string) error
}

// SMTPSender sends mail over the configured SMTP transport with STARTTLS
type SMTPSender struct {
	cfg config.EmailConfig
}

// NewSMTPSender creates a sender from an email configuration
func NewSMTPSender(cfg config.EmailConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

// Send assembles and delivers a plain-text message
func (s *SMTPSender) Send(subject, body string) error {
	mail := email.NewEmail()
	mail.From = s.cfg.From
	mail.To = s.cfg.To
	mail.Subject = subject
	mail.Text = []byte(body)

	return mail.SendWithStartTLS(
		s.cfg.Addr(),
		smtp.PlainAuth("", s.cfg.User, s.cfg.Pass, s.cfg.Host),
		&tls.Config{ServerName: s.cfg.Host},
	)
}

// EmailNotifier sends one message per notifiable outcome
type EmailNotifier struct {
	sender Sender
}

// NewEmailNotifier creates a per-item notifier
func NewEmailNotifier(sender Sender) *EmailNotifier {
	return &EmailNotifier{sender: sender}
}

// Notify sends a message for INIT, CHANGED and ERROR outcomes
func (n *EmailNotifier) Notify(outcome watch.Outcome) (Delivery, error) {
	if !outcome.Notifiable() {
		return DeliverySuppressed, nil
	}

	subject, body := RenderMessage(outcome)
	if err := n.sender.Send(subject, body); err != nil {
		return DeliverySent, errors.NewDelivery(outcome.Item.Name, "failed to send "+subject, err)
	}
	return DeliverySent, nil
}

// Flush is a no-op for per-item notification
func (n *EmailNotifier) Flush() error {
	return nil
}

// DigestNotifier collects notifiable outcomes and sends one summary email at
// the end of the run, grouped by competitor.
type DigestNotifier struct {
	sender        Sender
	subjectPrefix string
	sendEmpty     bool
	now           func() time.Time

	events  map[string][]string
	inits   int
	changes int
	errs    int
}

// NewDigestNotifier creates a digest notifier
func NewDigestNotifier(sender Sender, subjectPrefix string, sendEmpty bool) *DigestNotifier {
	return &DigestNotifier{
		sender:        sender,
		subjectPrefix: subjectPrefix,
		sendEmpty:     sendEmpty,
		now:           time.Now,
		events:        make(map[string][]string),
	}
}

// Notify queues the outcome for the digest
func (n *DigestNotifier) Notify(outcome watch.Outcome) (Delivery, error) {
	if !outcome.Notifiable() {
		return DeliverySuppressed, nil
	}

	group := outcome.Item.Competitor
	n.events[group] = append(n.events[group], EventLine(outcome))
	switch outcome.Kind {
	case watch.OutcomeInit:
		n.inits++
	case watch.OutcomeChanged:
		n.changes++
	case watch.OutcomeError:
		n.errs++
	}

	return DeliveryQueued, nil
}

// Flush sends the digest. An empty digest is skipped unless configured
// otherwise.
func (n *DigestNotifier) Flush() error {
	total := 0
	for _, lines := range n.events {
		total += len(lines)
	}
	if total == 0 && !n.sendEmpty {
		return nil
	}

	subject := fmt.Sprintf("%s • %d change(s), %d init(s), %d error(s)",
		n.subjectPrefix, n.changes, n.inits, n.errs)
	if err := n.sender.Send(subject, n.renderBody()); err != nil {
		return errors.NewDelivery("", "failed to send digest", err)
	}
	return nil
}

func (n *DigestNotifier) renderBody() string {
	lines := []string{
		fmt.Sprintf("%s — %s", n.subjectPrefix, n.now().Format("2006-01-02 15:04")),
		fmt.Sprintf("Changes: %d | Inits: %d | Errors: %d", n.changes, n.inits, n.errs),
		"",
	}

	groups := make([]string, 0, len(n.events))
	for group := range n.events {
		groups = append(groups, group)
	}
	sort.Strings(groups)

	for _, group := range groups {
		if group != "" {
			lines = append(lines, group)
		}
		for _, event := range n.events[group] {
			for i, ln := range strings.Split(event, "\n") {
				if i == 0 {
					lines = append(lines, "  • "+ln)
				} else {
					lines = append(lines, "    "+ln)
				}
			}
		}
		lines = append(lines, "")
	}

	return strings.TrimRight(strings.Join(lines, "\n"), "\n")
}
