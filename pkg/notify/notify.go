// Package notify delivers out-of-band security alerts. Delivery is
// best-effort by contract: a failed alert is logged and counted but never
// changes an access decision.
package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

// Notifier sends an alert to a configured address.
type Notifier interface {
	SendAlert(ctx context.Context, to, subject, body string) error
}

// SMTPNotifier delivers alerts over plain SMTP.
type SMTPNotifier struct {
	addr string
	from string
}

// NewSMTPNotifier creates a notifier that sends through the given SMTP
// server address ("host:port").
func NewSMTPNotifier(addr, from string) *SMTPNotifier {
	return &SMTPNotifier{addr: addr, from: from}
}

// SendAlert sends a plain-text message. The context deadline is not honored
// mid-send; callers treat the whole operation as fire-and-forget.
func (n *SMTPNotifier) SendAlert(ctx context.Context, to, subject, body string) error {
	if n.addr == "" {
		return fmt.Errorf("no SMTP server configured")
	}
	if to == "" {
		return fmt.Errorf("no alert recipient configured")
	}

	msg := strings.Join([]string{
		"From: " + n.from,
		"To: " + to,
		"Subject: " + subject,
		"",
		body,
	}, "\r\n")

	if err := smtp.SendMail(n.addr, nil, n.from, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("failed to send alert: %w", err)
	}
	return nil
}

// NoopNotifier discards alerts. Used when alerting is not configured.
type NoopNotifier struct{}

// SendAlert discards the alert.
func (NoopNotifier) SendAlert(ctx context.Context, to, subject, body string) error {
	return nil
}
