// Package audit records every access decision the gateway makes. The
// response body to the caller carries only a generic message; the detail an
// auditor needs (user, project, report, reason) lives here and in the logs.
package audit

import (
	"context"
	"time"
)

// Outcome is the recorded result of a decision.
type Outcome string

const (
	OutcomeGranted Outcome = "granted"
	OutcomeDenied  Outcome = "denied"
)

// Event is one recorded access decision.
type Event struct {
	ID        string
	Timestamp time.Time
	RequestID string
	// Kind is the request kind (users, reports, columns, relay).
	Kind      string
	Username  string
	ProjectID int
	ReportID  int
	SourceIP  string
	Outcome   Outcome
	// Reason identifies the gate that denied; empty on grants.
	Reason string
}

// Logger records access events. Recording is best-effort from the request's
// point of view: a failed write is surfaced to the caller's logs, never to
// the response.
type Logger interface {
	Record(ctx context.Context, event *Event) error
}

// NoopLogger discards events.
type NoopLogger struct{}

// Record discards the event.
func (NoopLogger) Record(ctx context.Context, event *Event) error {
	return nil
}
