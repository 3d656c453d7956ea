// Package export defines the gateway's interface to the records platform's
// native report engine, which turns report definitions into rows and column
// metadata. Full report fetches require an active project execution context;
// the gateway's relay arranges for the fetch to happen in a process that has
// one.
package export

import (
	"context"

	"github.com/trialstack/reportgate/pkg/rights"
)

// Column describes one column of a report definition.
type Column struct {
	Form       string `json:"form"`
	FieldName  string `json:"field_name"`
	Order      int    `json:"field_order"`
	Label      string `json:"label"`
	Type       string `json:"type"`
	Options    string `json:"options,omitempty"`
	Validation string `json:"validation,omitempty"`
}

// FetchOptions shapes a row fetch.
type FetchOptions struct {
	// RawData returns raw categorical values instead of display labels.
	RawData bool
	// Tier is the suppression profile to apply. A zero tier fetches the
	// complete data set.
	Tier rights.Tier
}

// Exporter is the report engine collaborator. Implementations must be safe
// for concurrent use.
type Exporter interface {
	// InContext reports whether this process holds the project execution
	// context needed to fetch rows for the project.
	InContext(projectID int) bool

	// FetchRows returns the report's row data as a JSON document, exactly
	// as produced by the engine. Requires InContext(projectID).
	FetchRows(ctx context.Context, projectID, reportID int, opts FetchOptions) ([]byte, error)

	// FetchColumns returns the report's column metadata. Does not require
	// a project execution context.
	FetchColumns(ctx context.Context, projectID, reportID int) ([]Column, error)
}
