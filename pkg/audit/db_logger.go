package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DBLogger records access events to the database.
type DBLogger struct {
	db *sql.DB
}

// NewDBLogger creates a database-backed audit logger and ensures its table
// exists.
func NewDBLogger(db *sql.DB) (*DBLogger, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	logger := &DBLogger{db: db}
	if err := logger.ensureTable(); err != nil {
		return nil, fmt.Errorf("failed to ensure access_audit table: %w", err)
	}
	return logger, nil
}

func (l *DBLogger) ensureTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS access_audit (
		id UUID PRIMARY KEY,
		timestamp TIMESTAMP WITH TIME ZONE NOT NULL,
		request_id VARCHAR(100),
		kind VARCHAR(20) NOT NULL,
		username VARCHAR(255),
		project_id INTEGER,
		report_id INTEGER,
		source_ip VARCHAR(45),
		outcome VARCHAR(10) NOT NULL,
		reason VARCHAR(50)
	);

	CREATE INDEX IF NOT EXISTS idx_access_audit_timestamp ON access_audit(timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_access_audit_username ON access_audit(username);
	CREATE INDEX IF NOT EXISTS idx_access_audit_outcome ON access_audit(outcome);
	`

	_, err := l.db.Exec(query)
	return err
}

// Record writes one access event.
func (l *DBLogger) Record(ctx context.Context, event *Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	query := `
		INSERT INTO access_audit (id, timestamp, request_id, kind, username, project_id, report_id, source_ip, outcome, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := l.db.ExecContext(ctx, query,
		event.ID,
		event.Timestamp,
		event.RequestID,
		event.Kind,
		event.Username,
		event.ProjectID,
		event.ReportID,
		event.SourceIP,
		event.Outcome,
		event.Reason,
	)
	if err != nil {
		return fmt.Errorf("failed to record access event: %w", err)
	}
	return nil
}
