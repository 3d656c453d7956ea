// Package settings reads the records platform's module-settings store, which
// holds the gateway's shared API token, source-IP allow-list, alert address,
// and per-project integration flags.
package settings

import (
	"context"
	"database/sql"
	"fmt"
)

// ModuleName is the gateway's registration name in the platform's module
// settings tables.
const ModuleName = "report_gateway"

// Well-known setting keys.
const (
	KeyAPIToken     = "gateway-api-token"
	KeyIPAllowList  = "ip"
	KeyAlertEmail   = "alert-email"
	KeyEnabled      = "gateway-enabled"
	KeyRestricted   = "reports-restricted"
	KeyReportAllow  = "report-allowlist"
)

// Store provides read access to gateway settings. All reads go to the
// platform's database on every call; authorization inputs are never cached.
type Store interface {
	// SystemSetting returns a system-scoped setting value, or "" when unset.
	SystemSetting(ctx context.Context, key string) (string, error)

	// SystemSettingList returns all values of a multi-valued system-scoped
	// setting, in storage order.
	SystemSettingList(ctx context.Context, key string) ([]string, error)

	// ProjectSetting returns a project-scoped setting value, or "" when
	// unset.
	ProjectSetting(ctx context.Context, projectID int, key string) (string, error)
}

// SQLStore reads settings from the platform's module_settings table. System
// settings are rows with a NULL project_id.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore creates a settings store over the given database handle.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// SystemSetting returns a system-scoped setting value, or "" when unset.
func (s *SQLStore) SystemSetting(ctx context.Context, key string) (string, error) {
	query := `
		SELECT value FROM module_settings
		WHERE module = $1 AND project_id IS NULL AND key = $2
		LIMIT 1
	`

	var value string
	err := s.db.QueryRowContext(ctx, query, ModuleName, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read system setting %s: %w", key, err)
	}
	return value, nil
}

// SystemSettingList returns all values of a multi-valued system setting.
func (s *SQLStore) SystemSettingList(ctx context.Context, key string) ([]string, error) {
	query := `
		SELECT value FROM module_settings
		WHERE module = $1 AND project_id IS NULL AND key = $2
		ORDER BY id
	`

	rows, err := s.db.QueryContext(ctx, query, ModuleName, key)
	if err != nil {
		return nil, fmt.Errorf("failed to read system setting list %s: %w", key, err)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return nil, err
		}
		values = append(values, value)
	}
	return values, rows.Err()
}

// ProjectSetting returns a project-scoped setting value, or "" when unset.
func (s *SQLStore) ProjectSetting(ctx context.Context, projectID int, key string) (string, error) {
	query := `
		SELECT value FROM module_settings
		WHERE module = $1 AND project_id = $2 AND key = $3
		LIMIT 1
	`

	var value string
	err := s.db.QueryRowContext(ctx, query, ModuleName, projectID, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read project setting %s for project %d: %w", key, projectID, err)
	}
	return value, nil
}
