package rights

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// canonicalReportsFlag is the only stored value that enables the reporting
// feature. Any other value, including true-like strings, reads as disabled.
const canonicalReportsFlag = "1"

// SQLStore reads rights records from the platform's user_rights table.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore creates a rights store over the given database handle.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// GetPrivileges returns the rights record for (projectID, user), or nil when
// the user has no assignment in that project.
func (s *SQLStore) GetPrivileges(ctx context.Context, projectID int, user string) (*Privileges, error) {
	query := `
		SELECT project_id, username, data_export_tool, reports_access
		FROM user_rights
		WHERE project_id = $1 AND LOWER(username) = $2
	`

	var (
		priv        Privileges
		exportCode  int
		reportsFlag sql.NullString
	)
	err := s.db.QueryRowContext(ctx, query, projectID, strings.ToLower(user)).Scan(
		&priv.ProjectID,
		&priv.Username,
		&exportCode,
		&reportsFlag,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user rights: %w", err)
	}

	priv.ExportLevel = ParseExportLevel(exportCode)
	priv.ReportsAccess = reportsFlag.Valid && reportsFlag.String == canonicalReportsFlag
	return &priv, nil
}
