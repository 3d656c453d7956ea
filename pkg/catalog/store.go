package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/trialstack/reportgate/pkg/settings"
)

// SQLStore reads the project/report catalog from the platform's database.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore creates a catalog store over the given database handle.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// EnabledProjects returns id and title of every project whose
// integration-enabled setting is true.
func (s *SQLStore) EnabledProjects(ctx context.Context) ([]Project, error) {
	query := `
		SELECT p.project_id, p.title
		FROM module_settings ms
		JOIN projects p ON ms.project_id = p.project_id
		WHERE ms.module = $1 AND ms.key = $2 AND ms.value = 'true'
		ORDER BY p.project_id
	`

	rows, err := s.db.QueryContext(ctx, query, settings.ModuleName, settings.KeyEnabled)
	if err != nil {
		return nil, fmt.Errorf("failed to list enabled projects: %w", err)
	}
	defer rows.Close()

	var projects []Project
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.Title); err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// ProjectReports returns all reports belonging to the project.
func (s *SQLStore) ProjectReports(ctx context.Context, projectID int) ([]Report, error) {
	query := `
		SELECT report_id, project_id, title
		FROM reports
		WHERE project_id = $1
		ORDER BY report_id
	`

	rows, err := s.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports for project %d: %w", projectID, err)
	}
	defer rows.Close()

	var reports []Report
	for rows.Next() {
		var r Report
		if err := rows.Scan(&r.ID, &r.ProjectID, &r.Title); err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

// ReportMembershipCount returns the number of rows linking the report to the
// project.
func (s *SQLStore) ReportMembershipCount(ctx context.Context, projectID, reportID int) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM reports
		WHERE project_id = $1 AND report_id = $2
	`

	var count int
	err := s.db.QueryRowContext(ctx, query, projectID, reportID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to check report membership: %w", err)
	}
	return count, nil
}
