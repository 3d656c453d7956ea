// Package catalog answers which projects have the gateway integration
// enabled and which reports within a project are eligible for export under
// the project's scoping policy.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/trialstack/reportgate/pkg/settings"
)

// Project is a records-platform project with the integration enabled.
type Project struct {
	ID    int    `json:"project_id"`
	Title string `json:"project_title"`
}

// Report is a report definition belonging to exactly one project.
type Report struct {
	ID        int    `json:"report_id"`
	ProjectID int    `json:"-"`
	Title     string `json:"title"`
}

// Store provides read access to the platform's project and report records.
// Implementations must be safe for concurrent reads.
type Store interface {
	// EnabledProjects returns id and title of every project whose
	// integration-enabled flag is true.
	EnabledProjects(ctx context.Context) ([]Project, error)

	// ProjectReports returns all reports belonging to the project.
	ProjectReports(ctx context.Context, projectID int) ([]Report, error)

	// ReportMembershipCount returns the number of membership rows linking
	// the report to the project.
	ReportMembershipCount(ctx context.Context, projectID, reportID int) (int, error)
}

// ScopingPolicy is a project's report-export restriction. When Restricted is
// false the allow-list is ignored and every report belonging to the project
// is exportable.
type ScopingPolicy struct {
	Restricted bool
	AllowList  map[int]bool
}

// Allows reports whether the policy permits exporting the report.
func (p ScopingPolicy) Allows(reportID int) bool {
	if !p.Restricted {
		return true
	}
	return p.AllowList[reportID]
}

// Service composes the store with per-project scoping settings. It holds no
// state of its own; every answer is computed from fresh reads.
type Service struct {
	store    Store
	settings settings.Store
}

// NewService creates a catalog service.
func NewService(store Store, settings settings.Store) *Service {
	return &Service{store: store, settings: settings}
}

// EnabledProjects lists all projects with the integration enabled.
func (s *Service) EnabledProjects(ctx context.Context) ([]Project, error) {
	return s.store.EnabledProjects(ctx)
}

// Policy reads the project's scoping policy. An unset or non-true restricted
// flag means unrestricted; a restricted project with a malformed or absent
// allow-list admits nothing.
func (s *Service) Policy(ctx context.Context, projectID int) (ScopingPolicy, error) {
	restricted, err := s.settings.ProjectSetting(ctx, projectID, settings.KeyRestricted)
	if err != nil {
		return ScopingPolicy{}, err
	}
	if restricted != "true" {
		return ScopingPolicy{}, nil
	}

	policy := ScopingPolicy{Restricted: true, AllowList: map[int]bool{}}

	raw, err := s.settings.ProjectSetting(ctx, projectID, settings.KeyReportAllow)
	if err != nil {
		return ScopingPolicy{}, err
	}
	if raw == "" {
		return policy, nil
	}

	var ids []int
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		// Fail closed: a restricted project with an unreadable allow-list
		// exports nothing.
		return policy, fmt.Errorf("malformed report allow-list for project %d: %w", projectID, err)
	}
	for _, id := range ids {
		policy.AllowList[id] = true
	}
	return policy, nil
}

// ExportableReports lists the project's reports that pass its scoping
// policy. The filter is project-level only; per-user rights are composed by
// the caller.
func (s *Service) ExportableReports(ctx context.Context, projectID int) ([]Report, error) {
	policy, err := s.Policy(ctx, projectID)
	if err != nil {
		return nil, err
	}

	reports, err := s.store.ProjectReports(ctx, projectID)
	if err != nil {
		return nil, err
	}

	filtered := make([]Report, 0, len(reports))
	for _, report := range reports {
		if policy.Allows(report.ID) {
			filtered = append(filtered, report)
		}
	}
	return filtered, nil
}

// ReportInProject reports whether the report belongs to the project. The
// check demands exactly one membership row; zero or duplicate rows both read
// as invalid.
func (s *Service) ReportInProject(ctx context.Context, projectID, reportID int) (bool, error) {
	count, err := s.store.ReportMembershipCount(ctx, projectID, reportID)
	if err != nil {
		return false, err
	}
	return count == 1, nil
}
