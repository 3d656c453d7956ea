package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	projects []Project
	reports  map[int][]Report
	counts   map[[2]int]int
	err      error
}

func (f *fakeStore) EnabledProjects(ctx context.Context) ([]Project, error) {
	return f.projects, f.err
}

func (f *fakeStore) ProjectReports(ctx context.Context, projectID int) ([]Report, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.reports[projectID], nil
}

func (f *fakeStore) ReportMembershipCount(ctx context.Context, projectID, reportID int) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.counts[[2]int{projectID, reportID}], nil
}

type fakeSettings struct {
	project map[int]map[string]string
	system  map[string]string
}

func (f *fakeSettings) SystemSetting(ctx context.Context, key string) (string, error) {
	return f.system[key], nil
}

func (f *fakeSettings) SystemSettingList(ctx context.Context, key string) ([]string, error) {
	if v := f.system[key]; v != "" {
		return []string{v}, nil
	}
	return nil, nil
}

func (f *fakeSettings) ProjectSetting(ctx context.Context, projectID int, key string) (string, error) {
	return f.project[projectID][key], nil
}

func newService(store *fakeStore, project map[int]map[string]string) *Service {
	return NewService(store, &fakeSettings{project: project})
}

func TestExportableReportsUnrestricted(t *testing.T) {
	store := &fakeStore{reports: map[int][]Report{
		100: {{ID: 10, ProjectID: 100, Title: "Enrollment"}, {ID: 20, ProjectID: 100, Title: "Labs"}},
	}}
	svc := newService(store, nil)

	reports, err := svc.ExportableReports(context.Background(), 100)
	require.NoError(t, err)
	assert.Len(t, reports, 2)
}

func TestExportableReportsRestricted(t *testing.T) {
	store := &fakeStore{reports: map[int][]Report{
		100: {
			{ID: 10, ProjectID: 100, Title: "Enrollment"},
			{ID: 20, ProjectID: 100, Title: "Labs"},
			{ID: 30, ProjectID: 100, Title: "Adverse Events"},
		},
	}}
	svc := newService(store, map[int]map[string]string{
		100: {"reports-restricted": "true", "report-allowlist": "[10,20]"},
	})

	reports, err := svc.ExportableReports(context.Background(), 100)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, 10, reports[0].ID)
	assert.Equal(t, 20, reports[1].ID)
}

func TestRestrictedWithoutAllowListExportsNothing(t *testing.T) {
	store := &fakeStore{reports: map[int][]Report{
		100: {{ID: 10, ProjectID: 100}},
	}}
	svc := newService(store, map[int]map[string]string{
		100: {"reports-restricted": "true"},
	})

	reports, err := svc.ExportableReports(context.Background(), 100)
	require.NoError(t, err)
	assert.Empty(t, reports)
}

func TestMalformedAllowListFailsClosed(t *testing.T) {
	svc := newService(&fakeStore{}, map[int]map[string]string{
		100: {"reports-restricted": "true", "report-allowlist": "ten, twenty"},
	})

	_, err := svc.Policy(context.Background(), 100)
	assert.Error(t, err)
}

func TestNonTrueRestrictedFlagIsUnrestricted(t *testing.T) {
	svc := newService(&fakeStore{}, map[int]map[string]string{
		100: {"reports-restricted": "1", "report-allowlist": "[10]"},
	})

	policy, err := svc.Policy(context.Background(), 100)
	require.NoError(t, err)
	assert.False(t, policy.Restricted)
	assert.True(t, policy.Allows(999))
}

func TestReportInProject(t *testing.T) {
	store := &fakeStore{counts: map[[2]int]int{
		{100, 55}: 1,
		{100, 66}: 0,
		{100, 77}: 2,
	}}
	svc := newService(store, nil)
	ctx := context.Background()

	ok, err := svc.ReportInProject(ctx, 100, 55)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.ReportInProject(ctx, 100, 66)
	require.NoError(t, err)
	assert.False(t, ok)

	// Duplicate membership rows are invalid, not a grant.
	ok, err = svc.ReportInProject(ctx, 100, 77)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEnabledProjectsPropagatesError(t *testing.T) {
	svc := newService(&fakeStore{err: errors.New("db down")}, nil)
	_, err := svc.EnabledProjects(context.Background())
	assert.Error(t, err)
}
