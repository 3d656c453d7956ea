package catalog

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func TestSQLStoreEnabledProjects(t *testing.T) {
	db, mock := setupMockDB(t)
	store := NewSQLStore(db)

	mock.ExpectQuery("SELECT p.project_id, p.title").
		WithArgs("report_gateway", "gateway-enabled").
		WillReturnRows(sqlmock.NewRows([]string{"project_id", "title"}).
			AddRow(100, "Cardiology Registry").
			AddRow(200, "Oncology Trial"))

	projects, err := store.EnabledProjects(context.Background())
	require.NoError(t, err)
	require.Len(t, projects, 2)
	assert.Equal(t, Project{ID: 100, Title: "Cardiology Registry"}, projects[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStoreProjectReports(t *testing.T) {
	db, mock := setupMockDB(t)
	store := NewSQLStore(db)

	mock.ExpectQuery("SELECT report_id, project_id, title").
		WithArgs(100).
		WillReturnRows(sqlmock.NewRows([]string{"report_id", "project_id", "title"}).
			AddRow(10, 100, "Enrollment"))

	reports, err := store.ProjectReports(context.Background(), 100)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, 10, reports[0].ID)
	assert.Equal(t, 100, reports[0].ProjectID)
}

func TestSQLStoreReportMembershipCount(t *testing.T) {
	db, mock := setupMockDB(t)
	store := NewSQLStore(db)

	mock.ExpectQuery(`SELECT COUNT\(\*\)`).
		WithArgs(100, 55).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	count, err := store.ReportMembershipCount(context.Background(), 100, 55)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
