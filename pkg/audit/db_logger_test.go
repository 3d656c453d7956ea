package audit

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

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

func TestNewDBLogger(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS access_audit").WillReturnResult(sqlmock.NewResult(0, 0))

		logger, err := NewDBLogger(db)
		require.NoError(t, err)
		assert.NotNil(t, logger)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("nil database", func(t *testing.T) {
		logger, err := NewDBLogger(nil)
		assert.Error(t, err)
		assert.Nil(t, logger)
	})

	t.Run("table creation error", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS access_audit").WillReturnError(errors.New("permission denied"))

		_, err := NewDBLogger(db)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "access_audit")
	})
}

func TestDBLoggerRecord(t *testing.T) {
	db, mock := setupMockDB(t)
	logger := &DBLogger{db: db}

	event := &Event{
		RequestID: "req-1",
		Kind:      "reports",
		Username:  "alice",
		ProjectID: 100,
		ReportID:  55,
		SourceIP:  "192.168.1.5",
		Outcome:   OutcomeDenied,
		Reason:    "not_authorized",
	}

	mock.ExpectExec("INSERT INTO access_audit").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "req-1", "reports", "alice", 100, 55, "192.168.1.5", OutcomeDenied, "not_authorized").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := logger.Record(context.Background(), event)
	require.NoError(t, err)
	assert.NotEmpty(t, event.ID)
	assert.False(t, event.Timestamp.IsZero())
	assert.WithinDuration(t, time.Now().UTC(), event.Timestamp, time.Minute)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNoopLogger(t *testing.T) {
	assert.NoError(t, NoopLogger{}.Record(context.Background(), &Event{}))
}
