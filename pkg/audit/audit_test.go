package audit

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/softdesk/support/pkg/contextkeys"
)

func TestDBRecorderRecord(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	recorder, err := NewDBRecorder(db)
	require.NoError(t, err)

	projectID := int64(3)
	entry := Allowed(7, ActionIssueCreate, "issue", "12", &projectID)

	mock.ExpectQuery("INSERT INTO audit_entries").
		WithArgs(int64(7), ActionIssueCreate, "issue", "12", projectID, true, "", "req-1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))

	ctx := contextkeys.WithRequestID(context.Background(), "req-1")
	require.NoError(t, recorder.Record(ctx, entry))
	assert.Equal(t, int64(42), entry.ID)
	assert.Equal(t, "req-1", entry.RequestID)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDBRecorderRequiresDB(t *testing.T) {
	_, err := NewDBRecorder(nil)
	assert.Error(t, err)
}

func TestDeniedEntry(t *testing.T) {
	entry := Denied(9, ActionAccessDenied, "project", "4", nil, "not a contributor of the project")
	assert.False(t, entry.Allowed)
	assert.Equal(t, "not a contributor of the project", entry.Reason)
}

func TestNopRecorder(t *testing.T) {
	var r Recorder = NopRecorder{}
	assert.NoError(t, r.Record(context.Background(), &Entry{}))
	assert.NoError(t, r.Close())
}
