package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/softdesk/support/pkg/storage"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db), mock
}

func uniqueViolation() *pq.Error {
	return &pq.Error{Code: "23505"}
}

func TestCreateUser(t *testing.T) {
	ctx := context.Background()

	t.Run("fills in id and creation time", func(t *testing.T) {
		store, mock := newMockStore(t)
		now := time.Now()

		mock.ExpectQuery(`INSERT INTO users`).
			WithArgs("alice", "alice@example.com", "hash", 30, true, false).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_time"}).AddRow(7, now))

		user := &storage.User{
			Username:       "alice",
			Email:          "alice@example.com",
			PasswordHash:   "hash",
			Age:            30,
			CanBeContacted: true,
		}
		require.NoError(t, store.CreateUser(ctx, user))
		assert.Equal(t, int64(7), user.ID)
		assert.Equal(t, now, user.CreatedTime)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate username maps to conflict", func(t *testing.T) {
		store, mock := newMockStore(t)

		mock.ExpectQuery(`INSERT INTO users`).
			WillReturnError(uniqueViolation())

		err := store.CreateUser(ctx, &storage.User{Username: "alice"})
		assert.True(t, storage.IsConflict(err))
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGetUser(t *testing.T) {
	ctx := context.Background()

	t.Run("missing row maps to not found", func(t *testing.T) {
		store, mock := newMockStore(t)

		mock.ExpectQuery(`SELECT (.+) FROM users`).
			WithArgs(int64(42)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		_, err := store.GetUser(ctx, 42)
		assert.True(t, storage.IsNotFound(err))
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUpdateUser(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE users`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.UpdateUser(context.Background(), &storage.User{ID: 42, Username: "ghost"})
	assert.True(t, storage.IsNotFound(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateProject(t *testing.T) {
	ctx := context.Background()

	t.Run("creates project and author membership in one transaction", func(t *testing.T) {
		store, mock := newMockStore(t)
		now := time.Now()

		mock.ExpectBegin()
		mock.ExpectQuery(`INSERT INTO projects`).
			WithArgs("billing", "", storage.ProjectBackEnd, int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_time"}).AddRow(3, now))
		mock.ExpectExec(`INSERT INTO contributors`).
			WithArgs(int64(1), int64(3), now).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		project := &storage.Project{Name: "billing", Type: storage.ProjectBackEnd, AuthorID: 1}
		require.NoError(t, store.CreateProject(ctx, project))
		assert.Equal(t, int64(3), project.ID)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back when the membership insert fails", func(t *testing.T) {
		store, mock := newMockStore(t)

		mock.ExpectBegin()
		mock.ExpectQuery(`INSERT INTO projects`).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_time"}).AddRow(3, time.Now()))
		mock.ExpectExec(`INSERT INTO contributors`).
			WillReturnError(assert.AnError)
		mock.ExpectRollback()

		err := store.CreateProject(ctx, &storage.Project{Name: "billing", Type: storage.ProjectBackEnd, AuthorID: 1})
		require.Error(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAddContributor(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`INSERT INTO contributors`).
		WithArgs(int64(2), int64(3)).
		WillReturnError(uniqueViolation())

	err := store.AddContributor(context.Background(), &storage.Contributor{UserID: 2, ProjectID: 3})
	assert.True(t, storage.IsConflict(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIsContributor(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(int64(2), int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := store.IsContributor(context.Background(), 2, 3)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetIssue(t *testing.T) {
	ctx := context.Background()

	t.Run("null assignee stays nil", func(t *testing.T) {
		store, mock := newMockStore(t)
		now := time.Now()

		rows := sqlmock.NewRows([]string{
			"id", "name", "description", "priority", "tag", "status",
			"project_id", "author_id", "assigned_to", "created_time",
		}).AddRow(5, "bug", "", storage.PriorityLow, storage.TagBug, storage.StatusToDo, 3, 2, nil, now)

		mock.ExpectQuery(`SELECT (.+) FROM issues`).
			WithArgs(int64(5)).
			WillReturnRows(rows)

		issue, err := store.GetIssue(ctx, 5)
		require.NoError(t, err)
		assert.Nil(t, issue.AssignedTo)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing row maps to not found", func(t *testing.T) {
		store, mock := newMockStore(t)

		mock.ExpectQuery(`SELECT (.+) FROM issues`).
			WithArgs(int64(99)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		_, err := store.GetIssue(ctx, 99)
		assert.True(t, storage.IsNotFound(err))
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestCreateComment(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectQuery(`INSERT INTO comments`).
		WillReturnRows(sqlmock.NewRows([]string{"created_time"}).AddRow(now))

	comment := &storage.Comment{Description: "repro attached", IssueID: 5, AuthorID: 2}
	require.NoError(t, store.CreateComment(context.Background(), comment))
	assert.NotEqual(t, uuid.Nil, comment.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteComment(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectExec(`DELETE FROM comments`).
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.DeleteComment(context.Background(), id)
	assert.True(t, storage.IsNotFound(err))
	require.NoError(t, mock.ExpectationsWereMet())
}
