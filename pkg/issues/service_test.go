package issues

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/softdesk/support/pkg/authz"
	"github.com/softdesk/support/pkg/storage"
	"github.com/softdesk/support/pkg/storage/memory"
)

type fixture struct {
	svc     *Service
	store   *memory.Store
	alice   *storage.User // project author
	bob     *storage.User // contributor
	eve     *storage.User // outsider
	project *storage.Project
	other   *storage.Project
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	guard := authz.NewGuard(authz.NewEngine(store), nil, nil)
	f := &fixture{svc: NewService(store, guard, nil), store: store}

	f.alice = &storage.User{Username: "alice", Age: 30}
	f.bob = &storage.User{Username: "bob", Age: 25}
	f.eve = &storage.User{Username: "eve", Age: 40}
	for _, u := range []*storage.User{f.alice, f.bob, f.eve} {
		require.NoError(t, store.CreateUser(ctx, u))
	}

	f.project = &storage.Project{Name: "desk", Type: storage.ProjectBackEnd, AuthorID: f.alice.ID}
	require.NoError(t, store.CreateProject(ctx, f.project))
	require.NoError(t, store.AddContributor(ctx, &storage.Contributor{UserID: f.bob.ID, ProjectID: f.project.ID}))

	f.other = &storage.Project{Name: "side", Type: storage.ProjectFrontEnd, AuthorID: f.alice.ID}
	require.NoError(t, store.CreateProject(ctx, f.other))

	return f
}

func (f *fixture) createIssue(t *testing.T, author *storage.User) *storage.Issue {
	t.Helper()
	issue, err := f.svc.CreateIssue(context.Background(), author, f.project.ID, CreateIssueRequest{
		Name: "login broken",
		Tag:  storage.TagBug,
	})
	require.NoError(t, err)
	return issue
}

func TestCreateIssue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("defaults applied", func(t *testing.T) {
		issue := f.createIssue(t, f.bob)
		assert.Equal(t, storage.PriorityLow, issue.Priority)
		assert.Equal(t, storage.StatusToDo, issue.Status)
		assert.Equal(t, f.bob.ID, issue.AuthorID)
		assert.Nil(t, issue.AssignedTo)
	})

	t.Run("tag required", func(t *testing.T) {
		_, err := f.svc.CreateIssue(ctx, f.bob, f.project.ID, CreateIssueRequest{Name: "x"})
		require.Error(t, err)
		var verr *storage.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "tag", verr.Field)
	})

	t.Run("invalid priority rejected", func(t *testing.T) {
		_, err := f.svc.CreateIssue(ctx, f.bob, f.project.ID, CreateIssueRequest{
			Name: "x", Tag: storage.TagBug, Priority: "URGENT",
		})
		assert.True(t, storage.IsValidation(err))
	})

	t.Run("assignee must be contributor", func(t *testing.T) {
		_, err := f.svc.CreateIssue(ctx, f.bob, f.project.ID, CreateIssueRequest{
			Name: "x", Tag: storage.TagBug, AssignedTo: &f.eve.ID,
		})
		require.Error(t, err)
		var verr *storage.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "assigned_to", verr.Field)
	})

	t.Run("contributor assignee accepted", func(t *testing.T) {
		issue, err := f.svc.CreateIssue(ctx, f.bob, f.project.ID, CreateIssueRequest{
			Name: "x", Tag: storage.TagTask, AssignedTo: &f.alice.ID,
		})
		require.NoError(t, err)
		require.NotNil(t, issue.AssignedTo)
		assert.Equal(t, f.alice.ID, *issue.AssignedTo)
	})

	t.Run("outsider gets not found", func(t *testing.T) {
		_, err := f.svc.CreateIssue(ctx, f.eve, f.project.ID, CreateIssueRequest{
			Name: "x", Tag: storage.TagBug,
		})
		assert.True(t, storage.IsNotFound(err))
	})
}

func TestGetIssueParentScope(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	issue := f.createIssue(t, f.bob)

	t.Run("reachable through its project", func(t *testing.T) {
		got, err := f.svc.GetIssue(ctx, f.bob, f.project.ID, issue.ID)
		require.NoError(t, err)
		assert.Equal(t, issue.ID, got.ID)
	})

	t.Run("unreachable through another project", func(t *testing.T) {
		_, err := f.svc.GetIssue(ctx, f.alice, f.other.ID, issue.ID)
		assert.True(t, storage.IsNotFound(err))
	})
}

func TestUpdateIssue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	issue := f.createIssue(t, f.bob)

	t.Run("issue author updates status", func(t *testing.T) {
		status := storage.StatusInProgress
		updated, err := f.svc.UpdateIssue(ctx, f.bob, f.project.ID, issue.ID, UpdateIssueRequest{Status: &status})
		require.NoError(t, err)
		assert.Equal(t, storage.StatusInProgress, updated.Status)
	})

	t.Run("project author updates foreign issue", func(t *testing.T) {
		priority := storage.PriorityHigh
		updated, err := f.svc.UpdateIssue(ctx, f.alice, f.project.ID, issue.ID, UpdateIssueRequest{Priority: &priority})
		require.NoError(t, err)
		assert.Equal(t, storage.PriorityHigh, updated.Priority)
	})

	t.Run("plain contributor forbidden", func(t *testing.T) {
		aliceIssue, err := f.svc.CreateIssue(ctx, f.alice, f.project.ID, CreateIssueRequest{
			Name: "by alice", Tag: storage.TagTask,
		})
		require.NoError(t, err)

		status := storage.StatusFinished
		_, err = f.svc.UpdateIssue(ctx, f.bob, f.project.ID, aliceIssue.ID, UpdateIssueRequest{Status: &status})
		assert.True(t, storage.IsForbidden(err))
	})

	t.Run("assignee validated on update", func(t *testing.T) {
		_, err := f.svc.UpdateIssue(ctx, f.bob, f.project.ID, issue.ID, UpdateIssueRequest{AssignedTo: &f.eve.ID})
		assert.True(t, storage.IsValidation(err))
	})

	t.Run("assignee cleared", func(t *testing.T) {
		_, err := f.svc.UpdateIssue(ctx, f.bob, f.project.ID, issue.ID, UpdateIssueRequest{AssignedTo: &f.bob.ID})
		require.NoError(t, err)
		updated, err := f.svc.UpdateIssue(ctx, f.bob, f.project.ID, issue.ID, UpdateIssueRequest{ClearAssignee: true})
		require.NoError(t, err)
		assert.Nil(t, updated.AssignedTo)
	})
}

func TestDeleteIssue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	issue := f.createIssue(t, f.bob)

	comment, err := f.svc.CreateComment(ctx, f.alice, f.project.ID, issue.ID, "note")
	require.NoError(t, err)

	t.Run("project author deletes foreign issue with comments", func(t *testing.T) {
		require.NoError(t, f.svc.DeleteIssue(ctx, f.alice, f.project.ID, issue.ID))

		_, err := f.store.GetIssue(ctx, issue.ID)
		assert.True(t, storage.IsNotFound(err))
		_, err = f.store.GetComment(ctx, comment.ID)
		assert.True(t, storage.IsNotFound(err))
	})
}

func TestComments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	issue := f.createIssue(t, f.bob)

	comment, err := f.svc.CreateComment(ctx, f.bob, f.project.ID, issue.ID, "reproduced on staging")
	require.NoError(t, err)
	assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", comment.ID.String())

	t.Run("empty description rejected", func(t *testing.T) {
		_, err := f.svc.CreateComment(ctx, f.bob, f.project.ID, issue.ID, "  ")
		assert.True(t, storage.IsValidation(err))
	})

	t.Run("contributor reads", func(t *testing.T) {
		got, err := f.svc.GetComment(ctx, f.alice, f.project.ID, issue.ID, comment.ID)
		require.NoError(t, err)
		assert.Equal(t, comment.ID, got.ID)
	})

	t.Run("outsider gets not found", func(t *testing.T) {
		_, err := f.svc.GetComment(ctx, f.eve, f.project.ID, issue.ID, comment.ID)
		assert.True(t, storage.IsNotFound(err))
	})

	t.Run("author edits", func(t *testing.T) {
		updated, err := f.svc.UpdateComment(ctx, f.bob, f.project.ID, issue.ID, comment.ID, "edited")
		require.NoError(t, err)
		assert.Equal(t, "edited", updated.Description)
	})

	t.Run("project author cannot edit foreign comment", func(t *testing.T) {
		_, err := f.svc.UpdateComment(ctx, f.alice, f.project.ID, issue.ID, comment.ID, "hijacked")
		assert.True(t, storage.IsForbidden(err))
	})

	t.Run("project author deletes foreign comment", func(t *testing.T) {
		require.NoError(t, f.svc.DeleteComment(ctx, f.alice, f.project.ID, issue.ID, comment.ID))
		_, err := f.store.GetComment(ctx, comment.ID)
		assert.True(t, storage.IsNotFound(err))
	})
}
