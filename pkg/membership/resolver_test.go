package membership

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/softdesk/support/pkg/storage"
	"github.com/softdesk/support/pkg/storage/memory"
)

// countingStore counts the lookups the resolver is expected to memoize
type countingStore struct {
	storage.Store
	projectGets  int
	memberChecks int
}

func (s *countingStore) GetProject(ctx context.Context, id int64) (*storage.Project, error) {
	s.projectGets++
	return s.Store.GetProject(ctx, id)
}

func (s *countingStore) IsContributor(ctx context.Context, userID, projectID int64) (bool, error) {
	s.memberChecks++
	return s.Store.IsContributor(ctx, userID, projectID)
}

func newFixture(t *testing.T) (*countingStore, *storage.User, *storage.User, *storage.Project) {
	t.Helper()
	ctx := context.Background()
	mem := memory.New()

	alice := &storage.User{Username: "alice", Age: 30}
	bob := &storage.User{Username: "bob", Age: 25}
	require.NoError(t, mem.CreateUser(ctx, alice))
	require.NoError(t, mem.CreateUser(ctx, bob))

	project := &storage.Project{Name: "billing", Type: storage.ProjectBackEnd, AuthorID: alice.ID}
	require.NoError(t, mem.CreateProject(ctx, project))

	return &countingStore{Store: mem}, alice, bob, project
}

func TestResolverMemoizesLookups(t *testing.T) {
	ctx := context.Background()
	store, alice, _, project := newFixture(t)
	r := NewResolver(store)

	for i := 0; i < 3; i++ {
		_, err := r.Project(ctx, project.ID)
		require.NoError(t, err)

		member, err := r.IsContributor(ctx, alice.ID, project.ID)
		require.NoError(t, err)
		assert.True(t, member)
	}

	assert.Equal(t, 1, store.projectGets)
	assert.Equal(t, 1, store.memberChecks)
}

func TestIsAuthor(t *testing.T) {
	ctx := context.Background()
	store, alice, bob, project := newFixture(t)
	r := NewResolver(store)

	isAuthor, err := r.IsAuthor(ctx, alice.ID, project.ID)
	require.NoError(t, err)
	assert.True(t, isAuthor)

	isAuthor, err = r.IsAuthor(ctx, bob.ID, project.ID)
	require.NoError(t, err)
	assert.False(t, isAuthor)
}

func TestAuthorIsContributor(t *testing.T) {
	ctx := context.Background()
	store, alice, bob, project := newFixture(t)
	r := NewResolver(store)

	member, err := r.IsContributor(ctx, alice.ID, project.ID)
	require.NoError(t, err)
	assert.True(t, member)

	member, err = r.IsContributor(ctx, bob.ID, project.ID)
	require.NoError(t, err)
	assert.False(t, member)
}

func TestProjectOfComment(t *testing.T) {
	ctx := context.Background()
	store, alice, _, project := newFixture(t)

	issue := &storage.Issue{
		Name:      "bug",
		Priority:  storage.PriorityLow,
		Tag:       storage.TagBug,
		Status:    storage.StatusToDo,
		ProjectID: project.ID,
		AuthorID:  alice.ID,
	}
	require.NoError(t, store.CreateIssue(ctx, issue))

	comment := &storage.Comment{Description: "seen in prod", IssueID: issue.ID, AuthorID: alice.ID}
	require.NoError(t, store.CreateComment(ctx, comment))

	r := NewResolver(store)
	resolved, err := r.ProjectOfComment(ctx, comment)
	require.NoError(t, err)
	assert.Equal(t, project.ID, resolved.ID)
}
