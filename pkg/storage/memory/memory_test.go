package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/softdesk/support/pkg/storage"
)

func seedProject(t *testing.T) (*Store, *storage.User, *storage.User, *storage.Project) {
	t.Helper()
	ctx := context.Background()
	store := New()

	author := &storage.User{Username: "alice", Age: 30}
	member := &storage.User{Username: "bob", Age: 25}
	require.NoError(t, store.CreateUser(ctx, author))
	require.NoError(t, store.CreateUser(ctx, member))

	project := &storage.Project{Name: "support-desk", Type: storage.ProjectBackEnd, AuthorID: author.ID}
	require.NoError(t, store.CreateProject(ctx, project))
	return store, author, member, project
}

func TestAddContributorUniqueness(t *testing.T) {
	store, _, member, project := seedProject(t)
	ctx := context.Background()

	require.NoError(t, store.AddContributor(ctx, &storage.Contributor{UserID: member.ID, ProjectID: project.ID}))

	err := store.AddContributor(ctx, &storage.Contributor{UserID: member.ID, ProjectID: project.ID})
	assert.True(t, storage.IsConflict(err))
}

func TestAddContributorConcurrentSingleWinner(t *testing.T) {
	store, _, member, project := seedProject(t)
	ctx := context.Background()

	const workers = 32
	errs := make([]error, workers)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			defer wg.Done()
			errs[i] = store.AddContributor(ctx, &storage.Contributor{UserID: member.ID, ProjectID: project.ID})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, storage.IsConflict(err), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, succeeded)

	rows, err := store.ListContributors(ctx, project.ID)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}
