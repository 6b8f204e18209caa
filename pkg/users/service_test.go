package users

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/softdesk/support/pkg/storage"
	"github.com/softdesk/support/pkg/storage/memory"
)

func newService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	return NewService(store, nil), store
}

func register(t *testing.T, svc *Service, username string) *storage.User {
	t.Helper()
	user, err := svc.Register(context.Background(), RegisterRequest{
		Username: username,
		Password: "correct horse",
		Email:    username + "@example.com",
		Age:      21,
	})
	require.NoError(t, err)
	return user
}

func TestRegister(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		user, err := svc.Register(ctx, RegisterRequest{
			Username:        "alice",
			Password:        "long enough",
			Email:           "alice@example.com",
			Age:             30,
			CanBeContacted:  true,
			CanDataBeShared: false,
		})
		require.NoError(t, err)
		assert.NotZero(t, user.ID)
		assert.True(t, user.CanBeContacted)
		assert.False(t, user.CanDataBeShared)
		assert.NotEqual(t, "long enough", user.PasswordHash)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("long enough")))
	})

	t.Run("underage rejected", func(t *testing.T) {
		_, err := svc.Register(ctx, RegisterRequest{
			Username: "kid",
			Password: "long enough",
			Age:      14,
		})
		require.Error(t, err)
		assert.True(t, storage.IsValidation(err))
		var verr *storage.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "age", verr.Field)
	})

	t.Run("age boundary accepted", func(t *testing.T) {
		user, err := svc.Register(ctx, RegisterRequest{
			Username: "teen",
			Password: "long enough",
			Age:      storage.MinimumAge,
		})
		require.NoError(t, err)
		assert.Equal(t, storage.MinimumAge, user.Age)
	})

	t.Run("short password rejected", func(t *testing.T) {
		_, err := svc.Register(ctx, RegisterRequest{
			Username: "bob",
			Password: "short",
			Age:      30,
		})
		require.Error(t, err)
		var verr *storage.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "password", verr.Field)
	})

	t.Run("missing username rejected", func(t *testing.T) {
		_, err := svc.Register(ctx, RegisterRequest{
			Username: "   ",
			Password: "long enough",
			Age:      30,
		})
		assert.True(t, storage.IsValidation(err))
	})

	t.Run("duplicate username conflicts", func(t *testing.T) {
		_, err := svc.Register(ctx, RegisterRequest{
			Username: "alice",
			Password: "long enough",
			Age:      30,
		})
		require.Error(t, err)
		assert.True(t, storage.IsConflict(err))
	})
}

func TestAuthenticate(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	register(t, svc, "alice")

	t.Run("valid credentials", func(t *testing.T) {
		user, err := svc.Authenticate(ctx, "alice", "correct horse")
		require.NoError(t, err)
		assert.Equal(t, "alice", user.Username)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.Authenticate(ctx, "alice", "battery staple")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("unknown username gives the same error", func(t *testing.T) {
		_, err := svc.Authenticate(ctx, "nobody", "correct horse")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestUpdate(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	alice := register(t, svc, "alice")
	bob := register(t, svc, "bob")

	t.Run("owner updates consent flags", func(t *testing.T) {
		contacted := true
		updated, err := svc.Update(ctx, alice, alice.ID, UpdateRequest{CanBeContacted: &contacted})
		require.NoError(t, err)
		assert.True(t, updated.CanBeContacted)
	})

	t.Run("password change is re-hashed", func(t *testing.T) {
		newPassword := "another secret"
		updated, err := svc.Update(ctx, alice, alice.ID, UpdateRequest{Password: &newPassword})
		require.NoError(t, err)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(updated.PasswordHash), []byte(newPassword)))
	})

	t.Run("non-owner forbidden", func(t *testing.T) {
		email := "evil@example.com"
		_, err := svc.Update(ctx, bob, alice.ID, UpdateRequest{Email: &email})
		assert.True(t, storage.IsForbidden(err))
	})

	t.Run("underage update rejected", func(t *testing.T) {
		age := 12
		_, err := svc.Update(ctx, alice, alice.ID, UpdateRequest{Age: &age})
		assert.True(t, storage.IsValidation(err))
	})
}

func TestDelete(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	alice := register(t, svc, "alice")
	bob := register(t, svc, "bob")

	t.Run("non-owner forbidden", func(t *testing.T) {
		err := svc.Delete(ctx, bob, alice.ID)
		assert.True(t, storage.IsForbidden(err))
	})

	t.Run("owner deletes account", func(t *testing.T) {
		require.NoError(t, svc.Delete(ctx, alice, alice.ID))
		_, err := store.GetUser(ctx, alice.ID)
		assert.True(t, storage.IsNotFound(err))
	})
}

func TestDeleteCascadesAuthoredData(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	alice := register(t, svc, "alice")
	bob := register(t, svc, "bob")

	project := &storage.Project{Name: "p", Type: storage.ProjectBackEnd, AuthorID: alice.ID}
	require.NoError(t, store.CreateProject(ctx, project))
	require.NoError(t, store.AddContributor(ctx, &storage.Contributor{UserID: bob.ID, ProjectID: project.ID}))

	issue := &storage.Issue{
		Name: "i", Tag: storage.TagBug, Priority: storage.PriorityLow,
		Status: storage.StatusToDo, ProjectID: project.ID, AuthorID: bob.ID,
	}
	require.NoError(t, store.CreateIssue(ctx, issue))

	require.NoError(t, svc.Delete(ctx, alice, alice.ID))

	// Deleting the project author removes the project and everything in it.
	_, err := store.GetProject(ctx, project.ID)
	assert.True(t, storage.IsNotFound(err))
	_, err = store.GetIssue(ctx, issue.ID)
	assert.True(t, storage.IsNotFound(err))
}
