package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/softdesk/support/pkg/auth"
	"github.com/softdesk/support/pkg/storage"
	"github.com/softdesk/support/pkg/storage/memory"
)

func setup(t *testing.T) (*AuthMiddleware, *auth.TokenManager, *storage.User, *memory.Store) {
	t.Helper()
	store := memory.New()
	user := &storage.User{Username: "alice", Age: 30}
	require.NoError(t, store.CreateUser(context.Background(), user))

	manager, err := auth.NewTokenManager(
		[]byte("0123456789abcdef0123456789abcdef"),
		"softdesk", 5*time.Minute, time.Hour,
		auth.NewMemoryTokenStore(),
	)
	require.NoError(t, err)

	return NewAuthMiddleware(manager, store), manager, user, store
}

func TestAuthMiddleware(t *testing.T) {
	mw, manager, user, store := setup(t)
	ctx := context.Background()

	var gotActor *storage.User
	handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotActor = GetActor(r)
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("valid token loads actor", func(t *testing.T) {
		pair, err := manager.Issue(ctx, user)
		require.NoError(t, err)

		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer "+pair.Access)
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, r)
		assert.Equal(t, http.StatusOK, w.Code)
		require.NotNil(t, gotActor)
		assert.Equal(t, user.ID, gotActor.ID)
	})

	t.Run("missing header rejected", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, r)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("malformed header rejected", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Token abc")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, r)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("garbage token rejected", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer junk")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, r)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("token for deleted account rejected", func(t *testing.T) {
		pair, err := manager.Issue(ctx, user)
		require.NoError(t, err)
		require.NoError(t, store.DeleteUser(ctx, user.ID))

		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer "+pair.Access)
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, r)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestGetActorWithoutAuth(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Nil(t, GetActor(r))
}
