// Package middleware provides the request authentication layer: it turns a
// Bearer access token into a loaded actor on the request context.
package middleware

import (
	"net/http"
	"strings"

	"github.com/softdesk/support/pkg/auth"
	"github.com/softdesk/support/pkg/contextkeys"
	"github.com/softdesk/support/pkg/httputil"
	"github.com/softdesk/support/pkg/storage"
)

// AuthMiddleware authenticates requests with JWT access tokens
type AuthMiddleware struct {
	tokenManager *auth.TokenManager
	users        storage.UserStore
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(tokenManager *auth.TokenManager, users storage.UserStore) *AuthMiddleware {
	return &AuthMiddleware{
		tokenManager: tokenManager,
		users:        users,
	}
}

// Handler wraps an HTTP handler with authentication. The token is verified,
// the account loaded, and the actor placed on the request context; a token
// for a deleted account is rejected like any other bad token.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			httputil.WriteUnauthorized(w, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			httputil.WriteUnauthorized(w, "invalid authorization header format")
			return
		}

		userID, err := m.tokenManager.VerifyAccessToken(parts[1])
		if err != nil {
			httputil.WriteUnauthorized(w, "invalid or expired token")
			return
		}

		user, err := m.users.GetUser(r.Context(), userID)
		if err != nil {
			if storage.IsNotFound(err) {
				httputil.WriteUnauthorized(w, "invalid or expired token")
				return
			}
			httputil.WriteInternalError(r.Context(), w, err)
			return
		}

		ctx := contextkeys.WithActor(r.Context(), user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetActor extracts the authenticated user from the request context
func GetActor(r *http.Request) *storage.User {
	actor, ok := r.Context().Value(contextkeys.ActorKey).(*storage.User)
	if !ok {
		return nil
	}
	return actor
}
