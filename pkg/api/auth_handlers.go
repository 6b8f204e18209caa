package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/softdesk/support/pkg/audit"
	"github.com/softdesk/support/pkg/auth"
	"github.com/softdesk/support/pkg/httputil"
	"github.com/softdesk/support/pkg/observability"
	"github.com/softdesk/support/pkg/users"
)

// AuthHandlers handles registration and token endpoints. These are the only
// routes served without an access token.
type AuthHandlers struct {
	users        *users.Service
	tokenManager *auth.TokenManager
	metrics      *observability.Metrics
	recorder     audit.Recorder
}

// NewAuthHandlers creates a new auth handlers instance. metrics may be nil;
// recorder defaults to a no-op recorder when nil.
func NewAuthHandlers(users *users.Service, tokenManager *auth.TokenManager, metrics *observability.Metrics, recorder audit.Recorder) *AuthHandlers {
	if recorder == nil {
		recorder = audit.NopRecorder{}
	}
	return &AuthHandlers{
		users:        users,
		tokenManager: tokenManager,
		metrics:      metrics,
		recorder:     recorder,
	}
}

func (h *AuthHandlers) record(ctx context.Context, entry *audit.Entry) {
	if err := h.recorder.Record(ctx, entry); err != nil {
		observability.FromContext(ctx).WithError(err).Warn("failed to record audit entry")
	}
}

// RegisterRoutes registers the unauthenticated routes
func (h *AuthHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/signup/", h.signup).Methods("POST")
	router.HandleFunc("/token/", h.obtainToken).Methods("POST")
	router.HandleFunc("/token/refresh/", h.refreshToken).Methods("POST")
	router.HandleFunc("/token/revoke/", h.revokeToken).Methods("POST")
}

// signup handles POST /api/signup/
func (h *AuthHandlers) signup(w http.ResponseWriter, r *http.Request) {
	var req users.RegisterRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	user, err := h.users.Register(r.Context(), req)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}

	httputil.WriteCreated(w, user)
}

// obtainToken handles POST /api/token/
func (h *AuthHandlers) obtainToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	user, err := h.users.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, users.ErrInvalidCredentials) {
			if h.metrics != nil {
				h.metrics.LoginFailuresTotal.Inc()
			}
			httputil.WriteUnauthorized(w, err.Error())
			return
		}
		httputil.WriteDomainError(w, r, err)
		return
	}

	pair, err := h.tokenManager.Issue(r.Context(), user)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}

	if h.metrics != nil {
		h.metrics.TokensIssuedTotal.WithLabelValues("password").Inc()
	}
	httputil.WriteSuccess(w, pair)
}

// refreshToken handles POST /api/token/refresh/
func (h *AuthHandlers) refreshToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Refresh string `json:"refresh"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	pair, userID, err := h.tokenManager.Refresh(r.Context(), req.Refresh)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			if h.metrics != nil {
				h.metrics.TokenRefreshTotal.WithLabelValues("rejected").Inc()
			}
			httputil.WriteUnauthorized(w, err.Error())
			return
		}
		httputil.WriteDomainError(w, r, err)
		return
	}

	if h.metrics != nil {
		h.metrics.TokenRefreshTotal.WithLabelValues("ok").Inc()
		h.metrics.TokensIssuedTotal.WithLabelValues("refresh").Inc()
	}
	h.record(r.Context(), audit.Allowed(userID, audit.ActionTokenRefresh, "user", strconv.FormatInt(userID, 10), nil))
	httputil.WriteSuccess(w, pair)
}

// revokeToken handles POST /api/token/revoke/
func (h *AuthHandlers) revokeToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Refresh string `json:"refresh"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	userID, err := h.tokenManager.Revoke(r.Context(), req.Refresh)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RefreshTokensRevoked.Inc()
	}
	if userID != 0 {
		h.record(r.Context(), audit.Allowed(userID, audit.ActionTokenRevoke, "user", strconv.FormatInt(userID, 10), nil))
	}
	httputil.WriteNoContent(w)
}
