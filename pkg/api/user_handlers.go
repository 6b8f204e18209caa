package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/softdesk/support/pkg/httputil"
	"github.com/softdesk/support/pkg/middleware"
	"github.com/softdesk/support/pkg/users"
)

// UserHandlers handles account endpoints. Other people's accounts are shown
// in the public view; your own comes back in full.
type UserHandlers struct {
	users *users.Service
}

// NewUserHandlers creates a new user handlers instance
func NewUserHandlers(users *users.Service) *UserHandlers {
	return &UserHandlers{users: users}
}

// RegisterRoutes registers the account routes
func (h *UserHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/users/", h.list).Methods("GET")
	// registered before the {user_id} routes so "profile" is not parsed as an id
	router.HandleFunc("/users/profile/", h.profile).Methods("GET")
	router.HandleFunc("/users/{user_id}/", h.get).Methods("GET")
	router.HandleFunc("/users/{user_id}/", h.update).Methods("PATCH", "PUT")
	router.HandleFunc("/users/{user_id}/", h.delete).Methods("DELETE")
}

// list handles GET /api/users/
func (h *UserHandlers) list(w http.ResponseWriter, r *http.Request) {
	all, err := h.users.List(r.Context())
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, newListResponse(len(all), toPublicUsers(all)))
}

// profile handles GET /api/users/profile/ and returns the caller's own record
func (h *UserHandlers) profile(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActor(r)
	if actor == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	httputil.WriteSuccess(w, actor)
}

// get handles GET /api/users/{user_id}/
func (h *UserHandlers) get(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "user_id")
	if !ok {
		return
	}

	user, err := h.users.Get(r.Context(), id)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}

	if actor := middleware.GetActor(r); actor != nil && actor.ID == user.ID {
		httputil.WriteSuccess(w, user)
		return
	}
	httputil.WriteSuccess(w, toPublicUser(user))
}

// update handles PATCH /api/users/{user_id}/
func (h *UserHandlers) update(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "user_id")
	if !ok {
		return
	}

	var req users.UpdateRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	user, err := h.users.Update(r.Context(), middleware.GetActor(r), id, req)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, user)
}

// delete handles DELETE /api/users/{user_id}/
func (h *UserHandlers) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "user_id")
	if !ok {
		return
	}

	if err := h.users.Delete(r.Context(), middleware.GetActor(r), id); err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}
