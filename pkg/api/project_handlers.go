package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/softdesk/support/pkg/httputil"
	"github.com/softdesk/support/pkg/middleware"
	"github.com/softdesk/support/pkg/projects"
)

// ProjectHandlers handles project and contributor endpoints
type ProjectHandlers struct {
	projects *projects.Service
}

// NewProjectHandlers creates a new project handlers instance
func NewProjectHandlers(projects *projects.Service) *ProjectHandlers {
	return &ProjectHandlers{projects: projects}
}

// RegisterRoutes registers the project routes
func (h *ProjectHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/projects/", h.list).Methods("GET")
	router.HandleFunc("/projects/", h.create).Methods("POST")
	router.HandleFunc("/projects/{project_id}/", h.get).Methods("GET")
	router.HandleFunc("/projects/{project_id}/", h.update).Methods("PATCH", "PUT")
	router.HandleFunc("/projects/{project_id}/", h.delete).Methods("DELETE")

	router.HandleFunc("/projects/{project_id}/users/", h.listContributors).Methods("GET")
	router.HandleFunc("/projects/{project_id}/users/", h.addContributor).Methods("POST")
	router.HandleFunc("/projects/{project_id}/users/{user_id}/", h.removeContributor).Methods("DELETE")
}

// list handles GET /api/projects/
func (h *ProjectHandlers) list(w http.ResponseWriter, r *http.Request) {
	result, err := h.projects.List(r.Context(), middleware.GetActor(r))
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, newListResponse(len(result), result))
}

// create handles POST /api/projects/
func (h *ProjectHandlers) create(w http.ResponseWriter, r *http.Request) {
	var req projects.CreateRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	project, err := h.projects.Create(r.Context(), middleware.GetActor(r), req)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	httputil.WriteCreated(w, project)
}

// get handles GET /api/projects/{project_id}/
func (h *ProjectHandlers) get(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "project_id")
	if !ok {
		return
	}

	project, err := h.projects.Get(r.Context(), middleware.GetActor(r), id)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, project)
}

// update handles PATCH /api/projects/{project_id}/
func (h *ProjectHandlers) update(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "project_id")
	if !ok {
		return
	}

	var req projects.UpdateRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	project, err := h.projects.Update(r.Context(), middleware.GetActor(r), id, req)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, project)
}

// delete handles DELETE /api/projects/{project_id}/
func (h *ProjectHandlers) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "project_id")
	if !ok {
		return
	}

	if err := h.projects.Delete(r.Context(), middleware.GetActor(r), id); err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

// listContributors handles GET /api/projects/{project_id}/users/
func (h *ProjectHandlers) listContributors(w http.ResponseWriter, r *http.Request) {
	projectID, ok := httputil.ParsePathInt64OrError(w, r, "project_id")
	if !ok {
		return
	}

	result, err := h.projects.ListContributors(r.Context(), middleware.GetActor(r), projectID)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, newListResponse(len(result), result))
}

// addContributor handles POST /api/projects/{project_id}/users/
func (h *ProjectHandlers) addContributor(w http.ResponseWriter, r *http.Request) {
	projectID, ok := httputil.ParsePathInt64OrError(w, r, "project_id")
	if !ok {
		return
	}

	var req struct {
		User int64 `json:"user"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.User == 0 {
		httputil.WriteValidationError(w, "user", "user is required")
		return
	}

	contributor, err := h.projects.AddContributor(r.Context(), middleware.GetActor(r), projectID, req.User)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	httputil.WriteCreated(w, contributor)
}

// removeContributor handles DELETE /api/projects/{project_id}/users/{user_id}/
func (h *ProjectHandlers) removeContributor(w http.ResponseWriter, r *http.Request) {
	projectID, ok := httputil.ParsePathInt64OrError(w, r, "project_id")
	if !ok {
		return
	}
	userID, ok := httputil.ParsePathInt64OrError(w, r, "user_id")
	if !ok {
		return
	}

	if err := h.projects.RemoveContributor(r.Context(), middleware.GetActor(r), projectID, userID); err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}
