package api

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/softdesk/support/pkg/httputil"
	"github.com/softdesk/support/pkg/issues"
	"github.com/softdesk/support/pkg/middleware"
	"github.com/softdesk/support/pkg/storage"
)

// IssueHandlers handles issue and comment endpoints nested under projects
type IssueHandlers struct {
	issues *issues.Service
}

// NewIssueHandlers creates a new issue handlers instance
func NewIssueHandlers(issues *issues.Service) *IssueHandlers {
	return &IssueHandlers{issues: issues}
}

// RegisterRoutes registers the issue and comment routes
func (h *IssueHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/projects/{project_id}/issues/", h.list).Methods("GET")
	router.HandleFunc("/projects/{project_id}/issues/", h.create).Methods("POST")
	router.HandleFunc("/projects/{project_id}/issues/{issue_id}/", h.get).Methods("GET")
	router.HandleFunc("/projects/{project_id}/issues/{issue_id}/", h.update).Methods("PATCH", "PUT")
	router.HandleFunc("/projects/{project_id}/issues/{issue_id}/", h.delete).Methods("DELETE")

	router.HandleFunc("/projects/{project_id}/issues/{issue_id}/comments/", h.listComments).Methods("GET")
	router.HandleFunc("/projects/{project_id}/issues/{issue_id}/comments/", h.createComment).Methods("POST")
	router.HandleFunc("/projects/{project_id}/issues/{issue_id}/comments/{comment_id}/", h.getComment).Methods("GET")
	router.HandleFunc("/projects/{project_id}/issues/{issue_id}/comments/{comment_id}/", h.updateComment).Methods("PATCH", "PUT")
	router.HandleFunc("/projects/{project_id}/issues/{issue_id}/comments/{comment_id}/", h.deleteComment).Methods("DELETE")
}

// list handles GET /api/projects/{project_id}/issues/
func (h *IssueHandlers) list(w http.ResponseWriter, r *http.Request) {
	projectID, ok := httputil.ParsePathInt64OrError(w, r, "project_id")
	if !ok {
		return
	}

	result, err := h.issues.ListIssues(r.Context(), middleware.GetActor(r), projectID)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, newListResponse(len(result), result))
}

// create handles POST /api/projects/{project_id}/issues/
func (h *IssueHandlers) create(w http.ResponseWriter, r *http.Request) {
	projectID, ok := httputil.ParsePathInt64OrError(w, r, "project_id")
	if !ok {
		return
	}

	var req issues.CreateIssueRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	issue, err := h.issues.CreateIssue(r.Context(), middleware.GetActor(r), projectID, req)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	httputil.WriteCreated(w, issue)
}

// get handles GET /api/projects/{project_id}/issues/{issue_id}/
func (h *IssueHandlers) get(w http.ResponseWriter, r *http.Request) {
	projectID, issueID, ok := issuePath(w, r)
	if !ok {
		return
	}

	issue, err := h.issues.GetIssue(r.Context(), middleware.GetActor(r), projectID, issueID)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, issue)
}

// issueUpdateBody mirrors issues.UpdateIssueRequest but keeps assigned_to
// raw so an explicit null can be told apart from an absent field.
type issueUpdateBody struct {
	Name        *string           `json:"name"`
	Description *string           `json:"description"`
	Tag         *storage.Tag      `json:"tag"`
	Priority    *storage.Priority `json:"priority"`
	Status      *storage.Status   `json:"status"`
	AssignedTo  json.RawMessage   `json:"assigned_to"`
}

// update handles PATCH /api/projects/{project_id}/issues/{issue_id}/
func (h *IssueHandlers) update(w http.ResponseWriter, r *http.Request) {
	projectID, issueID, ok := issuePath(w, r)
	if !ok {
		return
	}

	var body issueUpdateBody
	if !httputil.ParseJSONOrError(w, r, &body) {
		return
	}

	req := issues.UpdateIssueRequest{
		Name:        body.Name,
		Description: body.Description,
		Tag:         body.Tag,
		Priority:    body.Priority,
		Status:      body.Status,
	}
	switch {
	case len(body.AssignedTo) == 0:
		// field absent, leave assignee unchanged
	case bytes.Equal(body.AssignedTo, []byte("null")):
		req.ClearAssignee = true
	default:
		var assignee int64
		if err := json.Unmarshal(body.AssignedTo, &assignee); err != nil {
			httputil.WriteValidationError(w, "assigned_to", "assigned_to must be a user id or null")
			return
		}
		req.AssignedTo = &assignee
	}

	issue, err := h.issues.UpdateIssue(r.Context(), middleware.GetActor(r), projectID, issueID, req)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, issue)
}

// delete handles DELETE /api/projects/{project_id}/issues/{issue_id}/
func (h *IssueHandlers) delete(w http.ResponseWriter, r *http.Request) {
	projectID, issueID, ok := issuePath(w, r)
	if !ok {
		return
	}

	if err := h.issues.DeleteIssue(r.Context(), middleware.GetActor(r), projectID, issueID); err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

type commentBody struct {
	Description string `json:"description"`
}

// listComments handles GET /api/projects/{project_id}/issues/{issue_id}/comments/
func (h *IssueHandlers) listComments(w http.ResponseWriter, r *http.Request) {
	projectID, issueID, ok := issuePath(w, r)
	if !ok {
		return
	}

	result, err := h.issues.ListComments(r.Context(), middleware.GetActor(r), projectID, issueID)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, newListResponse(len(result), result))
}

// createComment handles POST /api/projects/{project_id}/issues/{issue_id}/comments/
func (h *IssueHandlers) createComment(w http.ResponseWriter, r *http.Request) {
	projectID, issueID, ok := issuePath(w, r)
	if !ok {
		return
	}

	var body commentBody
	if !httputil.ParseJSONOrError(w, r, &body) {
		return
	}

	comment, err := h.issues.CreateComment(r.Context(), middleware.GetActor(r), projectID, issueID, body.Description)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	httputil.WriteCreated(w, comment)
}

// getComment handles GET /api/projects/{project_id}/issues/{issue_id}/comments/{comment_id}/
func (h *IssueHandlers) getComment(w http.ResponseWriter, r *http.Request) {
	projectID, issueID, ok := issuePath(w, r)
	if !ok {
		return
	}
	commentID, ok := httputil.ParsePathUUIDOrError(w, r, "comment_id")
	if !ok {
		return
	}

	comment, err := h.issues.GetComment(r.Context(), middleware.GetActor(r), projectID, issueID, commentID)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, comment)
}

// updateComment handles PATCH /api/projects/{project_id}/issues/{issue_id}/comments/{comment_id}/
func (h *IssueHandlers) updateComment(w http.ResponseWriter, r *http.Request) {
	projectID, issueID, ok := issuePath(w, r)
	if !ok {
		return
	}
	commentID, ok := httputil.ParsePathUUIDOrError(w, r, "comment_id")
	if !ok {
		return
	}

	var body commentBody
	if !httputil.ParseJSONOrError(w, r, &body) {
		return
	}

	comment, err := h.issues.UpdateComment(r.Context(), middleware.GetActor(r), projectID, issueID, commentID, body.Description)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, comment)
}

// deleteComment handles DELETE /api/projects/{project_id}/issues/{issue_id}/comments/{comment_id}/
func (h *IssueHandlers) deleteComment(w http.ResponseWriter, r *http.Request) {
	projectID, issueID, ok := issuePath(w, r)
	if !ok {
		return
	}
	commentID, ok := httputil.ParsePathUUIDOrError(w, r, "comment_id")
	if !ok {
		return
	}

	if err := h.issues.DeleteComment(r.Context(), middleware.GetActor(r), projectID, issueID, commentID); err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

// issuePath extracts the project and issue ids shared by all nested routes.
func issuePath(w http.ResponseWriter, r *http.Request) (projectID, issueID int64, ok bool) {
	projectID, ok = httputil.ParsePathInt64OrError(w, r, "project_id")
	if !ok {
		return 0, 0, false
	}
	issueID, ok = httputil.ParsePathInt64OrError(w, r, "issue_id")
	if !ok {
		return 0, 0, false
	}
	return projectID, issueID, true
}
