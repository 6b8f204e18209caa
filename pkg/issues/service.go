// Package issues implements issue tracking and comments inside a project.
// Issues live under exactly one project and comments under exactly one
// issue; every path component is checked so a resource is only reachable
// through its real parent chain.
package issues

import (
	"context"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/softdesk/support/pkg/audit"
	"github.com/softdesk/support/pkg/authz"
	"github.com/softdesk/support/pkg/observability"
	"github.com/softdesk/support/pkg/storage"
)

// Service implements issue and comment operations over a store
type Service struct {
	store    storage.Store
	guard    *authz.Guard
	recorder audit.Recorder
}

// NewService creates the issues service
func NewService(store storage.Store, guard *authz.Guard, recorder audit.Recorder) *Service {
	if recorder == nil {
		recorder = audit.NopRecorder{}
	}
	return &Service{store: store, guard: guard, recorder: recorder}
}

// CreateIssueRequest carries the fields accepted at issue creation.
// Priority defaults to LOW and status to "To Do" when omitted.
type CreateIssueRequest struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Tag         storage.Tag      `json:"tag"`
	Priority    storage.Priority `json:"priority"`
	Status      storage.Status   `json:"status"`
	AssignedTo  *int64           `json:"assigned_to,omitempty"`
}

// CreateIssue opens an issue in a project. Contributors only; the assignee,
// when given, must also be a contributor of the project.
func (s *Service) CreateIssue(ctx context.Context, actor *storage.User, projectID int64, req CreateIssueRequest) (*storage.Issue, error) {
	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	if err := s.guard.Require(ctx, actor.ID, authz.VerbCreate, authz.ProjectScope(authz.KindIssue, projectID), "project", projectID); err != nil {
		return nil, err
	}

	if strings.TrimSpace(req.Name) == "" {
		return nil, storage.NewValidation("name", "name is required")
	}
	if !req.Tag.Valid() {
		return nil, storage.NewValidation("tag", "tag must be one of BUG, FEATURE, TASK")
	}
	if req.Priority == "" {
		req.Priority = storage.PriorityLow
	}
	if !req.Priority.Valid() {
		return nil, storage.NewValidation("priority", "priority must be one of LOW, MEDIUM, HIGH")
	}
	if req.Status == "" {
		req.Status = storage.StatusToDo
	}
	if !req.Status.Valid() {
		return nil, storage.NewValidation("status", "status must be one of To Do, In Progress, Finished")
	}

	if err := s.checkAssignee(ctx, projectID, req.AssignedTo); err != nil {
		return nil, err
	}

	issue := &storage.Issue{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Tag:         req.Tag,
		Priority:    req.Priority,
		Status:      req.Status,
		ProjectID:   projectID,
		AuthorID:    actor.ID,
		AssignedTo:  req.AssignedTo,
	}
	if err := s.store.CreateIssue(ctx, issue); err != nil {
		return nil, err
	}

	s.record(ctx, audit.Allowed(actor.ID, audit.ActionIssueCreate, "issue", itoa(issue.ID), &projectID))
	return issue, nil
}

// ListIssues returns a project's issues. Contributors only.
func (s *Service) ListIssues(ctx context.Context, actor *storage.User, projectID int64) ([]*storage.Issue, error) {
	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	if err := s.guard.Require(ctx, actor.ID, authz.VerbRead, authz.ProjectScope(authz.KindIssue, projectID), "project", projectID); err != nil {
		return nil, err
	}
	return s.store.ListIssues(ctx, projectID)
}

// GetIssue returns one issue addressed through its project
func (s *Service) GetIssue(ctx context.Context, actor *storage.User, projectID, issueID int64) (*storage.Issue, error) {
	issue, err := s.loadIssue(ctx, projectID, issueID)
	if err != nil {
		return nil, err
	}
	if err := s.guard.Require(ctx, actor.ID, authz.VerbRead, authz.IssueTarget(issue), "issue", issueID); err != nil {
		return nil, err
	}
	return issue, nil
}

// UpdateIssueRequest carries the mutable issue fields. Nil pointers leave
// the current value unchanged; setting assigned_to to null clears it.
type UpdateIssueRequest struct {
	Name          *string           `json:"name,omitempty"`
	Description   *string           `json:"description,omitempty"`
	Tag           *storage.Tag      `json:"tag,omitempty"`
	Priority      *storage.Priority `json:"priority,omitempty"`
	Status        *storage.Status   `json:"status,omitempty"`
	AssignedTo    *int64            `json:"assigned_to,omitempty"`
	ClearAssignee bool              `json:"-"`
}

// UpdateIssue modifies an issue. Issue author or project author only.
func (s *Service) UpdateIssue(ctx context.Context, actor *storage.User, projectID, issueID int64, req UpdateIssueRequest) (*storage.Issue, error) {
	issue, err := s.loadIssue(ctx, projectID, issueID)
	if err != nil {
		return nil, err
	}
	if err := s.guard.Require(ctx, actor.ID, authz.VerbUpdate, authz.IssueTarget(issue), "issue", issueID); err != nil {
		return nil, err
	}

	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return nil, storage.NewValidation("name", "name is required")
		}
		issue.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		issue.Description = *req.Description
	}
	if req.Tag != nil {
		if !req.Tag.Valid() {
			return nil, storage.NewValidation("tag", "tag must be one of BUG, FEATURE, TASK")
		}
		issue.Tag = *req.Tag
	}
	if req.Priority != nil {
		if !req.Priority.Valid() {
			return nil, storage.NewValidation("priority", "priority must be one of LOW, MEDIUM, HIGH")
		}
		issue.Priority = *req.Priority
	}
	if req.Status != nil {
		if !req.Status.Valid() {
			return nil, storage.NewValidation("status", "status must be one of To Do, In Progress, Finished")
		}
		issue.Status = *req.Status
	}
	if req.ClearAssignee {
		issue.AssignedTo = nil
	} else if req.AssignedTo != nil {
		if err := s.checkAssignee(ctx, projectID, req.AssignedTo); err != nil {
			return nil, err
		}
		issue.AssignedTo = req.AssignedTo
	}

	if err := s.store.UpdateIssue(ctx, issue); err != nil {
		return nil, err
	}

	s.record(ctx, audit.Allowed(actor.ID, audit.ActionIssueUpdate, "issue", itoa(issueID), &projectID))
	return issue, nil
}

// DeleteIssue removes an issue and its comments. Issue author or project
// author only.
func (s *Service) DeleteIssue(ctx context.Context, actor *storage.User, projectID, issueID int64) error {
	issue, err := s.loadIssue(ctx, projectID, issueID)
	if err != nil {
		return err
	}
	if err := s.guard.Require(ctx, actor.ID, authz.VerbDelete, authz.IssueTarget(issue), "issue", issueID); err != nil {
		return err
	}

	if err := s.store.DeleteIssue(ctx, issueID); err != nil {
		return err
	}

	s.record(ctx, audit.Allowed(actor.ID, audit.ActionIssueDelete, "issue", itoa(issueID), &projectID))
	return nil
}

// CreateComment adds a comment to an issue. Contributors only.
func (s *Service) CreateComment(ctx context.Context, actor *storage.User, projectID, issueID int64, description string) (*storage.Comment, error) {
	if _, err := s.loadIssue(ctx, projectID, issueID); err != nil {
		return nil, err
	}
	if err := s.guard.Require(ctx, actor.ID, authz.VerbCreate, authz.ProjectScope(authz.KindComment, projectID), "issue", issueID); err != nil {
		return nil, err
	}

	if strings.TrimSpace(description) == "" {
		return nil, storage.NewValidation("description", "description is required")
	}

	comment := &storage.Comment{
		Description: description,
		IssueID:     issueID,
		AuthorID:    actor.ID,
	}
	if err := s.store.CreateComment(ctx, comment); err != nil {
		return nil, err
	}

	s.record(ctx, audit.Allowed(actor.ID, audit.ActionCommentCreate, "comment", comment.ID.String(), &projectID))
	return comment, nil
}

// ListComments returns an issue's comments. Contributors only.
func (s *Service) ListComments(ctx context.Context, actor *storage.User, projectID, issueID int64) ([]*storage.Comment, error) {
	if _, err := s.loadIssue(ctx, projectID, issueID); err != nil {
		return nil, err
	}
	if err := s.guard.Require(ctx, actor.ID, authz.VerbRead, authz.ProjectScope(authz.KindComment, projectID), "issue", issueID); err != nil {
		return nil, err
	}
	return s.store.ListComments(ctx, issueID)
}

// GetComment returns one comment addressed through its issue and project
func (s *Service) GetComment(ctx context.Context, actor *storage.User, projectID, issueID int64, commentID uuid.UUID) (*storage.Comment, error) {
	comment, err := s.loadComment(ctx, projectID, issueID, commentID)
	if err != nil {
		return nil, err
	}
	if err := s.guard.Require(ctx, actor.ID, authz.VerbRead, authz.CommentTarget(comment, projectID), "comment", commentID); err != nil {
		return nil, err
	}
	return comment, nil
}

// UpdateComment modifies a comment's text. Comment author only.
func (s *Service) UpdateComment(ctx context.Context, actor *storage.User, projectID, issueID int64, commentID uuid.UUID, description string) (*storage.Comment, error) {
	comment, err := s.loadComment(ctx, projectID, issueID, commentID)
	if err != nil {
		return nil, err
	}
	if err := s.guard.Require(ctx, actor.ID, authz.VerbUpdate, authz.CommentTarget(comment, projectID), "comment", commentID); err != nil {
		return nil, err
	}

	if strings.TrimSpace(description) == "" {
		return nil, storage.NewValidation("description", "description is required")
	}
	comment.Description = description

	if err := s.store.UpdateComment(ctx, comment); err != nil {
		return nil, err
	}

	s.record(ctx, audit.Allowed(actor.ID, audit.ActionCommentUpdate, "comment", commentID.String(), &projectID))
	return comment, nil
}

// DeleteComment removes a comment. Comment author or project author only.
func (s *Service) DeleteComment(ctx context.Context, actor *storage.User, projectID, issueID int64, commentID uuid.UUID) error {
	comment, err := s.loadComment(ctx, projectID, issueID, commentID)
	if err != nil {
		return err
	}
	if err := s.guard.Require(ctx, actor.ID, authz.VerbDelete, authz.CommentTarget(comment, projectID), "comment", commentID); err != nil {
		return err
	}

	if err := s.store.DeleteComment(ctx, commentID); err != nil {
		return err
	}

	s.record(ctx, audit.Allowed(actor.ID, audit.ActionCommentDelete, "comment", commentID.String(), &projectID))
	return nil
}

// loadIssue resolves an issue through its parent project. An issue reached
// through the wrong project is treated as nonexistent.
func (s *Service) loadIssue(ctx context.Context, projectID, issueID int64) (*storage.Issue, error) {
	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	issue, err := s.store.GetIssue(ctx, issueID)
	if err != nil {
		return nil, err
	}
	if issue.ProjectID != projectID {
		return nil, storage.NewNotFound("issue", issueID)
	}
	return issue, nil
}

func (s *Service) loadComment(ctx context.Context, projectID, issueID int64, commentID uuid.UUID) (*storage.Comment, error) {
	if _, err := s.loadIssue(ctx, projectID, issueID); err != nil {
		return nil, err
	}
	comment, err := s.store.GetComment(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if comment.IssueID != issueID {
		return nil, storage.NewNotFound("comment", commentID)
	}
	return comment, nil
}

func (s *Service) checkAssignee(ctx context.Context, projectID int64, assignee *int64) error {
	if assignee == nil {
		return nil
	}
	member, err := s.store.IsContributor(ctx, *assignee, projectID)
	if err != nil {
		return err
	}
	if !member {
		return storage.NewValidation("assigned_to", "assignee must be a contributor of the project")
	}
	return nil
}

func (s *Service) record(ctx context.Context, entry *audit.Entry) {
	if err := s.recorder.Record(ctx, entry); err != nil {
		observability.FromContext(ctx).WithError(err).Warn("failed to record audit entry")
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
