// Package projects implements project and contributor management. A project
// is created with its author as first contributor in one atomic step, and
// every subsequent operation runs through the access policy.
package projects

import (
	"context"
	"strconv"
	"strings"

	"github.com/softdesk/support/pkg/audit"
	"github.com/softdesk/support/pkg/authz"
	"github.com/softdesk/support/pkg/observability"
	"github.com/softdesk/support/pkg/storage"
)

// Service implements project operations over a store
type Service struct {
	store    storage.Store
	guard    *authz.Guard
	recorder audit.Recorder
}

// NewService creates the projects service
func NewService(store storage.Store, guard *authz.Guard, recorder audit.Recorder) *Service {
	if recorder == nil {
		recorder = audit.NopRecorder{}
	}
	return &Service{store: store, guard: guard, recorder: recorder}
}

// CreateRequest carries the fields accepted at project creation
type CreateRequest struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Type        storage.ProjectType `json:"type"`
}

// Create makes a new project with the actor as author and first contributor
func (s *Service) Create(ctx context.Context, actor *storage.User, req CreateRequest) (*storage.Project, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, storage.NewValidation("name", "name is required")
	}
	if !req.Type.Valid() {
		return nil, storage.NewValidation("type", "type must be one of back-end, front-end, iOS, Android")
	}

	if err := s.guard.Require(ctx, actor.ID, authz.VerbCreate, authz.ProjectScope(authz.KindProject, 0), "project", int64(0)); err != nil {
		return nil, err
	}

	project := &storage.Project{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Type:        req.Type,
		AuthorID:    actor.ID,
	}
	if err := s.store.CreateProject(ctx, project); err != nil {
		return nil, err
	}

	s.record(ctx, audit.Allowed(actor.ID, audit.ActionProjectCreate, "project", itoa(project.ID), &project.ID))
	return project, nil
}

// List returns the projects the actor contributes to
func (s *Service) List(ctx context.Context, actor *storage.User) ([]*storage.Project, error) {
	return s.store.ListProjectsForUser(ctx, actor.ID)
}

// Get returns one project if the actor may see it
func (s *Service) Get(ctx context.Context, actor *storage.User, id int64) (*storage.Project, error) {
	project, err := s.store.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.guard.Require(ctx, actor.ID, authz.VerbRead, authz.ProjectTarget(project), "project", id); err != nil {
		return nil, err
	}
	return project, nil
}

// UpdateRequest carries the mutable project fields. Nil pointers leave the
// current value unchanged.
type UpdateRequest struct {
	Name        *string              `json:"name,omitempty"`
	Description *string              `json:"description,omitempty"`
	Type        *storage.ProjectType `json:"type,omitempty"`
}

// Update modifies a project. Author only.
func (s *Service) Update(ctx context.Context, actor *storage.User, id int64, req UpdateRequest) (*storage.Project, error) {
	project, err := s.store.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.guard.Require(ctx, actor.ID, authz.VerbUpdate, authz.ProjectTarget(project), "project", id); err != nil {
		return nil, err
	}

	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return nil, storage.NewValidation("name", "name is required")
		}
		project.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		project.Description = *req.Description
	}
	if req.Type != nil {
		if !req.Type.Valid() {
			return nil, storage.NewValidation("type", "type must be one of back-end, front-end, iOS, Android")
		}
		project.Type = *req.Type
	}

	if err := s.store.UpdateProject(ctx, project); err != nil {
		return nil, err
	}

	s.record(ctx, audit.Allowed(actor.ID, audit.ActionProjectUpdate, "project", itoa(id), &id))
	return project, nil
}

// Delete removes a project and everything in it. Author only.
func (s *Service) Delete(ctx context.Context, actor *storage.User, id int64) error {
	project, err := s.store.GetProject(ctx, id)
	if err != nil {
		return err
	}
	if err := s.guard.Require(ctx, actor.ID, authz.VerbDelete, authz.ProjectTarget(project), "project", id); err != nil {
		return err
	}

	if err := s.store.DeleteProject(ctx, id); err != nil {
		return err
	}

	s.record(ctx, audit.Allowed(actor.ID, audit.ActionProjectDelete, "project", itoa(id), &id))
	return nil
}

// ListContributors returns the project's membership. Contributors only.
func (s *Service) ListContributors(ctx context.Context, actor *storage.User, projectID int64) ([]*storage.Contributor, error) {
	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	if err := s.guard.Require(ctx, actor.ID, authz.VerbRead, authz.ProjectScope(authz.KindContributor, projectID), "project", projectID); err != nil {
		return nil, err
	}
	return s.store.ListContributors(ctx, projectID)
}

// AddContributor grants a user membership. Author only; the target user must
// exist and not already be a member.
func (s *Service) AddContributor(ctx context.Context, actor *storage.User, projectID, userID int64) (*storage.Contributor, error) {
	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	if err := s.guard.Require(ctx, actor.ID, authz.VerbCreate, authz.ProjectScope(authz.KindContributor, projectID), "project", projectID); err != nil {
		return nil, err
	}

	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return nil, err
	}

	member, err := s.store.IsContributor(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}
	if member {
		return nil, storage.NewValidation("user", "user is already a contributor of this project")
	}

	// The store's uniqueness constraint re-checks the pair at insert time,
	// so a concurrent add that slips past the check above comes back as a
	// ConflictError rather than a second membership row.
	contributor := &storage.Contributor{UserID: userID, ProjectID: projectID}
	if err := s.store.AddContributor(ctx, contributor); err != nil {
		return nil, err
	}

	s.record(ctx, audit.Allowed(actor.ID, audit.ActionContributorAdd, "contributor", itoa(contributor.ID), &projectID))
	return contributor, nil
}

// RemoveContributor revokes a user's membership. Author only; the project
// author's own membership can never be revoked.
func (s *Service) RemoveContributor(ctx context.Context, actor *storage.User, projectID, userID int64) error {
	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		return err
	}

	contributor, err := s.store.GetContributor(ctx, projectID, userID)
	if err != nil {
		if storage.IsNotFound(err) {
			// Hide membership details from non-members.
			if guardErr := s.guard.Require(ctx, actor.ID, authz.VerbRead, authz.ProjectScope(authz.KindContributor, projectID), "project", projectID); guardErr != nil {
				return guardErr
			}
		}
		return err
	}

	if err := s.guard.Require(ctx, actor.ID, authz.VerbDelete, authz.ContributorTarget(contributor), "contributor", contributor.ID); err != nil {
		return err
	}

	if err := s.store.RemoveContributor(ctx, projectID, userID); err != nil {
		return err
	}

	s.record(ctx, audit.Allowed(actor.ID, audit.ActionContributorRemove, "contributor", itoa(contributor.ID), &projectID))
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
