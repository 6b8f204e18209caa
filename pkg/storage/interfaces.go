// Package storage defines the entity types, the error taxonomy and the Store
// interface the rest of the service is built against. Implementations live in
// subpackages (postgres for production, memory for tests and local runs).
package storage

import (
	"context"

	"github.com/google/uuid"
)

// UserStore manages account records
type UserStore interface {
	// CreateUser inserts a user and fills in ID and CreatedTime.
	// A duplicate username yields a ConflictError.
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, id int64) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	ListUsers(ctx context.Context) ([]*User, error)
	UpdateUser(ctx context.Context, user *User) error
	// DeleteUser removes the account. Authored projects, issues, comments and
	// contributor rows cascade; issues assigned to the user are unassigned.
	DeleteUser(ctx context.Context, id int64) error
}

// ProjectStore manages projects and their contributor lists
type ProjectStore interface {
	// CreateProject inserts the project and the author's contributor row as
	// one atomic unit: no reader ever observes a project without it.
	CreateProject(ctx context.Context, project *Project) error
	GetProject(ctx context.Context, id int64) (*Project, error)
	// ListProjectsForUser returns the projects the user contributes to.
	ListProjectsForUser(ctx context.Context, userID int64) ([]*Project, error)
	UpdateProject(ctx context.Context, project *Project) error
	// DeleteProject removes the project; contributors and issues cascade.
	DeleteProject(ctx context.Context, id int64) error

	// AddContributor inserts a membership row. The (user, project) uniqueness
	// constraint is enforced by the store itself; a duplicate, including one
	// racing a concurrent add, yields a ConflictError.
	AddContributor(ctx context.Context, c *Contributor) error
	GetContributor(ctx context.Context, projectID, userID int64) (*Contributor, error)
	ListContributors(ctx context.Context, projectID int64) ([]*Contributor, error)
	RemoveContributor(ctx context.Context, projectID, userID int64) error
	IsContributor(ctx context.Context, userID, projectID int64) (bool, error)
}

// IssueStore manages issues and their comments
type IssueStore interface {
	CreateIssue(ctx context.Context, issue *Issue) error
	GetIssue(ctx context.Context, id int64) (*Issue, error)
	ListIssues(ctx context.Context, projectID int64) ([]*Issue, error)
	UpdateIssue(ctx context.Context, issue *Issue) error
	DeleteIssue(ctx context.Context, id int64) error

	CreateComment(ctx context.Context, comment *Comment) error
	GetComment(ctx context.Context, id uuid.UUID) (*Comment, error)
	ListComments(ctx context.Context, issueID int64) ([]*Comment, error)
	UpdateComment(ctx context.Context, comment *Comment) error
	DeleteComment(ctx context.Context, id uuid.UUID) error
}

// Store is the full entity store consumed by the resource services and the
// membership resolver
type Store interface {
	UserStore
	ProjectStore
	IssueStore

	HealthCheck(ctx context.Context) error
}
