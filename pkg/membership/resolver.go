// Package membership answers the two questions the authorization engine is
// built on: "is this user a contributor of that project" and "is this user
// the author of that object". The queries are side-effect-free; results are
// memoized inside a single Resolver, which lives for one request at most so
// no staleness can cross request boundaries.
package membership

import (
	"context"

	"github.com/softdesk/support/pkg/storage"
)

type membershipKey struct {
	userID    int64
	projectID int64
}

// Resolver memoizes project and membership lookups for one evaluation.
// Create a fresh Resolver per request; never share one across requests.
type Resolver struct {
	store storage.Store

	projects    map[int64]*storage.Project
	memberships map[membershipKey]bool
}

// NewResolver creates a request-scoped resolver over the store
func NewResolver(store storage.Store) *Resolver {
	return &Resolver{
		store:       store,
		projects:    make(map[int64]*storage.Project),
		memberships: make(map[membershipKey]bool),
	}
}

// Project resolves a project by id, caching the result
func (r *Resolver) Project(ctx context.Context, projectID int64) (*storage.Project, error) {
	if p, ok := r.projects[projectID]; ok {
		return p, nil
	}
	p, err := r.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	r.projects[projectID] = p
	return p, nil
}

// IsAuthor reports whether the user owns the project
func (r *Resolver) IsAuthor(ctx context.Context, userID, projectID int64) (bool, error) {
	p, err := r.Project(ctx, projectID)
	if err != nil {
		return false, err
	}
	return p.AuthorID == userID, nil
}

// IsContributor reports whether a contributor row exists for (user, project).
// The author always has one, so IsAuthor implies IsContributor.
func (r *Resolver) IsContributor(ctx context.Context, userID, projectID int64) (bool, error) {
	key := membershipKey{userID: userID, projectID: projectID}
	if member, ok := r.memberships[key]; ok {
		return member, nil
	}
	member, err := r.store.IsContributor(ctx, userID, projectID)
	if err != nil {
		return false, err
	}
	r.memberships[key] = member
	return member, nil
}

// ProjectOfIssue resolves the home project of an issue
func (r *Resolver) ProjectOfIssue(ctx context.Context, issue *storage.Issue) (*storage.Project, error) {
	return r.Project(ctx, issue.ProjectID)
}

// ProjectOfComment resolves the home project of a comment via its issue
func (r *Resolver) ProjectOfComment(ctx context.Context, comment *storage.Comment) (*storage.Project, error) {
	issue, err := r.store.GetIssue(ctx, comment.IssueID)
	if err != nil {
		return nil, err
	}
	return r.Project(ctx, issue.ProjectID)
}
