package authz

import (
	"strconv"

	"github.com/softdesk/support/pkg/storage"
)

// Verb classifies an operation. Read is the only safe verb; everything else
// goes through the per-kind write rules.
type Verb string

const (
	VerbRead   Verb = "read"
	VerbCreate Verb = "create"
	VerbUpdate Verb = "update"
	VerbDelete Verb = "delete"
)

// Kind identifies the resource kind a policy applies to
type Kind string

const (
	KindProject     Kind = "project"
	KindContributor Kind = "contributor"
	KindIssue       Kind = "issue"
	KindComment     Kind = "comment"
)

// Target describes the object (or parent scope) an operation addresses.
// ProjectID is always the home project: the project itself, an issue's
// project, or a comment's issue's project. AuthorID is the object author;
// for contributor rows it is the member the row grants access to.
type Target struct {
	Kind      Kind
	ID        string
	AuthorID  int64
	ProjectID int64
}

// ProjectTarget builds a target for an existing project
func ProjectTarget(p *storage.Project) Target {
	return Target{
		Kind:      KindProject,
		ID:        itoa(p.ID),
		AuthorID:  p.AuthorID,
		ProjectID: p.ID,
	}
}

// ProjectScope builds a create/list target for a project's sub-resources
func ProjectScope(kind Kind, projectID int64) Target {
	return Target{Kind: kind, ProjectID: projectID}
}

// ContributorTarget builds a target for a membership row. AuthorID carries
// the member's user id so the engine can refuse removing the project author.
func ContributorTarget(c *storage.Contributor) Target {
	return Target{
		Kind:      KindContributor,
		ID:        itoa(c.ID),
		AuthorID:  c.UserID,
		ProjectID: c.ProjectID,
	}
}

// IssueTarget builds a target for an existing issue
func IssueTarget(i *storage.Issue) Target {
	return Target{
		Kind:      KindIssue,
		ID:        itoa(i.ID),
		AuthorID:  i.AuthorID,
		ProjectID: i.ProjectID,
	}
}

// CommentTarget builds a target for an existing comment. The home project is
// reached through the comment's issue, which the caller has already loaded.
func CommentTarget(c *storage.Comment, projectID int64) Target {
	return Target{
		Kind:      KindComment,
		ID:        c.ID.String(),
		AuthorID:  c.AuthorID,
		ProjectID: projectID,
	}
}

// Decision is the outcome of a policy evaluation. A denial is terminal: it
// is never retried and never escalated. Hidden marks denials that must
// surface as not-found so non-members cannot probe resource existence.
type Decision struct {
	Allowed bool
	Hidden  bool
	Reason  string
}

// Allow builds an allowing decision
func Allow(reason string) Decision {
	return Decision{Allowed: true, Reason: reason}
}

// Deny builds a forbidden decision
func Deny(reason string) Decision {
	return Decision{Allowed: false, Reason: reason}
}

// DenyHidden builds a denial that presents as not-found
func DenyHidden(reason string) Decision {
	return Decision{Allowed: false, Hidden: true, Reason: reason}
}

// Err converts a denial into the error surfaced to callers: hidden denials
// become NotFoundError for the named resource, the rest ForbiddenError.
// Returns nil for an allowing decision.
func (d Decision) Err(resource string, id interface{}) error {
	if d.Allowed {
		return nil
	}
	if d.Hidden {
		return storage.NewNotFound(resource, id)
	}
	return &storage.ForbiddenError{Reason: d.Reason}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
