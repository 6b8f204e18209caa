// Package authz is the policy core: given (actor, verb, target) it returns a
// single allow/deny decision with a reason. One engine evaluates one policy
// per resource kind through a dispatch table, rather than a hierarchy of
// per-endpoint permission classes, so the rules cannot drift apart.
//
// The system is closed: nothing is visible to users who are not contributors
// of the target's home project. Within a project, every contributor may
// read; write authority depends on the resource kind.
package authz

import (
	"context"
	"fmt"

	"github.com/softdesk/support/pkg/membership"
	"github.com/softdesk/support/pkg/storage"
)

// Engine evaluates the access policy over a store
type Engine struct {
	store storage.Store
}

// NewEngine creates an engine bound to the given store
func NewEngine(store storage.Store) *Engine {
	return &Engine{store: store}
}

// writeRule decides the mutating-verb branch for one resource kind, after
// the contributor gate has already passed.
type writeRule func(ctx context.Context, r *membership.Resolver, actor int64, verb Verb, t Target) (Decision, error)

var writeRules = map[Kind]writeRule{
	KindProject:     projectWriteRule,
	KindContributor: contributorWriteRule,
	KindIssue:       issueWriteRule,
	KindComment:     commentWriteRule,
}

// Authorize evaluates one operation:
//
//  1. Project creation is open to any authenticated user.
//  2. Everything else requires the actor to be a contributor of the target's
//     home project; outsiders are denied with a hidden decision.
//  3. Safe verbs are then allowed for every contributor.
//  4. Mutating verbs go through the kind's write rule.
func (e *Engine) Authorize(ctx context.Context, actor int64, verb Verb, t Target) (Decision, error) {
	if t.Kind == KindProject && verb == VerbCreate {
		return Allow("any authenticated user may create a project"), nil
	}

	resolver := membership.NewResolver(e.store)

	member, err := resolver.IsContributor(ctx, actor, t.ProjectID)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to resolve membership: %w", err)
	}
	if !member {
		return DenyHidden("not a contributor of the project"), nil
	}

	if verb == VerbRead {
		return Allow("contributors may read project resources"), nil
	}

	rule, ok := writeRules[t.Kind]
	if !ok {
		return Deny(fmt.Sprintf("no policy for resource kind %q", t.Kind)), nil
	}
	return rule(ctx, resolver, actor, verb, t)
}

func projectWriteRule(ctx context.Context, r *membership.Resolver, actor int64, verb Verb, t Target) (Decision, error) {
	author, err := r.IsAuthor(ctx, actor, t.ProjectID)
	if err != nil {
		return Decision{}, err
	}
	if !author {
		return Deny("only the project author may modify or delete the project"), nil
	}
	return Allow("project author"), nil
}

func contributorWriteRule(ctx context.Context, r *membership.Resolver, actor int64, verb Verb, t Target) (Decision, error) {
	author, err := r.IsAuthor(ctx, actor, t.ProjectID)
	if err != nil {
		return Decision{}, err
	}
	if !author {
		return Deny("only the project author may manage contributors"), nil
	}
	if verb == VerbDelete {
		project, err := r.Project(ctx, t.ProjectID)
		if err != nil {
			return Decision{}, err
		}
		// The auto-contributor invariant would break otherwise.
		if t.AuthorID == project.AuthorID {
			return Deny("the project author cannot be removed from their own project"), nil
		}
	}
	return Allow("project author"), nil
}

func issueWriteRule(ctx context.Context, r *membership.Resolver, actor int64, verb Verb, t Target) (Decision, error) {
	if verb == VerbCreate {
		return Allow("contributors may create issues"), nil
	}
	if actor == t.AuthorID {
		return Allow("issue author"), nil
	}
	author, err := r.IsAuthor(ctx, actor, t.ProjectID)
	if err != nil {
		return Decision{}, err
	}
	if author {
		return Allow("project author"), nil
	}
	return Deny("only the issue author or the project author may modify the issue"), nil
}

func commentWriteRule(ctx context.Context, r *membership.Resolver, actor int64, verb Verb, t Target) (Decision, error) {
	switch verb {
	case VerbCreate:
		return Allow("contributors may comment"), nil
	case VerbUpdate:
		if actor == t.AuthorID {
			return Allow("comment author"), nil
		}
		return Deny("only the comment author may edit the comment"), nil
	case VerbDelete:
		if actor == t.AuthorID {
			return Allow("comment author"), nil
		}
		author, err := r.IsAuthor(ctx, actor, t.ProjectID)
		if err != nil {
			return Decision{}, err
		}
		if author {
			return Allow("project author"), nil
		}
		return Deny("only the comment author or the project author may delete the comment"), nil
	default:
		return Deny(fmt.Sprintf("unsupported verb %q for comments", verb)), nil
	}
}
