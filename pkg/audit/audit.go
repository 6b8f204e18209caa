// Package audit records who did what to which resource. Every mutating
// operation and every denied access produces one entry, keyed back to the
// request by its request ID.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/softdesk/support/pkg/contextkeys"
)

// Action classifies an audited operation
type Action string

const (
	ActionLogin             Action = "auth.login"
	ActionLoginFailed       Action = "auth.login_failed"
	ActionTokenRefresh      Action = "auth.token_refresh"
	ActionTokenRevoke       Action = "auth.token_revoke"
	ActionAccessDenied      Action = "access.denied"
	ActionUserRegister      Action = "user.register"
	ActionUserUpdate        Action = "user.update"
	ActionUserDelete        Action = "user.delete"
	ActionProjectCreate     Action = "project.create"
	ActionProjectUpdate     Action = "project.update"
	ActionProjectDelete     Action = "project.delete"
	ActionContributorAdd    Action = "contributor.add"
	ActionContributorRemove Action = "contributor.remove"
	ActionIssueCreate       Action = "issue.create"
	ActionIssueUpdate       Action = "issue.update"
	ActionIssueDelete       Action = "issue.delete"
	ActionCommentCreate     Action = "comment.create"
	ActionCommentUpdate     Action = "comment.update"
	ActionCommentDelete     Action = "comment.delete"
)

// Entry is a single audit record
type Entry struct {
	ID         int64     `json:"id"`
	ActorID    int64     `json:"actor_id"`
	Action     Action    `json:"action"`
	Resource   string    `json:"resource"`
	ResourceID string    `json:"resource_id,omitempty"`
	ProjectID  *int64    `json:"project_id,omitempty"`
	Allowed    bool      `json:"allowed"`
	Reason     string    `json:"reason,omitempty"`
	RequestID  string    `json:"request_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Recorder persists audit entries. Recording failures must never fail the
// request that triggered them; callers log and move on.
type Recorder interface {
	Record(ctx context.Context, entry *Entry) error
	Close() error
}

// NopRecorder discards all entries
type NopRecorder struct{}

func (NopRecorder) Record(ctx context.Context, entry *Entry) error { return nil }
func (NopRecorder) Close() error                                   { return nil }

// DBRecorder persists audit entries to PostgreSQL
type DBRecorder struct {
	db *sql.DB
}

// NewDBRecorder creates a database-backed recorder
func NewDBRecorder(db *sql.DB) (*DBRecorder, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	return &DBRecorder{db: db}, nil
}

// Record inserts one entry
func (r *DBRecorder) Record(ctx context.Context, entry *Entry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if entry.RequestID == "" {
		entry.RequestID = contextkeys.GetRequestID(ctx)
	}

	query := `
		INSERT INTO audit_entries (actor_id, action, resource, resource_id, project_id, allowed, reason, request_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`
	err := r.db.QueryRowContext(ctx, query,
		entry.ActorID, entry.Action, entry.Resource, entry.ResourceID,
		entry.ProjectID, entry.Allowed, entry.Reason, entry.RequestID, entry.CreatedAt,
	).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("failed to record audit entry: %w", err)
	}
	return nil
}

func (r *DBRecorder) Close() error { return nil }

// Allowed builds an entry for a permitted mutation
func Allowed(actorID int64, action Action, resource, resourceID string, projectID *int64) *Entry {
	return &Entry{
		ActorID:    actorID,
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		ProjectID:  projectID,
		Allowed:    true,
	}
}

// Denied builds an entry for a refused operation
func Denied(actorID int64, action Action, resource, resourceID string, projectID *int64, reason string) *Entry {
	return &Entry{
		ActorID:    actorID,
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		ProjectID:  projectID,
		Allowed:    false,
		Reason:     reason,
	}
}
