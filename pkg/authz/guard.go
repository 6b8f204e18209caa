package authz

import (
	"context"

	"github.com/softdesk/support/pkg/audit"
	"github.com/softdesk/support/pkg/observability"
)

// Guard wraps the engine with the operational concerns every caller wants:
// decision metrics and an audit trail of denials. Services go through the
// guard, not the engine, so no code path can skip either.
type Guard struct {
	engine   *Engine
	metrics  *observability.Metrics
	recorder audit.Recorder
}

// NewGuard creates a guard. metrics may be nil; recorder defaults to a
// no-op recorder when nil.
func NewGuard(engine *Engine, metrics *observability.Metrics, recorder audit.Recorder) *Guard {
	if recorder == nil {
		recorder = audit.NopRecorder{}
	}
	return &Guard{engine: engine, metrics: metrics, recorder: recorder}
}

// Require evaluates the operation and returns nil if allowed. Denials come
// back as the domain error the transport layer maps to 403 or 404; they are
// also counted and written to the audit trail.
func (g *Guard) Require(ctx context.Context, actor int64, verb Verb, t Target, resource string, id interface{}) error {
	decision, err := g.engine.Authorize(ctx, actor, verb, t)
	if err != nil {
		return err
	}

	if g.metrics != nil {
		g.metrics.ObserveAccessDecision(string(t.Kind), string(verb), decision.Allowed)
	}

	if !decision.Allowed {
		var projectID *int64
		if t.ProjectID != 0 {
			pid := t.ProjectID
			projectID = &pid
		}
		entry := audit.Denied(actor, audit.ActionAccessDenied, string(t.Kind), t.ID, projectID, decision.Reason)
		if recordErr := g.recorder.Record(ctx, entry); recordErr != nil {
			observability.FromContext(ctx).WithError(recordErr).Warn("failed to record audit entry")
		}
	}

	return decision.Err(resource, id)
}
