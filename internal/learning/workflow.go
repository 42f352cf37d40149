package learning

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/orbd/internal/insight"
	"github.com/fyrsmithlabs/orbd/internal/pattern"
)

// Workflow owns the learning action state machine and the guarded status
// setters layered on the store.
type Workflow struct {
	store  Store
	logger *zap.Logger
}

// NewWorkflow creates a workflow over the given store.
func NewWorkflow(store Store, logger *zap.Logger) (*Workflow, error) {
	if store == nil {
		return nil, fmt.Errorf("learning store cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Workflow{store: store, logger: logger}, nil
}

// Approve moves a pending action to applied and stamps AppliedAt.
//
// Approving an action that is already applied or rejected fails with
// ErrInvalidTransition; the stored record is not modified.
func (w *Workflow) Approve(ctx context.Context, actionID string) (*Action, error) {
	a, err := w.store.GetAction(ctx, actionID)
	if err != nil {
		return nil, err
	}
	if a.Status != StatusPending {
		return nil, fmt.Errorf("%w: cannot approve action in status %q", ErrInvalidTransition, a.Status)
	}

	appliedAt := time.Now().UTC()
	a.Status = StatusApplied
	a.AppliedAt = &appliedAt
	if err := w.store.SaveAction(ctx, a); err != nil {
		return nil, err
	}

	w.logger.Info("learning action approved",
		zap.String("action_id", a.ID),
		zap.String("type", string(a.Type)),
		zap.String("target", a.Target))
	return a, nil
}

// Reject moves a pending action to rejected. AppliedAt is never stamped on
// rejection.
func (w *Workflow) Reject(ctx context.Context, actionID string) (*Action, error) {
	a, err := w.store.GetAction(ctx, actionID)
	if err != nil {
		return nil, err
	}
	if a.Status != StatusPending {
		return nil, fmt.Errorf("%w: cannot reject action in status %q", ErrInvalidTransition, a.Status)
	}

	a.Status = StatusRejected
	if err := w.store.SaveAction(ctx, a); err != nil {
		return nil, err
	}

	w.logger.Info("learning action rejected",
		zap.String("action_id", a.ID),
		zap.String("type", string(a.Type)),
		zap.String("target", a.Target))
	return a, nil
}

// patternTransitions maps each pattern status to the statuses it may move
// to. Detected patterns are validated before being applied or rejected.
var patternTransitions = map[pattern.Status][]pattern.Status{
	pattern.StatusDetected:  {pattern.StatusValidated, pattern.StatusRejected},
	pattern.StatusValidated: {pattern.StatusApplied, pattern.StatusRejected},
	pattern.StatusApplied:   {},
	pattern.StatusRejected:  {},
}

// AdvancePattern moves a stored pattern to the given status, enforcing the
// detected -> validated -> applied|rejected lifecycle.
func (w *Workflow) AdvancePattern(ctx context.Context, patternID string, to pattern.Status) (*pattern.Pattern, error) {
	found, err := w.store.GetPattern(ctx, patternID)
	if err != nil {
		return nil, err
	}

	allowed := false
	for _, next := range patternTransitions[found.Status] {
		if next == to {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, fmt.Errorf("%w: pattern cannot move from %q to %q", ErrInvalidTransition, found.Status, to)
	}

	found.Status = to
	if err := w.store.SavePattern(ctx, found); err != nil {
		return nil, err
	}
	return found, nil
}

// RecordFeedback attaches user feedback text to a stored insight and, when
// applied is true, stamps AppliedAt.
func (w *Workflow) RecordFeedback(ctx context.Context, insightID, feedback string, applied bool) (*insight.Insight, error) {
	found, err := w.store.GetInsight(ctx, insightID)
	if err != nil {
		return nil, err
	}

	found.UserFeedback = feedback
	if applied && found.AppliedAt == nil {
		appliedAt := time.Now().UTC()
		found.AppliedAt = &appliedAt
	}
	if err := w.store.SaveInsight(ctx, found); err != nil {
		return nil, err
	}
	return found, nil
}
