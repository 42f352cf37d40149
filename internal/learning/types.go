package learning

import (
	"context"
	"errors"
	"time"

	"github.com/fyrsmithlabs/orbd/internal/insight"
	"github.com/fyrsmithlabs/orbd/internal/pattern"
)

// Common errors for learning store operations.
var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidTransition indicates an attempt to move a learning action
	// out of a terminal state. The record is never modified.
	ErrInvalidTransition = errors.New("invalid learning action transition")

	// ErrStorage indicates the backing store failed.
	ErrStorage = errors.New("learning store failure")
)

// ActionType enumerates the kinds of suggested adaptations.
type ActionType string

const (
	ActionUpdatePreference    ActionType = "update_preference"
	ActionSuggestAutomation   ActionType = "suggest_automation"
	ActionAdjustConstraint    ActionType = "adjust_constraint"
	ActionRecommendMode       ActionType = "recommend_mode"
	ActionAdjustRiskThreshold ActionType = "adjust_risk_threshold"
	ActionCreateShortcut      ActionType = "create_shortcut"
)

// ActionStatus tracks a learning action through its state machine.
type ActionStatus string

const (
	// StatusPending is the only initial state.
	StatusPending ActionStatus = "pending"
	// StatusApplied is terminal; entering it stamps AppliedAt.
	StatusApplied ActionStatus = "applied"
	// StatusRejected is terminal; AppliedAt is never stamped.
	StatusRejected ActionStatus = "rejected"
)

// Action is a concrete suggested change awaiting user approval.
type Action struct {
	ID   string     `json:"id"`
	Type ActionType `json:"type"`

	// InsightID references the insight this action was suggested for.
	InsightID string `json:"insightId"`

	Confidence float64 `json:"confidence"`

	// Target names the setting or preference the action would change.
	Target string `json:"target"`

	// CurrentValue and SuggestedValue are opaque to the pipeline.
	CurrentValue   any `json:"currentValue,omitempty"`
	SuggestedValue any `json:"suggestedValue,omitempty"`

	Reason string `json:"reason,omitempty"`

	Status    ActionStatus `json:"status"`
	CreatedAt time.Time    `json:"createdAt"`

	// AppliedAt is set only on the transition to applied.
	AppliedAt *time.Time `json:"appliedAt,omitempty"`
}

// PatternFilter selects stored patterns. Zero-valued fields match
// everything.
type PatternFilter struct {
	Types         []pattern.Type   `json:"types,omitempty"`
	Statuses      []pattern.Status `json:"statuses,omitempty"`
	Since         time.Time        `json:"since,omitempty"`
	Until         time.Time        `json:"until,omitempty"`
	MinConfidence float64          `json:"minConfidence,omitempty"`
	Limit         int              `json:"limit,omitempty"`
}

// Matches reports whether p satisfies every provided predicate.
func (f PatternFilter) Matches(p *pattern.Pattern) bool {
	if len(f.Types) > 0 && !containsType(f.Types, p.Type) {
		return false
	}
	if len(f.Statuses) > 0 && !containsStatus(f.Statuses, p.Status) {
		return false
	}
	if !f.Since.IsZero() && p.DetectedAt.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && p.DetectedAt.After(f.Until) {
		return false
	}
	if p.Confidence < f.MinConfidence {
		return false
	}
	return true
}

// InsightFilter selects stored insights.
type InsightFilter struct {
	PatternID     string    `json:"patternId,omitempty"`
	Since         time.Time `json:"since,omitempty"`
	Until         time.Time `json:"until,omitempty"`
	MinConfidence float64   `json:"minConfidence,omitempty"`
	Limit         int       `json:"limit,omitempty"`
}

// Matches reports whether ins satisfies every provided predicate.
func (f InsightFilter) Matches(ins *insight.Insight) bool {
	if f.PatternID != "" && ins.PatternID != f.PatternID {
		return false
	}
	if !f.Since.IsZero() && ins.GeneratedAt.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && ins.GeneratedAt.After(f.Until) {
		return false
	}
	if ins.Confidence < f.MinConfidence {
		return false
	}
	return true
}

// ActionFilter selects stored learning actions.
type ActionFilter struct {
	Types         []ActionType   `json:"types,omitempty"`
	Statuses      []ActionStatus `json:"statuses,omitempty"`
	InsightID     string         `json:"insightId,omitempty"`
	Since         time.Time      `json:"since,omitempty"`
	Until         time.Time      `json:"until,omitempty"`
	MinConfidence float64        `json:"minConfidence,omitempty"`
	Limit         int            `json:"limit,omitempty"`
}

// Matches reports whether a satisfies every provided predicate.
func (f ActionFilter) Matches(a *Action) bool {
	if len(f.Types) > 0 {
		found := false
		for _, t := range f.Types {
			if a.Type == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(f.Statuses) > 0 {
		found := false
		for _, s := range f.Statuses {
			if a.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.InsightID != "" && a.InsightID != f.InsightID {
		return false
	}
	if !f.Since.IsZero() && a.CreatedAt.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && a.CreatedAt.After(f.Until) {
		return false
	}
	if a.Confidence < f.MinConfidence {
		return false
	}
	return true
}

// Store persists patterns, insights, and learning actions, independent of
// the event store.
//
// Saves are upserts by id, atomic per record but not transactional across
// records. Reads return newest first (detection/generation/creation time
// descending, id ascending on ties), truncated to the filter's Limit when
// it is positive.
type Store interface {
	SavePattern(ctx context.Context, p *pattern.Pattern) error
	GetPattern(ctx context.Context, id string) (*pattern.Pattern, error)
	GetPatterns(ctx context.Context, f PatternFilter) ([]pattern.Pattern, error)

	SaveInsight(ctx context.Context, ins *insight.Insight) error
	GetInsight(ctx context.Context, id string) (*insight.Insight, error)
	GetInsights(ctx context.Context, f InsightFilter) ([]insight.Insight, error)

	SaveAction(ctx context.Context, a *Action) error
	GetAction(ctx context.Context, id string) (*Action, error)
	GetActions(ctx context.Context, f ActionFilter) ([]Action, error)

	Close() error
}

func containsType(types []pattern.Type, t pattern.Type) bool {
	for _, c := range types {
		if c == t {
			return true
		}
	}
	return false
}

func containsStatus(statuses []pattern.Status, s pattern.Status) bool {
	for _, c := range statuses {
		if c == s {
			return true
		}
	}
	return false
}
