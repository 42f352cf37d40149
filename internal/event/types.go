package event

import (
	"context"
	"errors"
	"time"
)

// Common errors for event operations.
var (
	// ErrValidation indicates a malformed event was rejected at Emit time.
	// Nothing is persisted when Emit returns a validation error.
	ErrValidation = errors.New("event validation failed")

	// ErrStorage indicates the backing store failed. There is no durable
	// fallback; callers must treat the emit or query as not having happened.
	ErrStorage = errors.New("event store failure")
)

// EventType enumerates the event taxonomy shared by all cooperating roles.
type EventType string

const (
	TypeActionStarted       EventType = "action_started"
	TypeActionCompleted     EventType = "action_completed"
	TypeActionFailed        EventType = "action_failed"
	TypeDecisionMade        EventType = "decision_made"
	TypeConstraintTriggered EventType = "constraint_triggered"
	TypePreferenceUpdated   EventType = "preference_updated"
	TypeModeChanged         EventType = "mode_changed"
	TypeReflectionCreated   EventType = "reflection_created"
	TypePatternDetected     EventType = "pattern_detected"
	TypeInsightGenerated    EventType = "insight_generated"
	TypeModelCalled         EventType = "model_called"
	TypeUserAction          EventType = "user_action"
	TypeUserFeedback        EventType = "user_feedback"
	TypeSessionStarted      EventType = "session_started"
	TypeSessionEnded        EventType = "session_ended"
)

// knownTypes is the closed set accepted by Emit.
var knownTypes = map[EventType]struct{}{
	TypeActionStarted:       {},
	TypeActionCompleted:     {},
	TypeActionFailed:        {},
	TypeDecisionMade:        {},
	TypeConstraintTriggered: {},
	TypePreferenceUpdated:   {},
	TypeModeChanged:         {},
	TypeReflectionCreated:   {},
	TypePatternDetected:     {},
	TypeInsightGenerated:    {},
	TypeModelCalled:         {},
	TypeUserAction:          {},
	TypeUserFeedback:        {},
	TypeSessionStarted:      {},
	TypeSessionEnded:        {},
}

// Valid reports whether t is part of the event taxonomy.
func (t EventType) Valid() bool {
	_, ok := knownTypes[t]
	return ok
}

// Role identifies which cooperating layer emitted an event.
type Role string

const (
	RoleExecution  Role = "execution"
	RolePolicy     Role = "policy"
	RoleReflection Role = "reflection"
	RoleInference  Role = "inference"
)

// OrbEvent is an immutable record of something a cooperating role did or
// decided. Events are never mutated or deleted once appended.
//
// The JSON shape is the wire contract between producers and this pipeline.
// Unknown payload and metadata keys round-trip unchanged.
type OrbEvent struct {
	// ID is globally unique and immutable once appended.
	ID string `json:"id"`

	// Type classifies the event within the shared taxonomy.
	Type EventType `json:"type"`

	// Timestamp is caller-supplied and therefore only approximately
	// monotonic across producers.
	Timestamp time.Time `json:"timestamp"`

	UserID    string `json:"userId,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	DeviceID  string `json:"deviceId,omitempty"`
	Mode      string `json:"mode,omitempty"`
	Persona   string `json:"persona,omitempty"`
	Role      Role   `json:"role,omitempty"`

	// Payload carries free-form, producer-defined fields. Never validated
	// beyond JSON well-formedness.
	Payload map[string]any `json:"payload,omitempty"`

	// Metadata carries cross-cutting measurements: duration ("durationMs"),
	// success flag ("success"), error text ("error").
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Clone returns a deep-enough copy: payload and metadata maps are copied so
// stored events cannot be mutated through the caller's reference.
func (e *OrbEvent) Clone() *OrbEvent {
	c := *e
	if e.Payload != nil {
		c.Payload = make(map[string]any, len(e.Payload))
		for k, v := range e.Payload {
			c.Payload[k] = v
		}
	}
	if e.Metadata != nil {
		c.Metadata = make(map[string]any, len(e.Metadata))
		for k, v := range e.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

// Filter is the query predicate shared by the Bus query path and the
// adaptation engine. Zero-valued fields match everything.
type Filter struct {
	ID        string      `json:"id,omitempty"`
	Types     []EventType `json:"types,omitempty"`
	UserID    string      `json:"userId,omitempty"`
	SessionID string      `json:"sessionId,omitempty"`
	DeviceID  string      `json:"deviceId,omitempty"`
	Mode      string      `json:"mode,omitempty"`
	Role      Role        `json:"role,omitempty"`
	Since     time.Time   `json:"since,omitempty"`
	Until     time.Time   `json:"until,omitempty"`

	// Limit caps the result set. Zero means the caller's default applies
	// (DefaultQueryLimit on the Bus, unlimited at the store layer).
	Limit int `json:"limit,omitempty"`
}

// Matches reports whether e satisfies every provided predicate.
func (f Filter) Matches(e *OrbEvent) bool {
	if f.ID != "" && e.ID != f.ID {
		return false
	}
	if len(f.Types) > 0 {
		found := false
		for _, t := range f.Types {
			if e.Type == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.UserID != "" && e.UserID != f.UserID {
		return false
	}
	if f.SessionID != "" && e.SessionID != f.SessionID {
		return false
	}
	if f.DeviceID != "" && e.DeviceID != f.DeviceID {
		return false
	}
	if f.Mode != "" && e.Mode != f.Mode {
		return false
	}
	if f.Role != "" && e.Role != f.Role {
		return false
	}
	if !f.Since.IsZero() && e.Timestamp.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && e.Timestamp.After(f.Until) {
		return false
	}
	return true
}

// ModeCount pairs a mode with its event count.
type ModeCount struct {
	Mode  string `json:"mode"`
	Count int    `json:"count"`
}

// Stats summarizes an event window.
type Stats struct {
	// TotalEvents is the number of events matching the filter.
	TotalEvents int `json:"totalEvents"`

	// MostUsedModes is sorted by count descending, mode ascending on ties.
	MostUsedModes []ModeCount `json:"mostUsedModes"`

	// ByRole counts events per emitting role. The counts sum to TotalEvents
	// when every event carries a role; events without a role are counted
	// under the empty key.
	ByRole map[Role]int `json:"byRole"`

	// ByType counts events per taxonomy type.
	ByType map[EventType]int `json:"byType"`

	// ByDay counts events per UTC calendar day ("2006-01-02" keys).
	ByDay map[string]int `json:"byDay"`

	// ErrorRate is failure-indicating events over total events.
	ErrorRate float64 `json:"errorRate"`
}

// Store is the durable append-and-query backend the Bus writes through.
// Implementations live in internal/eventstore; all of them must preserve
// append-only semantics and return results sorted by timestamp descending.
type Store interface {
	// Append durably persists the event. Returning nil means the event
	// survives a process crash (for backends with durability at all).
	Append(ctx context.Context, e *OrbEvent) error

	// Query returns events matching the filter, newest first, truncated to
	// f.Limit when it is positive.
	Query(ctx context.Context, f Filter) ([]OrbEvent, error)

	// Close releases backend resources.
	Close() error
}
