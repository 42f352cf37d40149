package pattern

import (
	"time"
)

// Type identifies the detection family that produced a pattern.
type Type string

const (
	TypeFrequentAction   Type = "frequent_action"
	TypeTimeBasedRoutine Type = "time_based_routine"
	TypeModePreference   Type = "mode_preference"
	TypeErrorPattern     Type = "error_pattern"
	TypeEfficiencyGain   Type = "efficiency_gain"
	TypeRiskThreshold    Type = "risk_threshold"
)

// Types lists every detection family in execution order.
var Types = []Type{
	TypeFrequentAction,
	TypeTimeBasedRoutine,
	TypeModePreference,
	TypeErrorPattern,
	TypeEfficiencyGain,
	TypeRiskThreshold,
}

// Status tracks a pattern through its lifecycle. The status field is the
// only mutable facet of a detected pattern and is advanced externally.
type Status string

const (
	StatusDetected  Status = "detected"
	StatusValidated Status = "validated"
	StatusApplied   Status = "applied"
	StatusRejected  Status = "rejected"
)

// Data carries the family-specific measurements of a pattern. Unused
// fields stay at their zero value and are omitted from JSON.
type Data struct {
	Actions      []string `json:"actions,omitempty"`
	Frequency    int      `json:"frequency,omitempty"`
	AvgPerDay    float64  `json:"avgPerDay,omitempty"`
	TimeWindow   string   `json:"timeWindow,omitempty"`
	Modes        []string `json:"modes,omitempty"`
	UsageRate    float64  `json:"usageRate,omitempty"`
	ErrorRate    float64  `json:"errorRate,omitempty"`
	Improvement  float64  `json:"improvement,omitempty"`
	ApprovalRate float64  `json:"approvalRate,omitempty"`
	Context      string   `json:"context,omitempty"`
	SampleSize   int      `json:"sampleSize,omitempty"`
}

// Pattern is a confidence-scored regularity mined from a window of events.
// Immutable once detected, except for Status.
type Pattern struct {
	ID         string    `json:"id"`
	Type       Type      `json:"type"`
	DetectedAt time.Time `json:"detectedAt"`

	// Confidence is clamped to [0,1] after computation.
	Confidence float64 `json:"confidence"`

	Data Data `json:"data"`

	// EventIDs records provenance: the subset of scanned events that
	// produced this pattern.
	EventIDs   []string `json:"eventIds"`
	EventCount int      `json:"eventCount"`

	Status Status `json:"status"`
}

// clamp01 bounds a confidence score to [0,1].
func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
