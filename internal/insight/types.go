package insight

import (
	"time"
)

// Insight is a human-readable explanation and recommendation derived from
// exactly one pattern. Immutable once generated, except for UserFeedback
// and AppliedAt.
type Insight struct {
	ID string `json:"id"`

	// PatternID references the pattern this insight derives from.
	PatternID string `json:"patternId"`

	GeneratedAt time.Time `json:"generatedAt"`

	// Confidence is copied from the source pattern.
	Confidence float64 `json:"confidence"`

	Title          string `json:"title"`
	Description    string `json:"description"`
	Recommendation string `json:"recommendation"`

	// SuggestedActions lists learning action ids created for this insight,
	// populated by the collaborator layer after generation.
	SuggestedActions []string `json:"suggestedActions,omitempty"`

	UserFeedback string     `json:"userFeedback,omitempty"`
	AppliedAt    *time.Time `json:"appliedAt,omitempty"`
}
