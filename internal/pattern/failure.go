package pattern

import (
	"github.com/google/uuid"

	"github.com/fyrsmithlabs/orbd/internal/event"
)

// detectErrorPatterns flags actions whose failure rate exceeds
// ErrorRateThreshold over at least MinSampleSize attempts.
//
// An attempt is a completion or failure event; starts without an outcome
// are not attempts. Confidence combines how far the rate sits above zero
// (doubled, so a 50% failure rate saturates) with a sample-size damper so
// a thin window cannot produce a high-confidence pattern.
func (d *Detector) detectErrorPatterns(events []event.OrbEvent) []Pattern {
	groups, actions := groupByAction(events, func(e *event.OrbEvent) bool {
		return e.Type == event.TypeActionCompleted || e.Type == event.TypeActionFailed
	})

	var patterns []Pattern
	for _, action := range actions {
		attempts := groups[action]
		if len(attempts) < d.cfg.MinSampleSize {
			continue
		}

		failures := 0
		for _, e := range attempts {
			if e.Type == event.TypeActionFailed {
				failures++
			}
		}
		errorRate := float64(failures) / float64(len(attempts))
		if errorRate < d.cfg.ErrorRateThreshold {
			continue
		}

		sampleDamper := float64(len(attempts)) / float64(len(attempts)+5)
		confidence := clamp01(2*errorRate) * sampleDamper
		if confidence < d.cfg.MinConfidence {
			continue
		}

		patterns = append(patterns, Pattern{
			ID:         uuid.New().String(),
			Type:       TypeErrorPattern,
			DetectedAt: now(),
			Confidence: confidence,
			Data: Data{
				Actions:    []string{action},
				ErrorRate:  errorRate,
				SampleSize: len(attempts),
			},
			EventIDs:   eventIDs(attempts),
			EventCount: len(attempts),
			Status:     StatusDetected,
		})
	}
	return patterns
}
