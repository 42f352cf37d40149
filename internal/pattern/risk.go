package pattern

import (
	"sort"

	"github.com/google/uuid"

	"github.com/fyrsmithlabs/orbd/internal/event"
)

// detectRiskThresholds reports the approval rate for high-risk decisions
// per mode, used downstream to infer risk tolerance.
//
// Unlike the other families there is no flagging threshold: any mode with
// at least MinSampleSize high-risk decisions is emitted. Confidence grows
// with sample size alone since the rate itself is the finding, not a
// deviation from one.
func (d *Detector) detectRiskThresholds(events []event.OrbEvent) []Pattern {
	type tally struct {
		presented []*event.OrbEvent
		approved  int
	}
	byMode := make(map[string]*tally)
	for i := range events {
		e := &events[i]
		if e.Type != event.TypeDecisionMade || e.Mode == "" {
			continue
		}
		if payloadString(e, "riskLevel") != "high" {
			continue
		}
		t := byMode[e.Mode]
		if t == nil {
			t = &tally{}
			byMode[e.Mode] = t
		}
		t.presented = append(t.presented, e)
		if payloadBool(e, "approved") {
			t.approved++
		}
	}

	modes := make([]string, 0, len(byMode))
	for mode := range byMode {
		modes = append(modes, mode)
	}
	sort.Strings(modes)

	var patterns []Pattern
	for _, mode := range modes {
		t := byMode[mode]
		sample := len(t.presented)
		if sample < d.cfg.MinSampleSize {
			continue
		}

		patterns = append(patterns, Pattern{
			ID:         uuid.New().String(),
			Type:       TypeRiskThreshold,
			DetectedAt: now(),
			Confidence: clamp01(float64(sample) / float64(sample+10)),
			Data: Data{
				Modes:        []string{mode},
				ApprovalRate: float64(t.approved) / float64(sample),
				Context:      "mode:" + mode,
				SampleSize:   sample,
			},
			EventIDs:   eventIDs(t.presented),
			EventCount: sample,
			Status:     StatusDetected,
		})
	}
	return patterns
}
