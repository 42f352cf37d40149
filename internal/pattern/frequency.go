package pattern

import (
	"math"
	"sort"

	"github.com/google/uuid"

	"github.com/fyrsmithlabs/orbd/internal/event"
)

// detectFrequentActions flags actions repeated at least MinOccurrences
// times within the window.
//
// Confidence scales monotonically with an action's frequency relative to
// the window's median action frequency: an action at the median scores 0.5,
// twice the median (or more) scores 1.0.
func (d *Detector) detectFrequentActions(events []event.OrbEvent) []Pattern {
	groups, actions := groupByAction(events, nil)
	if len(groups) == 0 {
		return nil
	}

	median := medianGroupSize(groups)
	spanDays := windowSpanDays(events)

	var patterns []Pattern
	for _, action := range actions {
		bucket := groups[action]
		frequency := len(bucket)
		if frequency < d.cfg.MinOccurrences {
			continue
		}

		confidence := clamp01(float64(frequency) / (2 * median))
		if confidence < d.cfg.MinConfidence {
			continue
		}

		patterns = append(patterns, Pattern{
			ID:         uuid.New().String(),
			Type:       TypeFrequentAction,
			DetectedAt: now(),
			Confidence: confidence,
			Data: Data{
				Actions:   []string{action},
				Frequency: frequency,
				AvgPerDay: float64(frequency) / spanDays,
			},
			EventIDs:   eventIDs(bucket),
			EventCount: frequency,
			Status:     StatusDetected,
		})
	}
	return patterns
}

// medianGroupSize returns the median bucket size, averaging the middle
// pair for even counts.
func medianGroupSize(groups map[string][]*event.OrbEvent) float64 {
	sizes := make([]int, 0, len(groups))
	for _, bucket := range groups {
		sizes = append(sizes, len(bucket))
	}
	sort.Ints(sizes)

	mid := len(sizes) / 2
	if len(sizes)%2 == 1 {
		return float64(sizes[mid])
	}
	return float64(sizes[mid-1]+sizes[mid]) / 2
}

// detectEfficiencyGains flags repeated actions whose recent occurrences are
// materially faster than their earliest ones.
//
// The family compares the mean duration of the first EfficiencySample
// occurrences against the last EfficiencySample occurrences (ordered by
// timestamp) and reports the relative improvement.
func (d *Detector) detectEfficiencyGains(events []event.OrbEvent) []Pattern {
	groups, actions := groupByAction(events, func(e *event.OrbEvent) bool {
		_, ok := eventDurationMs(e)
		return ok
	})

	n := d.cfg.EfficiencySample

	var patterns []Pattern
	for _, action := range actions {
		bucket := groups[action]
		if len(bucket) < 2*n {
			continue
		}
		sortByTimestamp(bucket)

		early := meanDuration(bucket[:n])
		recent := meanDuration(bucket[len(bucket)-n:])
		if early <= 0 {
			continue
		}

		improvement := (early - recent) / early
		if improvement < d.cfg.ImprovementThreshold {
			continue
		}

		confidence := clamp01(2 * improvement)
		if confidence < d.cfg.MinConfidence {
			continue
		}

		patterns = append(patterns, Pattern{
			ID:         uuid.New().String(),
			Type:       TypeEfficiencyGain,
			DetectedAt: now(),
			Confidence: confidence,
			Data: Data{
				Actions:     []string{action},
				Improvement: improvement,
				SampleSize:  2 * n,
			},
			EventIDs:   eventIDs(bucket),
			EventCount: len(bucket),
			Status:     StatusDetected,
		})
	}
	return patterns
}

func meanDuration(events []*event.OrbEvent) float64 {
	if len(events) == 0 {
		return math.NaN()
	}
	total := 0.0
	for _, e := range events {
		d, _ := eventDurationMs(e)
		total += d
	}
	return total / float64(len(events))
}
