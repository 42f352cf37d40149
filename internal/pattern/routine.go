package pattern

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/fyrsmithlabs/orbd/internal/event"
)

const minutesPerDay = 24 * 60

// detectTimeRoutines flags actions whose occurrences cluster inside a
// narrow clock-time window across days.
//
// For each action the family finds the smallest contiguous window of the
// day covering at least RoutineCoverage of occurrences, and flags the
// action when that window spans no more than RoutineWindowFraction of the
// day. Confidence rewards both the coverage achieved and the tightness of
// the window.
func (d *Detector) detectTimeRoutines(events []event.OrbEvent) []Pattern {
	groups, actions := groupByAction(events, nil)

	var patterns []Pattern
	for _, action := range actions {
		bucket := groups[action]
		if len(bucket) < d.cfg.MinOccurrences {
			continue
		}

		minutes := make([]int, len(bucket))
		for i, e := range bucket {
			ts := e.Timestamp.UTC()
			minutes[i] = ts.Hour()*60 + ts.Minute()
		}
		sort.Ints(minutes)

		startMin, endMin, covered := tightestWindow(minutes, d.cfg.RoutineCoverage)
		width := endMin - startMin
		if float64(width) > d.cfg.RoutineWindowFraction*minutesPerDay {
			continue
		}

		coverage := float64(covered) / float64(len(minutes))
		confidence := clamp01(coverage * (1 - float64(width)/minutesPerDay))
		if confidence < d.cfg.MinConfidence {
			continue
		}

		patterns = append(patterns, Pattern{
			ID:         uuid.New().String(),
			Type:       TypeTimeBasedRoutine,
			DetectedAt: now(),
			Confidence: confidence,
			Data: Data{
				Actions:    []string{action},
				Frequency:  len(bucket),
				TimeWindow: fmt.Sprintf("%02d:%02d-%02d:%02d", startMin/60, startMin%60, endMin/60, endMin%60),
			},
			EventIDs:   eventIDs(bucket),
			EventCount: len(bucket),
			Status:     StatusDetected,
		})
	}
	return patterns
}

// tightestWindow returns the narrowest [start, end] minute range covering
// at least the given share of the sorted occurrence minutes, preferring
// the earliest window on width ties.
func tightestWindow(sorted []int, coverage float64) (start, end, covered int) {
	n := len(sorted)
	k := int(coverage * float64(n))
	if float64(k) < coverage*float64(n) {
		k++
	}
	if k < 1 {
		k = 1
	}
	if k > n {
		k = n
	}

	bestIdx := 0
	bestWidth := sorted[k-1] - sorted[0]
	for i := 1; i+k <= n; i++ {
		width := sorted[i+k-1] - sorted[i]
		if width < bestWidth {
			bestWidth = width
			bestIdx = i
		}
	}
	return sorted[bestIdx], sorted[bestIdx+k-1], k
}
