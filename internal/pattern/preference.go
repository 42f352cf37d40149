package pattern

import (
	"sort"

	"github.com/google/uuid"

	"github.com/fyrsmithlabs/orbd/internal/event"
)

// detectModePreferences flags modes that dominate usage within a device
// context.
//
// The usage rate is occurrences-in-mode over occurrences-in-context; the
// rate itself serves as the confidence score. Contexts below MinSampleSize
// are skipped to avoid small-sample noise.
func (d *Detector) detectModePreferences(events []event.OrbEvent) []Pattern {
	type bucket struct {
		total  int
		byMode map[string][]*event.OrbEvent
	}
	contexts := make(map[string]*bucket)
	for i := range events {
		e := &events[i]
		if e.Mode == "" {
			continue
		}
		b := contexts[e.DeviceID]
		if b == nil {
			b = &bucket{byMode: make(map[string][]*event.OrbEvent)}
			contexts[e.DeviceID] = b
		}
		b.total++
		b.byMode[e.Mode] = append(b.byMode[e.Mode], e)
	}

	devices := make([]string, 0, len(contexts))
	for device := range contexts {
		devices = append(devices, device)
	}
	sort.Strings(devices)

	var patterns []Pattern
	for _, device := range devices {
		b := contexts[device]
		if b.total < d.cfg.MinSampleSize {
			continue
		}

		modes := make([]string, 0, len(b.byMode))
		for mode := range b.byMode {
			modes = append(modes, mode)
		}
		sort.Strings(modes)

		for _, mode := range modes {
			occurrences := b.byMode[mode]
			rate := float64(len(occurrences)) / float64(b.total)
			if rate < d.cfg.UsageRateThreshold {
				continue
			}

			confidence := clamp01(rate)
			if confidence < d.cfg.MinConfidence {
				continue
			}

			context := "all devices"
			if device != "" {
				context = "device:" + device
			}
			patterns = append(patterns, Pattern{
				ID:         uuid.New().String(),
				Type:       TypeModePreference,
				DetectedAt: now(),
				Confidence: confidence,
				Data: Data{
					Modes:      []string{mode},
					UsageRate:  rate,
					Context:    context,
					SampleSize: b.total,
				},
				EventIDs:   eventIDs(occurrences),
				EventCount: len(occurrences),
				Status:     StatusDetected,
			})
		}
	}
	return patterns
}
