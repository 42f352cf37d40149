package pattern

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/orbd/internal/config"
	"github.com/fyrsmithlabs/orbd/internal/event"
)

// Detector runs the six pattern families over an event window.
type Detector struct {
	cfg    config.DetectorConfig
	logger *zap.Logger
}

// NewDetector creates a detector with the given thresholds. A zero-valued
// config is replaced with the defaults.
func NewDetector(cfg config.DetectorConfig, logger *zap.Logger) (*Detector, error) {
	if cfg == (config.DetectorConfig{}) {
		cfg = config.DefaultDetectorConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid detector config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Detector{cfg: cfg, logger: logger}, nil
}

// familyFunc evaluates one pattern family over a window.
type familyFunc func(events []event.OrbEvent) []Pattern

// Detect evaluates every family independently over the same window and
// concatenates the results. A failure in one family never prevents the
// others from running: the panic is recovered, logged, and that family
// contributes nothing.
func (d *Detector) Detect(ctx context.Context, events []event.OrbEvent) []Pattern {
	families := []struct {
		typ Type
		fn  familyFunc
	}{
		{TypeFrequentAction, d.detectFrequentActions},
		{TypeTimeBasedRoutine, d.detectTimeRoutines},
		{TypeModePreference, d.detectModePreferences},
		{TypeErrorPattern, d.detectErrorPatterns},
		{TypeEfficiencyGain, d.detectEfficiencyGains},
		{TypeRiskThreshold, d.detectRiskThresholds},
	}

	var patterns []Pattern
	for _, family := range families {
		if ctx.Err() != nil {
			break
		}
		patterns = append(patterns, d.runFamily(family.typ, family.fn, events)...)
	}

	d.logger.Debug("pattern detection completed",
		zap.Int("events", len(events)),
		zap.Int("patterns", len(patterns)))
	return patterns
}

// runFamily isolates one family so its failure cannot poison the batch.
func (d *Detector) runFamily(typ Type, fn familyFunc, events []event.OrbEvent) (patterns []Pattern) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("pattern family failed",
				zap.String("family", string(typ)),
				zap.Any("panic", r))
			patterns = nil
		}
	}()
	return fn(events)
}

// windowSpanDays returns the span of the window in days, with a floor of
// one day so per-day averages stay bounded.
func windowSpanDays(events []event.OrbEvent) float64 {
	if len(events) == 0 {
		return 1
	}
	earliest, latest := events[0].Timestamp, events[0].Timestamp
	for i := range events[1:] {
		ts := events[i+1].Timestamp
		if ts.Before(earliest) {
			earliest = ts
		}
		if ts.After(latest) {
			latest = ts
		}
	}
	days := latest.Sub(earliest).Hours() / 24
	if days < 1 {
		return 1
	}
	return days
}

// actionID extracts the action identifier from an event's payload.
// Producers use "action" by convention; "tool" is accepted for the
// execution layer's tool invocations.
func actionID(e *event.OrbEvent) string {
	if e.Payload == nil {
		return ""
	}
	if a, ok := e.Payload["action"].(string); ok && a != "" {
		return a
	}
	if t, ok := e.Payload["tool"].(string); ok && t != "" {
		return t
	}
	return ""
}

// eventDurationMs extracts the duration measurement, if any. JSON decoding
// yields float64; direct Go producers may hand ints.
func eventDurationMs(e *event.OrbEvent) (float64, bool) {
	if e.Metadata == nil {
		return 0, false
	}
	switch v := e.Metadata["durationMs"].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// payloadBool reads a boolean payload field.
func payloadBool(e *event.OrbEvent, key string) bool {
	if e.Payload == nil {
		return false
	}
	b, ok := e.Payload[key].(bool)
	return ok && b
}

// payloadString reads a string payload field.
func payloadString(e *event.OrbEvent, key string) string {
	if e.Payload == nil {
		return ""
	}
	s, _ := e.Payload[key].(string)
	return s
}

// groupByAction buckets events carrying an action identifier, returning
// the bucket map and its keys in sorted order for deterministic emission.
func groupByAction(events []event.OrbEvent, keep func(*event.OrbEvent) bool) (map[string][]*event.OrbEvent, []string) {
	groups := make(map[string][]*event.OrbEvent)
	for i := range events {
		e := &events[i]
		if keep != nil && !keep(e) {
			continue
		}
		action := actionID(e)
		if action == "" {
			continue
		}
		groups[action] = append(groups[action], e)
	}
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return groups, keys
}

// eventIDs extracts provenance ids from a bucket.
func eventIDs(events []*event.OrbEvent) []string {
	ids := make([]string, len(events))
	for i, e := range events {
		ids[i] = e.ID
	}
	return ids
}

// sortByTimestamp orders a bucket oldest first, id ascending on ties.
func sortByTimestamp(events []*event.OrbEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].Timestamp.Equal(events[j].Timestamp) {
			return events[i].Timestamp.Before(events[j].Timestamp)
		}
		return events[i].ID < events[j].ID
	})
}

// now is the single wall-clock read per detected pattern; only DetectedAt
// depends on it, never confidence or data.
func now() time.Time {
	return time.Now().UTC()
}
