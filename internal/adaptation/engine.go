package adaptation

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/orbd/internal/config"
	"github.com/fyrsmithlabs/orbd/internal/event"
	"github.com/fyrsmithlabs/orbd/internal/insight"
	"github.com/fyrsmithlabs/orbd/internal/learning"
	"github.com/fyrsmithlabs/orbd/internal/pattern"
)

// Engine derives aggregate insights and recommendations from the event bus
// and the learning store.
type Engine struct {
	cfg       config.EngineConfig
	bus       *event.Bus
	detector  *pattern.Detector
	generator *insight.Generator
	store     learning.Store
	logger    *zap.Logger
}

// NewEngine creates an engine. A zero-valued config is replaced with the
// defaults.
func NewEngine(cfg config.EngineConfig, bus *event.Bus, detector *pattern.Detector, generator *insight.Generator, store learning.Store, logger *zap.Logger) (*Engine, error) {
	if cfg == (config.EngineConfig{}) {
		cfg = config.DefaultEngineConfig()
	}
	if bus == nil {
		return nil, fmt.Errorf("event bus cannot be nil")
	}
	if detector == nil {
		return nil, fmt.Errorf("pattern detector cannot be nil")
	}
	if generator == nil {
		return nil, fmt.Errorf("insight generator cannot be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("learning store cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		cfg:       cfg,
		bus:       bus,
		detector:  detector,
		generator: generator,
		store:     store,
		logger:    logger,
	}, nil
}

// ComputeInsights aggregates the event window selected by the filter.
//
// Freshly detected patterns and their generated insights are persisted to
// the learning store so later reads observe them; persistence failures are
// logged but do not fail the computation.
func (e *Engine) ComputeInsights(ctx context.Context, f event.Filter) (*Insights, error) {
	stats, err := e.bus.Stats(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("computing event stats: %w", err)
	}
	events, err := e.bus.Window(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("reading event window: %w", err)
	}

	patterns := e.detector.Detect(ctx, events)
	e.persist(ctx, patterns)

	result := &Insights{
		GeneratedAt:     time.Now().UTC(),
		TotalEvents:     stats.TotalEvents,
		MostUsedModes:   stats.MostUsedModes,
		DeviceUsage:     deviceUsage(events),
		RoleActivity:    stats.ByRole,
		FailingFeatures: failingFeatures(events),
		PeakHours:       peakHours(events, e.cfg.PeakHours),
		ErrorRate:       stats.ErrorRate,
		SuccessRate:     1 - stats.ErrorRate,
		Patterns:        patterns,
	}
	result.AvgTaskDurationMs = avgTaskDuration(events)
	return result, nil
}

// persist upserts detected patterns and their insights.
func (e *Engine) persist(ctx context.Context, patterns []pattern.Pattern) {
	for i := range patterns {
		p := &patterns[i]
		if err := e.store.SavePattern(ctx, p); err != nil {
			e.logger.Warn("failed to persist pattern",
				zap.String("pattern_id", p.ID),
				zap.Error(err))
			continue
		}
	}
	for _, ins := range e.generator.GenerateBatch(patterns) {
		if err := e.store.SaveInsight(ctx, &ins); err != nil {
			e.logger.Warn("failed to persist insight",
				zap.String("insight_id", ins.ID),
				zap.Error(err))
		}
	}
}

// deviceUsage counts events per device, sorted by count descending.
func deviceUsage(events []event.OrbEvent) []DeviceCount {
	byDevice := make(map[string]int)
	for i := range events {
		device := events[i].DeviceID
		if device == "" {
			device = "unknown"
		}
		byDevice[device]++
	}

	usage := make([]DeviceCount, 0, len(byDevice))
	for device, count := range byDevice {
		usage = append(usage, DeviceCount{Device: device, Count: count})
	}
	sort.Slice(usage, func(i, j int) bool {
		if usage[i].Count != usage[j].Count {
			return usage[i].Count > usage[j].Count
		}
		return usage[i].Device < usage[j].Device
	})
	return usage
}

// failingFeatures computes the per-feature error rate over completed
// attempts, keeping only features that failed at least once.
func failingFeatures(events []event.OrbEvent) []FeatureErrorRate {
	type tally struct {
		attempts int
		failures int
	}
	byFeature := make(map[string]*tally)
	for i := range events {
		e := &events[i]
		if e.Type != event.TypeActionCompleted && e.Type != event.TypeActionFailed {
			continue
		}
		feature := featureID(e)
		if feature == "" {
			continue
		}
		t := byFeature[feature]
		if t == nil {
			t = &tally{}
			byFeature[feature] = t
		}
		t.attempts++
		if e.Type == event.TypeActionFailed {
			t.failures++
		}
	}

	failing := make([]FeatureErrorRate, 0, len(byFeature))
	for feature, t := range byFeature {
		if t.failures == 0 {
			continue
		}
		failing = append(failing, FeatureErrorRate{
			Feature:   feature,
			ErrorRate: float64(t.failures) / float64(t.attempts),
			Attempts:  t.attempts,
		})
	}
	sort.Slice(failing, func(i, j int) bool {
		if failing[i].ErrorRate != failing[j].ErrorRate {
			return failing[i].ErrorRate > failing[j].ErrorRate
		}
		return failing[i].Feature < failing[j].Feature
	})
	return failing
}

// featureID reads the feature name from an event, preferring the explicit
// "feature" payload key over the action identifier.
func featureID(e *event.OrbEvent) string {
	if e.Payload == nil {
		return ""
	}
	if f, ok := e.Payload["feature"].(string); ok && f != "" {
		return f
	}
	if a, ok := e.Payload["action"].(string); ok && a != "" {
		return a
	}
	if t, ok := e.Payload["tool"].(string); ok && t != "" {
		return t
	}
	return ""
}

// peakHours returns the top hours of day by event count.
func peakHours(events []event.OrbEvent, top int) []HourCount {
	byHour := make(map[int]int)
	for i := range events {
		byHour[events[i].Timestamp.UTC().Hour()]++
	}

	hours := make([]HourCount, 0, len(byHour))
	for hour, count := range byHour {
		hours = append(hours, HourCount{Hour: hour, Count: count})
	}
	sort.Slice(hours, func(i, j int) bool {
		if hours[i].Count != hours[j].Count {
			return hours[i].Count > hours[j].Count
		}
		return hours[i].Hour < hours[j].Hour
	})
	if len(hours) > top {
		hours = hours[:top]
	}
	return hours
}

// avgTaskDuration averages start-to-outcome durations for task-id matched
// pairs. Starts without an outcome are ignored, as are outcomes without a
// recorded start.
func avgTaskDuration(events []event.OrbEvent) float64 {
	starts := make(map[string]time.Time)
	// Pair chronologically so an outcome matches the start that preceded it.
	ordered := make([]*event.OrbEvent, len(events))
	for i := range events {
		ordered[i] = &events[i]
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})

	total := 0.0
	matched := 0
	for _, e := range ordered {
		taskID, _ := e.Payload["taskId"].(string)
		if taskID == "" {
			continue
		}
		switch e.Type {
		case event.TypeActionStarted:
			starts[taskID] = e.Timestamp
		case event.TypeActionCompleted, event.TypeActionFailed:
			start, ok := starts[taskID]
			if !ok {
				continue
			}
			delete(starts, taskID)
			total += float64(e.Timestamp.Sub(start).Microseconds()) / 1000.0
			matched++
		}
	}
	if matched == 0 {
		return 0
	}
	return total / float64(matched)
}
