package adaptation

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/orbd/internal/config"
	"github.com/fyrsmithlabs/orbd/internal/event"
	"github.com/fyrsmithlabs/orbd/internal/eventstore"
	"github.com/fyrsmithlabs/orbd/internal/insight"
	"github.com/fyrsmithlabs/orbd/internal/learning"
	"github.com/fyrsmithlabs/orbd/internal/pattern"
)

var engineTestBase = time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T) (*Engine, *event.Bus, learning.Store) {
	t.Helper()

	bus, err := event.NewBus(eventstore.NewMemoryStore(), zap.NewNop())
	require.NoError(t, err)

	detector, err := pattern.NewDetector(config.DefaultDetectorConfig(), zap.NewNop())
	require.NoError(t, err)

	store := learning.NewMemoryStore()
	engine, err := NewEngine(config.DefaultEngineConfig(), bus, detector, insight.NewGenerator(zap.NewNop()), store, zap.NewNop())
	require.NoError(t, err)
	return engine, bus, store
}

func emitAll(t *testing.T, bus *event.Bus, events []event.OrbEvent) {
	t.Helper()
	ctx := context.Background()
	for i := range events {
		require.NoError(t, bus.Emit(ctx, &events[i]))
	}
}

func TestNewEngine(t *testing.T) {
	bus, err := event.NewBus(eventstore.NewMemoryStore(), nil)
	require.NoError(t, err)
	detector, err := pattern.NewDetector(config.DetectorConfig{}, nil)
	require.NoError(t, err)
	generator := insight.NewGenerator(nil)
	store := learning.NewMemoryStore()

	cases := []struct {
		name string
		fn   func() (*Engine, error)
	}{
		{"nil bus", func() (*Engine, error) {
			return NewEngine(config.EngineConfig{}, nil, detector, generator, store, nil)
		}},
		{"nil detector", func() (*Engine, error) {
			return NewEngine(config.EngineConfig{}, bus, nil, generator, store, nil)
		}},
		{"nil generator", func() (*Engine, error) {
			return NewEngine(config.EngineConfig{}, bus, detector, nil, store, nil)
		}},
		{"nil store", func() (*Engine, error) {
			return NewEngine(config.EngineConfig{}, bus, detector, generator, nil, nil)
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.fn()
			require.Error(t, err)
		})
	}
}

func TestComputeInsightsAggregates(t *testing.T) {
	ctx := context.Background()
	engine, bus, _ := newTestEngine(t)

	var events []event.OrbEvent
	// Two devices, skewed toward the laptop, all at 09:00 UTC.
	for i := 0; i < 7; i++ {
		events = append(events, event.OrbEvent{
			ID:        fmt.Sprintf("laptop-%d", i),
			Type:      event.TypeUserAction,
			Timestamp: engineTestBase.Add(time.Duration(i) * time.Minute),
			DeviceID:  "laptop",
			Mode:      "focus",
			Role:      event.RoleExecution,
		})
	}
	for i := 0; i < 3; i++ {
		events = append(events, event.OrbEvent{
			ID:        fmt.Sprintf("phone-%d", i),
			Type:      event.TypeUserAction,
			Timestamp: engineTestBase.Add(14 * time.Hour),
			DeviceID:  "phone",
			Mode:      "explore",
			Role:      event.RolePolicy,
		})
	}
	// One failing feature: 1 failure over 4 attempts.
	for i := 0; i < 4; i++ {
		typ := event.TypeActionCompleted
		if i == 0 {
			typ = event.TypeActionFailed
		}
		events = append(events, event.OrbEvent{
			ID:        fmt.Sprintf("sync-%d", i),
			Type:      typ,
			Timestamp: engineTestBase.Add(time.Duration(i) * time.Minute),
			Payload:   map[string]any{"feature": "sync"},
		})
	}
	emitAll(t, bus, events)

	insights, err := engine.ComputeInsights(ctx, event.Filter{})
	require.NoError(t, err)

	assert.Equal(t, 14, insights.TotalEvents)
	assert.False(t, insights.GeneratedAt.IsZero())

	require.Len(t, insights.DeviceUsage, 3)
	assert.Equal(t, DeviceCount{Device: "laptop", Count: 7}, insights.DeviceUsage[0])
	assert.Equal(t, DeviceCount{Device: "unknown", Count: 4}, insights.DeviceUsage[1])
	assert.Equal(t, DeviceCount{Device: "phone", Count: 3}, insights.DeviceUsage[2])

	assert.Equal(t, 7, insights.RoleActivity[event.RoleExecution])
	assert.Equal(t, 3, insights.RoleActivity[event.RolePolicy])

	require.Len(t, insights.FailingFeatures, 1)
	assert.Equal(t, "sync", insights.FailingFeatures[0].Feature)
	assert.InDelta(t, 0.25, insights.FailingFeatures[0].ErrorRate, 1e-9)
	assert.Equal(t, 4, insights.FailingFeatures[0].Attempts)

	require.NotEmpty(t, insights.PeakHours)
	assert.Equal(t, 9, insights.PeakHours[0].Hour)
	assert.Equal(t, 11, insights.PeakHours[0].Count)

	assert.InDelta(t, 1.0/14.0, insights.ErrorRate, 1e-9)
	assert.InDelta(t, 13.0/14.0, insights.SuccessRate, 1e-9)
}

func TestComputeInsightsAvgTaskDuration(t *testing.T) {
	ctx := context.Background()
	engine, bus, _ := newTestEngine(t)

	events := []event.OrbEvent{
		{
			ID: "t1-start", Type: event.TypeActionStarted, Timestamp: engineTestBase,
			Payload: map[string]any{"taskId": "t1"},
		},
		{
			ID: "t1-done", Type: event.TypeActionCompleted, Timestamp: engineTestBase.Add(2 * time.Second),
			Payload: map[string]any{"taskId": "t1"},
		},
		{
			ID: "t2-start", Type: event.TypeActionStarted, Timestamp: engineTestBase.Add(time.Minute),
			Payload: map[string]any{"taskId": "t2"},
		},
		{
			ID: "t2-failed", Type: event.TypeActionFailed, Timestamp: engineTestBase.Add(time.Minute + 4*time.Second),
			Payload: map[string]any{"taskId": "t2"},
		},
		// Start without an outcome, ignored.
		{
			ID: "t3-start", Type: event.TypeActionStarted, Timestamp: engineTestBase.Add(2 * time.Minute),
			Payload: map[string]any{"taskId": "t3"},
		},
		// Outcome without a start, ignored.
		{
			ID: "t4-done", Type: event.TypeActionCompleted, Timestamp: engineTestBase.Add(3 * time.Minute),
			Payload: map[string]any{"taskId": "t4"},
		},
	}
	emitAll(t, bus, events)

	insights, err := engine.ComputeInsights(ctx, event.Filter{})
	require.NoError(t, err)
	assert.InDelta(t, 3000.0, insights.AvgTaskDurationMs, 1e-6)
}

func TestComputeInsightsPersistsPatterns(t *testing.T) {
	ctx := context.Background()
	engine, bus, store := newTestEngine(t)

	var events []event.OrbEvent
	for i := 0; i < 47; i++ {
		events = append(events, event.OrbEvent{
			ID:        fmt.Sprintf("commit-%d", i),
			Type:      event.TypeUserAction,
			Timestamp: engineTestBase.Add(time.Duration(i) * 3 * time.Hour),
			Payload:   map[string]any{"action": "git-commit"},
		})
	}
	emitAll(t, bus, events)

	insights, err := engine.ComputeInsights(ctx, event.Filter{})
	require.NoError(t, err)
	require.NotEmpty(t, insights.Patterns)

	stored, err := store.GetPatterns(ctx, learning.PatternFilter{Types: []pattern.Type{pattern.TypeFrequentAction}})
	require.NoError(t, err)
	require.NotEmpty(t, stored)
	assert.Equal(t, []string{"git-commit"}, stored[0].Data.Actions)

	storedInsights, err := store.GetInsights(ctx, learning.InsightFilter{})
	require.NoError(t, err)
	require.NotEmpty(t, storedInsights)
	assert.Equal(t, "Frequent git-commit Detected", storedInsights[0].Title)
}

func TestComputeInsightsEmptyWindow(t *testing.T) {
	ctx := context.Background()
	engine, _, _ := newTestEngine(t)

	insights, err := engine.ComputeInsights(ctx, event.Filter{})
	require.NoError(t, err)
	assert.Zero(t, insights.TotalEvents)
	assert.Zero(t, insights.ErrorRate)
	assert.Empty(t, insights.DeviceUsage)
	assert.Empty(t, insights.Patterns)
	assert.Zero(t, insights.AvgTaskDurationMs)
}

func TestRecommend(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	t.Run("dominant mode", func(t *testing.T) {
		recs := engine.recommend(&Insights{
			TotalEvents:   100,
			MostUsedModes: []event.ModeCount{{Mode: "focus", Count: 40}, {Mode: "explore", Count: 10}},
		})
		require.Len(t, recs, 1)
		assert.Equal(t, "You use focus mode for 40% of your activity. Consider making it your default.", recs[0])
	})

	t.Run("failing feature", func(t *testing.T) {
		recs := engine.recommend(&Insights{
			TotalEvents:     50,
			FailingFeatures: []FeatureErrorRate{{Feature: "deploy", ErrorRate: 0.25, Attempts: 20}},
		})
		require.Len(t, recs, 1)
		assert.Equal(t, "deploy fails 25.0% of the time (20 attempts). Review or debug it.", recs[0])
	})

	t.Run("overall error rate", func(t *testing.T) {
		recs := engine.recommend(&Insights{TotalEvents: 50, ErrorRate: 0.2})
		require.Len(t, recs, 1)
		assert.Contains(t, recs[0], "Overall error rate is 20.0%")
	})

	t.Run("thresholds are exclusive", func(t *testing.T) {
		recs := engine.recommend(&Insights{
			TotalEvents:     100,
			MostUsedModes:   []event.ModeCount{{Mode: "focus", Count: 30}},
			FailingFeatures: []FeatureErrorRate{{Feature: "deploy", ErrorRate: 0.2, Attempts: 10}},
			ErrorRate:       0.15,
		})
		assert.Empty(t, recs)
	})

	t.Run("empty window", func(t *testing.T) {
		recs := engine.recommend(&Insights{})
		assert.Empty(t, recs)
	})
}

func TestGetRecommendations(t *testing.T) {
	ctx := context.Background()
	engine, bus, _ := newTestEngine(t)

	var events []event.OrbEvent
	for i := 0; i < 8; i++ {
		events = append(events, event.OrbEvent{
			ID:        fmt.Sprintf("focus-%d", i),
			Type:      event.TypeUserAction,
			Timestamp: engineTestBase.Add(time.Duration(i) * time.Minute),
			Mode:      "focus",
		})
	}
	for i := 0; i < 2; i++ {
		events = append(events, event.OrbEvent{
			ID:        fmt.Sprintf("other-%d", i),
			Type:      event.TypeUserAction,
			Timestamp: engineTestBase,
			Mode:      "explore",
		})
	}
	emitAll(t, bus, events)

	recs, err := engine.GetRecommendations(ctx, event.Filter{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Contains(t, recs[0], "focus mode for 80%")
}
