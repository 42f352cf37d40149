package event

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/fyrsmithlabs/orbd/internal/event"

// DefaultQueryLimit caps Query results when the filter leaves Limit unset.
const DefaultQueryLimit = 100

// Bus is the single ingestion point for behavioral events.
//
// Emit validates and timestamps events before appending them to the Store;
// the append is durable before Emit returns. Query and Stats serve the
// downstream consumers. A Bus is safe for concurrent use by independent
// producers; it adds no mutual exclusion beyond what the Store requires.
type Bus struct {
	store  Store
	logger *zap.Logger

	emitted      metric.Int64Counter
	emitFailures metric.Int64Counter
	emitLatency  metric.Float64Histogram
}

// NewBus creates a Bus over the given store.
func NewBus(store Store, logger *zap.Logger) (*Bus, error) {
	if store == nil {
		return nil, fmt.Errorf("event store cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	meter := otel.Meter(instrumentationName)
	emitted, err := meter.Int64Counter("orbd.events.emitted",
		metric.WithDescription("Events accepted by the bus"))
	if err != nil {
		return nil, fmt.Errorf("creating emitted counter: %w", err)
	}
	emitFailures, err := meter.Int64Counter("orbd.events.emit_failures",
		metric.WithDescription("Events rejected or lost at emit time"))
	if err != nil {
		return nil, fmt.Errorf("creating failure counter: %w", err)
	}
	emitLatency, err := meter.Float64Histogram("orbd.events.emit_latency_ms",
		metric.WithDescription("Emit round-trip latency in milliseconds"))
	if err != nil {
		return nil, fmt.Errorf("creating latency histogram: %w", err)
	}

	return &Bus{
		store:        store,
		logger:       logger,
		emitted:      emitted,
		emitFailures: emitFailures,
		emitLatency:  emitLatency,
	}, nil
}

// Emit validates e and appends it durably to the store.
//
// A missing timestamp is filled with the current UTC time. Unknown payload
// or metadata keys are never rejected. On a validation error nothing is
// persisted.
func (b *Bus) Emit(ctx context.Context, e *OrbEvent) error {
	start := time.Now()

	if err := validate(e); err != nil {
		b.emitFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "validation")))
		return err
	}

	stored := e.Clone()
	if stored.Timestamp.IsZero() {
		stored.Timestamp = time.Now().UTC()
	}

	if err := b.store.Append(ctx, stored); err != nil {
		b.emitFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "storage")))
		b.logger.Error("event append failed",
			zap.String("event_id", stored.ID),
			zap.String("type", string(stored.Type)),
			zap.Error(err))
		return fmt.Errorf("appending event %s: %w", stored.ID, err)
	}

	b.emitted.Add(ctx, 1, metric.WithAttributes(attribute.String("type", string(stored.Type))))
	b.emitLatency.Record(ctx, float64(time.Since(start).Microseconds())/1000.0)

	b.logger.Debug("event emitted",
		zap.String("event_id", stored.ID),
		zap.String("type", string(stored.Type)),
		zap.String("role", string(stored.Role)))
	return nil
}

// Query returns events matching the filter, newest first. A zero Limit is
// replaced with DefaultQueryLimit.
func (b *Bus) Query(ctx context.Context, f Filter) ([]OrbEvent, error) {
	if f.Limit <= 0 {
		f.Limit = DefaultQueryLimit
	}
	events, err := b.store.Query(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	return events, nil
}

// Window returns every event matching the filter with no result cap. Batch
// consumers (pattern detection, the adaptation engine) read bounded
// snapshots through it; interactive callers should use Query.
func (b *Bus) Window(ctx context.Context, f Filter) ([]OrbEvent, error) {
	f.Limit = 0
	events, err := b.store.Query(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("querying event window: %w", err)
	}
	return events, nil
}

// Stats computes aggregate statistics over all events matching the filter.
// The filter's Limit is ignored; statistics always cover the full match set.
func (b *Bus) Stats(ctx context.Context, f Filter) (*Stats, error) {
	f.Limit = 0
	events, err := b.store.Query(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("querying events for stats: %w", err)
	}
	return ComputeStats(events), nil
}

// ComputeStats aggregates a window of events into Stats.
func ComputeStats(events []OrbEvent) *Stats {
	s := &Stats{
		TotalEvents: len(events),
		ByRole:      make(map[Role]int),
		ByType:      make(map[EventType]int),
		ByDay:       make(map[string]int),
	}

	byMode := make(map[string]int)
	failures := 0
	for i := range events {
		e := &events[i]
		s.ByRole[e.Role]++
		s.ByType[e.Type]++
		s.ByDay[e.Timestamp.UTC().Format("2006-01-02")]++
		if e.Mode != "" {
			byMode[e.Mode]++
		}
		if e.Type == TypeActionFailed {
			failures++
		}
	}

	s.MostUsedModes = make([]ModeCount, 0, len(byMode))
	for mode, count := range byMode {
		s.MostUsedModes = append(s.MostUsedModes, ModeCount{Mode: mode, Count: count})
	}
	sort.Slice(s.MostUsedModes, func(i, j int) bool {
		if s.MostUsedModes[i].Count != s.MostUsedModes[j].Count {
			return s.MostUsedModes[i].Count > s.MostUsedModes[j].Count
		}
		return s.MostUsedModes[i].Mode < s.MostUsedModes[j].Mode
	})

	if s.TotalEvents > 0 {
		s.ErrorRate = float64(failures) / float64(s.TotalEvents)
	}
	return s
}

// validate checks the required fields of an event.
func validate(e *OrbEvent) error {
	if e == nil {
		return fmt.Errorf("%w: event is nil", ErrValidation)
	}
	if e.ID == "" {
		return fmt.Errorf("%w: id is required", ErrValidation)
	}
	if e.Type == "" {
		return fmt.Errorf("%w: type is required", ErrValidation)
	}
	if !e.Type.Valid() {
		return fmt.Errorf("%w: unknown type %q", ErrValidation, e.Type)
	}
	return nil
}
