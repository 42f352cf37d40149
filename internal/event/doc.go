// Package event defines the behavioral event model and the Bus, the single
// ingestion point for events emitted by the cooperating roles (execution,
// policy, reflection, inference).
//
// # Overview
//
// Events are immutable, append-only records. The Bus validates and timestamps
// incoming events, appends them durably to a Store, and serves filtered reads
// and aggregate statistics to downstream consumers (pattern detection, the
// adaptation engine, dashboards).
//
// # Usage
//
// Construct a Bus with an explicit Store:
//
//	store := eventstore.NewMemoryStore()
//	bus := event.NewBus(store, logger)
//
//	err := bus.Emit(ctx, &event.OrbEvent{
//	    ID:   uuid.New().String(),
//	    Type: event.TypeActionCompleted,
//	    Role: event.RoleExecution,
//	    Payload: map[string]any{"action": "git-commit"},
//	})
//
// Emit blocks until the append is durable. Independent emitters may call
// Emit concurrently; ordering across events is by the caller-supplied
// timestamp only.
package event
