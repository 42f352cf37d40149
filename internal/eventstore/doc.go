// Package eventstore provides append-and-query backends for behavioral
// events.
//
// Three interchangeable implementations satisfy event.Store with identical
// filter semantics:
//
//   - MemoryStore: mutex-guarded slice, no durability. Testing and
//     ephemeral deployments.
//   - FileStore: append-only JSONL journal, fsync per append, replayed into
//     memory on open. Single-process durable default.
//   - SQLiteStore: relational backend via modernc.org/sqlite (pure Go, WAL
//     mode).
//
// NewStore selects a backend from configuration.
package eventstore
