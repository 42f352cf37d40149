package eventstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/fyrsmithlabs/orbd/internal/event"
)

// Common errors for event store backends.
var (
	// ErrDuplicateID indicates an append with an id already in the log.
	ErrDuplicateID = errors.New("duplicate event id")

	// ErrStoreClosed indicates use after Close.
	ErrStoreClosed = errors.New("event store is closed")
)

// MemoryStore is an in-memory append-only event log.
// It provides no durability and is intended for tests and ephemeral use.
type MemoryStore struct {
	mu     sync.RWMutex
	events []event.OrbEvent
	byID   map[string]struct{}
	closed bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID: make(map[string]struct{}),
	}
}

// Append implements event.Store.
func (s *MemoryStore) Append(ctx context.Context, e *event.OrbEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("%w: %v", event.ErrStorage, ErrStoreClosed)
	}
	if _, exists := s.byID[e.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateID, e.ID)
	}

	s.events = append(s.events, *e.Clone())
	s.byID[e.ID] = struct{}{}
	return nil
}

// Query implements event.Store.
func (s *MemoryStore) Query(ctx context.Context, f event.Filter) ([]event.OrbEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("%w: %v", event.ErrStorage, ErrStoreClosed)
	}

	matched := make([]event.OrbEvent, 0)
	for i := range s.events {
		if f.Matches(&s.events[i]) {
			matched = append(matched, *s.events[i].Clone())
		}
	}
	sortNewestFirst(matched)
	if f.Limit > 0 && len(matched) > f.Limit {
		matched = matched[:f.Limit]
	}
	return matched, nil
}

// Close implements event.Store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// sortNewestFirst orders events by timestamp descending, id ascending on
// ties, so all backends present identical ordering.
func sortNewestFirst(events []event.OrbEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].Timestamp.Equal(events[j].Timestamp) {
			return events[i].Timestamp.After(events[j].Timestamp)
		}
		return events[i].ID < events[j].ID
	})
}

var _ event.Store = (*MemoryStore)(nil)
