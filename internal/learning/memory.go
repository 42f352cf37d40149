package learning

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/fyrsmithlabs/orbd/internal/insight"
	"github.com/fyrsmithlabs/orbd/internal/pattern"
)

// MemoryStore is an in-memory learning store for tests and ephemeral use.
type MemoryStore struct {
	mu       sync.RWMutex
	patterns map[string]pattern.Pattern
	insights map[string]insight.Insight
	actions  map[string]Action
	closed   bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		patterns: make(map[string]pattern.Pattern),
		insights: make(map[string]insight.Insight),
		actions:  make(map[string]Action),
	}
}

// SavePattern implements Store.
func (s *MemoryStore) SavePattern(ctx context.Context, p *pattern.Pattern) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("%w: store is closed", ErrStorage)
	}
	s.patterns[p.ID] = *p
	return nil
}

// GetPattern implements Store.
func (s *MemoryStore) GetPattern(ctx context.Context, id string) (*pattern.Pattern, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("%w: store is closed", ErrStorage)
	}
	p, ok := s.patterns[id]
	if !ok {
		return nil, fmt.Errorf("%w: pattern %s", ErrNotFound, id)
	}
	return &p, nil
}

// GetPatterns implements Store.
func (s *MemoryStore) GetPatterns(ctx context.Context, f PatternFilter) ([]pattern.Pattern, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("%w: store is closed", ErrStorage)
	}

	matched := make([]pattern.Pattern, 0)
	for id := range s.patterns {
		p := s.patterns[id]
		if f.Matches(&p) {
			matched = append(matched, p)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if !matched[i].DetectedAt.Equal(matched[j].DetectedAt) {
			return matched[i].DetectedAt.After(matched[j].DetectedAt)
		}
		return matched[i].ID < matched[j].ID
	})
	if f.Limit > 0 && len(matched) > f.Limit {
		matched = matched[:f.Limit]
	}
	return matched, nil
}

// SaveInsight implements Store.
func (s *MemoryStore) SaveInsight(ctx context.Context, ins *insight.Insight) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("%w: store is closed", ErrStorage)
	}
	s.insights[ins.ID] = *ins
	return nil
}

// GetInsight implements Store.
func (s *MemoryStore) GetInsight(ctx context.Context, id string) (*insight.Insight, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("%w: store is closed", ErrStorage)
	}
	ins, ok := s.insights[id]
	if !ok {
		return nil, fmt.Errorf("%w: insight %s", ErrNotFound, id)
	}
	return &ins, nil
}

// GetInsights implements Store.
func (s *MemoryStore) GetInsights(ctx context.Context, f InsightFilter) ([]insight.Insight, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("%w: store is closed", ErrStorage)
	}

	matched := make([]insight.Insight, 0)
	for id := range s.insights {
		ins := s.insights[id]
		if f.Matches(&ins) {
			matched = append(matched, ins)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if !matched[i].GeneratedAt.Equal(matched[j].GeneratedAt) {
			return matched[i].GeneratedAt.After(matched[j].GeneratedAt)
		}
		return matched[i].ID < matched[j].ID
	})
	if f.Limit > 0 && len(matched) > f.Limit {
		matched = matched[:f.Limit]
	}
	return matched, nil
}

// SaveAction implements Store.
func (s *MemoryStore) SaveAction(ctx context.Context, a *Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("%w: store is closed", ErrStorage)
	}
	s.actions[a.ID] = *a
	return nil
}

// GetAction implements Store.
func (s *MemoryStore) GetAction(ctx context.Context, id string) (*Action, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("%w: store is closed", ErrStorage)
	}
	a, ok := s.actions[id]
	if !ok {
		return nil, fmt.Errorf("%w: action %s", ErrNotFound, id)
	}
	return &a, nil
}

// GetActions implements Store.
func (s *MemoryStore) GetActions(ctx context.Context, f ActionFilter) ([]Action, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("%w: store is closed", ErrStorage)
	}

	matched := make([]Action, 0)
	for id := range s.actions {
		a := s.actions[id]
		if f.Matches(&a) {
			matched = append(matched, a)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})
	if f.Limit > 0 && len(matched) > f.Limit {
		matched = matched[:f.Limit]
	}
	return matched, nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

var _ Store = (*MemoryStore)(nil)
