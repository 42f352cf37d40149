package eventstore

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fyrsmithlabs/orbd/internal/event"
)

// FileStore is a durable append-only event log backed by a JSONL journal.
//
// Every Append marshals the event as one JSON line and fsyncs before
// returning, satisfying the bus durability contract. The full journal is
// replayed into memory on open; queries are served from the in-memory
// index.
type FileStore struct {
	mu     sync.RWMutex
	path   string
	file   *os.File
	events []event.OrbEvent
	byID   map[string]struct{}
	closed bool
}

// NewFileStore opens (or creates) the journal at path and replays it.
func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("%w: creating journal directory: %v", event.ErrStorage, err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("%w: opening journal: %v", event.ErrStorage, err)
	}

	s := &FileStore{
		path: path,
		file: f,
		byID: make(map[string]struct{}),
	}
	if err := s.replay(); err != nil {
		f.Close()
		return nil, err
	}
	return s, nil
}

// replay loads every journal line into the in-memory index. Lines that do
// not parse are skipped rather than failing the open; a torn final line
// after a crash must not make the whole journal unreadable.
func (s *FileStore) replay() error {
	if _, err := s.file.Seek(0, 0); err != nil {
		return fmt.Errorf("%w: seeking journal: %v", event.ErrStorage, err)
	}

	scanner := bufio.NewScanner(s.file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e event.OrbEvent
		if err := json.Unmarshal(line, &e); err != nil {
			continue
		}
		if _, exists := s.byID[e.ID]; exists {
			continue
		}
		s.events = append(s.events, e)
		s.byID[e.ID] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("%w: reading journal: %v", event.ErrStorage, err)
	}
	return nil
}

// Append implements event.Store.
func (s *FileStore) Append(ctx context.Context, e *event.OrbEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("%w: %v", event.ErrStorage, ErrStoreClosed)
	}
	if _, exists := s.byID[e.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateID, e.ID)
	}

	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("%w: marshaling event %s: %v", event.ErrStorage, e.ID, err)
	}
	if _, err := s.file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("%w: writing journal: %v", event.ErrStorage, err)
	}
	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("%w: syncing journal: %v", event.ErrStorage, err)
	}

	s.events = append(s.events, *e.Clone())
	s.byID[e.ID] = struct{}{}
	return nil
}

// Query implements event.Store.
func (s *FileStore) Query(ctx context.Context, f event.Filter) ([]event.OrbEvent, error) {
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
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.file.Close()
}

var _ event.Store = (*FileStore)(nil)
