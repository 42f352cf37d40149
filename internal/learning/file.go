package learning

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fyrsmithlabs/orbd/internal/insight"
	"github.com/fyrsmithlabs/orbd/internal/pattern"
)

// journalEntry is one line of the learning journal. Upserts append a new
// entry for the same id; replay keeps the last one.
type journalEntry struct {
	Kind   string          `json:"kind"`
	Record json.RawMessage `json:"record"`
}

const (
	kindPattern = "pattern"
	kindInsight = "insight"
	kindAction  = "action"
)

// FileStore is a durable learning store backed by a JSONL journal.
// Records are replayed into an in-memory index on open; each save appends
// an entry and fsyncs.
type FileStore struct {
	mu   sync.Mutex
	path string
	file *os.File
	mem  *MemoryStore
}

// NewFileStore opens (or creates) the journal at path and replays it.
func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("%w: creating journal directory: %v", ErrStorage, err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("%w: opening journal: %v", ErrStorage, err)
	}

	s := &FileStore{
		path: path,
		file: f,
		mem:  NewMemoryStore(),
	}
	if err := s.replay(); err != nil {
		f.Close()
		return nil, err
	}
	return s, nil
}

// replay loads the journal into the in-memory index. Unparseable lines
// (for example a torn final line after a crash) are skipped.
func (s *FileStore) replay() error {
	if _, err := s.file.Seek(0, 0); err != nil {
		return fmt.Errorf("%w: seeking journal: %v", ErrStorage, err)
	}

	ctx := context.Background()
	scanner := bufio.NewScanner(s.file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry journalEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			continue
		}
		switch entry.Kind {
		case kindPattern:
			var p pattern.Pattern
			if json.Unmarshal(entry.Record, &p) == nil {
				_ = s.mem.SavePattern(ctx, &p)
			}
		case kindInsight:
			var ins insight.Insight
			if json.Unmarshal(entry.Record, &ins) == nil {
				_ = s.mem.SaveInsight(ctx, &ins)
			}
		case kindAction:
			var a Action
			if json.Unmarshal(entry.Record, &a) == nil {
				_ = s.mem.SaveAction(ctx, &a)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("%w: reading journal: %v", ErrStorage, err)
	}
	return nil
}

// appendEntry writes one journal line durably.
func (s *FileStore) appendEntry(kind string, record any) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("%w: marshaling %s record: %v", ErrStorage, kind, err)
	}
	line, err := json.Marshal(journalEntry{Kind: kind, Record: raw})
	if err != nil {
		return fmt.Errorf("%w: marshaling journal entry: %v", ErrStorage, err)
	}
	if _, err := s.file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("%w: writing journal: %v", ErrStorage, err)
	}
	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("%w: syncing journal: %v", ErrStorage, err)
	}
	return nil
}

// SavePattern implements Store.
func (s *FileStore) SavePattern(ctx context.Context, p *pattern.Pattern) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.appendEntry(kindPattern, p); err != nil {
		return err
	}
	return s.mem.SavePattern(ctx, p)
}

// GetPattern implements Store.
func (s *FileStore) GetPattern(ctx context.Context, id string) (*pattern.Pattern, error) {
	return s.mem.GetPattern(ctx, id)
}

// GetPatterns implements Store.
func (s *FileStore) GetPatterns(ctx context.Context, f PatternFilter) ([]pattern.Pattern, error) {
	return s.mem.GetPatterns(ctx, f)
}

// SaveInsight implements Store.
func (s *FileStore) SaveInsight(ctx context.Context, ins *insight.Insight) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.appendEntry(kindInsight, ins); err != nil {
		return err
	}
	return s.mem.SaveInsight(ctx, ins)
}

// GetInsight implements Store.
func (s *FileStore) GetInsight(ctx context.Context, id string) (*insight.Insight, error) {
	return s.mem.GetInsight(ctx, id)
}

// GetInsights implements Store.
func (s *FileStore) GetInsights(ctx context.Context, f InsightFilter) ([]insight.Insight, error) {
	return s.mem.GetInsights(ctx, f)
}

// SaveAction implements Store.
func (s *FileStore) SaveAction(ctx context.Context, a *Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.appendEntry(kindAction, a); err != nil {
		return err
	}
	return s.mem.SaveAction(ctx, a)
}

// GetAction implements Store.
func (s *FileStore) GetAction(ctx context.Context, id string) (*Action, error) {
	return s.mem.GetAction(ctx, id)
}

// GetActions implements Store.
func (s *FileStore) GetActions(ctx context.Context, f ActionFilter) ([]Action, error) {
	return s.mem.GetActions(ctx, f)
}

// Close implements Store.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mem.Close(); err != nil {
		return err
	}
	return s.file.Close()
}

var _ Store = (*FileStore)(nil)
