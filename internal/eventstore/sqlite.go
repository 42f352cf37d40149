package eventstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sqlite "modernc.org/sqlite" // Pure Go SQLite driver
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/fyrsmithlabs/orbd/internal/event"
)

// sqliteTimeFormat pins nine fractional digits so lexical order of stored
// timestamp strings matches chronological order. RFC3339Nano trims trailing
// zeros and would break ORDER BY and range predicates for sub-second times.
const sqliteTimeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore persists events to SQLite. It is suitable for single-process
// production use.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path. Use ":memory:"
// for testing.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open database: %v", event.ErrStorage, err)
	}

	// WAL mode for better concurrent read performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: enable WAL mode: %v", event.ErrStorage, err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			timestamp TEXT NOT NULL,
			user_id TEXT NOT NULL DEFAULT '',
			session_id TEXT NOT NULL DEFAULT '',
			device_id TEXT NOT NULL DEFAULT '',
			mode TEXT NOT NULL DEFAULT '',
			persona TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL DEFAULT '',
			payload TEXT,
			metadata TEXT
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: create events table: %v", event.ErrStorage, err)
	}

	if _, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events(timestamp)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: create timestamp index: %v", event.ErrStorage, err)
	}

	return &SQLiteStore{db: db}, nil
}

// Append implements event.Store. A duplicate id fails without modifying the
// existing row; events are never overwritten.
func (s *SQLiteStore) Append(ctx context.Context, e *event.OrbEvent) error {
	payload, err := marshalMap(e.Payload)
	if err != nil {
		return fmt.Errorf("%w: marshaling payload for %s: %v", event.ErrStorage, e.ID, err)
	}
	metadata, err := marshalMap(e.Metadata)
	if err != nil {
		return fmt.Errorf("%w: marshaling metadata for %s: %v", event.ErrStorage, e.ID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO events (id, type, timestamp, user_id, session_id, device_id, mode, persona, role, payload, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, string(e.Type), e.Timestamp.UTC().Format(sqliteTimeFormat),
		e.UserID, e.SessionID, e.DeviceID, e.Mode, e.Persona, string(e.Role),
		payload, metadata)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateID, e.ID)
		}
		return fmt.Errorf("%w: insert event: %v", event.ErrStorage, err)
	}
	return nil
}

// Query implements event.Store.
func (s *SQLiteStore) Query(ctx context.Context, f event.Filter) ([]event.OrbEvent, error) {
	var (
		where []string
		args  []any
	)
	if f.ID != "" {
		where = append(where, "id = ?")
		args = append(args, f.ID)
	}
	if len(f.Types) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(f.Types)), ", ")
		where = append(where, "type IN ("+placeholders+")")
		for _, t := range f.Types {
			args = append(args, string(t))
		}
	}
	if f.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, f.UserID)
	}
	if f.SessionID != "" {
		where = append(where, "session_id = ?")
		args = append(args, f.SessionID)
	}
	if f.DeviceID != "" {
		where = append(where, "device_id = ?")
		args = append(args, f.DeviceID)
	}
	if f.Mode != "" {
		where = append(where, "mode = ?")
		args = append(args, f.Mode)
	}
	if f.Role != "" {
		where = append(where, "role = ?")
		args = append(args, string(f.Role))
	}
	if !f.Since.IsZero() {
		where = append(where, "timestamp >= ?")
		args = append(args, f.Since.UTC().Format(sqliteTimeFormat))
	}
	if !f.Until.IsZero() {
		where = append(where, "timestamp <= ?")
		args = append(args, f.Until.UTC().Format(sqliteTimeFormat))
	}

	query := "SELECT id, type, timestamp, user_id, session_id, device_id, mode, persona, role, payload, metadata FROM events"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY timestamp DESC, id ASC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query events: %v", event.ErrStorage, err)
	}
	defer rows.Close()

	var events []event.OrbEvent
	for rows.Next() {
		var (
			e                 event.OrbEvent
			typ, role, ts     string
			payload, metadata sql.NullString
		)
		if err := rows.Scan(&e.ID, &typ, &ts, &e.UserID, &e.SessionID, &e.DeviceID,
			&e.Mode, &e.Persona, &role, &payload, &metadata); err != nil {
			return nil, fmt.Errorf("%w: scan event row: %v", event.ErrStorage, err)
		}
		e.Type = event.EventType(typ)
		e.Role = event.Role(role)
		e.Timestamp, err = time.Parse(sqliteTimeFormat, ts)
		if err != nil {
			return nil, fmt.Errorf("%w: parse timestamp for %s: %v", event.ErrStorage, e.ID, err)
		}
		if e.Payload, err = unmarshalMap(payload); err != nil {
			return nil, fmt.Errorf("%w: parse payload for %s: %v", event.ErrStorage, e.ID, err)
		}
		if e.Metadata, err = unmarshalMap(metadata); err != nil {
			return nil, fmt.Errorf("%w: parse metadata for %s: %v", event.ErrStorage, e.ID, err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate event rows: %v", event.ErrStorage, err)
	}
	return events, nil
}

// Close implements event.Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// isUniqueViolation reports whether err carries the driver's unique or
// primary key constraint code.
func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	code := se.Code()
	return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}

func marshalMap(m map[string]any) (any, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func unmarshalMap(s sql.NullString) (map[string]any, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(s.String), &m); err != nil {
		return nil, err
	}
	return m, nil
}

var _ event.Store = (*SQLiteStore)(nil)
