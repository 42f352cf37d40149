package learning

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/fyrsmithlabs/orbd/internal/insight"
	"github.com/fyrsmithlabs/orbd/internal/pattern"
)

// sqliteTimeFormat pins nine fractional digits so lexical order of the
// indexed time columns matches chronological order for sub-second times.
const sqliteTimeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore persists learning records to SQLite.
//
// Each record kind gets a table with indexed filter columns plus the full
// record as JSON; upserts use ON CONFLICT DO UPDATE so saves are
// idempotent by id.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path. Use ":memory:"
// for testing.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open database: %v", ErrStorage, err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: enable WAL mode: %v", ErrStorage, err)
	}

	schema := []string{
		`CREATE TABLE IF NOT EXISTS patterns (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			status TEXT NOT NULL,
			confidence REAL NOT NULL,
			detected_at TEXT NOT NULL,
			record TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS insights (
			id TEXT PRIMARY KEY,
			pattern_id TEXT NOT NULL,
			confidence REAL NOT NULL,
			generated_at TEXT NOT NULL,
			record TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS actions (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			status TEXT NOT NULL,
			insight_id TEXT NOT NULL,
			confidence REAL NOT NULL,
			created_at TEXT NOT NULL,
			record TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_patterns_detected_at ON patterns(detected_at)`,
		`CREATE INDEX IF NOT EXISTS idx_insights_generated_at ON insights(generated_at)`,
		`CREATE INDEX IF NOT EXISTS idx_actions_created_at ON actions(created_at)`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("%w: create schema: %v", ErrStorage, err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// SavePattern implements Store.
func (s *SQLiteStore) SavePattern(ctx context.Context, p *pattern.Pattern) error {
	record, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("%w: marshaling pattern %s: %v", ErrStorage, p.ID, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO patterns (id, type, status, confidence, detected_at, record)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			type = excluded.type,
			status = excluded.status,
			confidence = excluded.confidence,
			detected_at = excluded.detected_at,
			record = excluded.record
	`, p.ID, string(p.Type), string(p.Status), p.Confidence,
		p.DetectedAt.UTC().Format(sqliteTimeFormat), string(record))
	if err != nil {
		return fmt.Errorf("%w: upsert pattern: %v", ErrStorage, err)
	}
	return nil
}

// GetPattern implements Store.
func (s *SQLiteStore) GetPattern(ctx context.Context, id string) (*pattern.Pattern, error) {
	var record string
	err := s.db.QueryRowContext(ctx, `SELECT record FROM patterns WHERE id = ?`, id).Scan(&record)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: pattern %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load pattern: %v", ErrStorage, err)
	}
	var p pattern.Pattern
	if err := json.Unmarshal([]byte(record), &p); err != nil {
		return nil, fmt.Errorf("%w: parse pattern record: %v", ErrStorage, err)
	}
	return &p, nil
}

// GetPatterns implements Store.
func (s *SQLiteStore) GetPatterns(ctx context.Context, f PatternFilter) ([]pattern.Pattern, error) {
	var (
		where []string
		args  []any
	)
	if len(f.Types) > 0 {
		where = append(where, inClause("type", len(f.Types)))
		for _, t := range f.Types {
			args = append(args, string(t))
		}
	}
	if len(f.Statuses) > 0 {
		where = append(where, inClause("status", len(f.Statuses)))
		for _, st := range f.Statuses {
			args = append(args, string(st))
		}
	}
	if !f.Since.IsZero() {
		where = append(where, "detected_at >= ?")
		args = append(args, f.Since.UTC().Format(sqliteTimeFormat))
	}
	if !f.Until.IsZero() {
		where = append(where, "detected_at <= ?")
		args = append(args, f.Until.UTC().Format(sqliteTimeFormat))
	}
	if f.MinConfidence > 0 {
		where = append(where, "confidence >= ?")
		args = append(args, f.MinConfidence)
	}

	rows, err := s.queryRecords(ctx, "patterns", "detected_at", where, args, f.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	patterns := make([]pattern.Pattern, 0)
	for rows.Next() {
		var record string
		if err := rows.Scan(&record); err != nil {
			return nil, fmt.Errorf("%w: scan pattern row: %v", ErrStorage, err)
		}
		var p pattern.Pattern
		if err := json.Unmarshal([]byte(record), &p); err != nil {
			return nil, fmt.Errorf("%w: parse pattern record: %v", ErrStorage, err)
		}
		patterns = append(patterns, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate pattern rows: %v", ErrStorage, err)
	}
	return patterns, nil
}

// SaveInsight implements Store.
func (s *SQLiteStore) SaveInsight(ctx context.Context, ins *insight.Insight) error {
	record, err := json.Marshal(ins)
	if err != nil {
		return fmt.Errorf("%w: marshaling insight %s: %v", ErrStorage, ins.ID, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO insights (id, pattern_id, confidence, generated_at, record)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			pattern_id = excluded.pattern_id,
			confidence = excluded.confidence,
			generated_at = excluded.generated_at,
			record = excluded.record
	`, ins.ID, ins.PatternID, ins.Confidence,
		ins.GeneratedAt.UTC().Format(sqliteTimeFormat), string(record))
	if err != nil {
		return fmt.Errorf("%w: upsert insight: %v", ErrStorage, err)
	}
	return nil
}

// GetInsight implements Store.
func (s *SQLiteStore) GetInsight(ctx context.Context, id string) (*insight.Insight, error) {
	var record string
	err := s.db.QueryRowContext(ctx, `SELECT record FROM insights WHERE id = ?`, id).Scan(&record)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: insight %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load insight: %v", ErrStorage, err)
	}
	var ins insight.Insight
	if err := json.Unmarshal([]byte(record), &ins); err != nil {
		return nil, fmt.Errorf("%w: parse insight record: %v", ErrStorage, err)
	}
	return &ins, nil
}

// GetInsights implements Store.
func (s *SQLiteStore) GetInsights(ctx context.Context, f InsightFilter) ([]insight.Insight, error) {
	var (
		where []string
		args  []any
	)
	if f.PatternID != "" {
		where = append(where, "pattern_id = ?")
		args = append(args, f.PatternID)
	}
	if !f.Since.IsZero() {
		where = append(where, "generated_at >= ?")
		args = append(args, f.Since.UTC().Format(sqliteTimeFormat))
	}
	if !f.Until.IsZero() {
		where = append(where, "generated_at <= ?")
		args = append(args, f.Until.UTC().Format(sqliteTimeFormat))
	}
	if f.MinConfidence > 0 {
		where = append(where, "confidence >= ?")
		args = append(args, f.MinConfidence)
	}

	rows, err := s.queryRecords(ctx, "insights", "generated_at", where, args, f.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	insights := make([]insight.Insight, 0)
	for rows.Next() {
		var record string
		if err := rows.Scan(&record); err != nil {
			return nil, fmt.Errorf("%w: scan insight row: %v", ErrStorage, err)
		}
		var ins insight.Insight
		if err := json.Unmarshal([]byte(record), &ins); err != nil {
			return nil, fmt.Errorf("%w: parse insight record: %v", ErrStorage, err)
		}
		insights = append(insights, ins)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate insight rows: %v", ErrStorage, err)
	}
	return insights, nil
}

// SaveAction implements Store.
func (s *SQLiteStore) SaveAction(ctx context.Context, a *Action) error {
	record, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("%w: marshaling action %s: %v", ErrStorage, a.ID, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO actions (id, type, status, insight_id, confidence, created_at, record)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			type = excluded.type,
			status = excluded.status,
			insight_id = excluded.insight_id,
			confidence = excluded.confidence,
			created_at = excluded.created_at,
			record = excluded.record
	`, a.ID, string(a.Type), string(a.Status), a.InsightID, a.Confidence,
		a.CreatedAt.UTC().Format(sqliteTimeFormat), string(record))
	if err != nil {
		return fmt.Errorf("%w: upsert action: %v", ErrStorage, err)
	}
	return nil
}

// GetAction implements Store.
func (s *SQLiteStore) GetAction(ctx context.Context, id string) (*Action, error) {
	var record string
	err := s.db.QueryRowContext(ctx, `SELECT record FROM actions WHERE id = ?`, id).Scan(&record)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: action %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load action: %v", ErrStorage, err)
	}
	var a Action
	if err := json.Unmarshal([]byte(record), &a); err != nil {
		return nil, fmt.Errorf("%w: parse action record: %v", ErrStorage, err)
	}
	return &a, nil
}

// GetActions implements Store.
func (s *SQLiteStore) GetActions(ctx context.Context, f ActionFilter) ([]Action, error) {
	var (
		where []string
		args  []any
	)
	if len(f.Types) > 0 {
		where = append(where, inClause("type", len(f.Types)))
		for _, t := range f.Types {
			args = append(args, string(t))
		}
	}
	if len(f.Statuses) > 0 {
		where = append(where, inClause("status", len(f.Statuses)))
		for _, st := range f.Statuses {
			args = append(args, string(st))
		}
	}
	if f.InsightID != "" {
		where = append(where, "insight_id = ?")
		args = append(args, f.InsightID)
	}
	if !f.Since.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, f.Since.UTC().Format(sqliteTimeFormat))
	}
	if !f.Until.IsZero() {
		where = append(where, "created_at <= ?")
		args = append(args, f.Until.UTC().Format(sqliteTimeFormat))
	}
	if f.MinConfidence > 0 {
		where = append(where, "confidence >= ?")
		args = append(args, f.MinConfidence)
	}

	rows, err := s.queryRecords(ctx, "actions", "created_at", where, args, f.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	actions := make([]Action, 0)
	for rows.Next() {
		var record string
		if err := rows.Scan(&record); err != nil {
			return nil, fmt.Errorf("%w: scan action row: %v", ErrStorage, err)
		}
		var a Action
		if err := json.Unmarshal([]byte(record), &a); err != nil {
			return nil, fmt.Errorf("%w: parse action record: %v", ErrStorage, err)
		}
		actions = append(actions, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate action rows: %v", ErrStorage, err)
	}
	return actions, nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) queryRecords(ctx context.Context, table, timeColumn string, where []string, args []any, limit int) (*sql.Rows, error) {
	query := "SELECT record FROM " + table
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY " + timeColumn + " DESC, id ASC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query %s: %v", ErrStorage, table, err)
	}
	return rows, nil
}

func inClause(column string, n int) string {
	return column + " IN (" + strings.TrimSuffix(strings.Repeat("?, ", n), ", ") + ")"
}

var _ Store = (*SQLiteStore)(nil)
