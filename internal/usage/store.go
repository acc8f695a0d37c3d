package usage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Summary holds aggregated invocation totals.
type Summary struct {
	TotalInvocations int
	TotalErrors      int
	TotalDuration    time.Duration
}

// Store is an append-only SQLite store for tool invocation records.
// All public methods are safe for concurrent use (SQLite serializes
// writes).
type Store struct {
	db *sql.DB
}

// NewStore creates an invocation store at the given database path. The
// schema is created automatically on first use.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open usage database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate usage schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tool_invocations (
		id          TEXT PRIMARY KEY,
		timestamp   TEXT NOT NULL,
		request_id  TEXT NOT NULL,
		step        INTEGER NOT NULL,
		tool        TEXT NOT NULL,
		input       TEXT,
		output      TEXT,
		error       TEXT,
		duration_ms INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_invocations_timestamp ON tool_invocations(timestamp);
	CREATE INDEX IF NOT EXISTS idx_invocations_request ON tool_invocations(request_id);
	CREATE INDEX IF NOT EXISTS idx_invocations_tool ON tool_invocations(tool);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Persist writes all tracker records for a completed run. Each row gets
// a fresh UUIDv7 so rows sort chronologically by primary key.
func (s *Store) Persist(ctx context.Context, requestID string, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin usage tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO tool_invocations
			(id, timestamp, request_id, step, tool, input, output, error, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare usage insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("generate invocation ID: %w", err)
		}
		ts := rec.Started
		if ts.IsZero() {
			ts = time.Now()
		}
		_, err = stmt.ExecContext(ctx,
			id.String(),
			ts.UTC().Format(time.RFC3339),
			requestID,
			rec.Step,
			rec.Tool,
			rec.Input,
			rec.Output,
			rec.Error,
			rec.Duration.Milliseconds(),
		)
		if err != nil {
			return fmt.Errorf("insert invocation record: %w", err)
		}
	}

	return tx.Commit()
}

// Summarize returns aggregated totals for invocations within [start, end).
func (s *Store) Summarize(start, end time.Time) (*Summary, error) {
	row := s.db.QueryRow(
		`SELECT COUNT(*),
		        COALESCE(SUM(CASE WHEN error != '' THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(duration_ms), 0)
		 FROM tool_invocations
		 WHERE timestamp >= ? AND timestamp < ?`,
		start.UTC().Format(time.RFC3339),
		end.UTC().Format(time.RFC3339),
	)

	var sum Summary
	var durMS int64
	if err := row.Scan(&sum.TotalInvocations, &sum.TotalErrors, &durMS); err != nil {
		return nil, fmt.Errorf("query usage summary: %w", err)
	}
	sum.TotalDuration = time.Duration(durMS) * time.Millisecond
	return &sum, nil
}

// SummarizeByTool returns per-tool aggregated totals for invocations
// within [start, end).
func (s *Store) SummarizeByTool(start, end time.Time) (map[string]*Summary, error) {
	rows, err := s.db.Query(
		`SELECT tool, COUNT(*),
		        COALESCE(SUM(CASE WHEN error != '' THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(duration_ms), 0)
		 FROM tool_invocations
		 WHERE timestamp >= ? AND timestamp < ?
		 GROUP BY tool
		 ORDER BY COUNT(*) DESC`,
		start.UTC().Format(time.RFC3339),
		end.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("query usage by tool: %w", err)
	}
	defer rows.Close()

	result := make(map[string]*Summary)
	for rows.Next() {
		var tool string
		var sum Summary
		var durMS int64
		if err := rows.Scan(&tool, &sum.TotalInvocations, &sum.TotalErrors, &durMS); err != nil {
			return nil, fmt.Errorf("scan usage by tool: %w", err)
		}
		sum.TotalDuration = time.Duration(durMS) * time.Millisecond
		result[tool] = &sum
	}
	return result, rows.Err()
}
