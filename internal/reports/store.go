// SPDX-License-Identifier: MIT

// Package reports persists moderation decisions and aggregates them for the
// reporting API. Storage is SQLite in WAL mode.
package reports

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // pure Go driver
)

// Outcome is the final disposition of a moderation decision.
type Outcome string

const (
	OutcomeAllowed Outcome = "allowed"
	OutcomeBlocked Outcome = "blocked"
	OutcomeError   Outcome = "error"
)

// Stage names the pipeline stage that decided.
type Stage string

const (
	StagePrimary      Stage = "primary"
	StageSecondary    Stage = "secondary"
	StageAdjudication Stage = "adjudication"
	StageBlocklist    Stage = "blocklist"
)

// Decision is one moderation audit row. Excerpt is a short prefix of the
// content; the full content is never persisted.
type Decision struct {
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"createdAt"`
	ContentHash string    `json:"contentHash"`
	Excerpt     string    `json:"excerpt"`
	Outcome     Outcome   `json:"outcome"`
	Stage       Stage     `json:"stage"`
	Category    string    `json:"category,omitempty"`
	Severity    int       `json:"severity"`
	DurationMS  int64     `json:"durationMs"`
}

const schema = `
CREATE TABLE IF NOT EXISTS decisions (
	id            TEXT PRIMARY KEY,
	created_at    TIMESTAMP NOT NULL,
	content_hash  TEXT NOT NULL,
	excerpt       TEXT NOT NULL,
	outcome       TEXT NOT NULL,
	stage         TEXT NOT NULL,
	category      TEXT NOT NULL DEFAULT '',
	severity      INTEGER NOT NULL DEFAULT 0,
	duration_ms   INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_decisions_created_at ON decisions(created_at);
CREATE INDEX IF NOT EXISTS idx_decisions_outcome ON decisions(outcome);
`

// Store is the SQLite-backed decision log.
type Store struct {
	db *sql.DB
}

// Open initialises the store at dbPath, enforcing WAL mode and busy_timeout
// through DSN pragmas so they apply to every pooled connection.
func Open(dbPath string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)",
		dbPath, (5 * time.Second).Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("reports: open failed: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(1 * time.Hour)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("reports: ping failed: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("reports: create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Insert appends one decision row.
func (s *Store) Insert(ctx context.Context, d Decision) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO decisions (id, created_at, content_hash, excerpt, outcome, stage, category, severity, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.CreatedAt.UTC(), d.ContentHash, d.Excerpt, string(d.Outcome), string(d.Stage), d.Category, d.Severity, d.DurationMS,
	)
	if err != nil {
		return fmt.Errorf("reports: insert decision: %w", err)
	}
	return nil
}

// Recent returns the newest decisions, paginated.
func (s *Store) Recent(ctx context.Context, limit, offset int) ([]Decision, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, content_hash, excerpt, outcome, stage, category, severity, duration_ms
		 FROM decisions ORDER BY created_at DESC, id LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("reports: query recent: %w", err)
	}
	defer rows.Close()

	var out []Decision
	for rows.Next() {
		var d Decision
		var outcome, stage string
		if err := rows.Scan(&d.ID, &d.CreatedAt, &d.ContentHash, &d.Excerpt, &outcome, &stage, &d.Category, &d.Severity, &d.DurationMS); err != nil {
			return nil, fmt.Errorf("reports: scan decision: %w", err)
		}
		d.Outcome = Outcome(outcome)
		d.Stage = Stage(stage)
		out = append(out, d)
	}
	return out, rows.Err()
}

// Summary aggregates decisions recorded at or after since.
type Summary struct {
	Since         time.Time        `json:"since"`
	Total         int64            `json:"total"`
	ByOutcome     map[string]int64 `json:"byOutcome"`
	ByCategory    map[string]int64 `json:"byCategory"`
	ByStage       map[string]int64 `json:"byStage"`
	AvgDurationMS float64          `json:"avgDurationMs"`
}

// Summarize computes aggregate counts for the reporting endpoint.
func (s *Store) Summarize(ctx context.Context, since time.Time) (Summary, error) {
	sum := Summary{
		Since:      since,
		ByOutcome:  make(map[string]int64),
		ByCategory: make(map[string]int64),
		ByStage:    make(map[string]int64),
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(AVG(duration_ms), 0) FROM decisions WHERE created_at >= ?`, since.UTC())
	if err := row.Scan(&sum.Total, &sum.AvgDurationMS); err != nil {
		return sum, fmt.Errorf("reports: summarize totals: %w", err)
	}

	if err := s.countBy(ctx, "outcome", since, sum.ByOutcome); err != nil {
		return sum, err
	}
	if err := s.countBy(ctx, "category", since, sum.ByCategory); err != nil {
		return sum, err
	}
	if err := s.countBy(ctx, "stage", since, sum.ByStage); err != nil {
		return sum, err
	}
	return sum, nil
}

// countBy groups decisions by a fixed column name. column is always one of
// the literals passed above, never user input.
func (s *Store) countBy(ctx context.Context, column string, since time.Time, into map[string]int64) error {
	q := fmt.Sprintf(`SELECT %s, COUNT(*) FROM decisions WHERE created_at >= ? AND %s != '' GROUP BY %s`, column, column, column)
	rows, err := s.db.QueryContext(ctx, q, since.UTC())
	if err != nil {
		return fmt.Errorf("reports: group by %s: %w", column, err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var n int64
		if err := rows.Scan(&key, &n); err != nil {
			return fmt.Errorf("reports: scan %s count: %w", column, err)
		}
		into[key] = n
	}
	return rows.Err()
}

// Verify checks the database for structural corruption via PRAGMA quick_check.
func (s *Store) Verify(ctx context.Context) error {
	var res string
	if err := s.db.QueryRowContext(ctx, "PRAGMA quick_check;").Scan(&res); err != nil {
		return fmt.Errorf("reports: integrity pragma failed: %w", err)
	}
	if res != "ok" {
		return fmt.Errorf("reports: integrity check failed: %s", res)
	}
	return nil
}
