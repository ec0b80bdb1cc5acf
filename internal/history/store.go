// Package history keeps one row per program per automation cycle in a
// local SQLite database.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/gridops/meterbot/internal/model"
)

// Run is one recorded program outcome.
type Run struct {
	ID         string
	CycleID    string
	Program    model.ProgramID
	Launched   bool
	Success    bool
	Detail     string
	StartedAt  time.Time
	FinishedAt time.Time
}

type Store struct {
	db *sql.DB
}

// NewCycleID returns a fresh identifier for one automation cycle.
func NewCycleID() string {
	return uuid.NewString()
}

// Open opens or creates the database at path and migrates it.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close() //nolint:errcheck
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if err := applyMigrations(ctx, db); err != nil {
		db.Close() //nolint:errcheck
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record stores the outcomes of one cycle atomically.
func (s *Store) Record(ctx context.Context, cycleID string, outcomes []model.Outcome) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin record: %w", err)
	}
	for _, o := range outcomes {
		_, err := tx.ExecContext(ctx, `
INSERT INTO runs(run_id, cycle_id, program, launched, success, detail, started_at, finished_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			uuid.NewString(), cycleID, string(o.Program), boolInt(o.Launched), boolInt(o.Success),
			o.Detail, ts(o.StartedAt), ts(o.FinishedAt))
		if err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("insert run %s: %w", o.Program, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit record: %w", err)
	}
	return nil
}

// Recent returns up to limit runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT run_id, cycle_id, program, launched, success, detail, started_at, finished_at
FROM runs
ORDER BY started_at DESC, rowid DESC
LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []Run
	for rows.Next() {
		var (
			r                 Run
			program           string
			launched, success int
			started, finished string
		)
		if err := rows.Scan(&r.ID, &r.CycleID, &program, &launched, &success, &r.Detail, &started, &finished); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Program = model.ProgramID(program)
		r.Launched = launched != 0
		r.Success = success != 0
		if r.StartedAt, err = parseTS(started); err != nil {
			return nil, fmt.Errorf("run %s started_at: %w", r.ID, err)
		}
		if r.FinishedAt, err = parseTS(finished); err != nil {
			return nil, fmt.Errorf("run %s finished_at: %w", r.ID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTS(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
