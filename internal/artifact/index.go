package artifact

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// timeLayout is fixed-width so text order equals time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Run is one row of the run index.
type Run struct {
	ID         string     `json:"id"`
	Workflow   string     `json:"workflow"`
	Query      string     `json:"query"`
	Status     string     `json:"status"`
	RunDir     string     `json:"run_dir,omitempty"`
	Error      string     `json:"error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Index records runs in SQLite. Safe for concurrent use.
type Index struct {
	db  *sql.DB
	now func() time.Time
}

// OpenIndex opens (creating if needed) the index database at path.
func OpenIndex(path string) (*Index, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create index dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One writer at a time; SQLite serializes anyway.
	db.SetMaxOpenConns(1)

	idx := &Index{db: db, now: time.Now}
	if err := idx.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return idx, nil
}

// Close closes the database.
func (i *Index) Close() error {
	return i.db.Close()
}

func (i *Index) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		workflow TEXT NOT NULL,
		query TEXT NOT NULL,
		status TEXT NOT NULL,
		run_dir TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		finished_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
	CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
	`
	if _, err := i.db.Exec(schema); err != nil {
		return fmt.Errorf("migrate run index: %w", err)
	}
	return nil
}

// Start records a run as running.
func (i *Index) Start(ctx context.Context, runID, workflow, query string) error {
	_, err := i.db.ExecContext(ctx,
		`INSERT INTO runs (id, workflow, query, status, created_at) VALUES (?, ?, ?, 'running', ?)`,
		runID, workflow, query, i.now().UTC().Format(timeLayout),
	)
	return err
}

// Finish records the final status of a run.
func (i *Index) Finish(ctx context.Context, runID, status, runDir, errText string) error {
	res, err := i.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, run_dir = ?, error = ?, finished_at = ? WHERE id = ?`,
		status, runDir, errText, i.now().UTC().Format(timeLayout), runID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s not in index", runID)
	}
	return nil
}

// ErrRunNotFound is returned by Get for unknown run ids.
var ErrRunNotFound = errors.New("run not found")

// Get returns one run.
func (i *Index) Get(ctx context.Context, runID string) (*Run, error) {
	row := i.db.QueryRowContext(ctx,
		`SELECT id, workflow, query, status, run_dir, error, created_at, finished_at FROM runs WHERE id = ?`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", runID, ErrRunNotFound)
	}
	return run, err
}

// List returns the most recent runs, newest first.
func (i *Index) List(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := i.db.QueryContext(ctx,
		`SELECT id, workflow, query, status, run_dir, error, created_at, finished_at
		 FROM runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var (
		run      Run
		created  string
		finished sql.NullString
	)
	if err := s.Scan(&run.ID, &run.Workflow, &run.Query, &run.Status, &run.RunDir, &run.Error, &created, &finished); err != nil {
		return nil, err
	}
	t, err := time.Parse(timeLayout, created)
	if err != nil {
		return nil, fmt.Errorf("run %s: bad created_at: %w", run.ID, err)
	}
	run.CreatedAt = t
	if finished.Valid {
		if ft, err := time.Parse(timeLayout, finished.String); err == nil {
			run.FinishedAt = &ft
		}
	}
	return &run, nil
}
