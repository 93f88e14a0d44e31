// ABOUTME: SQLite-backed index of completed test runs for querying past results.
// ABOUTME: The index is rebuildable bookkeeping; losing it never affects cache correctness.

package history

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Record is one completed run row.
type Record struct {
	RunID      string
	TestName   string
	FilePath   string
	Identifier string
	Status     string
	StepCount  int
	CacheHits  int
	StartedAt  time.Time
	EndedAt    time.Time
}

// Index stores run records in a SQLite database.
type Index struct {
	db *sql.DB
}

// Open opens or creates the run-history database at path and ensures the
// schema is up to date.
func Open(path string) (*Index, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			test_name TEXT NOT NULL,
			file_path TEXT NOT NULL,
			identifier TEXT NOT NULL,
			status TEXT NOT NULL,
			step_count INTEGER NOT NULL,
			cache_hits INTEGER NOT NULL,
			started_at TEXT NOT NULL,
			ended_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_runs_test_name ON runs(test_name);`

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Index{db: db}, nil
}

// Close closes the database connection.
func (idx *Index) Close() error {
	return idx.db.Close()
}

// Record upserts one run row.
func (idx *Index) Record(rec Record) error {
	_, err := idx.db.Exec(
		`INSERT INTO runs (run_id, test_name, file_path, identifier, status, step_count, cache_hits, started_at, ended_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(run_id) DO UPDATE SET
			status = excluded.status,
			step_count = excluded.step_count,
			cache_hits = excluded.cache_hits,
			ended_at = excluded.ended_at`,
		rec.RunID,
		rec.TestName,
		rec.FilePath,
		rec.Identifier,
		rec.Status,
		rec.StepCount,
		rec.CacheHits,
		rec.StartedAt.UTC().Format(time.RFC3339),
		rec.EndedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upsert run: %w", err)
	}
	return nil
}

// List returns all run records, newest first.
func (idx *Index) List() ([]Record, error) {
	return idx.query("SELECT run_id, test_name, file_path, identifier, status, step_count, cache_hits, started_at, ended_at FROM runs ORDER BY started_at DESC")
}

// ListByTest returns records for one test name, newest first.
func (idx *Index) ListByTest(testName string) ([]Record, error) {
	return idx.query("SELECT run_id, test_name, file_path, identifier, status, step_count, cache_hits, started_at, ended_at FROM runs WHERE test_name = ? ORDER BY started_at DESC", testName)
}

func (idx *Index) query(q string, args ...any) ([]Record, error) {
	rows, err := idx.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []Record
	for rows.Next() {
		var rec Record
		var started, ended string
		if err := rows.Scan(&rec.RunID, &rec.TestName, &rec.FilePath, &rec.Identifier,
			&rec.Status, &rec.StepCount, &rec.CacheHits, &started, &ended); err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		rec.StartedAt, _ = time.Parse(time.RFC3339, started)
		rec.EndedAt, _ = time.Parse(time.RFC3339, ended)
		records = append(records, rec)
	}
	return records, rows.Err()
}
