package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver.

	"github.com/dshills/amcorpus/internal/am"
	"github.com/dshills/amcorpus/internal/version"
)

// ErrNoRun is returned by Save before Begin and by Load on an empty database.
var ErrNoRun = errors.New("no corpus run")

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS runs (
    seq        INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id     TEXT NOT NULL UNIQUE,
    started_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS am_versions (
    run_id     TEXT NOT NULL REFERENCES runs(run_id),
    am_id      TEXT NOT NULL,
    name       TEXT NOT NULL,
    applicable INTEGER NOT NULL,
    document   TEXT NOT NULL,
    PRIMARY KEY (run_id, am_id, name)
);
`

// SQLiteSink stores every run in a SQLite database. Runs are kept; Load
// returns the latest one.
type SQLiteSink struct {
	db *sql.DB

	mu    sync.Mutex
	runID string
}

// OpenSQLite opens (or creates) the database at dsn and its schema.
// ":memory:" is accepted.
func OpenSQLite(ctx context.Context, dsn string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}
	// A single connection serializes writers and keeps an in-memory
	// database alive across calls.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: set busy timeout: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create schema: %w", err)
	}
	return &SQLiteSink{db: db}, nil
}

// Close closes the database.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}

// Begin records a new run and makes it the target of Save. When ids is not
// empty, the versions of every other order are copied over from the
// latest run so that Load still sees the whole corpus.
func (s *SQLiteSink) Begin(ctx context.Context, ids []string) (string, error) {
	previous, err := s.LatestRun(ctx)
	if err != nil && !errors.Is(err, ErrNoRun) {
		return "", err
	}
	id := uuid.NewString()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("store: begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, "INSERT INTO runs (run_id) VALUES (?)", id); err != nil {
		return "", fmt.Errorf("store: begin run: %w", err)
	}
	if len(ids) > 0 && previous != "" {
		if err := carryOver(ctx, tx, previous, id, ids); err != nil {
			return "", err
		}
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("store: commit run %s: %w", id, err)
	}
	s.mu.Lock()
	s.runID = id
	s.mu.Unlock()
	return id, nil
}

// carryOver copies the versions of run from into run to, except those of
// the orders in ids.
func carryOver(ctx context.Context, tx *sql.Tx, from, to string, ids []string) error {
	rows, err := tx.QueryContext(ctx, "SELECT DISTINCT am_id FROM am_versions WHERE run_id = ?", from)
	if err != nil {
		return fmt.Errorf("store: list run %s: %w", from, err)
	}
	var keep []string
	for rows.Next() {
		var amID string
		if err := rows.Scan(&amID); err != nil {
			rows.Close()
			return fmt.Errorf("store: scan: %w", err)
		}
		if !inScope(amID, ids) {
			keep = append(keep, amID)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("store: iterate: %w", err)
	}

	const q = `INSERT INTO am_versions (run_id, am_id, name, applicable, document)
SELECT ?, am_id, name, applicable, document FROM am_versions WHERE run_id = ? AND am_id = ?`
	for _, amID := range keep {
		if _, err := tx.ExecContext(ctx, q, to, from, amID); err != nil {
			return fmt.Errorf("store: carry over %s: %w", amID, err)
		}
	}
	return nil
}

// Discard deletes the versions of amID and of its regime splits from the
// current run. It ignores ctx cancellation so a timed-out order can still
// be cleaned up.
func (s *SQLiteSink) Discard(_ context.Context, amID string) error {
	runID, err := s.currentRun()
	if err != nil {
		return err
	}
	const q = `DELETE FROM am_versions WHERE run_id = ? AND (am_id = ? OR substr(am_id, 1, ?) = ?)`
	if _, err := s.db.Exec(q, runID, amID, len(amID)+1, amID+"_"); err != nil {
		return fmt.Errorf("store: discard %s: %w", amID, err)
	}
	return nil
}

func (s *SQLiteSink) currentRun() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runID == "" {
		return "", ErrNoRun
	}
	return s.runID, nil
}

// Save stores the versions of amID in the current run, in one transaction.
func (s *SQLiteSink) Save(ctx context.Context, amID string, versions version.Versions) error {
	runID, err := s.currentRun()
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	const q = `INSERT INTO am_versions (run_id, am_id, name, applicable, document) VALUES (?, ?, ?, ?, ?)`
	for _, v := range versions {
		data, err := am.Marshal(v.Text)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, q, runID, amID, v.Name(), v.Descriptor.Applicable, string(data)); err != nil {
			return fmt.Errorf("store: save %s: %w", Key(amID, v), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit %s: %w", amID, err)
	}
	return nil
}

// LatestRun returns the id of the most recent run.
func (s *SQLiteSink) LatestRun(ctx context.Context) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, "SELECT run_id FROM runs ORDER BY seq DESC LIMIT 1").Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNoRun
	}
	if err != nil {
		return "", fmt.Errorf("store: latest run: %w", err)
	}
	return id, nil
}

// Load reads the versions of the latest run, keyed like FileSink.
func (s *SQLiteSink) Load(ctx context.Context) (map[string]am.ArreteMinisteriel, error) {
	runID, err := s.LatestRun(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, "SELECT am_id, name, document FROM am_versions WHERE run_id = ?", runID)
	if err != nil {
		return nil, fmt.Errorf("store: load run %s: %w", runID, err)
	}
	defer rows.Close()

	out := make(map[string]am.ArreteMinisteriel)
	for rows.Next() {
		var amID, name, doc string
		if err := rows.Scan(&amID, &name, &doc); err != nil {
			return nil, fmt.Errorf("store: scan: %w", err)
		}
		text, err := am.Parse([]byte(doc))
		if err != nil {
			return nil, fmt.Errorf("store: %s_%s: %w", amID, name, err)
		}
		out[amID+"_"+name] = text
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate: %w", err)
	}
	return out, nil
}
