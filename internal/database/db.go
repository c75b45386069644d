// Package database provides the SQLite audit store connection.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// DB wraps the audit store connection
type DB struct {
	conn *sql.DB
	path string
}

// Config holds database configuration
type Config struct {
	Path string
}

// schema for the run audit store. One row per pipeline run plus the
// per-segment recommendations and a serialized model snapshot, enough
// to reproduce and compare runs later.
const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	started_at TEXT NOT NULL,
	finished_at TEXT NOT NULL,
	input_path TEXT NOT NULL,
	seed INTEGER NOT NULL,
	segment_count INTEGER NOT NULL,
	churn_ceiling REAL NOT NULL,
	customer_rows INTEGER NOT NULL,
	model_snapshot BLOB
);

CREATE TABLE IF NOT EXISTS recommendations (
	run_id TEXT NOT NULL REFERENCES runs(id),
	segment_id INTEGER NOT NULL,
	segment_label TEXT NOT NULL,
	recommended_price REAL NOT NULL,
	expected_ltv_cac_ratio REAL NOT NULL,
	expected_churn REAL NOT NULL,
	constraint_relaxed INTEGER NOT NULL,
	PRIMARY KEY (run_id, segment_id)
);
`

// New opens (or creates) the audit store at cfg.Path and applies the
// schema. file: URIs skip path resolution so tests can use in-memory
// databases; the pragma parameters are appended either way.
func New(cfg Config) (*DB, error) {
	path := cfg.Path
	if !strings.HasPrefix(path, "file:") {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve audit store path: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create audit store directory: %w", err)
		}
		path = absPath
	}

	// file: URIs may already carry a query (mode=memory etc.)
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	connStr := path + sep +
		"_pragma=journal_mode(WAL)" +
		"&_pragma=synchronous(FULL)" + // audit trail: fsync every write
		"&_pragma=foreign_keys(1)"

	conn, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit store: %w", err)
	}

	// Single-writer batch process; no pool pressure expected
	conn.SetMaxOpenConns(4)
	conn.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping audit store: %w", err)
	}

	if _, err := conn.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to apply audit store schema: %w", err)
	}

	return &DB{conn: conn, path: path}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying sql.DB connection
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Path returns the database file path
func (db *DB) Path() string {
	return db.path
}

// WithTransaction executes a function within a database transaction.
// The transaction is rolled back when fn returns an error or panics,
// committed otherwise.
func WithTransaction(db *sql.DB, fn func(*sql.Tx) error) (err error) {
	if db == nil {
		return fmt.Errorf("database connection is nil")
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			err = fmt.Errorf("panic in transaction: %v", p)
		} else if err != nil {
			rollbackErr := tx.Rollback()
			if rollbackErr != nil {
				err = fmt.Errorf("transaction failed: %w (rollback also failed: %v)", err, rollbackErr)
			} else {
				err = fmt.Errorf("transaction failed: %w", err)
			}
		} else {
			if commitErr := tx.Commit(); commitErr != nil {
				err = fmt.Errorf("failed to commit transaction: %w", commitErr)
			}
		}
	}()

	err = fn(tx)
	return err
}
