package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added per-actor index on samples
const currentSchemaVersion = 1

// DefaultBusyTimeout is how long a connection waits on a locked trace.
const DefaultBusyTimeout = 5 * time.Second

// traceTables must exist before a trace can be opened read-only.
var traceTables = []string{"runs", "frames", "samples", "events"}

// Store provides durable storage for simulation traces.
// Uses SQLite with WAL mode for concurrent read access.
type Store struct {
	db       *sql.DB
	readOnly bool
}

type options struct {
	busyTimeout time.Duration
	readOnly    bool
}

// Option configures Open.
type Option func(*options)

// WithBusyTimeout sets how long a connection waits for a lock held by
// another writer before failing with SQLITE_BUSY.
//
// Default: DefaultBusyTimeout.
func WithBusyTimeout(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.busyTimeout = d
		}
	}
}

// ReadOnly opens an existing trace for queries. The file must exist and
// hold a trace schema; the schema is neither applied nor migrated, and
// every write fails.
func ReadOnly() Option {
	return func(o *options) {
		o.readOnly = true
	}
}

// Open creates or opens a trace database at the given path.
// Applies required pragmas and migrations automatically.
//
// Pragmas travel in the driver DSN so every pooled connection gets them:
//   - WAL journal and NORMAL synchronous mode for writable traces
//   - query_only for ReadOnly traces
//   - the busy timeout and foreign key enforcement for both
//
// Open is idempotent: reopening an existing trace leaves it intact.
func Open(path string, opts ...Option) (*Store, error) {
	o := options{busyTimeout: DefaultBusyTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	if o.readOnly && path != ":memory:" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("failed to open trace: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dsn(path, o))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if o.readOnly {
		err = checkTables(db)
	} else {
		err = applySchema(db)
	}
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, readOnly: o.readOnly}, nil
}

// dsn appends the connection pragmas to path in go-sqlite3's "_name" form.
func dsn(path string, o options) string {
	q := url.Values{}
	q.Set("_busy_timeout", strconv.FormatInt(o.busyTimeout.Milliseconds(), 10))
	q.Set("_foreign_keys", "on")
	if o.readOnly {
		q.Set("_query_only", "on")
	} else {
		q.Set("_journal_mode", "WAL")
		q.Set("_synchronous", "NORMAL")
	}
	return path + "?" + q.Encode()
}

// checkTables fails unless every trace table exists.
func checkTables(db *sql.DB) error {
	for _, table := range traceTables {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("not a trace database: missing table %q", table)
		}
		if err != nil {
			return fmt.Errorf("failed to inspect schema: %w", err)
		}
	}
	return nil
}

// ReadOnly reports whether the store was opened with ReadOnly.
func (s *Store) ReadOnly() bool {
	return s.readOnly
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - prefer using Store methods when available.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Query executes a query and returns the resulting rows. The trace query
// command feeds it SQL compiled by querysql. Callers close the rows.
func (s *Store) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, query, args...)
}

// applySchema creates tables if they don't exist and runs migrations.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

// migrateToV1 indexes samples by actor, for per-actor trajectory reads.
func migrateToV1(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_samples_actor
		ON samples(run_id, actor, particle, step)
	`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
