package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/evanschultz/flare/internal/app"
)

// driverName defines a package constant value.
const driverName = "sqlite"

// connPragmas are applied to every pooled connection.
// _txlock=immediate makes BEGIN take the write lock up front.
var connPragmas = []string{
	"_pragma=foreign_keys(1)",
	"_pragma=busy_timeout(5000)",
	"_txlock=immediate",
}

// Repository is the SQLite-backed app.Repository.
type Repository struct {
	*store
	db *sql.DB
}

// Open opens or creates the database file at path and applies migrations.
func Open(path string) (*Repository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	dsn := "file:" + filepath.ToSlash(path) + "?" + strings.Join(append([]string{"_pragma=journal_mode(WAL)"}, connPragmas...), "&")
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return newRepository(db)
}

// OpenInMemory opens a private in-memory database. Each call gets its own database.
func OpenInMemory() (*Repository, error) {
	name := url.PathEscape("flare-" + uuid.NewString())
	dsn := "file:" + name + "?mode=memory&cache=shared&" + strings.Join(connPragmas, "&")
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}
	// a single connection keeps the shared-cache database alive and avoids table locks
	db.SetMaxOpenConns(1)
	return newRepository(db)
}

// newRepository migrates db and wraps it.
func newRepository(db *sql.DB) (*Repository, error) {
	repo := &Repository{store: &store{q: db}, db: db}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// Close closes the underlying database.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Ping reports whether the database answers.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// WithTx runs fn against a transaction-scoped store.
// The transaction commits when fn returns nil and rolls back otherwise, including on panic.
func (r *Repository) WithTx(ctx context.Context, fn func(app.Store) error) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(&store{q: tx}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// migrate creates the schema.
func (r *Repository) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			organizer_id TEXT NOT NULL,
			name TEXT NOT NULL,
			description TEXT NOT NULL,
			event_date TEXT NOT NULL,
			start_time TEXT NOT NULL,
			capacity INTEGER NOT NULL CHECK (capacity > 0),
			venue TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS enrollments (
			id TEXT PRIMARY KEY,
			event_id TEXT NOT NULL,
			participant_id TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			requested_at TEXT NOT NULL,
			decided_at TEXT,
			FOREIGN KEY(event_id) REFERENCES events(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			display_name TEXT NOT NULL,
			roles_json TEXT NOT NULL DEFAULT '[]',
			first_seen_at TEXT NOT NULL,
			last_seen_at TEXT NOT NULL
		);`,
		// change_events.event_id has no foreign key so the ledger outlives deleted events.
		`CREATE TABLE IF NOT EXISTS change_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			event_id TEXT NOT NULL,
			subject_id TEXT NOT NULL,
			operation TEXT NOT NULL,
			actor_id TEXT NOT NULL,
			metadata_json TEXT NOT NULL DEFAULT '{}',
			created_at TEXT NOT NULL
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_enrollments_active_pair ON enrollments(event_id, participant_id) WHERE status != 'rejected';`,
		`CREATE INDEX IF NOT EXISTS idx_enrollments_event_status ON enrollments(event_id, status);`,
		`CREATE INDEX IF NOT EXISTS idx_enrollments_participant ON enrollments(participant_id, requested_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_events_status_date ON events(status, event_date, start_time);`,
		`CREATE INDEX IF NOT EXISTS idx_events_organizer ON events(organizer_id, event_date);`,
		`CREATE INDEX IF NOT EXISTS idx_change_events_event_created_at ON change_events(event_id, created_at DESC, id DESC);`,
	}

	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	return nil
}

// dbtx is the query surface shared by *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// store implements app.Store over a database handle or a transaction.
type store struct {
	q dbtx
}

// scanner represents scanner data used by this package.
type scanner interface {
	Scan(dest ...any) error
}

// translateNoRows maps zero affected rows to app.ErrNotFound.
func translateNoRows(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return app.ErrNotFound
	}
	return nil
}

// isUniqueViolation reports whether err is a UNIQUE or PRIMARY KEY constraint failure.
func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	default:
		return false
	}
}

// timestampLayout is fixed-width so stored text sorts in time order.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ts formats a timestamp for storage.
func ts(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// nullableTS formats an optional timestamp for storage.
func nullableTS(t *time.Time) any {
	if t == nil {
		return nil
	}
	return ts(*t)
}

// parseTS parses a stored timestamp.
func parseTS(v string) time.Time {
	ts, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return ts.UTC()
}

// parseNullTS parses an optional stored timestamp.
func parseNullTS(v sql.NullString) *time.Time {
	if !v.Valid || strings.TrimSpace(v.String) == "" {
		return nil
	}
	ts := parseTS(v.String)
	return &ts
}
