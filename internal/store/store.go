// Package store manages the per-device SQLite datastore that is the single
// source of truth for the application. It offers entity CRUD for the UI
// layer, full-dataset snapshot reads for the push pipeline, a one-transaction
// apply scope for the pull pipeline, and the persisted sync metadata (change
// cursor and migration flag).
//
// Only this package may open or query the database. All other packages
// receive a [*Store] and call its methods.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/tallyapp/tallysync/internal/bus"
)

// Store is the SQLite-backed local datastore.
type Store struct {
	db  *sql.DB
	bus *bus.Bus
}

// DefaultDBPath returns the default path for the local database:
// ~/.local/share/tallysync/tally.db
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "tallysync", "tally.db"), nil
}

// Open opens (or creates) the SQLite database at path, applies the schema,
// and configures WAL mode. Writes performed through the Save/Delete methods
// are announced on b; b may be nil, in which case no events are published.
func Open(path string, b *bus.Bus) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening database %q: %w", path, err)
	}

	// Single writer to avoid SQLITE_BUSY under WAL.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &Store{db: db, bus: b}, nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// notify publishes a local-write event for table. No-op without a bus.
func (s *Store) notify(table, action string) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(bus.Event{Origin: bus.OriginLocal, Table: table, Action: action})
}

// Apply runs fn inside a single transaction. It is the pull pipeline's write
// scope: all changes of one pull cycle commit or roll back together, and no
// local-write events are published for them.
func (s *Store) Apply(ctx context.Context, fn func(tx *Tx) error) error {
	dbtx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning apply transaction: %w", err)
	}
	defer func() { _ = dbtx.Rollback() }()

	if err := fn(&Tx{tx: dbtx}); err != nil {
		return err
	}
	if err := dbtx.Commit(); err != nil {
		return fmt.Errorf("committing apply transaction: %w", err)
	}
	return nil
}

// --- Sync metadata -----------------------------------------------------------

// Cursor returns the last-successful-sync timestamp for account, or the zero
// time if the account has never completed a cycle.
func (s *Store) Cursor(ctx context.Context, account string) (time.Time, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT cursor FROM sync_meta WHERE account = ?`, account).Scan(&raw)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("reading cursor for %q: %w", account, err)
	}
	return parseTime(raw)
}

// SetCursor advances the cursor for account. Called only after a fully
// successful sync cycle.
func (s *Store) SetCursor(ctx context.Context, account string, t time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_meta (account, cursor) VALUES (?, ?)
		ON CONFLICT(account) DO UPDATE SET cursor = excluded.cursor`,
		account, formatTime(t))
	if err != nil {
		return fmt.Errorf("writing cursor for %q: %w", account, err)
	}
	return nil
}

// MigrationDone reports whether the one-time bulk upload has completed for
// account.
func (s *Store) MigrationDone(ctx context.Context, account string) (bool, error) {
	var migrated int
	err := s.db.QueryRowContext(ctx,
		`SELECT migrated FROM sync_meta WHERE account = ?`, account).Scan(&migrated)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading migration flag for %q: %w", account, err)
	}
	return migrated != 0, nil
}

// SetMigrationDone marks the one-time bulk upload as completed for account.
func (s *Store) SetMigrationDone(ctx context.Context, account string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_meta (account, migrated) VALUES (?, 1)
		ON CONFLICT(account) DO UPDATE SET migrated = 1`,
		account)
	if err != nil {
		return fmt.Errorf("writing migration flag for %q: %w", account, err)
	}
	return nil
}

// --- helpers -----------------------------------------------------------------

// querier matches both *sql.DB and *sql.Tx so entity reads can be shared
// between the Store and the apply-phase Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// scanner matches both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTimePtr(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil
	}
	return &t
}

func nullStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func strPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
