package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements SlotStore using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

var _ SlotStore = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode with full synchronous commits, and runs any pending
// schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// A single connection serializes writers and keeps ":memory:"
	// databases from splitting across pooled connections.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=FULL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying %q: %w", p, err)
		}
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// SchemaVersion returns the highest applied migration version.
func (s *SQLiteStore) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	if err := s.db.GetContext(ctx, &v, "SELECT COALESCE(MAX(version), 0) FROM schema_version"); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return v, nil
}

const upsertSlot = `
	INSERT INTO slots (key, value, updated_at) VALUES (?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET
		value = excluded.value,
		updated_at = excluded.updated_at`

// GetSlot returns the value stored under key.
func (s *SQLiteStore) GetSlot(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.GetContext(ctx, &value, "SELECT value FROM slots WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading slot %s: %w", key, err)
	}
	return value, true, nil
}

// PutSlot creates or replaces the value stored under key.
func (s *SQLiteStore) PutSlot(ctx context.Context, key, value string) error {
	if _, err := s.db.ExecContext(ctx, upsertSlot, key, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("writing slot %s: %w", key, err)
	}
	return nil
}

// DeleteSlot removes key if present.
func (s *SQLiteStore) DeleteSlot(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM slots WHERE key = ?", key); err != nil {
		return fmt.Errorf("deleting slot %s: %w", key, err)
	}
	return nil
}

// UpdateSlot performs a read-modify-write of key inside one transaction.
func (s *SQLiteStore) UpdateSlot(
	ctx context.Context,
	key string,
	fn func(current string, exists bool) (string, error),
) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var current string
	exists := true
	err = tx.GetContext(ctx, &current, "SELECT value FROM slots WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		exists = false
	} else if err != nil {
		return fmt.Errorf("reading slot %s: %w", key, err)
	}

	next, err := fn(current, exists)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, upsertSlot, key, next, time.Now().UTC()); err != nil {
		return fmt.Errorf("writing slot %s: %w", key, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing slot %s: %w", key, err)
	}
	return nil
}
