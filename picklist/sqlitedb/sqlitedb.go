// Package sqlitedb implements a picklist backend on SQLite.
//
// Names are unique per vocabulary through a UNIQUE(vocabulary, name) index, so
// two processes importing the same vocabulary term race on the insert and the
// loser gets picklist.ErrConflict.
package sqlitedb

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/jacentio/pbcore/picklist"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped whenever schema.sql changes incompatibly.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database was created by an incompatible version.
var ErrSchemaMismatch = errors.New("picklist schema version mismatch")

const (
	sqliteBusyCode             = 5
	sqliteConstraintUniqueCode = 2067
	sqliteConstraintPKCode     = 1555
	busyRetryAttempts          = 5
	busyRetryInitialBackoff    = 10 * time.Millisecond
	busyRetryMaxBackoff        = 200 * time.Millisecond
)

// Backend is a picklist.Backend stored in a SQLite database file.
type Backend struct {
	db   *sql.DB
	path string
}

var _ picklist.Backend = (*Backend)(nil)

// Open opens (creating if needed) the picklist database at path.
func Open(ctx context.Context, path string) (*Backend, error) {
	if path == "" {
		return nil, errors.New("sqlite picklist path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure picklist directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	b := &Backend{db: db, path: path}
	if err := b.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return b, nil
}

// Path returns the database file path.
func (b *Backend) Path() string {
	return b.path
}

// Close closes the underlying database connection.
func (b *Backend) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

func (b *Backend) initSchema(ctx context.Context) error {
	var tableExists int
	err := b.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		return b.createSchema(ctx)
	}

	var version int
	if err := b.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d", ErrSchemaMismatch, version, schemaVersion)
	}
	return nil
}

func (b *Backend) createSchema(ctx context.Context) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// Lookup implements picklist.Backend.
func (b *Backend) Lookup(ctx context.Context, vocabulary, name string) (picklist.Entry, error) {
	return b.queryEntry(ctx,
		"SELECT id, vocabulary, name FROM picklist_entries WHERE vocabulary = ? AND name = ?",
		vocabulary, name,
	)
}

// Create implements picklist.Backend.
func (b *Backend) Create(ctx context.Context, vocabulary, name string) (picklist.Entry, error) {
	entry := picklist.Entry{
		Ref:  picklist.Ref{Vocabulary: vocabulary, ID: uuid.NewString()},
		Name: name,
	}
	err := retryOnBusy(ctx, func() error {
		_, err := b.db.ExecContext(ctx,
			"INSERT INTO picklist_entries (id, vocabulary, name, created_at) VALUES (?, ?, ?, ?)",
			entry.Ref.ID, vocabulary, name, time.Now().UTC().Format(time.RFC3339Nano),
		)
		return err
	})
	if isUniqueViolation(err) {
		return picklist.Entry{}, picklist.ErrConflict
	}
	if err != nil {
		return picklist.Entry{}, fmt.Errorf("insert picklist entry: %w", err)
	}
	return entry, nil
}

// Get implements picklist.Backend.
func (b *Backend) Get(ctx context.Context, ref picklist.Ref) (picklist.Entry, error) {
	return b.queryEntry(ctx,
		"SELECT id, vocabulary, name FROM picklist_entries WHERE id = ? AND vocabulary = ?",
		ref.ID, ref.Vocabulary,
	)
}

// List implements picklist.Backend.
func (b *Backend) List(ctx context.Context, vocabulary string) ([]picklist.Entry, error) {
	rows, err := b.db.QueryContext(ctx,
		"SELECT id, vocabulary, name FROM picklist_entries WHERE vocabulary = ? ORDER BY created_at, rowid",
		vocabulary,
	)
	if err != nil {
		return nil, fmt.Errorf("list picklist entries: %w", err)
	}
	defer rows.Close()

	var entries []picklist.Entry
	for rows.Next() {
		var e picklist.Entry
		if err := rows.Scan(&e.Ref.ID, &e.Ref.Vocabulary, &e.Name); err != nil {
			return nil, fmt.Errorf("scan picklist entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Delete removes an entry. Records still pointing at it become dangling.
func (b *Backend) Delete(ctx context.Context, ref picklist.Ref) error {
	res, err := b.db.ExecContext(ctx,
		"DELETE FROM picklist_entries WHERE id = ? AND vocabulary = ?",
		ref.ID, ref.Vocabulary,
	)
	if err != nil {
		return fmt.Errorf("delete picklist entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return picklist.ErrNotFound
	}
	return nil
}

func (b *Backend) queryEntry(ctx context.Context, query string, args ...any) (picklist.Entry, error) {
	var e picklist.Entry
	err := b.db.QueryRowContext(ctx, query, args...).Scan(&e.Ref.ID, &e.Ref.Vocabulary, &e.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return picklist.Entry{}, picklist.ErrNotFound
	}
	if err != nil {
		return picklist.Entry{}, fmt.Errorf("query picklist entry: %w", err)
	}
	return e, nil
}

func sqliteCode(err error) (int, bool) {
	var coder interface{ Code() int }
	if errors.As(err, &coder) {
		return coder.Code(), true
	}
	return 0, false
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if code, ok := sqliteCode(err); ok && (code == sqliteConstraintUniqueCode || code == sqliteConstraintPKCode) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	if code, ok := sqliteCode(err); ok && code == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
