// Package audit records a content hash of every rebuild plan already
// applied, enforcing at-most-once execution across engine runs.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mesh-intelligence/relift/pkg/types"
)

// errAudit aliases the shared sentinel so every failure from this package
// matches errors.Is(err, types.ErrAuditStore).
var errAudit = types.ErrAuditStore

// TableName is the persisted audit table.
const TableName = "MIGRATION_API_AUDIT"

const createTableSQL = `CREATE TABLE IF NOT EXISTS ` + TableName + ` (
    id integer primary key,
    hash varchar(128) not null unique,
    description text,
    applied_at text not null
)`

// Entry is one recorded application.
type Entry struct {
	Hash        string
	Description string
	AppliedAt   string
}

// Store reads and writes the audit table on a SQLite database.
type Store struct {
	db *sql.DB

	// now is swapped in tests for stable timestamps.
	now func() time.Time
}

// NewStore returns a Store over db.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// EnsureTable creates the audit table when absent.
func (s *Store) EnsureTable(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createTableSQL); err != nil {
		return fmt.Errorf("%w: create table: %w", errAudit, err)
	}
	return nil
}

// WasApplied reports whether a row with the given hash exists.
func (s *Store) WasApplied(ctx context.Context, hash string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM "+TableName+" WHERE hash = ?", hash).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: query hash: %w", errAudit, err)
	}
	return true, nil
}

// RecordApplied inserts a row with the current UTC timestamp. Inserting a
// hash that already exists is a no-op.
func (s *Store) RecordApplied(ctx context.Context, hash, description string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO "+TableName+" (hash, description, applied_at) VALUES (?, ?, ?)",
		hash, description, s.now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("%w: record hash: %w", errAudit, err)
	}
	return nil
}

// Entries returns every recorded application, newest first.
func (s *Store) Entries(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT hash, COALESCE(description, ''), applied_at FROM "+TableName+" ORDER BY id DESC")
	if err != nil {
		return nil, fmt.Errorf("%w: list entries: %w", errAudit, err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Hash, &e.Description, &e.AppliedAt); err != nil {
			return nil, fmt.Errorf("%w: scan entry: %w", errAudit, err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", errAudit, err)
	}
	return out, nil
}
