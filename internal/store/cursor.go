package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dentistedb/cloudsync/internal/retry"
)

// CursorStore persists the per-table replication watermark in a local
// sync_cursors table. The cursor is the only sync state that must survive a
// process restart; a missing row means "replicate everything".
//
// Writes go through a transactional upsert, so a crash mid-write can never
// leave a torn or ambiguous watermark. Monotonicity is the caller's contract:
// Set must only be called with a timestamp >= the current value.
type CursorStore struct {
	db *sql.DB
}

// NewCursorStore creates a cursor store backed by the local database.
func NewCursorStore(s *Store) *CursorStore {
	return &CursorStore{db: s.db}
}

// EnsureSchema creates the sync_cursors table if it does not exist yet.
func (c *CursorStore) EnsureSchema(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS sync_cursors (
			table_name TEXT PRIMARY KEY,
			last_sync_at TEXT NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("failed to create sync_cursors table: %w", err)
	}
	return nil
}

// Get returns the persisted watermark for a table, or the zero time when no
// cursor has been written yet.
func (c *CursorStore) Get(ctx context.Context, table string) (time.Time, error) {
	var raw string
	err := c.db.QueryRowContext(ctx,
		`SELECT last_sync_at FROM sync_cursors WHERE table_name = ?`, table).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read cursor for %s: %w", table, err)
	}

	t, err := ParseTime(raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("corrupt cursor for %s: %w", table, err)
	}
	return t, nil
}

// Set durably persists the watermark for a table. The database file is shared
// with the practice application, so a briefly held write lock is retried with
// the local backoff profile instead of failing the table.
func (c *CursorStore) Set(ctx context.Context, table string, t time.Time) error {
	err := retry.WithOperation(ctx, retry.LocalDefaults(), func() error {
		return c.write(ctx, table, t)
	}, "cursor write")
	if err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"table":  table,
		"cursor": FormatTime(t),
	}).Debug("Advanced replication cursor")
	return nil
}

func (c *CursorStore) write(ctx context.Context, table string, t time.Time) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin cursor transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sync_cursors (table_name, last_sync_at) VALUES (?, ?)
		ON CONFLICT (table_name) DO UPDATE SET last_sync_at = excluded.last_sync_at`,
		table, FormatTime(t))
	if err != nil {
		return fmt.Errorf("failed to write cursor for %s: %w", table, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cursor for %s: %w", table, err)
	}
	return nil
}
