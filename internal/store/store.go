// Package store provides read access to the local practice database and
// durable storage for per-table replication cursors.
package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite" // register pure-Go SQLite driver
)

// TimeLayout is the canonical encoding for timestamps in the local database.
// Fixed-width UTC text, so lexicographic order equals chronological order and
// `updated_at > ?` comparisons work directly in SQL.
const TimeLayout = "2006-01-02 15:04:05.000000000"

// dateLayout covers legacy date-only values written by older application versions.
const dateLayout = "2006-01-02"

// Store wraps the local SQLite database of the practice application.
// Replication only ever reads from it; all writes are done by the GUI,
// except for the sync_cursors table owned by CursorStore.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens the local practice database.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open local database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping local database: %w", err)
	}

	logrus.WithField("path", path).Info("Opened local database")
	return &Store{db: db, path: path}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// DB exposes the underlying handle for direct access.
func (s *Store) DB() *sql.DB {
	return s.db
}

// FormatTime encodes a timestamp in the canonical local encoding.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime decodes a timestamp written by FormatTime. Date-only values from
// older application versions are accepted and read as midnight UTC.
func ParseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.ParseInLocation(TimeLayout, s, time.UTC); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(dateLayout, s, time.UTC); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("unparseable timestamp %q", s)
	}
	return t.UTC(), nil
}
