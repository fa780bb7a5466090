package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SQLiteCursorStore persists log-tail read offsets by file path.
type SQLiteCursorStore struct {
	db *DB
}

// NewSQLiteCursorStore creates a cursor store using the given database.
func NewSQLiteCursorStore(db *DB) *SQLiteCursorStore {
	return &SQLiteCursorStore{db: db}
}

// Load returns the stored offset for path, or 0 when none is stored.
func (c *SQLiteCursorStore) Load(path string) (int64, error) {
	var offset int64
	err := c.db.sql.QueryRow(`SELECT byte_offset FROM tail_cursors WHERE path = ?`, path).Scan(&offset)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("loading cursor for %s: %w", path, err)
	}
	return offset, nil
}

// Save records the offset for path.
func (c *SQLiteCursorStore) Save(path string, offset int64) error {
	_, err := c.db.sql.Exec(
		`INSERT INTO tail_cursors (path, byte_offset, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET byte_offset = excluded.byte_offset, updated_at = excluded.updated_at`,
		path, offset, time.Now().Format(time.DateTime),
	)
	if err != nil {
		return fmt.Errorf("saving cursor for %s: %w", path, err)
	}
	return nil
}
