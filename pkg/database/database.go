// Package database persists the channel list in SQLite so a restarted server
// advertises the same channels it did before.
package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS Channel (
	id INTEGER PRIMARY KEY,
	created_at INTEGER NOT NULL
);
`

// DB wraps the SQLite connection holding the channel list.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the database at the given path and applies the
// schema.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL mode for concurrent reads, busy timeout for writer contention
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &DB{conn: conn}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// SeedChannels inserts the given channel ids if they are not already present.
func (db *DB) SeedChannels(ids []uint32) error {
	now := time.Now().UnixMilli()
	for _, id := range ids {
		_, err := db.conn.Exec(
			"INSERT OR IGNORE INTO Channel (id, created_at) VALUES (?, ?)",
			int64(id), now,
		)
		if err != nil {
			return fmt.Errorf("failed to seed channel %d: %w", id, err)
		}
	}
	return nil
}

// ListChannelIDs returns every persisted channel id in ascending order.
func (db *DB) ListChannelIDs() ([]uint32, error) {
	rows, err := db.conn.Query("SELECT id FROM Channel ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to list channels: %w", err)
	}
	defer rows.Close()

	var ids []uint32
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan channel id: %w", err)
		}
		ids = append(ids, uint32(id))
	}
	return ids, rows.Err()
}

// CreateChannel records a channel id. Recording an existing id is a no-op.
func (db *DB) CreateChannel(id uint32) error {
	_, err := db.conn.Exec(
		"INSERT OR IGNORE INTO Channel (id, created_at) VALUES (?, ?)",
		int64(id), time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to create channel %d: %w", id, err)
	}
	return nil
}
