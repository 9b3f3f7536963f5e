package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	_ "modernc.org/sqlite" // pure go sqlite driver
)

// SQLiteMirror implements LocalMirror on a single-table SQLite database, one
// JSON blob per namespaced key. It is the durable stand-in for browser local
// storage: no versioning, no timestamps, a later write replaces an earlier
// one.
type SQLiteMirror struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLiteMirror opens (creating if needed) the mirror database at path
func NewSQLiteMirror(path string, logger *zap.Logger) (*SQLiteMirror, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create mirror dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open mirror: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS mirror (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create mirror table: %w", err)
	}

	return &SQLiteMirror{db: db, logger: logger}, nil
}

// Load retrieves the last value saved under key
func (m *SQLiteMirror) Load(key string) (json.RawMessage, error) {
	var value []byte
	err := m.db.QueryRow(`SELECT value FROM mirror WHERE key = ?`, MirrorPrefix+key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load mirror entry: %w", err)
	}
	return value, nil
}

// Save stores value under key, replacing any prior value
func (m *SQLiteMirror) Save(key string, value json.RawMessage) error {
	_, err := m.db.Exec(
		`INSERT INTO mirror (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		MirrorPrefix+key, []byte(value),
	)
	if err != nil {
		return fmt.Errorf("save mirror entry: %w", err)
	}
	return nil
}

// Remove deletes the entry for key
func (m *SQLiteMirror) Remove(key string) error {
	if _, err := m.db.Exec(`DELETE FROM mirror WHERE key = ?`, MirrorPrefix+key); err != nil {
		return fmt.Errorf("remove mirror entry: %w", err)
	}
	return nil
}

// Keys returns all logical keys with a mirrored value, sorted
func (m *SQLiteMirror) Keys() ([]string, error) {
	rows, err := m.db.Query(`SELECT key FROM mirror ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list mirror keys: %w", err)
	}
	defer rows.Close()

	keys := make([]string, 0)
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, strings.TrimPrefix(k, MirrorPrefix))
	}
	return keys, rows.Err()
}

// Ping checks the mirror database
func (m *SQLiteMirror) Ping(ctx context.Context) error {
	return m.db.PingContext(ctx)
}

// Close closes the mirror database
func (m *SQLiteMirror) Close() error {
	return m.db.Close()
}
