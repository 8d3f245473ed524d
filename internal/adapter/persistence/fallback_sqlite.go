package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/devicehub/devicehub/internal/domain"
	"github.com/devicehub/devicehub/internal/ports"
)

// OpenSQLite opens (creating if needed) a SQLite database file at path
func OpenSQLite(path string) (*sql.DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("fallback: failed to create directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("fallback: failed to open database: %w", err)
	}
	// single writer keeps read-modify-write of one key serialized per process
	db.SetMaxOpenConns(1)
	return db, nil
}

// SQLiteFallbackStore keeps the fallback audit list as one JSON value in a key/value table
type SQLiteFallbackStore struct {
	db  *sql.DB
	key string
}

var _ ports.FallbackStore = (*SQLiteFallbackStore)(nil)

// NewSQLiteFallbackStore creates the kv table if needed
func NewSQLiteFallbackStore(ctx context.Context, db *sql.DB, key string) (*SQLiteFallbackStore, error) {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS kv (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
		)`)
	if err != nil {
		return nil, fmt.Errorf("fallback: failed to create kv table: %w", err)
	}
	return &SQLiteFallbackStore{db: db, key: key}, nil
}

// Load returns the stored list; a missing key is an empty list
func (s *SQLiteFallbackStore) Load(ctx context.Context) ([]domain.AuditLogEntry, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, s.key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return []domain.AuditLogEntry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fallback: failed to read %s: %w", s.key, err)
	}
	return decodeFallback(raw)
}

// Save replaces the stored list
func (s *SQLiteFallbackStore) Save(ctx context.Context, entries []domain.AuditLogEntry) error {
	raw, err := encodeFallback(entries)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at)
		VALUES (?, ?, strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		s.key, raw)
	if err != nil {
		return fmt.Errorf("fallback: failed to write %s: %w", s.key, err)
	}
	return nil
}

func decodeFallback(raw string) ([]domain.AuditLogEntry, error) {
	if raw == "" || raw == "null" {
		return []domain.AuditLogEntry{}, nil
	}
	var entries []domain.AuditLogEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, fmt.Errorf("fallback: stored value is not a JSON array of entries: %w", err)
	}
	if entries == nil {
		entries = []domain.AuditLogEntry{}
	}
	return entries, nil
}

func encodeFallback(entries []domain.AuditLogEntry) (string, error) {
	if entries == nil {
		entries = []domain.AuditLogEntry{}
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return "", fmt.Errorf("fallback: failed to encode entries: %w", err)
	}
	return string(raw), nil
}
