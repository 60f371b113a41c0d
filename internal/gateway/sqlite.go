package gateway

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/existflow/narodplus/internal/db"
)

type sqliteStorage struct {
	db *db.DB
}

// NewSQLiteStorage keeps caches in the gateway tables of database, so cached
// API responses survive restarts.
func NewSQLiteStorage(database *db.DB) CacheStorage {
	return &sqliteStorage{db: database}
}

func (s *sqliteStorage) Open(ctx context.Context, name string) (Cache, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO gateway_caches (name, created_at) VALUES (?, ?) ON CONFLICT(name) DO NOTHING`,
		name, time.Now().UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache %s: %w", name, err)
	}
	return &sqliteCache{db: s.db, name: name}, nil
}

func (s *sqliteStorage) Has(ctx context.Context, name string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM gateway_caches WHERE name = ?`, name).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *sqliteStorage) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM gateway_caches ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *sqliteStorage) Delete(ctx context.Context, name string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM gateway_caches WHERE name = ?`, name)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *sqliteStorage) Match(ctx context.Context, key string) (Entry, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT e.status, e.header, e.body, e.stored_at
		FROM gateway_cache_entries e
		JOIN gateway_caches c ON c.name = e.cache_name
		WHERE e.request_key = ?
		ORDER BY c.rowid
		LIMIT 1`, key)
	return scanEntry(row)
}

type sqliteCache struct {
	db   *db.DB
	name string
}

func (c *sqliteCache) Put(ctx context.Context, key string, entry Entry) error {
	header, err := json.Marshal(entry.Header)
	if err != nil {
		return fmt.Errorf("failed to encode header: %w", err)
	}
	_, err = c.db.ExecContext(ctx, `
		INSERT INTO gateway_cache_entries (cache_name, request_key, status, header, body, stored_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(cache_name, request_key) DO UPDATE SET
			status = excluded.status,
			header = excluded.header,
			body = excluded.body,
			stored_at = excluded.stored_at`,
		c.name, key, entry.Status, string(header), entry.Body, entry.StoredAt.UnixMilli(),
	)
	return err
}

func (c *sqliteCache) Match(ctx context.Context, key string) (Entry, bool, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT status, header, body, stored_at
		FROM gateway_cache_entries
		WHERE cache_name = ? AND request_key = ?`, c.name, key)
	return scanEntry(row)
}

func (c *sqliteCache) Keys(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT request_key FROM gateway_cache_entries WHERE cache_name = ? ORDER BY request_key`, c.name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func scanEntry(row *sql.Row) (Entry, bool, error) {
	var (
		entry    Entry
		header   string
		storedAt int64
	)
	err := row.Scan(&entry.Status, &header, &entry.Body, &storedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}

	entry.Header = http.Header{}
	if err := json.Unmarshal([]byte(header), &entry.Header); err != nil {
		return Entry{}, false, fmt.Errorf("corrupt cached header: %w", err)
	}
	entry.StoredAt = time.UnixMilli(storedAt)
	return entry, true, nil
}
