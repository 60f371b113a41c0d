package db

import "fmt"

// migrate runs all database migrations. Every statement is idempotent and
// purely additive, so new keys or tables never need a data migration.
func (db *DB) migrate() error {
	migrations := []string{
		migrationCreateKV,
		migrationCreateCaches,
		migrationCreateCacheEntries,
	}

	for i, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	return nil
}

const migrationCreateKV = `
CREATE TABLE IF NOT EXISTS kv_store (
    key TEXT PRIMARY KEY,
    value BLOB NOT NULL,
    updated_at INTEGER NOT NULL
);
`

const migrationCreateCaches = `
CREATE TABLE IF NOT EXISTS gateway_caches (
    name TEXT PRIMARY KEY,
    created_at INTEGER NOT NULL
);
`

const migrationCreateCacheEntries = `
CREATE TABLE IF NOT EXISTS gateway_cache_entries (
    cache_name TEXT NOT NULL,
    request_key TEXT NOT NULL,
    status INTEGER NOT NULL,
    header TEXT NOT NULL,
    body BLOB,
    stored_at INTEGER NOT NULL,
    PRIMARY KEY (cache_name, request_key),
    FOREIGN KEY (cache_name) REFERENCES gateway_caches(name) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_cache_entries_key ON gateway_cache_entries(request_key);
`
