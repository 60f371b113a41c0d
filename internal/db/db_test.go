package db

import (
	"path/filepath"
	"testing"
)

func TestOpenCreatesSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "state.db")
	database, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer database.Close()

	for _, table := range []string{"kv_store", "gateway_caches", "gateway_cache_entries"} {
		var name string
		err := database.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name = ?`, table).Scan(&name)
		if err != nil {
			t.Fatalf("table %s missing: %v", table, err)
		}
	}

	if database.Path() != path {
		t.Fatalf("unexpected path %q", database.Path())
	}
}

func TestOpenIsRepeatable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	first, err := Open(path)
	if err != nil {
		t.Fatalf("first Open: %v", err)
	}
	if _, err := first.Exec(`INSERT INTO kv_store (key, value, updated_at) VALUES ('k', 'v', 1)`); err != nil {
		t.Fatalf("insert: %v", err)
	}
	_ = first.Close()

	second, err := Open(path)
	if err != nil {
		t.Fatalf("second Open: %v", err)
	}
	defer second.Close()

	var value string
	if err := second.QueryRow(`SELECT value FROM kv_store WHERE key = 'k'`).Scan(&value); err != nil {
		t.Fatalf("select: %v", err)
	}
	if value != "v" {
		t.Fatalf("got %q", value)
	}
}
