package storage

import (
	"context"
	"path/filepath"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/existflow/narodplus/internal/config"
	"github.com/existflow/narodplus/internal/db"
)

func exerciseBackend(t *testing.T, b Backend) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := b.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("Get missing: ok=%v err=%v", ok, err)
	}
	if err := b.Put(ctx, "a", []byte("one")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := b.Put(ctx, "a", []byte("two")); err != nil {
		t.Fatalf("Put overwrite: %v", err)
	}
	if err := b.Put(ctx, "b", []byte("three")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, ok, err := b.Get(ctx, "a")
	if err != nil || !ok || string(got) != "two" {
		t.Fatalf("Get a: %q ok=%v err=%v", got, ok, err)
	}

	keys, err := b.Keys(ctx)
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("expected 2 keys, got %v", keys)
	}

	if err := b.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := b.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete twice: %v", err)
	}
	if _, ok, _ := b.Get(ctx, "a"); ok {
		t.Fatalf("expected a to be gone")
	}
}

func TestMemoryBackend(t *testing.T) {
	b := NewMemory()
	defer b.Close()
	exerciseBackend(t, b)
}

func TestSQLiteBackend(t *testing.T) {
	database, err := db.Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("db.Open: %v", err)
	}
	defer database.Close()

	exerciseBackend(t, NewSQLite(database))
}

func TestRedisBackend(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()

	b, err := NewRedis(config.RedisConfig{Addr: mr.Addr(), Prefix: "test:"})
	if err != nil {
		t.Fatalf("NewRedis: %v", err)
	}
	defer b.Close()

	exerciseBackend(t, b)

	if !mr.Exists("test:b") {
		t.Fatalf("expected prefixed key in redis")
	}
}

func TestNewBackendFactory(t *testing.T) {
	b, err := NewBackend(config.StorageConfig{Driver: DriverSQLite, Path: filepath.Join(t.TempDir(), "s.db")}, Dependencies{})
	if err != nil {
		t.Fatalf("sqlite via path: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if _, err := NewBackend(config.StorageConfig{Driver: DriverRedis}, Dependencies{}); err == nil {
		t.Fatalf("expected error for redis without address")
	}
	if _, err := NewBackend(config.StorageConfig{Driver: "floppy"}, Dependencies{}); err == nil {
		t.Fatalf("expected error for unsupported driver")
	}
	if _, err := NewBackend(config.StorageConfig{}, Dependencies{}); err != nil {
		t.Fatalf("empty driver should default to memory: %v", err)
	}
}
