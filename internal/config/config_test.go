package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFileMissingReturnsDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.QR.RevealSeconds != 10 || cfg.QR.ExpiryCheck != time.Minute {
		t.Fatalf("unexpected qr defaults: %+v", cfg.QR)
	}
	if len(cfg.Gateway.Precache) == 0 || !cfg.Gateway.SkipWaiting {
		t.Fatalf("unexpected gateway defaults: %+v", cfg.Gateway)
	}
}

func TestSaveAndLoadFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.ServerURL = "http://localhost:3000/"
	cfg.Storage.Driver = "memory"
	cfg.QR.MaxTokenLength = 128
	if err := cfg.SaveFile(path); err != nil {
		t.Fatalf("SaveFile: %v", err)
	}

	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if loaded.ServerURL != cfg.ServerURL || loaded.Storage.Driver != "memory" || loaded.QR.MaxTokenLength != 128 {
		t.Fatalf("round trip mismatch: %+v", loaded)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("NAROD_SERVER_URL", "http://example.test/")
	t.Setenv("NAROD_STORAGE_DRIVER", "redis")
	t.Setenv("NAROD_QR_MAX_TOKEN_LENGTH", "99")

	cfg := DefaultConfig()
	if cfg.ServerURL != "http://example.test/" || cfg.Storage.Driver != "redis" || cfg.QR.MaxTokenLength != 99 {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
}
