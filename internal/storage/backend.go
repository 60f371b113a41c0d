package storage

import (
	"context"
	"fmt"

	"github.com/existflow/narodplus/internal/config"
	"github.com/existflow/narodplus/internal/db"
)

// Driver identifiers supported by the state store.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

// Backend is the raw key/value layer beneath Store. Unlike Store, backends
// report failures; Store absorbs them.
type Backend interface {
	Put(ctx context.Context, key string, value []byte) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
	Close() error
}

// Dependencies captures external handles required by certain drivers.
type Dependencies struct {
	DB *db.DB
}

// NewBackend creates a backend based on the provided configuration.
func NewBackend(cfg config.StorageConfig, deps Dependencies) (Backend, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = DriverMemory
	}

	switch driver {
	case DriverMemory:
		return NewMemory(), nil
	case DriverSQLite:
		if deps.DB != nil {
			return NewSQLite(deps.DB), nil
		}
		if cfg.Path == "" {
			return nil, fmt.Errorf("sqlite driver requires a path or database handle")
		}
		database, err := db.Open(cfg.Path)
		if err != nil {
			return nil, err
		}
		return &sqliteBackend{db: database, owned: true}, nil
	case DriverRedis:
		return NewRedis(cfg.Redis)
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", driver)
	}
}
