package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/existflow/narodplus/internal/config"
	"github.com/redis/go-redis/v9"
)

type redisBackend struct {
	client *redis.Client
	prefix string
}

// NewRedis constructs a redis-backed store, for kiosks that share state
// between several terminals.
func NewRedis(cfg config.RedisConfig) (Backend, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "narod:state:"
	}
	return &redisBackend{client: client, prefix: prefix}, nil
}

func (r *redisBackend) key(k string) string {
	return r.prefix + k
}

func (r *redisBackend) Put(ctx context.Context, key string, value []byte) error {
	return r.client.Set(ctx, r.key(key), value, 0).Err()
}

func (r *redisBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	raw, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return raw, true, nil
}

func (r *redisBackend) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.key(key)).Err()
}

func (r *redisBackend) Keys(ctx context.Context) ([]string, error) {
	var cursor uint64
	keys := make([]string, 0)
	for {
		res, next, err := r.client.Scan(ctx, cursor, r.prefix+"*", 100).Result()
		if err != nil {
			return nil, err
		}
		for _, k := range res {
			keys = append(keys, strings.TrimPrefix(k, r.prefix))
		}
		if next == 0 {
			break
		}
		cursor = next
	}
	return keys, nil
}

func (r *redisBackend) Close() error {
	return r.client.Close()
}
