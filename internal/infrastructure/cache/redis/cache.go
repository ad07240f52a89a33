package redis

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Cache stores JSON-encoded values in Redis under prefix+key with a TTL.
// Redis failures are logged and reported as misses.
type Cache[V any] struct {
	client *goredis.Client
	prefix string
	ttl    time.Duration
}

func New[V any](client *goredis.Client, prefix string, ttl time.Duration) *Cache[V] {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Cache[V]{client: client, prefix: prefix, ttl: ttl}
}

// Open connects to addr and verifies the connection with PING.
func Open(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: 5 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

func (c *Cache[V]) Get(ctx context.Context, key string) (V, bool) {
	var zero V
	raw, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			slog.Warn("redis_cache_get_failed", "key", c.prefix+key, "error", err)
		}
		return zero, false
	}

	var value V
	if err := json.Unmarshal(raw, &value); err != nil {
		slog.Warn("redis_cache_decode_failed", "key", c.prefix+key, "error", err)
		return zero, false
	}
	return value, true
}

func (c *Cache[V]) Set(ctx context.Context, key string, value V) {
	raw, err := json.Marshal(value)
	if err != nil {
		slog.Warn("redis_cache_encode_failed", "key", c.prefix+key, "error", err)
		return
	}
	if err := c.client.Set(ctx, c.prefix+key, raw, c.ttl).Err(); err != nil {
		slog.Warn("redis_cache_set_failed", "key", c.prefix+key, "error", err)
	}
}
