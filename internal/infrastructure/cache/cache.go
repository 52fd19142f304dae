package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is a JSON key/value cache over Redis. Read failures are treated as misses.
type Cache struct {
	client *redis.Client
	prefix string
}

func New(client *redis.Client, prefix string) *Cache {
	return &Cache{client: client, prefix: prefix}
}

func (c *Cache) key(k string) string { return c.prefix + k }

// Get returns the decoded JSON value for key, the raw string when the stored
// value is not JSON, or nil on a miss or Redis error.
func (c *Cache) Get(ctx context.Context, key string) interface{} {
	raw, err := c.client.Get(ctx, c.key(key)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.WarnContext(ctx, "cache get failed", "key", key, "error", err)
		}
		return nil
	}

	var v interface{}
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	return v
}

// GetInto decodes the cached value into dest and reports whether it was found
func (c *Cache) GetInto(ctx context.Context, key string, dest interface{}) bool {
	raw, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.WarnContext(ctx, "cache get failed", "key", key, "error", err)
		}
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		slog.WarnContext(ctx, "cache entry undecodable", "key", key, "error", err)
		return false
	}
	return true
}

// Set stores value as JSON with the given TTL
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(key), data, ttl).Err()
}

// Delete removes keys
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.key(k)
	}
	return c.client.Del(ctx, full...).Err()
}

// GetOrLoad returns the cached value or calls load and caches its result.
// A failed cache write does not fail the call.
func GetOrLoad[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	var v T
	if c.GetInto(ctx, key, &v) {
		return v, nil
	}

	v, err := load(ctx)
	if err != nil {
		return v, err
	}
	if err := c.Set(ctx, key, v, ttl); err != nil {
		slog.WarnContext(ctx, "cache set failed", "key", key, "error", err)
	}
	return v, nil
}
