package database

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisClient struct{ *redis.Client }

func NewRedis(addr, pass string, db int) *RedisClient {
	return &RedisClient{redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     pass,
		DB:           db,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})}
}

func (c *RedisClient) Ping(ctx context.Context) error { return c.Client.Ping(ctx).Err() }

// SetNX stores val only when key is absent; true means this caller claimed the key
func SetNX(ctx context.Context, r *RedisClient, key string, val any, ttl time.Duration) (bool, error) {
	return r.SetNX(ctx, key, val, ttl).Result()
}
