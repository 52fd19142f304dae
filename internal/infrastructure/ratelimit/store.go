package ratelimit

import (
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

const keyPrefix = "rl"

// NewRedisStore keeps fixed-window counters in Redis. It loads the counter
// scripts up front, so it fails when Redis does not answer.
func NewRedisStore(client *redis.Client) (limiter.Store, error) {
	return sredis.NewStoreWithOptions(client, limiter.StoreOptions{
		Prefix:   keyPrefix,
		MaxRetry: 3,
	})
}

// NewMemoryStore keeps counters in process; expired windows are swept every cleanup
func NewMemoryStore(cleanup time.Duration) limiter.Store {
	return memory.NewStoreWithOptions(limiter.StoreOptions{
		Prefix:          keyPrefix,
		CleanUpInterval: cleanup,
	})
}
