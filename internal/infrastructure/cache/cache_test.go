package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	return New(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test:"), mr
}

func TestCache_Get(t *testing.T) {
	ctx := context.Background()

	t.Run("parsed JSON", func(t *testing.T) {
		c, _ := setupTestCache(t)
		require.NoError(t, c.Set(ctx, "obj", map[string]interface{}{"a": 1}, time.Minute))

		got := c.Get(ctx, "obj")
		assert.Equal(t, map[string]interface{}{"a": float64(1)}, got)
	})

	t.Run("raw string when not JSON", func(t *testing.T) {
		c, mr := setupTestCache(t)
		require.NoError(t, mr.Set("test:plain", "hello world"))

		assert.Equal(t, "hello world", c.Get(ctx, "plain"))
	})

	t.Run("nil on miss", func(t *testing.T) {
		c, _ := setupTestCache(t)
		assert.Nil(t, c.Get(ctx, "missing"))
	})

	t.Run("nil on redis error", func(t *testing.T) {
		c, mr := setupTestCache(t)
		require.NoError(t, mr.Set("test:obj", `{"a":1}`))
		mr.SetError("LOADING Redis is loading the dataset in memory")

		assert.Nil(t, c.Get(ctx, "obj"))
	})
}

func TestCache_DeleteAndTTL(t *testing.T) {
	ctx := context.Background()
	c, mr := setupTestCache(t)

	require.NoError(t, c.Set(ctx, "k", "v", time.Minute))
	assert.Equal(t, time.Minute, mr.TTL("test:k"))

	require.NoError(t, c.Delete(ctx, "k"))
	assert.False(t, mr.Exists("test:k"))
	assert.NoError(t, c.Delete(ctx))
}

func TestGetOrLoad(t *testing.T) {
	ctx := context.Background()
	c, _ := setupTestCache(t)

	type carrier struct {
		Name string `json:"name"`
	}
	calls := 0
	load := func(context.Context) (carrier, error) {
		calls++
		return carrier{Name: "ACME"}, nil
	}

	first, err := GetOrLoad(ctx, c, "carrier:1", time.Hour, load)
	require.NoError(t, err)
	second, err := GetOrLoad(ctx, c, "carrier:1", time.Hour, load)
	require.NoError(t, err)

	assert.Equal(t, "ACME", first.Name)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)

	boom := errors.New("upstream down")
	_, err = GetOrLoad(ctx, c, "carrier:2", time.Hour, func(context.Context) (carrier, error) {
		return carrier{}, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, c.Get(ctx, "carrier:2"))
}
