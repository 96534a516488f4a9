package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestRedisBackend_Integration(t *testing.T) {
	probe := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer probe.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := probe.Ping(ctx).Err(); err != nil {
		t.Skipf("Skipping integration test: redis not available (%v)", err)
	}

	prefix := fmt.Sprintf("marketlens_test_%d:", time.Now().UnixNano())

	backend, err := NewRedis(RedisConfig{Addr: "localhost:6379", KeyPrefix: prefix})
	require.NoError(t, err)
	defer backend.Close()

	require.NoError(t, backend.Set(ctx, "daily_AAPL", []byte("v"), time.Minute))

	value, ok, err := backend.Get(ctx, "daily_AAPL")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v"), value)

	_, ok, err = backend.Get(ctx, "absent")
	require.NoError(t, err)
	require.False(t, ok)

	stats, err := backend.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, stats.Entries)

	removed, err := backend.Clear(ctx, "")
	require.NoError(t, err)
	require.Equal(t, 1, removed)

	_, ok, err = backend.Get(ctx, "daily_AAPL")
	require.NoError(t, err)
	require.False(t, ok)
}
