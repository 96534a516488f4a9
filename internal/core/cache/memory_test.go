package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestMemory() (*Memory, *time.Time) {
	mem := NewMemory()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	mem.Clock = func() time.Time { return now }
	return mem, &now
}

func TestMemoryRoundTrip(t *testing.T) {
	mem, now := newTestMemory()
	ctx := context.Background()

	require.NoError(t, mem.Set(ctx, "daily_AAPL", []byte(`{"close":123.4}`), time.Minute))

	*now = now.Add(59 * time.Second)

	value, ok, err := mem.Get(ctx, "daily_AAPL")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte(`{"close":123.4}`), value)
}

func TestMemoryExpiresOnRead(t *testing.T) {
	mem, now := newTestMemory()
	ctx := context.Background()

	require.NoError(t, mem.Set(ctx, "daily_AAPL", []byte("v"), time.Minute))

	// A full TTL elapsed is a miss, and the read evicts the entry.
	*now = now.Add(time.Minute)

	_, ok, err := mem.Get(ctx, "daily_AAPL")
	require.NoError(t, err)
	require.False(t, ok)
	require.Zero(t, mem.Len())
}

func TestMemoryMissingKey(t *testing.T) {
	mem, _ := newTestMemory()

	_, ok, err := mem.Get(context.Background(), "absent")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemoryZeroTTLStoresNothing(t *testing.T) {
	mem, _ := newTestMemory()
	ctx := context.Background()

	require.NoError(t, mem.Set(ctx, "k", []byte("v"), 0))
	require.NoError(t, mem.Set(ctx, "k", []byte("v"), -time.Second))
	require.Zero(t, mem.Len())
}

func TestMemoryOverwriteRefreshesTTL(t *testing.T) {
	mem, now := newTestMemory()
	ctx := context.Background()

	require.NoError(t, mem.Set(ctx, "k", []byte("old"), time.Minute))

	*now = now.Add(30 * time.Second)
	require.NoError(t, mem.Set(ctx, "k", []byte("new"), time.Minute))

	// 75s after the first write the original entry would be long
	// expired; the refreshed one is still live.
	*now = now.Add(45 * time.Second)

	value, ok, err := mem.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("new"), value)
}

func TestMemorySweep(t *testing.T) {
	mem, now := newTestMemory()
	ctx := context.Background()

	require.NoError(t, mem.Set(ctx, "long", []byte("v"), time.Minute))
	require.NoError(t, mem.Set(ctx, "short", []byte("v"), 30*time.Second))

	*now = now.Add(45 * time.Second)

	removed, err := mem.Sweep(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, removed)
	require.Equal(t, 1, mem.Len())

	_, ok, err := mem.Get(ctx, "long")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestMemoryClearByPrefix(t *testing.T) {
	mem, _ := newTestMemory()
	ctx := context.Background()

	require.NoError(t, mem.Set(ctx, "daily_AAPL", []byte("v"), time.Minute))
	require.NoError(t, mem.Set(ctx, "daily_MSFT", []byte("v"), time.Minute))
	require.NoError(t, mem.Set(ctx, "news_markets", []byte("v"), time.Minute))

	removed, err := mem.Clear(ctx, "daily_")
	require.NoError(t, err)
	require.Equal(t, 2, removed)
	require.Equal(t, 1, mem.Len())

	removed, err = mem.Clear(ctx, "")
	require.NoError(t, err)
	require.Equal(t, 1, removed)
	require.Zero(t, mem.Len())
}

func TestMemoryStats(t *testing.T) {
	mem, now := newTestMemory()
	ctx := context.Background()

	require.NoError(t, mem.Set(ctx, "live", []byte("v"), time.Minute))
	require.NoError(t, mem.Set(ctx, "stale", []byte("v"), 10*time.Second))

	*now = now.Add(30 * time.Second)

	stats, err := mem.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, stats.Entries)
	require.Equal(t, 1, stats.Expired)
}
