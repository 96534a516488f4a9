package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memoryResponseCache struct {
	entries map[string][]byte
	getErr  error
	setErr  error
	sets    int
}

func (m *memoryResponseCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if m.getErr != nil {
		return nil, false, m.getErr
	}
	value, ok := m.entries[key]
	return value, ok, nil
}

func (m *memoryResponseCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if m.setErr != nil {
		return m.setErr
	}
	if m.entries == nil {
		m.entries = make(map[string][]byte)
	}
	m.entries[key] = value
	m.sets++
	return nil
}

func newTestGuard(t *testing.T, maxCalls int) (*Guard, *memoryResponseCache) {
	t.Helper()

	limiter, err := NewLimiter(QuotaConfig{MaxCalls: maxCalls, Window: time.Minute})
	require.NoError(t, err)

	responses := &memoryResponseCache{}
	guard := &Guard{Cache: responses, Limiter: limiter, TTL: time.Minute}
	return guard, responses
}

func TestGuardServesFromCache(t *testing.T) {
	guard, responses := newTestGuard(t, 5)
	responses.entries = map[string][]byte{"daily_AAPL": []byte(`{"cached":true}`)}

	workCalls := 0
	outcome, err := guard.Do(context.Background(), "daily_AAPL", "u1", func(ctx context.Context) ([]byte, error) {
		workCalls++
		return []byte("fresh"), nil
	})

	require.NoError(t, err)
	require.Equal(t, StatusCacheHit, outcome.Status)
	require.True(t, outcome.FromCache)
	require.Equal(t, "Served from cache", outcome.Message)
	require.Equal(t, []byte(`{"cached":true}`), outcome.Value)
	require.Zero(t, workCalls)
	require.Equal(t, 5, guard.Limiter.Remaining("u1"))
}

func TestGuardDeniesWithoutRunningWork(t *testing.T) {
	guard, _ := newTestGuard(t, 0)

	workCalls := 0
	outcome, err := guard.Do(context.Background(), "daily_AAPL", "u1", func(ctx context.Context) ([]byte, error) {
		workCalls++
		return []byte("fresh"), nil
	})

	require.NoError(t, err)
	require.Equal(t, StatusDenied, outcome.Status)
	require.False(t, outcome.FromCache)
	require.Contains(t, outcome.Message, "Rate limit reached")
	require.Zero(t, workCalls)
}

func TestGuardCachesSuccess(t *testing.T) {
	guard, responses := newTestGuard(t, 5)

	workCalls := 0
	work := func(ctx context.Context) ([]byte, error) {
		workCalls++
		return []byte("payload"), nil
	}

	outcome, err := guard.Do(context.Background(), "daily_AAPL", "u1", work)
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, outcome.Status)
	require.Equal(t, "Success. 4 calls remaining", outcome.Message)
	require.Equal(t, 4, outcome.Remaining)
	require.Equal(t, 1, workCalls)
	require.Equal(t, 1, responses.sets)

	outcome, err = guard.Do(context.Background(), "daily_AAPL", "u1", work)
	require.NoError(t, err)
	require.Equal(t, StatusCacheHit, outcome.Status)
	require.Equal(t, 1, workCalls)
	require.Equal(t, 4, guard.Limiter.Remaining("u1"))
}

func TestGuardNeverCachesFailure(t *testing.T) {
	guard, responses := newTestGuard(t, 5)

	workErr := errors.New("upstream exploded")
	workCalls := 0
	work := func(ctx context.Context) ([]byte, error) {
		workCalls++
		return nil, workErr
	}

	_, err := guard.Do(context.Background(), "daily_AAPL", "u1", work)
	require.ErrorIs(t, err, workErr)
	require.Zero(t, responses.sets)

	// A failing call still consumed its slot, and the next attempt
	// re-invokes the work.
	require.Equal(t, 4, guard.Limiter.Remaining("u1"))

	_, err = guard.Do(context.Background(), "daily_AAPL", "u1", work)
	require.ErrorIs(t, err, workErr)
	require.Equal(t, 2, workCalls)
}

func TestGuardSlotNotRefundedOnFailure(t *testing.T) {
	guard, _ := newTestGuard(t, 1)

	_, err := guard.Do(context.Background(), "daily_AAPL", "u1", func(ctx context.Context) ([]byte, error) {
		return nil, errors.New("boom")
	})
	require.Error(t, err)

	outcome, err := guard.Do(context.Background(), "daily_MSFT", "u1", func(ctx context.Context) ([]byte, error) {
		return []byte("fresh"), nil
	})
	require.NoError(t, err)
	require.Equal(t, StatusDenied, outcome.Status)
}

func TestGuardZeroTTLSkipsCacheWrite(t *testing.T) {
	guard, responses := newTestGuard(t, 5)
	guard.TTL = 0

	workCalls := 0
	work := func(ctx context.Context) ([]byte, error) {
		workCalls++
		return []byte("payload"), nil
	}

	for i := 0; i < 2; i++ {
		outcome, err := guard.Do(context.Background(), "daily_AAPL", "u1", work)
		require.NoError(t, err)
		require.Equal(t, StatusSuccess, outcome.Status)
	}

	require.Equal(t, 2, workCalls)
	require.Zero(t, responses.sets)
}

func TestGuardCacheGetErrorDegradesToMiss(t *testing.T) {
	guard, responses := newTestGuard(t, 5)
	responses.getErr = errors.New("backend down")

	workCalls := 0
	outcome, err := guard.Do(context.Background(), "daily_AAPL", "u1", func(ctx context.Context) ([]byte, error) {
		workCalls++
		return []byte("payload"), nil
	})

	require.NoError(t, err)
	require.Equal(t, StatusSuccess, outcome.Status)
	require.Equal(t, 1, workCalls)
}

func TestGuardCacheSetErrorDoesNotFailCall(t *testing.T) {
	guard, responses := newTestGuard(t, 5)
	responses.setErr = errors.New("backend down")

	outcome, err := guard.Do(context.Background(), "daily_AAPL", "u1", func(ctx context.Context) ([]byte, error) {
		return []byte("payload"), nil
	})

	require.NoError(t, err)
	require.Equal(t, StatusSuccess, outcome.Status)
}

func TestGuardWithoutLimiter(t *testing.T) {
	responses := &memoryResponseCache{}
	guard := &Guard{Cache: responses, TTL: time.Minute}

	outcome, err := guard.Do(context.Background(), "daily_AAPL", "u1", func(ctx context.Context) ([]byte, error) {
		return []byte("payload"), nil
	})

	require.NoError(t, err)
	require.Equal(t, StatusSuccess, outcome.Status)
	require.Equal(t, "Success", outcome.Message)
}

func TestGuardRequiresWork(t *testing.T) {
	guard, _ := newTestGuard(t, 5)

	_, err := guard.Do(context.Background(), "daily_AAPL", "u1", nil)
	require.Error(t, err)
}
