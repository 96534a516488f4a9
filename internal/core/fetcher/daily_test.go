package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/marketlens/marketlens/internal/core"
	"github.com/marketlens/marketlens/internal/core/cache"
	"github.com/marketlens/marketlens/internal/core/engine"
)

func newTestGuard(t *testing.T, maxCalls int) *engine.Guard {
	t.Helper()

	limiter, err := engine.NewLimiter(engine.QuotaConfig{MaxCalls: maxCalls, Window: time.Minute})
	require.NoError(t, err)

	return &engine.Guard{Cache: cache.NewMemory(), Limiter: limiter}
}

func TestDailyFetcherGuardedFlow(t *testing.T) {
	hits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(dailyPayload))
	}))
	defer server.Close()

	fetcher := &DailyFetcher{
		Client:      &AlphaVantage{APIKey: "demo", BaseURL: server.URL, Client: server.Client()},
		Guard:       newTestGuard(t, 5),
		ToolVersion: "test",
	}

	result, err := fetcher.Fetch(context.Background(), core.FetchRequest{Symbol: " aapl "})
	require.NoError(t, err)
	require.Equal(t, core.FetchStatusOK, result.Status)
	require.Equal(t, "AAPL", result.Symbol)
	require.Equal(t, "Success. 4 calls remaining", result.Message)
	require.False(t, result.Provenance.FromCache)
	require.Equal(t, providerAlphaVantage, result.Provenance.Provider)
	require.NotEmpty(t, result.Provenance.FetchID)
	require.Len(t, result.Series.Points, 2)
	require.Equal(t, 1, hits)

	cached, err := fetcher.Fetch(context.Background(), core.FetchRequest{Symbol: "AAPL"})
	require.NoError(t, err)
	require.Equal(t, core.FetchStatusOK, cached.Status)
	require.Equal(t, "Served from cache", cached.Message)
	require.True(t, cached.Provenance.FromCache)
	require.Len(t, cached.Series.Points, 2)
	require.Equal(t, 1, hits)
}

func TestDailyFetcherDeniedBeforeProviderCall(t *testing.T) {
	hits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
	}))
	defer server.Close()

	fetcher := &DailyFetcher{
		Client: &AlphaVantage{APIKey: "demo", BaseURL: server.URL, Client: server.Client()},
		Guard:  newTestGuard(t, 0),
	}

	result, err := fetcher.Fetch(context.Background(), core.FetchRequest{Symbol: "AAPL"})
	require.NoError(t, err)
	require.Equal(t, core.FetchStatusDenied, result.Status)
	require.Contains(t, result.Message, "Rate limit reached")
	require.Nil(t, result.Series)
	require.Equal(t, 0, hits)
}

func TestDailyFetcherNoCacheBypassesCache(t *testing.T) {
	hits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(dailyPayload))
	}))
	defer server.Close()

	fetcher := &DailyFetcher{
		Client: &AlphaVantage{APIKey: "demo", BaseURL: server.URL, Client: server.Client()},
		Guard:  newTestGuard(t, 5),
	}

	for i := 0; i < 2; i++ {
		result, err := fetcher.Fetch(context.Background(), core.FetchRequest{Symbol: "AAPL", NoCache: true})
		require.NoError(t, err)
		require.Equal(t, core.FetchStatusOK, result.Status)
		require.False(t, result.Provenance.FromCache)
	}
	require.Equal(t, 2, hits)
}

func TestDailyFetcherProviderErrorPropagates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	guard := newTestGuard(t, 5)
	fetcher := &DailyFetcher{
		Client: &AlphaVantage{APIKey: "demo", BaseURL: server.URL, Client: server.Client()},
		Guard:  guard,
	}

	_, err := fetcher.Fetch(context.Background(), core.FetchRequest{Symbol: "AAPL"})
	require.ErrorContains(t, err, "alpha vantage returned status 500")

	// The failed call spent a quota slot and cached nothing.
	require.Equal(t, 4, guard.Limiter.Remaining(engine.DefaultIdentity))
	_, err = fetcher.Fetch(context.Background(), core.FetchRequest{Symbol: "AAPL"})
	require.Error(t, err)
}

func TestDailyFetcherRequiresSymbol(t *testing.T) {
	fetcher := &DailyFetcher{Client: &AlphaVantage{APIKey: "demo"}}

	_, err := fetcher.Fetch(context.Background(), core.FetchRequest{Symbol: "   "})
	require.ErrorContains(t, err, "symbol is required")
}

func TestDailyFetcherSupports(t *testing.T) {
	fetcher := &DailyFetcher{}

	require.True(t, fetcher.Supports("AAPL"))
	require.True(t, fetcher.Supports(" brk.b "))
	require.False(t, fetcher.Supports(""))
	require.False(t, fetcher.Supports("WAYTOOLONGSYMBOL"))
	require.False(t, fetcher.Supports("not a symbol"))
}
