package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/marketlens/marketlens/internal/core"
	"github.com/marketlens/marketlens/internal/core/engine"
)

// DailyFetcher serves guarded daily-series fetches.
type DailyFetcher struct {
	Client      *AlphaVantage
	Guard       *engine.Guard
	TTL         TTLPolicy
	OutputSize  string
	ToolVersion string
	Clock       func() time.Time
}

// Fetch resolves the daily series for the requested symbol through
// the guard: cache first, then quota, then the provider.
func (f *DailyFetcher) Fetch(ctx context.Context, req core.FetchRequest) (*core.FetchResult, error) {
	if f == nil || f.Client == nil {
		return nil, errors.New("daily fetcher is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	symbol := core.NormalizeSymbol(req.Symbol)
	if symbol == "" {
		return nil, errors.New("symbol is required")
	}

	requestedAt := f.now()

	key := ""
	if !req.NoCache {
		key = CacheKey(core.FetchKindDaily, symbol)
	}

	outcome, err := f.Guard.DoTTL(ctx, key, req.Identity, cacheTTL(f.TTL, core.FetchKindDaily), func(ctx context.Context) ([]byte, error) {
		series, err := f.Client.Daily(ctx, symbol, f.OutputSize)
		if err != nil {
			return nil, err
		}
		return json.Marshal(series)
	})
	if err != nil {
		return nil, err
	}

	result := newResult(symbol, core.FetchKindDaily, "", outcome, providerAlphaVantage, f.ToolVersion, requestedAt, f.now())
	if outcome.Status != engine.StatusDenied {
		series := &core.Series{}
		if err := json.Unmarshal(outcome.Value, series); err != nil {
			return nil, fmt.Errorf("decode daily series for %s: %w", symbol, err)
		}
		result.Series = series
	}
	return result, nil
}

// Kind returns the fetch kind this fetcher serves.
func (f *DailyFetcher) Kind() core.FetchKind {
	return core.FetchKindDaily
}

// Supports reports whether value looks like a ticker symbol.
func (f *DailyFetcher) Supports(symbol string) bool {
	return supportedSymbol(symbol)
}

func (f *DailyFetcher) now() time.Time {
	if f != nil && f.Clock != nil {
		return f.Clock()
	}
	return time.Now().UTC()
}
