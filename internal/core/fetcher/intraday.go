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

// IntradayFetcher serves guarded intraday-series fetches.
type IntradayFetcher struct {
	Client      *AlphaVantage
	Guard       *engine.Guard
	TTL         TTLPolicy
	OutputSize  string
	ToolVersion string
	Clock       func() time.Time
}

// Fetch resolves the intraday series for the requested symbol and
// interval through the guard.
func (f *IntradayFetcher) Fetch(ctx context.Context, req core.FetchRequest) (*core.FetchResult, error) {
	if f == nil || f.Client == nil {
		return nil, errors.New("intraday fetcher is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	symbol := core.NormalizeSymbol(req.Symbol)
	if symbol == "" {
		return nil, errors.New("symbol is required")
	}

	interval := req.Interval
	if interval == "" {
		interval = "5min"
	}
	if !intradayIntervals[interval] {
		return nil, fmt.Errorf("unsupported intraday interval %q", interval)
	}

	requestedAt := f.now()

	key := ""
	if !req.NoCache {
		key = CacheKey(core.FetchKindIntraday, symbol, interval)
	}

	outcome, err := f.Guard.DoTTL(ctx, key, req.Identity, cacheTTL(f.TTL, core.FetchKindIntraday), func(ctx context.Context) ([]byte, error) {
		series, err := f.Client.Intraday(ctx, symbol, interval, f.OutputSize)
		if err != nil {
			return nil, err
		}
		return json.Marshal(series)
	})
	if err != nil {
		return nil, err
	}

	result := newResult(symbol, core.FetchKindIntraday, interval, outcome, providerAlphaVantage, f.ToolVersion, requestedAt, f.now())
	if outcome.Status != engine.StatusDenied {
		series := &core.Series{}
		if err := json.Unmarshal(outcome.Value, series); err != nil {
			return nil, fmt.Errorf("decode intraday series for %s: %w", symbol, err)
		}
		result.Series = series
	}
	return result, nil
}

// Kind returns the fetch kind this fetcher serves.
func (f *IntradayFetcher) Kind() core.FetchKind {
	return core.FetchKindIntraday
}

// Supports reports whether value looks like a ticker symbol.
func (f *IntradayFetcher) Supports(symbol string) bool {
	return supportedSymbol(symbol)
}

func (f *IntradayFetcher) now() time.Time {
	if f != nil && f.Clock != nil {
		return f.Clock()
	}
	return time.Now().UTC()
}
