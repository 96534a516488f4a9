package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/marketlens/marketlens/internal/core"
	"github.com/marketlens/marketlens/internal/core/engine"
)

// IndicatorFetcher serves guarded technical-indicator fetches for one
// indicator kind: rsi, macd or bbands.
type IndicatorFetcher struct {
	Indicator   core.FetchKind
	Client      *AlphaVantage
	Guard       *engine.Guard
	TTL         TTLPolicy
	ToolVersion string
	Clock       func() time.Time
}

// Fetch resolves the indicator series for the requested symbol
// through the guard. Interval defaults to "daily"; period defaults to
// the indicator's conventional lookback.
func (f *IndicatorFetcher) Fetch(ctx context.Context, req core.FetchRequest) (*core.FetchResult, error) {
	if f == nil || f.Client == nil {
		return nil, errors.New("indicator fetcher is not configured")
	}
	switch f.Indicator {
	case core.FetchKindRSI, core.FetchKindMACD, core.FetchKindBBands:
	default:
		return nil, fmt.Errorf("unsupported indicator kind %q", f.Indicator)
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
		interval = "daily"
	}

	period := req.Period
	if period <= 0 {
		if f.Indicator == core.FetchKindBBands {
			period = 20
		} else {
			period = 14
		}
	}

	requestedAt := f.now()

	key := ""
	if !req.NoCache {
		if f.Indicator == core.FetchKindMACD {
			key = CacheKey(f.Indicator, symbol, interval)
		} else {
			key = CacheKey(f.Indicator, symbol, interval, strconv.Itoa(period))
		}
	}

	outcome, err := f.Guard.DoTTL(ctx, key, req.Identity, cacheTTL(f.TTL, f.Indicator), func(ctx context.Context) ([]byte, error) {
		var series *core.Series
		var err error
		switch f.Indicator {
		case core.FetchKindRSI:
			series, err = f.Client.RSI(ctx, symbol, interval, period)
		case core.FetchKindMACD:
			series, err = f.Client.MACD(ctx, symbol, interval)
		default:
			series, err = f.Client.BollingerBands(ctx, symbol, interval, period)
		}
		if err != nil {
			return nil, err
		}
		return json.Marshal(series)
	})
	if err != nil {
		return nil, err
	}

	result := newResult(symbol, f.Indicator, interval, outcome, providerAlphaVantage, f.ToolVersion, requestedAt, f.now())
	if outcome.Status != engine.StatusDenied {
		series := &core.Series{}
		if err := json.Unmarshal(outcome.Value, series); err != nil {
			return nil, fmt.Errorf("decode %s series for %s: %w", f.Indicator, symbol, err)
		}
		result.Series = series
	}
	return result, nil
}

// Kind returns the indicator kind this fetcher serves.
func (f *IndicatorFetcher) Kind() core.FetchKind {
	return f.Indicator
}

// Supports reports whether value looks like a ticker symbol.
func (f *IndicatorFetcher) Supports(symbol string) bool {
	return supportedSymbol(symbol)
}

func (f *IndicatorFetcher) now() time.Time {
	if f != nil && f.Clock != nil {
		return f.Clock()
	}
	return time.Now().UTC()
}
