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

// SectorFetcher serves guarded sector-performance fetches. The
// request symbol is ignored; sector performance is market-wide.
type SectorFetcher struct {
	Client      *AlphaVantage
	Guard       *engine.Guard
	TTL         TTLPolicy
	ToolVersion string
	Clock       func() time.Time
}

// Fetch resolves sector performance through the guard.
func (f *SectorFetcher) Fetch(ctx context.Context, req core.FetchRequest) (*core.FetchResult, error) {
	if f == nil || f.Client == nil {
		return nil, errors.New("sector fetcher is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	requestedAt := f.now()

	key := ""
	if !req.NoCache {
		key = CacheKey(core.FetchKindSector)
	}

	outcome, err := f.Guard.DoTTL(ctx, key, req.Identity, cacheTTL(f.TTL, core.FetchKindSector), func(ctx context.Context) ([]byte, error) {
		sectors, err := f.Client.SectorPerformance(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(sectors)
	})
	if err != nil {
		return nil, err
	}

	result := newResult("", core.FetchKindSector, "", outcome, providerAlphaVantage, f.ToolVersion, requestedAt, f.now())
	if outcome.Status != engine.StatusDenied {
		var sectors []core.SectorPerformance
		if err := json.Unmarshal(outcome.Value, &sectors); err != nil {
			return nil, fmt.Errorf("decode sector performance: %w", err)
		}
		result.Sectors = sectors
	}
	return result, nil
}

// Kind returns the fetch kind this fetcher serves.
func (f *SectorFetcher) Kind() core.FetchKind {
	return core.FetchKindSector
}

// Supports accepts any value; sector performance takes no symbol.
func (f *SectorFetcher) Supports(string) bool {
	return true
}

func (f *SectorFetcher) now() time.Time {
	if f != nil && f.Clock != nil {
		return f.Clock()
	}
	return time.Now().UTC()
}
