package fetcher

import (
	"time"

	"github.com/marketlens/marketlens/internal/core"
)

// TTLPolicy controls cache TTLs per fetch kind.
type TTLPolicy struct {
	SeriesTTL    time.Duration
	IntradayTTL  time.Duration
	IndicatorTTL time.Duration
	NewsTTL      time.Duration
	ErrorTTL     time.Duration
}

func ttlPolicyWithDefaults(policy TTLPolicy) TTLPolicy {
	if policy.SeriesTTL == 0 {
		policy.SeriesTTL = 5 * time.Minute
	}
	if policy.IntradayTTL == 0 {
		policy.IntradayTTL = 5 * time.Minute
	}
	if policy.IndicatorTTL == 0 {
		policy.IndicatorTTL = time.Hour
	}
	if policy.NewsTTL == 0 {
		policy.NewsTTL = 30 * time.Minute
	}
	if policy.ErrorTTL == 0 {
		policy.ErrorTTL = 30 * time.Second
	}
	return policy
}

func cacheTTL(policy TTLPolicy, kind core.FetchKind) time.Duration {
	policy = ttlPolicyWithDefaults(policy)

	switch kind {
	case core.FetchKindDaily, core.FetchKindSector:
		return policy.SeriesTTL
	case core.FetchKindIntraday:
		return policy.IntradayTTL
	case core.FetchKindRSI, core.FetchKindMACD, core.FetchKindBBands:
		return policy.IndicatorTTL
	case core.FetchKindNews:
		return policy.NewsTTL
	default:
		return policy.ErrorTTL
	}
}
