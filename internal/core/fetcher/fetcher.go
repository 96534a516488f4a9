// Package fetcher implements the market-data fetchers: a throttled
// Alpha Vantage client for sequential bulk work, guarded per-kind
// fetchers for the interactive path, and news collection from
// NewsAPI or RSS feeds.
package fetcher

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/marketlens/marketlens/internal/core"
	"github.com/marketlens/marketlens/internal/core/engine"
)

const (
	providerAlphaVantage = "alphavantage"
	providerNewsAPI      = "newsapi"
	providerRSS          = "rss"
)

// supportedSymbol reports whether value normalizes to a plausible
// ticker symbol.
func supportedSymbol(symbol string) bool {
	return core.ValidSymbol(core.NormalizeSymbol(symbol))
}

// CacheKey builds the response-cache key for one fetch, joining the
// kind and any non-empty qualifiers with underscores.
func CacheKey(kind core.FetchKind, parts ...string) string {
	key := string(kind)
	for _, part := range parts {
		if part == "" {
			continue
		}
		key += "_" + part
	}
	return key
}

// newResult assembles the result shell for a guard outcome. The
// caller attaches the decoded payload for non-denied outcomes.
func newResult(symbol string, kind core.FetchKind, interval string, outcome *engine.Outcome, provider, toolVersion string, requestedAt, resolvedAt time.Time) *core.FetchResult {
	status := core.FetchStatusOK
	if outcome.Status == engine.StatusDenied {
		status = core.FetchStatusDenied
	}

	return &core.FetchResult{
		Symbol:   symbol,
		Kind:     kind,
		Interval: interval,
		Status:   status,
		Message:  outcome.Message,
		Provenance: core.Provenance{
			FetchID:     uuid.New().String(),
			RequestedAt: requestedAt,
			ResolvedAt:  resolvedAt,
			Provider:    provider,
			FromCache:   outcome.FromCache,
			ToolVersion: toolVersion,
		},
	}
}

// dedupeNews drops items with an empty or already-seen title,
// comparing titles case-insensitively and preserving order.
func dedupeNews(items []core.NewsItem) []core.NewsItem {
	seen := make(map[string]bool, len(items))
	unique := make([]core.NewsItem, 0, len(items))
	for _, item := range items {
		title := strings.ToLower(strings.TrimSpace(item.Title))
		if title == "" || seen[title] {
			continue
		}
		seen[title] = true
		unique = append(unique, item)
	}
	return unique
}
