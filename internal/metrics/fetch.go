package metrics

import (
	"time"

	"github.com/marketlens/marketlens/internal/observability"
)

// Metric names for the market-data fetch path
const (
	FetchTotalName           = "marketlens_fetch_total"
	CacheHitsTotalName       = "marketlens_cache_hits_total"
	CacheMissesTotalName     = "marketlens_cache_misses_total"
	QuotaDenialsTotalName    = "marketlens_quota_denials_total"
	ThrottleSleepsTotalName = "marketlens_throttle_sleeps_total"
	ThrottleSleepMsName     = "marketlens_throttle_sleep_ms"
)

// RecordFetch records a provider fetch with its outcome status
// (success, cached, denied or error)
func RecordFetch(provider, kind, status string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			FetchTotalName,
			1,
			map[string]string{
				"provider": provider,
				"kind":     kind,
				"status":   status,
			},
		)
	}
}

// RecordCacheHit records a fetch served from cache
func RecordCacheHit(kind string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			CacheHitsTotalName,
			1,
			map[string]string{
				"kind": kind,
			},
		)
	}
}

// RecordCacheMiss records a fetch that had to reach the provider
func RecordCacheMiss(kind string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			CacheMissesTotalName,
			1,
			map[string]string{
				"kind": kind,
			},
		)
	}
}

// RecordQuotaDenial records a call denied by the sliding-window limiter
func RecordQuotaDenial(identity string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			QuotaDenialsTotalName,
			1,
			map[string]string{
				"identity": identity,
			},
		)
	}
}

// RecordThrottleSleep records a pacing sleep on the bulk fetch path
func RecordThrottleSleep(duration time.Duration) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			ThrottleSleepsTotalName,
			1,
			nil,
		)

		_ = observability.TelemetrySystem.Histogram(
			ThrottleSleepMsName,
			duration,
			nil,
		)
	}
}
