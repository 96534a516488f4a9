package cmd

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fulmenhq/gofulmen/logging"
	"github.com/marketlens/marketlens/internal/config"
	"github.com/marketlens/marketlens/internal/core"
	"github.com/marketlens/marketlens/internal/core/cache"
	"github.com/marketlens/marketlens/internal/core/engine"
	"github.com/marketlens/marketlens/internal/core/fetcher"
	"github.com/marketlens/marketlens/internal/core/store"
	"github.com/marketlens/marketlens/internal/observability"
)

const providerHTTPTimeout = 30 * time.Second

// buildCache assembles the response cache from config. The "store"
// backend reuses the already-open database; an unreachable redis
// degrades to memory inside cache.New.
func buildCache(cfg *config.Config, db *store.Store, logger *logging.Logger) *cache.Store {
	opts := cache.Options{
		Backend:       cfg.Cache.Backend,
		DefaultTTL:    cfg.Cache.DefaultTTL,
		SweepInterval: cfg.Cache.SweepInterval,
		Redis: cache.RedisConfig{
			Addr:      cfg.Cache.Redis.Addr,
			Password:  cfg.Cache.Redis.Password,
			DB:        cfg.Cache.Redis.DB,
			KeyPrefix: cfg.Cache.Redis.KeyPrefix,
		},
	}
	if strings.EqualFold(strings.TrimSpace(cfg.Cache.Backend), cache.BackendStore) && db != nil {
		opts.External = store.NewCache(db)
	}
	return cache.New(opts, logger)
}

// buildLimiter assembles the shared rejecting limiter from the quota
// config.
func buildLimiter(cfg *config.Config) (*engine.Limiter, error) {
	return engine.NewLimiter(engine.QuotaConfig{
		MaxCalls: cfg.Quota.MaxCalls,
		Window:   cfg.Quota.Window,
		CacheTTL: cfg.Quota.CacheTTL,
	})
}

func ttlPolicyFromConfig(cfg *config.Config) fetcher.TTLPolicy {
	return fetcher.TTLPolicy{
		SeriesTTL:    cfg.Cache.SeriesTTL,
		IntradayTTL:  cfg.Cache.IntradayTTL,
		IndicatorTTL: cfg.Cache.IndicatorTTL,
		NewsTTL:      cfg.Cache.NewsTTL,
		ErrorTTL:     cfg.Cache.ErrorTTL,
	}
}

// buildMarketClient constructs the throttled Alpha Vantage client.
func buildMarketClient(cfg *config.Config, logger *logging.Logger) *fetcher.AlphaVantage {
	client := &fetcher.AlphaVantage{
		APIKey:  cfg.Providers.AlphaVantage.APIKey,
		BaseURL: cfg.Providers.AlphaVantage.BaseURL,
		Client:  &http.Client{Timeout: providerHTTPTimeout},
	}

	throttle, err := engine.NewThrottle(cfg.Providers.AlphaVantage.CallsPerMinute)
	if err != nil {
		logger.Warn("Provider throttle disabled", zap.Error(err))
		return client
	}
	throttle.Logger = logger
	client.Throttle = throttle

	return client
}

func buildNewsClient(cfg *config.Config) *fetcher.NewsAPI {
	return &fetcher.NewsAPI{
		APIKey:  cfg.Providers.NewsAPI.APIKey,
		BaseURL: cfg.Providers.NewsAPI.BaseURL,
		Client:  &http.Client{Timeout: providerHTTPTimeout},
	}
}

// buildOrchestrator wires the guarded fetchers for every fetch kind.
func buildOrchestrator(cfg *config.Config, db *store.Store, logger *logging.Logger) (*engine.Orchestrator, *engine.Limiter, *cache.Store, error) {
	limiter, err := buildLimiter(cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	responses := buildCache(cfg, db, logger)
	guard := &engine.Guard{Cache: responses, Limiter: limiter}
	client := buildMarketClient(cfg, logger)
	ttl := ttlPolicyFromConfig(cfg)

	daily := &fetcher.DailyFetcher{
		Client:      client,
		Guard:       guard,
		TTL:         ttl,
		OutputSize:  cfg.Providers.AlphaVantage.OutputSize,
		ToolVersion: versionInfo.Version,
	}
	intraday := &fetcher.IntradayFetcher{
		Client:      client,
		Guard:       guard,
		TTL:         ttl,
		OutputSize:  cfg.Providers.AlphaVantage.OutputSize,
		ToolVersion: versionInfo.Version,
	}
	sector := &fetcher.SectorFetcher{
		Client:      client,
		Guard:       guard,
		TTL:         ttl,
		ToolVersion: versionInfo.Version,
	}
	news := &fetcher.NewsFetcher{
		Client:      buildNewsClient(cfg),
		Feeds:       cfg.Providers.RSS.Feeds,
		HTTPClient:  &http.Client{Timeout: providerHTTPTimeout},
		Guard:       guard,
		TTL:         ttl,
		ToolVersion: versionInfo.Version,
	}

	fetchers := map[core.FetchKind]engine.Fetcher{
		core.FetchKindDaily:    daily,
		core.FetchKindIntraday: intraday,
		core.FetchKindSector:   sector,
		core.FetchKindNews:     news,
	}
	for _, kind := range []core.FetchKind{core.FetchKindRSI, core.FetchKindMACD, core.FetchKindBBands} {
		fetchers[kind] = &fetcher.IndicatorFetcher{
			Indicator:   kind,
			Client:      client,
			Guard:       guard,
			TTL:         ttl,
			ToolVersion: versionInfo.Version,
		}
	}

	return &engine.Orchestrator{Fetchers: fetchers}, limiter, responses, nil
}

// fetchResult runs one request through the orchestrator and folds a
// fetcher failure into an error row instead of aborting the command,
// so one failed kind never suppresses sibling results.
func fetchResult(ctx context.Context, orchestrator *engine.Orchestrator, req core.FetchRequest) *core.FetchResult {
	result, err := orchestrator.Fetch(ctx, req)
	if err != nil {
		observability.CLILogger.Warn("Fetch failed",
			zap.String("symbol", req.Symbol),
			zap.String("kind", string(req.Kind)),
			zap.Error(err))
		now := time.Now().UTC()
		return &core.FetchResult{
			Symbol:   core.NormalizeSymbol(req.Symbol),
			Kind:     req.Kind,
			Interval: req.Interval,
			Status:   core.FetchStatusError,
			Message:  err.Error(),
			Provenance: core.Provenance{
				RequestedAt: now,
				ResolvedAt:  now,
			},
		}
	}
	return result
}
