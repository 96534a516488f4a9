package config

import (
	"time"
)

// Config represents the complete application configuration
// following the Fulmen Forge Workhorse Standard three-layer pattern:
// Layer 1: Crucible defaults (config/marketlens/v0/marketlens-defaults.yaml)
// Layer 2: User overrides (~/.config/marketlens/marketlens/config.yaml)
// Layer 3: Environment variables and runtime overrides
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Store     StoreConfig     `mapstructure:"store"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Quota     QuotaConfig     `mapstructure:"quota"`
	HTTPLimit HTTPLimitConfig `mapstructure:"http_limit"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Health    HealthConfig    `mapstructure:"health"`
	Debug     DebugConfig     `mapstructure:"debug"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StoreConfig contains database configuration for libsql/Turso
type StoreConfig struct {
	Driver    string `mapstructure:"driver"`
	Path      string `mapstructure:"path"`
	URL       string `mapstructure:"url"`
	AuthToken string `mapstructure:"auth_token"`
}

// CacheConfig selects the response-cache backend and its TTLs.
type CacheConfig struct {
	// Backend names the cache implementation: memory, redis or store.
	Backend       string        `mapstructure:"backend"`
	DefaultTTL    time.Duration `mapstructure:"default_ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	Redis         RedisConfig   `mapstructure:"redis"`

	// Per-kind response TTLs for the market fetchers.
	SeriesTTL    time.Duration `mapstructure:"series_ttl"`
	IntradayTTL  time.Duration `mapstructure:"intraday_ttl"`
	IndicatorTTL time.Duration `mapstructure:"indicator_ttl"`
	NewsTTL      time.Duration `mapstructure:"news_ttl"`
	ErrorTTL     time.Duration `mapstructure:"error_ttl"`
}

// RedisConfig contains redis cache backend settings.
type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// ProvidersConfig contains upstream market-data provider settings.
type ProvidersConfig struct {
	AlphaVantage AlphaVantageConfig `mapstructure:"alphavantage"`
	NewsAPI      NewsAPIConfig      `mapstructure:"newsapi"`
	RSS          RSSConfig          `mapstructure:"rss"`
}

// AlphaVantageConfig configures the Alpha Vantage client.
type AlphaVantageConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`

	// CallsPerMinute drives the blocking throttle on the bulk path.
	CallsPerMinute int `mapstructure:"calls_per_minute"`

	// OutputSize is the default series depth: compact or full.
	OutputSize string `mapstructure:"output_size"`
}

// NewsAPIConfig configures the NewsAPI client.
type NewsAPIConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

// RSSConfig configures the RSS news fallback.
type RSSConfig struct {
	Feeds []string `mapstructure:"feeds"`
}

// QuotaConfig bounds guarded interactive calls per identity within a
// sliding window.
type QuotaConfig struct {
	MaxCalls int           `mapstructure:"max_calls"`
	Window   time.Duration `mapstructure:"window"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// HTTPLimitConfig bounds inbound API requests per client.
type HTTPLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	MaxCalls int           `mapstructure:"max_calls"`
	Window   time.Duration `mapstructure:"window"`
}

// LoggingConfig contains logging configuration
// Supports progressive logging profiles per Fulmen Forge Workhorse Standard:
// - SIMPLE: Console output only, minimal configuration (CLI tools)
// - STRUCTURED: Structured sinks, correlation IDs (API services)
// - ENTERPRISE: Multiple sinks, middleware, throttling, policy enforcement (production)
type LoggingConfig struct {
	// Level controls the minimum log level
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level"`

	// Profile selects the logging complexity level
	// Valid values: SIMPLE, STRUCTURED, ENTERPRISE
	// See: gofulmen/docs/crucible-go/standards/observability/logging.md
	Profile string `mapstructure:"profile"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	// Enabled controls whether metrics are exposed
	Enabled bool `mapstructure:"enabled"`

	// Port is the dedicated metrics endpoint port (Prometheus format)
	// Metrics are also available at the main HTTP port in JSON format
	Port int `mapstructure:"port"`
}

// HealthConfig contains health check configuration
type HealthConfig struct {
	// Enabled controls whether health endpoints are exposed
	Enabled bool `mapstructure:"enabled"`
}

// DebugConfig contains debug and profiling configuration
type DebugConfig struct {
	// Enabled controls whether debug mode is active
	Enabled bool `mapstructure:"enabled"`

	// PprofEnabled controls whether pprof endpoints are exposed
	// WARNING: Only enable in development/staging environments
	PprofEnabled bool `mapstructure:"pprof_enabled"`
}
