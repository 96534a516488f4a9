package cmd

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/marketlens/marketlens/internal/config"
	"github.com/marketlens/marketlens/internal/observability"
)

var envInfoCmd = &cobra.Command{
	Use:   "envinfo",
	Short: "Display environment information",
	Long:  "Display comprehensive environment, configuration, and version information.",
	Run: func(cmd *cobra.Command, args []string) {
		version := crucible.GetVersion()

		observability.CLILogger.Info("=== MarketLens Environment Information ===")
		observability.CLILogger.Info("")

		// Application Info
		identity := GetAppIdentity()
		observability.CLILogger.Info("Application:")
		observability.CLILogger.Info("  Name:       " + identity.BinaryName)
		observability.CLILogger.Info("  Version:    " + versionInfo.Version)
		observability.CLILogger.Info("  Commit:     " + versionInfo.Commit)
		observability.CLILogger.Info("  Built:      " + versionInfo.BuildDate)
		observability.CLILogger.Info("")

		// SSOT Info
		observability.CLILogger.Info("SSOT:")
		observability.CLILogger.Info("  Gofulmen:   "+version.Gofulmen, zap.String("gofulmen_version", version.Gofulmen))
		observability.CLILogger.Info("  Crucible:   "+version.Crucible, zap.String("crucible_version", version.Crucible))
		observability.CLILogger.Info("")

		// Runtime Info
		observability.CLILogger.Info("Runtime:")
		observability.CLILogger.Info("  Go Version: "+runtime.Version(), zap.String("go_version", runtime.Version()))
		observability.CLILogger.Info("  GOOS:       "+runtime.GOOS, zap.String("goos", runtime.GOOS))
		observability.CLILogger.Info("  GOARCH:     "+runtime.GOARCH, zap.String("goarch", runtime.GOARCH))
		observability.CLILogger.Info(fmt.Sprintf("  NumCPU:     %d", runtime.NumCPU()), zap.Int("num_cpu", runtime.NumCPU()))
		observability.CLILogger.Info("")

		cfg, err := config.Load(cmd.Context())
		if err != nil {
			observability.CLILogger.Warn("Config load failed", zap.Error(err))
			return
		}

		// Configuration
		observability.CLILogger.Info("Configuration:")
		observability.CLILogger.Info("  Server Host:    "+cfg.Server.Host, zap.String("host", cfg.Server.Host))
		observability.CLILogger.Info(fmt.Sprintf("  Server Port:    %d", cfg.Server.Port), zap.Int("port", cfg.Server.Port))
		observability.CLILogger.Info("  Log Level:      "+cfg.Logging.Level, zap.String("log_level", cfg.Logging.Level))
		observability.CLILogger.Info("  Log Profile:    "+cfg.Logging.Profile, zap.String("log_profile", cfg.Logging.Profile))
		observability.CLILogger.Info("  DB Driver:      "+cfg.Store.Driver, zap.String("db_driver", cfg.Store.Driver))
		if strings.TrimSpace(cfg.Store.URL) != "" {
			observability.CLILogger.Info("  DB URL:         "+cfg.Store.URL, zap.String("db_url", cfg.Store.URL))
		} else {
			observability.CLILogger.Info("  DB Path:        "+cfg.Store.Path, zap.String("db_path", cfg.Store.Path))
		}
		observability.CLILogger.Info(fmt.Sprintf("  Metrics Port:   %d", cfg.Metrics.Port), zap.Int("metrics_port", cfg.Metrics.Port))
		observability.CLILogger.Info("  Config File:    "+config.DefaultConfigPath(), zap.String("config_file", config.DefaultConfigPath()))
		observability.CLILogger.Info("")

		// Provider Configuration
		observability.CLILogger.Info("Providers:")
		observability.CLILogger.Info("  AlphaVantage URL:   " + cfg.Providers.AlphaVantage.BaseURL)
		if strings.TrimSpace(cfg.Providers.AlphaVantage.APIKey) != "" {
			observability.CLILogger.Info("  AlphaVantage Key:   (set)")
		} else {
			observability.CLILogger.Info("  AlphaVantage Key:   (not set)")
		}
		observability.CLILogger.Info(fmt.Sprintf("  Calls Per Minute:   %d", cfg.Providers.AlphaVantage.CallsPerMinute), zap.Int("calls_per_minute", cfg.Providers.AlphaVantage.CallsPerMinute))
		observability.CLILogger.Info("  Output Size:        " + cfg.Providers.AlphaVantage.OutputSize)
		if strings.TrimSpace(cfg.Providers.NewsAPI.APIKey) != "" {
			observability.CLILogger.Info("  NewsAPI Key:        (set)")
		} else {
			observability.CLILogger.Info("  NewsAPI Key:        (not set)")
		}
		observability.CLILogger.Info(fmt.Sprintf("  RSS Feeds:          %d configured", len(cfg.Providers.RSS.Feeds)), zap.Int("rss_feeds", len(cfg.Providers.RSS.Feeds)))
		observability.CLILogger.Info("")

		// Cache Configuration
		observability.CLILogger.Info("Cache:")
		observability.CLILogger.Info("  Backend:        "+cfg.Cache.Backend, zap.String("cache_backend", cfg.Cache.Backend))
		observability.CLILogger.Info("  Default TTL:    " + cfg.Cache.DefaultTTL.String())
		observability.CLILogger.Info("  Series TTL:     " + cfg.Cache.SeriesTTL.String())
		observability.CLILogger.Info("  Intraday TTL:   " + cfg.Cache.IntradayTTL.String())
		observability.CLILogger.Info("  Indicator TTL:  " + cfg.Cache.IndicatorTTL.String())
		observability.CLILogger.Info("  News TTL:       " + cfg.Cache.NewsTTL.String())
		if strings.EqualFold(strings.TrimSpace(cfg.Cache.Backend), "redis") {
			observability.CLILogger.Info("  Redis Addr:     " + cfg.Cache.Redis.Addr)
		}
		observability.CLILogger.Info("")

		// Quota Configuration
		observability.CLILogger.Info("Quota:")
		observability.CLILogger.Info(fmt.Sprintf("  Max Calls:      %d", cfg.Quota.MaxCalls), zap.Int("quota_max_calls", cfg.Quota.MaxCalls))
		observability.CLILogger.Info("  Window:         " + cfg.Quota.Window.String())
		observability.CLILogger.Info("  Cache TTL:      " + cfg.Quota.CacheTTL.String())
		observability.CLILogger.Info(fmt.Sprintf("  HTTP Limit:     %t", cfg.HTTPLimit.Enabled), zap.Bool("http_limit_enabled", cfg.HTTPLimit.Enabled))
		if cfg.HTTPLimit.Enabled {
			observability.CLILogger.Info(fmt.Sprintf("  HTTP Max Calls: %d per %s", cfg.HTTPLimit.MaxCalls, cfg.HTTPLimit.Window))
		}
		observability.CLILogger.Info("")

		observability.CLILogger.Info("=== End Environment Information ===")
	},
}

func init() {
	rootCmd.AddCommand(envInfoCmd)
}
