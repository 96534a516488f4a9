package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/marketlens/marketlens/internal/config"
	"github.com/marketlens/marketlens/internal/core"
	"github.com/marketlens/marketlens/internal/core/cache"
	"github.com/marketlens/marketlens/internal/core/fetcher"
	"github.com/marketlens/marketlens/internal/core/store"
	"github.com/marketlens/marketlens/internal/observability"
	"github.com/marketlens/marketlens/internal/output"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch [symbols...]",
	Short: "Fetch daily data for multiple symbols",
	Long:  "Fetch daily series for a symbol list sequentially, pacing provider calls below the per-minute budget and reusing cached responses",
	RunE:  runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)

	fetchCmd.Flags().String("input", "", "Read symbols from file (one per line, - for stdin)")
	fetchCmd.Flags().String("watchlist", "", "Fetch a saved watchlist by name")
	fetchCmd.Flags().String("output-format", "table", "Output format: table, json, markdown")
	fetchCmd.Flags().String("out", "", "Write combined output to file (- for stdout)")
	fetchCmd.Flags().String("out-dir", "", "Write one output file per symbol to directory")
	fetchCmd.Flags().Bool("no-cache", false, "Skip cache lookup")
}

func runFetch(cmd *cobra.Command, args []string) error {
	inputFile, err := cmd.Flags().GetString("input")
	if err != nil {
		return err
	}

	watchlistName, err := cmd.Flags().GetString("watchlist")
	if err != nil {
		return err
	}

	format, err := resolveOutputFormat(cmd)
	if err != nil {
		return err
	}
	outPath, outDir, err := resolveOutputTargets(cmd)
	if err != nil {
		return err
	}

	noCache, err := cmd.Flags().GetBool("no-cache")
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	startedAt := time.Now()

	db, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close() // nolint:errcheck // best-effort cleanup; errors logged internally

	cfg := config.GetConfig()
	if cfg == nil {
		return errors.New("config not loaded")
	}

	symbols, err := resolveFetchSymbols(ctx, db, args, inputFile, watchlistName)
	if err != nil {
		return err
	}

	responses := buildCache(cfg, db, observability.CLILogger)
	client := buildMarketClient(cfg, observability.CLILogger)

	batches := runSequentialFetch(ctx, client, responses, cfg, symbols, noCache)

	if outDir != "" {
		dir, err := ensureOutDir(outDir)
		if err != nil {
			return err
		}
		formatter := output.NewFormatter(format)
		for _, batch := range batches {
			rendered, err := formatter.FormatBatch(batch)
			if err != nil {
				return err
			}
			path := filepath.Join(dir, sanitizeFilename(batch.Symbol)+"."+outputExtension(format))
			if err := os.WriteFile(path, []byte(rendered+"\n"), 0644); err != nil {
				return fmt.Errorf("write output file: %w", err)
			}
		}
		observability.CLILogger.Info("Wrote output files",
			zap.Int("count", len(batches)), zap.String("dir", dir))
	} else {
		rendered, err := output.FormatBatchList(format, batches)
		if err != nil {
			return err
		}
		sink, err := openSink(outPath)
		if err != nil {
			return err
		}
		if strings.TrimSpace(rendered) != "" {
			fmt.Fprintln(sink.writer, rendered)
		}
		if err := sink.close(); err != nil {
			return fmt.Errorf("close output: %w", err)
		}
	}

	if format != output.FormatJSON {
		logThroughput(len(symbols), startedAt)
	}
	return nil
}

func resolveFetchSymbols(ctx context.Context, db *store.Store, positional []string, inputFile, watchlistName string) ([]string, error) {
	watchlistName = strings.TrimSpace(watchlistName)
	if watchlistName == "" {
		return resolveSymbols(positional, inputFile)
	}

	if len(positional) > 0 || strings.TrimSpace(inputFile) != "" {
		return nil, errors.New("cannot combine --watchlist with positional symbols or --input")
	}

	record, err := db.GetWatchlist(ctx, watchlistName)
	if err != nil {
		return nil, err
	}
	if record == nil {
		if builtin, ok := core.FindBuiltInWatchlist(watchlistName); ok {
			return core.NormalizeSymbols(builtin.Symbols), nil
		}
		return nil, fmt.Errorf("watchlist %q not found", watchlistName)
	}

	symbols := core.NormalizeSymbols(record.Watchlist.Symbols)
	if len(symbols) == 0 {
		return nil, fmt.Errorf("watchlist %q has no symbols", watchlistName)
	}
	return symbols, nil
}

// runSequentialFetch walks the symbol list strictly in order: cache
// first, then the throttled client, which sleeps as needed to stay
// under the provider budget. One failing symbol becomes an error row
// and the walk continues.
func runSequentialFetch(ctx context.Context, client *fetcher.AlphaVantage, responses *cache.Store, cfg *config.Config, symbols []string, noCache bool) []*core.FetchBatch {
	outputSize := cfg.Providers.AlphaVantage.OutputSize
	ttl := ttlPolicyFromConfig(cfg).SeriesTTL

	batches := make([]*core.FetchBatch, 0, len(symbols))
	for _, symbol := range symbols {
		result := fetchDailySequential(ctx, client, responses, symbol, outputSize, ttl, noCache)

		batch := &core.FetchBatch{
			Symbol:      symbol,
			Results:     []*core.FetchResult{result},
			CompletedAt: time.Now().UTC(),
		}
		batch.Summarize()
		batches = append(batches, batch)

		if ctx.Err() != nil {
			break
		}
	}
	return batches
}

func fetchDailySequential(ctx context.Context, client *fetcher.AlphaVantage, responses *cache.Store, symbol, outputSize string, ttl time.Duration, noCache bool) *core.FetchResult {
	requestedAt := time.Now().UTC()
	key := fetcher.CacheKey(core.FetchKindDaily, symbol)

	result := &core.FetchResult{
		Symbol: symbol,
		Kind:   core.FetchKindDaily,
		Status: core.FetchStatusOK,
		Provenance: core.Provenance{
			FetchID:     uuid.New().String(),
			RequestedAt: requestedAt,
			Provider:    "alphavantage",
			ToolVersion: versionInfo.Version,
		},
	}

	if !noCache {
		if value, ok, err := responses.Get(ctx, key); err == nil && ok {
			var series core.Series
			if err := json.Unmarshal(value, &series); err == nil {
				result.Series = &series
				result.Message = "Served from cache"
				result.Provenance.FromCache = true
				result.Provenance.ResolvedAt = time.Now().UTC()
				return result
			}
			observability.CLILogger.Warn("Discarding undecodable cache entry",
				zap.String("key", key), zap.Error(err))
		}
	}

	series, err := client.Daily(ctx, symbol, outputSize)
	result.Provenance.ResolvedAt = time.Now().UTC()
	if err != nil {
		observability.CLILogger.Warn("Fetch failed",
			zap.String("symbol", symbol),
			zap.String("kind", string(core.FetchKindDaily)),
			zap.Error(err))
		result.Status = core.FetchStatusError
		result.Message = err.Error()
		return result
	}

	result.Series = series
	result.Message = "Success"

	if !noCache && ttl > 0 {
		if payload, err := json.Marshal(series); err == nil {
			// Best effort: a failed cache write must not fail a fetch
			// that already succeeded.
			_ = responses.Set(ctx, key, payload, ttl)
		}
	}
	return result
}
