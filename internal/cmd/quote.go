package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/marketlens/marketlens/internal/config"
	"github.com/marketlens/marketlens/internal/core"
	"github.com/marketlens/marketlens/internal/core/engine"
	"github.com/marketlens/marketlens/internal/observability"
	"github.com/marketlens/marketlens/internal/output"
)

var quoteCmd = &cobra.Command{
	Use:   "quote <symbol>",
	Short: "Fetch market data for a symbol",
	Long:  "Fetch daily, intraday or technical indicator data for a ticker symbol, cache-first and quota-protected",
	Args:  cobra.ExactArgs(1),
	RunE:  runQuote,
}

var quoteKinds = map[string]core.FetchKind{
	"daily":    core.FetchKindDaily,
	"intraday": core.FetchKindIntraday,
	"rsi":      core.FetchKindRSI,
	"macd":     core.FetchKindMACD,
	"bbands":   core.FetchKindBBands,
}

func init() {
	rootCmd.AddCommand(quoteCmd)

	quoteCmd.Flags().StringSlice("kind", []string{"daily"}, "Data kinds to fetch (daily, intraday, rsi, macd, bbands)")
	quoteCmd.Flags().String("interval", "", "Series interval (1min, 5min, 15min, 30min, 60min for intraday; daily/weekly/monthly for indicators)")
	quoteCmd.Flags().Int("period", 0, "Indicator lookback period (defaults per indicator)")
	quoteCmd.Flags().String("output-format", "table", "Output format: table, json, markdown")
	quoteCmd.Flags().String("out", "", "Write output to file (- for stdout)")
	quoteCmd.Flags().String("out-dir", "", "Write a per-symbol output file to directory")
	quoteCmd.Flags().Bool("no-cache", false, "Skip cache lookup")
	quoteCmd.Flags().String("identity", engine.DefaultIdentity, "Quota identity to charge")
}

func runQuote(cmd *cobra.Command, args []string) error {
	symbol := core.NormalizeSymbol(args[0])
	if err := validateSymbol(symbol); err != nil {
		return err
	}

	kindsRaw, err := cmd.Flags().GetStringSlice("kind")
	if err != nil {
		return err
	}
	kinds, err := parseQuoteKinds(kindsRaw)
	if err != nil {
		return err
	}

	interval, err := cmd.Flags().GetString("interval")
	if err != nil {
		return err
	}

	period, err := cmd.Flags().GetInt("period")
	if err != nil {
		return err
	}

	noCache, err := cmd.Flags().GetBool("no-cache")
	if err != nil {
		return err
	}

	identity, err := cmd.Flags().GetString("identity")
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

	orchestrator, _, _, err := buildOrchestrator(cfg, db, observability.CLILogger)
	if err != nil {
		return err
	}

	batch := &core.FetchBatch{Symbol: symbol}
	for _, kind := range kinds {
		result := fetchResult(ctx, orchestrator, core.FetchRequest{
			Symbol:   symbol,
			Kind:     kind,
			Interval: interval,
			Period:   period,
			Identity: identity,
			NoCache:  noCache,
		})
		if result != nil {
			batch.Results = append(batch.Results, result)
		}
	}
	batch.CompletedAt = time.Now().UTC()
	batch.Summarize()

	formatter := output.NewFormatter(format)
	rendered, err := formatter.FormatBatch(batch)
	if err != nil {
		return err
	}

	if outDir != "" {
		dir, err := ensureOutDir(outDir)
		if err != nil {
			return err
		}
		path := filepath.Join(dir, sanitizeFilename(symbol)+"."+outputExtension(format))
		if err := os.WriteFile(path, []byte(rendered+"\n"), 0644); err != nil {
			return fmt.Errorf("write output file: %w", err)
		}
		observability.CLILogger.Info("Wrote output", zap.String("path", path))
	} else {
		sink, err := openSink(outPath)
		if err != nil {
			return err
		}
		if rendered != "" {
			fmt.Fprintln(sink.writer, rendered)
		}
		if err := sink.close(); err != nil {
			return fmt.Errorf("close output: %w", err)
		}
	}

	if format != output.FormatJSON {
		logThroughput(len(batch.Results), startedAt)
	}
	return nil
}

func validateSymbol(symbol string) error {
	if symbol == "" {
		return errors.New("symbol is required")
	}
	if !core.ValidSymbol(symbol) {
		return fmt.Errorf("invalid symbol %q: use 1-10 letters, digits, dots or hyphens", symbol)
	}
	return nil
}

// parseQuoteKinds normalizes a kind list, preserving order and
// dropping duplicates. Sector and news have their own commands and
// are rejected here.
func parseQuoteKinds(values []string) ([]core.FetchKind, error) {
	seen := make(map[core.FetchKind]struct{})
	kinds := make([]core.FetchKind, 0, len(values))
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			name := strings.ToLower(strings.TrimSpace(part))
			if name == "" {
				continue
			}
			kind, ok := quoteKinds[name]
			if !ok {
				return nil, fmt.Errorf("unknown kind %q: valid kinds are daily, intraday, rsi, macd, bbands", name)
			}
			if _, dup := seen[kind]; dup {
				continue
			}
			seen[kind] = struct{}{}
			kinds = append(kinds, kind)
		}
	}

	if len(kinds) == 0 {
		return nil, errors.New("at least one kind is required")
	}
	return kinds, nil
}

func logThroughput(count int, startedAt time.Time) {
	if count <= 0 {
		return
	}
	elapsed := time.Since(startedAt)
	if elapsed <= 0 {
		return
	}
	rate := float64(count) / elapsed.Seconds()
	observability.CLILogger.Info(
		"Fetch throughput",
		zap.Int("fetches", count),
		zap.Duration("elapsed", elapsed),
		zap.Float64("rate_per_sec", rate),
	)
}
