package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/fulmenhq/gofulmen/ascii"
	"github.com/spf13/cobra"

	"github.com/marketlens/marketlens/internal/config"
	"github.com/marketlens/marketlens/internal/core/cache"
	"github.com/marketlens/marketlens/internal/observability"
	"github.com/marketlens/marketlens/internal/output"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the response cache",
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}

var (
	cacheStatsOutput string
	cacheStatsOut    string
	cacheStatsOutDir string
)

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show response cache statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(cacheStatsOutput)
		if err != nil {
			return err
		}
		if format != output.FormatJSON && format != output.FormatTable {
			return fmt.Errorf("unsupported output format: %s", format)
		}

		db, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		cfg := config.GetConfig()
		if cfg == nil {
			return errors.New("config not loaded")
		}

		responses := buildCache(cfg, db, observability.CLILogger)
		stats, err := responses.Stats(cmd.Context())
		if err != nil {
			return err
		}

		outPath := strings.TrimSpace(cacheStatsOut)
		outDir := strings.TrimSpace(cacheStatsOutDir)
		if outPath != "" && outDir != "" {
			return fmt.Errorf("--out and --out-dir are mutually exclusive")
		}

		ext := outputExtension(format)
		if outDir != "" {
			var err error
			outDir, err = ensureOutDir(outDir)
			if err != nil {
				return err
			}
			outPath = filepath.Join(outDir, fmt.Sprintf("cache.stats.%s", ext))
		}

		sink, err := openSink(outPath)
		if err != nil {
			return err
		}
		defer func() { _ = sink.close() }()

		if format == output.FormatJSON {
			payload, err := json.MarshalIndent(stats, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(sink.writer, string(payload))
			return err
		}

		lines := []string{
			"Cache Stats",
			"",
			fmt.Sprintf("backend: %s", stats.Backend),
			fmt.Sprintf("default ttl: %s", responses.DefaultTTL()),
			fmt.Sprintf("entries: %d", stats.Entries),
			fmt.Sprintf("expired: %d", stats.Expired),
		}
		_, _ = fmt.Fprint(sink.writer, ascii.DrawBox(strings.Join(lines, "\n"), 0))
		return nil
	},
}

func init() {
	cacheStatsCmd.Flags().StringVar(&cacheStatsOutput, "output-format", string(output.FormatTable), "Output format: table|json")
	cacheStatsCmd.Flags().StringVar(&cacheStatsOut, "out", "", "Write output to a file (default stdout)")
	cacheStatsCmd.Flags().StringVar(&cacheStatsOutDir, "out-dir", "", "Write output to a directory")
}

var (
	cacheClearAll    bool
	cacheClearPrefix string
	cacheClearYes    bool
	cacheClearDryRun bool
	cacheClearOutput string
	cacheClearOut    string
	cacheClearOutDir string
)

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear cached responses",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(cacheClearOutput)
		if err != nil {
			return err
		}
		if format != output.FormatJSON && format != output.FormatTable {
			return fmt.Errorf("unsupported output format: %s", format)
		}

		prefix := strings.TrimSpace(cacheClearPrefix)
		if !cacheClearAll && prefix == "" {
			return errors.New("either --prefix or --all is required")
		}
		if cacheClearAll && prefix != "" {
			return errors.New("--all and --prefix are mutually exclusive")
		}
		if cacheClearAll && !cacheClearYes && !cacheClearDryRun {
			return errors.New("--all requires --yes (or use --dry-run)")
		}

		db, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		cfg := config.GetConfig()
		if cfg == nil {
			return errors.New("config not loaded")
		}

		responses := buildCache(cfg, db, observability.CLILogger)
		stats, err := responses.Stats(cmd.Context())
		if err != nil {
			return err
		}

		outPath := strings.TrimSpace(cacheClearOut)
		outDir := strings.TrimSpace(cacheClearOutDir)
		if outPath != "" && outDir != "" {
			return fmt.Errorf("--out and --out-dir are mutually exclusive")
		}
		ext := outputExtension(format)
		if outDir != "" {
			var err error
			outDir, err = ensureOutDir(outDir)
			if err != nil {
				return err
			}
			outPath = filepath.Join(outDir, fmt.Sprintf("cache.clear.%s", ext))
		}
		sink, err := openSink(outPath)
		if err != nil {
			return err
		}
		defer func() { _ = sink.close() }()

		if cacheClearDryRun {
			return writeCacheClearResult(format, sink.writer, stats, prefix, 0, true)
		}

		cleared, err := responses.Clear(cmd.Context(), prefix)
		if err != nil {
			return err
		}

		return writeCacheClearResult(format, sink.writer, stats, prefix, cleared, false)
	},
}

func writeCacheClearResult(format output.Format, w io.Writer, stats cache.Stats, prefix string, cleared int, dryRun bool) error {
	result := map[string]any{
		"backend": stats.Backend,
		"entries": stats.Entries,
		"cleared": cleared,
		"dry_run": dryRun,
	}
	if prefix != "" {
		result["prefix"] = prefix
	}

	if format == output.FormatJSON {
		payload, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(payload))
		return err
	}

	if dryRun {
		if prefix != "" {
			_, err := fmt.Fprintf(w, "Would clear entries with prefix %q from %s cache (%d entries total)\n", prefix, stats.Backend, stats.Entries)
			return err
		}
		_, err := fmt.Fprintf(w, "Would clear all %d entr(ies) from %s cache\n", stats.Entries, stats.Backend)
		return err
	}
	_, err := fmt.Fprintf(w, "Cleared %d entr(ies) from %s cache\n", cleared, stats.Backend)
	return err
}

func init() {
	cacheClearCmd.Flags().BoolVar(&cacheClearAll, "all", false, "Clear every cached response")
	cacheClearCmd.Flags().StringVar(&cacheClearPrefix, "prefix", "", "Clear entries with matching key prefix")
	cacheClearCmd.Flags().BoolVar(&cacheClearYes, "yes", false, "Confirm destructive clear")
	cacheClearCmd.Flags().BoolVar(&cacheClearDryRun, "dry-run", false, "Show what would be cleared")
	cacheClearCmd.Flags().StringVar(&cacheClearOutput, "output-format", string(output.FormatTable), "Output format: table|json")
	cacheClearCmd.Flags().StringVar(&cacheClearOut, "out", "", "Write output to a file (default stdout)")
	cacheClearCmd.Flags().StringVar(&cacheClearOutDir, "out-dir", "", "Write output to a directory")
}
