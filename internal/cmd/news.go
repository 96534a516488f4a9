package cmd

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/marketlens/marketlens/internal/config"
	"github.com/marketlens/marketlens/internal/core"
	"github.com/marketlens/marketlens/internal/core/engine"
	"github.com/marketlens/marketlens/internal/core/fetcher"
	"github.com/marketlens/marketlens/internal/core/store"
	"github.com/marketlens/marketlens/internal/observability"
	"github.com/marketlens/marketlens/internal/output"
)

var newsCmd = &cobra.Command{
	Use:   "news",
	Short: "Fetch financial news headlines",
	Long:  "Search financial news from NewsAPI or the configured RSS feeds, cache-first and quota-protected",
	Args:  cobra.NoArgs,
	RunE:  runNews,
}

func init() {
	rootCmd.AddCommand(newsCmd)

	newsCmd.Flags().String("query", "", "Search query (defaults to the symbols, then to general finance)")
	newsCmd.Flags().StringSlice("symbols", nil, "Symbols to search news for")
	newsCmd.Flags().Int("limit", 0, "Maximum number of articles (default 50, capped at 100)")
	newsCmd.Flags().String("source", "auto", "News source: auto, newsapi, rss")
	newsCmd.Flags().String("output-format", "table", "Output format: table, json, markdown")
	newsCmd.Flags().String("out", "", "Write output to file (- for stdout)")
	newsCmd.Flags().Bool("no-cache", false, "Skip cache lookup")
	newsCmd.Flags().String("identity", engine.DefaultIdentity, "Quota identity to charge")
}

func runNews(cmd *cobra.Command, args []string) error {
	query, err := cmd.Flags().GetString("query")
	if err != nil {
		return err
	}

	symbolsRaw, err := cmd.Flags().GetStringSlice("symbols")
	if err != nil {
		return err
	}

	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}

	source, err := cmd.Flags().GetString("source")
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
	outPath, err := cmd.Flags().GetString("out")
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	db, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close() // nolint:errcheck // best-effort cleanup; errors logged internally

	cfg := config.GetConfig()
	if cfg == nil {
		return errors.New("config not loaded")
	}

	newsFetcher, err := buildNewsFetcher(cfg, db, source)
	if err != nil {
		return err
	}

	if strings.TrimSpace(query) == "" {
		symbols := core.NormalizeSymbols(symbolsRaw)
		query = strings.Join(symbols, " OR ")
	}

	result, err := newsFetcher.Fetch(ctx, core.FetchRequest{
		Kind:     core.FetchKindNews,
		Query:    query,
		Limit:    limit,
		Identity: identity,
		NoCache:  noCache,
	})
	if err != nil {
		return err
	}

	batch := &core.FetchBatch{
		Results:     []*core.FetchResult{result},
		CompletedAt: time.Now().UTC(),
	}
	batch.Summarize()

	formatter := output.NewFormatter(format)
	rendered, err := formatter.FormatBatch(batch)
	if err != nil {
		return err
	}

	sink, err := openSink(outPath)
	if err != nil {
		return err
	}
	if rendered != "" {
		fmt.Fprintln(sink.writer, rendered)
	}
	return sink.close()
}

// buildNewsFetcher assembles a guarded news fetcher for the requested
// source. "auto" prefers NewsAPI when a key is configured and falls
// back to the RSS feeds otherwise.
func buildNewsFetcher(cfg *config.Config, db *store.Store, source string) (*fetcher.NewsFetcher, error) {
	limiter, err := buildLimiter(cfg)
	if err != nil {
		return nil, err
	}
	guard := &engine.Guard{Cache: buildCache(cfg, db, observability.CLILogger), Limiter: limiter}

	newsFetcher := &fetcher.NewsFetcher{
		Feeds:       cfg.Providers.RSS.Feeds,
		HTTPClient:  &http.Client{Timeout: providerHTTPTimeout},
		Guard:       guard,
		TTL:         ttlPolicyFromConfig(cfg),
		ToolVersion: versionInfo.Version,
	}

	switch strings.ToLower(strings.TrimSpace(source)) {
	case "", "auto":
		newsFetcher.Client = buildNewsClient(cfg)
	case "newsapi":
		if strings.TrimSpace(cfg.Providers.NewsAPI.APIKey) == "" {
			return nil, errors.New("newsapi key is not configured")
		}
		newsFetcher.Client = buildNewsClient(cfg)
	case "rss":
		if len(cfg.Providers.RSS.Feeds) == 0 {
			return nil, errors.New("no rss feeds configured")
		}
	default:
		return nil, fmt.Errorf("unknown source %q: valid sources are auto, newsapi, rss", source)
	}

	return newsFetcher, nil
}
