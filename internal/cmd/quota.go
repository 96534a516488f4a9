package cmd

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fulmenhq/gofulmen/ascii"
	"github.com/spf13/cobra"

	"github.com/marketlens/marketlens/internal/config"
	"github.com/marketlens/marketlens/internal/core"
	"github.com/marketlens/marketlens/internal/core/engine"
	"github.com/marketlens/marketlens/internal/output"
)

var (
	quotaOutput   string
	quotaOut      string
	quotaOutDir   string
	quotaIdentity string
)

var quotaCmd = &cobra.Command{
	Use:   "quota",
	Short: "Show configured provider quotas and live window status",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(quotaOutput)
		if err != nil {
			return err
		}
		if format != output.FormatJSON && format != output.FormatTable {
			return fmt.Errorf("unsupported output format: %s", format)
		}

		cfg, err := config.Load(cmd.Context())
		if err != nil {
			return err
		}

		limiter, err := buildLimiter(cfg)
		if err != nil {
			return err
		}

		statuses := quotaStatuses(limiter, quotaIdentity)

		outPath := strings.TrimSpace(quotaOut)
		outDir := strings.TrimSpace(quotaOutDir)
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
			outPath = filepath.Join(outDir, fmt.Sprintf("quota.%s", ext))
		}

		sink, err := openSink(outPath)
		if err != nil {
			return err
		}
		defer func() { _ = sink.close() }()

		if format == output.FormatJSON {
			payload, err := json.MarshalIndent(quotaReport(cfg, statuses), "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(sink.writer, string(payload))
			return err
		}

		lines := []string{"Provider Quotas", ""}
		lines = append(lines,
			fmt.Sprintf("alphavantage: %d calls/min (blocking throttle, bulk path)", cfg.Providers.AlphaVantage.CallsPerMinute),
			fmt.Sprintf("guarded quota: %d calls per %ds window (rejecting)", cfg.Quota.MaxCalls, int(cfg.Quota.Window.Seconds())),
		)
		if cfg.HTTPLimit.Enabled {
			lines = append(lines, fmt.Sprintf("http api: %d requests per %ds window per client", cfg.HTTPLimit.MaxCalls, int(cfg.HTTPLimit.Window.Seconds())))
		} else {
			lines = append(lines, "http api: rate limit disabled")
		}

		lines = append(lines, "")
		for _, status := range statuses {
			lines = append(lines, fmt.Sprintf("%s: %s", status.Identity, core.FormatQuotaStatus(status)))
		}

		_, _ = fmt.Fprint(sink.writer, ascii.DrawBox(strings.Join(lines, "\n"), 0))
		return nil
	},
}

func init() {
	quotaCmd.Flags().StringVar(&quotaOutput, "output-format", string(output.FormatTable), "Output format: table|json")
	quotaCmd.Flags().StringVar(&quotaOut, "out", "", "Write output to a file (default stdout)")
	quotaCmd.Flags().StringVar(&quotaOutDir, "out-dir", "", "Write output to a directory")
	quotaCmd.Flags().StringVar(&quotaIdentity, "identity", engine.DefaultIdentity, "Quota identity to report")

	rootCmd.AddCommand(quotaCmd)
}

// quotaStatuses reports the live window for each identity the limiter
// has seen, always including the requested identity even when idle.
func quotaStatuses(limiter *engine.Limiter, identity string) []core.QuotaStatus {
	if strings.TrimSpace(identity) == "" {
		identity = engine.DefaultIdentity
	}

	statuses := make([]core.QuotaStatus, 0, 1)
	seen := false
	for _, usage := range limiter.Snapshot() {
		if usage.Identity == identity {
			seen = true
		}
		statuses = append(statuses, core.QuotaStatus{
			Provider:  "alphavantage",
			Identity:  usage.Identity,
			Used:      usage.Used,
			Remaining: usage.Remaining,
			MaxCalls:  limiter.MaxCalls(),
			Window:    limiter.Window(),
			ResetIn:   usage.ResetIn,
		})
	}

	if !seen {
		resetIn, _ := limiter.ResetIn(identity)
		statuses = append(statuses, core.QuotaStatus{
			Provider:  "alphavantage",
			Identity:  identity,
			Used:      limiter.MaxCalls() - limiter.Remaining(identity),
			Remaining: limiter.Remaining(identity),
			MaxCalls:  limiter.MaxCalls(),
			Window:    limiter.Window(),
			ResetIn:   resetIn,
		})
	}

	return statuses
}

func quotaReport(cfg *config.Config, statuses []core.QuotaStatus) map[string]any {
	return map[string]any{
		"providers": map[string]any{
			"alphavantage": map[string]any{
				"calls_per_minute": cfg.Providers.AlphaVantage.CallsPerMinute,
			},
		},
		"quota": map[string]any{
			"max_calls":      cfg.Quota.MaxCalls,
			"window_seconds": int(cfg.Quota.Window.Seconds()),
		},
		"http_limit": map[string]any{
			"enabled":        cfg.HTTPLimit.Enabled,
			"max_calls":      cfg.HTTPLimit.MaxCalls,
			"window_seconds": int(cfg.HTTPLimit.Window.Seconds()),
		},
		"windows": statuses,
	}
}
