package output

import (
	"fmt"
	"sort"
	"strings"

	"github.com/marketlens/marketlens/internal/core"
)

func batchTitle(batch *core.FetchBatch) string {
	if batch == nil {
		return ""
	}
	return strings.TrimSpace(batch.Symbol + " market data")
}

func batchSummary(batch *core.FetchBatch) string {
	if batch == nil {
		return ""
	}

	first := fmt.Sprintf("%d ok", batch.Succeeded)
	if batch.FromCache > 0 {
		first = fmt.Sprintf("%d ok (%d cached)", batch.Succeeded, batch.FromCache)
	}

	parts := []string{first}
	if batch.Denied > 0 {
		parts = append(parts, fmt.Sprintf("%d denied", batch.Denied))
	}
	if batch.Failed > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", batch.Failed))
	}
	return strings.Join(parts, ", ")
}

func displayName(result *core.FetchResult) string {
	if result == nil {
		return ""
	}

	name := strings.TrimSpace(result.Symbol)
	switch result.Kind {
	case core.FetchKindSector:
		if name == "" {
			return "sectors"
		}
		return name
	case core.FetchKindNews:
		if name == "" {
			return "headlines"
		}
		return name
	default:
		if name != "" && result.Interval != "" && result.Interval != "daily" {
			return fmt.Sprintf("%s (%s)", name, result.Interval)
		}
		return name
	}
}

func statusLabel(result *core.FetchResult) string {
	if result == nil {
		return "unknown"
	}

	switch result.Status {
	case core.FetchStatusOK:
		if result.Provenance.FromCache {
			return "cached"
		}
		return "ok"
	case core.FetchStatusDenied:
		return "denied"
	case core.FetchStatusError:
		return "error"
	default:
		return "unknown"
	}
}

func formatSummary(result *core.FetchResult) string {
	if result == nil {
		return ""
	}

	if result.Status == core.FetchStatusDenied || result.Status == core.FetchStatusError {
		return result.Message
	}

	switch {
	case result.Series != nil && len(result.Series.Points) > 0:
		return seriesSummary(result.Series)
	case result.Series != nil && len(result.Series.Indicators) > 0:
		return indicatorSummary(result.Series)
	case len(result.Sectors) > 0:
		return sectorSummary(result.Sectors)
	case result.Kind == core.FetchKindNews:
		return newsSummary(result.News)
	}

	return result.Message
}

func seriesSummary(series *core.Series) string {
	if series == nil || len(series.Points) == 0 {
		return ""
	}

	latest := series.Points[0]
	stamp := latest.Time.Format("2006-01-02")
	if series.Kind == core.FetchKindIntraday {
		stamp = latest.Time.Format("2006-01-02 15:04")
	}
	return fmt.Sprintf("close %.2f on %s (%d points)", latest.Close, stamp, len(series.Points))
}

func indicatorSummary(series *core.Series) string {
	if series == nil || len(series.Indicators) == 0 {
		return ""
	}

	latest := series.Indicators[0]
	keys := make([]string, 0, len(latest.Values))
	for key := range latest.Values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%s %.2f", key, latest.Values[key]))
	}
	return fmt.Sprintf("%s on %s", strings.Join(parts, ", "), latest.Time.Format("2006-01-02"))
}

func sectorSummary(sectors []core.SectorPerformance) string {
	if len(sectors) == 0 {
		return ""
	}

	first := sectors[0]
	summary := fmt.Sprintf("%s: %d sectors", first.Label, len(first.Changes))
	if len(sectors) > 1 {
		summary += fmt.Sprintf(" (+%d more rankings)", len(sectors)-1)
	}
	return summary
}

func newsSummary(items []core.NewsItem) string {
	if len(items) == 0 {
		return "no articles"
	}
	return fmt.Sprintf("%d articles, latest: %s", len(items), items[0].Title)
}
