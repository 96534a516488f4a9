package output

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/marketlens/marketlens/internal/core"
)

func TestParseFormat(t *testing.T) {
	format, err := ParseFormat("table")
	require.NoError(t, err)
	require.Equal(t, FormatTable, format)

	format, err = ParseFormat("JSON")
	require.NoError(t, err)
	require.Equal(t, FormatJSON, format)

	format, err = ParseFormat("")
	require.NoError(t, err)
	require.Equal(t, FormatTable, format)

	_, err = ParseFormat("csv")
	require.Error(t, err)
}

func dailyResult(symbol string, fromCache bool) *core.FetchResult {
	return &core.FetchResult{
		Symbol: symbol,
		Kind:   core.FetchKindDaily,
		Status: core.FetchStatusOK,
		Series: &core.Series{
			Symbol: symbol,
			Kind:   core.FetchKindDaily,
			Points: []core.SeriesPoint{
				{Time: time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC), Close: 191.20},
				{Time: time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC), Close: 189.04},
			},
		},
		Provenance: core.Provenance{FromCache: fromCache},
	}
}

func TestFormatBatchListJSON(t *testing.T) {
	batch := &core.FetchBatch{
		Symbol:  "AAPL",
		Results: []*core.FetchResult{dailyResult("AAPL", false)},
	}
	batch.Summarize()

	rendered, err := FormatBatchList(FormatJSON, []*core.FetchBatch{batch})
	require.NoError(t, err)
	require.Contains(t, rendered, "\"symbol\": \"AAPL\"")
	require.Contains(t, rendered, "\"kind\": \"daily\"")
}

func TestFormatters(t *testing.T) {
	batch := &core.FetchBatch{
		Symbol: "AAPL",
		Results: []*core.FetchResult{
			dailyResult("AAPL", true),
			{
				Symbol:   "AAPL",
				Kind:     core.FetchKindRSI,
				Interval: "daily",
				Status:   core.FetchStatusDenied,
				Message:  "Rate limit reached. Try again in 42s",
			},
		},
	}
	batch.Summarize()

	tableRendered, err := NewFormatter(FormatTable).FormatBatch(batch)
	require.NoError(t, err)
	require.Contains(t, tableRendered, "KIND")
	require.Contains(t, tableRendered, "daily")
	require.Contains(t, tableRendered, "cached")
	require.Contains(t, tableRendered, "close 191.20 on 2026-02-03 (2 points)")
	require.Contains(t, tableRendered, "Rate limit reached")
	require.Contains(t, tableRendered, "1 ok (1 cached), 1 denied")

	jsonRendered, err := NewFormatter(FormatJSON).FormatBatch(batch)
	require.NoError(t, err)
	require.Contains(t, jsonRendered, "\"symbol\": \"AAPL\"")

	markdownRendered, err := NewFormatter(FormatMarkdown).FormatBatch(batch)
	require.NoError(t, err)
	require.Contains(t, markdownRendered, "## AAPL market data")
	require.Contains(t, markdownRendered, "| Kind | Symbol | Status | Summary |")
	require.Contains(t, markdownRendered, "denied")
}

func TestDetailSections(t *testing.T) {
	batch := &core.FetchBatch{
		Results: []*core.FetchResult{
			{
				Kind:   core.FetchKindSector,
				Status: core.FetchStatusOK,
				Sectors: []core.SectorPerformance{
					{
						Label: "Real-Time Performance",
						Changes: map[string]float64{
							"Technology": 1.25,
							"Energy":     -0.50,
						},
					},
				},
			},
			{
				Kind:   core.FetchKindNews,
				Status: core.FetchStatusOK,
				News: []core.NewsItem{
					{
						Title:       "Fed holds rates steady",
						Source:      "Example Wire",
						PublishedAt: time.Date(2026, 2, 3, 14, 0, 0, 0, time.UTC),
					},
				},
			},
		},
	}
	batch.Summarize()

	tableRendered, err := NewFormatter(FormatTable).FormatBatch(batch)
	require.NoError(t, err)
	require.Contains(t, tableRendered, "Real-Time Performance:")
	require.Contains(t, tableRendered, "Technology: +1.25%")
	require.Contains(t, tableRendered, "Energy: -0.50%")
	require.Contains(t, tableRendered, "Headlines:")
	require.Contains(t, tableRendered, "Fed holds rates steady (Example Wire, 2026-02-03)")

	// Best performer sorts first
	require.Less(t,
		strings.Index(tableRendered, "Technology"),
		strings.Index(tableRendered, "Energy"),
	)

	markdownRendered, err := NewFormatter(FormatMarkdown).FormatBatch(batch)
	require.NoError(t, err)
	require.Contains(t, markdownRendered, "### Real-Time Performance")
	require.Contains(t, markdownRendered, "- Technology: +1.25%")
	require.Contains(t, markdownRendered, "### Headlines")
}

func TestDisplayName(t *testing.T) {
	require.Equal(t, "AAPL", displayName(&core.FetchResult{
		Symbol: "AAPL",
		Kind:   core.FetchKindDaily,
	}))
	require.Equal(t, "AAPL (5min)", displayName(&core.FetchResult{
		Symbol:   "AAPL",
		Kind:     core.FetchKindIntraday,
		Interval: "5min",
	}))
	require.Equal(t, "AAPL", displayName(&core.FetchResult{
		Symbol:   "AAPL",
		Kind:     core.FetchKindRSI,
		Interval: "daily",
	}))
	require.Equal(t, "sectors", displayName(&core.FetchResult{
		Kind: core.FetchKindSector,
	}))
	require.Equal(t, "headlines", displayName(&core.FetchResult{
		Kind: core.FetchKindNews,
	}))
}

func TestStatusLabel(t *testing.T) {
	require.Equal(t, "ok", statusLabel(&core.FetchResult{
		Status: core.FetchStatusOK,
	}))
	require.Equal(t, "cached", statusLabel(&core.FetchResult{
		Status:     core.FetchStatusOK,
		Provenance: core.Provenance{FromCache: true},
	}))
	require.Equal(t, "denied", statusLabel(&core.FetchResult{
		Status: core.FetchStatusDenied,
	}))
	require.Equal(t, "error", statusLabel(&core.FetchResult{
		Status: core.FetchStatusError,
	}))
}

func TestFormatSummaryIndicator(t *testing.T) {
	result := &core.FetchResult{
		Symbol: "AAPL",
		Kind:   core.FetchKindMACD,
		Status: core.FetchStatusOK,
		Series: &core.Series{
			Symbol: "AAPL",
			Kind:   core.FetchKindMACD,
			Indicators: []core.IndicatorPoint{
				{
					Time: time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC),
					Values: map[string]float64{
						"macd":      1.5,
						"signal":    1.2,
						"histogram": 0.3,
					},
				},
			},
		},
	}

	summary := formatSummary(result)
	require.Equal(t, "histogram 0.30, macd 1.50, signal 1.20 on 2026-02-03", summary)
}

func TestMarkdownEscaping(t *testing.T) {
	batch := &core.FetchBatch{
		Symbol: "AAPL",
		Results: []*core.FetchResult{
			{
				Symbol: "AAPL",
				Kind:   core.FetchKindNews,
				Status: core.FetchStatusOK,
				News: []core.NewsItem{
					{Title: "Markets | Weekly wrap"},
				},
			},
		},
	}
	batch.Summarize()

	rendered, err := NewFormatter(FormatMarkdown).FormatBatch(batch)
	require.NoError(t, err)
	require.Contains(t, rendered, "Markets \\| Weekly wrap")
}

func TestFormatBatchListNonJSON(t *testing.T) {
	batch := &core.FetchBatch{
		Symbol:  "AAPL",
		Results: []*core.FetchResult{dailyResult("AAPL", false)},
	}
	batch.Summarize()

	rendered, err := FormatBatchList(FormatMarkdown, []*core.FetchBatch{batch})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(rendered, "## "))
}
