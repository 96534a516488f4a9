package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/marketlens/marketlens/internal/core"
	"github.com/marketlens/marketlens/internal/core/engine"
	"github.com/marketlens/marketlens/internal/metrics"
)

const defaultAlphaVantageURL = "https://www.alphavantage.co/query"

const (
	stampDateOnly = "2006-01-02"
	stampDateTime = "2006-01-02 15:04:05"
)

var intradayIntervals = map[string]bool{
	"1min":  true,
	"5min":  true,
	"15min": true,
	"30min": true,
	"60min": true,
}

// AlphaVantage is a sequential Alpha Vantage query client. A non-nil
// Throttle paces consecutive calls below the provider's per-minute
// ceiling; the client itself never rejects a call.
type AlphaVantage struct {
	APIKey   string
	BaseURL  string
	Client   *http.Client
	Throttle *engine.Throttle
}

// ProviderThrottledError reports that the provider refused a call for
// quota reasons, either with HTTP 429 or with a soft-limit note in an
// otherwise successful response body.
type ProviderThrottledError struct {
	Note    string
	RetryIn time.Duration
}

func (e *ProviderThrottledError) Error() string {
	switch {
	case e == nil:
		return "provider throttled"
	case e.Note != "":
		return "provider throttled: " + e.Note
	case e.RetryIn > 0:
		return fmt.Sprintf("provider throttled, retry in %s", e.RetryIn.Round(time.Second))
	default:
		return "provider throttled"
	}
}

// Daily fetches the daily OHLCV series for symbol. outputSize is
// "compact" (latest 100 points) or "full"; empty means compact.
func (c *AlphaVantage) Daily(ctx context.Context, symbol, outputSize string) (*core.Series, error) {
	symbol = core.NormalizeSymbol(symbol)
	if symbol == "" {
		return nil, errors.New("symbol is required")
	}

	params := url.Values{}
	params.Set("function", "TIME_SERIES_DAILY")
	params.Set("symbol", symbol)
	params.Set("outputsize", normalizeOutputSize(outputSize))

	payload, err := c.query(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("fetch daily data for %s: %w", symbol, err)
	}

	series, err := parsePriceSeries(payload, "Time Series (Daily)", symbol, core.FetchKindDaily, "")
	if err != nil {
		return nil, fmt.Errorf("fetch daily data for %s: %w", symbol, err)
	}
	return series, nil
}

// Intraday fetches the intraday OHLCV series for symbol. interval is
// one of 1min, 5min, 15min, 30min or 60min; empty means 5min.
func (c *AlphaVantage) Intraday(ctx context.Context, symbol, interval, outputSize string) (*core.Series, error) {
	symbol = core.NormalizeSymbol(symbol)
	if symbol == "" {
		return nil, errors.New("symbol is required")
	}
	if interval == "" {
		interval = "5min"
	}
	if !intradayIntervals[interval] {
		return nil, fmt.Errorf("unsupported intraday interval %q", interval)
	}

	params := url.Values{}
	params.Set("function", "TIME_SERIES_INTRADAY")
	params.Set("symbol", symbol)
	params.Set("interval", interval)
	params.Set("outputsize", normalizeOutputSize(outputSize))

	payload, err := c.query(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("fetch intraday data for %s: %w", symbol, err)
	}

	series, err := parsePriceSeries(payload, fmt.Sprintf("Time Series (%s)", interval), symbol, core.FetchKindIntraday, interval)
	if err != nil {
		return nil, fmt.Errorf("fetch intraday data for %s: %w", symbol, err)
	}
	return series, nil
}

// RSI fetches the relative strength index for symbol. interval
// defaults to "daily", period to 14.
func (c *AlphaVantage) RSI(ctx context.Context, symbol, interval string, period int) (*core.Series, error) {
	symbol = core.NormalizeSymbol(symbol)
	if symbol == "" {
		return nil, errors.New("symbol is required")
	}
	if interval == "" {
		interval = "daily"
	}
	if period <= 0 {
		period = 14
	}

	params := url.Values{}
	params.Set("function", "RSI")
	params.Set("symbol", symbol)
	params.Set("interval", interval)
	params.Set("time_period", strconv.Itoa(period))
	params.Set("series_type", "close")

	payload, err := c.query(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("fetch rsi for %s: %w", symbol, err)
	}

	series, err := parseIndicatorSeries(payload, "Technical Analysis: RSI", symbol, core.FetchKindRSI, interval, map[string]string{"RSI": "rsi"})
	if err != nil {
		return nil, fmt.Errorf("fetch rsi for %s: %w", symbol, err)
	}
	return series, nil
}

// MACD fetches moving average convergence/divergence values for
// symbol. interval defaults to "daily".
func (c *AlphaVantage) MACD(ctx context.Context, symbol, interval string) (*core.Series, error) {
	symbol = core.NormalizeSymbol(symbol)
	if symbol == "" {
		return nil, errors.New("symbol is required")
	}
	if interval == "" {
		interval = "daily"
	}

	params := url.Values{}
	params.Set("function", "MACD")
	params.Set("symbol", symbol)
	params.Set("interval", interval)
	params.Set("series_type", "close")

	payload, err := c.query(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("fetch macd for %s: %w", symbol, err)
	}

	fields := map[string]string{
		"MACD":        "macd",
		"MACD_Signal": "signal",
		"MACD_Hist":   "histogram",
	}
	series, err := parseIndicatorSeries(payload, "Technical Analysis: MACD", symbol, core.FetchKindMACD, interval, fields)
	if err != nil {
		return nil, fmt.Errorf("fetch macd for %s: %w", symbol, err)
	}
	return series, nil
}

// BollingerBands fetches Bollinger band values for symbol. interval
// defaults to "daily", period to 20.
func (c *AlphaVantage) BollingerBands(ctx context.Context, symbol, interval string, period int) (*core.Series, error) {
	symbol = core.NormalizeSymbol(symbol)
	if symbol == "" {
		return nil, errors.New("symbol is required")
	}
	if interval == "" {
		interval = "daily"
	}
	if period <= 0 {
		period = 20
	}

	params := url.Values{}
	params.Set("function", "BBANDS")
	params.Set("symbol", symbol)
	params.Set("interval", interval)
	params.Set("time_period", strconv.Itoa(period))
	params.Set("series_type", "close")

	payload, err := c.query(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("fetch bollinger bands for %s: %w", symbol, err)
	}

	fields := map[string]string{
		"Real Upper Band":  "upper",
		"Real Middle Band": "middle",
		"Real Lower Band":  "lower",
	}
	series, err := parseIndicatorSeries(payload, "Technical Analysis: BBANDS", symbol, core.FetchKindBBands, interval, fields)
	if err != nil {
		return nil, fmt.Errorf("fetch bollinger bands for %s: %w", symbol, err)
	}
	return series, nil
}

// SectorPerformance fetches per-sector percent changes across the
// provider's ranking horizons, ordered by rank.
func (c *AlphaVantage) SectorPerformance(ctx context.Context) ([]core.SectorPerformance, error) {
	params := url.Values{}
	params.Set("function", "SECTOR")

	payload, err := c.query(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("fetch sector performance: %w", err)
	}

	keys := make([]string, 0, len(payload))
	for key := range payload {
		if strings.HasPrefix(key, "Rank ") {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	sectors := make([]core.SectorPerformance, 0, len(keys))
	for _, key := range keys {
		var changes map[string]string
		if err := json.Unmarshal(payload[key], &changes); err != nil {
			return nil, fmt.Errorf("fetch sector performance: decode %q: %w", key, err)
		}

		block := core.SectorPerformance{
			Label:   sectorLabel(key),
			Changes: make(map[string]float64, len(changes)),
		}
		for sector, change := range changes {
			block.Changes[sector] = parsePercent(change)
		}
		sectors = append(sectors, block)
	}

	if len(sectors) == 0 {
		return nil, errors.New("fetch sector performance: no ranking data in response")
	}
	return sectors, nil
}

func (c *AlphaVantage) query(ctx context.Context, params url.Values) (map[string]json.RawMessage, error) {
	if c == nil || strings.TrimSpace(c.APIKey) == "" {
		return nil, errors.New("alpha vantage api key is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if c.Throttle != nil {
		slept, err := c.Throttle.Pace(ctx)
		if err != nil {
			return nil, err
		}
		if slept > 0 {
			metrics.RecordThrottleSleep(slept)
		}
	}

	params.Set("apikey", c.APIKey)

	endpoint := c.baseURL() + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	client := c.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	start := time.Now()
	resp, err := client.Do(req)
	duration := time.Since(start)
	if err != nil {
		Trace(TraceEntry{
			Provider:   "alphavantage",
			Endpoint:   redactEndpoint(endpoint),
			Method:     http.MethodGet,
			Error:      err.Error(),
			DurationMs: duration.Milliseconds(),
		})
		return nil, err
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

	Trace(TraceEntry{
		Provider:   "alphavantage",
		Endpoint:   redactEndpoint(endpoint),
		Method:     http.MethodGet,
		StatusCode: resp.StatusCode,
		DurationMs: duration.Milliseconds(),
	})

	if resp.StatusCode == http.StatusTooManyRequests {
		wait, _ := retryAfterHeader(resp)
		return nil, &ProviderThrottledError{RetryIn: wait}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("alpha vantage returned status %d", resp.StatusCode)
	}

	var payload map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode alpha vantage response: %w", err)
	}

	if err := providerFailure(payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func (c *AlphaVantage) baseURL() string {
	if c != nil && c.BaseURL != "" {
		return c.BaseURL
	}
	return defaultAlphaVantageURL
}

// providerFailure detects quota exhaustion and rejected calls, which
// Alpha Vantage reports inside a 200 response body.
func providerFailure(payload map[string]json.RawMessage) error {
	for _, key := range []string{"Note", "Information"} {
		if raw, ok := payload[key]; ok {
			return &ProviderThrottledError{Note: rawString(raw)}
		}
	}
	if raw, ok := payload["Error Message"]; ok {
		return fmt.Errorf("alpha vantage: %s", rawString(raw))
	}
	return nil
}

func rawString(raw json.RawMessage) string {
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return strings.Trim(string(raw), `"`)
	}
	return value
}

func normalizeOutputSize(value string) string {
	if strings.EqualFold(strings.TrimSpace(value), "full") {
		return "full"
	}
	return "compact"
}

func parseStamp(value string) (time.Time, error) {
	if ts, err := time.Parse(stampDateTime, value); err == nil {
		return ts, nil
	}
	return time.Parse(stampDateOnly, value)
}

// parsePriceSeries normalizes a time-keyed OHLCV map into a series
// sorted newest first.
func parsePriceSeries(payload map[string]json.RawMessage, seriesKey, symbol string, kind core.FetchKind, interval string) (*core.Series, error) {
	raw, ok := payload[seriesKey]
	if !ok {
		return nil, fmt.Errorf("response missing %q", seriesKey)
	}

	var entries map[string]map[string]string
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("decode %q: %w", seriesKey, err)
	}

	points := make([]core.SeriesPoint, 0, len(entries))
	for stamp, fields := range entries {
		ts, err := parseStamp(stamp)
		if err != nil {
			return nil, fmt.Errorf("parse timestamp %q: %w", stamp, err)
		}

		point := core.SeriesPoint{
			Time:  ts,
			Open:  parseDecimal(fields["1. open"]),
			High:  parseDecimal(fields["2. high"]),
			Low:   parseDecimal(fields["3. low"]),
			Close: parseDecimal(fields["4. close"]),
		}
		if volume, err := strconv.ParseInt(strings.TrimSpace(fields["5. volume"]), 10, 64); err == nil {
			point.Volume = volume
		}
		points = append(points, point)
	}

	sort.Slice(points, func(i, j int) bool { return points[i].Time.After(points[j].Time) })

	return &core.Series{Symbol: symbol, Kind: kind, Interval: interval, Points: points}, nil
}

// parseIndicatorSeries normalizes a "Technical Analysis" map into a
// series sorted newest first. fields maps provider value keys to the
// component names stored on each point.
func parseIndicatorSeries(payload map[string]json.RawMessage, seriesKey, symbol string, kind core.FetchKind, interval string, fields map[string]string) (*core.Series, error) {
	raw, ok := payload[seriesKey]
	if !ok {
		return nil, fmt.Errorf("response missing %q", seriesKey)
	}

	var entries map[string]map[string]string
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("decode %q: %w", seriesKey, err)
	}

	points := make([]core.IndicatorPoint, 0, len(entries))
	for stamp, values := range entries {
		ts, err := parseStamp(stamp)
		if err != nil {
			return nil, fmt.Errorf("parse timestamp %q: %w", stamp, err)
		}

		point := core.IndicatorPoint{Time: ts, Values: make(map[string]float64, len(fields))}
		for providerKey, name := range fields {
			if value, ok := values[providerKey]; ok {
				point.Values[name] = parseDecimal(value)
			}
		}
		points = append(points, point)
	}

	sort.Slice(points, func(i, j int) bool { return points[i].Time.After(points[j].Time) })

	return &core.Series{Symbol: symbol, Kind: kind, Interval: interval, Indicators: points}, nil
}

func parseDecimal(value string) float64 {
	parsed, _ := strconv.ParseFloat(strings.TrimSpace(value), 64)
	return parsed
}

func parsePercent(value string) float64 {
	return parseDecimal(strings.TrimSuffix(strings.TrimSpace(value), "%"))
}

func sectorLabel(key string) string {
	if _, label, ok := strings.Cut(key, ": "); ok {
		return label
	}
	return key
}
