package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/marketlens/marketlens/internal/core"
	"github.com/marketlens/marketlens/internal/core/engine"
)

const dailyPayload = `{
	"Meta Data": {"2. Symbol": "AAPL"},
	"Time Series (Daily)": {
		"2026-02-02": {"1. open": "230.10", "2. high": "233.00", "3. low": "229.50", "4. close": "232.40", "5. volume": "41200000"},
		"2026-02-03": {"1. open": "232.50", "2. high": "235.20", "3. low": "231.90", "4. close": "234.80", "5. volume": "39800000"}
	}
}`

func TestAlphaVantageDaily(t *testing.T) {
	var query url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(dailyPayload))
	}))
	defer server.Close()

	client := &AlphaVantage{APIKey: "demo", BaseURL: server.URL, Client: server.Client()}

	series, err := client.Daily(context.Background(), " aapl ", "")
	require.NoError(t, err)

	require.Equal(t, "TIME_SERIES_DAILY", query.Get("function"))
	require.Equal(t, "AAPL", query.Get("symbol"))
	require.Equal(t, "compact", query.Get("outputsize"))
	require.Equal(t, "demo", query.Get("apikey"))

	require.Equal(t, "AAPL", series.Symbol)
	require.Equal(t, core.FetchKindDaily, series.Kind)
	require.Len(t, series.Points, 2)

	// Newest first.
	require.Equal(t, time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC), series.Points[0].Time)
	require.Equal(t, 234.80, series.Points[0].Close)
	require.Equal(t, int64(39800000), series.Points[0].Volume)
	require.Equal(t, 230.10, series.Points[1].Open)

	latest, ok := series.LatestClose()
	require.True(t, ok)
	require.Equal(t, 234.80, latest)
}

func TestAlphaVantageRequiresAPIKey(t *testing.T) {
	client := &AlphaVantage{}

	_, err := client.Daily(context.Background(), "AAPL", "")
	require.ErrorContains(t, err, "api key is required")
}

func TestAlphaVantageSoftThrottleNote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"Note": "Thank you for using Alpha Vantage! Our standard API call frequency is 5 calls per minute."}`))
	}))
	defer server.Close()

	client := &AlphaVantage{APIKey: "demo", BaseURL: server.URL, Client: server.Client()}

	_, err := client.Daily(context.Background(), "AAPL", "")
	var throttled *ProviderThrottledError
	require.ErrorAs(t, err, &throttled)
	require.Contains(t, throttled.Note, "5 calls per minute")
}

func TestAlphaVantageErrorMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"Error Message": "Invalid API call. Please retry or visit the documentation."}`))
	}))
	defer server.Close()

	client := &AlphaVantage{APIKey: "demo", BaseURL: server.URL, Client: server.Client()}

	_, err := client.Daily(context.Background(), "AAPL", "")
	require.ErrorContains(t, err, "Invalid API call")

	var throttled *ProviderThrottledError
	require.False(t, errors.As(err, &throttled))
}

func TestAlphaVantageHTTP429(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := &AlphaVantage{APIKey: "demo", BaseURL: server.URL, Client: server.Client()}

	_, err := client.Daily(context.Background(), "AAPL", "")
	var throttled *ProviderThrottledError
	require.ErrorAs(t, err, &throttled)
	require.Equal(t, 7*time.Second, throttled.RetryIn)
}

func TestAlphaVantageIntraday(t *testing.T) {
	var query url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"Time Series (5min)": {
				"2026-02-03 15:55:00": {"1. open": "234.10", "2. high": "234.60", "3. low": "234.00", "4. close": "234.55", "5. volume": "812000"},
				"2026-02-03 16:00:00": {"1. open": "234.55", "2. high": "234.90", "3. low": "234.40", "4. close": "234.80", "5. volume": "1204000"}
			}
		}`))
	}))
	defer server.Close()

	client := &AlphaVantage{APIKey: "demo", BaseURL: server.URL, Client: server.Client()}

	series, err := client.Intraday(context.Background(), "AAPL", "", "")
	require.NoError(t, err)

	require.Equal(t, "TIME_SERIES_INTRADAY", query.Get("function"))
	require.Equal(t, "5min", query.Get("interval"))

	require.Equal(t, "5min", series.Interval)
	require.Len(t, series.Points, 2)
	require.Equal(t, time.Date(2026, 2, 3, 16, 0, 0, 0, time.UTC), series.Points[0].Time)
}

func TestAlphaVantageIntradayRejectsUnknownInterval(t *testing.T) {
	client := &AlphaVantage{APIKey: "demo"}

	_, err := client.Intraday(context.Background(), "AAPL", "2min", "")
	require.ErrorContains(t, err, `unsupported intraday interval "2min"`)
}

func TestAlphaVantageRSIDefaults(t *testing.T) {
	var query url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"Technical Analysis: RSI": {
				"2026-02-02": {"RSI": "48.1500"},
				"2026-02-03": {"RSI": "55.3200"}
			}
		}`))
	}))
	defer server.Close()

	client := &AlphaVantage{APIKey: "demo", BaseURL: server.URL, Client: server.Client()}

	series, err := client.RSI(context.Background(), "AAPL", "", 0)
	require.NoError(t, err)

	require.Equal(t, "RSI", query.Get("function"))
	require.Equal(t, "daily", query.Get("interval"))
	require.Equal(t, "14", query.Get("time_period"))
	require.Equal(t, "close", query.Get("series_type"))

	require.Equal(t, core.FetchKindRSI, series.Kind)
	require.Len(t, series.Indicators, 2)
	require.Equal(t, 55.32, series.Indicators[0].Values["rsi"])
}

func TestAlphaVantageMACD(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"Technical Analysis: MACD": {
				"2026-02-03": {"MACD": "1.2300", "MACD_Signal": "0.9800", "MACD_Hist": "0.2500"}
			}
		}`))
	}))
	defer server.Close()

	client := &AlphaVantage{APIKey: "demo", BaseURL: server.URL, Client: server.Client()}

	series, err := client.MACD(context.Background(), "AAPL", "")
	require.NoError(t, err)
	require.Len(t, series.Indicators, 1)

	values := series.Indicators[0].Values
	require.Equal(t, 1.23, values["macd"])
	require.Equal(t, 0.98, values["signal"])
	require.Equal(t, 0.25, values["histogram"])
}

func TestAlphaVantageBollingerBands(t *testing.T) {
	var query url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"Technical Analysis: BBANDS": {
				"2026-02-03": {"Real Upper Band": "241.20", "Real Middle Band": "233.10", "Real Lower Band": "225.00"}
			}
		}`))
	}))
	defer server.Close()

	client := &AlphaVantage{APIKey: "demo", BaseURL: server.URL, Client: server.Client()}

	series, err := client.BollingerBands(context.Background(), "AAPL", "", 0)
	require.NoError(t, err)

	require.Equal(t, "BBANDS", query.Get("function"))
	require.Equal(t, "20", query.Get("time_period"))

	values := series.Indicators[0].Values
	require.Equal(t, 241.20, values["upper"])
	require.Equal(t, 233.10, values["middle"])
	require.Equal(t, 225.00, values["lower"])
}

func TestAlphaVantageSectorPerformance(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"Meta Data": {"Information": "US Sector Performance (realtime & historical)"},
			"Rank B: 1 Day Performance": {"Energy": "-0.45%", "Information Technology": "0.88%"},
			"Rank A: Real-Time Performance": {"Energy": "1.23%", "Information Technology": "-0.50%"}
		}`))
	}))
	defer server.Close()

	client := &AlphaVantage{APIKey: "demo", BaseURL: server.URL, Client: server.Client()}

	sectors, err := client.SectorPerformance(context.Background())
	require.NoError(t, err)
	require.Len(t, sectors, 2)

	require.Equal(t, "Real-Time Performance", sectors[0].Label)
	require.Equal(t, 1.23, sectors[0].Changes["Energy"])
	require.Equal(t, -0.50, sectors[0].Changes["Information Technology"])
	require.Equal(t, "1 Day Performance", sectors[1].Label)
}

func TestAlphaVantagePacesThroughThrottle(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(dailyPayload))
	}))
	defer server.Close()

	now := time.Date(2026, 2, 3, 9, 30, 0, 0, time.UTC)
	var slept []time.Duration

	throttle, err := engine.NewThrottle(2)
	require.NoError(t, err)
	throttle.Clock = func() time.Time { return now }
	throttle.Sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		now = now.Add(d)
		return nil
	}

	client := &AlphaVantage{APIKey: "demo", BaseURL: server.URL, Client: server.Client(), Throttle: throttle}

	_, err = client.Daily(context.Background(), "AAPL", "")
	require.NoError(t, err)
	require.Empty(t, slept)

	_, err = client.Daily(context.Background(), "MSFT", "")
	require.NoError(t, err)
	require.Equal(t, []time.Duration{30 * time.Second}, slept)
}
