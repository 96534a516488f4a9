package core

import "time"

// FetchKind identifies the type of market-data fetch.
type FetchKind string

const (
	FetchKindDaily    FetchKind = "daily"
	FetchKindIntraday FetchKind = "intraday"
	FetchKindRSI      FetchKind = "rsi"
	FetchKindMACD     FetchKind = "macd"
	FetchKindBBands   FetchKind = "bbands"
	FetchKindSector   FetchKind = "sector"
	FetchKindNews     FetchKind = "news"
)

// FetchStatus represents the outcome state for a fetch.
type FetchStatus int

const (
	FetchStatusUnknown FetchStatus = 0
	FetchStatusOK      FetchStatus = 1
	FetchStatusDenied  FetchStatus = 2
	FetchStatusError   FetchStatus = 3
)

// Provenance captures metadata about how a fetch was resolved.
type Provenance struct {
	FetchID        string     `json:"fetch_id"`
	RequestedAt    time.Time  `json:"requested_at"`
	ResolvedAt     time.Time  `json:"resolved_at"`
	Provider       string     `json:"provider"`
	FromCache      bool       `json:"from_cache"`
	CacheExpiresAt *time.Time `json:"cache_expires_at,omitempty"`
	ToolVersion    string     `json:"tool_version"`
}

// SeriesPoint is one OHLCV observation in a price series.
type SeriesPoint struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// IndicatorPoint is one observation of a technical indicator. Values
// holds the indicator's named components (e.g. "RSI", or "MACD",
// "MACD_Signal", "MACD_Hist").
type IndicatorPoint struct {
	Time   time.Time          `json:"time"`
	Values map[string]float64 `json:"values"`
}

// Series is a normalized time series for one symbol, newest first.
type Series struct {
	Symbol     string           `json:"symbol"`
	Kind       FetchKind        `json:"kind"`
	Interval   string           `json:"interval,omitempty"`
	Points     []SeriesPoint    `json:"points,omitempty"`
	Indicators []IndicatorPoint `json:"indicators,omitempty"`
}

// LatestClose returns the most recent closing price in the series.
func (s *Series) LatestClose() (float64, bool) {
	if s == nil || len(s.Points) == 0 {
		return 0, false
	}
	return s.Points[0].Close, true
}

// SectorPerformance holds one ranking block from the sector endpoint
// (e.g. "Real-Time Performance") with per-sector percent changes.
type SectorPerformance struct {
	Label   string             `json:"label"`
	Changes map[string]float64 `json:"changes"`
}

// NewsItem is one normalized news article.
type NewsItem struct {
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	URL         string    `json:"url"`
	Source      string    `json:"source,omitempty"`
	Author      string    `json:"author,omitempty"`
	PublishedAt time.Time `json:"published_at,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
}

// FetchRequest carries the parameters for one market-data fetch.
// Kind-specific fields are ignored by fetchers that do not use them.
type FetchRequest struct {
	Symbol   string    `json:"symbol,omitempty"`
	Kind     FetchKind `json:"kind"`
	Interval string    `json:"interval,omitempty"`
	Period   int       `json:"period,omitempty"`
	Query    string    `json:"query,omitempty"`
	Limit    int       `json:"limit,omitempty"`
	Identity string    `json:"identity,omitempty"`
	NoCache  bool      `json:"no_cache,omitempty"`
}

// FetchResult reports the outcome of one market-data fetch with
// supporting context. Exactly one payload field is populated on
// success, matching the Kind.
type FetchResult struct {
	Symbol     string              `json:"symbol,omitempty"`
	Kind       FetchKind           `json:"kind"`
	Interval   string              `json:"interval,omitempty"`
	Status     FetchStatus         `json:"status"`
	Message    string              `json:"message,omitempty"`
	Series     *Series             `json:"series,omitempty"`
	Sectors    []SectorPerformance `json:"sectors,omitempty"`
	News       []NewsItem          `json:"news,omitempty"`
	Provenance Provenance          `json:"provenance"`
}
