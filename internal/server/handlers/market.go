package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/marketlens/marketlens/internal/core"
	"github.com/marketlens/marketlens/internal/core/engine"
	apperrors "github.com/marketlens/marketlens/internal/errors"
	"github.com/marketlens/marketlens/internal/metrics"
)

// MarketAPI carries the fetch pipeline behind the market-data
// endpoints.
type MarketAPI struct {
	Orchestrator *engine.Orchestrator
	Limiter      *engine.Limiter
}

var globalMarketAPI *MarketAPI

// InitMarketAPI installs the shared fetch pipeline for the market-data
// handlers.
func InitMarketAPI(api *MarketAPI) {
	globalMarketAPI = api
}

// GetMarketAPI returns the shared market API instance.
func GetMarketAPI() *MarketAPI {
	return globalMarketAPI
}

// MarketResponse is the success payload for the market-data endpoints.
// Status is "ok" for both fresh and cached fetches; the provenance
// block carries the cache details.
type MarketResponse struct {
	Status     string                   `json:"status"`
	Symbol     string                   `json:"symbol,omitempty"`
	Kind       core.FetchKind           `json:"kind"`
	Interval   string                   `json:"interval,omitempty"`
	Message    string                   `json:"message,omitempty"`
	Series     *core.Series             `json:"series,omitempty"`
	Sectors    []core.SectorPerformance `json:"sectors,omitempty"`
	News       []core.NewsItem          `json:"news,omitempty"`
	Provenance core.Provenance          `json:"provenance"`
}

var indicatorKinds = map[string]core.FetchKind{
	"rsi":    core.FetchKindRSI,
	"macd":   core.FetchKindMACD,
	"bbands": core.FetchKindBBands,
}

// DailyHandler serves the daily price series for a symbol.
func DailyHandler(w http.ResponseWriter, r *http.Request) {
	api, ok := marketAPI(w, r)
	if !ok {
		return
	}

	symbol, ok := pathSymbol(w, r)
	if !ok {
		return
	}

	serveFetch(w, r, api, core.FetchRequest{
		Symbol:   symbol,
		Kind:     core.FetchKindDaily,
		Identity: quotaIdentity(r),
		NoCache:  noCacheParam(r),
	})
}

// IntradayHandler serves the intraday price series for a symbol.
func IntradayHandler(w http.ResponseWriter, r *http.Request) {
	api, ok := marketAPI(w, r)
	if !ok {
		return
	}

	symbol, ok := pathSymbol(w, r)
	if !ok {
		return
	}

	serveFetch(w, r, api, core.FetchRequest{
		Symbol:   symbol,
		Kind:     core.FetchKindIntraday,
		Interval: strings.TrimSpace(r.URL.Query().Get("interval")),
		Identity: quotaIdentity(r),
		NoCache:  noCacheParam(r),
	})
}

// IndicatorHandler serves a technical indicator series for a symbol.
// The type query parameter selects the indicator: rsi, macd or bbands.
func IndicatorHandler(w http.ResponseWriter, r *http.Request) {
	api, ok := marketAPI(w, r)
	if !ok {
		return
	}

	symbol, ok := pathSymbol(w, r)
	if !ok {
		return
	}

	name := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("type")))
	kind, known := indicatorKinds[name]
	if !known {
		respondWithError(w, r, apperrors.NewInvalidInputError("unknown indicator type: valid types are rsi, macd, bbands"))
		return
	}

	period := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("period")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			respondWithError(w, r, apperrors.NewInvalidInputError("invalid period: must be a non-negative integer"))
			return
		}
		period = parsed
	}

	serveFetch(w, r, api, core.FetchRequest{
		Symbol:   symbol,
		Kind:     kind,
		Interval: strings.TrimSpace(r.URL.Query().Get("interval")),
		Period:   period,
		Identity: quotaIdentity(r),
		NoCache:  noCacheParam(r),
	})
}

// SectorHandler serves the sector performance rankings.
func SectorHandler(w http.ResponseWriter, r *http.Request) {
	api, ok := marketAPI(w, r)
	if !ok {
		return
	}

	serveFetch(w, r, api, core.FetchRequest{
		Kind:     core.FetchKindSector,
		Identity: quotaIdentity(r),
		NoCache:  noCacheParam(r),
	})
}

// NewsHandler serves a financial news search. Either a free-form query
// or a comma-separated symbols parameter drives the search.
func NewsHandler(w http.ResponseWriter, r *http.Request) {
	api, ok := marketAPI(w, r)
	if !ok {
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if query == "" {
		if raw := strings.TrimSpace(r.URL.Query().Get("symbols")); raw != "" {
			symbols := core.NormalizeSymbols(strings.Split(raw, ","))
			for _, symbol := range symbols {
				if !core.ValidSymbol(symbol) {
					respondWithError(w, r, apperrors.NewInvalidInputError("invalid symbol: use 1-10 letters, digits, dots or hyphens"))
					return
				}
			}
			query = strings.Join(symbols, " OR ")
		}
	}

	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			respondWithError(w, r, apperrors.NewInvalidInputError("invalid limit: must be a non-negative integer"))
			return
		}
		limit = parsed
	}

	serveFetch(w, r, api, core.FetchRequest{
		Kind:     core.FetchKindNews,
		Query:    query,
		Limit:    limit,
		Identity: quotaIdentity(r),
		NoCache:  noCacheParam(r),
	})
}

// QuotaResponse reports the provider quota ceiling and the live
// per-identity window state.
type QuotaResponse struct {
	MaxCalls      int           `json:"max_calls"`
	WindowSeconds int           `json:"window_seconds"`
	Windows       []QuotaWindow `json:"windows"`
}

// QuotaWindow is the API projection of one identity's usage window.
type QuotaWindow struct {
	Identity       string `json:"identity"`
	Used           int    `json:"used"`
	Remaining      int    `json:"remaining"`
	ResetInSeconds int    `json:"reset_in_seconds"`
}

// QuotaHandler reports the provider quota and every active window.
func QuotaHandler(w http.ResponseWriter, r *http.Request) {
	api, ok := marketAPI(w, r)
	if !ok {
		return
	}

	windows := make([]QuotaWindow, 0)
	for _, usage := range api.Limiter.Snapshot() {
		windows = append(windows, QuotaWindow{
			Identity:       usage.Identity,
			Used:           usage.Used,
			Remaining:      usage.Remaining,
			ResetInSeconds: retryAfterSeconds(usage.ResetIn),
		})
	}

	writeJSON(w, http.StatusOK, QuotaResponse{
		MaxCalls:      api.Limiter.MaxCalls(),
		WindowSeconds: int(api.Limiter.Window() / time.Second),
		Windows:       windows,
	})
}

// QuotaResetHandler clears quota windows. An identity query parameter
// resets one identity; without it every window is cleared.
func QuotaResetHandler(w http.ResponseWriter, r *http.Request) {
	api, ok := marketAPI(w, r)
	if !ok {
		return
	}

	identity := strings.TrimSpace(r.URL.Query().Get("identity"))
	if identity == "" {
		api.Limiter.ResetAll()
	} else {
		api.Limiter.Reset(identity)
	}
	metrics.RecordOperation("quota_reset", true)

	scope := identity
	if scope == "" {
		scope = "all"
	}
	writeJSON(w, http.StatusOK, map[string]string{"reset": scope})
}

// serveFetch runs one request through the orchestrator and writes the
// HTTP projection of the result: a quota denial becomes 429 with a
// Retry-After header, a provider failure becomes 502, and success
// carries an X-Cache header.
func serveFetch(w http.ResponseWriter, r *http.Request, api *MarketAPI, req core.FetchRequest) {
	result, err := api.Orchestrator.Fetch(r.Context(), req)
	if err != nil {
		respondWithError(w, r, apperrors.WrapUpstream(r.Context(), err, "provider fetch failed"))
		return
	}

	switch result.Status {
	case core.FetchStatusDenied:
		metrics.RecordFetch(result.Provenance.Provider, string(result.Kind), "denied")
		metrics.RecordQuotaDenial(req.Identity)
		if retryIn, active := api.Limiter.ResetIn(req.Identity); active {
			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(retryIn)))
		}
		respondWithError(w, r, apperrors.NewRateLimitedError(result.Message))
		return
	case core.FetchStatusError:
		metrics.RecordFetch(result.Provenance.Provider, string(result.Kind), "error")
		respondWithError(w, r, apperrors.NewInvalidInputError(result.Message))
		return
	}

	if result.Provenance.FromCache {
		metrics.RecordFetch(result.Provenance.Provider, string(result.Kind), "cached")
		metrics.RecordCacheHit(string(result.Kind))
		w.Header().Set("X-Cache", "HIT")
	} else {
		metrics.RecordFetch(result.Provenance.Provider, string(result.Kind), "success")
		metrics.RecordCacheMiss(string(result.Kind))
		w.Header().Set("X-Cache", "MISS")
	}

	writeJSON(w, http.StatusOK, MarketResponse{
		Status:     "ok",
		Symbol:     result.Symbol,
		Kind:       result.Kind,
		Interval:   result.Interval,
		Message:    result.Message,
		Series:     result.Series,
		Sectors:    result.Sectors,
		News:       result.News,
		Provenance: result.Provenance,
	})
}

// marketAPI fetches the shared pipeline, answering 500 when serve has
// not installed it.
func marketAPI(w http.ResponseWriter, r *http.Request) (*MarketAPI, bool) {
	api := GetMarketAPI()
	if api == nil || api.Orchestrator == nil || api.Limiter == nil {
		respondWithError(w, r, apperrors.NewInternalError("market data pipeline is not initialized"))
		return nil, false
	}
	return api, true
}

// pathSymbol extracts and validates the symbol path parameter.
func pathSymbol(w http.ResponseWriter, r *http.Request) (string, bool) {
	symbol := core.NormalizeSymbol(chi.URLParam(r, "symbol"))
	if !core.ValidSymbol(symbol) {
		respondWithError(w, r, apperrors.NewInvalidInputError("invalid symbol: use 1-10 letters, digits, dots or hyphens"))
		return "", false
	}
	return symbol, true
}

// quotaIdentity picks the provider-quota identity a request is charged
// under. API-key clients get their own window; anonymous clients share
// the default identity.
func quotaIdentity(r *http.Request) string {
	if key := strings.TrimSpace(r.Header.Get("X-API-Key")); key != "" {
		return key
	}
	return engine.DefaultIdentity
}

func noCacheParam(r *http.Request) bool {
	value := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("no_cache")))
	return value == "1" || value == "true"
}

// retryAfterSeconds rounds a wait up to whole seconds, never reporting
// less than one second.
func retryAfterSeconds(wait time.Duration) int {
	seconds := int((wait + time.Second - 1) / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	return seconds
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
