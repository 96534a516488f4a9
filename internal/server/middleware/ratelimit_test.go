package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/marketlens/marketlens/internal/core/engine"
	"github.com/marketlens/marketlens/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, maxCalls int) *engine.Limiter {
	t.Helper()

	limiter, err := engine.NewLimiter(engine.QuotaConfig{
		MaxCalls: maxCalls,
		Window:   time.Minute,
	})
	require.NoError(t, err)

	return limiter
}

func TestRateLimit_AllowsRequestsWithinQuota(t *testing.T) {
	limiter := newTestLimiter(t, 2)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	middleware := RateLimit(limiter)(handler)

	req := httptest.NewRequest("GET", "/v0/daily/AAPL", nil)
	rec := httptest.NewRecorder()

	middleware.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Remaining"))

	rec = httptest.NewRecorder()
	middleware.ServeHTTP(rec, httptest.NewRequest("GET", "/v0/daily/AAPL", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
}

func TestRateLimit_RejectsWhenQuotaExhausted(t *testing.T) {
	collector := setupTelemetry(t)
	limiter := newTestLimiter(t, 1)

	handlerCalls := 0
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalls++
		w.WriteHeader(http.StatusOK)
	})

	middleware := RateLimit(limiter)(handler)

	rec := httptest.NewRecorder()
	middleware.ServeHTTP(rec, httptest.NewRequest("GET", "/v0/daily/AAPL", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	middleware.ServeHTTP(rec, httptest.NewRequest("GET", "/v0/daily/AAPL", nil))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, 1, handlerCalls, "rejected request must not reach the handler")
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	retryAfter, err := strconv.Atoi(rec.Header().Get("Retry-After"))
	require.NoError(t, err, "Retry-After should be an integer second count")
	assert.GreaterOrEqual(t, retryAfter, 1)
	assert.LessOrEqual(t, retryAfter, 60)

	var body ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "RATE_LIMITED", body.Error.Code)
	assert.Contains(t, body.Error.Message, "Rate limit reached")

	assert.Greater(t, collector.CountMetricsByName(metrics.QuotaDenialsTotalName), 0,
		"expected a quota denial counter to be emitted")
}

func TestRateLimit_NilLimiterDisablesMiddleware(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	middleware := RateLimit(nil)(handler)

	for i := 0; i < 10; i++ {
		rec := httptest.NewRecorder()
		middleware.ServeHTTP(rec, httptest.NewRequest("GET", "/v0/daily/AAPL", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
	}
}

func TestRateLimit_TracksClientsSeparately(t *testing.T) {
	limiter := newTestLimiter(t, 1)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	middleware := RateLimit(limiter)(handler)

	serve := func(apiKey string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("GET", "/v0/daily/AAPL", nil)
		if apiKey != "" {
			req.Header.Set("X-API-Key", apiKey)
		}
		rec := httptest.NewRecorder()
		middleware.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, serve("alpha").Code)
	assert.Equal(t, http.StatusTooManyRequests, serve("alpha").Code)

	// Other keys and anonymous clients hold their own windows.
	assert.Equal(t, http.StatusOK, serve("beta").Code)
	assert.Equal(t, http.StatusOK, serve("").Code)
	assert.Equal(t, http.StatusTooManyRequests, serve("").Code)
}

func TestClientKey(t *testing.T) {
	tests := []struct {
		name       string
		apiKey     string
		remoteAddr string
		expected   string
	}{
		{"api key wins", "client-42", "192.0.2.1:1234", "client-42"},
		{"remote host without port", "", "192.0.2.1:1234", "192.0.2.1"},
		{"ipv6 host without port", "", "[2001:db8::1]:443", "2001:db8::1"},
		{"bare address kept verbatim", "", "192.0.2.1", "192.0.2.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/v0/quota", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.apiKey != "" {
				req.Header.Set("X-API-Key", tt.apiKey)
			}

			assert.Equal(t, tt.expected, clientKey(req))
		})
	}
}
