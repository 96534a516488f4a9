package middleware

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/fulmenhq/gofulmen/errors"
	"github.com/marketlens/marketlens/internal/core/engine"
	"github.com/marketlens/marketlens/internal/metrics"
)

// RateLimit rejects requests once a client exhausts its sliding
// window. Clients are keyed by X-API-Key when present, falling back to
// the remote IP (RealIP runs earlier in the chain). A nil limiter
// disables the middleware.
func RateLimit(limiter *engine.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client := clientKey(r)
			decision := limiter.Acquire(client)

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))

			if decision.Allowed {
				next.ServeHTTP(w, r)
				return
			}

			metrics.RecordQuotaDenial(client)

			retryAfter := int((decision.RetryIn + time.Second - 1) / time.Second)
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))

			envelope := errors.NewErrorEnvelope("RATE_LIMITED", decision.Message).
				WithCorrelationID(GetRequestID(r.Context()))
			writeErrorResponse(w, envelope, http.StatusTooManyRequests)
		})
	}
}

// clientKey picks the identity a request is limited under.
func clientKey(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil || host == "" {
		return r.RemoteAddr
	}
	return host
}
