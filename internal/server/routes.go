package server

import (
	"context"
	"crypto/subtle"
	"net/http"
	"os"

	"github.com/fulmenhq/gofulmen/signals"

	"github.com/marketlens/marketlens/internal/appid"
	"go.uber.org/zap"

	apperrors "github.com/marketlens/marketlens/internal/errors"
	"github.com/marketlens/marketlens/internal/observability"
	"github.com/marketlens/marketlens/internal/server/handlers"
)

// registerRoutes registers all HTTP routes
func (s *Server) registerRoutes() {
	// Standard health endpoints per Workhorse §9
	s.router.Get("/health", handlers.HealthHandler)
	s.router.Get("/health/live", handlers.LivenessHandler)
	s.router.Get("/health/ready", handlers.ReadinessHandler)
	s.router.Get("/health/startup", handlers.StartupHandler)

	// Version endpoint
	s.router.Get("/version", handlers.VersionHandler)

	// Metrics endpoint (in server package to access HandleError)
	s.router.Get("/metrics", MetricsHandler)

	// Market data endpoints
	s.router.Get("/v0/daily/{symbol}", handlers.DailyHandler)
	s.router.Get("/v0/intraday/{symbol}", handlers.IntradayHandler)
	s.router.Get("/v0/indicator/{symbol}", handlers.IndicatorHandler)
	s.router.Get("/v0/sector", handlers.SectorHandler)
	s.router.Get("/v0/news", handlers.NewsHandler)
	s.router.Get("/v0/quota", handlers.QuotaHandler)

	// Admin endpoints (optional, require MARKETLENS_ADMIN_TOKEN)
	s.registerAdminEndpoint()
}

// registerAdminEndpoint optionally registers the admin endpoints
func (s *Server) registerAdminEndpoint() {
	// Get admin token from environment (identity-aware)
	ctx := context.Background()
	identity, _ := appid.Get(ctx)
	envPrefix := "WORKHORSE_"
	if identity != nil && identity.EnvPrefix != "" {
		envPrefix = identity.EnvPrefix
	}

	adminToken := os.Getenv(envPrefix + "ADMIN_TOKEN")
	logger := observability.ServerLogger

	if adminToken == "" {
		if logger != nil {
			logger.Debug("Admin endpoints disabled (no " + envPrefix + "ADMIN_TOKEN set)")
		}
		return
	}

	// Create HTTP signal handler with bearer token auth and rate limiting
	handler := signals.NewHTTPHandler(signals.HTTPConfig{
		TokenAuth: adminToken,
		RateLimit: 10,  // 10 requests per minute
		RateBurst: 5,   // burst size
		Manager:   nil, // use default global manager
	})

	// Register admin endpoints
	s.router.Post("/admin/signal", handler.ServeHTTP)
	s.router.Post("/admin/quota/reset", requireBearer(adminToken, handlers.QuotaResetHandler))

	if logger != nil {
		logger.Info("Admin endpoints enabled",
			zap.String("paths", "/admin/signal, /admin/quota/reset"),
			zap.String("auth", "bearer token"),
			zap.String("rate_limit", "10/min, burst 5"))
		logger.Warn("Admin endpoints enabled - ensure this server is not exposed to public internet")
	}
}

// requireBearer gates a handler behind a bearer token.
func requireBearer(token string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if subtle.ConstantTimeCompare([]byte(header), []byte("Bearer "+token)) != 1 {
			HandleError(w, r, apperrors.NewUnauthorizedError("A valid bearer token is required"))
			return
		}
		next(w, r)
	}
}
