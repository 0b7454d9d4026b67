// Package server builds the HTTP API: global middleware, route groups with their rate limits and
// the credential adapters that hand each handler its principal.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	analyticshandler "web-analytics/backend/internal/analytics/handler"
	apikeyhandler "web-analytics/backend/internal/apikey/handler"
	healthhandler "web-analytics/backend/internal/health/handler"
	"web-analytics/backend/internal/logging"
	"web-analytics/backend/internal/platform/httpx"
	"web-analytics/backend/internal/platform/principal"
	"web-analytics/backend/internal/server/middleware"
	userhandler "web-analytics/backend/internal/user/handler"
)

// Version is reported by GET /.
var Version = "1.0.0"

// Deps holds everything the router mounts.
type Deps struct {
	Logger zerolog.Logger

	Sessions middleware.SessionValidator
	APIKeys  middleware.KeyAuthenticator

	Analytics *analyticshandler.Handler
	Keys      *apikeyhandler.Handler
	Users     *userhandler.Handler
	Health    *healthhandler.Handler

	CORSOrigins    []string
	RequestTimeout time.Duration

	// Owner API limiter, per client address.
	RateLimitMax    int
	RateLimitWindow time.Duration
	// Collect limiter, per API key.
	CollectRateLimitMax    int
	CollectRateLimitWindow time.Duration
}

// NewRouter returns the API handler.
//
//	GET  /                               banner
//	GET  /health                         liveness
//	GET  /health/ready                   readiness
//	GET  /metrics                        prometheus
//	POST /analytics/collect              x-api-key
//	GET  /analytics/event-summary        bearer
//	GET  /analytics/user-stats           bearer
//	GET  /auth/me                        bearer
//	POST /auth/logout                    bearer
//	POST /api-keys/register              bearer
//	GET  /api-keys/apps                  bearer
//	GET  /api-keys/{appId}               bearer
//	POST /api-keys/{apiKeyId}/revoke     bearer
//	POST /api-keys/{appId}/regenerate    bearer
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.SecurityHeaders)
	r.Use(logging.Middleware(d.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Metrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", middleware.APIKeyHeader},
		ExposedHeaders:   []string{logging.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           86400,
	}))
	if d.RequestTimeout > 0 {
		r.Use(chimiddleware.Timeout(d.RequestTimeout))
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Error(w, http.StatusNotFound, "Endpoint not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Error(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "Web Analytics API",
			"version": Version,
		})
	})
	r.Get("/health", d.Health.Live)
	r.Get("/health/ready", d.Health.Ready)
	r.Handle("/metrics", promhttp.Handler())

	owner := func(fn principal.OwnerHandlerFunc) http.HandlerFunc {
		return middleware.Session(d.Sessions, fn)
	}

	r.Route("/analytics", func(r chi.Router) {
		r.With(middleware.LimitCollect(d.CollectRateLimitMax, d.CollectRateLimitWindow)).
			Post("/collect", middleware.APIKey(d.APIKeys, d.Analytics.Collect))

		r.Group(func(r chi.Router) {
			r.Use(middleware.LimitByIP(d.RateLimitMax, d.RateLimitWindow))
			r.Get("/event-summary", owner(d.Analytics.EventSummary))
			r.Get("/user-stats", owner(d.Analytics.UserStats))
		})
	})

	r.Route("/auth", func(r chi.Router) {
		r.Use(middleware.LimitByIP(d.RateLimitMax, d.RateLimitWindow))
		r.Get("/me", owner(d.Users.Me))
		r.Post("/logout", owner(d.Users.Logout))
	})

	r.Route("/api-keys", func(r chi.Router) {
		r.Use(middleware.LimitByIP(d.RateLimitMax, d.RateLimitWindow))
		r.Post("/register", owner(d.Keys.Register))
		r.Get("/apps", owner(d.Keys.ListApps))
		r.Get("/{appId}", owner(d.Keys.GetApp))
		r.Post("/{apiKeyId}/revoke", owner(d.Keys.Revoke))
		r.Post("/{appId}/regenerate", owner(d.Keys.Regenerate))
	})

	return r
}
