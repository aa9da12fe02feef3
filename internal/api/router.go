package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

// RouterConfig holds configuration for the router
type RouterConfig struct {
	Database     HealthChecker
	Activity     ActivitySource
	Warmer       WarmerStatusProvider
	CORSOrigins  []string
	AllowAllCORS bool
	Logger       logrus.FieldLogger

	// Per-IP requests per minute; zero uses the defaults
	GlobalRateLimit int
	FeedRateLimit   int
}

// RouterResult holds the router and resources that need cleanup
type RouterResult struct {
	Router       *chi.Mux
	RateLimiters *RateLimiters
}

// NewRouter creates and configures the HTTP router.
// Caller must call result.RateLimiters.Stop() on shutdown.
func NewRouter(cfg *RouterConfig) *RouterResult {
	r := chi.NewRouter()
	rateLimiters := NewRateLimiters(cfg.GlobalRateLimit, cfg.FeedRateLimit)

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(middleware.Recoverer)
	r.Use(CORSMiddleware(cfg.CORSOrigins, cfg.AllowAllCORS))
	r.Use(rateLimiters.Global.Middleware)

	r.Get("/api/health", NewHealthHandler(cfg.Database, cfg.Warmer, cfg.Logger))

	activityHandler := NewActivityHandler(cfg.Activity, cfg.Logger)
	r.Get("/api/stats", activityHandler.Stats)
	r.With(rateLimiters.Feed.Middleware).Get("/api/commits", activityHandler.Commits)

	return &RouterResult{
		Router:       r,
		RateLimiters: rateLimiters,
	}
}
