package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing
	"github.com/redis/go-redis/v9"

	"github.com/cinewatch/showtime-engine/internal/config"
	"github.com/cinewatch/showtime-engine/internal/handler"
	"github.com/cinewatch/showtime-engine/internal/middleware"
)

// RegisterRoutes registers routes that do not require a tenant context on the
// provided Echo instance. Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	// Map the GET request at path "/healthz" to the Health handler. This
	// endpoint can be used by load balancers or monitoring systems to verify
	// that the service is up and running.
	e.GET("/healthz", handler.Health)
}

// RegisterEngine registers the engine's read interface and the on-demand
// scrape trigger under /v1. Every route resolves the tenant from the
// X-Tenant-ID header first; query endpoints are cached per tenant and the
// scrape trigger is rate-limited per tenant. rdb may be nil, in which case
// both the cache and the limiter become pass-throughs.
func RegisterEngine(e *echo.Echo, h *handler.EngineHandler, rdb *redis.Client) {
	g := e.Group("/v1")
	g.Use(middleware.ResolveTenant())

	cached := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)
	g.GET("/showings", h.GetShowings, cached)
	g.GET("/showings/:id/prices", h.GetShowingPrices, cached)
	g.GET("/alerts", h.GetAlerts, cached)
	g.GET("/runs", h.GetRuns)
	g.GET("/runs/:id", h.GetRun)
	g.GET("/unmatched/films", h.GetUnmatchedFilms)
	g.GET("/unmatched/ticket-types", h.GetUnmatchedTicketTypes)

	// Manual re-scrapes spin up real browser sessions, so the trigger gets a
	// token bucket of its own.
	limited := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
	g.POST("/scrape", h.TriggerScrape, limited)
}
