// Package api exposes the pokedex aggregator over HTTP.
//
// Every data route is served both under /api and unprefixed. A rebuild in
// flight with nothing to serve answers 503 with
// {"status":"refreshing","message":...} and a Retry-After header; every
// other error answers {"detail":...}.
package api

import (
	"github.com/Sternrassler/pokedex-api/pkg/metrics"
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
)

// RouterConfig holds router configuration.
type RouterConfig struct {
	// CORSOrigins lists allowed origins. Empty allows http://localhost:3000.
	CORSOrigins []string

	// AdminAPIKeys guards the admin routes. Empty leaves them open.
	AdminAPIKeys map[string]bool
}

// NewRouter builds the gin engine with middleware and every route.
func NewRouter(handler *Handler, health *HealthHandler, cfg RouterConfig) *gin.Engine {
	router := gin.New()

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:  origins,
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", RequestIDHeader, apiKeyHeader},
		ExposeHeaders: []string{RequestIDHeader, CacheHeader, "Retry-After"},
		MaxAge:        86400,
	}))

	router.Use(
		RequestID(),
		Recovery(),
		metrics.GinMiddleware(),
		gzip.Gzip(gzip.DefaultCompression),
		RequestLogger(),
	)

	health.Register(router)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
	router.GET("/", handler.Root)

	registerRoutes(router.Group("/api"), handler, cfg)
	registerRoutes(router.Group(""), handler, cfg)

	return router
}

func registerRoutes(g *gin.RouterGroup, h *Handler, cfg RouterConfig) {
	g.GET("/summary", h.Summary)
	g.GET("/entity/:key", h.Entity)
	g.GET("/pokemon/:key", h.Entity)
	g.GET("/groupings", h.Groupings)
	g.GET("/categories", h.Categories)

	admin := g.Group("/admin", APIKeyAuth(cfg.AdminAPIKeys))
	admin.POST("/cache/refresh", h.RefreshCache)
}
