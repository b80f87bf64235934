package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Sternrassler/pokedex-api/pkg/cache"
	"github.com/Sternrassler/pokedex-api/pkg/logging"
	"github.com/Sternrassler/pokedex-api/pkg/pokedex"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Service is the part of the aggregator the handlers use.
type Service interface {
	SummaryList(ctx context.Context, forceRefresh bool) (pokedex.Result[[]pokedex.Summary], error)
	Detail(ctx context.Context, key string, forceRefresh bool) (pokedex.Result[pokedex.Detail], error)
	Groupings(ctx context.Context, forceRefresh bool) (pokedex.Result[[]pokedex.Grouping], error)
	Categories(ctx context.Context, forceRefresh bool) (pokedex.Result[[]pokedex.Category], error)
	Invalidate(ctx context.Context, raw string) (string, bool, error)
	EntryState(ctx context.Context, key string) string
	Keys() cache.Keys
}

// HandlerConfig holds handler options.
type HandlerConfig struct {
	// Backend names the cache backend in the welcome answer.
	Backend string

	// RetryAfter is advertised to clients that receive a refreshing answer.
	RetryAfter time.Duration
}

// DefaultHandlerConfig returns the default handler configuration.
func DefaultHandlerConfig() HandlerConfig {
	return HandlerConfig{
		Backend:    "memory",
		RetryAfter: 5 * time.Second,
	}
}

// Handler serves the pokedex endpoints.
type Handler struct {
	svc    Service
	cfg    HandlerConfig
	logger zerolog.Logger
}

// NewHandler creates a handler on top of svc.
func NewHandler(svc Service, cfg HandlerConfig) *Handler {
	if cfg.RetryAfter < time.Second {
		cfg.RetryAfter = DefaultHandlerConfig().RetryAfter
	}
	return &Handler{
		svc:    svc,
		cfg:    cfg,
		logger: logging.NewLogger("api"),
	}
}

// Root answers with a welcome message and the state of the listing entries.
func (h *Handler) Root(c *gin.Context) {
	ctx := c.Request.Context()
	keys := h.svc.Keys()

	c.JSON(http.StatusOK, gin.H{
		"message":       "Welcome to the Pokedex API!",
		"documentation": "/api",
		"cache_backend": h.cfg.Backend,
		"cache": gin.H{
			cache.NameSummary:    h.svc.EntryState(ctx, keys.Summary()),
			cache.NameGroupings:  h.svc.EntryState(ctx, keys.Groupings()),
			cache.NameCategories: h.svc.EntryState(ctx, keys.Categories()),
		},
	})
}

// Summary handles GET /summary.
func (h *Handler) Summary(c *gin.Context) {
	force, ok := forceRefresh(c)
	if !ok {
		return
	}
	res, err := h.svc.SummaryList(c.Request.Context(), force)
	respond(c, h, "summary list", res, err)
}

// Entity handles GET /entity/:key.
func (h *Handler) Entity(c *gin.Context) {
	force, ok := forceRefresh(c)
	if !ok {
		return
	}

	key, err := pokedex.NormalizeKey(c.Param("key"))
	if err != nil {
		h.writeError(c, "entity", err)
		return
	}

	res, err := h.svc.Detail(c.Request.Context(), key, force)
	respond(c, h, fmt.Sprintf("Pokémon %q", key), res, err)
}

// Groupings handles GET /groupings.
func (h *Handler) Groupings(c *gin.Context) {
	force, ok := forceRefresh(c)
	if !ok {
		return
	}
	res, err := h.svc.Groupings(c.Request.Context(), force)
	respond(c, h, "generation list", res, err)
}

// Categories handles GET /categories.
func (h *Handler) Categories(c *gin.Context) {
	force, ok := forceRefresh(c)
	if !ok {
		return
	}
	res, err := h.svc.Categories(c.Request.Context(), force)
	respond(c, h, "type list", res, err)
}

// RefreshCache handles POST /admin/cache/refresh?cache_key=.
// The named entry is deleted; the next read rebuilds it.
func (h *Handler) RefreshCache(c *gin.Context) {
	raw := c.Query("cache_key")
	if raw == "" {
		badRequest(c, "cache_key query parameter is required")
		return
	}

	key, deleted, err := h.svc.Invalidate(c.Request.Context(), raw)
	if err != nil {
		h.writeError(c, "cache entry", err)
		return
	}

	message := fmt.Sprintf("Cache entry %s invalidated", key)
	if !deleted {
		message = fmt.Sprintf("Cache entry %s was not present", key)
	}
	c.JSON(http.StatusOK, MessageResponse{Message: message, CacheKey: key, Deleted: &deleted})
}

// forceRefresh parses the force_refresh query parameter. It answers 400 and
// returns false when the value is malformed.
func forceRefresh(c *gin.Context) (bool, bool) {
	raw, present := c.GetQuery("force_refresh")
	if !present || raw == "" {
		return false, true
	}
	force, err := strconv.ParseBool(raw)
	if err != nil {
		badRequest(c, fmt.Sprintf("force_refresh must be a boolean, got %q", raw))
		return false, false
	}
	return force, true
}
