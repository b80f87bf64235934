package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Sternrassler/pokedex-api/pkg/metrics"
	"github.com/Sternrassler/pokedex-api/pkg/pokedex"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// StatusRefreshing marks a 503 answer sent while a rebuild is in flight.
// Other error answers never carry a status field.
const StatusRefreshing = "refreshing"

// CacheHeader reports how a successful answer was produced (fresh, cached, stale).
const CacheHeader = "X-Cache"

// ErrorResponse is the body of every error answer except the refreshing one.
type ErrorResponse struct {
	Detail    string `json:"detail"`
	RequestID string `json:"request_id,omitempty"`
}

// RefreshingResponse is the body of a 503 answer while a rebuild is in flight.
type RefreshingResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// MessageResponse is the body of administrative answers.
type MessageResponse struct {
	Message  string `json:"message"`
	CacheKey string `json:"cache_key,omitempty"`
	Deleted  *bool  `json:"deleted,omitempty"`
}

// respond writes an aggregator result: the value, the refreshing answer, or
// the error mapped to its HTTP status.
func respond[T any](c *gin.Context, h *Handler, what string, res pokedex.Result[T], err error) {
	if err != nil {
		h.writeError(c, what, err)
		return
	}
	if res.Rebuilding() {
		h.writeRefreshing(c, what)
		return
	}
	c.Header(CacheHeader, string(res.Status))
	c.JSON(http.StatusOK, res.Value)
}

func (h *Handler) writeRefreshing(c *gin.Context, what string) {
	metrics.RefreshingResponses.WithLabelValues(c.FullPath()).Inc()

	c.Header("Retry-After", strconv.Itoa(int(h.cfg.RetryAfter/time.Second)))
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusServiceUnavailable, RefreshingResponse{
		Status:  StatusRefreshing,
		Message: fmt.Sprintf("The %s is being rebuilt, please check back shortly.", what),
	})
}

// writeError maps an error kind to its HTTP status. Upstream details are
// logged, never returned.
func (h *Handler) writeError(c *gin.Context, what string, err error) {
	var (
		status int
		detail string
		level  = zerolog.WarnLevel
	)

	switch {
	case errors.Is(err, pokedex.ErrInvalidInput):
		status, detail = http.StatusBadRequest, err.Error()
		level = zerolog.DebugLevel
	case errors.Is(err, pokedex.ErrNotFound):
		status, detail = http.StatusNotFound, fmt.Sprintf("%s not found", what)
		level = zerolog.DebugLevel
	case errors.Is(err, pokedex.ErrTransient):
		status, detail = http.StatusBadGateway, "Upstream service temporarily unavailable, please retry later"
	case errors.Is(err, pokedex.ErrPermanent):
		status, detail = http.StatusBadGateway, "Upstream service cannot serve this request"
	default:
		status, detail = http.StatusInternalServerError, "An unexpected error occurred"
		level = zerolog.ErrorLevel
	}

	requestID := GetRequestID(c)
	h.logger.WithLevel(level).
		Err(err).
		Str("request_id", requestID).
		Str("path", c.Request.URL.Path).
		Int("status", status).
		Msg("Request failed")

	c.JSON(status, ErrorResponse{Detail: detail, RequestID: requestID})
}

// badRequest answers 400 for malformed parameters.
func badRequest(c *gin.Context, detail string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Detail: detail, RequestID: GetRequestID(c)})
}
