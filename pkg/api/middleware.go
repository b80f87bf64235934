package api

import (
	"net/http"
	"time"

	"github.com/Sternrassler/pokedex-api/pkg/logging"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

const (
	requestIDKey = "request_id"
	apiKeyHeader = "X-API-Key"
)

// RequestID reuses the caller's X-Request-ID or generates one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// GetRequestID returns the id assigned by RequestID, or "" outside it.
func GetRequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// RequestLogger logs one line per request. The level follows the status:
// 5xx at error, 4xx at warn, everything else at info.
func RequestLogger() gin.HandlerFunc {
	logger := logging.NewLogger("http")

	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path += "?" + raw
		}

		c.Next()

		status := c.Writer.Status()
		var event *zerolog.Event
		switch {
		case status >= http.StatusInternalServerError:
			event = logger.Error()
		case status >= http.StatusBadRequest:
			event = logger.Warn()
		default:
			event = logger.Info()
		}

		event.
			Str("request_id", GetRequestID(c)).
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status_code", status).
			Dur("duration_ms", time.Since(start)).
			Str("ip", c.ClientIP()).
			Str("user_agent", c.Request.UserAgent()).
			Str("cache", c.Writer.Header().Get(CacheHeader)).
			Msg("HTTP request")
	}
}

// Recovery turns a panic into a 500 answer and logs it.
func Recovery() gin.HandlerFunc {
	logger := logging.NewLogger("http")

	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error().
					Interface("panic", r).
					Str("request_id", GetRequestID(c)).
					Str("path", c.Request.URL.Path).
					Msg("Panic recovered")

				c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
					Detail:    "An unexpected error occurred",
					RequestID: GetRequestID(c),
				})
			}
		}()
		c.Next()
	}
}

// APIKeyAuth guards a route group with a static key set. The key is read from
// the X-API-Key header, falling back to the api_key query parameter.
// An empty key set disables the check.
func APIKeyAuth(validKeys map[string]bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(validKeys) == 0 {
			c.Next()
			return
		}

		key := c.GetHeader(apiKeyHeader)
		if key == "" {
			key = c.Query("api_key")
		}
		if key == "" || !validKeys[key] {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Detail:    "a valid API key is required",
				RequestID: GetRequestID(c),
			})
			return
		}
		c.Next()
	}
}
