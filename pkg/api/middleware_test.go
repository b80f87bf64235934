package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestID(t *testing.T) {
	router := gin.New()
	router.Use(RequestID())
	router.GET("/", func(c *gin.Context) { c.String(http.StatusOK, GetRequestID(c)) })

	t.Run("generated", func(t *testing.T) {
		w := do(router, http.MethodGet, "/", nil)
		id := w.Header().Get(RequestIDHeader)
		_, err := uuid.Parse(id)
		assert.NoError(t, err)
		assert.Equal(t, id, w.Body.String())
	})

	t.Run("propagated", func(t *testing.T) {
		w := do(router, http.MethodGet, "/", map[string]string{RequestIDHeader: "abc-123"})
		assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
		assert.Equal(t, "abc-123", w.Body.String())
	})
}

func TestGetRequestID_OutsideMiddleware(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Empty(t, GetRequestID(c))
}

func TestRecovery(t *testing.T) {
	router := gin.New()
	router.Use(RequestID(), Recovery())
	router.GET("/panic", func(c *gin.Context) { panic("boom") })

	w := do(router, http.MethodGet, "/panic", nil)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	body := decode(t, w)
	assert.Equal(t, "An unexpected error occurred", body["detail"])
	assert.Equal(t, w.Header().Get(RequestIDHeader), body["request_id"])
}

func TestRequestLogger_PassesThrough(t *testing.T) {
	router := gin.New()
	router.Use(RequestID(), RequestLogger())
	router.GET("/ok", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	router.GET("/bad", func(c *gin.Context) { c.Status(http.StatusBadGateway) })

	assert.Equal(t, http.StatusNoContent, do(router, http.MethodGet, "/ok?x=1", nil).Code)
	assert.Equal(t, http.StatusBadGateway, do(router, http.MethodGet, "/bad", nil).Code)
}

func TestAPIKeyAuth_EmptySetDisablesCheck(t *testing.T) {
	router := gin.New()
	router.Use(APIKeyAuth(nil))
	router.POST("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, do(router, http.MethodPost, "/", nil).Code)
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestReadiness(t *testing.T) {
	tests := []struct {
		name       string
		checkers   map[string]Checker
		wantStatus int
		wantBody   string
	}{
		{"no checkers", nil, http.StatusOK, "ok"},
		{
			"all healthy",
			map[string]Checker{"cache": pingFunc(func(context.Context) error { return nil })},
			http.StatusOK, "ok",
		},
		{
			"one failing",
			map[string]Checker{
				"cache":    pingFunc(func(context.Context) error { return nil }),
				"upstream": pingFunc(func(context.Context) error { return errors.New("connection refused") }),
			},
			http.StatusServiceUnavailable, "degraded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			health := NewHealthHandler(time.Second)
			for name, c := range tt.checkers {
				health.AddChecker(name, c)
			}
			router := gin.New()
			health.Register(router)

			w := do(router, http.MethodGet, "/readyz", nil)
			require.Equal(t, tt.wantStatus, w.Code)
			body := decode(t, w)
			assert.Equal(t, tt.wantBody, body["status"])
			if tt.wantStatus != http.StatusOK {
				assert.Equal(t, "connection refused", body["checks"].(map[string]any)["upstream"])
			}
		})
	}
}

func TestReadiness_Timeout(t *testing.T) {
	health := NewHealthHandler(20 * time.Millisecond)
	health.AddChecker("slow", pingFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))
	router := gin.New()
	health.Register(router)

	w := do(router, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestServer_RunStopsOnContext(t *testing.T) {
	cfg := DefaultServerConfig()
	cfg.Addr = "127.0.0.1:0"
	cfg.ShutdownTimeout = time.Second
	server := NewServer(http.NotFoundHandler(), cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}
