package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Sternrassler/pokedex-api/pkg/cache"
	"github.com/Sternrassler/pokedex-api/pkg/pokedex"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubService answers with canned results and records its arguments.
type stubService struct {
	summary    pokedex.Result[[]pokedex.Summary]
	detail     pokedex.Result[pokedex.Detail]
	groupings  pokedex.Result[[]pokedex.Grouping]
	categories pokedex.Result[[]pokedex.Category]
	err        error

	invalidatedKey string
	deleted        bool
	states         map[string]string

	lastKey   string
	lastForce bool
	calls     int
}

func (s *stubService) SummaryList(_ context.Context, force bool) (pokedex.Result[[]pokedex.Summary], error) {
	s.calls++
	s.lastForce = force
	return s.summary, s.err
}

func (s *stubService) Detail(_ context.Context, key string, force bool) (pokedex.Result[pokedex.Detail], error) {
	s.calls++
	s.lastKey, s.lastForce = key, force
	return s.detail, s.err
}

func (s *stubService) Groupings(_ context.Context, force bool) (pokedex.Result[[]pokedex.Grouping], error) {
	s.calls++
	s.lastForce = force
	return s.groupings, s.err
}

func (s *stubService) Categories(_ context.Context, force bool) (pokedex.Result[[]pokedex.Category], error) {
	s.calls++
	s.lastForce = force
	return s.categories, s.err
}

func (s *stubService) Invalidate(_ context.Context, raw string) (string, bool, error) {
	s.calls++
	s.lastKey = raw
	return s.invalidatedKey, s.deleted, s.err
}

func (s *stubService) EntryState(_ context.Context, key string) string {
	if state, ok := s.states[key]; ok {
		return state
	}
	return "empty"
}

func (s *stubService) Keys() cache.Keys {
	return cache.NewKeys("test")
}

func newTestRouter(svc Service, cfg RouterConfig) *gin.Engine {
	handler := NewHandler(svc, HandlerConfig{Backend: "memory", RetryAfter: 7 * time.Second})
	return NewRouter(handler, NewHealthHandler(time.Second), cfg)
}

func do(router http.Handler, method, target string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), "body: %s", w.Body.String())
	return body
}

func TestSummary_Statuses(t *testing.T) {
	list := []pokedex.Summary{{ID: 1, Name: "bulbasaur", Types: []string{"grass"}}}

	for _, status := range []pokedex.Status{pokedex.StatusFresh, pokedex.StatusCached, pokedex.StatusStale} {
		t.Run(string(status), func(t *testing.T) {
			svc := &stubService{summary: pokedex.Result[[]pokedex.Summary]{Value: list, Status: status}}
			w := do(newTestRouter(svc, RouterConfig{}), http.MethodGet, "/api/summary", nil)

			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, string(status), w.Header().Get(CacheHeader))

			var got []pokedex.Summary
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
			assert.Equal(t, list, got)
		})
	}
}

func TestRebuilding_Answers503(t *testing.T) {
	routes := []struct {
		path string
		svc  *stubService
	}{
		{"/api/summary", &stubService{summary: pokedex.Result[[]pokedex.Summary]{Status: pokedex.StatusRebuilding}}},
		{"/api/entity/25", &stubService{detail: pokedex.Result[pokedex.Detail]{Status: pokedex.StatusRebuilding}}},
		{"/api/groupings", &stubService{groupings: pokedex.Result[[]pokedex.Grouping]{Status: pokedex.StatusRebuilding}}},
		{"/categories", &stubService{categories: pokedex.Result[[]pokedex.Category]{Status: pokedex.StatusRebuilding}}},
	}

	for _, tt := range routes {
		t.Run(tt.path, func(t *testing.T) {
			w := do(newTestRouter(tt.svc, RouterConfig{}), http.MethodGet, tt.path, nil)

			require.Equal(t, http.StatusServiceUnavailable, w.Code)
			assert.Equal(t, "7", w.Header().Get("Retry-After"))
			assert.Empty(t, w.Header().Get(CacheHeader))

			body := decode(t, w)
			assert.Equal(t, StatusRefreshing, body["status"])
			assert.NotEmpty(t, body["message"])
			assert.NotContains(t, body, "detail")
		})
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantDetail string
	}{
		{"not found", fmt.Errorf("%w: pokemon/nope", pokedex.ErrNotFound), http.StatusNotFound, "not found"},
		{"transient", fmt.Errorf("%w: timeout", pokedex.ErrTransient), http.StatusBadGateway, "temporarily unavailable"},
		{"permanent", fmt.Errorf("%w: 400", pokedex.ErrPermanent), http.StatusBadGateway, "cannot serve"},
		{"invalid", fmt.Errorf("%w: bad", pokedex.ErrInvalidInput), http.StatusBadRequest, "invalid input"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "unexpected"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{err: tt.err}
			w := do(newTestRouter(svc, RouterConfig{}), http.MethodGet, "/api/pokemon/notapokemon", nil)

			require.Equal(t, tt.wantStatus, w.Code)
			body := decode(t, w)
			assert.Contains(t, body["detail"], tt.wantDetail)
			assert.NotContains(t, body, "status")
			assert.NotEmpty(t, body["request_id"])
		})
	}
}

func TestErrorMapping_HidesUpstreamDetails(t *testing.T) {
	svc := &stubService{err: fmt.Errorf("%w: GET https://pokeapi.co/api/v2/type: 503", pokedex.ErrTransient)}
	w := do(newTestRouter(svc, RouterConfig{}), http.MethodGet, "/api/categories", nil)

	require.Equal(t, http.StatusBadGateway, w.Code)
	assert.NotContains(t, w.Body.String(), "pokeapi.co")
}

func TestEntity_NormalizesKey(t *testing.T) {
	svc := &stubService{detail: pokedex.Result[pokedex.Detail]{
		Value:  pokedex.Detail{Summary: pokedex.Summary{ID: 25, Name: "pikachu"}},
		Status: pokedex.StatusCached,
	}}
	router := newTestRouter(svc, RouterConfig{})

	for path, want := range map[string]string{
		"/api/entity/025":      "25",
		"/api/pokemon/PIKACHU": "pikachu",
		"/entity/mr-mime":      "mr-mime",
	} {
		w := do(router, http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, w.Code, path)
		assert.Equal(t, want, svc.lastKey, path)
	}
}

func TestEntity_MalformedKey(t *testing.T) {
	svc := &stubService{}
	router := newTestRouter(svc, RouterConfig{})

	for _, path := range []string{"/api/entity/0", "/api/entity/pika_chu", "/api/entity/%20"} {
		w := do(router, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, path)
	}
	assert.Zero(t, svc.calls, "malformed keys must not reach the service")
}

func TestForceRefresh(t *testing.T) {
	tests := []struct {
		query      string
		wantStatus int
		wantForce  bool
	}{
		{"", http.StatusOK, false},
		{"?force_refresh=true", http.StatusOK, true},
		{"?force_refresh=1", http.StatusOK, true},
		{"?force_refresh=false", http.StatusOK, false},
		{"?force_refresh=", http.StatusOK, false},
		{"?force_refresh=maybe", http.StatusBadRequest, false},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			svc := &stubService{groupings: pokedex.Result[[]pokedex.Grouping]{
				Value:  []pokedex.Grouping{},
				Status: pokedex.StatusFresh,
			}}
			w := do(newTestRouter(svc, RouterConfig{}), http.MethodGet, "/api/groupings"+tt.query, nil)

			require.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantForce, svc.lastForce)
			if tt.wantStatus == http.StatusBadRequest {
				assert.Zero(t, svc.calls)
			}
		})
	}
}

func TestRefreshCache(t *testing.T) {
	t.Run("deleted", func(t *testing.T) {
		svc := &stubService{invalidatedKey: "test:summary", deleted: true}
		w := do(newTestRouter(svc, RouterConfig{}), http.MethodPost, "/api/admin/cache/refresh?cache_key=summary", nil)

		require.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		assert.Equal(t, "summary", svc.lastKey)
		assert.Equal(t, "test:summary", body["cache_key"])
		assert.Equal(t, true, body["deleted"])
		assert.Contains(t, body["message"], "invalidated")
	})

	t.Run("absent", func(t *testing.T) {
		svc := &stubService{invalidatedKey: "test:detail:25"}
		w := do(newTestRouter(svc, RouterConfig{}), http.MethodPost, "/admin/cache/refresh?cache_key=detail:25", nil)

		require.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		assert.Equal(t, false, body["deleted"])
		assert.Contains(t, body["message"], "not present")
	})

	t.Run("missing key", func(t *testing.T) {
		svc := &stubService{}
		w := do(newTestRouter(svc, RouterConfig{}), http.MethodPost, "/api/admin/cache/refresh", nil)

		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, decode(t, w)["detail"], "cache_key")
		assert.Zero(t, svc.calls)
	})

	t.Run("unknown key", func(t *testing.T) {
		svc := &stubService{err: fmt.Errorf("%w: unknown cache key", pokedex.ErrInvalidInput)}
		w := do(newTestRouter(svc, RouterConfig{}), http.MethodPost, "/api/admin/cache/refresh?cache_key=lock:summary", nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("GET not allowed", func(t *testing.T) {
		svc := &stubService{}
		w := do(newTestRouter(svc, RouterConfig{}), http.MethodGet, "/api/admin/cache/refresh?cache_key=summary", nil)

		assert.NotEqual(t, http.StatusOK, w.Code)
		assert.Zero(t, svc.calls)
	})
}

func TestRefreshCache_APIKey(t *testing.T) {
	cfg := RouterConfig{AdminAPIKeys: map[string]bool{"secret": true}}
	target := "/api/admin/cache/refresh?cache_key=summary"

	tests := []struct {
		name       string
		target     string
		header     map[string]string
		wantStatus int
	}{
		{"no key", target, nil, http.StatusUnauthorized},
		{"wrong key", target, map[string]string{"X-API-Key": "nope"}, http.StatusUnauthorized},
		{"header", target, map[string]string{"X-API-Key": "secret"}, http.StatusOK},
		{"query", target + "&api_key=secret", nil, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{invalidatedKey: "test:summary", deleted: true}
			w := do(newTestRouter(svc, cfg), http.MethodPost, tt.target, tt.header)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestRoot(t *testing.T) {
	keys := cache.NewKeys("test")
	svc := &stubService{states: map[string]string{
		keys.Summary():   "fresh",
		keys.Groupings(): "stale",
	}}
	w := do(newTestRouter(svc, RouterConfig{}), http.MethodGet, "/", nil)

	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "Welcome to the Pokedex API!", body["message"])
	assert.Contains(t, body, "documentation")
	assert.Equal(t, "memory", body["cache_backend"])
	assert.Equal(t, map[string]any{
		"summary":    "fresh",
		"groupings":  "stale",
		"categories": "empty",
	}, body["cache"])
}

func TestNewHandler_DefaultRetryAfter(t *testing.T) {
	h := NewHandler(&stubService{}, HandlerConfig{})
	assert.Equal(t, DefaultHandlerConfig().RetryAfter, h.cfg.RetryAfter)
}
