package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// MockResponse is one canned answer of MockPokeAPI. Delay holds the answer
// back unless the client gives up first.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

func (resp MockResponse) write(w http.ResponseWriter, r *http.Request) {
	if resp.Delay > 0 {
		t := time.NewTimer(resp.Delay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-r.Context().Done():
			return
		}
	}
	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write([]byte(resp.Body))
}

// MockPokeAPI is an httptest server speaking the PokeAPI v2 URL layout.
// Routes are exact paths without trailing slash; anything unrouted answers a
// plain-text 404 like the real service.
type MockPokeAPI struct {
	server *httptest.Server

	mu        sync.Mutex
	routes    map[string]func() MockResponse
	hits      map[string]int
	total     int
	userAgent string
}

// NewMockPokeAPI starts the server. Callers must Close it.
func NewMockPokeAPI() *MockPokeAPI {
	m := &MockPokeAPI{
		routes: make(map[string]func() MockResponse),
		hits:   make(map[string]int),
	}
	m.server = httptest.NewServer(http.HandlerFunc(m.serve))
	return m
}

func (m *MockPokeAPI) serve(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimRight(r.URL.Path, "/")

	m.mu.Lock()
	m.total++
	m.hits[path]++
	m.userAgent = r.UserAgent()
	route, ok := m.routes[path]
	m.mu.Unlock()

	if !ok {
		MockResponse{
			StatusCode: http.StatusNotFound,
			Body:       "Not Found",
			Headers:    map[string]string{"Content-Type": "text/plain; charset=utf-8"},
		}.write(w, r)
		return
	}
	route().write(w, r)
}

func (m *MockPokeAPI) route(path string, next func() MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routes[strings.TrimRight(path, "/")] = next
}

// URL is the server root, usable as the client's base URL.
func (m *MockPokeAPI) URL() string { return m.server.URL }

// Close stops the server.
func (m *MockPokeAPI) Close() { m.server.Close() }

// SetResponse answers every request on path with resp.
func (m *MockPokeAPI) SetResponse(path string, resp MockResponse) {
	m.route(path, func() MockResponse { return resp })
}

// SetSequence answers successive requests on path with responses in order and
// keeps repeating the last one.
func (m *MockPokeAPI) SetSequence(path string, responses ...MockResponse) {
	var (
		mu sync.Mutex
		i  int
	)
	m.route(path, func() MockResponse {
		mu.Lock()
		defer mu.Unlock()
		resp := responses[i]
		i = min(i+1, len(responses)-1)
		return resp
	})
}

// SetJSON serves v marshalled as a 200 on path.
func (m *MockPokeAPI) SetJSON(path string, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("testutil: marshal %T: %v", v, err))
	}
	m.SetResponse(path, NewJSONResponse(string(body)))
}

// AddPokemon routes the fixture's pokemon and species records under both its
// id and its name.
func (m *MockPokeAPI) AddPokemon(f PokemonFixture) {
	p, s := f.Pokemon(m.URL()), f.Species(m.URL())
	for _, key := range []string{fmt.Sprint(f.ID), f.Name} {
		m.SetJSON("/pokemon/"+key, p)
		m.SetJSON("/pokemon-species/"+key, s)
	}
}

// GetRequestCount is the number of requests served on any path.
func (m *MockPokeAPI) GetRequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.total
}

// GetPathCount is the number of requests served on path.
func (m *MockPokeAPI) GetPathCount(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hits[strings.TrimRight(path, "/")]
}

// GetLastUserAgent is the User-Agent header of the most recent request.
func (m *MockPokeAPI) GetLastUserAgent() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.userAgent
}

func jsonResponse(status int, body string) MockResponse {
	return MockResponse{
		StatusCode: status,
		Body:       body,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// NewJSONResponse is a 200 carrying body.
func NewJSONResponse(body string) MockResponse {
	return jsonResponse(http.StatusOK, body)
}

// NewRateLimitResponse is a 429 asking to retry after one second.
func NewRateLimitResponse() MockResponse {
	resp := jsonResponse(http.StatusTooManyRequests, `{"detail":"Request was throttled."}`)
	resp.Headers["Retry-After"] = "1"
	return resp
}

// NewServerErrorResponse is a bare 500.
func NewServerErrorResponse() MockResponse {
	return jsonResponse(http.StatusInternalServerError, `{"detail":"Internal server error"}`)
}

// NewBadRequestResponse is a 400, which the client must not retry.
func NewBadRequestResponse() MockResponse {
	return jsonResponse(http.StatusBadRequest, `{"detail":"Bad request"}`)
}
