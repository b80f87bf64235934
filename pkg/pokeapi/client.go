// Package pokeapi provides the PokeAPI v2 HTTP client with retry, error
// classification and request metrics.
package pokeapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/pokedex-api/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for upstream requests.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pokeapi_requests_total",
		Help: "Total PokeAPI requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pokeapi_request_duration_seconds",
		Help:    "PokeAPI request duration in seconds by endpoint",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pokeapi_errors_total",
		Help: "Total PokeAPI errors by class",
	}, []string{"class"})
)

// DefaultBaseURL is the public PokeAPI v2 root.
const DefaultBaseURL = "https://pokeapi.co/api/v2"

// maxBodySize bounds decoded response bodies.
const maxBodySize = 8 << 20

// Endpoint labels, templated to keep metric cardinality bounded.
const (
	endpointPokemon     = "/pokemon/{key}"
	endpointSpecies     = "/pokemon-species/{key}"
	endpointGenerations = "/generation"
	endpointGeneration  = "/generation/{key}"
	endpointTypes       = "/type"
)

// Config holds the client configuration.
type Config struct {
	// BaseURL of the API, without trailing slash.
	BaseURL string

	// UserAgent header sent with every request.
	UserAgent string

	// Timeout per HTTP attempt.
	Timeout time.Duration

	// Retry
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL:        DefaultBaseURL,
		UserAgent:      "pokedex-api/1.0",
		Timeout:        10 * time.Second,
		MaxRetries:     2,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
	}
}

// Client fetches raw records from PokeAPI.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	retry      RetryConfig
	logger     zerolog.Logger
}

// New creates a new PokeAPI client.
func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("base url is required")
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", cfg.BaseURL, err)
	}
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}
	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("max_retries must be >= 0 (got %d)", cfg.MaxRetries)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	retry := DefaultRetryConfig()
	retry.MaxAttempts = cfg.MaxRetries + 1
	if cfg.InitialBackoff > 0 {
		retry.InitialBackoff = cfg.InitialBackoff
	}
	if cfg.MaxBackoff > 0 {
		retry.MaxBackoff = cfg.MaxBackoff
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    base,
		userAgent:  cfg.UserAgent,
		retry:      retry,
		logger:     logging.NewLogger("pokeapi"),
	}, nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// Pokemon fetches /pokemon/{key}.
func (c *Client) Pokemon(ctx context.Context, key string) (*Pokemon, error) {
	var out Pokemon
	if err := c.get(ctx, endpointPokemon, "/pokemon/"+url.PathEscape(key), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Species fetches /pokemon-species/{ref}. ref is an id, a name or an absolute
// species URL as found in Pokemon.Species; only its last path segment is used,
// so requests never leave the configured base URL.
func (c *Client) Species(ctx context.Context, ref string) (*Species, error) {
	key, err := speciesKey(ref)
	if err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassClient)).Inc()
		return nil, &APIError{Class: ErrorClassClient, Endpoint: endpointSpecies, Err: err}
	}

	var out Species
	if err := c.get(ctx, endpointSpecies, "/pokemon-species/"+url.PathEscape(key), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Generations lists all generations.
func (c *Client) Generations(ctx context.Context) ([]NamedResource, error) {
	var out NamedResourceList
	if err := c.get(ctx, endpointGenerations, "/generation?limit=100", &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

// Generation fetches /generation/{key}.
func (c *Client) Generation(ctx context.Context, key string) (*Generation, error) {
	var out Generation
	if err := c.get(ctx, endpointGeneration, "/generation/"+url.PathEscape(key), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Types lists all types.
func (c *Client) Types(ctx context.Context) ([]NamedResource, error) {
	var out NamedResourceList
	if err := c.get(ctx, endpointTypes, "/type?limit=100", &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

// get performs a GET with retry and decodes the JSON body into out.
func (c *Client) get(ctx context.Context, endpoint, path string, out any) error {
	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("path", path).
		Msg("Executing PokeAPI request")

	return retryWithBackoff(ctx, c.retry, c.logger, func() error {
		body, err := c.do(ctx, endpoint, path)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(body, out); err != nil {
			errorsTotal.WithLabelValues(string(ErrorClassDecode)).Inc()
			return &APIError{
				StatusCode: http.StatusOK,
				Class:      ErrorClassDecode,
				Endpoint:   endpoint,
				Err:        fmt.Errorf("decode body: %w", err),
			}
		}
		return nil
	})
}

// do executes a single attempt and returns the body of a 2xx answer.
func (c *Client) do(ctx context.Context, endpoint, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, &APIError{Class: ErrorClassClient, Endpoint: endpoint, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("HTTP request failed")
		return nil, &APIError{Class: ErrorClassNetwork, Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	requestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode >= 400 {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))

		errClass := ClassifyStatus(resp.StatusCode)
		errorsTotal.WithLabelValues(string(errClass)).Inc()

		event := c.logger.Warn()
		if errClass == ErrorClassNotFound {
			event = c.logger.Debug()
		}
		event.
			Str("endpoint", endpoint).
			Str("path", path).
			Int("status", resp.StatusCode).
			Str("error_class", string(errClass)).
			Msg("PokeAPI request error")

		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Class:      errClass,
			Endpoint:   endpoint,
			Err:        errors.New(resp.Status),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Class:      ErrorClassNetwork,
			Endpoint:   endpoint,
			Err:        fmt.Errorf("read body: %w", err),
		}
	}
	return body, nil
}

// speciesKey reduces a species reference to the key used in the request path.
func speciesKey(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		u, err := url.Parse(ref)
		if err != nil {
			return "", fmt.Errorf("malformed species reference %q: %w", ref, err)
		}
		segments := strings.Split(strings.Trim(u.Path, "/"), "/")
		if len(segments) < 2 || segments[len(segments)-2] != "pokemon-species" {
			return "", fmt.Errorf("malformed species reference %q", ref)
		}
		ref = segments[len(segments)-1]
	}
	if ref == "" || strings.ContainsAny(ref, "/?#") {
		return "", fmt.Errorf("malformed species reference %q", ref)
	}
	return ref, nil
}
