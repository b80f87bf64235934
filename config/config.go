// Package config loads the service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
)

// Config holds the complete service configuration.
type Config struct {
	Server     ServerConfig
	Redis      RedisConfig
	Cache      CacheConfig
	Refresh    RefreshConfig
	Aggregator AggregatorConfig
	Upstream   UpstreamConfig
	Log        LogConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            string
	CORSOrigins     []string
	AdminAPIKeys    map[string]bool
	ShutdownTimeout time.Duration
	RetryAfter      time.Duration
}

// RedisConfig holds Redis settings. When disabled the in-memory store is used.
type RedisConfig struct {
	Enabled bool
	URL     string
}

// CacheConfig holds cache settings.
type CacheConfig struct {
	TTL         time.Duration
	NegativeTTL time.Duration
	StaleGrace  time.Duration
	KeyPrefix   string
	MemorySize  int
}

// RefreshConfig holds rebuild settings.
type RefreshConfig struct {
	// MaxDuration is the lease lifetime.
	MaxDuration time.Duration

	// Timeout bounds one rebuild; must stay below MaxDuration.
	Timeout time.Duration
}

// AggregatorConfig holds listing settings.
type AggregatorConfig struct {
	MaxPokemonID          int
	FetchConcurrency      int
	FetchTimeout          time.Duration
	BackgroundListRebuild bool
	WarmOnStart           bool
}

// UpstreamConfig holds PokeAPI client settings.
type UpstreamConfig struct {
	BaseURL    string
	UserAgent  string
	Timeout    time.Duration
	MaxRetries int
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string
	Pretty bool
}

// Load reads the configuration from environment variables, falling back to
// defaults for unset or unparsable values.
func Load() Config {
	return Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			CORSOrigins:     parseCORSOrigins(os.Getenv("CORS_ORIGINS")),
			AdminAPIKeys:    parseAPIKeys(os.Getenv("ADMIN_API_KEYS")),
			ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
			RetryAfter:      getEnvDuration("RETRY_AFTER", 5*time.Second),
		},
		Redis: RedisConfig{
			Enabled: getEnvBool("REDIS_ENABLED", true),
			URL:     getEnv("REDIS_URL", "redis://localhost:6379/0"),
		},
		Cache: CacheConfig{
			TTL:         getEnvDuration("CACHE_TTL", 24*time.Hour),
			NegativeTTL: getEnvDuration("CACHE_NEGATIVE_TTL", 5*time.Minute),
			StaleGrace:  getEnvDuration("CACHE_STALE_GRACE", 24*time.Hour),
			KeyPrefix:   getEnv("CACHE_KEY_PREFIX", "pokedex:v1"),
			MemorySize:  getEnvInt("CACHE_MEMORY_SIZE", 4096),
		},
		Refresh: RefreshConfig{
			MaxDuration: getEnvDuration("REFRESH_MAX_DURATION", 10*time.Minute),
			Timeout:     getEnvDuration("REFRESH_TIMEOUT", 9*time.Minute),
		},
		Aggregator: AggregatorConfig{
			MaxPokemonID:          getEnvInt("MAX_POKEMON_ID", 1025),
			FetchConcurrency:      getEnvInt("FETCH_CONCURRENCY", 10),
			FetchTimeout:          getEnvDuration("FETCH_TIMEOUT", 30*time.Second),
			BackgroundListRebuild: getEnvBool("BACKGROUND_LIST_REBUILD", true),
			WarmOnStart:           getEnvBool("WARM_ON_START", true),
		},
		Upstream: UpstreamConfig{
			BaseURL:    getEnv("POKEAPI_BASE_URL", "https://pokeapi.co/api/v2"),
			UserAgent:  getEnv("POKEAPI_USER_AGENT", "pokedex-api/1.0"),
			Timeout:    getEnvDuration("POKEAPI_TIMEOUT", 10*time.Second),
			MaxRetries: getEnvInt("POKEAPI_MAX_RETRIES", 2),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Pretty: getEnvBool("LOG_PRETTY", false),
		},
	}
}

// Validate reports every inconsistent setting at once.
func (c Config) Validate() error {
	var result *multierror.Error

	positive := []struct {
		name  string
		value time.Duration
	}{
		{"CACHE_TTL", c.Cache.TTL},
		{"CACHE_NEGATIVE_TTL", c.Cache.NegativeTTL},
		{"REFRESH_MAX_DURATION", c.Refresh.MaxDuration},
		{"REFRESH_TIMEOUT", c.Refresh.Timeout},
		{"POKEAPI_TIMEOUT", c.Upstream.Timeout},
		{"FETCH_TIMEOUT", c.Aggregator.FetchTimeout},
		{"SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout},
	}
	for _, p := range positive {
		if p.value <= 0 {
			result = multierror.Append(result, fmt.Errorf("%s must be positive, got %s", p.name, p.value))
		}
	}

	if c.Cache.StaleGrace < 0 {
		result = multierror.Append(result, fmt.Errorf("CACHE_STALE_GRACE must not be negative, got %s", c.Cache.StaleGrace))
	}
	if c.Refresh.Timeout >= c.Refresh.MaxDuration {
		result = multierror.Append(result, fmt.Errorf("REFRESH_TIMEOUT (%s) must be below REFRESH_MAX_DURATION (%s)",
			c.Refresh.Timeout, c.Refresh.MaxDuration))
	}
	if c.Aggregator.MaxPokemonID < 1 {
		result = multierror.Append(result, fmt.Errorf("MAX_POKEMON_ID must be at least 1, got %d", c.Aggregator.MaxPokemonID))
	}
	if c.Aggregator.FetchConcurrency < 1 {
		result = multierror.Append(result, fmt.Errorf("FETCH_CONCURRENCY must be at least 1, got %d", c.Aggregator.FetchConcurrency))
	}
	if c.Upstream.MaxRetries < 0 {
		result = multierror.Append(result, fmt.Errorf("POKEAPI_MAX_RETRIES must not be negative, got %d", c.Upstream.MaxRetries))
	}
	if !c.Redis.Enabled && c.Cache.MemorySize < 1 {
		result = multierror.Append(result, errors.New("CACHE_MEMORY_SIZE must be at least 1 when Redis is disabled"))
	}
	if c.Cache.KeyPrefix == "" {
		result = multierror.Append(result, errors.New("CACHE_KEY_PREFIX must not be empty"))
	}

	return result.ErrorOrNil()
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func parseAPIKeys(s string) map[string]bool {
	if s == "" {
		return nil
	}
	keys := strings.Split(s, ",")
	result := make(map[string]bool, len(keys))
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			result[k] = true
		}
	}
	return result
}

func parseCORSOrigins(s string) []string {
	// Default origin of the development frontend
	defaults := []string{"http://localhost:3000"}
	if s == "" {
		return defaults
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if origin := strings.TrimSpace(p); origin != "" {
			result = append(result, origin)
		}
	}
	if len(result) == 0 {
		return defaults
	}
	return result
}
