// Package logging wires zerolog for the service.
//
// Every package obtains its logger through NewLogger so that log lines carry a
// component field (aggregator, refresh, pokeapi, api, http, warmer). Lines that
// concern a cache entry add key and cache_key; rebuild outcomes add status and
// duration; upstream failures add error_class.
//
// Levels: debug for per-request cache and lease traffic, info for rebuild and
// lifecycle events, warn for retries, discarded writes and skipped entities,
// error for failed rebuilds and configuration problems.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ServiceName is attached to every line written by the global logger.
const ServiceName = "pokedex-api"

// LogLevel is a textual level as found in LOG_LEVEL.
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// Config controls Setup.
type Config struct {
	Level LogLevel
	// Pretty switches from JSON lines to zerolog's console writer.
	Pretty bool
	// Output defaults to os.Stderr.
	Output io.Writer
}

// DefaultConfig is JSON at info level on stderr.
func DefaultConfig() Config {
	return Config{Level: LevelInfo, Output: os.Stderr}
}

// Setup installs the global zerolog logger and level, and returns the logger.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(ParseLevel(cfg.Level))
	zerolog.TimeFieldFormat = time.RFC3339Nano

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}

	log.Logger = zerolog.New(out).With().Timestamp().Str("service", ServiceName).Logger()
	return log.Logger
}

// ParseLevel maps LOG_LEVEL values onto zerolog levels. "warning" is accepted
// as an alias, and anything unrecognised, trace and the fatal levels included,
// falls back to info.
func ParseLevel(level LogLevel) zerolog.Level {
	s := strings.ToLower(strings.TrimSpace(string(level)))
	if s == "warning" {
		s = string(LevelWarn)
	}
	switch lvl, err := zerolog.ParseLevel(s); {
	case err != nil, lvl < zerolog.DebugLevel, lvl > zerolog.ErrorLevel:
		return zerolog.InfoLevel
	default:
		return lvl
	}
}

// NewLogger derives a component logger from the global one. It reads
// log.Logger at call time, so callers should construct their loggers after
// Setup has run.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}
