// Package logging provides structured logging configuration using zerolog.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"

	// LevelDisabled turns logging off.
	LevelDisabled LogLevel = "disabled"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger. Unknown levels fall back to info.
func Setup(cfg Config) zerolog.Logger {
	level, err := ParseLevel(string(cfg.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// ParseLevel converts a level name to a zerolog.Level. "warning" is accepted
// as an alias for warn; the empty string means info.
func ParseLevel(s string) (zerolog.Level, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	switch name {
	case "":
		return zerolog.InfoLevel, nil
	case "warning":
		name = string(LevelWarn)
	}
	level, err := zerolog.ParseLevel(name)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Each page request (index, status, duration)
//   - Each merged page (proposals, running total)
//   - Pacer slot waits
//
// Info: Normal operation events
//   - Search start and completion
//   - Server startup/shutdown
//
// Warn: Warning conditions that don't prevent operation
//   - Merged count differs from the server-reported total
//   - Redis pacer unavailable at startup
//
// Error: Error conditions requiring attention
//   - Failed page fetches (the search is aborted)
//   - Configuration errors
//
// Context Fields:
//   - component: client, aggregator, pacer, server
//   - keywords: search phrase
//   - index: page offset
//   - page: zero-based page number
//   - status_code: HTTP status code
//   - duration: request or search duration
//   - error_class: client, server, network, decode
