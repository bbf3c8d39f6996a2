// Package logging provides the zerolog-based logger for transferstats.
//
// Logs go to stderr so that report output on stdout stays clean. Every analysis
// run carries a run_id so the warnings of one invocation can be grouped.
//
//	logging.Init(logging.Config{Level: "info", Format: "console"})
//	ctx = logging.WithRun(ctx)
//	logging.Ctx(ctx).Warn().Str("store", path).Msg("store skipped")
package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Config holds logging configuration.
type Config struct {
	// Level is the minimum log level: trace, debug, info, warn, error, disabled.
	Level string

	// Format is json or console.
	Format string

	// Output defaults to os.Stderr.
	Output io.Writer
}

// DefaultConfig returns the default logging configuration.
func DefaultConfig() Config {
	return Config{
		Level:  "warn",
		Format: "console",
		Output: os.Stderr,
	}
}

var (
	log zerolog.Logger
	mu  sync.RWMutex
)

func init() {
	initLogger(DefaultConfig())
}

// Init reconfigures the global logger. Safe to call more than once.
func Init(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	initLogger(cfg)
}

// initLogger must be called with mu held.
func initLogger(cfg Config) {
	if cfg.Level == "" {
		cfg.Level = "warn"
	}
	if cfg.Format == "" {
		cfg.Format = "console"
	}
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	zerolog.SetGlobalLevel(ParseLevel(cfg.Level))
	zerolog.TimeFieldFormat = time.RFC3339

	output := cfg.Output
	if cfg.Format == "console" {
		output = zerolog.ConsoleWriter{
			Out:        cfg.Output,
			TimeFormat: "15:04:05",
		}
	}

	log = zerolog.New(output).With().Timestamp().Logger()
}

// ParseLevel converts a level name to zerolog.Level; unknown names map to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// Logger returns the global logger instance.
func Logger() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

// SetLogger replaces the global logger, e.g. to capture output in tests.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func SetLogger(l zerolog.Logger) {
	mu.Lock()
	defer mu.Unlock()
	log = l
}

type contextKey string

const runIDKey contextKey = "run_id"

// WithRun returns a context carrying a fresh run ID.
func WithRun(ctx context.Context) context.Context {
	return context.WithValue(ctx, runIDKey, uuid.New().String())
}

// RunIDFromContext returns the run ID, or "" when none is set.
func RunIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(runIDKey).(string); ok {
		return id
	}
	return ""
}

// Ctx returns the global logger with the run_id of ctx attached.
func Ctx(ctx context.Context) *zerolog.Logger {
	l := Logger()
	if id := RunIDFromContext(ctx); id != "" {
		l = l.With().Str("run_id", id).Logger()
	}
	return &l
}
