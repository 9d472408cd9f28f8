// Package logging holds the process-wide slog logger. Components log
// through L() with a "component:" message prefix and key/value pairs.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
)

// Environment read by InitFromEnv.
const (
	EnvLevel  = "FORMATX_LOG_LEVEL"
	EnvJSON   = "FORMATX_LOG_JSON"
	EnvSource = "FORMATX_LOG_SOURCE"
)

type Options struct {
	Level     string // debug|info|warn|error
	JSON      bool
	AddSource bool      // file:line of the call site
	Output    io.Writer // stderr when nil
}

var current atomic.Pointer[slog.Logger]

func init() { Configure(Options{}) }

// Configure replaces the process logger. Loggers already derived with
// With keep the handler they were built on.
func Configure(opts Options) {
	current.Store(New(opts))
}

// New builds a logger without installing it.
func New(opts Options) *slog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	cfg := &slog.HandlerOptions{Level: ParseLevel(opts.Level), AddSource: opts.AddSource}
	if opts.JSON {
		return slog.New(slog.NewJSONHandler(out, cfg))
	}
	return slog.New(slog.NewTextHandler(out, cfg))
}

// ParseLevel maps debug|info|warn|error onto slog levels; anything else is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func L() *slog.Logger { return current.Load() }

// InitFromEnv configures the logger from the FORMATX_LOG_* variables, for
// programs without a settings file.
func InitFromEnv() {
	Configure(Options{
		Level:     os.Getenv(EnvLevel),
		JSON:      envBool(EnvJSON),
		AddSource: envBool(EnvSource),
	})
}

func envBool(key string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	return err == nil && b
}
