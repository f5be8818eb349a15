// Package observability holds the slog, Prometheus and OpenTelemetry setup.
package observability

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/fairyhunter13/reelmatch/internal/config"
)

// SetupLogger configures a JSON slog logger with environment fields. Logs go
// to stderr so command output on stdout stays machine readable.
func SetupLogger(cfg config.Config) *slog.Logger {
	return NewLogger(cfg, os.Stderr)
}

// NewLogger is SetupLogger with an explicit destination.
func NewLogger(cfg config.Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: logLevel(cfg)}
	h := slog.NewJSONHandler(w, opts)
	return slog.New(h).With(
		slog.String("service", cfg.OTELServiceName),
		slog.String("env", cfg.AppEnv),
	)
}

// logLevel honours LOG_LEVEL; otherwise dev logs debug and everything else info.
func logLevel(cfg config.Config) slog.Level {
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	if cfg.IsDev() {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}
