package observability

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fairyhunter13/reelmatch/internal/config"
)

func TestSetupLogger_DevAndProd(t *testing.T) {
	assert.NotNil(t, SetupLogger(config.Config{AppEnv: "dev", OTELServiceName: "svc"}))
	assert.NotNil(t, SetupLogger(config.Config{AppEnv: "prod", OTELServiceName: "svc"}))
}

func TestLogLevel(t *testing.T) {
	tests := []struct {
		cfg  config.Config
		want slog.Level
	}{
		{config.Config{AppEnv: "dev"}, slog.LevelDebug},
		{config.Config{AppEnv: "prod"}, slog.LevelInfo},
		{config.Config{AppEnv: "dev", LogLevel: "warn"}, slog.LevelWarn},
		{config.Config{AppEnv: "prod", LogLevel: "ERROR"}, slog.LevelError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, logLevel(tt.cfg), "%+v", tt.cfg)
	}
}

func TestNewLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	lg := NewLogger(config.Config{AppEnv: "prod", OTELServiceName: "reelmatch"}, &buf)
	lg.Debug("hidden")
	lg.Info("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"service":"reelmatch"`)
	assert.Contains(t, out, `"env":"prod"`)
}
