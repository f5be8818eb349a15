// Package config defines configuration parsing and helpers.
package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/go-playground/validator/v10"
)

// Supported upstream providers.
const (
	ProviderGemini     = "gemini"
	ProviderOpenRouter = "openrouter"
)

// DefaultGeminiModels is the rotation order used when MODEL_CANDIDATES is unset
// and the provider is gemini.
var DefaultGeminiModels = []string{
	"gemini-2.5-flash",
	"gemini-2.0-flash",
	"gemini-2.5-flash-lite",
	"gemini-2.0-flash-lite",
}

// Config holds all application configuration parsed from environment variables.
type Config struct {
	AppEnv   string `env:"APP_ENV" envDefault:"dev" validate:"oneof=dev test prod"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"" validate:"omitempty,oneof=debug info warn error"`
	Provider string `env:"PROVIDER" envDefault:"gemini" validate:"oneof=gemini openrouter"`

	GeminiAPIKey      string `env:"GEMINI_API_KEY"`
	GeminiBaseURL     string `env:"GEMINI_BASE_URL"`
	OpenRouterAPIKey  string `env:"OPENROUTER_API_KEY"`
	OpenRouterBaseURL string `env:"OPENROUTER_BASE_URL" envDefault:"https://openrouter.ai/api/v1" validate:"url"`
	OpenRouterReferer string `env:"OPENROUTER_REFERER"`
	OpenRouterTitle   string `env:"OPENROUTER_TITLE" envDefault:"reelmatch"`
	// FreeModelsRefresh: how often the free model list is refreshed
	FreeModelsRefresh time.Duration `env:"FREE_MODELS_REFRESH" envDefault:"1h"`

	// ModelCandidates is the ordered rotation list; empty means provider defaults.
	ModelCandidates []string `env:"MODEL_CANDIDATES" envSeparator:","`

	CacheTTL         time.Duration `env:"CACHE_TTL" envDefault:"10m" validate:"gt=0"`
	NewUserThreshold int           `env:"NEW_USER_THRESHOLD" envDefault:"5" validate:"gte=1"`
	RotationDelay    time.Duration `env:"ROTATION_DELAY" envDefault:"0s" validate:"gte=0"`
	BreakerFailures  uint32        `env:"BREAKER_FAILURES" envDefault:"5" validate:"gte=1"`
	BreakerTimeout   time.Duration `env:"BREAKER_TIMEOUT" envDefault:"60s" validate:"gt=0"`
	UpstreamRPS      float64       `env:"UPSTREAM_RPS" envDefault:"0" validate:"gte=0"`
	UpstreamTimeout  time.Duration `env:"UPSTREAM_TIMEOUT" envDefault:"60s" validate:"gt=0"`

	StorePath     string `env:"STORE_PATH" envDefault:".reelmatch"`
	StoreInMemory bool   `env:"STORE_IN_MEMORY" envDefault:"false"`

	OTLPEndpoint    string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:""`
	OTELServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"reelmatch"`

	// TraceSampleRatio of 0 picks 0.1 in prod and 1 elsewhere.
	TraceSampleRatio float64 `env:"OTEL_TRACES_SAMPLE_RATIO" envDefault:"0" validate:"gte=0,lte=1"`
}

var (
	vldOnce sync.Once
	vld     *validator.Validate
)

// Validator returns the shared validator instance.
func Validator() *validator.Validate {
	vldOnce.Do(func() { vld = validator.New() })
	return vld
}

// Load parses environment variables into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("op=config.Load: %w", err)
	}
	cfg.Provider = strings.ToLower(strings.TrimSpace(cfg.Provider))
	cfg.ModelCandidates = cleanList(cfg.ModelCandidates)
	if err := Validator().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("op=config.Load: %w", err)
	}
	return cfg, nil
}

// IsDev reports whether the app is running in development mode.
func (c Config) IsDev() bool { return strings.ToLower(c.AppEnv) == "dev" }

// IsProd reports whether the app is running in production mode.
func (c Config) IsProd() bool { return strings.ToLower(c.AppEnv) == "prod" }

// IsTest reports whether the app is running in test mode.
func (c Config) IsTest() bool { return strings.ToLower(c.AppEnv) == "test" }

// APIKey returns the credential of the selected provider.
func (c Config) APIKey() string {
	if c.Provider == ProviderOpenRouter {
		return c.OpenRouterAPIKey
	}
	return c.GeminiAPIKey
}

// Candidates returns the explicit rotation list, or the built-in Gemini list.
// OpenRouter without explicit candidates returns nil: the caller discovers
// free models at startup.
func (c Config) Candidates() []string {
	if len(c.ModelCandidates) > 0 {
		return append([]string(nil), c.ModelCandidates...)
	}
	if c.Provider == ProviderOpenRouter {
		return nil
	}
	return append([]string(nil), DefaultGeminiModels...)
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
