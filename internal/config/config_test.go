package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/reelmatch/internal/domain"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.AppEnv)
	assert.True(t, cfg.IsDev())
	assert.False(t, cfg.IsProd())
	assert.Equal(t, ProviderGemini, cfg.Provider)
	assert.Equal(t, 10*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 5, cfg.NewUserThreshold)
	assert.Equal(t, time.Duration(0), cfg.RotationDelay)
	assert.Equal(t, uint32(5), cfg.BreakerFailures)
	assert.Equal(t, 60*time.Second, cfg.BreakerTimeout)
	assert.Equal(t, 60*time.Second, cfg.UpstreamTimeout)
	assert.Equal(t, DefaultGeminiModels, cfg.Candidates())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	t.Setenv("PROVIDER", " OpenRouter ")
	t.Setenv("OPENROUTER_API_KEY", "or-key")
	t.Setenv("MODEL_CANDIDATES", "a/one:free, ,b/two:free")
	t.Setenv("CACHE_TTL", "30s")
	t.Setenv("UPSTREAM_RPS", "2.5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsProd())
	assert.Equal(t, ProviderOpenRouter, cfg.Provider)
	assert.Equal(t, "or-key", cfg.APIKey())
	assert.Equal(t, []string{"a/one:free", "b/two:free"}, cfg.Candidates())
	assert.Equal(t, 30*time.Second, cfg.CacheTTL)
	assert.InDelta(t, 2.5, cfg.UpstreamRPS, 1e-9)
}

func TestLoad_OpenRouterWithoutCandidates(t *testing.T) {
	t.Setenv("PROVIDER", "openrouter")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Nil(t, cfg.Candidates())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"unknown provider", "PROVIDER", "bard"},
		{"unknown env", "APP_ENV", "staging"},
		{"zero ttl", "CACHE_TTL", "0s"},
		{"bad duration", "BREAKER_TIMEOUT", "soon"},
		{"bad log level", "LOG_LEVEL", "loud"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "op=config.Load")
		})
	}
}

func TestParsePreferences(t *testing.T) {
	pf, err := ParsePreferences([]byte(`
kind: series
count: 4
preferences:
  genres: [Sci-Fi, " ", sci-fi]
  favoritePeople: [Denis Villeneuve]
  mood: "  tense "
exclude:
  - {title: Dark, year: 2017}
`))
	require.NoError(t, err)

	assert.Equal(t, string(domain.KindSeries), pf.Kind)
	assert.Equal(t, 4, pf.Count)
	assert.Equal(t, []string{"Sci-Fi"}, pf.Preferences.Genres)
	assert.Equal(t, []string{"Denis Villeneuve"}, pf.Preferences.FavoritePeople)
	assert.Equal(t, []string{domain.Any}, pf.Preferences.Languages)
	assert.Equal(t, "tense", pf.Preferences.Mood)
	assert.Equal(t, []domain.TitleRef{{Title: "Dark", Year: 2017}}, pf.Exclude)
}

func TestParsePreferences_Errors(t *testing.T) {
	tests := map[string]string{
		"bad yaml":    "kind: [",
		"bad kind":    "kind: anime",
		"count range": "count: 11",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParsePreferences([]byte(body))
			assert.ErrorIs(t, err, domain.ErrInvalidArgument)
		})
	}
}

func TestLoadPreferencesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prefs.yaml")
	require.NoError(t, os.WriteFile(path, []byte("preferences:\n  genres: [Drama]\n"), 0o600))

	pf, err := LoadPreferencesFile(path)
	require.NoError(t, err)
	assert.Equal(t, string(domain.KindMovie), pf.Kind)
	assert.Equal(t, []string{"Drama"}, pf.Preferences.Genres)

	_, err = LoadPreferencesFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
