// Package app wires the recommendation pipeline from configuration.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/fairyhunter13/reelmatch/internal/adapter/ai"
	"github.com/fairyhunter13/reelmatch/internal/adapter/ai/gemini"
	"github.com/fairyhunter13/reelmatch/internal/adapter/ai/openrouter"
	"github.com/fairyhunter13/reelmatch/internal/adapter/repo/badgerstore"
	"github.com/fairyhunter13/reelmatch/internal/config"
	"github.com/fairyhunter13/reelmatch/internal/domain"
	"github.com/fairyhunter13/reelmatch/internal/usecase"
)

// ModelLister discovers candidate models at startup.
type ModelLister interface {
	IDs(ctx context.Context) ([]string, error)
}

// App owns the long-lived components. The recommendation service is built on
// first use so local commands (rating, settings) work without a provider.
type App struct {
	Config config.Config
	Store  *badgerstore.Store

	log        *slog.Logger
	gen        domain.Generator
	openRouter *openrouter.Client
	lister     ModelLister

	once   sync.Once
	router *ai.Router
	svc    *usecase.RecommendationService
	svcErr error
}

// New opens the local store and prepares the upstream generator.
func New(cfg config.Config, lg *slog.Logger) (*App, error) {
	if lg == nil {
		lg = slog.Default()
	}
	store, err := badgerstore.Open(cfg.StorePath, cfg.StoreInMemory)
	if err != nil {
		return nil, fmt.Errorf("op=app.New: %w", err)
	}
	a := &App{Config: cfg, Store: store, log: lg}

	switch cfg.Provider {
	case config.ProviderOpenRouter:
		a.openRouter = openrouter.New(openrouter.Options{
			APIKey:             cfg.OpenRouterAPIKey,
			BaseURL:            cfg.OpenRouterBaseURL,
			Referer:            cfg.OpenRouterReferer,
			Title:              cfg.OpenRouterTitle,
			Timeout:            cfg.UpstreamTimeout,
			ServerErrorRetries: 2,
		})
		a.gen = a.openRouter
		a.lister = openrouter.NewFreeModels(cfg.OpenRouterAPIKey, cfg.OpenRouterBaseURL, cfg.FreeModelsRefresh, nil)
	default:
		a.gen = gemini.New(gemini.Options{
			APIKey:  cfg.GeminiAPIKey,
			BaseURL: cfg.GeminiBaseURL,
			Timeout: cfg.UpstreamTimeout,
		})
	}
	return a, nil
}

// NewWithGenerator is New with an explicit generator and model list.
func NewWithGenerator(cfg config.Config, lg *slog.Logger, gen domain.Generator, lister ModelLister) (*App, error) {
	a, err := New(cfg, lg)
	if err != nil {
		return nil, err
	}
	a.gen, a.lister, a.openRouter = gen, lister, nil
	return a, nil
}

// Recommender returns the recommendation service, building the router on the
// first call. The same instance (and so the same cache and rotation state)
// is returned for the lifetime of the App.
func (a *App) Recommender(ctx context.Context) (*usecase.RecommendationService, error) {
	a.once.Do(func() { a.svc, a.svcErr = a.buildService(ctx) })
	return a.svc, a.svcErr
}

func (a *App) buildService(ctx context.Context) (*usecase.RecommendationService, error) {
	candidates, err := a.candidates(ctx)
	if err != nil {
		return nil, fmt.Errorf("op=app.Recommender: %w", err)
	}
	router, err := ai.NewRouter(a.gen, ai.RouterOptions{
		Candidates:      candidates,
		Cache:           ai.NewResponseCache(a.Config.CacheTTL, nil),
		CacheTTL:        a.Config.CacheTTL,
		RotationDelay:   a.Config.RotationDelay,
		BreakerFailures: a.Config.BreakerFailures,
		BreakerTimeout:  a.Config.BreakerTimeout,
		RPS:             a.Config.UpstreamRPS,
	})
	if err != nil {
		return nil, fmt.Errorf("op=app.Recommender: %w", err)
	}
	a.router = router
	a.log.Info("recommendation pipeline ready",
		slog.String("provider", a.gen.Provider()),
		slog.Int("models", len(candidates)),
		slog.String("first_model", candidates[0]))

	return usecase.NewRecommendationService(router, a.Store, a.Store, usecase.Options{
		NewUserThreshold: a.Config.NewUserThreshold,
		Logger:           a.log,
	})
}

// candidates returns the configured rotation list or, when none is set,
// discovers it through the model lister.
func (a *App) candidates(ctx context.Context) ([]string, error) {
	if c := a.Config.Candidates(); len(c) > 0 {
		return c, nil
	}
	if a.lister == nil {
		return nil, fmt.Errorf("%w: no candidate models configured", domain.ErrInvalidArgument)
	}
	ids, err := a.lister.IDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("discover models: %w", err)
	}
	return ids, nil
}

// Close releases the local store.
func (a *App) Close() error { return a.Store.Close() }
