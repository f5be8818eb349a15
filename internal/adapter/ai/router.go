package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/fairyhunter13/reelmatch/internal/adapter/observability"
	"github.com/fairyhunter13/reelmatch/internal/domain"
)

// RouterOptions configures a Router.
type RouterOptions struct {
	// Candidates is the fixed rotation order. It must not be empty.
	Candidates []string
	// Cache defaults to a fresh ResponseCache with DefaultCacheTTL.
	Cache *ResponseCache
	// CacheTTL is passed to Put; zero uses the cache default.
	CacheTTL time.Duration
	// RotationDelay is the pause between two attempts. Zero rotates immediately.
	RotationDelay time.Duration
	// BreakerFailures consecutive failures open a model's breaker for BreakerTimeout.
	BreakerFailures uint32
	BreakerTimeout  time.Duration
	// RPS paces upstream calls client side; zero disables pacing.
	RPS float64
}

// Router sends generation requests to the current candidate model, rotating
// through the candidates on failure. The rotation pointer persists across
// requests for the lifetime of the Router.
type Router struct {
	gen        domain.Generator
	cache      *ResponseCache
	ttl        time.Duration
	candidates []string
	delay      time.Duration
	limiter    *rate.Limiter
	breakers   map[string]*gobreaker.CircuitBreaker[string]
	group      singleflight.Group

	mu    sync.Mutex
	index int
}

// NewRouter builds a router over gen.
func NewRouter(gen domain.Generator, opts RouterOptions) (*Router, error) {
	if gen == nil {
		return nil, fmt.Errorf("op=ai.NewRouter: %w: nil generator", domain.ErrInvalidArgument)
	}
	if len(opts.Candidates) == 0 {
		return nil, fmt.Errorf("op=ai.NewRouter: %w: no candidate models", domain.ErrInvalidArgument)
	}
	if opts.Cache == nil {
		opts.Cache = NewResponseCache(DefaultCacheTTL, nil)
	}
	if opts.BreakerFailures == 0 {
		opts.BreakerFailures = 5
	}
	if opts.BreakerTimeout <= 0 {
		opts.BreakerTimeout = time.Minute
	}

	r := &Router{
		gen:        gen,
		cache:      opts.Cache,
		ttl:        opts.CacheTTL,
		candidates: append([]string(nil), opts.Candidates...),
		delay:      opts.RotationDelay,
		breakers:   make(map[string]*gobreaker.CircuitBreaker[string], len(opts.Candidates)),
	}
	if opts.RPS > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(opts.RPS), 1)
	}
	for _, model := range r.candidates {
		if _, ok := r.breakers[model]; ok {
			continue
		}
		r.breakers[model] = newModelBreaker(model, opts.BreakerFailures, opts.BreakerTimeout)
	}
	return r, nil
}

func newModelBreaker(model string, failures uint32, timeout time.Duration) *gobreaker.CircuitBreaker[string] {
	return gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        model,
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// A caller giving up says nothing about the model.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("model circuit breaker state changed",
				slog.String("model", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	})
}

// Cache exposes the response cache for administrative operations.
func (r *Router) Cache() *ResponseCache { return r.cache }

// ClearCache drops every cached response.
func (r *Router) ClearCache() { r.cache.Clear() }

// CacheStats reports cache occupancy and sweeps expired entries.
func (r *Router) CacheStats() domain.CacheStats { return r.cache.Stats() }

// Provider names the upstream behind the router.
func (r *Router) Provider() string { return r.gen.Provider() }

// Execute returns the raw response text for prompt under cfg, from the cache
// when a valid entry exists, otherwise from the first candidate model that
// answers within at most len(candidates) attempts.
func (r *Router) Execute(ctx context.Context, prompt string, cfg domain.GenerationConfig) (string, error) {
	ctx, span := observability.Tracer().Start(ctx, "ai.Router.Execute")
	defer span.End()

	if err := r.gen.Ready(); err != nil {
		span.SetStatus(codes.Error, "not configured")
		return "", fmt.Errorf("op=ai.Router.Execute: %w", err)
	}

	key := CacheKey(prompt, cfg)
	if data, ok := r.cache.Get(key); ok {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return data, nil
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))

	for {
		ch := r.group.DoChan(key, func() (any, error) {
			return r.execute(ctx, key, prompt, cfg)
		})
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("op=ai.Router.Execute: %w", ctx.Err())
		case res := <-ch:
			// the shared flight ran on another caller's context; rejoin while ours is live
			if res.Err != nil && res.Shared && ctx.Err() == nil && isContextErr(res.Err) {
				continue
			}
			if res.Err != nil {
				span.RecordError(res.Err)
				span.SetStatus(codes.Error, outcome(res.Err))
				return "", res.Err
			}
			span.SetAttributes(attribute.Bool("singleflight.shared", res.Shared))
			return res.Val.(string), nil
		}
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (r *Router) execute(ctx context.Context, key, prompt string, cfg domain.GenerationConfig) (string, error) {
	// a flight that finished just before this one may have filled the cache
	if data, ok := r.cache.Get(key); ok {
		return data, nil
	}
	lg := observability.LoggerFromContext(ctx)

	var (
		result   string
		lastErr  error
		attempts int
	)
	op := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		attempts++
		model, idx := r.current()
		resp, err := r.attempt(ctx, model, prompt, cfg)
		if err == nil {
			result = resp
			return nil
		}
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		lastErr = err
		if errors.Is(err, domain.ErrMissingCredential) {
			return backoff.Permanent(err)
		}
		lg.Warn("model attempt failed",
			slog.String("model", model),
			slog.Int("attempt", attempts),
			slog.String("outcome", outcome(err)),
			slog.Any("error", err))
		r.advance(ctx, idx, model)
		return err
	}

	b := backoff.WithContext(backoff.WithMaxRetries(r.rotationBackOff(), uint64(len(r.candidates)-1)), ctx)
	if err := backoff.Retry(op, b); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("op=ai.Router.Execute: %w", ctxErr)
		}
		if lastErr == nil {
			lastErr = err
		}
		if errors.Is(lastErr, domain.ErrMissingCredential) {
			return "", fmt.Errorf("op=ai.Router.Execute: %w", lastErr)
		}
		lg.Error("all candidate models failed", slog.Int("attempts", attempts), slog.Any("error", lastErr))
		return "", fmt.Errorf("op=ai.Router.Execute: all %d attempts failed: %w", attempts, lastErr)
	}

	r.cache.Put(key, result, r.ttl)
	return result, nil
}

func (r *Router) attempt(ctx context.Context, model, prompt string, cfg domain.GenerationConfig) (string, error) {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}
	start := time.Now()
	resp, err := r.breakers[model].Execute(func() (string, error) {
		return r.gen.Generate(ctx, domain.GenerateRequest{Model: model, Prompt: prompt, Config: cfg})
	})
	observability.RecordAIRequest(r.gen.Provider(), model, outcome(err), time.Since(start).Seconds())
	if err != nil {
		return "", fmt.Errorf("model %s: %w", model, err)
	}
	return resp, nil
}

func (r *Router) rotationBackOff() backoff.BackOff {
	if r.delay <= 0 {
		return &backoff.ZeroBackOff{}
	}
	return backoff.NewConstantBackOff(r.delay)
}

func (r *Router) current() (string, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.candidates[r.index], r.index
}

// advance moves the pointer past failedIdx unless another failure already moved it.
func (r *Router) advance(ctx context.Context, failedIdx int, failedModel string) {
	r.mu.Lock()
	if r.index != failedIdx {
		r.mu.Unlock()
		return
	}
	r.index = (failedIdx + 1) % len(r.candidates)
	next := r.candidates[r.index]
	r.mu.Unlock()

	observability.RecordRotation(r.gen.Provider(), failedModel)
	observability.LoggerFromContext(ctx).Info("rotated to next model",
		slog.String("from", failedModel),
		slog.String("to", next))
}

// CurrentModelInfo reports the rotation state.
func (r *Router) CurrentModelInfo() domain.ModelInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return domain.ModelInfo{
		CurrentModel:    r.candidates[r.index],
		CurrentIndex:    r.index,
		TotalModels:     len(r.candidates),
		AvailableModels: append([]string(nil), r.candidates...),
	}
}

// SwitchModel points the router at candidate index.
func (r *Router) SwitchModel(index int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if index < 0 || index >= len(r.candidates) {
		return fmt.Errorf("op=ai.Router.SwitchModel: %w: index %d out of range [0,%d)", domain.ErrInvalidArgument, index, len(r.candidates))
	}
	r.index = index
	slog.Info("model switched", slog.String("model", r.candidates[index]), slog.Int("index", index))
	return nil
}

// ResetToFirstModel points the router back at the first candidate.
func (r *Router) ResetToFirstModel() {
	r.mu.Lock()
	r.index = 0
	r.mu.Unlock()
}
