package ai

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/reelmatch/internal/domain"
)

type fakeGenerator struct {
	mu       sync.Mutex
	calls    map[string]int
	order    []string
	readyErr error
	respond  func(ctx context.Context, req domain.GenerateRequest) (string, error)
}

func newFakeGenerator(respond func(ctx context.Context, req domain.GenerateRequest) (string, error)) *fakeGenerator {
	return &fakeGenerator{calls: map[string]int{}, respond: respond}
}

func (f *fakeGenerator) Provider() string { return "fake" }

func (f *fakeGenerator) Ready() error { return f.readyErr }

func (f *fakeGenerator) Generate(ctx context.Context, req domain.GenerateRequest) (string, error) {
	f.mu.Lock()
	f.calls[req.Model]++
	f.order = append(f.order, req.Model)
	f.mu.Unlock()
	return f.respond(ctx, req)
}

func (f *fakeGenerator) Calls(model string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[model]
}

func (f *fakeGenerator) Total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.order)
}

var testCfg = domain.GenerationConfig{Temperature: 0.7, TopP: 0.95, TopK: 40}

func quotaThenOK(failing string) func(context.Context, domain.GenerateRequest) (string, error) {
	return func(_ context.Context, req domain.GenerateRequest) (string, error) {
		if req.Model == failing {
			return "", fmt.Errorf("%w: 429 RESOURCE_EXHAUSTED", domain.ErrUpstreamRateLimit)
		}
		return "[]", nil
	}
}

func TestNewRouter_Validation(t *testing.T) {
	_, err := NewRouter(nil, RouterOptions{Candidates: []string{"a"}})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = NewRouter(newFakeGenerator(nil), RouterOptions{})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestRouter_RotatesOnQuotaAndKeepsPointer(t *testing.T) {
	gen := newFakeGenerator(quotaThenOK("model-a"))
	r, err := NewRouter(gen, RouterOptions{Candidates: []string{"model-a", "model-b"}})
	require.NoError(t, err)

	out, err := r.Execute(context.Background(), "p1", testCfg)
	require.NoError(t, err)
	assert.Equal(t, "[]", out)
	assert.Equal(t, []string{"model-a", "model-b"}, gen.order)

	info := r.CurrentModelInfo()
	assert.Equal(t, "model-b", info.CurrentModel)
	assert.Equal(t, 1, info.CurrentIndex)
	assert.Equal(t, 2, info.TotalModels)
	assert.Equal(t, []string{"model-a", "model-b"}, info.AvailableModels)

	// the next request starts at model-b
	_, err = r.Execute(context.Background(), "p2", testCfg)
	require.NoError(t, err)
	assert.Equal(t, 1, gen.Calls("model-a"))
	assert.Equal(t, 2, gen.Calls("model-b"))
}

func TestRouter_CacheHitSkipsUpstream(t *testing.T) {
	gen := newFakeGenerator(func(context.Context, domain.GenerateRequest) (string, error) { return "cached", nil })
	r, err := NewRouter(gen, RouterOptions{Candidates: []string{"a"}})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		out, err := r.Execute(context.Background(), "same", testCfg)
		require.NoError(t, err)
		assert.Equal(t, "cached", out)
	}
	assert.Equal(t, 1, gen.Total())

	// different sampling parameters are a different key
	_, err = r.Execute(context.Background(), "same", domain.GenerationConfig{Temperature: 0.3})
	require.NoError(t, err)
	assert.Equal(t, 2, gen.Total())

	r.Cache().Clear()
	_, err = r.Execute(context.Background(), "same", testCfg)
	require.NoError(t, err)
	assert.Equal(t, 3, gen.Total())
}

func TestRouter_ExhaustionReturnsLastError(t *testing.T) {
	gen := newFakeGenerator(func(_ context.Context, req domain.GenerateRequest) (string, error) {
		return "", fmt.Errorf("%w: %s overloaded", domain.ErrUpstreamTransient, req.Model)
	})
	r, err := NewRouter(gen, RouterOptions{Candidates: []string{"a", "b", "c"}})
	require.NoError(t, err)

	_, err = r.Execute(context.Background(), "p", testCfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUpstreamTransient)
	assert.Contains(t, err.Error(), "all 3 attempts failed")
	assert.Contains(t, err.Error(), "c overloaded")
	assert.Equal(t, []string{"a", "b", "c"}, gen.order)
	// wrapped around to the start
	assert.Equal(t, 0, r.CurrentModelInfo().CurrentIndex)
	assert.Equal(t, 0, r.Cache().Stats().TotalEntries)
}

func TestRouter_MissingCredentialIsFatal(t *testing.T) {
	gen := newFakeGenerator(func(context.Context, domain.GenerateRequest) (string, error) { return "x", nil })
	gen.readyErr = fmt.Errorf("%w: GEMINI_API_KEY is not set", domain.ErrMissingCredential)
	r, err := NewRouter(gen, RouterOptions{Candidates: []string{"a", "b"}})
	require.NoError(t, err)

	_, err = r.Execute(context.Background(), "p", testCfg)
	assert.ErrorIs(t, err, domain.ErrMissingCredential)
	assert.Zero(t, gen.Total())
}

func TestRouter_CredentialRejectedStopsRotation(t *testing.T) {
	gen := newFakeGenerator(func(context.Context, domain.GenerateRequest) (string, error) {
		return "", fmt.Errorf("%w: api key rejected", domain.ErrMissingCredential)
	})
	r, err := NewRouter(gen, RouterOptions{Candidates: []string{"a", "b"}})
	require.NoError(t, err)

	_, err = r.Execute(context.Background(), "p", testCfg)
	assert.ErrorIs(t, err, domain.ErrMissingCredential)
	assert.Equal(t, 1, gen.Total())
}

func TestRouter_ContextCanceled(t *testing.T) {
	gen := newFakeGenerator(func(context.Context, domain.GenerateRequest) (string, error) { return "x", nil })
	r, err := NewRouter(gen, RouterOptions{Candidates: []string{"a"}})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Execute(ctx, "p", testCfg)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, gen.Total())
}

func TestRouter_CancelStopsRotation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	gen := newFakeGenerator(func(context.Context, domain.GenerateRequest) (string, error) {
		cancel()
		return "", errors.New("boom")
	})
	r, err := NewRouter(gen, RouterOptions{Candidates: []string{"a", "b", "c"}})
	require.NoError(t, err)

	_, err = r.Execute(ctx, "p", testCfg)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, gen.Total())
}

func TestRouter_OpenBreakerCountsAsFailedAttempt(t *testing.T) {
	gen := newFakeGenerator(quotaThenOK("a"))
	r, err := NewRouter(gen, RouterOptions{
		Candidates:      []string{"a", "b"},
		BreakerFailures: 1,
		BreakerTimeout:  time.Hour,
	})
	require.NoError(t, err)

	_, err = r.Execute(context.Background(), "p1", testCfg)
	require.NoError(t, err)

	require.NoError(t, r.SwitchModel(0))
	out, err := r.Execute(context.Background(), "p2", testCfg)
	require.NoError(t, err)
	assert.Equal(t, "[]", out)
	// a was short-circuited the second time
	assert.Equal(t, 1, gen.Calls("a"))
	assert.Equal(t, 2, gen.Calls("b"))
	assert.Equal(t, 1, r.CurrentModelInfo().CurrentIndex)
}

func TestRouter_CollapsesConcurrentIdenticalRequests(t *testing.T) {
	release := make(chan struct{})
	gen := newFakeGenerator(func(context.Context, domain.GenerateRequest) (string, error) {
		<-release
		return "shared", nil
	})
	r, err := NewRouter(gen, RouterOptions{Candidates: []string{"a"}})
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]string, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, err := r.Execute(context.Background(), "same", testCfg)
			assert.NoError(t, err)
			results[i] = out
		}(i)
	}
	require.Eventually(t, func() bool { return gen.Total() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, 1, gen.Total())
	for _, out := range results {
		assert.Equal(t, "shared", out)
	}
}

func TestRouter_LeaderCancelDoesNotFailJoiner(t *testing.T) {
	gen := newFakeGenerator(func(ctx context.Context, _ domain.GenerateRequest) (string, error) {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(200 * time.Millisecond):
			return "[]", nil
		}
	})
	r, err := NewRouter(gen, RouterOptions{Candidates: []string{"a", "b"}})
	require.NoError(t, err)

	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := r.Execute(leaderCtx, "same", testCfg)
		leaderErr <- err
	}()
	require.Eventually(t, func() bool { return gen.Total() == 1 }, time.Second, time.Millisecond)

	var (
		out     string
		joinErr error
		done    = make(chan struct{})
	)
	go func() {
		defer close(done)
		out, joinErr = r.Execute(context.Background(), "same", testCfg)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	assert.ErrorIs(t, <-leaderErr, context.Canceled)
	<-done
	require.NoError(t, joinErr)
	assert.Equal(t, "[]", out)
	// the canceled attempt does not rotate away from a
	assert.Equal(t, 0, r.CurrentModelInfo().CurrentIndex)
	assert.Equal(t, 0, gen.Calls("b"))
}

func TestRouter_AdvanceIsCompareAndSet(t *testing.T) {
	r, err := NewRouter(newFakeGenerator(nil), RouterOptions{Candidates: []string{"a", "b", "c"}})
	require.NoError(t, err)

	r.advance(context.Background(), 0, "a")
	r.advance(context.Background(), 0, "a")
	assert.Equal(t, 1, r.CurrentModelInfo().CurrentIndex)
}

func TestRouter_SwitchAndReset(t *testing.T) {
	r, err := NewRouter(newFakeGenerator(nil), RouterOptions{Candidates: []string{"a", "b"}})
	require.NoError(t, err)

	require.NoError(t, r.SwitchModel(1))
	assert.Equal(t, "b", r.CurrentModelInfo().CurrentModel)

	assert.ErrorIs(t, r.SwitchModel(2), domain.ErrInvalidArgument)
	assert.ErrorIs(t, r.SwitchModel(-1), domain.ErrInvalidArgument)
	assert.Equal(t, 1, r.CurrentModelInfo().CurrentIndex)

	r.ResetToFirstModel()
	assert.Equal(t, "a", r.CurrentModelInfo().CurrentModel)
}

func TestRouter_RotationDelay(t *testing.T) {
	gen := newFakeGenerator(quotaThenOK("a"))
	r, err := NewRouter(gen, RouterOptions{Candidates: []string{"a", "b"}, RotationDelay: 30 * time.Millisecond})
	require.NoError(t, err)

	start := time.Now()
	_, err = r.Execute(context.Background(), "p", testCfg)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}
