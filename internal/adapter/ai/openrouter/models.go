package openrouter

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	"github.com/fairyhunter13/reelmatch/internal/domain"
)

// Model represents a model from the OpenRouter models API.
type Model struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Description   string  `json:"description"`
	ContextLength int     `json:"context_length"`
	Pricing       Pricing `json:"pricing"`
}

// Pricing represents the pricing information for a model.
type Pricing struct {
	Prompt     string `json:"prompt"`
	Completion string `json:"completion"`
	Request    string `json:"request"`
	Image      string `json:"image"`
}

type modelsResponse struct {
	Data []Model `json:"data"`
}

// excludedPatterns drops auto-routers and families known to be paid or
// unreliable even when listed at zero price.
var excludedPatterns = []string{"auto", "gpt-4", "gpt-5", "claude-3", "mistral-large", "command-"}

// FreeModels lists the free chat models, refreshing at most every refresh.
// It is safe for concurrent use.
type FreeModels struct {
	apiKey  string
	baseURL string
	hc      *http.Client
	refresh time.Duration
	now     func() time.Time

	mu        sync.Mutex
	models    []Model
	lastFetch time.Time
}

// NewFreeModels creates a lister. A nil hc gets an instrumented client.
func NewFreeModels(apiKey, baseURL string, refresh time.Duration, hc *http.Client) *FreeModels {
	if baseURL == "" {
		baseURL = "https://openrouter.ai/api/v1"
	}
	if refresh <= 0 {
		refresh = time.Hour
	}
	if hc == nil {
		hc = newHTTPClient(30*time.Second, "OpenRouterModels")
	}
	return &FreeModels{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		hc:      hc,
		refresh: refresh,
		now:     time.Now,
	}
}

// List returns the free models. A failed refresh falls back to the previous
// list when there is one.
func (s *FreeModels) List(ctx context.Context) ([]Model, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.models != nil && s.now().Sub(s.lastFetch) <= s.refresh {
		return append([]Model(nil), s.models...), nil
	}
	models, err := s.fetch(ctx)
	if err != nil {
		if s.models != nil {
			slog.Warn("using cached free models due to API failure",
				slog.Any("error", err),
				slog.Int("cached_count", len(s.models)))
			return append([]Model(nil), s.models...), nil
		}
		return nil, fmt.Errorf("op=openrouter.FreeModels.List: %w", err)
	}
	s.models = models
	s.lastFetch = s.now()
	slog.Info("fetched free models from OpenRouter", slog.Int("count", len(models)))
	return append([]Model(nil), models...), nil
}

// IDs returns the ids of the free models, in API order. It is the candidate
// source when no explicit rotation list is configured.
func (s *FreeModels) IDs(ctx context.Context) ([]string, error) {
	models, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, fmt.Errorf("op=openrouter.FreeModels.IDs: %w: no free models available", domain.ErrNotFound)
	}
	ids := make([]string, len(models))
	for i, m := range models {
		ids[i] = m.ID
	}
	return ids, nil
}

// Refresh drops the cached list and fetches again.
func (s *FreeModels) Refresh(ctx context.Context) error {
	s.mu.Lock()
	s.models = nil
	s.lastFetch = time.Time{}
	s.mu.Unlock()
	_, err := s.List(ctx)
	return err
}

func (s *FreeModels) fetch(ctx context.Context) ([]Model, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/models", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}
	resp, err := s.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstreamTransient, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, snippetLimit))
		return nil, statusError(resp.StatusCode, body)
	}
	var out modelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode models: %w", err)
	}
	free := make([]Model, 0, len(out.Data))
	for _, m := range out.Data {
		if isFreeModel(m) {
			free = append(free, m)
		}
	}
	slog.Debug("filtered free models",
		slog.Int("total_models", len(out.Data)),
		slog.Int("free_models", len(free)))
	return free, nil
}

func isFreeModel(m Model) bool {
	id := strings.ToLower(m.ID)
	for _, p := range excludedPatterns {
		if strings.Contains(id, p) {
			return false
		}
	}
	p := m.Pricing
	return priceIsFree(p.Prompt) && priceIsFree(p.Completion) && priceIsFree(p.Request) && priceIsFree(p.Image)
}

func priceIsFree(v string) bool {
	switch strings.TrimSpace(v) {
	case "", "0", "0.0", "0.00":
		return true
	}
	return false
}
