// Package gemini implements domain.Generator over the Google Generative
// Language API using the GenAI SDK.
package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"google.golang.org/genai"

	"github.com/fairyhunter13/reelmatch/internal/adapter/observability"
	"github.com/fairyhunter13/reelmatch/internal/domain"
)

// ProviderName labels logs and metrics.
const ProviderName = "gemini"

// Options configures a Client.
type Options struct {
	APIKey string
	// BaseURL overrides the API endpoint; empty uses the SDK default.
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client generates text with Gemini models. The SDK client is built on first
// use so a missing key surfaces as ErrMissingCredential, not a constructor error.
type Client struct {
	opts Options

	mu     sync.Mutex
	client *genai.Client
}

// New constructs a client.
func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.HTTPClient == nil {
		transport := otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return fmt.Sprintf("Gemini %s %s", r.Method, r.URL.Path)
			}),
		)
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout, Transport: transport}
	}
	return &Client{opts: opts}
}

// Provider implements domain.Generator.
func (c *Client) Provider() string { return ProviderName }

// Ready implements domain.Generator.
func (c *Client) Ready() error {
	if strings.TrimSpace(c.opts.APIKey) == "" {
		return fmt.Errorf("%w: GEMINI_API_KEY is not set", domain.ErrMissingCredential)
	}
	return nil
}

func (c *Client) sdk(ctx context.Context) (*genai.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		return c.client, nil
	}
	cfg := &genai.ClientConfig{
		APIKey:     c.opts.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: c.opts.HTTPClient,
	}
	if c.opts.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: c.opts.BaseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	c.client = client
	return client, nil
}

// Generate implements domain.Generator.
func (c *Client) Generate(ctx context.Context, req domain.GenerateRequest) (string, error) {
	if err := c.Ready(); err != nil {
		return "", err
	}
	client, err := c.sdk(ctx)
	if err != nil {
		return "", fmt.Errorf("op=gemini.Generate: %w: %v", domain.ErrMissingCredential, err)
	}

	gc := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(req.Config.Temperature),
		ResponseMIMEType: "application/json",
	}
	if req.Config.TopP > 0 {
		gc.TopP = genai.Ptr(req.Config.TopP)
	}
	if req.Config.TopK > 0 {
		gc.TopK = genai.Ptr(float32(req.Config.TopK))
	}

	resp, err := client.Models.GenerateContent(ctx, req.Model, genai.Text(req.Prompt), gc)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("op=gemini.Generate: %w", classify(err))
	}
	text, err := responseText(resp)
	if err != nil {
		observability.LoggerFromContext(ctx).Warn("gemini returned no usable candidate",
			slog.String("model", req.Model),
			slog.Any("error", err))
		return "", fmt.Errorf("op=gemini.Generate: %w", err)
	}
	return text, nil
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", fmt.Errorf("%w: nil response", domain.ErrUpstreamTransient)
	}
	if fb := resp.PromptFeedback; fb != nil && fb.BlockReason != "" {
		return "", fmt.Errorf("%w: prompt blocked (%s)", domain.ErrSafetyBlocked, fb.BlockReason)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return "", fmt.Errorf("%w: no candidates", domain.ErrUpstreamTransient)
	}
	cand := resp.Candidates[0]
	switch string(cand.FinishReason) {
	case "SAFETY", "PROHIBITED_CONTENT", "BLOCKLIST", "SPII", "IMAGE_SAFETY":
		return "", fmt.Errorf("%w: finish reason %s", domain.ErrSafetyBlocked, cand.FinishReason)
	}
	if cand.Content == nil {
		return "", fmt.Errorf("%w: empty candidate content", domain.ErrUpstreamTransient)
	}
	var b strings.Builder
	for _, part := range cand.Content.Parts {
		if part != nil && !part.Thought {
			b.WriteString(part.Text)
		}
	}
	return b.String(), nil
}

// classify wraps SDK errors with the domain sentinels by inspecting the
// status carried in the error text ("Error 429, Message: ..., Status: RESOURCE_EXHAUSTED").
func classify(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429") || strings.Contains(msg, "resource_exhausted") || strings.Contains(msg, "quota"):
		return fmt.Errorf("%w: %v", domain.ErrUpstreamRateLimit, err)
	case strings.Contains(msg, "api_key_invalid") || strings.Contains(msg, "api key not valid") || strings.Contains(msg, "error 401"):
		return fmt.Errorf("%w: %v", domain.ErrMissingCredential, err)
	case strings.Contains(msg, "safety") || strings.Contains(msg, "blocked"):
		return fmt.Errorf("%w: %v", domain.ErrSafetyBlocked, err)
	}
	return fmt.Errorf("%w: %v", domain.ErrUpstreamTransient, err)
}
