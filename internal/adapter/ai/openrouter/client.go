// Package openrouter implements domain.Generator over the OpenRouter
// (OpenAI-compatible) chat completions API and discovers its free models.
package openrouter

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	json "github.com/goccy/go-json"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fairyhunter13/reelmatch/internal/adapter/observability"
	"github.com/fairyhunter13/reelmatch/internal/domain"
)

// ProviderName labels logs and metrics.
const ProviderName = "openrouter"

const snippetLimit = 512

// Options configures a Client.
type Options struct {
	APIKey  string
	BaseURL string
	Referer string
	Title   string
	Timeout time.Duration
	// ServerErrorRetries bounds same-model retries on 5xx answers.
	ServerErrorRetries uint64
	// RetryInterval is the initial pause between those retries.
	RetryInterval time.Duration
	HTTPClient    *http.Client
}

// Client calls OpenRouter chat completions.
type Client struct {
	opts Options
	hc   *http.Client
}

// New constructs a client with an otelhttp-instrumented transport.
func New(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://openrouter.ai/api/v1"
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = 500 * time.Millisecond
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = newHTTPClient(opts.Timeout, "OpenRouter")
	}
	return &Client{opts: opts, hc: hc}
}

func newHTTPClient(timeout time.Duration, span string) *http.Client {
	transport := otelhttp.NewTransport(http.DefaultTransport,
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return fmt.Sprintf("%s %s %s", span, r.Method, r.URL.Path)
		}),
	)
	return &http.Client{Timeout: timeout, Transport: transport}
}

// Provider implements domain.Generator.
func (c *Client) Provider() string { return ProviderName }

// Ready implements domain.Generator.
func (c *Client) Ready() error {
	if strings.TrimSpace(c.opts.APIKey) == "" {
		return fmt.Errorf("%w: OPENROUTER_API_KEY is not set", domain.ErrMissingCredential)
	}
	return nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    float32        `json:"temperature"`
	TopP           float32        `json:"top_p,omitempty"`
	TopK           int            `json:"top_k,omitempty"`
	ResponseFormat responseFormat `json:"response_format"`
}

type apiError struct {
	Code    any    `json:"code"`
	Message string `json:"message"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		FinishReason string `json:"finish_reason"`
		Message      struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *apiError `json:"error,omitempty"`
}

// Generate implements domain.Generator.
func (c *Client) Generate(ctx context.Context, req domain.GenerateRequest) (string, error) {
	if err := c.Ready(); err != nil {
		return "", err
	}
	lg := observability.LoggerFromContext(ctx)
	body, err := json.Marshal(chatRequest{
		Model:          req.Model,
		Messages:       []chatMessage{{Role: "user", Content: req.Prompt}},
		Temperature:    req.Config.Temperature,
		TopP:           req.Config.TopP,
		TopK:           req.Config.TopK,
		ResponseFormat: responseFormat{Type: "json_object"},
	})
	if err != nil {
		return "", fmt.Errorf("op=openrouter.Generate: %w: %v", domain.ErrInternal, err)
	}
	endpoint := c.opts.BaseURL + "/chat/completions"

	var out chatResponse
	op := func() error {
		// rebuilt each attempt: a consumed body cannot be resent
		r, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		r.Header.Set("Authorization", "Bearer "+c.opts.APIKey)
		r.Header.Set("Content-Type", "application/json")
		if c.opts.Referer != "" {
			r.Header.Set("HTTP-Referer", c.opts.Referer)
		}
		if c.opts.Title != "" {
			r.Header.Set("X-Title", c.opts.Title)
		}
		resp, err := c.hc.Do(r)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return fmt.Errorf("%w: %v", domain.ErrUpstreamTransient, err)
		}
		defer func() { _ = resp.Body.Close() }()

		raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
		if err != nil {
			return fmt.Errorf("%w: read body: %v", domain.ErrUpstreamTransient, err)
		}
		if resp.StatusCode >= 500 {
			lg.Warn("ai provider 5xx",
				slog.String("provider", ProviderName),
				slog.String("model", req.Model),
				slog.Int("status", resp.StatusCode),
				slog.String("body", snippet(raw)))
			return fmt.Errorf("%w: chat status %d", domain.ErrUpstreamTransient, resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			lg.Warn("ai provider non-2xx",
				slog.String("provider", ProviderName),
				slog.String("model", req.Model),
				slog.Int("status", resp.StatusCode),
				slog.String("x_request_id", resp.Header.Get("X-Request-Id")),
				slog.String("body", snippet(raw)))
			return backoff.Permanent(statusError(resp.StatusCode, raw))
		}
		if err := json.Unmarshal(raw, &out); err != nil {
			return backoff.Permanent(fmt.Errorf("%w: decode chat response: %v", domain.ErrUpstreamTransient, err))
		}
		return nil
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = c.opts.RetryInterval
	bo := backoff.WithContext(backoff.WithMaxRetries(expo, c.opts.ServerErrorRetries), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return "", fmt.Errorf("op=openrouter.Generate: %w", err)
	}

	if out.Error != nil {
		return "", fmt.Errorf("op=openrouter.Generate: %w", embeddedError(out.Error))
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("op=openrouter.Generate: %w: empty choices", domain.ErrUpstreamTransient)
	}
	choice := out.Choices[0]
	if choice.FinishReason == "content_filter" {
		return "", fmt.Errorf("op=openrouter.Generate: %w: finish reason content_filter", domain.ErrSafetyBlocked)
	}
	if out.Model != "" && out.Model != req.Model {
		lg.Debug("model substitution detected",
			slog.String("requested_model", req.Model),
			slog.String("actual_model", out.Model))
	}
	return choice.Message.Content, nil
}

func statusError(status int, raw []byte) error {
	msg := snippet(raw)
	switch {
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: chat status 429: %s", domain.ErrUpstreamRateLimit, msg)
	case status == http.StatusUnauthorized:
		return fmt.Errorf("%w: api key rejected (401)", domain.ErrMissingCredential)
	case status == http.StatusForbidden && strings.Contains(strings.ToLower(msg), "moderation"),
		strings.Contains(strings.ToLower(msg), "flagged"):
		return fmt.Errorf("%w: chat status %d: %s", domain.ErrSafetyBlocked, status, msg)
	case status == http.StatusPaymentRequired:
		return fmt.Errorf("%w: chat status 402 (insufficient credits)", domain.ErrUpstreamRateLimit)
	}
	return fmt.Errorf("chat status %d: %s", status, msg)
}

func embeddedError(e *apiError) error {
	code := fmt.Sprint(e.Code)
	switch code {
	case "429":
		return fmt.Errorf("%w: %s", domain.ErrUpstreamRateLimit, e.Message)
	case "401":
		return fmt.Errorf("%w: %s", domain.ErrMissingCredential, e.Message)
	case "403":
		return fmt.Errorf("%w: %s", domain.ErrSafetyBlocked, e.Message)
	}
	return fmt.Errorf("%w: upstream error %s: %s", domain.ErrUpstreamTransient, code, e.Message)
}

func snippet(raw []byte) string {
	s := string(raw)
	if len(s) > snippetLimit {
		s = s[:snippetLimit]
	}
	return s
}
