package openrouter

import (
	"context"
	"fmt"
	"net/http"

	json "github.com/goccy/go-json"
)

// KeyInfo is the OpenRouter api key status.
// See https://openrouter.ai/docs/api-reference/limits
type KeyInfo struct {
	Label          string   `json:"label"`
	Usage          float64  `json:"usage"`
	Limit          *float64 `json:"limit"`
	LimitRemaining *float64 `json:"limit_remaining"`
	IsFreeTier     bool     `json:"is_free_tier"`
}

// Unlimited reports whether the key has no credit limit.
func (k KeyInfo) Unlimited() bool { return k.Limit == nil }

// DailyFreeRequests is the documented daily cap on free model requests.
func (k KeyInfo) DailyFreeRequests() int {
	if k.IsFreeTier {
		return 50
	}
	return 1000
}

// KeyStatus fetches the usage and remaining quota of the configured key.
func (c *Client) KeyStatus(ctx context.Context) (KeyInfo, error) {
	if err := c.Ready(); err != nil {
		return KeyInfo{}, fmt.Errorf("op=openrouter.KeyStatus: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.opts.BaseURL+"/key", nil)
	if err != nil {
		return KeyInfo{}, fmt.Errorf("op=openrouter.KeyStatus: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.opts.APIKey)

	resp, err := c.hc.Do(req)
	if err != nil {
		return KeyInfo{}, fmt.Errorf("op=openrouter.KeyStatus: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return KeyInfo{}, fmt.Errorf("op=openrouter.KeyStatus: %w", statusError(resp.StatusCode, nil))
	}
	var out struct {
		Data KeyInfo `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return KeyInfo{}, fmt.Errorf("op=openrouter.KeyStatus: decode: %w", err)
	}
	return out.Data, nil
}
