// Package tokencount estimates prompt sizes for LLM calls.
//
// Encodings come from tiktoken-go with the offline BPE loader, so counting
// never reaches the network. Non-OpenAI models are approximated with
// cl100k_base, which is close enough for budget tracking.
package tokencount

import (
	"log/slog"
	"strings"
	"sync"

	tiktoken "github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

const fallbackEncoding = "cl100k_base"

var loaderOnce sync.Once

func useOfflineLoader() {
	loaderOnce.Do(func() { tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader()) })
}

// Counter counts tokens and caches encodings per model family.
type Counter struct {
	mu        sync.RWMutex
	encodings map[string]*tiktoken.Tiktoken
}

// NewCounter creates a counter.
func NewCounter() *Counter {
	useOfflineLoader()
	return &Counter{encodings: make(map[string]*tiktoken.Tiktoken)}
}

// Default is the process-wide counter.
var Default = NewCounter()

func (c *Counter) encoding(model string) (*tiktoken.Tiktoken, error) {
	name := normalizeModelName(model)

	c.mu.RLock()
	enc, ok := c.encodings[name]
	c.mu.RUnlock()
	if ok {
		return enc, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if enc, ok := c.encodings[name]; ok {
		return enc, nil
	}
	enc, err := tiktoken.EncodingForModel(name)
	if err != nil {
		slog.Debug("falling back to cl100k_base encoding", slog.String("model", model), slog.Any("error", err))
		if enc, err = tiktoken.GetEncoding(fallbackEncoding); err != nil {
			return nil, err
		}
	}
	c.encodings[name] = enc
	return enc, nil
}

// normalizeModelName maps provider model ids onto a tiktoken model name.
// "meta-llama/llama-3.1-8b-instruct:free" and "gemini-2.5-flash" both land on gpt-4.
func normalizeModelName(model string) string {
	model = strings.ToLower(strings.TrimSpace(model))
	if i := strings.LastIndex(model, "/"); i >= 0 {
		model = model[i+1:]
	}
	model = strings.TrimSuffix(model, ":free")
	if strings.Contains(model, "gpt-3.5") {
		return "gpt-3.5-turbo"
	}
	return "gpt-4"
}

// Count returns the number of tokens in text for model.
func (c *Counter) Count(text, model string) (int, error) {
	enc, err := c.encoding(model)
	if err != nil {
		return 0, err
	}
	return len(enc.Encode(text, nil, nil)), nil
}

// Estimate is Count with a chars/4 fallback when no encoding is available.
func (c *Counter) Estimate(text, model string) int {
	n, err := c.Count(text, model)
	if err != nil {
		slog.Warn("token count failed, using estimate", slog.String("model", model), slog.Any("error", err))
		return len(text) / 4
	}
	return n
}
