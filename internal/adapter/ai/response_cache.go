// Package ai routes generation requests across the candidate models and
// caches their raw responses for the lifetime of the process.
package ai

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	"github.com/fairyhunter13/reelmatch/internal/adapter/observability"
	"github.com/fairyhunter13/reelmatch/internal/domain"
)

// DefaultCacheTTL is used when no TTL is configured.
const DefaultCacheTTL = 10 * time.Minute

// CachedResponse is one stored raw model response.
type CachedResponse struct {
	Data      string
	Timestamp time.Time
	TTL       time.Duration
}

// validAt reports whether the entry is still fresh at now.
func (cr *CachedResponse) validAt(now time.Time) bool {
	return now.Sub(cr.Timestamp) < cr.TTL
}

// ResponseCache is an in-memory TTL cache of raw model responses keyed by
// CacheKey. Expired entries stay until Stats, Put or Clear touches them.
type ResponseCache struct {
	mu         sync.Mutex
	entries    map[string]*CachedResponse
	defaultTTL time.Duration
	now        func() time.Time
}

// NewResponseCache creates a cache. A non-positive defaultTTL falls back to
// DefaultCacheTTL; a nil clock uses time.Now.
func NewResponseCache(defaultTTL time.Duration, clock func() time.Time) *ResponseCache {
	if defaultTTL <= 0 {
		defaultTTL = DefaultCacheTTL
	}
	if clock == nil {
		clock = time.Now
	}
	return &ResponseCache{
		entries:    make(map[string]*CachedResponse),
		defaultTTL: defaultTTL,
		now:        clock,
	}
}

// CacheKey derives the cache key of a prompt and its sampling parameters.
func CacheKey(prompt string, cfg domain.GenerationConfig) string {
	// GenerationConfig only holds numbers; marshalling cannot fail.
	canonical, _ := json.Marshal(cfg)
	sum := sha256.Sum256([]byte(prompt + "|" + string(canonical)))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached data when the entry is still valid.
func (c *ResponseCache) Get(key string) (string, bool) {
	c.mu.Lock()
	entry, ok := c.entries[key]
	valid := ok && entry.validAt(c.now())
	c.mu.Unlock()

	observability.RecordCacheLookup(valid)
	if !valid {
		return "", false
	}
	slog.Debug("response cache hit",
		slog.String("key", shortKey(key)),
		slog.Duration("age", c.now().Sub(entry.Timestamp)))
	return entry.Data, true
}

// Put stores data under key, replacing any previous entry. A non-positive ttl
// uses the cache default.
func (c *ResponseCache) Put(key, data string, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	c.mu.Lock()
	c.entries[key] = &CachedResponse{Data: data, Timestamp: c.now(), TTL: ttl}
	c.mu.Unlock()

	slog.Debug("response cache set",
		slog.String("key", shortKey(key)),
		slog.Duration("ttl", ttl))
}

// Stats counts entries and drops the expired ones.
func (c *ResponseCache) Stats() domain.CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	stats := domain.CacheStats{TotalEntries: len(c.entries)}
	for key, entry := range c.entries {
		if entry.validAt(now) {
			stats.ValidEntries++
			continue
		}
		stats.ExpiredEntries++
		delete(c.entries, key)
	}
	if stats.ExpiredEntries > 0 {
		slog.Debug("swept expired cache entries", slog.Int("count", stats.ExpiredEntries))
	}
	return stats
}

// Clear removes all cached entries.
func (c *ResponseCache) Clear() {
	c.mu.Lock()
	n := len(c.entries)
	c.entries = make(map[string]*CachedResponse)
	c.mu.Unlock()

	slog.Info("response cache cleared", slog.Int("entries", n))
}

// DefaultTTL returns the TTL applied by Put when none is given.
func (c *ResponseCache) DefaultTTL() time.Duration { return c.defaultTTL }

func shortKey(key string) string {
	if len(key) > 16 {
		return key[:16] + "..."
	}
	return key
}
