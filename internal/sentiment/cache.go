package sentiment

import (
	"context"
	"sync"
	"time"

	"github.com/trustfabric/equilibrate/internal/domain/model"
	"github.com/trustfabric/equilibrate/pkg/metrics"
)

// Default cache constants; production values come from config.
const (
	defaultCacheTTL     = 5 * time.Minute
	defaultCacheMaxSize = 10_000
)

// CacheOption applies a configuration option to the Cached decorator.
type CacheOption func(*Cached)

// WithTTL sets how long identical comment text is served from cache.
func WithTTL(ttl time.Duration) CacheOption {
	return func(c *Cached) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithMaxEntries bounds the cache size.
func WithMaxEntries(n int) CacheOption {
	return func(c *Cached) {
		if n > 0 {
			c.maxSize = n
		}
	}
}

type cacheEntry struct {
	result model.SentimentResult
	at     time.Time
}

// Cached decorates a Classifier with a short-TTL cache keyed on the exact
// comment text, avoiding redundant external calls for repeated comments.
// Only successful classifications are cached.
type Cached struct {
	inner   Classifier
	ttl     time.Duration
	maxSize int

	mu      sync.Mutex
	entries map[string]cacheEntry
}

// NewCached wraps a classifier with a TTL cache.
func NewCached(inner Classifier, opts ...CacheOption) *Cached {
	c := &Cached{
		inner:   inner,
		ttl:     defaultCacheTTL,
		maxSize: defaultCacheMaxSize,
	}

	for _, opt := range opts {
		opt(c)
	}

	c.entries = make(map[string]cacheEntry)

	return c
}

// Classify serves from cache when possible, delegating otherwise.
func (c *Cached) Classify(ctx context.Context, text string) (model.SentimentResult, error) {
	now := time.Now()

	c.mu.Lock()
	if e, ok := c.entries[text]; ok && now.Sub(e.at) < c.ttl {
		c.mu.Unlock()
		metrics.RecordSentimentCacheHit()
		return e.result, nil
	}
	c.mu.Unlock()

	result, err := c.inner.Classify(ctx, text)
	if err != nil {
		return result, err
	}

	c.mu.Lock()
	if len(c.entries) >= c.maxSize {
		// Full: drop expired entries; if nothing expired, reset outright.
		for k, e := range c.entries {
			if now.Sub(e.at) >= c.ttl {
				delete(c.entries, k)
			}
		}
		if len(c.entries) >= c.maxSize {
			c.entries = make(map[string]cacheEntry)
		}
	}
	c.entries[text] = cacheEntry{result: result, at: now}
	c.mu.Unlock()

	return result, nil
}

// Close propagates Close to the wrapped classifier when supported.
func (c *Cached) Close() error {
	if closer, ok := c.inner.(Closer); ok {
		return closer.Close()
	}
	return nil
}
