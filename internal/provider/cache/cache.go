package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"quoteledger/internal/provider"
)

// entry stores a cached quote with expiry.
type entry struct {
	expiresAt time.Time
	quote     provider.Quote
}

// Provider caches successful lookups per (symbol, exchange) for a TTL.
// Failed lookups are never cached. A TTL of zero disables caching.
type Provider struct {
	P        provider.Provider
	TTL      time.Duration
	MaxItems int

	// Now overrides the clock in tests.
	Now func() time.Time

	mu    sync.RWMutex
	items map[string]entry // key: SYMBOL|EXCHANGE
}

func (c *Provider) Name() string { return c.P.Name() }

func key(symbol, exchange string) string {
	return strings.ToUpper(strings.TrimSpace(symbol)) + "|" + strings.ToUpper(strings.TrimSpace(exchange))
}

func (c *Provider) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// Lookup returns the cached quote when still valid, otherwise asks the
// wrapped provider and stores the result on success.
func (c *Provider) Lookup(ctx context.Context, symbol, exchange string) (provider.Quote, error) {
	if c.TTL <= 0 {
		return c.P.Lookup(ctx, symbol, exchange)
	}

	k := key(symbol, exchange)
	now := c.now()

	c.mu.RLock()
	e, ok := c.items[k]
	c.mu.RUnlock()
	if ok && now.Before(e.expiresAt) {
		return e.quote, nil
	}

	q, err := c.P.Lookup(ctx, symbol, exchange)
	if err != nil {
		return provider.Quote{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.items == nil {
		c.items = make(map[string]entry)
	}
	c.items[k] = entry{expiresAt: now.Add(c.TTL), quote: q}
	c.evictLocked(now)
	return q, nil
}

// Len reports the number of cached entries, expired ones included.
func (c *Provider) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// evictLocked caps the cache size: expired entries go first, then arbitrary ones.
func (c *Provider) evictLocked(now time.Time) {
	if c.MaxItems <= 0 || len(c.items) <= c.MaxItems {
		return
	}
	for k, v := range c.items {
		if !now.Before(v.expiresAt) {
			delete(c.items, k)
		}
	}
	for k := range c.items {
		if len(c.items) <= c.MaxItems {
			break
		}
		delete(c.items, k)
	}
}
