package ratelimit

import (
	"context"
	"sync"
	"time"

	"quoteledger/internal/provider"
)

// MinInterval wraps a provider and enforces a minimum time between calls.
// Concurrent calls are serialized and wait until the interval has elapsed
// since the last call, or return early if the context is canceled.
type MinInterval struct {
	P        provider.Provider
	Interval time.Duration

	mu   sync.Mutex
	last time.Time
}

func (m *MinInterval) Name() string { return m.P.Name() }

func (m *MinInterval) Lookup(ctx context.Context, symbol, exchange string) (provider.Quote, error) {
	if m.Interval <= 0 {
		return m.P.Lookup(ctx, symbol, exchange)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if wait := time.Until(m.last.Add(m.Interval)); wait > 0 {
		t := time.NewTimer(wait)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return provider.Quote{}, ctx.Err()
		case <-t.C:
		}
	}
	q, err := m.P.Lookup(ctx, symbol, exchange)
	m.last = time.Now()
	return q, err
}
