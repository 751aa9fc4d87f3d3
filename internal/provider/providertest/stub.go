// Package providertest holds a scriptable provider for tests.
package providertest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"quoteledger/internal/provider"
)

// Stub answers lookups from a price table keyed by "SYMBOL|EXCHANGE".
// Missing keys fail with provider.ErrLookupFailed.
type Stub struct {
	Prices map[string]float64
	// Hook, when set, runs before every lookup and may override the result.
	Hook func(ctx context.Context, symbol, exchange string) error

	mu    sync.Mutex
	calls []string
}

func Key(symbol, exchange string) string {
	return strings.ToUpper(symbol) + "|" + strings.ToUpper(exchange)
}

func (s *Stub) Name() string { return "stub" }

func (s *Stub) Lookup(ctx context.Context, symbol, exchange string) (provider.Quote, error) {
	k := Key(symbol, exchange)
	s.mu.Lock()
	s.calls = append(s.calls, k)
	s.mu.Unlock()

	if s.Hook != nil {
		if err := s.Hook(ctx, symbol, exchange); err != nil {
			return provider.Quote{}, err
		}
	}
	if err := ctx.Err(); err != nil {
		return provider.Quote{}, err
	}
	price, ok := s.Prices[k]
	if !ok {
		return provider.Quote{}, fmt.Errorf("%w: %s", provider.ErrLookupFailed, k)
	}
	return provider.Quote{Symbol: symbol, Exchange: exchange, Price: price, Source: "stub", ReceivedAt: time.Now().UTC()}, nil
}

// Calls returns the lookup keys in call order.
func (s *Stub) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}
