// Package breaker stops calling an upstream that keeps failing.
package breaker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"quoteledger/internal/provider"
)

type Config struct {
	// ConsecutiveFailures trips the breaker; zero disables it.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before probing again.
	OpenTimeout time.Duration
}

// Provider wraps a provider with a circuit breaker. While open, lookups fail
// fast with provider.ErrLookupFailed without reaching the upstream.
type Provider struct {
	p  provider.Provider
	cb *gobreaker.CircuitBreaker
}

func New(p provider.Provider, cfg Config, logger zerolog.Logger) provider.Provider {
	if cfg.ConsecutiveFailures == 0 {
		return p
	}
	settings := gobreaker.Settings{
		Name:        p.Name(),
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		// Caller cancellation says nothing about upstream health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().Str("provider", name).Str("from", from.String()).Str("to", to.String()).Msg("breaker state change")
		},
	}
	return &Provider{p: p, cb: gobreaker.NewCircuitBreaker(settings)}
}

func (b *Provider) Name() string { return b.p.Name() }

// State reports the breaker state.
func (b *Provider) State() gobreaker.State { return b.cb.State() }

func (b *Provider) Lookup(ctx context.Context, symbol, exchange string) (provider.Quote, error) {
	res, err := b.cb.Execute(func() (interface{}, error) {
		return b.p.Lookup(ctx, symbol, exchange)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return provider.Quote{}, fmt.Errorf("%w: %s/%s: %w", provider.ErrLookupFailed, symbol, exchange, err)
		}
		return provider.Quote{}, err
	}
	return res.(provider.Quote), nil
}
