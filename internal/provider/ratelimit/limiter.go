package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"quoteledger/internal/provider"
)

// Limited gates lookups with a token bucket.
type Limited struct {
	P       provider.Provider
	Limiter *rate.Limiter
}

// PerMinute builds a limiter allowing n requests per minute with the given burst.
// A non-positive n yields an unlimited limiter.
func PerMinute(n, burst int) *rate.Limiter {
	if n <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), burst)
}

func (l *Limited) Name() string { return l.P.Name() }

func (l *Limited) Lookup(ctx context.Context, symbol, exchange string) (provider.Quote, error) {
	if l.Limiter != nil {
		if err := l.Limiter.Wait(ctx); err != nil {
			return provider.Quote{}, err
		}
	}
	return l.P.Lookup(ctx, symbol, exchange)
}
