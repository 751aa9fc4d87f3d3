package provider

import (
	"context"
	"errors"
	"time"
)

// ErrLookupFailed is the single failure sentinel for a symbol lookup.
// Callers treat every lookup error the same way regardless of its cause.
var ErrLookupFailed = errors.New("lookup failed")

// Quote is the normalized shape returned by all providers.
type Quote struct {
	Symbol     string    `json:"symbol"`
	Exchange   string    `json:"exchange"`
	Price      float64   `json:"price"`
	Source     string    `json:"source"`
	ReceivedAt time.Time `json:"received_at"`
}

// Provider resolves the last traded price of one symbol on one exchange.
// Any returned error wraps ErrLookupFailed.
type Provider interface {
	Name() string
	Lookup(ctx context.Context, symbol, exchange string) (Quote, error)
}
