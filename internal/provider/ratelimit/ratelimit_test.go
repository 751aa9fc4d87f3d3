package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"quoteledger/internal/provider/providertest"
)

func TestMinInterval_SpacesCalls(t *testing.T) {
	stub := &providertest.Stub{Prices: map[string]float64{"A|USA": 1}}
	m := &MinInterval{P: stub, Interval: 30 * time.Millisecond}

	start := time.Now()
	for range 3 {
		_, err := m.Lookup(t.Context(), "A", "USA")
		require.NoError(t, err)
	}

	require.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
	require.Len(t, stub.Calls(), 3)
}

func TestMinInterval_CanceledWhileWaiting(t *testing.T) {
	stub := &providertest.Stub{Prices: map[string]float64{"A|USA": 1}}
	m := &MinInterval{P: stub, Interval: time.Hour}

	_, err := m.Lookup(t.Context(), "A", "USA")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
	defer cancel()
	_, err = m.Lookup(ctx, "A", "USA")

	require.True(t, errors.Is(err, context.DeadlineExceeded))
	require.Len(t, stub.Calls(), 1)
}

func TestLimited_BurstThenWait(t *testing.T) {
	stub := &providertest.Stub{Prices: map[string]float64{"A|USA": 1}}
	l := &Limited{P: stub, Limiter: rate.NewLimiter(rate.Every(time.Hour), 2)}

	for range 2 {
		_, err := l.Lookup(t.Context(), "A", "USA")
		require.NoError(t, err)
	}
	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()
	_, err := l.Lookup(ctx, "A", "USA")

	require.Error(t, err)
	require.Len(t, stub.Calls(), 2)
}

func TestPerMinute(t *testing.T) {
	require.Equal(t, rate.Inf, PerMinute(0, 5).Limit())

	lim := PerMinute(120, 0)
	require.InDelta(t, 2.0, float64(lim.Limit()), 1e-9)
	require.Equal(t, 1, lim.Burst())
}
