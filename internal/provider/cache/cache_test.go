package cache

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"quoteledger/internal/provider"
	"quoteledger/internal/provider/providertest"
)

func TestCache_HitWithinTTL(t *testing.T) {
	// Arrange
	stub := &providertest.Stub{Prices: map[string]float64{"DIS|USA": 100}}
	now := time.Unix(1_700_000_000, 0)
	c := &Provider{P: stub, TTL: time.Minute, Now: func() time.Time { return now }}

	// Act
	q1, err1 := c.Lookup(t.Context(), "DIS", "USA")
	q2, err2 := c.Lookup(t.Context(), "dis", "usa")

	// Assert
	require.NoError(t, err1)
	require.NoError(t, err2)
	require.Equal(t, q1, q2)
	require.Len(t, stub.Calls(), 1)
}

func TestCache_ExpiredEntryRefetches(t *testing.T) {
	stub := &providertest.Stub{Prices: map[string]float64{"DIS|USA": 100}}
	now := time.Unix(1_700_000_000, 0)
	c := &Provider{P: stub, TTL: time.Minute, Now: func() time.Time { return now }}

	_, err := c.Lookup(t.Context(), "DIS", "USA")
	require.NoError(t, err)
	now = now.Add(2 * time.Minute)
	_, err = c.Lookup(t.Context(), "DIS", "USA")
	require.NoError(t, err)

	require.Len(t, stub.Calls(), 2)
}

func TestCache_FailuresAreNotCached(t *testing.T) {
	stub := &providertest.Stub{Prices: map[string]float64{}}
	c := &Provider{P: stub, TTL: time.Minute}

	_, err := c.Lookup(t.Context(), "X", "USA")
	require.True(t, errors.Is(err, provider.ErrLookupFailed))
	_, err = c.Lookup(t.Context(), "X", "USA")
	require.Error(t, err)

	require.Len(t, stub.Calls(), 2)
	require.Zero(t, c.Len())
}

func TestCache_DisabledPassesThrough(t *testing.T) {
	stub := &providertest.Stub{Prices: map[string]float64{"DIS|USA": 100}}
	c := &Provider{P: stub}

	for range 3 {
		_, err := c.Lookup(t.Context(), "DIS", "USA")
		require.NoError(t, err)
	}
	require.Len(t, stub.Calls(), 3)
}

func TestCache_MaxItems(t *testing.T) {
	stub := &providertest.Stub{Prices: map[string]float64{"A|USA": 1, "B|USA": 2, "C|USA": 3}}
	c := &Provider{P: stub, TTL: time.Minute, MaxItems: 2}

	for _, s := range []string{"A", "B", "C"} {
		_, err := c.Lookup(t.Context(), s, "USA")
		require.NoError(t, err)
	}
	require.Equal(t, 2, c.Len())
}
