package quotepage_test

import (
	"errors"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"quoteledger/internal/provider/quotepage"
)

func TestResolve_ExchangeSuffixes(t *testing.T) {
	t.Parallel()

	// Arrange: a client with a fixed cache buster.
	client := quotepage.NewClient(
		quotepage.WithBaseURL("https://quotes.example.com/quote"),
		quotepage.WithIntn(func(int) int { return 42 }),
	)

	cases := []struct {
		symbol, exchange, wantPath string
	}{
		{"ES3", "SGX", "/quote/ES3.SI"},
		{"2388", "HKEX", "/quote/2388.HK"},
		{"601398", "XSSC", "/quote/601398.SS"},
		{"DIS", "USA", "/quote/DIS"},
		{"X", "UNKNOWN", "/quote/X"},
		{"X", "", "/quote/X"},
	}
	for _, tc := range cases {
		// Act: resolve each pair.
		raw, err := client.Resolve(tc.symbol, tc.exchange)
		require.NoError(t, err)

		// Assert: path carries the suffixed ticker and the cache buster is present.
		u, err := url.Parse(raw)
		require.NoError(t, err)
		require.Equal(t, tc.wantPath, u.Path)
		require.Equal(t, "42", u.Query().Get(quotepage.DefaultCacheBusterParam))
	}
}

func TestResolve_CacheBusterRange(t *testing.T) {
	t.Parallel()

	var seen []int
	client := quotepage.NewClient(quotepage.WithIntn(func(n int) int {
		seen = append(seen, n)
		return n - 1
	}))

	raw, err := client.Resolve("DIS", "USA")
	require.NoError(t, err)
	require.Equal(t, []int{1000}, seen)
	require.True(t, strings.HasSuffix(raw, "r="+strconv.Itoa(999)), raw)
}

func TestResolve_DefaultRandomStaysInRange(t *testing.T) {
	t.Parallel()

	client := quotepage.NewClient(quotepage.WithCacheBusterParam("nocache"))
	for i := 0; i < 50; i++ {
		raw, err := client.Resolve("DIS", "USA")
		require.NoError(t, err)
		u, err := url.Parse(raw)
		require.NoError(t, err)
		n, err := strconv.Atoi(u.Query().Get("nocache"))
		require.NoError(t, err)
		require.GreaterOrEqual(t, n, 0)
		require.Less(t, n, 1000)
	}
}

func TestResolve_StrictRejectsUnknown(t *testing.T) {
	t.Parallel()

	client := quotepage.NewClient(quotepage.WithStrictExchanges(true))

	_, err := client.Resolve("X", "UNKNOWN")
	require.True(t, errors.Is(err, quotepage.ErrUnknownExchange), "got %v", err)
	require.ErrorContains(t, err, "want one of USA, SGX, HKEX, XSSC")

	_, err = client.Resolve("ES3", "sgx")
	require.NoError(t, err)
}
