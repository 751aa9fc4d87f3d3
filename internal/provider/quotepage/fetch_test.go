package quotepage_test

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"quoteledger/internal/provider/quotepage"
)

func response(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestFetch_EarlyExitOnSecondAttempt(t *testing.T) {
	t.Parallel()

	// Arrange: create a mock controller and HTTP client.
	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)

	// Assert: a 500 followed by a 200, and never a third call.
	gomock.InOrder(
		httpClient.EXPECT().Do(gomock.Any()).Return(response(http.StatusInternalServerError, "oops"), nil).Times(1),
		httpClient.EXPECT().Do(gomock.Any()).Return(response(http.StatusOK, "<html>ok</html>"), nil).Times(1),
	)

	client := quotepage.NewClient(quotepage.WithHTTPClient(httpClient))

	// Act
	body, err := client.Fetch(t.Context(), "https://quotes.example.com/quote/DIS?r=1")

	// Assert
	require.NoError(t, err)
	require.Equal(t, "<html>ok</html>", body)
}

func TestFetch_ExhaustedAfterThreeFailures(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)

	// Assert: exactly three attempts against the same URL.
	const pageURL = "https://quotes.example.com/quote/DIS?r=7"
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.Equal(t, http.MethodGet, req.Method)
			require.Equal(t, pageURL, req.URL.String())
			return response(http.StatusInternalServerError, ""), nil
		}).
		Times(3)

	client := quotepage.NewClient(quotepage.WithHTTPClient(httpClient))

	_, err := client.Fetch(t.Context(), pageURL)
	require.True(t, errors.Is(err, quotepage.ErrFetchExhausted), "got %v", err)
}

func TestFetch_NonOKStatusesAreFailures(t *testing.T) {
	t.Parallel()

	for _, status := range []int{http.StatusNotFound, http.StatusFound, http.StatusNoContent, http.StatusTooManyRequests} {
		ctrl := gomock.NewController(t)
		httpClient := NewMockHTTPClient(ctrl)
		httpClient.EXPECT().Do(gomock.Any()).Return(response(status, ""), nil).Times(3)

		client := quotepage.NewClient(quotepage.WithHTTPClient(httpClient))
		_, err := client.Fetch(t.Context(), "https://quotes.example.com/quote/DIS")
		require.Truef(t, errors.Is(err, quotepage.ErrFetchExhausted), "status %d: got %v", status, err)
	}
}

func TestFetch_TransportErrorStopsImmediately(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	httpClient.EXPECT().Do(gomock.Any()).Return(nil, errors.New("connection reset")).Times(1)

	client := quotepage.NewClient(quotepage.WithHTTPClient(httpClient))

	_, err := client.Fetch(t.Context(), "https://quotes.example.com/quote/DIS")
	require.True(t, errors.Is(err, quotepage.ErrFetchExhausted), "got %v", err)
}

func TestFetch_ObserverSeesEveryAttempt(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	observer := NewMockAttemptObserver(ctrl)

	gomock.InOrder(
		httpClient.EXPECT().Do(gomock.Any()).Return(response(http.StatusServiceUnavailable, ""), nil),
		httpClient.EXPECT().Do(gomock.Any()).Return(response(http.StatusOK, "x"), nil),
	)
	gomock.InOrder(
		observer.EXPECT().ObserveAttempt(http.StatusServiceUnavailable),
		observer.EXPECT().ObserveAttempt(http.StatusOK),
	)

	client := quotepage.NewClient(quotepage.WithHTTPClient(httpClient), quotepage.WithObserver(observer))
	_, err := client.Fetch(t.Context(), "https://quotes.example.com/quote/DIS")
	require.NoError(t, err)
}

func TestFetch_WithHeaderAndAttempts(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.Equal(t, "bar", req.Header.Get("foo"))
			return response(http.StatusBadGateway, ""), nil
		}).
		Times(5)

	client := quotepage.NewClient(
		quotepage.WithHTTPClient(httpClient),
		quotepage.WithAttempts(5),
		quotepage.WithHeader(http.Header{"foo": []string{"bar"}}),
	)
	_, err := client.Fetch(t.Context(), "https://quotes.example.com/quote/DIS")
	require.Error(t, err)
}

func TestFetch_AgainstServer(t *testing.T) {
	t.Parallel()

	// Arrange: a server that fails twice then serves the page.
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("page"))
	}))
	defer srv.Close()

	client := quotepage.NewClient(quotepage.WithHTTPClient(srv.Client()))

	body, err := client.Fetch(t.Context(), srv.URL+"/quote/DIS")
	require.NoError(t, err)
	require.Equal(t, "page", body)
	require.Equal(t, int32(3), calls.Load())
}
