package quotepage

import (
	"math/rand/v2"
	"net/http"

	"github.com/rs/zerolog"
)

// DefaultBaseURL is the quote page root; the ticker is appended as a path segment.
const DefaultBaseURL = "https://finance.yahoo.com/quote"

// DefaultAttempts is the number of fetch attempts per page.
const DefaultAttempts = 3

// DefaultCacheBusterParam names the random query parameter appended to each URL.
const DefaultCacheBusterParam = "r"

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=quotepage_test -destination=mock_http_client_test.go -source=client.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// AttemptObserver is notified of every fetch attempt. status is 0 when the
// attempt failed before a response arrived.
type AttemptObserver interface {
	ObserveAttempt(status int)
}

// Client resolves quote page URLs and fetches them.
type Client struct {
	// baseURL is the root every quote page URL is built from.
	baseURL string
	// httpClient performs the requests.
	httpClient HTTPClient
	// header contains additional headers to be sent with each request.
	header http.Header
	// attempts bounds the fetch loop.
	attempts int
	// cacheParam is the query parameter carrying the cache buster.
	cacheParam string
	// strict rejects unknown exchange codes instead of using the USA form.
	strict bool
	// intn draws the cache buster in [0, n).
	intn     func(n int) int
	observer AttemptObserver
	logger   zerolog.Logger
}

// ClientOption is a configuration option for the quote page client.
type ClientOption func(*Client)

// WithBaseURL sets the quote page root.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(httpClient HTTPClient) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithHeader sets additional headers to be sent with each request.
func WithHeader(header http.Header) ClientOption {
	return func(c *Client) {
		for key, values := range header {
			for _, value := range values {
				c.header.Add(key, value)
			}
		}
	}
}

// WithAttempts sets how many times a page is requested before giving up.
func WithAttempts(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.attempts = n
		}
	}
}

// WithCacheBusterParam renames the random query parameter.
func WithCacheBusterParam(name string) ClientOption {
	return func(c *Client) {
		if name != "" {
			c.cacheParam = name
		}
	}
}

// WithStrictExchanges makes unknown exchange codes a resolution error.
func WithStrictExchanges(strict bool) ClientOption {
	return func(c *Client) {
		c.strict = strict
	}
}

// WithIntn replaces the cache buster source.
func WithIntn(intn func(n int) int) ClientOption {
	return func(c *Client) {
		c.intn = intn
	}
}

// WithObserver reports each attempt's status.
func WithObserver(o AttemptObserver) ClientOption {
	return func(c *Client) {
		c.observer = o
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

// NewClient creates a new quote page client.
func NewClient(options ...ClientOption) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: http.DefaultClient,
		header:     http.Header{},
		attempts:   DefaultAttempts,
		cacheParam: DefaultCacheBusterParam,
		intn:       rand.IntN,
		logger:     zerolog.Nop(),
	}
	for _, option := range options {
		option(c)
	}
	return c
}
