package quotepage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// ErrFetchExhausted means no attempt returned 200, or the transport failed.
var ErrFetchExhausted = errors.New("fetch exhausted")

// maxPageBytes caps how much of a page body is read.
const maxPageBytes = 8 << 20

// Fetch GETs pageURL up to the configured number of attempts and returns the
// body of the first 200 response. Attempts are back to back; a transport
// error ends the loop immediately.
func (c *Client) Fetch(ctx context.Context, pageURL string) (string, error) {
	var lastStatus int
	for attempt := 1; attempt <= c.attempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, http.NoBody)
		if err != nil {
			return "", fmt.Errorf("creating request: %w", err)
		}
		for key, values := range c.header {
			for _, value := range values {
				req.Header.Add(key, value)
			}
		}

		res, err := c.httpClient.Do(req)
		if err != nil {
			c.observe(0)
			c.logger.Debug().Str("url", pageURL).Int("attempt", attempt).Err(err).Msg("fetch attempt failed")
			return "", fmt.Errorf("%w: %s: %w", ErrFetchExhausted, pageURL, err)
		}
		c.observe(res.StatusCode)

		if res.StatusCode != http.StatusOK {
			lastStatus = res.StatusCode
			_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 64<<10))
			res.Body.Close()
			c.logger.Debug().Str("url", pageURL).Int("attempt", attempt).Int("status", res.StatusCode).Msg("fetch attempt rejected")
			continue
		}

		body, err := io.ReadAll(io.LimitReader(res.Body, maxPageBytes))
		res.Body.Close()
		if err != nil {
			return "", fmt.Errorf("%w: reading %s: %w", ErrFetchExhausted, pageURL, err)
		}
		return string(body), nil
	}
	return "", fmt.Errorf("%w: %s: %d attempts, last status %d", ErrFetchExhausted, pageURL, c.attempts, lastStatus)
}

func (c *Client) observe(status int) {
	if c.observer != nil {
		c.observer.ObserveAttempt(status)
	}
}
