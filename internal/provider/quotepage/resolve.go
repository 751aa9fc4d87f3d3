package quotepage

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"quoteledger/internal/provider"
)

// ErrUnknownExchange is returned by Resolve in strict mode.
var ErrUnknownExchange = errors.New("unknown exchange")

// cacheBusterRange bounds the random query value.
const cacheBusterRange = 1000

// Resolve maps (symbol, exchange) to a quote page URL. Unknown exchange codes
// resolve to the USA form unless the client is strict.
func (c *Client) Resolve(symbol, exchange string) (string, error) {
	ex, ok := provider.ParseExchange(exchange)
	if !ok {
		if c.strict {
			return "", fmt.Errorf("%w: %q (want one of %s)", ErrUnknownExchange, exchange, knownExchanges())
		}
		c.logger.Warn().Str("symbol", symbol).Str("exchange", exchange).Msg("unknown exchange, using USA quote page")
		ex = provider.USA
	}

	ticker := strings.TrimSpace(symbol) + ex.Suffix()
	query := url.Values{}
	query.Set(c.cacheParam, strconv.Itoa(c.intn(cacheBusterRange)))
	return fmt.Sprintf("%s/%s?%s", strings.TrimRight(c.baseURL, "/"), url.PathEscape(ticker), query.Encode()), nil
}

func knownExchanges() string {
	codes := make([]string, 0, len(provider.Exchanges()))
	for _, e := range provider.Exchanges() {
		codes = append(codes, string(e))
	}
	return strings.Join(codes, ", ")
}
