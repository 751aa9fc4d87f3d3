package quotepageadapter

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"quoteledger/internal/extract"
	"quoteledger/internal/provider"
	"quoteledger/internal/provider/quotepage"
)

type Config struct {
	Name string // display name, default: QuotePage
}

// Adapter composes URL resolution, page fetch and price extraction into a
// single lookup. Every failure collapses into provider.ErrLookupFailed.
type Adapter struct {
	cfg       Config
	client    *quotepage.Client
	extractor extract.Extractor
	logger    zerolog.Logger
	now       func() time.Time
}

func New(cfg Config, client *quotepage.Client, extractor extract.Extractor, logger zerolog.Logger) *Adapter {
	if cfg.Name == "" {
		cfg.Name = "QuotePage"
	}
	return &Adapter{cfg: cfg, client: client, extractor: extractor, logger: logger, now: time.Now}
}

func (a *Adapter) Name() string { return a.cfg.Name }

func (a *Adapter) Lookup(ctx context.Context, symbol, exchange string) (provider.Quote, error) {
	pageURL, err := a.client.Resolve(symbol, exchange)
	if err != nil {
		return provider.Quote{}, a.fail(symbol, exchange, "resolve", err)
	}

	body, err := a.client.Fetch(ctx, pageURL)
	if err != nil {
		return provider.Quote{}, a.fail(symbol, exchange, "fetch", err)
	}

	price, err := a.extractor.Extract(body)
	if err != nil {
		return provider.Quote{}, a.fail(symbol, exchange, "extract", err)
	}

	return provider.Quote{
		Symbol:     symbol,
		Exchange:   exchange,
		Price:      price,
		Source:     fmt.Sprintf("%s:%s", a.cfg.Name, hostOf(pageURL)),
		ReceivedAt: a.now().UTC(),
	}, nil
}

func (a *Adapter) fail(symbol, exchange, stage string, err error) error {
	a.logger.Debug().Str("symbol", symbol).Str("exchange", exchange).Str("stage", stage).Err(err).Msg("lookup failed")
	return fmt.Errorf("%w: %s/%s: %w", provider.ErrLookupFailed, symbol, exchange, err)
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Host
}
