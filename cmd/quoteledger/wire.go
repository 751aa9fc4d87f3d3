package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"quoteledger/internal/archive"
	"quoteledger/internal/config"
	"quoteledger/internal/extract"
	"quoteledger/internal/httpx"
	"quoteledger/internal/ledger"
	"quoteledger/internal/ledger/csvfile"
	"quoteledger/internal/ledger/memory"
	"quoteledger/internal/ledger/postgres"
	"quoteledger/internal/ledger/redis"
	"quoteledger/internal/metrics"
	"quoteledger/internal/provider"
	"quoteledger/internal/provider/breaker"
	"quoteledger/internal/provider/cache"
	"quoteledger/internal/provider/quotepage"
	"quoteledger/internal/provider/quotepageadapter"
	"quoteledger/internal/provider/ratelimit"
	"quoteledger/internal/refresh"
)

// store is a ledger that can also be seeded.
type store interface {
	ledger.Ledger
	ledger.Seeder
}

// buildProvider assembles the lookup chain:
// page lookup -> pacing -> breaker -> cache.
func buildProvider(cfg config.Config, logger zerolog.Logger, rec *metrics.Recorder) (provider.Provider, error) {
	httpClient := httpx.New(cfg.Source.Timeout())
	if cfg.Source.UserAgent != "" {
		httpClient.UserAgent = cfg.Source.UserAgent
	}

	opts := []quotepage.ClientOption{
		quotepage.WithBaseURL(cfg.Source.BaseURL),
		quotepage.WithHTTPClient(httpClient),
		quotepage.WithHeader(http.Header{"Accept": []string{"text/html"}}),
		quotepage.WithAttempts(cfg.Source.Attempts),
		quotepage.WithCacheBusterParam(cfg.Source.CacheBusterParam),
		quotepage.WithStrictExchanges(cfg.Source.StrictExchanges),
		quotepage.WithLogger(logger),
	}
	if rec != nil {
		opts = append(opts, quotepage.WithObserver(rec))
	}
	client := quotepage.NewClient(opts...)

	pattern, err := extract.NewPattern(cfg.Source.Marker, cfg.Source.Closing)
	if err != nil {
		return nil, err
	}

	var p provider.Provider = quotepageadapter.New(quotepageadapter.Config{}, client, pattern, logger)
	if cfg.Pacing.MinIntervalMs > 0 {
		p = &ratelimit.MinInterval{P: p, Interval: cfg.Pacing.MinInterval()}
	}
	if cfg.Pacing.MaxRequestsPerMinute > 0 {
		p = &ratelimit.Limited{P: p, Limiter: ratelimit.PerMinute(cfg.Pacing.MaxRequestsPerMinute, cfg.Pacing.Burst)}
	}
	p = breaker.New(p, breaker.Config{
		ConsecutiveFailures: uint32(cfg.Breaker.ConsecutiveFailures),
		OpenTimeout:         cfg.Breaker.OpenTimeout(),
	}, logger)
	if cfg.Cache.TTLSeconds > 0 {
		p = &cache.Provider{P: p, TTL: cfg.Cache.TTL(), MaxItems: cfg.Cache.MaxItems}
	}
	return p, nil
}

// openLedger opens the configured backend. The memory driver starts from the
// YAML portfolio at ledger.path when one exists.
func openLedger(ctx context.Context, cfg config.Ledger) (store, func(), error) {
	noop := func() {}
	switch cfg.Driver {
	case config.DriverCSV:
		return csvfile.New(cfg.Path), noop, nil
	case config.DriverMemory:
		var rows []ledger.Row
		if cfg.Path != "" {
			r, err := ledger.LoadPortfolio(cfg.Path)
			if err != nil {
				return nil, nil, err
			}
			rows = r
		}
		return memory.New(rows), noop, nil
	case config.DriverPostgres:
		s, err := postgres.Open(ctx, postgres.Config{DSN: cfg.DSN, MaxConns: 4})
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case config.DriverRedis:
		s, err := redis.Open(ctx, redis.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB, Prefix: cfg.KeyPrefix})
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown ledger driver %q", cfg.Driver)
	}
}

// buildRefresher runs p over l. Callers that also serve lookups pass the same
// p so every upstream request goes through one chain.
func buildRefresher(ctx context.Context, a *app, p provider.Provider, l ledger.Ledger, rec *metrics.Recorder) (*refresh.Refresher, error) {
	loc, err := a.cfg.Ledger.Location()
	if err != nil {
		return nil, err
	}
	opts := []refresh.Option{
		refresh.WithLogger(a.logger),
		refresh.WithTimestamp(a.cfg.Ledger.TimestampLayout, loc),
	}
	if rec != nil {
		opts = append(opts, refresh.WithObserver(rec))
	}
	if a.cfg.Archive.Enabled {
		arch, err := archive.New(ctx, archive.Config{
			Bucket:         a.cfg.Archive.Bucket,
			Prefix:         a.cfg.Archive.Prefix,
			Region:         a.cfg.Archive.Region,
			Endpoint:       a.cfg.Archive.Endpoint,
			AccessKey:      a.cfg.Archive.AccessKey,
			SecretKey:      a.cfg.Archive.SecretKey,
			ForcePathStyle: a.cfg.Archive.ForcePathStyle,
		})
		if err != nil {
			return nil, err
		}
		opts = append(opts, refresh.WithArchiver(arch))
	}
	return refresh.New(p, l, opts...), nil
}
