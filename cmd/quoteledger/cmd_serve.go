package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"quoteledger/internal/ledger"
	"quoteledger/internal/metrics"
	"quoteledger/internal/refresh"
	"quoteledger/internal/server"
)

func serveCmd(a *app) *cobra.Command {
	var noLoop bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Refresh on an interval and serve status over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			l, closeFn, err := openLedger(ctx, a.cfg.Ledger)
			if err != nil {
				return err
			}
			defer closeFn()

			r, handler, err := newService(ctx, a, l)
			if err != nil {
				return err
			}

			srv := &http.Server{
				Addr:              ":" + a.cfg.Server.Port,
				Handler:           handler,
				ReadHeaderTimeout: 5 * time.Second,
				ReadTimeout:       15 * time.Second,
				IdleTimeout:       60 * time.Second,
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				a.logger.Info().Str("addr", srv.Addr).Msg("server listening")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("server: %w", err)
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
			if !noLoop {
				g.Go(func() error {
					err := r.RunLoop(gctx, a.cfg.Server.Interval())
					if errors.Is(err, context.Canceled) {
						return nil
					}
					return err
				})
			}

			if err := g.Wait(); err != nil {
				return err
			}
			a.logger.Info().Msg("shut down")
			return nil
		},
	}
	cmd.Flags().BoolVar(&noLoop, "no-loop", false, "serve only; refresh via POST /api/refresh")
	return cmd
}

// newService wires the refresher and the HTTP API around a single lookup
// chain, so API lookups and refresh rows share pacing, breaker and cache.
func newService(ctx context.Context, a *app, l ledger.Ledger) (*refresh.Refresher, http.Handler, error) {
	rec := metrics.New()
	p, err := buildProvider(a.cfg, a.logger, rec)
	if err != nil {
		return nil, nil, err
	}
	r, err := buildRefresher(ctx, a, p, l, rec)
	if err != nil {
		return nil, nil, err
	}
	return r, server.NewRouter(server.Deps{
		Ledger:   l,
		Runner:   r,
		Provider: p,
		Metrics:  rec.Handler(),
		Logger:   a.logger,
	}), nil
}
