package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"quoteledger/internal/ledger"
)

func seedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "seed PORTFOLIO.yaml",
		Short: "Replace the ledger rows with a YAML portfolio, clearing prices",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, err := ledger.LoadPortfolio(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			l, closeFn, err := openLedger(ctx, a.cfg.Ledger)
			if err != nil {
				return err
			}
			defer closeFn()

			if err := l.Seed(ctx, rows); err != nil {
				return err
			}
			a.logger.Info().Int("rows", len(rows)).Str("driver", a.cfg.Ledger.Driver).Msg("ledger seeded")
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d rows\n", len(rows))
			return nil
		},
	}
}
