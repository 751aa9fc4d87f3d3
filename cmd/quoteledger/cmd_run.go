package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func runCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one refresh pass over the ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			l, closeFn, err := openLedger(ctx, a.cfg.Ledger)
			if err != nil {
				return err
			}
			defer closeFn()

			p, err := buildProvider(a.cfg, a.logger, nil)
			if err != nil {
				return err
			}
			r, err := buildRefresher(ctx, a, p, l, nil)
			if err != nil {
				return err
			}
			s, err := r.Refresh(ctx)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(s)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "run %s: %d rows, %d ok, %d failed, stamped %q\n", s.RunID, s.Rows, s.Succeeded, s.Failed, s.Timestamp)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the run summary as JSON")
	return cmd
}
