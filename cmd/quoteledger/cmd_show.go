package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"quoteledger/internal/aggregate"
	"quoteledger/internal/ledger"
)

func showCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			l, closeFn, err := openLedger(ctx, a.cfg.Ledger)
			if err != nil {
				return err
			}
			defer closeFn()

			snap, err := l.Snapshot(ctx)
			if err != nil {
				return err
			}
			rep := aggregate.Summarize(snap)
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(rep)
			}
			return printReport(cmd.OutOrStdout(), rep)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

func printReport(w io.Writer, rep aggregate.Report) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tSYMBOL\tEXCHANGE\tLATEST\tBUFFERED\tSTATUS")
	for _, r := range rep.Rows {
		buffered := ""
		if r.Price != nil {
			buffered = ledger.FormatValue(*r.Price)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", r.Index+1, r.Symbol, r.Exchange, r.Latest, buffered, r.Status)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "updated %s: %d fresh, %d stale, %d missing\n", rep.UpdatedAt, rep.Totals.Fresh, rep.Totals.Stale, rep.Totals.Missing)
	return err
}
