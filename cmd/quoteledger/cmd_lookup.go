package main

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"
)

func lookupCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "lookup SYMBOL EXCHANGE",
		Short: "Look up a single quote without touching the ledger",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := buildProvider(a.cfg, a.logger, nil)
			if err != nil {
				return err
			}
			q, err := p.Lookup(cmd.Context(), args[0], strings.ToUpper(args[1]))
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(q)
		},
	}
}
