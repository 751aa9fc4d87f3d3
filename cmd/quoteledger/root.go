package main

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"quoteledger/internal/config"
	"quoteledger/internal/logging"
)

// app carries what every subcommand needs once flags are parsed.
type app struct {
	cfgPath   string
	logLevel  string
	logFormat string
	driver    string

	cfg    config.Config
	logger zerolog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "quoteledger",
		Short:         "Refresh portfolio prices into a ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init()
		},
	}
	root.PersistentFlags().StringVarP(&a.cfgPath, "config", "c", "", "config file (.json, .toml, .yaml); default "+config.DefaultPath+" if present")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override log level (debug|info|warn|error)")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "override log format (auto|console|json)")
	root.PersistentFlags().StringVar(&a.driver, "ledger", "", "override ledger driver (csv|memory|postgres|redis)")

	root.AddCommand(
		runCmd(a),
		serveCmd(a),
		lookupCmd(a),
		showCmd(a),
		seedCmd(a),
	)
	return root
}

func (a *app) init() error {
	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	if a.logFormat != "" {
		cfg.LogFormat = a.logFormat
	}
	if a.driver != "" {
		cfg.Ledger.Driver = a.driver
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	a.cfg = cfg
	a.logger = logging.Setup(cfg.LogLevel, cfg.LogFormat)
	return nil
}
