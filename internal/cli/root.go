// Package cli implements the ledger-bot command line.
package cli

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Proton-105/ledger-bot/pkg/config"
	"github.com/Proton-105/ledger-bot/pkg/logger"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigFile string
	Env        string
}

// NewRootCommand creates the root command for the ledger bot.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "ledger-bot",
		Short:         "Expense ledger Telegram bot",
		Long:          "A Telegram bot that records expenses into a spreadsheet ledger and reports monthly totals.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigFile, "config", "c", "", "config file (default ./configs/<APP_ENV>.yaml)")
	cmd.PersistentFlags().StringVar(&opts.Env, "env", "", "environment name, overrides APP_ENV")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewTotalCommand(opts))
	cmd.AddCommand(NewStateCommand(opts))
	cmd.AddCommand(NewGraphCommand())
	cmd.AddCommand(NewMigrateCommand(opts))

	return cmd
}

func loadConfig(opts *RootOptions) (*config.Config, *viper.Viper, error) {
	return config.Load(config.Options{File: opts.ConfigFile, Env: opts.Env})
}

// commandLogger keeps log lines off stdout so command output stays parseable.
func commandLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	return logger.NewWithWriter(*cfg, w)
}
