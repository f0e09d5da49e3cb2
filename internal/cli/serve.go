package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Proton-105/ledger-bot/internal/app"
	"github.com/Proton-105/ledger-bot/pkg/config"
	"github.com/Proton-105/ledger-bot/pkg/logger"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bot (webhook HTTP server or long polling)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, v, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}

			log := logger.New(*cfg)
			slog.SetDefault(log)

			config.Watch(v, log, func(next *config.Config) {
				logger.SetLevel(next.Logger.Level)
			})

			a, err := app.New(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}

			return a.Run(cmd.Context())
		},
	}
}
