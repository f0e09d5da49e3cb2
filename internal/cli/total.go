package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Proton-105/ledger-bot/internal/app"
	"github.com/Proton-105/ledger-bot/internal/conversation"
	"github.com/Proton-105/ledger-bot/internal/ledger"
)

type totalOptions struct {
	Period string
}

// NewTotalCommand creates the total command.
func NewTotalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &totalOptions{}

	cmd := &cobra.Command{
		Use:   "total",
		Short: "Print the ledger total for a month",
		Long: `Query the ledger backend for the total of a month sheet.

Without --period the current month in the configured timezone is used.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTotal(rootOpts, opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Period, "period", "p", "", "month to query as YYYY-MM")

	return cmd
}

func runTotal(rootOpts *RootOptions, opts *totalOptions, cmd *cobra.Command) error {
	cfg, _, err := loadConfig(rootOpts)
	if err != nil {
		return err
	}

	loc, err := cfg.Conversation.Location()
	if err != nil {
		return err
	}

	period := time.Now().In(loc)
	if opts.Period != "" {
		period, err = ledger.ParsePeriodKey(opts.Period, loc)
		if err != nil {
			return err
		}
	}

	translator, err := app.LoadTranslator(cfg)
	if err != nil {
		return err
	}

	backend := app.NewLedgerBackend(cfg, commandLogger(cfg, cmd.ErrOrStderr()))

	total, err := backend.Total(cmd.Context(), ledger.PeriodKey(period))
	if err != nil {
		return fmt.Errorf("query total: %w", err)
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), conversation.NewRenderer(translator).MonthlyTotal(period, total))
	return err
}
