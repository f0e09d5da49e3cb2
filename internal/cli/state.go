package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Proton-105/ledger-bot/internal/app"
	"github.com/Proton-105/ledger-bot/internal/state"
)

// NewStateCommand creates the state command group.
func NewStateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Inspect or clear stored conversation state",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get <conversation-key>",
		Short: "Print the stored record of a conversation as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStorage(rootOpts, cmd, func(storage state.Storage) error {
				st, err := storage.GetState(cmd.Context(), args[0])
				if errors.Is(err, state.ErrStateNotFound) {
					_, err = fmt.Fprintf(cmd.OutOrStdout(), "no state for %s\n", args[0])
					return err
				}
				if err != nil {
					return err
				}

				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(st)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear <conversation-key>",
		Short: "Delete the stored record of a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStorage(rootOpts, cmd, func(storage state.Storage) error {
				if err := storage.ClearState(cmd.Context(), args[0]); err != nil {
					return err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "cleared %s\n", args[0])
				return err
			})
		},
	})

	return cmd
}

func withStorage(rootOpts *RootOptions, cmd *cobra.Command, fn func(state.Storage) error) error {
	cfg, _, err := loadConfig(rootOpts)
	if err != nil {
		return err
	}

	res, err := app.OpenResources(cmd.Context(), cfg, commandLogger(cfg, cmd.ErrOrStderr()))
	if err != nil {
		return err
	}
	defer res.Close()

	return fn(res.Storage)
}
