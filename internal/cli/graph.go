package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Proton-105/ledger-bot/internal/state"
)

// NewGraphCommand creates the graph command. It needs no configuration.
func NewGraphCommand() *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Print the conversation step graph in DOT format",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mode := state.ModePermissive
			if strict {
				mode = state.ModeStrict
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), state.Graph(mode))
			return err
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "only accept a status choice while it is awaited")

	return cmd
}
