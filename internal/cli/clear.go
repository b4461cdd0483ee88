package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewClearCommand creates the clear command.
func NewClearCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every event from the server's log",
		Long: `Delete every event from the server's log.

The live log file is rewritten as an empty array. Backup copies written
by earlier digest dispatches are left in place.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return clearLog(rootOpts, cmd)
		},
	}

	return cmd
}

func clearLog(opts *RootOptions, cmd *cobra.Command) error {
	if err := opts.newClient().Clear(cmd.Context()); err != nil {
		return err
	}

	if opts.Format == "json" {
		return printJSON(cmd.OutOrStdout(), map[string]string{"status": "cleared"})
	}
	fmt.Fprintln(cmd.OutOrStdout(), "event log cleared")
	return nil
}
