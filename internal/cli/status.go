package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Check that the server is reachable",
		Long: `Check that the server is reachable.

Hits the open health endpoint, so no API key is needed.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return checkStatus(rootOpts, cmd)
		},
	}

	return cmd
}

func checkStatus(opts *RootOptions, cmd *cobra.Command) error {
	if err := opts.newClient().Status(cmd.Context()); err != nil {
		return err
	}

	if opts.Format == "json" {
		return printJSON(cmd.OutOrStdout(), map[string]string{"status": "ok"})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s is up\n", opts.Server)
	return nil
}
