// Package cli implements the beaconctl command tree.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/lumamail/beacon/internal/client"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Server string
	APIKey string
	Format string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

const defaultServer = "http://localhost:8600"

// NewRootCommand creates the root command for the beaconctl CLI.
func NewRootCommand(version string) *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "beaconctl",
		Short:         "Control a beacon telemetry server",
		Long:          "Command-line companion for the beacon server: record events, trigger digest mails, clear the log, and mint API keys.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate format flag
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	server := os.Getenv("BEACON_SERVER")
	if server == "" {
		server = defaultServer
	}

	// Global flags
	cmd.PersistentFlags().StringVarP(&opts.Server, "server", "s", server, "beacon server base URL (or $BEACON_SERVER)")
	cmd.PersistentFlags().StringVar(&opts.APIKey, "api-key", os.Getenv("BEACON_API_KEY"), "API key for the server (or $BEACON_API_KEY)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	// Add subcommands
	cmd.AddCommand(NewSendCommand(opts))
	cmd.AddCommand(NewDigestCommand(opts))
	cmd.AddCommand(NewClearCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewKeygenCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

func (o *RootOptions) newClient() *client.Client {
	return client.New(o.Server, o.APIKey)
}

// printJSON writes v to w as indented JSON.
func printJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}
