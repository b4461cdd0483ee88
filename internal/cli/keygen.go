package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lumamail/beacon/internal/auth"
)

// KeygenOptions holds flags for the keygen command.
type KeygenOptions struct {
	*RootOptions
	Name string
}

// NewKeygenCommand creates the keygen command.
func NewKeygenCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &KeygenOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a new API key and its config entry",
		Long: `Generate a new API key and its config entry.

Runs entirely offline. The plain key is shown once for the client to
keep; the server config stores only the prefix and the bcrypt hash.

Example:
  beaconctl keygen --name webmail`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return generateKey(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Name, "name", "webmail", "client name for the config entry")

	return cmd
}

func generateKey(opts *KeygenOptions, cmd *cobra.Command) error {
	key, hash, prefix, err := auth.GenerateKey()
	if err != nil {
		return err
	}

	if opts.Format == "json" {
		return printJSON(cmd.OutOrStdout(), map[string]string{
			"name":   opts.Name,
			"key":    key,
			"prefix": prefix,
			"hash":   hash,
		})
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "API key (shown once): %s\n", key)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Add to the server config:")
	fmt.Fprintln(out, "auth:")
	fmt.Fprintln(out, "  keys:")
	fmt.Fprintf(out, "    - name: %s\n", opts.Name)
	fmt.Fprintf(out, "      prefix: %s\n", prefix)
	fmt.Fprintf(out, "      hash: %q\n", hash)
	return nil
}
