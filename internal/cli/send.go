package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// SendOptions holds flags for the send command.
type SendOptions struct {
	*RootOptions
	Data string
}

// NewSendCommand creates the send command.
func NewSendCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SendOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "send <event-type>",
		Short: "Record one event on the server",
		Long: `Record one event on the server.

The event type is a short dotted name such as mail.opened. The server
stamps the event with its own clock and appends it to the log. The
optional --data flag attaches a JSON payload, which may be any JSON
value.

Example:
  beaconctl send mail.opened --data '{"folder":"inbox"}'`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return sendEvent(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Data, "data", "", "event payload as JSON")

	return cmd
}

func sendEvent(opts *SendOptions, eventType string, cmd *cobra.Command) error {
	var data json.RawMessage
	if opts.Data != "" {
		var v any
		if err := json.Unmarshal([]byte(opts.Data), &v); err != nil {
			return fmt.Errorf("invalid --data JSON: %w", err)
		}
		data = json.RawMessage(opts.Data)
	}

	if err := opts.newClient().Track(cmd.Context(), eventType, data); err != nil {
		return err
	}

	if opts.Format == "json" {
		return printJSON(cmd.OutOrStdout(), map[string]string{"status": "queued", "type": eventType})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "queued %s\n", eventType)
	return nil
}
