package cli

import (
	"github.com/spf13/cobra"
)

// NewGatewayCommand creates the gateway command.
func NewGatewayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FlightOptions{RootOptions: rootOpts}
	var token string

	cmd := &cobra.Command{
		Use:   "gateway [agent-url]",
		Short: "Serve the objects of a remote agent over Flight",
		Long: `Attach to a manageql agent and serve its objects over Arrow Flight.

The agent URL can also be set in the config file as remote.url.

Example:
  manageql gateway http://app-host:9010
  manageql gateway --agent-token s3cret --token flight-tok http://app-host:9010`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.apply(cmd)
			cfg := opts.Config
			if len(args) == 1 {
				cfg.Remote.URL = args[0]
			}
			override(cmd, "agent-token", &cfg.Remote.Token, token)
			if cfg.Remote.URL == "" {
				return WrapExitError(ExitCommandError, "agent url is required", nil)
			}

			ctx, cancel := signalContext(cmd)
			defer cancel()
			conn, err := remoteConnection(ctx, opts.RootOptions, cfg.Remote.URL)
			if err != nil {
				return err
			}
			return runFlight(ctx, opts.RootOptions, conn)
		},
	}

	opts.register(cmd)
	cmd.Flags().StringVar(&token, "agent-token", "", "bearer token sent to the agent")
	return cmd
}
