package cli

import (
	"github.com/spf13/cobra"

	"github.com/hugr-lab/manageql/agent"
)

// AgentOptions holds flags for the agent command.
type AgentOptions struct {
	*RootOptions
	Address string
	Token   string
}

// NewAgentCommand creates the agent command.
func NewAgentCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AgentOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Expose the runtime objects of this process over HTTP",
		Long: `Expose the runtime objects of this process over HTTP/JSON.

A gateway, or query --remote, attaches to the agent to read them.

Example:
  manageql agent --address localhost:9010 --token s3cret`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.Config
			override(cmd, "address", &cfg.Agent.Address, opts.Address)
			override(cmd, "token", &cfg.Agent.Token, opts.Token)
			if cfg.Agent.Address == "" {
				cfg.Agent.Address = opts.Address
			}

			conn, err := localConnection()
			if err != nil {
				return WrapExitError(ExitFailure, "failed to register runtime objects", err)
			}
			a, err := agent.New(agent.Config{Connection: conn, Token: cfg.Agent.Token, Logger: opts.Logger})
			if err != nil {
				return err
			}

			ctx, cancel := signalContext(cmd)
			defer cancel()
			if err := a.ListenAndServe(ctx, cfg.Agent.Address); err != nil {
				return WrapExitError(ExitFailure, "agent failed", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.Address, "address", "a", "localhost:9010", "HTTP listen address")
	cmd.Flags().StringVar(&opts.Token, "token", "", "bearer token required on every request")
	return cmd
}
