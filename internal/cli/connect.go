package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hugr-lab/manageql"
	"github.com/hugr-lab/manageql/auth"
	"github.com/hugr-lab/manageql/mgmt"
	"github.com/hugr-lab/manageql/mgmt/remote"
)

// override sets *dst to v when flag name was given on the command line.
func override[T any](cmd *cobra.Command, name string, dst *T, v T) {
	if cmd.Flags().Changed(name) {
		*dst = v
	}
}

// signalContext returns the command context cancelled on SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// localConnection returns the runtime objects of this process.
func localConnection() (*mgmt.Server, error) {
	srv := mgmt.NewServer()
	if err := mgmt.RegisterRuntime(srv); err != nil {
		return nil, err
	}
	return srv, nil
}

// remoteConnection attaches to the agent at url and checks it responds.
func remoteConnection(ctx context.Context, opts *RootOptions, url string) (*remote.Client, error) {
	c, err := remote.New(remote.Config{
		URL:        url,
		Token:      opts.Config.Remote.Token,
		MaxRetries: opts.Config.Remote.MaxRetries,
		Logger:     opts.Logger,
	})
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid remote", err)
	}
	if err := c.Ping(ctx); err != nil {
		return nil, WrapExitError(ExitFailure, "agent unreachable", err)
	}
	return c, nil
}

// serverConfig builds the Flight server configuration for conn.
func serverConfig(opts *RootOptions, conn mgmt.Connection) manageql.ServerConfig {
	cfg := opts.Config
	var authenticator auth.Authenticator
	if cfg.Flight.Token != "" {
		authenticator = auth.StaticToken(cfg.Flight.Token, "flight")
	}
	return manageql.ServerConfig{
		Connection:     conn,
		CatalogName:    cfg.Flight.Catalog,
		SchemaName:     cfg.Flight.Schema,
		Typing:         cfg.Typing(),
		SkipDiscovery:  cfg.Discovery.Skip,
		Auth:           authenticator,
		Logger:         opts.Logger,
		MaxMessageSize: cfg.Flight.MaxMessageSize,
		BatchSize:      cfg.Flight.BatchSize,
		Address:        cfg.Flight.Address,
	}
}
