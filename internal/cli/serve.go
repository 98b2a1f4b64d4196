package cli

import (
	"context"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hugr-lab/manageql"
	"github.com/hugr-lab/manageql/agent"
	"github.com/hugr-lab/manageql/mgmt"
	"github.com/hugr-lab/manageql/source"
)

// FlightOptions holds the flags shared by the serving commands.
type FlightOptions struct {
	*RootOptions
	Address        string
	Catalog        string
	Schema         string
	MaxMessageSize int
	BatchSize      int
	StringColumns  bool
	SkipDiscovery  bool
	Token          string
}

func (opts *FlightOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&opts.Address, "address", "a", "localhost:50051", "Flight listen address")
	cmd.Flags().StringVar(&opts.Catalog, "catalog", manageql.DefaultCatalogName, "catalog name reported to Flight clients")
	cmd.Flags().StringVar(&opts.Schema, "schema", source.DefaultName, "schema management tables are exposed under")
	cmd.Flags().IntVar(&opts.MaxMessageSize, "max-message-size", 0, "maximum gRPC message size in bytes")
	cmd.Flags().IntVar(&opts.BatchSize, "batch-size", 0, "maximum rows per streamed record")
	cmd.Flags().BoolVar(&opts.StringColumns, "string-columns", false, "type every discovered attribute column as string")
	cmd.Flags().BoolVar(&opts.SkipDiscovery, "skip-discovery", false, "do not discover tables at startup")
	cmd.Flags().StringVar(&opts.Token, "token", "", "bearer token required by Flight clients")
}

func (opts *FlightOptions) apply(cmd *cobra.Command) {
	cfg := opts.Config
	override(cmd, "address", &cfg.Flight.Address, opts.Address)
	override(cmd, "catalog", &cfg.Flight.Catalog, opts.Catalog)
	override(cmd, "schema", &cfg.Flight.Schema, opts.Schema)
	override(cmd, "max-message-size", &cfg.Flight.MaxMessageSize, opts.MaxMessageSize)
	override(cmd, "batch-size", &cfg.Flight.BatchSize, opts.BatchSize)
	override(cmd, "string-columns", &cfg.Discovery.StringColumns, opts.StringColumns)
	override(cmd, "skip-discovery", &cfg.Discovery.Skip, opts.SkipDiscovery)
	override(cmd, "token", &cfg.Flight.Token, opts.Token)
}

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	FlightOptions
	AgentAddress string
	AgentToken   string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{FlightOptions: FlightOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the runtime objects of this process over Flight",
		Long: `Serve the runtime objects of this process over Arrow Flight.

With --agent-addr the same objects are also exposed over HTTP, so another
manageql can attach to them with the gateway command.

Example:
  manageql serve --address localhost:50051
  manageql serve --agent-addr localhost:9010 --log-level debug`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.apply(cmd)
			cfg := opts.Config
			override(cmd, "agent-addr", &cfg.Agent.Address, opts.AgentAddress)
			override(cmd, "agent-token", &cfg.Agent.Token, opts.AgentToken)

			conn, err := localConnection()
			if err != nil {
				return WrapExitError(ExitFailure, "failed to register runtime objects", err)
			}
			ctx, cancel := signalContext(cmd)
			defer cancel()
			return runFlight(ctx, opts.RootOptions, conn)
		},
	}

	opts.register(cmd)
	cmd.Flags().StringVar(&opts.AgentAddress, "agent-addr", "", "also serve the objects over HTTP on this address")
	cmd.Flags().StringVar(&opts.AgentToken, "agent-token", "", "bearer token required by the HTTP endpoint")
	return cmd
}

// runFlight serves conn over Flight, and over HTTP when an agent address
// is configured, until ctx is cancelled or a server fails.
func runFlight(ctx context.Context, opts *RootOptions, conn mgmt.Connection) error {
	srv, err := manageql.Start(ctx, serverConfig(opts, conn))
	if err != nil {
		return WrapExitError(ExitFailure, "failed to start Flight server", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		return srv.Stop()
	})
	g.Go(srv.Wait)

	if addr := opts.Config.Agent.Address; addr != "" {
		a, err := agent.New(agent.Config{Connection: conn, Token: opts.Config.Agent.Token, Logger: opts.Logger})
		if err != nil {
			srv.Stop()
			return err
		}
		g.Go(func() error { return a.ListenAndServe(gctx, addr) })
	}

	opts.Logger.Info("serving", "flight", srv.Addr(), "agent", opts.Config.Agent.Address)
	return g.Wait()
}
