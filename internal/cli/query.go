package cli

import (
	"github.com/spf13/cobra"

	"github.com/hugr-lab/manageql/engine"
	"github.com/hugr-lab/manageql/mgmt"
	"github.com/hugr-lab/manageql/source"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	Remote        string
	Explain       bool
	DSN           string
	Schema        string
	StringColumns bool
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query <sql>",
		Short: "Run SQL over management objects",
		Long: `Run SQL over management objects with the embedded DuckDB engine.

Object names and patterns can be used as table names. A pattern is
materialized into a table holding every matching object when first
referenced. Objects are read from this process, or from an agent with
--remote.

Example:
  manageql query 'SELECT "HeapObjects" FROM "go.runtime:type=Memory"'
  manageql query --format json 'SELECT * FROM "go.runtime:*"'
  manageql query --explain 'SELECT "Pid", "Uptime" FROM "go.runtime:type=Runtime"'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.Config
			override(cmd, "remote", &cfg.Remote.URL, opts.Remote)
			override(cmd, "dsn", &cfg.Engine.DSN, opts.DSN)
			override(cmd, "schema", &cfg.Flight.Schema, opts.Schema)
			override(cmd, "string-columns", &cfg.Discovery.StringColumns, opts.StringColumns)

			ctx, cancel := signalContext(cmd)
			defer cancel()

			var conn mgmt.Connection
			if cfg.Remote.URL != "" {
				c, err := remoteConnection(ctx, opts.RootOptions, cfg.Remote.URL)
				if err != nil {
					return err
				}
				conn = c
			} else {
				c, err := localConnection()
				if err != nil {
					return WrapExitError(ExitFailure, "failed to register runtime objects", err)
				}
				conn = c
			}

			src, err := source.New(source.Config{
				Connection: conn,
				Name:       cfg.Flight.Schema,
				Typing:     cfg.Typing(),
				Logger:     opts.Logger,
			})
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid source", err)
			}
			if !cfg.Discovery.Skip {
				if err := src.Discover(ctx); err != nil {
					return WrapExitError(ExitFailure, "discovery failed", err)
				}
			}

			eng, err := engine.Open(ctx, engine.Config{Source: src, DSN: cfg.Engine.DSN, Logger: opts.Logger})
			if err != nil {
				return WrapExitError(ExitFailure, "failed to open engine", err)
			}
			defer eng.Close()

			out := cmd.OutOrStdout()
			if opts.Explain {
				plans, err := eng.Explain(ctx, args[0])
				if err != nil {
					return WrapExitError(ExitFailure, "explain failed", err)
				}
				return writePlans(out, opts.Format, plans)
			}

			rows, err := eng.QueryContext(ctx, args[0])
			if err != nil {
				return WrapExitError(ExitFailure, "query failed", err)
			}
			defer rows.Close()
			return writeRows(out, opts.Format, rows)
		},
	}

	cmd.Flags().StringVar(&opts.Remote, "remote", "", "read objects from the agent at this URL")
	cmd.Flags().BoolVar(&opts.Explain, "explain", false, "print the attributes each select reads instead of running the query")
	cmd.Flags().StringVar(&opts.DSN, "dsn", "", "DuckDB database path, in-memory when empty")
	cmd.Flags().StringVar(&opts.Schema, "schema", source.DefaultName, "schema management tables are exposed under")
	cmd.Flags().BoolVar(&opts.StringColumns, "string-columns", false, "type every discovered attribute column as string")
	return cmd
}
