// Package cli implements the manageql command line.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags and the state they produce.
type RootOptions struct {
	ConfigPath string
	LogLevel   string
	Format     string // "json" | "text"

	// Config is loaded before any subcommand runs.
	Config *Config

	// Level is the level of Logger, adjustable at runtime.
	Level  *slog.LevelVar
	Logger *slog.Logger

	// LogOutput defaults to stderr.
	LogOutput io.Writer
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command of the manageql CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{Level: new(slog.LevelVar)}

	cmd := &cobra.Command{
		Use:   "manageql",
		Short: "manageql - SQL over management objects",
		Long: `Expose management objects as relational tables.

Objects are served over Arrow Flight for the DuckDB Airport extension, over
HTTP for remote attachment, or queried directly with the embedded DuckDB
engine.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup(cmd)
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to a YAML config file")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level (debug|info|warn|error), defaults to $"+EnvLogLevel)
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewGatewayCommand(opts))
	cmd.AddCommand(NewAgentCommand(opts))
	cmd.AddCommand(NewQueryCommand(opts))

	return cmd
}

func (opts *RootOptions) setup(cmd *cobra.Command) error {
	if !isValidFormat(opts.Format) {
		return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
	}

	cfg, err := LoadConfig(opts.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	opts.Config = cfg

	levelName := cfg.LogLevel
	if env := os.Getenv(EnvLogLevel); env != "" {
		levelName = env
	}
	if cmd.Flags().Changed("log-level") {
		levelName = opts.LogLevel
	}
	level, err := ParseLevel(levelName)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid log level", err)
	}
	opts.Level.Set(level)

	out := opts.LogOutput
	if out == nil {
		out = os.Stderr
	}
	opts.Logger = slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: opts.Level}))
	slog.SetDefault(opts.Logger)
	return nil
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
