package cli

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/healthpass/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigFile string
	Backend    string
	DBPath     string
	Verbose    bool
	Format     string // "json" | "text"

	// Config is resolved in PersistentPreRunE from the flags above, the
	// config file and the environment.
	Config *config.Config

	// Level is raised to DEBUG when the resolved config is verbose.
	Level *slog.LevelVar
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// Option configures the root command.
type Option func(*RootOptions)

// WithLogLevel hands the command the level variable of the process logger.
func WithLogLevel(level *slog.LevelVar) Option {
	return func(o *RootOptions) { o.Level = level }
}

// NewRootCommand creates the root command for the healthpass CLI.
func NewRootCommand(options ...Option) *cobra.Command {
	opts := &RootOptions{}
	for _, o := range options {
		o(opts)
	}

	cmd := &cobra.Command{
		Use:           "healthpass",
		Short:         "healthpass - ledger-backed health passports",
		Long:          "Create, update and audit health passport records kept on an append-only ledger.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			cfg, err := config.Load(config.LoadOptions{
				File:      opts.ConfigFile,
				Overrides: flagOverrides(cmd, opts),
			})
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load configuration", err)
			}
			opts.Config = cfg
			opts.Format = cfg.Format
			opts.Verbose = cfg.Verbose
			if cfg.Verbose && opts.Level != nil {
				opts.Level.Set(slog.LevelDebug)
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "config file (.cue, .yaml or .yml)")
	cmd.PersistentFlags().StringVar(&opts.Backend, "backend", config.BackendSQLite, "ledger backend (sqlite|leveldb|memory)")
	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", "", "ledger database path (default depends on backend)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	// Add subcommands
	cmd.AddCommand(NewInvokeCommand(opts))
	cmd.AddCommand(NewScenarioCommand(opts))
	cmd.AddCommand(NewOperationsCommand(opts))
	cmd.AddCommand(NewTraceCommand(opts))

	return cmd
}

// flagOverrides returns the flags the user set explicitly, keyed by config
// field name. Unset flags leave the lower-precedence sources alone.
func flagOverrides(cmd *cobra.Command, opts *RootOptions) map[string]any {
	flags := cmd.Flags()
	overrides := map[string]any{}
	if flags.Changed("backend") {
		overrides["backend"] = opts.Backend
	}
	if flags.Changed("db") {
		overrides["path"] = opts.DBPath
	}
	if flags.Changed("format") {
		overrides["format"] = opts.Format
	}
	if flags.Changed("verbose") {
		overrides["verbose"] = opts.Verbose
	}
	return overrides
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
