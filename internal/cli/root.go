package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

// Exit codes of the rowlink command.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // A migration or query failed
	ExitCommandError = 2 // Invalid configuration or arguments
)

// ExitError is an error with the exit code the command should end with.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }

func (e *ExitError) Unwrap() error { return e.Err }

// ExitCode returns the exit code of err, ExitFailure when err carries
// none.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Dialect    string
	DSN        string
	Dir        string
	Table      string
	Verbose    bool

	cfg Config
}

// Config returns the configuration loaded before the command ran.
func (o *RootOptions) Config() Config { return o.cfg }

// NewRootCommand creates the root command of the rowlink CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "rowlink",
		Short: "rowlink - schema migrations",
		Long: `Run, roll back and inspect the YAML schema migrations of a database.

Settings come from rowlink.yaml, the ROWLINK_DSN and ROWLINK_DIALECT
environment variables and the global flags, in increasing precedence.`,
		SilenceUsage:  true,
		SilenceErrors: true, // main reports the error with its exit code
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd)
		},
	}

	// Global flags
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", DefaultConfigFile, "configuration file")
	cmd.PersistentFlags().StringVar(&opts.Dialect, "dialect", "", "SQL dialect (mysql|postgres|sqlite)")
	cmd.PersistentFlags().StringVar(&opts.DSN, "dsn", "", "data source name")
	cmd.PersistentFlags().StringVar(&opts.Dir, "dir", "", "migrations directory")
	cmd.PersistentFlags().StringVar(&opts.Table, "table", "", "migration bookkeeping table")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log every statement")

	// Add subcommands
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewRollbackCommand(opts))
	cmd.AddCommand(NewResetCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewDDLCommand(opts))

	return cmd
}

// load reads the configuration file, optional unless --config was set,
// and applies the flag overrides.
func (o *RootOptions) load(cmd *cobra.Command) error {
	cfg, err := LoadConfig(o.ConfigPath, !cmd.Flags().Changed("config"))
	if err != nil {
		return commandError(err)
	}
	if o.Dialect != "" {
		cfg.Dialect = o.Dialect
	}
	if o.DSN != "" {
		cfg.DSN = o.DSN
	}
	if o.Dir != "" {
		cfg.MigrationsDir = o.Dir
	}
	if o.Table != "" {
		cfg.Table = o.Table
	}
	if o.Verbose {
		cfg.LogLevel = "debug"
	}
	o.cfg = cfg
	return nil
}

func commandError(err error) error {
	return &ExitError{Code: ExitCommandError, Err: err}
}
