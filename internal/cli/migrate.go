package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/syssam/rowlink/dialect"
	"github.com/syssam/rowlink/dialect/sql"
	"github.com/syssam/rowlink/dialect/sql/schema"
)

// session is an open database with the migrator of the configured
// migrations.
type session struct {
	drv      *sql.Driver
	stats    *sql.StatsDriver
	migrator *schema.Migrator
	log      *slog.Logger
}

// migrations loads the migration files of the configured directory.
func migrations(cfg Config) ([]schema.Migration, error) {
	ms, err := schema.LoadDir(os.DirFS(cfg.MigrationsDir), ".")
	if err != nil {
		return nil, commandError(fmt.Errorf("load migrations from %s: %w", cfg.MigrationsDir, err))
	}
	return ms, nil
}

func (o *RootOptions) open(cmd *cobra.Command) (*session, error) {
	cfg := o.cfg
	if err := cfg.Validate(true); err != nil {
		return nil, commandError(err)
	}
	ms, err := migrations(cfg)
	if err != nil {
		return nil, err
	}
	log := cfg.Logger(cmd.ErrOrStderr())
	drv, err := sql.Open(dialect.DriverName(cfg.Dialect), cfg.DSN)
	if err != nil {
		return nil, commandError(err)
	}
	stats := sql.NewStatsDriver(drv,
		sql.WithSlowThreshold(cfg.SlowThreshold),
		sql.WithSlowQueryLog(log),
	)
	var exec sql.Executor = stats
	if log.Enabled(cmd.Context(), slog.LevelDebug) {
		exec = sql.NewDebugDriver(stats, sql.DebugWithLog(func(ctx context.Context, v ...any) {
			log.DebugContext(ctx, fmt.Sprint(v...))
		}))
	}
	db := sql.NewDatabase(sql.MustGrammar(cfg.Dialect), exec)
	m, err := schema.NewMigrator(db, ms, schema.WithTable(cfg.Table), schema.WithLogger(log))
	if err != nil {
		drv.Close()
		return nil, commandError(err)
	}
	return &session{drv: drv, stats: stats, migrator: m, log: log}, nil
}

// Close logs the statement statistics and closes the pool.
func (s *session) Close() error {
	s.log.Debug("query stats", "stats", s.stats.QueryStats().Stats().String())
	return s.drv.Close()
}

// withSession runs fn on an open session.
func (o *RootOptions) withSession(cmd *cobra.Command, fn func(*session) error) (err error) {
	s, err := o.open(cmd)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); err == nil {
			err = cerr
		}
	}()
	return fn(s)
}

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the pending migrations",
		Long: `Apply every pending migration as one batch. A failing migration
rolls back the migrations of the batch applied before it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withSession(cmd, func(s *session) error {
				w := cmd.OutOrStdout()
				if dryRun {
					stmts, err := s.migrator.SQL(cmd.Context())
					if err != nil {
						return err
					}
					printStatements(w, stmts)
					return nil
				}
				names, err := s.migrator.Migrate(cmd.Context())
				if err != nil {
					return err
				}
				printNames(w, "Migrated", "Nothing to migrate.", names)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the statements of the pending migrations without running them")
	return cmd
}

// NewRollbackCommand creates the rollback command.
func NewRollbackCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rollback",
		Short: "Roll back the latest batch of migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withSession(cmd, func(s *session) error {
				names, err := s.migrator.Rollback(cmd.Context())
				if err != nil {
					return err
				}
				printNames(cmd.OutOrStdout(), "Rolled back", "Nothing to roll back.", names)
				return nil
			})
		},
	}
}

// NewResetCommand creates the reset command.
func NewResetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Roll back every applied migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withSession(cmd, func(s *session) error {
				names, err := s.migrator.Reset(cmd.Context())
				if err != nil {
					return err
				}
				printNames(cmd.OutOrStdout(), "Rolled back", "Nothing to roll back.", names)
				return nil
			})
		},
	}
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withSession(cmd, func(s *session) error {
				status, err := s.migrator.Status(cmd.Context())
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "Ran?\tBatch\tMigration")
				for _, st := range status {
					ran, batch := "No", ""
					if st.Applied {
						ran, batch = "Yes", strconv.Itoa(st.Batch)
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\n", ran, batch, st.Name)
				}
				return tw.Flush()
			})
		},
	}
}

// NewDDLCommand creates the ddl command. It compiles the migrations for
// the configured dialect without connecting to a database.
func NewDDLCommand(rootOpts *RootOptions) *cobra.Command {
	var down bool
	cmd := &cobra.Command{
		Use:   "ddl",
		Short: "Print the statements of every migration",
		Long: `Compile every migration for the configured dialect and print the
statements, without connecting to a database. With --down the down
steps are printed in rollback order.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := rootOpts.cfg
			if err := cfg.Validate(false); err != nil {
				return commandError(err)
			}
			ms, err := migrations(cfg)
			if err != nil {
				return err
			}
			step := schema.Migration.Up
			if down {
				slices.Reverse(ms)
				step = schema.Migration.Down
			}
			w := cmd.OutOrStdout()
			for _, m := range ms {
				s, err := schema.For(cfg.Dialect)
				if err != nil {
					return commandError(err)
				}
				step(m, s)
				stmts, err := s.Statements()
				if err != nil {
					return fmt.Errorf("migration %s: %w", m.Name(), err)
				}
				fmt.Fprintf(w, "-- %s\n", m.Name())
				printStatements(w, stmts)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&down, "down", false, "print the down steps")
	return cmd
}

func printStatements(w io.Writer, stmts []string) {
	for _, stmt := range stmts {
		fmt.Fprintf(w, "%s;\n", stmt)
	}
}

func printNames(w io.Writer, verb, none string, names []string) {
	if len(names) == 0 {
		fmt.Fprintln(w, none)
		return
	}
	for _, name := range names {
		fmt.Fprintf(w, "%s: %s\n", verb, name)
	}
}
