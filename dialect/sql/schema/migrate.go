package schema

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/syssam/rowlink"
	"github.com/syssam/rowlink/dialect/sql"
)

// DefaultMigrationTable is the default name of the bookkeeping table.
const DefaultMigrationTable = "rowlink_migrations"

// Migration is one reversible schema change. Up and Down record their
// statements on the given Schema.
type Migration interface {
	Name() string
	Up(*Schema)
	Down(*Schema)
}

type funcMigration struct {
	name     string
	up, down func(*Schema)
}

func (m *funcMigration) Name() string { return m.name }

func (m *funcMigration) Up(s *Schema) {
	if m.up != nil {
		m.up(s)
	}
}

func (m *funcMigration) Down(s *Schema) {
	if m.down != nil {
		m.down(s)
	}
}

// NewMigration returns a migration from its up and down functions.
//
//	schema.NewMigration("2024_01_01_create_users",
//	    func(s *schema.Schema) {
//	        s.Create("users", func(b *schema.Blueprint) {
//	            b.Increments("id")
//	            b.String("email").SetUnique()
//	        })
//	    },
//	    func(s *schema.Schema) { s.Drop("users") },
//	)
func NewMigration(name string, up, down func(*Schema)) Migration {
	return &funcMigration{name: name, up: up, down: down}
}

// MigrationStatus is the state of one known migration.
type MigrationStatus struct {
	Name      string
	Applied   bool
	Batch     int
	AppliedAt time.Time
}

// Migrator applies migrations in order and records them in a bookkeeping
// table. Migrations applied by one Migrate call share a batch number, and
// Rollback undoes the latest batch.
type Migrator struct {
	db         *sql.Database
	grammar    *Grammar
	migrations []Migration
	table      string
	log        *slog.Logger
}

// MigratorOption configures the Migrator.
type MigratorOption func(*Migrator)

// WithTable sets the bookkeeping table name.
func WithTable(name string) MigratorOption {
	return func(m *Migrator) {
		m.table = name
	}
}

// WithLogger sets the logger of applied and rolled back migrations.
func WithLogger(l *slog.Logger) MigratorOption {
	return func(m *Migrator) {
		m.log = l
	}
}

// NewMigrator returns a Migrator running migrations, in the given order,
// on db. Migration names must be unique and non-empty.
func NewMigrator(db *sql.Database, migrations []Migration, opts ...MigratorOption) (*Migrator, error) {
	g, err := GrammarFor(db.Grammar().Dialect())
	if err != nil {
		return nil, err
	}
	m := &Migrator{
		db:         db,
		grammar:    g,
		migrations: migrations,
		table:      DefaultMigrationTable,
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	seen := make(map[string]bool, len(migrations))
	for i, mig := range migrations {
		switch name := mig.Name(); {
		case name == "":
			return nil, fmt.Errorf("schema: migration %d has no name", i)
		case seen[name]:
			return nil, fmt.Errorf("schema: duplicate migration %q", name)
		default:
			seen[name] = true
		}
	}
	return m, nil
}

// appliedMigration is one row of the bookkeeping table.
type appliedMigration struct {
	id        int64
	name      string
	batch     int
	appliedAt time.Time
}

func (m *Migrator) ensureTable(ctx context.Context) error {
	s := New(m.grammar)
	s.CreateIfNotExists(m.table, func(b *Blueprint) {
		b.BigIncrements("id")
		b.String("name").SetUnique()
		b.Int("batch")
		b.DateTime("applied_at")
	})
	return s.Exec(ctx, m.db)
}

// applied returns the bookkeeping rows in application order.
func (m *Migrator) applied(ctx context.Context) ([]appliedMigration, error) {
	if err := m.ensureTable(ctx); err != nil {
		return nil, err
	}
	rows, err := m.db.Table(m.table).
		Select("id", "name", "batch", "applied_at").
		OrderBy("id", sql.Asc).
		All(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]appliedMigration, len(rows))
	for i, r := range rows {
		var a appliedMigration
		if a.id, err = r.Int("id"); err != nil {
			return nil, err
		}
		if a.name, err = r.String("name"); err != nil {
			return nil, err
		}
		batch, err := r.Int("batch")
		if err != nil {
			return nil, err
		}
		a.batch = int(batch)
		if a.appliedAt, err = r.Date("applied_at"); err != nil {
			return nil, err
		}
		out[i] = a
	}
	return out, nil
}

func (m *Migrator) lookup(name string) Migration {
	for _, mig := range m.migrations {
		if mig.Name() == name {
			return mig
		}
	}
	return nil
}

// Pending returns the migrations not applied yet, in order.
func (m *Migrator) Pending(ctx context.Context) ([]Migration, error) {
	applied, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}
	return m.pending(applied), nil
}

func (m *Migrator) pending(applied []appliedMigration) []Migration {
	done := make(map[string]bool, len(applied))
	for _, a := range applied {
		done[a.name] = true
	}
	var out []Migration
	for _, mig := range m.migrations {
		if !done[mig.Name()] {
			out = append(out, mig)
		}
	}
	return out
}

// Migrate applies every pending migration under one new batch number and
// returns their names. Each migration runs in its own transaction along
// with its bookkeeping row. When one fails, the migrations of the batch
// that already ran are rolled back in reverse order.
func (m *Migrator) Migrate(ctx context.Context) ([]string, error) {
	applied, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}
	pending := m.pending(applied)
	if len(pending) == 0 {
		return nil, nil
	}
	batch := 1
	for _, a := range applied {
		batch = max(batch, a.batch+1)
	}
	var done []Migration
	for _, mig := range pending {
		if err := m.up(ctx, mig, batch); err != nil {
			return nil, m.undo(ctx, err, done)
		}
		done = append(done, mig)
		m.log.InfoContext(ctx, "migrated", "migration", mig.Name(), "batch", batch)
	}
	names := make([]string, len(done))
	for i, mig := range done {
		names[i] = mig.Name()
	}
	return names, nil
}

// undo rolls back the migrations of a failed batch and reports cause
// together with any failure to do so.
func (m *Migrator) undo(ctx context.Context, cause error, done []Migration) error {
	var errs []error
	for _, mig := range slices.Backward(done) {
		if err := m.down(ctx, mig); err != nil {
			errs = append(errs, err)
			continue
		}
		m.log.WarnContext(ctx, "rolled back after failed batch", "migration", mig.Name())
	}
	if len(errs) == 0 {
		return cause
	}
	return rowlink.NewAggregateError(append([]error{cause}, errs...)...)
}

// Rollback rolls back the latest batch in reverse order of application
// and returns the names of the rolled back migrations.
func (m *Migrator) Rollback(ctx context.Context) ([]string, error) {
	applied, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}
	if len(applied) == 0 {
		return nil, nil
	}
	last := 0
	for _, a := range applied {
		last = max(last, a.batch)
	}
	var batch []appliedMigration
	for _, a := range applied {
		if a.batch == last {
			batch = append(batch, a)
		}
	}
	return m.rollback(ctx, batch)
}

// Reset rolls back every applied migration, latest first.
func (m *Migrator) Reset(ctx context.Context) ([]string, error) {
	applied, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}
	return m.rollback(ctx, applied)
}

// rollback undoes applied, which is in application order.
func (m *Migrator) rollback(ctx context.Context, applied []appliedMigration) ([]string, error) {
	var names []string
	for _, a := range slices.Backward(applied) {
		mig := m.lookup(a.name)
		if mig == nil {
			return names, rowlink.NewMutationError(a.name, "rollback", errors.New("migration is applied but unknown"))
		}
		if err := m.down(ctx, mig); err != nil {
			return names, err
		}
		names = append(names, a.name)
		m.log.InfoContext(ctx, "rolled back", "migration", a.name, "batch", a.batch)
	}
	return names, nil
}

// Status reports every known migration, and applied migrations that are
// no longer known, in application order followed by pending ones.
func (m *Migrator) Status(ctx context.Context) ([]MigrationStatus, error) {
	applied, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]MigrationStatus, 0, len(applied)+len(m.migrations))
	for _, a := range applied {
		out = append(out, MigrationStatus{Name: a.name, Applied: true, Batch: a.batch, AppliedAt: a.appliedAt})
	}
	for _, mig := range m.pending(applied) {
		out = append(out, MigrationStatus{Name: mig.Name()})
	}
	return out, nil
}

// SQL returns the statements of the pending migrations without running
// them, in the order Migrate would.
func (m *Migrator) SQL(ctx context.Context) ([]string, error) {
	pending, err := m.Pending(ctx)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, mig := range pending {
		stmts, err := m.compile(mig, Migration.Up)
		if err != nil {
			return nil, err
		}
		out = append(out, stmts...)
	}
	return out, nil
}

func (m *Migrator) compile(mig Migration, step func(Migration, *Schema)) ([]string, error) {
	s := New(m.grammar)
	step(mig, s)
	return s.Statements()
}

func (m *Migrator) up(ctx context.Context, mig Migration, batch int) error {
	stmts, err := m.compile(mig, Migration.Up)
	if err != nil {
		return rowlink.NewMutationError(mig.Name(), "migrate", err)
	}
	err = m.db.Transaction(ctx, func(tx *sql.Database) error {
		for _, stmt := range stmts {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return err
			}
		}
		_, err := tx.Table(m.table).Insert(ctx, sql.RecordOf(
			"name", mig.Name(),
			"batch", batch,
			"applied_at", time.Now().UTC(),
		))
		return err
	})
	if err != nil {
		return rowlink.NewMutationError(mig.Name(), "migrate", err)
	}
	return nil
}

func (m *Migrator) down(ctx context.Context, mig Migration) error {
	stmts, err := m.compile(mig, Migration.Down)
	if err != nil {
		return rowlink.NewMutationError(mig.Name(), "rollback", err)
	}
	err = m.db.Transaction(ctx, func(tx *sql.Database) error {
		for _, stmt := range stmts {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return err
			}
		}
		_, err := tx.Table(m.table).Where("name", "=", mig.Name()).Delete(ctx)
		return err
	})
	if err != nil {
		return rowlink.NewMutationError(mig.Name(), "rollback", err)
	}
	return nil
}
