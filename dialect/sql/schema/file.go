package schema

import (
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/syssam/rowlink"
)

// FileMigration is a migration declared in YAML:
//
//	up:
//	  - create: users
//	    columns:
//	      - {name: id, type: increments}
//	      - {name: email, type: string, size: 320, unique: true}
//	      - {name: team_id, type: bigInt, nullable: true}
//	    foreign:
//	      - {columns: [team_id], references: [id], on: teams, on_delete: SET NULL}
//	down:
//	  - drop: users
//
// The migration name defaults to the file name without its extension.
type FileMigration struct {
	MigrationName string      `yaml:"name"`
	UpOps         []Operation `yaml:"up"`
	DownOps       []Operation `yaml:"down"`
}

// Operation is one step of a FileMigration. Exactly one of Create,
// Table, Drop, Rename or Raw is set.
type Operation struct {
	Create      string         `yaml:"create,omitempty"`
	IfNotExists bool           `yaml:"if_not_exists,omitempty"`
	Table       string         `yaml:"table,omitempty"`
	Drop        string         `yaml:"drop,omitempty"`
	IfExists    bool           `yaml:"if_exists,omitempty"`
	Rename      *RenameSpec    `yaml:"rename,omitempty"`
	Raw         string         `yaml:"raw,omitempty"`
	Columns     []ColumnSpec   `yaml:"columns,omitempty"`
	Primary     []string       `yaml:"primary,omitempty"`
	Indexes     []IndexSpec    `yaml:"indexes,omitempty"`
	Foreign     []ForeignSpec  `yaml:"foreign,omitempty"`
	DropColumns []string       `yaml:"drop_columns,omitempty"`
	RenameCols  []RenameSpec   `yaml:"rename_columns,omitempty"`
	DropIndexes []string       `yaml:"drop_indexes,omitempty"`
	DropForeign []string       `yaml:"drop_foreign,omitempty"`
	DropPrimary bool           `yaml:"drop_primary,omitempty"`
	Timestamps  bool           `yaml:"timestamps,omitempty"`
	Extra       map[string]any `yaml:",inline"`
}

// ColumnSpec declares a column.
type ColumnSpec struct {
	Name        string `yaml:"name"`
	Type        string `yaml:"type"`
	Size        int    `yaml:"size,omitempty"`
	Nullable    bool   `yaml:"nullable,omitempty"`
	Unique      bool   `yaml:"unique,omitempty"`
	Primary     bool   `yaml:"primary,omitempty"`
	Unsigned    bool   `yaml:"unsigned,omitempty"`
	Default     any    `yaml:"default,omitempty"`
	DefaultExpr string `yaml:"default_expr,omitempty"`
}

// IndexSpec declares an index.
type IndexSpec struct {
	Name    string   `yaml:"name,omitempty"`
	Columns []string `yaml:"columns"`
	Unique  bool     `yaml:"unique,omitempty"`
}

// ForeignSpec declares a foreign key.
type ForeignSpec struct {
	Name       string        `yaml:"name,omitempty"`
	Columns    []string      `yaml:"columns"`
	References []string      `yaml:"references"`
	On         string        `yaml:"on"`
	OnDelete   CascadeAction `yaml:"on_delete,omitempty"`
	OnUpdate   CascadeAction `yaml:"on_update,omitempty"`
}

// RenameSpec is a rename from one name to another.
type RenameSpec struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// Name returns the migration name.
func (f *FileMigration) Name() string { return f.MigrationName }

// Up applies the up operations.
func (f *FileMigration) Up(s *Schema) { apply(s, f.UpOps) }

// Down applies the down operations.
func (f *FileMigration) Down(s *Schema) { apply(s, f.DownOps) }

// ParseMigration decodes a YAML migration. name is used when the document
// does not carry one.
func ParseMigration(name string, data []byte) (*FileMigration, error) {
	var f FileMigration
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("schema: parse migration %q: %w", name, err)
	}
	if f.MigrationName == "" {
		f.MigrationName = name
	}
	var errs []error
	for _, ops := range [][]Operation{f.UpOps, f.DownOps} {
		for i, op := range ops {
			if err := op.check(); err != nil {
				errs = append(errs, fmt.Errorf("schema: migration %q step %d: %w", f.MigrationName, i+1, err))
			}
		}
	}
	if err := rowlink.NewAggregateError(errs...); err != nil {
		return nil, err
	}
	return &f, nil
}

// LoadDir loads every .yaml and .yml file of dir, sorted by file name.
// Problems in several files are reported together.
func LoadDir(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	var (
		migrations []Migration
		errs       []error
	)
	for _, e := range entries {
		ext := path.Ext(e.Name())
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		data, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		m, err := ParseMigration(strings.TrimSuffix(e.Name(), ext), data)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		migrations = append(migrations, m)
	}
	if err := rowlink.NewAggregateError(errs...); err != nil {
		return nil, err
	}
	return migrations, nil
}

func (op *Operation) check() error {
	if len(op.Extra) > 0 {
		keys := make([]string, 0, len(op.Extra))
		for k := range op.Extra {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return fmt.Errorf("unknown keys %s", strings.Join(keys, ", "))
	}
	n := 0
	for _, set := range []bool{op.Create != "", op.Table != "", op.Drop != "", op.Rename != nil, op.Raw != ""} {
		if set {
			n++
		}
	}
	if n != 1 {
		return fmt.Errorf("expected exactly one of create, table, drop, rename or raw")
	}
	for _, c := range op.Columns {
		if _, ok := ParseColumnType(c.Type); !ok {
			return fmt.Errorf("column %q: unknown type %q", c.Name, c.Type)
		}
	}
	return nil
}

func apply(s *Schema, ops []Operation) {
	for _, op := range ops {
		switch {
		case op.Create != "":
			b := NewBlueprint(op.Create)
			b.IfNotExists = op.IfNotExists
			op.fill(b)
			s.Blueprint(b)
		case op.Table != "":
			b := AlterBlueprint(op.Table)
			op.fill(b)
			s.Blueprint(b)
		case op.Drop != "" && op.IfExists:
			s.DropIfExists(op.Drop)
		case op.Drop != "":
			s.Drop(op.Drop)
		case op.Rename != nil:
			s.Rename(op.Rename.From, op.Rename.To)
		case op.Raw != "":
			s.Raw(op.Raw)
		}
	}
}

func (op *Operation) fill(b *Blueprint) {
	for _, cs := range op.Columns {
		t, _ := ParseColumnType(cs.Type)
		c := b.AddColumn(cs.Name, t)
		if t == TypeString {
			c.Size = DefaultStringSize
		}
		if cs.Size > 0 {
			c.Size = cs.Size
		}
		c.Nullable = cs.Nullable
		c.Unique = cs.Unique
		c.Primary = c.Primary || cs.Primary
		c.Unsigned = cs.Unsigned
		if cs.Default != nil {
			c.SetDefault(cs.Default)
		}
		if cs.DefaultExpr != "" {
			c.SetDefaultExpr(cs.DefaultExpr)
		}
	}
	if op.Timestamps {
		b.Timestamps()
	}
	if len(op.Primary) > 0 {
		b.Primary(op.Primary...)
	}
	for _, is := range op.Indexes {
		idx := b.addIndex(is.Columns, is.Unique)
		if is.Name != "" {
			idx.Named(is.Name)
		}
	}
	for _, f := range op.Foreign {
		fk := b.Foreign(f.Columns...).References(f.References...).On(f.On).
			CascadeOnDelete(f.OnDelete).
			CascadeOnUpdate(f.OnUpdate)
		if f.Name != "" {
			fk.Named(f.Name)
		}
	}
	b.DropColumn(op.DropColumns...)
	for _, r := range op.RenameCols {
		b.RenameColumn(r.From, r.To)
	}
	for _, name := range op.DropIndexes {
		b.DropIndex(name)
	}
	for _, name := range op.DropForeign {
		b.DropForeign(name)
	}
	if op.DropPrimary {
		b.DropPrimary()
	}
}

var _ Migration = (*FileMigration)(nil)
