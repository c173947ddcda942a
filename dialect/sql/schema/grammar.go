package schema

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/syssam/rowlink/dialect"
	"github.com/syssam/rowlink/dialect/sql"
)

// ddlSpec holds the DDL differences between dialects.
type ddlSpec struct {
	types map[ColumnType]string
	// unsigned reports whether numeric columns accept UNSIGNED.
	unsigned bool
	// namedForeignKeys writes CONSTRAINT <name> before FOREIGN KEY.
	namedForeignKeys bool
	// alterForeignKeys reports whether ALTER TABLE can add or drop
	// foreign keys.
	alterForeignKeys bool
	// batchAlter joins additive column changes into one ALTER TABLE.
	batchAlter bool
	// dropForeign is the ALTER TABLE clause dropping a constraint.
	dropForeign string
	// dropPrimary is the ALTER TABLE clause dropping the primary key.
	dropPrimary string
	// pkeyConstraint reports whether the primary key is the constraint
	// named <table>_pkey.
	pkeyConstraint bool
	// dropIndexOn writes DROP INDEX <name> ON <table>.
	dropIndexOn bool
	// renameTable is the format of a table rename.
	renameTable string
	// boolLiterals are the literals of false and true.
	boolLiterals [2]string
	// bytesLiteral formats a hex string as a binary literal.
	bytesLiteral string
	// tableOptions are appended to CREATE TABLE.
	tableOptions string
}

var ddlSpecs = map[string]*ddlSpec{
	dialect.ANSI: {
		types: map[ColumnType]string{
			TypeIncrements:    "INTEGER GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY",
			TypeBigIncrements: "BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY",
			TypeInt:           "INTEGER",
			TypeBigInt:        "BIGINT",
			TypeDouble:        "DOUBLE PRECISION",
			TypeBool:          "BOOLEAN",
			TypeDate:          "DATE",
			TypeDateTime:      "TIMESTAMP(3)",
			TypeUUID:          "CHAR(36)",
			TypeJSON:          "JSON",
			TypeString:        "VARCHAR(%d)",
			TypeText:          "CLOB",
			TypeBytes:         "BLOB",
		},
		namedForeignKeys: true,
		alterForeignKeys: true,
		dropForeign:      "DROP CONSTRAINT",
		pkeyConstraint:   true,
		renameTable:      "ALTER TABLE %s RENAME TO %s",
		boolLiterals:     [2]string{"FALSE", "TRUE"},
		bytesLiteral:     "X'%s'",
	},
	dialect.MySQL: {
		types: map[ColumnType]string{
			TypeIncrements:    "INT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY",
			TypeBigIncrements: "BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY",
			TypeInt:           "INT",
			TypeBigInt:        "BIGINT",
			TypeDouble:        "DOUBLE",
			TypeBool:          "TINYINT(1)",
			TypeDate:          "DATE",
			TypeDateTime:      "DATETIME(3)",
			TypeUUID:          "CHAR(36)",
			TypeJSON:          "JSON",
			TypeString:        "VARCHAR(%d)",
			TypeText:          "TEXT",
			TypeBytes:         "BLOB",
		},
		unsigned:         true,
		namedForeignKeys: true,
		alterForeignKeys: true,
		batchAlter:       true,
		dropForeign:      "DROP FOREIGN KEY",
		dropPrimary:      "DROP PRIMARY KEY",
		dropIndexOn:      true,
		renameTable:      "RENAME TABLE %s TO %s",
		boolLiterals:     [2]string{"0", "1"},
		bytesLiteral:     "X'%s'",
		tableOptions:     "ENGINE=InnoDB DEFAULT CHARSET=utf8mb4",
	},
	dialect.SQLite: {
		types: map[ColumnType]string{
			TypeIncrements:    "INTEGER PRIMARY KEY AUTOINCREMENT",
			TypeBigIncrements: "INTEGER PRIMARY KEY AUTOINCREMENT",
			TypeInt:           "INTEGER",
			TypeBigInt:        "INTEGER",
			TypeDouble:        "REAL",
			TypeBool:          "BOOLEAN",
			TypeDate:          "DATE",
			TypeDateTime:      "DATETIME",
			TypeUUID:          "TEXT",
			TypeJSON:          "TEXT",
			TypeString:        "VARCHAR(%d)",
			TypeText:          "TEXT",
			TypeBytes:         "BLOB",
		},
		renameTable:  "ALTER TABLE %s RENAME TO %s",
		boolLiterals: [2]string{"0", "1"},
		bytesLiteral: "X'%s'",
	},
	dialect.Postgres: {
		types: map[ColumnType]string{
			TypeIncrements:    "SERIAL PRIMARY KEY",
			TypeBigIncrements: "BIGSERIAL PRIMARY KEY",
			TypeInt:           "INTEGER",
			TypeBigInt:        "BIGINT",
			TypeDouble:        "DOUBLE PRECISION",
			TypeBool:          "BOOLEAN",
			TypeDate:          "DATE",
			TypeDateTime:      "TIMESTAMP(3) WITH TIME ZONE",
			TypeUUID:          "UUID",
			TypeJSON:          "JSONB",
			TypeString:        "VARCHAR(%d)",
			TypeText:          "TEXT",
			TypeBytes:         "BYTEA",
		},
		namedForeignKeys: true,
		alterForeignKeys: true,
		batchAlter:       true,
		dropForeign:      "DROP CONSTRAINT",
		pkeyConstraint:   true,
		renameTable:      "ALTER TABLE %s RENAME TO %s",
		boolLiterals:     [2]string{"FALSE", "TRUE"},
		bytesLiteral:     `'\x%s'`,
	},
}

// Grammar compiles blueprints into the DDL statements of one dialect.
type Grammar struct {
	quoter sql.Grammar
	spec   *ddlSpec
}

// GrammarFor returns the DDL grammar of the named dialect.
func GrammarFor(name string) (*Grammar, error) {
	q, err := sql.GrammarFor(name)
	if err != nil {
		return nil, err
	}
	return &Grammar{quoter: q, spec: ddlSpecs[q.Dialect()]}, nil
}

// Dialect returns the dialect name.
func (g *Grammar) Dialect() string { return g.quoter.Dialect() }

// ddl accumulates the statements of one blueprint and the first error.
type ddl struct {
	g      *Grammar
	table  string
	clause string
	stmts  []string
	err    error
}

func (d *ddl) fail(column, format string, args ...any) {
	if d.err == nil {
		d.err = &sql.CompileError{
			Dialect: d.g.Dialect(),
			Table:   d.table,
			Column:  column,
			Clause:  d.clause,
			Message: fmt.Sprintf(format, args...),
		}
	}
}

func (d *ddl) quote(ident string) string {
	q, err := d.g.quoter.Quote(ident)
	if err != nil {
		d.fail(ident, "%v", err)
		return ident
	}
	return q
}

func (d *ddl) quoteAll(idents []string) string {
	qs := make([]string, len(idents))
	for i, id := range idents {
		qs[i] = d.quote(id)
	}
	return strings.Join(qs, ", ")
}

func (d *ddl) add(format string, args ...any) {
	d.stmts = append(d.stmts, fmt.Sprintf(format, args...))
}

func (d *ddl) result() ([]string, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.stmts, nil
}

// Compile compiles b as a CREATE TABLE or an ALTER TABLE.
func (g *Grammar) Compile(b *Blueprint) ([]string, error) {
	if b.Creating() {
		return g.CompileCreate(b)
	}
	return g.CompileAlter(b)
}

// CompileCreate compiles a CREATE TABLE statement followed by the
// CREATE INDEX statements of the blueprint.
func (g *Grammar) CompileCreate(b *Blueprint) ([]string, error) {
	d := &ddl{g: g, table: b.Table, clause: "create"}
	if len(b.DropColumns)+len(b.Renames)+len(b.DropIndexes)+len(b.DropForeigns) > 0 {
		d.fail("", "a created table cannot drop or rename anything")
	}
	defs := make([]string, 0, len(b.Columns)+len(b.ForeignKeys)+1)
	var primary []string
	for _, c := range b.Columns {
		defs = append(defs, d.column(c, true))
		if c.Primary && !c.Type.autoIncrement() {
			primary = append(primary, c.Name)
		}
	}
	if len(b.PrimaryKey) > 0 {
		primary = b.PrimaryKey
	}
	if len(primary) > 0 {
		for _, c := range b.Columns {
			if c.Type.autoIncrement() {
				d.fail(c.Name, "an auto-incrementing column cannot be part of a composite primary key")
			}
		}
		defs = append(defs, "PRIMARY KEY ("+d.quoteAll(primary)+")")
	}
	for _, fk := range b.ForeignKeys {
		defs = append(defs, d.foreignKey(fk))
	}
	var sb strings.Builder
	sb.WriteString("CREATE TABLE ")
	if b.IfNotExists {
		sb.WriteString("IF NOT EXISTS ")
	}
	sb.WriteString(d.quote(b.Table))
	sb.WriteString(" (")
	sb.WriteString(strings.Join(defs, ", "))
	sb.WriteString(")")
	if g.spec.tableOptions != "" {
		sb.WriteString(" " + g.spec.tableOptions)
	}
	d.stmts = append(d.stmts, sb.String())
	for _, idx := range b.Indexes {
		d.createIndex(idx)
	}
	return d.result()
}

// CompileAlter compiles the changes of an ALTER blueprint in this
// order: dropped foreign keys, dropped primary key, dropped indexes, added columns, renamed
// columns, dropped columns, added foreign keys, created indexes.
func (g *Grammar) CompileAlter(b *Blueprint) ([]string, error) {
	d := &ddl{g: g, table: b.Table, clause: "alter"}
	table := d.quote(b.Table)
	if len(b.PrimaryKey) > 0 {
		d.fail("", "changing the primary key of an existing table is not supported")
	}
	for _, name := range b.DropForeigns {
		if !g.spec.alterForeignKeys {
			d.fail("", "dropping foreign key %q requires rebuilding the table", name)
			break
		}
		d.add("ALTER TABLE %s %s %s", table, g.spec.dropForeign, d.quote(name))
	}
	if b.DropPrimaryKey {
		switch {
		case g.spec.dropPrimary != "":
			d.add("ALTER TABLE %s %s", table, g.spec.dropPrimary)
		case g.spec.pkeyConstraint:
			d.add("ALTER TABLE %s DROP CONSTRAINT %s", table, d.quote(strings.ReplaceAll(b.Table, ".", "_")+"_pkey"))
		default:
			d.fail("", "dropping the primary key requires rebuilding the table")
		}
	}
	for _, name := range b.DropIndexes {
		if g.spec.dropIndexOn {
			d.add("DROP INDEX %s ON %s", d.quote(name), table)
		} else {
			d.add("DROP INDEX %s", d.quote(name))
		}
	}
	var (
		adds    []string
		indexes = b.Indexes
	)
	for _, c := range b.Columns {
		if c.Primary || c.Type.autoIncrement() {
			d.fail(c.Name, "a primary key column cannot be added to an existing table")
		}
		adds = append(adds, "ADD COLUMN "+d.column(c, false))
		if c.Unique {
			indexes = append(indexes, &Index{
				Name:    indexName(b.Table, []string{c.Name}, "unique"),
				Columns: []string{c.Name},
				Unique:  true,
			})
		}
	}
	d.batch(table, adds)
	for _, r := range b.Renames {
		d.add("ALTER TABLE %s RENAME COLUMN %s TO %s", table, d.quote(r.From), d.quote(r.To))
	}
	for _, name := range b.DropColumns {
		d.add("ALTER TABLE %s DROP COLUMN %s", table, d.quote(name))
	}
	for _, fk := range b.ForeignKeys {
		if !g.spec.alterForeignKeys {
			d.fail(strings.Join(fk.Columns, ", "), "foreign keys cannot be added to an existing table")
			break
		}
		d.add("ALTER TABLE %s ADD %s", table, d.foreignKey(fk))
	}
	for _, idx := range indexes {
		d.createIndex(idx)
	}
	return d.result()
}

// batch writes the clauses as one ALTER TABLE where the dialect allows
// it, or one statement per clause.
func (d *ddl) batch(table string, clauses []string) {
	if len(clauses) == 0 {
		return
	}
	if d.g.spec.batchAlter {
		d.add("ALTER TABLE %s %s", table, strings.Join(clauses, ", "))
		return
	}
	for _, c := range clauses {
		d.add("ALTER TABLE %s %s", table, c)
	}
}

// CompileDrop compiles a DROP TABLE.
func (g *Grammar) CompileDrop(table string, ifExists bool) (string, error) {
	d := &ddl{g: g, table: table, clause: "drop"}
	if ifExists {
		d.add("DROP TABLE IF EXISTS %s", d.quote(table))
	} else {
		d.add("DROP TABLE %s", d.quote(table))
	}
	return d.single()
}

// CompileRename compiles a table rename.
func (g *Grammar) CompileRename(from, to string) (string, error) {
	d := &ddl{g: g, table: from, clause: "rename"}
	d.add(g.spec.renameTable, d.quote(from), d.quote(to))
	return d.single()
}

func (d *ddl) single() (string, error) {
	stmts, err := d.result()
	if err != nil {
		return "", err
	}
	return stmts[0], nil
}

func (d *ddl) createIndex(idx *Index) {
	if len(idx.Columns) == 0 {
		d.fail("", "index %q has no columns", idx.Name)
		return
	}
	unique := ""
	if idx.Unique {
		unique = "UNIQUE "
	}
	d.add("CREATE %sINDEX %s ON %s (%s)", unique, d.quote(idx.Name), d.quote(d.table), d.quoteAll(idx.Columns))
}

func (d *ddl) foreignKey(fk *ForeignKey) string {
	switch {
	case len(fk.Columns) == 0:
		d.fail("", "foreign key %q has no columns", fk.Name)
	case fk.RefTable == "" || len(fk.RefColumns) == 0:
		d.fail(strings.Join(fk.Columns, ", "), "foreign key %q does not reference a table and columns", fk.Name)
	case len(fk.Columns) != len(fk.RefColumns):
		d.fail(strings.Join(fk.Columns, ", "), "foreign key %q references %d columns with %d", fk.Name, len(fk.RefColumns), len(fk.Columns))
	}
	var sb strings.Builder
	if d.g.spec.namedForeignKeys {
		sb.WriteString("CONSTRAINT " + d.quote(fk.Name) + " ")
	}
	sb.WriteString("FOREIGN KEY (" + d.quoteAll(fk.Columns) + ") REFERENCES ")
	sb.WriteString(d.quote(fk.RefTable) + " (" + d.quoteAll(fk.RefColumns) + ")")
	for _, a := range []struct {
		on     string
		action CascadeAction
	}{{"DELETE", fk.OnDelete}, {"UPDATE", fk.OnUpdate}} {
		if a.action == "" {
			continue
		}
		if !a.action.Valid() {
			d.fail(strings.Join(fk.Columns, ", "), "unknown ON %s action %q", a.on, a.action)
			continue
		}
		sb.WriteString(" ON " + a.on + " " + string(a.action))
	}
	return sb.String()
}

// column renders a column definition. Unique constraints are written
// inline only when creating the table.
func (d *ddl) column(c *Column, creating bool) string {
	typ, ok := d.g.spec.types[c.Type]
	if !ok {
		d.fail(c.Name, "unknown column type %d", c.Type)
		return ""
	}
	name := d.quote(c.Name)
	if c.Type.autoIncrement() {
		return name + " " + typ
	}
	if c.Type == TypeString {
		size := c.Size
		if size <= 0 {
			size = DefaultStringSize
		}
		typ = fmt.Sprintf(typ, size)
	}
	var sb strings.Builder
	sb.WriteString(name + " " + typ)
	if c.Unsigned && d.g.spec.unsigned && numeric(c.Type) {
		sb.WriteString(" UNSIGNED")
	}
	if !c.Nullable {
		sb.WriteString(" NOT NULL")
	}
	switch {
	case c.DefaultExpr != "":
		sb.WriteString(" DEFAULT " + c.DefaultExpr)
	case c.Default != nil:
		sb.WriteString(" DEFAULT " + d.literal(c.Name, *c.Default))
	}
	if c.Unique && creating {
		sb.WriteString(" UNIQUE")
	}
	return sb.String()
}

func numeric(t ColumnType) bool {
	return t == TypeInt || t == TypeBigInt || t == TypeDouble
}

// literal renders a default value as SQL text.
func (d *ddl) literal(column string, v sql.Value) string {
	switch x := v.Interface().(type) {
	case nil:
		return "NULL"
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		if x {
			return d.g.spec.boolLiterals[1]
		}
		return d.g.spec.boolLiterals[0]
	case string:
		return quoteString(x)
	case time.Time:
		if d.g.Dialect() == dialect.SQLite {
			return quoteString(x.UTC().Format(sql.SQLiteTimeLayout))
		}
		return quoteString(x.UTC().Format("2006-01-02 15:04:05.000"))
	case json.RawMessage:
		return quoteString(string(x))
	case []byte:
		return fmt.Sprintf(d.g.spec.bytesLiteral, hex.EncodeToString(x))
	case fmt.Stringer:
		return quoteString(x.String())
	}
	d.fail(column, "unsupported default value %s", v)
	return ""
}

func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
