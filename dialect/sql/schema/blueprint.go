package schema

import (
	"strings"

	"github.com/syssam/rowlink/dialect/sql"
)

// ColumnType is the semantic type of a column. Each dialect maps it to
// its own spelling.
type ColumnType uint8

// Column types.
const (
	TypeIncrements ColumnType = iota + 1
	TypeBigIncrements
	TypeInt
	TypeBigInt
	TypeDouble
	TypeBool
	TypeDate
	TypeDateTime
	TypeUUID
	TypeJSON
	TypeString
	TypeText
	TypeBytes
)

var typeNames = map[ColumnType]string{
	TypeIncrements:    "increments",
	TypeBigIncrements: "bigIncrements",
	TypeInt:           "int",
	TypeBigInt:        "bigInt",
	TypeDouble:        "double",
	TypeBool:          "bool",
	TypeDate:          "date",
	TypeDateTime:      "dateTime",
	TypeUUID:          "uuid",
	TypeJSON:          "json",
	TypeString:        "string",
	TypeText:          "text",
	TypeBytes:         "bytes",
}

// String returns the type name.
func (t ColumnType) String() string {
	if n, ok := typeNames[t]; ok {
		return n
	}
	return "invalid"
}

// ParseColumnType returns the type with the given name, as written by
// String. "timestamp" is accepted for dateTime.
func ParseColumnType(name string) (ColumnType, bool) {
	if strings.EqualFold(name, "timestamp") {
		return TypeDateTime, true
	}
	for t, n := range typeNames {
		if strings.EqualFold(n, name) {
			return t, true
		}
	}
	return 0, false
}

// autoIncrement reports whether the type is an auto-incrementing primary key.
func (t ColumnType) autoIncrement() bool {
	return t == TypeIncrements || t == TypeBigIncrements
}

// DefaultStringSize is the length of string columns declared without one.
const DefaultStringSize = 255

// CascadeAction defines cascade behavior for foreign key constraints.
type CascadeAction string

// Cascade actions.
const (
	Cascade    CascadeAction = "CASCADE"
	SetNull    CascadeAction = "SET NULL"
	Restrict   CascadeAction = "RESTRICT"
	SetDefault CascadeAction = "SET DEFAULT"
	NoAction   CascadeAction = "NO ACTION"
)

// Valid reports whether a is one of the known actions or empty.
func (a CascadeAction) Valid() bool {
	switch a {
	case "", Cascade, SetNull, Restrict, SetDefault, NoAction:
		return true
	}
	return false
}

// Column is a column declaration. Columns are NOT NULL unless marked
// Nullable.
type Column struct {
	Name        string
	Type        ColumnType
	Size        int
	Nullable    bool
	Unique      bool
	Primary     bool
	Unsigned    bool
	Default     *sql.Value
	DefaultExpr string
}

// SetNullable marks the column nullable.
func (c *Column) SetNullable() *Column {
	c.Nullable = true
	return c
}

// NotNull marks the column NOT NULL.
func (c *Column) NotNull() *Column {
	c.Nullable = false
	return c
}

// SetUnique adds a UNIQUE constraint to the column.
func (c *Column) SetUnique() *Column {
	c.Unique = true
	return c
}

// SetPrimary makes the column the primary key.
func (c *Column) SetPrimary() *Column {
	c.Primary = true
	return c
}

// SetUnsigned marks a numeric column unsigned. Dialects without unsigned
// types ignore it.
func (c *Column) SetUnsigned() *Column {
	c.Unsigned = true
	return c
}

// SetDefault sets a literal default value.
func (c *Column) SetDefault(v any) *Column {
	val := sql.ValueOf(v)
	c.Default = &val
	c.DefaultExpr = ""
	return c
}

// SetDefaultExpr sets a default expression such as CURRENT_TIMESTAMP,
// written verbatim.
func (c *Column) SetDefaultExpr(expr string) *Column {
	c.DefaultExpr = expr
	c.Default = nil
	return c
}

// ForeignKey is a foreign key constraint.
type ForeignKey struct {
	Name       string
	Columns    []string
	RefTable   string
	RefColumns []string
	OnDelete   CascadeAction
	OnUpdate   CascadeAction
}

// References sets the referenced columns.
func (fk *ForeignKey) References(columns ...string) *ForeignKey {
	fk.RefColumns = columns
	return fk
}

// On sets the referenced table.
func (fk *ForeignKey) On(table string) *ForeignKey {
	fk.RefTable = table
	return fk
}

// CascadeOnDelete sets the ON DELETE action.
func (fk *ForeignKey) CascadeOnDelete(a CascadeAction) *ForeignKey {
	fk.OnDelete = a
	return fk
}

// CascadeOnUpdate sets the ON UPDATE action.
func (fk *ForeignKey) CascadeOnUpdate(a CascadeAction) *ForeignKey {
	fk.OnUpdate = a
	return fk
}

// Named overrides the generated constraint name.
func (fk *ForeignKey) Named(name string) *ForeignKey {
	fk.Name = name
	return fk
}

// Index is a plain or unique index.
type Index struct {
	Name    string
	Columns []string
	Unique  bool
}

// Named overrides the generated index name.
func (i *Index) Named(name string) *Index {
	i.Name = name
	return i
}

// Rename is a column rename.
type Rename struct {
	From, To string
}

type blueprintMode uint8

const (
	modeCreate blueprintMode = iota
	modeAlter
)

// Blueprint describes the changes of one CREATE TABLE or ALTER TABLE
// step. Column methods append a column and return it for further
// constraints:
//
//	b.Increments("id")
//	b.String("email", 320).SetUnique()
//	b.BigInt("team_id").SetNullable()
//	b.Foreign("team_id").References("id").On("teams").CascadeOnDelete(schema.SetNull)
type Blueprint struct {
	Table       string
	IfNotExists bool
	Columns     []*Column
	PrimaryKey  []string
	Indexes     []*Index
	ForeignKeys []*ForeignKey

	DropColumns  []string
	Renames      []Rename
	DropIndexes  []string
	DropForeigns []string
	// DropPrimaryKey drops the primary key constraint.
	DropPrimaryKey bool

	mode blueprintMode
}

// NewBlueprint returns a blueprint that creates table.
func NewBlueprint(table string) *Blueprint {
	return &Blueprint{Table: table}
}

// AlterBlueprint returns a blueprint that alters table.
func AlterBlueprint(table string) *Blueprint {
	return &Blueprint{Table: table, mode: modeAlter}
}

// Creating reports whether the blueprint creates its table.
func (b *Blueprint) Creating() bool { return b.mode == modeCreate }

// AddColumn appends a column of type t.
func (b *Blueprint) AddColumn(name string, t ColumnType) *Column {
	c := &Column{Name: name, Type: t}
	if t.autoIncrement() {
		c.Primary = true
	}
	b.Columns = append(b.Columns, c)
	return c
}

// Increments adds an auto-incrementing integer primary key.
func (b *Blueprint) Increments(name string) *Column { return b.AddColumn(name, TypeIncrements) }

// BigIncrements adds an auto-incrementing big integer primary key.
func (b *Blueprint) BigIncrements(name string) *Column { return b.AddColumn(name, TypeBigIncrements) }

// Int adds an integer column.
func (b *Blueprint) Int(name string) *Column { return b.AddColumn(name, TypeInt) }

// BigInt adds a big integer column.
func (b *Blueprint) BigInt(name string) *Column { return b.AddColumn(name, TypeBigInt) }

// Double adds a double precision column.
func (b *Blueprint) Double(name string) *Column { return b.AddColumn(name, TypeDouble) }

// Bool adds a boolean column.
func (b *Blueprint) Bool(name string) *Column { return b.AddColumn(name, TypeBool) }

// Date adds a date column.
func (b *Blueprint) Date(name string) *Column { return b.AddColumn(name, TypeDate) }

// DateTime adds a timestamp column with millisecond precision.
func (b *Blueprint) DateTime(name string) *Column { return b.AddColumn(name, TypeDateTime) }

// Timestamp is an alias of DateTime.
func (b *Blueprint) Timestamp(name string) *Column { return b.DateTime(name) }

// UUID adds a UUID column.
func (b *Blueprint) UUID(name string) *Column { return b.AddColumn(name, TypeUUID) }

// JSON adds a JSON column.
func (b *Blueprint) JSON(name string) *Column { return b.AddColumn(name, TypeJSON) }

// String adds a variable length string column. The size defaults to
// DefaultStringSize.
func (b *Blueprint) String(name string, size ...int) *Column {
	c := b.AddColumn(name, TypeString)
	c.Size = DefaultStringSize
	if len(size) > 0 && size[0] > 0 {
		c.Size = size[0]
	}
	return c
}

// Text adds an unbounded text column.
func (b *Blueprint) Text(name string) *Column { return b.AddColumn(name, TypeText) }

// Bytes adds a binary column.
func (b *Blueprint) Bytes(name string) *Column { return b.AddColumn(name, TypeBytes) }

// Timestamps adds nullable created_at and updated_at columns.
func (b *Blueprint) Timestamps() {
	b.DateTime("created_at").SetNullable()
	b.DateTime("updated_at").SetNullable()
}

// Mixin adds a reusable set of columns and indexes to a blueprint.
type Mixin interface {
	Apply(*Blueprint)
}

// Use applies mixins to b in order.
func (b *Blueprint) Use(mixins ...Mixin) {
	for _, m := range mixins {
		m.Apply(b)
	}
}

// Primary sets a composite primary key.
func (b *Blueprint) Primary(columns ...string) {
	b.PrimaryKey = columns
}

// Index adds a plain index. Its name defaults to table_columns_index.
func (b *Blueprint) Index(columns ...string) *Index {
	return b.addIndex(columns, false)
}

// Unique adds a unique index. Its name defaults to table_columns_unique.
func (b *Blueprint) Unique(columns ...string) *Index {
	return b.addIndex(columns, true)
}

func (b *Blueprint) addIndex(columns []string, unique bool) *Index {
	suffix := "index"
	if unique {
		suffix = "unique"
	}
	idx := &Index{
		Name:    indexName(b.Table, columns, suffix),
		Columns: columns,
		Unique:  unique,
	}
	b.Indexes = append(b.Indexes, idx)
	return idx
}

// Foreign adds a foreign key on columns. Its name defaults to
// fk_table_columns.
func (b *Blueprint) Foreign(columns ...string) *ForeignKey {
	fk := &ForeignKey{
		Name:    "fk_" + indexName(b.Table, columns, ""),
		Columns: columns,
	}
	b.ForeignKeys = append(b.ForeignKeys, fk)
	return fk
}

// DropColumn drops columns.
func (b *Blueprint) DropColumn(names ...string) {
	b.DropColumns = append(b.DropColumns, names...)
}

// RenameColumn renames a column.
func (b *Blueprint) RenameColumn(from, to string) {
	b.Renames = append(b.Renames, Rename{From: from, To: to})
}

// DropIndex drops an index by name.
func (b *Blueprint) DropIndex(name string) {
	b.DropIndexes = append(b.DropIndexes, name)
}

// DropPrimary drops the primary key constraint of the table.
func (b *Blueprint) DropPrimary() {
	b.DropPrimaryKey = true
}

// DropForeign drops a foreign key constraint by name.
func (b *Blueprint) DropForeign(name string) {
	b.DropForeigns = append(b.DropForeigns, name)
}

func indexName(table string, columns []string, suffix string) string {
	parts := append([]string{strings.ReplaceAll(table, ".", "_")}, columns...)
	if suffix != "" {
		parts = append(parts, suffix)
	}
	return strings.ToLower(strings.Join(parts, "_"))
}
