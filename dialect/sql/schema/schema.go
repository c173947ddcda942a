package schema

import (
	"context"

	"github.com/syssam/rowlink/dialect/sql"
)

// Schema collects the DDL statements of a migration step. Operations
// compile immediately. The first error is kept and returned by
// Statements, and later operations are ignored.
type Schema struct {
	grammar *Grammar
	stmts   []string
	err     error
}

// New returns a Schema compiling with g.
func New(g *Grammar) *Schema {
	return &Schema{grammar: g}
}

// For returns a Schema for the named dialect.
func For(dialect string) (*Schema, error) {
	g, err := GrammarFor(dialect)
	if err != nil {
		return nil, err
	}
	return New(g), nil
}

// Grammar returns the schema grammar.
func (s *Schema) Grammar() *Grammar { return s.grammar }

// Create creates table with the columns declared by fn.
func (s *Schema) Create(table string, fn func(*Blueprint)) {
	b := NewBlueprint(table)
	fn(b)
	s.Blueprint(b)
}

// CreateIfNotExists is like Create with IF NOT EXISTS.
func (s *Schema) CreateIfNotExists(table string, fn func(*Blueprint)) {
	b := NewBlueprint(table)
	b.IfNotExists = true
	fn(b)
	s.Blueprint(b)
}

// Table alters table with the changes declared by fn.
func (s *Schema) Table(table string, fn func(*Blueprint)) {
	b := AlterBlueprint(table)
	fn(b)
	s.Blueprint(b)
}

// Blueprint validates and compiles b.
func (s *Schema) Blueprint(b *Blueprint) {
	if s.err != nil {
		return
	}
	if err := Validate(b).Err(); err != nil {
		s.err = err
		return
	}
	stmts, err := s.grammar.Compile(b)
	if err != nil {
		s.err = err
		return
	}
	s.stmts = append(s.stmts, stmts...)
}

// Drop drops table.
func (s *Schema) Drop(table string) {
	s.single(s.grammar.CompileDrop(table, false))
}

// DropIfExists drops table if it exists.
func (s *Schema) DropIfExists(table string) {
	s.single(s.grammar.CompileDrop(table, true))
}

// Rename renames table from to to.
func (s *Schema) Rename(from, to string) {
	s.single(s.grammar.CompileRename(from, to))
}

// Raw appends a statement verbatim.
func (s *Schema) Raw(stmt string) {
	s.single(stmt, nil)
}

func (s *Schema) single(stmt string, err error) {
	if s.err != nil {
		return
	}
	if err != nil {
		s.err = err
		return
	}
	s.stmts = append(s.stmts, stmt)
}

// Statements returns the compiled statements, or the first error.
func (s *Schema) Statements() ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.stmts, nil
}

// Exec runs the compiled statements in order on db.
func (s *Schema) Exec(ctx context.Context, db *sql.Database) error {
	stmts, err := s.Statements()
	if err != nil {
		return err
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
