package sql

import (
	"reflect"
	"slices"
)

// Selection is a selected column or a raw select expression.
type Selection struct {
	Column string
	Raw    string
}

// Query accumulates the parts of a statement against one table. Builder
// methods mutate the query and return it for chaining. A Query obtained
// from Database.Table is bound to that database and can run terminal
// operations. One created with Table can only be compiled.
type Query struct {
	db       *Database
	table    string
	columns  []Selection
	distinct bool
	joins    []*JoinClause
	wheres   []Clause
	groups   []string
	havings  []Clause
	orders   []Order
	limit    *int
	offset   *int
	lock     *Lock
}

// Table returns an unbound query for the given table.
func Table(name string) *Query {
	return &Query{table: name}
}

// From sets the table.
func (q *Query) From(table string) *Query {
	q.table = table
	return q
}

// TableName returns the query table.
func (q *Query) TableName() string { return q.table }

// Select replaces the selected columns. Without columns the query
// selects "*".
func (q *Query) Select(columns ...string) *Query {
	q.columns = q.columns[:0]
	return q.AddSelect(columns...)
}

// AddSelect appends columns to the selection.
func (q *Query) AddSelect(columns ...string) *Query {
	for _, c := range columns {
		q.columns = append(q.columns, Selection{Column: c})
	}
	return q
}

// SelectRaw appends a raw select expression such as "COUNT(*) AS n".
func (q *Query) SelectRaw(expr string) *Query {
	q.columns = append(q.columns, Selection{Raw: expr})
	return q
}

// Distinct makes the query SELECT DISTINCT.
func (q *Query) Distinct() *Query {
	q.distinct = true
	return q
}

// Where adds "column op value" joined with AND. A nil value compiles to
// IS NULL or IS NOT NULL.
func (q *Query) Where(column, op string, value any) *Query {
	return q.where(And, Comparison{column, op, ValueOf(value)})
}

// OrWhere adds "column op value" joined with OR.
func (q *Query) OrWhere(column, op string, value any) *Query {
	return q.where(Or, Comparison{column, op, ValueOf(value)})
}

// WhereNull adds "column IS NULL".
func (q *Query) WhereNull(column string) *Query {
	return q.where(And, Comparison{column, "=", Null()})
}

// WhereNotNull adds "column IS NOT NULL".
func (q *Query) WhereNotNull(column string) *Query {
	return q.where(And, Comparison{column, "!=", Null()})
}

// OrWhereNull adds "column IS NULL" joined with OR.
func (q *Query) OrWhereNull(column string) *Query {
	return q.where(Or, Comparison{column, "=", Null()})
}

// OrWhereNotNull adds "column IS NOT NULL" joined with OR.
func (q *Query) OrWhereNotNull(column string) *Query {
	return q.where(Or, Comparison{column, "!=", Null()})
}

// WhereColumn adds "first op second" joined with AND.
func (q *Query) WhereColumn(first, op, second string) *Query {
	return q.where(And, ColumnComparison{first, op, second})
}

// OrWhereColumn adds "first op second" joined with OR.
func (q *Query) OrWhereColumn(first, op, second string) *Query {
	return q.where(Or, ColumnComparison{first, op, second})
}

// WhereIn adds "column IN (values)" joined with AND.
func (q *Query) WhereIn(column string, values ...any) *Query {
	return q.where(And, In{Column: column, Values: inValues(values)})
}

// OrWhereIn adds "column IN (values)" joined with OR.
func (q *Query) OrWhereIn(column string, values ...any) *Query {
	return q.where(Or, In{Column: column, Values: inValues(values)})
}

// WhereNotIn adds "column NOT IN (values)" joined with AND.
func (q *Query) WhereNotIn(column string, values ...any) *Query {
	return q.where(And, In{Column: column, Values: inValues(values), Negated: true})
}

// OrWhereNotIn adds "column NOT IN (values)" joined with OR.
func (q *Query) OrWhereNotIn(column string, values ...any) *Query {
	return q.where(Or, In{Column: column, Values: inValues(values), Negated: true})
}

// inValues converts IN arguments. A single slice argument is expanded,
// so WhereIn("id", ids) matches each element of ids. Byte slices stay
// one value.
func inValues(values []any) []Value {
	if len(values) == 1 {
		rv := reflect.ValueOf(values[0])
		if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() != reflect.Uint8 {
			expanded := make([]any, rv.Len())
			for i := range expanded {
				expanded[i] = rv.Index(i).Interface()
			}
			return Values(expanded...)
		}
	}
	return Values(values...)
}

// WhereInValues is WhereIn for values that are already typed.
func (q *Query) WhereInValues(column string, values []Value) *Query {
	return q.where(And, In{Column: column, Values: slices.Clone(values)})
}

// WhereRaw adds a raw fragment joined with AND.
func (q *Query) WhereRaw(sql string, args ...any) *Query {
	return q.where(And, Raw{sql, Values(args...)})
}

// OrWhereRaw adds a raw fragment joined with OR.
func (q *Query) OrWhereRaw(sql string, args ...any) *Query {
	return q.where(Or, Raw{sql, Values(args...)})
}

// WhereGroup runs fn on a fresh query and adds its where clauses as one
// parenthesized group joined with AND. Clauses inside the group join
// with AND unless added with an Or method. An empty group adds nothing.
func (q *Query) WhereGroup(fn func(*Query)) *Query {
	return q.group(And, fn)
}

// OrWhereGroup is WhereGroup joined with OR.
func (q *Query) OrWhereGroup(fn func(*Query)) *Query {
	return q.group(Or, fn)
}

// WhereNot is WhereGroup with the group negated.
func (q *Query) WhereNot(fn func(*Query)) *Query {
	inner := &Query{table: q.table}
	fn(inner)
	if len(inner.wheres) == 0 {
		return q
	}
	return q.where(And, Group{Clauses: inner.wheres, Negated: true})
}

// AddWhere appends a prebuilt clause.
func (q *Query) AddWhere(c Clause) *Query {
	q.wheres = append(q.wheres, c)
	return q
}

func (q *Query) where(b Boolean, p Predicate) *Query {
	q.wheres = append(q.wheres, Clause{Boolean: b, Predicate: p})
	return q
}

func (q *Query) group(b Boolean, fn func(*Query)) *Query {
	inner := &Query{table: q.table}
	fn(inner)
	if len(inner.wheres) == 0 {
		return q
	}
	return q.where(b, Group{Clauses: inner.wheres})
}

// Join adds an inner join on "first op second".
func (q *Query) Join(table, first, op, second string) *Query {
	return q.JoinOn(InnerJoin, table, func(j *JoinClause) { j.On(first, op, second) })
}

// LeftJoin adds a left join on "first op second".
func (q *Query) LeftJoin(table, first, op, second string) *Query {
	return q.JoinOn(LeftJoin, table, func(j *JoinClause) { j.On(first, op, second) })
}

// RightJoin adds a right join on "first op second".
func (q *Query) RightJoin(table, first, op, second string) *Query {
	return q.JoinOn(RightJoin, table, func(j *JoinClause) { j.On(first, op, second) })
}

// OuterJoin adds a full outer join on "first op second".
func (q *Query) OuterJoin(table, first, op, second string) *Query {
	return q.JoinOn(OuterJoin, table, func(j *JoinClause) { j.On(first, op, second) })
}

// CrossJoin adds a cross join.
func (q *Query) CrossJoin(table string) *Query {
	q.joins = append(q.joins, &JoinClause{Type: CrossJoin, Table: table})
	return q
}

// JoinOn adds a join whose ON conditions are built by fn.
func (q *Query) JoinOn(t JoinType, table string, fn func(*JoinClause)) *Query {
	j := &JoinClause{Type: t, Table: table}
	if fn != nil {
		fn(j)
	}
	q.joins = append(q.joins, j)
	return q
}

// GroupBy appends GROUP BY columns.
func (q *Query) GroupBy(columns ...string) *Query {
	q.groups = append(q.groups, columns...)
	return q
}

// Having adds "column op value" to HAVING joined with AND.
func (q *Query) Having(column, op string, value any) *Query {
	q.havings = append(q.havings, Clause{And, Comparison{column, op, ValueOf(value)}})
	return q
}

// OrHaving adds "column op value" to HAVING joined with OR.
func (q *Query) OrHaving(column, op string, value any) *Query {
	q.havings = append(q.havings, Clause{Or, Comparison{column, op, ValueOf(value)}})
	return q
}

// HavingRaw adds a raw HAVING fragment joined with AND.
func (q *Query) HavingRaw(sql string, args ...any) *Query {
	q.havings = append(q.havings, Clause{And, Raw{sql, Values(args...)}})
	return q
}

// OrderBy appends an ORDER BY term.
func (q *Query) OrderBy(column string, dir Direction) *Query {
	q.orders = append(q.orders, Order{Column: column, Direction: dir})
	return q
}

// OrderByDesc appends a descending ORDER BY term.
func (q *Query) OrderByDesc(column string) *Query {
	return q.OrderBy(column, Desc)
}

// OrderByRaw appends a raw ORDER BY expression.
func (q *Query) OrderByRaw(expr string) *Query {
	q.orders = append(q.orders, Order{Raw: expr})
	return q
}

// Limit sets the row limit.
func (q *Query) Limit(n int) *Query {
	q.limit = &n
	return q
}

// Offset sets the row offset.
func (q *Query) Offset(n int) *Query {
	q.offset = &n
	return q
}

// Lock sets the row lock hint.
func (q *Query) Lock(strength LockStrength, wait LockWait) *Query {
	q.lock = &Lock{Strength: strength, Wait: wait}
	return q
}

// ForUpdate locks the selected rows for update.
func (q *Query) ForUpdate() *Query { return q.Lock(LockUpdate, Wait) }

// ForShare takes a shared lock on the selected rows.
func (q *Query) ForShare() *Query { return q.Lock(LockShare, Wait) }

// Wheres returns a copy of the where clauses.
func (q *Query) Wheres() []Clause { return slices.Clone(q.wheres) }

// Clone returns a deep copy of the query, bound to the same database.
func (q *Query) Clone() *Query {
	c := &Query{
		db:       q.db,
		table:    q.table,
		columns:  slices.Clone(q.columns),
		distinct: q.distinct,
		wheres:   slices.Clone(q.wheres),
		groups:   slices.Clone(q.groups),
		havings:  slices.Clone(q.havings),
		orders:   slices.Clone(q.orders),
	}
	for _, j := range q.joins {
		c.joins = append(c.joins, &JoinClause{Type: j.Type, Table: j.Table, Conditions: slices.Clone(j.Conditions)})
	}
	if q.limit != nil {
		n := *q.limit
		c.limit = &n
	}
	if q.offset != nil {
		n := *q.offset
		c.offset = &n
	}
	if q.lock != nil {
		l := *q.lock
		c.lock = &l
	}
	return c
}
