package sql

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/lib/pq"

	"github.com/syssam/rowlink/dialect"
)

// Statement is a compiled SQL statement and its positional arguments.
type Statement struct {
	SQL  string
	Args []Value
}

// Grammar compiles queries into the SQL of one dialect. The set of
// grammars is closed: obtain one with GrammarFor.
type Grammar interface {
	// Dialect returns the dialect name.
	Dialect() string
	// Quote quotes an identifier, including dotted and aliased ones.
	Quote(ident string) (string, error)
	// Placeholder returns the placeholder of the n-th argument (1-based).
	Placeholder(n int) string
	// SupportsReturning reports whether INSERT ... RETURNING is native.
	SupportsReturning() bool

	CompileSelect(q *Query) (string, []Value, error)
	CompileCount(q *Query) (string, []Value, error)
	CompileInsert(q *Query, records []Record) (string, []Value, error)
	// CompileInsertReturning returns the INSERT and, on dialects without
	// RETURNING, a follow-up SELECT of the inserted row keyed by pk.
	CompileInsertReturning(q *Query, record Record, returning []string, pk string) ([]Statement, error)
	CompileUpsert(q *Query, records []Record, conflict, update []string) (string, []Value, error)
	CompileUpdate(q *Query, record Record) (string, []Value, error)
	CompileDelete(q *Query) (string, []Value, error)

	sealed()
}

type pagingStyle uint8

const (
	pagingLimitOffset pagingStyle = iota
	pagingFetch
)

type upsertStyle uint8

const (
	upsertNone upsertStyle = iota
	upsertOnConflict
	upsertOnDuplicateKey
)

// dialectSpec holds every point where the dialects diverge.
type dialectSpec struct {
	name          string
	quote         func(string) string
	numbered      bool
	returning     bool
	lastInsertID  string
	jsonCast      string
	paging        pagingStyle
	maxLimit      string
	lockUpdate    string
	lockShare     string
	lockShareWait string
	lockOptions   bool
	upsert        upsertStyle
	excluded      string
	updateLimit   bool
	defaultValues string
	likeEscape    bool
}

func doubleQuote(s string) string { return `"` + strings.ReplaceAll(s, `"`, `""`) + `"` }

func backtick(s string) string { return "`" + strings.ReplaceAll(s, "`", "``") + "`" }

var dialectSpecs = map[string]*dialectSpec{
	dialect.ANSI: {
		name:          dialect.ANSI,
		quote:         doubleQuote,
		jsonCast:      "CAST(%s AS JSON)",
		paging:        pagingFetch,
		lockUpdate:    "FOR UPDATE",
		defaultValues: "DEFAULT VALUES",
		likeEscape:    true,
	},
	dialect.MySQL: {
		name:          dialect.MySQL,
		quote:         backtick,
		lastInsertID:  "LAST_INSERT_ID()",
		jsonCast:      "CAST(%s AS JSON)",
		maxLimit:      "18446744073709551615",
		lockUpdate:    "FOR UPDATE",
		lockShare:     "FOR SHARE",
		lockShareWait: "LOCK IN SHARE MODE",
		lockOptions:   true,
		upsert:        upsertOnDuplicateKey,
		updateLimit:   true,
		defaultValues: "() VALUES ()",
	},
	dialect.SQLite: {
		name:          dialect.SQLite,
		quote:         doubleQuote,
		returning:     true,
		lastInsertID:  "last_insert_rowid()",
		jsonCast:      "json(%s)",
		maxLimit:      "-1",
		upsert:        upsertOnConflict,
		excluded:      "excluded",
		defaultValues: "DEFAULT VALUES",
		likeEscape:    true,
	},
	dialect.Postgres: {
		name:          dialect.Postgres,
		quote:         pq.QuoteIdentifier,
		numbered:      true,
		returning:     true,
		jsonCast:      "%s::jsonb",
		lockUpdate:    "FOR UPDATE",
		lockShare:     "FOR SHARE",
		lockShareWait: "FOR SHARE",
		lockOptions:   true,
		upsert:        upsertOnConflict,
		excluded:      "EXCLUDED",
		defaultValues: "DEFAULT VALUES",
	},
}

// grammar is the single Grammar implementation, parameterized by the
// dialect table above.
type grammar struct {
	spec *dialectSpec
}

var grammars = func() map[string]*grammar {
	m := make(map[string]*grammar, len(dialectSpecs))
	for name, s := range dialectSpecs {
		m[name] = &grammar{spec: s}
	}
	return m
}()

// GrammarFor returns the grammar of the named dialect. Driver names such
// as "sqlite3" or "pgx" are accepted.
func GrammarFor(name string) (Grammar, error) {
	d, err := dialect.Normalize(name)
	if err != nil {
		return nil, err
	}
	return grammars[d], nil
}

// MustGrammar is like GrammarFor but panics on unknown dialects.
func MustGrammar(name string) Grammar {
	g, err := GrammarFor(name)
	if err != nil {
		panic(err)
	}
	return g
}

func (g *grammar) sealed() {}

func (g *grammar) Dialect() string { return g.spec.name }

func (g *grammar) SupportsReturning() bool { return g.spec.returning }

func (g *grammar) Placeholder(n int) string {
	if g.spec.numbered {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

var identPart = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*$`)

func (g *grammar) Quote(ident string) (string, error) {
	ident = strings.TrimSpace(ident)
	if ident == "*" {
		return ident, nil
	}
	if i := indexAlias(ident); i >= 0 {
		expr, err := g.Quote(ident[:i])
		if err != nil {
			return "", err
		}
		alias := strings.TrimSpace(ident[i+4:])
		if !identPart.MatchString(alias) {
			return "", fmt.Errorf("invalid alias %q", alias)
		}
		return expr + " AS " + g.spec.quote(alias), nil
	}
	parts := strings.Split(ident, ".")
	for i, p := range parts {
		switch {
		case p == "*" && i == len(parts)-1 && i > 0:
		case identPart.MatchString(p):
			parts[i] = g.spec.quote(p)
		default:
			return "", fmt.Errorf("invalid identifier %q", ident)
		}
	}
	return strings.Join(parts, "."), nil
}

// indexAlias returns the position of a case-insensitive " as " in s.
func indexAlias(s string) int {
	return strings.Index(strings.ToLower(s), " as ")
}

// operators lists the comparison operators accepted in clauses.
var operators = map[string]bool{
	"=": true, "!=": true, "<>": true, "<": true, "<=": true, ">": true, ">=": true,
	"LIKE": true, "NOT LIKE": true, "ILIKE": true, "NOT ILIKE": true,
	"IS": true, "IS NOT": true,
}

// builder accumulates SQL text and arguments for one statement. The first
// error stops further output.
type builder struct {
	g      *grammar
	sb     strings.Builder
	args   []Value
	err    error
	table  string
	clause string
}

func (g *grammar) newBuilder(table string) *builder {
	return &builder{g: g, table: table}
}

func (b *builder) write(s ...string) *builder {
	for _, p := range s {
		b.sb.WriteString(p)
	}
	return b
}

func (b *builder) fail(column, format string, args ...any) {
	if b.err == nil {
		b.err = &CompileError{
			Dialect: b.g.spec.name,
			Table:   b.table,
			Column:  column,
			Clause:  b.clause,
			Message: fmt.Sprintf(format, args...),
		}
	}
}

func (b *builder) ident(s string) *builder {
	q, err := b.g.Quote(s)
	if err != nil {
		b.fail(s, "%v", err)
		return b
	}
	return b.write(q)
}

func (b *builder) idents(cols []string) *builder {
	for i, c := range cols {
		if i > 0 {
			b.write(", ")
		}
		b.ident(c)
	}
	return b
}

// arg appends v and writes its placeholder. JSON values are cast with the
// dialect's JSON literal syntax.
func (b *builder) arg(v Value) *builder {
	b.args = append(b.args, v)
	ph := b.g.Placeholder(len(b.args))
	if v.Kind() == KindJSON && b.g.spec.jsonCast != "" {
		ph = fmt.Sprintf(b.g.spec.jsonCast, ph)
	}
	return b.write(ph)
}

// raw writes a fragment, turning each "?" into the next placeholder.
// "??" is written as a literal "?".
func (b *builder) raw(r Raw) *builder {
	n := 0
	for i := 0; i < len(r.SQL); i++ {
		c := r.SQL[i]
		if c != '?' {
			b.sb.WriteByte(c)
			continue
		}
		if i+1 < len(r.SQL) && r.SQL[i+1] == '?' {
			b.sb.WriteByte('?')
			i++
			continue
		}
		if n >= len(r.Args) {
			b.fail("", "raw fragment %q has more placeholders than arguments", r.SQL)
			return b
		}
		b.arg(r.Args[n])
		n++
	}
	if n != len(r.Args) {
		b.fail("", "raw fragment %q has %d placeholders but %d arguments", r.SQL, n, len(r.Args))
	}
	return b
}

func (b *builder) clauses(cs []Clause) *builder {
	for i, c := range cs {
		if i > 0 {
			b.write(" ", c.Boolean.String(), " ")
		}
		b.predicate(c.Predicate)
	}
	return b
}

func (b *builder) operator(column, op string) string {
	op = strings.ToUpper(strings.TrimSpace(op))
	if !operators[op] {
		b.fail(column, "unsupported operator %q", op)
	}
	return op
}

func (b *builder) predicate(p Predicate) {
	switch p := p.(type) {
	case Comparison:
		op := b.operator(p.Column, p.Operator)
		if p.Value.IsNull() {
			switch op {
			case "=", "IS":
				b.ident(p.Column).write(" IS NULL")
			case "!=", "<>", "IS NOT":
				b.ident(p.Column).write(" IS NOT NULL")
			default:
				b.fail(p.Column, "operator %q cannot compare with NULL", op)
			}
			return
		}
		b.ident(p.Column).write(" ", op, " ").arg(p.Value)
		if b.g.spec.likeEscape && strings.HasSuffix(op, "LIKE") {
			// Backslash escapes LIKE wildcards on every dialect.
			b.write(` ESCAPE '\'`)
		}
	case ColumnComparison:
		op := b.operator(p.First, p.Operator)
		b.ident(p.First).write(" ", op, " ").ident(p.Second)
	case In:
		if len(p.Values) == 0 {
			if p.Negated {
				b.write("1 = 1")
			} else {
				b.write("1 = 0")
			}
			return
		}
		b.ident(p.Column)
		if p.Negated {
			b.write(" NOT IN (")
		} else {
			b.write(" IN (")
		}
		for i, v := range p.Values {
			if i > 0 {
				b.write(", ")
			}
			b.arg(v)
		}
		b.write(")")
	case Raw:
		b.raw(p)
	case Group:
		if p.Negated {
			b.write("NOT ")
		}
		b.write("(").clauses(p.Clauses).write(")")
	default:
		b.fail("", "unknown predicate %T", p)
	}
}

func (b *builder) result() (string, []Value, error) {
	if b.err != nil {
		return "", nil, b.err
	}
	return b.sb.String(), b.args, nil
}

// mustTable panics when the query has no table. A missing table is a
// construction bug in the caller, not a runtime condition.
func mustTable(q *Query) string {
	if q == nil || q.table == "" {
		panic("sql: query has no table")
	}
	return q.table
}

func (g *grammar) CompileSelect(q *Query) (string, []Value, error) {
	b := g.newBuilder(mustTable(q))
	b.selectQuery(q)
	return b.result()
}

func (b *builder) selectQuery(q *Query) {
	b.clause = "select"
	b.write("SELECT ")
	if q.distinct {
		b.write("DISTINCT ")
	}
	if len(q.columns) == 0 {
		b.write("*")
	}
	for i, c := range q.columns {
		if i > 0 {
			b.write(", ")
		}
		if c.Raw != "" {
			b.write(c.Raw)
		} else {
			b.ident(c.Column)
		}
	}
	b.write(" FROM ").ident(q.table)
	b.joins(q.joins)
	b.wheres(q.wheres)
	if len(q.groups) > 0 {
		b.clause = "group by"
		b.write(" GROUP BY ").idents(q.groups)
	}
	if len(q.havings) > 0 {
		b.clause = "having"
		b.write(" HAVING ").clauses(q.havings)
	}
	b.orders(q.orders)
	b.paging(q.limit, q.offset)
	b.lock(q.lock)
}

func (b *builder) joins(js []*JoinClause) {
	b.clause = "join"
	for _, j := range js {
		b.write(" ", j.Type.String(), " ").ident(j.Table)
		if j.Type == CrossJoin {
			continue
		}
		if len(j.Conditions) == 0 {
			b.fail(j.Table, "join without ON condition")
			return
		}
		for _, c := range j.Conditions {
			switch c.Predicate.(type) {
			case ColumnComparison, Raw:
			default:
				b.fail(j.Table, "ON conditions must compare columns or be raw, got %T", c.Predicate)
				return
			}
		}
		b.write(" ON ").clauses(j.Conditions)
	}
}

func (b *builder) wheres(cs []Clause) {
	if len(cs) == 0 {
		return
	}
	b.clause = "where"
	b.write(" WHERE ").clauses(cs)
}

func (b *builder) orders(os []Order) {
	if len(os) == 0 {
		return
	}
	b.clause = "order by"
	b.write(" ORDER BY ")
	for i, o := range os {
		if i > 0 {
			b.write(", ")
		}
		if o.Raw != "" {
			b.write(o.Raw)
			continue
		}
		b.ident(o.Column).write(" ", o.Direction.String())
	}
}

func (b *builder) paging(limit, offset *int) {
	s := b.g.spec
	if s.paging == pagingFetch {
		if offset != nil {
			b.write(" OFFSET ", strconv.Itoa(*offset), " ROWS")
		}
		if limit != nil {
			if offset != nil {
				b.write(" FETCH NEXT ", strconv.Itoa(*limit), " ROWS ONLY")
			} else {
				b.write(" FETCH FIRST ", strconv.Itoa(*limit), " ROWS ONLY")
			}
		}
		return
	}
	switch {
	case limit != nil:
		b.write(" LIMIT ", strconv.Itoa(*limit))
	case offset != nil && s.maxLimit != "":
		b.write(" LIMIT ", s.maxLimit)
	}
	if offset != nil {
		b.write(" OFFSET ", strconv.Itoa(*offset))
	}
}

func (b *builder) lock(l *Lock) {
	s := b.g.spec
	if l == nil || s.lockUpdate == "" {
		// SQLite locks whole databases; there is no row lock clause.
		return
	}
	b.clause = "lock"
	switch {
	case l.Strength == LockShare && s.lockShare == "":
		b.fail("", "shared row locks are not supported")
		return
	case l.Wait != Wait && !s.lockOptions:
		b.fail("", "NOWAIT and SKIP LOCKED are not supported")
		return
	}
	switch {
	case l.Strength == LockUpdate:
		b.write(" ", s.lockUpdate)
	case l.Wait == Wait:
		b.write(" ", s.lockShareWait)
	default:
		b.write(" ", s.lockShare)
	}
	switch l.Wait {
	case NoWait:
		b.write(" NOWAIT")
	case SkipLocked:
		b.write(" SKIP LOCKED")
	}
}

func (g *grammar) CompileCount(q *Query) (string, []Value, error) {
	mustTable(q)
	c := q.Clone()
	c.orders, c.limit, c.offset, c.lock = nil, nil, nil, nil
	b := g.newBuilder(q.table)
	if !c.distinct && len(c.groups) == 0 {
		c.columns = []Selection{{Raw: "COUNT(*) AS aggregate"}}
		b.selectQuery(c)
		return b.result()
	}
	b.write("SELECT COUNT(*) AS aggregate FROM (")
	b.selectQuery(c)
	b.write(") AS ").write(g.spec.quote("aggregate_table"))
	return b.result()
}

func (g *grammar) CompileInsert(q *Query, records []Record) (string, []Value, error) {
	b := g.newBuilder(mustTable(q))
	b.insert(q, records)
	return b.result()
}

func (b *builder) insert(q *Query, records []Record) {
	b.clause = "insert"
	if len(records) == 0 {
		b.fail("", "no records to insert")
		return
	}
	b.write("INSERT INTO ").ident(q.table)
	cols := records[0].Columns()
	if len(cols) == 0 {
		if len(records) > 1 {
			b.fail("", "cannot insert several records without columns")
			return
		}
		b.write(" ", b.g.spec.defaultValues)
		return
	}
	b.write(" (").idents(cols).write(") VALUES ")
	for i, r := range records {
		if len(r) != len(cols) {
			b.fail("", "record %d has %d columns, expected %d", i, len(r), len(cols))
			return
		}
		if i > 0 {
			b.write(", ")
		}
		b.write("(")
		for j, c := range cols {
			v, ok := r.Get(c)
			if !ok {
				b.fail(c, "record %d lacks column", i)
				return
			}
			if j > 0 {
				b.write(", ")
			}
			b.arg(v)
		}
		b.write(")")
	}
}

func (g *grammar) CompileInsertReturning(q *Query, record Record, returning []string, pk string) ([]Statement, error) {
	table := mustTable(q)
	b := g.newBuilder(table)
	b.insert(q, []Record{record})
	if g.spec.returning {
		b.write(" RETURNING ")
		if len(returning) == 0 {
			b.write("*")
		} else {
			b.idents(returning)
		}
		query, args, err := b.result()
		if err != nil {
			return nil, err
		}
		return []Statement{{SQL: query, Args: args}}, nil
	}
	insert, insertArgs, err := b.result()
	if err != nil {
		return nil, err
	}
	if pk == "" {
		pk = "id"
	}
	s := g.newBuilder(table)
	s.clause = "returning"
	s.write("SELECT ")
	if len(returning) == 0 {
		s.write("*")
	} else {
		s.idents(returning)
	}
	s.write(" FROM ").ident(table).write(" WHERE ").ident(pk).write(" = ")
	switch v, ok := record.Get(pk); {
	case ok && !v.IsNull():
		s.arg(v)
	case g.spec.lastInsertID != "":
		s.write(g.spec.lastInsertID)
	default:
		s.fail(pk, "the record must carry the primary key to be read back")
	}
	sel, selArgs, err := s.result()
	if err != nil {
		return nil, err
	}
	return []Statement{{SQL: insert, Args: insertArgs}, {SQL: sel, Args: selArgs}}, nil
}

func (g *grammar) CompileUpsert(q *Query, records []Record, conflict, update []string) (string, []Value, error) {
	b := g.newBuilder(mustTable(q))
	b.insert(q, records)
	b.clause = "upsert"
	switch g.spec.upsert {
	case upsertOnConflict:
		if len(conflict) == 0 {
			b.fail("", "upsert requires conflict columns")
			break
		}
		b.write(" ON CONFLICT (").idents(conflict).write(")")
		if len(update) == 0 {
			b.write(" DO NOTHING")
			break
		}
		b.write(" DO UPDATE SET ")
		for i, c := range update {
			if i > 0 {
				b.write(", ")
			}
			b.ident(c).write(" = ", g.spec.excluded, ".").ident(c)
		}
	case upsertOnDuplicateKey:
		b.write(" ON DUPLICATE KEY UPDATE ")
		if len(update) == 0 && len(conflict) > 0 {
			b.ident(conflict[0]).write(" = ").ident(conflict[0])
			break
		}
		for i, c := range update {
			if i > 0 {
				b.write(", ")
			}
			b.ident(c).write(" = VALUES(").ident(c).write(")")
		}
	default:
		b.fail("", "upsert is not supported")
	}
	return b.result()
}

func (g *grammar) CompileUpdate(q *Query, record Record) (string, []Value, error) {
	b := g.newBuilder(mustTable(q))
	b.clause = "update"
	if len(record) == 0 {
		b.fail("", "no columns to update")
		return b.result()
	}
	if len(q.joins) > 0 {
		b.fail("", "joins are not supported in UPDATE")
	}
	b.write("UPDATE ").ident(q.table).write(" SET ")
	for i, a := range record {
		if i > 0 {
			b.write(", ")
		}
		b.ident(a.Column).write(" = ").arg(a.Value)
	}
	b.wheres(q.wheres)
	b.mutationPaging(q, "UPDATE")
	return b.result()
}

func (g *grammar) CompileDelete(q *Query) (string, []Value, error) {
	b := g.newBuilder(mustTable(q))
	b.clause = "delete"
	if len(q.joins) > 0 {
		b.fail("", "joins are not supported in DELETE")
	}
	b.write("DELETE FROM ").ident(q.table)
	b.wheres(q.wheres)
	b.mutationPaging(q, "DELETE")
	return b.result()
}

// mutationPaging renders ORDER BY and LIMIT of UPDATE and DELETE, which
// only MySQL accepts.
func (b *builder) mutationPaging(q *Query, stmt string) {
	if len(q.orders) == 0 && q.limit == nil && q.offset == nil {
		return
	}
	if !b.g.spec.updateLimit || q.offset != nil {
		b.fail("", "ordering or limiting %s is not supported", stmt)
		return
	}
	b.orders(q.orders)
	if q.limit != nil {
		b.write(" LIMIT ", strconv.Itoa(*q.limit))
	}
}

var _ Grammar = (*grammar)(nil)
