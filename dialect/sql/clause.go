package sql

// Boolean is the connective that joins a clause to the one before it.
type Boolean uint8

// Connectives.
const (
	And Boolean = iota
	Or
)

// String returns the SQL keyword.
func (b Boolean) String() string {
	if b == Or {
		return "OR"
	}
	return "AND"
}

// Predicate is one of Comparison, ColumnComparison, In, Raw or Group.
type Predicate interface {
	predicate()
}

// Comparison compares a column with a bound value.
type Comparison struct {
	Column   string
	Operator string
	Value    Value
}

// ColumnComparison compares two columns.
type ColumnComparison struct {
	First    string
	Operator string
	Second   string
}

// In tests a column against a list of bound values. An empty list never
// matches, and an empty negated list always matches.
type In struct {
	Column  string
	Values  []Value
	Negated bool
}

// Raw is a verbatim SQL fragment. Each "?" in SQL is replaced by the
// dialect placeholder of the next argument.
type Raw struct {
	SQL  string
	Args []Value
}

// Group is a parenthesized list of clauses, optionally negated.
type Group struct {
	Clauses []Clause
	Negated bool
}

func (Comparison) predicate()       {}
func (ColumnComparison) predicate() {}
func (In) predicate()               {}
func (Raw) predicate()              {}
func (Group) predicate()            {}

// Clause is a predicate together with the connective that attaches it to
// the preceding clause. The connective of the first clause in a list is
// not rendered.
type Clause struct {
	Boolean   Boolean
	Predicate Predicate
}

// JoinType is the kind of a JOIN.
type JoinType uint8

// Join types.
const (
	InnerJoin JoinType = iota
	LeftJoin
	RightJoin
	OuterJoin
	CrossJoin
)

// String returns the SQL keyword.
func (t JoinType) String() string {
	switch t {
	case LeftJoin:
		return "LEFT JOIN"
	case RightJoin:
		return "RIGHT JOIN"
	case OuterJoin:
		return "FULL OUTER JOIN"
	case CrossJoin:
		return "CROSS JOIN"
	}
	return "JOIN"
}

// JoinClause describes a JOIN. Its ON conditions may only be column
// comparisons or raw fragments and accumulate with AND unless OrOn is
// used.
type JoinClause struct {
	Type       JoinType
	Table      string
	Conditions []Clause
}

// On adds "first op second" joined with AND.
func (j *JoinClause) On(first, op, second string) *JoinClause {
	j.Conditions = append(j.Conditions, Clause{And, ColumnComparison{first, op, second}})
	return j
}

// OrOn adds "first op second" joined with OR.
func (j *JoinClause) OrOn(first, op, second string) *JoinClause {
	j.Conditions = append(j.Conditions, Clause{Or, ColumnComparison{first, op, second}})
	return j
}

// OnRaw adds a raw ON fragment joined with AND.
func (j *JoinClause) OnRaw(sql string, args ...any) *JoinClause {
	j.Conditions = append(j.Conditions, Clause{And, Raw{sql, Values(args...)}})
	return j
}

// Direction is the sort direction of an ORDER BY term.
type Direction uint8

// Sort directions.
const (
	Asc Direction = iota
	Desc
)

// String returns the SQL keyword.
func (d Direction) String() string {
	if d == Desc {
		return "DESC"
	}
	return "ASC"
}

// Order is an ORDER BY term: either a column with a direction or a raw
// expression.
type Order struct {
	Column    string
	Direction Direction
	Raw       string
}

// LockStrength is the row lock requested by a SELECT.
type LockStrength uint8

// Lock strengths.
const (
	LockUpdate LockStrength = iota
	LockShare
)

// LockWait tells the database what to do when rows are already locked.
type LockWait uint8

// Lock wait options.
const (
	Wait LockWait = iota
	NoWait
	SkipLocked
)

// Lock is a row locking hint.
type Lock struct {
	Strength LockStrength
	Wait     LockWait
}
