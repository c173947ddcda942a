package sql

import "strings"

// Field is a typed column. Its methods build clauses for Query.AddWhere,
// so callers that declare their columns once get type-checked values:
//
//	var (
//	    UserAge   = sql.Field[int]("age")
//	    UserEmail = sql.StringField("email")
//	)
//	q.AddWhere(UserAge.GTE(18)).AddWhere(sql.OrClause(UserEmail.HasSuffix("@example.com")))
type Field[T any] string

// Name returns the column name.
func (f Field[T]) Name() string { return string(f) }

func (f Field[T]) compare(op string, v T) Clause {
	return Clause{And, Comparison{string(f), op, ValueOf(v)}}
}

// EQ returns a clause that checks if the column equals v.
func (f Field[T]) EQ(v T) Clause { return f.compare("=", v) }

// NEQ returns a clause that checks if the column does not equal v.
func (f Field[T]) NEQ(v T) Clause { return f.compare("<>", v) }

// GT returns a clause that checks if the column is greater than v.
func (f Field[T]) GT(v T) Clause { return f.compare(">", v) }

// GTE returns a clause that checks if the column is greater than or equal to v.
func (f Field[T]) GTE(v T) Clause { return f.compare(">=", v) }

// LT returns a clause that checks if the column is less than v.
func (f Field[T]) LT(v T) Clause { return f.compare("<", v) }

// LTE returns a clause that checks if the column is less than or equal to v.
func (f Field[T]) LTE(v T) Clause { return f.compare("<=", v) }

// In returns a clause that checks if the column value is in vs.
func (f Field[T]) In(vs ...T) Clause {
	return Clause{And, In{Column: string(f), Values: valuesOf(vs)}}
}

// NotIn returns a clause that checks if the column value is not in vs.
func (f Field[T]) NotIn(vs ...T) Clause {
	return Clause{And, In{Column: string(f), Values: valuesOf(vs), Negated: true}}
}

// IsNull returns a clause that checks if the column is NULL.
func (f Field[T]) IsNull() Clause {
	return Clause{And, Comparison{string(f), "=", Null()}}
}

// NotNull returns a clause that checks if the column is not NULL.
func (f Field[T]) NotNull() Clause {
	return Clause{And, Comparison{string(f), "<>", Null()}}
}

// ColumnEQ returns a clause comparing the column with another column.
func (f Field[T]) ColumnEQ(other string) Clause {
	return Clause{And, ColumnComparison{string(f), "=", other}}
}

func valuesOf[T any](vs []T) []Value {
	out := make([]Value, len(vs))
	for i, v := range vs {
		out[i] = ValueOf(v)
	}
	return out
}

// StringField is a typed text column. Pattern helpers escape the LIKE
// wildcards of their argument.
type StringField string

// Field returns the column as a generic Field.
func (f StringField) Field() Field[string] { return Field[string](f) }

// EQ returns a clause that checks if the column equals v.
func (f StringField) EQ(v string) Clause { return f.Field().EQ(v) }

// NEQ returns a clause that checks if the column does not equal v.
func (f StringField) NEQ(v string) Clause { return f.Field().NEQ(v) }

// In returns a clause that checks if the column value is in vs.
func (f StringField) In(vs ...string) Clause { return f.Field().In(vs...) }

// IsNull returns a clause that checks if the column is NULL.
func (f StringField) IsNull() Clause { return f.Field().IsNull() }

// Contains returns a clause that checks if the column contains substr.
func (f StringField) Contains(substr string) Clause {
	return f.like("%" + escapeLike(substr) + "%")
}

// HasPrefix returns a clause that checks if the column starts with prefix.
func (f StringField) HasPrefix(prefix string) Clause {
	return f.like(escapeLike(prefix) + "%")
}

// HasSuffix returns a clause that checks if the column ends with suffix.
func (f StringField) HasSuffix(suffix string) Clause {
	return f.like("%" + escapeLike(suffix))
}

func (f StringField) like(pattern string) Clause {
	return Clause{And, Comparison{string(f), "LIKE", String(pattern)}}
}

// escapeLike escapes the LIKE wildcards and the backslash.
func escapeLike(s string) string {
	if !strings.ContainsAny(s, `%_\`) {
		return s
	}
	var b strings.Builder
	for _, r := range s {
		if r == '%' || r == '_' || r == '\\' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// OrClause returns c joined with OR.
func OrClause(c Clause) Clause {
	c.Boolean = Or
	return c
}

// Not returns the clauses as a negated group.
func Not(cs ...Clause) Clause {
	return Clause{And, Group{Clauses: cs, Negated: true}}
}
