package sql

import (
	"encoding/json"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Row is an ordered set of named values returned by a query. Rows are
// immutable once built.
type Row struct {
	dialect string
	columns []string
	values  []Value
	index   map[string]int
}

// NewRow builds a row for the given dialect. columns and values must have
// the same length.
func NewRow(d string, columns []string, values []Value) *Row {
	if len(columns) != len(values) {
		panic("sql: NewRow: columns and values differ in length")
	}
	r := &Row{
		dialect: d,
		columns: append([]string(nil), columns...),
		values:  append([]Value(nil), values...),
		index:   make(map[string]int, len(columns)),
	}
	for i, c := range r.columns {
		// First occurrence wins, so "SELECT t.*, x.id" keeps the target id.
		if _, ok := r.index[c]; !ok {
			r.index[c] = i
		}
	}
	return r
}

// Columns returns the column names in order.
func (r *Row) Columns() []string { return append([]string(nil), r.columns...) }

// Len returns the number of columns.
func (r *Row) Len() int { return len(r.columns) }

// Get returns the value stored under column. Lookup is exact first and
// then case-insensitive.
func (r *Row) Get(column string) (Value, bool) {
	if i, ok := r.index[column]; ok {
		return r.values[i], true
	}
	for i, c := range r.columns {
		if strings.EqualFold(c, column) {
			return r.values[i], true
		}
	}
	return Value{}, false
}

// At returns the value at position i.
func (r *Row) At(i int) (Value, bool) {
	if i < 0 || i >= len(r.values) {
		return Value{}, false
	}
	return r.values[i], true
}

// Key returns the non-null value stored under column. It makes *Row
// usable as a relationship owner.
func (r *Row) Key(column string) (Value, bool) {
	v, ok := r.Get(column)
	if !ok || v.IsNull() {
		return Value{}, false
	}
	return v, true
}

// Without returns a copy of r without the named columns.
func (r *Row) Without(columns ...string) *Row {
	cols := make([]string, 0, len(r.columns))
	vals := make([]Value, 0, len(r.values))
	for i, c := range r.columns {
		if !slices.Contains(columns, c) {
			cols = append(cols, c)
			vals = append(vals, r.values[i])
		}
	}
	return NewRow(r.dialect, cols, vals)
}

// IsNull reports whether column is present and NULL.
func (r *Row) IsNull(column string) bool {
	v, ok := r.Get(column)
	return ok && v.IsNull()
}

// Map returns the row as a column to Go value map.
func (r *Row) Map() map[string]any {
	m := make(map[string]any, len(r.columns))
	for i, c := range r.columns {
		m[c] = r.values[i].Interface()
	}
	return m
}

func (r *Row) typed(column string, want Kind) (Value, error) {
	v, ok := r.Get(column)
	if !ok {
		return Value{}, &DecodeError{Column: column, Expected: want, Got: "missing"}
	}
	cv, ok := v.coerce(r.dialect, want)
	if !ok {
		return Value{}, &DecodeError{Column: column, Expected: want, Got: v.Kind().String()}
	}
	return cv, nil
}

// Int returns the column as an integer.
func (r *Row) Int(column string) (int64, error) {
	v, err := r.typed(column, KindInt)
	if err != nil {
		return 0, err
	}
	return v.i, nil
}

// Float returns the column as a double.
func (r *Row) Float(column string) (float64, error) {
	v, err := r.typed(column, KindDouble)
	if err != nil {
		return 0, err
	}
	return v.f, nil
}

// Bool returns the column as a boolean. Dialects that store booleans as
// 0/1 integers are read transparently.
func (r *Row) Bool(column string) (bool, error) {
	v, err := r.typed(column, KindBool)
	if err != nil {
		return false, err
	}
	return v.b, nil
}

// String returns the column as text.
func (r *Row) String(column string) (string, error) {
	v, err := r.typed(column, KindString)
	if err != nil {
		return "", err
	}
	return v.s, nil
}

// Date returns the column as a timestamp.
func (r *Row) Date(column string) (time.Time, error) {
	v, err := r.typed(column, KindDate)
	if err != nil {
		return time.Time{}, err
	}
	return v.t, nil
}

// UUID returns the column as a UUID.
func (r *Row) UUID(column string) (uuid.UUID, error) {
	v, err := r.typed(column, KindUUID)
	if err != nil {
		return uuid.Nil, err
	}
	return v.u, nil
}

// JSON returns the column as a raw JSON document.
func (r *Row) JSON(column string) (json.RawMessage, error) {
	v, err := r.typed(column, KindJSON)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(append([]byte(nil), v.raw...)), nil
}

// DecodeJSON unmarshals the JSON column into dst.
func (r *Row) DecodeJSON(column string, dst any) error {
	raw, err := r.JSON(column)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

// Bytes returns the column as raw bytes.
func (r *Row) Bytes(column string) ([]byte, error) {
	v, err := r.typed(column, KindBytes)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), v.raw...), nil
}
