package sql

// Assignment is one column and its value.
type Assignment struct {
	Column string
	Value  Value
}

// Record is an ordered column to value mapping used by INSERT, UPSERT and
// UPDATE. Column order is the order of the emitted SQL.
type Record []Assignment

// Set returns the record with column set to value. An existing column
// keeps its position.
func (r Record) Set(column string, value any) Record {
	v := ValueOf(value)
	for i := range r {
		if r[i].Column == column {
			out := append(Record(nil), r...)
			out[i].Value = v
			return out
		}
	}
	return append(r, Assignment{Column: column, Value: v})
}

// Get returns the value of column.
func (r Record) Get(column string) (Value, bool) {
	for _, a := range r {
		if a.Column == column {
			return a.Value, true
		}
	}
	return Value{}, false
}

// Columns returns the column names in order.
func (r Record) Columns() []string {
	cols := make([]string, len(r))
	for i, a := range r {
		cols[i] = a.Column
	}
	return cols
}

// RecordOf builds a record from alternating column names and values. It
// panics on an odd number of arguments or a non-string column.
func RecordOf(pairs ...any) Record {
	if len(pairs)%2 != 0 {
		panic("sql: RecordOf expects column/value pairs")
	}
	r := make(Record, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		c, ok := pairs[i].(string)
		if !ok {
			panic("sql: RecordOf column must be a string")
		}
		r = r.Set(c, pairs[i+1])
	}
	return r
}
