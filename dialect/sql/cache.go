package sql

import (
	"context"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/syssam/rowlink"
)

type queryCache struct {
	cache rowlink.Cache
	ttl   time.Duration
}

// WithCache returns a Database that serves repeated reads of single-table
// queries from c. Queries with joins or locks always hit the database.
// Inserts, updates and deletes made through the query builder drop every
// cached result of their table.
func (db *Database) WithCache(c rowlink.Cache, ttl time.Duration) *Database {
	return &Database{grammar: db.grammar, exec: db.exec, cache: &queryCache{cache: c, ttl: ttl}, written: db.written}
}

// cachedValue is the msgpack form of a Value.
type cachedValue struct {
	Kind Kind      `msgpack:"k"`
	I    int64     `msgpack:"i,omitempty"`
	F    float64   `msgpack:"f,omitempty"`
	B    bool      `msgpack:"b,omitempty"`
	S    string    `msgpack:"s,omitempty"`
	T    time.Time `msgpack:"t,omitempty"`
	Raw  []byte    `msgpack:"r,omitempty"`
}

type cachedRow struct {
	Columns []string      `msgpack:"c"`
	Values  []cachedValue `msgpack:"v"`
}

// EncodeRows serializes rows with msgpack.
func EncodeRows(rows []*Row) ([]byte, error) {
	out := make([]cachedRow, len(rows))
	for i, r := range rows {
		cr := cachedRow{Columns: r.columns, Values: make([]cachedValue, len(r.values))}
		for j, v := range r.values {
			cv := cachedValue{Kind: v.kind, I: v.i, F: v.f, B: v.b, S: v.s, T: v.t, Raw: v.raw}
			if v.kind == KindUUID {
				cv.Raw = v.u[:]
			}
			cr.Values[j] = cv
		}
		out[i] = cr
	}
	return msgpack.Marshal(out)
}

// DecodeRows reverses EncodeRows.
func DecodeRows(d string, data []byte) ([]*Row, error) {
	var in []cachedRow
	if err := msgpack.Unmarshal(data, &in); err != nil {
		return nil, err
	}
	rows := make([]*Row, len(in))
	for i, cr := range in {
		values := make([]Value, len(cr.Values))
		for j, cv := range cr.Values {
			v := Value{kind: cv.Kind, i: cv.I, f: cv.F, b: cv.B, s: cv.S, t: cv.T, raw: cv.Raw}
			if cv.Kind == KindUUID {
				copy(v.u[:], cv.Raw)
				v.raw = nil
			}
			values[j] = v
		}
		rows[i] = NewRow(d, cr.Columns, values)
	}
	return rows, nil
}

// baseTable strips an alias from a table reference.
func baseTable(t string) string {
	if i := indexAlias(t); i >= 0 {
		return strings.TrimSpace(t[:i])
	}
	return t
}

func cacheable(q *Query) bool {
	return len(q.joins) == 0 && q.lock == nil
}

// read runs a compiled read of q, going through the cache when one is
// configured. Cache failures fall back to the database.
func (db *Database) read(ctx context.Context, q *Query, op, query string, args []Value) ([]*Row, error) {
	if db.cache == nil || db.written != nil || !cacheable(q) {
		return db.exec.Query(ctx, query, args)
	}
	keyArgs := make([]string, len(args))
	for i, a := range args {
		keyArgs[i] = a.Kind().String() + ":" + a.Key()
	}
	key := rowlink.CacheKey{Table: baseTable(q.table), Operation: op, Query: query, Args: keyArgs}.String()
	if data, err := db.cache.cache.Get(ctx, key); err == nil && data != nil {
		if rows, err := DecodeRows(db.grammar.Dialect(), data); err == nil {
			return rows, nil
		}
	}
	rows, err := db.exec.Query(ctx, query, args)
	if err != nil {
		return nil, err
	}
	if data, err := EncodeRows(rows); err == nil {
		_ = db.cache.cache.Set(ctx, key, data, db.cache.ttl)
	}
	return rows, nil
}

// invalidate drops the cached results of table after a write.
func (db *Database) invalidate(ctx context.Context, table string) {
	if db.cache == nil {
		return
	}
	table = baseTable(table)
	_ = db.cache.cache.DeletePrefix(ctx, rowlink.TablePrefix(table))
	if db.written != nil {
		db.written.add(table)
	}
}
