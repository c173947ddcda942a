package sqlgraph

import (
	"context"
	"errors"

	"github.com/syssam/rowlink"
	"github.com/syssam/rowlink/contrib/dataloader"
	"github.com/syssam/rowlink/dialect/sql"
)

// LookupColumn is the alias of the first hop from-key selected by
// through queries to regroup their rows. It is removed from the rows
// returned to callers.
const LookupColumn = "__rowlink_lookup"

// Keyed is a relation owner. *sql.Row implements it.
type Keyed interface {
	// Key returns the non-null value of column, if any.
	Key(column string) (sql.Value, bool)
}

// Result holds the targets of a batch of owners, aligned with them.
type Result struct {
	relation *Relation
	groups   [][]*sql.Row
}

// Len returns the number of owners.
func (r *Result) Len() int { return len(r.groups) }

// Relation returns the resolved relation.
func (r *Result) Relation() *Relation { return r.relation }

// Many returns the targets of owner i.
func (r *Result) Many(i int) []*sql.Row { return r.groups[i] }

// One returns the first target of owner i. Absence is not an error.
func (r *Result) One(i int) (*sql.Row, bool) {
	if len(r.groups[i]) == 0 {
		return nil, false
	}
	return r.groups[i][0], true
}

// Require returns the first target of owner i, or a *RequiredError.
func (r *Result) Require(i int) (*sql.Row, error) {
	row, ok := r.One(i)
	if !ok {
		return nil, &RequiredError{Relation: r.relation.Name, Index: i}
	}
	return row, nil
}

// All returns every target row, in owner order. Rows shared by several
// owners appear once per owner.
func (r *Result) All() []*sql.Row {
	var out []*sql.Row
	for _, g := range r.groups {
		out = append(out, g...)
	}
	return out
}

// ResolveOption configures resolution.
type ResolveOption func(*resolveConfig)

type resolveConfig struct {
	registry  *Registry
	batchSize int
}

// WithRegistry rejects hops through tables missing from reg.
func WithRegistry(reg *Registry) ResolveOption {
	return func(c *resolveConfig) {
		c.registry = reg
	}
}

// WithBatchSize caps the number of owner keys of one query. Larger
// batches run one query per chunk. Zero means no limit.
func WithBatchSize(n int) ResolveOption {
	return func(c *resolveConfig) {
		c.batchSize = n
	}
}

// Resolve loads the targets of rel for every owner with one query, or one
// query per chunk under WithBatchSize, and regroups them by owner.
// Owners sharing a key share their targets. An owner without a value for
// the owner key fails the batch with a *MissingKeyError.
func Resolve(ctx context.Context, db *sql.Database, rel *Relation, owners []Keyed, opts ...ResolveOption) (*Result, error) {
	cfg := &resolveConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if err := cfg.registry.check(rel); err != nil {
		return nil, err
	}
	keys := make([]string, len(owners))
	var distinct []sql.Value
	seen := make(map[string]bool, len(owners))
	for i, o := range owners {
		v, ok := o.Key(rel.OwnerKey)
		if !ok {
			return nil, &MissingKeyError{Relation: rel.Name, Key: rel.OwnerKey, Index: i}
		}
		k := v.Key()
		keys[i] = k
		if !seen[k] {
			seen[k] = true
			distinct = append(distinct, v)
		}
	}
	var rows []*sql.Row
	for _, chunk := range chunks(distinct, cfg.batchSize) {
		chunkRows, err := rel.Query(db, chunk).All(ctx)
		if err != nil {
			return nil, err
		}
		rows = append(rows, chunkRows...)
	}
	column := rel.groupColumn()
	for _, row := range rows {
		if _, ok := row.Get(column); !ok {
			return nil, &GroupColumnError{Relation: rel.Name, Column: column}
		}
	}
	grouped := dataloader.GroupByKey(rows, rel.groupKey)
	if len(rel.Hops) > 0 {
		for _, g := range grouped {
			for i, row := range g {
				g[i] = row.Without(LookupColumn)
			}
		}
	}
	return &Result{relation: rel, groups: dataloader.OrderGroupsByKeys(keys, grouped)}, nil
}

// Query returns the query loading the targets of the given owner keys.
// Through relations join their hops from the target back to the first
// hop and select its from-key as LookupColumn.
func (r *Relation) Query(db *sql.Database, keys []sql.Value) *sql.Query {
	q := db.Table(r.Target)
	if len(r.Hops) == 0 {
		q.WhereInValues(r.Target+"."+r.TargetKey, keys)
	} else {
		q.Select(r.Target + ".*")
		next, nextKey := r.Target, r.TargetKey
		for i := len(r.Hops) - 1; i >= 0; i-- {
			h := r.Hops[i]
			q.Join(h.Table, h.Table+"."+h.ToKey, "=", next+"."+nextKey)
			next, nextKey = h.Table, h.FromKey
		}
		first := r.Hops[0]
		q.WhereInValues(first.Table+"."+first.FromKey, keys)
	}
	for _, scope := range r.scopes {
		scope(q)
	}
	if len(r.Hops) > 0 {
		// Added last so a scope replacing the select list keeps it.
		first := r.Hops[0]
		q.AddSelect(first.Table + "." + first.FromKey + " AS " + LookupColumn)
	}
	return q
}

// groupColumn is the column result rows are regrouped by: the target key
// of direct relations, or the lookup column of through relations.
func (r *Relation) groupColumn() string {
	if len(r.Hops) > 0 {
		return LookupColumn
	}
	return r.TargetKey
}

func (r *Relation) groupKey(row *sql.Row) string {
	v, _ := row.Get(r.groupColumn())
	return v.Key()
}

func chunks(keys []sql.Value, size int) [][]sql.Value {
	if len(keys) == 0 {
		return nil
	}
	if size <= 0 || len(keys) <= size {
		return [][]sql.Value{keys}
	}
	var out [][]sql.Value
	for len(keys) > size {
		out = append(out, keys[:size])
		keys = keys[size:]
	}
	return append(out, keys)
}

// Rows adapts rows to owners.
func Rows(rows []*sql.Row) []Keyed {
	out := make([]Keyed, len(rows))
	for i, r := range rows {
		out[i] = r
	}
	return out
}

// Find loads the rows of table whose column matches keys, aligned with
// keys. Missing keys get a *rowlink.NotFoundError carrying the key and a
// query failure is reported for every key. It has the shape of a DataLoader batch
// function over a unique column.
func Find(ctx context.Context, db *sql.Database, table, column string, keys []sql.Value) ([]*sql.Row, []error) {
	rows, err := db.Table(table).WhereInValues(table+"."+column, keys).All(ctx)
	if err != nil {
		errs := make([]error, len(keys))
		for i := range errs {
			errs[i] = err
		}
		return make([]*sql.Row, len(keys)), errs
	}
	want := make([]string, len(keys))
	for i, k := range keys {
		want[i] = k.Key()
	}
	found, errs := dataloader.OrderByKeys(want, rows, func(r *sql.Row) string {
		v, _ := r.Get(column)
		return v.Key()
	})
	for i, err := range errs {
		if errors.Is(err, dataloader.ErrNotFound) {
			errs[i] = rowlink.NewNotFoundErrorWithID(table, keys[i].Interface())
		}
	}
	return found, errs
}
