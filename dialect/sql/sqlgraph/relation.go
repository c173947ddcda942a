package sqlgraph

import (
	"fmt"
	"strings"

	"github.com/syssam/rowlink/dialect/sql"
)

// Cardinality is the number of targets an owner relates to.
type Cardinality uint8

// Cardinalities.
const (
	One Cardinality = iota + 1
	Many
)

// String returns the cardinality name.
func (c Cardinality) String() string {
	switch c {
	case One:
		return "one"
	case Many:
		return "many"
	}
	return "invalid"
}

// Hop is an intermediate table of a through relation. FromKey is the
// column of the hop referencing the previous table (the owner for the
// first hop) and ToKey is the column of the hop referenced by the next
// table (the target for the last hop).
type Hop struct {
	Table   string
	FromKey string
	ToKey   string
}

// Relation describes how the rows of a target table relate to owners.
// Relations are built with HasMany, HasOne or BelongsTo and refined with
// the chained methods, which panic on invalid declarations.
//
//	// users.id = posts.user_id
//	posts := sqlgraph.HasMany("users", "posts")
//
//	// users.id = role_user.user_id, role_user.role_id = roles.id
//	roles := sqlgraph.HasMany("users", "roles").ManyToMany("role_user")
//
//	// countries.id = users.country_id, users.id = posts.user_id
//	posts := sqlgraph.HasMany("countries", "posts").Through("users")
type Relation struct {
	Name        string
	Owner       string
	Target      string
	Cardinality Cardinality
	// OwnerKey is the owner column matched against the target key, or
	// against the from-key of the first hop.
	OwnerKey string
	// TargetKey is the target column matched against the owner key, or
	// against the to-key of the last hop.
	TargetKey string
	Hops      []Hop

	naming         Naming
	belongs        bool
	explicitOwner  bool
	explicitTarget bool
	scopes         []func(*sql.Query)
}

// HasMany relates each owner to the targets referencing it. The owner key
// is the owner primary key and the target key is the owner reference key.
func HasMany(owner, target string) *Relation {
	return newRelation(owner, target, Many)
}

// HasOne is like HasMany with a single target per owner.
func HasOne(owner, target string) *Relation {
	return newRelation(owner, target, One)
}

// BelongsTo relates each owner to the target it references. The owner
// key is the target reference key and the target key is the target
// primary key.
func BelongsTo(owner, target string) *Relation {
	r := newRelation(owner, target, One)
	r.belongs = true
	r.infer()
	return r
}

func newRelation(owner, target string, c Cardinality) *Relation {
	if owner == "" || target == "" {
		panic("sqlgraph: a relation requires an owner and a target table")
	}
	r := &Relation{
		Name:        target,
		Owner:       owner,
		Target:      target,
		Cardinality: c,
	}
	r.infer()
	return r
}

func (r *Relation) infer() {
	if r.belongs {
		r.OwnerKey = r.naming.ReferenceKey(r.Target)
		r.TargetKey = r.naming.PrimaryKey()
		return
	}
	r.OwnerKey = r.naming.PrimaryKey()
	r.TargetKey = r.naming.ReferenceKey(r.Owner)
}

// Named sets the relation name used in errors and by Load.
func (r *Relation) Named(name string) *Relation {
	r.Name = name
	return r
}

// WithNaming re-infers the keys of r with the naming convention n. It
// must be called before any explicit key or hop.
func (r *Relation) WithNaming(n Naming) *Relation {
	if len(r.Hops) > 0 || r.explicitOwner || r.explicitTarget {
		panic("sqlgraph: WithNaming must precede explicit keys and hops")
	}
	r.naming = n
	r.infer()
	return r
}

// Naming returns the naming convention of r.
func (r *Relation) Naming() Naming { return r.naming }

// WithOwnerKey sets the owner key.
func (r *Relation) WithOwnerKey(column string) *Relation {
	mustColumn(column)
	r.OwnerKey = column
	r.explicitOwner = true
	return r
}

// WithTargetKey sets the target key. An explicit target key is kept when
// hops are added later.
func (r *Relation) WithTargetKey(column string) *Relation {
	mustColumn(column)
	r.TargetKey = column
	r.explicitTarget = true
	return r
}

// Through adds an intermediate table. keys optionally set the from-key
// and the to-key of the hop; an empty string keeps the inferred one.
// The from-key defaults to the reference key of the previous table and
// the to-key to the primary key of the hop. Unless set explicitly, the
// target key becomes the reference key of the hop.
func (r *Relation) Through(table string, keys ...string) *Relation {
	if table == "" || len(keys) > 2 {
		panic("sqlgraph: Through expects a table and at most a from-key and a to-key")
	}
	prev := r.Owner
	if n := len(r.Hops); n > 0 {
		prev = r.Hops[n-1].Table
	}
	hop := Hop{
		Table:   table,
		FromKey: r.naming.ReferenceKey(prev),
		ToKey:   r.naming.PrimaryKey(),
	}
	if len(keys) > 0 && keys[0] != "" {
		mustColumn(keys[0])
		hop.FromKey = keys[0]
	}
	if len(keys) > 1 && keys[1] != "" {
		mustColumn(keys[1])
		hop.ToKey = keys[1]
	}
	if len(r.Hops) == 0 && !r.explicitOwner {
		// The owner is matched against the first hop through its primary
		// key, even when the relation started as a BelongsTo.
		r.OwnerKey = r.naming.PrimaryKey()
	}
	r.Hops = append(r.Hops, hop)
	if !r.explicitTarget {
		r.TargetKey = r.naming.ReferenceKey(table)
	}
	return r
}

// ManyToMany adds a pivot table whose to-key references the target, and
// matches it against the target primary key. keys optionally set the
// from-key and the to-key of the pivot as with Through.
func (r *Relation) ManyToMany(pivot string, keys ...string) *Relation {
	to := r.naming.ReferenceKey(r.Target)
	if len(keys) > 1 && keys[1] != "" {
		to = keys[1]
	}
	from := ""
	if len(keys) > 0 {
		from = keys[0]
	}
	r.Through(pivot, from, to)
	if !r.explicitTarget {
		r.TargetKey = r.naming.PrimaryKey()
	}
	r.Cardinality = Many
	return r
}

// Where adds a constraint applied to every query of the relation.
func (r *Relation) Where(fn func(*sql.Query)) *Relation {
	r.scopes = append(r.scopes, fn)
	return r
}

// String describes the relation join path.
func (r *Relation) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s(%s): %s.%s", r.Name, r.Cardinality, r.Owner, r.OwnerKey)
	for _, h := range r.Hops {
		fmt.Fprintf(&sb, " -> %s.%s..%s.%s", h.Table, h.FromKey, h.Table, h.ToKey)
	}
	fmt.Fprintf(&sb, " -> %s.%s", r.Target, r.TargetKey)
	return sb.String()
}

func mustColumn(c string) {
	if !ident.MatchString(c) {
		panic(fmt.Sprintf("sqlgraph: invalid key column %q", c))
	}
}

// Registry holds the tables through relations may traverse.
type Registry struct {
	tables map[string]bool
}

// NewRegistry returns a registry of tables.
func NewRegistry(tables ...string) *Registry {
	r := &Registry{tables: make(map[string]bool)}
	r.Register(tables...)
	return r
}

// Register adds tables to the registry.
func (r *Registry) Register(tables ...string) {
	for _, t := range tables {
		r.tables[t] = true
	}
}

// Has reports whether table is registered.
func (r *Registry) Has(table string) bool { return r.tables[table] }

// check reports unknown and repeated tables on the join path of rel.
func (r *Registry) check(rel *Relation) error {
	seen := map[string]bool{rel.Target: true}
	for _, h := range rel.Hops {
		switch {
		case seen[h.Table]:
			return &ThroughError{Relation: rel.Name, Table: h.Table, Reason: "table appears more than once on the join path"}
		case r != nil && !r.Has(h.Table):
			return &ThroughError{Relation: rel.Name, Table: h.Table, Reason: "table is not registered"}
		}
		seen[h.Table] = true
	}
	return nil
}
