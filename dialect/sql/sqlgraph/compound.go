package sqlgraph

import (
	"context"

	"github.com/syssam/rowlink/dialect/sql"
)

// Node is a target of the first relation of a nested resolution and its
// own targets through the second one.
type Node struct {
	Row      *sql.Row
	Children []*sql.Row
}

// ResolveNested resolves second on the targets of first. It runs two
// batched stages: first for every owner, then second for the flattened
// targets of the first stage. The result is aligned with owners.
func ResolveNested(ctx context.Context, db *sql.Database, first, second *Relation, owners []Keyed, opts ...ResolveOption) ([][]Node, error) {
	outer, err := Resolve(ctx, db, first, owners, opts...)
	if err != nil {
		return nil, err
	}
	flat := outer.All()
	inner, err := Resolve(ctx, db, second, Rows(flat), opts...)
	if err != nil {
		return nil, err
	}
	out := make([][]Node, len(owners))
	pos := 0
	for i := range owners {
		targets := outer.Many(i)
		nodes := make([]Node, len(targets))
		for j, row := range targets {
			nodes[j] = Node{Row: row, Children: inner.Many(pos)}
			pos++
		}
		out[i] = nodes
	}
	return out, nil
}
