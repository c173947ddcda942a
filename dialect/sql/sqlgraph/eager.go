package sqlgraph

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/syssam/rowlink"
	"github.com/syssam/rowlink/dialect/sql"
)

// Results holds the results of Load by relation name.
type Results map[string]*Result

// Get returns the result of the named relation, or a
// *rowlink.NotLoadedError when it was not part of the Load.
func (r Results) Get(name string) (*Result, error) {
	res, ok := r[name]
	if !ok {
		return nil, rowlink.NewNotLoadedError(name)
	}
	return res, nil
}

// Load resolves several relations for the same owners concurrently and
// returns the results by relation name. The first failure cancels the
// remaining resolutions.
func Load(ctx context.Context, db *sql.Database, owners []Keyed, rels []*Relation, opts ...ResolveOption) (Results, error) {
	names := make(map[string]bool, len(rels))
	for _, rel := range rels {
		if names[rel.Name] {
			return nil, fmt.Errorf("sqlgraph: relation %q is loaded twice", rel.Name)
		}
		names[rel.Name] = true
	}
	var (
		mu  sync.Mutex
		out = make(Results, len(rels))
	)
	g, ctx := errgroup.WithContext(ctx)
	for _, rel := range rels {
		g.Go(func() error {
			res, err := Resolve(ctx, db, rel, owners, opts...)
			if err != nil {
				return err
			}
			mu.Lock()
			out[rel.Name] = res
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
