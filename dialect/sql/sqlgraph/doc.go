// Package sqlgraph resolves relations between tables for batches of
// owner rows without issuing one query per owner.
//
// A Relation names an owner table, a target table and the keys joining
// them, optionally through intermediate tables. Keys not given
// explicitly are inferred from table names: the reference key of "posts"
// is "post_id" and the primary key is "id", under the snake case
// convention.
//
//	users, _ := db.Table("users").Where("active", "=", true).All(ctx)
//	posts, err := sqlgraph.Resolve(ctx, db, sqlgraph.HasMany("users", "posts"), sqlgraph.Rows(users))
//	for i := range users {
//	    for _, p := range posts.Many(i) {
//	        ...
//	    }
//	}
//
// Through relations regroup their rows by the from-key of the first hop,
// so a target reachable from several owners is attributed to each of
// them and never to an owner it is not joined to.
package sqlgraph
