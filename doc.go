// Package rowlink holds the types shared by every rowlink package: the
// typed errors returned by queries, relations and migrations, and the
// Cache interface used to memoize query results.
//
// The query engine itself lives in dialect/sql, the schema builder and
// migrator in dialect/sql/schema and the relationship engine in
// dialect/sql/sqlgraph.
//
// # Errors
//
// Errors carry the rowlink prefix and have Is helpers:
//
//	row, err := db.Table("users").Where("id", "=", 7).First(ctx)
//	if rowlink.IsNotFound(err) {
//	    // no such user
//	}
//
// # Cache
//
// A Cache stores encoded query results under keys built by CacheKey.
// Writes through the query builder drop every key of the written table:
//
//	db = db.WithCache(cache.NewMemory(time.Minute), 30*time.Second)
package rowlink
