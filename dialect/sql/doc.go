// Package sql provides the query builder, the dialect grammars and the
// database/sql based executor of rowlink.
//
// A Query accumulates the parts of a statement against one table. A
// Grammar compiles it into the SQL text and positional arguments of one
// dialect (ANSI, MySQL, SQLite or PostgreSQL), and an Executor runs the
// result.
//
// # Building queries
//
//	drv, err := sql.Open("postgres", dsn)
//	if err != nil {
//	    return err
//	}
//	db, err := sql.DatabaseFor(drv)
//	if err != nil {
//	    return err
//	}
//	rows, err := db.Table("users").
//	    Select("id", "name").
//	    Where("age", ">", 18).
//	    WhereGroup(func(q *sql.Query) {
//	        q.Where("role", "=", "admin").OrWhere("role", "=", "owner")
//	    }).
//	    OrderByDesc("created_at").
//	    Limit(10).
//	    All(ctx)
//
// Comparing with nil compiles to IS NULL or IS NOT NULL. An empty IN list
// compiles to a predicate that never matches, and an empty NOT IN list to
// one that always does.
//
// # Typed columns
//
// Field and StringField build clauses with type-checked values:
//
//	var Age = sql.Field[int]("age")
//	q.AddWhere(Age.GTE(18))
//
// # Values and rows
//
// Arguments and results are Values: a closed set of kinds (null, int,
// double, bool, string, date, uuid, json and bytes). Each Grammar encodes
// them for its driver, so booleans travel as 0/1 on MySQL and SQLite and
// dates as text on SQLite. Row accessors decode them back:
//
//	id, err := row.Int("id")
//	born, err := row.Date("born_at")
//
// # Mutations
//
// Insert, InsertReturning, Upsert, Update and Delete compile with the same
// grammar. Dialects without RETURNING read the inserted row back in the
// same session.
//
// # Drivers
//
// StatsDriver, DebugDriver, MetricsDriver and TraceDriver wrap any
// Executor and observe every statement, including the ones run inside
// sessions and transactions:
//
//	exec := sql.NewTraceDriver(sql.NewStatsDriver(drv, sql.WithSlowQueryLog(nil)))
//	db := sql.NewDatabase(sql.MustGrammar(drv.Dialect()), exec)
package sql
