// Package dialect names the SQL dialects rowlink compiles for.
//
// The dialect set is closed. Every Grammar in dialect/sql and every schema
// grammar in dialect/sql/schema is keyed by one of these names, and a
// Database handle carries exactly one of them for its whole lifetime.
//
// # Supported Dialects
//
//   - ANSI: generic SQL, unnumbered placeholders, double-quoted identifiers
//   - MySQL: MySQL/MariaDB
//   - SQLite: SQLite 3.35 or newer
//   - Postgres: PostgreSQL
//
// # Dialect Constants
//
//	dialect.ANSI     = "ansi"
//	dialect.MySQL    = "mysql"
//	dialect.SQLite   = "sqlite"
//	dialect.Postgres = "postgres"
//
// # Usage
//
//	import (
//	    "github.com/syssam/rowlink/dialect"
//	    "github.com/syssam/rowlink/dialect/sql"
//	)
//
//	drv, err := sql.Open(dialect.Postgres, "postgres://...")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer drv.Close()
//	db := sql.NewDatabase(drv)
//
// # Sub-packages
//
//   - dialect/sql: values, rows, the query builder, grammars and drivers
//   - dialect/sql/schema: table blueprints, DDL grammars and the migrator
//   - dialect/sql/sqlgraph: relationship declaration and batched resolution
package dialect
