package dialect

import (
	"fmt"
	"strings"
)

// Dialect names.
const (
	ANSI     = "ansi"
	MySQL    = "mysql"
	SQLite   = "sqlite"
	Postgres = "postgres"
)

// All lists the supported dialects in a stable order.
var All = []string{ANSI, MySQL, SQLite, Postgres}

// Normalize maps a database/sql driver name to its dialect. Names such
// as "sqlite3", "pgx" or "mysql+debug" resolve to the dialect they
// start with.
func Normalize(name string) (string, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	switch {
	case n == ANSI:
		return ANSI, nil
	case strings.HasPrefix(n, MySQL):
		return MySQL, nil
	case strings.HasPrefix(n, SQLite):
		return SQLite, nil
	case strings.HasPrefix(n, Postgres), n == "pgx", n == "pq":
		return Postgres, nil
	}
	return "", fmt.Errorf("dialect: unsupported dialect %q", name)
}

// DriverName returns the database/sql driver name registered for the
// dialect by the drivers rowlink links in.
func DriverName(d string) string {
	switch d {
	case Postgres:
		return "postgres"
	case MySQL:
		return "mysql"
	case SQLite:
		return "sqlite"
	}
	return d
}
