package sqlgraph

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"

	"github.com/syssam/rowlink"
)

// MissingKeyError is returned when an owner has no value for the key a
// relation matches on, such as an owner that was never persisted.
type MissingKeyError struct {
	Relation string
	Key      string
	Index    int
}

// Error returns the error string.
func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("sqlgraph: relation %q: owner %d has no value for key %q", e.Relation, e.Index, e.Key)
}

// IsMissingKeyError reports whether err is, or wraps, a MissingKeyError.
func IsMissingKeyError(err error) bool {
	var e *MissingKeyError
	return errors.As(err, &e)
}

// ThroughError is returned for an unregistered or repeated table on the
// join path of a relation.
type ThroughError struct {
	Relation string
	Table    string
	Reason   string
}

// Error returns the error string.
func (e *ThroughError) Error() string {
	return fmt.Sprintf("sqlgraph: relation %q through %q: %s", e.Relation, e.Table, e.Reason)
}

// IsThroughError reports whether err is, or wraps, a ThroughError.
func IsThroughError(err error) bool {
	var e *ThroughError
	return errors.As(err, &e)
}

// GroupColumnError is returned when the rows of a relation lack the
// column they are regrouped by, typically after a Where scope replaced
// the selected columns.
type GroupColumnError struct {
	Relation string
	Column   string
}

// Error returns the error string.
func (e *GroupColumnError) Error() string {
	return fmt.Sprintf("sqlgraph: relation %q: rows have no %q column to group by", e.Relation, e.Column)
}

// RequiredError is returned by Result.Require when an owner has no
// target.
type RequiredError struct {
	Relation string
	Index    int
}

// Error returns the error string.
func (e *RequiredError) Error() string {
	return fmt.Sprintf("sqlgraph: relation %q: owner %d has no related row", e.Relation, e.Index)
}

// IsRequiredError reports whether err is, or wraps, a RequiredError.
func IsRequiredError(err error) bool {
	var e *RequiredError
	return errors.As(err, &e)
}

// IsConstraintError returns true if the error resulted from a database constraint violation.
func IsConstraintError(err error) bool {
	return rowlink.IsConstraintError(err) ||
		IsUniqueConstraintError(err) ||
		IsForeignKeyConstraintError(err) ||
		IsCheckConstraintError(err)
}

// WrapConstraintError returns err as a rowlink.ConstraintError when it
// is a constraint violation, and err otherwise.
func WrapConstraintError(err error) error {
	if err == nil || rowlink.IsConstraintError(err) || !IsConstraintError(err) {
		return err
	}
	return rowlink.NewConstraintError(err.Error(), err)
}

// sqlStateError is an interface for errors that provide SQLSTATE codes,
// such as pgx errors.
type sqlStateError interface {
	SQLState() string
}

// PostgreSQL SQLSTATE codes for constraint violations (Class 23).
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

// MySQL error numbers for constraint violations.
const (
	mysqlDuplicateEntry         = 1062
	mysqlForeignKeyParent       = 1451 // Cannot delete or update a parent row
	mysqlForeignKeyChild        = 1452 // Cannot add or update a child row
	mysqlCheckConstraintViolate = 3819
)

// sqlState returns the SQLSTATE of a Postgres error in the chain.
func sqlState(err error) (string, bool) {
	var pe *pq.Error
	if errors.As(err, &pe) {
		return string(pe.Code), true
	}
	var se sqlStateError
	if errors.As(err, &se) {
		return se.SQLState(), true
	}
	return "", false
}

// mysqlNumber returns the error number of a MySQL error in the chain.
func mysqlNumber(err error) (uint16, bool) {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number, true
	}
	return 0, false
}

// IsUniqueConstraintError reports if the error resulted from a DB uniqueness constraint violation.
// e.g. duplicate value in unique index.
func IsUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if code, ok := sqlState(err); ok && code == pgUniqueViolation {
		return true
	}
	if n, ok := mysqlNumber(err); ok && n == mysqlDuplicateEntry {
		return true
	}
	// Fallback to string matching for drivers without typed errors.
	return containsAny(err.Error(),
		"Error 1062",                 // MySQL (string fallback)
		"violates unique constraint", // Postgres (string fallback)
		"UNIQUE constraint failed",   // SQLite
	)
}

// IsForeignKeyConstraintError reports if the error resulted from a database foreign-key constraint violation.
// e.g. parent row does not exist.
func IsForeignKeyConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if code, ok := sqlState(err); ok && code == pgForeignKeyViolation {
		return true
	}
	if n, ok := mysqlNumber(err); ok && (n == mysqlForeignKeyParent || n == mysqlForeignKeyChild) {
		return true
	}
	return containsAny(err.Error(),
		"Error 1451",                      // MySQL (Cannot delete or update a parent row)
		"Error 1452",                      // MySQL (Cannot add or update a child row)
		"violates foreign key constraint", // Postgres
		"FOREIGN KEY constraint failed",   // SQLite
	)
}

// IsCheckConstraintError reports if the error resulted from a database check constraint violation.
// e.g. a value does not satisfy a check condition.
func IsCheckConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if code, ok := sqlState(err); ok && code == pgCheckViolation {
		return true
	}
	if n, ok := mysqlNumber(err); ok && n == mysqlCheckConstraintViolate {
		return true
	}
	return containsAny(err.Error(),
		"Error 3819",                // MySQL
		"violates check constraint", // Postgres
		"CHECK constraint failed",   // SQLite
	)
}

// containsAny returns true if s contains any of the substrings.
func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
