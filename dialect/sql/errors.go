package sql

import (
	"errors"
	"fmt"
	"strings"
)

// CompileError is returned when a query cannot be rendered for a dialect:
// a null value paired with an ordering operator, an unknown operator, an
// invalid identifier or a feature the dialect does not have.
type CompileError struct {
	Dialect string
	Table   string
	Column  string
	Clause  string // e.g. "where", "having", "join", "insert"
	Message string
}

// Error returns the error string.
func (e *CompileError) Error() string {
	var sb strings.Builder
	sb.WriteString("sql: compile")
	if e.Dialect != "" {
		sb.WriteString(" (" + e.Dialect + ")")
	}
	if e.Clause != "" {
		sb.WriteString(" " + e.Clause)
	}
	if e.Table != "" || e.Column != "" {
		sb.WriteString(" ")
		switch {
		case e.Table != "" && e.Column != "":
			sb.WriteString(e.Table + "." + e.Column)
		case e.Table != "":
			sb.WriteString(e.Table)
		default:
			sb.WriteString(e.Column)
		}
	}
	sb.WriteString(": " + e.Message)
	return sb.String()
}

// IsCompileError reports whether err is, or wraps, a CompileError.
func IsCompileError(err error) bool {
	if err == nil {
		return false
	}
	var e *CompileError
	return errors.As(err, &e)
}

// DecodeError is returned by the typed Row accessors when the stored
// value cannot be read as the requested kind, or the column is absent.
type DecodeError struct {
	Column   string
	Expected Kind
	Got      string // stored kind, or "missing"
}

// Error returns the error string.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("sql: decode column %q: expected %s, got %s", e.Column, e.Expected, e.Got)
}

// IsDecodeError reports whether err is, or wraps, a DecodeError.
func IsDecodeError(err error) bool {
	if err == nil {
		return false
	}
	var e *DecodeError
	return errors.As(err, &e)
}
