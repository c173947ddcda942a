package sql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/syssam/rowlink/dialect"
)

// Executor runs compiled statements. Errors reported by the database are
// returned as they are.
type Executor interface {
	Query(ctx context.Context, query string, args []Value) ([]*Row, error)
	Exec(ctx context.Context, query string, args []Value) (Result, error)
}

// Sessioner is implemented by executors that can run several statements
// on one connection, such as a pooled driver or a transaction.
type Sessioner interface {
	Session(ctx context.Context, fn func(Executor) error) error
}

// TxBeginner is implemented by executors that can start a transaction.
type TxBeginner interface {
	Tx(ctx context.Context) (TxExecutor, error)
}

// TxExecutor is an Executor scoped to a transaction.
type TxExecutor interface {
	Executor
	Commit() error
	Rollback() error
}

// validIdentifierRe validates SQL identifiers (alphanumeric, underscores, dots for schema.name)
var validIdentifierRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_.]*$`)

// isValidIdentifier checks if the string is a valid SQL identifier.
func isValidIdentifier(s string) bool {
	return s != "" && len(s) <= 128 && validIdentifierRe.MatchString(s)
}

// escapeStringValue escapes a string value for safe use in SQL.
// It escapes both single quotes (by doubling) and backslashes (for MySQL compatibility).
func escapeStringValue(s string) string {
	if !strings.ContainsAny(s, `'\`) {
		return s
	}
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "'", "''")
	return s
}

// Driver is an Executor over a database/sql pool.
type Driver struct {
	Conn
	db *sql.DB
}

// Open opens a pool with database/sql and wraps it. The driver name is
// normalized to a dialect, so "sqlite" and "sqlite3" both work as long
// as such a driver is registered.
func Open(driverName, source string) (*Driver, error) {
	d, err := dialect.Normalize(driverName)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driverName, source)
	if err != nil {
		return nil, err
	}
	return OpenDB(d, db), nil
}

// OpenDB wraps the given database/sql.DB with a Driver.
func OpenDB(d string, db *sql.DB) *Driver {
	if n, err := dialect.Normalize(d); err == nil {
		d = n
	}
	return &Driver{Conn: Conn{ExecQuerier: db, dialect: d}, db: db}
}

// DB returns the underlying *sql.DB instance.
func (d *Driver) DB() *sql.DB { return d.db }

// Dialect returns the dialect name.
func (d *Driver) Dialect() string { return d.dialect }

// Tx starts a transaction.
func (d *Driver) Tx(ctx context.Context) (TxExecutor, error) {
	tx, err := d.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// BeginTx starts a transaction with options.
func (d *Driver) BeginTx(ctx context.Context, opts *TxOptions) (*Tx, error) {
	tx, err := d.db.BeginTx(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &Tx{Conn: Conn{ExecQuerier: tx, dialect: d.dialect}, tx: tx}, nil
}

// Session runs fn on a single pooled connection, released when fn
// returns.
func (d *Driver) Session(ctx context.Context, fn func(Executor) error) (rerr error) {
	c, err := d.db.Conn(ctx)
	if err != nil {
		return err
	}
	defer func() { rerr = errors.Join(rerr, c.Close()) }()
	return fn(Conn{ExecQuerier: c, dialect: d.dialect})
}

// Close closes the underlying pool.
func (d *Driver) Close() error { return d.db.Close() }

// Tx is an Executor bound to a database/sql transaction.
type Tx struct {
	Conn
	tx *sql.Tx
}

// Commit commits the transaction.
func (t *Tx) Commit() error { return t.tx.Commit() }

// Rollback aborts the transaction.
func (t *Tx) Rollback() error { return t.tx.Rollback() }

// Session runs fn on the transaction itself, which already owns a
// single connection.
func (t *Tx) Session(_ context.Context, fn func(Executor) error) error {
	return fn(t)
}

// ctxVarsKey is the key used for attaching and reading the context variables.
type ctxVarsKey struct{}

// sessionVars holds sessions/transactions variables to set before every statement.
type sessionVars struct {
	vars []struct{ k, v string }
}

// WithVar returns a new context that holds the session variable to be executed before every query.
func WithVar(ctx context.Context, name, value string) context.Context {
	sv, _ := ctx.Value(ctxVarsKey{}).(sessionVars)
	sv.vars = append(sv.vars, struct {
		k, v string
	}{
		k: name,
		v: value,
	})
	return context.WithValue(ctx, ctxVarsKey{}, sv)
}

// VarFromContext returns the session variable value from the context.
func VarFromContext(ctx context.Context, name string) (string, bool) {
	sv, _ := ctx.Value(ctxVarsKey{}).(sessionVars)
	for _, s := range sv.vars {
		if s.k == name {
			return s.v, true
		}
	}
	return "", false
}

// WithIntVar calls WithVar with the string representation of the value.
func WithIntVar(ctx context.Context, name string, value int) context.Context {
	return WithVar(ctx, name, strconv.Itoa(value))
}

// ExecQuerier wraps the standard Exec and Query methods.
type ExecQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Conn implements Executor on top of an ExecQuerier.
type Conn struct {
	ExecQuerier
	dialect string
}

// NewConn wraps an ExecQuerier (a *sql.DB, *sql.Tx or *sql.Conn).
func NewConn(d string, eq ExecQuerier) Conn {
	return Conn{ExecQuerier: eq, dialect: d}
}

func (c Conn) natives(args []Value) []any {
	argv := make([]any, len(args))
	for i, a := range args {
		argv[i] = a.Native(c.dialect)
	}
	return argv
}

// Exec executes a statement.
func (c Conn) Exec(ctx context.Context, query string, args []Value) (_ Result, rerr error) {
	ex, cf, err := c.maySetVars(ctx)
	if err != nil {
		return nil, fmt.Errorf("sql: exec: set session vars: %w", err)
	}
	if cf != nil {
		defer func() { rerr = errors.Join(rerr, cf()) }()
	}
	return ex.ExecContext(ctx, query, c.natives(args)...)
}

// Query executes a query and reads every row.
func (c Conn) Query(ctx context.Context, query string, args []Value) (_ []*Row, rerr error) {
	ex, cf, err := c.maySetVars(ctx)
	if err != nil {
		return nil, fmt.Errorf("sql: query: set session vars: %w", err)
	}
	if cf != nil {
		defer func() { rerr = errors.Join(rerr, cf()) }()
	}
	rows, err := ex.QueryContext(ctx, query, c.natives(args)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return ScanRows(c.dialect, rows)
}

// ScanRows reads every row of rows. It does not close rows.
func ScanRows(d string, rows ColumnScanner) ([]*Row, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []*Row
	for rows.Next() {
		raw := make([]any, len(columns))
		dest := make([]any, len(columns))
		for i := range raw {
			dest[i] = &raw[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		values := make([]Value, len(columns))
		for i, r := range raw {
			values[i] = FromNative(r)
		}
		out = append(out, NewRow(d, columns, values))
	}
	return out, rows.Err()
}

// maySetVars sets the session variables before executing a query.
func (c Conn) maySetVars(ctx context.Context) (ExecQuerier, func() error, error) {
	sv, _ := ctx.Value(ctxVarsKey{}).(sessionVars)
	if len(sv.vars) == 0 {
		return c.ExecQuerier, nil, nil
	}
	var (
		ex    ExecQuerier  // Underlying ExecQuerier.
		cf    func() error // Close function.
		reset []string     // Reset variables.
		seen  = make(map[string]struct{}, len(sv.vars))
	)
	switch e := c.ExecQuerier.(type) {
	case *sql.Tx, *sql.Conn:
		ex = e
	case *sql.DB:
		conn, err := e.Conn(ctx)
		if err != nil {
			return nil, nil, err
		}
		ex, cf = conn, conn.Close
	default:
		return nil, nil, fmt.Errorf("unsupported ExecQuerier type: %T", c.ExecQuerier)
	}
	for _, s := range sv.vars {
		if !isValidIdentifier(s.k) {
			if cf != nil {
				_ = cf()
			}
			return nil, nil, fmt.Errorf("invalid session variable name: %q", s.k)
		}
		if _, ok := seen[s.k]; !ok {
			switch c.dialect {
			case dialect.Postgres:
				reset = append(reset, fmt.Sprintf("RESET %s", s.k))
			case dialect.MySQL:
				reset = append(reset, fmt.Sprintf("SET %s = NULL", s.k))
			}
			seen[s.k] = struct{}{}
		}
		if _, err := ex.ExecContext(ctx, fmt.Sprintf("SET %s = '%s'", s.k, escapeStringValue(s.v))); err != nil {
			if cf != nil {
				err = errors.Join(err, cf())
			}
			return nil, nil, err
		}
	}
	// Variables set on a pooled connection are reset before it goes back
	// to the pool, even when ctx is already canceled.
	if cls := cf; cf != nil && len(reset) > 0 {
		cf = func() error {
			cleanupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			for _, q := range reset {
				if _, err := ex.ExecContext(cleanupCtx, q); err != nil {
					return errors.Join(err, cls())
				}
			}
			return cls()
		}
	}
	return ex, cf, nil
}

var (
	_ Executor   = (*Driver)(nil)
	_ Sessioner  = (*Driver)(nil)
	_ TxBeginner = (*Driver)(nil)
	_ TxExecutor = (*Tx)(nil)
	_ Sessioner  = (*Tx)(nil)
)

type (
	// Result is an alias to sql.Result.
	Result = sql.Result
	// TxOptions holds the transaction options to be used in DB.BeginTx.
	TxOptions = sql.TxOptions
)

// ColumnScanner is the interface that wraps the standard
// sql.Rows methods used for scanning database rows.
type ColumnScanner interface {
	Close() error
	Columns() ([]string, error)
	Err() error
	Next() bool
	Scan(dest ...any) error
}
