package sql

import (
	"context"
	"fmt"
	"time"
)

// Op is the kind of statement an Executor ran.
type Op string

// Statement kinds.
const (
	OpQuery Op = "query"
	OpExec  Op = "exec"
)

// observer is called after every statement with its outcome.
type observer func(ctx context.Context, op Op, query string, args []Value, start time.Time, err error)

// observed wraps an Executor and reports every statement to an observer.
// Sessions and transactions opened through it are observed too.
type observed struct {
	Executor
	observe observer
}

// Query runs the query and reports it.
func (o *observed) Query(ctx context.Context, query string, args []Value) ([]*Row, error) {
	start := time.Now()
	rows, err := o.Executor.Query(ctx, query, args)
	o.observe(ctx, OpQuery, query, args, start, err)
	return rows, err
}

// Exec runs the statement and reports it.
func (o *observed) Exec(ctx context.Context, query string, args []Value) (Result, error) {
	start := time.Now()
	res, err := o.Executor.Exec(ctx, query, args)
	o.observe(ctx, OpExec, query, args, start, err)
	return res, err
}

// Dialect returns the dialect of the wrapped executor.
func (o *observed) Dialect() string { return dialectOf(o.Executor) }

// Session pins fn to one connection when the wrapped executor can.
func (o *observed) Session(ctx context.Context, fn func(Executor) error) error {
	s, ok := o.Executor.(Sessioner)
	if !ok {
		return fn(o)
	}
	return s.Session(ctx, func(e Executor) error {
		return fn(&observed{Executor: e, observe: o.observe})
	})
}

// Tx starts an observed transaction.
func (o *observed) Tx(ctx context.Context) (TxExecutor, error) {
	b, ok := o.Executor.(TxBeginner)
	if !ok {
		return nil, fmt.Errorf("sql: executor %T cannot start transactions", o.Executor)
	}
	tx, err := b.Tx(ctx)
	if err != nil {
		return nil, err
	}
	return &observedTx{observed: observed{Executor: tx, observe: o.observe}, tx: tx}, nil
}

type observedTx struct {
	observed
	tx TxExecutor
}

func (t *observedTx) Commit() error   { return t.tx.Commit() }
func (t *observedTx) Rollback() error { return t.tx.Rollback() }

// Session runs fn on the transaction.
func (t *observedTx) Session(_ context.Context, fn func(Executor) error) error {
	return fn(t)
}

var (
	_ Sessioner  = (*observed)(nil)
	_ TxBeginner = (*observed)(nil)
	_ TxExecutor = (*observedTx)(nil)
)
