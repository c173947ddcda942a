package sql

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/syssam/rowlink"
)

// Database pairs an Executor with the Grammar of its dialect. Every query
// built from it compiles with that grammar and runs on that executor.
type Database struct {
	grammar Grammar
	exec    Executor
	cache   *queryCache
	// written collects the tables changed inside a transaction so their
	// cached results are dropped again after commit.
	written *writeSet
}

// NewDatabase returns a Database. Both arguments are required.
func NewDatabase(g Grammar, e Executor) *Database {
	if g == nil || e == nil {
		panic("sql: NewDatabase requires a grammar and an executor")
	}
	return &Database{grammar: g, exec: e}
}

// DatabaseFor returns a Database over drv using the grammar of the
// driver's dialect.
func DatabaseFor(drv *Driver) (*Database, error) {
	g, err := GrammarFor(drv.Dialect())
	if err != nil {
		return nil, err
	}
	return NewDatabase(g, drv), nil
}

// Grammar returns the database grammar.
func (db *Database) Grammar() Grammar { return db.grammar }

// Executor returns the database executor.
func (db *Database) Executor() Executor { return db.exec }

// WithExecutor returns a Database with the same grammar and cache over e.
func (db *Database) WithExecutor(e Executor) *Database {
	c := NewDatabase(db.grammar, e)
	c.cache = db.cache
	return c
}

// Table returns a query on table bound to db.
func (db *Database) Table(name string) *Query {
	return &Query{db: db, table: name}
}

// Query runs a raw query.
func (db *Database) Query(ctx context.Context, query string, args ...any) ([]*Row, error) {
	return db.exec.Query(ctx, query, Values(args...))
}

// Exec runs a raw statement.
func (db *Database) Exec(ctx context.Context, query string, args ...any) (Result, error) {
	return db.exec.Exec(ctx, query, Values(args...))
}

// Run executes compiled statements in order on one session when the
// executor supports it. It returns the rows of the last statement.
func (db *Database) Run(ctx context.Context, stmts []Statement) ([]*Row, error) {
	run := func(e Executor) ([]*Row, error) {
		var rows []*Row
		for i, s := range stmts {
			var err error
			if i == len(stmts)-1 {
				rows, err = e.Query(ctx, s.SQL, s.Args)
			} else {
				_, err = e.Exec(ctx, s.SQL, s.Args)
			}
			if err != nil {
				return nil, err
			}
		}
		return rows, nil
	}
	s, ok := db.exec.(Sessioner)
	if !ok {
		return run(db.exec)
	}
	var rows []*Row
	err := s.Session(ctx, func(e Executor) error {
		var err error
		rows, err = run(e)
		return err
	})
	return rows, err
}

// Transaction runs fn inside a transaction. The transaction commits when
// fn returns nil and rolls back otherwise. Calling it on a Database that
// already runs in a transaction returns rowlink.ErrTxStarted.
//
// Reads inside fn bypass the cache. Builder writes drop the cached
// results of their table immediately and once more after commit.
func (db *Database) Transaction(ctx context.Context, fn func(*Database) error) error {
	if _, ok := db.exec.(TxExecutor); ok || db.written != nil {
		return rowlink.ErrTxStarted
	}
	b, ok := db.exec.(TxBeginner)
	if !ok {
		return fmt.Errorf("sql: executor %T cannot start transactions", db.exec)
	}
	tx, err := b.Tx(ctx)
	if err != nil {
		return err
	}
	txdb := db.WithExecutor(tx)
	txdb.written = &writeSet{}
	if err := fn(txdb); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			return errors.Join(err, &rowlink.RollbackError{Err: rerr})
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	for _, table := range txdb.written.list() {
		db.invalidate(ctx, table)
	}
	return nil
}

type writeSet struct {
	mu     sync.Mutex
	tables []string
}

func (w *writeSet) add(table string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !slices.Contains(w.tables, table) {
		w.tables = append(w.tables, table)
	}
}

func (w *writeSet) list() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(w.tables)
}

func (q *Query) bound() *Database {
	if q.db == nil {
		panic("sql: query is not bound to a database")
	}
	return q.db
}

// Bind returns a copy of q bound to db.
func (q *Query) Bind(db *Database) *Query {
	c := q.Clone()
	c.db = db
	return c
}

// Compile compiles the query as a SELECT with the bound grammar.
func (q *Query) Compile() (string, []Value, error) {
	return q.bound().grammar.CompileSelect(q)
}

// All runs the query and returns every row.
func (q *Query) All(ctx context.Context) ([]*Row, error) {
	db := q.bound()
	query, args, err := db.grammar.CompileSelect(q)
	if err != nil {
		return nil, err
	}
	return db.read(ctx, q, "all", query, args)
}

// First returns the first row or a *rowlink.NotFoundError.
func (q *Query) First(ctx context.Context) (*Row, error) {
	rows, err := q.Clone().Limit(1).All(ctx)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, rowlink.NewNotFoundError(q.table)
	}
	return rows[0], nil
}

// Count returns the number of rows the query matches.
func (q *Query) Count(ctx context.Context) (int64, error) {
	db := q.bound()
	query, args, err := db.grammar.CompileCount(q)
	if err != nil {
		return 0, err
	}
	rows, err := db.read(ctx, q, "count", query, args)
	if err != nil {
		return 0, err
	}
	if len(rows) != 1 {
		return 0, rowlink.NewNotSingularErrorWithCount(q.table, len(rows))
	}
	return rows[0].Int("aggregate")
}

// Exists reports whether the query matches at least one row.
func (q *Query) Exists(ctx context.Context) (bool, error) {
	c := q.Clone()
	c.columns = []Selection{{Raw: "1"}}
	c.orders = nil
	rows, err := c.Limit(1).All(ctx)
	if err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}

// Page is one page of a paginated query.
type Page struct {
	Rows     []*Row
	Total    int64
	Page     int
	PerPage  int
	LastPage int
}

// Paginate returns the rows of page (1-based) with perPage rows each,
// together with the total row count.
func (q *Query) Paginate(ctx context.Context, page, perPage int) (*Page, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		return nil, fmt.Errorf("sql: paginate: perPage must be positive, got %d", perPage)
	}
	total, err := q.Count(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := q.Clone().Offset((page - 1) * perPage).Limit(perPage).All(ctx)
	if err != nil {
		return nil, err
	}
	last := int((total + int64(perPage) - 1) / int64(perPage))
	if last < 1 {
		last = 1
	}
	return &Page{Rows: rows, Total: total, Page: page, PerPage: perPage, LastPage: last}, nil
}

// Insert inserts records in one statement.
func (q *Query) Insert(ctx context.Context, records ...Record) (Result, error) {
	db := q.bound()
	query, args, err := db.grammar.CompileInsert(q, records)
	if err != nil {
		return nil, err
	}
	defer db.invalidate(ctx, q.table)
	return db.exec.Exec(ctx, query, args)
}

// InsertReturning inserts record and returns the inserted row, reading
// back the given columns (all when empty). The primary key is "id".
func (q *Query) InsertReturning(ctx context.Context, record Record, returning ...string) (*Row, error) {
	return q.InsertReturningPK(ctx, record, "id", returning...)
}

// InsertReturningPK is InsertReturning with an explicit primary key used
// by dialects that read the row back with a second statement.
func (q *Query) InsertReturningPK(ctx context.Context, record Record, pk string, returning ...string) (*Row, error) {
	db := q.bound()
	stmts, err := db.grammar.CompileInsertReturning(q, record, returning, pk)
	if err != nil {
		return nil, err
	}
	rows, err := db.Run(ctx, stmts)
	db.invalidate(ctx, q.table)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, rowlink.NewNotFoundError(q.table)
	}
	return rows[0], nil
}

// Upsert inserts records, updating the update columns of rows that
// conflict on the conflict columns.
func (q *Query) Upsert(ctx context.Context, records []Record, conflict, update []string) (Result, error) {
	db := q.bound()
	query, args, err := db.grammar.CompileUpsert(q, records, conflict, update)
	if err != nil {
		return nil, err
	}
	defer db.invalidate(ctx, q.table)
	return db.exec.Exec(ctx, query, args)
}

// Update updates the matched rows and returns how many were affected.
func (q *Query) Update(ctx context.Context, record Record) (int64, error) {
	db := q.bound()
	query, args, err := db.grammar.CompileUpdate(q, record)
	if err != nil {
		return 0, err
	}
	res, err := db.exec.Exec(ctx, query, args)
	db.invalidate(ctx, q.table)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Delete deletes the matched rows and returns how many were affected.
func (q *Query) Delete(ctx context.Context) (int64, error) {
	db := q.bound()
	query, args, err := db.grammar.CompileDelete(q)
	if err != nil {
		return 0, err
	}
	res, err := db.exec.Exec(ctx, query, args)
	db.invalidate(ctx, q.table)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
