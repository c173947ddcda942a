package sql

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/rowlink"
	"github.com/syssam/rowlink/dialect"
)

func escape(query string) string {
	rows := strings.Split(query, "\n")
	for i := range rows {
		rows[i] = strings.TrimPrefix(rows[i], " ")
	}
	query = strings.Join(rows, " ")
	return strings.TrimSpace(regexp.QuoteMeta(query)) + "$"
}

func mockDatabase(t *testing.T, d string) (*Database, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewDatabase(MustGrammar(d), OpenDB(d, db)), mock
}

func TestNewDatabase(t *testing.T) {
	assert.Panics(t, func() { NewDatabase(nil, nil) })
	assert.Panics(t, func() { NewDatabase(MustGrammar(dialect.MySQL), nil) })
	assert.Panics(t, func() {
		_, _ = Table("users").All(context.Background())
	})

	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	d, err := DatabaseFor(OpenDB("sqlite3", db))
	require.NoError(t, err)
	assert.Equal(t, dialect.SQLite, d.Grammar().Dialect())
}

func TestQueryAll(t *testing.T) {
	db, mock := mockDatabase(t, dialect.Postgres)
	mock.ExpectQuery(escape(`SELECT "id", "name" FROM "users" WHERE "age" > $1 ORDER BY "id" ASC`)).
		WithArgs(30).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(1, "a").AddRow(2, "b"))

	rows, err := db.Table("users").Select("id", "name").Where("age", ">", 30).OrderBy("id", Asc).All(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	name, err := rows[1].String("name")
	require.NoError(t, err)
	assert.Equal(t, "b", name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryFirst(t *testing.T) {
	db, mock := mockDatabase(t, dialect.MySQL)
	mock.ExpectQuery(escape("SELECT * FROM `users` WHERE `id` = ? LIMIT 1")).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := db.Table("users").Where("id", "=", 7).First(context.Background())
	require.True(t, rowlink.IsNotFound(err))

	mock.ExpectQuery(escape("SELECT * FROM `users` WHERE `id` = ? LIMIT 1")).
		WithArgs(8).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(8))
	row, err := db.Table("users").Where("id", "=", 8).First(context.Background())
	require.NoError(t, err)
	id, err := row.Int("id")
	require.NoError(t, err)
	assert.Equal(t, int64(8), id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryCountExists(t *testing.T) {
	db, mock := mockDatabase(t, dialect.Postgres)
	mock.ExpectQuery(escape(`SELECT COUNT(*) AS aggregate FROM "users" WHERE "active" = $1`)).
		WithArgs(true).
		WillReturnRows(sqlmock.NewRows([]string{"aggregate"}).AddRow(3))
	n, err := db.Table("users").Where("active", "=", true).Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	mock.ExpectQuery(escape(`SELECT 1 FROM "users" WHERE "id" = $1 LIMIT 1`)).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	ok, err := db.Table("users").Where("id", "=", 1).OrderBy("id", Desc).Exists(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryPaginate(t *testing.T) {
	db, mock := mockDatabase(t, dialect.SQLite)
	mock.ExpectQuery(escape(`SELECT COUNT(*) AS aggregate FROM "users"`)).
		WillReturnRows(sqlmock.NewRows([]string{"aggregate"}).AddRow(5))
	mock.ExpectQuery(escape(`SELECT * FROM "users" ORDER BY "id" ASC LIMIT 2 OFFSET 2`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3).AddRow(4))

	page, err := db.Table("users").OrderBy("id", Asc).Paginate(context.Background(), 2, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), page.Total)
	assert.Equal(t, 3, page.LastPage)
	assert.Len(t, page.Rows, 2)
	require.NoError(t, mock.ExpectationsWereMet())

	_, err = db.Table("users").Paginate(context.Background(), 1, 0)
	assert.Error(t, err)
}

func TestQueryMutations(t *testing.T) {
	db, mock := mockDatabase(t, dialect.Postgres)
	ctx := context.Background()

	mock.ExpectExec(escape(`INSERT INTO "users" ("name", "age") VALUES ($1, $2), ($3, $4)`)).
		WithArgs("a", 1, "b", 2).
		WillReturnResult(sqlmock.NewResult(0, 2))
	_, err := db.Table("users").Insert(ctx, RecordOf("name", "a", "age", 1), RecordOf("name", "b", "age", 2))
	require.NoError(t, err)

	mock.ExpectQuery(escape(`INSERT INTO "users" ("name") VALUES ($1) RETURNING "id", "name"`)).
		WithArgs("c").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(3, "c"))
	row, err := db.Table("users").InsertReturning(ctx, RecordOf("name", "c"), "id", "name")
	require.NoError(t, err)
	id, err := row.Int("id")
	require.NoError(t, err)
	assert.Equal(t, int64(3), id)

	mock.ExpectExec(escape(`UPDATE "users" SET "name" = $1 WHERE "id" = $2`)).
		WithArgs("d", 3).
		WillReturnResult(sqlmock.NewResult(0, 1))
	n, err := db.Table("users").Where("id", "=", 3).Update(ctx, RecordOf("name", "d"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	mock.ExpectExec(escape(`INSERT INTO "users" ("email", "name") VALUES ($1, $2) ON CONFLICT ("email") DO UPDATE SET "name" = EXCLUDED."name"`)).
		WithArgs("e@x", "e").
		WillReturnResult(sqlmock.NewResult(0, 1))
	_, err = db.Table("users").Upsert(ctx, []Record{RecordOf("email", "e@x", "name", "e")}, []string{"email"}, []string{"name"})
	require.NoError(t, err)

	mock.ExpectExec(escape(`DELETE FROM "users" WHERE "id" IN ($1, $2)`)).
		WithArgs(1, 2).
		WillReturnResult(sqlmock.NewResult(0, 2))
	n, err = db.Table("users").WhereIn("id", 1, 2).Delete(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	require.NoError(t, mock.ExpectationsWereMet())

	_, err = db.Table("users").Where("id", ">", nil).Delete(ctx)
	require.True(t, IsCompileError(err))
}

func TestInsertReturningEmulated(t *testing.T) {
	db, mock := mockDatabase(t, dialect.MySQL)
	mock.ExpectExec(escape("INSERT INTO `users` (`name`) VALUES (?)")).
		WithArgs("a8m").
		WillReturnResult(sqlmock.NewResult(9, 1))
	mock.ExpectQuery(escape("SELECT `id`, `name` FROM `users` WHERE `id` = LAST_INSERT_ID()")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(9, "a8m"))

	row, err := db.Table("users").InsertReturning(context.Background(), RecordOf("name", "a8m"), "id", "name")
	require.NoError(t, err)
	id, err := row.Int("id")
	require.NoError(t, err)
	assert.Equal(t, int64(9), id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransaction(t *testing.T) {
	db, mock := mockDatabase(t, dialect.SQLite)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(escape(`DELETE FROM "users"`)).WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectCommit()
	err := db.Transaction(ctx, func(tx *Database) error {
		_, err := tx.Table("users").Delete(ctx)
		return err
	})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectRollback()
	boom := errors.New("boom")
	err = db.Transaction(ctx, func(*Database) error { return boom })
	require.ErrorIs(t, err, boom)

	mock.ExpectBegin()
	mock.ExpectRollback().WillReturnError(errors.New("conn lost"))
	err = db.Transaction(ctx, func(*Database) error { return boom })
	require.ErrorIs(t, err, boom)
	var rerr *rowlink.RollbackError
	require.ErrorAs(t, err, &rerr)

	mock.ExpectBegin()
	mock.ExpectCommit()
	var nested error
	err = db.Transaction(ctx, func(tx *Database) error {
		nested = tx.Transaction(ctx, func(*Database) error { return nil })
		return nil
	})
	require.NoError(t, err)
	require.ErrorIs(t, nested, rowlink.ErrTxStarted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRawQuery(t *testing.T) {
	db, mock := mockDatabase(t, dialect.Postgres)
	mock.ExpectQuery(escape("SELECT now()")).WillReturnRows(sqlmock.NewRows([]string{"now"}).AddRow(time.Unix(0, 0)))
	rows, err := db.Query(context.Background(), "SELECT now()")
	require.NoError(t, err)
	_, err = rows[0].Date("now")
	require.NoError(t, err)

	mock.ExpectExec(escape("VACUUM")).WillReturnResult(sqlmock.NewResult(0, 0))
	_, err = db.Exec(context.Background(), "VACUUM")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

// mapCache is an in-memory rowlink.Cache without expiry.
type mapCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMapCache() *mapCache { return &mapCache{data: make(map[string][]byte)} }

func (c *mapCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data[key], nil
}

func (c *mapCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *mapCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func (c *mapCache) DeletePrefix(_ context.Context, prefix string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.data {
		if strings.HasPrefix(k, prefix) {
			delete(c.data, k)
		}
	}
	return nil
}

func (c *mapCache) Clear(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string][]byte)
	return nil
}

func TestQueryCache(t *testing.T) {
	base, mock := mockDatabase(t, dialect.Postgres)
	cache := newMapCache()
	db := base.WithCache(cache, time.Minute)
	ctx := context.Background()
	query := escape(`SELECT * FROM "users" WHERE "id" = $1`)

	mock.ExpectQuery(query).WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(1, "a"))
	for range 3 {
		rows, err := db.Table("users").Where("id", "=", 1).All(ctx)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		name, err := rows[0].String("name")
		require.NoError(t, err)
		assert.Equal(t, "a", name)
	}
	require.NoError(t, mock.ExpectationsWereMet())
	assert.Len(t, cache.data, 1)

	// Other tables keep their entries on writes.
	cache.data[rowlink.TablePrefix("posts")+"all:x"] = []byte{1}
	mock.ExpectExec(escape(`UPDATE "users" SET "name" = $1 WHERE "id" = $2`)).
		WithArgs("b", 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	_, err := db.Table("users").Where("id", "=", 1).Update(ctx, RecordOf("name", "b"))
	require.NoError(t, err)
	assert.Len(t, cache.data, 1)

	mock.ExpectQuery(query).WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(1, "b"))
	rows, err := db.Table("users").Where("id", "=", 1).All(ctx)
	require.NoError(t, err)
	name, err := rows[0].String("name")
	require.NoError(t, err)
	assert.Equal(t, "b", name)

	mock.ExpectQuery(escape(`SELECT * FROM "users" WHERE "id" = $1 FOR UPDATE`)).WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	_, err = db.Table("users").Where("id", "=", 1).ForUpdate().All(ctx)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEncodeRows(t *testing.T) {
	in := []*Row{NewRow(dialect.SQLite, []string{"id", "ref", "doc", "at", "gone"}, []Value{
		Int(1),
		UUID([16]byte{1, 2, 3}),
		JSON([]byte(`{"a":1}`)),
		Date(time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)),
		Null(),
	})}
	data, err := EncodeRows(in)
	require.NoError(t, err)
	out, err := DecodeRows(dialect.SQLite, data)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, in[0].Columns(), out[0].Columns())
	for i := range in[0].Columns() {
		want, _ := in[0].At(i)
		got, _ := out[0].At(i)
		assert.True(t, want.Equal(got), "column %d: %v != %v", i, want, got)
	}
}
