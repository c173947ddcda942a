package mixin

import (
	"context"
	stdsql "database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/syssam/rowlink/dialect"
	"github.com/syssam/rowlink/dialect/sql"
	"github.com/syssam/rowlink/dialect/sql/schema"
	"github.com/syssam/rowlink/dialect/sql/sqlgraph"
)

func freeze(t *testing.T) time.Time {
	t.Helper()
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	now = func() time.Time { return at }
	t.Cleanup(func() { now = time.Now })
	return at
}

func compile(t *testing.T, d string, mixins ...schema.Mixin) []string {
	t.Helper()
	s, err := schema.For(d)
	require.NoError(t, err)
	s.Create("posts", func(b *schema.Blueprint) {
		b.Use(mixins...)
		b.String("title")
	})
	stmts, err := s.Statements()
	require.NoError(t, err)
	return stmts
}

func TestApply(t *testing.T) {
	t.Run("time", func(t *testing.T) {
		assert.Equal(t, []string{
			`CREATE TABLE "posts" ("created_at" TIMESTAMP(3) WITH TIME ZONE NOT NULL DEFAULT CURRENT_TIMESTAMP, "updated_at" TIMESTAMP(3) WITH TIME ZONE NOT NULL DEFAULT CURRENT_TIMESTAMP, "title" VARCHAR(255) NOT NULL)`,
		}, compile(t, dialect.Postgres, Time{}))
	})

	t.Run("id", func(t *testing.T) {
		assert.Equal(t, []string{
			`CREATE TABLE "posts" ("id" UUID NOT NULL, "title" VARCHAR(255) NOT NULL, PRIMARY KEY ("id"))`,
		}, compile(t, dialect.Postgres, ID{}))
	})

	t.Run("soft delete", func(t *testing.T) {
		assert.Equal(t, []string{
			"CREATE TABLE `posts` (`deleted_at` DATETIME(3), `title` VARCHAR(255) NOT NULL) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4",
			"CREATE INDEX `posts_deleted_at_index` ON `posts` (`deleted_at`)",
		}, compile(t, dialect.MySQL, SoftDelete{}))
	})

	t.Run("tenant", func(t *testing.T) {
		stmts := compile(t, dialect.SQLite, TenantID{})
		require.Len(t, stmts, 2)
		assert.Contains(t, stmts[0], `"tenant_id" VARCHAR(64) NOT NULL`)
		assert.Equal(t, `CREATE INDEX "posts_tenant_id_index" ON "posts" ("tenant_id")`, stmts[1])
	})

	t.Run("time soft delete", func(t *testing.T) {
		stmts := compile(t, dialect.SQLite, TimeSoftDelete{})
		require.Len(t, stmts, 2)
		for _, c := range []string{"created_at", "updated_at", "deleted_at"} {
			assert.Contains(t, stmts[0], `"`+c+`"`)
		}
	})
}

func TestInsertUpdate(t *testing.T) {
	at := freeze(t)
	mixins := []schema.Mixin{ID{}, Time{}, TenantID{Tenant: "acme"}}

	r := Insert(sql.RecordOf("title", "hello", "tenant_id", "other"), mixins...)
	assert.Equal(t, []string{"title", "tenant_id", "id", "created_at", "updated_at"}, r.Columns())
	id, _ := r.Get("id")
	assert.Equal(t, sql.KindUUID, id.Kind())
	tenant, _ := r.Get("tenant_id")
	assert.Equal(t, sql.String("acme"), tenant)
	created, _ := r.Get("created_at")
	assert.Equal(t, sql.Date(at), created)

	// Explicit values win over generated ones.
	fixed := uuid.MustParse("6f1d3a52-3c3e-4a43-9b6c-0a7c1b0e2f11")
	earlier := at.Add(-time.Hour)
	r = Insert(sql.RecordOf("id", fixed, "created_at", earlier), mixins...)
	id, _ = r.Get("id")
	assert.Equal(t, sql.UUID(fixed), id)
	created, _ = r.Get("created_at")
	assert.Equal(t, sql.Date(earlier), created)

	r = Update(sql.RecordOf("title", "bye", "updated_at", earlier), mixins...)
	assert.Equal(t, []string{"title", "updated_at"}, r.Columns())
	updated, _ := r.Get("updated_at")
	assert.Equal(t, sql.Date(at), updated)

	assert.Equal(t, sql.RecordOf("deleted_at", at), SoftDelete{}.Record())
}

func TestScope(t *testing.T) {
	q := sql.Table("posts")
	Scope(TimeSoftDelete{}, TenantID{Tenant: "acme"}, ID{})(q)
	query, args, err := sql.MustGrammar(dialect.Postgres).CompileSelect(q)
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "posts" WHERE "posts"."deleted_at" IS NULL AND "posts"."tenant_id" = $1`, query)
	assert.Equal(t, []sql.Value{sql.String("acme")}, args)

	q = sql.Table("posts")
	Scope(TenantID{})(q)
	query, _, err = sql.MustGrammar(dialect.Postgres).CompileSelect(q)
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "posts"`, query)
}

func TestSoftDeleteRelation(t *testing.T) {
	ctx := context.Background()
	conn, err := stdsql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { conn.Close() })
	db := sql.NewDatabase(sql.MustGrammar(dialect.SQLite), sql.OpenDB(dialect.SQLite, conn))

	s, err := schema.For(dialect.SQLite)
	require.NoError(t, err)
	s.Create("users", func(b *schema.Blueprint) {
		b.Increments("id")
		b.String("name")
	})
	s.Create("posts", func(b *schema.Blueprint) {
		b.Increments("id")
		b.Int("user_id")
		b.String("title")
		b.Use(TimeSoftDelete{})
	})
	require.NoError(t, s.Exec(ctx, db))

	_, err = db.Table("users").Insert(ctx, sql.RecordOf("id", 1, "name", "ann"))
	require.NoError(t, err)
	for _, title := range []string{"kept", "gone"} {
		_, err = db.Table("posts").Insert(ctx, Insert(sql.RecordOf("user_id", 1, "title", title), TimeSoftDelete{}))
		require.NoError(t, err)
	}
	n, err := db.Table("posts").Where("title", "=", "gone").Update(ctx, SoftDelete{}.Record())
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	users, err := db.Table("users").All(ctx)
	require.NoError(t, err)
	rel := sqlgraph.HasMany("users", "posts").Where(SoftDelete{}.Scope)
	res, err := sqlgraph.Resolve(ctx, db, rel, sqlgraph.Rows(users))
	require.NoError(t, err)
	require.Len(t, res.Many(0), 1)
	title, err := res.Many(0)[0].String("title")
	require.NoError(t, err)
	assert.Equal(t, "kept", title)
	assert.False(t, res.Many(0)[0].IsNull("created_at"))
}
