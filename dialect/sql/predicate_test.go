package sql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/rowlink/dialect"
)

func TestFieldClauses(t *testing.T) {
	var (
		age   = Field[int]("age")
		email = StringField("email")
		role  = Field[string]("role")
	)
	q := Table("users").
		AddWhere(age.GTE(18)).
		AddWhere(OrClause(email.HasSuffix("100%_off"))).
		AddWhere(role.In("admin", "owner")).
		AddWhere(Not(age.IsNull(), role.NEQ("guest")))

	query, args, err := MustGrammar(dialect.Postgres).CompileSelect(q)
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "users" WHERE "age" >= $1 OR "email" LIKE $2 AND "role" IN ($3, $4) AND NOT ("age" IS NULL AND "role" <> $5)`, query)
	assert.Equal(t, Values(18, `%100\%\_off`, "admin", "owner", "guest"), args)

	query, _, err = MustGrammar(dialect.SQLite).CompileSelect(Table("users").AddWhere(email.Contains("a")))
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "users" WHERE "email" LIKE ? ESCAPE '\'`, query)
}

func TestWhereNot(t *testing.T) {
	q := Table("users").Where("a", "=", 1).WhereNot(func(q *Query) {
		q.Where("b", "=", 2).OrWhere("c", "=", 3)
	}).WhereNot(func(*Query) {})
	query, args, err := MustGrammar(dialect.MySQL).CompileSelect(q)
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM `users` WHERE `a` = ? AND NOT (`b` = ? OR `c` = ?)", query)
	assert.Equal(t, Values(1, 2, 3), args)
}

func TestFieldColumnEQ(t *testing.T) {
	c := Field[int]("posts.user_id").ColumnEQ("users.id")
	query, _, err := MustGrammar(dialect.SQLite).CompileSelect(Table("posts").AddWhere(c).AddWhere(Field[int]("id").NotIn()))
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "posts" WHERE "posts"."user_id" = "users"."id" AND 1 = 1`, query)
	assert.Equal(t, "id", Field[int]("id").Name())
}
