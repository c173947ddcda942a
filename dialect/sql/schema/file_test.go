package schema

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/rowlink"
	"github.com/syssam/rowlink/dialect"
	"github.com/syssam/rowlink/dialect/sql"
)

const teamsYAML = `
up:
  - create: teams
    columns:
      - {name: id, type: increments}
      - {name: name, type: string, size: 100, unique: true}
      - {name: active, type: bool, default: true}
    timestamps: true
down:
  - drop: teams
`

const membersYAML = `
name: 0002_members
up:
  - create: members
    columns:
      - {name: id, type: bigIncrements}
      - {name: team_id, type: int, nullable: true}
      - {name: email, type: string}
    indexes:
      - {columns: [email], unique: true}
    foreign:
      - {columns: [team_id], references: [id], on: teams, on_delete: SET NULL}
  - table: teams
    columns:
      - {name: motto, type: text, nullable: true}
down:
  - table: teams
    drop_columns: [motto]
  - drop: members
    if_exists: true
`

func TestParseMigration(t *testing.T) {
	t.Parallel()
	m, err := ParseMigration("0002_members_file", []byte(membersYAML))
	require.NoError(t, err)
	assert.Equal(t, "0002_members", m.Name())

	s, err := For(dialect.Postgres)
	require.NoError(t, err)
	m.Up(s)
	stmts, err := s.Statements()
	require.NoError(t, err)
	assert.Equal(t, []string{
		`CREATE TABLE "members" ("id" BIGSERIAL PRIMARY KEY, "team_id" INTEGER, "email" VARCHAR(255) NOT NULL, CONSTRAINT "fk_members_team_id" FOREIGN KEY ("team_id") REFERENCES "teams" ("id") ON DELETE SET NULL)`,
		`CREATE UNIQUE INDEX "members_email_unique" ON "members" ("email")`,
		`ALTER TABLE "teams" ADD COLUMN "motto" TEXT`,
	}, stmts)

	s, err = For(dialect.Postgres)
	require.NoError(t, err)
	m.Down(s)
	stmts, err = s.Statements()
	require.NoError(t, err)
	assert.Equal(t, []string{
		`ALTER TABLE "teams" DROP COLUMN "motto"`,
		`DROP TABLE IF EXISTS "members"`,
	}, stmts)
}

func TestParseMigrationErrors(t *testing.T) {
	t.Parallel()
	_, err := ParseMigration("bad", []byte("up: [{create: a, drop: b}, {table: t, colums: []}]\ndown: [{create: c, columns: [{name: x, type: money}]}]"))
	var agg *rowlink.AggregateError
	require.ErrorAs(t, err, &agg)
	require.Len(t, agg.Errors, 3)
	assert.EqualError(t, agg.Errors[0], `schema: migration "bad" step 1: expected exactly one of create, table, drop, rename or raw`)
	assert.EqualError(t, agg.Errors[1], `schema: migration "bad" step 2: unknown keys colums`)
	assert.EqualError(t, agg.Errors[2], `schema: migration "bad" step 1: column "x": unknown type "money"`)

	_, err = ParseMigration("bad", []byte("up: {"))
	require.Error(t, err)
}

func TestLoadDir(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/0001_teams.yaml":  {Data: []byte(teamsYAML)},
		"migrations/0002_members.yml": {Data: []byte(membersYAML)},
		"migrations/README.md":        {Data: []byte("ignored")},
		"migrations/nested/0003.yaml": {Data: []byte("up: {")},
	}
	migrations, err := LoadDir(fsys, "migrations")
	require.NoError(t, err)
	require.Len(t, migrations, 2)
	assert.Equal(t, "0001_teams", migrations[0].Name())
	assert.Equal(t, "0002_members", migrations[1].Name())

	ctx := context.Background()
	db := sqliteDatabase(t)
	m, err := NewMigrator(db, migrations)
	require.NoError(t, err)
	applied, err := m.Migrate(ctx)
	require.NoError(t, err)
	assert.Len(t, applied, 2)
	assert.True(t, tableExists(t, db, "members"))

	_, err = db.Table("teams").Insert(ctx, sql.RecordOf("name", "core"))
	require.NoError(t, err)
	row, err := db.Table("teams").First(ctx)
	require.NoError(t, err)
	active, err := row.Bool("active")
	require.NoError(t, err)
	assert.True(t, active)
	_, err = db.Table("teams").Insert(ctx, sql.RecordOf("active", false))
	require.Error(t, err, "name is NOT NULL without a default")
	_, err = db.Table("teams").Delete(ctx)
	require.NoError(t, err)

	rolled, err := m.Rollback(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"0002_members", "0001_teams"}, rolled)
	assert.False(t, tableExists(t, db, "teams"))
}

func TestLoadDirErrors(t *testing.T) {
	t.Parallel()
	fsys := fstest.MapFS{
		"m/a.yaml": {Data: []byte("up: {")},
		"m/b.yaml": {Data: []byte("up: [{}]")},
	}
	_, err := LoadDir(fsys, "m")
	var agg *rowlink.AggregateError
	require.ErrorAs(t, err, &agg)
	assert.Len(t, agg.Errors, 2)

	_, err = LoadDir(fsys, "missing")
	require.Error(t, err)
}
