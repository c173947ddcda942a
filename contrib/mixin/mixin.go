// Package mixin provides common column sets for schema blueprints,
// together with the record and query helpers that keep them filled in.
//
// These mixins are OPTIONAL and provided as convenient starting points.
// Users are encouraged to create their own mixins tailored to their needs.
//
// Available mixins:
//   - CreateTime: Adds created_at timestamp column
//   - UpdateTime: Adds updated_at timestamp column
//   - Time: Combines CreateTime and UpdateTime
//   - ID: Adds UUID primary key with generation on insert
//   - SoftDelete: Adds deleted_at column for soft deletion
//   - TenantID: Adds tenant_id column for multi-tenancy
//   - TimeSoftDelete: Combines Time and SoftDelete
//
// Usage:
//
//	s.Create("users", func(b *schema.Blueprint) {
//	    b.Use(mixin.ID{}, mixin.Time{}, mixin.SoftDelete{})
//	    b.String("email").SetUnique()
//	})
//
//	mixins := []schema.Mixin{mixin.ID{}, mixin.Time{}, mixin.SoftDelete{}}
//	_, err := db.Table("users").Insert(ctx, mixin.Insert(record, mixins...))
//	rows, err := db.Table("users").WhereGroup(mixin.Scope(mixins...)).All(ctx)
package mixin

import (
	"time"

	"github.com/google/uuid"

	"github.com/syssam/rowlink/dialect/sql"
	"github.com/syssam/rowlink/dialect/sql/schema"
)

// now is the clock of the record helpers.
var now = time.Now

// Inserter fills the columns of a mixin in records being inserted.
type Inserter interface {
	OnInsert(sql.Record) sql.Record
}

// Updater fills the columns of a mixin in records being updated.
type Updater interface {
	OnUpdate(sql.Record) sql.Record
}

// Scoper restricts queries to the rows a mixin keeps visible.
type Scoper interface {
	Scope(*sql.Query)
}

// Insert runs the OnInsert hooks of mixins on r.
func Insert(r sql.Record, mixins ...schema.Mixin) sql.Record {
	for _, m := range mixins {
		if i, ok := m.(Inserter); ok {
			r = i.OnInsert(r)
		}
	}
	return r
}

// Update runs the OnUpdate hooks of mixins on r.
func Update(r sql.Record, mixins ...schema.Mixin) sql.Record {
	for _, m := range mixins {
		if u, ok := m.(Updater); ok {
			r = u.OnUpdate(r)
		}
	}
	return r
}

// Scope returns the combined query scope of mixins. It fits
// Query.WhereGroup and sqlgraph Relation.Where.
func Scope(mixins ...schema.Mixin) func(*sql.Query) {
	return func(q *sql.Query) {
		for _, m := range mixins {
			if s, ok := m.(Scoper); ok {
				s.Scope(q)
			}
		}
	}
}

// setMissing sets column unless r already has it.
func setMissing(r sql.Record, column string, value any) sql.Record {
	if _, ok := r.Get(column); ok {
		return r
	}
	return r.Set(column, value)
}

// CreateTime adds created_at time column.
// The column defaults to the current time and is set on insert.
//
// Generated column:
//
//	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
type CreateTime struct{}

// Apply adds the create time column.
func (CreateTime) Apply(b *schema.Blueprint) {
	b.DateTime("created_at").SetDefaultExpr("CURRENT_TIMESTAMP")
}

// OnInsert sets created_at unless r has it.
func (CreateTime) OnInsert(r sql.Record) sql.Record {
	return setMissing(r, "created_at", now().UTC())
}

// UpdateTime adds updated_at time column.
// The column is set on every insert and update.
//
// Generated column:
//
//	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
type UpdateTime struct{}

// Apply adds the update time column.
func (UpdateTime) Apply(b *schema.Blueprint) {
	b.DateTime("updated_at").SetDefaultExpr("CURRENT_TIMESTAMP")
}

// OnInsert sets updated_at unless r has it.
func (UpdateTime) OnInsert(r sql.Record) sql.Record {
	return setMissing(r, "updated_at", now().UTC())
}

// OnUpdate sets updated_at to the current time.
func (UpdateTime) OnUpdate(r sql.Record) sql.Record {
	return r.Set("updated_at", now().UTC())
}

// Time composes CreateTime and UpdateTime mixins.
// Provides both created_at and updated_at columns.
//
// This is the most common mixin for tracking row timestamps.
type Time struct{}

// Apply adds the create and update time columns.
func (Time) Apply(b *schema.Blueprint) {
	b.Use(CreateTime{}, UpdateTime{})
}

// OnInsert sets both timestamps unless r has them.
func (Time) OnInsert(r sql.Record) sql.Record {
	return Insert(r, CreateTime{}, UpdateTime{})
}

// OnUpdate sets updated_at.
func (Time) OnUpdate(r sql.Record) sql.Record {
	return UpdateTime{}.OnUpdate(r)
}

// ID adds a UUID primary key column.
// Uses github.com/google/uuid to generate keys on insert.
//
// Generated column:
//
//	id UUID NOT NULL PRIMARY KEY
//
// For other key types, such as Snowflake IDs, create your own mixin with
// an Apply and an OnInsert method.
type ID struct{}

// Apply adds the id column.
func (ID) Apply(b *schema.Blueprint) {
	b.UUID("id").SetPrimary()
}

// OnInsert generates an id unless r has one.
func (ID) OnInsert(r sql.Record) sql.Record {
	return setMissing(r, "id", uuid.New())
}

// SoftDelete adds a deleted_at column for soft deletion.
// Rows are not physically deleted but marked with a deletion timestamp,
// and Scope hides them:
//
//	posts := sqlgraph.HasMany("users", "posts").Where(mixin.SoftDelete{}.Scope)
//
// Generated column:
//
//	deleted_at DATETIME NULL
type SoftDelete struct{}

// Apply adds the deleted_at column and its index.
func (SoftDelete) Apply(b *schema.Blueprint) {
	b.DateTime("deleted_at").SetNullable()
	b.Index("deleted_at")
}

// Scope hides soft deleted rows.
func (SoftDelete) Scope(q *sql.Query) {
	q.WhereNull(q.TableName() + ".deleted_at")
}

// Record returns the update marking rows as deleted.
func (SoftDelete) Record() sql.Record {
	return sql.RecordOf("deleted_at", now().UTC())
}

// TenantID adds a tenant_id column for multi-tenancy support.
// A TenantID with a Tenant scopes queries to it and stamps inserted
// records with it, which enables row-level tenant isolation.
//
// For different naming conventions, create your own mixin:
//
//	type WorkspaceID struct{ Workspace string }
//
//	func (WorkspaceID) Apply(b *schema.Blueprint) {
//	    b.String("workspace_id", 64)
//	    b.Index("workspace_id")
//	}
type TenantID struct {
	Tenant string
}

// Apply adds the tenant_id column and its index.
func (TenantID) Apply(b *schema.Blueprint) {
	b.String("tenant_id", 64)
	b.Index("tenant_id")
}

// OnInsert sets tenant_id to the tenant. The tenant cannot be overridden
// by the record.
func (t TenantID) OnInsert(r sql.Record) sql.Record {
	if t.Tenant == "" {
		return r
	}
	return r.Set("tenant_id", t.Tenant)
}

// Scope restricts queries to the rows of the tenant.
func (t TenantID) Scope(q *sql.Query) {
	if t.Tenant != "" {
		q.Where(q.TableName()+".tenant_id", "=", t.Tenant)
	}
}

// TimeSoftDelete composes Time and SoftDelete mixins.
// Provides created_at, updated_at, and deleted_at columns.
//
// This is useful for tables that need a full audit trail with soft deletion.
type TimeSoftDelete struct{}

// Apply adds the time and soft delete columns.
func (TimeSoftDelete) Apply(b *schema.Blueprint) {
	b.Use(Time{}, SoftDelete{})
}

// OnInsert sets the timestamps.
func (TimeSoftDelete) OnInsert(r sql.Record) sql.Record { return Time{}.OnInsert(r) }

// OnUpdate sets updated_at.
func (TimeSoftDelete) OnUpdate(r sql.Record) sql.Record { return Time{}.OnUpdate(r) }

// Scope hides soft deleted rows.
func (TimeSoftDelete) Scope(q *sql.Query) { SoftDelete{}.Scope(q) }

var (
	_ schema.Mixin = CreateTime{}
	_ schema.Mixin = UpdateTime{}
	_ schema.Mixin = Time{}
	_ schema.Mixin = ID{}
	_ schema.Mixin = SoftDelete{}
	_ schema.Mixin = TenantID{}
	_ schema.Mixin = TimeSoftDelete{}

	_ Scoper   = SoftDelete{}
	_ Scoper   = TenantID{}
	_ Inserter = ID{}
	_ Updater  = Time{}
)
