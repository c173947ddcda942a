package schema

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Table   string
	Column  string
	Message string
	// Breaking indicates if this is a breaking change.
	Breaking bool
}

func (e *ValidationError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("schema: %s.%s: %s", e.Table, e.Column, e.Message)
	}
	return fmt.Sprintf("schema: %s: %s", e.Table, e.Message)
}

// IsValidationError reports whether err is, or wraps, a ValidationError.
func IsValidationError(err error) bool {
	if err == nil {
		return false
	}
	var e *ValidationError
	return errors.As(err, &e)
}

// ValidationResult holds the results of schema validation.
type ValidationResult struct {
	Errors   []*ValidationError
	Warnings []*ValidationError
}

// HasErrors returns true if there are any validation errors.
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings.
func (r *ValidationResult) HasWarnings() bool {
	return len(r.Warnings) > 0
}

// HasBreakingChanges returns true if there are any breaking changes.
func (r *ValidationResult) HasBreakingChanges() bool {
	for _, e := range r.Errors {
		if e.Breaking {
			return true
		}
	}
	for _, w := range r.Warnings {
		if w.Breaking {
			return true
		}
	}
	return false
}

// Err returns the errors joined into one, or nil when there are none.
// Warnings are not errors.
func (r *ValidationResult) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	errs := make([]error, len(r.Errors))
	for i, e := range r.Errors {
		errs[i] = e
	}
	return errors.Join(errs...)
}

func (r *ValidationResult) errorf(table, column string, breaking bool, format string, args ...any) {
	r.Errors = append(r.Errors, &ValidationError{Table: table, Column: column, Message: fmt.Sprintf(format, args...), Breaking: breaking})
}

func (r *ValidationResult) warnf(table, column string, breaking bool, format string, args ...any) {
	r.Warnings = append(r.Warnings, &ValidationError{Table: table, Column: column, Message: fmt.Sprintf(format, args...), Breaking: breaking})
}

// String returns a human-readable summary of the validation result.
func (r *ValidationResult) String() string {
	var sb strings.Builder
	if len(r.Errors) > 0 {
		sb.WriteString("Errors:\n")
		for _, e := range r.Errors {
			sb.WriteString("  - ")
			sb.WriteString(e.Error())
			if e.Breaking {
				sb.WriteString(" [BREAKING]")
			}
			sb.WriteString("\n")
		}
	}
	if len(r.Warnings) > 0 {
		sb.WriteString("Warnings:\n")
		for _, w := range r.Warnings {
			sb.WriteString("  - ")
			sb.WriteString(w.Error())
			if w.Breaking {
				sb.WriteString(" [BREAKING]")
			}
			sb.WriteString("\n")
		}
	}
	if !r.HasErrors() && !r.HasWarnings() {
		sb.WriteString("No issues found")
	}
	return sb.String()
}

// ValidateOption configures schema validation.
type ValidateOption func(*validateConfig)

type validateConfig struct {
	allowDropColumn    bool
	allowDropTable     bool
	allowDropIndex     bool
	allowNullToNotNull bool
}

// AllowDropColumn allows dropping columns without error.
func AllowDropColumn() ValidateOption {
	return func(c *validateConfig) {
		c.allowDropColumn = true
	}
}

// AllowDropTable allows dropping tables without error.
func AllowDropTable() ValidateOption {
	return func(c *validateConfig) {
		c.allowDropTable = true
	}
}

// AllowDropIndex allows dropping indexes without error.
func AllowDropIndex() ValidateOption {
	return func(c *validateConfig) {
		c.allowDropIndex = true
	}
}

// AllowNullToNotNull allows changing nullable columns to not null.
func AllowNullToNotNull() ValidateOption {
	return func(c *validateConfig) {
		c.allowNullToNotNull = true
	}
}

func (r *ValidationResult) gate(allowed bool, e *ValidationError) {
	if allowed {
		r.Warnings = append(r.Warnings, e)
	} else {
		r.Errors = append(r.Errors, e)
	}
}

// ValidateDiff validates moving from the current table definitions to the
// desired ones. Both sides are CREATE blueprints describing whole tables.
// It returns errors for breaking changes and warnings for potentially
// dangerous operations. Dropping a primary key column is always an error.
//
// Example:
//
//	result := schema.ValidateDiff(current, desired)
//	if result.HasBreakingChanges() {
//	    log.Fatal("Breaking changes detected:", result)
//	}
//	if result.HasWarnings() {
//	    log.Println("Warnings:", result)
//	}
func ValidateDiff(current, desired []*Blueprint, opts ...ValidateOption) *ValidationResult {
	cfg := &validateConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	result := &ValidationResult{}
	desiredMap := make(map[string]*Blueprint, len(desired))
	for _, t := range desired {
		desiredMap[t.Table] = t
	}
	for _, cur := range current {
		want, ok := desiredMap[cur.Table]
		if !ok {
			result.gate(cfg.allowDropTable, &ValidationError{
				Table:    cur.Table,
				Message:  "table will be dropped",
				Breaking: true,
			})
			continue
		}
		validateTableDiff(cur, want, cfg, result)
	}
	return result
}

func validateTableDiff(current, desired *Blueprint, cfg *validateConfig, result *ValidationResult) {
	desiredCols := make(map[string]*Column, len(desired.Columns))
	for _, c := range desired.Columns {
		desiredCols[c.Name] = c
	}
	primary := primaryColumns(current)

	// Dropped columns.
	for _, c := range current.Columns {
		if _, ok := desiredCols[c.Name]; ok {
			continue
		}
		if primary[c.Name] {
			result.errorf(current.Table, c.Name, true, "primary key column will be dropped")
			continue
		}
		result.gate(cfg.allowDropColumn, &ValidationError{
			Table:    current.Table,
			Column:   c.Name,
			Message:  "column will be dropped",
			Breaking: true,
		})
	}

	currentCols := make(map[string]*Column, len(current.Columns))
	for _, c := range current.Columns {
		currentCols[c.Name] = c
	}
	for _, want := range desired.Columns {
		cur, ok := currentCols[want.Name]
		if !ok {
			if !want.Nullable && want.Default == nil && want.DefaultExpr == "" && !want.Type.autoIncrement() {
				result.warnf(current.Table, want.Name, false, "new NOT NULL column without default value may fail if table has data")
			}
			continue
		}
		if cur.Type != want.Type {
			result.warnf(current.Table, want.Name, false, "column type changing from %s to %s", cur.Type, want.Type)
		}
		if cur.Nullable && !want.Nullable {
			result.gate(cfg.allowNullToNotNull, &ValidationError{
				Table:    current.Table,
				Column:   want.Name,
				Message:  "column changing from NULL to NOT NULL may fail if column has NULL values",
				Breaking: true,
			})
		}
		if cur.Size > 0 && want.Size > 0 && want.Size < cur.Size {
			result.warnf(current.Table, want.Name, false, "column size reducing from %d to %d may truncate data", cur.Size, want.Size)
		}
		if !cur.Unique && want.Unique {
			result.warnf(current.Table, want.Name, false, "adding UNIQUE constraint may fail if duplicate values exist")
		}
	}

	// Dropped indexes.
	desiredIdxs := make(map[string]bool, len(desired.Indexes))
	for _, idx := range desired.Indexes {
		desiredIdxs[idx.Name] = true
	}
	for _, idx := range current.Indexes {
		if !desiredIdxs[idx.Name] {
			result.gate(cfg.allowDropIndex, &ValidationError{
				Table:   current.Table,
				Message: fmt.Sprintf("index %q will be dropped", idx.Name),
			})
		}
	}
}

func primaryColumns(b *Blueprint) map[string]bool {
	m := make(map[string]bool)
	for _, c := range b.Columns {
		if c.Primary || c.Type.autoIncrement() {
			m[c.Name] = true
		}
	}
	for _, c := range b.PrimaryKey {
		m[c] = true
	}
	return m
}

// Validate reports the structural problems of a blueprint. For a created
// table these are duplicate columns or indexes, indexes and foreign keys
// on missing columns, conflicting primary keys and invalid cascade
// actions. For an altered table they are conflicting changes and
// dropping the primary key, which is breaking.
func Validate(b *Blueprint) *ValidationResult {
	result := &ValidationResult{}
	if b.Table == "" {
		result.errorf("", "", false, "missing table name")
		return result
	}
	colNames := make(map[string]bool, len(b.Columns))
	for _, c := range b.Columns {
		if c.Name == "" {
			result.errorf(b.Table, "", false, "column without a name")
			continue
		}
		if colNames[c.Name] {
			result.errorf(b.Table, c.Name, false, "duplicate column name")
		}
		colNames[c.Name] = true
		if c.Default != nil && c.DefaultExpr != "" {
			result.errorf(b.Table, c.Name, false, "both a default value and a default expression")
		}
	}
	if b.Creating() {
		validateCreate(b, colNames, result)
	} else {
		validateAlter(b, colNames, result)
	}

	idxNames := make(map[string]bool, len(b.Indexes))
	for _, idx := range b.Indexes {
		if idxNames[idx.Name] {
			result.errorf(b.Table, "", false, "duplicate index name: %s", idx.Name)
		}
		idxNames[idx.Name] = true
		if len(idx.Columns) == 0 {
			result.errorf(b.Table, "", false, "index %q has no columns", idx.Name)
		}
		if b.Creating() {
			for _, col := range idx.Columns {
				if !colNames[col] {
					result.errorf(b.Table, "", false, "index %q references non-existent column %q", idx.Name, col)
				}
			}
		}
	}

	for _, fk := range b.ForeignKeys {
		if b.Creating() {
			for _, col := range fk.Columns {
				if !colNames[col] {
					result.errorf(b.Table, col, false, "foreign key references non-existent column %q", col)
				}
			}
		}
		if fk.RefTable == "" || len(fk.RefColumns) == 0 {
			result.errorf(b.Table, "", false, "foreign key %q does not reference a table and columns", fk.Name)
		} else if len(fk.RefColumns) != len(fk.Columns) {
			result.errorf(b.Table, "", false, "foreign key %q references %d columns with %d", fk.Name, len(fk.RefColumns), len(fk.Columns))
		}
		for _, a := range []CascadeAction{fk.OnDelete, fk.OnUpdate} {
			if !a.Valid() {
				result.errorf(b.Table, "", false, "foreign key %q has unknown action %q", fk.Name, a)
			}
		}
		if fk.OnDelete == SetNull || fk.OnUpdate == SetNull {
			for _, c := range b.Columns {
				if !c.Nullable && contains(fk.Columns, c.Name) {
					result.errorf(b.Table, c.Name, false, "foreign key %q sets NULL on a NOT NULL column", fk.Name)
				}
			}
		}
	}
	return result
}

func validateCreate(b *Blueprint, colNames map[string]bool, result *ValidationResult) {
	var auto, primary []string
	for _, c := range b.Columns {
		switch {
		case c.Type.autoIncrement():
			auto = append(auto, c.Name)
		case c.Primary:
			primary = append(primary, c.Name)
		}
	}
	if len(b.PrimaryKey) > 0 {
		primary = b.PrimaryKey
	}
	for _, col := range b.PrimaryKey {
		if !colNames[col] {
			result.errorf(b.Table, col, false, "primary key references non-existent column")
		}
	}
	switch {
	case len(auto) > 1:
		result.errorf(b.Table, auto[1], false, "more than one auto-incrementing column")
	case len(auto) == 1 && len(primary) > 0:
		result.errorf(b.Table, auto[0], false, "an auto-incrementing column cannot be part of a composite primary key")
	case len(auto) == 0 && len(primary) == 0:
		result.warnf(b.Table, "", false, "table has no primary key")
	}
}

func validateAlter(b *Blueprint, colNames map[string]bool, result *ValidationResult) {
	if b.DropPrimaryKey {
		result.errorf(b.Table, "", true, "dropping the primary key")
	}
	if len(b.PrimaryKey) > 0 {
		result.errorf(b.Table, "", false, "changing the primary key of an existing table is not supported")
	}
	dropped := make(map[string]bool, len(b.DropColumns))
	for _, col := range b.DropColumns {
		if colNames[col] {
			result.errorf(b.Table, col, false, "column is added and dropped")
		}
		dropped[col] = true
	}
	for _, r := range b.Renames {
		if dropped[r.From] {
			result.errorf(b.Table, r.From, false, "column is renamed and dropped")
		}
		if colNames[r.To] {
			result.errorf(b.Table, r.To, false, "rename target collides with an added column")
		}
	}
	for _, c := range b.Columns {
		if !c.Nullable && c.Default == nil && c.DefaultExpr == "" {
			result.warnf(b.Table, c.Name, false, "new NOT NULL column without default value may fail if table has data")
		}
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// ValidateSchema validates a set of created tables together, including
// that foreign keys reference declared tables.
func ValidateSchema(tables []*Blueprint) *ValidationResult {
	result := &ValidationResult{}
	tableNames := make(map[string]bool, len(tables))
	for _, t := range tables {
		if tableNames[t.Table] {
			result.errorf(t.Table, "", false, "duplicate table name")
		}
		tableNames[t.Table] = true
		r := Validate(t)
		result.Errors = append(result.Errors, r.Errors...)
		result.Warnings = append(result.Warnings, r.Warnings...)
	}
	for _, t := range tables {
		for _, fk := range t.ForeignKeys {
			if fk.RefTable != "" && !tableNames[fk.RefTable] {
				result.errorf(t.Table, "", false, "foreign key references non-existent table %q", fk.RefTable)
			}
		}
	}
	return result
}
