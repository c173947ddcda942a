package sql

import (
	"testing"

	"github.com/syssam/rowlink/dialect"
)

func BenchmarkCompileInsert_Default(b *testing.B) {
	for _, d := range dialect.All {
		g := MustGrammar(d)
		b.Run(d, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_, _ = g.CompileInsertReturning(Table("users"), Record{}, []string{"id"}, "id")
			}
		})
	}
}

func BenchmarkCompileInsert_Small(b *testing.B) {
	rec := RecordOf(
		"id", 1, "age", 30, "first_name", "Ariel", "last_name", "Mashraki",
		"nickname", "a8m", "spouse_id", 2,
	)
	for _, d := range dialect.All {
		g := MustGrammar(d)
		b.Run(d, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_, _, _ = g.CompileInsert(Table("users"), []Record{rec})
			}
		})
	}
}

func BenchmarkCompileSelect_Simple(b *testing.B) {
	for _, d := range dialect.All {
		g := MustGrammar(d)
		b.Run(d, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_, _, _ = g.CompileSelect(Table("users").Select("id", "name", "email"))
			}
		})
	}
}

func BenchmarkCompileSelect_WithJoins(b *testing.B) {
	for _, d := range dialect.All {
		g := MustGrammar(d)
		b.Run(d, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				q := Table("users AS u").Select("u.id", "u.name", "p.title").
					Join("posts AS p", "p.user_id", "=", "u.id").
					Where("u.active", "=", true).
					OrderBy("u.created_at", Asc).
					Limit(10)
				_, _, _ = g.CompileSelect(q)
			}
		})
	}
}

func BenchmarkCompileSelect_Complex(b *testing.B) {
	for _, d := range dialect.All {
		g := MustGrammar(d)
		b.Run(d, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				q := Table("users").
					Where("age", ">=", 18).
					WhereGroup(func(q *Query) {
						q.Where("status", "=", "active").OrWhere("role", "=", "admin")
					}).
					WhereIn("country", "US", "UK", "CA").
					WhereNotNull("email").
					OrderByDesc("created_at").
					Limit(50).
					Offset(100)
				_, _, _ = g.CompileSelect(q)
			}
		})
	}
}

func BenchmarkCompileUpdate(b *testing.B) {
	rec := RecordOf("name", "a8m", "age", 31, "nickname", nil)
	for _, d := range dialect.All {
		g := MustGrammar(d)
		b.Run(d, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_, _, _ = g.CompileUpdate(Table("users").Where("id", "=", 1), rec)
			}
		})
	}
}

func BenchmarkCompileDelete(b *testing.B) {
	for _, d := range dialect.All {
		g := MustGrammar(d)
		b.Run(d, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_, _, _ = g.CompileDelete(Table("users").Where("status", "=", "deleted").WhereNull("deleted_at"))
			}
		})
	}
}
