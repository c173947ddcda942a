package sqlgraph

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-openapi/inflect"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Naming is the column naming convention used to infer relation keys.
type Naming uint8

// Naming conventions.
const (
	// SnakeCase infers post_id and id.
	SnakeCase Naming = iota
	// CamelCase infers postId and id.
	CamelCase
	// PascalCase infers PostId and Id.
	PascalCase
)

var (
	title = cases.Title(language.Und, cases.NoLower)
	lower = cases.Lower(language.Und)
	ident = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// String returns the convention name.
func (n Naming) String() string {
	switch n {
	case SnakeCase:
		return "snake"
	case CamelCase:
		return "camel"
	case PascalCase:
		return "pascal"
	}
	return fmt.Sprintf("Naming(%d)", n)
}

// PrimaryKey returns the inferred primary key column.
func (n Naming) PrimaryKey() string {
	if n == PascalCase {
		return "Id"
	}
	return "id"
}

// ReferenceKey returns the inferred column referencing table: the
// singular of the table name followed by the primary key. A schema
// qualifier is ignored. It panics when no valid column can be inferred.
//
//	SnakeCase.ReferenceKey("posts")      // post_id
//	SnakeCase.ReferenceKey("children")   // child_id
//	CamelCase.ReferenceKey("blog_posts") // blogPostId
func (n Naming) ReferenceKey(table string) string {
	if i := strings.LastIndexByte(table, '.'); i >= 0 {
		table = table[i+1:]
	}
	words := splitWords(table)
	if len(words) == 0 {
		panic(fmt.Sprintf("sqlgraph: cannot infer a reference key for table %q", table))
	}
	last := len(words) - 1
	words[last] = inflect.Singularize(words[last])
	var key string
	switch n {
	case CamelCase:
		key = lower.String(words[0])
		for _, w := range words[1:] {
			key += title.String(lower.String(w))
		}
		key += "Id"
	case PascalCase:
		for _, w := range words {
			key += title.String(lower.String(w))
		}
		key += "Id"
	default:
		for i, w := range words {
			words[i] = lower.String(w)
		}
		key = strings.Join(words, "_") + "_id"
	}
	if !ident.MatchString(key) {
		panic(fmt.Sprintf("sqlgraph: inferred key %q for table %q is not a valid column", key, table))
	}
	return key
}

// splitWords splits snake_case, camelCase and PascalCase names.
func splitWords(s string) []string {
	var (
		words []string
		cur   []rune
	)
	flush := func() {
		if len(cur) > 0 {
			words = append(words, string(cur))
			cur = cur[:0]
		}
	}
	for i, r := range s {
		switch {
		case r == '_' || r == '-' || r == ' ':
			flush()
		case i > 0 && r >= 'A' && r <= 'Z' && len(cur) > 0 && !(cur[len(cur)-1] >= 'A' && cur[len(cur)-1] <= 'Z'):
			flush()
			cur = append(cur, r)
		default:
			cur = append(cur, r)
		}
	}
	flush()
	return words
}
