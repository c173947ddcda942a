package rowlink_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/syssam/rowlink"
)

func TestCacheKey(t *testing.T) {
	k := rowlink.CacheKey{Table: "users", Operation: "all", Query: `SELECT * FROM "users" WHERE "id" = $1`, Args: []string{"int:1"}}
	assert.True(t, strings.HasPrefix(k.String(), rowlink.TablePrefix("users")+"all:"))
	assert.Equal(t, k.String(), k.String())

	other := k
	other.Args = []string{"int:2"}
	assert.NotEqual(t, k.String(), other.String())

	// Query and arguments are separated so they cannot shift into each other.
	a := rowlink.CacheKey{Table: "t", Operation: "all", Query: "a", Args: []string{"b"}}
	b := rowlink.CacheKey{Table: "t", Operation: "all", Query: "ab"}
	assert.NotEqual(t, a.String(), b.String())

	assert.False(t, strings.HasPrefix(k.String(), rowlink.TablePrefix("user")+"x"))
	assert.NotEqual(t, rowlink.TablePrefix("users"), rowlink.TablePrefix("user"))
}
