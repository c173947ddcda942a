package dataloader_test

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/rowlink/contrib/dataloader"
	"github.com/syssam/rowlink/dialect"
	"github.com/syssam/rowlink/dialect/sql"
)

func post(id int64, userID sql.Value) *sql.Row {
	return sql.NewRow(dialect.MySQL, []string{"id", "user_id"}, []sql.Value{sql.Int(id), userID})
}

// column returns the key function regrouping rows by column.
func column(name string) dataloader.KeyFunc[string, *sql.Row] {
	return func(r *sql.Row) string {
		v, _ := r.Get(name)
		return v.Key()
	}
}

func rowIDs(t *testing.T, rows []*sql.Row) []int64 {
	t.Helper()
	out := make([]int64, len(rows))
	for i, r := range rows {
		id, err := r.Int("id")
		require.NoError(t, err)
		out[i] = id
	}
	return out
}

func TestOrderByKeys(t *testing.T) {
	t.Parallel()
	users := []*sql.Row{
		sql.NewRow(dialect.MySQL, []string{"id"}, sql.Values(3)),
		sql.NewRow(dialect.MySQL, []string{"id"}, []sql.Value{sql.Bytes([]byte("1"))}),
	}
	tests := []struct {
		name string
		keys []string
		want []int64 // 0 for a missing key
	}{
		{name: "reordered", keys: []string{"1", "3"}, want: []int64{1, 3}},
		{name: "missing", keys: []string{"2", "3", "4"}, want: []int64{0, 3, 0}},
		{name: "repeated", keys: []string{"3", "3", "1"}, want: []int64{3, 3, 1}},
		{name: "empty", keys: []string{}, want: []int64{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rows, errs := dataloader.OrderByKeys(tt.keys, users, column("id"))
			require.Len(t, rows, len(tt.keys))
			require.Len(t, errs, len(tt.keys))
			for i, row := range rows {
				if tt.want[i] == 0 {
					assert.Nil(t, row)
					assert.ErrorIs(t, errs[i], dataloader.ErrNotFound)
					continue
				}
				id, err := row.Int("id")
				require.NoError(t, err)
				assert.Equal(t, tt.want[i], id)
				assert.NoError(t, errs[i])
			}
		})
	}
}

func TestGroupByKey(t *testing.T) {
	t.Parallel()
	posts := []*sql.Row{
		post(1, sql.Int(10)),
		post(2, sql.String("10")),
		post(3, sql.Int(20)),
		post(4, sql.Null()),
		post(5, sql.Bytes([]byte("10"))),
	}
	grouped := dataloader.GroupByKey(posts, column("user_id"))
	require.Len(t, grouped, 3)
	assert.Equal(t, []int64{1, 2, 5}, rowIDs(t, grouped["10"]))
	assert.Equal(t, []int64{3}, rowIDs(t, grouped["20"]))
	// Null foreign keys group apart from every owner key.
	assert.Equal(t, []int64{4}, rowIDs(t, grouped[sql.Null().Key()]))

	assert.Empty(t, dataloader.GroupByKey(nil, column("user_id")))
}

func TestOrderGroupsByKeys(t *testing.T) {
	t.Parallel()
	grouped := dataloader.GroupByKey([]*sql.Row{
		post(1, sql.Int(10)),
		post(2, sql.Int(20)),
		post(3, sql.Int(10)),
	}, column("user_id"))

	t.Run("aligned with owners", func(t *testing.T) {
		t.Parallel()
		out := dataloader.OrderGroupsByKeys([]string{"20", "30", "10"}, grouped)
		require.Len(t, out, 3)
		assert.Equal(t, []int64{2}, rowIDs(t, out[0]))
		assert.Nil(t, out[1])
		assert.Equal(t, []int64{1, 3}, rowIDs(t, out[2]))
	})

	t.Run("owners sharing a key share a group", func(t *testing.T) {
		t.Parallel()
		out := dataloader.OrderGroupsByKeys([]string{"10", "10"}, grouped)
		assert.Equal(t, rowIDs(t, out[0]), rowIDs(t, out[1]))
	})

	t.Run("empty keys", func(t *testing.T) {
		t.Parallel()
		assert.Empty(t, dataloader.OrderGroupsByKeys(nil, grouped))
	})
}

func BenchmarkGroupByKey(b *testing.B) {
	posts := make([]*sql.Row, 1000)
	for i := range posts {
		posts[i] = post(int64(i), sql.Int(int64(i%50)))
	}
	keys := make([]string, 50)
	for i := range keys {
		keys[i] = strconv.Itoa(i)
	}
	keyFn := column("user_id")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		dataloader.OrderGroupsByKeys(keys, dataloader.GroupByKey(posts, keyFn))
	}
}
