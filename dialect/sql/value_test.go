package sql

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/rowlink/dialect"
)

func TestValueRoundTrip(t *testing.T) {
	now := time.Date(2024, 3, 9, 17, 4, 5, 123_000_000, time.UTC)
	id := uuid.MustParse("7b2c3e4f-1a2b-4c3d-8e9f-0a1b2c3d4e5f")
	values := []Value{
		Null(),
		Int(-42),
		Double(1.5),
		Bool(true),
		Bool(false),
		String("héllo"),
		Date(now),
		UUID(id),
		JSON([]byte(`{"a":[1,2]}`)),
		Bytes([]byte{0, 1, 2, 0xff}),
	}
	for _, d := range dialect.All {
		for _, v := range values {
			got, err := Decode(d, v.Kind(), v.Native(d))
			require.NoError(t, err, "%s %s", d, v.Kind())
			assert.True(t, v.Equal(got), "%s: %v decoded as %v", d, v, got)
		}
	}
}

func TestValueNative(t *testing.T) {
	now := time.Date(2024, 3, 9, 17, 4, 5, 123_456_789, time.FixedZone("X", 3600))
	assert.Equal(t, int64(1), Bool(true).Native(dialect.MySQL))
	assert.Equal(t, int64(0), Bool(false).Native(dialect.SQLite))
	assert.Equal(t, true, Bool(true).Native(dialect.Postgres))
	assert.Equal(t, "2024-03-09 16:04:05.123", Date(now).Native(dialect.SQLite))
	assert.Equal(t, now, Date(now).Native(dialect.Postgres))
	id := uuid.New()
	assert.Equal(t, id.String(), UUID(id).Native(dialect.MySQL))
	assert.Equal(t, `{"a":1}`, JSON([]byte(`{"a":1}`)).Native(dialect.Postgres))
	assert.Nil(t, Null().Native(dialect.ANSI))
}

func TestDecode(t *testing.T) {
	v, err := Decode(dialect.Postgres, KindBool, "t")
	require.NoError(t, err)
	assert.Equal(t, Bool(true), v)
	v, err = Decode(dialect.MySQL, KindInt, []byte("17"))
	require.NoError(t, err)
	assert.Equal(t, Int(17), v)
	v, err = Decode(dialect.SQLite, KindDate, "2024-03-09 16:04:05.123")
	require.NoError(t, err)
	assert.True(t, v.Equal(Date(time.Date(2024, 3, 9, 16, 4, 5, 123_000_000, time.UTC))))
	v, err = Decode(dialect.MySQL, KindUUID, []byte("7b2c3e4f-1a2b-4c3d-8e9f-0a1b2c3d4e5f"))
	require.NoError(t, err)
	assert.Equal(t, KindUUID, v.Kind())
	v, err = Decode(dialect.ANSI, KindString, nil)
	require.NoError(t, err)
	assert.True(t, v.IsNull())

	_, err = Decode(dialect.Postgres, KindJSON, "{not json")
	assert.Error(t, err)
	_, err = Decode(dialect.Postgres, KindInt, "abc")
	assert.Error(t, err)
}

func TestValueOf(t *testing.T) {
	s := "x"
	var nilPtr *int
	tests := []struct {
		in   any
		want Value
	}{
		{nil, Null()},
		{7, Int(7)},
		{int8(-1), Int(-1)},
		{uint32(9), Int(9)},
		{float32(0.5), Double(0.5)},
		{true, Bool(true)},
		{"a", String("a")},
		{&s, String("x")},
		{nilPtr, Null()},
		{json.RawMessage(`1`), JSON([]byte(`1`))},
		{[]byte("b"), Bytes([]byte("b"))},
		{Int(3), Int(3)},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ValueOf(tt.in), "%T", tt.in)
	}
	assert.Panics(t, func() { ValueOf(struct{}{}) })
	assert.Panics(t, func() { ValueOf(uint64(1 << 63)) })
}

func TestValueKey(t *testing.T) {
	id := uuid.New()
	assert.Equal(t, Int(10).Key(), String("10").Key())
	assert.Equal(t, UUID(id).Key(), String(id.String()).Key())
	assert.NotEqual(t, Null().Key(), String("").Key())
	assert.Equal(t, "NULL", Null().String())
	assert.Equal(t, `"a"`, String("a").String())
}

func TestFromNative(t *testing.T) {
	assert.Equal(t, Int(3), FromNative(int64(3)))
	assert.Equal(t, Int(3), FromNative(int32(3)))
	assert.Equal(t, Double(2.5), FromNative(2.5))
	assert.Equal(t, Bytes([]byte("x")), FromNative([]byte("x")))
	assert.Equal(t, Null(), FromNative(nil))
	assert.Equal(t, String("[1 2]"), FromNative([2]int{1, 2}))
}

func TestRowAccessors(t *testing.T) {
	id := uuid.New()
	row := NewRow(dialect.MySQL,
		[]string{"id", "Name", "active", "score", "born", "ref", "doc", "blob", "gone", "flag"},
		[]Value{
			Bytes([]byte("12")),
			String("a8m"),
			Int(1),
			Int(3),
			String("2024-01-02T03:04:05Z"),
			Bytes([]byte(id.String())),
			Bytes([]byte(`{"k":"v"}`)),
			Bytes([]byte{1, 2}),
			Null(),
			Int(7),
		},
	)
	i, err := row.Int("id")
	require.NoError(t, err)
	assert.Equal(t, int64(12), i)
	name, err := row.String("name")
	require.NoError(t, err)
	assert.Equal(t, "a8m", name)
	active, err := row.Bool("active")
	require.NoError(t, err)
	assert.True(t, active)
	score, err := row.Float("score")
	require.NoError(t, err)
	assert.Equal(t, 3.0, score)
	born, err := row.Date("born")
	require.NoError(t, err)
	assert.Equal(t, 2024, born.Year())
	ref, err := row.UUID("ref")
	require.NoError(t, err)
	assert.Equal(t, id, ref)
	var doc map[string]string
	require.NoError(t, row.DecodeJSON("doc", &doc))
	assert.Equal(t, "v", doc["k"])
	blob, err := row.Bytes("blob")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, blob)

	assert.True(t, row.IsNull("gone"))
	_, ok := row.Key("gone")
	assert.False(t, ok)
	k, ok := row.Key("id")
	require.True(t, ok)
	assert.Equal(t, "12", k.Key())

	_, err = row.Bool("flag")
	require.True(t, IsDecodeError(err))
	_, err = row.Int("missing")
	var de *DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "missing", de.Got)
	_, err = row.Int("gone")
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "null", de.Got)
	_, err = row.Int("name")
	assert.True(t, IsDecodeError(err))

	assert.Equal(t, 10, row.Len())
	assert.Equal(t, "a8m", row.Map()["Name"])

	padded := NewRow(dialect.MySQL, []string{"zero", "hex"}, []Value{Bytes([]byte("0010")), String("0x1F")})
	i, err = padded.Int("zero")
	require.NoError(t, err)
	assert.Equal(t, int64(10), i)
	_, err = padded.Int("hex")
	assert.True(t, IsDecodeError(err))
	assert.Panics(t, func() { NewRow(dialect.MySQL, []string{"a"}, nil) })
}

func TestRecord(t *testing.T) {
	r := RecordOf("a", 1, "b", "x")
	r = r.Set("a", 2).Set("c", nil)
	assert.Equal(t, []string{"a", "b", "c"}, r.Columns())
	v, ok := r.Get("a")
	require.True(t, ok)
	assert.Equal(t, Int(2), v)
	assert.Panics(t, func() { RecordOf("a") })
	assert.Panics(t, func() { RecordOf(1, 2) })
}
