package sql

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cast"

	"github.com/syssam/rowlink/dialect"
)

// Kind identifies the active case of a Value.
type Kind uint8

// Value kinds.
const (
	KindNull Kind = iota
	KindInt
	KindDouble
	KindBool
	KindString
	KindDate
	KindUUID
	KindJSON
	KindBytes
)

var kindNames = [...]string{
	KindNull:   "null",
	KindInt:    "int",
	KindDouble: "double",
	KindBool:   "bool",
	KindString: "string",
	KindDate:   "date",
	KindUUID:   "uuid",
	KindJSON:   "json",
	KindBytes:  "bytes",
}

// String returns the kind name.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// SQLiteTimeLayout is the text form dates take on SQLite. It keeps
// millisecond precision and is always written in UTC.
const SQLiteTimeLayout = "2006-01-02 15:04:05.000"

// Value is a typed, nullable SQL scalar. Exactly one kind is active and
// null is a kind of its own, so a zero Value is a SQL NULL.
type Value struct {
	kind Kind
	i    int64
	f    float64
	b    bool
	s    string
	t    time.Time
	u    uuid.UUID
	raw  []byte
}

// Null returns the SQL NULL value.
func Null() Value { return Value{} }

// Int returns an integer value.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Double returns a floating point value.
func Double(f float64) Value { return Value{kind: KindDouble, f: f} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// String returns a text value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Date returns a timestamp value.
func Date(t time.Time) Value { return Value{kind: KindDate, t: t} }

// UUID returns a UUID value.
func UUID(u uuid.UUID) Value { return Value{kind: KindUUID, u: u} }

// JSON returns a JSON document value. The bytes are copied.
func JSON(b []byte) Value { return Value{kind: KindJSON, raw: bytes.Clone(b)} }

// Bytes returns a raw bytes value. The bytes are copied.
func Bytes(b []byte) Value { return Value{kind: KindBytes, raw: bytes.Clone(b)} }

// ValueOf converts a Go value to a Value. It accepts the Go natives of
// every kind, pointers to them, driver.Valuer implementations and Value
// itself. nil converts to Null. Any other type is a programming error
// and panics.
func ValueOf(v any) Value {
	switch v := v.(type) {
	case nil:
		return Null()
	case Value:
		return v
	case int:
		return Int(int64(v))
	case int8:
		return Int(int64(v))
	case int16:
		return Int(int64(v))
	case int32:
		return Int(int64(v))
	case int64:
		return Int(v)
	case uint8:
		return Int(int64(v))
	case uint16:
		return Int(int64(v))
	case uint32:
		return Int(int64(v))
	case uint:
		return uintValue(uint64(v))
	case uint64:
		return uintValue(v)
	case float32:
		return Double(float64(v))
	case float64:
		return Double(v)
	case bool:
		return Bool(v)
	case string:
		return String(v)
	case time.Time:
		return Date(v)
	case uuid.UUID:
		return UUID(v)
	case json.RawMessage:
		return JSON(v)
	case []byte:
		return Bytes(v)
	case driver.Valuer:
		nv, err := v.Value()
		if err != nil {
			panic(fmt.Sprintf("sql: value of %T: %v", v, err))
		}
		return ValueOf(nv)
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return Null()
		}
		return ValueOf(rv.Elem().Interface())
	}
	panic(fmt.Sprintf("sql: unsupported value type %T", v))
}

func uintValue(u uint64) Value {
	if u > math.MaxInt64 {
		panic(fmt.Sprintf("sql: unsigned value %d overflows int64", u))
	}
	return Int(int64(u))
}

// Values converts each argument with ValueOf.
func Values(vs ...any) []Value {
	out := make([]Value, len(vs))
	for i, v := range vs {
		out[i] = ValueOf(v)
	}
	return out
}

// Kind returns the active kind.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is SQL NULL.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Interface returns the Go representation of v: int64, float64, bool,
// string, time.Time, uuid.UUID, json.RawMessage, []byte or nil.
func (v Value) Interface() any {
	switch v.kind {
	case KindInt:
		return v.i
	case KindDouble:
		return v.f
	case KindBool:
		return v.b
	case KindString:
		return v.s
	case KindDate:
		return v.t
	case KindUUID:
		return v.u
	case KindJSON:
		return json.RawMessage(bytes.Clone(v.raw))
	case KindBytes:
		return bytes.Clone(v.raw)
	}
	return nil
}

// Native encodes v in the wire representation the dialect's driver
// expects. Booleans become 0/1 on MySQL and SQLite, dates become
// millisecond text on SQLite, UUIDs travel in canonical string form
// and JSON as text.
func (v Value) Native(d string) any {
	switch v.kind {
	case KindInt:
		return v.i
	case KindDouble:
		return v.f
	case KindBool:
		if d == dialect.MySQL || d == dialect.SQLite {
			if v.b {
				return int64(1)
			}
			return int64(0)
		}
		return v.b
	case KindString:
		return v.s
	case KindDate:
		if d == dialect.SQLite {
			return v.t.UTC().Format(SQLiteTimeLayout)
		}
		return v.t
	case KindUUID:
		return v.u.String()
	case KindJSON:
		return string(v.raw)
	case KindBytes:
		return bytes.Clone(v.raw)
	}
	return nil
}

// FromNative builds a Value from whatever a database/sql driver handed
// back, inferring the kind from the Go type. Text transported as []byte
// stays bytes; typed Row accessors parse it on demand.
func FromNative(native any) Value {
	switch n := native.(type) {
	case nil:
		return Null()
	case int64:
		return Int(n)
	case int32:
		return Int(int64(n))
	case int:
		return Int(int64(n))
	case float64:
		return Double(n)
	case float32:
		return Double(float64(n))
	case bool:
		return Bool(n)
	case string:
		return String(n)
	case time.Time:
		return Date(n)
	case []byte:
		return Bytes(n)
	case uuid.UUID:
		return UUID(n)
	}
	return String(fmt.Sprint(native))
}

// Decode converts a native value produced for dialect d back into a
// Value of the requested kind. It is the inverse of Native.
func Decode(d string, kind Kind, native any) (Value, error) {
	if native == nil {
		return Null(), nil
	}
	if b, ok := native.([]byte); ok && kind != KindBytes && kind != KindUUID {
		native = string(b)
	}
	switch kind {
	case KindNull:
		return Null(), nil
	case KindInt:
		if s, ok := native.(string); ok {
			// Decimal only: ZEROFILL columns arrive as "0010".
			i, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
			if err != nil {
				return Value{}, err
			}
			return Int(i), nil
		}
		i, err := cast.ToInt64E(native)
		if err != nil {
			return Value{}, err
		}
		return Int(i), nil
	case KindDouble:
		f, err := cast.ToFloat64E(native)
		if err != nil {
			return Value{}, err
		}
		return Double(f), nil
	case KindBool:
		if s, ok := native.(string); ok && d == dialect.Postgres {
			switch s {
			case "t":
				return Bool(true), nil
			case "f":
				return Bool(false), nil
			}
		}
		b, err := cast.ToBoolE(native)
		if err != nil {
			return Value{}, err
		}
		return Bool(b), nil
	case KindString:
		s, err := cast.ToStringE(native)
		if err != nil {
			return Value{}, err
		}
		return String(s), nil
	case KindDate:
		t, err := decodeTime(d, native)
		if err != nil {
			return Value{}, err
		}
		return Date(t), nil
	case KindUUID:
		u, err := decodeUUID(native)
		if err != nil {
			return Value{}, err
		}
		return UUID(u), nil
	case KindJSON:
		s, err := cast.ToStringE(native)
		if err != nil {
			return Value{}, err
		}
		if !json.Valid([]byte(s)) {
			return Value{}, fmt.Errorf("sql: invalid JSON document %q", s)
		}
		return JSON([]byte(s)), nil
	case KindBytes:
		switch n := native.(type) {
		case []byte:
			return Bytes(n), nil
		case string:
			return Bytes([]byte(n)), nil
		}
		return Value{}, fmt.Errorf("sql: unable to decode %T as bytes", native)
	}
	return Value{}, fmt.Errorf("sql: unknown value kind %v", kind)
}

func decodeTime(d string, native any) (time.Time, error) {
	switch n := native.(type) {
	case time.Time:
		return n, nil
	case string:
		if d == dialect.SQLite {
			if t, err := time.ParseInLocation(SQLiteTimeLayout, n, time.UTC); err == nil {
				return t, nil
			}
		}
		if t, err := time.Parse(time.RFC3339Nano, n); err == nil {
			return t, nil
		}
	}
	return cast.ToTimeE(native)
}

func decodeUUID(native any) (uuid.UUID, error) {
	switch n := native.(type) {
	case uuid.UUID:
		return n, nil
	case [16]byte:
		return uuid.UUID(n), nil
	case []byte:
		if len(n) == 16 {
			return uuid.FromBytes(n)
		}
		return uuid.ParseBytes(n)
	case string:
		return uuid.Parse(n)
	}
	return uuid.Nil, fmt.Errorf("sql: unable to decode %T as uuid", native)
}

// Equal reports whether v and o hold the same kind and value. Dates are
// compared as instants.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindInt:
		return v.i == o.i
	case KindDouble:
		return v.f == o.f
	case KindBool:
		return v.b == o.b
	case KindString:
		return v.s == o.s
	case KindDate:
		return v.t.Equal(o.t)
	case KindUUID:
		return v.u == o.u
	case KindJSON, KindBytes:
		return bytes.Equal(v.raw, o.raw)
	}
	return false
}

// Key returns a canonical text form of v used to match values across
// kinds, so a key read back as text matches the same key held as an
// integer or a UUID.
func (v Value) Key() string {
	switch v.kind {
	case KindNull:
		return "\x00null"
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindDouble:
		return strconv.FormatFloat(v.f, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindString:
		return v.s
	case KindDate:
		return v.t.UTC().Format(time.RFC3339Nano)
	case KindUUID:
		return v.u.String()
	}
	return string(v.raw)
}

// String implements fmt.Stringer for logging and error messages.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "NULL"
	case KindString:
		return strconv.Quote(v.s)
	case KindJSON:
		return string(v.raw)
	case KindBytes:
		return fmt.Sprintf("%x", v.raw)
	}
	return v.Key()
}

// coerce returns v as the wanted kind. A value already of that kind is
// returned as is. Text and bytes are the textual transport of every kind
// and are parsed. Integers widen to doubles and 0/1 integers read as
// booleans. Everything else is a mismatch.
func (v Value) coerce(d string, want Kind) (Value, bool) {
	if v.kind == want {
		return v, true
	}
	switch v.kind {
	case KindString, KindBytes:
		var native any = v.s
		if v.kind == KindBytes {
			native = v.raw
		}
		if want == KindString && v.kind == KindBytes {
			return String(string(v.raw)), true
		}
		if want == KindBool {
			switch strings.TrimSpace(textOf(v)) {
			case "0", "1", "true", "false", "t", "f":
			default:
				return Value{}, false
			}
		}
		nv, err := Decode(d, want, native)
		if err != nil {
			return Value{}, false
		}
		return nv, true
	case KindInt:
		switch want {
		case KindDouble:
			return Double(float64(v.i)), true
		case KindBool:
			if v.i == 0 || v.i == 1 {
				return Bool(v.i == 1), true
			}
		}
	}
	return Value{}, false
}

func textOf(v Value) string {
	if v.kind == KindBytes {
		return string(v.raw)
	}
	return v.s
}
