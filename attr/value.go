package attr

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// Kind is the scalar type held by a Value.
type Kind int

const (
	KindString Kind = iota
	KindInt64
	KindFloat64
	KindBool
	KindDuration
	KindTime
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt64:
		return "int64"
	case KindFloat64:
		return "float64"
	case KindBool:
		return "bool"
	case KindDuration:
		return "duration"
	case KindTime:
		return "time"
	default:
		return "unknown"
	}
}

// Value is a compact union of the scalar types an attribute may hold.
// Numeric kinds are stored inline in num.
type Value struct {
	kind Kind
	num  uint64
	str  string
	t    time.Time
}

// Kind returns the type of the value.
func (v Value) Kind() Kind {
	return v.kind
}

// StringValue creates a Value from a string.
func StringValue(s string) Value {
	return Value{kind: KindString, str: s}
}

// Int64Value creates a Value from an int64.
func Int64Value(n int64) Value {
	return Value{kind: KindInt64, num: uint64(n)}
}

// Float64Value creates a Value from a float64.
func Float64Value(f float64) Value {
	return Value{kind: KindFloat64, num: math.Float64bits(f)}
}

// BoolValue creates a Value from a bool.
func BoolValue(b bool) Value {
	var n uint64
	if b {
		n = 1
	}
	return Value{kind: KindBool, num: n}
}

// DurationValue creates a Value from a time.Duration.
func DurationValue(d time.Duration) Value {
	return Value{kind: KindDuration, num: uint64(d)}
}

// TimeValue creates a Value from a time.Time.
func TimeValue(t time.Time) Value {
	return Value{kind: KindTime, t: t}
}

// AnyValue converts v to the matching scalar kind, falling back to its
// fmt representation.
func AnyValue(v any) Value {
	switch val := v.(type) {
	case string:
		return StringValue(val)
	case int:
		return Int64Value(int64(val))
	case int32:
		return Int64Value(int64(val))
	case int64:
		return Int64Value(val)
	case uint32:
		return Int64Value(int64(val))
	case float32:
		return Float64Value(float64(val))
	case float64:
		return Float64Value(val)
	case bool:
		return BoolValue(val)
	case time.Duration:
		return DurationValue(val)
	case time.Time:
		return TimeValue(val)
	case fmt.Stringer:
		return StringValue(val.String())
	default:
		return StringValue(fmt.Sprint(v))
	}
}

// AsString returns the value as a string. Panics if kind != KindString.
func (v Value) AsString() string {
	if v.kind != KindString {
		panic("attr: Value.AsString called on " + v.kind.String())
	}
	return v.str
}

// AsInt64 returns the value as an int64. Panics if kind != KindInt64.
func (v Value) AsInt64() int64 {
	if v.kind != KindInt64 {
		panic("attr: Value.AsInt64 called on " + v.kind.String())
	}
	return int64(v.num)
}

// AsFloat64 returns the value as a float64. Panics if kind != KindFloat64.
func (v Value) AsFloat64() float64 {
	if v.kind != KindFloat64 {
		panic("attr: Value.AsFloat64 called on " + v.kind.String())
	}
	return math.Float64frombits(v.num)
}

// AsBool returns the value as a bool. Panics if kind != KindBool.
func (v Value) AsBool() bool {
	if v.kind != KindBool {
		panic("attr: Value.AsBool called on " + v.kind.String())
	}
	return v.num != 0
}

// AsDuration returns the value as a time.Duration. Panics if kind != KindDuration.
func (v Value) AsDuration() time.Duration {
	if v.kind != KindDuration {
		panic("attr: Value.AsDuration called on " + v.kind.String())
	}
	return time.Duration(v.num)
}

// AsTime returns the value as a time.Time. Panics if kind != KindTime.
func (v Value) AsTime() time.Time {
	if v.kind != KindTime {
		panic("attr: Value.AsTime called on " + v.kind.String())
	}
	return v.t
}

// AsAny returns the underlying scalar.
func (v Value) AsAny() any {
	switch v.kind {
	case KindInt64:
		return int64(v.num)
	case KindFloat64:
		return math.Float64frombits(v.num)
	case KindBool:
		return v.num != 0
	case KindDuration:
		return time.Duration(v.num)
	case KindTime:
		return v.t
	default:
		return v.str
	}
}

// String returns a string representation of the value.
func (v Value) String() string {
	switch v.kind {
	case KindInt64:
		return strconv.FormatInt(int64(v.num), 10)
	case KindFloat64:
		return strconv.FormatFloat(math.Float64frombits(v.num), 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.num != 0)
	case KindDuration:
		return time.Duration(v.num).String()
	case KindTime:
		return v.t.Format(time.RFC3339Nano)
	default:
		return v.str
	}
}

// Equal reports whether two values have the same kind and content.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == o.str
	case KindTime:
		return v.t.Equal(o.t)
	default:
		return v.num == o.num
	}
}
