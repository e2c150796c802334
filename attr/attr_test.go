package attr

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructors(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		attr Attr
		kind Kind
		want any
		str  string
	}{
		{"string", String("k", "v"), KindString, "v", "v"},
		{"int", Int("k", 42), KindInt64, int64(42), "42"},
		{"int64", Int64("k", -7), KindInt64, int64(-7), "-7"},
		{"float", Float64("k", 1.5), KindFloat64, 1.5, "1.5"},
		{"bool", Bool("k", true), KindBool, true, "true"},
		{"duration", Duration("k", 3*time.Second), KindDuration, 3 * time.Second, "3s"},
		{"time", Time("k", now), KindTime, now, "2024-03-01T12:00:00Z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, "k", tt.attr.Key)
			assert.Equal(t, tt.kind, tt.attr.Value.Kind())
			assert.Equal(t, tt.want, tt.attr.Value.AsAny())
			assert.Equal(t, tt.str, tt.attr.Value.String())
		})
	}
}

func TestAnyValue(t *testing.T) {
	assert.Equal(t, KindInt64, Any("k", 3).Value.Kind())
	assert.Equal(t, KindFloat64, Any("k", float32(2)).Value.Kind())
	assert.Equal(t, KindBool, Any("k", false).Value.Kind())

	v := Any("k", []int{1, 2}).Value
	require.Equal(t, KindString, v.Kind())
	assert.Equal(t, "[1 2]", v.AsString())
}

func TestErrorAttr(t *testing.T) {
	a := Error(errors.New("boom"))
	assert.Equal(t, "error", a.Key)
	assert.Equal(t, "boom", a.Value.AsString())
	assert.Equal(t, "", Error(nil).Value.AsString())
}

func TestAccessorPanicsOnWrongKind(t *testing.T) {
	assert.Panics(t, func() { String("k", "v").Value.AsInt64() })
	assert.Panics(t, func() { Int("k", 1).Value.AsString() })
}

func TestValueEqual(t *testing.T) {
	assert.True(t, Int("a", 1).Value.Equal(Int64Value(1)))
	assert.False(t, Int("a", 1).Value.Equal(StringValue("1")))
	assert.True(t, StringValue("x").Equal(StringValue("x")))
}

func TestSetSortsAndDeduplicates(t *testing.T) {
	s := NewSet(String("b", "1"), String("a", "1"), String("b", "2"))

	require.Equal(t, 2, s.Len())
	assert.Equal(t, []string{"a", "b"}, s.Keys())

	v, ok := s.Get("b")
	require.True(t, ok)
	assert.Equal(t, "2", v.AsString(), "last value wins")

	_, ok = s.Get("missing")
	assert.False(t, ok)
	assert.True(t, s.Has("a"))
}

func TestSetMergeDoesNotMutate(t *testing.T) {
	base := NewSet(String("a", "1"))
	merged := base.Merge(String("a", "2"), Int("n", 3))

	v, _ := base.Get("a")
	assert.Equal(t, "1", v.AsString())

	v, _ = merged.Get("a")
	assert.Equal(t, "2", v.AsString())
	assert.Equal(t, 2, merged.Len())
}

func TestSetRangeStops(t *testing.T) {
	s := NewSet(Int("a", 1), Int("b", 2), Int("c", 3))

	var seen []string
	s.Range(func(a Attr) bool {
		seen = append(seen, a.Key)
		return a.Key != "b"
	})
	assert.Equal(t, []string{"a", "b"}, seen)
}

func TestEmptySet(t *testing.T) {
	var s Set
	assert.Zero(t, s.Len())
	assert.Empty(t, s.Attrs())
	assert.Equal(t, 1, s.Merge(Bool("x", true)).Len())
}
