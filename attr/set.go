package attr

import (
	"sort"
)

// Set is an immutable collection of attributes, sorted by key.
// Duplicate keys are collapsed, the last value wins.
type Set struct {
	attrs []Attr
}

// NewSet creates a new Set from the given attributes.
func NewSet(attrs ...Attr) Set {
	if len(attrs) == 0 {
		return Set{}
	}

	sorted := make([]Attr, len(attrs))
	copy(sorted, attrs)

	// Stable keeps insertion order among equal keys so the last one wins below.
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Key < sorted[j].Key
	})

	deduped := sorted[:0]
	for i, a := range sorted {
		if i > 0 && sorted[i-1].Key == a.Key {
			deduped[len(deduped)-1] = a
		} else {
			deduped = append(deduped, a)
		}
	}

	return Set{attrs: deduped}
}

// Len returns the number of attributes in the set.
func (s Set) Len() int {
	return len(s.attrs)
}

// Attrs returns a copy of the attributes in key order.
func (s Set) Attrs() []Attr {
	out := make([]Attr, len(s.attrs))
	copy(out, s.attrs)
	return out
}

// Get returns the value for the given key.
func (s Set) Get(key string) (Value, bool) {
	i := sort.Search(len(s.attrs), func(i int) bool {
		return s.attrs[i].Key >= key
	})
	if i < len(s.attrs) && s.attrs[i].Key == key {
		return s.attrs[i].Value, true
	}
	return Value{}, false
}

// Has returns true if the set contains the given key.
func (s Set) Has(key string) bool {
	_, ok := s.Get(key)
	return ok
}

// Merge returns a new Set where other overrides matching keys of s.
func (s Set) Merge(other ...Attr) Set {
	if len(other) == 0 {
		return s
	}
	if len(s.attrs) == 0 {
		return NewSet(other...)
	}

	combined := make([]Attr, 0, len(s.attrs)+len(other))
	combined = append(combined, s.attrs...)
	combined = append(combined, other...)
	return NewSet(combined...)
}

// Range calls fn for each attribute in key order until fn returns false.
func (s Set) Range(fn func(Attr) bool) {
	for _, a := range s.attrs {
		if !fn(a) {
			return
		}
	}
}

// Keys returns all keys in order.
func (s Set) Keys() []string {
	keys := make([]string, len(s.attrs))
	for i, a := range s.attrs {
		keys[i] = a.Key
	}
	return keys
}
