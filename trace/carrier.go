package trace

import (
	"sort"
	"strings"
)

// Carrier is the key/value container a propagator reads and writes. Keys are
// matched case-insensitively.
type Carrier interface {
	Get(key string) string
	Set(key, value string)
	Keys() []string
}

// MapCarrier is a Carrier backed by a map.
type MapCarrier map[string]string

// Get returns the value for key, ignoring case.
func (c MapCarrier) Get(key string) string {
	if v, ok := c[key]; ok {
		return v
	}
	for k, v := range c {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

// Set stores value under key, replacing any entry that differs only in case.
func (c MapCarrier) Set(key, value string) {
	for k := range c {
		if k != key && strings.EqualFold(k, key) {
			delete(c, k)
		}
	}
	c[key] = value
}

// Keys returns the keys in sorted order.
func (c MapCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
