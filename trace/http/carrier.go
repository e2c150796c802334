// Package http adapts http.Header to trace.Carrier so any propagator can be
// used on HTTP transports.
package http

import (
	"net/http"
	"sort"
	"strings"

	"github.com/kzs0/tracehop/trace"
)

// HeaderCarrier is a trace.Carrier backed by http.Header.
//
//	prop.Inject(span.Context(), tracehttp.HeaderCarrier(req.Header))
//	remote, err := prop.Extract(tracehttp.HeaderCarrier(r.Header))
type HeaderCarrier http.Header

var _ trace.Carrier = HeaderCarrier(nil)

// Get returns the value for key. Header names are case-insensitive and
// repeated headers are combined with commas per RFC 7230.
func (c HeaderCarrier) Get(key string) string {
	values := http.Header(c).Values(key)
	switch len(values) {
	case 0:
		return ""
	case 1:
		return values[0]
	default:
		return strings.Join(values, ",")
	}
}

// Set replaces the value for key.
func (c HeaderCarrier) Set(key, value string) {
	http.Header(c).Set(key, value)
}

// Keys returns the canonical header names in sorted order.
func (c HeaderCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
