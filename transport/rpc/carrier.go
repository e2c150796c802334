// Package rpc binds the role drivers to gRPC. Trace context travels in
// request metadata through MetadataCarrier; the unary interceptors run
// client calls through a role.Caller and server methods through a
// role.Handler.
package rpc

import (
	"sort"
	"strings"

	"google.golang.org/grpc/metadata"

	"github.com/kzs0/tracehop/trace"
)

// MetadataCarrier is a trace.Carrier backed by gRPC metadata. Metadata keys
// are lowercase, so lookups are case-insensitive.
type MetadataCarrier metadata.MD

var _ trace.Carrier = MetadataCarrier(nil)

// Get returns the values for key joined with commas.
func (c MetadataCarrier) Get(key string) string {
	return strings.Join(metadata.MD(c).Get(key), ",")
}

// Set replaces the values for key.
func (c MetadataCarrier) Set(key, value string) {
	metadata.MD(c).Set(key, value)
}

// Keys returns the metadata keys in sorted order.
func (c MetadataCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
