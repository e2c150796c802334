// Package jaeger implements the Jaeger "uber-trace-id" propagation format:
//
//	{trace-id}:{span-id}:{parent-span-id}:{flags}
//
// Identifiers are hex without fixed width. A parent of "0" means none.
package jaeger

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/kzs0/tracehop/trace"
)

// HeaderKey is the carrier key used by Jaeger clients.
const HeaderKey = "uber-trace-id"

const (
	flagSampled = 0x01
	flagDebug   = 0x02
)

var (
	ErrInvalidHeader  = errors.New("invalid uber-trace-id")
	ErrInvalidTraceID = errors.New("invalid trace-id: must be 1 to 32 hex characters and not all zeros")
	ErrInvalidSpanID  = errors.New("invalid span-id: must be 1 to 16 hex characters and not all zeros")
	ErrInvalidParent  = errors.New("invalid parent-span-id: must be 1 to 16 hex characters")
	ErrInvalidFlags   = errors.New("invalid flags: must be 1 or 2 hex characters")
)

// Propagator implements trace.Propagator for uber-trace-id.
type Propagator struct{}

var _ trace.Propagator = Propagator{}

// Inject writes uber-trace-id. Invalid contexts are not injected. Trace
// state has no place in the format and is not written.
func (Propagator) Inject(tc trace.TraceContext, carrier trace.Carrier) {
	if !tc.IsValid() {
		return
	}

	parent := "0"
	if tc.HasParent() {
		parent = tc.ParentSpanID().String()
	}
	flags := 0
	if tc.Sampled() {
		flags = flagSampled
	}
	carrier.Set(HeaderKey, fmt.Sprintf("%s:%s:%s:%x", tc.TraceID(), tc.SpanID(), parent, flags))
}

// Extract reads uber-trace-id. URL-escaped values are unescaped first.
func (Propagator) Extract(carrier trace.Carrier) (trace.TraceContext, error) {
	raw := carrier.Get(HeaderKey)
	if raw == "" {
		return trace.TraceContext{}, nil
	}

	tc, err := Parse(raw)
	if err != nil {
		return trace.TraceContext{}, &trace.MalformedContextError{Key: HeaderKey, Value: raw, Err: err}
	}
	return tc, nil
}

// Fields returns the carrier keys this propagator uses.
func (Propagator) Fields() []string {
	return []string{HeaderKey}
}

// Parse decodes an uber-trace-id value into a remote TraceContext.
func Parse(value string) (trace.TraceContext, error) {
	if strings.Contains(value, "%") {
		unescaped, err := url.QueryUnescape(value)
		if err != nil {
			return trace.TraceContext{}, fmt.Errorf("%w: %v", ErrInvalidHeader, err)
		}
		value = unescaped
	}

	parts := strings.Split(value, ":")
	if len(parts) != 4 {
		return trace.TraceContext{}, ErrInvalidHeader
	}

	traceID, err := parseTraceID(parts[0])
	if err != nil {
		return trace.TraceContext{}, err
	}

	spanID, ok := parseSpanID(parts[1])
	if !ok || spanID.IsZero() {
		return trace.TraceContext{}, ErrInvalidSpanID
	}

	parentID, ok := parseSpanID(parts[2])
	if !ok {
		return trace.TraceContext{}, ErrInvalidParent
	}

	if len(parts[3]) == 0 || len(parts[3]) > 2 {
		return trace.TraceContext{}, ErrInvalidFlags
	}
	flags, err := strconv.ParseUint(parts[3], 16, 8)
	if err != nil {
		return trace.TraceContext{}, ErrInvalidFlags
	}

	return trace.NewTraceContext(trace.TraceContextConfig{
		TraceID:      traceID,
		SpanID:       spanID,
		ParentSpanID: parentID,
		Sampled:      flags&(flagSampled|flagDebug) != 0,
		Remote:       true,
	}), nil
}

func parseTraceID(s string) (trace.TraceID, error) {
	if len(s) == 0 || len(s) > 32 {
		return trace.TraceID{}, ErrInvalidTraceID
	}
	id, err := trace.TraceIDFromHex(leftPad(strings.ToLower(s), 32))
	if err != nil || id.IsZero() {
		return trace.TraceID{}, ErrInvalidTraceID
	}
	return id, nil
}

func parseSpanID(s string) (trace.SpanID, bool) {
	if len(s) == 0 || len(s) > 16 {
		return trace.SpanID{}, false
	}
	id, err := trace.SpanIDFromHex(leftPad(strings.ToLower(s), 16))
	if err != nil {
		return trace.SpanID{}, false
	}
	return id, true
}

func leftPad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}
