// Package trace implements spans, the per-goroutine current-span stack and
// the propagation of trace contexts through carriers.
package trace

import (
	"github.com/kzs0/tracehop/internal"
)

// TraceID is the 128-bit identifier shared by all spans of a trace.
type TraceID = internal.TraceID

// SpanID is the 64-bit identifier of a single span.
type SpanID = internal.SpanID

// TraceIDFromHex parses a 32 character hex trace ID.
func TraceIDFromHex(s string) (TraceID, error) {
	return internal.TraceIDFromHex(s)
}

// SpanIDFromHex parses a 16 character hex span ID.
func SpanIDFromHex(s string) (SpanID, error) {
	return internal.SpanIDFromHex(s)
}

// IDGenerator produces trace and span identifiers.
type IDGenerator interface {
	NewTraceID() TraceID
	NewSpanID() SpanID
}

type randomIDGenerator struct{}

func (randomIDGenerator) NewTraceID() TraceID { return internal.NewTraceID() }
func (randomIDGenerator) NewSpanID() SpanID   { return internal.NewSpanID() }

// TraceContext is the identity of a span as it travels between processes.
// It is a value type and never changes after construction; the With methods
// return modified copies.
type TraceContext struct {
	traceID    TraceID
	spanID     SpanID
	parentID   SpanID
	sampled    bool
	traceState string
	remote     bool
}

// TraceContextConfig holds the fields used to build a TraceContext.
type TraceContextConfig struct {
	TraceID      TraceID
	SpanID       SpanID
	ParentSpanID SpanID // zero when the span has no parent
	Sampled      bool
	TraceState   string // opaque vendor state, passed through unmodified
	Remote       bool   // true if decoded from a carrier
}

// NewTraceContext builds a TraceContext from cfg.
func NewTraceContext(cfg TraceContextConfig) TraceContext {
	return TraceContext{
		traceID:    cfg.TraceID,
		spanID:     cfg.SpanID,
		parentID:   cfg.ParentSpanID,
		sampled:    cfg.Sampled,
		traceState: cfg.TraceState,
		remote:     cfg.Remote,
	}
}

// TraceID returns the trace ID.
func (tc TraceContext) TraceID() TraceID { return tc.traceID }

// SpanID returns the span ID.
func (tc TraceContext) SpanID() SpanID { return tc.spanID }

// ParentSpanID returns the parent span ID, zero for roots.
func (tc TraceContext) ParentSpanID() SpanID { return tc.parentID }

// HasParent reports whether a parent span ID is set.
func (tc TraceContext) HasParent() bool { return !tc.parentID.IsZero() }

// Sampled reports whether spans of this context are exported.
func (tc TraceContext) Sampled() bool { return tc.sampled }

// TraceState returns the opaque vendor trace state.
func (tc TraceContext) TraceState() string { return tc.traceState }

// IsRemote reports whether the context was extracted from a carrier.
func (tc TraceContext) IsRemote() bool { return tc.remote }

// IsValid returns true if both identifiers are non-zero.
func (tc TraceContext) IsValid() bool {
	return !tc.traceID.IsZero() && !tc.spanID.IsZero()
}

// WithSampled returns a copy with the sampled flag replaced.
func (tc TraceContext) WithSampled(sampled bool) TraceContext {
	tc.sampled = sampled
	return tc
}

// WithTraceState returns a copy with the trace state replaced.
func (tc TraceContext) WithTraceState(state string) TraceContext {
	tc.traceState = state
	return tc
}

// Equal reports whether two contexts carry the same wire identity: trace ID,
// span ID, sampled flag and trace state. Parent linkage and the remote flag
// are local bookkeeping and are not compared.
func (tc TraceContext) Equal(other TraceContext) bool {
	return tc.traceID == other.traceID &&
		tc.spanID == other.spanID &&
		tc.sampled == other.sampled &&
		tc.traceState == other.traceState
}

// String returns "traceid-spanid" for logs.
func (tc TraceContext) String() string {
	return tc.traceID.String() + "-" + tc.spanID.String()
}
