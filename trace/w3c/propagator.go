package w3c

import (
	"github.com/kzs0/tracehop/trace"
)

const (
	TraceparentKey = "traceparent"
	TracestateKey  = "tracestate"
)

// Propagator implements trace.Propagator using the traceparent and
// tracestate keys.
//
//	prop := w3c.Propagator{}
//	prop.Inject(span.Context(), carrier)
//	remote, err := prop.Extract(carrier)
type Propagator struct{}

var _ trace.Propagator = Propagator{}

// Inject writes traceparent, and tracestate when the context has one.
// Invalid contexts are not injected.
func (Propagator) Inject(tc trace.TraceContext, carrier trace.Carrier) {
	if !tc.IsValid() {
		return
	}
	carrier.Set(TraceparentKey, FormatTraceparent(tc.TraceID(), tc.SpanID(), tc.Sampled()))
	if ts := tc.TraceState(); ts != "" {
		carrier.Set(TracestateKey, ts)
	}
}

// Extract reads traceparent and tracestate.
//
// A missing traceparent is not an error. An invalid traceparent yields a
// *trace.MalformedContextError and tracestate is ignored. An invalid
// tracestate alone is dropped.
func (Propagator) Extract(carrier trace.Carrier) (trace.TraceContext, error) {
	value := carrier.Get(TraceparentKey)
	if value == "" {
		return trace.TraceContext{}, nil
	}

	tp, err := ParseTraceparent(value)
	if err != nil {
		return trace.TraceContext{}, &trace.MalformedContextError{
			Key:   TraceparentKey,
			Value: value,
			Err:   err,
		}
	}

	state := carrier.Get(TracestateKey)
	if _, err := ParseTracestate(state); err != nil {
		state = ""
	}

	return trace.NewTraceContext(trace.TraceContextConfig{
		TraceID:    tp.TraceID,
		SpanID:     tp.SpanID,
		Sampled:    tp.Sampled(),
		TraceState: state,
		Remote:     true,
	}), nil
}

// Fields returns the carrier keys this propagator uses.
func (Propagator) Fields() []string {
	return []string{TraceparentKey, TracestateKey}
}
