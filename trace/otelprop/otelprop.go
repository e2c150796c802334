// Package otelprop lets OpenTelemetry text map propagators act as
// trace.Propagator, so services instrumented with OpenTelemetry exchange
// contexts with this module.
package otelprop

import (
	"context"

	"go.opentelemetry.io/otel/propagation"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/kzs0/tracehop/trace"
)

// Propagator adapts a propagation.TextMapPropagator.
type Propagator struct {
	prop propagation.TextMapPropagator
}

var _ trace.Propagator = (*Propagator)(nil)

// New wraps prop. A nil prop uses propagation.TraceContext.
func New(prop propagation.TextMapPropagator) *Propagator {
	if prop == nil {
		prop = propagation.TraceContext{}
	}
	return &Propagator{prop: prop}
}

// Inject converts tc and hands it to the wrapped propagator.
func (p *Propagator) Inject(tc trace.TraceContext, carrier trace.Carrier) {
	sc := ToOTel(tc)
	if !sc.IsValid() {
		return
	}
	ctx := oteltrace.ContextWithRemoteSpanContext(context.Background(), sc)
	p.prop.Inject(ctx, carrier)
}

// Extract runs the wrapped propagator. OpenTelemetry propagators discard
// unparsable input, so malformed values are reported as absent.
func (p *Propagator) Extract(carrier trace.Carrier) (trace.TraceContext, error) {
	ctx := p.prop.Extract(context.Background(), carrier)
	sc := oteltrace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return trace.TraceContext{}, nil
	}
	return FromOTel(sc), nil
}

// Fields returns the wrapped propagator's keys.
func (p *Propagator) Fields() []string {
	return p.prop.Fields()
}

// ToOTel converts tc to an OpenTelemetry span context. A trace state that
// OpenTelemetry rejects is dropped.
func ToOTel(tc trace.TraceContext) oteltrace.SpanContext {
	var flags oteltrace.TraceFlags
	if tc.Sampled() {
		flags = oteltrace.FlagsSampled
	}
	state, err := oteltrace.ParseTraceState(tc.TraceState())
	if err != nil {
		state = oteltrace.TraceState{}
	}
	return oteltrace.NewSpanContext(oteltrace.SpanContextConfig{
		TraceID:    oteltrace.TraceID(tc.TraceID()),
		SpanID:     oteltrace.SpanID(tc.SpanID()),
		TraceFlags: flags,
		TraceState: state,
		Remote:     tc.IsRemote(),
	})
}

// FromOTel converts an OpenTelemetry span context.
func FromOTel(sc oteltrace.SpanContext) trace.TraceContext {
	return trace.NewTraceContext(trace.TraceContextConfig{
		TraceID:    trace.TraceID(sc.TraceID()),
		SpanID:     trace.SpanID(sc.SpanID()),
		Sampled:    sc.IsSampled(),
		TraceState: sc.TraceState().String(),
		Remote:     sc.IsRemote(),
	})
}
