package w3c

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kzs0/tracehop/trace"
)

func newContext(sampled bool, state string) trace.TraceContext {
	return trace.NewTraceContext(trace.TraceContextConfig{
		TraceID:    trace.TraceID{0x0a, 0xf7, 0x65, 0x19},
		SpanID:     trace.SpanID{0xb7, 0xad},
		Sampled:    sampled,
		TraceState: state,
	})
}

func TestPropagatorRoundTrip(t *testing.T) {
	p := Propagator{}

	for _, tc := range []trace.TraceContext{
		newContext(true, ""),
		newContext(false, ""),
		newContext(true, "congo=t61rcWkgMzE,rojo=00f067aa0ba902b7"),
	} {
		c := trace.MapCarrier{}
		p.Inject(tc, c)

		got, err := p.Extract(c)
		require.NoError(t, err)
		assert.True(t, got.Equal(tc), "round trip of %s", tc)
		assert.True(t, got.IsRemote())
	}
}

func TestPropagatorInject(t *testing.T) {
	p := Propagator{}

	t.Run("wire format", func(t *testing.T) {
		c := trace.MapCarrier{}
		p.Inject(newContext(true, ""), c)
		assert.Equal(t, "00-0af76519000000000000000000000000-b7ad000000000000-01", c.Get(TraceparentKey))
		assert.Equal(t, []string{TraceparentKey}, c.Keys(), "no tracestate without state")
	})

	t.Run("idempotent and leaves other keys", func(t *testing.T) {
		c := trace.MapCarrier{"x-request-id": "abc"}
		tc := newContext(true, "a=b")
		p.Inject(tc, c)
		first := c.Get(TraceparentKey)
		p.Inject(tc, c)

		assert.Equal(t, first, c.Get(TraceparentKey))
		assert.Equal(t, "abc", c.Get("x-request-id"))
		assert.Len(t, c.Keys(), 3)
	})

	t.Run("invalid context is a no-op", func(t *testing.T) {
		c := trace.MapCarrier{}
		p.Inject(trace.TraceContext{}, c)
		assert.Empty(t, c.Keys())
	})
}

func TestPropagatorExtract(t *testing.T) {
	p := Propagator{}
	valid := "00-" + exampleTraceID + "-" + exampleSpanID + "-01"

	t.Run("absent", func(t *testing.T) {
		got, err := p.Extract(trace.MapCarrier{"tracestate": "a=b"})
		require.NoError(t, err)
		assert.False(t, got.IsValid())
	})

	t.Run("case-insensitive keys", func(t *testing.T) {
		got, err := p.Extract(trace.MapCarrier{"Traceparent": valid, "TraceState": "a=b"})
		require.NoError(t, err)
		assert.Equal(t, exampleTraceID, got.TraceID().String())
		assert.Equal(t, exampleSpanID, got.SpanID().String())
		assert.True(t, got.Sampled())
		assert.Equal(t, "a=b", got.TraceState())
	})

	t.Run("malformed", func(t *testing.T) {
		got, err := p.Extract(trace.MapCarrier{"traceparent": "garbage", "tracestate": "a=b"})
		require.ErrorIs(t, err, trace.ErrMalformedContext)
		require.ErrorIs(t, err, ErrInvalidTraceparent)
		assert.False(t, got.IsValid())

		var mce *trace.MalformedContextError
		require.ErrorAs(t, err, &mce)
		assert.Equal(t, TraceparentKey, mce.Key)
		assert.Equal(t, "garbage", mce.Value)
	})

	t.Run("invalid tracestate is dropped", func(t *testing.T) {
		got, err := p.Extract(trace.MapCarrier{"traceparent": valid, "tracestate": "BAD KEY=1"})
		require.NoError(t, err)
		assert.True(t, got.IsValid())
		assert.Empty(t, got.TraceState())
	})
}

func TestFields(t *testing.T) {
	assert.Equal(t, []string{"traceparent", "tracestate"}, Propagator{}.Fields())
}
