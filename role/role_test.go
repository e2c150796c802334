package role

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kzs0/tracehop/trace"
	"github.com/kzs0/tracehop/trace/w3c"
)

type fixture struct {
	sink    *trace.MemorySink
	tracer  *trace.Tracer
	caller  *Caller
	handler *Handler
	logs    *bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	sink := trace.NewMemorySink()
	tracer := trace.NewTracer(trace.TracerConfig{ServiceName: "role-test", Sink: sink})
	logs := &bytes.Buffer{}
	prop := w3c.Propagator{}

	return &fixture{
		sink:   sink,
		tracer: tracer,
		caller: NewCaller(CallerConfig{Tracer: tracer, Propagator: prop}),
		handler: NewHandler(HandlerConfig{
			Tracer:     tracer,
			Propagator: prop,
			Logger:     slog.New(slog.NewTextHandler(logs, nil)),
		}),
		logs: logs,
	}
}

func (f *fixture) span(t *testing.T, name string) trace.FinishedSpan {
	t.Helper()
	s, ok := f.sink.Find(name)
	require.True(t, ok, "span %q not exported", name)
	return s
}

func TestCallerToHandler(t *testing.T) {
	f := newFixture(t)

	carrier := trace.MapCarrier{}
	code, err := f.caller.Call(context.Background(), "client handle", carrier, func(ctx context.Context) (int, error) {
		// The carrier crosses the "wire" here.
		err := f.handler.Handle(context.Background(), "server handle", carrier, func(ctx context.Context) error {
			_, g := f.tracer.Start(ctx, "doing something")
			g.Release()
			return nil
		})
		return 200, err
	})
	require.NoError(t, err)
	assert.Equal(t, 200, code)

	spans := f.sink.Spans()
	require.Len(t, spans, 3)

	client := f.span(t, "client handle")
	server := f.span(t, "server handle")
	work := f.span(t, "doing something")

	assert.Equal(t, trace.SpanKindClient, client.Kind)
	assert.Equal(t, trace.SpanKindServer, server.Kind)
	assert.Equal(t, trace.SpanKindInternal, work.Kind)

	for _, s := range spans {
		assert.Equal(t, client.TraceID(), s.TraceID())
	}
	assert.True(t, client.ParentID().IsZero())
	assert.Equal(t, client.SpanID(), server.ParentID())
	assert.Equal(t, server.SpanID(), work.ParentID())

	v, ok := client.Attrs.Get("rpc.status_code")
	require.True(t, ok)
	assert.Equal(t, int64(200), v.AsInt64())
}

func TestCallerChildOfCurrentSpan(t *testing.T) {
	f := newFixture(t)

	ctx, g := f.tracer.Start(context.Background(), "outer")
	_, err := f.caller.Call(ctx, "call", trace.MapCarrier{}, func(ctx context.Context) (int, error) {
		assert.Equal(t, "call", trace.CurrentSpan(ctx).Name())
		return 0, nil
	})
	require.NoError(t, err)
	g.Release()

	assert.Equal(t, f.span(t, "outer").SpanID(), f.span(t, "call").ParentID())
}

func TestCallerInjectsCarrier(t *testing.T) {
	f := newFixture(t)
	carrier := trace.MapCarrier{"x-other": "kept"}

	_, err := f.caller.Call(context.Background(), "call", carrier, func(ctx context.Context) (int, error) {
		tc, err := w3c.Propagator{}.Extract(carrier)
		require.NoError(t, err)
		assert.True(t, tc.Equal(trace.CurrentContext(ctx)))
		return 204, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "kept", carrier.Get("x-other"))
}

func TestCallerTransportError(t *testing.T) {
	f := newFixture(t)
	refused := errors.New("connection refused")

	_, err := f.caller.Call(context.Background(), "call", trace.MapCarrier{}, func(context.Context) (int, error) {
		return 0, refused
	})
	assert.Same(t, refused, err, "transport errors are returned unchanged")

	s := f.span(t, "call")
	assert.Equal(t, trace.StatusError, s.Status)
	assert.Equal(t, "connection refused", s.StatusMessage)
	assert.False(t, s.Attrs.Has("rpc.status_code"))
}

func TestCallerErrorCodes(t *testing.T) {
	sink := trace.NewMemorySink()
	tracer := trace.NewTracer(trace.TracerConfig{Sink: sink})
	caller := NewCaller(CallerConfig{
		Tracer:     tracer,
		Propagator: w3c.Propagator{},
		StatusKey:  "http.status_code",
		IsError:    func(code int) bool { return code >= 500 },
	})

	for _, code := range []int{200, 503} {
		_, err := caller.Call(context.Background(), "call", trace.MapCarrier{}, func(context.Context) (int, error) {
			return code, nil
		})
		require.NoError(t, err)
	}

	spans := sink.Spans()
	require.Len(t, spans, 2)
	assert.Equal(t, trace.StatusUnset, spans[0].Status)
	assert.Equal(t, trace.StatusError, spans[1].Status)
	assert.Equal(t, "status 503", spans[1].StatusMessage)
	assert.True(t, spans[1].Attrs.Has("http.status_code"))
}

func TestCallerPanic(t *testing.T) {
	f := newFixture(t)

	assert.PanicsWithValue(t, "boom", func() {
		_, _ = f.caller.Call(context.Background(), "call", trace.MapCarrier{}, func(context.Context) (int, error) {
			panic("boom")
		})
	})
	assert.Equal(t, trace.StatusError, f.span(t, "call").Status)
}

func TestHandlerWithoutContextStartsTrace(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.handler.Handle(context.Background(), "server", trace.MapCarrier{}, func(context.Context) error {
		return nil
	}))
	require.NoError(t, f.handler.Handle(context.Background(), "server", nil, func(context.Context) error {
		return nil
	}))

	spans := f.sink.Spans()
	require.Len(t, spans, 2)
	assert.True(t, spans[0].ParentID().IsZero())
	assert.NotEqual(t, spans[0].TraceID(), spans[1].TraceID())
	assert.Empty(t, f.logs.String())
}

func TestHandlerMalformedContextFallsBack(t *testing.T) {
	f := newFixture(t)
	carrier := trace.MapCarrier{"traceparent": "00-not-a-valid-header"}

	ctx, outer := f.tracer.Start(context.Background(), "unrelated")
	err := f.handler.Handle(ctx, "server", carrier, func(ctx context.Context) error {
		return nil
	})
	outer.Release()
	require.NoError(t, err)

	server := f.span(t, "server")
	assert.True(t, server.ParentID().IsZero())
	assert.NotEqual(t, outer.Span().TraceID(), server.TraceID(), "fallback starts a new trace")
	assert.Contains(t, f.logs.String(), "discarding malformed trace context")
}

func TestHandlerRecordsError(t *testing.T) {
	f := newFixture(t)
	failure := errors.New("bad request")

	err := f.handler.Handle(context.Background(), "server", nil, func(context.Context) error {
		return failure
	})
	assert.Same(t, failure, err)

	s := f.span(t, "server")
	assert.Equal(t, trace.StatusError, s.Status)
	assert.False(t, s.Attrs.Has("trace.unwound"))
}

func TestHandlerPanicEndsAllSpans(t *testing.T) {
	f := newFixture(t)

	assert.PanicsWithValue(t, "handler exploded", func() {
		_ = f.handler.Handle(context.Background(), "server", nil, func(ctx context.Context) error {
			ctx, _ = f.tracer.Start(ctx, "left open")
			_, _ = f.tracer.Start(ctx, "also open")
			panic("handler exploded")
		})
	})

	require.Equal(t, 3, f.sink.Len())
	server := f.span(t, "server")
	assert.Equal(t, trace.StatusError, server.Status)
	assert.Equal(t, "panic: handler exploded", server.StatusMessage)
	for _, s := range f.sink.Spans() {
		assert.False(t, s.EndTime.IsZero())
	}
}

func TestHandlerCancellation(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	err := f.handler.Handle(ctx, "server", nil, func(ctx context.Context) error {
		ctx, _ = f.tracer.Start(ctx, "step one")
		_, _ = f.tracer.Start(ctx, "step two")
		cancel()
		<-ctx.Done()
		return ctx.Err()
	})
	require.ErrorIs(t, err, context.Canceled)

	spans := f.sink.Spans()
	require.Len(t, spans, 3)
	assert.Equal(t, "step two", spans[0].Name)
	assert.Equal(t, "step one", spans[1].Name)
	assert.Equal(t, "server", spans[2].Name)
	for _, s := range spans {
		v, ok := s.Attrs.Get("trace.unwound")
		require.True(t, ok, s.Name)
		assert.True(t, v.AsBool())
	}
}

func TestHandlerIsolatesConcurrentRequests(t *testing.T) {
	f := newFixture(t)
	done := make(chan struct{})

	for i := 0; i < 4; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			_ = f.handler.Handle(context.Background(), "server", nil, func(ctx context.Context) error {
				_, g := f.tracer.Start(ctx, "work")
				g.Release()
				return nil
			})
		}()
	}
	for i := 0; i < 4; i++ {
		<-done
	}

	traces := map[trace.TraceID]int{}
	for _, s := range f.sink.Spans() {
		traces[s.TraceID()]++
	}
	assert.Len(t, traces, 4)
	for _, n := range traces {
		assert.Equal(t, 2, n)
	}
}

func TestCallerConcurrentCallsShareContext(t *testing.T) {
	f := newFixture(t)
	ctx, outer := f.tracer.Start(context.Background(), "outer")

	type call struct {
		started chan struct{}
		release chan struct{}
		done    chan error
	}
	start := func(name string) call {
		c := call{started: make(chan struct{}), release: make(chan struct{}), done: make(chan error, 1)}
		go func() {
			_, err := f.caller.Call(ctx, name, trace.MapCarrier{}, func(ctx context.Context) (int, error) {
				close(c.started)
				<-c.release
				return 200, nil
			})
			c.done <- err
		}()
		<-c.started
		return c
	}

	first := start("first")
	second := start("second")

	// The call entered first finishes first.
	close(first.release)
	require.NoError(t, <-first.done)
	close(second.release)
	require.NoError(t, <-second.done)

	assert.Same(t, outer.Span(), trace.CurrentSpan(ctx))
	assert.Equal(t, 1, trace.Depth(ctx))
	outer.Release()

	parent := f.span(t, "outer").SpanID()
	assert.Equal(t, parent, f.span(t, "first").ParentID())
	assert.Equal(t, parent, f.span(t, "second").ParentID())
	assert.Equal(t, 3, f.sink.Len())
}

func TestCallerNestedSpansParentToClientSpan(t *testing.T) {
	f := newFixture(t)

	_, err := f.caller.Call(context.Background(), "call", trace.MapCarrier{}, func(ctx context.Context) (int, error) {
		_, g := f.tracer.Start(ctx, "encode")
		g.Release()
		return 200, nil
	})
	require.NoError(t, err)

	assert.Equal(t, f.span(t, "call").SpanID(), f.span(t, "encode").ParentID())
}
