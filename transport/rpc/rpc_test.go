package rpc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/kzs0/tracehop/role"
	"github.com/kzs0/tracehop/trace"
	"github.com/kzs0/tracehop/trace/w3c"
)

const method = "/hello.Greeter/SayHello"

func TestMetadataCarrier(t *testing.T) {
	md := metadata.New(nil)
	c := MetadataCarrier(md)

	c.Set("Traceparent", "a")
	c.Set("x-other", "b")
	assert.Equal(t, "a", c.Get("traceparent"))
	assert.Equal(t, "a", c.Get("TRACEPARENT"))
	assert.Equal(t, []string{"traceparent", "x-other"}, c.Keys())

	md.Append("tracestate", "k1=v1", "k2=v2")
	assert.Equal(t, "k1=v1,k2=v2", c.Get("tracestate"))
	assert.Empty(t, c.Get("missing"))
}

func TestMetadataRoundTrip(t *testing.T) {
	tracer := trace.NewTracer(trace.TracerConfig{})
	span := tracer.StartSpan(context.Background(), "op")
	defer span.End()

	md := metadata.New(nil)
	w3c.Propagator{}.Inject(span.Context(), MetadataCarrier(md))

	got, err := w3c.Propagator{}.Extract(MetadataCarrier(md))
	require.NoError(t, err)
	assert.True(t, got.Equal(span.Context()))
}

type setup struct {
	sink   *trace.MemorySink
	client grpc.UnaryClientInterceptor
	server grpc.UnaryServerInterceptor
}

func newSetup() setup {
	sink := trace.NewMemorySink()
	tracer := trace.NewTracer(trace.TracerConfig{Sink: sink})
	prop := w3c.Propagator{}
	return setup{
		sink:   sink,
		client: UnaryClientInterceptor(NewCaller(tracer, prop)),
		server: UnaryServerInterceptor(role.NewHandler(role.HandlerConfig{Tracer: tracer, Propagator: prop})),
	}
}

// loopback invokes the server interceptor with the metadata the client
// interceptor sent, standing in for the network.
func (s setup) loopback(handler grpc.UnaryHandler) grpc.UnaryInvoker {
	return func(ctx context.Context, method string, req, reply any, _ *grpc.ClientConn, _ ...grpc.CallOption) error {
		md, _ := metadata.FromOutgoingContext(ctx)
		serverCtx := metadata.NewIncomingContext(context.Background(), md)
		resp, err := s.server(serverCtx, req, &grpc.UnaryServerInfo{FullMethod: method}, handler)
		if err == nil {
			*(reply.(*string)) = resp.(string)
		}
		return err
	}
}

func TestInterceptorsPropagate(t *testing.T) {
	s := newSetup()

	var reply string
	err := s.client(context.Background(), method, "world", &reply, nil,
		s.loopback(func(ctx context.Context, req any) (any, error) {
			assert.Equal(t, method, trace.CurrentSpan(ctx).Name())
			return "hello, " + req.(string), nil
		}))
	require.NoError(t, err)
	assert.Equal(t, "hello, world", reply)

	require.Equal(t, 2, s.sink.Len())
	spans := s.sink.Spans()
	server, client := spans[0], spans[1]

	assert.Equal(t, trace.SpanKindServer, server.Kind)
	assert.Equal(t, trace.SpanKindClient, client.Kind)
	assert.Equal(t, client.TraceID(), server.TraceID())
	assert.Equal(t, client.SpanID(), server.ParentID())

	for _, sp := range spans {
		v, ok := sp.Attrs.Get(StatusKey)
		require.True(t, ok)
		assert.Equal(t, int64(codes.OK), v.AsInt64())
		assert.Equal(t, trace.StatusUnset, sp.Status)
	}
}

func TestInterceptorsRecordStatus(t *testing.T) {
	s := newSetup()

	var reply string
	err := s.client(context.Background(), method, "world", &reply, nil,
		s.loopback(func(context.Context, any) (any, error) {
			return nil, status.Error(codes.NotFound, "no such greeter")
		}))
	require.Error(t, err)
	assert.Equal(t, codes.NotFound, status.Code(err))

	for _, sp := range s.sink.Spans() {
		v, ok := sp.Attrs.Get(StatusKey)
		require.True(t, ok, sp.Name)
		assert.Equal(t, int64(codes.NotFound), v.AsInt64())
		assert.Equal(t, trace.StatusError, sp.Status)
	}
}

func TestClientInterceptorKeepsOutgoingMetadata(t *testing.T) {
	s := newSetup()
	ctx := metadata.AppendToOutgoingContext(context.Background(), "x-tenant", "acme")
	original, _ := metadata.FromOutgoingContext(ctx)

	err := s.client(ctx, method, nil, nil, nil,
		func(ctx context.Context, _ string, _, _ any, _ *grpc.ClientConn, _ ...grpc.CallOption) error {
			md, ok := metadata.FromOutgoingContext(ctx)
			require.True(t, ok)
			assert.Equal(t, []string{"acme"}, md.Get("x-tenant"))
			assert.Len(t, md.Get("traceparent"), 1)
			return nil
		})
	require.NoError(t, err)
	assert.Empty(t, original.Get("traceparent"), "caller metadata is not mutated")
}

func TestServerInterceptorWithoutMetadata(t *testing.T) {
	s := newSetup()

	resp, err := s.server(context.Background(), "req", &grpc.UnaryServerInfo{FullMethod: method},
		func(ctx context.Context, req any) (any, error) {
			return req, nil
		})
	require.NoError(t, err)
	assert.Equal(t, "req", resp)

	require.Equal(t, 1, s.sink.Len())
	assert.True(t, s.sink.Spans()[0].ParentID().IsZero())
}
