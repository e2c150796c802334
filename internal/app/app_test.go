package app

import (
	"bytes"
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kzs0/tracehop"
	"github.com/kzs0/tracehop/server"
	"github.com/kzs0/tracehop/trace"
)

func newRuntime(t *testing.T, logs *bytes.Buffer) (*tracehop.Runtime, *trace.MemorySink) {
	t.Helper()
	sink := trace.NewMemorySink()
	rt, err := tracehop.New(tracehop.Config{Service: "tracing test", LogOutput: logs}, tracehop.WithSink(sink))
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Shutdown(context.Background()) })
	return rt, sink
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:3000", cfg.ServerAddr)
	assert.Equal(t, "http://localhost:3000", cfg.ServerURL)
	assert.Equal(t, 300*time.Millisecond, cfg.RequestLatency)
	assert.Equal(t, 100*time.Millisecond, cfg.WorkLatency)
	assert.Equal(t, "tracehop", cfg.Tracehop.Service)
}

func TestLoadConfigEnv(t *testing.T) {
	t.Setenv("WORK_LATENCY", "0s")
	t.Setenv("TRACEHOP_SERVICE", "tracing test")
	t.Setenv("TRACEHOP_PROPAGATORS", "jaeger,tracecontext")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Zero(t, cfg.WorkLatency)
	assert.Equal(t, "tracing test", cfg.Tracehop.Service)
	assert.Equal(t, []string{"jaeger", "tracecontext"}, cfg.Tracehop.Propagators)
}

func TestClientServerTrace(t *testing.T) {
	rt, sink := newRuntime(t, &bytes.Buffer{})
	cfg := Config{}

	srv := httptest.NewServer(NewHandler(rt, cfg))
	defer srv.Close()
	cfg.ServerURL = srv.URL

	var out bytes.Buffer
	require.NoError(t, Call(context.Background(), rt, cfg, &out))
	assert.Equal(t, "status: 200 OK\n", out.String())

	require.Equal(t, 3, sink.Len())
	client, ok := sink.Find("client handle")
	require.True(t, ok)
	serverSpan, ok := sink.Find("server handle")
	require.True(t, ok)
	work, ok := sink.Find("doing something")
	require.True(t, ok)

	assert.Len(t, sink.Trace(client.TraceID()), 3)
	assert.True(t, client.ParentID().IsZero())
	assert.Equal(t, client.SpanID(), serverSpan.ParentID())
	assert.Equal(t, serverSpan.SpanID(), work.ParentID())

	assert.Equal(t, trace.SpanKindClient, client.Kind)
	assert.Equal(t, trace.SpanKindServer, serverSpan.Kind)
	assert.Equal(t, trace.SpanKindInternal, work.Kind)
}

func TestHelloResponds(t *testing.T) {
	rt, _ := newRuntime(t, &bytes.Buffer{})
	h := NewHello(rt.Tracer(), 0, 0)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, Greeting, rec.Body.String())
}

func TestHelloCancelled(t *testing.T) {
	rt, sink := newRuntime(t, &bytes.Buffer{})
	h := NewHandler(rt, Config{RequestLatency: time.Hour, WorkLatency: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	require.Equal(t, 1, sink.Len())
	s := sink.Spans()[0]
	assert.Equal(t, "server handle", s.Name)
	assert.Equal(t, trace.StatusError, s.Status)
	assert.False(t, s.EndTime.IsZero())
}

func TestServe(t *testing.T) {
	logs := &bytes.Buffer{}
	rt, _ := newRuntime(t, logs)
	cfg := Config{}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := server.New(NewHandler(rt, cfg), server.Config{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, rt, srv, ln) }()

	var out bytes.Buffer
	cfg.ServerURL = "http://" + ln.Addr().String()
	require.NoError(t, Call(context.Background(), rt, cfg, &out))
	assert.Equal(t, "status: 200 OK\n", out.String())

	cancel()
	require.NoError(t, <-done)
	assert.Contains(t, logs.String(), "Listening on "+ln.Addr().String())
}

func TestCallUnreachable(t *testing.T) {
	rt, sink := newRuntime(t, &bytes.Buffer{})
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	err := Call(context.Background(), rt, Config{ServerURL: srv.URL}, &bytes.Buffer{})
	require.Error(t, err)

	s, ok := sink.Find("client handle")
	require.True(t, ok)
	assert.Equal(t, trace.StatusError, s.Status)
}
