// Package app is the demo service: a server whose handler sleeps, does some
// nested work and answers "hello, world!", and a client that calls it once.
package app

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/zoobzio/clockz"

	"github.com/kzs0/tracehop"
	"github.com/kzs0/tracehop/trace"
)

// Greeting is the server's response body.
const Greeting = "hello, world!"

// Hello answers every request with Greeting after the configured latency.
type Hello struct {
	tracer         *trace.Tracer
	clock          clockz.Clock
	requestLatency time.Duration
	workLatency    time.Duration
}

// NewHello creates the handler. Latencies are waited out on the tracer's
// clock.
func NewHello(tracer *trace.Tracer, requestLatency, workLatency time.Duration) *Hello {
	return &Hello{
		tracer:         tracer,
		clock:          tracer.Clock(),
		requestLatency: requestLatency,
		workLatency:    workLatency,
	}
}

func (h *Hello) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.sleep(ctx, h.requestLatency); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	if err := h.doSomething(ctx); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	_, _ = io.WriteString(w, Greeting)
}

func (h *Hello) doSomething(ctx context.Context) error {
	ctx, g := h.tracer.Start(ctx, "doing something")
	defer g.Release()

	if err := h.sleep(ctx, h.workLatency); err != nil {
		g.Span().RecordError(err)
		return err
	}
	return nil
}

// sleep waits for d or until ctx is done.
func (h *Hello) sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}
	select {
	case <-h.clock.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NewHandler returns the demo application: Hello on every path, handled
// under a "server handle" span.
func NewHandler(rt *tracehop.Runtime, cfg Config) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/", NewHello(rt.Tracer(), cfg.RequestLatency, cfg.WorkLatency))
	return tracehop.HTTPMiddleware(rt, mux, tracehop.WithOperationName("server handle"))
}
