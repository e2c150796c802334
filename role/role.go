// Package role drives the two ends of a traced call independently of the
// transport. A Caller wraps an outbound call in a client span and injects its
// context; a Handler extracts the caller's context and runs the work under a
// server span.
package role

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kzs0/tracehop/attr"
	"github.com/kzs0/tracehop/trace"
)

// CallFunc performs the outbound call once the carrier holds the client
// span's context. It returns the transport's status code.
type CallFunc func(ctx context.Context) (int, error)

// WorkFunc handles an inbound call. ctx carries the server span.
type WorkFunc func(ctx context.Context) error

// CallerConfig configures a Caller.
type CallerConfig struct {
	Tracer     *trace.Tracer
	Propagator trace.Propagator
	// StatusKey is the attribute holding the status code. Defaults to
	// "rpc.status_code".
	StatusKey string
	// IsError classifies status codes as failures. When nil only transport
	// errors mark the span as failed.
	IsError func(code int) bool
}

// Caller is the client role.
type Caller struct {
	tracer    *trace.Tracer
	prop      trace.Propagator
	statusKey string
	isError   func(int) bool
}

// NewCaller creates a Caller.
func NewCaller(cfg CallerConfig) *Caller {
	statusKey := cfg.StatusKey
	if statusKey == "" {
		statusKey = "rpc.status_code"
	}
	return &Caller{
		tracer:    cfg.Tracer,
		prop:      cfg.Propagator,
		statusKey: statusKey,
		isError:   cfg.IsError,
	}
}

// Call starts a client span named name, child of the current span in ctx,
// injects its context into carrier and runs call with the span entered. The
// span ends when call returns. Transport errors are recorded and returned
// unchanged.
func (c *Caller) Call(ctx context.Context, name string, carrier trace.Carrier, call CallFunc, opts ...trace.StartSpanOption) (int, error) {
	spanOpts := append([]trace.StartSpanOption{trace.WithSpanKind(trace.SpanKindClient)}, opts...)
	span := c.tracer.StartSpan(ctx, name, spanOpts...)
	c.prop.Inject(span.Context(), carrier)

	// The call is its own unit: concurrent calls sharing ctx must not share
	// a stack.
	ctx, guard := trace.Enter(trace.Fork(ctx), span)
	defer guard.Release()
	defer func() {
		if r := recover(); r != nil {
			span.RecordError(fmt.Errorf("panic: %v", r))
			panic(r)
		}
	}()

	code, err := call(ctx)
	if err != nil {
		span.RecordError(err)
		return code, err
	}

	span.SetAttr(attr.Int(c.statusKey, code))
	if c.isError != nil && c.isError(code) {
		span.SetStatus(trace.StatusError, fmt.Sprintf("status %d", code))
	}
	return code, nil
}

// HandlerConfig configures a Handler.
type HandlerConfig struct {
	Tracer     *trace.Tracer
	Propagator trace.Propagator
	// Logger receives warnings about discarded trace contexts.
	Logger *slog.Logger
}

// Handler is the server role.
type Handler struct {
	tracer *trace.Tracer
	prop   trace.Propagator
	logger *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{
		tracer: cfg.Tracer,
		prop:   cfg.Propagator,
		logger: logger,
	}
}

// Extract returns the caller's context from carrier. Malformed contexts are
// logged and reported as absent.
func (h *Handler) Extract(ctx context.Context, carrier trace.Carrier) trace.TraceContext {
	if carrier == nil {
		return trace.TraceContext{}
	}
	remote, err := h.prop.Extract(carrier)
	if err != nil {
		h.logger.WarnContext(ctx, "discarding malformed trace context", slog.String("error", err.Error()))
		return trace.TraceContext{}
	}
	return remote
}

// Handle runs work as its own execution unit inside a server span named
// name. The span is parented to the context extracted from carrier, or
// starts a new trace. Errors and panics from work are recorded on the span;
// panics are re-raised after every span of the unit has ended.
func (h *Handler) Handle(ctx context.Context, name string, carrier trace.Carrier, work WorkFunc, opts ...trace.StartSpanOption) error {
	spanOpts := []trace.StartSpanOption{trace.WithSpanKind(trace.SpanKindServer)}
	if remote := h.Extract(ctx, carrier); remote.IsValid() {
		spanOpts = append(spanOpts, trace.WithParent(remote))
	} else {
		spanOpts = append(spanOpts, trace.WithNewRoot())
	}
	spanOpts = append(spanOpts, opts...)

	return trace.Run(ctx, func(ctx context.Context) (err error) {
		span := h.tracer.StartSpan(ctx, name, spanOpts...)
		ctx, _ = trace.Enter(ctx, span)

		defer func() {
			r := recover()
			switch {
			case r != nil:
				span.RecordError(fmt.Errorf("panic: %v", r))
			case err != nil:
				span.RecordError(err)
			}

			if trace.CurrentSpan(ctx) == span {
				span.End()
			} else {
				trace.Unwind(ctx)
			}

			if r != nil {
				panic(r)
			}
		}()

		return work(ctx)
	})
}
