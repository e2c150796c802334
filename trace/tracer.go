package trace

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/zoobzio/clockz"

	"github.com/kzs0/tracehop/attr"
)

// Tracer creates spans and hands finished ones to its sink.
type Tracer struct {
	serviceName string
	sampler     Sampler
	sink        Sink
	ids         IDGenerator
	clock       clockz.Clock
	logger      *slog.Logger

	shutdown atomic.Bool
}

// TracerConfig configures the tracer. Zero fields take defaults: the parent
// based sampler, random IDs, the real clock and a discarding logger.
type TracerConfig struct {
	ServiceName string
	Sampler     Sampler
	Sink        Sink
	IDGenerator IDGenerator
	Clock       clockz.Clock
	Logger      *slog.Logger
}

// NewTracer creates a new tracer.
func NewTracer(cfg TracerConfig) *Tracer {
	sampler := cfg.Sampler
	if sampler == nil {
		sampler = DefaultSampler()
	}
	ids := cfg.IDGenerator
	if ids == nil {
		ids = randomIDGenerator{}
	}
	clock := cfg.Clock
	if clock == nil {
		clock = clockz.RealClock
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Tracer{
		serviceName: cfg.ServiceName,
		sampler:     sampler,
		sink:        cfg.Sink,
		ids:         ids,
		clock:       clock,
		logger:      logger,
	}
}

// StartSpanOptions configures span creation.
type StartSpanOptions struct {
	Kind      SpanKind
	Attrs     []attr.Attr
	Parent    TraceContext
	NewRoot   bool
	StartTime time.Time
}

// StartSpanOption configures span creation.
type StartSpanOption func(*StartSpanOptions)

// WithSpanKind sets the span kind.
func WithSpanKind(kind SpanKind) StartSpanOption {
	return func(o *StartSpanOptions) {
		o.Kind = kind
	}
}

// WithAttrs sets the initial span attributes.
func WithAttrs(attrs ...attr.Attr) StartSpanOption {
	return func(o *StartSpanOptions) {
		o.Attrs = append(o.Attrs, attrs...)
	}
}

// WithParent sets an explicit parent, overriding the current span in the
// context. An invalid parent is ignored.
func WithParent(parent TraceContext) StartSpanOption {
	return func(o *StartSpanOptions) {
		o.Parent = parent
	}
}

// WithNewRoot starts a new trace regardless of the current span.
func WithNewRoot() StartSpanOption {
	return func(o *StartSpanOptions) {
		o.NewRoot = true
	}
}

// WithStartTime overrides the start timestamp.
func WithStartTime(t time.Time) StartSpanOption {
	return func(o *StartSpanOptions) {
		o.StartTime = t
	}
}

// StartSpan creates a new span. The parent is taken from WithParent, then
// from the innermost entered span in ctx; with neither the span is a root.
// The span is not entered; use Enter or Start for that.
func (t *Tracer) StartSpan(ctx context.Context, name string, opts ...StartSpanOption) *Span {
	var options StartSpanOptions
	for _, opt := range opts {
		opt(&options)
	}

	var parent TraceContext
	switch {
	case options.Parent.IsValid():
		parent = options.Parent
	case !options.NewRoot:
		parent = CurrentContext(ctx)
	}

	var sc TraceContext
	if parent.IsValid() {
		sc = TraceContext{
			traceID:    parent.traceID,
			parentID:   parent.spanID,
			traceState: parent.traceState,
		}
	} else {
		sc = TraceContext{traceID: t.ids.NewTraceID()}
	}
	sc.spanID = t.ids.NewSpanID()

	result := t.sampler.ShouldSample(SamplingParameters{
		TraceID: sc.traceID,
		Name:    name,
		Kind:    options.Kind,
		Parent:  parent,
	})
	sc.sampled = result.Sampled()

	start := options.StartTime
	if start.IsZero() {
		start = t.clock.Now()
	}

	return &Span{
		name:      name,
		kind:      options.Kind,
		sc:        sc,
		startTime: start,
		attrs:     attr.NewSet(options.Attrs...),
		tracer:    t,
	}
}

// Start creates a span and enters it. Release the guard to end it.
func (t *Tracer) Start(ctx context.Context, name string, opts ...StartSpanOption) (context.Context, *ScopeGuard) {
	return Enter(ctx, t.StartSpan(ctx, name, opts...))
}

// export hands a finished span to the sink. Sink panics are logged and
// never reach the caller of End.
func (t *Tracer) export(fs FinishedSpan) {
	if t.sink == nil || !fs.Context.sampled || t.shutdown.Load() {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("span sink panicked",
				slog.String("span", fs.Name),
				slog.String("trace_id", fs.Context.traceID.String()),
				slog.String("panic", fmt.Sprint(r)),
			)
		}
	}()
	t.sink.Export(fs)
}

// Shutdown stops exporting and shuts the sink down. Only the first call
// has an effect.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if !t.shutdown.CompareAndSwap(false, true) {
		return nil
	}
	if s, ok := t.sink.(interface{ Shutdown(context.Context) error }); ok {
		return s.Shutdown(ctx)
	}
	return nil
}

// ServiceName returns the service name.
func (t *Tracer) ServiceName() string {
	return t.serviceName
}

// Clock returns the clock spans are timed with.
func (t *Tracer) Clock() clockz.Clock {
	return t.clock
}

// Logger returns the tracer's logger.
func (t *Tracer) Logger() *slog.Logger {
	return t.logger
}
