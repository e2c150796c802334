// Package tracehop wires trace-context propagation into a service: a
// Runtime owns the tracer, the propagator and the sinks, and hands out the
// role drivers that the HTTP middleware and client are built on.
//
//	cfg, err := tracehop.FromEnv()
//	rt, err := tracehop.New(cfg)
//	defer rt.Shutdown(context.Background())
//
//	http.ListenAndServe(addr, tracehop.HTTPMiddleware(rt, mux))
package tracehop

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/kzs0/tracehop/log"
	"github.com/kzs0/tracehop/role"
	"github.com/kzs0/tracehop/trace"
	"github.com/kzs0/tracehop/trace/jaeger"
	"github.com/kzs0/tracehop/trace/otelprop"
	"github.com/kzs0/tracehop/trace/otlp"
	"github.com/kzs0/tracehop/trace/w3c"
	"github.com/kzs0/tracehop/transport"
)

// Propagator names accepted in Config.Propagators.
const (
	PropagatorTraceContext = "tracecontext"
	PropagatorJaeger       = "jaeger"
	PropagatorOTel         = "otel"
)

// Runtime is the process-wide tracing setup.
type Runtime struct {
	config Config
	logger *slog.Logger
	tracer *trace.Tracer
	prop   trace.Propagator

	caller  *role.Caller
	handler *role.Handler

	shutdownOnce sync.Once
	shutdownErr  error
}

// New creates a Runtime from cfg. Zero fields of cfg take the defaults of
// DefaultConfig.
func New(cfg Config, opts ...Option) (*Runtime, error) {
	o := applyOptions(opts)
	cfg = withDefaults(cfg)

	level, err := cfg.logLevel()
	if err != nil {
		return nil, fmt.Errorf("tracehop: %w", err)
	}
	logger := log.New(&log.HandlerOptions{
		Level:  level,
		Output: cfg.LogOutput,
		Format: cfg.LogFormat,
	}).With(slog.String("service", cfg.Service))

	prop, err := NewPropagator(cfg.Propagators...)
	if err != nil {
		return nil, err
	}

	sinks := append(trace.MultiSink(nil), o.sinks...)
	if cfg.TraceLog {
		sinks = append(sinks, log.NewSpanSink(logger))
	}
	if cfg.TraceURL != "" {
		exporter := otlp.NewExporter(otlp.ExporterConfig{
			Endpoint:    cfg.TraceURL,
			ServiceName: cfg.Service,
		})
		batch := otlp.DefaultBatchConfig()
		batch.Logger = logger
		sinks = append(sinks, otlp.NewBatchProcessor(exporter, batch))
	}
	var sink trace.Sink
	if len(sinks) > 0 {
		sink = sinks
	}

	sampler := o.sampler
	if rate := *cfg.TraceSampleRate; sampler == nil && rate < 1.0 {
		sampler = trace.NewParentBasedSampler(trace.NewRatioSampler(rate))
	}

	tracer := trace.NewTracer(trace.TracerConfig{
		ServiceName: cfg.Service,
		Sampler:     sampler,
		Sink:        sink,
		IDGenerator: o.ids,
		Clock:       o.clock,
		Logger:      logger,
	})

	return &Runtime{
		config: cfg,
		logger: logger,
		tracer: tracer,
		prop:   prop,
		caller: transport.NewCaller(tracer, prop),
		handler: role.NewHandler(role.HandlerConfig{
			Tracer:     tracer,
			Propagator: prop,
			Logger:     logger,
		}),
	}, nil
}

func withDefaults(cfg Config) Config {
	def := DefaultConfig()
	if cfg.Service == "" {
		cfg.Service = def.Service
	}
	if len(cfg.Propagators) == 0 {
		cfg.Propagators = def.Propagators
	}
	if cfg.TraceSampleRate == nil {
		cfg.TraceSampleRate = def.TraceSampleRate
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}
	if cfg.LogOutput == nil {
		cfg.LogOutput = os.Stderr
	}
	return cfg
}

// NewPropagator builds a propagator from format names. Several names are
// combined into a composite that extracts in the given order.
func NewPropagator(names ...string) (trace.Propagator, error) {
	props := make([]trace.Propagator, 0, len(names))
	for _, name := range names {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case PropagatorTraceContext, "w3c":
			props = append(props, w3c.Propagator{})
		case PropagatorJaeger:
			props = append(props, jaeger.Propagator{})
		case PropagatorOTel:
			props = append(props, otelprop.New(nil))
		default:
			return nil, fmt.Errorf("tracehop: unknown propagator %q", name)
		}
	}

	switch len(props) {
	case 0:
		return w3c.Propagator{}, nil
	case 1:
		return props[0], nil
	default:
		return trace.NewCompositePropagator(props...), nil
	}
}

// Config returns the effective configuration.
func (r *Runtime) Config() Config {
	return r.config
}

// Logger returns the runtime's logger. Records logged with a context carry
// the current trace and span ids.
func (r *Runtime) Logger() *slog.Logger {
	return r.logger
}

// Tracer returns the tracer.
func (r *Runtime) Tracer() *trace.Tracer {
	return r.tracer
}

// Propagator returns the configured propagator.
func (r *Runtime) Propagator() trace.Propagator {
	return r.prop
}

// Caller returns the client role driver used for HTTP calls.
func (r *Runtime) Caller() *role.Caller {
	return r.caller
}

// Handler returns the server role driver.
func (r *Runtime) Handler() *role.Handler {
	return r.handler
}

// Shutdown flushes and stops the sinks. Only the first call has an effect;
// later calls return its result.
func (r *Runtime) Shutdown(ctx context.Context) error {
	r.shutdownOnce.Do(func() {
		ctx, cancel := context.WithTimeout(ctx, r.config.ShutdownTimeout)
		defer cancel()

		if err := r.tracer.Shutdown(ctx); err != nil {
			r.shutdownErr = fmt.Errorf("tracehop: shutdown: %w", err)
		}
	})
	return r.shutdownErr
}
