// Package log provides the slog handler used across tracehop. Records logged
// with a context that carries an entered span are stamped with its trace and
// span IDs.
package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/kzs0/tracehop/attr"
	"github.com/kzs0/tracehop/trace"
)

// Handler is a slog.Handler that injects trace context into records.
type Handler struct {
	inner slog.Handler
}

// HandlerOptions configures the Handler.
type HandlerOptions struct {
	// Level is the minimum log level to output.
	Level slog.Leveler
	// AddSource adds source code position to log output.
	AddSource bool
	// Output is the writer to write logs to. Defaults to os.Stderr.
	Output io.Writer
	// Format is the output format ("json" or "text"). Defaults to "json".
	Format string
}

// NewHandler creates a new Handler with the given options.
func NewHandler(opts *HandlerOptions) *Handler {
	if opts == nil {
		opts = &HandlerOptions{}
	}

	output := opts.Output
	if output == nil {
		output = os.Stderr
	}

	handlerOpts := &slog.HandlerOptions{
		Level:     opts.Level,
		AddSource: opts.AddSource,
	}

	var inner slog.Handler
	if opts.Format == "text" {
		inner = slog.NewTextHandler(output, handlerOpts)
	} else {
		inner = slog.NewJSONHandler(output, handlerOpts)
	}

	return &Handler{inner: inner}
}

// New returns a logger backed by a Handler.
func New(opts *HandlerOptions) *slog.Logger {
	return slog.New(NewHandler(opts))
}

// Enabled reports whether the handler handles records at the given level.
func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle adds trace_id and span_id of the current span, if any.
func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	if tc := trace.CurrentContext(ctx); tc.IsValid() {
		r.AddAttrs(
			slog.String("trace_id", tc.TraceID().String()),
			slog.String("span_id", tc.SpanID().String()),
		)
	}
	return h.inner.Handle(ctx, r)
}

// WithAttrs returns a new Handler with the given attributes added.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Handler{inner: h.inner.WithAttrs(attrs)}
}

// WithGroup returns a new Handler with the given group name.
func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{inner: h.inner.WithGroup(name)}
}

// ParseLevel maps "debug", "info", "warn" and "error" to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("log: unknown level %q", s)
	}
}

// AttrToSlog converts an attr.Attr to a slog.Attr.
func AttrToSlog(a attr.Attr) slog.Attr {
	switch a.Value.Kind() {
	case attr.KindString:
		return slog.String(a.Key, a.Value.AsString())
	case attr.KindInt64:
		return slog.Int64(a.Key, a.Value.AsInt64())
	case attr.KindFloat64:
		return slog.Float64(a.Key, a.Value.AsFloat64())
	case attr.KindBool:
		return slog.Bool(a.Key, a.Value.AsBool())
	case attr.KindDuration:
		return slog.Duration(a.Key, a.Value.AsDuration())
	case attr.KindTime:
		return slog.Time(a.Key, a.Value.AsTime())
	default:
		return slog.Any(a.Key, a.Value.AsAny())
	}
}

// SetToSlog converts every attribute of s, in key order.
func SetToSlog(s attr.Set) []any {
	out := make([]any, 0, s.Len())
	s.Range(func(a attr.Attr) bool {
		out = append(out, AttrToSlog(a))
		return true
	})
	return out
}
