package log

import (
	"context"
	"log/slog"

	"github.com/kzs0/tracehop/trace"
)

// SpanSink is a trace.Sink that writes one record per finished span.
// Spans with an error status are logged at warn level.
type SpanSink struct {
	logger *slog.Logger
}

var _ trace.Sink = (*SpanSink)(nil)

// NewSpanSink creates a sink writing to logger.
func NewSpanSink(logger *slog.Logger) *SpanSink {
	return &SpanSink{logger: logger}
}

// Export logs span.
func (s *SpanSink) Export(span trace.FinishedSpan) {
	level := slog.LevelInfo
	if span.Status == trace.StatusError {
		level = slog.LevelWarn
	}

	ctx := context.Background()
	if !s.logger.Enabled(ctx, level) {
		return
	}

	args := []any{
		slog.String("span", span.Name),
		slog.String("kind", span.Kind.String()),
		slog.String("trace_id", span.TraceID().String()),
		slog.String("span_id", span.SpanID().String()),
	}
	if parent := span.ParentID(); !parent.IsZero() {
		args = append(args, slog.String("parent_id", parent.String()))
	}
	args = append(args,
		slog.Duration("duration", span.Duration()),
		slog.String("status", span.Status.String()),
	)
	if span.StatusMessage != "" {
		args = append(args, slog.String("status_message", span.StatusMessage))
	}
	if span.Attrs.Len() > 0 {
		args = append(args, slog.Group("attrs", SetToSlog(span.Attrs)...))
	}

	s.logger.Log(ctx, level, "span finished", args...)
}
