package trace

import (
	"context"
	"errors"
	"sync"
)

// Sink receives finished spans. Export must not block for long; sinks that
// talk to the network buffer internally.
type Sink interface {
	Export(span FinishedSpan)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(FinishedSpan)

// Export calls f(span).
func (f SinkFunc) Export(span FinishedSpan) {
	f(span)
}

// MultiSink fans spans out to several sinks in order.
type MultiSink []Sink

// Export forwards span to every sink.
func (m MultiSink) Export(span FinishedSpan) {
	for _, s := range m {
		s.Export(span)
	}
}

// Shutdown shuts down every sink that supports it.
func (m MultiSink) Shutdown(ctx context.Context) error {
	var errs []error
	for _, s := range m {
		if sh, ok := s.(interface{ Shutdown(context.Context) error }); ok {
			if err := sh.Shutdown(ctx); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// MemorySink records spans in memory, in export order.
type MemorySink struct {
	mu    sync.Mutex
	spans []FinishedSpan
}

// NewMemorySink creates an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Export records span.
func (m *MemorySink) Export(span FinishedSpan) {
	m.mu.Lock()
	m.spans = append(m.spans, span)
	m.mu.Unlock()
}

// Spans returns a copy of the recorded spans.
func (m *MemorySink) Spans() []FinishedSpan {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]FinishedSpan, len(m.spans))
	copy(out, m.spans)
	return out
}

// Len returns the number of recorded spans.
func (m *MemorySink) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.spans)
}

// Reset discards the recorded spans.
func (m *MemorySink) Reset() {
	m.mu.Lock()
	m.spans = nil
	m.mu.Unlock()
}

// Trace returns the recorded spans of one trace.
func (m *MemorySink) Trace(id TraceID) []FinishedSpan {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []FinishedSpan
	for _, s := range m.spans {
		if s.Context.traceID == id {
			out = append(out, s)
		}
	}
	return out
}

// Find returns the first recorded span with the given name.
func (m *MemorySink) Find(name string) (FinishedSpan, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.spans {
		if s.Name == name {
			return s, true
		}
	}
	return FinishedSpan{}, false
}
