package trace

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/kzs0/tracehop/attr"
)

// SpanKind represents the role of a span in a trace.
type SpanKind int

const (
	SpanKindInternal SpanKind = iota
	SpanKindServer
	SpanKindClient
)

// String returns the lowercase kind name.
func (k SpanKind) String() string {
	switch k {
	case SpanKindServer:
		return "server"
	case SpanKindClient:
		return "client"
	default:
		return "internal"
	}
}

// SpanStatus represents the status of a span.
type SpanStatus int

const (
	StatusUnset SpanStatus = iota
	StatusOK
	StatusError
)

// String returns the status name.
func (s SpanStatus) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusError:
		return "error"
	default:
		return "unset"
	}
}

// Event represents an event within a span.
type Event struct {
	Name  string
	Time  time.Time
	Attrs attr.Set
}

const (
	spanActive int32 = iota
	spanEnded
)

// Span represents a single operation within a trace. A span belongs to the
// goroutine that started it until End is called.
type Span struct {
	name      string
	kind      SpanKind
	sc        TraceContext
	startTime time.Time
	tracer    *Tracer

	state atomic.Int32
	stack atomic.Pointer[Stack]

	mu        sync.Mutex
	endTime   time.Time
	attrs     attr.Set
	events    []Event
	status    SpanStatus
	statusMsg string
}

// Name returns the span name.
func (s *Span) Name() string {
	return s.name
}

// Kind returns the span kind.
func (s *Span) Kind() SpanKind {
	return s.kind
}

// Context returns the span's propagation identity.
func (s *Span) Context() TraceContext {
	return s.sc
}

// TraceID returns the trace ID.
func (s *Span) TraceID() TraceID {
	return s.sc.traceID
}

// SpanID returns the span ID.
func (s *Span) SpanID() SpanID {
	return s.sc.spanID
}

// ParentID returns the parent span ID.
func (s *Span) ParentID() SpanID {
	return s.sc.parentID
}

// StartTime returns the span start time.
func (s *Span) StartTime() time.Time {
	return s.startTime
}

// EndTime returns the span end time, zero while the span is active.
func (s *Span) EndTime() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endTime
}

// Attrs returns the span attributes.
func (s *Span) Attrs() attr.Set {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attrs
}

// Events returns the span events.
func (s *Span) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	events := make([]Event, len(s.events))
	copy(events, s.events)
	return events
}

// Status returns the span status.
func (s *Span) Status() (SpanStatus, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status, s.statusMsg
}

// SetAttr adds or updates attributes on the span.
func (s *Span) SetAttr(attrs ...attr.Attr) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.IsRecording() {
		return
	}
	s.attrs = s.attrs.Merge(attrs...)
}

// AddEvent adds an event to the span.
func (s *Span) AddEvent(name string, attrs ...attr.Attr) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.IsRecording() {
		return
	}
	s.events = append(s.events, Event{
		Name:  name,
		Time:  now,
		Attrs: attr.NewSet(attrs...),
	})
}

// RecordError records an error as an exception event and sets the span
// status to error.
func (s *Span) RecordError(err error, attrs ...attr.Attr) {
	if err == nil {
		return
	}
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.IsRecording() {
		return
	}

	errAttrs := append([]attr.Attr{
		attr.String("exception.type", "error"),
		attr.String("exception.message", err.Error()),
	}, attrs...)

	s.events = append(s.events, Event{
		Name:  "exception",
		Time:  now,
		Attrs: attr.NewSet(errAttrs...),
	})

	s.status = StatusError
	s.statusMsg = err.Error()
}

// SetStatus sets the span status.
func (s *Span) SetStatus(status SpanStatus, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.IsRecording() {
		return
	}
	s.status = status
	s.statusMsg = msg
}

// End stamps the end time, pops the span from the stack it was entered on
// and hands the finished record to the tracer's sink.
//
// End panics with a *MisuseError when the span was already ended or when it
// is entered but not the innermost span of its stack.
func (s *Span) End() FinishedSpan {
	if !s.IsRecording() {
		panic(misuse("end", s, "span already ended"))
	}
	if st := s.stack.Load(); st != nil {
		st.pop(s, "end")
	}

	fs, ok := s.finish()
	if !ok {
		panic(misuse("end", s, "span already ended"))
	}
	return fs
}

// finish transitions the span to ended exactly once. It reports false if
// another caller won the transition.
func (s *Span) finish(extra ...attr.Attr) (FinishedSpan, bool) {
	if !s.state.CompareAndSwap(spanActive, spanEnded) {
		return FinishedSpan{}, false
	}
	now := s.now()

	s.mu.Lock()
	if len(extra) > 0 {
		s.attrs = s.attrs.Merge(extra...)
	}
	s.endTime = now
	fs := FinishedSpan{
		Name:          s.name,
		Kind:          s.kind,
		Context:       s.sc,
		StartTime:     s.startTime,
		EndTime:       s.endTime,
		Attrs:         s.attrs,
		Events:        append([]Event(nil), s.events...),
		Status:        s.status,
		StatusMessage: s.statusMsg,
	}
	s.mu.Unlock()

	if s.tracer != nil {
		s.tracer.export(fs)
	}
	return fs, true
}

// IsRecording returns true until the span is ended.
func (s *Span) IsRecording() bool {
	return s.state.Load() == spanActive
}

// IsSampled reports whether the span will be exported when it ends.
func (s *Span) IsSampled() bool {
	return s.sc.sampled
}

// Duration returns the span duration, or the time elapsed so far for an
// active span.
func (s *Span) Duration() time.Duration {
	s.mu.Lock()
	end := s.endTime
	s.mu.Unlock()
	if end.IsZero() {
		return s.now().Sub(s.startTime)
	}
	return end.Sub(s.startTime)
}

func (s *Span) now() time.Time {
	if s.tracer != nil {
		return s.tracer.clock.Now()
	}
	return time.Now()
}

// FinishedSpan is the immutable record of an ended span.
type FinishedSpan struct {
	Name          string
	Kind          SpanKind
	Context       TraceContext
	StartTime     time.Time
	EndTime       time.Time
	Attrs         attr.Set
	Events        []Event
	Status        SpanStatus
	StatusMessage string
}

// TraceID returns the trace ID of the span.
func (f FinishedSpan) TraceID() TraceID { return f.Context.traceID }

// SpanID returns the span ID.
func (f FinishedSpan) SpanID() SpanID { return f.Context.spanID }

// ParentID returns the parent span ID, zero for roots.
func (f FinishedSpan) ParentID() SpanID { return f.Context.parentID }

// Duration returns EndTime - StartTime.
func (f FinishedSpan) Duration() time.Duration {
	return f.EndTime.Sub(f.StartTime)
}
