package trace

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/kzs0/tracehop/attr"
)

type stackKey struct{}

// Stack is the ordered list of entered spans of one execution unit. The
// innermost entered span is the implicit parent of new spans.
type Stack struct {
	mu     sync.Mutex
	base   TraceContext
	frames []*Span
}

func stackFrom(ctx context.Context) *Stack {
	st, _ := ctx.Value(stackKey{}).(*Stack)
	return st
}

// WithStack returns a context carrying a fresh, empty stack.
func WithStack(ctx context.Context) context.Context {
	return context.WithValue(ctx, stackKey{}, &Stack{})
}

// Fork returns a context for a concurrently running child unit. The child
// gets its own stack whose base is the parent's current span, so spans it
// starts are parented correctly without sharing push/pop state.
func Fork(ctx context.Context) context.Context {
	return context.WithValue(ctx, stackKey{}, &Stack{base: CurrentContext(ctx)})
}

// Enter pushes span onto the stack in ctx, installing a stack if ctx has
// none. Release the returned guard, usually with defer, to pop and end the
// span.
//
// Enter panics with a *MisuseError if the span has ended or is already
// entered.
func Enter(ctx context.Context, span *Span) (context.Context, *ScopeGuard) {
	st := stackFrom(ctx)
	if st == nil {
		st = &Stack{}
		ctx = context.WithValue(ctx, stackKey{}, st)
	}
	st.push(span)
	return ctx, &ScopeGuard{span: span}
}

func (st *Stack) push(span *Span) {
	if !span.IsRecording() {
		panic(misuse("enter", span, "span already ended"))
	}
	if !span.stack.CompareAndSwap(nil, st) {
		panic(misuse("enter", span, "span already entered"))
	}

	st.mu.Lock()
	st.frames = append(st.frames, span)
	st.mu.Unlock()
}

func (st *Stack) pop(span *Span, op string) {
	st.mu.Lock()
	n := len(st.frames)
	if n == 0 || st.frames[n-1] != span {
		st.mu.Unlock()
		panic(misuse(op, span, "not the innermost entered span"))
	}
	st.frames[n-1] = nil
	st.frames = st.frames[:n-1]
	st.mu.Unlock()

	span.stack.Store(nil)
}

func (st *Stack) top() *Span {
	st.mu.Lock()
	defer st.mu.Unlock()
	if len(st.frames) == 0 {
		return nil
	}
	return st.frames[len(st.frames)-1]
}

// ScopeGuard pops and ends an entered span when released.
type ScopeGuard struct {
	span     *Span
	released atomic.Bool
}

// Span returns the guarded span.
func (g *ScopeGuard) Span() *Span {
	return g.span
}

// Release ends the span unless it has already been ended. Calling Release
// more than once is a no-op.
func (g *ScopeGuard) Release() {
	if !g.released.CompareAndSwap(false, true) {
		return
	}
	if g.span.IsRecording() {
		g.span.End()
	}
}

// CurrentSpan returns the innermost entered span in ctx, or nil.
func CurrentSpan(ctx context.Context) *Span {
	st := stackFrom(ctx)
	if st == nil {
		return nil
	}
	return st.top()
}

// CurrentContext returns the trace context of the innermost entered span,
// falling back to the fork base. It returns the zero TraceContext when ctx
// has neither.
func CurrentContext(ctx context.Context) TraceContext {
	st := stackFrom(ctx)
	if st == nil {
		return TraceContext{}
	}
	if span := st.top(); span != nil {
		return span.sc
	}
	return st.base
}

// Depth returns the number of entered spans in ctx.
func Depth(ctx context.Context) int {
	st := stackFrom(ctx)
	if st == nil {
		return 0
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.frames)
}

// Unwind ends every entered span of the stack in ctx, innermost first, and
// tags each with trace.unwound=true. It returns the number of spans ended.
func Unwind(ctx context.Context) int {
	st := stackFrom(ctx)
	if st == nil {
		return 0
	}

	st.mu.Lock()
	frames := st.frames
	st.frames = nil
	st.mu.Unlock()

	ended := 0
	for i := len(frames) - 1; i >= 0; i-- {
		span := frames[i]
		span.stack.Store(nil)
		if _, ok := span.finish(attr.Bool("trace.unwound", true)); ok {
			ended++
		}
	}
	return ended
}

// Run executes fn as an execution unit with its own stack. Spans fn leaves
// entered are unwound when fn returns, fails or panics.
func Run(ctx context.Context, fn func(context.Context) error) error {
	ctx = Fork(ctx)
	defer Unwind(ctx)
	return fn(ctx)
}
