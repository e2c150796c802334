package trace

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedContext is matched by every extraction failure caused by
	// a reserved carrier key holding an unparsable value.
	ErrMalformedContext = errors.New("malformed trace context")

	// ErrSpanMisuse is matched by every lifecycle violation: ending a span
	// twice, ending or releasing out of stack order, entering an ended span.
	ErrSpanMisuse = errors.New("span misuse")

	// ErrExportFailed is wrapped by sinks that could not deliver spans.
	ErrExportFailed = errors.New("span export failed")
)

// MalformedContextError describes a carrier value that failed to parse.
type MalformedContextError struct {
	Key   string
	Value string
	Err   error
}

func (e *MalformedContextError) Error() string {
	return fmt.Sprintf("trace: malformed %s %q: %v", e.Key, e.Value, e.Err)
}

// Unwrap exposes both ErrMalformedContext and the underlying parse error.
func (e *MalformedContextError) Unwrap() []error {
	return []error{ErrMalformedContext, e.Err}
}

// MisuseError is the panic value raised on lifecycle violations.
type MisuseError struct {
	Op     string
	Span   string
	Reason string
}

func (e *MisuseError) Error() string {
	return fmt.Sprintf("trace: %s %q: %s", e.Op, e.Span, e.Reason)
}

func (e *MisuseError) Unwrap() error {
	return ErrSpanMisuse
}

func misuse(op string, span *Span, reason string) *MisuseError {
	return &MisuseError{Op: op, Span: span.name, Reason: reason}
}
