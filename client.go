package tracehop

import (
	"net/http"

	"github.com/kzs0/tracehop/transport"
)

// ClientOption configures an instrumented http.Client.
type ClientOption func(*transport.Transport)

// WithSpanName gives every client span the same name instead of
// "HTTP <method>".
func WithSpanName(name string) ClientOption {
	return func(t *transport.Transport) {
		t.SpanName = func(*http.Request) string { return name }
	}
}

// WithSpanNameFunc derives the client span name from the request.
func WithSpanNameFunc(fn func(*http.Request) string) ClientOption {
	return func(t *transport.Transport) {
		t.SpanName = fn
	}
}

// NewClient creates an http.Client whose requests run under client spans of
// rt and carry their trace context in the request headers. The client span
// is a child of the current span in the request's context.
//
// Usage:
//
//	client := tracehop.NewClient(rt, nil)  // Uses default HTTP client settings
//	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
//	resp, err := client.Do(req)
//
// Or with custom settings:
//
//	base := &http.Client{Timeout: 30 * time.Second}
//	client := tracehop.NewClient(rt, base)
func NewClient(rt *Runtime, base *http.Client, opts ...ClientOption) *http.Client {
	if base == nil {
		base = &http.Client{}
	}

	tr := &transport.Transport{
		Base:   base.Transport,
		Caller: rt.Caller(),
	}
	for _, opt := range opts {
		opt(tr)
	}

	return &http.Client{
		Transport:     tr,
		CheckRedirect: base.CheckRedirect,
		Jar:           base.Jar,
		Timeout:       base.Timeout,
	}
}
