// Package transport provides the client side of trace propagation over HTTP.
// Transport is an http.RoundTripper that runs every request through a
// role.Caller. For typical usage, build clients with tracehop.NewClient
// instead.
package transport

import (
	"context"
	"fmt"
	"net/http"

	"github.com/kzs0/tracehop/attr"
	"github.com/kzs0/tracehop/role"
	"github.com/kzs0/tracehop/trace"
	tracehttp "github.com/kzs0/tracehop/trace/http"
)

// Transport is an http.RoundTripper that wraps each request in a client
// span and injects the span's context into the request headers.
type Transport struct {
	// Base is the underlying http.RoundTripper.
	// If nil, http.DefaultTransport is used.
	Base http.RoundTripper

	// Caller drives the client span. If nil, requests pass through
	// untraced.
	Caller *role.Caller

	// SpanName names the client span of a request. Defaults to
	// "HTTP <method>".
	SpanName func(*http.Request) string
}

// NewCaller returns a role.Caller configured for HTTP: the status is
// recorded as http.status_code and 4xx and 5xx responses mark the span as
// failed.
func NewCaller(tracer *trace.Tracer, prop trace.Propagator) *role.Caller {
	return role.NewCaller(role.CallerConfig{
		Tracer:     tracer,
		Propagator: prop,
		StatusKey:  "http.status_code",
		IsError:    func(code int) bool { return code >= http.StatusBadRequest },
	})
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Caller == nil {
		return t.base().RoundTrip(req)
	}

	// RoundTrippers must not modify the caller's request.
	out := req.Clone(req.Context())
	if out.Header == nil {
		out.Header = make(http.Header)
	}

	var resp *http.Response
	_, err := t.Caller.Call(req.Context(), t.spanName(req), tracehttp.HeaderCarrier(out.Header),
		func(ctx context.Context) (int, error) {
			var err error
			resp, err = t.base().RoundTrip(out.WithContext(ctx))
			if err != nil {
				return 0, err
			}
			return resp.StatusCode, nil
		},
		trace.WithAttrs(
			attr.String("http.method", req.Method),
			attr.String("http.url", req.URL.String()),
			attr.String("http.host", req.URL.Host),
			attr.String("http.target", req.URL.Path),
		),
	)
	return resp, err
}

func (t *Transport) spanName(req *http.Request) string {
	if t.SpanName != nil {
		return t.SpanName(req)
	}
	return fmt.Sprintf("HTTP %s", req.Method)
}

// base returns the base RoundTripper, defaulting to http.DefaultTransport.
func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}
