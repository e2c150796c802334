package tracehop

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/kzs0/tracehop/attr"
	"github.com/kzs0/tracehop/trace"
	tracehttp "github.com/kzs0/tracehop/trace/http"
)

// RequestIDHeader carries the request id recorded on server spans.
const RequestIDHeader = "X-Request-Id"

// HTTPMiddleware wraps an HTTP handler so every request is handled under a
// server span parented to the trace context found in the request headers.
//
// Usage:
//
//	rt, _ := tracehop.New(cfg)
//	defer rt.Shutdown(context.Background())
//
//	mux := http.NewServeMux()
//	mux.HandleFunc("/", hello)
//
//	http.ListenAndServe(":3000", tracehop.HTTPMiddleware(rt, mux))
func HTTPMiddleware(rt *Runtime, handler http.Handler, opts ...MiddlewareOption) http.Handler {
	cfg := applyMiddlewareOptions(opts)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, requestID)

		attrs := []attr.Attr{
			attr.String("http.method", r.Method),
			attr.String("http.path", r.URL.Path),
			attr.String("http.host", r.Host),
			attr.String("http.user_agent", r.UserAgent()),
			attr.String("http.request_id", requestID),
		}
		if cfg.additionalAttrs != nil {
			attrs = append(attrs, cfg.additionalAttrs(r)...)
		}

		var carrier trace.Carrier
		if cfg.tracePropagation {
			carrier = tracehttp.HeaderCarrier(r.Header)
		}

		_ = rt.Handler().Handle(r.Context(), cfg.operationName, carrier, func(ctx context.Context) error {
			span := trace.CurrentSpan(ctx)

			// Wrap response writer to capture status code
			rw := &responseWriter{
				ResponseWriter: w,
				status:         http.StatusOK,
			}

			// net/http answers a panicking handler with 500 unless headers
			// were already sent.
			panicked := true
			defer func() {
				if panicked && !rw.wroteHeader {
					rw.status = http.StatusInternalServerError
				}
				span.SetAttr(attr.Int("http.status_code", rw.status))
				if cfg.isFailure(rw.status) {
					span.SetStatus(trace.StatusError, fmt.Sprintf("HTTP %d", rw.status))
				}
			}()

			handler.ServeHTTP(rw, r.WithContext(ctx))
			panicked = false
			return nil
		}, trace.WithAttrs(attrs...))
	})
}

// MiddlewareOption configures the HTTP middleware.
type MiddlewareOption func(*middlewareConfig)

// middlewareConfig holds HTTP middleware configuration.
type middlewareConfig struct {
	operationName      string
	additionalAttrs    func(*http.Request) []attr.Attr
	successStatusCodes map[int]bool
	tracePropagation   bool
}

// WithOperationName sets the server span name (default: "http.request").
func WithOperationName(name string) MiddlewareOption {
	return func(cfg *middlewareConfig) {
		cfg.operationName = name
	}
}

// WithAdditionalAttrs provides a function to extract additional attributes from the request.
func WithAdditionalAttrs(fn func(*http.Request) []attr.Attr) MiddlewareOption {
	return func(cfg *middlewareConfig) {
		cfg.additionalAttrs = fn
	}
}

// WithSuccessCodes defines which HTTP status codes are considered successful.
// Default: only 5xx responses are failures.
func WithSuccessCodes(codes ...int) MiddlewareOption {
	return func(cfg *middlewareConfig) {
		cfg.successStatusCodes = make(map[int]bool)
		for _, code := range codes {
			cfg.successStatusCodes[code] = true
		}
	}
}

// WithTracePropagation enables or disables extraction of the caller's trace
// context. When disabled every request starts a new trace.
// Default: enabled (true).
func WithTracePropagation(enable bool) MiddlewareOption {
	return func(cfg *middlewareConfig) {
		cfg.tracePropagation = enable
	}
}

// applyMiddlewareOptions applies middleware options.
func applyMiddlewareOptions(opts []MiddlewareOption) middlewareConfig {
	cfg := middlewareConfig{
		operationName:    "http.request",
		tracePropagation: true,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

func (cfg middlewareConfig) isFailure(status int) bool {
	if cfg.successStatusCodes != nil {
		return !cfg.successStatusCodes[status]
	}
	return status >= http.StatusInternalServerError
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.status = code
		rw.wroteHeader = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
