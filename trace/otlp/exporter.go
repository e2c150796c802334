package otlp

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/kzs0/tracehop/attr"
	"github.com/kzs0/tracehop/internal"
	"github.com/kzs0/tracehop/trace"
)

// ExporterConfig configures the OTLP exporter.
type ExporterConfig struct {
	// Endpoint is the OTLP HTTP endpoint (e.g., "http://localhost:4318/v1/traces").
	Endpoint string
	// Headers are additional HTTP headers to send.
	Headers map[string]string
	// Timeout is the HTTP request timeout.
	Timeout time.Duration
	// ServiceName is reported as the service.name resource attribute.
	ServiceName string
	// Resource contains additional resource attributes.
	Resource attr.Set
	// Client overrides the HTTP client, mainly for tests.
	Client *http.Client
}

// Exporter posts batches of spans to an OTLP endpoint. Wrap it in a
// BatchProcessor to use it as a trace.Sink.
type Exporter struct {
	cfg     ExporterConfig
	client  *http.Client
	stopped atomic.Bool
}

// NewExporter creates a new OTLP exporter.
func NewExporter(cfg ExporterConfig) *Exporter {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	return &Exporter{cfg: cfg, client: client}
}

// ExportSpans sends spans in a single request. Failures wrap
// trace.ErrExportFailed.
func (e *Exporter) ExportSpans(ctx context.Context, spans []trace.FinishedSpan) error {
	if e.stopped.Load() || len(spans) == 0 {
		return nil
	}

	data, err := EncodeSpans(spans, e.cfg.ServiceName, e.cfg.Resource)
	if err != nil {
		return fmt.Errorf("otlp: failed to encode spans: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.Endpoint, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("otlp: failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-protobuf")
	for k, v := range e.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("otlp: failed to send request: %w: %w", trace.ErrExportFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body := internal.GetBuffer()
		defer internal.PutBuffer(body)
		_, _ = body.ReadFrom(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("otlp: server returned %d: %s: %w", resp.StatusCode, body.String(), trace.ErrExportFailed)
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	return nil
}

// Shutdown stops the exporter. Later exports are dropped.
func (e *Exporter) Shutdown(ctx context.Context) error {
	e.stopped.Store(true)
	return nil
}
