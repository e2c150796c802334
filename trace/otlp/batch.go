package otlp

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kzs0/tracehop/trace"
)

// SpanExporter sends a batch of spans.
type SpanExporter interface {
	ExportSpans(ctx context.Context, spans []trace.FinishedSpan) error
}

// BatchProcessorConfig configures the batch processor.
type BatchProcessorConfig struct {
	// MaxQueueSize is the maximum number of spans to queue.
	MaxQueueSize int
	// BatchSize is the maximum number of spans per export.
	BatchSize int
	// BatchTimeout is the maximum time to wait before exporting.
	BatchTimeout time.Duration
	// Logger receives export failures. Defaults to discarding them.
	Logger *slog.Logger
}

// DefaultBatchConfig returns default batch processor configuration.
func DefaultBatchConfig() BatchProcessorConfig {
	return BatchProcessorConfig{
		MaxQueueSize: 2048,
		BatchSize:    512,
		BatchTimeout: 5 * time.Second,
	}
}

// BatchProcessor is a trace.Sink that queues spans and exports them in
// batches from background goroutines. Failed batches are logged and dropped.
type BatchProcessor struct {
	cfg      BatchProcessorConfig
	exporter SpanExporter
	logger   *slog.Logger

	mu       sync.Mutex
	queue    []trace.FinishedSpan
	timer    *time.Timer
	stopped  bool
	inflight sync.WaitGroup
}

var _ trace.Sink = (*BatchProcessor)(nil)

// NewBatchProcessor creates a new batch processor.
func NewBatchProcessor(exporter SpanExporter, cfg BatchProcessorConfig) *BatchProcessor {
	def := DefaultBatchConfig()
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = def.MaxQueueSize
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = def.BatchTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &BatchProcessor{
		cfg:      cfg,
		exporter: exporter,
		logger:   logger,
		queue:    make([]trace.FinishedSpan, 0, cfg.BatchSize),
	}
}

// Export queues a span. When the queue is full the oldest span is dropped.
func (bp *BatchProcessor) Export(span trace.FinishedSpan) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	if bp.stopped {
		return
	}

	if len(bp.queue) >= bp.cfg.MaxQueueSize {
		bp.queue = bp.queue[1:]
	}
	bp.queue = append(bp.queue, span)

	if len(bp.queue) == 1 {
		bp.timer = time.AfterFunc(bp.cfg.BatchTimeout, bp.flush)
	}

	if len(bp.queue) >= bp.cfg.BatchSize {
		bp.exportLocked()
	}
}

func (bp *BatchProcessor) flush() {
	bp.mu.Lock()
	bp.exportLocked()
	bp.mu.Unlock()
}

// exportLocked must be called with mu held.
func (bp *BatchProcessor) exportLocked() {
	if len(bp.queue) == 0 {
		return
	}

	if bp.timer != nil {
		bp.timer.Stop()
		bp.timer = nil
	}

	spans := bp.queue
	bp.queue = make([]trace.FinishedSpan, 0, bp.cfg.BatchSize)

	bp.inflight.Add(1)
	go func() {
		defer bp.inflight.Done()
		bp.send(context.Background(), spans)
	}()
}

func (bp *BatchProcessor) send(ctx context.Context, spans []trace.FinishedSpan) error {
	err := bp.exporter.ExportSpans(ctx, spans)
	if err != nil {
		bp.logger.Warn("dropped span batch",
			slog.Int("spans", len(spans)),
			slog.String("error", err.Error()),
		)
	}
	return err
}

// ForceFlush exports queued spans and waits for in-flight batches.
func (bp *BatchProcessor) ForceFlush(ctx context.Context) error {
	bp.flush()
	return bp.wait(ctx)
}

// Shutdown stops accepting spans, exports the remaining queue and waits for
// in-flight batches or ctx.
func (bp *BatchProcessor) Shutdown(ctx context.Context) error {
	bp.mu.Lock()
	if bp.stopped {
		bp.mu.Unlock()
		return nil
	}
	bp.stopped = true

	if bp.timer != nil {
		bp.timer.Stop()
		bp.timer = nil
	}
	spans := bp.queue
	bp.queue = nil
	bp.mu.Unlock()

	var err error
	if len(spans) > 0 {
		err = bp.send(ctx, spans)
	}
	if werr := bp.wait(ctx); werr != nil {
		return werr
	}
	if sh, ok := bp.exporter.(interface{ Shutdown(context.Context) error }); ok {
		if serr := sh.Shutdown(ctx); serr != nil && err == nil {
			err = serr
		}
	}
	return err
}

func (bp *BatchProcessor) wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		bp.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
