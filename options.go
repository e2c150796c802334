package tracehop

import (
	"github.com/zoobzio/clockz"

	"github.com/kzs0/tracehop/trace"
)

// Option configures a Runtime beyond what Config can express.
type Option func(*options)

type options struct {
	sinks   []trace.Sink
	sampler trace.Sampler
	ids     trace.IDGenerator
	clock   clockz.Clock
}

// WithSink adds a sink that receives every sampled finished span, ahead of
// the sinks enabled by Config.
func WithSink(sink trace.Sink) Option {
	return func(o *options) {
		o.sinks = append(o.sinks, sink)
	}
}

// WithSampler overrides Config.TraceSampleRate.
func WithSampler(s trace.Sampler) Option {
	return func(o *options) {
		o.sampler = s
	}
}

// WithIDGenerator sets the trace and span id source.
func WithIDGenerator(ids trace.IDGenerator) Option {
	return func(o *options) {
		o.ids = ids
	}
}

// WithClock sets the clock spans are timed with.
func WithClock(c clockz.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

func applyOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
