package trace

import (
	"encoding/binary"
)

// SamplingDecision represents the decision made by a sampler.
type SamplingDecision int

const (
	SamplingDecisionDrop SamplingDecision = iota
	SamplingDecisionRecordAndSample
)

// SamplingResult contains the result of a sampling decision.
type SamplingResult struct {
	Decision SamplingDecision
}

// Sampled reports whether the decision exports the span.
func (r SamplingResult) Sampled() bool {
	return r.Decision == SamplingDecisionRecordAndSample
}

// SamplingParameters describe the span being sampled.
type SamplingParameters struct {
	TraceID TraceID
	Name    string
	Kind    SpanKind
	Parent  TraceContext // zero for root spans
}

// HasParent reports whether the span has a parent.
func (p SamplingParameters) HasParent() bool {
	return p.Parent.IsValid()
}

// Sampler decides whether a span should be sampled.
type Sampler interface {
	ShouldSample(p SamplingParameters) SamplingResult
}

// DefaultSampler follows the parent and samples every root.
func DefaultSampler() Sampler {
	return NewParentBasedSampler(AlwaysSampler{})
}

// AlwaysSampler always samples.
type AlwaysSampler struct{}

// ShouldSample always returns RecordAndSample.
func (AlwaysSampler) ShouldSample(SamplingParameters) SamplingResult {
	return SamplingResult{Decision: SamplingDecisionRecordAndSample}
}

// NeverSampler never samples.
type NeverSampler struct{}

// ShouldSample always returns Drop.
func (NeverSampler) ShouldSample(SamplingParameters) SamplingResult {
	return SamplingResult{Decision: SamplingDecisionDrop}
}

// RatioSampler samples a fraction of traces. The decision is derived from
// the trace ID, so every process sampling the same trace agrees.
type RatioSampler struct {
	ratio     float64
	threshold uint64
}

// NewRatioSampler creates a sampler that samples the given fraction of traces.
// Ratio is clamped to [0, 1].
func NewRatioSampler(ratio float64) *RatioSampler {
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	return &RatioSampler{
		ratio:     ratio,
		threshold: uint64(ratio * (1 << 63)),
	}
}

// Ratio returns the configured fraction.
func (s *RatioSampler) Ratio() float64 {
	return s.ratio
}

// ShouldSample samples based on the low 63 bits of the trace ID.
func (s *RatioSampler) ShouldSample(p SamplingParameters) SamplingResult {
	if s.ratio >= 1 {
		return SamplingResult{Decision: SamplingDecisionRecordAndSample}
	}
	x := binary.BigEndian.Uint64(p.TraceID[8:16]) >> 1
	if x < s.threshold {
		return SamplingResult{Decision: SamplingDecisionRecordAndSample}
	}
	return SamplingResult{Decision: SamplingDecisionDrop}
}

// ParentBasedSampler makes sampling decisions based on the parent span.
type ParentBasedSampler struct {
	root Sampler
}

// NewParentBasedSampler creates a sampler that follows the parent's sampling
// decision. Root spans are decided by root, or sampled when root is nil.
func NewParentBasedSampler(root Sampler) *ParentBasedSampler {
	if root == nil {
		root = AlwaysSampler{}
	}
	return &ParentBasedSampler{root: root}
}

// ShouldSample follows the parent's decision or delegates to the root sampler.
func (s *ParentBasedSampler) ShouldSample(p SamplingParameters) SamplingResult {
	if p.HasParent() {
		if p.Parent.Sampled() {
			return SamplingResult{Decision: SamplingDecisionRecordAndSample}
		}
		return SamplingResult{Decision: SamplingDecisionDrop}
	}
	return s.root.ShouldSample(p)
}
