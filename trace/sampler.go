package trace

import (
	"math/rand"
	"sync"
)

// SamplingDecision represents the decision made by a sampler.
type SamplingDecision int

const (
	SamplingDecisionDrop SamplingDecision = iota
	SamplingDecisionRecordAndSample
)

// SamplingParameters is everything a sampler may look at.
type SamplingParameters struct {
	TraceID       TraceID
	Name          string
	Op            string
	ParentSampled Sampled
}

// Sampler decides whether a transaction should be sampled.
type Sampler interface {
	ShouldSample(p SamplingParameters) SamplingDecision
}

// SamplerFunc adapts a function to a Sampler.
type SamplerFunc func(p SamplingParameters) SamplingDecision

// ShouldSample calls f(p).
func (f SamplerFunc) ShouldSample(p SamplingParameters) SamplingDecision {
	return f(p)
}

// AlwaysSampler always samples.
type AlwaysSampler struct{}

// ShouldSample always returns RecordAndSample.
func (AlwaysSampler) ShouldSample(SamplingParameters) SamplingDecision {
	return SamplingDecisionRecordAndSample
}

// NeverSampler never samples.
type NeverSampler struct{}

// ShouldSample always returns Drop.
func (NeverSampler) ShouldSample(SamplingParameters) SamplingDecision {
	return SamplingDecisionDrop
}

// RatioSampler samples a fraction of traces.
type RatioSampler struct {
	ratio float64
	mu    sync.Mutex
	rng   *rand.Rand
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
		ratio: ratio,
		rng:   rand.New(rand.NewSource(rand.Int63())),
	}
}

// Ratio returns the configured fraction.
func (s *RatioSampler) Ratio() float64 {
	return s.ratio
}

// ShouldSample samples based on the configured ratio.
func (s *RatioSampler) ShouldSample(SamplingParameters) SamplingDecision {
	if s.ratio >= 1 {
		return SamplingDecisionRecordAndSample
	}
	s.mu.Lock()
	sample := s.rng.Float64() < s.ratio
	s.mu.Unlock()

	if sample {
		return SamplingDecisionRecordAndSample
	}
	return SamplingDecisionDrop
}

// ParentBasedSampler makes sampling decisions based on the parent span.
type ParentBasedSampler struct {
	root Sampler
}

// NewParentBasedSampler creates a sampler that follows the parent's sampling decision.
// If the parent made no decision, it uses the provided root sampler.
func NewParentBasedSampler(root Sampler) *ParentBasedSampler {
	return &ParentBasedSampler{root: root}
}

// ShouldSample follows the parent's decision or delegates to the root sampler.
func (s *ParentBasedSampler) ShouldSample(p SamplingParameters) SamplingDecision {
	switch p.ParentSampled {
	case SampledTrue:
		return SamplingDecisionRecordAndSample
	case SampledFalse:
		return SamplingDecisionDrop
	}
	if s.root != nil {
		return s.root.ShouldSample(p)
	}
	return SamplingDecisionDrop
}
