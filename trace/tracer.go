package trace

import (
	"strconv"
	"time"
)

// Tracer starts transactions. It is stateless apart from its configuration
// and is safe for concurrent use.
type Tracer struct {
	sampler Sampler
	baggage BaggageOptions
}

// TracerConfig configures the tracer.
type TracerConfig struct {
	// Sampler decides whether new transactions are sampled. Defaults to a
	// parent based sampler over AlwaysSampler.
	Sampler Sampler
	// Baggage is used to originate baggage for traces started here.
	Baggage BaggageOptions
}

// NewTracer creates a new tracer.
func NewTracer(cfg TracerConfig) *Tracer {
	sampler := cfg.Sampler
	if sampler == nil {
		sampler = NewParentBasedSampler(AlwaysSampler{})
	}
	return &Tracer{
		sampler: sampler,
		baggage: cfg.Baggage,
	}
}

// StartSpanOptions configures span creation.
type StartSpanOptions struct {
	Name     string
	Source   string
	Tags     map[string]string
	OnFinish func(*Transaction)
}

// StartSpanOption configures span creation.
type StartSpanOption func(*StartSpanOptions)

// WithName sets the transaction name or span description.
func WithName(name string) StartSpanOption {
	return func(o *StartSpanOptions) {
		o.Name = name
	}
}

// WithSource sets where the transaction name came from, e.g. "url" or "custom".
func WithSource(source string) StartSpanOption {
	return func(o *StartSpanOptions) {
		o.Source = source
	}
}

// WithTags sets initial span tags.
func WithTags(tags map[string]string) StartSpanOption {
	return func(o *StartSpanOptions) {
		o.Tags = tags
	}
}

// WithFinishHook registers the callback that receives the finished
// transaction. It is only invoked for sampled transactions.
func WithFinishHook(fn func(*Transaction)) StartSpanOption {
	return func(o *StartSpanOptions) {
		o.OnFinish = fn
	}
}

// StartTransaction starts a root span continuing pc. A nil pc starts a new
// trace.
//
// Usage:
//
//	tx := tracer.StartTransaction(pc, "http.server", trace.WithName("GET /"))
//	defer tx.Finish()
func (t *Tracer) StartTransaction(pc *PropagationContext, op string, opts ...StartSpanOption) Span {
	var options StartSpanOptions
	for _, opt := range opts {
		opt(&options)
	}
	if pc == nil {
		pc = NewPropagationContext()
	}

	decision := t.sampler.ShouldSample(SamplingParameters{
		TraceID:       pc.TraceID(),
		Name:          options.Name,
		Op:            op,
		ParentSampled: pc.ParentSampled(),
	})
	sampled := SampledFromBool(decision == SamplingDecisionRecordAndSample)

	source := options.Source
	if source == "" {
		source = "custom"
	}

	span := &recordingSpan{
		traceID:      pc.TraceID(),
		spanID:       pc.SpanID(),
		parentSpanID: pc.ParentSpanID(),
		sampled:      sampled,
		op:           op,
		name:         options.Name,
		source:       source,
		tags:         copyTags(options.Tags),
		startTime:    time.Now(),
		onFinish:     options.OnFinish,
	}
	span.root = span

	if pc.HasBaggage() {
		span.baggage = pc.Baggage()
	} else {
		bag := BaggageFromOptions(pc.TraceID(), t.baggage)
		bag.set("sampled", strconv.FormatBool(sampled.Bool()))
		if options.Name != "" && source != "url" {
			bag.set("transaction", options.Name)
		}
		span.baggage = bag
	}
	return span
}
