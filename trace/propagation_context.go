package trace

// PropagationContext is the minimal trace identity of a unit of work when no
// span is active. It is immutable once created and may be shared by scopes.
type PropagationContext struct {
	traceID       TraceID
	spanID        SpanID
	parentSpanID  SpanID
	parentSampled Sampled
	baggage       *Baggage
}

// NewPropagationContext starts a fresh trace.
func NewPropagationContext() *PropagationContext {
	return &PropagationContext{
		traceID: NewTraceID(),
		spanID:  NewSpanID(),
	}
}

// ContinuePropagationContext continues a remote trace. A fresh span id is
// minted for this process; the remote span becomes the parent.
func ContinuePropagationContext(data TraceparentData, bag *Baggage) *PropagationContext {
	pc := &PropagationContext{
		traceID:       data.TraceID,
		spanID:        NewSpanID(),
		parentSpanID:  data.ParentSpanID,
		parentSampled: data.ParentSampled,
		baggage:       bag.Clone(),
	}
	if !pc.traceID.IsValid() {
		pc.traceID = NewTraceID()
	}
	if pc.baggage != nil {
		pc.baggage.Freeze()
	}
	return pc
}

// PropagationContextFromIncoming parses a carrier holding a sentry-trace
// header, a W3C traceparent header and/or a baggage header. Keys are
// normalized first. It returns false when the carrier holds nothing usable.
func PropagationContextFromIncoming(incoming map[string]string) (*PropagationContext, bool) {
	if len(incoming) == 0 {
		return nil, false
	}
	normalized := NormalizeIncoming(incoming)

	var bag *Baggage
	if header := normalized[BaggageHeader]; header != "" {
		bag = ParseBaggage(header)
	}

	var (
		data   TraceparentData
		parsed bool
	)
	if header := normalized[SentryTraceHeader]; header != "" {
		if d, err := ParseSentryTrace(header); err == nil {
			data, parsed = d, true
		}
	}
	if !parsed {
		if header := normalized[TraceparentHeader]; header != "" {
			if d, err := ParseTraceparent(header); err == nil {
				data, parsed = d, true
			}
		}
	}

	if !parsed && bag == nil {
		return nil, false
	}
	return ContinuePropagationContext(data, bag), true
}

func (pc *PropagationContext) TraceID() TraceID {
	return pc.traceID
}

func (pc *PropagationContext) SpanID() SpanID {
	return pc.spanID
}

// ParentSpanID returns the remote parent, or the zero id for a trace started here.
func (pc *PropagationContext) ParentSpanID() SpanID {
	return pc.parentSpanID
}

func (pc *PropagationContext) ParentSampled() Sampled {
	return pc.parentSampled
}

// Baggage returns a copy of the incoming baggage, or nil if none arrived.
func (pc *PropagationContext) Baggage() *Baggage {
	return pc.baggage.Clone()
}

// HasBaggage reports whether an incoming baggage was recorded.
func (pc *PropagationContext) HasBaggage() bool {
	return pc.baggage != nil
}

// Traceparent renders the sentry-trace value for this context. The
// upstream sampling decision, if any, is forwarded.
func (pc *PropagationContext) Traceparent() string {
	return FormatSentryTrace(pc.traceID, pc.spanID, pc.parentSampled)
}

// TraceContext renders the trace context attached to events.
func (pc *PropagationContext) TraceContext() map[string]any {
	tc := map[string]any{
		"trace_id": pc.traceID.String(),
		"span_id":  pc.spanID.String(),
	}
	if pc.parentSpanID.IsValid() {
		tc["parent_span_id"] = pc.parentSpanID.String()
	}
	return tc
}
