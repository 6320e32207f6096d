package trace

// NoopSpan is returned whenever tracing is disabled so callers can always
// chain calls on the result.
type NoopSpan struct{}

var _ Span = NoopSpan{}

func (NoopSpan) TraceID() TraceID                           { return TraceID{} }
func (NoopSpan) SpanID() SpanID                             { return SpanID{} }
func (NoopSpan) ParentSpanID() SpanID                       { return SpanID{} }
func (NoopSpan) Sampled() Sampled                           { return SampledFalse }
func (NoopSpan) IsValid() bool                              { return false }
func (NoopSpan) IsRecording() bool                          { return false }
func (NoopSpan) Op() string                                 { return "" }
func (NoopSpan) SetTag(string, string)                      {}
func (NoopSpan) SetData(string, any)                        {}
func (NoopSpan) SetStatus(string)                           {}
func (NoopSpan) TraceContext() map[string]any               { return nil }
func (NoopSpan) ToSentryTrace() string                      { return "" }
func (NoopSpan) ToBaggage() *Baggage                        { return nil }
func (NoopSpan) StartChild(string, ...StartSpanOption) Span { return NoopSpan{} }
func (NoopSpan) Finish()                                    {}
