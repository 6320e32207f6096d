package trace

import (
	"github.com/google/uuid"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// TraceID is a 16-byte unique identifier for a trace.
type TraceID = oteltrace.TraceID

// SpanID is an 8-byte unique identifier for a span.
type SpanID = oteltrace.SpanID

// NewTraceID generates a new random trace ID.
func NewTraceID() TraceID {
	return TraceID(uuid.New())
}

// NewSpanID generates a new random span ID from the low half of a UUID.
func NewSpanID() SpanID {
	u := uuid.New()
	var id SpanID
	copy(id[:], u[8:])
	return id
}

// ParseTraceID parses a 32 character hex trace ID.
func ParseTraceID(s string) (TraceID, error) {
	return oteltrace.TraceIDFromHex(s)
}

// ParseSpanID parses a 16 character hex span ID.
func ParseSpanID(s string) (SpanID, error) {
	return oteltrace.SpanIDFromHex(s)
}

// Sampled is a tri-state sampling decision. The zero value means no
// decision has been made yet.
type Sampled int8

const (
	SampledUndefined Sampled = iota
	SampledFalse
	SampledTrue
)

// SampledFromBool converts a definite decision.
func SampledFromBool(b bool) Sampled {
	if b {
		return SampledTrue
	}
	return SampledFalse
}

// Bool reports whether the decision is to sample.
func (s Sampled) Bool() bool {
	return s == SampledTrue
}

// IsDefined reports whether a decision has been made.
func (s Sampled) IsDefined() bool {
	return s != SampledUndefined
}

func (s Sampled) String() string {
	switch s {
	case SampledTrue:
		return "true"
	case SampledFalse:
		return "false"
	default:
		return ""
	}
}
