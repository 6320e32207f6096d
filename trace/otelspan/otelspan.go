// Package otelspan lets an OpenTelemetry span act as the active span of a
// scope, so events captured inside otel instrumented code carry its trace.
package otelspan

import (
	"context"
	"fmt"

	"github.com/kzs0/strata/trace"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/kzs0/strata/trace/otelspan"

// Span adapts an OpenTelemetry span to trace.Span.
type Span struct {
	span oteltrace.Span
	op   string
	bag  *trace.Baggage
}

var _ trace.Span = (*Span)(nil)

// Option configures a wrapped span.
type Option func(*Span)

// WithOp records the operation name reported in the trace context.
func WithOp(op string) Option {
	return func(s *Span) {
		s.op = op
	}
}

// WithBaggage sets the baggage propagated from this span.
func WithBaggage(b *trace.Baggage) Option {
	return func(s *Span) {
		s.bag = b.Clone()
	}
}

// Wrap adapts span.
//
// Usage:
//
//	ctx, span := tracer.Start(ctx, "checkout")
//	scope.SetSpan(otelspan.Wrap(span, otelspan.WithOp("checkout")))
func Wrap(span oteltrace.Span, opts ...Option) *Span {
	s := &Span{span: span}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FromContext wraps the otel span stored in ctx, if any.
func FromContext(ctx context.Context, opts ...Option) (*Span, bool) {
	span := oteltrace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return nil, false
	}
	return Wrap(span, opts...), true
}

// Unwrap returns the underlying otel span.
func (s *Span) Unwrap() oteltrace.Span {
	return s.span
}

func (s *Span) TraceID() trace.TraceID {
	return s.span.SpanContext().TraceID()
}

func (s *Span) SpanID() trace.SpanID {
	return s.span.SpanContext().SpanID()
}

// ParentSpanID is only known for spans produced by an SDK that exposes it.
func (s *Span) ParentSpanID() trace.SpanID {
	if p, ok := s.span.(interface{ Parent() oteltrace.SpanContext }); ok {
		return p.Parent().SpanID()
	}
	return trace.SpanID{}
}

func (s *Span) Sampled() trace.Sampled {
	return trace.SampledFromBool(s.span.SpanContext().IsSampled())
}

func (s *Span) IsValid() bool {
	return s.span.SpanContext().IsValid()
}

func (s *Span) IsRecording() bool {
	return s.span.IsRecording()
}

func (s *Span) Op() string {
	return s.op
}

func (s *Span) SetTag(key, value string) {
	s.span.SetAttributes(attribute.String(key, value))
}

func (s *Span) SetData(key string, value any) {
	s.span.SetAttributes(toAttribute(key, value))
}

// SetStatus maps "ok" to codes.Ok and anything else to codes.Error.
func (s *Span) SetStatus(status string) {
	switch status {
	case "", "ok":
		s.span.SetStatus(codes.Ok, "")
	default:
		s.span.SetStatus(codes.Error, status)
	}
}

func (s *Span) TraceContext() map[string]any {
	if !s.IsValid() {
		return nil
	}
	tc := map[string]any{
		"trace_id": s.TraceID().String(),
		"span_id":  s.SpanID().String(),
	}
	if parent := s.ParentSpanID(); parent.IsValid() {
		tc["parent_span_id"] = parent.String()
	}
	if s.op != "" {
		tc["op"] = s.op
	}
	return tc
}

func (s *Span) ToSentryTrace() string {
	if !s.IsValid() {
		return ""
	}
	return trace.FormatSentryTrace(s.TraceID(), s.SpanID(), s.Sampled())
}

func (s *Span) ToBaggage() *trace.Baggage {
	return s.bag.Clone()
}

// StartChild starts a child through the tracer provider of the wrapped span.
func (s *Span) StartChild(op string, opts ...trace.StartSpanOption) trace.Span {
	var options trace.StartSpanOptions
	for _, opt := range opts {
		opt(&options)
	}
	name := options.Name
	if name == "" {
		name = op
	}

	ctx := oteltrace.ContextWithSpan(context.Background(), s.span)
	_, child := s.span.TracerProvider().Tracer(instrumentationName).Start(ctx, name)
	for k, v := range options.Tags {
		child.SetAttributes(attribute.String(k, v))
	}
	return &Span{span: child, op: op, bag: s.bag.Clone()}
}

func (s *Span) Finish() {
	s.span.End()
}

func toAttribute(key string, value any) attribute.KeyValue {
	switch v := value.(type) {
	case string:
		return attribute.String(key, v)
	case bool:
		return attribute.Bool(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case float64:
		return attribute.Float64(key, v)
	case []string:
		return attribute.StringSlice(key, v)
	case fmt.Stringer:
		return attribute.Stringer(key, v)
	default:
		return attribute.String(key, fmt.Sprint(v))
	}
}
