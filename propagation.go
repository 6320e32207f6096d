package strata

import (
	"github.com/kzs0/strata/trace"
)

// GeneratePropagationContext continues the trace described by incoming,
// which may hold sentry-trace, traceparent and baggage entries. A parsed
// incoming trace always replaces the existing propagation context. Without
// one, a fresh context is created only if the scope has none and is not a
// current scope; current scopes inherit trace identity from isolation.
func (s *Scope) GeneratePropagationContext(incoming map[string]string) {
	var pc *trace.PropagationContext
	if len(incoming) > 0 {
		if parsed, ok := trace.PropagationContextFromIncoming(incoming); ok {
			pc = parsed
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if pc != nil {
		s.propagationContext = pc
		return
	}
	if s.propagationContext == nil && s.typ != ScopeCurrent {
		s.propagationContext = trace.NewPropagationContext()
	}
}

// SetNewPropagationContext starts a new trace on this scope.
func (s *Scope) SetNewPropagationContext() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.propagationContext = trace.NewPropagationContext()
}

// clearPropagationContext drops the scope's own propagation context so a
// current scope inherits the isolation scope's again.
func (s *Scope) clearPropagationContext() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.propagationContext = nil
}

// PropagationContext returns the scope's own propagation context, or nil.
func (s *Scope) PropagationContext() *trace.PropagationContext {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.propagationContext
}

// ensurePropagationContext gives the scope a propagation context if it has
// none, regardless of its role.
func (s *Scope) ensurePropagationContext() *trace.PropagationContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.propagationContext == nil {
		s.propagationContext = trace.NewPropagationContext()
	}
	return s.propagationContext
}

// propagationBaggage returns the incoming baggage of pc, or a baggage
// originated from the client options when nothing came in.
func propagationBaggage(pc *trace.PropagationContext, opts ClientOptions) *trace.Baggage {
	if pc.HasBaggage() {
		return pc.Baggage()
	}
	return trace.BaggageFromOptions(pc.TraceID(), opts.baggageOptions())
}

// outgoing is the trace identity a scope hands to downstream services.
type outgoing struct {
	traceID     trace.TraceID
	spanID      trace.SpanID
	sampled     trace.Sampled
	sentryTrace string
	baggage     *trace.Baggage
}

func (o outgoing) traceparent() string {
	return trace.FormatTraceparent(o.traceID, o.spanID, o.sampled)
}

// outgoing resolves what to propagate from this scope alone: the active
// span when tracing is enabled, else the scope's propagation context.
func (s *Scope) outgoing(opts ClientOptions) (outgoing, bool) {
	s.mu.RLock()
	span := s.span
	pc := s.propagationContext
	s.mu.RUnlock()

	if opts.TracingEnabled() && span != nil && span.IsValid() {
		bag := span.ToBaggage()
		if bag == nil {
			bag = trace.BaggageFromOptions(span.TraceID(), opts.baggageOptions())
		}
		return outgoing{
			traceID:     span.TraceID(),
			spanID:      span.SpanID(),
			sampled:     span.Sampled(),
			sentryTrace: span.ToSentryTrace(),
			baggage:     bag,
		}, true
	}
	if pc == nil {
		return outgoing{}, false
	}
	return outgoing{
		traceID:     pc.TraceID(),
		spanID:      pc.SpanID(),
		sampled:     pc.ParentSampled(),
		sentryTrace: pc.Traceparent(),
		baggage:     propagationBaggage(pc, opts),
	}, true
}

// Header is one propagation header.
type Header struct {
	Name  string
	Value string
}

func (o outgoing) headers(opts ClientOptions) []Header {
	headers := []Header{{Name: trace.SentryTraceHeader, Value: o.sentryTrace}}
	if v := o.baggage.Serialize(true); v != "" {
		headers = append(headers, Header{Name: trace.BaggageHeader, Value: v})
	}
	if opts.PropagateTraceparent {
		headers = append(headers, Header{Name: trace.TraceparentHeader, Value: o.traceparent()})
	}
	return headers
}
