package strata

import (
	"context"

	"github.com/kzs0/strata/trace"
)

// Traceparent returns the sentry-trace header value to send downstream
// from ctx.
func (st *Store) Traceparent(ctx context.Context) string {
	o, _ := st.outgoing(ctx)
	return o.sentryTrace
}

// Baggage returns the baggage header value to send downstream from ctx.
func (st *Store) Baggage(ctx context.Context) string {
	o, _ := st.outgoing(ctx)
	return o.baggage.Serialize(true)
}

// TracePropagationHeaders returns the headers to attach to an outgoing
// request: sentry-trace, baggage when not empty, and traceparent when
// enabled in the client options.
func (st *Store) TracePropagationHeaders(ctx context.Context) []Header {
	o, opts := st.outgoing(ctx)
	return o.headers(opts)
}

// TracePropagationMeta renders the propagation headers as HTML meta tags.
func (st *Store) TracePropagationMeta(ctx context.Context) string {
	o, _ := st.outgoing(ctx)
	return trace.MetaTags(o.sentryTrace, o.baggage.Serialize(true))
}

// TraceEnv returns SENTRY_TRACE and SENTRY_BAGGAGE assignments that let a
// child process continue the trace of ctx.
func (st *Store) TraceEnv(ctx context.Context) []string {
	o, _ := st.outgoing(ctx)
	return trace.EnvExports(o.sentryTrace, o.baggage.Serialize(true))
}

// ActiveTraceIDs returns the trace and span id events captured in ctx
// would carry.
func (st *Store) ActiveTraceIDs(ctx context.Context) (traceID, spanID string) {
	o, _ := st.outgoing(ctx)
	return o.traceID.String(), o.spanID.String()
}

// ContinueTrace forks the isolation scope of ctx and continues the trace
// described by incoming in it. Without a usable incoming trace a new trace
// is started. The forked current scope drops any propagation context of
// its own so the continued trace is the one events and headers carry.
//
// Usage:
//
//	ctx, guard := store.ContinueTrace(ctx, map[string]string{
//		"sentry-trace": r.Header.Get("sentry-trace"),
//		"baggage":      r.Header.Get("baggage"),
//	})
//	defer guard.Close()
func (st *Store) ContinueTrace(ctx context.Context, incoming map[string]string) (context.Context, *Guard) {
	ctx, guard := st.ForkIsolation(ctx)
	iso := st.Isolation(ctx)
	if _, ok := trace.PropagationContextFromIncoming(incoming); ok {
		iso.GeneratePropagationContext(incoming)
	} else {
		iso.SetNewPropagationContext()
	}
	st.Current(ctx).clearPropagationContext()
	return ctx, guard
}
