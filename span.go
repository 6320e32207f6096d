package strata

import (
	"context"

	"github.com/kzs0/strata/trace"
)

// StartSpan starts a span in ctx and returns a context whose current scope
// carries it. With an active span in ctx the new span is its child;
// otherwise a transaction is started that continues the scope's trace.
// Finishing a sampled transaction captures it as a transaction event.
//
// When tracing is disabled a trace.NoopSpan is returned, so the result can
// always be used.
//
// Usage:
//
//	ctx, span := strata.StartSpan(ctx, "db.query", trace.WithName("SELECT users"))
//	defer span.Finish()
func (st *Store) StartSpan(ctx context.Context, op string, opts ...trace.StartSpanOption) (context.Context, trace.Span) {
	client := st.Client(ctx)
	options := client.Options()
	if !client.IsActive() || !options.TracingEnabled() {
		return ctx, trace.NoopSpan{}
	}

	current := st.Current(ctx)
	// The fork is never closed: the caller keeps ctx, which still resolves
	// to the scopes without the span.
	spanCtx, _ := st.ForkCurrent(ctx)

	var span trace.Span
	if parent := current.Span(); parent != nil && parent.IsValid() {
		span = parent.StartChild(op, opts...)
	} else {
		pc := current.PropagationContext()
		if pc == nil {
			pc = st.Isolation(ctx).ensurePropagationContext()
		}
		tracer := trace.NewTracer(trace.TracerConfig{
			Sampler: options.sampler(),
			Baggage: options.baggageOptions(),
		})
		name, source := current.transaction()
		if name == "" {
			name, source = st.Isolation(ctx).transaction()
		}
		if name != "" {
			opts = append([]trace.StartSpanOption{trace.WithName(name), trace.WithSource(source)}, opts...)
		}
		hook := trace.WithFinishHook(func(tx *trace.Transaction) {
			st.captureTransaction(spanCtx, tx)
		})
		span = tracer.StartTransaction(pc, op, append(opts, hook)...)
	}

	st.Current(spanCtx).SetSpan(span)
	return spanCtx, span
}

func (st *Store) captureTransaction(ctx context.Context, tx *trace.Transaction) {
	event := NewEvent()
	event.Type = EventTypeTransaction
	event.Transaction = tx.Name
	if tx.Source != "" {
		event.TransactionInfo = map[string]string{"source": tx.Source}
	}
	event.StartTime = tx.Root.StartTimestamp
	event.Timestamp = tx.Root.Timestamp
	event.Spans = tx.Spans
	event.Contexts["trace"] = tx.TraceContext()
	if dsc := tx.Baggage.DynamicSamplingContext(); len(dsc) > 0 {
		event.Contexts["trace"]["dynamic_sampling_context"] = dsc
	}
	for k, v := range tx.Root.Tags {
		event.Tags[k] = v
	}
	st.CaptureEvent(ctx, event, nil)
}
