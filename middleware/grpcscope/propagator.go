// Package grpcscope gives every gRPC call its own isolation scope and
// carries strata traces across gRPC boundaries.
//
// Server side, the interceptors fork an isolation scope per RPC, continue
// the trace found in the incoming metadata, run the handler inside a
// "grpc.server" span and capture panics:
//
//	server := grpc.NewServer(
//		grpc.UnaryInterceptor(grpcscope.UnaryServerInterceptor()),
//		grpc.StreamInterceptor(grpcscope.StreamServerInterceptor()),
//	)
//
// Client side, the interceptors write sentry-trace, baggage and optionally
// traceparent into the outgoing metadata:
//
//	conn, err := grpc.Dial(target,
//		grpc.WithUnaryInterceptor(grpcscope.UnaryClientInterceptor()),
//		grpc.WithStreamInterceptor(grpcscope.StreamClientInterceptor()),
//	)
package grpcscope

import (
	"context"

	"github.com/kzs0/strata"
	"github.com/kzs0/strata/trace"
	"google.golang.org/grpc/metadata"
)

// Propagator moves trace headers in and out of gRPC metadata.
type Propagator struct {
	// Store defaults to strata.DefaultStore().
	Store *strata.Store
}

func (p *Propagator) store() *strata.Store {
	if p.Store != nil {
		return p.Store
	}
	return strata.DefaultStore()
}

// Extract returns the trace headers found in md, keyed by header name.
func (p *Propagator) Extract(md metadata.MD) map[string]string {
	incoming := make(map[string]string, 3)
	for _, name := range []string{trace.SentryTraceHeader, trace.BaggageHeader, trace.TraceparentHeader} {
		if values := md.Get(name); len(values) > 0 && values[0] != "" {
			incoming[name] = values[0]
		}
	}
	return incoming
}

// Inject writes the propagation headers of ctx into md.
func (p *Propagator) Inject(ctx context.Context, md metadata.MD) {
	for _, h := range p.store().TracePropagationHeaders(ctx) {
		md.Set(h.Name, h.Value)
	}
}

// outgoingContext returns ctx with the propagation headers added to a copy
// of its outgoing metadata.
func (p *Propagator) outgoingContext(ctx context.Context) context.Context {
	md, ok := metadata.FromOutgoingContext(ctx)
	if !ok {
		md = metadata.New(nil)
	} else {
		md = md.Copy()
	}
	p.Inject(ctx, md)
	return metadata.NewOutgoingContext(ctx, md)
}
