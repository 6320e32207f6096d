package grpcscope

import (
	"context"

	"github.com/kzs0/strata"
	"github.com/kzs0/strata/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// Option configures the interceptors.
type Option func(*config)

type config struct {
	store   *strata.Store
	repanic bool
}

// WithStore uses store instead of the default store.
func WithStore(store *strata.Store) Option {
	return func(c *config) {
		c.store = store
	}
}

// WithRepanic re-raises recovered panics after capturing them. By default a
// panicking handler is answered with codes.Internal.
func WithRepanic(repanic bool) Option {
	return func(c *config) {
		c.repanic = repanic
	}
}

func newConfig(opts []Option) config {
	c := config{store: strata.DefaultStore()}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// begin forks the isolation scope for one RPC and starts its server span.
func (c config) begin(ctx context.Context, method string) (context.Context, trace.Span, func()) {
	prop := &Propagator{Store: c.store}
	var incoming map[string]string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		incoming = prop.Extract(md)
	}

	ctx, guard := c.store.ContinueTrace(ctx, incoming)
	c.store.Isolation(ctx).SetTransactionName(method, "route")
	ctx, span := c.store.StartSpan(ctx, "grpc.server", trace.WithName(method), trace.WithSource("route"))
	span.SetData("rpc.method", method)

	return ctx, span, func() {
		span.Finish()
		guard.Close()
	}
}

// recoverRPC captures a panic raised by a handler and turns it into err.
func (c config) recoverRPC(ctx context.Context, span trace.Span, err *error) {
	rec := recover()
	if rec == nil {
		return
	}
	span.SetStatus("internal_error")
	c.store.Recover(ctx, rec)
	if c.repanic {
		panic(rec)
	}
	*err = status.Errorf(codes.Internal, "panic: %v", rec)
}

// UnaryServerInterceptor returns a gRPC unary server interceptor that runs
// each call in its own isolation scope.
//
// Usage:
//
//	server := grpc.NewServer(
//		grpc.UnaryInterceptor(grpcscope.UnaryServerInterceptor()),
//	)
func UnaryServerInterceptor(opts ...Option) grpc.UnaryServerInterceptor {
	cfg := newConfig(opts)

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		ctx, span, end := cfg.begin(ctx, info.FullMethod)
		defer end()
		defer cfg.recoverRPC(ctx, span, &err)

		resp, err = handler(ctx, req)
		span.SetStatus(spanStatus(status.Code(err)))
		return resp, err
	}
}

// StreamServerInterceptor returns a gRPC stream server interceptor that
// runs each stream in its own isolation scope.
func StreamServerInterceptor(opts ...Option) grpc.StreamServerInterceptor {
	cfg := newConfig(opts)

	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) (err error) {
		ctx, span, end := cfg.begin(ss.Context(), info.FullMethod)
		defer end()
		defer cfg.recoverRPC(ctx, span, &err)

		err = handler(srv, &wrappedServerStream{ServerStream: ss, ctx: ctx})
		span.SetStatus(spanStatus(status.Code(err)))
		return err
	}
}

// UnaryClientInterceptor returns a gRPC unary client interceptor that
// propagates the trace of the call context.
//
// Usage:
//
//	conn, err := grpc.Dial(
//		target,
//		grpc.WithUnaryInterceptor(grpcscope.UnaryClientInterceptor()),
//	)
func UnaryClientInterceptor(opts ...Option) grpc.UnaryClientInterceptor {
	cfg := newConfig(opts)
	prop := &Propagator{Store: cfg.store}

	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, callOpts ...grpc.CallOption) error {
		ctx, span := cfg.clientSpan(ctx, method)
		defer span.Finish()

		err := invoker(prop.outgoingContext(ctx), method, req, reply, cc, callOpts...)
		span.SetStatus(spanStatus(status.Code(err)))
		return err
	}
}

// StreamClientInterceptor returns a gRPC stream client interceptor that
// propagates the trace of the stream context.
func StreamClientInterceptor(opts ...Option) grpc.StreamClientInterceptor {
	cfg := newConfig(opts)
	prop := &Propagator{Store: cfg.store}

	return func(ctx context.Context, desc *grpc.StreamDesc, cc *grpc.ClientConn, method string, streamer grpc.Streamer, callOpts ...grpc.CallOption) (grpc.ClientStream, error) {
		ctx, span := cfg.clientSpan(ctx, method)
		cs, err := streamer(prop.outgoingContext(ctx), desc, cc, method, callOpts...)
		if err != nil {
			span.SetStatus(spanStatus(status.Code(err)))
		}
		// The stream outlives this call; the span only covers its setup.
		span.Finish()
		return cs, err
	}
}

// clientSpan starts a grpc.client child span when ctx has an active span.
func (c config) clientSpan(ctx context.Context, method string) (context.Context, trace.Span) {
	if parent := c.store.Current(ctx).Span(); parent == nil || !parent.IsValid() {
		return ctx, trace.NoopSpan{}
	}
	return c.store.StartSpan(ctx, "grpc.client", trace.WithName(method))
}

// spanStatus maps a gRPC status code to a span status.
func spanStatus(code codes.Code) string {
	switch code {
	case codes.OK:
		return "ok"
	case codes.Canceled:
		return "cancelled"
	case codes.InvalidArgument:
		return "invalid_argument"
	case codes.DeadlineExceeded:
		return "deadline_exceeded"
	case codes.NotFound:
		return "not_found"
	case codes.AlreadyExists:
		return "already_exists"
	case codes.PermissionDenied:
		return "permission_denied"
	case codes.ResourceExhausted:
		return "resource_exhausted"
	case codes.FailedPrecondition:
		return "failed_precondition"
	case codes.Aborted:
		return "aborted"
	case codes.OutOfRange:
		return "out_of_range"
	case codes.Unimplemented:
		return "unimplemented"
	case codes.Internal:
		return "internal_error"
	case codes.Unavailable:
		return "unavailable"
	case codes.DataLoss:
		return "data_loss"
	case codes.Unauthenticated:
		return "unauthenticated"
	default:
		return "unknown_error"
	}
}

// wrappedServerStream wraps grpc.ServerStream to override Context().
type wrappedServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (w *wrappedServerStream) Context() context.Context {
	return w.ctx
}
