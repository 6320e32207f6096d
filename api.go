package strata

import (
	"context"

	"github.com/kzs0/strata/internal/debuglog"
	"github.com/kzs0/strata/trace"
)

// Init binds a client to the global scope and returns a context with its
// own isolation scope, plus a cleanup function. Without WithOptions or
// WithClient, options are loaded with LoadOptions; if that fails the
// defaults are used.
//
// Usage:
//
//	ctx, done := strata.Init(ctx, strata.WithOptions(opts))
//	defer done()
func Init(ctx context.Context, opts ...InitOption) (context.Context, func()) {
	cfg := applyInitOptions(opts)
	store := cfg.store

	client := cfg.client
	if client == nil {
		if cfg.options == nil {
			loaded, err := LoadOptions(cfg.viper)
			if err != nil {
				debuglog.Warnf("strata: falling back to default options: %v", err)
				loaded = DefaultOptions()
			}
			cfg.options = &loaded
		}
		client = NewClient(*cfg.options, cfg.clientOptions...)
	}
	store.Global().SetClient(client)

	ctx, guard := store.ForkIsolation(ctx)
	if cfg.startSession {
		store.Isolation(ctx).StartSession()
	}

	cleanup := func() {
		if cfg.startSession {
			store.Isolation(ctx).EndSession()
		}
		guard.Close()
	}
	return ctx, cleanup
}

// GlobalScope returns the process-wide scope.
func GlobalScope() *Scope {
	return defaultStore.Global()
}

// IsolationScope returns the isolation scope of ctx.
func IsolationScope(ctx context.Context) *Scope {
	return defaultStore.Isolation(ctx)
}

// CurrentScope returns the current scope of ctx.
func CurrentScope(ctx context.Context) *Scope {
	return defaultStore.Current(ctx)
}

// ClientFrom returns the client active in ctx. It is never nil.
func ClientFrom(ctx context.Context) Client {
	return defaultStore.Client(ctx)
}

// ForkScope installs a copy of the current scope in a new context.
func ForkScope(ctx context.Context) (context.Context, *Guard) {
	return defaultStore.ForkCurrent(ctx)
}

// UseScope installs scope as the current scope in a new context.
func UseScope(ctx context.Context, scope *Scope) (context.Context, *Guard) {
	return defaultStore.UseScope(ctx, scope)
}

// ForkIsolationScope installs copies of the isolation and current scopes in
// a new context. Use it once per unit of work, e.g. per request.
func ForkIsolationScope(ctx context.Context) (context.Context, *Guard) {
	return defaultStore.ForkIsolation(ctx)
}

// UseIsolationScope installs scope as the isolation scope in a new context.
func UseIsolationScope(ctx context.Context, scope *Scope) (context.Context, *Guard) {
	return defaultStore.UseIsolation(ctx, scope)
}

// WithScope runs fn with a forked current scope. The fork ends when fn
// returns or panics.
//
// Usage:
//
//	strata.WithScope(ctx, func(ctx context.Context, scope *strata.Scope) {
//		scope.SetTag("batch", id)
//		strata.CaptureMessage(ctx, "batch done")
//	})
func WithScope(ctx context.Context, fn func(ctx context.Context, scope *Scope)) {
	ctx, guard := defaultStore.ForkCurrent(ctx)
	defer guard.Close()
	fn(ctx, defaultStore.Current(ctx))
}

// WithIsolationScope runs fn with forked isolation and current scopes.
func WithIsolationScope(ctx context.Context, fn func(ctx context.Context, scope *Scope)) {
	ctx, guard := defaultStore.ForkIsolation(ctx)
	defer guard.Close()
	fn(ctx, defaultStore.Isolation(ctx))
}

// CaptureEvent captures event with the scopes of ctx.
func CaptureEvent(ctx context.Context, event *Event, hint *Hint, overrides ...Override) *EventID {
	return defaultStore.CaptureEvent(ctx, event, hint, overrides...)
}

// CaptureMessage captures a message.
func CaptureMessage(ctx context.Context, message string, overrides ...Override) *EventID {
	return defaultStore.CaptureMessage(ctx, message, overrides...)
}

// CaptureException captures an error.
func CaptureException(ctx context.Context, err error, overrides ...Override) *EventID {
	return defaultStore.CaptureException(ctx, err, overrides...)
}

// CaptureCheckIn reports a monitor check-in.
func CaptureCheckIn(ctx context.Context, checkIn *CheckIn) *EventID {
	return defaultStore.CaptureCheckIn(ctx, checkIn)
}

// Recover captures a recovered panic value.
func Recover(ctx context.Context, recovered any) *EventID {
	return defaultStore.Recover(ctx, recovered)
}

// StartSpan starts a span; see Store.StartSpan.
func StartSpan(ctx context.Context, op string, opts ...trace.StartSpanOption) (context.Context, trace.Span) {
	return defaultStore.StartSpan(ctx, op, opts...)
}

// AddBreadcrumb records a breadcrumb on the isolation scope.
func AddBreadcrumb(ctx context.Context, b *Breadcrumb, hint BreadcrumbHint) {
	defaultStore.Isolation(ctx).addBreadcrumb(defaultStore.Client(ctx), b, hint)
}

// AddFeatureFlag records a flag evaluation on the current scope.
func AddFeatureFlag(ctx context.Context, name string, result bool) {
	defaultStore.Current(ctx).AddFeatureFlag(name, result)
}

// SetTag sets a tag on the isolation scope.
func SetTag(ctx context.Context, key, value string) {
	defaultStore.Isolation(ctx).SetTag(key, value)
}

// SetTags sets tags on the isolation scope.
func SetTags(ctx context.Context, tags map[string]string) {
	defaultStore.Isolation(ctx).SetTags(tags)
}

// SetUser sets the user on the isolation scope.
func SetUser(ctx context.Context, user User) {
	defaultStore.Isolation(ctx).SetUser(user)
}

// SetContext sets a context block on the isolation scope.
func SetContext(ctx context.Context, key string, value Context) {
	defaultStore.Isolation(ctx).SetContext(key, value)
}

// SetExtra sets extra data on the isolation scope.
func SetExtra(ctx context.Context, key string, value any) {
	defaultStore.Isolation(ctx).SetExtra(key, value)
}

// SetLevel sets the level on the isolation scope.
func SetLevel(ctx context.Context, level Level) {
	defaultStore.Isolation(ctx).SetLevel(level)
}

// LastEventID returns the last event id captured in ctx's unit of work.
func LastEventID(ctx context.Context) EventID {
	return defaultStore.Isolation(ctx).LastEventID()
}

// StartSession starts a session on the isolation scope.
func StartSession(ctx context.Context) *Session {
	return defaultStore.Isolation(ctx).StartSession()
}

// EndSession ends the session on the isolation scope.
func EndSession(ctx context.Context) {
	defaultStore.Isolation(ctx).EndSession()
}

// Traceparent returns the sentry-trace header value for ctx.
func Traceparent(ctx context.Context) string {
	return defaultStore.Traceparent(ctx)
}

// Baggage returns the baggage header value for ctx.
func Baggage(ctx context.Context) string {
	return defaultStore.Baggage(ctx)
}

// TracePropagationHeaders returns the headers to attach to outgoing requests.
func TracePropagationHeaders(ctx context.Context) []Header {
	return defaultStore.TracePropagationHeaders(ctx)
}

// TracePropagationMeta renders the propagation headers as HTML meta tags.
func TracePropagationMeta(ctx context.Context) string {
	return defaultStore.TracePropagationMeta(ctx)
}

// TraceEnv returns environment assignments continuing the trace of ctx.
func TraceEnv(ctx context.Context) []string {
	return defaultStore.TraceEnv(ctx)
}

// ActiveTraceIDs returns the trace and span id of ctx.
func ActiveTraceIDs(ctx context.Context) (traceID, spanID string) {
	return defaultStore.ActiveTraceIDs(ctx)
}

// ContinueTrace forks the isolation scope and continues an incoming trace.
func ContinueTrace(ctx context.Context, incoming map[string]string) (context.Context, *Guard) {
	return defaultStore.ContinueTrace(ctx, incoming)
}
