package strata

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/kzs0/strata/trace"
)

// HTTPMiddleware gives every request its own isolation scope, continues the
// trace from the request headers and captures panics.
//
// Usage:
//
//	ctx, done := strata.Init(ctx)
//	defer done()
//
//	mux := http.NewServeMux()
//	mux.HandleFunc("/users", handleUsers)
//
//	http.ListenAndServe(":8080", strata.HTTPMiddleware(mux))
func HTTPMiddleware(handler http.Handler, opts ...MiddlewareOption) http.Handler {
	cfg := applyMiddlewareOptions(opts)
	st := cfg.store

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, guard := st.ContinueTrace(r.Context(), incomingFromHeader(r.Header))
		defer guard.Close()

		name := cfg.transactionName(r)
		iso := st.Isolation(ctx)
		iso.SetTransactionName(name, "url")
		request := NewRequest(r)
		iso.AddEventProcessor(func(event *Event, _ *Hint) *Event {
			if event.Request == nil {
				event.Request = request
			}
			return event
		})

		ctx, span := st.StartSpan(ctx, cfg.operationName, trace.WithName(name), trace.WithSource("url"))
		defer span.Finish()

		rw := &responseWriter{
			ResponseWriter: w,
			status:         http.StatusOK,
		}

		defer func() {
			if rec := recover(); rec != nil {
				span.SetStatus("internal_error")
				st.Recover(ctx, rec)
				if cfg.repanic {
					panic(rec)
				}
				if !rw.wroteHeader {
					rw.WriteHeader(http.StatusInternalServerError)
				}
			}
		}()

		handler.ServeHTTP(rw, r.WithContext(ctx))

		span.SetData("http.response.status_code", rw.status)
		span.SetTag("http.status_code", strconv.Itoa(rw.status))
		span.SetStatus(spanStatus(rw.status))
	})
}

func incomingFromHeader(h http.Header) map[string]string {
	incoming := make(map[string]string, 3)
	for _, name := range []string{trace.SentryTraceHeader, trace.BaggageHeader, trace.TraceparentHeader} {
		if v := h.Get(name); v != "" {
			incoming[name] = v
		}
	}
	return incoming
}

// spanStatus maps an HTTP status code to a span status.
func spanStatus(code int) string {
	switch {
	case code < 400:
		return "ok"
	case code == http.StatusUnauthorized:
		return "unauthenticated"
	case code == http.StatusForbidden:
		return "permission_denied"
	case code == http.StatusNotFound:
		return "not_found"
	case code == http.StatusTooManyRequests:
		return "resource_exhausted"
	case code < 500:
		return "invalid_argument"
	case code == http.StatusNotImplemented:
		return "unimplemented"
	case code == http.StatusServiceUnavailable:
		return "unavailable"
	case code == http.StatusGatewayTimeout:
		return "deadline_exceeded"
	default:
		return "internal_error"
	}
}

// MiddlewareOption configures the HTTP middleware.
type MiddlewareOption func(*middlewareConfig)

// middlewareConfig holds HTTP middleware configuration.
type middlewareConfig struct {
	operationName string
	nameFunc      func(*http.Request) string
	repanic       bool
	store         *Store
}

// WithOperationName sets the span operation (default: "http.server").
func WithOperationName(name string) MiddlewareOption {
	return func(cfg *middlewareConfig) {
		cfg.operationName = name
	}
}

// WithTransactionNamer sets how requests are named (default: "METHOD /path").
func WithTransactionNamer(fn func(*http.Request) string) MiddlewareOption {
	return func(cfg *middlewareConfig) {
		cfg.nameFunc = fn
	}
}

// WithRepanic re-raises recovered panics after capturing them, so outer
// handlers still see them. Default: false, the middleware answers 500.
func WithRepanic(repanic bool) MiddlewareOption {
	return func(cfg *middlewareConfig) {
		cfg.repanic = repanic
	}
}

// WithMiddlewareStore uses store instead of the default store.
func WithMiddlewareStore(store *Store) MiddlewareOption {
	return func(cfg *middlewareConfig) {
		cfg.store = store
	}
}

func (cfg middlewareConfig) transactionName(r *http.Request) string {
	if cfg.nameFunc != nil {
		return cfg.nameFunc(r)
	}
	return fmt.Sprintf("%s %s", r.Method, r.URL.Path)
}

// applyMiddlewareOptions applies middleware options.
func applyMiddlewareOptions(opts []MiddlewareOption) middlewareConfig {
	cfg := middlewareConfig{
		operationName: "http.server",
		store:         defaultStore,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.status = code
		rw.wroteHeader = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}
