package strata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ctxKey string

func TestHTTPMiddleware_PreservesRequestContext(t *testing.T) {
	st, _ := newTestStore(t, DefaultOptions())

	var captured any
	handler := HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = r.Context().Value(ctxKey("user_id"))
		w.WriteHeader(http.StatusOK)
	}), WithMiddlewareStore(st))

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req = req.WithContext(context.WithValue(req.Context(), ctxKey("user_id"), "user-123"))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, "user-123", captured)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestHTTPMiddleware_IsolatesRequests(t *testing.T) {
	st, transport := newTestStore(t, DefaultOptions())

	handler := HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		st.Isolation(ctx).SetTag("path", r.URL.Path)
		st.CaptureMessage(ctx, "handled")
	}), WithMiddlewareStore(st))

	for _, path := range []string{"/a", "/b"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	events := transport.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "/a", events[0].Tags["path"])
	assert.Equal(t, "GET /a", events[0].Transaction)
	assert.Equal(t, "/b", events[1].Tags["path"])
	assert.Equal(t, "GET /b", events[1].Transaction)
	require.NotNil(t, events[1].Request)
	assert.Equal(t, "GET", events[1].Request.Method)
	assert.Empty(t, st.Isolation(context.Background()).Tags())
}

func TestHTTPMiddleware_ContinuesIncomingTrace(t *testing.T) {
	st, transport := newTestStore(t, ClientOptions{EnableTracing: true})

	var traceID string
	handler := HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID, _ = st.ActiveTraceIDs(r.Context())
		w.WriteHeader(http.StatusNotFound)
	}), WithMiddlewareStore(st))

	req := httptest.NewRequest(http.MethodGet, "/users/42", nil)
	req.Header.Set("sentry-trace", incomingTrace)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "771a43a4192642f0b136d5159a501700", traceID)

	events := transport.Events()
	require.Len(t, events, 1)
	tx := events[0]
	assert.Equal(t, EventTypeTransaction, tx.Type)
	assert.Equal(t, "GET /users/42", tx.Transaction)
	assert.Equal(t, "url", tx.TransactionInfo["source"])
	assert.Equal(t, "http.server", tx.Contexts["trace"]["op"])
	assert.Equal(t, "not_found", tx.Contexts["trace"]["status"])
	assert.Equal(t, "1234567890abcdef", tx.Contexts["trace"]["parent_span_id"])
	assert.Equal(t, "404", tx.Tags["http.status_code"])
}

func TestHTTPMiddleware_RecoversPanics(t *testing.T) {
	st, transport := newTestStore(t, DefaultOptions())

	handler := HTTPMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("handler exploded")
	}), WithMiddlewareStore(st))

	rr := httptest.NewRecorder()
	require.NotPanics(t, func() {
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/orders", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, rr.Code)

	events := transport.Events()
	require.Len(t, events, 1)
	assert.Equal(t, LevelFatal, events[0].Level)
	assert.Equal(t, "handler exploded", events[0].Message)
	assert.Equal(t, "POST /orders", events[0].Transaction)
}

func TestHTTPMiddleware_Repanic(t *testing.T) {
	st, transport := newTestStore(t, DefaultOptions())

	handler := HTTPMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("again")
	}), WithMiddlewareStore(st), WithRepanic(true))

	assert.PanicsWithValue(t, "again", func() {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
	assert.Len(t, transport.Events(), 1)
}

func TestHTTPMiddleware_Options(t *testing.T) {
	st, transport := newTestStore(t, ClientOptions{EnableTracing: true})

	handler := HTTPMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}),
		WithMiddlewareStore(st),
		WithOperationName("http.api"),
		WithTransactionNamer(func(r *http.Request) string { return "users" }),
	)
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/users", nil))

	events := transport.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "users", events[0].Transaction)
	assert.Equal(t, "http.api", events[0].Contexts["trace"]["op"])
}

func TestSpanStatus(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{http.StatusOK, "ok"},
		{http.StatusFound, "ok"},
		{http.StatusBadRequest, "invalid_argument"},
		{http.StatusUnauthorized, "unauthenticated"},
		{http.StatusForbidden, "permission_denied"},
		{http.StatusNotFound, "not_found"},
		{http.StatusTooManyRequests, "resource_exhausted"},
		{http.StatusInternalServerError, "internal_error"},
		{http.StatusNotImplemented, "unimplemented"},
		{http.StatusServiceUnavailable, "unavailable"},
		{http.StatusGatewayTimeout, "deadline_exceeded"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, spanStatus(tt.code), "status %d", tt.code)
	}
}
