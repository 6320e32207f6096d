package strata

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/kzs0/strata/trace"
)

// HTTPTransport is an http.RoundTripper that continues the trace of the
// request context downstream. For each request it:
//   - starts an http.client child span under the active span, if any
//   - injects sentry-trace, baggage and optionally traceparent headers
//   - records an http breadcrumb on the isolation scope
type HTTPTransport struct {
	// Base is the underlying http.RoundTripper.
	// If nil, http.DefaultTransport is used.
	Base http.RoundTripper

	// Store defaults to the default store.
	Store *Store
}

// RoundTrip implements http.RoundTripper.
func (t *HTTPTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	st := t.store()
	ctx := req.Context()

	var span trace.Span = trace.NoopSpan{}
	if parent := st.Current(ctx).Span(); parent != nil && parent.IsValid() {
		ctx, span = st.StartSpan(ctx, "http.client", trace.WithName(fmt.Sprintf("%s %s", req.Method, req.URL.String())))
	}
	defer span.Finish()
	span.SetData("http.request.method", req.Method)
	span.SetData("url", req.URL.String())

	// RoundTrippers must not modify the caller's request.
	req = req.Clone(ctx)
	for _, h := range st.TracePropagationHeaders(ctx) {
		req.Header.Set(h.Name, h.Value)
	}

	resp, err := t.base().RoundTrip(req)

	data := map[string]any{
		"method": req.Method,
		"url":    req.URL.String(),
	}
	level := LevelInfo
	if err != nil {
		span.SetStatus("internal_error")
		level = LevelError
		data["reason"] = err.Error()
	} else if resp != nil {
		span.SetTag("http.status_code", strconv.Itoa(resp.StatusCode))
		span.SetStatus(spanStatus(resp.StatusCode))
		data["status_code"] = resp.StatusCode
		if resp.StatusCode >= 400 {
			level = LevelWarning
		}
	}
	st.Isolation(ctx).addBreadcrumb(st.Client(ctx), &Breadcrumb{
		Type:     "http",
		Category: "http",
		Data:     data,
		Level:    level,
	}, BreadcrumbHint{"request": req, "response": resp})

	return resp, err
}

func (t *HTTPTransport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func (t *HTTPTransport) store() *Store {
	if t.Store != nil {
		return t.Store
	}
	return defaultStore
}

// NewHTTPClient creates an http.Client that propagates traces. Settings of
// base are kept.
//
// Usage:
//
//	client := strata.NewHTTPClient(&http.Client{Timeout: 30 * time.Second})
//	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, "https://api.example.com/users", nil)
//	resp, err := client.Do(req)
func NewHTTPClient(base *http.Client) *http.Client {
	if base == nil {
		base = &http.Client{}
	}

	return &http.Client{
		Transport:     &HTTPTransport{Base: base.Transport},
		CheckRedirect: base.CheckRedirect,
		Jar:           base.Jar,
		Timeout:       base.Timeout,
	}
}

// Get issues a traced GET request.
func Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return (&HTTPTransport{}).RoundTrip(req)
}

// Post issues a traced POST request.
func Post(ctx context.Context, url, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return (&HTTPTransport{}).RoundTrip(req)
}
