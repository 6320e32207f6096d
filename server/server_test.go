package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kzs0/strata"
	"github.com/kzs0/strata/report"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, h http.Handler, path string) (int, string) {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	body, err := io.ReadAll(rr.Body)
	require.NoError(t, err)
	return rr.Code, string(body)
}

func TestMetricsExposeLostEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	recorder, err := report.NewRecorder(reg)
	require.NoError(t, err)
	recorder.RecordLostEvent(report.ReasonBeforeSend, report.CategoryError)

	s := New(reg, strata.NewStore(nil), DefaultConfig())
	code, body := get(t, s.Handler(), "/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `strata_discarded_events_total{category="error",reason="before_send"} 1`)
}

func TestReadiness(t *testing.T) {
	st := strata.NewStore(nil)
	s := New(nil, st, Config{})

	code, _ := get(t, s.Handler(), "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, code)

	st.Global().SetClient(strata.NewClient(strata.DefaultOptions()))
	code, body := get(t, s.Handler(), "/ready")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body)

	code, _ = get(t, s.Handler(), "/health")
	assert.Equal(t, http.StatusOK, code)
}

func TestDisabledEndpoints(t *testing.T) {
	s := New(prometheus.NewRegistry(), strata.NewStore(nil), Config{})

	code, _ := get(t, s.Handler(), "/metrics")
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = get(t, s.Handler(), "/debug/pprof/")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestPprofIndex(t *testing.T) {
	s := New(nil, strata.NewStore(nil), DefaultConfig())
	code, body := get(t, s.Handler(), "/debug/pprof/")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "goroutine")
}

func TestShutdownWithoutDeadline(t *testing.T) {
	s := New(nil, nil, Config{ShutdownTimeout: 1})
	assert.NoError(t, s.Shutdown(context.Background()))
}
