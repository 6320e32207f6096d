package report

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordLostEvent(t *testing.T) {
	reg := prometheus.NewRegistry()
	r, err := NewRecorder(reg)
	require.NoError(t, err)

	r.RecordLostEvent(ReasonEventProcessor, CategoryError)
	r.RecordLostEvent(ReasonEventProcessor, CategoryError)
	r.RecordLostEvent(ReasonBeforeSend, CategoryTransaction)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.Collector().WithLabelValues("event_processor", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.Collector().WithLabelValues("before_send", "transaction")))
	assert.Equal(t, 2, testutil.CollectAndCount(r.Collector()))
}

func TestNewRecorderReusesRegistered(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewRecorder(reg)
	require.NoError(t, err)
	second, err := NewRecorder(reg)
	require.NoError(t, err)

	second.RecordLostEvent(ReasonBeforeSend, CategoryCheckIn)
	assert.Equal(t, 1.0, testutil.ToFloat64(first.Collector().WithLabelValues("before_send", "check_in")))
}

func TestNilRecorder(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() { r.RecordLostEvent(ReasonBeforeSend, CategoryError) })

	unregistered, err := NewRecorder(nil)
	require.NoError(t, err)
	unregistered.RecordLostEvent(ReasonBeforeSend, CategoryError)
}
