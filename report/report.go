// Package report counts events that were discarded before reaching the
// transport.
package report

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Reason explains why an event was discarded.
type Reason string

const (
	ReasonEventProcessor Reason = "event_processor"
	ReasonBeforeSend     Reason = "before_send"
	ReasonQueueOverflow  Reason = "queue_overflow"
)

// Category is the kind of data that was discarded.
type Category string

const (
	CategoryError       Category = "error"
	CategoryTransaction Category = "transaction"
	CategoryCheckIn     Category = "check_in"
)

// Recorder counts discarded events by reason and category.
type Recorder struct {
	discarded *prometheus.CounterVec
}

// NewRecorder registers the discarded events counter with reg. A nil reg
// keeps the counter unregistered. If a compatible counter is already
// registered it is reused.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	discarded := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "strata",
		Name:      "discarded_events_total",
		Help:      "Events dropped before being handed to the transport.",
	}, []string{"reason", "category"})

	if reg != nil {
		if err := reg.Register(discarded); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return nil, errors.Wrap(err, "register discarded events counter")
			}
			existing, ok := are.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				return nil, errors.Wrap(err, "register discarded events counter")
			}
			discarded = existing
		}
	}
	return &Recorder{discarded: discarded}, nil
}

// RecordLostEvent counts one discarded event. A nil Recorder does nothing.
func (r *Recorder) RecordLostEvent(reason Reason, category Category) {
	if r == nil {
		return
	}
	r.discarded.WithLabelValues(string(reason), string(category)).Inc()
}

// Collector exposes the underlying counter, e.g. for tests.
func (r *Recorder) Collector() *prometheus.CounterVec {
	return r.discarded
}
