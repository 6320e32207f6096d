package strata

import (
	"reflect"
	"runtime"
	"sync"

	"github.com/kzs0/strata/internal/debuglog"
	"github.com/pkg/errors"
)

// EventProcessor inspects or rewrites an event before it is sent.
// Returning nil drops the event.
type EventProcessor func(event *Event, hint *Hint) *Event

// ErrorProcessorFunc inspects or rewrites an event caused by err.
// Returning nil drops the event.
type ErrorProcessorFunc func(event *Event, err error) *Event

// ErrorProcessor runs only for events carrying an original error. It is
// either unconditional or restricted to errors of one type.
type ErrorProcessor struct {
	fn     ErrorProcessorFunc
	target reflect.Type
}

// Unconditional builds an ErrorProcessor that runs for every error.
func Unconditional(fn ErrorProcessorFunc) ErrorProcessor {
	return ErrorProcessor{fn: fn}
}

// TypeFiltered builds an ErrorProcessor that runs only when the error, or
// an error it wraps, is of type E. E may be an interface.
//
// Usage:
//
//	scope.AddErrorProcessor(strata.TypeFiltered[*net.OpError](dropNetErrors))
func TypeFiltered[E error](fn ErrorProcessorFunc) ErrorProcessor {
	return ErrorProcessor{
		fn:     fn,
		target: reflect.TypeOf((*E)(nil)).Elem(),
	}
}

// Matches reports whether the processor applies to err.
func (p ErrorProcessor) Matches(err error) bool {
	if err == nil || p.fn == nil {
		return false
	}
	if p.target == nil {
		return true
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		t := reflect.TypeOf(e)
		if t == p.target {
			return true
		}
		if p.target.Kind() == reflect.Interface && t.Implements(p.target) {
			return true
		}
	}
	return false
}

var (
	globalProcessorsMu sync.RWMutex
	globalProcessors   []EventProcessor
)

// AddGlobalEventProcessor registers a processor that runs for every event in
// the process, before any scope level processor.
func AddGlobalEventProcessor(p EventProcessor) {
	globalProcessorsMu.Lock()
	defer globalProcessorsMu.Unlock()
	globalProcessors = append(globalProcessors, p)
}

func globalEventProcessors() []EventProcessor {
	globalProcessorsMu.RLock()
	defer globalProcessorsMu.RUnlock()
	return append([]EventProcessor(nil), globalProcessors...)
}

// runEventProcessor calls p. A panicking processor leaves the event as it
// was and the pipeline moves on.
func runEventProcessor(p EventProcessor, event *Event, hint *Hint) (out *Event) {
	out = event
	defer func() {
		if r := recover(); r != nil {
			debuglog.Errorf("strata: event processor %s panicked: %v", funcName(p), r)
			out = event
		}
	}()
	return p(event, hint)
}

func runErrorProcessor(p ErrorProcessor, event *Event, err error) (out *Event) {
	out = event
	defer func() {
		if r := recover(); r != nil {
			debuglog.Errorf("strata: error processor %s panicked: %v", funcName(p.fn), r)
			out = event
		}
	}()
	return p.fn(event, err)
}

func funcName(fn any) string {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return "<nil>"
	}
	if f := runtime.FuncForPC(v.Pointer()); f != nil {
		return f.Name()
	}
	return "<unknown>"
}
