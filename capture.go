package strata

import (
	"context"
	"fmt"

	"github.com/kzs0/strata/internal/debuglog"
	"github.com/pkg/errors"
)

// CaptureEvent merges the scopes of ctx, plus any overrides, into event
// and hands it to the active client. It returns nil when nothing was
// captured. It never panics.
func (st *Store) CaptureEvent(ctx context.Context, event *Event, hint *Hint, overrides ...Override) (id *EventID) {
	defer func() {
		if r := recover(); r != nil {
			debuglog.Errorf("strata: internal error while capturing event: %v", r)
			id = nil
		}
	}()

	if event == nil {
		return nil
	}
	client := st.Client(ctx)
	if !client.IsActive() {
		debuglog.Debugf("strata: no active client, dropping event")
		return nil
	}

	merged := st.Merge(ctx, overrides...)
	id = client.CaptureEvent(event, hint, merged)
	if id != nil && !event.isTransaction() {
		st.Isolation(ctx).setLastEventID(*id)
	}
	return id
}

// CaptureMessage captures a message event at info level.
func (st *Store) CaptureMessage(ctx context.Context, message string, overrides ...Override) *EventID {
	event := NewEvent()
	event.Level = LevelInfo
	event.Message = message
	return st.CaptureEvent(ctx, event, nil, overrides...)
}

// CaptureException captures err as an error event.
func (st *Store) CaptureException(ctx context.Context, err error, overrides ...Override) *EventID {
	if err == nil {
		return nil
	}
	event := NewEvent()
	event.Level = LevelError
	event.Message = err.Error()
	event.Exception = exceptionsFromError(err)
	return st.CaptureEvent(ctx, event, &Hint{OriginalException: err}, overrides...)
}

// CaptureCheckIn reports a monitor check-in. An empty ID starts a new
// check-in; pass the returned ID back to complete it.
func (st *Store) CaptureCheckIn(ctx context.Context, checkIn *CheckIn) *EventID {
	if checkIn == nil {
		return nil
	}
	c := *checkIn
	if c.ID == "" {
		c.ID = string(newEventID())
	}
	event := NewEvent()
	event.Type = EventTypeCheckIn
	event.CheckIn = &c
	if id := st.CaptureEvent(ctx, event, nil); id != nil {
		checkInID := EventID(c.ID)
		return &checkInID
	}
	return nil
}

// Recover captures a recovered panic value as an unhandled exception.
//
// Usage:
//
//	defer func() {
//		if r := recover(); r != nil {
//			store.Recover(ctx, r)
//		}
//	}()
func (st *Store) Recover(ctx context.Context, recovered any) *EventID {
	if recovered == nil {
		return nil
	}
	err, ok := recovered.(error)
	if !ok {
		err = errors.New(fmt.Sprint(recovered))
	}

	handled := false
	event := NewEvent()
	event.Level = LevelFatal
	event.Message = err.Error()
	event.Exception = exceptionsFromError(err)
	if n := len(event.Exception); n > 0 {
		event.Exception[n-1].Mechanism = &Mechanism{Type: "panic", Handled: &handled}
	}
	return st.CaptureEvent(ctx, event, &Hint{OriginalException: err})
}
