package strata

import (
	"context"
	"fmt"
	"testing"

	"github.com/kzs0/strata/report"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCaptureMessageMetadata(t *testing.T) {
	st, transport := newTestStore(t, ClientOptions{
		Release:     "app@1.0.0",
		Environment: "staging",
		ServerName:  "host-1",
	})
	ctx := context.Background()

	id := st.CaptureMessage(ctx, "hello")
	require.NotNil(t, id)

	events := transport.Events()
	require.Len(t, events, 1)
	event := events[0]
	assert.Equal(t, *id, event.EventID)
	assert.Len(t, string(event.EventID), 32)
	assert.Equal(t, "hello", event.Message)
	assert.Equal(t, LevelInfo, event.Level)
	assert.Equal(t, "go", event.Platform)
	assert.Equal(t, "app@1.0.0", event.Release)
	assert.Equal(t, "staging", event.Environment)
	assert.Equal(t, "host-1", event.ServerName)
	assert.False(t, event.Timestamp.IsZero())
	assert.Equal(t, *id, st.Isolation(ctx).LastEventID())
}

func TestCaptureExceptionChain(t *testing.T) {
	st, transport := newTestStore(t, DefaultOptions())

	root := errors.New("connection refused")
	st.CaptureException(context.Background(), fmt.Errorf("load user: %w", root))
	assert.Nil(t, st.CaptureException(context.Background(), nil))

	events := transport.Events()
	require.Len(t, events, 1)
	require.Len(t, events[0].Exception, 2)
	assert.Equal(t, "connection refused", events[0].Exception[0].Value)
	assert.Equal(t, "load user: connection refused", events[0].Exception[1].Value)
	assert.Equal(t, LevelError, events[0].Level)
}

func TestDroppedEventsAreCounted(t *testing.T) {
	recorder := newTestRecorder(t)
	opts := DefaultOptions()
	opts.BeforeSend = func(e *Event, _ *Hint) *Event {
		if e.Message == "secret" {
			return nil
		}
		return e
	}
	st, transport := newTestStore(t, opts, WithRecorder(recorder))
	ctx := context.Background()

	assert.Nil(t, st.CaptureMessage(ctx, "secret"))
	assert.NotNil(t, st.CaptureMessage(ctx, "public"))

	forked, guard := st.ForkCurrent(ctx)
	defer guard.Close()
	st.Current(forked).AddEventProcessor(func(*Event, *Hint) *Event { return nil })
	assert.Nil(t, st.CaptureMessage(forked, "dropped"))

	require.Len(t, transport.Events(), 1)
	assert.Equal(t, "public", transport.Events()[0].Message)

	discarded := recorder.Collector()
	assert.Equal(t, 1.0, testutil.ToFloat64(discarded.WithLabelValues(string(report.ReasonBeforeSend), string(report.CategoryError))))
	assert.Equal(t, 1.0, testutil.ToFloat64(discarded.WithLabelValues(string(report.ReasonEventProcessor), string(report.CategoryError))))
}

func TestBeforeSendPanicKeepsEvent(t *testing.T) {
	opts := DefaultOptions()
	opts.BeforeSend = func(*Event, *Hint) *Event { panic("hook") }
	st, transport := newTestStore(t, opts)

	assert.NotNil(t, st.CaptureMessage(context.Background(), "kept"))
	assert.Len(t, transport.Events(), 1)
}

func TestCheckInSkipsBeforeSend(t *testing.T) {
	opts := DefaultOptions()
	opts.BeforeSend = func(*Event, *Hint) *Event { return nil }
	st, transport := newTestStore(t, opts)
	ctx := context.Background()
	st.Current(ctx).AddBreadcrumb(&Breadcrumb{Message: "ignored"}, nil)

	id := st.CaptureCheckIn(ctx, &CheckIn{MonitorSlug: "nightly", Status: CheckInStatusInProgress})
	require.NotNil(t, id)

	events := transport.Events()
	require.Len(t, events, 1)
	require.NotNil(t, events[0].CheckIn)
	assert.Equal(t, string(*id), events[0].CheckIn.ID)
	assert.Equal(t, "nightly", events[0].CheckIn.MonitorSlug)
	assert.Empty(t, events[0].Breadcrumbs)

	again := st.CaptureCheckIn(ctx, &CheckIn{ID: string(*id), MonitorSlug: "nightly", Status: CheckInStatusOK})
	require.NotNil(t, again)
	assert.Equal(t, *id, *again)
}

func TestLastEventIDSkipsTransactions(t *testing.T) {
	st, _ := newTestStore(t, DefaultOptions())
	ctx := context.Background()

	id := st.CaptureMessage(ctx, "first")
	require.NotNil(t, id)

	tx := NewEvent()
	tx.Type = EventTypeTransaction
	require.NotNil(t, st.CaptureEvent(ctx, tx, nil))
	assert.Equal(t, *id, st.Isolation(ctx).LastEventID())
}

func TestSessionCounts(t *testing.T) {
	st, transport := newTestStore(t, ClientOptions{Release: "app@1"})
	ctx, guard := st.ForkIsolation(context.Background())
	defer guard.Close()

	iso := st.Isolation(ctx)
	iso.SetUser(User{ID: "7"})
	session := iso.StartSession()
	require.NotNil(t, session)

	st.CaptureException(ctx, errors.New("handled"))
	st.CaptureMessage(ctx, "no exception")
	snap := session.Snapshot()
	assert.Equal(t, 1, snap.Errors)
	assert.Equal(t, SessionOK, snap.Status)

	st.Recover(ctx, "boom")
	snap = session.Snapshot()
	assert.Equal(t, 2, snap.Errors)
	assert.Equal(t, SessionCrashed, snap.Status)

	iso.EndSession()
	assert.Nil(t, iso.Session())
	sessions := transport.Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, SessionCrashed, sessions[0].Status)
	assert.Equal(t, "7", sessions[0].DistinctID)
	assert.Equal(t, "app@1", sessions[0].Release)
}

func TestSessionExitsCleanly(t *testing.T) {
	st, transport := newTestStore(t, DefaultOptions())
	iso := st.Isolation(context.Background())
	iso.StartSession()
	iso.EndSession()

	sessions := transport.Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, SessionExited, sessions[0].Status)
	assert.Equal(t, 0, sessions[0].Errors)
}

func TestRecoverMarksUnhandled(t *testing.T) {
	st, transport := newTestStore(t, DefaultOptions())

	assert.Nil(t, st.Recover(context.Background(), nil))
	require.NotNil(t, st.Recover(context.Background(), errors.New("nil map")))

	events := transport.Events()
	require.Len(t, events, 1)
	assert.Equal(t, LevelFatal, events[0].Level)
	ex := events[0].Exception
	require.NotEmpty(t, ex)
	mech := ex[len(ex)-1].Mechanism
	require.NotNil(t, mech)
	assert.Equal(t, "panic", mech.Type)
	require.NotNil(t, mech.Handled)
	assert.False(t, *mech.Handled)
}

func TestInactiveClientCapturesNothing(t *testing.T) {
	st := NewStore(nil)
	ctx := context.Background()

	assert.Nil(t, st.CaptureMessage(ctx, "nobody listens"))
	assert.False(t, st.Client(ctx).IsActive())
	assert.Equal(t, EventID(""), st.Isolation(ctx).LastEventID())
}

func TestCaptureOverrides(t *testing.T) {
	st, transport := newTestStore(t, DefaultOptions())
	ctx := context.Background()
	st.Isolation(ctx).SetTag("team", "core")

	st.CaptureMessage(ctx, "with fields", ScopeFields{
		Tags:  map[string]string{"team": "payments"},
		Level: LevelWarning,
	})
	st.CaptureMessage(ctx, "with func", OverrideFunc(func(s *Scope) {
		s.SetExtra("attempt", 3)
	}))

	events := transport.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "payments", events[0].Tags["team"])
	assert.Equal(t, LevelInfo, events[0].Level, "event level wins over the override")
	assert.Equal(t, "core", events[1].Tags["team"])
	assert.Equal(t, 3, events[1].Extra["attempt"])
}
