package strata

import (
	"time"

	"github.com/kzs0/strata/internal/debuglog"
	"github.com/kzs0/strata/report"
)

// Client is the sink scopes hand finished events to.
type Client interface {
	// CaptureEvent applies scope to event and sends it. It returns nil when
	// the event was dropped.
	CaptureEvent(event *Event, hint *Hint, scope *Scope) *EventID
	Options() ClientOptions
	IsActive() bool
}

// SessionCapturer is implemented by clients that report sessions.
type SessionCapturer interface {
	CaptureSession(session *Session)
}

// EventClient is the default Client. It fills in event metadata, applies
// the scope, runs the before-send hooks and hands the event to a Transport.
type EventClient struct {
	options   ClientOptions
	transport Transport
	recorder  *report.Recorder
}

var (
	_ Client          = (*EventClient)(nil)
	_ SessionCapturer = (*EventClient)(nil)
)

// ClientOption configures an EventClient.
type ClientOption func(*EventClient)

// WithTransport sets the transport events are delivered to.
func WithTransport(t Transport) ClientOption {
	return func(c *EventClient) {
		c.transport = t
	}
}

// WithRecorder sets where discarded events are counted.
func WithRecorder(r *report.Recorder) ClientOption {
	return func(c *EventClient) {
		c.recorder = r
	}
}

// NewClient creates an EventClient. Without a transport events are discarded.
//
// Usage:
//
//	transport := strata.NewMemoryTransport()
//	client := strata.NewClient(opts, strata.WithTransport(transport))
func NewClient(opts ClientOptions, clientOpts ...ClientOption) *EventClient {
	if opts.MaxFlags <= 0 {
		opts.MaxFlags = DefaultMaxFlags
	}
	c := &EventClient{options: opts}
	for _, opt := range clientOpts {
		opt(c)
	}
	if c.transport == nil {
		c.transport = discardTransport{}
	}

	debuglog.SetDebug(opts.Debug)
	if opts.DebugWriter != nil {
		debuglog.SetOutput(opts.DebugWriter)
	}
	return c
}

// Options returns the client configuration.
func (c *EventClient) Options() ClientOptions {
	return c.options
}

// IsActive reports true; an EventClient always delivers to its transport.
func (c *EventClient) IsActive() bool {
	return true
}

// CaptureEvent prepares event with scope and sends it.
func (c *EventClient) CaptureEvent(event *Event, hint *Hint, scope *Scope) *EventID {
	event = c.prepareEvent(event, hint, scope)
	if event == nil {
		return nil
	}

	if scope != nil && !event.isTransaction() && !event.isCheckIn() {
		if session := scope.Session(); session != nil {
			session.UpdateFromEvent(event)
		}
	}

	c.transport.SendEvent(event)
	id := event.EventID
	return &id
}

// CaptureSession reports a session snapshot.
func (c *EventClient) CaptureSession(session *Session) {
	if session == nil {
		return
	}
	c.transport.SendSession(session.Snapshot())
}

func (c *EventClient) prepareEvent(event *Event, hint *Hint, scope *Scope) *Event {
	if event == nil {
		return nil
	}
	if hint == nil {
		hint = &Hint{}
	}
	if event.EventID == "" {
		event.EventID = newEventID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Platform == "" {
		event.Platform = "go"
	}
	if event.Release == "" {
		event.Release = c.options.Release
	}
	if event.Environment == "" {
		event.Environment = c.options.Environment
	}
	if event.ServerName == "" {
		event.ServerName = c.options.ServerName
	}
	if hint.OriginalException != nil && len(event.Exception) == 0 {
		event.Exception = exceptionsFromError(hint.OriginalException)
	}

	category := report.Category(event.category())

	if scope != nil {
		prepared := scope.ApplyToEvent(event, hint, c.options)
		if prepared == nil {
			debuglog.Infof("strata: event %s dropped by event processor", event.EventID)
			c.recorder.RecordLostEvent(report.ReasonEventProcessor, category)
			return nil
		}
		event = prepared
	}

	beforeSend := c.options.BeforeSend
	if event.isTransaction() {
		beforeSend = c.options.BeforeSendTransaction
	}
	if beforeSend != nil && !event.isCheckIn() {
		id := event.EventID
		if event = runBeforeSend(beforeSend, event, hint); event == nil {
			debuglog.Infof("strata: event %s dropped by before send", id)
			c.recorder.RecordLostEvent(report.ReasonBeforeSend, category)
			return nil
		}
	}
	return event
}

func runBeforeSend(fn func(*Event, *Hint) *Event, event *Event, hint *Hint) (out *Event) {
	out = event
	defer func() {
		if r := recover(); r != nil {
			debuglog.Errorf("strata: before send panicked: %v", r)
			out = event
		}
	}()
	return fn(event, hint)
}
