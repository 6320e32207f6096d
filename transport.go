package strata

import (
	"sync"

	"github.com/kzs0/strata/internal/debuglog"
)

// Transport delivers finished events. Serialization and network delivery
// live behind this interface.
type Transport interface {
	SendEvent(event *Event)
	SendSession(session SessionSnapshot)
}

// MemoryTransport keeps everything it is given. It is meant for tests and
// for inspecting what would be sent.
type MemoryTransport struct {
	mu       sync.Mutex
	events   []*Event
	sessions []SessionSnapshot
}

// NewMemoryTransport creates an empty MemoryTransport.
func NewMemoryTransport() *MemoryTransport {
	return &MemoryTransport{}
}

func (t *MemoryTransport) SendEvent(event *Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, event)
}

func (t *MemoryTransport) SendSession(session SessionSnapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sessions = append(t.sessions, session)
}

// Events returns the events sent so far.
func (t *MemoryTransport) Events() []*Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*Event(nil), t.events...)
}

// Sessions returns the sessions sent so far.
func (t *MemoryTransport) Sessions() []SessionSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]SessionSnapshot(nil), t.sessions...)
}

// discardTransport drops everything. It is used when a client has no Dsn
// and no transport.
type discardTransport struct{}

func (discardTransport) SendEvent(event *Event) {
	debuglog.Debugf("strata: no transport configured, discarding event %s", event.EventID)
}

func (discardTransport) SendSession(SessionSnapshot) {}
