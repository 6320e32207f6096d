package strata

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// SessionStatus is the health of a release session.
type SessionStatus string

const (
	SessionOK       SessionStatus = "ok"
	SessionExited   SessionStatus = "exited"
	SessionCrashed  SessionStatus = "crashed"
	SessionAbnormal SessionStatus = "abnormal"
)

// Session tracks the health of one unit of usage, typically owned by an
// isolation scope.
type Session struct {
	mu sync.Mutex

	sid         uuid.UUID
	distinctID  string
	started     time.Time
	duration    time.Duration
	status      SessionStatus
	errors      int
	release     string
	environment string
	ended       bool
}

// SessionSnapshot is a point-in-time copy of a session.
type SessionSnapshot struct {
	SID         string        `json:"sid"`
	DistinctID  string        `json:"did,omitempty"`
	Started     time.Time     `json:"started"`
	Duration    time.Duration `json:"duration"`
	Status      SessionStatus `json:"status"`
	Errors      int           `json:"errors"`
	Release     string        `json:"release,omitempty"`
	Environment string        `json:"environment,omitempty"`
}

// NewSession starts a session for user.
func NewSession(release, environment string, user User) *Session {
	s := &Session{
		sid:         uuid.New(),
		started:     time.Now(),
		status:      SessionOK,
		release:     release,
		environment: environment,
	}
	s.distinctID = distinctID(user)
	return s
}

func distinctID(u User) string {
	switch {
	case u.ID != "":
		return u.ID
	case u.Email != "":
		return u.Email
	default:
		return u.Username
	}
}

type sessionUpdate struct {
	status SessionStatus
	user   *User
	errors int
}

func (s *Session) update(u sessionUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	if u.user != nil {
		if id := distinctID(*u.user); id != "" {
			s.distinctID = id
		}
	}
	if u.status != "" {
		s.status = u.status
	}
	s.errors += u.errors
}

// UpdateFromEvent counts the event's errors against the session. Unhandled
// exceptions mark the session crashed.
func (s *Session) UpdateFromEvent(event *Event) {
	if len(event.Exception) == 0 {
		if !event.User.IsEmpty() {
			s.update(sessionUpdate{user: &event.User})
		}
		return
	}

	u := sessionUpdate{errors: 1}
	for _, ex := range event.Exception {
		if ex.Mechanism != nil && ex.Mechanism.Handled != nil && !*ex.Mechanism.Handled {
			u.status = SessionCrashed
			break
		}
	}
	if !event.User.IsEmpty() {
		u.user = &event.User
	}
	s.update(u)
}

// Close ends the session. A session still ok becomes exited unless status
// says otherwise.
func (s *Session) Close(status SessionStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	switch {
	case status != "":
		s.status = status
	case s.status == SessionOK:
		s.status = SessionExited
	}
	s.duration = time.Since(s.started)
	s.ended = true
}

// Snapshot copies the session state.
func (s *Session) Snapshot() SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.duration
	if !s.ended {
		d = time.Since(s.started)
	}
	return SessionSnapshot{
		SID:         s.sid.String(),
		DistinctID:  s.distinctID,
		Started:     s.started,
		Duration:    d,
		Status:      s.status,
		Errors:      s.errors,
		Release:     s.release,
		Environment: s.environment,
	}
}

// StartSession ends any running session on the scope and starts a new one
// for the scope's user.
func (s *Scope) StartSession() *Session {
	s.EndSession()

	var release, env string
	if c := s.resolveClient(); c != nil {
		opts := c.Options()
		release, env = opts.Release, opts.Environment
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = NewSession(release, env, s.user)
	return s.session
}

// EndSession closes the running session and hands it to the client when the
// client accepts sessions.
func (s *Scope) EndSession() {
	s.mu.Lock()
	session := s.session
	s.session = nil
	s.mu.Unlock()

	if session == nil {
		return
	}
	session.Close("")
	if sc, ok := s.resolveClient().(SessionCapturer); ok {
		sc.CaptureSession(session)
	}
}

// Session returns the running session, or nil.
func (s *Scope) Session() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}
