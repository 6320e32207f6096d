package strata

import (
	"sync"
	"time"

	"github.com/kzs0/strata/flags"
	"github.com/kzs0/strata/internal/debuglog"
	"github.com/kzs0/strata/trace"
)

// ScopeType is the role a scope plays.
type ScopeType int

const (
	// ScopeDetached is a scope not installed in any slot, e.g. one built
	// by hand and passed as an override to a capture call.
	ScopeDetached ScopeType = iota
	ScopeGlobal
	ScopeIsolation
	ScopeCurrent
	// ScopeMerged is the ephemeral scope built for a single event.
	ScopeMerged
)

func (t ScopeType) String() string {
	switch t {
	case ScopeGlobal:
		return "global"
	case ScopeIsolation:
		return "isolation"
	case ScopeCurrent:
		return "current"
	case ScopeMerged:
		return "merged"
	default:
		return "detached"
	}
}

// maxEventProcessors bounds the processors a single scope holds.
const maxEventProcessors = 20

// Profile identifies a running profiler session attached to transactions.
type Profile struct {
	ID string
}

// Scope holds the contextual data merged into outgoing events.
//
// Scope methods are safe for concurrent use. Concurrent writers to the same
// scope may interleave; readers always see consistent containers. The zero
// value is an empty detached scope without a propagation context; use
// NewScope for the other roles.
type Scope struct {
	mu  sync.RWMutex
	typ ScopeType

	level             Level
	fingerprint       []string
	transactionName   string
	transactionSource string
	transactionInfo   map[string]string
	user              User
	tags              map[string]string
	contexts          map[string]Context
	extra             map[string]any

	breadcrumbs []*Breadcrumb
	truncated   int
	attachments []*Attachment

	eventProcessors []EventProcessor
	errorProcessors []ErrorProcessor

	propagationContext *trace.PropagationContext
	span               trace.Span
	session            *Session
	profile            *Profile
	client             Client
	flags              *flags.Buffer
	lastEventID        EventID

	// layers are the scopes a merged scope was built from, in order.
	layers []*Scope
	// store resolves the client for scopes that have none bound.
	store *Store
	// isolation is the isolation scope a current scope was last installed
	// next to. Its client is consulted before the global one.
	isolation *Scope
}

// NewScope creates an empty scope of the given role. Unless the role is
// current, the scope gets a propagation context, continued from the
// SENTRY_TRACE and SENTRY_BAGGAGE environment variables when present.
func NewScope(typ ScopeType) *Scope {
	s := &Scope{typ: typ}
	s.resetLocked()
	if typ != ScopeMerged && typ != ScopeCurrent {
		s.GeneratePropagationContext(trace.IncomingFromEnvironment())
	}
	return s
}

func (s *Scope) resetLocked() {
	s.level = ""
	s.fingerprint = nil
	s.transactionName = ""
	s.transactionSource = ""
	s.transactionInfo = make(map[string]string)
	s.user = User{}
	s.tags = make(map[string]string)
	s.contexts = make(map[string]Context)
	s.extra = make(map[string]any)
	s.breadcrumbs = nil
	s.truncated = 0
	s.attachments = nil
	s.propagationContext = nil
	s.span = nil
	s.session = nil
	s.profile = nil
	s.flags = nil
	s.lastEventID = ""
}

// initMapsLocked allocates the containers a zero Scope lacks.
func (s *Scope) initMapsLocked() {
	if s.tags == nil {
		s.tags = make(map[string]string)
	}
	if s.contexts == nil {
		s.contexts = make(map[string]Context)
	}
	if s.extra == nil {
		s.extra = make(map[string]any)
	}
	if s.transactionInfo == nil {
		s.transactionInfo = make(map[string]string)
	}
}

// Type returns the role of the scope.
func (s *Scope) Type() ScopeType {
	return s.typ
}

// Fork returns a copy of the scope. Containers are copied; the span,
// client, session and propagation context are shared.
func (s *Scope) Fork() *Scope {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c := &Scope{
		typ:                s.typ,
		level:              s.level,
		fingerprint:        append([]string(nil), s.fingerprint...),
		transactionName:    s.transactionName,
		transactionSource:  s.transactionSource,
		transactionInfo:    copyStringMap(s.transactionInfo),
		user:               s.user,
		tags:               copyStringMap(s.tags),
		contexts:           copyContexts(s.contexts),
		extra:              copyAnyMap(s.extra),
		breadcrumbs:        append([]*Breadcrumb(nil), s.breadcrumbs...),
		truncated:          s.truncated,
		attachments:        append([]*Attachment(nil), s.attachments...),
		eventProcessors:    append([]EventProcessor(nil), s.eventProcessors...),
		errorProcessors:    append([]ErrorProcessor(nil), s.errorProcessors...),
		propagationContext: s.propagationContext,
		span:               s.span,
		session:            s.session,
		profile:            s.profile,
		client:             s.client,
		flags:              s.flags.Clone(),
		lastEventID:        s.lastEventID,
		layers:             s.layers,
		store:              s.store,
		isolation:          s.isolation,
	}
	return c
}

// Clear resets all contextual data. Processors and the bound client are kept.
func (s *Scope) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

// SetLevel overrides the level of captured events.
func (s *Scope) SetLevel(level Level) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.level = level
}

// SetFingerprint overrides event grouping.
func (s *Scope) SetFingerprint(fingerprint []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fingerprint = append([]string(nil), fingerprint...)
}

// SetTransactionName sets the transaction name and where it came from
// (e.g. "url", "route", "custom").
func (s *Scope) SetTransactionName(name, source string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initMapsLocked()
	s.transactionName = name
	s.transactionSource = source
	if source != "" {
		s.transactionInfo["source"] = source
	}
}

// TransactionName returns the name set with SetTransactionName.
func (s *Scope) TransactionName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.transactionName
}

func (s *Scope) transaction() (name, source string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.transactionName, s.transactionSource
}

// SetUser sets the user. An active session picks up the user as well.
func (s *Scope) SetUser(user User) {
	s.mu.Lock()
	s.user = user
	session := s.session
	s.mu.Unlock()

	if session != nil {
		session.update(sessionUpdate{user: &user})
	}
}

// User returns the user.
func (s *Scope) User() User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

func (s *Scope) SetTag(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initMapsLocked()
	s.tags[key] = value
}

func (s *Scope) SetTags(tags map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initMapsLocked()
	for k, v := range tags {
		s.tags[k] = v
	}
}

func (s *Scope) RemoveTag(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tags, key)
}

// Tags returns a copy of the tags.
func (s *Scope) Tags() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyStringMap(s.tags)
}

// SetContext sets a named context block, replacing any previous one.
func (s *Scope) SetContext(key string, value Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initMapsLocked()
	s.contexts[key] = copyAnyMap(value)
}

func (s *Scope) RemoveContext(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.contexts, key)
}

// Contexts returns a copy of the context blocks.
func (s *Scope) Contexts() map[string]Context {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyContexts(s.contexts)
}

func (s *Scope) SetExtra(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initMapsLocked()
	s.extra[key] = value
}

func (s *Scope) SetExtras(extra map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initMapsLocked()
	for k, v := range extra {
		s.extra[k] = v
	}
}

func (s *Scope) RemoveExtra(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.extra, key)
}

// Extras returns a copy of the extra data.
func (s *Scope) Extras() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyAnyMap(s.extra)
}

// AddAttachment attaches a file to every event captured with this scope.
func (s *Scope) AddAttachment(a *Attachment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attachments = append(s.attachments, a)
}

func (s *Scope) ClearAttachments() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attachments = nil
}

// AddEventProcessor registers a processor on this scope. A scope holds at
// most 20; adding to a full list clears it first.
func (s *Scope) AddEventProcessor(p EventProcessor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.eventProcessors) >= maxEventProcessors {
		debuglog.Warnf("strata: too many event processors on %s scope, clearing list", s.typ)
		s.eventProcessors = nil
	}
	s.eventProcessors = append(s.eventProcessors, p)
}

// AddErrorProcessor registers an error processor on this scope.
func (s *Scope) AddErrorProcessor(p ErrorProcessor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errorProcessors = append(s.errorProcessors, p)
}

// AddBreadcrumb records a breadcrumb using the options of the client bound
// to this scope, or of the global scope when none is bound. Without an
// active client this is a no-op.
func (s *Scope) AddBreadcrumb(b *Breadcrumb, hint BreadcrumbHint) {
	s.addBreadcrumb(s.resolveClient(), b, hint)
}

func (s *Scope) addBreadcrumb(client Client, b *Breadcrumb, hint BreadcrumbHint) {
	if b == nil {
		return
	}
	if client == nil || !client.IsActive() {
		debuglog.Infof("strata: dropped breadcrumb because no client bound")
		return
	}
	opts := client.Options()

	crumb := b.clone()
	if crumb.Timestamp.IsZero() {
		crumb.Timestamp = time.Now()
	}
	if crumb.Type == "" {
		crumb.Type = "default"
	}

	if opts.BeforeBreadcrumb != nil {
		if crumb = opts.BeforeBreadcrumb(crumb, hint); crumb == nil {
			debuglog.Infof("strata: before breadcrumb dropped breadcrumb")
			return
		}
	}

	limit := limitBreadcrumbs(opts.MaxBreadcrumbs)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.breadcrumbs = append(s.breadcrumbs, crumb)
	for len(s.breadcrumbs) > limit {
		s.breadcrumbs[0] = nil
		s.breadcrumbs = s.breadcrumbs[1:]
		s.truncated++
	}
}

// Breadcrumbs returns the recorded breadcrumbs, oldest first.
func (s *Scope) Breadcrumbs() []*Breadcrumb {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*Breadcrumb(nil), s.breadcrumbs...)
}

// TruncatedBreadcrumbs returns how many breadcrumbs were evicted since the
// last clear.
func (s *Scope) TruncatedBreadcrumbs() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.truncated
}

// ClearBreadcrumbs drops all breadcrumbs and resets the eviction count.
func (s *Scope) ClearBreadcrumbs() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.breadcrumbs = nil
	s.truncated = 0
}

// SetSpan sets the active span. The scope does not own the span.
func (s *Scope) SetSpan(span trace.Span) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.span = span
}

// Span returns the active span, or nil.
func (s *Scope) Span() trace.Span {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.span
}

// SetProfile attaches a profile to transactions captured with this scope.
func (s *Scope) SetProfile(p *Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profile = p
}

// SetClient binds a client to the scope.
func (s *Scope) SetClient(c Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.client = c
}

// Client returns the client bound to this scope, or nil.
func (s *Scope) Client() Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client
}

// resolveClient finds the client the same way Store.Client does: the
// scope's own, then its isolation scope's, then the global one.
func (s *Scope) resolveClient() Client {
	if c := s.Client(); c != nil {
		return c
	}
	s.mu.RLock()
	store, iso := s.store, s.isolation
	s.mu.RUnlock()
	if iso != nil && iso != s {
		if c := iso.Client(); c != nil {
			return c
		}
	}
	if store == nil {
		store = defaultStore
	}
	if g := store.Global(); g != s {
		return g.Client()
	}
	return nil
}

// linkIsolation records the isolation scope installed next to s.
func (s *Scope) linkIsolation(iso *Scope) {
	if s == nil || iso == nil || s == iso {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.isolation = iso
}

// AddFeatureFlag records a flag evaluation. The buffer is created on first
// use with the capacity configured on the client.
func (s *Scope) AddFeatureFlag(name string, result bool) {
	capacity := DefaultMaxFlags
	if c := s.resolveClient(); c != nil {
		capacity = c.Options().maxFlags()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.flags == nil {
		s.flags = flags.NewBuffer(capacity)
	}
	s.flags.Set(name, result)
}

// Flags returns the recorded flag evaluations.
func (s *Scope) Flags() []flags.Flag {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.flags.Get()
}

// LastEventID returns the id of the last non-transaction event captured
// while this scope was the isolation scope.
func (s *Scope) LastEventID() EventID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastEventID
}

func (s *Scope) setLastEventID(id EventID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastEventID = id
}

func copyStringMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyAnyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyContexts(m map[string]Context) map[string]Context {
	out := make(map[string]Context, len(m))
	for k, v := range m {
		out[k] = copyAnyMap(v)
	}
	return out
}
