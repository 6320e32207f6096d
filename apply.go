package strata

import (
	"github.com/kzs0/strata/flags"
	"github.com/kzs0/strata/internal/debuglog"
	"github.com/kzs0/strata/trace"
)

// applyGuard marks a scope as applying itself within one call chain. The
// mark lives on the Hint handed to processors, so a processor applying the
// same scope with its hint is rejected while other callers are not.
// Release must be called on every exit path; use defer.
type applyGuard struct {
	hint  *Hint
	scope *Scope
}

func acquireApply(s *Scope, hint *Hint) (applyGuard, bool) {
	for _, applying := range hint.applying {
		if applying == s {
			return applyGuard{}, false
		}
	}
	hint.applying = append(hint.applying, s)
	return applyGuard{hint: hint, scope: s}, true
}

func (g applyGuard) Release() {
	if g.hint == nil {
		return
	}
	for i := len(g.hint.applying) - 1; i >= 0; i-- {
		if g.hint.applying[i] == g.scope {
			g.hint.applying = append(g.hint.applying[:i], g.hint.applying[i+1:]...)
			return
		}
	}
}

// snapshot is the state of a scope read under its lock, so that user
// processors run without any scope lock held.
type snapshot struct {
	level              Level
	fingerprint        []string
	transactionName    string
	transactionInfo    map[string]string
	user               User
	tags               map[string]string
	contexts           map[string]Context
	extra              map[string]any
	breadcrumbs        []*Breadcrumb
	attachments        []*Attachment
	propagationContext *trace.PropagationContext
	span               trace.Span
	profile            *Profile
	flags              []flags.Flag
	layers             []*Scope
	ownEvent           []EventProcessor
	ownError           []ErrorProcessor
}

func (s *Scope) snapshot() snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshot{
		level:              s.level,
		fingerprint:        s.fingerprint,
		transactionName:    s.transactionName,
		transactionInfo:    copyStringMap(s.transactionInfo),
		user:               s.user,
		tags:               copyStringMap(s.tags),
		contexts:           copyContexts(s.contexts),
		extra:              copyAnyMap(s.extra),
		breadcrumbs:        append([]*Breadcrumb(nil), s.breadcrumbs...),
		attachments:        append([]*Attachment(nil), s.attachments...),
		propagationContext: s.propagationContext,
		span:               s.span,
		profile:            s.profile,
		flags:              s.flags.Get(),
		layers:             append([]*Scope(nil), s.layers...),
		ownEvent:           append([]EventProcessor(nil), s.eventProcessors...),
		ownError:           append([]ErrorProcessor(nil), s.errorProcessors...),
	}
}

// processors returns the error and event processors to run, in order: the
// layers a merged scope was built from, then the scope's own.
func (snap snapshot) processors() ([]ErrorProcessor, []EventProcessor) {
	var errs []ErrorProcessor
	var events []EventProcessor
	for _, layer := range snap.layers {
		layer.mu.RLock()
		errs = append(errs, layer.errorProcessors...)
		events = append(events, layer.eventProcessors...)
		layer.mu.RUnlock()
	}
	errs = append(errs, snap.ownError...)
	events = append(events, snap.ownEvent...)
	return errs, events
}

// ApplyToEvent applies the scope to event and runs the processor pipelines.
// It returns nil when the event was dropped, or when a processor applies the
// scope again with the hint it was given.
func (s *Scope) ApplyToEvent(event *Event, hint *Hint, opts ClientOptions) *Event {
	if event == nil {
		return nil
	}
	if hint == nil {
		hint = &Hint{}
	}
	guard, ok := acquireApply(s, hint)
	if !ok {
		debuglog.Debugf("strata: scope is already applying this event, skipping")
		return nil
	}
	defer guard.Release()
	snap := s.snapshot()
	isTransaction := event.isTransaction()
	isCheckIn := event.isCheckIn()

	for _, a := range snap.attachments {
		if !isTransaction || a.AddToTransactions {
			hint.Attachments = append(hint.Attachments, a)
		}
	}

	s.applyContexts(event, snap, opts)

	if isCheckIn {
		tc, ok := event.Contexts["trace"]
		event.Contexts = make(map[string]Context, 1)
		if ok {
			event.Contexts["trace"] = tc
		}
	} else {
		applyScalars(event, snap)
	}

	if !isTransaction && !isCheckIn {
		applyBreadcrumbs(event, snap, opts)
		applyFlags(event, snap)
	}

	if isTransaction && snap.profile != nil {
		if _, ok := event.Contexts["profile"]; !ok {
			event.Contexts["profile"] = Context{"profile_id": snap.profile.ID}
		}
	}

	errorProcessors, eventProcessors := snap.processors()

	if hint.OriginalException != nil {
		for _, p := range errorProcessors {
			if !p.Matches(hint.OriginalException) {
				continue
			}
			next := runErrorProcessor(p, event, hint.OriginalException)
			if next == nil {
				debuglog.Infof("strata: error processor %s dropped event", funcName(p.fn))
				return nil
			}
			event = next
		}
	}

	if !isCheckIn {
		processors := append(globalEventProcessors(), eventProcessors...)
		for _, p := range processors {
			next := runEventProcessor(p, event, hint)
			if next == nil {
				debuglog.Infof("strata: event processor %s dropped event", funcName(p))
				return nil
			}
			event = next
		}
	}

	return event
}

func (s *Scope) applyContexts(event *Event, snap snapshot, opts ClientOptions) {
	if event.Contexts == nil {
		event.Contexts = make(map[string]Context)
	}
	for k, scoped := range snap.contexts {
		existing, ok := event.Contexts[k]
		if !ok {
			event.Contexts[k] = scoped
			continue
		}
		for ik, iv := range scoped {
			if _, set := existing[ik]; !set {
				existing[ik] = iv
			}
		}
	}

	if _, ok := event.Contexts["trace"]; ok {
		return
	}
	if tc := traceContext(snap.span, snap.propagationContext, opts); tc != nil {
		event.Contexts["trace"] = tc
	}
}

// traceContext prefers a valid span when tracing is enabled and falls back
// to the propagation context together with its dynamic sampling context.
func traceContext(span trace.Span, pc *trace.PropagationContext, opts ClientOptions) Context {
	if opts.TracingEnabled() && span != nil && span.IsValid() {
		return span.TraceContext()
	}
	if pc == nil {
		return nil
	}
	tc := pc.TraceContext()
	if dsc := propagationBaggage(pc, opts).DynamicSamplingContext(); len(dsc) > 0 {
		tc["dynamic_sampling_context"] = dsc
	}
	return tc
}

func applyScalars(event *Event, snap snapshot) {
	if event.Level == "" && snap.level != "" {
		event.Level = snap.level
	}
	if len(event.Fingerprint) == 0 && len(snap.fingerprint) > 0 {
		event.Fingerprint = append([]string(nil), snap.fingerprint...)
	}
	if event.User.IsEmpty() && !snap.user.IsEmpty() {
		event.User = snap.user
	}
	if event.Transaction == "" && snap.transactionName != "" {
		event.Transaction = snap.transactionName
	}
	if event.TransactionInfo == nil && len(snap.transactionInfo) > 0 {
		event.TransactionInfo = snap.transactionInfo
	}

	if len(snap.tags) > 0 {
		if event.Tags == nil {
			event.Tags = make(map[string]string, len(snap.tags))
		}
		for k, v := range snap.tags {
			event.Tags[k] = v
		}
	}
	if len(snap.extra) > 0 {
		if event.Extra == nil {
			event.Extra = make(map[string]any, len(snap.extra))
		}
		for k, v := range snap.extra {
			event.Extra[k] = v
		}
	}
}

func applyBreadcrumbs(event *Event, snap snapshot, opts ClientOptions) {
	if len(snap.breadcrumbs) == 0 && len(event.Breadcrumbs) == 0 {
		return
	}
	crumbs := make([]*Breadcrumb, 0, len(event.Breadcrumbs)+len(snap.breadcrumbs))
	crumbs = append(crumbs, event.Breadcrumbs...)
	crumbs = append(crumbs, snap.breadcrumbs...)
	sortBreadcrumbs(crumbs)

	if limit := limitBreadcrumbs(opts.MaxBreadcrumbs); len(crumbs) > limit {
		crumbs = crumbs[len(crumbs)-limit:]
	}
	event.Breadcrumbs = crumbs
}

func applyFlags(event *Event, snap snapshot) {
	if len(snap.flags) == 0 {
		return
	}
	existing, _ := event.Contexts["flags"]["values"].([]flags.Flag)
	values := make([]flags.Flag, 0, len(existing)+len(snap.flags))
	values = append(values, existing...)
	for _, f := range snap.flags {
		if i := flagIndex(values, f.Name); i >= 0 {
			values[i].Result = f.Result
			continue
		}
		values = append(values, f)
	}
	if event.Contexts["flags"] == nil {
		event.Contexts["flags"] = Context{}
	}
	event.Contexts["flags"]["values"] = values
}

func flagIndex(values []flags.Flag, name string) int {
	for i, f := range values {
		if f.Name == name {
			return i
		}
	}
	return -1
}
