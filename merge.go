package strata

import (
	"github.com/kzs0/strata/flags"
)

// Override is extra scope data supplied by a capture call site. It is
// applied after the global, isolation and current scopes.
type Override interface {
	applyTo(merged *Scope)
}

// ScopeFields enumerates the fields a call site may override without
// building a Scope. Zero values are left alone.
type ScopeFields struct {
	User        *User
	Level       Level
	Extras      map[string]any
	Contexts    map[string]Context
	Tags        map[string]string
	Fingerprint []string
}

func (f ScopeFields) applyTo(merged *Scope) {
	merged.UpdateFromFields(f)
}

// OverrideFunc mutates the merged scope directly.
type OverrideFunc func(merged *Scope)

func (fn OverrideFunc) applyTo(merged *Scope) {
	fn(merged)
}

func (s *Scope) applyTo(merged *Scope) {
	merged.UpdateFromScope(s)
}

// UpdateFromScope applies other onto s. Scalars are taken from other only
// when set, maps are merged key by key with other winning, sequences are
// appended and flags are replayed in order.
func (s *Scope) UpdateFromScope(other *Scope) {
	if other == nil || other == s {
		return
	}

	other.mu.RLock()
	defer other.mu.RUnlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initMapsLocked()

	if other.level != "" {
		s.level = other.level
	}
	if len(other.fingerprint) > 0 {
		s.fingerprint = append([]string(nil), other.fingerprint...)
	}
	if other.transactionName != "" {
		s.transactionName = other.transactionName
	}
	if other.transactionSource != "" {
		s.transactionSource = other.transactionSource
	}
	for k, v := range other.transactionInfo {
		s.transactionInfo[k] = v
	}
	if !other.user.IsEmpty() {
		s.user = other.user
	}
	for k, v := range other.tags {
		s.tags[k] = v
	}
	for k, v := range other.contexts {
		s.contexts[k] = copyAnyMap(v)
	}
	for k, v := range other.extra {
		s.extra[k] = v
	}
	s.breadcrumbs = append(s.breadcrumbs, other.breadcrumbs...)
	s.truncated += other.truncated
	s.attachments = append(s.attachments, other.attachments...)

	if other.span != nil {
		s.span = other.span
	}
	if other.profile != nil {
		s.profile = other.profile
	}
	if other.propagationContext != nil {
		s.propagationContext = other.propagationContext
	}
	if other.session != nil {
		s.session = other.session
	}
	if other.client != nil {
		s.client = other.client
	}
	if other.flags != nil {
		if s.flags == nil {
			s.flags = flags.NewBuffer(other.flags.Capacity())
		}
		for _, f := range other.flags.Get() {
			s.flags.Set(f.Name, f.Result)
		}
	}
	if other.typ == ScopeDetached || other.typ == ScopeMerged {
		s.eventProcessors = append(s.eventProcessors, other.eventProcessors...)
		s.errorProcessors = append(s.errorProcessors, other.errorProcessors...)
	}
}

// UpdateFromFields applies the set fields of f onto s.
func (s *Scope) UpdateFromFields(f ScopeFields) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initMapsLocked()

	if f.User != nil {
		s.user = *f.User
	}
	if f.Level != "" {
		s.level = f.Level
	}
	for k, v := range f.Extras {
		s.extra[k] = v
	}
	for k, v := range f.Contexts {
		s.contexts[k] = copyAnyMap(v)
	}
	for k, v := range f.Tags {
		s.tags[k] = v
	}
	if len(f.Fingerprint) > 0 {
		s.fingerprint = append([]string(nil), f.Fingerprint...)
	}
}

// Merge builds the ephemeral scope for one event: global, then isolation,
// then current, then each override in order. Later layers win on
// conflicting keys. Any of the three scopes may be nil.
//
// Processors of the three scopes are not copied into the merged scope; they
// are run from their owning scopes, in the same order, when the merged
// scope is applied. Processors on override scopes travel with the merge.
func Merge(global, isolation, current *Scope, overrides ...Override) *Scope {
	merged := &Scope{typ: ScopeMerged}
	merged.resetLocked()

	for _, layer := range []*Scope{global, isolation, current} {
		if layer == nil {
			continue
		}
		merged.UpdateFromScope(layer)
		merged.layers = append(merged.layers, layer)
	}
	for _, o := range overrides {
		if o == nil {
			continue
		}
		o.applyTo(merged)
	}
	return merged
}
