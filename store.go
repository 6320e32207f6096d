package strata

import (
	"context"
	"sync"
)

// Store holds the process-wide global scope and resolves the isolation and
// current scopes of a context. Contexts that carry no slots share the
// store's root slots.
type Store struct {
	local Local
	root  *Slots

	globalMu sync.Mutex
	global   *Scope
}

var defaultStore = NewStore(nil)

// DefaultStore returns the store used by the package level functions.
func DefaultStore() *Store {
	return defaultStore
}

// NewStore creates a store. A nil local uses ContextLocal.
func NewStore(local Local) *Store {
	if local == nil {
		local = ContextLocal{}
	}
	return &Store{
		local: local,
		root:  &Slots{},
	}
}

func (st *Store) newScope(typ ScopeType) *Scope {
	s := NewScope(typ)
	s.store = st
	return s
}

// Global returns the global scope, creating it on first use.
func (st *Store) Global() *Scope {
	st.globalMu.Lock()
	defer st.globalMu.Unlock()
	if st.global == nil {
		st.global = st.newScope(ScopeGlobal)
	}
	return st.global
}

// slots returns the live slots for ctx.
func (st *Store) slots(ctx context.Context) *Slots {
	s, ok := st.local.Lookup(ctx)
	if !ok || s == nil {
		return st.root
	}
	for s.closed.Load() {
		if s.parent == nil {
			return st.root
		}
		s = s.parent
	}
	return s
}

// Isolation returns the isolation scope of ctx, creating it on first use.
func (st *Store) Isolation(ctx context.Context) *Scope {
	s := st.slots(ctx)
	if iso := s.isolation.Load(); iso != nil {
		return iso
	}
	s.isolation.CompareAndSwap(nil, st.newScope(ScopeIsolation))
	return s.isolation.Load()
}

// Current returns the current scope of ctx, creating it on first use.
func (st *Store) Current(ctx context.Context) *Scope {
	s := st.slots(ctx)
	if cur := s.current.Load(); cur != nil {
		return cur
	}
	if s.current.CompareAndSwap(nil, st.newScope(ScopeCurrent)) {
		s.current.Load().linkIsolation(st.Isolation(ctx))
	}
	return s.current.Load()
}

// SetIsolation replaces the isolation scope of ctx.
func (st *Store) SetIsolation(ctx context.Context, scope *Scope) {
	st.slots(ctx).isolation.Store(scope)
}

// SetCurrent replaces the current scope of ctx.
func (st *Store) SetCurrent(ctx context.Context, scope *Scope) {
	scope.linkIsolation(st.Isolation(ctx))
	st.slots(ctx).current.Store(scope)
}

// Guard ends a fork. After Close, the context returned with the guard
// resolves to the scopes that were active before the fork.
type Guard struct {
	slots *Slots
	once  sync.Once
}

// Close restores the pre-fork scopes. It is safe to call more than once.
func (g *Guard) Close() {
	if g == nil {
		return
	}
	g.once.Do(func() {
		g.slots.closed.Store(true)
	})
}

func (st *Store) attach(ctx context.Context, isolation, current *Scope) (context.Context, *Guard) {
	current.linkIsolation(isolation)
	child := &Slots{parent: st.slots(ctx)}
	child.isolation.Store(isolation)
	child.current.Store(current)
	return st.local.Attach(ctx, child), &Guard{slots: child}
}

// ForkCurrent installs a copy of the current scope in a new context.
//
// Usage:
//
//	ctx, guard := store.ForkCurrent(ctx)
//	defer guard.Close()
func (st *Store) ForkCurrent(ctx context.Context) (context.Context, *Guard) {
	return st.attach(ctx, st.Isolation(ctx), st.Current(ctx).Fork())
}

// UseScope installs scope as the current scope in a new context.
func (st *Store) UseScope(ctx context.Context, scope *Scope) (context.Context, *Guard) {
	return st.attach(ctx, st.Isolation(ctx), scope)
}

// ForkIsolation installs copies of both the isolation and the current scope
// in a new context.
func (st *Store) ForkIsolation(ctx context.Context) (context.Context, *Guard) {
	return st.attach(ctx, st.Isolation(ctx).Fork(), st.Current(ctx).Fork())
}

// UseIsolation installs scope as the isolation scope, together with a copy
// of the current scope, in a new context.
func (st *Store) UseIsolation(ctx context.Context, scope *Scope) (context.Context, *Guard) {
	return st.attach(ctx, scope, st.Current(ctx).Fork())
}

// Client returns the first client bound to the current, isolation or
// global scope of ctx, or an inactive client.
func (st *Store) Client(ctx context.Context) Client {
	for _, s := range []*Scope{st.Current(ctx), st.Isolation(ctx), st.Global()} {
		if c := s.Client(); c != nil {
			return c
		}
	}
	return noopClient{}
}

// Merge builds the scope an event captured in ctx is applied with.
// Overrides that are the isolation or current scope itself are skipped,
// since they are merged already.
func (st *Store) Merge(ctx context.Context, overrides ...Override) *Scope {
	isolation := st.Isolation(ctx)
	current := st.Current(ctx)

	filtered := make([]Override, 0, len(overrides))
	for _, o := range overrides {
		if s, ok := o.(*Scope); ok && (s == isolation || s == current) {
			continue
		}
		filtered = append(filtered, o)
	}
	return Merge(st.Global(), isolation, current, filtered...)
}

// outgoing resolves the trace identity to propagate from ctx: the current
// scope first, then the isolation scope, which always has one.
func (st *Store) outgoing(ctx context.Context) (outgoing, ClientOptions) {
	opts := st.Client(ctx).Options()
	if o, ok := st.Current(ctx).outgoing(opts); ok {
		return o, opts
	}
	iso := st.Isolation(ctx)
	iso.ensurePropagationContext()
	o, _ := iso.outgoing(opts)
	return o, opts
}
