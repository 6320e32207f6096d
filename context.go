package strata

import (
	"context"
	"sync/atomic"
)

type contextKey int

const (
	slotsKey contextKey = iota
)

// Slots holds the isolation and current scope of one execution context.
// Forking creates child slots; once a child is closed, lookups fall back to
// its parent.
type Slots struct {
	parent    *Slots
	isolation atomic.Pointer[Scope]
	current   atomic.Pointer[Scope]
	closed    atomic.Bool
}

// Local abstracts the context-local storage a Store keeps its slots in.
type Local interface {
	// Lookup returns the slots attached to ctx.
	Lookup(ctx context.Context) (*Slots, bool)
	// Attach returns a context carrying slots.
	Attach(ctx context.Context, slots *Slots) context.Context
}

// ContextLocal stores slots as a context.Context value.
type ContextLocal struct{}

func (ContextLocal) Lookup(ctx context.Context) (*Slots, bool) {
	if ctx == nil {
		return nil, false
	}
	s, ok := ctx.Value(slotsKey).(*Slots)
	return s, ok
}

func (ContextLocal) Attach(ctx context.Context, slots *Slots) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, slotsKey, slots)
}
