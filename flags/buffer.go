// Package flags records feature flag evaluations so they can be attached to
// error events.
package flags

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// Flag is one evaluation as reported on events.
type Flag struct {
	Name   string `json:"flag"`
	Result bool   `json:"result"`
}

// Buffer keeps the most recent flag evaluations, bounded by capacity.
// Re-evaluating a flag updates its result and makes it the most recent;
// once full, the least recently evaluated flag is evicted.
//
// A Buffer is safe for concurrent use.
type Buffer struct {
	capacity int
	cache    *lru.Cache[string, bool]
}

// NewBuffer creates a buffer. A non-positive capacity yields a buffer that
// records nothing.
func NewBuffer(capacity int) *Buffer {
	b := &Buffer{capacity: capacity}
	if capacity > 0 {
		// lru.New only fails for non-positive sizes.
		b.cache, _ = lru.New[string, bool](capacity)
	}
	return b
}

// Capacity returns the configured bound.
func (b *Buffer) Capacity() int {
	if b == nil {
		return 0
	}
	return b.capacity
}

// Set records an evaluation.
func (b *Buffer) Set(name string, result bool) {
	if b == nil || b.cache == nil {
		return
	}
	b.cache.Add(name, result)
}

// Get returns the recorded flags, least recent first.
func (b *Buffer) Get() []Flag {
	if b == nil || b.cache == nil {
		return nil
	}
	keys := b.cache.Keys()
	out := make([]Flag, 0, len(keys))
	for _, k := range keys {
		if v, ok := b.cache.Peek(k); ok {
			out = append(out, Flag{Name: k, Result: v})
		}
	}
	return out
}

// Len returns the number of recorded flags.
func (b *Buffer) Len() int {
	if b == nil || b.cache == nil {
		return 0
	}
	return b.cache.Len()
}

// Clear drops all recorded flags.
func (b *Buffer) Clear() {
	if b == nil || b.cache == nil {
		return
	}
	b.cache.Purge()
}

// Clone returns an independent copy preserving recency order.
func (b *Buffer) Clone() *Buffer {
	if b == nil {
		return nil
	}
	c := NewBuffer(b.capacity)
	for _, f := range b.Get() {
		c.Set(f.Name, f.Result)
	}
	return c
}
