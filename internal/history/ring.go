// Package history keeps bounded, append-only logs of computed snapshots.
package history

import "sync"

// Ring is a fixed-capacity log that overwrites its oldest entry when full.
// It is safe for concurrent use.
type Ring[T any] struct {
	mu   sync.RWMutex
	buf  []T
	next int
	full bool
}

// NewRing returns a ring holding at most capacity entries. A capacity below
// one is treated as one.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{buf: make([]T, capacity)}
}

// Append records v, evicting the oldest entry when the ring is full.
func (r *Ring[T]) Append(v T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf[r.next] = v
	r.next = (r.next + 1) % len(r.buf)
	if r.next == 0 {
		r.full = true
	}
}

// Len is the number of retained entries.
func (r *Ring[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lenLocked()
}

// Snapshot returns retained entries oldest first.
func (r *Ring[T]) Snapshot() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := r.lenLocked()
	out := make([]T, 0, n)
	start := 0
	if r.full {
		start = r.next
	}
	for i := 0; i < n; i++ {
		out = append(out, r.buf[(start+i)%len(r.buf)])
	}
	return out
}

// Filter returns retained entries matching keep, oldest first.
func (r *Ring[T]) Filter(keep func(T) bool) []T {
	var out []T
	for _, v := range r.Snapshot() {
		if keep(v) {
			out = append(out, v)
		}
	}
	return out
}

func (r *Ring[T]) lenLocked() int {
	if r.full {
		return len(r.buf)
	}
	return r.next
}
