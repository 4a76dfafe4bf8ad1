// Package queue implements the lock-free SPSC primitives (yqueue, ypipe) that
// back inter-thread message and command delivery.
package queue

import "sync/atomic"

// AtomicPtr is an atomic pointer with the specific xchg/cas ordering the
// ypipe flush protocol relies on: xchg is acq_rel, cas is release-on-success
// and acquire-on-failure. Go's atomic.Pointer already gives sequentially
// consistent operations, which is a valid (if stronger than required)
// implementation of those orderings.
type AtomicPtr[T any] struct {
	p atomic.Pointer[T]
}

// Set stores a value without any ordering contract with readers other than
// the one Store gives.
func (a *AtomicPtr[T]) Set(v *T) { a.p.Store(v) }

// Get loads the current value.
func (a *AtomicPtr[T]) Get() *T { return a.p.Load() }

// Xchg atomically replaces the value and returns the previous one.
func (a *AtomicPtr[T]) Xchg(v *T) *T { return a.p.Swap(v) }

// Cas performs compare-and-swap semantics as used by ypipe.flush/check_read:
// if the current value equals cmp, it is replaced with v and cmp (the old
// value) is returned; otherwise the actual current value is returned
// unchanged so callers can compare it against what they expected.
func (a *AtomicPtr[T]) Cas(cmp, v *T) *T {
	for {
		cur := a.p.Load()
		if cur != cmp {
			return cur
		}
		if a.p.CompareAndSwap(cur, v) {
			return cmp
		}
	}
}
