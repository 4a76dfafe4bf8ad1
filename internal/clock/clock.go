// Package clock provides the monotonic time source and atomic counters used
// across the messaging runtime for timers, unique ids, and the ypipe flush
// handshake.
package clock

import (
	"sync/atomic"
	"time"
)

var start = time.Now()

// NowMs returns milliseconds since an arbitrary monotonic epoch.
func NowMs() int64 {
	return time.Since(start).Milliseconds()
}

// NowUs returns microseconds since an arbitrary monotonic epoch.
func NowUs() int64 {
	return time.Since(start).Microseconds()
}

// Counter is a signed atomic counter with acquire/release semantics,
// suitable for values (sequence numbers, pending-term counts, refcounts)
// that must be visible across goroutines without a mutex.
type Counter struct {
	v atomic.Int64
}

// Add adds delta and returns the new value.
func (c *Counter) Add(delta int64) int64 { return c.v.Add(delta) }

// Sub subtracts delta and returns the new value.
func (c *Counter) Sub(delta int64) int64 { return c.v.Add(-delta) }

// Get returns the current value.
func (c *Counter) Get() int64 { return c.v.Load() }

// Set stores a value unconditionally.
func (c *Counter) Set(v int64) { c.v.Store(v) }
