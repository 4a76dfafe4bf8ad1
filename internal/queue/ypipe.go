package queue

// DefaultGranularity is the default chunk size for message pipes, matching
// ZMTP's message_pipe_granularity constant used both for ypipe
// chunk sizing and the pipe_t read-batch activate_write cadence.
const DefaultGranularity = 256

// Ypipe is a lock-free single-producer/single-consumer queue of elements.
// It is the transport primitive under both pipe_t (message delivery) and
// Mailbox (command delivery). The writer and reader must each be called
// from a single, consistent goroutine (no internal locking is performed
// beyond the atomic handshake described below).
//
// The correctness-critical contract is the Flush/CheckRead handshake: the
// reader either observes the writer's flushed batch directly, or marks
// itself "sleeping" via a CAS; if it marked itself sleeping, the next
// Flush's CAS failure tells the writer's owner to send a wakeup.
type Ypipe[T any] struct {
	queue *yqueue[T]

	r *T // reader's last-known front
	w *T // last flushed write position visible to the reader
	f *T // front of the writer's unflushed batch

	c AtomicPtr[T]
}

// NewYpipe creates a ypipe with chunks of the given granularity.
func NewYpipe[T any](granularity int) *Ypipe[T] {
	if granularity <= 0 {
		granularity = DefaultGranularity
	}
	q := newYQueue[T](granularity)
	q.push()
	p := &Ypipe[T]{queue: q}
	back := q.backPtr()
	p.r, p.w, p.f = back, back, back
	p.c.Set(back)
	return p
}

// Write stores a value into the pipe. If incomplete is true the value is
// part of an in-progress multi-part batch and Flush must be called again
// once the batch completes before the reader is allowed to see any of it.
func (p *Ypipe[T]) Write(v T, incomplete bool) {
	*p.queue.backPtr() = v
	p.queue.push()
	if !incomplete {
		p.f = p.queue.backPtr()
	}
}

// Unwrite reverses the most recent uncommitted Write, returning the value
// that was written and true, or false if there is nothing to undo (used by
// ROUTER when the second part of a send cannot be queued).
func (p *Ypipe[T]) Unwrite() (v T, ok bool) {
	if p.f == p.queue.backPtr() {
		return v, false
	}
	p.queue.unpush()
	return *p.queue.backPtr(), true
}

// Flush makes any unflushed writes visible to the reader. It returns true
// if the reader is awake and will observe the batch; it returns false if
// the reader had already gone to sleep, in which case the writer's owner
// must send an explicit wakeup (activate_read) to the peer.
func (p *Ypipe[T]) Flush() bool {
	if p.w == p.f {
		return true
	}
	if p.c.Cas(p.w, p.f) != p.w {
		p.c.Set(p.f)
		p.w = p.f
		return false
	}
	p.w = p.f
	return true
}

// CheckRead reports whether there is data available to read, transitioning
// the pipe into the "reader sleeping" state (via CAS) if not.
func (p *Ypipe[T]) CheckRead() bool {
	if p.queue.frontPtr() != p.r && p.r != nil {
		return true
	}
	front := p.queue.frontPtr()
	p.r = p.c.Cas(front, nil)
	if p.r == front || p.r == nil {
		return false
	}
	return true
}

// Read consumes one element. It returns false if none is available.
func (p *Ypipe[T]) Read() (v T, ok bool) {
	if !p.CheckRead() {
		return v, false
	}
	v = *p.queue.frontPtr()
	p.queue.pop()
	return v, true
}

// Probe inspects the front element without consuming it.
func (p *Ypipe[T]) Probe(fn func(T) bool) bool {
	if !p.CheckRead() {
		return false
	}
	return fn(*p.queue.frontPtr())
}

// Rollback discards any writes made since the last Flush (used when a
// multi-part send cannot complete).
func (p *Ypipe[T]) Rollback() {
	for p.f != p.queue.backPtr() {
		p.queue.unpush()
	}
}
