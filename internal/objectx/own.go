package objectx

import (
	"sync"
	"time"

	"github.com/ulala-x/serverlink/internal/clock"
)

// Own extends Object with the parent/child lifecycle tree described in
// ZMTP ("Own relationship"): a parent that wishes to
// terminate sends term to each child (with linger), tracking how many
// term_acks it still expects; each child, once fully drained, reports back;
// when a parent's pending count reaches zero and its own work is done, it
// announces upward in turn.
//
// Fidelity note: pipes exchange the term/term_ack handshake through direct,
// mutex-guarded calls on the peer pipe (see internal/pipe), not as
// mailbox.Command sends. Own itself is shared,
// in-process bookkeeping — parent and child Own values may be driven from
// different goroutines, so its tree mutations are mutex-protected rather
// than expressed as a second layer of command passing, which would add
// nothing but latency when both sides already share an address space.
type Own struct {
	Object

	mu          sync.Mutex
	parent      *Own
	children    map[*Own]struct{}
	pendingTerm int
	linger      time.Duration
	terminating bool
	terminated  bool

	seqnum          clock.Counter
	processedSeqnum clock.Counter

	// OnTermComplete runs once this object's own work is fully drained and
	// all children have acked; it should release resources and, if this
	// object has a parent, report upward (ReportTermAck).
	OnTermComplete func()
}

// NewOwn creates a root or child Own. If parent is non-nil the child is not
// automatically registered — call parent.AddChild once the child is fully
// constructed.
func NewOwn(tid uint32, logger Logger, parent *Own) *Own {
	o := &Own{
		Object:   NewObject(tid, logger),
		parent:   parent,
		children: make(map[*Own]struct{}),
	}
	return o
}

// IncSeqnum increments this object's sequence number; callers increment it
// before posting a bind/attach/plug/own/inproc_connected-equivalent action
// so the receiver's ProcessedSeqnum can catch up before reaping (ZMTP).
func (o *Own) IncSeqnum() int64 { return o.seqnum.Add(1) }

// MarkSeqnumProcessed records that one more posted action has been
// observed by its receiver.
func (o *Own) MarkSeqnumProcessed() int64 { return o.processedSeqnum.Add(1) }

// SeqnumSettled reports whether every posted action has been observed —
// the guard that prevents reaping an object with commands still in flight.
func (o *Own) SeqnumSettled() bool { return o.seqnum.Get() == o.processedSeqnum.Get() }

// AddChild registers child as owned by o and bumps pendingTerm accounting
// lazily (pendingTerm only counts children still outstanding at the moment
// Terminate is called, per ZMTP's own.cpp).
func (o *Own) AddChild(child *Own) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.children[child] = struct{}{}
	child.parent = o
}

// Terminate begins the shutdown protocol: mark terminating, propagate term
// to every child with the same linger, and wait for their acks before
// calling OnTermComplete. If o already has no children and no pending
// work, OnTermComplete fires immediately.
func (o *Own) Terminate(linger time.Duration) {
	o.mu.Lock()
	if o.terminating {
		o.mu.Unlock()
		return
	}
	o.terminating = true
	o.linger = linger
	children := make([]*Own, 0, len(o.children))
	for c := range o.children {
		children = append(children, c)
	}
	o.pendingTerm = len(children)
	o.mu.Unlock()

	if len(children) == 0 {
		o.completeIfDrained()
		return
	}
	for _, c := range children {
		c.Terminate(linger)
	}
}

// ChildTermAck is called by a child once it has fully drained, decrementing
// the parent's pending-term count and completing the parent's own
// termination once it reaches zero.
func (o *Own) ChildTermAck(child *Own) {
	o.mu.Lock()
	delete(o.children, child)
	if o.pendingTerm > 0 {
		o.pendingTerm--
	}
	drained := o.pendingTerm == 0 && o.terminating
	o.mu.Unlock()

	if drained {
		o.completeIfDrained()
	}
}

// completeIfDrained invokes OnTermComplete exactly once and, if this object
// has a parent, reports the parent's ChildTermAck.
func (o *Own) completeIfDrained() {
	o.mu.Lock()
	if o.terminated {
		o.mu.Unlock()
		return
	}
	o.terminated = true
	parent := o.parent
	hook := o.OnTermComplete
	o.mu.Unlock()

	if hook != nil {
		hook()
	}
	if parent != nil {
		parent.ChildTermAck(o)
	}
}

// Linger returns the grace period configured for this object's shutdown.
func (o *Own) Linger() time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.linger
}

// Terminating reports whether Terminate has been called.
func (o *Own) Terminating() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.terminating
}
