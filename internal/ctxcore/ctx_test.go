package ctxcore

import (
	"testing"

	"github.com/ulala-x/serverlink/internal/mailbox"
	"github.com/ulala-x/serverlink/internal/pipe"
)

type fakeSocket struct {
	tid    uint32
	inbox  *mailbox.Mailbox
	stops  int
	seqnum int
}

func (s *fakeSocket) Tid() uint32              { return s.tid }
func (s *fakeSocket) Mailbox() *mailbox.Mailbox { return s.inbox }
func (s *fakeSocket) Stop()                     { s.stops++ }
func (s *fakeSocket) IncSeqnum()                { s.seqnum++ }

func newFakeSocket(tid uint32) *fakeSocket {
	return &fakeSocket{tid: tid, inbox: mailbox.New()}
}

func TestAllocateSlotAssignsDistinctIDs(t *testing.T) {
	c := New(Options{MaxSockets: 10, IOThreads: 0})

	t1, err := c.AllocateSlot()
	if err != nil {
		t.Fatalf("AllocateSlot() error = %v", err)
	}
	t2, err := c.AllocateSlot()
	if err != nil {
		t.Fatalf("AllocateSlot() error = %v", err)
	}
	if t1 == t2 {
		t.Fatalf("AllocateSlot returned the same tid twice: %d", t1)
	}
}

func TestAllocateSlotRejectsAfterMaxSockets(t *testing.T) {
	c := New(Options{MaxSockets: 1, IOThreads: 0})

	tid, err := c.AllocateSlot()
	if err != nil {
		t.Fatalf("first AllocateSlot() error = %v", err)
	}
	c.RegisterSocket(tid, newFakeSocket(tid))

	if _, err := c.AllocateSlot(); err != ErrTooManySockets {
		t.Fatalf("AllocateSlot() error = %v, want ErrTooManySockets", err)
	}
}

func TestRegisterEndpointRejectsDuplicateAddress(t *testing.T) {
	c := New(Options{MaxSockets: 10, IOThreads: 0})
	s := newFakeSocket(2)

	if err := c.RegisterEndpoint("inproc://a", Endpoint{Socket: s}); err != nil {
		t.Fatalf("first RegisterEndpoint() error = %v", err)
	}
	if err := c.RegisterEndpoint("inproc://a", Endpoint{Socket: s}); err != ErrAddrInUse {
		t.Fatalf("RegisterEndpoint() duplicate error = %v, want ErrAddrInUse", err)
	}
}

func TestFindEndpointIncrementsSocketSeqnum(t *testing.T) {
	c := New(Options{MaxSockets: 10, IOThreads: 0})
	s := newFakeSocket(3)
	c.RegisterEndpoint("inproc://b", Endpoint{Socket: s})

	if _, ok := c.FindEndpoint("inproc://b"); !ok {
		t.Fatalf("FindEndpoint() ok = false, want true")
	}
	if s.seqnum != 1 {
		t.Fatalf("seqnum = %d, want 1 after FindEndpoint bumps it", s.seqnum)
	}
}

func TestPendConnectionQueuesUntilBindArrives(t *testing.T) {
	c := New(Options{MaxSockets: 10, IOThreads: 0})
	connectSocket := newFakeSocket(4)
	bindSocket := newFakeSocket(5)

	a, b := pipe.Pair([2]int{0, 0}, [2]bool{false, false})

	if _, ready := c.PendConnection("inproc://c", Endpoint{Socket: connectSocket}, a, b); ready {
		t.Fatalf("PendConnection reported ready before any bind was registered")
	}

	c.RegisterEndpoint("inproc://c", Endpoint{Socket: bindSocket})
	pending := c.ConnectPending("inproc://c")
	if len(pending) != 1 {
		t.Fatalf("ConnectPending() returned %d entries, want 1", len(pending))
	}
	if pending[0].Endpoint.Socket != connectSocket {
		t.Fatalf("ConnectPending() returned the wrong endpoint")
	}

	if again := c.ConnectPending("inproc://c"); len(again) != 0 {
		t.Fatalf("ConnectPending() must drain the pending list exactly once")
	}
}

func TestPendConnectionResolvesImmediatelyIfAlreadyBound(t *testing.T) {
	c := New(Options{MaxSockets: 10, IOThreads: 0})
	bindSocket := newFakeSocket(6)
	connectSocket := newFakeSocket(7)
	c.RegisterEndpoint("inproc://d", Endpoint{Socket: bindSocket})

	a, b := pipe.Pair([2]int{0, 0}, [2]bool{false, false})
	ep, ready := c.PendConnection("inproc://d", Endpoint{Socket: connectSocket}, a, b)
	if !ready {
		t.Fatalf("PendConnection must resolve immediately when already bound")
	}
	if ep.Socket != bindSocket {
		t.Fatalf("PendConnection returned the wrong bound endpoint")
	}
}

func TestDestroySocketFreesSlotForReuse(t *testing.T) {
	c := New(Options{MaxSockets: 1, IOThreads: 0})
	tid, _ := c.AllocateSlot()
	s := newFakeSocket(tid)
	c.RegisterSocket(tid, s)

	c.DestroySocket(s)

	if _, err := c.AllocateSlot(); err != nil {
		t.Fatalf("AllocateSlot() after DestroySocket error = %v", err)
	}
}
