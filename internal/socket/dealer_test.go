package socket

import (
	"testing"

	"github.com/ulala-x/serverlink/internal/message"
	"github.com/ulala-x/serverlink/internal/pipe"
)

func TestDealerAttachPipeSendsOwnRoutingIDFrame(t *testing.T) {
	d := NewDealer(nil, 1, 1)
	if err := d.SetSockoptBytes("ROUTING_ID", []byte("me")); err != nil {
		t.Fatalf("SetSockoptBytes(ROUTING_ID) error = %v", err)
	}

	a, b := pipe.Pair([2]int{100, 100}, [2]bool{false, false})
	d.AttachPipe(a, false, false)

	got, ok := b.Read()
	if !ok {
		t.Fatalf("peer did not receive an identity frame")
	}
	if got.Type() != message.TypeRoutingID {
		t.Fatalf("frame type = %v, want TypeRoutingID", got.Type())
	}
	if string(got.Data()) != "me" {
		t.Fatalf("routing-id frame = %q, want %q", got.Data(), "me")
	}
}

func TestDealerRecvDoesNotFilterRoutingIDFrames(t *testing.T) {
	d := NewDealer(nil, 1, 1)
	a, b := pipe.Pair([2]int{100, 100}, [2]bool{false, false})
	d.AttachPipe(a, false, false)

	idMsg := message.InitRoutingID([]byte("peer-id"))
	if !b.Write(&idMsg) {
		t.Fatalf("peer write failed")
	}
	b.Flush()

	var out message.Msg
	if err := d.Recv(&out); err != nil {
		t.Fatalf("Recv() error = %v", err)
	}
	if out.Type() != message.TypeRoutingID {
		t.Fatalf("DEALER filtered out a routing-id frame it should have surfaced")
	}
}

func TestDealerSendRoundRobinsAcrossPipes(t *testing.T) {
	d := NewDealer(nil, 1, 1)
	a1, b1 := pipe.Pair([2]int{100, 100}, [2]bool{false, false})
	a2, b2 := pipe.Pair([2]int{100, 100}, [2]bool{false, false})
	d.AttachPipe(a1, false, false)
	d.AttachPipe(a2, false, false)

	// Drain the identity frames each attach produced.
	b1.Read()
	b2.Read()

	first := message.InitBuffer([]byte("one"))
	if err := d.Send(&first); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	second := message.InitBuffer([]byte("two"))
	if err := d.Send(&second); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	// LoadBalance flushes a pipe as soon as a message completes, so these
	// extra flushes find nothing left to commit.
	a1.Flush()
	a2.Flush()

	m1, ok1 := b1.Read()
	m2, ok2 := b2.Read()
	if !ok1 || !ok2 {
		t.Fatalf("expected one message on each pipe, got ok1=%v ok2=%v", ok1, ok2)
	}
	if string(m1.Data()) == string(m2.Data()) {
		t.Fatalf("both pipes received the same payload: %q", m1.Data())
	}
}
