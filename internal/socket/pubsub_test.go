package socket

import (
	"testing"

	"github.com/ulala-x/serverlink/internal/message"
	"github.com/ulala-x/serverlink/internal/pipe"
)

func TestXPubRecvSurfacesFirstSubscribe(t *testing.T) {
	xp := NewXPub(nil, 1, 1)
	a, b := pipe.Pair([2]int{100, 100}, [2]bool{false, false})
	xp.AttachPipe(a, false, false)

	sub := message.InitSubscribe([]byte("topic"))
	if !b.Write(&sub) {
		t.Fatalf("subscriber write failed")
	}
	b.Flush()

	var out message.Msg
	if err := xp.Recv(&out); err != nil {
		t.Fatalf("Recv() error = %v", err)
	}
	if out.Type() != message.TypeSubscribe || string(out.Data()) != "topic" {
		t.Fatalf("Recv() = type %v data %q, want Subscribe/\"topic\"", out.Type(), out.Data())
	}
}

func TestXPubSendFiltersBySubscription(t *testing.T) {
	xp := NewXPub(nil, 1, 1)
	a, b := pipe.Pair([2]int{100, 100}, [2]bool{false, false})
	xp.AttachPipe(a, false, false)

	sub := message.InitSubscribe([]byte("topic"))
	b.Write(&sub)
	b.Flush()
	var drained message.Msg
	xp.Recv(&drained)

	matching := message.InitBuffer([]byte("topicXYZ"))
	if err := xp.Send(&matching); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	got, ok := b.Read()
	if !ok || string(got.Data()) != "topicXYZ" {
		t.Fatalf("subscriber did not receive matching publish, ok=%v data=%q", ok, got.Data())
	}

	nonMatching := message.InitBuffer([]byte("other"))
	if err := xp.Send(&nonMatching); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if _, ok := b.Read(); ok {
		t.Fatalf("subscriber should not have received a non-matching publish")
	}
}

func TestPubNeverSurfacesSubscriptionsToApp(t *testing.T) {
	p := NewPub(nil, 1, 1)
	a, b := pipe.Pair([2]int{100, 100}, [2]bool{false, false})
	p.AttachPipe(a, false, false)

	sub := message.InitSubscribe([]byte("topic"))
	b.Write(&sub)
	b.Flush()

	var out message.Msg
	if err := p.Recv(&out); err != ErrNotSupported {
		t.Fatalf("Recv() error = %v, want ErrNotSupported (dispatched through Base to Pub.XRecv)", err)
	}
	if p.HasIn() {
		t.Fatalf("HasIn() = true, want false for a write-only PUB socket")
	}
}

func TestPubStillFansOutPublishedMessages(t *testing.T) {
	p := NewPub(nil, 1, 1)
	a, b := pipe.Pair([2]int{100, 100}, [2]bool{false, false})
	p.AttachPipe(a, false, false)

	sub := message.InitSubscribe([]byte("topic"))
	b.Write(&sub)
	b.Flush()

	published := message.InitBuffer([]byte("topic!"))
	if err := p.Send(&published); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	got, ok := b.Read()
	if !ok || string(got.Data()) != "topic!" {
		t.Fatalf("PUB did not forward a matching publish, ok=%v data=%q", ok, got.Data())
	}
}

func TestXSubSendBroadcastsSubscribeRequest(t *testing.T) {
	xs := NewXSub(nil, 1, 1)
	a, b := pipe.Pair([2]int{100, 100}, [2]bool{false, false})
	xs.AttachPipe(a, false, false)

	req := message.InitBuffer(append([]byte{1}, []byte("topic")...))
	if err := xs.Send(&req); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	got, ok := b.Read()
	if !ok {
		t.Fatalf("publisher did not receive a subscribe frame")
	}
	if got.Type() != message.TypeSubscribe || string(got.Data()) != "topic" {
		t.Fatalf("got type %v data %q, want Subscribe/\"topic\"", got.Type(), got.Data())
	}
}

func TestXSubRecvPassesThroughUnfiltered(t *testing.T) {
	xs := NewXSub(nil, 1, 1)
	a, b := pipe.Pair([2]int{100, 100}, [2]bool{false, false})
	xs.AttachPipe(a, false, false)

	payload := message.InitBuffer([]byte("anything"))
	b.Write(&payload)
	b.Flush()

	var out message.Msg
	if err := xs.Recv(&out); err != nil {
		t.Fatalf("Recv() error = %v", err)
	}
	if string(out.Data()) != "anything" {
		t.Fatalf("got %q, want %q", out.Data(), "anything")
	}
}

func TestSubRecvFiltersOutNonMatchingMessages(t *testing.T) {
	s := NewSub(nil, 1, 1)
	a, b := pipe.Pair([2]int{100, 100}, [2]bool{false, false})
	s.AttachPipe(a, false, false)

	req := message.InitBuffer(append([]byte{1}, []byte("topic")...))
	if err := s.Send(&req); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	// Drain the broadcast subscribe control frame the publisher would see.
	b.Read()

	stale := message.InitBuffer([]byte("nope"))
	b.Write(&stale)
	b.Flush()
	matching := message.InitBuffer([]byte("topicABC"))
	b.Write(&matching)
	b.Flush()

	var out message.Msg
	if err := s.Recv(&out); err != nil {
		t.Fatalf("Recv() error = %v", err)
	}
	if string(out.Data()) != "topicABC" {
		t.Fatalf("Recv() = %q, want the matching message to survive local filtering", out.Data())
	}
}

func TestSubAttachReplaysExistingSubscriptions(t *testing.T) {
	s := NewSub(nil, 1, 1)
	a1, b1 := pipe.Pair([2]int{100, 100}, [2]bool{false, false})
	s.AttachPipe(a1, false, false)

	req := message.InitBuffer(append([]byte{1}, []byte("topic")...))
	s.Send(&req)
	b1.Read()

	a2, b2 := pipe.Pair([2]int{100, 100}, [2]bool{false, false})
	s.AttachPipe(a2, false, false)

	got, ok := b2.Read()
	if !ok {
		t.Fatalf("newly attached publisher pipe did not receive a replayed subscribe frame")
	}
	if got.Type() != message.TypeSubscribe || string(got.Data()) != "topic" {
		t.Fatalf("replayed frame = type %v data %q, want Subscribe/\"topic\"", got.Type(), got.Data())
	}
}
