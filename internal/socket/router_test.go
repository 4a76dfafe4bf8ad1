package socket

import (
	"testing"

	"github.com/ulala-x/serverlink/internal/message"
	"github.com/ulala-x/serverlink/internal/pipe"
)

func identifyViaHandshake(t *testing.T, r *Router, id string) (peerLocal, peerRemote *pipe.Pipe) {
	t.Helper()
	a, b := pipe.Pair([2]int{100, 100}, [2]bool{false, false})

	idMsg := message.InitBuffer([]byte(id))
	if !b.Write(&idMsg) {
		t.Fatalf("failed to seed identity frame")
	}
	b.Flush()

	r.AttachPipe(a, false, false)
	return a, b
}

func TestRouterIdentifiesPeerFromIdentityFrame(t *testing.T) {
	r := NewRouter(nil, 1, 1)
	identifyViaHandshake(t, r, "peer1")

	if _, err := r.GetPeerState([]byte("peer1")); err != nil {
		t.Fatalf("GetPeerState(peer1) error = %v", err)
	}
}

func TestRouterSendRoutesByRoutingIDFrame(t *testing.T) {
	r := NewRouter(nil, 1, 1)
	_, remote := identifyViaHandshake(t, r, "peer1")

	idMsg := message.InitBuffer([]byte("peer1"))
	idMsg.SetFlags(message.FlagMore)
	if err := r.Send(&idMsg); err != nil {
		t.Fatalf("Send(routing frame) error = %v", err)
	}

	payload := message.InitBuffer([]byte("hello"))
	if err := r.Send(&payload); err != nil {
		t.Fatalf("Send(payload) error = %v", err)
	}

	got, ok := remote.Read()
	if !ok {
		t.Fatalf("remote.Read() found nothing")
	}
	if string(got.Data()) != "hello" {
		t.Fatalf("remote got %q, want %q", got.Data(), "hello")
	}
}

func TestRouterSendToUnknownPeerIsSilentlyDropped(t *testing.T) {
	r := NewRouter(nil, 1, 1)

	idMsg := message.InitBuffer([]byte("ghost"))
	idMsg.SetFlags(message.FlagMore)
	if err := r.Send(&idMsg); err != nil {
		t.Fatalf("Send(routing frame) error = %v", err)
	}
	payload := message.InitBuffer([]byte("hello"))
	if err := r.Send(&payload); err != nil {
		t.Fatalf("Send(payload) error = %v", err)
	}
}

func TestRouterMandatorySendToUnknownPeerReturnsHostUnreachable(t *testing.T) {
	r := NewRouter(nil, 1, 1)
	if err := r.XSetSockopt("ROUTER_MANDATORY", 1); err != nil {
		t.Fatalf("XSetSockopt(ROUTER_MANDATORY) error = %v", err)
	}

	idMsg := message.InitBuffer([]byte("ghost"))
	idMsg.SetFlags(message.FlagMore)
	if err := r.Send(&idMsg); err != ErrHostUnreachable {
		t.Fatalf("Send() error = %v, want ErrHostUnreachable", err)
	}
}

func TestRouterRecvPrependsRoutingID(t *testing.T) {
	r := NewRouter(nil, 1, 1)
	_, remote := identifyViaHandshake(t, r, "peer1")

	payload := message.InitBuffer([]byte("ping"))
	if !remote.Write(&payload) {
		t.Fatalf("remote.Write failed")
	}
	remote.Flush()

	var idFrame message.Msg
	if err := r.Recv(&idFrame); err != nil {
		t.Fatalf("Recv(routing frame) error = %v", err)
	}
	if string(idFrame.Data()) != "peer1" || !idFrame.More() {
		t.Fatalf("Recv routing frame = %q more=%v, want peer1/true", idFrame.Data(), idFrame.More())
	}

	var body message.Msg
	if err := r.Recv(&body); err != nil {
		t.Fatalf("Recv(payload) error = %v", err)
	}
	if string(body.Data()) != "ping" {
		t.Fatalf("Recv payload = %q, want %q", body.Data(), "ping")
	}
}

func TestRouterRawSocketIdentifiesWithAutoID(t *testing.T) {
	r := NewRouter(nil, 1, 1)
	if err := r.XSetSockopt("ROUTER_RAW", 1); err != nil {
		t.Fatalf("XSetSockopt(ROUTER_RAW) error = %v", err)
	}

	a, _ := pipe.Pair([2]int{100, 100}, [2]bool{false, false})
	r.AttachPipe(a, false, false)

	if len(r.Pipes()) != 1 {
		t.Fatalf("raw-socket peer was not attached")
	}
}

func TestRouterPipeTerminatedRemovesRoute(t *testing.T) {
	r := NewRouter(nil, 1, 1)
	a, _ := identifyViaHandshake(t, r, "peer1")

	r.Terminated(a)

	if _, err := r.GetPeerState([]byte("peer1")); err != ErrHostUnreachable {
		t.Fatalf("GetPeerState after termination error = %v, want ErrHostUnreachable", err)
	}
}
