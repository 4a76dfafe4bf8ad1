package pipe

import (
	"testing"

	"github.com/ulala-x/serverlink/internal/message"
)

func TestLoadBalanceRoundRobinsAcrossPipes(t *testing.T) {
	q := NewLoadBalance()

	a1, b1 := Pair([2]int{0, 0}, [2]bool{false, false})
	a2, b2 := Pair([2]int{0, 0}, [2]bool{false, false})
	q.Attach(a1)
	q.Attach(a2)

	m1 := message.InitBuffer([]byte("one"))
	if !q.Send(&m1) {
		t.Fatalf("first Send must succeed")
	}
	m2 := message.InitBuffer([]byte("two"))
	if !q.Send(&m2) {
		t.Fatalf("second Send must succeed")
	}

	got1, ok := b1.Read()
	if !ok || string(got1.Data()) != "one" {
		t.Fatalf("b1.Read() = %q, ok=%v; want one", got1.Data(), ok)
	}
	got2, ok := b2.Read()
	if !ok || string(got2.Data()) != "two" {
		t.Fatalf("b2.Read() = %q, ok=%v; want two", got2.Data(), ok)
	}
}

func TestLoadBalanceDropsRemainderOfMessageAfterPipeTerminatesMidSend(t *testing.T) {
	q := NewLoadBalance()
	a1, _ := Pair([2]int{0, 0}, [2]bool{false, false})
	q.Attach(a1)

	m1 := message.Init()
	m1.SetFlags(message.FlagMore)
	if !q.Send(&m1) {
		t.Fatalf("first frame of the multipart message must send")
	}

	q.PipeTerminated(a1)

	m2 := message.Init() // final frame, no MORE
	if !q.Send(&m2) {
		t.Fatalf("dropping path must still report success to the caller")
	}
	if q.HasOut() {
		t.Fatalf("HasOut() = true after the only pipe terminated")
	}
}
