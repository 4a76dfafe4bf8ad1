package pipe

import (
	"testing"

	"github.com/ulala-x/serverlink/internal/message"
)

func TestFairQueueRoundRobinsAcrossPipes(t *testing.T) {
	q := NewFairQueue()

	a1, b1 := Pair([2]int{0, 0}, [2]bool{false, false})
	a2, b2 := Pair([2]int{0, 0}, [2]bool{false, false})
	q.Attach(b1)
	q.Attach(b2)

	m1 := message.InitBuffer([]byte("from-1"))
	a1.Write(&m1)
	a1.Flush()
	m2 := message.InitBuffer([]byte("from-2"))
	a2.Write(&m2)
	a2.Flush()

	got1, ok := q.Recv()
	if !ok || string(got1.Data()) != "from-1" {
		t.Fatalf("first Recv() = %q, ok=%v; want from-1", got1.Data(), ok)
	}
	got2, ok := q.Recv()
	if !ok || string(got2.Data()) != "from-2" {
		t.Fatalf("second Recv() = %q, ok=%v; want from-2", got2.Data(), ok)
	}
}

func TestFairQueueSkipsEmptyPipesWithoutStarving(t *testing.T) {
	q := NewFairQueue()

	a1, b1 := Pair([2]int{0, 0}, [2]bool{false, false})
	_, b2 := Pair([2]int{0, 0}, [2]bool{false, false})
	q.Attach(b1)
	q.Attach(b2)

	m := message.InitBuffer([]byte("only-one"))
	a1.Write(&m)
	a1.Flush()

	got, ok := q.Recv()
	if !ok || string(got.Data()) != "only-one" {
		t.Fatalf("Recv() = %q, ok=%v; want only-one", got.Data(), ok)
	}
	if q.HasIn() {
		t.Fatalf("HasIn() = true after draining the only non-empty pipe")
	}
}

func TestFairQueuePipeTerminatedRemovesIt(t *testing.T) {
	q := NewFairQueue()
	_, b1 := Pair([2]int{0, 0}, [2]bool{false, false})
	_, b2 := Pair([2]int{0, 0}, [2]bool{false, false})
	q.Attach(b1)
	q.Attach(b2)

	q.PipeTerminated(b1)

	if len(q.pipes) != 1 || q.pipes[0] != b2 {
		t.Fatalf("PipeTerminated did not remove the expected pipe")
	}
}
