package queue

import "testing"

func TestYpipeWriteFlushRead(t *testing.T) {
	p := NewYpipe[int](4)

	if p.CheckRead() {
		t.Fatalf("expected empty pipe to report no data")
	}

	p.Write(1, false)
	p.Write(2, false)
	if ok := p.Flush(); ok {
		t.Fatalf("flush after the reader saw an empty pipe must report reader-asleep (false)")
	}

	v, ok := p.Read()
	if !ok || v != 1 {
		t.Fatalf("Read() = %d, %v; want 1, true", v, ok)
	}
	v, ok = p.Read()
	if !ok || v != 2 {
		t.Fatalf("Read() = %d, %v; want 2, true", v, ok)
	}
	if _, ok := p.Read(); ok {
		t.Fatalf("expected no more data after draining the batch")
	}
}

func TestYpipeSleepWakeHandshake(t *testing.T) {
	p := NewYpipe[string](4)

	// Reader observes empty pipe and transitions to "sleeping".
	if p.CheckRead() {
		t.Fatalf("expected no data yet")
	}

	p.Write("hello", false)
	if ok := p.Flush(); ok {
		t.Fatalf("flush while reader sleeping must return false (wakeup required)")
	}

	if !p.CheckRead() {
		t.Fatalf("data should now be visible to the reader")
	}
	v, ok := p.Read()
	if !ok || v != "hello" {
		t.Fatalf("Read() = %q, %v; want hello, true", v, ok)
	}
}

func TestYpipeIncompleteWriteDeferred(t *testing.T) {
	p := NewYpipe[int](4)
	p.Write(1, true) // incomplete: part of a multi-part message
	p.Flush()

	if p.CheckRead() {
		t.Fatalf("incomplete write must not be visible before the MORE=0 part lands")
	}

	p.Write(2, false)
	p.Flush()

	v, ok := p.Read()
	if !ok || v != 1 {
		t.Fatalf("Read() = %d, %v; want 1, true", v, ok)
	}
	v, ok = p.Read()
	if !ok || v != 2 {
		t.Fatalf("Read() = %d, %v; want 2, true", v, ok)
	}
}

func TestYpipeUnwriteRollback(t *testing.T) {
	p := NewYpipe[int](4)
	p.Write(1, false)
	p.Write(2, true) // incomplete second part, not yet committed

	v, ok := p.Unwrite()
	if !ok || v != 2 {
		t.Fatalf("Unwrite() = %d, %v; want the uncommitted value 2, true", v, ok)
	}

	p.Flush()

	r, ok := p.Read()
	if !ok || r != 1 {
		t.Fatalf("Read() = %d, %v; want 1, true", r, ok)
	}
	if _, ok := p.Read(); ok {
		t.Fatalf("unwritten second part must not be observable")
	}
}

func TestYpipeRollbackDiscardsIncompleteBatch(t *testing.T) {
	p := NewYpipe[int](4)
	p.Write(1, false)
	p.Write(2, true)
	p.Write(3, true)

	p.Rollback()
	p.Flush()

	v, ok := p.Read()
	if !ok || v != 1 {
		t.Fatalf("Read() = %d, %v; want 1, true", v, ok)
	}
	if _, ok := p.Read(); ok {
		t.Fatalf("rolled-back parts must not be observable")
	}
}

func TestYpipeConflateKeepsLatest(t *testing.T) {
	p := NewYpipeConflate[int]()
	p.Write(1, false)
	p.Write(2, false)
	p.Write(3, false)

	v, ok := p.Read()
	if !ok || v != 3 {
		t.Fatalf("conflate Read() = %d, %v; want latest value 3, true", v, ok)
	}
	if p.CheckRead() {
		t.Fatalf("conflate pipe should be empty after the single read")
	}
}
