package iothread

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestWorkerPoolRunsAllSubmittedTasks(t *testing.T) {
	p := NewWorkerPool(3)
	defer p.Close()

	var n atomic.Int32
	for i := 0; i < 50; i++ {
		if err := p.Submit(func() { n.Add(1) }); err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
	}

	deadline := time.Now().Add(time.Second)
	for n.Load() != 50 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if got := n.Load(); got != 50 {
		t.Fatalf("tasks completed = %d, want 50", got)
	}
}

func TestWorkerPoolRejectsSubmitAfterClose(t *testing.T) {
	p := NewWorkerPool(1)
	p.Close()

	if err := p.Submit(func() {}); err != ErrPoolClosed {
		t.Fatalf("Submit() after Close error = %v, want ErrPoolClosed", err)
	}
}
