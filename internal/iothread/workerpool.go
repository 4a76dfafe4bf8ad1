package iothread

import (
	"errors"
	"sync"

	"github.com/eapache/queue"
)

// ErrPoolClosed is returned by Submit after Close.
var ErrPoolClosed = errors.New("iothread: worker pool closed")

// Task is a unit of blocking work offloaded from a poll loop goroutine
// (DNS resolution, blocking connect, slow credential verification) so it
// never stalls readiness polling for every other socket on the same
// IOThread.
type Task func()

// WorkerPool is a github.com/eapache/queue-backed task queue with fixed
// worker goroutines and a mutex guarding the queue. eapache/queue.Queue is a
// plain ring buffer with no internal locking, so a mutex and condition
// variable guard every producer/consumer access instead of busy-polling.
type WorkerPool struct {
	mu      sync.Mutex
	cond    *sync.Cond
	tasks   *queue.Queue
	closed  bool
	wg      sync.WaitGroup
}

// NewWorkerPool starts n worker goroutines draining a shared task queue.
func NewWorkerPool(n int) *WorkerPool {
	p := &WorkerPool{tasks: queue.New()}
	p.cond = sync.NewCond(&p.mu)
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go p.run()
	}
	return p
}

// Submit enqueues task for execution on a worker goroutine. Returns
// ErrPoolClosed if Close has already been called.
func (p *WorkerPool) Submit(task Task) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPoolClosed
	}
	p.tasks.Add(task)
	p.cond.Signal()
	return nil
}

func (p *WorkerPool) run() {
	defer p.wg.Done()
	for {
		p.mu.Lock()
		for p.tasks.Length() == 0 && !p.closed {
			p.cond.Wait()
		}
		if p.tasks.Length() == 0 && p.closed {
			p.mu.Unlock()
			return
		}
		item := p.tasks.Peek()
		p.tasks.Remove()
		p.mu.Unlock()

		if task, ok := item.(Task); ok {
			task()
		}
	}
}

// Close stops accepting new tasks and waits for in-flight and queued tasks
// to finish draining.
func (p *WorkerPool) Close() {
	p.mu.Lock()
	p.closed = true
	p.cond.Broadcast()
	p.mu.Unlock()
	p.wg.Wait()
}
