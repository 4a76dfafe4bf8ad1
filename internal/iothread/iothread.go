package iothread

import (
	"sync/atomic"
	"time"

	"github.com/ulala-x/serverlink/internal/mailbox"
	"github.com/ulala-x/serverlink/internal/objectx"
)

// CommandHandler processes one command dequeued from an IOThread's mailbox,
// mirroring object_t::process_command's tag switch (ZMTP).
type CommandHandler func(cmd mailbox.Command)

// IOThread is the goroutine-based analogue of io_thread_t: a readiness
// poller driving registered transports/sessions plus a mailbox of commands
// addressed to it or routed through it. Unlike ZMTP, which folds
// the mailbox's wakeup descriptor into the same epoll set as data fds, Go's
// mailbox wakeup is a channel rather than an fd (internal/mailbox's package
// doc) — so command draining and fd polling run as two goroutines here
// instead of one unified wait, a direct and idiomatic consequence of Go not
// needing an eventfd to wake a poller.
type IOThread struct {
	objectx.Object

	poller  Poller
	timers  *TimerWheel
	handler CommandHandler
	workers *WorkerPool
	load    atomic.Int64

	stopPoll chan struct{}
	stopCmd  chan struct{}
	done     chan struct{}
}

// New constructs an IOThread with a fresh poller for the current platform
// and a small worker pool (see workerpool.go) for offloading blocking calls
// such as DNS resolution or TCP connect so they never stall the poll loop.
func New(tid uint32, logger objectx.Logger, handler CommandHandler) (*IOThread, error) {
	p, err := NewPoller()
	if err != nil {
		return nil, err
	}
	return &IOThread{
		Object:   objectx.NewObject(tid, logger),
		poller:   p,
		timers:   NewTimerWheel(),
		handler:  handler,
		workers:  NewWorkerPool(2),
		stopPoll: make(chan struct{}),
		stopCmd:  make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// Poller exposes the readiness multiplexer so transports can register fds.
func (t *IOThread) Poller() Poller { return t.poller }

// Timers exposes the timer wheel so sessions can schedule heartbeats.
func (t *IOThread) Timers() *TimerWheel { return t.timers }

// Workers exposes the blocking-call offload pool.
func (t *IOThread) Workers() *WorkerPool { return t.workers }

// Load reports how many descriptors/sessions are currently assigned to
// this thread, used by ctx's choose_io_thread load-balancing (ZMTP).
func (t *IOThread) Load() int64 { return t.load.Load() }

// IncLoad and DecLoad adjust the load counter; callers bump it when
// attaching or detaching a session/transport from this thread's poller.
func (t *IOThread) IncLoad() { t.load.Add(1) }
func (t *IOThread) DecLoad() { t.load.Add(-1) }

// Start launches the poll loop and the command-drain loop as independent
// goroutines.
func (t *IOThread) Start() {
	go t.pollLoop()
	go t.commandLoop()
}

func (t *IOThread) pollLoop() {
	for {
		select {
		case <-t.stopPoll:
			close(t.done)
			return
		default:
		}
		timeout := t.timers.Execute()
		if timeout < 0 || timeout > 100*time.Millisecond {
			timeout = 100 * time.Millisecond
		}
		_ = t.poller.Wait(timeout)
	}
}

func (t *IOThread) commandLoop() {
	for {
		cmd, ok := t.Inbox.Recv(50 * time.Millisecond)
		if ok {
			if cmd.Tag == mailbox.TagStop {
				close(t.stopPoll)
				return
			}
			if t.handler != nil {
				t.handler(cmd)
			}
			continue
		}
		select {
		case <-t.stopCmd:
			close(t.stopPoll)
			return
		default:
		}
	}
}

// Stop requests shutdown and blocks until the poll loop has exited.
func (t *IOThread) Stop() {
	close(t.stopCmd)
	<-t.done
	t.poller.Close()
	t.workers.Close()
}
