package mailbox

import (
	"sync"
	"time"

	"github.com/ulala-x/serverlink/internal/queue"
)

// Mailbox is a bounded command queue bound to one OS-visible wakeup
// primitive. In this Go port the "wakeup fd" is a buffered channel rather
// than an eventfd/pipe-pair/socketpair, which is the idiomatic substitute:
// it is still a single handle the readiness poller (or a plain select) can
// wait on, and Go's scheduler plays the role the OS poller would for an
// eventfd (ZMTP).
//
// There is exactly one reader but potentially many writers (any object in
// the process may address a command to this mailbox), so writes are
// serialized with a mutex — the same trade-off ZMTP's
// mailbox_t makes with its own "_sync" mutex around an otherwise SPSC
// ypipe.
type Mailbox struct {
	writeMu sync.Mutex
	pipe    *queue.Ypipe[Command]
	wakeup  chan struct{}
}

// New creates a mailbox whose command ypipe allocates 64-element chunks.
func New() *Mailbox {
	return &Mailbox{
		pipe:   queue.NewYpipe[Command](64),
		wakeup: make(chan struct{}, 1),
	}
}

// Mailbox implements Destination trivially for objects that *are* a
// mailbox's only owner (used by tests and simple actors).
func (m *Mailbox) Mailbox() *Mailbox { return m }

// Send writes a command and flushes it to the reader. If the reader was
// asleep (Flush returned false), Send signals the wakeup channel exactly
// once — a non-blocking send, since the channel only needs to carry "there
// is something to look at", not a count.
func (m *Mailbox) Send(cmd Command) {
	m.writeMu.Lock()
	m.pipe.Write(cmd, false)
	flushed := m.pipe.Flush()
	m.writeMu.Unlock()
	if !flushed {
		select {
		case m.wakeup <- struct{}{}:
		default:
		}
	}
}

// TryRecv attempts a non-blocking read, returning ok=false if empty.
func (m *Mailbox) TryRecv() (Command, bool) {
	return m.pipe.Read()
}

// Recv drains the wakeup signal (if any) and returns the next command,
// blocking up to timeout for one to arrive. timeout<0 blocks indefinitely;
// timeout==0 never blocks beyond the non-blocking attempt already made.
func (m *Mailbox) Recv(timeout time.Duration) (Command, bool) {
	if cmd, ok := m.pipe.Read(); ok {
		return cmd, true
	}
	if timeout == 0 {
		return Command{}, false
	}
	if timeout < 0 {
		<-m.wakeup
		return m.pipe.Read()
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-m.wakeup:
		return m.pipe.Read()
	case <-t.C:
		return Command{}, false
	}
}

// WakeupChan exposes the wakeup handle so a readiness poller can register
// it alongside fd-based event sources in a single select/epoll loop.
func (m *Mailbox) WakeupChan() <-chan struct{} { return m.wakeup }
