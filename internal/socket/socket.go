// Package socket implements socket_base_t and its concrete socket types
// (ROUTER, DEALER, PAIR, PUB/SUB, XPUB/XSUB), grounded on
// ZMTP's {socket_base.hpp,router.cpp,dealer.cpp,pair.cpp}
// and ZMTP
package socket

import (
	"errors"
	"sync"

	"github.com/ulala-x/serverlink/internal/blob"
	"github.com/ulala-x/serverlink/internal/ctxcore"
	"github.com/ulala-x/serverlink/internal/mailbox"
	"github.com/ulala-x/serverlink/internal/message"
	"github.com/ulala-x/serverlink/internal/objectx"
	"github.com/ulala-x/serverlink/internal/pipe"
)

var (
	ErrAgain           = errors.New("socket: resource temporarily unavailable")
	ErrHostUnreachable = errors.New("socket: host unreachable")
	ErrNotSupported    = errors.New("socket: operation not supported")
	ErrTerminated      = errors.New("socket: terminated")
)

// Options is the slice of socket options every socket type shares, mirroring
// options_t's common fields (ZMTP).
type Options struct {
	SndHWM        int
	RcvHWM        int
	RoutingID     []byte
	Immediate     bool
	RecvRoutingID bool
	RawSocket     bool
}

// DefaultOptions mirrors options_t's defaults.
func DefaultOptions() Options {
	return Options{SndHWM: 1000, RcvHWM: 1000}
}

// Impl is the set of x-prefixed virtual methods ZMTP's socket
// subclasses override; socket.Base dispatches to an Impl held by value so
// each concrete socket type supplies only the algorithms that differ.
type Impl interface {
	XAttachPipe(p *pipe.Pipe, subscribeToAll, locallyInitiated bool)
	XSetSockopt(option string, value any) error
	XSend(m *message.Msg) error
	XRecv(m *message.Msg) error
	XHasIn() bool
	XHasOut() bool
	XReadActivated(p *pipe.Pipe)
	XWriteActivated(p *pipe.Pipe)
	XHiccuped(p *pipe.Pipe)
	XPipeTerminated(p *pipe.Pipe)
}

// Base implements the shared bookkeeping socket_base_t provides: pipe
// attachment, the options table, mailbox plumbing, and dispatch into the
// concrete socket's Impl.
type Base struct {
	*objectx.Own

	mu      sync.Mutex
	ctx     *ctxcore.Context
	sid     int64
	opts    Options
	pipes   []*pipe.Pipe
	impl    Impl
	closed  bool
}

// NewBase constructs the shared socket state. Concrete constructors build
// their own struct first, then call NewBase with themselves as impl.
func NewBase(ctx *ctxcore.Context, tid uint32, sid int64, opts Options, impl Impl) Base {
	return Base{
		Own:  objectx.NewOwn(tid, nil, nil),
		ctx:  ctx,
		sid:  sid,
		opts: opts,
		impl: impl,
	}
}

// Tid/Mailbox/IncSeqnum satisfy ctxcore.Socket.
func (b *Base) Tid() uint32 { return b.Object.Tid }

func (b *Base) SID() int64 { return b.sid }

// IncSeqnum shadows Own.IncSeqnum (which returns the new value) with the
// no-result signature ctxcore.Socket expects; find_endpoint/pend_connection
// only care that the bump happened, not its resulting value.
func (b *Base) IncSeqnum() { b.Own.IncSeqnum() }

// Options returns a copy of the socket's current options.
func (b *Base) Options() Options {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.opts
}

func (b *Base) SetOptions(o Options) {
	b.mu.Lock()
	b.opts = o
	b.mu.Unlock()
}

// AttachPipe registers a newly created pipe with this socket: installs the
// socket as the pipe's event sink, records it, and lets the concrete type
// react (xattach_pipe).
func (b *Base) AttachPipe(p *pipe.Pipe, subscribeToAll, locallyInitiated bool) {
	p.SetEventSink(b)

	b.mu.Lock()
	b.pipes = append(b.pipes, p)
	b.mu.Unlock()

	b.impl.XAttachPipe(p, subscribeToAll, locallyInitiated)
}

// Pipes returns a snapshot of currently attached pipes.
func (b *Base) Pipes() []*pipe.Pipe {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*pipe.Pipe, len(b.pipes))
	copy(out, b.pipes)
	return out
}

func (b *Base) removePipe(p *pipe.Pipe) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, q := range b.pipes {
		if q == p {
			b.pipes = append(b.pipes[:i], b.pipes[i+1:]...)
			return
		}
	}
}

// Send dispatches a message through the concrete socket's XSend.
func (b *Base) Send(m *message.Msg) error { return b.impl.XSend(m) }

// Recv dispatches a message receive through the concrete socket's XRecv.
func (b *Base) Recv(m *message.Msg) error { return b.impl.XRecv(m) }

// HasIn/HasOut report readiness for the poll API.
func (b *Base) HasIn() bool  { return b.impl.XHasIn() }
func (b *Base) HasOut() bool { return b.impl.XHasOut() }

// SetSockoptInt handles the options every socket shares;
// anything unrecognised is delegated to the concrete type's XSetSockopt.
func (b *Base) SetSockoptInt(option string, value int) error {
	switch option {
	case "SNDHWM":
		b.mu.Lock()
		b.opts.SndHWM = value
		b.mu.Unlock()
		return nil
	case "RCVHWM":
		b.mu.Lock()
		b.opts.RcvHWM = value
		b.mu.Unlock()
		return nil
	case "IMMEDIATE":
		b.mu.Lock()
		b.opts.Immediate = value != 0
		b.mu.Unlock()
		return nil
	default:
		return b.impl.XSetSockopt(option, value)
	}
}

// SetSockoptBytes handles ROUTING_ID and defers anything else to the
// concrete type.
func (b *Base) SetSockoptBytes(option string, value []byte) error {
	switch option {
	case "ROUTING_ID":
		b.mu.Lock()
		b.opts.RoutingID = append([]byte(nil), value...)
		b.mu.Unlock()
		return nil
	default:
		return b.impl.XSetSockopt(option, value)
	}
}

// Stop interrupts any blocking call and begins teardown; process_term's
// pipe-drain protocol lives in internal/session once sessions exist, so for
// now Stop simply terminates every attached pipe (linger-free), matching
// the no-session inproc-only path.
func (b *Base) Stop() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	pipes := make([]*pipe.Pipe, len(b.pipes))
	copy(pipes, b.pipes)
	b.mu.Unlock()

	for _, p := range pipes {
		p.Terminate(false)
	}
}

// --- pipe.EventSink ---

func (b *Base) ReadActivated(p *pipe.Pipe)  { b.impl.XReadActivated(p) }
func (b *Base) WriteActivated(p *pipe.Pipe) { b.impl.XWriteActivated(p) }
func (b *Base) Hiccuped(p *pipe.Pipe)       { b.impl.XHiccuped(p) }
func (b *Base) Terminated(p *pipe.Pipe) {
	b.removePipe(p)
	b.impl.XPipeTerminated(p)
}

// defaultXWriteActivated is shared by every socket type that doesn't use a
// LoadBalance/FairQueue wrapper directly: it is a no-op, matching
// socket_base_t's default (only routing_socket_base_t overrides it, and
// that override is itself a no-op forwarding comment in ZMTP).
func defaultXWriteActivated(*pipe.Pipe) {}

// nextRoutingID mints an auto-generated 5-byte integral routing id (a
// leading 0 byte plus a big-endian uint32), matching identify_peer's
// fallback in router.cpp/dealer.cpp.
func nextRoutingID(counter *uint32) blob.Blob {
	*counter++
	buf := make([]byte, 5)
	buf[0] = 0
	id := *counter
	buf[1] = byte(id >> 24)
	buf[2] = byte(id >> 16)
	buf[3] = byte(id >> 8)
	buf[4] = byte(id)
	return blob.Owned(buf)
}

var _ mailbox.Destination = (*Base)(nil)
var _ ctxcore.Socket = (*Base)(nil)
