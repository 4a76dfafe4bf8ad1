// Package ctxcore implements the process-wide context: the slot table of
// every socket/io-thread/reaper mailbox, the bound-endpoint registry used
// to resolve inproc connects, and the pending-connection table for
// inproc connect-before-bind. Grounded on ZMTP and
// ZMTP's ctx.cpp.
package ctxcore

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/ulala-x/serverlink/internal/iothread"
	"github.com/ulala-x/serverlink/internal/mailbox"
	"github.com/ulala-x/serverlink/internal/pipe"
)

var (
	ErrAddrInUse      = errors.New("ctxcore: endpoint already registered")
	ErrEndpointNotFound = errors.New("ctxcore: endpoint not found")
	ErrTerminated     = errors.New("ctxcore: context is terminating")
	ErrTooManySockets = errors.New("ctxcore: maximum socket count reached")
)

// Socket is the subset of socket_base_t the context needs to manage
// lifecycle and inproc wiring; internal/socket's concrete type satisfies
// this.
type Socket interface {
	Tid() uint32
	Mailbox() *mailbox.Mailbox
	Stop()
	IncSeqnum()
}

// EndpointOptions is the slice of socket options that matter for resolving
// an inproc connection, mirroring the fields ZMTP reads off
// options_t in connect_inproc_sockets.
type EndpointOptions struct {
	SndHWM        int
	RcvHWM        int
	RecvRoutingID bool
}

// Endpoint is a bound inproc address, recorded by RegisterEndpoint and
// resolved by FindEndpoint/PendConnection.
type Endpoint struct {
	Socket  Socket
	Options EndpointOptions
}

// PendingConnection is a connect-before-bind inproc attempt waiting for its
// matching Bind, carrying the already-constructed pipe pair.
type PendingConnection struct {
	Endpoint    Endpoint
	BindPipe    *pipe.Pipe
	ConnectPipe *pipe.Pipe
}

// Options configures context-wide limits, mirroring ctx_t's SL_MAX_SOCKETS/
// SL_IO_THREADS/SL_IPV6/SL_BLOCKY/SL_MAX_MSGSZ/SL_ZERO_COPY_RECV options.
type Options struct {
	MaxSockets    int
	IOThreads     int
	IPv6          bool
	Blocky        bool
	MaxMsgSize    int
	ZeroCopyRecv  bool
}

// DefaultOptions mirrors ZMTP's SL_MAX_SOCKETS_DFLT/
// SL_IO_THREADS_DFLT defaults.
func DefaultOptions() Options {
	return Options{
		MaxSockets:   1024,
		IOThreads:    1,
		Blocky:       true,
		MaxMsgSize:   -1, // unlimited
		ZeroCopyRecv: true,
	}
}

// reaperTid/firstTid reserve the low thread-ids the way ZMTP
// reserves term_tid/reaper_tid/first io-thread; this port has no separate
// term-mailbox slot since Terminate's handshake runs over termDone instead
// of a pollable mailbox (see Terminate).
const (
	reaperTid uint32 = 1
	firstTid  uint32 = 2
)

var globalSocketID atomic.Int64

// Context is the process-wide root object every socket and io-thread hangs
// off of.
type Context struct {
	optMu sync.Mutex
	opts  Options

	slotMu      sync.Mutex
	slots       map[uint32]*mailbox.Mailbox
	sockets     map[uint32]Socket
	emptySlots  []uint32
	nextSlot    uint32
	starting    bool
	terminating bool

	ioThreads []*iothread.IOThread
	reaper    *iothread.Reaper

	endpointsMu sync.Mutex
	endpoints   map[string]Endpoint
	pending     map[string][]PendingConnection

	termDone chan struct{}
}

// New constructs a context ready to lazily start its io-threads and reaper
// on the first AllocateSlot call, matching ctx_t's "_starting" lazy-init.
func New(opts Options) *Context {
	return &Context{
		opts:      opts,
		slots:     make(map[uint32]*mailbox.Mailbox),
		sockets:   make(map[uint32]Socket),
		nextSlot:  firstTid,
		starting:  true,
		endpoints: make(map[string]Endpoint),
		pending:   make(map[string][]PendingConnection),
		termDone:  make(chan struct{}, 1),
	}
}

// start lazily creates the reaper and io-thread pool; callers must hold
// slotMu.
func (c *Context) start() error {
	c.reaper = iothread.NewReaper(reaperTid, nil, func() {
		select {
		case c.termDone <- struct{}{}:
		default:
		}
	})

	c.optMu.Lock()
	n := c.opts.IOThreads
	c.optMu.Unlock()

	for i := 0; i < n; i++ {
		tid := firstTid + uint32(i)
		th, err := iothread.New(tid, nil, nil)
		if err != nil {
			return err
		}
		th.Start()
		c.ioThreads = append(c.ioThreads, th)
		c.slots[tid] = th.Mailbox()
		c.nextSlot = tid + 1
	}

	c.starting = false
	return nil
}

// AllocateSlot reserves a thread-id and mailbox slot for a new socket,
// lazily starting the context's io-threads/reaper on first use.
func (c *Context) AllocateSlot() (uint32, error) {
	c.slotMu.Lock()
	defer c.slotMu.Unlock()

	if c.terminating {
		return 0, ErrTerminated
	}
	if c.starting {
		if err := c.start(); err != nil {
			return 0, err
		}
	}
	if c.opts.MaxSockets > 0 && len(c.sockets) >= c.opts.MaxSockets {
		return 0, ErrTooManySockets
	}

	var tid uint32
	if n := len(c.emptySlots); n > 0 {
		tid = c.emptySlots[n-1]
		c.emptySlots = c.emptySlots[:n-1]
	} else {
		tid = c.nextSlot
		c.nextSlot++
	}
	return tid, nil
}

// NextSocketID returns a process-wide unique socket id, matching
// ctx_t::max_socket_id being a process-global counter shared across
// contexts.
func NextSocketID() int64 { return globalSocketID.Add(1) }

// RegisterSocket finishes slot assignment once the socket object exists.
func (c *Context) RegisterSocket(tid uint32, s Socket) {
	c.slotMu.Lock()
	defer c.slotMu.Unlock()
	c.sockets[tid] = s
	c.slots[tid] = s.Mailbox()
}

// DestroySocket releases tid's slot back to the free pool and, if the
// context is mid-termination and this was the last socket, stops the
// reaper.
func (c *Context) DestroySocket(s Socket) {
	c.slotMu.Lock()
	tid := s.Tid()
	delete(c.sockets, tid)
	delete(c.slots, tid)
	c.emptySlots = append(c.emptySlots, tid)
	empty := len(c.sockets) == 0
	terminating := c.terminating
	reaper := c.reaper
	c.slotMu.Unlock()

	if terminating && empty && reaper != nil {
		reaper.ProcessStop()
	}
}

// ChooseIOThread returns the io-thread with the least load matching
// affinity (a bitmask of acceptable thread indices; 0 means any).
func (c *Context) ChooseIOThread(affinity uint64) *iothread.IOThread {
	c.slotMu.Lock()
	defer c.slotMu.Unlock()

	var best *iothread.IOThread
	var bestLoad int64 = -1
	for i, th := range c.ioThreads {
		if affinity != 0 && affinity&(uint64(1)<<uint(i)) == 0 {
			continue
		}
		load := th.Load()
		if best == nil || load < bestLoad {
			best = th
			bestLoad = load
		}
	}
	return best
}

// Shutdown marks the context terminating and, once every open socket has
// stopped, asks the reaper to finish. It does not block.
func (c *Context) Shutdown() {
	c.slotMu.Lock()
	already := c.terminating
	c.terminating = true
	sockets := make([]Socket, 0, len(c.sockets))
	for _, s := range c.sockets {
		sockets = append(sockets, s)
	}
	starting := c.starting
	reaper := c.reaper
	c.slotMu.Unlock()

	if already || starting {
		return
	}
	for _, s := range sockets {
		s.Stop()
	}
	if len(sockets) == 0 && reaper != nil {
		reaper.ProcessStop()
	}
}

// Terminate performs Shutdown and blocks until the reaper reports every
// socket has drained and all io-threads have stopped.
func (c *Context) Terminate() {
	c.Shutdown()

	c.slotMu.Lock()
	reaper := c.reaper
	threads := append([]*iothread.IOThread(nil), c.ioThreads...)
	starting := c.starting
	c.slotMu.Unlock()

	if starting || reaper == nil {
		return
	}
	<-c.termDone
	for _, th := range threads {
		th.Stop()
	}
}

// RegisterEndpoint records addr as bound by ep.Socket; fails with
// ErrAddrInUse if addr is already bound.
func (c *Context) RegisterEndpoint(addr string, ep Endpoint) error {
	c.endpointsMu.Lock()
	defer c.endpointsMu.Unlock()
	if _, exists := c.endpoints[addr]; exists {
		return ErrAddrInUse
	}
	c.endpoints[addr] = ep
	return nil
}

// UnregisterEndpoint removes addr's binding if it belongs to s.
func (c *Context) UnregisterEndpoint(addr string, s Socket) error {
	c.endpointsMu.Lock()
	defer c.endpointsMu.Unlock()
	ep, ok := c.endpoints[addr]
	if !ok || ep.Socket != s {
		return ErrEndpointNotFound
	}
	delete(c.endpoints, addr)
	return nil
}

// UnregisterEndpoints removes every binding owned by s (called when s
// closes).
func (c *Context) UnregisterEndpoints(s Socket) {
	c.endpointsMu.Lock()
	defer c.endpointsMu.Unlock()
	for addr, ep := range c.endpoints {
		if ep.Socket == s {
			delete(c.endpoints, addr)
		}
	}
}

// FindEndpoint resolves addr to its bound Endpoint, bumping the bound
// socket's seqnum so it cannot be reaped until the caller's subsequent
// Bind command is observed (ZMTP's find_endpoint contract).
func (c *Context) FindEndpoint(addr string) (Endpoint, bool) {
	c.endpointsMu.Lock()
	defer c.endpointsMu.Unlock()
	ep, ok := c.endpoints[addr]
	if !ok {
		return Endpoint{}, false
	}
	ep.Socket.IncSeqnum()
	return ep, true
}

// PendConnection records a connect-before-bind attempt. If addr is already
// bound it returns (endpoint, true) so the caller connects immediately
// instead of queuing.
func (c *Context) PendConnection(addr string, connectEP Endpoint, bindPipe, connectPipe *pipe.Pipe) (Endpoint, bool) {
	c.endpointsMu.Lock()
	defer c.endpointsMu.Unlock()

	if ep, ok := c.endpoints[addr]; ok {
		return ep, true
	}
	connectEP.Socket.IncSeqnum()
	c.pending[addr] = append(c.pending[addr], PendingConnection{
		Endpoint:    connectEP,
		BindPipe:    bindPipe,
		ConnectPipe: connectPipe,
	})
	return Endpoint{}, false
}

// ConnectPending removes and returns every pending connection queued
// against addr, for the caller (internal/socket) to wire up against the
// now-bound socket.
func (c *Context) ConnectPending(addr string) []PendingConnection {
	c.endpointsMu.Lock()
	defer c.endpointsMu.Unlock()
	pending := c.pending[addr]
	delete(c.pending, addr)
	return pending
}

// Options returns the context's configured limits.
func (c *Context) Options() Options {
	c.optMu.Lock()
	defer c.optMu.Unlock()
	return c.opts
}

// SetMaxSockets adjusts the socket-count ceiling at runtime (SL_MAX_SOCKETS).
func (c *Context) SetMaxSockets(n int) {
	c.optMu.Lock()
	defer c.optMu.Unlock()
	c.opts.MaxSockets = n
}
