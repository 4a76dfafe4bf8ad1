// api/socket.go
//
// Socket is the public per-endpoint handle: construction dispatch to the
// concrete internal/socket type, Bind/Connect across all three transports
// (inproc, ipc, tcp), blocking Send/Recv with RCVTIMEO/SNDTIMEO semantics,
// and the SUB/XSUB subscribe-by-send convention (ZMTP).

package api

import (
	"sync"
	"time"

	"github.com/ulala-x/serverlink/internal/ctxcore"
	"github.com/ulala-x/serverlink/internal/message"
	"github.com/ulala-x/serverlink/internal/pipe"
	"github.com/ulala-x/serverlink/internal/socket"
	"github.com/ulala-x/serverlink/internal/transport"
)

// EventKind distinguishes the two notifications a Socket's Notify channel
// carries.
type EventKind int

const (
	EventConnected EventKind = iota
	EventDisconnected
)

// Event is a connect/handshake notification, the Go equivalent of libzmq's
// ZMTP_EVENT_CONNECTED/ZMTP_EVENT_DISCONNECTED monitor events (ZMTP).
type Event struct {
	Kind      EventKind
	Endpoint  string
	RoutingID []byte
}

// Socket wraps an internal/socket.Base with the tcp/ipc/inproc wiring and
// blocking-call ergonomics ZMTP's C-ABI surface describes.
type Socket struct {
	ctx  *Context
	typ  SocketType
	base *socket.Base
	router *socket.Router

	mu           sync.Mutex
	opts         Options
	lastEndpoint string
	listeners    map[string]*transport.Listener
	connecters   map[string]*transport.Connecter
	closed       bool

	// Notify carries an EventConnected event (with an empty Endpoint) each
	// time a tcp or ipc peer completes its handshake; EventDisconnected is
	// never sent. Buffered; a slow consumer drops events rather than
	// blocking the engine's handshake.
	Notify chan Event
}

func newSocket(ctx *Context, t SocketType, tid uint32, sid int64, opts Options) *Socket {
	s := &Socket{
		ctx:        ctx,
		typ:        t,
		opts:       opts,
		listeners:  make(map[string]*transport.Listener),
		connecters: make(map[string]*transport.Connecter),
		Notify:     make(chan Event, 16),
	}

	switch t {
	case Pair:
		p := socket.NewPair(ctx.core, tid, sid)
		s.base = &p.Base
	case Router:
		r := socket.NewRouter(ctx.core, tid, sid)
		s.base = &r.Base
		s.router = r
	case Dealer:
		d := socket.NewDealer(ctx.core, tid, sid)
		s.base = &d.Base
	case Pub:
		p := socket.NewPub(ctx.core, tid, sid)
		s.base = &p.Base
	case Sub:
		p := socket.NewSub(ctx.core, tid, sid)
		s.base = &p.Base
	case XPub:
		p := socket.NewXPub(ctx.core, tid, sid)
		s.base = &p.Base
	case XSub:
		p := socket.NewXSub(ctx.core, tid, sid)
		s.base = &p.Base
	}

	s.base.SetOptions(s.socketOpts())
	if len(opts.RoutingID) > 0 {
		s.base.SetSockoptBytes("ROUTING_ID", opts.RoutingID)
	}
	if s.router != nil {
		if opts.Mandatory {
			s.router.SetSockoptInt("ROUTER_MANDATORY", 1)
		}
		if opts.Handover {
			s.router.SetSockoptInt("ROUTER_HANDOVER", 1)
		}
		if opts.ProbeRouter {
			s.router.SetSockoptInt("PROBE_ROUTER", 1)
		}
		if opts.RawSocket {
			s.router.SetSockoptInt("ROUTER_RAW", 1)
		}
		if opts.ConnectRoutingID != "" {
			s.router.SetConnectRoutingID(opts.ConnectRoutingID)
		}
	}

	ctx.metrics.SocketsLive.Inc()
	return s
}

func (s *Socket) socketOpts() socket.Options {
	return socket.Options{
		SndHWM:        s.opts.SndHWM,
		RcvHWM:        s.opts.RcvHWM,
		RoutingID:     s.opts.RoutingID,
		Immediate:     s.opts.Immediate,
		RecvRoutingID: s.opts.RecvRoutingID,
		RawSocket:     s.opts.RawSocket,
	}
}

func (s *Socket) maxMsgSize() uint64 {
	m := s.ctx.core.Options().MaxMsgSize
	if m <= 0 {
		return 0
	}
	return uint64(m)
}

// LastEndpoint returns the most recently bound/connected address, following
// ZMQ_LAST_ENDPOINT's convention of reporting the resolved address (e.g. the
// actual ephemeral port a "tcp://*:0" bind picked).
func (s *Socket) LastEndpoint() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastEndpoint
}

// Bind opens addr for incoming connections (tcp/ipc) or registers it in the
// context's inproc endpoint table.
func (s *Socket) Bind(addr string) error {
	ep, err := parseEndpoint(addr)
	if err != nil {
		return err
	}
	switch ep.scheme {
	case schemeInproc:
		return s.bindInproc(ep.address, addr)
	case schemeIPC:
		return s.bindIPC(ep.address, addr)
	case schemeTCP:
		return s.bindTCP(ep.address, addr)
	default:
		return newError(ErrCodeInvalidArgument, "unknown endpoint scheme", nil)
	}
}

// Connect dials addr (tcp/ipc, with background reconnect) or attaches to an
// already- or not-yet-bound inproc endpoint.
func (s *Socket) Connect(addr string) error {
	ep, err := parseEndpoint(addr)
	if err != nil {
		return err
	}
	switch ep.scheme {
	case schemeInproc:
		return s.connectInproc(ep.address, addr)
	case schemeIPC:
		return s.connectIPC(ep.address, addr)
	case schemeTCP:
		return s.connectTCP(ep.address, addr)
	default:
		return newError(ErrCodeInvalidArgument, "unknown endpoint scheme", nil)
	}
}

// bindInproc registers this socket under addr and resolves any connects
// that arrived before the bind (ZMTP's pend_connection/
// find_endpoint dance).
func (s *Socket) bindInproc(addr, full string) error {
	ep := ctxcore.Endpoint{
		Socket: s.base,
		Options: ctxcore.EndpointOptions{
			SndHWM:        s.opts.SndHWM,
			RcvHWM:        s.opts.RcvHWM,
			RecvRoutingID: s.opts.RecvRoutingID,
		},
	}
	if err := s.ctx.core.RegisterEndpoint(addr, ep); err != nil {
		return mapSocketErr("bind "+full, err)
	}

	for _, pend := range s.ctx.core.ConnectPending(addr) {
		pend.BindPipe.SetHWM(s.opts.RcvHWM, pend.Endpoint.Options.SndHWM)
		s.base.AttachPipe(pend.BindPipe, false, false)
	}

	s.mu.Lock()
	s.lastEndpoint = full
	s.mu.Unlock()
	return nil
}

// connectInproc attaches immediately to an already-bound peer, or queues
// itself in the context's pending-connection table for a future bindInproc
// to resolve.
func (s *Socket) connectInproc(addr, full string) error {
	connEP := ctxcore.Endpoint{
		Socket: s.base,
		Options: ctxcore.EndpointOptions{
			SndHWM:        s.opts.SndHWM,
			RcvHWM:        s.opts.RcvHWM,
			RecvRoutingID: s.opts.RecvRoutingID,
		},
	}

	if ep, ok := s.ctx.core.FindEndpoint(addr); ok {
		hwms := [2]int{s.opts.RcvHWM, ep.Options.RcvHWM}
		connectPipe, bindPipe := pipe.Pair(hwms, [2]bool{false, false})
		s.base.AttachPipe(connectPipe, false, true)
		if bindSock, ok := ep.Socket.(*socket.Base); ok {
			bindSock.AttachPipe(bindPipe, false, false)
		}
		s.mu.Lock()
		s.lastEndpoint = full
		s.mu.Unlock()
		return nil
	}

	hwms := [2]int{s.opts.RcvHWM, s.opts.RcvHWM}
	connectPipe, bindPipe := pipe.Pair(hwms, [2]bool{false, false})
	s.base.AttachPipe(connectPipe, false, true)

	if ep, ok := s.ctx.core.PendConnection(addr, connEP, bindPipe, connectPipe); ok {
		if bindSock, ok := ep.Socket.(*socket.Base); ok {
			bindSock.AttachPipe(bindPipe, false, false)
		}
	}

	s.mu.Lock()
	s.lastEndpoint = full
	s.mu.Unlock()
	return nil
}

func (s *Socket) bindTCP(addr, full string) error { return s.listen("tcp", "tcp", addr, full) }
func (s *Socket) bindIPC(addr, full string) error { return s.listen("unix", "ipc", addr, full) }

func (s *Socket) listen(network, scheme, addr, full string) error {
	ioThread := s.ctx.core.ChooseIOThread(0)
	if ioThread == nil {
		return newError(ErrCodeNoIOThread, "bind "+full, nil)
	}
	hs := transport.HandshakeInfo{SocketType: s.typ.wireName(), RoutingID: s.opts.RoutingID}
	ln, err := transport.Listen(network, addr, scheme, ioThread, s.base, s.socketOpts(), hs, s.maxMsgSize(), s.onPeer, s.ctx.nextSessionTid)
	if err != nil {
		return newError(ErrCodeInvalidArgument, "bind "+full, err)
	}
	go ln.Serve()

	s.mu.Lock()
	s.listeners[full] = ln
	s.lastEndpoint = scheme + "://" + ln.Addr().String()
	s.mu.Unlock()
	return nil
}

func (s *Socket) connectTCP(addr, full string) error { return s.dial("tcp", addr, full) }
func (s *Socket) connectIPC(addr, full string) error { return s.dial("unix", addr, full) }

func (s *Socket) dial(network, addr, full string) error {
	ioThread := s.ctx.core.ChooseIOThread(0)
	if ioThread == nil {
		return newError(ErrCodeNoIOThread, "connect "+full, nil)
	}
	hs := transport.HandshakeInfo{SocketType: s.typ.wireName(), RoutingID: s.opts.RoutingID}
	policy := transport.ReconnectPolicy{IVL: s.opts.ReconnectIVL, Max: s.opts.ReconnectIVLMax}

	var c *transport.Connecter
	onRedial := func() { s.ctx.metrics.ReconnectsTotal.Inc() }
	if network == "unix" {
		c = transport.NewIPCConnecter(addr, full, ioThread, s.base, s.socketOpts(), hs, s.maxMsgSize(), policy, s.onPeer, onRedial)
	} else {
		c = transport.NewConnecter(network, addr, full, ioThread, s.base, s.socketOpts(), hs, s.maxMsgSize(), policy, s.onPeer, onRedial)
	}
	c.Start(s.ctx.nextSessionTid())

	s.mu.Lock()
	s.connecters[full] = c
	s.lastEndpoint = full
	s.mu.Unlock()
	return nil
}

func (s *Socket) onPeer(p transport.Peer) {
	select {
	case s.Notify <- Event{Kind: EventConnected, RoutingID: p.RoutingID}:
	default:
	}
}

// blockingRetry polls fn until it stops returning socket.ErrAgain, honoring
// timeout's RCVTIMEO/SNDTIMEO semantics (negative: block forever, zero:
// never block, positive: block up to timeout).
func blockingRetry(timeout time.Duration, fn func() error) error {
	err := fn()
	if err != socket.ErrAgain {
		return err
	}
	if timeout == 0 {
		return err
	}

	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	wait := time.Millisecond
	for {
		if timeout > 0 && time.Now().After(deadline) {
			return socket.ErrAgain
		}
		time.Sleep(wait)
		if wait < 10*time.Millisecond {
			wait *= 2
		}
		err = fn()
		if err != socket.ErrAgain {
			return err
		}
	}
}

// Send transmits a single-part message, blocking per Options.SendTimeout.
func (s *Socket) Send(data []byte, more bool) error {
	m := message.InitBuffer(data)
	if more {
		m.SetFlags(message.FlagMore)
	}
	err := blockingRetry(s.opts.SendTimeout, func() error { return s.base.Send(&m) })
	if err != nil {
		return mapSocketErr("send", err)
	}
	s.ctx.metrics.MessagesSent.Inc()
	return nil
}

// SendMultipart sends every part of parts as a single logical message, the
// last part without FlagMore.
func (s *Socket) SendMultipart(parts [][]byte) error {
	for i, p := range parts {
		if err := s.Send(p, i < len(parts)-1); err != nil {
			return err
		}
	}
	return nil
}

// Recv reads a single message part, blocking per Options.RecvTimeout.
// more reports whether further parts of the same logical message follow.
func (s *Socket) Recv() (data []byte, more bool, err error) {
	var m message.Msg
	rerr := blockingRetry(s.opts.RecvTimeout, func() error { return s.base.Recv(&m) })
	if rerr != nil {
		return nil, false, mapSocketErr("recv", rerr)
	}
	s.ctx.metrics.MessagesRecv.Inc()
	out := append([]byte(nil), m.Data()...)
	return out, m.More(), nil
}

// RecvMultipart reads every part of the next logical message.
func (s *Socket) RecvMultipart() ([][]byte, error) {
	var parts [][]byte
	for {
		data, more, err := s.Recv()
		if err != nil {
			return nil, err
		}
		parts = append(parts, data)
		if !more {
			return parts, nil
		}
	}
}

// Subscribe adds key to a SUB/XSUB socket's subscription set, using the
// leading-byte send convention (0x01 prefix) internal/socket's xsubCore
// expects.
func (s *Socket) Subscribe(key []byte) error {
	return s.sendSubscription(0x01, key)
}

// Unsubscribe removes key from a SUB/XSUB socket's subscription set.
func (s *Socket) Unsubscribe(key []byte) error {
	return s.sendSubscription(0x00, key)
}

func (s *Socket) sendSubscription(marker byte, key []byte) error {
	if s.typ != Sub && s.typ != XSub {
		return newError(ErrCodeInvalidArgument, "subscribe: not a SUB/XSUB socket", nil)
	}
	buf := make([]byte, len(key)+1)
	buf[0] = marker
	copy(buf[1:], key)
	m := message.InitBuffer(buf)
	if err := s.base.Send(&m); err != nil {
		return mapSocketErr("subscribe", err)
	}
	return nil
}

// SetSockoptInt sets an integer-valued option, dispatching common options
// (SNDHWM/RCVHWM/IMMEDIATE) and ROUTER-specific options through the
// underlying socket.Base/Router.
func (s *Socket) SetSockoptInt(option string, value int) error {
	if err := s.base.SetSockoptInt(option, value); err != nil {
		return mapSocketErr("setsockopt "+option, err)
	}
	return nil
}

// SetSockoptBytes sets a byte-slice-valued option (ROUTING_ID and friends).
func (s *Socket) SetSockoptBytes(option string, value []byte) error {
	if err := s.base.SetSockoptBytes(option, value); err != nil {
		return mapSocketErr("setsockopt "+option, err)
	}
	return nil
}

// Close tears down every listener and connecter this socket owns and stops
// the underlying socket.Base, draining/terminating its attached pipes.
func (s *Socket) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	listeners := s.listeners
	connecters := s.connecters
	s.listeners = nil
	s.connecters = nil
	s.mu.Unlock()

	for _, ln := range listeners {
		ln.Close()
	}
	for _, c := range connecters {
		c.Stop()
	}
	s.base.Stop()
	s.ctx.core.UnregisterEndpoints(s.base)
	s.ctx.core.DestroySocket(s.base)

	s.ctx.metrics.SocketsLive.Dec()
	s.ctx.metrics.SocketsReaped.Inc()
	return nil
}
