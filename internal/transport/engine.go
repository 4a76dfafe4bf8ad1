package transport

import (
	"errors"
	"net"
	"sync"
	"time"

	"github.com/ulala-x/serverlink/internal/iothread"
	"github.com/ulala-x/serverlink/internal/message"
	"github.com/ulala-x/serverlink/internal/session"
	"github.com/ulala-x/serverlink/internal/wire"
)

// HandshakeInfo carries the socket-level identity a session's engine
// exchanges during the ZMTP READY command, mirroring what
// stream_engine_base_t::process_handshake_command reads off options_t.
type HandshakeInfo struct {
	SocketType string
	RoutingID  []byte
}

// Peer is the handshake result the socket layer needs once READY has been
// exchanged: the remote's declared socket type and routing-id, used by
// ROUTER/DEALER's identify_peer (ZMTP).
type Peer struct {
	SocketType string
	RoutingID  []byte
}

var (
	errEngineClosed = errors.New("transport: engine closed")
)

// Engine implements session.Engine over a plain net.Conn (tcp or ipc),
// driving the ZMTP 3.x greeting, the READY handshake, and the steady-state
// frame read/write loop. Grounded on
// ZMTP's stream_engine_base.cpp, adapted to two
// goroutines (reader/writer) instead of epoll-driven in_event/out_event
// callbacks — see doc.go's package comment for why.
type Engine struct {
	conn     net.Conn
	endpoint string
	local    HandshakeInfo
	maxMsg   uint64

	mu       sync.Mutex
	sess     *session.Base
	ioThread *iothread.IOThread
	peer     Peer
	ready    bool
	closed   bool

	outWake chan struct{}
	inWake  chan struct{}
	stopCh  chan struct{}
	doneCh  chan struct{}

	onHandshake func(Peer)
}

// NewEngine constructs an engine for an already-connected conn. endpoint is
// the resolved "tcp://host:port" or "ipc://path" string reported back to
// the session. onHandshake, if non-nil, is called once READY has been
// received from the peer (used by ROUTER to run identify_peer).
func NewEngine(conn net.Conn, endpoint string, local HandshakeInfo, maxMsgSize uint64, onHandshake func(Peer)) *Engine {
	return &Engine{
		conn:        conn,
		endpoint:    endpoint,
		local:       local,
		maxMsg:      maxMsgSize,
		outWake:     make(chan struct{}, 1),
		inWake:      make(chan struct{}, 1),
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
		onHandshake: onHandshake,
	}
}

// Done returns a channel closed once the engine's handshake/read/write
// loops have fully exited (connection closed, locally or by the peer).
// internal/transport's Connecter watches this to decide when to redial.
func (e *Engine) Done() <-chan struct{} { return e.doneCh }

// HasHandshakeStage always returns true: this engine always performs the
// ZMTP greeting/READY exchange before the session may build its pipe.
func (e *Engine) HasHandshakeStage() bool { return true }

func (e *Engine) Endpoint() string { return e.endpoint }

// Plug stores the owning io-thread/session and launches the handshake plus
// the steady-state read/write loops.
func (e *Engine) Plug(ioThread *iothread.IOThread, sess *session.Base) {
	e.mu.Lock()
	e.ioThread = ioThread
	e.sess = sess
	e.mu.Unlock()

	go e.run()
}

// Terminate closes the underlying connection exactly once, unblocking both
// the reader and writer goroutines.
func (e *Engine) Terminate() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.mu.Unlock()

	close(e.stopCh)
	_ = e.conn.Close()
}

// RestartOutput wakes the writer loop after the session's pipe gained
// readable data (pipe.EventSink's ReadActivated, forwarded by
// session.Base).
func (e *Engine) RestartOutput() {
	select {
	case e.outWake <- struct{}{}:
	default:
	}
}

// RestartInput wakes the reader loop after the session's pipe regained
// write capacity (WriteActivated).
func (e *Engine) RestartInput() {
	select {
	case e.inWake <- struct{}{}:
	default:
	}
}

func (e *Engine) fail(reason session.ErrorReason) {
	e.mu.Lock()
	sess := e.sess
	e.mu.Unlock()
	if sess != nil {
		sess.EngineError(reason)
	}
}

// run performs the greeting/READY handshake and, on success, drives the
// read and write loops until either fails or Terminate is called.
func (e *Engine) run() {
	defer close(e.doneCh)

	if err := e.handshake(); err != nil {
		e.fail(classifyHandshakeErr(err))
		return
	}

	e.mu.Lock()
	e.ready = true
	sess := e.sess
	e.mu.Unlock()
	sess.EngineReady()

	done := make(chan struct{})
	go func() {
		e.writeLoop()
		close(done)
	}()
	e.readLoop()
	<-done
}

func classifyHandshakeErr(err error) session.ErrorReason {
	if errors.Is(err, errEngineClosed) {
		return session.ErrorConnection
	}
	if _, ok := err.(net.Error); ok {
		return session.ErrorConnection
	}
	return session.ErrorProtocol
}

// handshake writes this side's greeting and READY command, then reads and
// validates the peer's, per ZMTP's handshake.
func (e *Engine) handshake() error {
	greeting := wire.EncodeGreeting(wire.Greeting{VersionMajor: 3, VersionMinor: 0, Mechanism: wire.MechanismNull})
	ready := wire.EncodeFrame(wire.EncodeCommand(wire.CmdReady, wire.EncodeReadyProperties(map[string]string{
		"Socket-Type": e.local.SocketType,
		"Identity":    string(e.local.RoutingID),
	})), false, true)

	writeErrCh := make(chan error, 1)
	go func() {
		if _, err := e.conn.Write(greeting[:]); err != nil {
			writeErrCh <- err
			return
		}
		_, err := e.conn.Write(ready)
		writeErrCh <- err
	}()

	gd := &wire.GreetingDecoder{}
	buf := make([]byte, wire.GreetingLen)
	for {
		n, err := e.conn.Read(buf)
		if err != nil {
			return err
		}
		_, g, err := gd.Feed(buf[:n])
		if err != nil {
			return err
		}
		if g != nil {
			if g.VersionMajor != 3 {
				return wire.ErrBadVersion
			}
			break
		}
	}

	fd := wire.NewFrameDecoder(e.maxMsg)
	for {
		n, err := e.conn.Read(buf)
		if err != nil {
			return err
		}
		data := buf[:n]
		for len(data) > 0 {
			consumed, frame, ferr := fd.Feed(data)
			data = data[consumed:]
			if ferr != nil {
				return ferr
			}
			if frame == nil {
				continue
			}
			if !frame.IsCommand() {
				continue // stray data frame before READY, ignore
			}
			name, body, derr := wire.DecodeCommand(frame.Payload)
			if derr != nil {
				return derr
			}
			if name != wire.CmdReady {
				continue
			}
			props, perr := wire.DecodeReadyProperties(body)
			if perr != nil {
				return perr
			}
			peer := Peer{SocketType: props["Socket-Type"], RoutingID: []byte(props["Identity"])}
			e.mu.Lock()
			e.peer = peer
			e.mu.Unlock()
			if e.onHandshake != nil {
				e.onHandshake(peer)
			}
			return <-writeErrCh
		}
	}
}

// readLoop decodes frames off the wire, reassembles multi-part messages,
// and pushes them into the session's pipe; if the pipe is full it parks
// until RestartInput wakes it, matching session_base_t's backpressure
// contract (ZMTP/§5).
func (e *Engine) readLoop() {
	fd := wire.NewFrameDecoder(e.maxMsg)
	buf := make([]byte, 8192)
	for {
		n, err := e.conn.Read(buf)
		if err != nil {
			e.fail(session.ErrorConnection)
			return
		}
		data := buf[:n]
		for len(data) > 0 {
			consumed, frame, ferr := fd.Feed(data)
			data = data[consumed:]
			if ferr != nil {
				e.fail(session.ErrorProtocol)
				return
			}
			if frame == nil {
				continue
			}
			if err := e.deliver(frame); err != nil {
				e.fail(session.ErrorProtocol)
				return
			}
		}
	}
}

// deliver turns one decoded wire frame into a message.Msg and pushes it to
// the session, retrying against RestartInput if the pipe is momentarily
// full (ErrAgain), and dropping ZMTP commands other than PING/PONG, which
// are answered inline.
func (e *Engine) deliver(f *wire.Frame) error {
	if f.IsCommand() {
		return e.handleCommand(f.Payload)
	}

	m := message.InitBuffer(f.Payload)
	if f.More() {
		m.SetFlags(message.FlagMore)
	}

	e.mu.Lock()
	sess := e.sess
	e.mu.Unlock()

	for {
		err := sess.PushMsg(&m)
		if err == nil {
			sess.Flush()
			return nil
		}
		if !errors.Is(err, session.ErrAgain) {
			return err
		}
		select {
		case <-e.inWake:
		case <-e.stopCh:
			return errEngineClosed
		}
	}
}

func (e *Engine) handleCommand(payload []byte) error {
	name, body, err := wire.DecodeCommand(payload)
	if err != nil {
		return err
	}
	switch name {
	case wire.CmdPing:
		pong := wire.EncodeFrame(wire.EncodeCommand(wire.CmdPong, body), false, true)
		_, err := e.conn.Write(pong)
		return err
	case wire.CmdPong:
		return nil
	default:
		return nil
	}
}

// writeLoop pulls outbound messages from the session's pipe and encodes
// them onto the wire, parking on RestartOutput when the pipe runs dry.
func (e *Engine) writeLoop() {
	e.mu.Lock()
	sess := e.sess
	e.mu.Unlock()

	for {
		m, err := sess.PullMsg()
		if err != nil {
			if !errors.Is(err, session.ErrAgain) {
				return
			}
			select {
			case <-e.outWake:
				continue
			case <-time.After(200 * time.Millisecond):
				continue
			case <-e.stopCh:
				return
			}
		}

		frame := wire.EncodeFrame(m.Data(), m.More(), m.IsCommand())
		m.Close()
		if _, err := e.conn.Write(frame); err != nil {
			e.fail(session.ErrorConnection)
			return
		}
	}
}

var _ session.Engine = (*Engine)(nil)
