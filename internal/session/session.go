package session

import (
	"errors"
	"sync"
	"time"

	"github.com/ulala-x/serverlink/internal/iothread"
	"github.com/ulala-x/serverlink/internal/message"
	"github.com/ulala-x/serverlink/internal/objectx"
	"github.com/ulala-x/serverlink/internal/pipe"
	"github.com/ulala-x/serverlink/internal/socket"
)

var ErrAgain = errors.New("session: resource temporarily unavailable")

// ErrorReason classifies why an engine reported failure, mirroring
// i_engine::error_reason_t.
type ErrorReason int

const (
	ErrorConnection ErrorReason = iota
	ErrorTimeout
	ErrorProtocol
)

// Engine is the protocol I/O engine plugged into a session once its
// transport connection is accepted or established (the ZMTP engine built
// on internal/wire, eventually).
type Engine interface {
	// Plug hands the engine its io-thread and the session driving it.
	Plug(ioThread *iothread.IOThread, sess *Base)
	// Terminate tears the engine down; called once by the session, never
	// by the engine itself.
	Terminate()
	// RestartInput/RestartOutput resume a side the engine had paused
	// because its pipe ran dry or hit its high-water mark.
	RestartInput()
	RestartOutput()
	// HasHandshakeStage reports whether the engine still needs to
	// complete a handshake before the session may create its pipe; a
	// raw/stream engine has none.
	HasHandshakeStage() bool
	Endpoint() string
}

const lingerTimerID = 0x20

// Base is session_base_t: the bridge between a socket's local pipe end
// and whatever engine drives its transport connection. Exactly one Base
// exists per live connection attempt, created either by an active
// connecter (reconnecting) or a passive listener (transient).
type Base struct {
	*objectx.Own

	mu sync.Mutex

	active   bool
	sock     *socket.Base
	opts     socket.Options
	ioThread *iothread.IOThread
	addr     string

	p                *pipe.Pipe
	terminatingPipes map[*pipe.Pipe]struct{}
	incompleteIn     bool
	pending          bool
	hasLingerTimer   bool

	engine Engine
	props  *Properties
}

var (
	_ pipe.EventSink      = (*Base)(nil)
	_ iothread.PollEvents = (*Base)(nil)
)

// New constructs a session for sock. active is true for sessions that
// (re)connect to a peer; false for transient sessions a listener spawns
// per accepted connection.
func New(tid uint32, ioThread *iothread.IOThread, active bool, sock *socket.Base, opts socket.Options, addr string) *Base {
	return &Base{
		Own:              objectx.NewOwn(tid, nil, nil),
		active:           active,
		sock:             sock,
		opts:             opts,
		ioThread:         ioThread,
		addr:             addr,
		terminatingPipes: make(map[*pipe.Pipe]struct{}),
		props:            NewProperties(),
	}
}

// Properties returns the READY handshake metadata negotiated (or still
// being negotiated) with this session's peer.
func (s *Base) Properties() *Properties { return s.props }

// Endpoint returns the engine's resolved endpoint, once attached.
func (s *Base) Endpoint() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.engine == nil {
		return s.addr
	}
	return s.engine.Endpoint()
}

// Socket returns the socket this session belongs to.
func (s *Base) Socket() *socket.Base { return s.sock }

// AttachPipe wires the session's own local pipe end; used once, either
// by process_attach's delayed pipe creation (active session) or by a
// listener handing over an already-built pair (transient session).
func (s *Base) AttachPipe(p *pipe.Pipe) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.p = p
	p.SetEventSink(s)
}

// PullMsg fetches the next outbound message for the engine to write to
// the wire. Returns ErrAgain if the pipe has nothing ready.
func (s *Base) PullMsg() (message.Msg, error) {
	s.mu.Lock()
	p := s.p
	s.mu.Unlock()
	if p == nil {
		return message.Msg{}, ErrAgain
	}
	m, ok := p.Read()
	if !ok {
		return message.Msg{}, ErrAgain
	}
	s.mu.Lock()
	s.incompleteIn = m.More()
	s.mu.Unlock()
	return m, nil
}

// PushMsg delivers a message the engine has just decoded off the wire.
// The socket-facing SUBSCRIBE/CANCEL filtering session_base_t's push_msg
// performs lives inside internal/socket's PUB/SUB trie instead — those
// frames still travel through the pipe like any other message here.
func (s *Base) PushMsg(m *message.Msg) error {
	s.mu.Lock()
	p := s.p
	s.mu.Unlock()
	if p != nil && p.Write(m) {
		*m = message.Init()
		return nil
	}
	return ErrAgain
}

// Flush commits any writes PushMsg has buffered on the pipe.
func (s *Base) Flush() {
	s.mu.Lock()
	p := s.p
	s.mu.Unlock()
	if p != nil {
		p.Flush()
	}
}

// Rollback discards writes buffered since the last Flush, used when the
// engine must back out a partially-written multi-part message.
func (s *Base) Rollback() {
	s.mu.Lock()
	p := s.p
	s.mu.Unlock()
	if p != nil {
		p.Rollback()
	}
}

// cleanPipes drops half-processed messages left over from a dead engine:
// rolls back unflushed writes, flushes whatever was already committed,
// and drains any half-read incoming message.
func (s *Base) cleanPipes() {
	s.mu.Lock()
	p := s.p
	s.mu.Unlock()
	if p == nil {
		return
	}
	p.Rollback()
	p.Flush()
	for {
		s.mu.Lock()
		incomplete := s.incompleteIn
		s.mu.Unlock()
		if !incomplete {
			break
		}
		m, err := s.PullMsg()
		if err != nil {
			break
		}
		m.Close()
	}
}

// ProcessAttach plugs engine into this session, exactly once. A raw/
// stream engine with no handshake stage is considered ready immediately;
// a handshaking engine calls EngineReady itself once its handshake
// completes.
func (s *Base) ProcessAttach(engine Engine) {
	s.mu.Lock()
	s.engine = engine
	s.mu.Unlock()

	if !engine.HasHandshakeStage() {
		s.EngineReady()
	}
	engine.Plug(s.ioThread, s)
}

// EngineReady builds the session's own pipe pair on first call, wiring
// the local end to this session and handing the remote end to the socket
// via socket.Base.AttachPipe.
func (s *Base) EngineReady() {
	s.mu.Lock()
	if s.p != nil || s.Own.Terminating() {
		s.mu.Unlock()
		return
	}
	hwms := [2]int{s.opts.RcvHWM, s.opts.SndHWM}
	local, remote := pipe.Pair(hwms, [2]bool{false, false})
	local.SetEventSink(s)
	local.CheckRead()
	s.p = local
	s.mu.Unlock()

	s.sock.AttachPipe(remote, false, s.active)
}

// EngineError is called once by a dying engine; it decides whether this
// session reconnects, drains pending writes before terminating, or
// terminates immediately, mirroring session_base_t::engine_error's
// reason-driven branching.
func (s *Base) EngineError(reason ErrorReason) {
	s.mu.Lock()
	s.engine = nil
	hasPipe := s.p != nil
	s.mu.Unlock()

	if hasPipe {
		s.cleanPipes()
	}

	switch reason {
	case ErrorConnection, ErrorTimeout:
		if s.active {
			s.reconnect()
			break
		}
		fallthrough
	case ErrorProtocol:
		s.mu.Lock()
		pending := s.pending
		p := s.p
		s.mu.Unlock()
		if pending {
			if p != nil {
				p.Terminate(false)
			}
		} else {
			s.Own.Terminate(0)
		}
	}

	s.mu.Lock()
	p := s.p
	s.mu.Unlock()
	if p != nil {
		p.CheckRead()
	}
}

// reconnect tears down a hiccuping pipe (immediate-connect sockets only)
// and leaves actually reconnecting to whatever drives the transport's
// connecter; internal/session does not itself own a connecter.
func (s *Base) reconnect() {
	s.mu.Lock()
	if s.p != nil && s.opts.Immediate {
		p := s.p
		s.terminatingPipes[p] = struct{}{}
		s.p = nil
		if s.hasLingerTimer {
			s.ioThread.Timers().Cancel(s, lingerTimerID)
			s.hasLingerTimer = false
		}
		s.mu.Unlock()
		p.Hiccup()
		p.Terminate(false)
		return
	}
	s.mu.Unlock()
}

// ProcessTerm begins graceful shutdown: if linger is positive, a timer
// forces termination once it expires even with pending writes; if
// negative (infinite), the pipe drains at its own pace.
func (s *Base) ProcessTerm(linger time.Duration) {
	s.mu.Lock()
	if s.p == nil && len(s.terminatingPipes) == 0 {
		s.mu.Unlock()
		s.Own.Terminate(0)
		return
	}
	s.pending = true
	p := s.p
	engine := s.engine
	if p != nil && linger > 0 {
		s.hasLingerTimer = true
		s.ioThread.Timers().Add(linger, s, lingerTimerID)
	}
	s.mu.Unlock()

	if p != nil {
		p.Terminate(linger != 0)
		if engine == nil {
			p.CheckRead()
		}
	}
}

// TimerEvent implements iothread.PollEvents; only the linger timer ever
// fires here.
func (s *Base) TimerEvent(id int) {
	if id != lingerTimerID {
		return
	}
	s.mu.Lock()
	s.hasLingerTimer = false
	p := s.p
	s.mu.Unlock()
	if p != nil {
		p.Terminate(false)
	}
}

// InEvent/OutEvent satisfy iothread.PollEvents; a session is never
// registered against a file descriptor directly (its engine is), so
// these are unreachable no-ops.
func (s *Base) InEvent()  {}
func (s *Base) OutEvent() {}

// ReadActivated, WriteActivated, Hiccuped, and Terminated implement
// pipe.EventSink; Terminated forwards to PipeTerminated.
func (s *Base) ReadActivated(p *pipe.Pipe) {
	s.mu.Lock()
	current := s.p
	engine := s.engine
	s.mu.Unlock()

	if p != current {
		return
	}
	if engine == nil {
		p.CheckRead()
		return
	}
	engine.RestartOutput()
}

func (s *Base) WriteActivated(p *pipe.Pipe) {
	s.mu.Lock()
	current := s.p
	engine := s.engine
	s.mu.Unlock()

	if p != current {
		return
	}
	if engine != nil {
		engine.RestartInput()
	}
}

// Hiccuped is never called on a session: hiccups only ever travel from
// session to socket, never the other way, matching
// session_base_t::hiccuped's assertion.
func (s *Base) Hiccuped(*pipe.Pipe) {
	panic("session: hiccuped called on session pipe, expected socket-direction only")
}

func (s *Base) Terminated(p *pipe.Pipe) { s.PipeTerminated(p) }

func (s *Base) PipeTerminated(p *pipe.Pipe) {
	s.mu.Lock()
	if p == s.p {
		s.p = nil
		if s.hasLingerTimer {
			s.ioThread.Timers().Cancel(s, lingerTimerID)
			s.hasLingerTimer = false
		}
	} else {
		delete(s.terminatingPipes, p)
	}
	drained := s.pending && s.p == nil && len(s.terminatingPipes) == 0
	if drained {
		s.pending = false
	}
	s.mu.Unlock()

	if drained {
		s.Own.Terminate(0)
	}
}
