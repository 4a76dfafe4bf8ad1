package transport

import (
	"errors"
	"net"
	"sync"
	"time"

	"github.com/ulala-x/serverlink/internal/iothread"
	"github.com/ulala-x/serverlink/internal/session"
	"github.com/ulala-x/serverlink/internal/socket"
)

// errDialAborted is returned by Connecter.dial when Stop interrupts an
// in-flight dial before the worker pool's task completes.
var errDialAborted = errors.New("transport: dial aborted")

// ReconnectPolicy mirrors options_t's reconnect_ivl/reconnect_ivl_max pair:
// the connecter's first retry waits IVL, doubling on each subsequent
// failure up to Max (ZMTP "reconnect-IVL with exponential backoff,
// capped").
type ReconnectPolicy struct {
	IVL    time.Duration
	Max    time.Duration
}

// DefaultReconnectPolicy mirrors libzmq's 100ms/30s defaults.
func DefaultReconnectPolicy() ReconnectPolicy {
	return ReconnectPolicy{IVL: 100 * time.Millisecond, Max: 30 * time.Second}
}

// Connecter is the active side of a tcp/ipc connection: it dials,
// constructs a session + ZMTP engine on success, and redials with
// exponential backoff when the connection drops, matching
// ZMTP's {tcp_connecter.cpp,stream_connecter_base.cpp}.
type Connecter struct {
	network  string // "tcp" or "unix"
	addr     string // dial target (host:port or socket path)
	endpoint string // full scheme://address reported to the session

	ioThread  *iothread.IOThread
	sock      *socket.Base
	opts      socket.Options
	handshake HandshakeInfo
	maxMsg    uint64
	policy    ReconnectPolicy
	onPeer    func(Peer)
	onRedial  func()

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewConnecter constructs (but does not start) an active-side connecter.
// onRedial, if non-nil, is called before every dial attempt after the
// first — useful for a caller tracking reconnect counts (ZMTP's
// reconnect-IVL loop).
func NewConnecter(network, addr, endpoint string, ioThread *iothread.IOThread, sock *socket.Base, opts socket.Options, hs HandshakeInfo, maxMsg uint64, policy ReconnectPolicy, onPeer func(Peer), onRedial func()) *Connecter {
	return &Connecter{
		network:   network,
		addr:      addr,
		endpoint:  endpoint,
		ioThread:  ioThread,
		sock:      sock,
		opts:      opts,
		handshake: hs,
		maxMsg:    maxMsg,
		policy:    policy,
		onPeer:    onPeer,
		onRedial:  onRedial,
		stopCh:    make(chan struct{}),
	}
}

// Start builds the connecter's session and launches the background
// dial/redial loop. The socket receives its pipe once a connection
// completes its handshake (session.Base.EngineReady). Returns the session.
func (c *Connecter) Start(tid uint32) *session.Base {
	sess := session.New(tid, c.ioThread, true, c.sock, c.opts, c.endpoint)
	if c.sock.Own != nil {
		c.sock.Own.AddChild(sess.Own)
	}
	go c.loop(sess)
	return sess
}

// Stop aborts any in-progress dial/backoff wait; it does not itself close
// an already-established connection (ProcessTerm/the session's own
// teardown handles that — see watchTermination).
func (c *Connecter) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}

// dial offloads the blocking net.DialTimeout call onto the io-thread's
// WorkerPool rather than calling it inline, so a slow DNS lookup or a
// stalled remote accept queue does not tie up this connecter's own
// goroutine, and so dials from several connecters sharing one IOThread are
// bounded by the pool's fixed worker count instead of one goroutine per
// dial.
func (c *Connecter) dial() (net.Conn, error) {
	type result struct {
		conn net.Conn
		err  error
	}
	done := make(chan result, 1)
	if err := c.ioThread.Workers().Submit(func() {
		conn, err := net.DialTimeout(c.network, c.addr, 10*time.Second)
		done <- result{conn, err}
	}); err != nil {
		return nil, err
	}
	select {
	case r := <-done:
		return r.conn, r.err
	case <-c.stopCh:
		go func() {
			if r := <-done; r.conn != nil {
				r.conn.Close()
			}
		}()
		return nil, errDialAborted
	}
}

func (c *Connecter) loop(sess *session.Base) {
	ivl := c.policy.IVL
	first := true
	for {
		select {
		case <-c.stopCh:
			return
		default:
		}
		if sess.Own.Terminating() {
			return
		}

		if !first && c.onRedial != nil {
			c.onRedial()
		}
		first = false
		conn, err := c.dial()
		if err != nil {
			if !sleepOrStop(ivl, c.stopCh) {
				return
			}
			ivl *= 2
			if ivl > c.policy.Max {
				ivl = c.policy.Max
			}
			continue
		}
		ivl = c.policy.IVL

		eng := NewEngine(conn, c.endpoint, c.handshake, c.maxMsg, c.onPeer)
		sess.ProcessAttach(eng)
		stopWatch := watchTermination(sess, eng)

		select {
		case <-eng.Done():
		case <-c.stopCh:
			eng.Terminate()
			<-eng.Done()
		}
		close(stopWatch)

		if sess.Own.Terminating() {
			return
		}
	}
}

// watchTermination polls for the session beginning teardown and closes the
// engine's connection to unblock its read/write loops; session_base_t
// itself would drive this via process_term, but internal/session's
// ProcessTerm only drains pipes (see its doc comment), so the connecter
// supplies the "stop talking to this dead engine" trigger instead. Returns
// a channel the caller closes to stop the watcher once the engine is
// already done.
func watchTermination(sess *session.Base, eng *Engine) chan struct{} {
	stop := make(chan struct{})
	go func() {
		t := time.NewTicker(25 * time.Millisecond)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-eng.Done():
				return
			case <-t.C:
				if sess.Own.Terminating() {
					eng.Terminate()
					return
				}
			}
		}
	}()
	return stop
}

func sleepOrStop(d time.Duration, stop <-chan struct{}) bool {
	select {
	case <-time.After(d):
		return true
	case <-stop:
		return false
	}
}

// Listener is the passive side: it accepts connections and spawns one
// transient session + engine per peer, matching
// ZMTP's tcp_listener.cpp.
type Listener struct {
	ln       net.Listener
	scheme   string
	ioThread *iothread.IOThread
	sock     *socket.Base
	opts     socket.Options
	handshake HandshakeInfo
	maxMsg   uint64
	onPeer   func(Peer)
	nextTid  func() uint32

	mu      sync.Mutex
	closed  bool
}

// Listen opens network (tcp/unix) on addr and returns a Listener ready to
// Accept. scheme is the endpoint prefix ("tcp"/"ipc") used to build each
// accepted session's reported endpoint string.
func Listen(network, addr, scheme string, ioThread *iothread.IOThread, sock *socket.Base, opts socket.Options, hs HandshakeInfo, maxMsg uint64, onPeer func(Peer), nextTid func() uint32) (*Listener, error) {
	ln, err := net.Listen(network, addr)
	if err != nil {
		return nil, err
	}
	return &Listener{
		ln:        ln,
		scheme:    scheme,
		ioThread:  ioThread,
		sock:      sock,
		opts:      opts,
		handshake: hs,
		maxMsg:    maxMsg,
		onPeer:    onPeer,
		nextTid:   nextTid,
	}, nil
}

// Addr returns the listener's bound address (useful for "tcp://host:0"
// ephemeral-port binds).
func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

// Serve accepts connections until Close is called, spawning one session +
// engine per accepted peer.
func (l *Listener) Serve() {
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			return
		}
		endpoint := l.scheme + "://" + conn.RemoteAddr().String()
		sess := session.New(l.nextTid(), l.ioThread, false, l.sock, l.opts, endpoint)
		if l.sock.Own != nil {
			l.sock.Own.AddChild(sess.Own)
		}
		eng := NewEngine(conn, endpoint, l.handshake, l.maxMsg, l.onPeer)
		sess.ProcessAttach(eng)
		watchTermination(sess, eng)
	}
}

// Close stops accepting new connections; already-accepted sessions are
// unaffected.
func (l *Listener) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()
	return l.ln.Close()
}
