// api/context.go
//
// Context is the process-level root: it owns internal/ctxcore's slot table
// and endpoint registry, the control.ConfigStore/MetricsRegistry pair, and
// every Socket built from it, per ZMTP ("Context")
// ("Context terminate sequence").

package api

import (
	"sync"
	"sync/atomic"

	"github.com/ulala-x/serverlink/control"
	"github.com/ulala-x/serverlink/internal/ctxcore"
)

// Context is the top-level handle a process creates once and shares across
// every Socket it opens.
type Context struct {
	core    *ctxcore.Context
	cfgMu   sync.Mutex
	cfg     Config
	store   *control.ConfigStore
	metrics *control.MetricsRegistry
	debug   *control.DebugProbes

	sessionTid atomic.Uint32
}

// NewContext constructs a Context from cfg. The io-thread pool and reaper
// start lazily on the first NewSocket call, matching ctx_t's "_starting"
// deferred init (ZMTP).
func NewContext(cfg Config) *Context {
	store := control.NewConfigStore()
	store.SetConfig(control.Config{
		IOThreads:       cfg.IOThreads,
		MaxSockets:      cfg.MaxSockets,
		SndHWM:          cfg.SndHWM,
		RcvHWM:          cfg.RcvHWM,
		Linger:          cfg.Linger,
		ReconnectIVL:    cfg.ReconnectIVL,
		ReconnectIVLMax: cfg.ReconnectIVLMax,
		HandshakeIVL:    cfg.HandshakeIVL,
	})

	debug := control.NewDebugProbes()
	control.RegisterPlatformProbes(debug)

	c := &Context{
		cfg:     cfg,
		store:   store,
		metrics: control.NewMetricsRegistry(),
		debug:   debug,
		core: ctxcore.New(ctxcore.Options{
			MaxSockets: cfg.MaxSockets,
			IOThreads:  cfg.IOThreads,
			MaxMsgSize: -1,
		}),
	}
	c.sessionTid.Store(1 << 20) // keep accepted-connection tids out of ctxcore's slot range
	debug.RegisterProbe("sockets.max", func() any { return cfg.MaxSockets })
	debug.RegisterProbe("io_threads", func() any { return cfg.IOThreads })
	return c
}

// NewContextFromFile loads Config from a TOML file at path, falling back to
// DefaultConfig for any field the file doesn't set (missing file is not an
// error, matching control.ConfigStore.LoadFile).
func NewContextFromFile(path string) (*Context, error) {
	store := control.NewConfigStore()
	if err := store.LoadFile(path); err != nil {
		return nil, newError(ErrCodeInvalidArgument, "loading config file", err)
	}
	fc := store.Config()
	c := NewContext(Config{
		IOThreads:       fc.IOThreads,
		MaxSockets:      fc.MaxSockets,
		SndHWM:          fc.SndHWM,
		RcvHWM:          fc.RcvHWM,
		Linger:          fc.Linger,
		ReconnectIVL:    fc.ReconnectIVL,
		ReconnectIVLMax: fc.ReconnectIVLMax,
		HandshakeIVL:    fc.HandshakeIVL,
	})
	c.store = store
	return c, nil
}

// Metrics exposes the context's prometheus registry, e.g. for mounting
// behind promhttp.HandlerFor on the embedding process's own HTTP mux.
func (c *Context) Metrics() *control.MetricsRegistry { return c.metrics }

// ConfigStore exposes the live, reloadable Config store.
func (c *Context) ConfigStore() *control.ConfigStore { return c.store }

// Debug exposes the context's probe registry, including the platform probes
// RegisterPlatformProbes attaches at construction (e.g. "platform.cpus") and
// any caller-registered ones, for DumpState-based introspection.
func (c *Context) Debug() *control.DebugProbes { return c.debug }

func (c *Context) nextSessionTid() uint32 { return c.sessionTid.Add(1) }

// SocketType enumerates the socket patterns ZMTP implements.
type SocketType int

const (
	Pair SocketType = iota
	Router
	Dealer
	Pub
	Sub
	XPub
	XSub
)

func (t SocketType) wireName() string {
	switch t {
	case Pair:
		return "PAIR"
	case Router:
		return "ROUTER"
	case Dealer:
		return "DEALER"
	case Pub:
		return "PUB"
	case Sub:
		return "SUB"
	case XPub:
		return "XPUB"
	case XSub:
		return "XSUB"
	default:
		return "UNKNOWN"
	}
}

// NewSocket allocates a context slot and constructs a socket of type t.
func (c *Context) NewSocket(t SocketType, opts Options) (*Socket, error) {
	tid, err := c.core.AllocateSlot()
	if err != nil {
		return nil, mapSocketErr("socket", err)
	}
	sid := ctxcore.NextSocketID()

	s := newSocket(c, t, tid, sid, opts)
	c.core.RegisterSocket(tid, s.base)
	return s, nil
}

// Shutdown begins termination without blocking: every open socket is told
// to stop, but Shutdown returns immediately.
func (c *Context) Shutdown() { c.core.Shutdown() }

// Terminate performs Shutdown and blocks until every socket has drained and
// every io-thread has stopped (ZMTP's terminate sequence).
func (c *Context) Terminate() { c.core.Terminate() }
