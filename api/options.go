// api/options.go
//
// Per-socket Options and the process-wide Config, grounded on
// internal/socket.Options/internal/ctxcore.Options and control.Config.

package api

import "time"

// Options is the public per-socket option surface (ZMTP's
// setsockopt/getsockopt), translated to internal/socket.Options and, for
// tcp/ipc connecters, internal/transport.ReconnectPolicy at Bind/Connect
// time.
type Options struct {
	SndHWM        int
	RcvHWM        int
	RoutingID     []byte
	Immediate     bool
	RecvRoutingID bool
	RawSocket     bool

	// RecvTimeout/SendTimeout follow RCVTIMEO/SNDTIMEO semantics: 0 means
	// never block, a positive duration blocks up to that long, and a
	// negative duration blocks indefinitely (the default, matching
	// options_t's blocky=true).
	RecvTimeout time.Duration
	SendTimeout time.Duration

	ReconnectIVL    time.Duration
	ReconnectIVLMax time.Duration

	// Router-only; ignored by other socket types.
	Mandatory    bool
	Handover     bool
	ProbeRouter  bool
	ConnectRoutingID string
}

// DefaultOptions mirrors options_t's compiled-in per-socket defaults.
func DefaultOptions() Options {
	return Options{
		SndHWM:          1000,
		RcvHWM:          1000,
		RecvTimeout:     -1,
		SendTimeout:     -1,
		ReconnectIVL:    100 * time.Millisecond,
		ReconnectIVLMax: 30 * time.Second,
	}
}

// Config is the process-wide tunable surface read at Context construction,
// re-exported from control.Config so api callers never need to import
// control directly just to build one.
type Config struct {
	IOThreads       int
	MaxSockets      int
	SndHWM          int
	RcvHWM          int
	Linger          time.Duration
	ReconnectIVL    time.Duration
	ReconnectIVLMax time.Duration
	HandshakeIVL    time.Duration
}

// DefaultConfig mirrors ctx_t's compiled-in defaults.
func DefaultConfig() Config {
	return Config{
		IOThreads:       1,
		MaxSockets:      1024,
		SndHWM:          1000,
		RcvHWM:          1000,
		Linger:          30 * time.Second,
		ReconnectIVL:    100 * time.Millisecond,
		ReconnectIVLMax: 30 * time.Second,
		HandshakeIVL:    30 * time.Second,
	}
}
