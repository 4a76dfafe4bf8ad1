// Package serverlink is a ZMTP 3.x messaging runtime: process Context,
// ROUTER/DEALER/PAIR/PUB/SUB/XPUB/XSUB sockets, and tcp/ipc/inproc
// transports, behind the api package's Go-native equivalent of libzmq's C
// ABI.
//
// This file is a thin convenience facade re-exporting api's types so a
// caller can import a single package:
//
//	ctx := serverlink.NewContext(serverlink.DefaultConfig())
//	defer ctx.Terminate()
//
//	sock, err := ctx.NewSocket(serverlink.Router, serverlink.DefaultOptions())
package serverlink

import "github.com/ulala-x/serverlink/api"

type (
	// Context is the process-level root; see api.Context.
	Context = api.Context
	// Socket is a single ZMTP endpoint; see api.Socket.
	Socket = api.Socket
	// SocketType selects a socket pattern; see api.SocketType.
	SocketType = api.SocketType
	// Options configures a single socket; see api.Options.
	Options = api.Options
	// Config configures a Context; see api.Config.
	Config = api.Config
	// Error is the structured error every operation returns on failure.
	Error = api.Error
	// ErrorCode enumerates the public error kinds.
	ErrorCode = api.ErrorCode
	// Event is a connect/disconnect notification from a Socket's Notify
	// channel.
	Event = api.Event
	// EventKind distinguishes Event's two variants.
	EventKind = api.EventKind
)

// Socket pattern constants, re-exported from api.
const (
	Pair   = api.Pair
	Router = api.Router
	Dealer = api.Dealer
	Pub    = api.Pub
	Sub    = api.Sub
	XPub   = api.XPub
	XSub   = api.XSub
)

// Error code constants, re-exported from api.
const (
	ErrCodeInvalidArgument = api.ErrCodeInvalidArgument
	ErrCodeOutOfMemory     = api.ErrCodeOutOfMemory
	ErrCodeAgain           = api.ErrCodeAgain
	ErrCodeNotASocket      = api.ErrCodeNotASocket
	ErrCodeProtocolError   = api.ErrCodeProtocolError
	ErrCodeTerminated      = api.ErrCodeTerminated
	ErrCodeNoIOThread      = api.ErrCodeNoIOThread
	ErrCodeHostUnreachable = api.ErrCodeHostUnreachable
	ErrCodeNotReady        = api.ErrCodeNotReady
	ErrCodeAuthFailed      = api.ErrCodeAuthFailed
)

// Error sentinels, re-exported from api for errors.Is comparisons.
var (
	ErrInvalidArgument = api.ErrInvalidArgument
	ErrOutOfMemory     = api.ErrOutOfMemory
	ErrAgain           = api.ErrAgain
	ErrNotASocket      = api.ErrNotASocket
	ErrProtocolError   = api.ErrProtocolError
	ErrTerminated      = api.ErrTerminated
	ErrNoIOThread      = api.ErrNoIOThread
	ErrHostUnreachable = api.ErrHostUnreachable
	ErrNotReady        = api.ErrNotReady
	ErrAuthFailed      = api.ErrAuthFailed
)

// NewContext constructs a Context from cfg.
func NewContext(cfg Config) *Context { return api.NewContext(cfg) }

// NewContextFromFile constructs a Context from a TOML config file.
func NewContextFromFile(path string) (*Context, error) { return api.NewContextFromFile(path) }

// DefaultConfig returns the compiled-in process-wide defaults.
func DefaultConfig() Config { return api.DefaultConfig() }

// DefaultOptions returns the compiled-in per-socket defaults.
func DefaultOptions() Options { return api.DefaultOptions() }
