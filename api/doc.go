// Package api is ServerLink's public surface: Context, Socket, Options, and
// the structured Error type, wrapping internal/ctxcore, internal/socket, and
// internal/transport behind the C-ABI-shaped operations ZMTP describes
// (ctx_new/socket/bind/connect/send/recv/setsockopt/poll), minus the thin C
// calling convention itself (ZMTP places the C ABI out of scope; this
// package is ServerLink's native Go equivalent of it).
package api
