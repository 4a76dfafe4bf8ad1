// Package session implements session_base_t: the object sitting between a
// socket's pipe and the protocol engine that drives one transport
// connection. It owns the pipe's lifecycle (attach, flush, rollback,
// linger-aware termination) and reacts to engine handshake completion and
// engine failure, choosing to reconnect, drain, or terminate per
// ZMTP's session_base.cpp.
package session
