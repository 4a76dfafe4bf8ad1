// Package transport implements the byte-stream connecter/listener pair for
// tcp and ipc (Unix-domain) endpoints, plus the ZMTP engine that drives the
// greeting/framing state machine over an accepted or dialed net.Conn.
// Grounded on ZMTP's {tcp_connecter.cpp,
// tcp_listener.cpp,ipc_connecter.cpp,ipc_listener.cpp,
// stream_connecter_base.cpp} and ZMTP
//
// ZMTP drives its connecters/listeners off the same readiness
// poller every other engine uses (epoll/kqueue fds registered with
// io_thread_t). This port instead gives every accepted or dialed
// connection its own pair of goroutines (one blocking reader loop, one
// writer loop triggered by RestartOutput) rather than threading net.Conn's
// file descriptor through internal/iothread's Poller: Go's net package
// does not expose a raw, poller-friendly fd without dropping into
// syscall.RawConn, and a goroutine-per-connection design is the idiomatic
// Go substitute for a readiness-multiplexed connection — every mainstream
// Go network library (net/http, database/sql drivers, grpc-go's
// transport streams) makes the same trade. internal/iothread.Poller and
// its epoll backend remain exercised by the io-thread's own mailbox/timer
// wakeups; see DESIGN.md's internal/transport entry for this decision.
package transport
