package transport

import (
	"github.com/ulala-x/serverlink/internal/iothread"
	"github.com/ulala-x/serverlink/internal/socket"
)

// NewIPCConnecter builds a Connecter dialing a Unix-domain socket path,
// matching ZMTP's ipc_connecter.cpp. It shares all
// of Connecter's dial/redial machinery with tcp.go's NewConnecter — ZMTP's
// ipc transport differs from tcp only in net.Dial's network name.
func NewIPCConnecter(path, endpoint string, ioThread *iothread.IOThread, sock *socket.Base, opts socket.Options, hs HandshakeInfo, maxMsg uint64, policy ReconnectPolicy, onPeer func(Peer), onRedial func()) *Connecter {
	return NewConnecter("unix", path, endpoint, ioThread, sock, opts, hs, maxMsg, policy, onPeer, onRedial)
}

// ListenIPC opens a Unix-domain listening socket at path, matching
// ZMTP's ipc_listener.cpp. Go's net.UnixListener
// already unlinks the socket file on Close (ZMTP's "ipc path files
// are created by the listener and unlinked on close"), so no extra
// bookkeeping is needed here beyond what Listen already does.
func ListenIPC(path, scheme string, ioThread *iothread.IOThread, sock *socket.Base, opts socket.Options, hs HandshakeInfo, maxMsg uint64, onPeer func(Peer), nextTid func() uint32) (*Listener, error) {
	return Listen("unix", path, scheme, ioThread, sock, opts, hs, maxMsg, onPeer, nextTid)
}
