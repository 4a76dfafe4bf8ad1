package socket

import (
	"sync"

	"github.com/ulala-x/serverlink/internal/blob"
	"github.com/ulala-x/serverlink/internal/ctxcore"
	"github.com/ulala-x/serverlink/internal/message"
	"github.com/ulala-x/serverlink/internal/pipe"
)

// outPipe mirrors routing_socket_base_t::out_pipe_t: the pipe a routing-id
// resolves to, plus whether it was last seen writable.
type outPipe struct {
	pipe   *pipe.Pipe
	active bool
}

// Router implements the ROUTER socket type, grounded on
// ZMTP's router.cpp. Monitoring (connection_manager,
// event_dispatcher, heartbeat) is out of core scope (monitoring);
// connect/disconnect/heartbeat hooks are left to api.Socket's Notify
// channel rather than reimplemented here.
type Router struct {
	Base

	mu sync.Mutex

	fq *pipe.FairQueue

	prefetched         bool
	routingIDSent      bool
	prefetchedID       message.Msg
	prefetchedMsg      message.Msg
	currentIn          *pipe.Pipe
	terminateCurrentIn bool
	moreIn             bool

	anonymous map[*pipe.Pipe]struct{}

	currentOut *pipe.Pipe
	moreOut    bool

	outPipes           map[string]*outPipe
	connectRoutingID   string
	nextIntegralID     uint32

	mandatory   bool
	rawSocket   bool
	probeRouter bool
	handover    bool
}

// NewRouter constructs a ROUTER socket.
func NewRouter(ctx *ctxcore.Context, tid uint32, sid int64) *Router {
	r := &Router{
		anonymous:      make(map[*pipe.Pipe]struct{}),
		outPipes:       make(map[string]*outPipe),
		nextIntegralID: uint32(sid)*2654435761 + 1,
	}
	opts := DefaultOptions()
	opts.RecvRoutingID = true
	r.Base = NewBase(ctx, tid, sid, opts, r)
	return r
}

// SetConnectRoutingID records the routing-id to present on the next
// connect() call, matching connect_routing_id_is_set/extract_connect_
// routing_id's one-shot consumption contract.
func (r *Router) SetConnectRoutingID(id string) {
	r.mu.Lock()
	r.connectRoutingID = id
	r.mu.Unlock()
}

func (r *Router) takeConnectRoutingID() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.connectRoutingID
	r.connectRoutingID = ""
	return id, id != ""
}

func (r *Router) ensureFQ() *pipe.FairQueue {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fq == nil {
		r.fq = pipe.NewFairQueue()
	}
	return r.fq
}

// XAttachPipe matches router_t::xattach_pipe: optionally probes the peer
// with an empty message, then tries to identify it before deciding whether
// it joins the fair-queue rotation or sits in the anonymous set.
func (r *Router) XAttachPipe(p *pipe.Pipe, _ bool, locallyInitiated bool) {
	r.mu.Lock()
	probe := r.probeRouter
	r.mu.Unlock()

	if probe {
		probeMsg := message.Init()
		p.Write(&probeMsg)
		p.Flush()
	}

	if r.identifyPeer(p, locallyInitiated) {
		r.ensureFQ().Attach(p)
	} else {
		r.mu.Lock()
		r.anonymous[p] = struct{}{}
		r.mu.Unlock()
	}
}

// identifyPeer ports router_t::identify_peer: resolve a routing id for p
// either from a pending connect-routing-id, a raw-socket auto-id, or the
// peer's identity frame, handing over an existing routing id's pipe if
// ROUTER_HANDOVER is set.
func (r *Router) identifyPeer(p *pipe.Pipe, locallyInitiated bool) bool {
	var id blob.Blob

	r.mu.Lock()
	raw := r.rawSocket
	r.mu.Unlock()

	switch {
	case locallyInitiated:
		if connectID, ok := r.takeConnectRoutingID(); ok {
			id = blob.Owned([]byte(connectID))
			break
		}
		fallthrough
	case raw:
		if raw {
			r.mu.Lock()
			id = nextRoutingID(&r.nextIntegralID)
			r.mu.Unlock()
		}
	}

	if id.Len() == 0 && !raw {
		msg, ok := p.Read()
		if !ok {
			return false
		}
		if msg.Size() == 0 {
			r.mu.Lock()
			id = nextRoutingID(&r.nextIntegralID)
			r.mu.Unlock()
			msg.Close()
		} else {
			id = blob.Owned(append([]byte(nil), msg.Data()...))
			msg.Close()

			r.mu.Lock()
			existing, had := r.outPipes[string(id.Bytes())]
			r.mu.Unlock()

			if had {
				if !r.handoverEnabled() {
					return false
				}
				r.mu.Lock()
				newID := nextRoutingID(&r.nextIntegralID)
				oldPipe := existing.pipe
				delete(r.outPipes, string(id.Bytes()))
				oldPipe.SetRoutingID(newID)
				r.outPipes[string(newID.Bytes())] = &outPipe{pipe: oldPipe, active: true}
				terminateNow := oldPipe != r.currentIn
				if !terminateNow {
					r.terminateCurrentIn = true
				}
				r.mu.Unlock()
				if terminateNow {
					oldPipe.Terminate(true)
				}
			}
		}
	}

	p.SetRoutingID(id)
	r.mu.Lock()
	r.outPipes[string(id.Bytes())] = &outPipe{pipe: p, active: true}
	r.mu.Unlock()
	return true
}

func (r *Router) handoverEnabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.handover
}

// XSetSockopt handles ROUTER_RAW/ROUTER_MANDATORY/PROBE_ROUTER/
// ROUTER_HANDOVER (ROUTER; ROUTER_NOTIFY is carried by
// api.Socket's Notify channel rather than a sockopt here).
func (r *Router) XSetSockopt(option string, value any) error {
	v, ok := value.(int)
	if !ok || v < 0 {
		return ErrNotSupported
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	switch option {
	case "ROUTER_RAW":
		r.rawSocket = v != 0
	case "ROUTER_MANDATORY":
		r.mandatory = v != 0
	case "PROBE_ROUTER":
		r.probeRouter = v != 0
	case "ROUTER_HANDOVER":
		r.handover = v != 0
	default:
		return ErrNotSupported
	}
	return nil
}

// XSend implements router_t::xsend: the first frame of a message selects
// the destination pipe by routing id, subsequent frames are written
// straight through.
func (r *Router) XSend(m *message.Msg) error {
	r.mu.Lock()
	moreOut := r.moreOut
	r.mu.Unlock()

	if !moreOut {
		if !m.More() {
			m.Close()
			*m = message.Init()
			return nil
		}

		r.mu.Lock()
		r.moreOut = true
		entry, ok := r.outPipes[string(m.Data())]
		mandatory := r.mandatory
		r.mu.Unlock()

		if ok {
			if !entry.pipe.CheckWrite() {
				full := !checkHWM(entry.pipe)
				r.mu.Lock()
				entry.active = false
				r.mu.Unlock()
				if mandatory {
					r.mu.Lock()
					r.moreOut = false
					r.mu.Unlock()
					m.Close()
					*m = message.Init()
					if full {
						return ErrAgain
					}
					return ErrHostUnreachable
				}
				ok = false
			}
		} else if mandatory {
			r.mu.Lock()
			r.moreOut = false
			r.mu.Unlock()
			m.Close()
			*m = message.Init()
			return ErrHostUnreachable
		}

		r.mu.Lock()
		if ok {
			r.currentOut = entry.pipe
		} else {
			r.currentOut = nil
		}
		r.mu.Unlock()

		m.Close()
		*m = message.Init()
		return nil
	}

	r.mu.Lock()
	raw := r.rawSocket
	r.mu.Unlock()
	if raw {
		m.ResetFlags(message.FlagMore)
	}

	r.mu.Lock()
	r.moreOut = m.More()
	out := r.currentOut
	r.mu.Unlock()

	if out != nil {
		if raw && m.Size() == 0 {
			out.Terminate(false)
			m.Close()
			*m = message.Init()
			r.mu.Lock()
			r.currentOut = nil
			r.mu.Unlock()
			return nil
		}
		if out.Write(m) {
			r.mu.Lock()
			moreOut := r.moreOut
			r.mu.Unlock()
			if !moreOut {
				out.Flush()
				r.mu.Lock()
				r.currentOut = nil
				r.mu.Unlock()
			}
		} else {
			m.Close()
			out.Rollback()
			r.mu.Lock()
			r.currentOut = nil
			r.mu.Unlock()
		}
	} else {
		m.Close()
	}
	*m = message.Init()
	return nil
}

func checkHWM(p *pipe.Pipe) bool { return p.CheckWrite() }

// XRecv implements router_t::xrecv: prepend the sender's routing-id as the
// first frame, prefetching the actual payload until the caller asks for
// the next part.
func (r *Router) XRecv(m *message.Msg) error {
	r.mu.Lock()
	prefetched := r.prefetched
	r.mu.Unlock()

	if prefetched {
		r.mu.Lock()
		if !r.routingIDSent {
			*m = r.prefetchedID.Move()
			r.routingIDSent = true
		} else {
			*m = r.prefetchedMsg.Move()
			r.prefetched = false
		}
		r.moreIn = m.More()
		more := r.moreIn
		r.mu.Unlock()

		if !more {
			r.mu.Lock()
			if r.terminateCurrentIn {
				r.currentIn.Terminate(true)
				r.terminateCurrentIn = false
			}
			r.currentIn = nil
			r.routingIDSent = false
			r.mu.Unlock()
		}
		return nil
	}

	fq := r.ensureFQ()
	msg, p, ok := fq.RecvPipe()
	for ok && msg.Type() == message.TypeRoutingID {
		msg, p, ok = fq.RecvPipe()
	}
	if !ok {
		return ErrAgain
	}

	r.mu.Lock()
	moreIn := r.moreIn
	r.mu.Unlock()

	if moreIn {
		r.mu.Lock()
		r.moreIn = msg.More()
		more := r.moreIn
		r.mu.Unlock()
		if !more {
			r.mu.Lock()
			if r.terminateCurrentIn {
				r.currentIn.Terminate(true)
				r.terminateCurrentIn = false
			}
			r.currentIn = nil
			r.mu.Unlock()
		}
		*m = msg
		return nil
	}

	id := p.RoutingID()
	r.mu.Lock()
	r.prefetchedMsg = msg
	r.prefetched = true
	r.currentIn = p
	r.routingIDSent = true
	r.mu.Unlock()

	idMsg := message.InitBuffer(id.Bytes())
	idMsg.SetFlags(message.FlagMore)
	*m = idMsg
	return nil
}

// Rollback undoes any message parts written but not yet flushed, matching
// router_t::rollback (used by session-level send failure recovery).
func (r *Router) Rollback() error {
	r.mu.Lock()
	out := r.currentOut
	r.currentOut = nil
	r.moreOut = false
	r.mu.Unlock()
	if out != nil {
		out.Rollback()
	}
	return nil
}

func (r *Router) XHasIn() bool {
	r.mu.Lock()
	moreIn, prefetched := r.moreIn, r.prefetched
	r.mu.Unlock()
	if moreIn || prefetched {
		return true
	}
	return r.ensureFQ().HasIn()
}

func (r *Router) XHasOut() bool {
	r.mu.Lock()
	mandatory := r.mandatory
	r.mu.Unlock()
	if !mandatory {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.outPipes {
		if e.pipe.CheckWrite() {
			return true
		}
	}
	return false
}

func (r *Router) XReadActivated(p *pipe.Pipe) {
	r.mu.Lock()
	_, anon := r.anonymous[p]
	r.mu.Unlock()

	if !anon {
		r.ensureFQ().Activated(p)
		return
	}
	if r.identifyPeer(p, false) {
		r.mu.Lock()
		delete(r.anonymous, p)
		r.mu.Unlock()
		r.ensureFQ().Attach(p)
	}
}

func (r *Router) XWriteActivated(p *pipe.Pipe) { defaultXWriteActivated(p) }
func (r *Router) XHiccuped(*pipe.Pipe)         {}

func (r *Router) XPipeTerminated(p *pipe.Pipe) {
	r.mu.Lock()
	if _, anon := r.anonymous[p]; anon {
		delete(r.anonymous, p)
		r.mu.Unlock()
		return
	}
	for k, e := range r.outPipes {
		if e.pipe == p {
			delete(r.outPipes, k)
			break
		}
	}
	if r.currentOut == p {
		r.currentOut = nil
	}
	r.mu.Unlock()

	r.ensureFQ().PipeTerminated(p)
	p.Rollback()
}

// GetPeerState reports whether the peer identified by routingID can
// currently accept a write, matching router_t::get_peer_state.
func (r *Router) GetPeerState(routingID []byte) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.outPipes[string(routingID)]
	if !ok {
		return false, ErrHostUnreachable
	}
	return e.pipe.CheckWrite(), nil
}
