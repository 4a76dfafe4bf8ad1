package socket

import (
	"sync"

	"github.com/ulala-x/serverlink/internal/ctxcore"
	"github.com/ulala-x/serverlink/internal/message"
	"github.com/ulala-x/serverlink/internal/pipe"
	"github.com/ulala-x/serverlink/internal/trie"
)

// xpubCore holds the shared XPUB/PUB bookkeeping: it fans published
// messages out to every attached pipe whose subscription trie matches, and
// surfaces subscribe/cancel control frames from subscribers as
// application-readable messages (ZMTP's publish/subscribe module;
// no pack-kept file grounds this one-to-one, derived from ZMTP's
// src/pubsub naming — see DESIGN.md). Factored out of XPub/Pub (rather than
// Pub embedding *XPub) so each socket type's own Base.impl points at itself:
// Impl dispatch is resolved at construction time, so a wrapper type can't
// override a core method through embedding alone.
type xpubCore struct {
	mu      sync.Mutex
	fq      *pipe.FairQueue
	pipes   []*pipe.Pipe
	byPipe  map[*pipe.Pipe]*trie.Trie
	all     *trie.Trie
	verbose bool
	pending []message.Msg
}

func newXPubCore() xpubCore {
	return xpubCore{
		fq:     pipe.NewFairQueue(),
		byPipe: make(map[*pipe.Pipe]*trie.Trie),
		all:    trie.New(),
	}
}

func (c *xpubCore) attachPipe(p *pipe.Pipe) {
	c.mu.Lock()
	c.pipes = append(c.pipes, p)
	c.byPipe[p] = trie.New()
	c.mu.Unlock()
	c.fq.Attach(p)
}

func (c *xpubCore) setSockopt(option string, value any) error {
	v, ok := value.(int)
	if !ok {
		return ErrNotSupported
	}
	switch option {
	case "XPUB_VERBOSE":
		c.mu.Lock()
		c.verbose = v != 0
		c.mu.Unlock()
		return nil
	default:
		return ErrNotSupported
	}
}

// drainSubscriptions folds every subscribe/cancel control frame a
// subscriber has sent into the per-pipe/aggregate tries, queuing the ones
// worth surfacing to the app. It matches xpub_t::xread_activated's job of
// updating the trie the moment a control frame arrives rather than only
// when the app next calls recv — xpub_t's send path must see an
// up-to-date trie even if the app (or pub_t, which never calls XRecv at
// all) never drains notifications.
func (c *xpubCore) drainSubscriptions() {
	for {
		msg, p, ok := c.fq.RecvPipe()
		if !ok {
			return
		}
		var surface bool
		switch msg.Type() {
		case message.TypeSubscribe:
			surface = c.noteSubscribe(p, msg.Data(), true)
		case message.TypeCancel:
			surface = c.noteSubscribe(p, msg.Data(), false)
		default:
			surface = true
		}
		if surface {
			c.mu.Lock()
			c.pending = append(c.pending, msg)
			c.mu.Unlock()
		} else {
			msg.Close()
		}
	}
}

func (c *xpubCore) send(m *message.Msg) error {
	c.drainSubscriptions()

	c.mu.Lock()
	targets := make([]*pipe.Pipe, 0, len(c.pipes))
	for _, p := range c.pipes {
		if trie.Check(c.byPipe[p], m.Data()) {
			targets = append(targets, p)
		}
	}
	more := m.More()
	c.mu.Unlock()

	for i, p := range targets {
		if i == len(targets)-1 {
			if p.Write(m) && !more {
				p.Flush()
			}
			continue
		}
		dup := m.Copy()
		if p.Write(&dup) && !more {
			p.Flush()
		}
	}
	if len(targets) == 0 {
		m.Close()
	}
	*m = message.Init()
	return nil
}

// recv surfaces the next subscribe/cancel transition worth reporting (first
// subscriber, last unsubscriber, or verbose mode), skipping the rest.
func (c *xpubCore) recv(m *message.Msg) error {
	c.drainSubscriptions()

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.pending) == 0 {
		return ErrAgain
	}
	*m = c.pending[0]
	c.pending = c.pending[1:]
	return nil
}

func (c *xpubCore) noteSubscribe(p *pipe.Pipe, key []byte, subscribe bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.byPipe[p]
	if t == nil {
		return false
	}

	var first, last bool
	if subscribe {
		first = trie.Add(t, key)
		trie.Add(c.all, key)
	} else {
		trie.Remove(t, key)
		last = trie.Remove(c.all, key)
	}
	return c.verbose || first || last
}

func (c *xpubCore) hasIn() bool {
	c.drainSubscriptions()
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending) > 0
}

func (c *xpubCore) readActivated(p *pipe.Pipe) {
	c.fq.Activated(p)
	c.drainSubscriptions()
}

func (c *xpubCore) pipeTerminated(p *pipe.Pipe) {
	c.mu.Lock()
	delete(c.byPipe, p)
	for i, q := range c.pipes {
		if q == p {
			c.pipes = append(c.pipes[:i], c.pipes[i+1:]...)
			break
		}
	}
	c.mu.Unlock()
	c.fq.PipeTerminated(p)
}

// XPub implements the XPUB socket type.
type XPub struct {
	Base
	core xpubCore
}

// NewXPub constructs an XPUB socket.
func NewXPub(ctx *ctxcore.Context, tid uint32, sid int64) *XPub {
	x := &XPub{core: newXPubCore()}
	x.Base = NewBase(ctx, tid, sid, DefaultOptions(), x)
	return x
}

func (x *XPub) XAttachPipe(p *pipe.Pipe, _ bool, _ bool)   { x.core.attachPipe(p) }
func (x *XPub) XSetSockopt(option string, value any) error { return x.core.setSockopt(option, value) }
func (x *XPub) XSend(m *message.Msg) error                 { return x.core.send(m) }
func (x *XPub) XRecv(m *message.Msg) error                 { return x.core.recv(m) }
func (x *XPub) XHasIn() bool                               { return x.core.hasIn() }
func (x *XPub) XHasOut() bool                              { return true }
func (x *XPub) XReadActivated(p *pipe.Pipe)                { x.core.readActivated(p) }
func (x *XPub) XWriteActivated(p *pipe.Pipe)               { defaultXWriteActivated(p) }
func (x *XPub) XHiccuped(*pipe.Pipe)                       {}
func (x *XPub) XPipeTerminated(p *pipe.Pipe)               { x.core.pipeTerminated(p) }

// Pub implements the PUB socket type: all the XPub fan-out logic, but
// subscription notifications are never surfaced to the application — PUB is
// write-only, matching pub_t's relationship to xpub_t.
type Pub struct {
	Base
	core xpubCore
}

// NewPub constructs a PUB socket.
func NewPub(ctx *ctxcore.Context, tid uint32, sid int64) *Pub {
	p := &Pub{core: newXPubCore()}
	p.Base = NewBase(ctx, tid, sid, DefaultOptions(), p)
	return p
}

func (p *Pub) XAttachPipe(pp *pipe.Pipe, _ bool, _ bool)   { p.core.attachPipe(pp) }
func (p *Pub) XSetSockopt(option string, value any) error { return p.core.setSockopt(option, value) }
func (p *Pub) XSend(m *message.Msg) error                  { return p.core.send(m) }
func (p *Pub) XRecv(*message.Msg) error                    { return ErrNotSupported }
func (p *Pub) XHasIn() bool                                { return false }
func (p *Pub) XHasOut() bool                               { return true }
func (p *Pub) XReadActivated(pp *pipe.Pipe)                { p.core.readActivated(pp) }
func (p *Pub) XWriteActivated(pp *pipe.Pipe)               { defaultXWriteActivated(pp) }
func (p *Pub) XHiccuped(*pipe.Pipe)                        {}
func (p *Pub) XPipeTerminated(pp *pipe.Pipe)               { p.core.pipeTerminated(pp) }

// xsubCore holds the shared XSUB/SUB bookkeeping: it broadcasts
// subscribe/cancel requests to every attached (typically XPUB) pipe and
// receives whatever the publisher already filtered.
type xsubCore struct {
	mu    sync.Mutex
	fq    *pipe.FairQueue
	pipes []*pipe.Pipe
	subs  *trie.Trie
}

func newXSubCore() xsubCore {
	return xsubCore{fq: pipe.NewFairQueue(), subs: trie.New()}
}

func (c *xsubCore) attachPipe(p *pipe.Pipe) {
	c.mu.Lock()
	c.pipes = append(c.pipes, p)
	subs := c.subs
	c.mu.Unlock()

	trie.Apply(subs, func(key []byte) {
		msg := message.InitSubscribe(key)
		p.Write(&msg)
	})
	p.Flush()
	c.fq.Attach(p)
}

// send treats a write to an XSUB socket as a subscribe/cancel request: a
// leading 0x01 byte means subscribe, 0x00 means cancel, matching the ZMTP
// wire convention these control frames were modeled on. It broadcasts the
// change to every attached pipe only on a refcount transition.
func (c *xsubCore) send(m *message.Msg) error {
	data := m.Data()
	if len(data) == 0 {
		m.Close()
		*m = message.Init()
		return nil
	}
	subscribe := data[0] != 0
	key := append([]byte(nil), data[1:]...)
	m.Close()
	*m = message.Init()

	c.mu.Lock()
	var changed bool
	if subscribe {
		changed = trie.Add(c.subs, key)
	} else {
		changed = trie.Remove(c.subs, key)
	}
	pipes := make([]*pipe.Pipe, len(c.pipes))
	copy(pipes, c.pipes)
	c.mu.Unlock()

	if !changed {
		return nil
	}
	for _, p := range pipes {
		var ctrl message.Msg
		if subscribe {
			ctrl = message.InitSubscribe(key)
		} else {
			ctrl = message.InitCancel(key)
		}
		if p.Write(&ctrl) {
			p.Flush()
		}
	}
	return nil
}

func (c *xsubCore) recv(m *message.Msg) error {
	msg, ok := c.fq.Recv()
	if !ok {
		return ErrAgain
	}
	*m = msg
	return nil
}

// recvFiltered is Sub's extra local re-check against subs, in case a
// publish sent just before an unsubscribe is still in flight when the
// cancel reaches the publisher.
func (c *xsubCore) recvFiltered(m *message.Msg) error {
	for {
		msg, ok := c.fq.Recv()
		if !ok {
			return ErrAgain
		}
		c.mu.Lock()
		match := trie.Check(c.subs, msg.Data())
		c.mu.Unlock()
		if match {
			*m = msg
			return nil
		}
		msg.Close()
	}
}

func (c *xsubCore) hasIn() bool { return c.fq.HasIn() }

func (c *xsubCore) readActivated(p *pipe.Pipe) { c.fq.Activated(p) }

func (c *xsubCore) pipeTerminated(p *pipe.Pipe) {
	c.mu.Lock()
	for i, q := range c.pipes {
		if q == p {
			c.pipes = append(c.pipes[:i], c.pipes[i+1:]...)
			break
		}
	}
	c.mu.Unlock()
	c.fq.PipeTerminated(p)
}

// XSub implements the XSUB socket type.
type XSub struct {
	Base
	core xsubCore
}

// NewXSub constructs an XSUB socket.
func NewXSub(ctx *ctxcore.Context, tid uint32, sid int64) *XSub {
	x := &XSub{core: newXSubCore()}
	x.Base = NewBase(ctx, tid, sid, DefaultOptions(), x)
	return x
}

func (x *XSub) XAttachPipe(p *pipe.Pipe, _ bool, _ bool) { x.core.attachPipe(p) }
func (x *XSub) XSetSockopt(string, any) error            { return ErrNotSupported }
func (x *XSub) XSend(m *message.Msg) error               { return x.core.send(m) }
func (x *XSub) XRecv(m *message.Msg) error                { return x.core.recv(m) }
func (x *XSub) XHasIn() bool                              { return x.core.hasIn() }
func (x *XSub) XHasOut() bool                             { return true }
func (x *XSub) XReadActivated(p *pipe.Pipe)               { x.core.readActivated(p) }
func (x *XSub) XWriteActivated(p *pipe.Pipe)              { defaultXWriteActivated(p) }
func (x *XSub) XHiccuped(*pipe.Pipe)                      {}
func (x *XSub) XPipeTerminated(p *pipe.Pipe)              { x.core.pipeTerminated(p) }

// Sub implements the SUB socket type: XSub's broadcast logic plus a local
// re-filter of incoming messages against the same subscription set.
type Sub struct {
	Base
	core xsubCore
}

// NewSub constructs a SUB socket.
func NewSub(ctx *ctxcore.Context, tid uint32, sid int64) *Sub {
	s := &Sub{core: newXSubCore()}
	s.Base = NewBase(ctx, tid, sid, DefaultOptions(), s)
	return s
}

func (s *Sub) XAttachPipe(p *pipe.Pipe, _ bool, _ bool) { s.core.attachPipe(p) }
func (s *Sub) XSetSockopt(string, any) error            { return ErrNotSupported }
func (s *Sub) XSend(m *message.Msg) error               { return s.core.send(m) }
func (s *Sub) XRecv(m *message.Msg) error               { return s.core.recvFiltered(m) }
func (s *Sub) XHasIn() bool                             { return s.core.hasIn() }
func (s *Sub) XHasOut() bool                            { return true }
func (s *Sub) XReadActivated(p *pipe.Pipe)              { s.core.readActivated(p) }
func (s *Sub) XWriteActivated(p *pipe.Pipe)             { defaultXWriteActivated(p) }
func (s *Sub) XHiccuped(*pipe.Pipe)                     {}
func (s *Sub) XPipeTerminated(p *pipe.Pipe)             { s.core.pipeTerminated(p) }
