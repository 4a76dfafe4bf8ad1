package socket

import (
	"github.com/ulala-x/serverlink/internal/ctxcore"
	"github.com/ulala-x/serverlink/internal/message"
	"github.com/ulala-x/serverlink/internal/pipe"
)

// Dealer implements the DEALER socket type, grounded on
// ZMTP's dealer.cpp: an fq/lb pair round-robins messages
// across every attached pipe, with no routing-id framing exposed to the
// caller (DEALER sends/receives bare message parts).
type Dealer struct {
	Base

	fq *pipe.FairQueue
	lb *pipe.LoadBalance
}

// NewDealer constructs a DEALER socket.
func NewDealer(ctx *ctxcore.Context, tid uint32, sid int64) *Dealer {
	d := &Dealer{
		fq: pipe.NewFairQueue(),
		lb: pipe.NewLoadBalance(),
	}
	opts := DefaultOptions()
	opts.RecvRoutingID = true
	d.Base = NewBase(ctx, tid, sid, opts, d)
	return d
}

// XAttachPipe writes the socket's own routing-id frame (even if empty) to
// every newly attached pipe before joining the rotation, matching
// dealer.cpp's always-identify behaviour. Unlike ROUTER, this is the local
// socket's own id, not anything read back off the pipe.
func (d *Dealer) XAttachPipe(p *pipe.Pipe, _ bool, _ bool) {
	idMsg := message.InitRoutingID(d.Options().RoutingID)
	p.Write(&idMsg)
	p.Flush()

	d.fq.Attach(p)
	d.lb.Attach(p)
}

func (d *Dealer) XSetSockopt(string, any) error { return ErrNotSupported }

func (d *Dealer) XSend(m *message.Msg) error {
	if d.lb.Send(m) {
		return nil
	}
	return ErrAgain
}

// XRecv passes frames straight through, matching dealer.cpp's xrecv: unlike
// ROUTER, DEALER does not filter routing-id frames out of its own receive
// stream.
func (d *Dealer) XRecv(m *message.Msg) error {
	msg, ok := d.fq.Recv()
	if !ok {
		return ErrAgain
	}
	*m = msg
	return nil
}

func (d *Dealer) XHasIn() bool  { return d.fq.HasIn() }
func (d *Dealer) XHasOut() bool { return d.lb.HasOut() }

func (d *Dealer) XReadActivated(p *pipe.Pipe)  { d.fq.Activated(p) }
func (d *Dealer) XWriteActivated(p *pipe.Pipe) { d.lb.Activated(p) }
func (d *Dealer) XHiccuped(*pipe.Pipe)         {}

func (d *Dealer) XPipeTerminated(p *pipe.Pipe) {
	d.fq.PipeTerminated(p)
	d.lb.PipeTerminated(p)
}
