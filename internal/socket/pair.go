package socket

import (
	"github.com/ulala-x/serverlink/internal/ctxcore"
	"github.com/ulala-x/serverlink/internal/message"
	"github.com/ulala-x/serverlink/internal/pipe"
)

// Pair implements the PAIR socket type, grounded on
// ZMTP's pair.cpp: exactly one pipe is accepted; a second
// attach attempt is refused (PAIR is a strict one-to-one connector).
type Pair struct {
	Base

	p *pipe.Pipe
}

// NewPair constructs a PAIR socket.
func NewPair(ctx *ctxcore.Context, tid uint32, sid int64) *Pair {
	pr := &Pair{}
	pr.Base = NewBase(ctx, tid, sid, DefaultOptions(), pr)
	return pr
}

func (pr *Pair) XAttachPipe(p *pipe.Pipe, _ bool, _ bool) {
	if pr.p == nil {
		pr.p = p
	}
	// A second attach is silently ignored; the caller must reject the
	// underlying connection before a transport ever builds a second pipe,
	// matching pair.cpp's single-peer invariant (ZMTP).
}

func (pr *Pair) XSetSockopt(string, any) error { return ErrNotSupported }

func (pr *Pair) XSend(m *message.Msg) error {
	if pr.p == nil || !pr.p.Write(m) {
		m.Close()
		*m = message.Init()
		return ErrAgain
	}
	if !m.More() {
		pr.p.Flush()
	}
	*m = message.Init()
	return nil
}

func (pr *Pair) XRecv(m *message.Msg) error {
	if pr.p == nil {
		return ErrAgain
	}
	msg, ok := pr.p.Read()
	if !ok {
		return ErrAgain
	}
	*m = msg
	return nil
}

func (pr *Pair) XHasIn() bool  { return pr.p != nil && pr.p.CheckRead() }
func (pr *Pair) XHasOut() bool { return pr.p != nil && pr.p.CheckWrite() }

func (pr *Pair) XReadActivated(*pipe.Pipe)  {}
func (pr *Pair) XWriteActivated(*pipe.Pipe) {}
func (pr *Pair) XHiccuped(*pipe.Pipe)       {}

func (pr *Pair) XPipeTerminated(p *pipe.Pipe) {
	if pr.p == p {
		pr.p = nil
	}
}
