// Package pipe implements the flow-controlled message pipe pair (pipe_t)
// built on two back-to-back ypipes, plus the fair-queue and load-balance
// dispatchers that multiplex many pipes on one socket. Grounded on ZMTP
// §3, §4.3, §4.7 and ZMTP's {pipe.cpp,fq.cpp,lb.cpp}.
package pipe

import (
	"sync"

	"github.com/ulala-x/serverlink/internal/blob"
	"github.com/ulala-x/serverlink/internal/message"
	"github.com/ulala-x/serverlink/internal/queue"
)

// Granularity controls both the ypipe chunk size and the read-batch cadence
// at which a reader announces its position back to the writer
// (message_pipe_granularity in ZMTP).
const Granularity = 256

// State is the pipe's termination state machine, following ZMTP's
// transition table exactly.
type State int

const (
	StateActive State = iota
	StateDelimiterReceived
	StateWaitingForDelimiter
	StateTermReqSent1
	StateTermReqSent2
	StateTermAckSent
)

// EventSink receives pipe-level lifecycle notifications; socket and session
// implementations satisfy this to learn about activation, hiccups, and
// termination of their attached pipes (mirrors i_pipe_events).
type EventSink interface {
	ReadActivated(p *Pipe)
	WriteActivated(p *Pipe)
	Hiccuped(p *Pipe)
	Terminated(p *Pipe)
}

// Pipe is one end of a pipe-pair. Two Pipes are always constructed together
// by Pair and refer to each other as Peer; the in-queue of one is the
// out-queue of its peer.
type Pipe struct {
	mu sync.Mutex

	inPipe  queue.UPipe[message.Msg]
	outPipe queue.UPipe[message.Msg]
	peer    *Pipe

	hwm, lwm             int
	inHWMBoost           int
	outHWMBoost          int
	msgsRead             uint64
	msgsWritten          uint64
	peersMsgsRead        uint64
	inActive, outActive  bool
	state                State
	delay                bool
	conflate             bool
	sink                 EventSink
	routingID            blob.Blob
	disconnectMsg        *message.Msg
	hiccupMsg            *message.Msg
}

// Pair allocates two ypipes (or conflate variants) and constructs the two
// cross-wired pipe ends, following ZMTP's pipepair(). hwms[0] limits the
// direction pipes[0] -> pipes[1]: it is pipes[0]'s send hwm and the basis
// of pipes[1]'s low-water mark. hwms[1] limits the opposite direction.
func Pair(hwms [2]int, conflates [2]bool) (a, b *Pipe) {
	var upipe1, upipe2 queue.UPipe[message.Msg]
	if conflates[0] {
		upipe1 = queue.NewYpipeConflate[message.Msg]()
	} else {
		upipe1 = queue.NewYpipe[message.Msg](Granularity)
	}
	if conflates[1] {
		upipe2 = queue.NewYpipeConflate[message.Msg]()
	} else {
		upipe2 = queue.NewYpipe[message.Msg](Granularity)
	}

	a = newPipe(upipe1, upipe2, hwms[1], hwms[0], conflates[0])
	b = newPipe(upipe2, upipe1, hwms[0], hwms[1], conflates[1])
	a.peer = b
	b.peer = a
	return a, b
}

func computeLWM(hwm int) int { return (hwm + 1) / 2 }

func newPipe(in, out queue.UPipe[message.Msg], inhwm, outhwm int, conflate bool) *Pipe {
	return &Pipe{
		inPipe:    in,
		outPipe:   out,
		hwm:       outhwm,
		lwm:       computeLWM(inhwm),
		inActive:  true,
		outActive: true,
		state:     StateActive,
		delay:     true,
		conflate:  conflate,
	}
}

// SetEventSink attaches the socket/session that receives this pipe's
// lifecycle callbacks.
func (p *Pipe) SetEventSink(sink EventSink) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sink = sink
}

// SetHWM replaces the pipe's send high-water mark with outhwm and
// recomputes its low-water mark from inhwm; the HWM boosts are unchanged.
func (p *Pipe) SetHWM(inhwm, outhwm int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hwm = outhwm
	p.lwm = computeLWM(inhwm)
}

// RoutingID returns the identity blob attached to this pipe (ROUTER/DEALER
// peer identity), if any.
func (p *Pipe) RoutingID() blob.Blob {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.routingID
}

// SetRoutingID attaches an identity blob to this pipe.
func (p *Pipe) SetRoutingID(b blob.Blob) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.routingID = b
}

// CheckRead reports whether a message is available without consuming it.
func (p *Pipe) CheckRead() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.checkReadLocked()
}

func (p *Pipe) checkReadLocked() bool {
	if !p.inActive || p.state == StateTermAckSent {
		return false
	}
	if p.inPipe.CheckRead() {
		return true
	}
	p.inActive = false
	return false
}

// Read pops the next message, silently dropping internal credential frames
// (ZMTP). A delimiter frame is not surfaced either: it drives the local
// process_delimiter transition (the third leg of the term/term_ack
// handshake Terminate starts) and the read reports no message, the same
// way a caller's event loop draining a terminating pipe finds nothing left
// to deliver. Reading remains enabled through every pre-StateTermAckSent
// state (not just Active/WaitingForDelimiter) precisely so that a pipe
// already mid-handshake can still drain its peer's delimiter and complete
// the transition; once StateTermAckSent is reached the pipe is fully
// closed and Read always reports nothing. It returns false if nothing is
// available or the pipe is not currently readable.
func (p *Pipe) Read() (message.Msg, bool) {
	p.mu.Lock()

	if !p.inActive || p.state == StateTermAckSent {
		p.mu.Unlock()
		return message.Msg{}, false
	}
	for {
		m, ok := p.inPipe.Read()
		if !ok {
			p.inActive = false
			p.mu.Unlock()
			return message.Msg{}, false
		}
		if m.IsCredential() {
			m.Close()
			continue
		}
		if m.Type() == message.TypeDelimiter {
			m.Close()
			terminated, sink := p.applyDelimiterLocked()
			p.mu.Unlock()
			if terminated && sink != nil {
				sink.Terminated(p)
			}
			return message.Msg{}, false
		}
		p.msgsRead++
		msgsRead := p.msgsRead
		p.mu.Unlock()
		if msgsRead%Granularity == 0 {
			p.sendActivateWrite(msgsRead)
		}
		return m, true
	}
}

// CheckWrite reports whether a write would currently succeed, deactivating
// the pipe (requiring a peer activate_write to recover) if the high-water
// mark has been reached.
func (p *Pipe) CheckWrite() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.checkWriteLocked()
}

func (p *Pipe) checkWriteLocked() bool {
	if !p.outActive || p.state != StateActive {
		return false
	}
	if p.hwm > 0 && p.msgsWritten-p.peersMsgsRead >= uint64(p.hwm+p.outHWMBoost) {
		p.outActive = false
		return false
	}
	return true
}

// Write enqueues msg on the out-pipe if CheckWrite allows it.
func (p *Pipe) Write(m *message.Msg) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.checkWriteLocked() {
		return false
	}
	p.outPipe.Write(*m, m.More())
	p.msgsWritten++
	return true
}

// Rollback discards any writes buffered since the last Flush.
func (p *Pipe) Rollback() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.outPipe != nil {
		p.outPipe.Rollback()
	}
}

// Flush commits buffered writes; if the peer's reader was asleep it sends
// an activate_read notification.
func (p *Pipe) Flush() {
	p.mu.Lock()
	state := p.state
	out := p.outPipe
	p.mu.Unlock()

	if state == StateTermAckSent || out == nil {
		return
	}
	if !out.Flush() {
		p.sendActivateRead()
	}
}

// sendActivateRead and sendActivateWrite deliver the activation handshake
// directly to the peer's Process* method. Both pipe ends of a pair share
// the same process address space, so this is a synchronous, mutex-guarded
// call rather than a second layer of command-queue indirection — the
// cross-goroutine boundary that matters (socket/session vs. io-thread) is
// handled by internal/mailbox elsewhere.
func (p *Pipe) sendActivateRead() {
	peer := p.peerRef()
	if peer != nil {
		peer.processActivateRead()
	}
}

func (p *Pipe) sendActivateWrite(msgsRead uint64) {
	peer := p.peerRef()
	if peer != nil {
		peer.processActivateWrite(msgsRead)
	}
}

func (p *Pipe) peerRef() *Pipe {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.peer
}

func (p *Pipe) processActivateRead() {
	p.mu.Lock()
	shouldNotify := !p.inActive && (p.state == StateActive || p.state == StateWaitingForDelimiter)
	if shouldNotify {
		p.inActive = true
	}
	sink := p.sink
	p.mu.Unlock()

	if shouldNotify && sink != nil {
		sink.ReadActivated(p)
	}
}

func (p *Pipe) processActivateWrite(msgsRead uint64) {
	p.mu.Lock()
	if msgsRead > p.peersMsgsRead {
		p.peersMsgsRead = msgsRead
	}
	shouldNotify := !p.outActive && p.state == StateActive
	if shouldNotify {
		p.outActive = true
	}
	sink := p.sink
	p.mu.Unlock()

	if shouldNotify && sink != nil {
		sink.WriteActivated(p)
	}
}

// Hiccup notifies the peer, which rolls back this pipe's writes that have
// not been flushed yet (they sit on the peer's in-queue) and reports
// Hiccuped to its sink. The in-queue is not replaced: messages already
// flushed in either direction stay queued.
func (p *Pipe) Hiccup() {
	p.mu.Lock()
	active := p.state == StateActive || p.state == StateWaitingForDelimiter
	p.mu.Unlock()
	if !active {
		return
	}
	peer := p.peerRef()
	if peer != nil {
		peer.processHiccup()
	}
}

func (p *Pipe) processHiccup() {
	p.mu.Lock()
	if p.inPipe != nil {
		p.inPipe.Rollback()
	}
	sink := p.sink
	p.mu.Unlock()
	if sink != nil {
		sink.Hiccuped(p)
	}
}

// Terminate begins graceful or immediate shutdown. It writes a delimiter
// frame onto the out-queue behind any still-pending writes — the peer's
// eventual Read of that delimiter is what actually finishes the handshake,
// driving its own state (and, once both delimiters have been drained, this
// pipe's own state) the rest of the way to StateTermAckSent. Terminate
// itself only ever reaches StateTermReqSent1/StateTermReqSent2 directly;
// sending the term command is not sufficient on its own. If delay is true
// (linger enabled) pending messages written before the delimiter remain
// readable; otherwise the delimiter still closes the queue, just with
// nothing queued ahead of it.
func (p *Pipe) Terminate(delay bool) {
	p.mu.Lock()
	switch p.state {
	case StateTermReqSent1, StateTermReqSent2, StateTermAckSent:
		p.mu.Unlock()
		return
	}
	p.delay = delay
	if p.state == StateActive {
		p.state = StateTermReqSent1
	} else if p.state == StateDelimiterReceived {
		p.state = StateTermReqSent2
	}
	if p.outPipe != nil {
		delim := message.InitDelimiter()
		p.outPipe.Write(delim, false)
	}
	p.mu.Unlock()

	p.Flush()

	peer := p.peerRef()
	if peer != nil {
		peer.processTerm()
	}
}

func (p *Pipe) processTerm() {
	p.mu.Lock()
	switch p.state {
	case StateActive:
		p.state = StateWaitingForDelimiter
	case StateTermReqSent1:
		p.state = StateTermReqSent2
	case StateTermReqSent2, StateDelimiterReceived:
		p.state = StateTermAckSent
	}
	p.mu.Unlock()
	p.checkReadLocked2()
}

// checkReadLocked2 reruns CheckRead's deactivation side effect after a
// state transition, matching process_term's trailing check_read() call.
func (p *Pipe) checkReadLocked2() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.checkReadLocked()
}

// applyDelimiterLocked applies process_delimiter's state transition for an
// inbound delimiter control frame. Must be called with p.mu held; it does
// not unlock, so the caller can read p.sink under the same critical
// section before releasing the lock and notifying it. The returned
// terminated flag is true only when this transition lands on
// StateTermAckSent.
func (p *Pipe) applyDelimiterLocked() (terminated bool, sink EventSink) {
	switch p.state {
	case StateActive:
		p.state = StateDelimiterReceived
	case StateWaitingForDelimiter, StateTermReqSent1, StateTermReqSent2:
		p.state = StateTermAckSent
	}
	return p.state == StateTermAckSent, p.sink
}

// ProcessDelimiter handles an inbound delimiter control message arriving
// through the normal message stream (a peer's graceful close marker). Read
// drives this itself for delimiters consumed through the ordinary read
// path; this entry point exists for a caller that observes one out of
// band.
func (p *Pipe) ProcessDelimiter() {
	p.mu.Lock()
	terminated, sink := p.applyDelimiterLocked()
	p.mu.Unlock()
	if terminated && sink != nil {
		sink.Terminated(p)
	}
}

// State returns the current termination state.
func (p *Pipe) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Stats returns the read/write counters that must satisfy
// messages_read <= messages_written and peer.peer_messages_read <= messages_read.
func (p *Pipe) Stats() (msgsRead, msgsWritten, peersMsgsRead uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.msgsRead, p.msgsWritten, p.peersMsgsRead
}
