package pipe

import "github.com/ulala-x/serverlink/internal/message"

// FairQueue round-robins reads across a socket's attached pipes, skipping
// any pipe found empty and rotating it to the back of the active window.
// Ported 1:1 from ZMTP's fq.cpp.
type FairQueue struct {
	pipes   []*Pipe
	active  int
	current int
	more    bool
}

// NewFairQueue returns an empty fair-queue dispatcher.
func NewFairQueue() *FairQueue { return &FairQueue{} }

// Attach adds pipe to the dispatcher and marks it active.
func (q *FairQueue) Attach(p *Pipe) {
	q.pipes = append(q.pipes, p)
	q.Activated(p)
}

func (q *FairQueue) indexOf(p *Pipe) int {
	for i, c := range q.pipes {
		if c == p {
			return i
		}
	}
	return -1
}

func (q *FairQueue) swap(i, j int) { q.pipes[i], q.pipes[j] = q.pipes[j], q.pipes[i] }

// PipeTerminated removes a pipe that has finished terminating.
func (q *FairQueue) PipeTerminated(p *Pipe) {
	idx := q.indexOf(p)
	if idx < 0 {
		return
	}
	if idx < q.active {
		q.active--
		q.swap(idx, q.active)
		idx = q.active
		if q.current == q.active {
			q.current = 0
		}
	}
	q.pipes = append(q.pipes[:idx], q.pipes[idx+1:]...)
}

// Activated moves a previously-exhausted pipe back into the active window,
// called when that pipe's EventSink.ReadActivated fires.
func (q *FairQueue) Activated(p *Pipe) {
	idx := q.indexOf(p)
	if idx < 0 {
		return
	}
	q.swap(idx, q.active)
	q.active++
}

// Recv pops the next available message from the active rotation.
func (q *FairQueue) Recv() (message.Msg, bool) {
	m, _, ok := q.RecvPipe()
	return m, ok
}

// RecvPipe behaves like Recv but also reports which pipe the message came
// from (ROUTER uses this to learn the sender's routing id).
func (q *FairQueue) RecvPipe() (message.Msg, *Pipe, bool) {
	for q.active > 0 {
		m, ok := q.pipes[q.current].Read()
		if ok {
			src := q.pipes[q.current]
			q.more = m.More()
			if !q.more {
				q.current++
				if q.current >= q.active {
					q.current = 0
				}
			}
			return m, src, true
		}
		q.active--
		q.swap(q.current, q.active)
		if q.current == q.active {
			q.current = 0
		}
	}
	return message.Msg{}, nil, false
}

// HasIn reports whether any attached pipe currently has a message ready.
func (q *FairQueue) HasIn() bool {
	if q.more {
		return true
	}
	for q.active > 0 {
		if q.pipes[q.current].CheckRead() {
			return true
		}
		q.active--
		q.swap(q.current, q.active)
		if q.current == q.active {
			q.current = 0
		}
	}
	return false
}
