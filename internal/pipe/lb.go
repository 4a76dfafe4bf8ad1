package pipe

import "github.com/ulala-x/serverlink/internal/message"

// LoadBalance round-robins writes across a socket's attached pipes (DEALER's
// send side), skipping any pipe found full and rotating it to the back of
// the active window. Ported 1:1 from ZMTP's lb.cpp.
type LoadBalance struct {
	pipes    []*Pipe
	active   int
	current  int
	more     bool
	dropping bool
}

// NewLoadBalance returns an empty load-balance dispatcher.
func NewLoadBalance() *LoadBalance { return &LoadBalance{} }

// Attach adds pipe to the dispatcher and marks it active.
func (q *LoadBalance) Attach(p *Pipe) {
	q.pipes = append(q.pipes, p)
	q.Activated(p)
}

func (q *LoadBalance) indexOf(p *Pipe) int {
	for i, c := range q.pipes {
		if c == p {
			return i
		}
	}
	return -1
}

func (q *LoadBalance) swap(i, j int) { q.pipes[i], q.pipes[j] = q.pipes[j], q.pipes[i] }

// PipeTerminated removes a terminated pipe. If it was mid-multipart-send
// when it disappeared, subsequent frames of that message are dropped
// (silently absorbed) until the next MORE=false frame, matching lb.cpp's
// _dropping latch.
func (q *LoadBalance) PipeTerminated(p *Pipe) {
	idx := q.indexOf(p)
	if idx < 0 {
		return
	}
	if idx == q.current && q.more {
		q.dropping = true
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

// Activated moves a previously-exhausted pipe back into the active window.
func (q *LoadBalance) Activated(p *Pipe) {
	idx := q.indexOf(p)
	if idx < 0 {
		return
	}
	q.swap(idx, q.active)
	q.active++
}

// Send writes msg to the current pipe in rotation, advancing to the next
// pipe once a non-MORE frame completes a message.
func (q *LoadBalance) Send(m *message.Msg) bool {
	_, ok := q.SendPipe(m)
	return ok
}

// SendPipe behaves like Send but also reports which pipe accepted the
// message.
func (q *LoadBalance) SendPipe(m *message.Msg) (*Pipe, bool) {
	if q.dropping {
		q.more = m.More()
		q.dropping = q.more
		m.Close()
		*m = message.Init()
		return nil, true
	}

	for q.active > 0 {
		dst := q.pipes[q.current]
		if dst.Write(m) {
			q.more = m.More()
			if !q.more {
				dst.Flush()
				q.current++
				if q.current >= q.active {
					q.current = 0
				}
			}
			return dst, true
		}
		q.active--
		q.swap(q.current, q.active)
		if q.current == q.active {
			q.current = 0
		}
	}
	return nil, false
}

// HasOut reports whether any attached pipe currently accepts a write.
func (q *LoadBalance) HasOut() bool {
	if q.more {
		return true
	}
	for q.active > 0 {
		if q.pipes[q.current].CheckWrite() {
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
