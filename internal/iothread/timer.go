package iothread

import (
	"sort"
	"time"

	"github.com/ulala-x/serverlink/internal/clock"
)

type timerEntry struct {
	expiresMs int64
	sink      PollEvents
	id        int
}

// TimerWheel holds pending one-shot timers sorted by expiration, ported
// from poller_base_t's std::multimap<expiration, timer_info> (a handful of
// live timers per io-thread at most, so a sorted slice is the direct,
// stdlib-only translation of the original's tiny ordered map; no pack
// library offers a lighter-weight priority queue suited to this, see
// DESIGN.md).
type TimerWheel struct {
	entries []timerEntry
}

// NewTimerWheel returns an empty wheel.
func NewTimerWheel() *TimerWheel { return &TimerWheel{} }

// Add schedules sink.TimerEvent(id) to fire after timeout elapses.
func (w *TimerWheel) Add(timeout time.Duration, sink PollEvents, id int) {
	expires := clock.NowMs() + timeout.Milliseconds()
	w.entries = append(w.entries, timerEntry{expiresMs: expires, sink: sink, id: id})
	sort.Slice(w.entries, func(i, j int) bool { return w.entries[i].expiresMs < w.entries[j].expiresMs })
}

// Cancel removes a previously scheduled timer matching sink and id, if any.
func (w *TimerWheel) Cancel(sink PollEvents, id int) {
	for i, e := range w.entries {
		if e.sink == sink && e.id == id {
			w.entries = append(w.entries[:i], w.entries[i+1:]...)
			return
		}
	}
}

// Execute fires every timer whose deadline has passed and returns the
// duration until the next pending deadline (or -1 if none remain), for use
// as the poller's next wait timeout.
func (w *TimerWheel) Execute() time.Duration {
	if len(w.entries) == 0 {
		return -1
	}
	now := clock.NowMs()
	for len(w.entries) > 0 && w.entries[0].expiresMs <= now {
		e := w.entries[0]
		w.entries = w.entries[1:]
		e.sink.TimerEvent(e.id)
	}
	if len(w.entries) == 0 {
		return -1
	}
	return time.Duration(w.entries[0].expiresMs-now) * time.Millisecond
}
