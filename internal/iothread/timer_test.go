package iothread

import (
	"testing"
	"time"
)

type fakeSink struct{ fired []int }

func (f *fakeSink) InEvent()         {}
func (f *fakeSink) OutEvent()        {}
func (f *fakeSink) TimerEvent(id int) { f.fired = append(f.fired, id) }

func TestTimerWheelFiresExpiredEntriesInOrder(t *testing.T) {
	w := NewTimerWheel()
	sink := &fakeSink{}
	w.Add(0, sink, 1)
	w.Add(0, sink, 2)

	time.Sleep(2 * time.Millisecond)
	remaining := w.Execute()

	if len(sink.fired) != 2 || sink.fired[0] != 1 || sink.fired[1] != 2 {
		t.Fatalf("fired = %v, want [1 2] in insertion order", sink.fired)
	}
	if remaining != -1 {
		t.Fatalf("remaining = %v, want -1 once the wheel is empty", remaining)
	}
}

func TestTimerWheelCancelRemovesEntry(t *testing.T) {
	w := NewTimerWheel()
	sink := &fakeSink{}
	w.Add(time.Hour, sink, 1)
	w.Cancel(sink, 1)

	if len(w.entries) != 0 {
		t.Fatalf("entries = %d, want 0 after Cancel", len(w.entries))
	}
}

func TestTimerWheelReportsTimeUntilNextDeadline(t *testing.T) {
	w := NewTimerWheel()
	sink := &fakeSink{}
	w.Add(time.Hour, sink, 1)

	remaining := w.Execute()
	if remaining <= 0 || remaining > time.Hour {
		t.Fatalf("remaining = %v, want a positive duration at most an hour", remaining)
	}
}
