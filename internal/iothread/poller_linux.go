//go:build linux

package iothread

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// epollPoller is the Linux readiness backend, using golang.org/x/sys/unix
// (the ecosystem's syscall-wrapper dependency) instead of the bare syscall
// package, and edge-triggered-free level epoll matching ZMTP sockets'
// expectation of repeated POLLIN until actually drained.
type epollPoller struct {
	epfd  int
	sinks map[int]PollEvents
	buf   []unix.EpollEvent
}

// NewPoller constructs the Linux epoll-backed Poller.
func NewPoller() (Poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("iothread: epoll_create1: %w", err)
	}
	return &epollPoller{
		epfd:  epfd,
		sinks: make(map[int]PollEvents),
		buf:   make([]unix.EpollEvent, 256),
	}, nil
}

func toEpollEvents(m EventMask) uint32 {
	var ev uint32
	if m&EventRead != 0 {
		ev |= unix.EPOLLIN
	}
	if m&EventWrite != 0 {
		ev |= unix.EPOLLOUT
	}
	return ev
}

func (p *epollPoller) Add(fd int, events EventMask, sink PollEvents) error {
	ev := unix.EpollEvent{Events: toEpollEvents(events), Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return fmt.Errorf("iothread: epoll_ctl add fd=%d: %w", fd, err)
	}
	p.sinks[fd] = sink
	return nil
}

func (p *epollPoller) Modify(fd int, events EventMask) error {
	ev := unix.EpollEvent{Events: toEpollEvents(events), Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, &ev); err != nil {
		return fmt.Errorf("iothread: epoll_ctl mod fd=%d: %w", fd, err)
	}
	return nil
}

func (p *epollPoller) Remove(fd int) error {
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return fmt.Errorf("iothread: epoll_ctl del fd=%d: %w", fd, err)
	}
	delete(p.sinks, fd)
	return nil
}

func (p *epollPoller) Wait(timeout time.Duration) error {
	ms := -1
	if timeout >= 0 {
		ms = int(timeout / time.Millisecond)
	}
	n, err := unix.EpollWait(p.epfd, p.buf, ms)
	if err != nil {
		if err == unix.EINTR {
			return nil
		}
		return fmt.Errorf("iothread: epoll_wait: %w", err)
	}
	for i := 0; i < n; i++ {
		fd := int(p.buf[i].Fd)
		sink, ok := p.sinks[fd]
		if !ok {
			continue
		}
		events := p.buf[i].Events
		if events&(unix.EPOLLIN|unix.EPOLLHUP|unix.EPOLLERR) != 0 {
			sink.InEvent()
		}
		if events&unix.EPOLLOUT != 0 {
			sink.OutEvent()
		}
	}
	return nil
}

func (p *epollPoller) Close() error { return unix.Close(p.epfd) }
