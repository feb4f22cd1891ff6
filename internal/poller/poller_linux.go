//go:build linux

package poller

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// epollPoller implements Poller on top of epoll_create1/epoll_ctl/epoll_wait,
// the same syscalls the Rust original wraps directly via libc (see
// _examples/original_source/src/network/poll.rs). golang.org/x/sys/unix is
// already a dependency of the teacher repo (used there for raw socket
// options in listen_unix.go); here it drives the readiness multiplexer
// itself, which net/http never exposes to callers.
type epollPoller struct {
	epfd   int
	events []unix.EpollEvent
}

// New creates a Linux epoll-backed Poller sized for up to maxEvents ready
// descriptors per Wait call.
func New(maxEvents int) (Poller, error) {
	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		return nil, fmt.Errorf("epoll_create1: %w", err)
	}
	if maxEvents <= 0 {
		maxEvents = 1024
	}
	return &epollPoller{epfd: epfd, events: make([]unix.EpollEvent, maxEvents)}, nil
}

func toEpollEvents(i Interest) uint32 {
	// EPOLLRDHUP is always requested so the reactor can detect a client
	// half-closing its write side while CGI is still running (spec.md
	// §4.D "Client event handling: ... react to read/write-closed").
	ev := uint32(unix.EPOLLRDHUP)
	if i&Readable != 0 {
		ev |= unix.EPOLLIN
	}
	if i&Writable != 0 {
		ev |= unix.EPOLLOUT
	}
	return ev
}

func (p *epollPoller) Add(fd int, token uint64, interest Interest) error {
	ev := unix.EpollEvent{Events: toEpollEvents(interest)}
	ev.Fd = int32(token & 0xffffffff)
	ev.Pad = int32(token >> 32)
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev)
}

func (p *epollPoller) Modify(fd int, token uint64, interest Interest) error {
	ev := unix.EpollEvent{Events: toEpollEvents(interest)}
	ev.Fd = int32(token & 0xffffffff)
	ev.Pad = int32(token >> 32)
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, &ev)
}

func (p *epollPoller) Delete(fd int) error {
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

func (p *epollPoller) Wait(timeout time.Duration) ([]Event, error) {
	ms := int(timeout / time.Millisecond)
	if timeout > 0 && ms == 0 {
		ms = 1
	}
	if ms < 0 {
		ms = 0
	}
	n, err := unix.EpollWait(p.epfd, p.events, ms)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, fmt.Errorf("epoll_wait: %w", err)
	}

	out := make([]Event, 0, n)
	for i := 0; i < n; i++ {
		raw := p.events[i]
		token := uint64(uint32(raw.Fd)) | uint64(uint32(raw.Pad))<<32
		out = append(out, Event{
			Token:       token,
			Readable:    raw.Events&unix.EPOLLIN != 0,
			Writable:    raw.Events&unix.EPOLLOUT != 0,
			ReadClosed:  raw.Events&unix.EPOLLRDHUP != 0 || raw.Events&unix.EPOLLHUP != 0,
			WriteClosed: raw.Events&unix.EPOLLHUP != 0,
			Error:       raw.Events&unix.EPOLLERR != 0,
		})
	}
	return out, nil
}

func (p *epollPoller) Close() error {
	return unix.Close(p.epfd)
}
