//go:build linux

package driver

import (
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// fastPoller manages readiness registration using epoll (Linux).
type fastPoller struct {
	eventBuf []unix.EpollEvent
	table    fdTable
	epfd     int32
	closed   atomic.Bool
}

// Init initializes the epoll instance, polling at most batch events per
// call.
func (p *fastPoller) Init(batch int) error {
	if p.closed.Load() {
		return ErrPollerClosed
	}

	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return err
	}
	p.epfd = int32(epfd)
	p.eventBuf = make([]unix.EpollEvent, batch)
	p.table.init()

	return nil
}

// Close closes the epoll instance.
func (p *fastPoller) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	if p.epfd > 0 {
		return unix.Close(int(p.epfd))
	}
	return nil
}

// RegisterFD registers a file descriptor for readiness monitoring.
func (p *fastPoller) RegisterFD(fd int, events ioEvents, cb ioCallback) error {
	if p.closed.Load() {
		return ErrPollerClosed
	}

	rollback, err := p.table.add(fd, events, cb)
	if err != nil {
		return err
	}

	ev := &unix.EpollEvent{
		Events: eventsToEpoll(events),
		Fd:     int32(fd),
	}
	if err := unix.EpollCtl(int(p.epfd), unix.EPOLL_CTL_ADD, fd, ev); err != nil {
		rollback()
		return err
	}
	return nil
}

// UnregisterFD removes a file descriptor from monitoring.
func (p *fastPoller) UnregisterFD(fd int) error {
	if _, err := p.table.remove(fd); err != nil {
		return err
	}
	return unix.EpollCtl(int(p.epfd), unix.EPOLL_CTL_DEL, fd, nil)
}

// ModifyFD updates the events being monitored for a file descriptor.
func (p *fastPoller) ModifyFD(fd int, events ioEvents) error {
	if _, err := p.table.modify(fd, events); err != nil {
		return err
	}

	ev := &unix.EpollEvent{
		Events: eventsToEpoll(events),
		Fd:     int32(fd),
	}
	return unix.EpollCtl(int(p.epfd), unix.EPOLL_CTL_MOD, fd, ev)
}

// PollIO waits up to timeoutMs (-1 blocks) and dispatches callbacks inline,
// returning the number of events processed.
func (p *fastPoller) PollIO(timeoutMs int) (int, error) {
	if p.closed.Load() {
		return 0, ErrPollerClosed
	}

	n, err := unix.EpollWait(int(p.epfd), p.eventBuf, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}

	for i := 0; i < n; i++ {
		p.table.dispatch(int(p.eventBuf[i].Fd), epollToEvents(p.eventBuf[i].Events))
	}

	return n, nil
}

func eventsToEpoll(events ioEvents) uint32 {
	var epollEvents uint32
	if events&eventRead != 0 {
		epollEvents |= unix.EPOLLIN
	}
	if events&eventWrite != 0 {
		epollEvents |= unix.EPOLLOUT
	}
	return epollEvents
}

func epollToEvents(epollEvents uint32) ioEvents {
	var events ioEvents
	if epollEvents&unix.EPOLLIN != 0 {
		events |= eventRead
	}
	if epollEvents&unix.EPOLLOUT != 0 {
		events |= eventWrite
	}
	if epollEvents&unix.EPOLLERR != 0 {
		events |= eventError
	}
	if epollEvents&unix.EPOLLHUP != 0 {
		events |= eventHangup
	}
	return events
}
