//go:build darwin

package driver

import (
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// fastPoller manages readiness registration using kqueue (Darwin).
type fastPoller struct {
	eventBuf []unix.Kevent_t
	table    fdTable
	kq       int32
	closed   atomic.Bool
}

// Init initializes the kqueue instance, polling at most batch events per
// call.
func (p *fastPoller) Init(batch int) error {
	if p.closed.Load() {
		return ErrPollerClosed
	}

	kq, err := unix.Kqueue()
	if err != nil {
		return err
	}
	unix.CloseOnExec(kq)
	p.kq = int32(kq)
	p.eventBuf = make([]unix.Kevent_t, batch)
	p.table.init()

	return nil
}

// Close closes the kqueue instance.
func (p *fastPoller) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	if p.kq > 0 {
		return unix.Close(int(p.kq))
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

	if kevents := eventsToKevents(fd, events, unix.EV_ADD|unix.EV_ENABLE); len(kevents) > 0 {
		if _, err := unix.Kevent(int(p.kq), kevents, nil, nil); err != nil {
			rollback()
			return err
		}
	}
	return nil
}

// UnregisterFD removes a file descriptor from monitoring.
func (p *fastPoller) UnregisterFD(fd int) error {
	events, err := p.table.remove(fd)
	if err != nil {
		return err
	}
	if kevents := eventsToKevents(fd, events, unix.EV_DELETE); len(kevents) > 0 {
		_, _ = unix.Kevent(int(p.kq), kevents, nil, nil) // ignore errors on delete
	}
	return nil
}

// ModifyFD updates the events being monitored for a file descriptor.
func (p *fastPoller) ModifyFD(fd int, events ioEvents) error {
	oldEvents, err := p.table.modify(fd, events)
	if err != nil {
		return err
	}

	if oldEvents&^events != 0 {
		if kevents := eventsToKevents(fd, oldEvents&^events, unix.EV_DELETE); len(kevents) > 0 {
			_, _ = unix.Kevent(int(p.kq), kevents, nil, nil)
		}
	}

	if events&^oldEvents != 0 {
		if kevents := eventsToKevents(fd, events&^oldEvents, unix.EV_ADD|unix.EV_ENABLE); len(kevents) > 0 {
			if _, err := unix.Kevent(int(p.kq), kevents, nil, nil); err != nil {
				return err
			}
		}
	}
	return nil
}

// PollIO waits up to timeoutMs (-1 blocks) and dispatches callbacks inline,
// returning the number of events processed.
func (p *fastPoller) PollIO(timeoutMs int) (int, error) {
	if p.closed.Load() {
		return 0, ErrPollerClosed
	}

	var ts *unix.Timespec
	if timeoutMs >= 0 {
		ts = &unix.Timespec{
			Sec:  int64(timeoutMs / 1000),
			Nsec: int64((timeoutMs % 1000) * 1000000),
		}
	}

	n, err := unix.Kevent(int(p.kq), nil, p.eventBuf, ts)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}

	for i := 0; i < n; i++ {
		p.table.dispatch(int(p.eventBuf[i].Ident), keventToEvents(&p.eventBuf[i]))
	}

	return n, nil
}

func eventsToKevents(fd int, events ioEvents, flags uint16) []unix.Kevent_t {
	var kevents []unix.Kevent_t
	if events&eventRead != 0 {
		kevents = append(kevents, unix.Kevent_t{
			Ident:  uint64(fd),
			Filter: unix.EVFILT_READ,
			Flags:  flags,
		})
	}
	if events&eventWrite != 0 {
		kevents = append(kevents, unix.Kevent_t{
			Ident:  uint64(fd),
			Filter: unix.EVFILT_WRITE,
			Flags:  flags,
		})
	}
	return kevents
}

func keventToEvents(kev *unix.Kevent_t) ioEvents {
	var events ioEvents
	switch kev.Filter {
	case unix.EVFILT_READ:
		events |= eventRead
	case unix.EVFILT_WRITE:
		events |= eventWrite
	}
	if kev.Flags&unix.EV_ERROR != 0 {
		events |= eventError
	}
	if kev.Flags&unix.EV_EOF != 0 {
		events |= eventHangup
	}
	return events
}
