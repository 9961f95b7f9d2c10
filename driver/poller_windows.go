//go:build windows

package driver

import (
	"errors"
	"sync/atomic"

	"golang.org/x/sys/windows"
)

// fastPoller manages handle registration using IOCP (Windows).
//
// Handles are associated with the port using their value as the completion
// key. Completion packets are reported to the callback as readiness in every
// registered direction, causing waiting calls to be retried.
type fastPoller struct {
	table  fdTable
	iocp   windows.Handle
	batch  int
	closed atomic.Bool
}

// Init creates the completion port. IOCP dequeues one packet per wait, batch
// bounds the packets drained by a single PollIO.
func (p *fastPoller) Init(batch int) error {
	if p.closed.Load() {
		return ErrPollerClosed
	}

	iocp, err := windows.CreateIoCompletionPort(windows.InvalidHandle, 0, 0, 0)
	if err != nil {
		return err
	}
	p.iocp = iocp
	p.batch = batch
	p.table.init()

	return nil
}

// Close closes the completion port.
func (p *fastPoller) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	if p.iocp != 0 {
		return windows.CloseHandle(p.iocp)
	}
	return nil
}

// RegisterFD associates a handle with the port.
func (p *fastPoller) RegisterFD(fd int, events ioEvents, cb ioCallback) error {
	if p.closed.Load() {
		return ErrPollerClosed
	}

	rollback, err := p.table.add(fd, events, cb)
	if err != nil {
		return err
	}

	if _, err := windows.CreateIoCompletionPort(windows.Handle(fd), p.iocp, uintptr(fd), 0); err != nil {
		rollback()
		return err
	}
	return nil
}

// UnregisterFD stops dispatching for a handle. The association with the port
// ends when the handle is closed.
func (p *fastPoller) UnregisterFD(fd int) error {
	_, err := p.table.remove(fd)
	return err
}

// ModifyFD updates the tracked directions of a handle.
func (p *fastPoller) ModifyFD(fd int, events ioEvents) error {
	_, err := p.table.modify(fd, events)
	return err
}

// PollIO waits up to timeoutMs (-1 blocks) for the first packet, then drains
// any further queued packets without waiting.
func (p *fastPoller) PollIO(timeoutMs int) (int, error) {
	if p.closed.Load() {
		return 0, ErrPollerClosed
	}

	timeout := uint32(windows.INFINITE)
	if timeoutMs >= 0 {
		timeout = uint32(timeoutMs)
	}

	var n int
	for n < p.batch {
		var (
			bytes      uint32
			key        uintptr
			overlapped *windows.Overlapped
		)
		err := windows.GetQueuedCompletionStatus(p.iocp, &bytes, &key, &overlapped, timeout)
		if err != nil && overlapped == nil {
			if errors.Is(err, windows.WAIT_TIMEOUT) {
				return n, nil
			}
			if errors.Is(err, windows.ERROR_ABANDONED_WAIT_0) || errors.Is(err, windows.ERROR_INVALID_HANDLE) {
				return n, ErrPollerClosed
			}
			return n, err
		}
		timeout = 0
		n++

		events := eventRead | eventWrite
		if err != nil {
			events |= eventError
		}
		p.table.dispatch(int(key), events)
	}

	return n, nil
}
