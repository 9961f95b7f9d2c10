package driver

import (
	"sync"
)

// initialFDs sizes the registration table up front, it grows on demand.
const initialFDs = 1024

// maxFDLimit is the maximum fd value the pollers accept.
const maxFDLimit = 100000000

// ioEvents is the readiness reported by a poller.
type ioEvents uint32

const (
	eventRead ioEvents = 1 << iota
	eventWrite
	eventError
	eventHangup
)

// ioCallback is invoked inline by the poller, for each ready fd.
type ioCallback func(fd int, events ioEvents)

// fdInfo stores per-FD callback information.
type fdInfo struct {
	callback ioCallback
	events   ioEvents
	active   bool
}

// fdTable is the registration state shared by the platform pollers, indexed
// directly by fd.
type fdTable struct {
	fds []fdInfo
	mu  sync.RWMutex
}

func (t *fdTable) init() {
	t.fds = make([]fdInfo, initialFDs)
}

// add registers fd, growing the table as necessary. The returned rollback
// func clears the registration, for when the kernel rejects it.
func (t *fdTable) add(fd int, events ioEvents, cb ioCallback) (rollback func(), err error) {
	if fd < 0 || fd >= maxFDLimit {
		return nil, ErrFDOutOfRange
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if fd >= len(t.fds) {
		newSize := fd*2 + 1
		if newSize > maxFDLimit {
			newSize = maxFDLimit + 1
		}
		newFds := make([]fdInfo, newSize)
		copy(newFds, t.fds)
		t.fds = newFds
	}

	if t.fds[fd].active {
		return nil, ErrFDAlreadyRegistered
	}

	t.fds[fd] = fdInfo{callback: cb, events: events, active: true}

	return func() {
		t.mu.Lock()
		t.fds[fd] = fdInfo{}
		t.mu.Unlock()
	}, nil
}

// remove clears fd, returning the events it was registered for.
func (t *fdTable) remove(fd int) (ioEvents, error) {
	if fd < 0 {
		return 0, ErrFDOutOfRange
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if fd >= len(t.fds) || !t.fds[fd].active {
		return 0, ErrFDNotRegistered
	}

	events := t.fds[fd].events
	t.fds[fd] = fdInfo{}
	return events, nil
}

// modify updates the events of fd, returning the previous value.
func (t *fdTable) modify(fd int, events ioEvents) (ioEvents, error) {
	if fd < 0 {
		return 0, ErrFDOutOfRange
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if fd >= len(t.fds) || !t.fds[fd].active {
		return 0, ErrFDNotRegistered
	}

	old := t.fds[fd].events
	t.fds[fd].events = events
	return old, nil
}

// dispatch copies the registration under the read lock, then runs the
// callback outside it, so callbacks may modify registrations.
func (t *fdTable) dispatch(fd int, events ioEvents) {
	if fd < 0 {
		return
	}

	t.mu.RLock()
	var info fdInfo
	if fd < len(t.fds) {
		info = t.fds[fd]
	}
	t.mu.RUnlock()

	if info.active && info.callback != nil {
		info.callback(fd, events)
	}
}
