package driver

import (
	"sync"
	"sync/atomic"
)

type (
	// SharedFd is one owner's handle to a reference-counted raw descriptor.
	//
	// Each handle, whether returned by [NewSharedFd] or [SharedFd.Clone], must
	// be released exactly once. The descriptor is closed when the last handle
	// is released, and at no other time. Releasing the same handle more than
	// once is a no-op, so a deferred Release may safely follow an explicit one.
	SharedFd struct {
		inner    *sharedFdInner
		released atomic.Bool
	}

	sharedFdInner struct {
		closer   func(fd int) error
		closeErr error
		refs     atomic.Int64
		fd       int
		once     sync.Once
	}
)

// NewSharedFd takes ownership of fd, returning the first handle to it.
func NewSharedFd(fd int) *SharedFd {
	return NewSharedFdWithCloser(fd, closeFD)
}

// NewSharedFdWithCloser is [NewSharedFd] with a custom close function, which
// will be called at most once.
func NewSharedFdWithCloser(fd int, closer func(fd int) error) *SharedFd {
	inner := &sharedFdInner{fd: fd, closer: closer}
	inner.refs.Store(1)
	return &SharedFd{inner: inner}
}

// RawFd returns the descriptor. The value never changes, but it is only
// guaranteed to be open while x is unreleased.
func (x *SharedFd) RawFd() int {
	return x.inner.fd
}

// Refs returns the number of unreleased handles.
func (x *SharedFd) Refs() int64 {
	return x.inner.refs.Load()
}

// Clone returns a new handle to the same descriptor. It panics if x has
// already been released, as the descriptor may have been closed.
func (x *SharedFd) Clone() *SharedFd {
	if x.released.Load() {
		panic("driver: clone of released SharedFd")
	}
	x.inner.refs.Add(1)
	return &SharedFd{inner: x.inner}
}

// Release drops this handle. The descriptor is closed if this was the last
// handle, in which case the close error (if any) is returned.
func (x *SharedFd) Release() error {
	if x == nil || !x.released.CompareAndSwap(false, true) {
		return nil
	}
	switch refs := x.inner.refs.Add(-1); {
	case refs > 0:
		return nil
	case refs < 0:
		panic("driver: SharedFd reference count underflow")
	}
	x.inner.once.Do(func() {
		x.inner.closeErr = x.inner.closer(x.inner.fd)
	})
	return x.inner.closeErr
}
