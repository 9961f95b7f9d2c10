//go:build !linux || ioruntime_nouring

package driver

import (
	"time"
)

// UringCompiled reports whether the io_uring backend is part of this build.
const UringCompiled = false

// UringDriver is unavailable in this build, see [UringCompiled].
type UringDriver[S SQELayout, C CQELayout] struct{}

var _ Driver = (*UringDriver[SQE64, CQE16])(nil)

// NewUringDriver always fails with [ErrUringUnsupported].
func NewUringDriver[S SQELayout, C CQELayout](Config) (*UringDriver[S, C], error) {
	return nil, ErrUringUnsupported
}

func (x *UringDriver[S, C]) Backend() Backend         { return BackendUring }
func (x *UringDriver[S, C]) ThreadID() uint64         { return 0 }
func (x *UringDriver[S, C]) Entries() uint32          { return 0 }
func (x *UringDriver[S, C]) Inflight() int            { return 0 }
func (x *UringDriver[S, C]) Park(time.Duration) error { return ErrUringUnsupported }
func (x *UringDriver[S, C]) Close() error             { return nil }
func (x *UringDriver[S, C]) submit(opHandle) error    { return ErrUringUnsupported }

func (x *UringDriver[S, C]) cancel(opHandle) {}
