package timer

import (
	"errors"
	"time"

	"github.com/joeycumines/go-ioruntime/driver"
)

// TimeDriver decorates a driver with timers. Parking is bounded by the
// earliest timer deadline, after which due callbacks are run.
//
// Every other [driver.Driver] method, including op submission, is forwarded
// to the inner driver.
type TimeDriver[D driver.Driver] struct {
	driver.Driver
	inner  D
	handle *Handle
}

var _ driver.Driver = (*TimeDriver[*driver.LegacyDriver])(nil)

// NewTimeDriver wraps inner, using clock for deadlines. The result takes
// ownership of inner.
func NewTimeDriver[D driver.Driver](inner D, clock Clock) *TimeDriver[D] {
	return &TimeDriver[D]{
		Driver: inner,
		inner:  inner,
		handle: newHandle(clock),
	}
}

// Inner returns the decorated driver.
func (x *TimeDriver[D]) Inner() D { return x.inner }

// Handle returns the timer handle, which may be retained and shared.
func (x *TimeDriver[D]) Handle() *Handle { return x.handle }

// Park waits for I/O, for at most timeout (negative blocks), shortened to
// the earliest timer deadline, then runs due timers.
func (x *TimeDriver[D]) Park(timeout time.Duration) error {
	if deadline, ok := x.handle.next(); ok {
		wait := max(deadline.Sub(x.handle.Now()), 0)
		if timeout < 0 || wait < timeout {
			timeout = wait
		}
	}
	err := x.Driver.Park(timeout)
	if !errors.Is(err, driver.ErrDriverClosed) {
		x.handle.fire(x.handle.Now())
	}
	return err
}

// Close drops pending timers, then closes the inner driver.
func (x *TimeDriver[D]) Close() error {
	x.handle.shutdown()
	return x.Driver.Close()
}
