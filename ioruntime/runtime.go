package ioruntime

import (
	"errors"
	"time"

	"github.com/joeycumines/go-ioruntime/blocking"
	"github.com/joeycumines/go-ioruntime/driver"
	"github.com/joeycumines/go-ioruntime/timer"
	"github.com/joeycumines/logiface"
)

type (
	// Runtime pairs one driver with its [Context]. It must be closed.
	Runtime struct {
		driver  driver.Driver
		context *Context
		logger  *logiface.Logger[logiface.Event]
		// run after the driver is closed, in order
		closers []func() error
		closed  bool
	}

	// Context is the state shared with code running on a [Runtime].
	Context struct {
		// TimeHandle is non-nil if the runtime was built with timers.
		TimeHandle *timer.Handle

		// Blocking is the blocking task configuration.
		Blocking blocking.Handle

		// ThreadID was generated for the build call, and tags the driver.
		ThreadID uint64
	}
)

func newRuntime(d driver.Driver, s settings, threadID uint64) *Runtime {
	return &Runtime{
		driver: d,
		context: &Context{
			Blocking: s.blocking,
			ThreadID: threadID,
		},
		logger: s.logger,
	}
}

// Driver returns the driver, for submitting ops, e.g. [driver.IssueCmd].
// Timer runtimes return a [*timer.TimeDriver].
func (x *Runtime) Driver() driver.Driver { return x.driver }

// Context returns the runtime's context.
func (x *Runtime) Context() *Context { return x.context }

// Backend returns the backend of the driver.
func (x *Runtime) Backend() driver.Backend { return x.driver.Backend() }

// Park drives the runtime, see [driver.Driver.Park].
func (x *Runtime) Park(timeout time.Duration) error { return x.driver.Park(timeout) }

// Close tears down the driver, cancelling pending timers and in-flight ops.
// Subsequent calls are no-ops.
func (x *Runtime) Close() error {
	if x.closed {
		return nil
	}
	x.closed = true
	errs := []error{x.driver.Close()}
	for _, fn := range x.closers {
		errs = append(errs, fn())
	}
	err := errors.Join(errs...)
	if err != nil {
		x.logger.Warning().
			Err(err).
			Uint64("thread", x.context.ThreadID).
			Log("runtime close failed")
	}
	return err
}

// onClose registers fn to run once the driver is closed.
func (x *Runtime) onClose(fn func() error) {
	x.closers = append(x.closers, fn)
}

// SpawnBlocking runs fn according to the runtime's blocking configuration,
// see [blocking.Spawn].
func SpawnBlocking[T any](rt *Runtime, fn func() (T, error)) *blocking.JoinHandle[T] {
	return blocking.Spawn(rt.context.Blocking, fn)
}
