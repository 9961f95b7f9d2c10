package ioruntime

import (
	"errors"
	"sync/atomic"

	"github.com/joeycumines/go-ioruntime/blocking"
	"github.com/joeycumines/go-ioruntime/driver"
	"github.com/joeycumines/go-ioruntime/internal/threadid"
	"github.com/joeycumines/logiface"
)

// MinEntries is the floor applied by [RuntimeBuilder.WithEntries].
const MinEntries uint32 = 256

// ErrBuilderConsumed is returned by Build if the builder (or one it was
// derived from) has already been built.
var ErrBuilderConsumed = errors.New("ioruntime: builder already consumed")

type (
	// RuntimeBuilder stages the configuration of a runtime. D selects the
	// construction path, and is never used as a value.
	//
	// Builders are values. Each configuration method returns a modified copy,
	// and Build consumes every builder derived from the same call to [New].
	RuntimeBuilder[D Buildable] struct {
		settings
		consumed *atomic.Bool
	}

	// settings is everything copied between builders of different kinds.
	settings struct {
		logger   *logiface.Logger[logiface.Event]
		blocking blocking.Handle
		uring    driver.UringOptions
		// zero if unset
		entries uint32
		// set while building the inner driver of Timed
		timer bool
	}
)

// New returns a builder with default configuration: backend default entries,
// no logger, and [blocking.StrategyPanic].
func New[D Buildable]() RuntimeBuilder[D] {
	return RuntimeBuilder[D]{consumed: new(atomic.Bool)}
}

// WithEntries sets the ring depth (io_uring) or the events collected per
// poll (legacy). Values below [MinEntries] are raised to it.
func (x RuntimeBuilder[D]) WithEntries(entries uint32) RuntimeBuilder[D] {
	x.entries = max(entries, MinEntries)
	return x
}

// Entries returns the configured entries, if set.
func (x RuntimeBuilder[D]) Entries() (uint32, bool) {
	return x.entries, x.entries != 0
}

// WithUringOptions replaces the io_uring setup options. They are ignored by
// the legacy backend.
func (x RuntimeBuilder[D]) WithUringOptions(opts driver.UringOptions) RuntimeBuilder[D] {
	x.uring = opts
	return x
}

// AttachThreadPool routes blocking tasks to pool, replacing any strategy set
// by WithBlockingStrategy.
func (x RuntimeBuilder[D]) AttachThreadPool(pool blocking.ThreadPool) RuntimeBuilder[D] {
	x.blocking = blocking.Attached(pool)
	return x
}

// WithBlockingStrategy sets the behavior for blocking tasks, replacing any
// thread pool set by AttachThreadPool. Note that
// [blocking.StrategyExecuteLocal] stalls the runtime while the task runs.
func (x RuntimeBuilder[D]) WithBlockingStrategy(strategy blocking.Strategy) RuntimeBuilder[D] {
	x.blocking = blocking.Empty(strategy)
	return x
}

// Blocking returns the blocking configuration.
func (x RuntimeBuilder[D]) Blocking() blocking.Handle {
	return x.blocking
}

// WithLogger sets the logger used by the runtime and its driver.
func (x RuntimeBuilder[D]) WithLogger(logger *logiface.Logger[logiface.Event]) RuntimeBuilder[D] {
	x.logger = logger
	return x
}

// Build constructs the runtime. It fails with [ErrBuilderConsumed] if called
// more than once, and otherwise returns the backend's construction error, if
// any, in which case no resources are retained.
func (x RuntimeBuilder[D]) Build() (*Runtime, error) {
	if x.consumed != nil && !x.consumed.CompareAndSwap(false, true) {
		return nil, ErrBuilderConsumed
	}
	return x.build(threadid.Gen())
}

func (x RuntimeBuilder[D]) build(threadID uint64) (*Runtime, error) {
	var d D
	return d.build(x.settings, threadID)
}

// EnableTimer converts x to build a timer decorated runtime, carrying over
// all configuration.
func EnableTimer[D TimeWrappable](x RuntimeBuilder[D]) RuntimeBuilder[Timed[D]] {
	return RuntimeBuilder[Timed[D]]{settings: x.settings, consumed: x.consumed}
}

// EnableAll enables every optional capability, which is currently only the
// timer, see [EnableTimer].
func EnableAll[D TimeWrappable](x RuntimeBuilder[D]) RuntimeBuilder[Timed[D]] {
	return EnableTimer(x)
}

func (x settings) driverConfig(threadID uint64) driver.Config {
	return driver.Config{
		Logger:   x.logger,
		Uring:    x.uring,
		ThreadID: threadID,
		Entries:  x.entries,
	}
}
