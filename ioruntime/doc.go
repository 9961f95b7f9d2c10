// Package ioruntime assembles a runtime from an I/O driver backend and
// optional capabilities.
//
// A [RuntimeBuilder] is parameterized by a marker type selecting how it is
// built:
//
//   - [Uring]: the io_uring backend, with a submission and completion entry
//     layout
//   - [Legacy]: the readiness backend (epoll, kqueue or IOCP)
//   - [Fusion]: io_uring if the running kernel permits it, else legacy
//   - [Timed]: any of the above, decorated with timers, see [EnableTimer]
//
// Example:
//
//	rt, err := ioruntime.EnableTimer(ioruntime.New[ioruntime.Fusion]().
//		WithEntries(512).
//		WithBlockingStrategy(blocking.StrategyExecuteLocal)).
//		Build()
//	if err != nil {
//		return err
//	}
//	defer rt.Close()
//
// A runtime, like the driver it owns, must be driven by a single goroutine.
package ioruntime
