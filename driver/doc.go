// Package driver implements the I/O driver layer of the runtime: the
// operation contract ([OpAble], [Op]), descriptor ownership ([SharedFd]) and
// the two concrete backends that consume operations.
//
// # Backends
//
// Two structurally different kernel interfaces sit behind one [Driver]
// contract:
//   - [UringDriver]: completion-based, operations are expressed as io_uring
//     submission entries ([Entry], or [Entry128] for wide rings)
//   - [LegacyDriver]: readiness-based, operations declare an [Interest] and
//     perform their own syscall once the descriptor is ready, using epoll
//     (Linux), kqueue (Darwin) or IOCP (Windows)
//
// The ring backend is compiled for Linux, unless the ioruntime_nouring build
// tag is set, see [UringCompiled].
//
// [DetectUring] reports whether the ring backend is usable in the current
// process. The probe runs at most once.
//
// # Thread Safety
//
// A driver, and every [Op] submitted to it, is owned by a single goroutine.
// [SharedFd] reference counting is the exception, and is safe to release from
// any goroutine.
package driver
