package driver

import (
	"errors"
)

// Standard errors.
var (
	// ErrCanceled is the completion error of an [Op] that was canceled before
	// the backend reported a result.
	ErrCanceled = errors.New("driver: op canceled")

	// ErrDriverClosed is returned when operations are attempted on a closed
	// driver.
	ErrDriverClosed = errors.New("driver: driver closed")

	// ErrUringUnsupported is returned when constructing an io_uring driver on
	// a platform or build without ring support.
	ErrUringUnsupported = errors.New("driver: io_uring not supported")

	// ErrLegacyUnsupported is returned when constructing a readiness driver on
	// a platform without a poller implementation.
	ErrLegacyUnsupported = errors.New("driver: legacy driver not supported on this platform")

	// ErrSubmissionQueueFull is returned when the submission ring has no free
	// slot, even after flushing pending entries to the kernel.
	ErrSubmissionQueueFull = errors.New("driver: submission queue full")

	// ErrWaitTimeout is returned by [Op.Wait] if the op did not reach a
	// terminal state before the timeout elapsed.
	ErrWaitTimeout = errors.New("driver: wait timed out")

	// ErrFDOutOfRange is returned when registering a negative or otherwise
	// unsupported descriptor with the readiness poller.
	ErrFDOutOfRange = errors.New("driver: fd out of range (max 100000000)")

	// ErrFDAlreadyRegistered is returned when the poller already tracks fd.
	ErrFDAlreadyRegistered = errors.New("driver: fd already registered")

	// ErrFDNotRegistered is returned when the poller does not track fd.
	ErrFDNotRegistered = errors.New("driver: fd not registered")

	// ErrPollerClosed is returned by poller operations after close.
	ErrPollerClosed = errors.New("driver: poller closed")
)
