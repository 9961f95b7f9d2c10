package driver

import (
	"fmt"
	"time"
)

type (
	// Driver is the contract between a scheduler and an I/O backend.
	//
	// The set of implementations is closed: [UringDriver], [LegacyDriver], and
	// types embedding a Driver (e.g. the timer decorator).
	Driver interface {
		// Backend reports which kernel interface the driver is built on.
		Backend() Backend

		// ThreadID is the identifier generated when the driver was built, used
		// to detect accidental cross-thread use.
		ThreadID() uint64

		// Park collects completions (or readiness) and completes the relevant
		// ops. A negative timeout blocks until at least one event, zero polls
		// without blocking.
		Park(timeout time.Duration) error

		// Close tears the driver down. In-flight ops complete with
		// [ErrCanceled].
		Close() error

		submit(op opHandle) error
		cancel(op opHandle)
	}

	// OpAble is implemented by the state of every operation kind, describing
	// how it is expressed to each backend.
	//
	// Only the methods relevant to the backends an operation kind is used with
	// need be functional. Embed [UnimplementedOpAble] to panic for the rest.
	OpAble interface {
		// UringOp returns the narrow (64-byte) submission entry. User data is
		// assigned by the driver.
		UringOp() Entry

		// UringOpWide returns the wide (128-byte) submission entry, used by
		// rings set up with [SQE128].
		UringOpWide() Entry128

		// LegacyInterest reports the readiness the legacy backend must wait
		// for, or false if LegacyCall may be performed immediately.
		LegacyInterest() (Interest, bool)

		// LegacyCall performs the syscall directly. An error satisfying
		// would-block semantics (EAGAIN) causes the call to be retried once the
		// interest is ready.
		LegacyCall() (uint32, error)
	}

	// Releaser may be implemented by an [OpAble], to release resources (e.g.
	// a [SharedFd] clone) once the backend no longer references the op.
	Releaser interface {
		Release()
	}

	// Direction is the readiness a legacy operation waits for.
	Direction uint8

	// Interest is the legacy registration of an operation.
	Interest struct {
		Direction Direction
		// Index is the logical resource the readiness backend watches, which
		// is the descriptor.
		Index int
	}

	// Completion is the terminal result of an [Op].
	Completion struct {
		// Err is the failure, if any. Canceled ops report [ErrCanceled].
		Err error
		// Result is the non-negative result (e.g. bytes transferred).
		Result uint32
		// Flags are the io_uring CQE flags, always zero for the legacy backend.
		Flags uint32
	}

	// OpState is the lifecycle state of an [Op].
	OpState uint8

	// Op is one asynchronous operation, carrying state T.
	//
	// Ops move strictly through OpConstructed, OpSubmitted and OpInFlight,
	// then end in either OpCompleted or OpCanceled.
	Op[T OpAble] struct {
		data       T
		driver     Driver
		done       chan struct{}
		completion Completion
		tok        uint64
		state      OpState
		released   bool
	}

	// opHandle is the driver's view of an [Op], erasing T.
	opHandle interface {
		opData() OpAble
		token() uint64
		setToken(tok uint64)
		markInFlight()
		complete(c Completion)
	}

	// UnimplementedOpAble implements [OpAble], panicking in every method.
	UnimplementedOpAble struct{}
)

const (
	DirectionRead Direction = iota + 1
	DirectionWrite
)

const (
	OpConstructed OpState = iota
	OpSubmitted
	OpInFlight
	OpCompleted
	OpCanceled
)

var (
	// compile time assertions

	_ OpAble   = UnimplementedOpAble{}
	_ opHandle = (*Op[UnimplementedOpAble])(nil)
)

// String returns the string representation of the direction.
func (x Direction) String() string {
	switch x {
	case DirectionRead:
		return "read"
	case DirectionWrite:
		return "write"
	default:
		return fmt.Sprintf("Direction(%d)", x)
	}
}

// String returns the string representation of the state.
func (x OpState) String() string {
	switch x {
	case OpConstructed:
		return "constructed"
	case OpSubmitted:
		return "submitted"
	case OpInFlight:
		return "in-flight"
	case OpCompleted:
		return "completed"
	case OpCanceled:
		return "canceled"
	default:
		return fmt.Sprintf("OpState(%d)", x)
	}
}

func (UnimplementedOpAble) UringOp() Entry {
	panic("driver: UringOp not implemented for this operation")
}

func (UnimplementedOpAble) UringOpWide() Entry128 {
	panic("driver: UringOpWide not implemented for this operation")
}

func (UnimplementedOpAble) LegacyInterest() (Interest, bool) {
	panic("driver: LegacyInterest not implemented for this operation")
}

func (UnimplementedOpAble) LegacyCall() (uint32, error) {
	panic("driver: LegacyCall not implemented for this operation")
}

// Submit hands data to d, returning the in-flight op. On error, or if the
// backend panics, the op was never in flight, and data has been released.
func Submit[T OpAble](d Driver, data T) (*Op[T], error) {
	op := &Op[T]{
		data:   data,
		driver: d,
		done:   make(chan struct{}),
		state:  OpSubmitted,
	}
	var submitted bool
	defer func() {
		// also reached by contract violation panics
		if !submitted {
			op.state = OpConstructed
			op.release()
		}
	}()
	if err := d.submit(op); err != nil {
		return nil, err
	}
	submitted = true
	return op, nil
}

// Data returns the operation state. The backend may still be using it (e.g.
// a read buffer) until the op reaches a terminal state.
func (x *Op[T]) Data() T {
	return x.data
}

// State returns the current lifecycle state.
func (x *Op[T]) State() OpState {
	return x.state
}

// Done is closed once the op reaches a terminal state.
func (x *Op[T]) Done() <-chan struct{} {
	return x.done
}

// Completion returns the result, and true, if the op is completed or
// canceled.
func (x *Op[T]) Completion() (Completion, bool) {
	switch x.state {
	case OpCompleted, OpCanceled:
		return x.completion, true
	default:
		return Completion{}, false
	}
}

// Cancel drops interest in the op. If it was still in flight, it completes
// with [ErrCanceled], otherwise Cancel is a no-op. The backend decides when
// the op's resources are released.
func (x *Op[T]) Cancel() {
	if x.state != OpInFlight {
		return
	}
	x.state = OpCanceled
	x.completion = Completion{Err: ErrCanceled}
	close(x.done)
	x.driver.cancel(x)
}

// Wait parks the driver until the op reaches a terminal state. A negative
// timeout waits indefinitely, and zero polls once. Wait must be called from
// the goroutine that owns the driver.
func (x *Op[T]) Wait(timeout time.Duration) (Completion, error) {
	var deadline time.Time
	if timeout >= 0 {
		deadline = time.Now().Add(timeout)
	}
	for {
		if c, ok := x.Completion(); ok {
			return c, nil
		}
		park := time.Duration(-1)
		if timeout >= 0 {
			park = max(time.Until(deadline), 0)
		}
		if err := x.driver.Park(park); err != nil {
			return Completion{}, err
		}
		if c, ok := x.Completion(); ok {
			return c, nil
		}
		if timeout >= 0 && !time.Now().Before(deadline) {
			return Completion{}, ErrWaitTimeout
		}
	}
}

func (x *Op[T]) opData() OpAble { return x.data }

func (x *Op[T]) token() uint64 { return x.tok }

func (x *Op[T]) setToken(tok uint64) { x.tok = tok }

func (x *Op[T]) markInFlight() {
	if x.state != OpSubmitted {
		panic(fmt.Sprintf("driver: op marked in-flight in state %s", x.state))
	}
	x.state = OpInFlight
}

// complete is called once, when the backend no longer references the op.
func (x *Op[T]) complete(c Completion) {
	switch x.state {
	case OpInFlight:
		x.completion = c
		x.state = OpCompleted
		close(x.done)
	case OpCanceled:
	default:
		panic(fmt.Sprintf("driver: op completed in state %s", x.state))
	}
	x.release()
}

func (x *Op[T]) release() {
	if x.released {
		return
	}
	x.released = true
	if r, ok := any(x.data).(Releaser); ok {
		r.Release()
	}
}
