// Package blocking decides what happens when runtime code needs to run a
// blocking task: hand it to an attached [ThreadPool], run it inline, or
// panic.
package blocking

import (
	"context"
	"errors"
	"fmt"
)

type (
	// Strategy is the behavior used when no thread pool is attached.
	Strategy uint8

	// ThreadPool runs blocking tasks off the runtime goroutine.
	ThreadPool interface {
		// ScheduleTask submits task, returning an error if it will never run.
		ScheduleTask(task func()) error
	}

	// Handle is either an attached thread pool or an empty strategy. The zero
	// value is the empty [StrategyPanic].
	Handle struct {
		pool     ThreadPool
		strategy Strategy
	}

	// JoinHandle is the eventual result of a blocking task.
	JoinHandle[T any] struct {
		done  chan struct{}
		value T
		err   error
	}
)

const (
	// StrategyPanic panics on any attempt to spawn a blocking task.
	StrategyPanic Strategy = iota
	// StrategyExecuteLocal runs blocking tasks inline, on the calling
	// goroutine.
	StrategyExecuteLocal
)

var (
	// ErrBlockingDisallowed is the panic value of spawning with
	// [StrategyPanic].
	ErrBlockingDisallowed = errors.New("blocking: blocking tasks disallowed, attach a thread pool or use StrategyExecuteLocal")

	// ErrPoolClosed is returned for tasks submitted to a closed [Pool].
	ErrPoolClosed = errors.New("blocking: pool closed")
)

// String returns the string representation of the strategy.
func (x Strategy) String() string {
	switch x {
	case StrategyPanic:
		return "panic"
	case StrategyExecuteLocal:
		return "execute_local"
	default:
		return fmt.Sprintf("Strategy(%d)", x)
	}
}

// ParseStrategy is the inverse of [Strategy.String].
func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case "panic":
		return StrategyPanic, nil
	case "execute_local":
		return StrategyExecuteLocal, nil
	default:
		return 0, fmt.Errorf("blocking: unknown strategy %q", s)
	}
}

// Attached returns a handle submitting to pool.
func Attached(pool ThreadPool) Handle {
	if pool == nil {
		panic("blocking: nil thread pool")
	}
	return Handle{pool: pool}
}

// Empty returns a handle without a thread pool.
func Empty(strategy Strategy) Handle {
	return Handle{strategy: strategy}
}

// Pool returns the attached thread pool, if any.
func (x Handle) Pool() (ThreadPool, bool) {
	return x.pool, x.pool != nil
}

// Strategy returns the empty strategy, which is only meaningful if no pool
// is attached.
func (x Handle) Strategy() Strategy {
	return x.strategy
}

// String describes the handle, e.g. for logging.
func (x Handle) String() string {
	if x.pool != nil {
		return "pool"
	}
	return x.strategy.String()
}

// Spawn runs fn according to h. Spawning with [StrategyPanic] panics with
// [ErrBlockingDisallowed]. If fn panics, the join handle reports an error.
func Spawn[T any](h Handle, fn func() (T, error)) *JoinHandle[T] {
	j := &JoinHandle[T]{done: make(chan struct{})}
	run := func() {
		defer close(j.done)
		defer func() {
			if r := recover(); r != nil {
				j.err = fmt.Errorf("blocking: task panicked: %v", r)
				// the pool, or the local caller, still observes the panic
				panic(r)
			}
		}()
		j.value, j.err = fn()
	}

	if h.pool != nil {
		if err := h.pool.ScheduleTask(run); err != nil {
			j.err = err
			close(j.done)
		}
		return j
	}

	switch h.strategy {
	case StrategyExecuteLocal:
		run()
		return j
	default:
		panic(ErrBlockingDisallowed)
	}
}

// Done is closed once the task has finished, or failed to schedule.
func (x *JoinHandle[T]) Done() <-chan struct{} {
	return x.done
}

// Wait blocks until the task finishes, or ctx is canceled. It must not be
// called from the runtime goroutine unless the task runs elsewhere.
func (x *JoinHandle[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-x.done:
		return x.value, x.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
