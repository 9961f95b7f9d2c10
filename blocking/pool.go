package blocking

import (
	"context"
	"fmt"
	"sync"

	"github.com/joeycumines/logiface"
	"golang.org/x/sync/semaphore"
)

// Pool is a reference [ThreadPool], running at most size tasks at once, each
// on its own goroutine. Tasks are never rejected for capacity, they queue.
type Pool struct {
	logger *logiface.Logger[logiface.Event]
	sem    *semaphore.Weighted
	wg     sync.WaitGroup
	mu     sync.RWMutex
	size   int
	closed bool
}

var _ ThreadPool = (*Pool)(nil)

// NewPool initializes a Pool. The logger is optional. A panic will occur if
// size is not positive.
func NewPool(size int, logger *logiface.Logger[logiface.Event]) *Pool {
	if size <= 0 {
		panic(fmt.Sprintf("blocking: invalid pool size %d", size))
	}
	return &Pool{
		logger: logger,
		sem:    semaphore.NewWeighted(int64(size)),
		size:   size,
	}
}

// Size returns the maximum number of concurrently running tasks.
func (x *Pool) Size() int {
	return x.size
}

// ScheduleTask queues task, returning [ErrPoolClosed] after Close or
// Shutdown.
func (x *Pool) ScheduleTask(task func()) error {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.closed {
		return ErrPoolClosed
	}
	x.wg.Add(1)
	go x.run(task)
	return nil
}

func (x *Pool) run(task func()) {
	defer x.wg.Done()
	// never fails, the context is never canceled
	_ = x.sem.Acquire(context.Background(), 1)
	defer x.sem.Release(1)
	defer func() {
		if r := recover(); r != nil {
			x.logger.Err().
				Str("panic", fmt.Sprint(r)).
				Log("blocking task panicked")
		}
	}()
	task()
}

// Shutdown prevents further tasks, then waits for queued and running tasks,
// returning early if ctx is canceled.
func (x *Pool) Shutdown(ctx context.Context) error {
	x.mu.Lock()
	x.closed = true
	x.mu.Unlock()

	done := make(chan struct{})
	go func() {
		x.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close is Shutdown without a deadline.
func (x *Pool) Close() error {
	return x.Shutdown(context.Background())
}
