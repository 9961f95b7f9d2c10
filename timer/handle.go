// Package timer implements the timer capability of the runtime, as a driver
// decorator ([TimeDriver]) exposing a [Handle] that schedules callbacks
// against a monotonic [Clock].
package timer

import (
	"container/heap"
	"sync"
	"time"
)

type (
	// TimerID identifies a scheduled callback. The zero value is never
	// assigned.
	TimerID uint64

	// Handle schedules callbacks, which are run by the goroutine parking the
	// owning [TimeDriver]. A Handle may be shared, and is safe for concurrent
	// use.
	Handle struct {
		clock  Clock
		byID   map[TimerID]*entry
		timers timerHeap
		mu     sync.Mutex
		nextID uint64
		closed bool
	}

	entry struct {
		when  time.Time
		fn    func()
		id    TimerID
		index int
	}

	// timerHeap is a min-heap of timers, ties broken by insertion order
	timerHeap []*entry
)

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	if h[i].when.Equal(h[j].when) {
		return h[i].id < h[j].id
	}
	return h[i].when.Before(h[j].when)
}

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	old[n-1] = nil
	x.index = -1
	*h = old[:n-1]
	return x
}

func newHandle(clock Clock) *Handle {
	return &Handle{
		clock: clock,
		byID:  make(map[TimerID]*entry),
	}
}

// Now returns the current time of the handle's clock.
func (x *Handle) Now() time.Time {
	return x.clock.Now()
}

// AfterFunc schedules fn to run once d has elapsed.
func (x *Handle) AfterFunc(d time.Duration, fn func()) TimerID {
	return x.At(x.Now().Add(d), fn)
}

// At schedules fn to run once deadline has passed. Callbacks with equal
// deadlines run in the order they were scheduled. Zero is returned (and fn
// never runs) if the driver has been closed.
func (x *Handle) At(deadline time.Time, fn func()) TimerID {
	if fn == nil {
		panic("timer: nil func")
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if x.closed {
		return 0
	}

	x.nextID++
	e := &entry{when: deadline, fn: fn, id: TimerID(x.nextID)}
	heap.Push(&x.timers, e)
	x.byID[e.id] = e
	return e.id
}

// After returns a channel that receives the time once d has elapsed.
func (x *Handle) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	x.AfterFunc(d, func() { ch <- x.Now() })
	return ch
}

// Cancel unschedules id, returning false if it already ran, was canceled, or
// never existed.
func (x *Handle) Cancel(id TimerID) bool {
	x.mu.Lock()
	defer x.mu.Unlock()

	e, ok := x.byID[id]
	if !ok {
		return false
	}
	delete(x.byID, id)
	heap.Remove(&x.timers, e.index)
	return true
}

// Len returns the number of scheduled callbacks.
func (x *Handle) Len() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.timers)
}

// next returns the earliest deadline.
func (x *Handle) next() (time.Time, bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if len(x.timers) == 0 {
		return time.Time{}, false
	}
	return x.timers[0].when, true
}

// fire runs every callback due at now, in deadline order, returning the
// number run. Callbacks run without the lock held, and may schedule more.
func (x *Handle) fire(now time.Time) int {
	x.mu.Lock()
	var due []*entry
	for len(x.timers) > 0 && !x.timers[0].when.After(now) {
		e := heap.Pop(&x.timers).(*entry)
		delete(x.byID, e.id)
		due = append(due, e)
	}
	x.mu.Unlock()

	for _, e := range due {
		e.fn()
	}
	return len(due)
}

// shutdown drops every scheduled callback, and rejects new ones.
func (x *Handle) shutdown() {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.closed = true
	clear(x.timers)
	x.timers = nil
	clear(x.byID)
}
