package timer

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Unix(1700000000, 0)}
}

func (x *manualClock) Now() time.Time {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.now
}

func (x *manualClock) Advance(d time.Duration) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.now = x.now.Add(d)
}

func TestHandle_fireOrder(t *testing.T) {
	clock := newManualClock()
	h := newHandle(clock)

	var order []string
	record := func(s string) func() { return func() { order = append(order, s) } }

	h.AfterFunc(30*time.Millisecond, record("c"))
	h.AfterFunc(10*time.Millisecond, record("a1"))
	h.AfterFunc(20*time.Millisecond, record("b"))
	h.AfterFunc(10*time.Millisecond, record("a2"))
	h.AfterFunc(10*time.Millisecond, record("a3"))
	require.Equal(t, 5, h.Len())

	assert.Equal(t, 0, h.fire(clock.Now()))

	clock.Advance(10 * time.Millisecond)
	assert.Equal(t, 3, h.fire(clock.Now()))
	assert.Equal(t, []string{"a1", "a2", "a3"}, order)

	clock.Advance(time.Hour)
	assert.Equal(t, 2, h.fire(clock.Now()))
	assert.Equal(t, []string{"a1", "a2", "a3", "b", "c"}, order)
	assert.Equal(t, 0, h.Len())
}

func TestHandle_Cancel(t *testing.T) {
	clock := newManualClock()
	h := newHandle(clock)

	var fired []int
	ids := make([]TimerID, 5)
	for i := range ids {
		ids[i] = h.AfterFunc(time.Duration(i+1)*time.Millisecond, func() { fired = append(fired, i) })
		assert.NotZero(t, ids[i])
	}

	assert.True(t, h.Cancel(ids[2]))
	assert.False(t, h.Cancel(ids[2]))
	assert.True(t, h.Cancel(ids[0]))
	assert.False(t, h.Cancel(0))
	assert.Equal(t, 3, h.Len())

	clock.Advance(time.Second)
	h.fire(clock.Now())
	assert.Equal(t, []int{1, 3, 4}, fired)
	assert.False(t, h.Cancel(ids[1]))
}

func TestHandle_next(t *testing.T) {
	clock := newManualClock()
	h := newHandle(clock)

	_, ok := h.next()
	assert.False(t, ok)

	h.At(clock.Now().Add(time.Minute), func() {})
	id := h.At(clock.Now().Add(time.Second), func() {})
	deadline, ok := h.next()
	require.True(t, ok)
	assert.Equal(t, clock.Now().Add(time.Second), deadline)

	h.Cancel(id)
	deadline, _ = h.next()
	assert.Equal(t, clock.Now().Add(time.Minute), deadline)
}

func TestHandle_callbackSchedules(t *testing.T) {
	clock := newManualClock()
	h := newHandle(clock)

	var n int
	h.AfterFunc(0, func() {
		n++
		h.AfterFunc(0, func() { n++ })
	})
	assert.Equal(t, 1, h.fire(clock.Now()))
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, h.fire(clock.Now()))
	assert.Equal(t, 2, n)
}

func TestHandle_After(t *testing.T) {
	clock := newManualClock()
	h := newHandle(clock)

	ch := h.After(time.Second)
	clock.Advance(time.Second)
	h.fire(clock.Now())
	select {
	case v := <-ch:
		assert.Equal(t, clock.Now(), v)
	default:
		t.Fatal("expected a value")
	}
}

func TestHandle_shutdown(t *testing.T) {
	clock := newManualClock()
	h := newHandle(clock)

	h.AfterFunc(0, func() { t.Error("should not run") })
	h.shutdown()
	assert.Equal(t, 0, h.Len())
	assert.Zero(t, h.AfterFunc(0, func() { t.Error("should not run") }))
	assert.Equal(t, 0, h.fire(clock.Now().Add(time.Hour)))
}

func TestHandle_nilFuncPanics(t *testing.T) {
	h := newHandle(NewClock())
	assert.PanicsWithValue(t, "timer: nil func", func() { h.At(time.Now(), nil) })
}

func TestHandle_concurrentSchedule(t *testing.T) {
	clock := newManualClock()
	h := newHandle(clock)

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		n  int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				id := h.AfterFunc(time.Duration(j)*time.Millisecond, func() {
					mu.Lock()
					n++
					mu.Unlock()
				})
				if j%2 == 0 {
					h.Cancel(id)
				}
			}
		}()
	}
	wg.Wait()

	clock.Advance(time.Second)
	h.fire(clock.Now())
	assert.Equal(t, 16*50, n)
}
