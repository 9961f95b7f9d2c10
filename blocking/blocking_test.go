package blocking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPool struct {
	err   error
	tasks []func()
}

func (x *recordingPool) ScheduleTask(task func()) error {
	if x.err != nil {
		return x.err
	}
	x.tasks = append(x.tasks, task)
	return nil
}

func TestHandle_zeroValue(t *testing.T) {
	var h Handle
	_, ok := h.Pool()
	assert.False(t, ok)
	assert.Equal(t, StrategyPanic, h.Strategy())
	assert.Equal(t, "panic", h.String())
}

func TestSpawn_strategyPanic(t *testing.T) {
	assert.PanicsWithValue(t, ErrBlockingDisallowed, func() {
		Spawn(Empty(StrategyPanic), func() (int, error) { return 1, nil })
	})
}

func TestSpawn_executeLocal(t *testing.T) {
	var ran bool
	j := Spawn(Empty(StrategyExecuteLocal), func() (string, error) {
		ran = true
		return "value", nil
	})
	assert.True(t, ran)
	<-j.Done()
	v, err := j.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "value", v)
}

func TestSpawn_executeLocalPanic(t *testing.T) {
	assert.PanicsWithValue(t, "boom", func() {
		Spawn(Empty(StrategyExecuteLocal), func() (int, error) { panic("boom") })
	})
}

func TestSpawn_attached(t *testing.T) {
	pool := new(recordingPool)
	h := Attached(pool)
	assert.Equal(t, "pool", h.String())

	j := Spawn(h, func() (int, error) { return 0, errors.New("some error") })
	require.Len(t, pool.tasks, 1)
	select {
	case <-j.Done():
		t.Fatal("done before running")
	default:
	}

	pool.tasks[0]()
	_, err := j.Wait(context.Background())
	assert.EqualError(t, err, "some error")
}

func TestSpawn_scheduleError(t *testing.T) {
	pool := &recordingPool{err: ErrPoolClosed}
	j := Spawn(Attached(pool), func() (int, error) { return 1, nil })
	_, err := j.Wait(context.Background())
	assert.ErrorIs(t, err, ErrPoolClosed)
}

func TestJoinHandle_WaitCanceled(t *testing.T) {
	pool := new(recordingPool)
	j := Spawn(Attached(pool), func() (int, error) { return 1, nil })
	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	_, err := j.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAttached_nilPanics(t *testing.T) {
	assert.PanicsWithValue(t, "blocking: nil thread pool", func() { Attached(nil) })
}

func TestParseStrategy(t *testing.T) {
	for _, s := range []Strategy{StrategyPanic, StrategyExecuteLocal} {
		v, err := ParseStrategy(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, v)
	}
	_, err := ParseStrategy("pool")
	assert.EqualError(t, err, `blocking: unknown strategy "pool"`)
	assert.Equal(t, "Strategy(9)", Strategy(9).String())
}
