package blocking

import (
	"bytes"
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_boundsConcurrency(t *testing.T) {
	const size = 3
	p := NewPool(size, nil)
	assert.Equal(t, size, p.Size())

	var (
		running atomic.Int32
		peak    atomic.Int32
		release = make(chan struct{})
		wg      sync.WaitGroup
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		require.NoError(t, p.ScheduleTask(func() {
			defer wg.Done()
			n := running.Add(1)
			for {
				v := peak.Load()
				if n <= v || peak.CompareAndSwap(v, n) {
					break
				}
			}
			<-release
			running.Add(-1)
		}))
	}

	require.Eventually(t, func() bool { return running.Load() == size }, 5*time.Second, time.Millisecond)
	close(release)
	wg.Wait()
	assert.Equal(t, int32(size), peak.Load())
	require.NoError(t, p.Close())
}

func TestPool_Spawn(t *testing.T) {
	p := NewPool(2, nil)
	defer p.Close()

	j := Spawn(Attached(p), func() (int, error) { return 42, nil })
	v, err := j.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestPool_closeWaitsAndRejects(t *testing.T) {
	p := NewPool(1, nil)
	var ran atomic.Int32
	for i := 0; i < 5; i++ {
		require.NoError(t, p.ScheduleTask(func() {
			time.Sleep(time.Millisecond)
			ran.Add(1)
		}))
	}
	require.NoError(t, p.Close())
	assert.Equal(t, int32(5), ran.Load())
	assert.ErrorIs(t, p.ScheduleTask(func() {}), ErrPoolClosed)
}

func TestPool_ShutdownDeadline(t *testing.T) {
	p := NewPool(1, nil)
	release := make(chan struct{})
	require.NoError(t, p.ScheduleTask(func() { <-release }))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, p.Shutdown(ctx), context.DeadlineExceeded)

	close(release)
	require.NoError(t, p.Close())
}

func TestPool_recoversPanics(t *testing.T) {
	var buf bytes.Buffer
	logger := stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(&buf)),
		stumpy.L.WithLevel(logiface.LevelDebug),
	).Logger()

	p := NewPool(1, logger)
	require.NoError(t, p.ScheduleTask(func() { panic("some panic") }))
	require.NoError(t, p.Close())
	assert.Contains(t, buf.String(), `"msg":"blocking task panicked"`)
	assert.Contains(t, buf.String(), `"panic":"some panic"`)
}

func TestSpawn_attachedPanic(t *testing.T) {
	var buf bytes.Buffer
	logger := stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(&buf)),
		stumpy.L.WithLevel(logiface.LevelError),
	).Logger()

	p := NewPool(1, logger)
	defer p.Close()

	v, err := Spawn(Attached(p), func() (int, error) { panic("boom") }).Wait(context.Background())
	assert.Zero(t, v)
	assert.EqualError(t, err, "blocking: task panicked: boom")

	require.NoError(t, p.Close())
	assert.Contains(t, buf.String(), `"panic":"boom"`)
}

func TestNewPool_invalidSize(t *testing.T) {
	assert.PanicsWithValue(t, "blocking: invalid pool size 0", func() { NewPool(0, nil) })
}
