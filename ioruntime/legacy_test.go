//go:build linux || darwin

package ioruntime

import (
	"bytes"
	"testing"
	"time"

	"github.com/joeycumines/go-ioruntime/blocking"
	"github.com/joeycumines/go-ioruntime/driver"
	"github.com/joeycumines/go-ioruntime/timer"
	"github.com/joeycumines/logiface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_legacy(t *testing.T) {
	rt, err := New[Legacy]().Build()
	require.NoError(t, err)
	defer rt.Close()

	assert.Equal(t, driver.BackendLegacy, rt.Backend())
	assert.Nil(t, rt.Context().TimeHandle)
	assert.Equal(t, blocking.StrategyPanic, rt.Context().Blocking.Strategy())
	assert.Equal(t, rt.Context().ThreadID, rt.Driver().ThreadID())

	d, ok := rt.Driver().(*driver.LegacyDriver)
	require.True(t, ok)
	assert.Equal(t, driver.DefaultEntries, d.Entries())

	require.NoError(t, rt.Park(0))
	require.NoError(t, rt.Close())
	assert.ErrorIs(t, d.Park(0), driver.ErrDriverClosed)
}

func TestBuild_legacyEntries(t *testing.T) {
	rt, err := New[Legacy]().WithEntries(10).Build()
	require.NoError(t, err)
	defer rt.Close()
	assert.Equal(t, MinEntries, rt.Driver().(*driver.LegacyDriver).Entries())
}

func TestBuild_legacyTimer(t *testing.T) {
	rt, err := EnableTimer(New[Legacy]()).Build()
	require.NoError(t, err)
	defer rt.Close()

	assert.Equal(t, driver.BackendLegacy, rt.Backend())
	td, ok := rt.Driver().(*timer.TimeDriver[driver.Driver])
	require.True(t, ok)
	_, ok = td.Inner().(*driver.LegacyDriver)
	assert.True(t, ok)

	h := rt.Context().TimeHandle
	require.NotNil(t, h)
	start := time.Now()
	ch := h.After(5 * time.Millisecond)
	for len(ch) == 0 {
		require.NoError(t, rt.Park(-1))
	}
	assert.GreaterOrEqual(t, time.Since(start), 5*time.Millisecond)
}

func TestBuild_fusionDeterministic(t *testing.T) {
	want := driver.BackendLegacy
	if driver.UringCompiled && driver.DetectUring() {
		want = driver.BackendUring
	}
	for i := 0; i < 3; i++ {
		rt, err := New[Fusion]().Build()
		require.NoError(t, err)
		assert.Equal(t, want, rt.Backend())
		require.NoError(t, rt.Close())
	}
}

func TestBuild_fusionLogs(t *testing.T) {
	var buf bytes.Buffer
	rt, err := New[Fusion]().
		WithLogger(NewLogger(&buf, logiface.LevelInformational)).
		Build()
	require.NoError(t, err)
	defer rt.Close()

	switch rt.Backend() {
	case driver.BackendUring:
		assert.Contains(t, buf.String(), `"msg":"io_uring driver built"`)
	default:
		assert.Contains(t, buf.String(), `"msg":"legacy driver built"`)
	}
	assert.Contains(t, buf.String(), `"timer":false`)
}

func TestBuildFusion(t *testing.T) {
	fr, err := BuildFusion(New[Fusion]())
	require.NoError(t, err)
	defer fr.Close()

	ur, isUring := fr.Uring()
	lr, isLegacy := fr.Legacy()
	assert.NotEqual(t, isUring, isLegacy)
	assert.Equal(t, fr.Backend(), fr.Runtime().Backend())
	if isUring {
		assert.Same(t, ur, fr.Runtime())
		assert.Nil(t, lr)
	} else {
		assert.Same(t, lr, fr.Runtime())
		assert.Nil(t, ur)
	}
}

func TestBuildFusion_timed(t *testing.T) {
	fr, err := BuildFusion(EnableTimer(New[Fusion]()))
	require.NoError(t, err)
	defer fr.Close()
	assert.NotNil(t, fr.Runtime().Context().TimeHandle)

	b := New[Fusion]()
	_, err = b.Build()
	require.NoError(t, err)
	_, err = BuildFusion(b)
	assert.ErrorIs(t, err, ErrBuilderConsumed)
}

func TestBuildFromConfig_legacyPool(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Driver = DriverLegacy
	cfg.Timer = true
	cfg.Blocking = BlockingConfig{Strategy: BlockingPool, PoolSize: 2}

	rt, err := BuildFromConfig(cfg, nil)
	require.NoError(t, err)

	assert.Equal(t, driver.BackendLegacy, rt.Backend())
	assert.NotNil(t, rt.Context().TimeHandle)
	p, ok := rt.Context().Blocking.Pool()
	require.True(t, ok)
	pool := p.(*blocking.Pool)
	assert.Equal(t, 2, pool.Size())
	assert.NoError(t, pool.ScheduleTask(func() {}))

	require.NoError(t, rt.Close())
	assert.ErrorIs(t, pool.ScheduleTask(func() {}), blocking.ErrPoolClosed)
}

func TestBuildFromConfig_strategy(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Driver = DriverLegacy
	cfg.Entries = 100
	cfg.Blocking.Strategy = "execute_local"

	rt, err := BuildFromConfig(cfg, nil)
	require.NoError(t, err)
	defer rt.Close()

	assert.Nil(t, rt.Context().TimeHandle)
	assert.Equal(t, blocking.StrategyExecuteLocal, rt.Context().Blocking.Strategy())
	assert.Equal(t, MinEntries, rt.Driver().(*driver.LegacyDriver).Entries())
}
