package ioruntime

import (
	"fmt"

	"github.com/joeycumines/go-ioruntime/driver"
	"github.com/joeycumines/go-ioruntime/timer"
)

type (
	// Buildable is implemented by the markers selecting how a
	// [RuntimeBuilder] builds: [Uring], [Legacy], [Fusion] and [Timed].
	Buildable interface {
		build(s settings, threadID uint64) (*Runtime, error)
	}

	// TimeWrappable is implemented by the markers that may be decorated by
	// [Timed], which excludes Timed itself.
	TimeWrappable interface {
		Buildable
		timeWrappable()
	}

	// Uring builds the io_uring backend, with entry layouts S
	// ([driver.SQE64] or [driver.SQE128]) and C ([driver.CQE16] or
	// [driver.CQE32]).
	Uring[S driver.SQELayout, C driver.CQELayout] struct{}

	// Legacy builds the readiness backend.
	Legacy struct{}

	// Timed builds D, then decorates it with a [timer.TimeDriver].
	Timed[D TimeWrappable] struct{}
)

var (
	// compile time assertions

	_ TimeWrappable = Uring[driver.SQE64, driver.CQE16]{}
	_ TimeWrappable = Uring[driver.SQE64, driver.CQE32]{}
	_ TimeWrappable = Uring[driver.SQE128, driver.CQE16]{}
	_ TimeWrappable = Uring[driver.SQE128, driver.CQE32]{}
	_ TimeWrappable = Legacy{}
	_ Buildable     = Timed[Legacy]{}
)

func (Uring[S, C]) timeWrappable() {}
func (Legacy) timeWrappable()      {}

func (Uring[S, C]) build(s settings, threadID uint64) (*Runtime, error) {
	d, err := driver.NewUringDriver[S, C](s.driverConfig(threadID))
	if err != nil {
		return nil, fmt.Errorf("ioruntime: build %s driver: %w", driver.BackendUring, err)
	}
	return newRuntime(d, s, threadID), nil
}

func (Legacy) build(s settings, threadID uint64) (*Runtime, error) {
	d, err := driver.NewLegacyDriver(s.driverConfig(threadID))
	if err != nil {
		return nil, fmt.Errorf("ioruntime: build %s driver: %w", driver.BackendLegacy, err)
	}
	return newRuntime(d, s, threadID), nil
}

func (Timed[D]) build(s settings, threadID uint64) (*Runtime, error) {
	s.timer = true
	var inner D
	rt, err := inner.build(s, threadID)
	if err != nil {
		return nil, err
	}
	d := timer.NewTimeDriver(rt.driver, timer.NewClock())
	rt.driver = d
	rt.context.TimeHandle = d.Handle()
	return rt, nil
}
