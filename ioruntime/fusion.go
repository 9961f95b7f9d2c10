package ioruntime

import (
	"fmt"

	"github.com/joeycumines/go-ioruntime/driver"
)

type (
	// Fusion builds io_uring ([Uring] with the default entry layouts) if the
	// running kernel permits it, otherwise [Legacy]. The probe runs once per
	// process, so every fused build in a process selects the same backend.
	Fusion struct{}

	// FusionBuildable constrains [BuildFusion] to the fused markers.
	FusionBuildable interface {
		Fusion | Timed[Fusion]
		Buildable
	}

	// FusionRuntime is a runtime built by [BuildFusion], tagged with the
	// backend selected at build time.
	FusionRuntime struct {
		uring  *Runtime
		legacy *Runtime
	}
)

var _ TimeWrappable = Fusion{}

func (Fusion) timeWrappable() {}

func (Fusion) build(s settings, threadID uint64) (*Runtime, error) {
	if driver.UringCompiled && driver.DetectUring() {
		rt, err := RuntimeBuilder[Uring[driver.SQE64, driver.CQE16]]{settings: s}.build(threadID)
		if err != nil {
			return nil, err
		}
		s.logger.Info().
			Bool("timer", s.timer).
			Uint64("thread", threadID).
			Log("io_uring driver built")
		return rt, nil
	}

	rt, err := RuntimeBuilder[Legacy]{settings: s}.build(threadID)
	if err != nil {
		return nil, err
	}
	s.logger.Info().
		Bool("timer", s.timer).
		Uint64("thread", threadID).
		Log("legacy driver built")
	return rt, nil
}

// BuildFusion is [RuntimeBuilder.Build], returning the result as a
// [FusionRuntime].
func BuildFusion[D FusionBuildable](x RuntimeBuilder[D]) (*FusionRuntime, error) {
	rt, err := x.Build()
	if err != nil {
		return nil, err
	}
	switch backend := rt.Backend(); backend {
	case driver.BackendUring:
		return &FusionRuntime{uring: rt}, nil
	case driver.BackendLegacy:
		return &FusionRuntime{legacy: rt}, nil
	default:
		_ = rt.Close()
		panic(fmt.Sprintf("ioruntime: unexpected backend %s", backend))
	}
}

// Backend returns the backend selected at build time.
func (x *FusionRuntime) Backend() driver.Backend {
	if x.uring != nil {
		return driver.BackendUring
	}
	return driver.BackendLegacy
}

// Uring returns the runtime, if the io_uring backend was selected.
func (x *FusionRuntime) Uring() (*Runtime, bool) {
	return x.uring, x.uring != nil
}

// Legacy returns the runtime, if the readiness backend was selected.
func (x *FusionRuntime) Legacy() (*Runtime, bool) {
	return x.legacy, x.legacy != nil
}

// Runtime returns the runtime, regardless of backend.
func (x *FusionRuntime) Runtime() *Runtime {
	if x.uring != nil {
		return x.uring
	}
	return x.legacy
}

// Close closes the runtime.
func (x *FusionRuntime) Close() error {
	return x.Runtime().Close()
}
