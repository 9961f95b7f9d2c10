//go:build !linux && !darwin && !windows

package driver

// fastPoller is unavailable on this platform, see [ErrLegacyUnsupported].
type fastPoller struct{}

func (p *fastPoller) Init(int) error                             { return ErrLegacyUnsupported }
func (p *fastPoller) Close() error                               { return nil }
func (p *fastPoller) RegisterFD(int, ioEvents, ioCallback) error { return ErrLegacyUnsupported }
func (p *fastPoller) UnregisterFD(int) error                     { return ErrLegacyUnsupported }
func (p *fastPoller) ModifyFD(int, ioEvents) error               { return ErrLegacyUnsupported }
func (p *fastPoller) PollIO(int) (int, error)                    { return 0, ErrLegacyUnsupported }
