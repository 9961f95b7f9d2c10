//go:build !unix && !windows

package driver

func closeFD(int) error { return ErrLegacyUnsupported }

func isWouldBlock(error) bool { return false }

func (x *Read) LegacyCall() (uint32, error) { return 0, ErrLegacyUnsupported }
