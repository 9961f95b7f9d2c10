//go:build windows

package driver

import (
	"golang.org/x/sys/windows"
)

func (x *Read) LegacyCall() (uint32, error) {
	var overlapped *windows.Overlapped
	if x.offset >= 0 {
		overlapped = &windows.Overlapped{
			Offset:     uint32(x.offset),
			OffsetHigh: uint32(x.offset >> 32),
		}
	}
	var n uint32
	if err := windows.ReadFile(windows.Handle(x.fd.RawFd()), x.buf, &n, overlapped); err != nil {
		if err == windows.ERROR_HANDLE_EOF || err == windows.ERROR_BROKEN_PIPE {
			return 0, nil
		}
		return 0, err
	}
	return n, nil
}
