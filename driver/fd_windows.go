//go:build windows

package driver

import (
	"errors"

	"golang.org/x/sys/windows"
)

// closeFD closes a handle on Windows, fd being the handle value.
func closeFD(fd int) error {
	return windows.CloseHandle(windows.Handle(fd))
}

// isWouldBlock reports whether err indicates the call should be retried once
// the handle is ready.
func isWouldBlock(err error) bool {
	return errors.Is(err, windows.WSAEWOULDBLOCK) || errors.Is(err, windows.ERROR_IO_PENDING)
}
