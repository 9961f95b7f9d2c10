//go:build linux && !ioruntime_nouring

package driver

import (
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

var detectUring = sync.OnceValue(func() bool {
	var p uringParams
	fd, _, errno := unix.Syscall(unix.SYS_IO_URING_SETUP, 2, uintptr(unsafe.Pointer(&p)), 0)
	if errno != 0 {
		// ENOSYS, or EPERM under seccomp / io_uring_disabled
		return false
	}
	_ = unix.Close(int(fd))
	return true
})

// DetectUring reports whether the running kernel permits io_uring. The probe
// runs at most once per process, so the result is stable.
func DetectUring() bool { return detectUring() }
