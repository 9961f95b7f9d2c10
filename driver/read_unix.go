//go:build unix

package driver

import (
	"golang.org/x/sys/unix"
)

func (x *Read) LegacyCall() (uint32, error) {
	var (
		n   int
		err error
	)
	if x.offset < 0 {
		n, err = unix.Read(x.fd.RawFd(), x.buf)
	} else {
		n, err = unix.Pread(x.fd.RawFd(), x.buf, x.offset)
	}
	if err != nil {
		return 0, err
	}
	return uint32(n), nil
}
