package driver

import (
	"unsafe"
)

// Read reads into a caller-provided buffer. It supports both backends.
type Read struct {
	fd     *SharedFd
	buf    []byte
	offset int64
}

var (
	// compile time assertions

	_ OpAble   = (*Read)(nil)
	_ Releaser = (*Read)(nil)
)

// IssueRead submits a read of up to len(buf) bytes from fd, at offset, or
// from the current position if offset is negative. The buffer must not be
// touched until the op reaches a terminal state.
func IssueRead(d Driver, fd *SharedFd, buf []byte, offset int64) (*Op[*Read], error) {
	if offset < 0 {
		offset = -1
	}
	return Submit(d, &Read{
		fd:     fd.Clone(),
		buf:    buf,
		offset: offset,
	})
}

// Buf returns the buffer passed to IssueRead.
func (x *Read) Buf() []byte {
	return x.buf
}

func (x *Read) UringOp() Entry {
	var addr uintptr
	if len(x.buf) != 0 {
		addr = uintptr(unsafe.Pointer(unsafe.SliceData(x.buf)))
	}
	return NewReadEntry(int32(x.fd.RawFd()), addr, uint32(len(x.buf)), x.offset)
}

func (x *Read) UringOpWide() Entry128 {
	e := x.UringOp()
	return e.Wide()
}

func (x *Read) LegacyInterest() (Interest, bool) {
	return Interest{Direction: DirectionRead, Index: x.fd.RawFd()}, true
}

// Release drops the descriptor reference.
func (x *Read) Release() {
	_ = x.fd.Release()
}
