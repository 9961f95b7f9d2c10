package driver

import (
	"encoding/binary"
	"fmt"
	"unsafe"
)

// io_uring opcodes used by this package, see include/uapi/linux/io_uring.h.
const (
	OpcodeNop         uint8 = 0
	OpcodeTimeout     uint8 = 11
	OpcodeAsyncCancel uint8 = 14
	OpcodeRead        uint8 = 22
	OpcodeUringCmd    uint8 = 46
)

const (
	// EntrySize is the size of a narrow submission entry.
	EntrySize = 64
	// Entry128Size is the size of a wide submission entry, on rings set up
	// with IORING_SETUP_SQE128.
	Entry128Size = 128

	// CmdSize is the inline command capacity of a narrow entry.
	CmdSize = 16
	// Cmd80Size is the inline command capacity of a wide entry.
	Cmd80Size = 80

	// byte offsets within struct io_uring_sqe
	sqeOffOpcode   = 0
	sqeOffFlags    = 1
	sqeOffIoprio   = 2
	sqeOffFd       = 4
	sqeOffOff      = 8 // also cmd_op (u32) + __pad1 (u32)
	sqeOffAddr     = 16
	sqeOffLen      = 24
	sqeOffOpFlags  = 28
	sqeOffUserData = 32
	sqeOffBufIndex = 40
	sqeOffCmd      = 48
)

// Entry is a raw 64-byte io_uring submission entry, in native byte order.
type Entry [EntrySize]byte

// Entry128 is a raw 128-byte io_uring submission entry. The first 64 bytes
// share the [Entry] layout, the command area of URING_CMD spans bytes 48 to
// 127.
type Entry128 [Entry128Size]byte

var (
	// compile time assertions

	_ [EntrySize - unsafe.Sizeof(Entry{})]struct{}
	_ [Entry128Size - unsafe.Sizeof(Entry128{})]struct{}
	_ [sqeOffCmd + CmdSize - EntrySize]struct{}
	_ [sqeOffCmd + Cmd80Size - Entry128Size]struct{}
)

func (x *Entry) Opcode() uint8    { return x[sqeOffOpcode] }
func (x *Entry) Flags() uint8     { return x[sqeOffFlags] }
func (x *Entry) Ioprio() uint16   { return binary.NativeEndian.Uint16(x[sqeOffIoprio:]) }
func (x *Entry) Fd() int32        { return int32(binary.NativeEndian.Uint32(x[sqeOffFd:])) }
func (x *Entry) Off() uint64      { return binary.NativeEndian.Uint64(x[sqeOffOff:]) }
func (x *Entry) CmdOp() uint32    { return binary.NativeEndian.Uint32(x[sqeOffOff:]) }
func (x *Entry) Addr() uint64     { return binary.NativeEndian.Uint64(x[sqeOffAddr:]) }
func (x *Entry) Len() uint32      { return binary.NativeEndian.Uint32(x[sqeOffLen:]) }
func (x *Entry) OpFlags() uint32  { return binary.NativeEndian.Uint32(x[sqeOffOpFlags:]) }
func (x *Entry) UserData() uint64 { return binary.NativeEndian.Uint64(x[sqeOffUserData:]) }
func (x *Entry) BufIndex() uint16 { return binary.NativeEndian.Uint16(x[sqeOffBufIndex:]) }

// Cmd returns the inline command area.
func (x *Entry) Cmd() (b [CmdSize]byte) {
	copy(b[:], x[sqeOffCmd:])
	return
}

// SetUserData assigns the opaque value the kernel echoes back in the
// completion entry.
func (x *Entry) SetUserData(v uint64) { binary.NativeEndian.PutUint64(x[sqeOffUserData:], v) }

// SetFlags assigns the IOSQE_* flags.
func (x *Entry) SetFlags(v uint8) { x[sqeOffFlags] = v }

// Wide returns x, zero-extended to the wide layout.
func (x *Entry) Wide() (w Entry128) {
	copy(w[:], x[:])
	return
}

// Base returns the common 64-byte prefix of x. For URING_CMD entries the
// result only holds the first 16 bytes of the command.
func (x *Entry128) Base() (e Entry) {
	copy(e[:], x[:EntrySize])
	return
}

func (x *Entry128) Opcode() uint8    { return x[sqeOffOpcode] }
func (x *Entry128) Fd() int32        { return int32(binary.NativeEndian.Uint32(x[sqeOffFd:])) }
func (x *Entry128) CmdOp() uint32    { return binary.NativeEndian.Uint32(x[sqeOffOff:]) }
func (x *Entry128) UserData() uint64 { return binary.NativeEndian.Uint64(x[sqeOffUserData:]) }
func (x *Entry128) Cmd() (b [Cmd80Size]byte) {
	copy(b[:], x[sqeOffCmd:])
	return
}

// SetUserData assigns the opaque value the kernel echoes back in the
// completion entry.
func (x *Entry128) SetUserData(v uint64) { binary.NativeEndian.PutUint64(x[sqeOffUserData:], v) }

// NewUringCmd16 builds an IORING_OP_URING_CMD entry for a narrow ring.
func NewUringCmd16(fd int32, cmdOp uint32, cmd [CmdSize]byte) (e Entry) {
	e[sqeOffOpcode] = OpcodeUringCmd
	binary.NativeEndian.PutUint32(e[sqeOffFd:], uint32(fd))
	binary.NativeEndian.PutUint32(e[sqeOffOff:], cmdOp)
	copy(e[sqeOffCmd:], cmd[:])
	return
}

// NewUringCmd80 builds an IORING_OP_URING_CMD entry for a wide ring.
func NewUringCmd80(fd int32, cmdOp uint32, cmd [Cmd80Size]byte) (e Entry128) {
	e[sqeOffOpcode] = OpcodeUringCmd
	binary.NativeEndian.PutUint32(e[sqeOffFd:], uint32(fd))
	binary.NativeEndian.PutUint32(e[sqeOffOff:], cmdOp)
	copy(e[sqeOffCmd:], cmd[:])
	return
}

// NewReadEntry builds an IORING_OP_READ entry. An offset of -1 reads from
// the current file position.
func NewReadEntry(fd int32, addr uintptr, length uint32, offset int64) (e Entry) {
	e[sqeOffOpcode] = OpcodeRead
	binary.NativeEndian.PutUint32(e[sqeOffFd:], uint32(fd))
	binary.NativeEndian.PutUint64(e[sqeOffOff:], uint64(offset))
	binary.NativeEndian.PutUint64(e[sqeOffAddr:], uint64(addr))
	binary.NativeEndian.PutUint32(e[sqeOffLen:], length)
	return
}

// NewNopEntry builds an IORING_OP_NOP entry.
func NewNopEntry() (e Entry) {
	e[sqeOffOpcode] = OpcodeNop
	binary.NativeEndian.PutUint32(e[sqeOffFd:], ^uint32(0))
	return
}

// newAsyncCancelEntry targets the in-flight entry with the given user data.
func newAsyncCancelEntry(target uint64) (e Entry) {
	e[sqeOffOpcode] = OpcodeAsyncCancel
	binary.NativeEndian.PutUint32(e[sqeOffFd:], ^uint32(0))
	binary.NativeEndian.PutUint64(e[sqeOffAddr:], target)
	return
}

// newTimeoutEntry completes after the relative timeout at ts, or after one
// other completion, whichever is first.
func newTimeoutEntry(ts uintptr) (e Entry) {
	e[sqeOffOpcode] = OpcodeTimeout
	binary.NativeEndian.PutUint32(e[sqeOffFd:], ^uint32(0))
	binary.NativeEndian.PutUint64(e[sqeOffOff:], 1)
	binary.NativeEndian.PutUint64(e[sqeOffAddr:], uint64(ts))
	binary.NativeEndian.PutUint32(e[sqeOffLen:], 1)
	return
}

// copyPayload copies the in-memory representation of v into dst, panicking
// if v does not fit. T must not contain pointers.
func copyPayload[T any](dst []byte, v T, what string) {
	size := int(unsafe.Sizeof(v))
	if size > len(dst) {
		panic(fmt.Sprintf("driver: command of %d bytes does not fit into %s (max %d bytes)", size, what, len(dst)))
	}
	if size != 0 {
		copy(dst, unsafe.Slice((*byte)(unsafe.Pointer(&v)), size))
	}
}
