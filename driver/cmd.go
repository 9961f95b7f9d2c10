package driver

// Cmd is a device or file passthrough command (IORING_OP_URING_CMD). It is a
// completion-ring only capability: the legacy methods panic.
//
// T is copied byte-for-byte into the entry's command area, and so must be a
// fixed-layout value without pointers, matching the layout the target driver
// expects.
type Cmd[T any] struct {
	UnimplementedOpAble

	// holds a reference, preventing the descriptor from being closed while
	// the command is in flight
	fd    *SharedFd
	cmdOp uint32
	cmd   T
}

var (
	// compile time assertions

	_ OpAble   = (*Cmd[[CmdSize]byte])(nil)
	_ Releaser = (*Cmd[[CmdSize]byte])(nil)
)

// IssueCmd submits the command cmdOp with payload cmd against fd, which is
// cloned for the lifetime of the op.
func IssueCmd[T any](d Driver, fd *SharedFd, cmdOp uint32, cmd T) (*Op[*Cmd[T]], error) {
	return Submit(d, &Cmd[T]{
		fd:    fd.Clone(),
		cmdOp: cmdOp,
		cmd:   cmd,
	})
}

// CmdOp returns the command opcode.
func (x *Cmd[T]) CmdOp() uint32 {
	return x.cmdOp
}

// Payload returns the inline command.
func (x *Cmd[T]) Payload() T {
	return x.cmd
}

// UringOp panics if T is larger than [CmdSize] bytes, since a truncated
// command could be interpreted as a different one.
func (x *Cmd[T]) UringOp() Entry {
	var cmd [CmdSize]byte
	copyPayload(cmd[:], x.cmd, "a 64 byte submission entry, consider 128 byte entries")
	return NewUringCmd16(int32(x.fd.RawFd()), x.cmdOp, cmd)
}

// UringOpWide panics if T is larger than [Cmd80Size] bytes.
func (x *Cmd[T]) UringOpWide() Entry128 {
	var cmd [Cmd80Size]byte
	copyPayload(cmd[:], x.cmd, "a 128 byte submission entry")
	return NewUringCmd80(int32(x.fd.RawFd()), x.cmdOp, cmd)
}

// Release drops the descriptor reference.
func (x *Cmd[T]) Release() {
	_ = x.fd.Release()
}
