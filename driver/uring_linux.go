//go:build linux && !ioruntime_nouring

package driver

import (
	"fmt"
	"math"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/joeycumines/logiface"
	"golang.org/x/sys/unix"
)

// UringCompiled reports whether the io_uring backend is part of this build.
const UringCompiled = true

const (
	// io_uring mmap offsets
	offSQRing = 0
	offCQRing = 0x8000000
	offSQEs   = 0x10000000

	enterGetEvents = 1 << 0
	enterSQWakeup  = 1 << 1

	sqNeedWakeup = 1 << 0

	// reserved user data, never assigned to ops
	tokenTimeout uint64 = math.MaxUint64
	tokenCancel  uint64 = math.MaxUint64 - 1
)

type (
	// uringParams is struct io_uring_params.
	uringParams struct {
		sqEntries    uint32
		cqEntries    uint32
		flags        uint32
		sqThreadCPU  uint32
		sqThreadIdle uint32
		features     uint32
		wqFd         uint32
		resv         [3]uint32
		sqOff        sqRingOffsets
		cqOff        cqRingOffsets
	}

	sqRingOffsets struct {
		head        uint32
		tail        uint32
		ringMask    uint32
		ringEntries uint32
		flags       uint32
		dropped     uint32
		array       uint32
		resv1       uint32
		userAddr    uint64
	}

	cqRingOffsets struct {
		head        uint32
		tail        uint32
		ringMask    uint32
		ringEntries uint32
		overflow    uint32
		cqes        uint32
		flags       uint32
		resv1       uint32
		userAddr    uint64
	}

	// kernelTimespec is struct __kernel_timespec.
	kernelTimespec struct {
		sec  int64
		nsec int64
	}

	// ring is the shared memory and fd of one io_uring instance.
	ring struct {
		sqHead    *uint32
		sqTail    *uint32
		sqFlags   *uint32
		sqArray   unsafe.Pointer
		sqes      unsafe.Pointer
		cqHead    *uint32
		cqTail    *uint32
		cqes      unsafe.Pointer
		sqMem     []byte
		cqMem     []byte
		sqeMem    []byte
		params    uringParams
		sqeSize   uintptr
		cqeSize   uintptr
		fd        int
		sqMask    uint32
		sqEntries uint32
		cqMask    uint32
		sqPoll    bool
	}

	// UringDriver is the completion-ring backend. S selects the submission
	// entry layout, and therefore which of [OpAble.UringOp] or
	// [OpAble.UringOpWide] is consumed, C the completion entry layout.
	UringDriver[S SQELayout, C CQELayout] struct {
		logger    *logiface.Logger[logiface.Event]
		ops       map[uint64]opHandle
		ts        *kernelTimespec
		ring      *ring
		threadID  uint64
		nextToken uint64
		closed    bool
	}
)

var (
	// compile time assertions

	_ Driver = (*UringDriver[SQE64, CQE16])(nil)
	_ Driver = (*UringDriver[SQE128, CQE32])(nil)
	_ [120 - unsafe.Sizeof(uringParams{})]struct{}
)

// NewUringDriver sets up a ring of cfg.Entries depth.
func NewUringDriver[S SQELayout, C CQELayout](cfg Config) (*UringDriver[S, C], error) {
	var (
		s S
		c C
	)
	flags := cfg.Uring.setupFlags() | s.sqeFlags() | c.cqeFlags()
	r, err := newRing(cfg.entries(), flags, cfg.Uring, s.sqeSize(), c.cqeSize())
	if err != nil {
		cfg.Logger.Err().
			Err(err).
			Uint64("entries", uint64(cfg.entries())).
			Log("io_uring setup failed")
		return nil, err
	}
	cfg.Logger.Debug().
		Int("fd", r.fd).
		Uint64("entries", uint64(r.sqEntries)).
		Int("sqe_size", s.sqeSize()).
		Int("cqe_size", c.cqeSize()).
		Uint64("thread", cfg.ThreadID).
		Log("io_uring driver created")
	return &UringDriver[S, C]{
		logger:    cfg.Logger,
		ops:       make(map[uint64]opHandle),
		ts:        new(kernelTimespec),
		ring:      r,
		threadID:  cfg.ThreadID,
		nextToken: 1,
	}, nil
}

func (x *UringDriver[S, C]) Backend() Backend { return BackendUring }

func (x *UringDriver[S, C]) ThreadID() uint64 { return x.threadID }

// Entries returns the submission queue depth, as rounded by the kernel.
func (x *UringDriver[S, C]) Entries() uint32 { return x.ring.sqEntries }

// Inflight returns the number of ops the kernel has not completed.
func (x *UringDriver[S, C]) Inflight() int { return len(x.ops) }

func (x *UringDriver[S, C]) Park(timeout time.Duration) error {
	if x.closed {
		return ErrDriverClosed
	}

	if err := x.ring.enter(0, 0); err != nil {
		return err
	}
	if x.reap() != 0 || timeout == 0 {
		return nil
	}

	if timeout > 0 {
		// the kernel copies the timespec on submission
		x.ts.sec = int64(timeout / time.Second)
		x.ts.nsec = int64(timeout % time.Second)
		e := newTimeoutEntry(uintptr(unsafe.Pointer(x.ts)))
		e.SetUserData(tokenTimeout)
		if !x.pushInternal(e) {
			x.reap()
			return nil
		}
	}

	if err := x.ring.enter(1, enterGetEvents); err != nil {
		return err
	}
	x.reap()
	return nil
}

func (x *UringDriver[S, C]) Close() error {
	if x.closed {
		return nil
	}
	x.closed = true
	err := x.ring.close()
	for tok, op := range x.ops {
		delete(x.ops, tok)
		op.complete(Completion{Err: ErrCanceled})
	}
	x.logger.Debug().
		Uint64("thread", x.threadID).
		Log("io_uring driver closed")
	return err
}

func (x *UringDriver[S, C]) submit(op opHandle) error {
	if x.closed {
		return ErrDriverClosed
	}

	tok := x.nextToken
	var (
		s  S
		ok bool
	)
	if s.sqeSize() == Entry128Size {
		e := op.opData().UringOpWide()
		e.SetUserData(tok)
		ok = x.push(e[:])
	} else {
		e := op.opData().UringOp()
		e.SetUserData(tok)
		ok = x.push(e[:])
	}
	if !ok {
		return ErrSubmissionQueueFull
	}

	x.nextToken++
	op.setToken(tok)
	x.ops[tok] = op
	op.markInFlight()
	return nil
}

// cancel keeps the op registered until the kernel reports the original
// entry, which is when its resources are released.
func (x *UringDriver[S, C]) cancel(op opHandle) {
	if x.closed {
		return
	}
	if _, ok := x.ops[op.token()]; !ok {
		return
	}
	e := newAsyncCancelEntry(op.token())
	e.SetUserData(tokenCancel)
	if !x.pushInternal(e) {
		x.logger.Warning().
			Uint64("token", op.token()).
			Log("failed to submit io_uring cancellation")
	}
}

func (x *UringDriver[S, C]) pushInternal(e Entry) bool {
	var s S
	if s.sqeSize() == Entry128Size {
		w := e.Wide()
		return x.push(w[:])
	}
	return x.push(e[:])
}

// push adds an entry, flushing to the kernel once if the queue is full.
func (x *UringDriver[S, C]) push(e []byte) bool {
	if x.ring.push(e) {
		return true
	}
	if err := x.ring.enter(0, 0); err != nil {
		x.logger.Warning().
			Err(err).
			Log("io_uring flush failed")
		return false
	}
	return x.ring.push(e)
}

func (x *UringDriver[S, C]) reap() int {
	return x.ring.reap(func(userData uint64, res int32, flags uint32) {
		op, ok := x.ops[userData]
		if !ok {
			// timeouts, cancellations
			return
		}
		delete(x.ops, userData)
		c := Completion{Flags: flags}
		if res < 0 {
			if errno := unix.Errno(-res); errno == unix.ECANCELED {
				c.Err = ErrCanceled
			} else {
				c.Err = errno
			}
		} else {
			c.Result = uint32(res)
		}
		op.complete(c)
	})
}

func newRing(entries uint32, flags uint32, opts UringOptions, sqeSize, cqeSize int) (*ring, error) {
	p := uringParams{
		flags:     flags,
		cqEntries: opts.CQEntries,
	}
	if opts.SQPoll && opts.SQThreadIdle > 0 {
		p.sqThreadIdle = uint32(opts.SQThreadIdle.Milliseconds())
	}

	fd, _, errno := unix.Syscall(unix.SYS_IO_URING_SETUP, uintptr(entries), uintptr(unsafe.Pointer(&p)), 0)
	if errno != 0 {
		return nil, fmt.Errorf("driver: io_uring_setup: %w", errno)
	}

	r := &ring{
		params:  p,
		sqeSize: uintptr(sqeSize),
		cqeSize: uintptr(cqeSize),
		fd:      int(fd),
		sqPoll:  opts.SQPoll,
	}
	if err := r.mmap(); err != nil {
		_ = unix.Close(r.fd)
		return nil, err
	}
	return r, nil
}

func (r *ring) mmap() (err error) {
	const (
		prot  = unix.PROT_READ | unix.PROT_WRITE
		flags = unix.MAP_SHARED | unix.MAP_POPULATE
	)
	p := &r.params

	sqSize := int(p.sqOff.array + p.sqEntries*4)
	if r.sqMem, err = unix.Mmap(r.fd, offSQRing, sqSize, prot, flags); err != nil {
		return fmt.Errorf("driver: mmap sq ring: %w", err)
	}
	cqSize := int(p.cqOff.cqes) + int(p.cqEntries)*int(r.cqeSize)
	if r.cqMem, err = unix.Mmap(r.fd, offCQRing, cqSize, prot, flags); err != nil {
		r.unmap()
		return fmt.Errorf("driver: mmap cq ring: %w", err)
	}
	if r.sqeMem, err = unix.Mmap(r.fd, offSQEs, int(p.sqEntries)*int(r.sqeSize), prot, flags); err != nil {
		r.unmap()
		return fmt.Errorf("driver: mmap sqes: %w", err)
	}

	sq := unsafe.Pointer(&r.sqMem[0])
	r.sqHead = (*uint32)(unsafe.Add(sq, p.sqOff.head))
	r.sqTail = (*uint32)(unsafe.Add(sq, p.sqOff.tail))
	r.sqFlags = (*uint32)(unsafe.Add(sq, p.sqOff.flags))
	r.sqArray = unsafe.Add(sq, p.sqOff.array)
	r.sqMask = *(*uint32)(unsafe.Add(sq, p.sqOff.ringMask))
	r.sqEntries = *(*uint32)(unsafe.Add(sq, p.sqOff.ringEntries))
	r.sqes = unsafe.Pointer(&r.sqeMem[0])

	cq := unsafe.Pointer(&r.cqMem[0])
	r.cqHead = (*uint32)(unsafe.Add(cq, p.cqOff.head))
	r.cqTail = (*uint32)(unsafe.Add(cq, p.cqOff.tail))
	r.cqMask = *(*uint32)(unsafe.Add(cq, p.cqOff.ringMask))
	r.cqes = unsafe.Add(cq, p.cqOff.cqes)

	return nil
}

func (r *ring) unmap() {
	for _, b := range [...]*[]byte{&r.sqeMem, &r.cqMem, &r.sqMem} {
		if *b != nil {
			_ = unix.Munmap(*b)
			*b = nil
		}
	}
}

func (r *ring) close() error {
	r.unmap()
	return unix.Close(r.fd)
}

// push copies e into the next free slot, returning false if the queue is
// full.
func (r *ring) push(e []byte) bool {
	head := atomic.LoadUint32(r.sqHead)
	tail := *r.sqTail
	if tail-head >= r.sqEntries {
		return false
	}
	idx := tail & r.sqMask
	copy(unsafe.Slice((*byte)(unsafe.Add(r.sqes, uintptr(idx)*r.sqeSize)), r.sqeSize), e)
	*(*uint32)(unsafe.Add(r.sqArray, uintptr(idx)*4)) = idx
	atomic.StoreUint32(r.sqTail, tail+1)
	return true
}

// enter submits every entry not yet consumed by the kernel, optionally
// waiting for minComplete completions.
func (r *ring) enter(minComplete uint32, flags uint32) error {
	toSubmit := *r.sqTail - atomic.LoadUint32(r.sqHead)
	if r.sqPoll {
		if atomic.LoadUint32(r.sqFlags)&sqNeedWakeup != 0 {
			flags |= enterSQWakeup
		}
		toSubmit = 0
	}
	if toSubmit == 0 && minComplete == 0 && flags&enterSQWakeup == 0 {
		return nil
	}
	for {
		_, _, errno := unix.Syscall6(unix.SYS_IO_URING_ENTER, uintptr(r.fd), uintptr(toSubmit), uintptr(minComplete), uintptr(flags), 0, 0)
		switch errno {
		case 0, unix.ETIME, unix.EBUSY, unix.EAGAIN:
			// EBUSY / EAGAIN: completions must be reaped before more progress
			return nil
		case unix.EINTR:
			if minComplete != 0 {
				return nil
			}
		default:
			return fmt.Errorf("driver: io_uring_enter: %w", errno)
		}
	}
}

// reap passes every available completion to fn, returning the count.
func (r *ring) reap(fn func(userData uint64, res int32, flags uint32)) (n int) {
	head := *r.cqHead
	for tail := atomic.LoadUint32(r.cqTail); head != tail; n++ {
		cqe := unsafe.Add(r.cqes, uintptr(head&r.cqMask)*r.cqeSize)
		userData := *(*uint64)(cqe)
		res := *(*int32)(unsafe.Add(cqe, 8))
		flags := *(*uint32)(unsafe.Add(cqe, 12))
		head++
		atomic.StoreUint32(r.cqHead, head)
		fn(userData, res, flags)
	}
	return
}
