package driver

import (
	"fmt"
	"slices"
	"time"

	"github.com/joeycumines/logiface"
)

type (
	// LegacyDriver is the readiness backend: operations are attempted
	// directly, and retried once the poller (epoll, kqueue or IOCP) reports
	// the descriptor ready.
	LegacyDriver struct {
		logger    *logiface.Logger[logiface.Event]
		waiters   map[int]*fdWaiters
		poller    fastPoller
		threadID  uint64
		nextToken uint64
		entries   uint32
		closed    bool
	}

	// fdWaiters are the ops blocked on one descriptor, in submission order.
	fdWaiters struct {
		readers    []opHandle
		writers    []opHandle
		registered ioEvents
	}
)

var _ Driver = (*LegacyDriver)(nil)

// NewLegacyDriver creates the platform poller. cfg.Entries bounds the events
// collected per Park, cfg.Uring is ignored.
func NewLegacyDriver(cfg Config) (*LegacyDriver, error) {
	x := &LegacyDriver{
		logger:    cfg.Logger,
		waiters:   make(map[int]*fdWaiters),
		threadID:  cfg.ThreadID,
		nextToken: 1,
		entries:   cfg.entries(),
	}
	if err := x.poller.Init(int(x.entries)); err != nil {
		cfg.Logger.Err().
			Err(err).
			Log("legacy poller setup failed")
		return nil, fmt.Errorf("driver: legacy poller: %w", err)
	}
	cfg.Logger.Debug().
		Uint64("entries", uint64(x.entries)).
		Uint64("thread", x.threadID).
		Log("legacy driver created")
	return x, nil
}

func (x *LegacyDriver) Backend() Backend { return BackendLegacy }

func (x *LegacyDriver) ThreadID() uint64 { return x.threadID }

// Entries returns the maximum number of events collected per Park.
func (x *LegacyDriver) Entries() uint32 { return x.entries }

// Inflight returns the number of ops waiting on readiness.
func (x *LegacyDriver) Inflight() (n int) {
	for _, w := range x.waiters {
		n += len(w.readers) + len(w.writers)
	}
	return
}

func (x *LegacyDriver) Park(timeout time.Duration) error {
	if x.closed {
		return ErrDriverClosed
	}
	timeoutMs := -1
	if timeout >= 0 {
		// round up, so short waits don't spin
		timeoutMs = int((timeout + time.Millisecond - 1) / time.Millisecond)
	}
	if _, err := x.poller.PollIO(timeoutMs); err != nil {
		x.logger.Err().
			Err(err).
			Log("legacy poll failed")
		return err
	}
	return nil
}

func (x *LegacyDriver) Close() error {
	if x.closed {
		return nil
	}
	x.closed = true
	for fd, w := range x.waiters {
		delete(x.waiters, fd)
		for _, op := range slices.Concat(w.readers, w.writers) {
			op.complete(Completion{Err: ErrCanceled})
		}
	}
	err := x.poller.Close()
	x.logger.Debug().
		Uint64("thread", x.threadID).
		Log("legacy driver closed")
	return err
}

func (x *LegacyDriver) submit(op opHandle) error {
	if x.closed {
		return ErrDriverClosed
	}

	data := op.opData()
	interest, wait := data.LegacyInterest()
	op.setToken(x.nextToken)
	x.nextToken++

	n, err := data.LegacyCall()
	if wait && err != nil && isWouldBlock(err) {
		if err := x.wait(interest, op); err != nil {
			return err
		}
		op.markInFlight()
		return nil
	}

	op.markInFlight()
	op.complete(Completion{Result: n, Err: err})
	return nil
}

// cancel deregisters the op, which completes (releasing its data) at once.
func (x *LegacyDriver) cancel(op opHandle) {
	interest, _ := op.opData().LegacyInterest()
	if w := x.waiters[interest.Index]; w != nil && w.remove(interest.Direction, op) {
		x.sync(interest.Index, w)
		op.complete(Completion{Err: ErrCanceled})
	}
}

func (x *LegacyDriver) wait(interest Interest, op opHandle) error {
	fd := interest.Index
	w := x.waiters[fd]
	if w == nil {
		w = new(fdWaiters)
		x.waiters[fd] = w
	}
	switch interest.Direction {
	case DirectionRead:
		w.readers = append(w.readers, op)
	case DirectionWrite:
		w.writers = append(w.writers, op)
	default:
		panic(fmt.Sprintf("driver: invalid legacy interest direction %s", interest.Direction))
	}
	if err := x.sync(fd, w); err != nil {
		w.remove(interest.Direction, op)
		x.sync(fd, w)
		return err
	}
	return nil
}

// sync reconciles the poller registration of fd with its waiters.
func (x *LegacyDriver) sync(fd int, w *fdWaiters) (err error) {
	want := w.events()
	if want == 0 {
		delete(x.waiters, fd)
	}
	switch {
	case want == w.registered:
		return nil
	case want == 0:
		err = x.poller.UnregisterFD(fd)
	case w.registered == 0:
		err = x.poller.RegisterFD(fd, want, x.ready)
	default:
		err = x.poller.ModifyFD(fd, want)
	}
	if err != nil {
		x.logger.Warning().
			Err(err).
			Int("fd", fd).
			Log("legacy poller registration failed")
		if want != 0 {
			return err
		}
	}
	w.registered = want
	return err
}

// ready is the poller callback, retrying the calls waiting on fd. The
// registration is updated before completing anything, as completion may
// close the descriptor.
func (x *LegacyDriver) ready(fd int, events ioEvents) {
	w := x.waiters[fd]
	if w == nil {
		return
	}
	var done []completed
	const failed = eventError | eventHangup
	if events&(eventRead|failed) != 0 {
		w.readers, done = retry(w.readers, done)
	}
	if events&(eventWrite|failed) != 0 {
		w.writers, done = retry(w.writers, done)
	}
	_ = x.sync(fd, w)
	for _, v := range done {
		v.op.complete(v.c)
	}
}

type completed struct {
	op opHandle
	c  Completion
}

// retry attempts each call, moving those that no longer block to done.
func retry(ops []opHandle, done []completed) ([]opHandle, []completed) {
	remaining := ops[:0]
	for _, op := range ops {
		n, err := op.opData().LegacyCall()
		if err != nil && isWouldBlock(err) {
			remaining = append(remaining, op)
			continue
		}
		done = append(done, completed{op: op, c: Completion{Result: n, Err: err}})
	}
	clear(ops[len(remaining):])
	return remaining, done
}

func (x *fdWaiters) events() (events ioEvents) {
	if len(x.readers) != 0 {
		events |= eventRead
	}
	if len(x.writers) != 0 {
		events |= eventWrite
	}
	return
}

func (x *fdWaiters) remove(direction Direction, op opHandle) bool {
	list := &x.readers
	if direction == DirectionWrite {
		list = &x.writers
	}
	i := slices.Index(*list, op)
	if i < 0 {
		return false
	}
	*list = slices.Delete(*list, i, i+1)
	return true
}
