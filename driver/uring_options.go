package driver

import (
	"time"

	"github.com/joeycumines/logiface"
)

// DefaultEntries is the ring depth (or legacy event batch size) used when
// none is configured.
const DefaultEntries uint32 = 1024

// io_uring_setup flags
const (
	setupIOPoll uint32 = 1 << iota
	setupSQPoll
	setupSQAff
	setupCQSize
	setupClamp
	setupAttachWQ
	setupRDisabled
	setupSubmitAll
	setupCoopTaskrun
	setupTaskrunFlag
	setupSQE128
	setupCQE32
	setupSingleIssuer
)

type (
	// SQELayout selects the submission entry size of a ring, see [SQE64] and
	// [SQE128].
	SQELayout interface {
		sqeSize() int
		sqeFlags() uint32
	}

	// CQELayout selects the completion entry size of a ring, see [CQE16] and
	// [CQE32].
	CQELayout interface {
		cqeSize() int
		cqeFlags() uint32
	}

	// SQE64 is the default submission layout, consuming [OpAble.UringOp].
	SQE64 struct{}

	// SQE128 is the wide submission layout, consuming [OpAble.UringOpWide].
	SQE128 struct{}

	// CQE16 is the default completion layout.
	CQE16 struct{}

	// CQE32 is the wide completion layout.
	CQE32 struct{}

	// UringOptions are passed through to io_uring_setup.
	UringOptions struct {
		// SQThreadIdle is the idle time before a SQPOLL kernel thread sleeps.
		SQThreadIdle time.Duration

		// CQEntries sizes the completion queue, if non-zero.
		CQEntries uint32

		// SQPoll enables a kernel thread polling the submission queue.
		SQPoll bool

		// Clamp clamps the requested depths to the kernel maximum, instead of
		// failing.
		Clamp bool

		// SingleIssuer hints that only the building thread submits.
		SingleIssuer bool
	}

	// Config is the construction input shared by the driver constructors.
	Config struct {
		// Logger is optional.
		Logger *logiface.Logger[logiface.Event]

		// Uring is ignored by the legacy driver.
		Uring UringOptions

		// ThreadID tags the driver, see [Driver.ThreadID].
		ThreadID uint64

		// Entries is the ring depth, or the legacy event batch size. Zero
		// selects DefaultEntries.
		Entries uint32
	}
)

func (SQE64) sqeSize() int      { return EntrySize }
func (SQE64) sqeFlags() uint32  { return 0 }
func (SQE128) sqeSize() int     { return Entry128Size }
func (SQE128) sqeFlags() uint32 { return setupSQE128 }
func (CQE16) cqeSize() int      { return 16 }
func (CQE16) cqeFlags() uint32  { return 0 }
func (CQE32) cqeSize() int      { return 32 }
func (CQE32) cqeFlags() uint32  { return setupCQE32 }

func (x UringOptions) setupFlags() (flags uint32) {
	if x.SQPoll {
		flags |= setupSQPoll
	}
	if x.CQEntries != 0 {
		flags |= setupCQSize
	}
	if x.Clamp {
		flags |= setupClamp
	}
	if x.SingleIssuer {
		flags |= setupSingleIssuer
	}
	return
}

func (x Config) entries() uint32 {
	if x.Entries == 0 {
		return DefaultEntries
	}
	return x.Entries
}
