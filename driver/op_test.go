package driver

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDriver records submissions, completing nothing by itself.
type fakeDriver struct {
	submitErr   error
	submitPanic any
	onPark      func()
	submitted   []opHandle
	canceled    []opHandle
	parks       int
}

func (x *fakeDriver) Backend() Backend { return BackendUnknown }
func (x *fakeDriver) ThreadID() uint64 { return 1 }
func (x *fakeDriver) Close() error     { return nil }

func (x *fakeDriver) Park(time.Duration) error {
	x.parks++
	if x.onPark != nil {
		x.onPark()
	}
	return nil
}

func (x *fakeDriver) submit(op opHandle) error {
	if x.submitPanic != nil {
		panic(x.submitPanic)
	}
	if x.submitErr != nil {
		return x.submitErr
	}
	x.submitted = append(x.submitted, op)
	op.setToken(uint64(len(x.submitted)))
	op.markInFlight()
	return nil
}

func (x *fakeDriver) cancel(op opHandle) {
	x.canceled = append(x.canceled, op)
}

type releaseCounter struct {
	UnimplementedOpAble
	releases int
}

func (x *releaseCounter) Release() { x.releases++ }

func TestSubmit_lifecycle(t *testing.T) {
	d := new(fakeDriver)
	data := new(releaseCounter)

	op, err := Submit(d, data)
	require.NoError(t, err)
	assert.Equal(t, OpInFlight, op.State())
	assert.Equal(t, uint64(1), op.token())
	assert.Same(t, data, op.Data())

	_, ok := op.Completion()
	assert.False(t, ok)
	select {
	case <-op.Done():
		t.Fatal("done before completion")
	default:
	}

	op.complete(Completion{Result: 12, Flags: 3})
	assert.Equal(t, OpCompleted, op.State())
	c, ok := op.Completion()
	require.True(t, ok)
	assert.Equal(t, Completion{Result: 12, Flags: 3}, c)
	<-op.Done()
	assert.Equal(t, 1, data.releases)
}

func TestSubmit_errorReleases(t *testing.T) {
	d := &fakeDriver{submitErr: ErrSubmissionQueueFull}
	data := new(releaseCounter)

	op, err := Submit(d, data)
	assert.Nil(t, op)
	assert.ErrorIs(t, err, ErrSubmissionQueueFull)
	assert.Equal(t, 1, data.releases)
}

func TestSubmit_panicReleases(t *testing.T) {
	d := &fakeDriver{submitPanic: "unsupported"}
	data := new(releaseCounter)
	assert.PanicsWithValue(t, "unsupported", func() { _, _ = Submit(d, data) })
	assert.Equal(t, 1, data.releases)
	assert.Empty(t, d.submitted)
}

func TestOp_Cancel(t *testing.T) {
	d := new(fakeDriver)
	data := new(releaseCounter)
	op, err := Submit(d, data)
	require.NoError(t, err)

	op.Cancel()
	assert.Equal(t, OpCanceled, op.State())
	c, ok := op.Completion()
	require.True(t, ok)
	assert.ErrorIs(t, c.Err, ErrCanceled)
	<-op.Done()
	require.Len(t, d.canceled, 1)

	// the backend still owns the data until it reports the original entry
	assert.Equal(t, 0, data.releases)
	op.Cancel()
	assert.Len(t, d.canceled, 1)

	op.complete(Completion{Result: 5})
	assert.Equal(t, 1, data.releases)
	c, _ = op.Completion()
	assert.ErrorIs(t, c.Err, ErrCanceled)
	assert.Equal(t, OpCanceled, op.State())
}

func TestOp_CancelAfterCompletion(t *testing.T) {
	d := new(fakeDriver)
	op, err := Submit(d, new(releaseCounter))
	require.NoError(t, err)
	op.complete(Completion{})
	op.Cancel()
	assert.Equal(t, OpCompleted, op.State())
	assert.Empty(t, d.canceled)
}

func TestOp_completeTwicePanics(t *testing.T) {
	d := new(fakeDriver)
	op, err := Submit(d, new(releaseCounter))
	require.NoError(t, err)
	op.complete(Completion{})
	assert.PanicsWithValue(t, "driver: op completed in state completed", func() { op.complete(Completion{}) })
}

func TestOp_Wait(t *testing.T) {
	d := new(fakeDriver)
	op, err := Submit(d, new(releaseCounter))
	require.NoError(t, err)

	d.onPark = func() {
		if d.parks == 3 {
			op.complete(Completion{Err: errors.New("some error")})
		}
	}
	c, err := op.Wait(-1)
	require.NoError(t, err)
	assert.EqualError(t, c.Err, "some error")
	assert.Equal(t, 3, d.parks)
}

func TestOp_WaitTimeout(t *testing.T) {
	d := new(fakeDriver)
	op, err := Submit(d, new(releaseCounter))
	require.NoError(t, err)

	_, err = op.Wait(5 * time.Millisecond)
	assert.ErrorIs(t, err, ErrWaitTimeout)
	assert.Equal(t, OpInFlight, op.State())
}

func TestOp_WaitZeroPolls(t *testing.T) {
	d := new(fakeDriver)
	op, err := Submit(d, new(releaseCounter))
	require.NoError(t, err)

	_, err = op.Wait(0)
	assert.ErrorIs(t, err, ErrWaitTimeout)
	assert.Equal(t, 1, d.parks)

	d.onPark = func() { op.complete(Completion{Result: 4}) }
	c, err := op.Wait(0)
	require.NoError(t, err)
	assert.Equal(t, uint32(4), c.Result)
	assert.Equal(t, 2, d.parks)
}

func TestUnimplementedOpAble(t *testing.T) {
	var x UnimplementedOpAble
	assert.PanicsWithValue(t, "driver: UringOp not implemented for this operation", func() { x.UringOp() })
	assert.PanicsWithValue(t, "driver: UringOpWide not implemented for this operation", func() { x.UringOpWide() })
	assert.PanicsWithValue(t, "driver: LegacyInterest not implemented for this operation", func() { x.LegacyInterest() })
	assert.PanicsWithValue(t, "driver: LegacyCall not implemented for this operation", func() { _, _ = x.LegacyCall() })
}

func TestOpState_String(t *testing.T) {
	for state, expected := range map[OpState]string{
		OpConstructed: "constructed",
		OpSubmitted:   "submitted",
		OpInFlight:    "in-flight",
		OpCompleted:   "completed",
		OpCanceled:    "canceled",
		OpState(99):   "OpState(99)",
	} {
		assert.Equal(t, expected, state.String())
	}
}

func TestBackend_String(t *testing.T) {
	assert.Equal(t, "unknown", BackendUnknown.String())
	assert.Equal(t, "io_uring", BackendUring.String())
	assert.Equal(t, "legacy", BackendLegacy.String())
	assert.Equal(t, "Backend(7)", Backend(7).String())
}
