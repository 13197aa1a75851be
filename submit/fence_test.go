package submit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/virtgfx/virtgfx/gfxutils"
	"github.com/virtgfx/virtgfx/submit"
	"go.uber.org/goleak"
)

func TestFenceTrackerObserveIsMonotonic(t *testing.T) {
	fences := submit.NewFenceTracker(nil, nil)

	fences.ObserveSubmitted(5)
	fences.ObserveSubmitted(3)
	require.Equal(t, uint64(5), fences.LastSubmitted())

	fences.ObserveCompleted(4)
	fences.ObserveCompleted(2)
	require.Equal(t, uint64(4), fences.LastCompleted())
}

func TestWaitForFenceZeroSucceeds(t *testing.T) {
	fences := submit.NewFenceTracker(nil, nil)
	require.NoError(t, fences.WaitForFence(0, 0))
}

func TestWaitForFenceAlreadyCompleted(t *testing.T) {
	fences := submit.NewFenceTracker(nil, nil)
	fences.ObserveCompleted(7)
	require.NoError(t, fences.WaitForFence(7, 0))
	require.NoError(t, fences.WaitForFence(3, -1))
}

func TestWaitForFencePrefersHostWait(t *testing.T) {
	host := &waitingHost{fakeHost: &fakeHost{}}
	sub, err := submit.New(nil, host)
	require.NoError(t, err)

	require.NoError(t, sub.Fences().WaitForFence(9, time.Second))
	require.Equal(t, uint64(9), host.lastWaited)
	require.Equal(t, uint64(9), sub.Fences().LastCompleted())
}

func TestWaitForFenceHostWaitFailure(t *testing.T) {
	host := &waitingHost{fakeHost: &fakeHost{}, waitErr: context.DeadlineExceeded}
	sub, err := submit.New(nil, host)
	require.NoError(t, err)

	err = sub.Fences().WaitForFence(9, time.Second)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Zero(t, sub.Fences().LastCompleted())
}

func TestWaitForFenceUnsupportedWithoutHostPrimitives(t *testing.T) {
	fences := submit.NewFenceTracker(nil, nil)
	require.ErrorIs(t, fences.WaitForFence(1, time.Second), gfxutils.ErrFenceWaitUnsupported)
}

func TestWaitForFencePollsQuerier(t *testing.T) {
	defer goleak.VerifyNone(t)

	host := &queryingHost{fakeHost: &fakeHost{}}
	sub, err := submit.New(nil, host)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		time.Sleep(2 * time.Millisecond)
		host.completed.Store(5)
	}()

	require.NoError(t, sub.Fences().WaitForFence(5, 5*time.Second))
	require.Equal(t, uint64(5), sub.Fences().LastCompleted())
	<-done
}

func TestWaitForFencePollingTimesOut(t *testing.T) {
	host := &queryingHost{fakeHost: &fakeHost{}}
	sub, err := submit.New(nil, host)
	require.NoError(t, err)

	err = sub.Fences().WaitForFence(5, 2*time.Millisecond)
	require.ErrorIs(t, err, gfxutils.ErrTimeout)
}

func TestWaitForFenceNonBlockingPollsOnce(t *testing.T) {
	host := &queryingHost{fakeHost: &fakeHost{}}
	sub, err := submit.New(nil, host)
	require.NoError(t, err)

	require.ErrorIs(t, sub.Fences().WaitForFence(5, 0), gfxutils.ErrTimeout)

	host.completed.Store(5)
	require.NoError(t, sub.Fences().WaitForFence(5, 0))
}
