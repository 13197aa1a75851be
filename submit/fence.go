package submit

import (
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/virtgfx/virtgfx/gfxutils"
)

// defaultPollInterval paces the cooperative polling fallback when the host
// has no blocking wait primitive.
const defaultPollInterval = 500 * time.Microsecond

// FenceTracker caches the last submitted and last completed fence values for
// one context. Both are monotonically non-decreasing: host queries can race
// and report stale values, and the cached values never move backwards.
type FenceTracker struct {
	lastSubmitted atomic.Uint64
	lastCompleted atomic.Uint64

	waiter       FenceWaiter
	querier      FenceQuerier
	pollInterval time.Duration
}

func NewFenceTracker(waiter FenceWaiter, querier FenceQuerier) *FenceTracker {
	return &FenceTracker{
		waiter:       waiter,
		querier:      querier,
		pollInterval: defaultPollInterval,
	}
}

// LastSubmitted returns the highest fence value observed from a submit call.
func (f *FenceTracker) LastSubmitted() uint64 { return f.lastSubmitted.Load() }

// LastCompleted returns the highest completed fence value observed.
func (f *FenceTracker) LastCompleted() uint64 { return f.lastCompleted.Load() }

// ObserveSubmitted folds a fence value returned by a submit call into the
// cached maximum.
func (f *FenceTracker) ObserveSubmitted(fence uint64) {
	observeMax(&f.lastSubmitted, fence)
}

// ObserveCompleted folds a completed fence value into the cached maximum.
func (f *FenceTracker) ObserveCompleted(fence uint64) {
	observeMax(&f.lastCompleted, fence)
}

func observeMax(cached *atomic.Uint64, fence uint64) {
	for {
		current := cached.Load()
		if fence <= current || cached.CompareAndSwap(current, fence) {
			return
		}
	}
}

// WaitForFence blocks until the completed fence reaches fence or timeout
// expires. A fence of 0 succeeds immediately. The host's wait primitive is
// preferred; without one the tracker cooperatively polls the host's
// completed-fence query, sleeping between probes. A timeout <= 0 means poll
// once without blocking.
func (f *FenceTracker) WaitForFence(fence uint64, timeout time.Duration) error {
	if fence == 0 {
		return nil
	}

	f.pollCompleted()
	if f.lastCompleted.Load() >= fence {
		return nil
	}

	if f.waiter != nil {
		if err := f.waiter.WaitForFence(fence, timeout); err != nil {
			return errors.Wrapf(err, "waiting for fence %d", fence)
		}
		f.ObserveCompleted(fence)
		return nil
	}

	if f.querier == nil {
		return errors.Wrapf(gfxutils.ErrFenceWaitUnsupported, "fence %d not completed", fence)
	}

	deadline := time.Now().Add(timeout)
	for {
		f.pollCompleted()
		if f.lastCompleted.Load() >= fence {
			return nil
		}
		if timeout <= 0 || !time.Now().Before(deadline) {
			return errors.Wrapf(gfxutils.ErrTimeout, "fence %d, completed %d", fence, f.lastCompleted.Load())
		}
		time.Sleep(f.pollInterval)
	}
}

func (f *FenceTracker) pollCompleted() {
	if f.querier != nil {
		f.ObserveCompleted(f.querier.CompletedFence())
	}
}
