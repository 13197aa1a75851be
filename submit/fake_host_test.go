package submit_test

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/virtgfx/virtgfx/alloctrack"
	"github.com/virtgfx/virtgfx/submit"
)

// fakeSubmission records one chunk as the fake host received it.
type fakeSubmission struct {
	Buffer  []byte
	Refs    []alloctrack.ReferenceEntry
	Fence   uint64
	Present bool
}

// fakeHost implements the base submission interface with no optional
// capabilities. Transfer capacities are clamped to bufferCap/refCap when
// those are set.
type fakeHost struct {
	bufferCap int
	refCap    int

	createErr error
	submitErr error
	// submitErrAfter delays submitErr until that many submissions succeeded.
	submitErrAfter int

	nextFence   uint64
	created     int
	released    int
	submissions []fakeSubmission
}

func (f *fakeHost) CreateTransfer(ctx context.Context, requestedBytes, requestedRefs int) (submit.Transfer, error) {
	if f.createErr != nil {
		return submit.Transfer{}, f.createErr
	}
	f.created++

	bufBytes := requestedBytes
	if f.bufferCap > 0 && bufBytes > f.bufferCap {
		bufBytes = f.bufferCap
	}
	refs := requestedRefs
	if f.refCap > 0 && refs > f.refCap {
		refs = f.refCap
	}

	return submit.Transfer{
		Buffer:   make([]byte, bufBytes),
		RefTable: make([]alloctrack.ReferenceEntry, refs),
	}, nil
}

func (f *fakeHost) SubmitRender(ctx context.Context, t submit.Transfer, byteLength, refCount int) (uint64, error) {
	return f.record(t, byteLength, refCount, false)
}

func (f *fakeHost) ReleaseTransfer(ctx context.Context, t submit.Transfer) {
	f.released++
}

func (f *fakeHost) record(t submit.Transfer, byteLength, refCount int, present bool) (uint64, error) {
	if f.submitErr != nil && len(f.submissions) >= f.submitErrAfter {
		return 0, f.submitErr
	}

	f.nextFence++
	buf := make([]byte, byteLength)
	copy(buf, t.Buffer[:byteLength])
	refs := make([]alloctrack.ReferenceEntry, refCount)
	copy(refs, t.RefTable[:refCount])

	f.submissions = append(f.submissions, fakeSubmission{
		Buffer:  buf,
		Refs:    refs,
		Fence:   f.nextFence,
		Present: present,
	})
	return f.nextFence, nil
}

// presentingHost adds a distinct present entry point.
type presentingHost struct {
	*fakeHost
}

func (p *presentingHost) SubmitPresent(ctx context.Context, t submit.Transfer, byteLength, refCount int) (uint64, error) {
	return p.record(t, byteLength, refCount, true)
}

// queryingHost adds a completed-fence query backed by an atomic so tests can
// advance it from another goroutine.
type queryingHost struct {
	*fakeHost
	completed atomic.Uint64
}

func (q *queryingHost) CompletedFence() uint64 {
	return q.completed.Load()
}

// waitingHost adds a blocking wait primitive.
type waitingHost struct {
	*fakeHost
	waitErr    error
	lastWaited uint64
}

func (w *waitingHost) WaitForFence(fence uint64, timeout time.Duration) error {
	w.lastWaited = fence
	return w.waitErr
}
