// Package submit turns recorded command streams into host transfers: it
// chunks a stream to fit host-provided buffers without splitting packets,
// replays the submission's reference table into each transfer, and tracks
// the completion fences the host returns.
package submit

import (
	"context"
	"time"

	"github.com/virtgfx/virtgfx/alloctrack"
)

// Transfer is one host-provided submission buffer pair: a command buffer and
// a reference table. The host chooses both capacities and may return less
// than requested.
type Transfer struct {
	Buffer   []byte
	RefTable []alloctrack.ReferenceEntry
}

// Host is the paravirtual submission interface. CreateTransfer and the
// submit calls may block the calling goroutine for a host round-trip;
// latency-sensitive callers should offload to a worker.
type Host interface {
	// CreateTransfer acquires a transfer buffer and reference table. The
	// returned capacities may be smaller than requested.
	CreateTransfer(ctx context.Context, requestedBytes, requestedRefs int) (Transfer, error)

	// SubmitRender hands a filled transfer to the host's render entry point
	// and returns the submission's fence value.
	SubmitRender(ctx context.Context, t Transfer, byteLength, refCount int) (uint64, error)

	// ReleaseTransfer returns the transfer to the host. It must be called
	// exactly once per CreateTransfer, whether or not the submit succeeded.
	ReleaseTransfer(ctx context.Context, t Transfer)
}

// PresentHost is implemented by hosts with a distinct present entry point.
// Hosts without it get present-style submissions through SubmitRender.
type PresentHost interface {
	SubmitPresent(ctx context.Context, t Transfer, byteLength, refCount int) (uint64, error)
}

// FenceWaiter is implemented by hosts with a blocking fence-wait primitive.
type FenceWaiter interface {
	WaitForFence(fence uint64, timeout time.Duration) error
}

// FenceQuerier is implemented by hosts that can report the most recent
// completed fence. It is the polling fallback when FenceWaiter is absent.
type FenceQuerier interface {
	CompletedFence() uint64
}

// hostCaps is the closed set of host ABI variants, resolved once at
// initialization by probing which optional interfaces the host implements.
type hostCaps struct {
	present PresentHost
	waiter  FenceWaiter
	querier FenceQuerier
}

func probeHost(host Host) hostCaps {
	var caps hostCaps
	if p, ok := host.(PresentHost); ok {
		caps.present = p
	}
	if w, ok := host.(FenceWaiter); ok {
		caps.waiter = w
	}
	if q, ok := host.(FenceQuerier); ok {
		caps.querier = q
	}
	return caps
}
