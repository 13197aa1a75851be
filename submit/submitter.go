package submit

import (
	"context"
	"encoding/binary"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/virtgfx/virtgfx/alloctrack"
	"github.com/virtgfx/virtgfx/cmdstream"
	"github.com/virtgfx/virtgfx/gfxutils"
	"golang.org/x/exp/slog"
)

// Submitter emits a recorded command stream as a sequence of host transfers,
// each within the host's buffer and reference-table limits, preserving
// packet atomicity.
type Submitter struct {
	logger *slog.Logger
	host   Host
	caps   hostCaps
	fences *FenceTracker
	stats  gfxutils.DetailedStatistics
}

// New builds a submitter over the given host. The host's optional
// capabilities (present entry point, fence wait, fence query) are probed
// once here. A nil logger discards output.
func New(logger *slog.Logger, host Host) (*Submitter, error) {
	if host == nil {
		return nil, errors.Wrap(gfxutils.ErrInvalidArgument, "host must be non-nil")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	caps := probeHost(host)
	s := &Submitter{
		logger: logger,
		host:   host,
		caps:   caps,
		fences: NewFenceTracker(caps.waiter, caps.querier),
	}
	s.stats.Clear()
	return s, nil
}

// AddDetailedStatistics adds the submitter's accumulated transfer counters
// into stats. The counters are not synchronized with in-flight submissions;
// callers serialize through the owning queue.
func (s *Submitter) AddDetailedStatistics(stats *gfxutils.DetailedStatistics) {
	stats.AddDetailedStatistics(&s.stats)
}

// Fences returns the submitter's fence tracker.
func (s *Submitter) Fences() *FenceTracker { return s.fences }

// CanPresent reports whether the probed host has a present entry point.
func (s *Submitter) CanPresent() bool { return s.caps.present != nil }

// SubmitStream emits stream as one or more host transfers and returns the
// last fence value the host assigned. refs is the submission's full
// reference set; it is replayed into every chunk's host-provided table, so
// the host can resolve references no matter where the packet sequence was
// split. If present is set, the final chunk goes to the host's present entry
// point when it has one.
//
// The stream must have been built by a cmdstream.Writer (and finalized); a
// malformed packet walk means the stream was corrupted after recording and
// panics rather than returning an error.
//
// Any host-call failure aborts the remaining chunks immediately. Chunks
// already submitted are not rolled back; their effects are real and fenced.
func (s *Submitter) SubmitStream(ctx context.Context, stream []byte, refs alloctrack.Snapshot, present bool) (uint64, error) {
	if err := cmdstream.Validate(stream); err != nil {
		panic(errors.Wrap(err, "malformed command stream handed to the submitter"))
	}

	total := int(binary.LittleEndian.Uint32(stream[8:12]))
	if total == cmdstream.StreamHeaderSize {
		// Nothing recorded; submitting would flood the host with empty
		// transfers.
		return s.fences.LastSubmitted(), nil
	}

	var lastFence uint64
	cursor := cmdstream.StreamHeaderSize
	for cursor < total {
		requestBytes := (total - cursor) + cmdstream.StreamHeaderSize

		fence, next, err := s.submitChunk(ctx, stream, cursor, total, requestBytes, refs, present)
		if err != nil {
			return lastFence, err
		}
		if fence != 0 {
			lastFence = fence
			s.fences.ObserveSubmitted(fence)
		}
		cursor = next
	}

	s.stats.SubmissionCount++
	return lastFence, nil
}

// submitChunk acquires one transfer, fills it with as many whole packets as
// fit starting at cursor, submits it, and releases it. It returns the fence
// and the cursor past the last packet submitted.
func (s *Submitter) submitChunk(ctx context.Context, stream []byte, cursor, total, requestBytes int, refs alloctrack.Snapshot, present bool) (fence uint64, next int, err error) {
	transfer, err := s.host.CreateTransfer(ctx, requestBytes, refs.Len())
	if err != nil {
		return 0, cursor, errors.Wrapf(errors.Mark(err, gfxutils.ErrHostCallFailed), "acquiring transfer of %d bytes", requestBytes)
	}
	defer s.host.ReleaseTransfer(ctx, transfer)

	capacity := len(transfer.Buffer)
	if capacity < cmdstream.StreamHeaderSize+cmdstream.PacketHeaderSize {
		return 0, cursor, errors.Wrapf(gfxutils.ErrBufferTooSmall, "host returned a %d-byte transfer buffer", capacity)
	}

	refCount := 0
	if refs.Len() > 0 {
		table := alloctrack.NewTracker(transfer.RefTable, 0)
		if err = table.Replay(refs); err != nil {
			return 0, cursor, errors.Wrapf(err, "host returned a %d-slot reference table", len(transfer.RefTable))
		}
		gfxutils.DebugValidate(table)
		refCount = table.Len()
	}

	// Greedily append whole packets; stop before the first packet that would
	// overrun the transfer buffer. The stream was validated up front, so the
	// packet walk here cannot go wrong.
	chunkEnd := cursor
	chunkSize := cmdstream.StreamHeaderSize
	packets := 0
	for chunkEnd < total {
		pktSize := int(binary.LittleEndian.Uint32(stream[chunkEnd+4 : chunkEnd+8]))
		if chunkSize+pktSize > capacity {
			break
		}
		chunkEnd += pktSize
		chunkSize += pktSize
		packets++
	}

	if chunkEnd == cursor {
		return 0, cursor, errors.Wrapf(gfxutils.ErrOutOfMemory, "packet at offset %d does not fit a %d-byte transfer buffer", cursor, capacity)
	}

	// Copy the stream header plus the selected packets, then restamp the
	// header with the chunk's actual length.
	copy(transfer.Buffer, stream[:cmdstream.StreamHeaderSize])
	copy(transfer.Buffer[cmdstream.StreamHeaderSize:], stream[cursor:chunkEnd])
	binary.LittleEndian.PutUint32(transfer.Buffer[8:12], uint32(chunkSize))

	isLast := chunkEnd == total
	doPresent := present && isLast && s.caps.present != nil
	if doPresent {
		fence, err = s.caps.present.SubmitPresent(ctx, transfer, chunkSize, refCount)
	} else {
		fence, err = s.host.SubmitRender(ctx, transfer, chunkSize, refCount)
	}
	if err != nil {
		return 0, cursor, errors.Wrapf(errors.Mark(err, gfxutils.ErrHostCallFailed), "submitting %d-byte chunk", chunkSize)
	}

	s.stats.AddChunk(chunkSize, packets, refCount)
	s.logger.Debug("submitted chunk",
		slog.Int("bytes", chunkSize),
		slog.Int("packets", packets),
		slog.Int("refs", refCount),
		slog.Bool("present", doPresent),
		slog.Uint64("fence", fence))

	return fence, chunkEnd, nil
}
