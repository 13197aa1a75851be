package submit

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/virtgfx/virtgfx/allocid"
	"github.com/virtgfx/virtgfx/alloctrack"
	"github.com/virtgfx/virtgfx/cmdstream"
	"github.com/virtgfx/virtgfx/gfxutils"
	"github.com/virtgfx/virtgfx/internal/utils"
	"golang.org/x/exp/slog"
)

const (
	defaultStreamCapacity   = 64 << 10
	defaultRefTableCapacity = 256
)

// QueueOptions configures a submission queue.
type QueueOptions struct {
	// StreamCapacity is the soft byte limit a recorded stream reaches before
	// Record flushes it. Individual packets larger than the limit are still
	// accepted; they flush on the next Record. Defaults to 64KiB.
	StreamCapacity int
	// RefTableCapacity is the staging reference table's slot count. Reaching
	// it forces a flush. Defaults to 256.
	RefTableCapacity int
	// MaxAllocID bounds accepted allocation ids; 0 means allocid.MaxAllocID.
	MaxAllocID allocid.AllocID
	// Synchronized guards the queue with an internal mutex so multiple
	// goroutines can record into it.
	Synchronized bool
}

// Ref names one memory object a packet touches.
type Ref struct {
	Handle     alloctrack.Handle
	AllocID    allocid.AllocID
	ShareToken allocid.ShareToken
	Write      bool
}

// Queue records command packets and their object references, and flushes
// them to the host as submissions. A packet and its references land in the
// same submission; when either the stream or the reference table fills up,
// the queue flushes what came before and re-records the packet against the
// fresh state.
type Queue struct {
	logger *slog.Logger
	sub    *Submitter
	mutex  utils.OptionalMutex

	writer  *cmdstream.Writer
	staging *alloctrack.Tracker
	table   []alloctrack.ReferenceEntry

	streamCapacity int
}

func NewQueue(logger *slog.Logger, host Host, opts QueueOptions) (*Queue, error) {
	sub, err := New(logger, host)
	if err != nil {
		return nil, err
	}

	streamCapacity := opts.StreamCapacity
	if streamCapacity <= 0 {
		streamCapacity = defaultStreamCapacity
	} else if streamCapacity < cmdstream.StreamHeaderSize+cmdstream.PacketHeaderSize {
		return nil, errors.Wrapf(gfxutils.ErrInvalidArgument, "stream capacity %d cannot hold a packet", streamCapacity)
	}

	refCapacity := opts.RefTableCapacity
	if refCapacity <= 0 {
		refCapacity = defaultRefTableCapacity
	}

	table := make([]alloctrack.ReferenceEntry, refCapacity)
	return &Queue{
		logger:         sub.logger,
		sub:            sub,
		mutex:          utils.OptionalMutex{UseMutex: opts.Synchronized},
		writer:         cmdstream.NewWriter(),
		staging:        alloctrack.NewTracker(table, opts.MaxAllocID),
		table:          table,
		streamCapacity: streamCapacity,
	}, nil
}

// Submitter returns the queue's underlying submitter.
func (q *Queue) Submitter() *Submitter { return q.sub }

// Fences returns the fence tracker shared with the underlying submitter.
func (q *Queue) Fences() *FenceTracker { return q.sub.Fences() }

// Record appends one packet and tracks the objects it references. The packet
// and its references always travel in the same submission: when staging is
// full, the queue flushes the packets recorded so far and retries once
// against the empty stream and table. A packet whose own references exceed
// the table fails with ErrOutOfMemory.
func (q *Queue) Record(ctx context.Context, opcode uint32, payload []byte, refs ...Ref) error {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	if !q.writer.Empty() && q.writer.Len()+cmdstream.PacketSize(len(payload)) > q.streamCapacity {
		if _, err := q.flushLocked(ctx, false); err != nil {
			return err
		}
	}

	if err := q.trackRefsLocked(refs); err != nil {
		if !errors.Is(err, gfxutils.ErrNeedFlush) {
			return err
		}
		if _, err := q.flushLocked(ctx, false); err != nil {
			return err
		}
		if err := q.trackRefsLocked(refs); err != nil {
			if errors.Is(err, gfxutils.ErrNeedFlush) {
				return errors.Wrapf(gfxutils.ErrOutOfMemory, "packet references exceed the %d-slot table", len(q.table))
			}
			return err
		}
	}

	return q.writer.Append(opcode, payload)
}

// trackRefsLocked registers every ref or fails. A partial track before a
// forced flush is harmless: the flushed submission just carries references
// its packets never dereference.
func (q *Queue) trackRefsLocked(refs []Ref) error {
	for _, ref := range refs {
		var err error
		if ref.Write {
			_, err = q.staging.TrackWrite(ref.Handle, ref.AllocID, ref.ShareToken)
		} else {
			_, err = q.staging.TrackRead(ref.Handle, ref.AllocID, ref.ShareToken)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// TrackRead registers a read reference independent of any packet, flushing
// and retrying once if staging is full.
func (q *Queue) TrackRead(ctx context.Context, h alloctrack.Handle, id allocid.AllocID, token allocid.ShareToken) error {
	return q.trackOne(ctx, Ref{Handle: h, AllocID: id, ShareToken: token})
}

// TrackWrite registers a write reference independent of any packet, flushing
// and retrying once if staging is full.
func (q *Queue) TrackWrite(ctx context.Context, h alloctrack.Handle, id allocid.AllocID, token allocid.ShareToken) error {
	return q.trackOne(ctx, Ref{Handle: h, AllocID: id, ShareToken: token, Write: true})
}

func (q *Queue) trackOne(ctx context.Context, ref Ref) error {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	err := q.trackRefsLocked([]Ref{ref})
	if !errors.Is(err, gfxutils.ErrNeedFlush) {
		return err
	}
	if _, err := q.flushLocked(ctx, false); err != nil {
		return err
	}
	return q.trackRefsLocked([]Ref{ref})
}

// Flush submits everything recorded so far as render work and returns the
// submission's fence. An empty queue is a no-op returning the last
// submitted fence.
func (q *Queue) Flush(ctx context.Context) (uint64, error) {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return q.flushLocked(ctx, false)
}

// Present submits everything recorded so far, directing the final chunk to
// the host's present entry point when it has one.
func (q *Queue) Present(ctx context.Context) (uint64, error) {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return q.flushLocked(ctx, true)
}

// flushLocked hands the recorded stream and staged references to the
// submitter. The recorded state is consumed whether or not the submission
// succeeds: a mid-stream host failure leaves some chunks submitted, and
// replaying the whole stream would duplicate them.
func (q *Queue) flushLocked(ctx context.Context, present bool) (uint64, error) {
	if q.writer.Empty() {
		return q.sub.Fences().LastSubmitted(), nil
	}

	gfxutils.DebugValidate(q.staging)
	stream := q.writer.Finalize()
	snap := q.staging.Snapshot()

	fence, err := q.sub.SubmitStream(ctx, stream, snap, present)
	q.writer.Reset()
	q.staging.Reset()
	if err != nil {
		return fence, errors.Wrap(err, "flushing recorded commands")
	}
	return fence, nil
}

// Destroy flushes pending work and logs the queue's lifetime counters. The
// queue must not be used afterwards.
func (q *Queue) Destroy(ctx context.Context) error {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	_, err := q.flushLocked(ctx, false)

	var stats gfxutils.DetailedStatistics
	stats.Clear()
	q.sub.AddDetailedStatistics(&stats)
	q.logger.Debug("destroying submission queue",
		slog.Int("submissions", stats.SubmissionCount),
		slog.Int("chunks", stats.ChunkCount),
		slog.Int("chunkBytes", stats.ChunkBytes),
		slog.Int("packets", stats.PacketCount))

	return err
}
