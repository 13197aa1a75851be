// Package alloctrack maintains the bounded per-submission reference table
// mapping guest memory-object handles to allocation ids and table slots. The
// host resolves command-stream references through this table, so every
// distinct object a submission touches must occupy exactly one slot.
package alloctrack

import (
	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/virtgfx/virtgfx/allocid"
	"github.com/virtgfx/virtgfx/gfxutils"
)

// Handle is an opaque, process-local identifier for a memory object as known
// to the host submission interface. Two processes may hold different handles
// to the same underlying object; the allocation id is the cross-process
// identity.
type Handle uint64

// ReferenceEntry is one slot of a reference table.
type ReferenceEntry struct {
	Handle     Handle
	AllocID    allocid.AllocID
	ShareToken allocid.ShareToken
	Slot       int
	Write      bool
}

// Tracker deduplicates the objects referenced by one in-progress submission
// into a caller-owned, fixed-capacity table. It is used on the recording
// path and is not synchronized; a tracker must not be shared across
// concurrent submissions.
type Tracker struct {
	table []ReferenceEntry
	used  int
	maxID allocid.AllocID

	byHandle *swiss.Map[Handle, int]
	byID     *swiss.Map[allocid.AllocID, int]
}

// NewTracker binds a tracker to the given caller-owned table. maxID bounds
// the accepted id range; 0 means allocid.MaxAllocID.
func NewTracker(table []ReferenceEntry, maxID allocid.AllocID) *Tracker {
	if maxID == 0 {
		maxID = allocid.MaxAllocID
	}
	t := &Tracker{
		table: table,
		maxID: maxID,
	}
	t.resetIndices()
	return t
}

func (t *Tracker) resetIndices() {
	hint := uint32(len(t.table))
	if hint == 0 {
		hint = 1
	}
	t.byHandle = swiss.NewMap[Handle, int](hint)
	t.byID = swiss.NewMap[allocid.AllocID, int](hint)
}

// Len returns the number of occupied slots.
func (t *Tracker) Len() int { return t.used }

// Capacity returns the bound table's slot count.
func (t *Tracker) Capacity() int { return len(t.table) }

// Entries returns the occupied prefix of the bound table, in slot order.
func (t *Tracker) Entries() []ReferenceEntry { return t.table[:t.used] }

// TrackRead registers that the current submission reads the object. token
// may be zero for non-shared objects.
func (t *Tracker) TrackRead(h Handle, id allocid.AllocID, token allocid.ShareToken) (int, error) {
	return t.track(h, id, token, false)
}

// TrackWrite registers that at least one command in the current submission
// writes the object. A slot's write flag is only ever upgraded, never
// downgraded.
func (t *Tracker) TrackWrite(h Handle, id allocid.AllocID, token allocid.ShareToken) (int, error) {
	return t.track(h, id, token, true)
}

func (t *Tracker) track(h Handle, id allocid.AllocID, token allocid.ShareToken, write bool) (int, error) {
	if h == 0 {
		return 0, errors.Wrap(gfxutils.ErrInvalidArgument, "zero handle")
	}
	if id == 0 || id > t.maxID {
		return 0, errors.Wrapf(gfxutils.ErrAllocIDOutOfRange, "alloc id %d (max %d)", id, t.maxID)
	}

	// A handle must denote the same object for the whole submission.
	if slot, ok := t.byHandle.Get(h); ok {
		entry := &t.table[slot]
		if entry.AllocID != id {
			return 0, errors.Wrapf(gfxutils.ErrAllocIDMismatch, "handle %d tracked with id %d, retracked with id %d", h, entry.AllocID, id)
		}
		if write {
			entry.Write = true
		}
		return slot, nil
	}

	// Same id under a different handle: the same underlying object opened
	// twice in this process, or shared in from another process. Reuse the
	// slot unless the recorded share identity disagrees.
	if slot, ok := t.byID.Get(id); ok {
		entry := &t.table[slot]
		if token != 0 && entry.ShareToken != 0 && token != entry.ShareToken {
			return 0, errors.Wrapf(gfxutils.ErrAllocIDCollision, "alloc id %d claimed with share token %d, retracked with %d", id, entry.ShareToken, token)
		}
		if entry.ShareToken == 0 {
			entry.ShareToken = token
		}
		if write {
			entry.Write = true
		}
		t.byHandle.Put(h, slot)
		return slot, nil
	}

	if t.used >= len(t.table) {
		return 0, gfxutils.ErrNeedFlush
	}

	// Slot indices are dense and submission-local; the id is the
	// protocol-stable value.
	slot := t.used
	t.used++
	t.table[slot] = ReferenceEntry{
		Handle:     h,
		AllocID:    id,
		ShareToken: token,
		Slot:       slot,
		Write:      write,
	}
	t.byHandle.Put(h, slot)
	t.byID.Put(id, slot)
	return slot, nil
}

// Reset clears all tracked state. The same underlying table stays bound.
func (t *Tracker) Reset() {
	t.used = 0
	t.resetIndices()
}

// Rebind points the tracker at a different caller-owned table and clears all
// tracked state. Used when a chunk boundary forces a fresh host-provided
// table.
func (t *Tracker) Rebind(table []ReferenceEntry) {
	t.table = table
	t.Reset()
}

// Validate checks the table invariants: slot indices dense and self-
// consistent, ids unique per slot, and every handle index pointing at a slot
// recorded for it.
func (t *Tracker) Validate() error {
	if t.used > len(t.table) {
		return errors.Newf("tracker uses %d slots of a %d-slot table", t.used, len(t.table))
	}

	seen := make(map[allocid.AllocID]int, t.used)
	for i := 0; i < t.used; i++ {
		entry := t.table[i]
		if entry.Slot != i {
			return errors.Newf("slot %d records index %d", i, entry.Slot)
		}
		if entry.AllocID == 0 {
			return errors.Newf("slot %d holds a zero alloc id", i)
		}
		if prior, ok := seen[entry.AllocID]; ok {
			return errors.Newf("alloc id %d occupies slots %d and %d", entry.AllocID, prior, i)
		}
		seen[entry.AllocID] = i

		if slot, ok := t.byID.Get(entry.AllocID); !ok || slot != i {
			return errors.Newf("id index does not point alloc id %d at slot %d", entry.AllocID, i)
		}
	}

	var indexErr error
	t.byHandle.Iter(func(h Handle, slot int) bool {
		if slot < 0 || slot >= t.used {
			indexErr = errors.Newf("handle %d indexed to unoccupied slot %d", h, slot)
			return true
		}
		return false
	})
	return indexErr
}
