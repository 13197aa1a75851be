package alloctrack

import (
	"github.com/cockroachdb/errors"
	"github.com/virtgfx/virtgfx/gfxutils"
)

// Snapshot is the ordered list of entries tracked by one submission,
// captured so a logical submission can be retried against a freshly rebound
// table after a forced flush, or replayed into each chunk's host-provided
// table.
type Snapshot struct {
	entries []ReferenceEntry
}

// Len returns the number of captured entries.
func (s Snapshot) Len() int { return len(s.entries) }

// Entries returns the captured entries in slot order.
func (s Snapshot) Entries() []ReferenceEntry { return s.entries }

// Snapshot captures the tracked entries in slot order, including write
// flags.
func (t *Tracker) Snapshot() Snapshot {
	entries := make([]ReferenceEntry, t.used)
	copy(entries, t.table[:t.used])
	return Snapshot{entries: entries}
}

// Replay resets the tracker and re-tracks the snapshot's entries in their
// original order, preserving slot order and write flags. It fails without
// touching the bound table if the table is smaller than the snapshot.
func (t *Tracker) Replay(snap Snapshot) error {
	if len(snap.entries) > len(t.table) {
		return errors.Wrapf(gfxutils.ErrOutOfMemory, "replaying %d entries into a %d-slot table", len(snap.entries), len(t.table))
	}

	t.Reset()
	for _, entry := range snap.entries {
		var err error
		if entry.Write {
			_, err = t.TrackWrite(entry.Handle, entry.AllocID, entry.ShareToken)
		} else {
			_, err = t.TrackRead(entry.Handle, entry.AllocID, entry.ShareToken)
		}
		if err != nil {
			// Snapshot entries were valid when captured, so this indicates
			// table corruption rather than caller error.
			return errors.Wrapf(err, "replaying entry for handle %d", entry.Handle)
		}
	}
	return nil
}
