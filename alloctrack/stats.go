package alloctrack

import (
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
)

// BuildStatsString populates a json object describing the tracker's current
// occupancy, for debug dumps.
func (t *Tracker) BuildStatsString(writer *jwriter.Writer) {
	obj := writer.Object()
	defer obj.End()

	obj.Name("Capacity").Int(len(t.table))
	obj.Name("Used").Int(t.used)

	entries := obj.Name("Entries").Array()
	defer entries.End()

	for i := 0; i < t.used; i++ {
		entry := t.table[i]

		entryObj := entries.Object()
		entryObj.Name("Slot").Int(entry.Slot)
		entryObj.Name("Handle").Int(int(entry.Handle))
		entryObj.Name("AllocId").Int(int(entry.AllocID))
		entryObj.Name("ShareToken").Int(int(entry.ShareToken))
		entryObj.Name("Write").Bool(entry.Write)
		entryObj.End()
	}
}
