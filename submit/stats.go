package submit

import (
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/virtgfx/virtgfx/gfxutils"
)

// BuildStatsString returns a json description of the queue: pending recorded
// state plus the lifetime transfer counters, for debug dumps.
func (q *Queue) BuildStatsString() string {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	writer := jwriter.NewWriter()
	obj := writer.Object()

	pending := obj.Name("Pending").Object()
	pending.Name("StreamBytes").Int(q.writer.Len())
	pending.Name("PacketCount").Int(q.writer.PacketCount())
	pending.Name("ReferenceCount").Int(q.staging.Len())
	pending.Name("ReferenceCapacity").Int(q.staging.Capacity())
	pending.End()

	var stats gfxutils.DetailedStatistics
	stats.Clear()
	q.sub.AddDetailedStatistics(&stats)

	lifetime := obj.Name("Lifetime").Object()
	lifetime.Name("Submissions").Int(stats.SubmissionCount)
	lifetime.Name("Chunks").Int(stats.ChunkCount)
	lifetime.Name("ChunkBytes").Int(stats.ChunkBytes)
	lifetime.Name("Packets").Int(stats.PacketCount)
	lifetime.Name("References").Int(stats.ReferenceCount)
	if stats.ChunkCount > 0 {
		lifetime.Name("ChunkSizeMin").Int(stats.ChunkSizeMin)
		lifetime.Name("ChunkSizeMax").Int(stats.ChunkSizeMax)
	}
	lifetime.End()

	fences := obj.Name("Fences").Object()
	fences.Name("LastSubmitted").Int(int(q.sub.Fences().LastSubmitted()))
	fences.Name("LastCompleted").Int(int(q.sub.Fences().LastCompleted()))
	fences.End()

	obj.End()
	return string(writer.Bytes())
}
