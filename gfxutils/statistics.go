package gfxutils

import "math"

// Statistics counts the host transfers produced by a submission queue.
type Statistics struct {
	ChunkCount      int
	ChunkBytes      int
	PacketCount     int
	ReferenceCount  int
	SubmissionCount int
}

func (s *Statistics) Clear() {
	s.ChunkCount = 0
	s.ChunkBytes = 0
	s.PacketCount = 0
	s.ReferenceCount = 0
	s.SubmissionCount = 0
}

func (s *Statistics) AddStatistics(other *Statistics) {
	s.ChunkCount += other.ChunkCount
	s.ChunkBytes += other.ChunkBytes
	s.PacketCount += other.PacketCount
	s.ReferenceCount += other.ReferenceCount
	s.SubmissionCount += other.SubmissionCount
}

type DetailedStatistics struct {
	Statistics
	ChunkSizeMin int
	ChunkSizeMax int
}

func (s *DetailedStatistics) Clear() {
	s.Statistics.Clear()
	s.ChunkSizeMin = math.MaxInt
	s.ChunkSizeMax = 0
}

// AddChunk records one emitted host transfer.
func (s *DetailedStatistics) AddChunk(sizeBytes, packets, references int) {
	s.ChunkCount++
	s.ChunkBytes += sizeBytes
	s.PacketCount += packets
	s.ReferenceCount += references

	if sizeBytes < s.ChunkSizeMin {
		s.ChunkSizeMin = sizeBytes
	}

	if sizeBytes > s.ChunkSizeMax {
		s.ChunkSizeMax = sizeBytes
	}
}

func (s *DetailedStatistics) AddDetailedStatistics(other *DetailedStatistics) {
	s.Statistics.AddStatistics(&other.Statistics)

	if other.ChunkSizeMin < s.ChunkSizeMin {
		s.ChunkSizeMin = other.ChunkSizeMin
	}

	if other.ChunkSizeMax > s.ChunkSizeMax {
		s.ChunkSizeMax = other.ChunkSizeMax
	}
}
