package arena

import "go.uber.org/atomic"

// ArenaMetrics contains statistical information about an arena.
type ArenaMetrics struct {
	SizeInUse   int     // Bytes handed out, including alignment padding
	Capacity    int     // Total capacity in bytes
	NumChunks   int     // Number of chunks
	Utilization float64 // Ratio of used to total capacity (0.0-1.0)
}

func (m ArenaMetrics) add(o ArenaMetrics) ArenaMetrics {
	m.SizeInUse += o.SizeInUse
	m.Capacity += o.Capacity
	m.NumChunks += o.NumChunks
	m.Utilization = utilization(m.SizeInUse, m.Capacity)
	return m
}

func utilization(used, capacity int) float64 {
	if capacity == 0 {
		return 0
	}
	return float64(used) / float64(capacity)
}

// Stats is a point-in-time copy of the counters an arena keeps for
// monitoring. Unlike Metrics, Stats may be read from any goroutine.
type Stats struct {
	Chunks        int64 // Chunks currently held
	ReservedBytes int64 // Bytes reserved by those chunks
	Grows         int64 // Chunks created over the arena's lifetime
	Releases      int64 // Times the arena was torn down
}

func (s Stats) add(o Stats) Stats {
	s.Chunks += o.Chunks
	s.ReservedBytes += o.ReservedBytes
	s.Grows += o.Grows
	s.Releases += o.Releases
	return s
}

// stats is written by the goroutine owning the arena and read by collectors.
type stats struct {
	chunks   atomic.Int64
	reserved atomic.Int64
	grows    atomic.Int64
	releases atomic.Int64
}

func (s *stats) grew(bytes int) {
	s.chunks.Inc()
	s.reserved.Add(int64(bytes))
	s.grows.Inc()
}

func (s *stats) released() {
	s.chunks.Store(0)
	s.reserved.Store(0)
	s.releases.Inc()
}

func (s *stats) snapshot() Stats {
	return Stats{
		Chunks:        s.chunks.Load(),
		ReservedBytes: s.reserved.Load(),
		Grows:         s.grows.Load(),
		Releases:      s.releases.Load(),
	}
}
