package arena

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Observable is anything that reports arena counters: TypedArena,
// DroplessArena and Arena all do.
type Observable interface {
	Stats() Stats
}

var _ prometheus.Collector = &Collector{}

var (
	chunksDesc = prometheus.NewDesc(
		"arena_chunks",
		"Number of chunks currently held by the arena.",
		[]string{"arena"}, nil,
	)
	reservedBytesDesc = prometheus.NewDesc(
		"arena_reserved_bytes",
		"Bytes reserved by the chunks currently held by the arena.",
		[]string{"arena"}, nil,
	)
	growsDesc = prometheus.NewDesc(
		"arena_chunk_grows_total",
		"Total number of chunks created by the arena.",
		[]string{"arena"}, nil,
	)
	releasesDesc = prometheus.NewDesc(
		"arena_releases_total",
		"Total number of times the arena was torn down.",
		[]string{"arena"}, nil,
	)
)

// Collector exports the counters of a set of named arenas.
type Collector struct {
	mtx    sync.RWMutex
	arenas map[string]Observable
}

func NewCollector() *Collector {
	return &Collector{arenas: make(map[string]Observable)}
}

// Track starts exporting a under name, replacing any arena tracked under
// the same name.
func (c *Collector) Track(name string, a Observable) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.arenas[name] = a
}

// Untrack stops exporting the arena tracked under name.
func (c *Collector) Untrack(name string) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	delete(c.arenas, name)
}

func (c *Collector) Describe(descs chan<- *prometheus.Desc) {
	descs <- chunksDesc
	descs <- reservedBytesDesc
	descs <- growsDesc
	descs <- releasesDesc
}

func (c *Collector) Collect(metrics chan<- prometheus.Metric) {
	c.mtx.RLock()
	defer c.mtx.RUnlock()
	for name, a := range c.arenas {
		s := a.Stats()
		metrics <- prometheus.MustNewConstMetric(chunksDesc, prometheus.GaugeValue, float64(s.Chunks), name)
		metrics <- prometheus.MustNewConstMetric(reservedBytesDesc, prometheus.GaugeValue, float64(s.ReservedBytes), name)
		metrics <- prometheus.MustNewConstMetric(growsDesc, prometheus.CounterValue, float64(s.Grows), name)
		metrics <- prometheus.MustNewConstMetric(releasesDesc, prometheus.CounterValue, float64(s.Releases), name)
	}
}
