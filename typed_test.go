package arena

import (
	"bytes"
	"slices"
	"testing"
	"unsafe"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type node struct {
	id    int64
	name  string
	edges []int
}

// tracked counts its own finalization in a shared counter.
type tracked struct {
	id    int
	drops *int
}

func (t *tracked) Finalize() {
	*t.drops++
}

// marker is zero-sized and counts finalizations in zstDrops.
type marker struct{}

var zstDrops int

func (*marker) Finalize() {
	zstDrops++
}

func TestTypedArenaAlloc(t *testing.T) {
	a := NewTypedArena[node]()
	defer a.Release()

	ptrs := make([]*node, 0, 2000)
	for i := range 2000 {
		ptrs = append(ptrs, a.Alloc(node{id: int64(i), name: "n", edges: []int{i}}))
	}
	require.Greater(t, a.NumChunks(), 1, "2000 nodes should span several chunks")
	assert.Equal(t, 2000, a.Len())

	seen := make(map[*node]struct{}, len(ptrs))
	for i, p := range ptrs {
		require.Equal(t, node{id: int64(i), name: "n", edges: []int{i}}, *p, "value %d changed", i)
		_, dup := seen[p]
		require.False(t, dup, "pointer %d handed out twice", i)
		seen[p] = struct{}{}
	}

	*ptrs[3] = node{id: 42}
	assert.Equal(t, int64(42), ptrs[3].id)
	assert.Equal(t, int64(4), ptrs[4].id)
}

func TestTypedArenaZeroValue(t *testing.T) {
	var a TypedArena[int64]
	assert.Zero(t, a.NumChunks(), "an empty arena owns no chunks")

	p := a.Alloc(7)
	assert.Equal(t, int64(7), *p)
	assert.Equal(t, 1, a.NumChunks())
	assert.Equal(t, Page/8, len(a.chunks[0].storage))
	a.Release()
}

func TestTypedArenaGrowthPolicy(t *testing.T) {
	a := NewTypedArena[int64]()
	defer a.Release()

	want := []int{512, 1024, 2048, 4096}
	total := 0
	for _, c := range want {
		total += c
	}
	for i := range total {
		a.Alloc(int64(i))
	}
	require.Equal(t, len(want), a.NumChunks())
	for i, c := range a.chunks {
		assert.Equal(t, want[i], len(c.storage), "chunk %d", i)
	}

	// The current chunk is exactly full; the next value starts chunk five.
	a.Alloc(0)
	assert.Equal(t, 8192, len(a.chunks[4].storage))
}

func TestTypedArenaBulkRequestLargerThanPolicy(t *testing.T) {
	a := NewTypedArena[int64]()
	defer a.Release()

	a.Alloc(1)
	big := make([]int64, 3000)
	for i := range big {
		big[i] = int64(i)
	}
	got := a.AllocFromSlice(big)
	require.Len(t, got, 3000)
	assert.Equal(t, 3000, len(a.chunks[1].storage), "chunk must fit the request")
	assert.Equal(t, int64(2999), got[2999])
}

func TestTypedArenaFinalizesEveryValueOnce(t *testing.T) {
	tests := []struct {
		name  string
		alloc func(a *TypedArena[tracked], drops *int) int
	}{
		{
			name: "single chunk partially filled",
			alloc: func(a *TypedArena[tracked], drops *int) int {
				for i := range 10 {
					a.Alloc(tracked{id: i, drops: drops})
				}
				return 10
			},
		},
		{
			name: "several chunks, last one partial",
			alloc: func(a *TypedArena[tracked], drops *int) int {
				for i := range 5000 {
					a.Alloc(tracked{id: i, drops: drops})
				}
				return 5000
			},
		},
		{
			name: "bulk insert abandons the tail of a chunk",
			alloc: func(a *TypedArena[tracked], drops *int) int {
				for i := range 200 {
					a.Alloc(tracked{id: i, drops: drops})
				}
				vals := make([]tracked, 300)
				for i := range vals {
					vals[i] = tracked{id: i, drops: drops}
				}
				a.AllocFromSlice(vals)
				a.AllocFromIter(func(yield func(tracked) bool) {
					for i := range 20 {
						if !yield(tracked{id: i, drops: drops}) {
							return
						}
					}
				})
				a.Alloc(tracked{drops: drops})
				return 200 + 300 + 20 + 1
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			drops := 0
			a := NewTypedArena[tracked]()
			n := tt.alloc(a, &drops)

			require.Zero(t, drops, "nothing may be finalized before Release")
			a.Release()
			assert.Equal(t, n, drops)

			a.Release()
			assert.Equal(t, n, drops, "a second Release must not finalize again")
		})
	}
}

func TestTypedArenaFuncFinalizer(t *testing.T) {
	var closed []int
	a := NewTypedArenaFunc(func(fd *int) { closed = append(closed, *fd) })

	for fd := range 3 {
		a.Alloc(fd + 10)
	}
	a.Release()
	assert.ElementsMatch(t, []int{10, 11, 12}, closed)
}

func TestTypedArenaWithoutFinalizerSkipsBookkeeping(t *testing.T) {
	a := NewTypedArenaFunc[node](nil)
	defer a.Release()

	for i := range 1000 {
		a.Alloc(node{id: int64(i)})
	}
	require.Greater(t, a.NumChunks(), 1)
	for _, c := range a.chunks {
		assert.Zero(t, c.entries)
	}
}

func TestTypedArenaRecordsEntries(t *testing.T) {
	drops := 0
	a := NewTypedArena[tracked]()

	for i := range 100 {
		a.Alloc(tracked{id: i, drops: &drops})
	}
	rest := make([]tracked, a.end-a.ptr+1)
	for i := range rest {
		rest[i] = tracked{id: i, drops: &drops}
	}
	// One slot more than the first chunk has left forces a second chunk.
	a.AllocFromSlice(rest)
	require.Equal(t, 2, a.NumChunks())
	assert.Equal(t, 100, a.chunks[0].entries)

	a.Release()
	assert.Equal(t, 100+len(rest), drops)
}

func TestTypedArenaZeroSized(t *testing.T) {
	a := NewTypedArena[struct{}]()
	defer a.Release()

	first := a.Alloc(struct{}{})
	for range 10_000 {
		p := a.Alloc(struct{}{})
		require.Equal(t, unsafe.Pointer(first), unsafe.Pointer(p))
	}
	assert.Equal(t, 10_001, a.Len(), "each allocation gets its own logical index")
	assert.Equal(t, 1, a.NumChunks(), "zero-sized values never need another chunk")
	assert.Zero(t, a.Metrics().Capacity)

	require.Panics(t, func() {
		a.AllocFromIter(slices.Values([]struct{}{{}, {}}))
	})
}

func TestTypedArenaZeroSizedFinalizer(t *testing.T) {
	zstDrops = 0
	a := NewTypedArena[marker]()
	for range 10_000 {
		a.Alloc(marker{})
	}
	a.Release()
	assert.Equal(t, 10_000, zstDrops)
}

func TestTypedArenaAllocFromIter(t *testing.T) {
	a := NewTypedArena[node]()
	defer a.Release()

	assert.Nil(t, a.AllocFromIter(slices.Values([]node(nil))))

	small := a.AllocFromIter(slices.Values([]node{{id: 1}, {id: 2}}))
	assert.Equal(t, []node{{id: 1}, {id: 2}}, small)

	many := make([]node, 100)
	for i := range many {
		many[i] = node{id: int64(i)}
	}
	got := a.AllocFromIter(slices.Values(many))
	require.Len(t, got, 100)
	assert.Equal(t, many, got)
	assert.Equal(t, 102, a.Len())
}

func TestTypedArenaAllocFromIterN(t *testing.T) {
	a := NewTypedArena[int32]()
	defer a.Release()

	got := a.AllocFromIterN(slices.Values([]int32{1, 2, 3}), 5)
	assert.Equal(t, []int32{1, 2, 3}, got, "a short sequence is truncated, not an error")

	got = a.AllocFromIterN(slices.Values([]int32{1, 2, 3, 4, 5, 6}), 4)
	assert.Equal(t, []int32{1, 2, 3, 4}, got)
}

func TestTypedArenaAllocFromSliceConsumesSource(t *testing.T) {
	a := NewTypedArena[node]()
	defer a.Release()

	src := []node{{id: 1, name: "a"}, {id: 2, name: "b"}}
	got := a.AllocFromSlice(src)

	assert.Equal(t, []node{{id: 1, name: "a"}, {id: 2, name: "b"}}, got)
	assert.Equal(t, []node{{}, {}}, src, "moved-from elements are zeroed")
	assert.Nil(t, a.AllocFromSlice(nil))
}

func TestTypedArenaUseAfterRelease(t *testing.T) {
	a := NewTypedArena[int]()
	a.Alloc(1)
	a.Release()

	assert.Zero(t, a.NumChunks())
	assert.PanicsWithValue(t, "arena: use after Release()", func() {
		a.Alloc(2)
	})
}

func TestTypedArenaMetricsAndStats(t *testing.T) {
	a := NewTypedArena[int64]()

	m := a.Metrics()
	assert.Zero(t, m.Capacity)
	assert.Zero(t, m.Utilization)

	for i := range 256 {
		a.Alloc(int64(i))
	}
	m = a.Metrics()
	assert.Equal(t, 256*8, m.SizeInUse)
	assert.Equal(t, Page, m.Capacity)
	assert.Equal(t, 1, m.NumChunks)
	assert.InDelta(t, 0.5, m.Utilization, 1e-9)

	assert.Equal(t, Stats{Chunks: 1, ReservedBytes: Page, Grows: 1}, a.Stats())
	a.Release()
	assert.Equal(t, Stats{Grows: 1, Releases: 1}, a.Stats())
}

func TestTypedArenaLogsGrowth(t *testing.T) {
	var buf bytes.Buffer
	a := NewTypedArena[int64](WithLogger(log.NewLogfmtLogger(&buf)), WithName("spans"))
	defer a.Release()

	a.Alloc(1)
	assert.Contains(t, buf.String(), `msg="arena chunk grown"`)
	assert.Contains(t, buf.String(), "arena=spans")
	assert.Contains(t, buf.String(), "capacity=512")
}

func TestTypedArenaCapacityOverflow(t *testing.T) {
	a := NewTypedArena[[1 << 10]byte]()
	defer a.Release()

	assert.Panics(t, func() {
		a.allocRawSlice(1 << 60)
	})
}
