package arena

import (
	"iter"
	"reflect"
	"unsafe"

	"github.com/go-kit/log/level"

	"github.com/pavanmanishd/arena/v2/internal/layout"
)

// Finalizer is implemented by values that must release something when the
// arena holding them is torn down. A TypedArena[T] calls Finalize on every
// value it handed out when *T implements Finalizer.
type Finalizer interface {
	Finalize()
}

// finalizerOf returns the finalize func for T, or nil when *T is not a Finalizer.
func finalizerOf[T any]() func(*T) {
	if _, ok := any((*T)(nil)).(Finalizer); !ok {
		return nil
	}
	return func(p *T) {
		any(p).(Finalizer).Finalize()
	}
}

// TypedArena holds values of a single type and finalizes each of them on
// Release. Values are bump allocated upward through a list of chunks.
//
// The zero value is an empty arena with the default configuration, ready
// to use. A TypedArena must not be used concurrently, but an idle arena may
// be handed to another goroutine.
type TypedArena[T any] struct {
	// ptr is the next free slot in the last chunk and end is that chunk's
	// bound. ptr == end means the arena needs a new chunk.
	ptr int
	end int

	cur    *chunk[T]
	chunks []*chunk[T]
	count  int

	finalize   func(*T)
	opts       options
	configured bool
	released   bool
	stats      stats
}

// NewTypedArena returns an empty arena for T. Values are finalized on
// Release if *T implements Finalizer.
func NewTypedArena[T any](opts ...Option) *TypedArena[T] {
	return newTypedArena(finalizerOf[T](), newOptions(opts))
}

// NewTypedArenaFunc returns an empty arena for T that calls finalize on each
// value at Release. A nil finalize means values need no finalization; the
// arena then skips both the per-chunk bookkeeping and the teardown pass.
func NewTypedArenaFunc[T any](finalize func(*T), opts ...Option) *TypedArena[T] {
	return newTypedArena(finalize, newOptions(opts))
}

func newTypedArena[T any](finalize func(*T), o options) *TypedArena[T] {
	return &TypedArena[T]{finalize: finalize, opts: o, configured: true}
}

// setup resolves the configuration of a zero-value arena.
func (a *TypedArena[T]) setup() {
	if a.configured {
		return
	}
	a.opts = newOptions(nil)
	a.finalize = finalizerOf[T]()
	a.configured = true
}

// Alloc moves v into the arena and returns a pointer to it. The pointer
// stays valid until Release.
//
// Every zero-sized value shares one address; Len tells them apart.
func (a *TypedArena[T]) Alloc(v T) *T {
	if a.ptr == a.end {
		a.grow(1)
	}
	a.count++

	if zeroSized[T]() {
		a.ptr++
		return zeroSizedPtr[T]()
	}

	p := &a.cur.storage[a.ptr]
	*p = v
	a.ptr++
	return p
}

// AllocFromIter copies every value yielded by seq into contiguous arena
// storage. It panics for zero-sized T.
func (a *TypedArena[T]) AllocFromIter(seq iter.Seq[T]) []T {
	if zeroSized[T]() {
		panic("arena: AllocFromIter on zero-sized element type")
	}
	var stack [inlineLen]T
	vals := collect(seq, stack[:0])
	return a.moveFrom(vals)
}

// AllocFromIterN is AllocFromIter for a sequence that advertises n values.
// At most n values are taken; if seq yields fewer, the result is shorter.
func (a *TypedArena[T]) AllocFromIterN(seq iter.Seq[T], n int) []T {
	return a.AllocFromIter(limit(seq, n))
}

// AllocFromSlice moves the contents of src into the arena without staging
// them first. src is consumed: its elements are zeroed afterwards, so values
// owned by the arena are reachable from one place only.
func (a *TypedArena[T]) AllocFromSlice(src []T) []T {
	return a.moveFrom(src)
}

func (a *TypedArena[T]) moveFrom(src []T) []T {
	if len(src) == 0 {
		return nil
	}
	dst := a.allocRawSlice(len(src))
	copy(dst, src)
	clear(src)
	return dst
}

// allocRawSlice reserves n contiguous slots in the last chunk.
func (a *TypedArena[T]) allocRawSlice(n int) []T {
	if zeroSized[T]() {
		panic("arena: slice of zero-sized element type")
	}
	if n == 0 {
		panic("arena: zero-length slice reservation")
	}
	a.ensureCapacity(n)

	start := a.ptr
	a.ptr += n
	a.count += n
	return a.cur.storage[start:a.ptr:a.ptr]
}

func (a *TypedArena[T]) ensureCapacity(n int) {
	var zero T
	layout.MulCheck(unsafe.Sizeof(zero), n)
	if a.end-a.ptr < n {
		a.grow(n)
	}
}

// grow starts a new chunk able to hold at least additional values.
func (a *TypedArena[T]) grow(additional int) {
	a.panicIfReleased()
	a.setup()

	var zero T
	elemSize := int(unsafe.Sizeof(zero))

	last := 0
	if a.cur != nil {
		if a.finalize != nil {
			a.cur.entries = a.ptr
		}
		last = len(a.cur.storage)
	}
	newCap := a.opts.policy.chunkCap(last, elemSize, additional)
	bytes := int(layout.MulCheck(uintptr(elemSize), newCap))

	c := newChunk[T](newCap)
	a.chunks = append(a.chunks, c)
	a.cur = c
	a.ptr = 0
	a.end = c.end()

	a.stats.grew(bytes)
	level.Debug(a.opts.logger).Log(
		"msg", "arena chunk grown",
		"arena", a.opts.name,
		"kind", "typed",
		"type", typeName[T](),
		"capacity", newCap,
		"bytes", bytes,
		"chunks", len(a.chunks),
	)
}

// Len returns the number of values allocated so far.
func (a *TypedArena[T]) Len() int {
	return a.count
}

// NumChunks returns the number of chunks currently held.
func (a *TypedArena[T]) NumChunks() int {
	return len(a.chunks)
}

// Metrics returns a snapshot of arena statistics.
func (a *TypedArena[T]) Metrics() ArenaMetrics {
	var zero T
	elemSize := int(unsafe.Sizeof(zero))

	m := ArenaMetrics{
		SizeInUse: a.count * elemSize,
		NumChunks: len(a.chunks),
	}
	for _, c := range a.chunks {
		m.Capacity += len(c.storage) * elemSize
	}
	m.Utilization = utilization(m.SizeInUse, m.Capacity)
	return m
}

// Stats returns the arena counters. It is safe to call from any goroutine.
func (a *TypedArena[T]) Stats() Stats {
	return a.stats.snapshot()
}

// Release finalizes every value in the arena and drops its chunks. All
// finalizers run before any storage is dropped. The arena cannot be used
// afterwards; calling Release again does nothing.
func (a *TypedArena[T]) Release() {
	if a.released {
		return
	}
	if n := len(a.chunks); n > 0 {
		a.clearLastChunk(a.chunks[n-1])
		for _, c := range a.chunks[:n-1] {
			c.destroy(c.entries, a.finalize)
		}
	}

	a.chunks = nil
	a.cur = nil
	a.ptr, a.end = 0, 0
	a.count = 0
	a.released = true
	a.stats.released()
}

// clearLastChunk finalizes the filled part of the last chunk, the only one
// that may be partially filled.
func (a *TypedArena[T]) clearLastChunk(last *chunk[T]) {
	last.destroy(a.ptr, a.finalize)
	a.ptr = 0
}

func (a *TypedArena[T]) panicIfReleased() {
	if a.released {
		panic("arena: use after Release()")
	}
}

func typeName[T any]() string {
	return reflect.TypeFor[T]().String()
}
