package arena

import (
	"fmt"
	"iter"
	"reflect"
	"unsafe"

	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/pavanmanishd/arena/v2/internal/layout"
)

// DroplessArena holds values of any type that needs no finalization and
// carries no pointers. Allocation bumps downward from the end of the current
// chunk toward its start, which keeps the alignment math to a single mask.
//
// The zero value is an empty arena with the default configuration, ready
// to use. A DroplessArena must not be used concurrently.
type DroplessArena struct {
	// The free region of the current chunk is cur[start:end]. Allocations
	// take bytes from the top of it.
	start int
	end   int
	cur   []byte

	chunks []rawChunk
	// used counts bytes taken from chunks that are no longer current.
	used int

	// checked caches types already accepted by checkDropless.
	checked map[reflect.Type]struct{}

	opts       options
	configured bool
	released   bool
	stats      stats
}

// NewDroplessArena returns an empty dropless arena.
func NewDroplessArena(opts ...Option) *DroplessArena {
	return newDroplessArena(newOptions(opts))
}

func newDroplessArena(o options) *DroplessArena {
	return &DroplessArena{opts: o, configured: true}
}

func (a *DroplessArena) setup() {
	if a.configured {
		return
	}
	a.opts = newOptions(nil)
	a.configured = true
}

// AllocRaw reserves size bytes aligned to align and returns their address.
// The memory is owned by the arena until Release. size must be non-zero and
// align a power of two.
func (a *DroplessArena) AllocRaw(size, align uintptr) unsafe.Pointer {
	if size == 0 {
		panic("arena: zero-size allocation")
	}
	if align == 0 || align&(align-1) != 0 {
		panic(fmt.Sprintf("arena: alignment %d is not a power of two", align))
	}
	for {
		if p, ok := a.allocRawWithoutGrow(size, align); ok {
			return p
		}
		// No room left in the current chunk.
		a.grow(int(size))
	}
}

func (a *DroplessArena) allocRawWithoutGrow(size, align uintptr) (unsafe.Pointer, bool) {
	if uintptr(a.end-a.start) < size {
		return nil, false
	}
	base := uintptr(unsafe.Pointer(unsafe.SliceData(a.cur)))
	newEnd := layout.AlignDown(base+uintptr(a.end)-size, align)
	if newEnd < base+uintptr(a.start) {
		return nil, false
	}
	a.end = int(newEnd - base)
	return unsafe.Pointer(&a.cur[a.end]), true
}

// grow starts a new chunk of at least additional bytes.
func (a *DroplessArena) grow(additional int) {
	a.panicIfReleased()
	a.setup()

	newCap := a.opts.policy.chunkCap(len(a.cur), 1, additional)
	buf, err := a.opts.backing.Alloc(newCap)
	if err != nil {
		panic(errors.Wrapf(err, "arena: allocate %d byte chunk", newCap))
	}

	if a.cur != nil {
		a.used += len(a.cur) - (a.end - a.start)
	}
	a.chunks = append(a.chunks, rawChunk{buf: buf})
	a.cur = buf
	a.start = 0
	a.end = len(buf)

	a.stats.grew(newCap)
	level.Debug(a.opts.logger).Log(
		"msg", "arena chunk grown",
		"arena", a.opts.name,
		"kind", "dropless",
		"capacity", newCap,
		"bytes", newCap,
		"chunks", len(a.chunks),
	)
}

// checkDropless panics unless values of T may live in a dropless arena.
func (a *DroplessArena) checkDropless(t reflect.Type, finalizes bool) {
	if finalizes {
		panic(fmt.Sprintf("arena: %v requires finalization and cannot be allocated in a dropless arena", t))
	}
	if _, ok := a.checked[t]; ok {
		return
	}
	if !layout.PointerFree(t) {
		panic(fmt.Sprintf("arena: %v holds pointers and cannot be allocated in a dropless arena", t))
	}
	if a.checked == nil {
		a.checked = make(map[reflect.Type]struct{})
	}
	a.checked[t] = struct{}{}
}

// NumChunks returns the number of chunks currently held.
func (a *DroplessArena) NumChunks() int {
	return len(a.chunks)
}

// Metrics returns a snapshot of arena statistics. SizeInUse counts every
// byte no longer available for allocation, including padding and the unused
// tails of retired chunks.
func (a *DroplessArena) Metrics() ArenaMetrics {
	m := ArenaMetrics{
		SizeInUse: a.used + len(a.cur) - (a.end - a.start),
		NumChunks: len(a.chunks),
	}
	for _, c := range a.chunks {
		m.Capacity += len(c.buf)
	}
	m.Utilization = utilization(m.SizeInUse, m.Capacity)
	return m
}

// Stats returns the arena counters. It is safe to call from any goroutine.
func (a *DroplessArena) Stats() Stats {
	return a.stats.snapshot()
}

// Release returns every chunk to its backing. Nothing is finalized: no
// value that needs it is ever admitted. The arena cannot be used afterwards;
// calling Release again does nothing.
func (a *DroplessArena) Release() {
	if a.released {
		return
	}

	var err error
	for _, c := range a.chunks {
		err = multierr.Append(err, a.opts.backing.Free(c.buf))
	}
	if err != nil {
		level.Error(a.opts.logger).Log("msg", "failed to free arena chunks", "arena", a.opts.name, "chunks", len(a.chunks), "err", err)
	}

	a.chunks = nil
	a.cur = nil
	a.start, a.end = 0, 0
	a.used = 0
	a.released = true
	a.stats.released()
}

func (a *DroplessArena) panicIfReleased() {
	if a.released {
		panic("arena: use after Release()")
	}
}

// finalizes reports whether *T implements Finalizer.
func finalizes[T any]() bool {
	_, ok := any((*T)(nil)).(Finalizer)
	return ok
}

// DroplessAlloc copies v into the arena and returns a pointer to the copy.
// T must be pointer-free, non-zero-sized and must not implement Finalizer.
func DroplessAlloc[T any](a *DroplessArena, v T) *T {
	a.checkDropless(reflect.TypeFor[T](), finalizes[T]())

	l := layout.Of[T]()
	p := (*T)(a.AllocRaw(l.Size, l.Align))
	*p = v
	return p
}

// DroplessAllocSlice copies vals into the arena. It panics on an empty
// slice or a zero-sized T.
func DroplessAllocSlice[T any](a *DroplessArena, vals []T) []T {
	a.checkDropless(reflect.TypeFor[T](), finalizes[T]())
	if zeroSized[T]() {
		panic("arena: slice of zero-sized element type")
	}
	if len(vals) == 0 {
		panic("arena: empty slice allocation")
	}

	l := layout.Of[T]().Array(len(vals))
	dst := unsafe.Slice((*T)(a.AllocRaw(l.Size, l.Align)), len(vals))
	copy(dst, vals)
	return dst
}

// DroplessAllocFromIter copies every value yielded by seq into the arena.
// The values are staged first because their number is not known up front.
func DroplessAllocFromIter[T any](a *DroplessArena, seq iter.Seq[T]) []T {
	a.checkDropless(reflect.TypeFor[T](), finalizes[T]())
	if zeroSized[T]() {
		panic("arena: AllocFromIter on zero-sized element type")
	}

	var stack [inlineLen]T
	vals := collect(seq, stack[:0])
	if len(vals) == 0 {
		return nil
	}
	l := layout.Of[T]().Array(len(vals))
	dst := unsafe.Slice((*T)(a.AllocRaw(l.Size, l.Align)), len(vals))
	copy(dst, vals)
	return dst
}

// DroplessAllocFromIterN reserves room for the n values seq advertises and
// writes them in place. If seq yields fewer than n values the result holds
// only those; values past n are not consumed.
func DroplessAllocFromIterN[T any](a *DroplessArena, seq iter.Seq[T], n int) []T {
	a.checkDropless(reflect.TypeFor[T](), finalizes[T]())
	if zeroSized[T]() {
		panic("arena: AllocFromIter on zero-sized element type")
	}

	l := layout.Of[T]().Array(n)
	if n == 0 {
		return nil
	}
	dst := unsafe.Slice((*T)(a.AllocRaw(l.Size, l.Align)), n)
	i := 0
	for v := range seq {
		dst[i] = v
		i++
		if i == n {
			break
		}
	}
	return dst[:i:i]
}
