package arena

import (
	"fmt"
	"iter"
	"reflect"

	"github.com/pavanmanishd/arena/v2/internal/layout"
)

// route says which arena serves a type.
type route uint8

const (
	// routeDropless sends values to the shared DroplessArena.
	routeDropless route = iota
	// routeTyped sends values to the type's own TypedArena.
	routeTyped
)

func (r route) String() string {
	switch r {
	case routeDropless:
		return "dropless"
	case routeTyped:
		return "typed"
	default:
		return fmt.Sprintf("route(%d)", uint8(r))
	}
}

// entry is the registry record for one type. typed holds a *TypedArena[T]
// when route is routeTyped.
type entry struct {
	route   route
	typed   any
	release func()
	metrics func() ArenaMetrics
	stats   func() Stats
}

// Arena is one DroplessArena plus one TypedArena per registered type that
// cannot live in it. Each type is classified once, when it is registered:
//
//   - pointer-free types that need no finalization go to the dropless arena
//     and need not be registered at all;
//   - types that need no finalization but hold pointers get a TypedArena
//     that never runs a teardown pass, since raw chunks are not scanned by
//     the garbage collector;
//   - types that need finalization get a TypedArena that finalizes them.
//
// Register every non-pointer-free type before the first allocation. An
// Arena must not be used concurrently.
type Arena struct {
	dropless *DroplessArena
	types    map[reflect.Type]*entry
	order    []*entry

	opts     options
	released bool
}

// NewArena returns an empty composite arena.
func NewArena(opts ...Option) *Arena {
	o := newOptions(opts)
	return &Arena{
		dropless: newDroplessArena(o.with(o.name + "/dropless")),
		types:    make(map[reflect.Type]*entry),
		opts:     o,
	}
}

// Dropless returns the shared dropless arena for raw allocations.
func (a *Arena) Dropless() *DroplessArena {
	return a.dropless
}

// Register declares T. Values of T are finalized on Release if *T
// implements Finalizer. It panics if T is already registered.
func Register[T any](a *Arena) {
	register(a, finalizerOf[T]())
}

// RegisterFunc declares T with an explicit finalizer. A nil finalize
// declares that T needs no finalization.
func RegisterFunc[T any](a *Arena, finalize func(*T)) {
	register(a, finalize)
}

func register[T any](a *Arena, finalize func(*T)) {
	a.panicIfReleased()
	t := reflect.TypeFor[T]()
	if _, ok := a.types[t]; ok {
		panic(fmt.Sprintf("arena: %v registered twice", t))
	}

	e := &entry{route: routeDropless}
	if finalize != nil || !layout.PointerFree(t) {
		typed := newTypedArena(finalize, a.opts.with(a.opts.name+"/"+t.String()))
		e.route = routeTyped
		e.typed = typed
		e.release = typed.Release
		e.metrics = typed.Metrics
		e.stats = typed.Stats
		a.order = append(a.order, e)
	}
	a.types[t] = e
}

// lookup returns the registry entry for T. Unregistered pointer-free types
// without a finalizer are routed to the dropless arena on first use.
func lookup[T any](a *Arena) *entry {
	t := reflect.TypeFor[T]()
	if e, ok := a.types[t]; ok {
		return e
	}
	if finalizes[T]() || !layout.PointerFree(t) {
		panic(fmt.Sprintf("arena: %v must be registered before it is allocated", t))
	}
	e := &entry{route: routeDropless}
	a.types[t] = e
	return e
}

// Alloc moves v into the arena that serves T and returns a pointer to it.
func Alloc[T any](a *Arena, v T) *T {
	a.panicIfReleased()
	e := lookup[T](a)
	if e.route == routeTyped {
		return e.typed.(*TypedArena[T]).Alloc(v)
	}
	return DroplessAlloc(a.dropless, v)
}

// AllocSlice copies vals into the dropless arena. T must be pointer-free
// and need no finalization. An empty slice yields nil.
func AllocSlice[T any](a *Arena, vals []T) []T {
	a.panicIfReleased()
	if len(vals) == 0 {
		return nil
	}
	if e := lookup[T](a); e.route != routeDropless {
		panic(fmt.Sprintf("arena: AllocSlice of %v, which cannot be copied bytewise", reflect.TypeFor[T]()))
	}
	return DroplessAllocSlice(a.dropless, vals)
}

// AllocFromIter moves every value yielded by seq into the arena that serves T.
func AllocFromIter[T any](a *Arena, seq iter.Seq[T]) []T {
	a.panicIfReleased()
	e := lookup[T](a)
	if e.route == routeTyped {
		return e.typed.(*TypedArena[T]).AllocFromIter(seq)
	}
	return DroplessAllocFromIter(a.dropless, seq)
}

// AllocFromIterN is AllocFromIter for a sequence that advertises exactly n
// values. The result is shorter than n if seq yields fewer.
func AllocFromIterN[T any](a *Arena, seq iter.Seq[T], n int) []T {
	a.panicIfReleased()
	e := lookup[T](a)
	if e.route == routeTyped {
		return e.typed.(*TypedArena[T]).AllocFromIterN(seq, n)
	}
	return DroplessAllocFromIterN(a.dropless, seq, n)
}

// Metrics returns the combined statistics of all member arenas.
func (a *Arena) Metrics() ArenaMetrics {
	m := a.dropless.Metrics()
	for _, e := range a.order {
		m = m.add(e.metrics())
	}
	return m
}

// Stats returns the combined counters of all member arenas. It may be
// called from any goroutine once registration is complete.
func (a *Arena) Stats() Stats {
	s := a.dropless.Stats()
	for _, e := range a.order {
		s = s.add(e.stats())
	}
	return s
}

// Release tears down every member arena. Typed arenas are finalized first,
// in registration order, so finalizers may still read dropless values;
// dropless storage goes last. Calling Release again does nothing.
func (a *Arena) Release() {
	if a.released {
		return
	}
	for _, e := range a.order {
		e.release()
	}
	a.dropless.Release()
	a.released = true
}

func (a *Arena) panicIfReleased() {
	if a.released {
		panic("arena: use after Release()")
	}
}
