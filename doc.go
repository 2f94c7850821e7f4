// Package arena implements chunked bump allocators for values that live
// until one bulk teardown.
//
// # Overview
//
// An arena hands out memory from large chunks and reclaims all of it at
// once with Release. There is no per-value free. Three arenas are provided:
//
//   - TypedArena[T] holds values of one type and finalizes each of them at
//     Release, either through the Finalizer interface or an explicit func.
//   - DroplessArena holds pointer-free values of any type that never need
//     finalization, packed into raw byte chunks.
//   - Arena combines one DroplessArena with a TypedArena for every
//     registered type that cannot live in it, and routes each request by
//     the requested type.
//
// # Basic Usage
//
//	a := arena.NewArena()
//	defer a.Release() // finalizes, then drops all chunks
//
//	arena.Register[*Module](a)         // holds pointers: gets its own TypedArena
//	arena.Register[FileHandle](a)      // *FileHandle implements Finalizer
//
//	span := arena.Alloc(a, Span{Lo: 1, Hi: 9})      // dropless, no registration needed
//	ids := arena.AllocSlice(a, []uint32{4, 8, 15})  // dropless
//	fh := arena.Alloc(a, FileHandle{fd: fd})        // typed, finalized at Release
//
// # Chunk Growth
//
// The first chunk of an arena holds one page (4 KiB) worth of elements.
// Each later chunk is twice the size of its predecessor until chunks reach
// a huge page (2 MiB); a chunk is always large enough for the request that
// created it. Both sizes can be changed through Config.
//
// # Zero-Sized Types
//
// A TypedArena of a zero-sized type never grows past its first chunk, which
// takes no memory. Every returned pointer is the same address.
//
// # Thread Safety
//
// Arenas are not goroutine-safe. An idle arena may be handed to another
// goroutine. Stats may be read concurrently with allocation, which lets a
// Collector export arena counters to Prometheus.
//
// # Important Notes
//
//   - Pointers and slices returned by an arena are valid until Release.
//   - Contract violations panic: zero-size requests, capacity overflow,
//     finalizing or pointer-carrying types given to a DroplessArena, and
//     use after Release.
//   - Only pointer-free values are stored in raw byte chunks, because the
//     garbage collector does not scan them.
package arena
