package arena

import (
	"math"
	"unsafe"
)

// zeroBase is the address handed out for every zero-sized value. Such values
// occupy no storage, so all of them may alias.
var zeroBase struct{}

func zeroSized[T any]() bool {
	var zero T
	return unsafe.Sizeof(zero) == 0
}

func zeroSizedPtr[T any]() *T {
	return (*T)(unsafe.Pointer(&zeroBase))
}

// chunk is one fixed-capacity block of a TypedArena. Slots past the cursor
// hold zero values and are never finalized.
type chunk[T any] struct {
	storage []T
	// entries is the number of initialized slots. It is recorded when the
	// arena moves on to a newer chunk, and only when T needs finalization.
	entries int
}

func newChunk[T any](capacity int) *chunk[T] {
	return &chunk[T]{storage: make([]T, capacity)}
}

// end returns the bound of the chunk in slots. Zero-sized elements take no
// room, so their chunks never fill up.
func (c *chunk[T]) end() int {
	if zeroSized[T]() {
		return math.MaxInt
	}
	return len(c.storage)
}

// destroy runs finalize over the first n slots.
func (c *chunk[T]) destroy(n int, finalize func(*T)) {
	if finalize == nil {
		return
	}
	if zeroSized[T]() {
		p := zeroSizedPtr[T]()
		for range n {
			finalize(p)
		}
		return
	}
	for i := range c.storage[:n] {
		finalize(&c.storage[i])
	}
}

// rawChunk is one block of a DroplessArena.
type rawChunk struct {
	buf []byte
}
