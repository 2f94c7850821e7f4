package arena

// Backing provides the raw storage behind dropless chunks. Memory handed out
// by a Backing is never scanned by the garbage collector, which is why only
// pointer-free values are stored in dropless arenas.
type Backing interface {
	// Alloc returns a zeroed buffer of exactly n bytes.
	Alloc(n int) ([]byte, error)
	// Free releases a buffer previously returned by Alloc.
	Free(b []byte) error
}

// HeapBacking allocates chunks on the Go heap. Free is a no-op; the chunk is
// reclaimed once the arena drops its last reference to it.
type HeapBacking struct{}

func (HeapBacking) Alloc(n int) ([]byte, error) {
	return make([]byte, n), nil
}

func (HeapBacking) Free([]byte) error { return nil }

func backingFor(name string) Backing {
	if name == BackingMmap {
		return MmapBacking{}
	}
	return HeapBacking{}
}
