//go:build !unix

package arena

// MmapBacking falls back to the Go heap on platforms without mmap.
type MmapBacking struct{}

func (MmapBacking) Alloc(n int) ([]byte, error) {
	return HeapBacking{}.Alloc(n)
}

func (MmapBacking) Free(b []byte) error {
	return HeapBacking{}.Free(b)
}
