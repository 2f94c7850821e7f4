//go:build unix

package arena

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// MmapBacking maps each chunk as private anonymous memory and unmaps it when
// the arena is released. Large arenas then return their memory to the OS at
// teardown instead of waiting for a GC cycle.
type MmapBacking struct{}

func (MmapBacking) Alloc(n int) ([]byte, error) {
	b, err := unix.Mmap(-1, 0, n, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, errors.Wrapf(err, "mmap %d bytes", n)
	}
	return b, nil
}

func (MmapBacking) Free(b []byte) error {
	return errors.Wrap(unix.Munmap(b), "munmap")
}
