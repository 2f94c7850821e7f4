package arena

import (
	"flag"
	"strings"

	"github.com/pkg/errors"
)

// Chunk sizing defaults. Arenas start with Page-sized chunks and double each
// new chunk until chunks reach HugePage bytes, which matches the usual page
// and huge page sizes on Linux.
const (
	Page     = 4096
	HugePage = 2 * 1024 * 1024
)

// Backing names accepted by Config.Backing.
const (
	BackingHeap = "heap"
	BackingMmap = "mmap"
)

var (
	errInvalidPageSize     = errors.New("page size must be a positive power of two")
	errInvalidHugePageSize = errors.New("huge page size must be a power of two at least twice the page size")
	errInvalidBacking      = errors.Errorf("backing must be one of: %s", strings.Join([]string{BackingHeap, BackingMmap}, ", "))
)

// Config controls chunk sizing and where dropless chunks come from.
type Config struct {
	PageSize     int    `yaml:"page_size"`
	HugePageSize int    `yaml:"huge_page_size"`
	Backing      string `yaml:"backing"`
}

// DefaultConfig returns the configuration used by zero-value arenas.
func DefaultConfig() Config {
	return Config{
		PageSize:     Page,
		HugePageSize: HugePage,
		Backing:      BackingHeap,
	}
}

// RegisterFlags registers the arena flags under the "arena." prefix.
func (cfg *Config) RegisterFlags(f *flag.FlagSet) {
	cfg.RegisterFlagsWithPrefix(f, "arena.")
}

// RegisterFlagsWithPrefix registers the arena flags with the given prefix.
func (cfg *Config) RegisterFlagsWithPrefix(f *flag.FlagSet, prefix string) {
	f.IntVar(&cfg.PageSize, prefix+"page-size", Page, "Size in bytes of the first chunk of an arena.")
	f.IntVar(&cfg.HugePageSize, prefix+"huge-page-size", HugePage, "Chunk size in bytes past which an arena stops doubling its chunks.")
	f.StringVar(&cfg.Backing, prefix+"backing", BackingHeap, "Storage for dropless chunks: heap or mmap.")
}

// Validate checks the config.
func (cfg *Config) Validate() error {
	if cfg.PageSize <= 0 || !isPowerOfTwo(cfg.PageSize) {
		return errors.Wrapf(errInvalidPageSize, "got %d", cfg.PageSize)
	}
	if !isPowerOfTwo(cfg.HugePageSize) || cfg.HugePageSize/2 < cfg.PageSize {
		return errors.Wrapf(errInvalidHugePageSize, "got %d with page size %d", cfg.HugePageSize, cfg.PageSize)
	}
	switch cfg.Backing {
	case BackingHeap, BackingMmap:
	default:
		return errors.Wrapf(errInvalidBacking, "got %q", cfg.Backing)
	}
	return nil
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}
