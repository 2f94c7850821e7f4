package arena

import (
	"github.com/go-kit/log"
	"github.com/pkg/errors"
)

// Option configures an arena at construction.
type Option func(*options)

type options struct {
	cfg     Config
	policy  growthPolicy
	backing Backing
	logger  log.Logger
	name    string
}

// WithConfig sets chunk sizing and backing from cfg.
func WithConfig(cfg Config) Option {
	return func(o *options) {
		o.cfg = cfg
	}
}

// WithLogger sets the logger used for chunk growth and teardown events.
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithName names the arena in log lines.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithBacking overrides the storage used for dropless chunks.
// It takes precedence over Config.Backing.
func WithBacking(b Backing) Option {
	return func(o *options) {
		o.backing = b
	}
}

// newOptions applies opts over the defaults. An invalid config is a
// programming error and panics.
func newOptions(opts []Option) options {
	o := options{
		cfg:    DefaultConfig(),
		logger: log.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.cfg.Validate(); err != nil {
		panic(errors.Wrap(err, "arena: invalid config"))
	}
	o.policy = growthPolicy{page: o.cfg.PageSize, hugePage: o.cfg.HugePageSize}
	if o.backing == nil {
		o.backing = backingFor(o.cfg.Backing)
	}
	return o
}

// with returns a copy of o renamed for a sub-arena.
func (o options) with(name string) options {
	o.name = name
	return o
}
