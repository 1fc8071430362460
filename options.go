package flatframe

import "github.com/sirupsen/logrus"

const (
	defaultInitialSize = 1024
	// offsets are stored as int32/uint32; a larger buffer could not be addressed
	defaultMaxSize = 1<<31 - 1
)

// Options configure a Builder (and the Encoder built on top of it).
type Options struct {
	// InitialSize is the starting capacity of the backing array.
	InitialSize int `yaml:"initial_size"`
	// MaxSize bounds growth; exceeding it fails with ErrBufferFull.
	MaxSize int `yaml:"max_size"`
	// ForceDefaults writes scalar fields even when they equal their default.
	ForceDefaults bool `yaml:"force_defaults"`
	// Logger receives debug events (growth, vtable reuse). nil disables logging.
	Logger logrus.FieldLogger `yaml:"-"`
}

func (o Options) withDefaults() Options {
	if o.InitialSize <= 0 {
		o.InitialSize = defaultInitialSize
	}
	if o.MaxSize <= 0 || o.MaxSize > defaultMaxSize {
		o.MaxSize = defaultMaxSize
	}
	if o.InitialSize > o.MaxSize {
		o.InitialSize = o.MaxSize
	}
	return o
}
