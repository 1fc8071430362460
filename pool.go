package flatframe

import "sync"

var builderPool = sync.Pool{
	New: func() any { return NewBuilder(Options{}) },
}

// GetBuilder takes a reset Builder from a process-wide pool. opts replace
// the pooled Builder's options but not its backing array.
func GetBuilder(opts Options) *Builder {
	b := builderPool.Get().(*Builder)
	b.opts = opts.withDefaults()
	b.Reset()
	return b
}

// PutBuilder returns b to the pool. Bytes previously returned by b.Finish
// must no longer be used.
func PutBuilder(b *Builder) {
	if b == nil {
		return
	}
	// don't pin huge arrays
	if len(b.bytes) > 1<<20 {
		return
	}
	b.opts.Logger = nil
	builderPool.Put(b)
}
