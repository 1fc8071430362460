package flatframe

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Builder packs objects into a single byte buffer that grows from its end
// towards its start. Every position it hands out is a distance from the end
// of the buffer, so growing (which moves content to a larger array) never
// invalidates an offset.
//
// Objects must be built bottom-up: children are finished before the parent
// that references them is started. A Builder is not safe for concurrent use;
// independent Builders share nothing.
type Builder struct {
	opts Options

	bytes    []byte
	head     int // index of the first committed byte
	minAlign int

	// open object state
	vtable      []UOffset // per field id, Offset() after the field was written; 0 = unset
	objectEnd   UOffset   // Offset() when the object was started
	objectStart UOffset   // Offset() before the first field, past its alignment padding
	hasFields   bool
	nested      bool
	objGen      uint64

	vtables vtablePool
	scratch []byte
	shared  map[string]UOffset

	finished bool
}

// NewBuilder returns a Builder with an empty buffer of opts.InitialSize bytes.
func NewBuilder(opts Options) *Builder {
	opts = opts.withDefaults()
	b := &Builder{
		opts:  opts,
		bytes: make([]byte, opts.InitialSize),
	}
	b.vtables.init()
	b.Reset()
	return b
}

// Reset starts a new build session, keeping the backing array.
// Slices returned by Finish on the previous session are no longer valid.
func (b *Builder) Reset() {
	b.head = len(b.bytes)
	b.minAlign = 1
	b.vtable = b.vtable[:0]
	b.objectEnd = 0
	b.nested = false
	b.objGen++
	b.vtables.reset()
	clear(b.shared)
	b.finished = false
}

// Offset is the number of committed bytes, i.e. the distance from the end of
// the buffer to the current head.
func (b *Builder) Offset() UOffset {
	return UOffset(len(b.bytes) - b.head)
}

// MinAlign is the largest alignment any value in the session required.
func (b *Builder) MinAlign() int {
	return b.minAlign
}

// Cap is the current size of the backing array.
func (b *Builder) Cap() int {
	return len(b.bytes)
}

// ForceDefaults toggles writing of default-valued scalars.
func (b *Builder) ForceDefaults(force bool) {
	b.opts.ForceDefaults = force
}

// Prep pads the buffer so that once additional more bytes have been written
// the head is a multiple of align, and makes sure there is room for them.
func (b *Builder) Prep(align, additional int) error {
	if align <= 0 || align&(align-1) != 0 {
		return errors.Errorf("alignment %d is not a power of two", align)
	}
	if align > b.minAlign {
		b.minAlign = align
	}
	pad := (align - (int(b.Offset())+additional)%align) % align
	if err := b.ensure(pad + additional); err != nil {
		return err
	}
	b.pad(pad)
	return nil
}

// PrependBytes copies p in front of everything written so far, unaligned.
func (b *Builder) PrependBytes(p []byte) error {
	if err := b.outside(); err != nil {
		return err
	}
	if _, err := b.allocate(len(p), 1); err != nil {
		return err
	}
	copy(b.bytes[b.head:], p)
	return nil
}

// allocate reserves n bytes whose end lands on an align boundary and moves
// the head over them. It returns the new Offset.
func (b *Builder) allocate(n, align int) (UOffset, error) {
	if err := b.Prep(align, n); err != nil {
		return 0, err
	}
	b.head -= n
	return b.Offset(), nil
}

func (b *Builder) pad(n int) {
	for i := 0; i < n; i++ {
		b.head--
		b.bytes[b.head] = 0
	}
}

func (b *Builder) ensure(n int) error {
	if b.head >= n {
		return nil
	}
	return b.grow(n)
}

// grow moves the committed bytes to the end of a larger array with at
// least n free bytes in front of them.
func (b *Builder) grow(n int) error {
	old := len(b.bytes)
	used := old - b.head
	if used+n > b.opts.MaxSize {
		return errors.Wrapf(ErrBufferFull, "need %d bytes, %d in use, limit %d", n, used, b.opts.MaxSize)
	}
	size := old * 2
	if size == 0 {
		size = defaultInitialSize
	}
	for size < used+n {
		size *= 2
	}
	if size > b.opts.MaxSize {
		size = b.opts.MaxSize
	}
	nb := make([]byte, size)
	copy(nb[size-used:], b.bytes[b.head:])
	b.bytes = nb
	b.head = size - used
	b.debug("buffer grown", logrus.Fields{"from": old, "to": size, "used": used})
	return nil
}

// outside reports whether raw writes are allowed: no object may be open and
// the session must not be finished.
func (b *Builder) outside() error {
	if b.finished {
		return ErrBuilderFinished
	}
	if b.nested {
		return ErrNestedObject
	}
	return nil
}

func (b *Builder) prependUOffset(off UOffset) error {
	if off == 0 || off > b.Offset() {
		return errors.Wrapf(ErrUnfinishedChild, "offset %d, buffer holds %d bytes", off, b.Offset())
	}
	if err := b.Prep(SizeUOffset, 0); err != nil {
		return err
	}
	rel := b.Offset() - off + SizeUOffset
	b.head -= SizeUOffset
	PutScalar(b.bytes[b.head:], uint32(rel))
	return nil
}

// Finish writes the root reference in front of the buffer, padding so that
// the whole region satisfies MinAlign, and returns the finished bytes.
// The returned slice aliases the Builder's memory until the next Reset.
func (b *Builder) Finish(root UOffset) ([]byte, error) {
	return b.finish(root, false)
}

// FinishSizePrefixed is Finish followed by a uint32 holding the length of
// the rest of the buffer.
func (b *Builder) FinishSizePrefixed(root UOffset) ([]byte, error) {
	return b.finish(root, true)
}

func (b *Builder) finish(root UOffset, sizePrefix bool) ([]byte, error) {
	if err := b.outside(); err != nil {
		return nil, err
	}
	extra := SizeUOffset
	if sizePrefix {
		extra += SizeUOffset
	}
	if err := b.Prep(max(b.minAlign, SizeUOffset), extra); err != nil {
		return nil, err
	}
	if err := b.prependUOffset(root); err != nil {
		return nil, err
	}
	if sizePrefix {
		size := b.Offset()
		if _, err := b.allocate(SizeUOffset, SizeUOffset); err != nil {
			return nil, err
		}
		PutScalar(b.bytes[b.head:], uint32(size))
	}
	b.finished = true
	return b.bytes[b.head:], nil
}

// FinishedBytes returns the buffer produced by the last Finish.
func (b *Builder) FinishedBytes() ([]byte, error) {
	if !b.finished {
		return nil, ErrBuilderNotFinished
	}
	return b.bytes[b.head:], nil
}

func (b *Builder) debug(msg string, fields logrus.Fields) {
	if b.opts.Logger == nil {
		return
	}
	b.opts.Logger.WithFields(fields).Debug(msg)
}
