package flatframe

import (
	"math"

	"github.com/pkg/errors"
)

// every field entry must be addressable by a uint16 vtable size
const maxFields = (math.MaxUint16 - vtableHeaderSize) / SizeVOffset

// widest alignment a field can ask for; objects start on it
const maxFieldAlign = 8

// ObjectBuilder writes the fields of one table. It is only valid between
// Builder.StartObject and its own Finish; afterwards every call fails with
// ErrObjectFinished. Only one object can be open on a Builder at a time.
type ObjectBuilder struct {
	b   *Builder
	gen uint64
}

// StartObject opens a table with room for field ids [0, numFields).
// Children the table references must already be finished. Fields are laid
// out in the order they are added; adding the widest first avoids padding
// between them. The same fields added in the same order always get the
// same layout, and so share a vtable.
func (b *Builder) StartObject(numFields int) (ObjectBuilder, error) {
	if err := b.outside(); err != nil {
		return ObjectBuilder{}, err
	}
	if numFields < 0 || numFields > maxFields {
		return ObjectBuilder{}, errors.Wrapf(ErrInvalidField, "%d fields", numFields)
	}
	if cap(b.vtable) < numFields {
		b.vtable = make([]UOffset, numFields)
	} else {
		b.vtable = b.vtable[:numFields]
		clear(b.vtable)
	}
	// padding between fields then depends only on the fields themselves
	if err := b.Prep(maxFieldAlign, 0); err != nil {
		return ObjectBuilder{}, err
	}
	b.nested = true
	b.objGen++
	b.objectEnd = b.Offset()
	b.objectStart = b.objectEnd
	b.hasFields = false
	return ObjectBuilder{b: b, gen: b.objGen}, nil
}

// reserve allocates n bytes for a field and returns the new Offset.
// Padding in front of the first field is not counted in the object size.
func (b *Builder) reserve(n, align int) (UOffset, error) {
	if err := b.Prep(align, n); err != nil {
		return 0, err
	}
	if !b.hasFields {
		b.objectStart = b.Offset()
		b.hasFields = true
	}
	b.head -= n
	return b.Offset(), nil
}

func (o ObjectBuilder) open() error {
	if o.b == nil || !o.b.nested || o.gen != o.b.objGen {
		return ErrObjectFinished
	}
	return nil
}

func (o ObjectBuilder) check(id int) error {
	if err := o.open(); err != nil {
		return err
	}
	if id < 0 || id >= len(o.b.vtable) {
		return errors.Wrapf(ErrInvalidField, "field %d of %d", id, len(o.b.vtable))
	}
	return nil
}

// AddScalar writes v into field id, unless v equals def and the builder
// does not force defaults: readers reconstruct def for absent fields.
func AddScalar[T Scalar](o ObjectBuilder, id int, v, def T) error {
	if err := o.check(id); err != nil {
		return err
	}
	if v == def && !o.b.opts.ForceDefaults {
		return nil
	}
	w := SizeOf[T]()
	off, err := o.b.reserve(w, w)
	if err != nil {
		return err
	}
	PutScalar(o.b.bytes[o.b.head:], v)
	o.b.vtable[id] = off
	return nil
}

func (o ObjectBuilder) AddBool(id int, v, def bool) error       { return AddScalar(o, id, v, def) }
func (o ObjectBuilder) AddInt8(id int, v, def int8) error       { return AddScalar(o, id, v, def) }
func (o ObjectBuilder) AddUint8(id int, v, def uint8) error     { return AddScalar(o, id, v, def) }
func (o ObjectBuilder) AddInt16(id int, v, def int16) error     { return AddScalar(o, id, v, def) }
func (o ObjectBuilder) AddUint16(id int, v, def uint16) error   { return AddScalar(o, id, v, def) }
func (o ObjectBuilder) AddInt32(id int, v, def int32) error     { return AddScalar(o, id, v, def) }
func (o ObjectBuilder) AddUint32(id int, v, def uint32) error   { return AddScalar(o, id, v, def) }
func (o ObjectBuilder) AddInt64(id int, v, def int64) error     { return AddScalar(o, id, v, def) }
func (o ObjectBuilder) AddUint64(id int, v, def uint64) error   { return AddScalar(o, id, v, def) }
func (o ObjectBuilder) AddFloat32(id int, v, def float32) error { return AddScalar(o, id, v, def) }
func (o ObjectBuilder) AddFloat64(id int, v, def float64) error { return AddScalar(o, id, v, def) }

// AddOffset stores a reference to a finished object, string or vector.
// off must have been returned before this object was started.
func (o ObjectBuilder) AddOffset(id int, off UOffset) error {
	if err := o.check(id); err != nil {
		return err
	}
	if off == 0 || off > o.b.objectEnd {
		return errors.Wrapf(ErrUnfinishedChild, "field %d references offset %d", id, off)
	}
	pos, err := o.b.reserve(SizeUOffset, SizeUOffset)
	if err != nil {
		return err
	}
	PutScalar(o.b.bytes[o.b.head:], uint32(pos-off))
	o.b.vtable[id] = pos
	return nil
}

// AddStruct writes a fixed-layout struct inline into field id. fill gets
// the zeroed struct bytes and places each field at its static offset.
func (o ObjectBuilder) AddStruct(id, size, align int, fill func(s []byte)) error {
	if err := o.check(id); err != nil {
		return err
	}
	if size <= 0 || align > maxFieldAlign || fill == nil {
		return errors.Wrapf(ErrInvalidField, "field %d: struct of %d bytes aligned to %d", id, size, align)
	}
	off, err := o.b.reserve(size, align)
	if err != nil {
		return err
	}
	s := o.b.bytes[o.b.head : o.b.head+size]
	clear(s)
	fill(s)
	o.b.vtable[id] = off
	return nil
}

// Finish commits the object's vtable and table header and returns the
// table's offset, to be referenced by a parent or passed to Builder.Finish.
func (o ObjectBuilder) Finish() (UOffset, error) {
	if err := o.open(); err != nil {
		return 0, err
	}
	b := o.b
	// placeholder for the vtable displacement
	if _, err := b.allocate(SizeSOffset, SizeSOffset); err != nil {
		return 0, err
	}
	objectOffset := b.Offset()
	vt, err := b.writeVtable(objectOffset)
	if err != nil {
		return 0, err
	}
	// table - vtable, as a distance from the end both are measured the other way round
	PutScalar(b.bytes[len(b.bytes)-int(objectOffset):], int32(int64(vt)-int64(objectOffset)))
	b.nested = false
	b.vtable = b.vtable[:0]
	return objectOffset, nil
}
