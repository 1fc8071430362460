package flatframe

import (
	"github.com/pkg/errors"
)

// Table is a view of one object inside a finished buffer. It never copies
// or mutates Buf; any number of Tables may read the same buffer at once.
type Table struct {
	Buf []byte
	Pos UOffset
}

// GetRoot returns the table referenced by the root offset at the start of buf.
func GetRoot(buf []byte) (Table, error) {
	pos, err := indirect(buf, 0)
	if err != nil {
		return Table{}, errors.Wrap(err, "root")
	}
	return Table{Buf: buf, Pos: pos}, nil
}

// indirect follows the uoffset stored at pos.
func indirect(buf []byte, pos UOffset) (UOffset, error) {
	if uint64(pos)+SizeUOffset > uint64(len(buf)) {
		return 0, errors.Wrapf(ErrOutOfBounds, "uoffset at %d, buffer is %d bytes", pos, len(buf))
	}
	target := uint64(pos) + uint64(ReadScalar[uint32](buf[pos:]))
	if target >= uint64(len(buf)) {
		return 0, errors.Wrapf(ErrOutOfBounds, "uoffset at %d points to %d, buffer is %d bytes", pos, target, len(buf))
	}
	return UOffset(target), nil
}

// vtable locates and validates the table's vtable, returning its position
// and its size in bytes.
func (t Table) vtable() (int, int, error) {
	if uint64(t.Pos)+SizeSOffset > uint64(len(t.Buf)) {
		return 0, 0, errors.Wrapf(ErrOutOfBounds, "table at %d, buffer is %d bytes", t.Pos, len(t.Buf))
	}
	vt := int64(t.Pos) - int64(ReadScalar[int32](t.Buf[t.Pos:]))
	if vt < 0 || vt+vtableHeaderSize > int64(len(t.Buf)) {
		return 0, 0, errors.Wrapf(ErrOutOfBounds, "vtable at %d for table at %d", vt, t.Pos)
	}
	size := int(ReadScalar[uint16](t.Buf[vt:]))
	if size < vtableHeaderSize || size%SizeVOffset != 0 {
		return 0, 0, errors.Wrapf(ErrMalformedVtable, "vtable at %d declares %d bytes", vt, size)
	}
	if vt+int64(size) > int64(len(t.Buf)) {
		return 0, 0, errors.Wrapf(ErrOutOfBounds, "vtable at %d runs %d bytes past the buffer", vt, vt+int64(size)-int64(len(t.Buf)))
	}
	return int(vt), size, nil
}

// Offset returns the position of field id relative to the table start, or
// 0 when the field is absent: either explicitly unset or newer than the
// vtable the table was written with.
func (t Table) Offset(id int) (VOffset, error) {
	if id < 0 || id > maxFields {
		return 0, errors.Wrapf(ErrInvalidField, "field %d", id)
	}
	vt, size, err := t.vtable()
	if err != nil {
		return 0, err
	}
	entry := int(FieldVOffset(id))
	if entry >= size {
		return 0, nil
	}
	off := ReadScalar[uint16](t.Buf[vt+entry:])
	if off != 0 && off < SizeSOffset {
		return 0, errors.Wrapf(ErrMalformedVtable, "field %d overlaps the table header", id)
	}
	return VOffset(off), nil
}

// NumFields is the number of field entries the table's vtable carries.
func (t Table) NumFields() (int, error) {
	_, size, err := t.vtable()
	if err != nil {
		return 0, err
	}
	return (size - vtableHeaderSize) / SizeVOffset, nil
}

// Has reports whether field id was written.
func (t Table) Has(id int) (bool, error) {
	off, err := t.Offset(id)
	return off != 0, err
}

// field returns the absolute position of field id, checking that width
// bytes are readable there.
func (t Table) field(id, width int) (UOffset, bool, error) {
	off, err := t.Offset(id)
	if err != nil || off == 0 {
		return 0, false, err
	}
	pos := uint64(t.Pos) + uint64(off)
	if pos+uint64(width) > uint64(len(t.Buf)) {
		return 0, false, errors.Wrapf(ErrOutOfBounds, "field %d at %d", id, pos)
	}
	return UOffset(pos), true, nil
}

// Get reads scalar field id, returning the zero value when it is absent.
func Get[T Scalar](t Table, id int) (T, error) {
	var zero T
	return GetWithDefault(t, id, zero)
}

// GetWithDefault reads scalar field id, returning def when it is absent.
func GetWithDefault[T Scalar](t Table, id int, def T) (T, error) {
	pos, ok, err := t.field(id, SizeOf[T]())
	if err != nil {
		return def, err
	}
	if !ok {
		return def, nil
	}
	return ReadScalar[T](t.Buf[pos:]), nil
}

func (t Table) GetBool(id int, def bool) (bool, error)          { return GetWithDefault(t, id, def) }
func (t Table) GetInt8(id int, def int8) (int8, error)          { return GetWithDefault(t, id, def) }
func (t Table) GetUint8(id int, def uint8) (uint8, error)       { return GetWithDefault(t, id, def) }
func (t Table) GetInt16(id int, def int16) (int16, error)       { return GetWithDefault(t, id, def) }
func (t Table) GetUint16(id int, def uint16) (uint16, error)    { return GetWithDefault(t, id, def) }
func (t Table) GetInt32(id int, def int32) (int32, error)       { return GetWithDefault(t, id, def) }
func (t Table) GetUint32(id int, def uint32) (uint32, error)    { return GetWithDefault(t, id, def) }
func (t Table) GetInt64(id int, def int64) (int64, error)       { return GetWithDefault(t, id, def) }
func (t Table) GetUint64(id int, def uint64) (uint64, error)    { return GetWithDefault(t, id, def) }
func (t Table) GetFloat32(id int, def float32) (float32, error) { return GetWithDefault(t, id, def) }
func (t Table) GetFloat64(id int, def float64) (float64, error) { return GetWithDefault(t, id, def) }

// GetTable follows the reference in field id.
func (t Table) GetTable(id int) (Table, bool, error) {
	pos, ok, err := t.field(id, SizeUOffset)
	if err != nil || !ok {
		return Table{}, false, err
	}
	target, err := indirect(t.Buf, pos)
	if err != nil {
		return Table{}, false, err
	}
	return Table{Buf: t.Buf, Pos: target}, true, nil
}

// GetVector follows the reference in field id to a vector.
func (t Table) GetVector(id int) (Vector, bool, error) {
	pos, ok, err := t.field(id, SizeUOffset)
	if err != nil || !ok {
		return Vector{}, false, err
	}
	v, err := readVector(t.Buf, pos)
	if err != nil {
		return Vector{}, false, err
	}
	return v, true, nil
}

// GetBytes returns the byte vector in field id. The slice aliases Buf.
func (t Table) GetBytes(id int) ([]byte, error) {
	v, ok, err := t.GetVector(id)
	if err != nil || !ok {
		return nil, err
	}
	return v.Bytes()
}

// GetString returns a copy of the string in field id, "" when absent.
func (t Table) GetString(id int) (string, error) {
	b, err := t.GetBytes(id)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// GetStruct returns the inline struct in field id.
func (t Table) GetStruct(id int) (Struct, bool, error) {
	pos, ok, err := t.field(id, 0)
	if err != nil || !ok {
		return Struct{}, false, err
	}
	return Struct{Buf: t.Buf, Pos: pos}, true, nil
}

// Struct is a fixed-layout value stored inline: every field is present at a
// known offset from Pos, there is no vtable.
type Struct struct {
	Buf []byte
	Pos UOffset
}

// StructField reads the scalar at off bytes into the struct.
func StructField[T Scalar](s Struct, off int) (T, error) {
	var zero T
	pos := uint64(s.Pos) + uint64(off)
	if off < 0 || pos+uint64(SizeOf[T]()) > uint64(len(s.Buf)) {
		return zero, errors.Wrapf(ErrOutOfBounds, "struct field at %d+%d", s.Pos, off)
	}
	return ReadScalar[T](s.Buf[pos:]), nil
}

func (s Struct) Bool(off int) (bool, error)       { return StructField[bool](s, off) }
func (s Struct) Int8(off int) (int8, error)       { return StructField[int8](s, off) }
func (s Struct) Uint8(off int) (uint8, error)     { return StructField[uint8](s, off) }
func (s Struct) Int16(off int) (int16, error)     { return StructField[int16](s, off) }
func (s Struct) Uint16(off int) (uint16, error)   { return StructField[uint16](s, off) }
func (s Struct) Int32(off int) (int32, error)     { return StructField[int32](s, off) }
func (s Struct) Uint32(off int) (uint32, error)   { return StructField[uint32](s, off) }
func (s Struct) Int64(off int) (int64, error)     { return StructField[int64](s, off) }
func (s Struct) Uint64(off int) (uint64, error)   { return StructField[uint64](s, off) }
func (s Struct) Float32(off int) (float32, error) { return StructField[float32](s, off) }
func (s Struct) Float64(off int) (float64, error) { return StructField[float64](s, off) }

// Struct returns a nested struct starting off bytes into s.
func (s Struct) Struct(off int) Struct {
	return Struct{Buf: s.Buf, Pos: s.Pos + UOffset(off)}
}

// Vector is a view of a length-prefixed vector; Start is the position of
// the first element.
type Vector struct {
	Buf   []byte
	Start UOffset
	Len   int
}

func readVector(buf []byte, pos UOffset) (Vector, error) {
	target, err := indirect(buf, pos)
	if err != nil {
		return Vector{}, err
	}
	if uint64(target)+SizeUOffset > uint64(len(buf)) {
		return Vector{}, errors.Wrapf(ErrOutOfBounds, "vector length at %d", target)
	}
	n := ReadScalar[uint32](buf[target:])
	return Vector{Buf: buf, Start: target + SizeUOffset, Len: int(n)}, nil
}

// Data returns the raw element bytes for elements of elemSize bytes.
func (v Vector) Data(elemSize int) ([]byte, error) {
	end := uint64(v.Start) + uint64(v.Len)*uint64(elemSize)
	if end > uint64(len(v.Buf)) {
		return nil, errors.Wrapf(ErrOutOfBounds, "vector at %d with %d elements of %d bytes", v.Start, v.Len, elemSize)
	}
	return v.Buf[v.Start:end:end], nil
}

// Bytes returns the elements of a byte vector, aliasing Buf.
func (v Vector) Bytes() ([]byte, error) {
	return v.Data(1)
}

func (v Vector) elem(i, size int) (UOffset, error) {
	if i < 0 || i >= v.Len {
		return 0, errors.Wrapf(ErrOutOfBounds, "index %d of %d", i, v.Len)
	}
	pos := uint64(v.Start) + uint64(i)*uint64(size)
	if pos+uint64(size) > uint64(len(v.Buf)) {
		return 0, errors.Wrapf(ErrOutOfBounds, "element %d at %d", i, pos)
	}
	return UOffset(pos), nil
}

// VectorAt reads element i of a scalar vector.
func VectorAt[T Scalar](v Vector, i int) (T, error) {
	var zero T
	pos, err := v.elem(i, SizeOf[T]())
	if err != nil {
		return zero, err
	}
	return ReadScalar[T](v.Buf[pos:]), nil
}

// VectorElements copies a scalar vector into a new slice.
func VectorElements[T Scalar](v Vector) ([]T, error) {
	w := SizeOf[T]()
	data, err := v.Data(w)
	if err != nil {
		return nil, err
	}
	out := make([]T, v.Len)
	for i := range out {
		out[i] = ReadScalar[T](data[i*w:])
	}
	return out, nil
}

// Table follows element i of a vector of references.
func (v Vector) Table(i int) (Table, error) {
	pos, err := v.elem(i, SizeUOffset)
	if err != nil {
		return Table{}, err
	}
	target, err := indirect(v.Buf, pos)
	if err != nil {
		return Table{}, err
	}
	return Table{Buf: v.Buf, Pos: target}, nil
}

// StringBytes returns element i of a vector of strings, aliasing Buf.
func (v Vector) StringBytes(i int) ([]byte, error) {
	pos, err := v.elem(i, SizeUOffset)
	if err != nil {
		return nil, err
	}
	s, err := readVector(v.Buf, pos)
	if err != nil {
		return nil, err
	}
	return s.Bytes()
}

// String returns a copy of element i of a vector of strings.
func (v Vector) String(i int) (string, error) {
	b, err := v.StringBytes(i)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Struct returns element i of a vector of structs of size bytes each.
func (v Vector) Struct(i, size int) (Struct, error) {
	pos, err := v.elem(i, size)
	if err != nil {
		return Struct{}, err
	}
	return Struct{Buf: v.Buf, Pos: pos}, nil
}
