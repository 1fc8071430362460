package flatframe

import (
	"encoding/binary"
	"reflect"
	"unsafe"
)

// Scalar is every fixed-width primitive the format stores inline.
type Scalar interface {
	~bool | ~int8 | ~uint8 | ~int16 | ~uint16 | ~int32 | ~uint32 |
		~int64 | ~uint64 | ~float32 | ~float64
}

type (
	// UOffset is an unsigned, forward-only reference to an object written earlier.
	UOffset uint32
	// SOffset is the signed displacement from a table to its vtable.
	SOffset int32
	// VOffset is a field position inside a vtable or a table.
	VOffset uint16
)

const (
	SizeUOffset = 4
	SizeSOffset = 4
	SizeVOffset = 2

	// vtable size + object size
	vtableHeaderSize = 2 * SizeVOffset
)

// FieldVOffset returns the position of field id's entry inside a vtable.
func FieldVOffset(id int) VOffset {
	return VOffset(vtableHeaderSize + id*SizeVOffset)
}

// SizeOf returns the encoded width of T in bytes.
func SizeOf[T Scalar]() int {
	var v T
	return int(unsafe.Sizeof(v))
}

// PutScalar writes v little-endian into b. b must hold SizeOf[T]() bytes.
// The value is reinterpreted by width, so float bits and bools
// go through the same path as integers.
func PutScalar[T Scalar](b []byte, v T) {
	p := unsafe.Pointer(&v)
	switch unsafe.Sizeof(v) {
	case 1:
		b[0] = *(*uint8)(p)
	case 2:
		binary.LittleEndian.PutUint16(b, *(*uint16)(p))
	case 4:
		binary.LittleEndian.PutUint32(b, *(*uint32)(p))
	case 8:
		binary.LittleEndian.PutUint64(b, *(*uint64)(p))
	}
}

// ReadScalar decodes a little-endian T from b.
func ReadScalar[T Scalar](b []byte) T {
	var v T
	p := unsafe.Pointer(&v)
	switch unsafe.Sizeof(v) {
	case 1:
		x := b[0]
		if isBool(v) && x != 0 {
			x = 1
		}
		*(*uint8)(p) = x
	case 2:
		*(*uint16)(p) = binary.LittleEndian.Uint16(b)
	case 4:
		*(*uint32)(p) = binary.LittleEndian.Uint32(b)
	case 8:
		*(*uint64)(p) = binary.LittleEndian.Uint64(b)
	}
	return v
}

// a bool byte other than 0 or 1 is not a valid Go bool
func isBool[T Scalar](v T) bool {
	return reflect.TypeOf(v).Kind() == reflect.Bool
}
