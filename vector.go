package flatframe

import "github.com/pkg/errors"

// Vectors are stored as a uint32 element count followed by the elements.
// The count sits on a 4-byte boundary and the elements on their own
// alignment. Strings are byte vectors with a trailing NUL that the count
// does not include.

func (b *Builder) startVector(elemSize, n, align int) error {
	if err := b.outside(); err != nil {
		return err
	}
	if err := b.Prep(SizeUOffset, elemSize*n); err != nil {
		return err
	}
	return b.Prep(align, elemSize*n)
}

func (b *Builder) endVector(n int) (UOffset, error) {
	off, err := b.allocate(SizeUOffset, SizeUOffset)
	if err != nil {
		return 0, err
	}
	PutScalar(b.bytes[b.head:], uint32(n))
	return off, nil
}

// CreateString writes s and returns its offset.
func (b *Builder) CreateString(s string) (UOffset, error) {
	if err := b.outside(); err != nil {
		return 0, err
	}
	if err := b.Prep(SizeUOffset, len(s)+1); err != nil {
		return 0, err
	}
	b.head -= len(s) + 1
	copy(b.bytes[b.head:], s)
	b.bytes[b.head+len(s)] = 0
	return b.endVector(len(s))
}

// CreateSharedString is CreateString, except that a string already written
// in this session through CreateSharedString is referenced again instead.
func (b *Builder) CreateSharedString(s string) (UOffset, error) {
	if off, ok := b.shared[s]; ok {
		if err := b.outside(); err != nil {
			return 0, err
		}
		return off, nil
	}
	off, err := b.CreateString(s)
	if err != nil {
		return 0, err
	}
	if b.shared == nil {
		b.shared = make(map[string]UOffset)
	}
	b.shared[s] = off
	return off, nil
}

// CreateByteVector writes p as a vector of bytes.
func (b *Builder) CreateByteVector(p []byte) (UOffset, error) {
	if err := b.startVector(1, len(p), 1); err != nil {
		return 0, err
	}
	b.head -= len(p)
	copy(b.bytes[b.head:], p)
	return b.endVector(len(p))
}

// CreateVector writes a vector of scalars.
func CreateVector[T Scalar](b *Builder, elems []T) (UOffset, error) {
	w := SizeOf[T]()
	if err := b.startVector(w, len(elems), w); err != nil {
		return 0, err
	}
	b.head -= w * len(elems)
	for i, e := range elems {
		PutScalar(b.bytes[b.head+i*w:], e)
	}
	return b.endVector(len(elems))
}

// CreateOffsetVector writes a vector of references to finished objects,
// strings or vectors.
func (b *Builder) CreateOffsetVector(offs []UOffset) (UOffset, error) {
	if err := b.startVector(SizeUOffset, len(offs), SizeUOffset); err != nil {
		return 0, err
	}
	for i := len(offs) - 1; i >= 0; i-- {
		if err := b.prependUOffset(offs[i]); err != nil {
			return 0, err
		}
	}
	return b.endVector(len(offs))
}

// CreateVectorFunc writes n elements of elemSize bytes each, aligned to
// align; fill receives each zeroed element in order. Vectors of structs
// are written this way.
func (b *Builder) CreateVectorFunc(n, elemSize, align int, fill func(i int, elem []byte)) (UOffset, error) {
	if n < 0 || elemSize <= 0 || fill == nil {
		return 0, errors.Wrapf(ErrInvalidField, "vector of %d elements of %d bytes", n, elemSize)
	}
	if err := b.startVector(elemSize, n, align); err != nil {
		return 0, err
	}
	b.head -= elemSize * n
	region := b.bytes[b.head : b.head+elemSize*n]
	clear(region)
	for i := 0; i < n; i++ {
		fill(i, region[i*elemSize:(i+1)*elemSize])
	}
	return b.endVector(n)
}
