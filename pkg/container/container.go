// Package container handles what sits in front of the root table: an
// optional 4-byte file identifier and an optional uint32 size prefix.
//
//	[size uint32]? root uoffset [identifier 4B]? tables...
package container

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/rawbytedev/flatframe"
)

const (
	IdentifierSize = 4
	SizePrefixSize = 4
)

var (
	ErrBadIdentifier = errors.New("file identifier must be 4 bytes")
	ErrSizePrefix    = errors.New("size prefix does not match buffer")
)

func prepIdentifier(b *flatframe.Builder, ident string, extra int) error {
	if len(ident) != IdentifierSize {
		return errors.Wrapf(ErrBadIdentifier, "%q", ident)
	}
	// the root offset and identifier must end on the buffer's alignment
	if err := b.Prep(max(b.MinAlign(), flatframe.SizeUOffset), extra+flatframe.SizeUOffset+IdentifierSize); err != nil {
		return err
	}
	return b.PrependBytes([]byte(ident))
}

// Finish finishes b with root, writing ident right after the root offset.
// An empty ident writes no identifier.
func Finish(b *flatframe.Builder, root flatframe.UOffset, ident string) ([]byte, error) {
	if ident != "" {
		if err := prepIdentifier(b, ident, 0); err != nil {
			return nil, err
		}
	}
	return b.Finish(root)
}

// FinishSizePrefixed is Finish with a leading uint32 length, so buffers
// can be streamed back to back.
func FinishSizePrefixed(b *flatframe.Builder, root flatframe.UOffset, ident string) ([]byte, error) {
	if ident != "" {
		if err := prepIdentifier(b, ident, SizePrefixSize); err != nil {
			return nil, err
		}
	}
	return b.FinishSizePrefixed(root)
}

// Identifier returns the 4 bytes after the root offset. Whether they are
// an identifier at all is up to the caller.
func Identifier(buf []byte) (string, error) {
	if len(buf) < flatframe.SizeUOffset+IdentifierSize {
		return "", errors.Wrapf(flatframe.ErrOutOfBounds, "%d byte buffer", len(buf))
	}
	return string(buf[flatframe.SizeUOffset : flatframe.SizeUOffset+IdentifierSize]), nil
}

// HasIdentifier reports whether buf carries ident.
func HasIdentifier(buf []byte, ident string) bool {
	got, err := Identifier(buf)
	return err == nil && got == ident
}

// SizePrefix returns the length stored in front of a size-prefixed buffer.
func SizePrefix(buf []byte) (uint32, error) {
	if len(buf) < SizePrefixSize {
		return 0, errors.Wrapf(flatframe.ErrOutOfBounds, "%d byte buffer", len(buf))
	}
	return binary.LittleEndian.Uint32(buf), nil
}

// Root returns the root table of an unprefixed buffer.
func Root(buf []byte) (flatframe.Table, error) {
	return flatframe.GetRoot(buf)
}

// SizePrefixedRoot returns the root table of a size-prefixed buffer and the
// buffer's total length including the prefix. buf may hold more data after
// the buffer.
func SizePrefixedRoot(buf []byte) (flatframe.Table, int, error) {
	n, err := SizePrefix(buf)
	if err != nil {
		return flatframe.Table{}, 0, err
	}
	end := uint64(SizePrefixSize) + uint64(n)
	if end > uint64(len(buf)) {
		return flatframe.Table{}, 0, errors.Wrapf(ErrSizePrefix, "prefix says %d, %d bytes follow", n, len(buf)-SizePrefixSize)
	}
	t, err := flatframe.GetRoot(buf[SizePrefixSize:end])
	if err != nil {
		return flatframe.Table{}, 0, err
	}
	return t, int(end), nil
}

// Unprefixed strips the size prefix, returning the buffer it frames.
func Unprefixed(buf []byte) ([]byte, error) {
	_, end, err := SizePrefixedRoot(buf)
	if err != nil {
		return nil, err
	}
	return buf[SizePrefixSize:end], nil
}
