// Package compactwire frames finished buffers for transport.
//
// Every frame is
//
//	magic(2) type(1) length(4) body... xxhash64(8)
//
// where length counts the whole frame and the checksum covers everything
// after the magic. All integers are little-endian.
package compactwire

import (
	"bytes"
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"
)

const (
	Magic0 byte = 0xF1
	Magic1 byte = 0x46

	// magic + type + length
	preambleSize = 2 + 1 + 4
	checksumSize = 8
	minFrameSize = preambleSize + checksumSize
)

// FrameType is the third byte of every frame.
type FrameType byte

const (
	TypeHandshake FrameType = 0x01
	TypeData      FrameType = 0x02
	TypeError     FrameType = 0x03
)

// data frame flags
const (
	FlagCompressed byte = 1 << 0
)

var (
	ErrShortFrame     = errors.New("frame too short")
	ErrBadMagic       = errors.New("bad frame magic")
	ErrNotDataFrame   = errors.New("not a data frame")
	ErrNotErrorFrame  = errors.New("not an error frame")
	ErrNotHandshake   = errors.New("not a handshake frame")
	ErrLengthMismatch = errors.New("frame length mismatch")
	ErrChecksum       = errors.New("frame checksum mismatch")
)

func writePreamble(buf *bytes.Buffer, t FrameType) {
	buf.WriteByte(Magic0)
	buf.WriteByte(Magic1)
	buf.WriteByte(byte(t))
	// length, patched by seal
	buf.Write([]byte{0, 0, 0, 0})
}

// seal patches the length and appends the checksum.
func seal(buf *bytes.Buffer) []byte {
	out := buf.Bytes()
	binary.LittleEndian.PutUint32(out[3:], uint32(len(out)+checksumSize))
	var sum [checksumSize]byte
	binary.LittleEndian.PutUint64(sum[:], xxhash.Sum64(out[2:]))
	buf.Write(sum[:])
	return buf.Bytes()
}

// open validates the preamble, length and checksum of data and returns the
// frame body.
func open(data []byte, want FrameType, notType error) ([]byte, error) {
	if len(data) < minFrameSize {
		return nil, errors.Wrapf(ErrShortFrame, "%d bytes", len(data))
	}
	if data[0] != Magic0 || data[1] != Magic1 {
		return nil, errors.Wrapf(ErrBadMagic, "%#x %#x", data[0], data[1])
	}
	if t := FrameType(data[2]); t != want {
		return nil, errors.Wrapf(notType, "type %#x", byte(t))
	}
	if n := binary.LittleEndian.Uint32(data[3:]); int64(n) != int64(len(data)) {
		return nil, errors.Wrapf(ErrLengthMismatch, "header says %d, got %d", n, len(data))
	}
	end := len(data) - checksumSize
	if xxhash.Sum64(data[2:end]) != binary.LittleEndian.Uint64(data[end:]) {
		return nil, ErrChecksum
	}
	return data[preambleSize:end], nil
}

// PeekType returns the type of the frame at the start of data.
func PeekType(data []byte) (FrameType, error) {
	if len(data) < preambleSize {
		return 0, ErrShortFrame
	}
	if data[0] != Magic0 || data[1] != Magic1 {
		return 0, ErrBadMagic
	}
	return FrameType(data[2]), nil
}
