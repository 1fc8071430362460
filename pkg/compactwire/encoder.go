package compactwire

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/pkg/errors"

	"github.com/rawbytedev/flatframe/internal/common"
	"github.com/rawbytedev/flatframe/subengine"
)

// DataFrame carries one finished buffer:
//
//	preamble flags(1) codec(1) rawLen(uvarint) payload checksum
//
// Frames are reused between calls; a returned frame is valid until the next
// call on the same DataFrame.
type DataFrame struct {
	buf        bytes.Buffer
	compressed []byte
	raw        []byte
}

// EncodeDataFrame frames payload, compressing it with codec. When
// compression does not shrink the payload it is stored raw.
func (d *DataFrame) EncodeDataFrame(payload []byte, codec subengine.Codec) ([]byte, error) {
	if uint64(len(payload)) > math.MaxUint32-minFrameSize-2*binary.MaxVarintLen64 {
		return nil, errors.Wrapf(ErrLengthMismatch, "payload of %d bytes", len(payload))
	}
	body := payload
	var flags byte
	if codec != subengine.Raw {
		c, err := subengine.Compress(codec, d.compressed, payload)
		if err != nil {
			return nil, err
		}
		d.compressed = c
		if len(c) < len(payload) {
			body = c
			flags |= FlagCompressed
		} else {
			codec = subengine.Raw
		}
	}

	d.buf.Reset()
	writePreamble(&d.buf, TypeData)
	d.buf.WriteByte(flags)
	d.buf.WriteByte(byte(codec))
	var hdr [binary.MaxVarintLen64]byte
	d.buf.Write(common.WriteVarUint(hdr[:0], uint64(len(payload))))
	d.buf.Write(body)
	return seal(&d.buf), nil
}

// EncodeErrorFrame builds an error frame carrying code and a message.
func EncodeErrorFrame(code byte, msg string) ([]byte, error) {
	if len(msg) > math.MaxUint16 {
		return nil, errors.Errorf("error message of %d bytes", len(msg))
	}
	var buf bytes.Buffer
	writePreamble(&buf, TypeError)
	buf.WriteByte(code)
	if err := binary.Write(&buf, binary.LittleEndian, uint16(len(msg))); err != nil {
		return nil, err
	}
	buf.WriteString(msg)
	return seal(&buf), nil
}

// Handshake is exchanged once per connection to agree on a codec.
type Handshake struct {
	VersionMask uint16
	MTU         uint32
	TimeoutMS   uint32
	Codecs      []subengine.Codec // preferred first
}

// EncodeHandshake serializes h.
func EncodeHandshake(h Handshake) ([]byte, error) {
	if len(h.Codecs) > math.MaxUint8 {
		return nil, errors.Errorf("%d codecs", len(h.Codecs))
	}
	var buf bytes.Buffer
	writePreamble(&buf, TypeHandshake)
	for _, v := range []any{h.VersionMask, h.MTU, h.TimeoutMS, uint8(len(h.Codecs))} {
		if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
			return nil, err
		}
	}
	for _, c := range h.Codecs {
		buf.WriteByte(byte(c))
	}
	return seal(&buf), nil
}

// Negotiate picks the first of local's codecs that remote also offers,
// falling back to Raw.
func Negotiate(local, remote Handshake) subengine.Codec {
	for _, c := range local.Codecs {
		for _, r := range remote.Codecs {
			if c == r && c.Valid() {
				return c
			}
		}
	}
	return subengine.Raw
}
