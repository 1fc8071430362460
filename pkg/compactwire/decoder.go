package compactwire

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"

	"github.com/rawbytedev/flatframe/internal/common"
	"github.com/rawbytedev/flatframe/subengine"
)

// DecodeDataFrame verifies a data frame and returns its payload and the
// codec it was sent with. Uncompressed payloads alias data; decompressed
// ones live in d until the next call.
func (d *DataFrame) DecodeDataFrame(data []byte) ([]byte, subengine.Codec, error) {
	body, err := open(data, TypeData, ErrNotDataFrame)
	if err != nil {
		return nil, 0, err
	}
	if len(body) < 2 {
		return nil, 0, errors.Wrap(ErrShortFrame, "data frame header")
	}
	flags, codec := body[0], subengine.Codec(body[1])
	rawLen, n := common.ReadVarUint(body[2:])
	if n == 0 {
		return nil, 0, errors.Wrap(ErrShortFrame, "raw length")
	}
	payload := body[2+n:]

	if flags&FlagCompressed == 0 {
		if codec != subengine.Raw {
			return nil, 0, errors.Errorf("uncompressed frame names codec %s", codec)
		}
		if uint64(len(payload)) != rawLen {
			return nil, 0, errors.Wrapf(ErrLengthMismatch, "payload is %d bytes, header says %d", len(payload), rawLen)
		}
		return payload, codec, nil
	}
	if rawLen > uint64(len(data))*maxRatio {
		return nil, 0, errors.Wrapf(ErrLengthMismatch, "raw length %d for a %d byte frame", rawLen, len(data))
	}
	out, err := subengine.Decompress(codec, d.raw, payload, int(rawLen))
	if err != nil {
		return nil, 0, err
	}
	d.raw = out
	return out, codec, nil
}

// refuse frames that claim an implausible expansion
const maxRatio = 1 << 12

// Encode frames payload into a newly allocated frame.
func Encode(payload []byte, codec subengine.Codec) ([]byte, error) {
	var d DataFrame
	return d.EncodeDataFrame(payload, codec)
}

// Decode returns the payload of a data frame.
func Decode(frame []byte) ([]byte, error) {
	var d DataFrame
	payload, _, err := d.DecodeDataFrame(frame)
	return payload, err
}

// DecodeErrorFrame returns the code and message of an error frame.
func DecodeErrorFrame(data []byte) (byte, string, error) {
	body, err := open(data, TypeError, ErrNotErrorFrame)
	if err != nil {
		return 0, "", err
	}
	if len(body) < 3 {
		return 0, "", errors.Wrap(ErrShortFrame, "error frame header")
	}
	code := body[0]
	n := int(binary.LittleEndian.Uint16(body[1:]))
	if len(body) != 3+n {
		return 0, "", errors.Wrapf(ErrLengthMismatch, "message of %d bytes in %d byte body", n, len(body))
	}
	return code, string(body[3:]), nil
}

// DecodeHandshake parses a handshake frame. Unknown codec ids are kept so
// that Negotiate can skip them.
func DecodeHandshake(data []byte) (Handshake, error) {
	var h Handshake
	body, err := open(data, TypeHandshake, ErrNotHandshake)
	if err != nil {
		return h, err
	}
	r := bytes.NewReader(body)
	var count uint8
	for _, v := range []any{&h.VersionMask, &h.MTU, &h.TimeoutMS, &count} {
		if err := binary.Read(r, binary.LittleEndian, v); err != nil {
			return h, errors.Wrap(ErrShortFrame, "handshake header")
		}
	}
	codecs := make([]byte, count)
	if _, err := io.ReadFull(r, codecs); err != nil {
		return h, errors.Wrap(ErrShortFrame, "handshake codecs")
	}
	if r.Len() != 0 {
		return h, errors.Wrapf(ErrLengthMismatch, "%d trailing bytes", r.Len())
	}
	h.Codecs = make([]subengine.Codec, count)
	for i, c := range codecs {
		h.Codecs[i] = subengine.Codec(c)
	}
	return h, nil
}
