// Package subengine compresses finished buffers for transport. Codec ids
// are stored on the wire, so existing values must never change.
package subengine

import (
	"strconv"
	"strings"
	"sync"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
)

// Codec identifies a compression algorithm.
type Codec byte

const (
	Raw Codec = 0x00
	// 0x01 and 0x02 are reserved (RLE, Huffman)
	Zstd   Codec = 0x04
	Snappy Codec = 0x05
)

var (
	ErrUnknownCodec   = errors.New("unknown codec")
	ErrLengthMismatch = errors.New("decompressed length mismatch")
)

var names = map[Codec]string{
	Raw:    "raw",
	Zstd:   "zstd",
	Snappy: "snappy",
}

func (c Codec) String() string {
	if n, ok := names[c]; ok {
		return n
	}
	return "codec(" + strconv.Itoa(int(c)) + ")"
}

// Valid reports whether c is a known codec.
func (c Codec) Valid() bool {
	_, ok := names[c]
	return ok
}

// ParseCodec maps a name as used in configuration files to a Codec. The
// empty string selects Raw.
func ParseCodec(name string) (Codec, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || name == "none" {
		return Raw, nil
	}
	for c, n := range names {
		if n == name {
			return c, nil
		}
	}
	return 0, errors.Wrapf(ErrUnknownCodec, "%q", name)
}

// Codecs lists the supported codecs, preferred first.
func Codecs() []Codec {
	return []Codec{Zstd, Snappy, Raw}
}

// zstd coders are expensive to set up and safe for concurrent EncodeAll /
// DecodeAll, so one of each is shared.
var (
	zstdOnce sync.Once
	zstdEnc  *zstd.Encoder
	zstdDec  *zstd.Decoder
	zstdErr  error
)

func zstdCoders() (*zstd.Encoder, *zstd.Decoder, error) {
	zstdOnce.Do(func() {
		zstdEnc, zstdErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
		if zstdErr != nil {
			return
		}
		zstdDec, zstdErr = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
	})
	return zstdEnc, zstdDec, zstdErr
}

// Compress appends the compressed form of raw to dst[:0].
func Compress(c Codec, dst, raw []byte) ([]byte, error) {
	switch c {
	case Raw:
		return append(dst[:0], raw...), nil
	case Zstd:
		enc, _, err := zstdCoders()
		if err != nil {
			return nil, err
		}
		return enc.EncodeAll(raw, dst[:0]), nil
	case Snappy:
		return snappy.Encode(dst[:cap(dst)], raw), nil
	}
	return nil, errors.Wrapf(ErrUnknownCodec, "%d", byte(c))
}

// Decompress appends the decompressed form of src to dst[:0] and checks
// that it is rawLen bytes long.
func Decompress(c Codec, dst, src []byte, rawLen int) ([]byte, error) {
	var out []byte
	var err error
	switch c {
	case Raw:
		out = append(dst[:0], src...)
	case Zstd:
		var dec *zstd.Decoder
		if _, dec, err = zstdCoders(); err != nil {
			return nil, err
		}
		if cap(dst) < rawLen {
			dst = make([]byte, 0, rawLen)
		}
		out, err = dec.DecodeAll(src, dst[:0])
	case Snappy:
		var n int
		if n, err = snappy.DecodedLen(src); err == nil && n != rawLen {
			return nil, errors.Wrapf(ErrLengthMismatch, "snappy header says %d, want %d", n, rawLen)
		}
		if err == nil {
			out, err = snappy.Decode(dst[:cap(dst)], src)
		}
	default:
		return nil, errors.Wrapf(ErrUnknownCodec, "%d", byte(c))
	}
	if err != nil {
		return nil, errors.Wrapf(err, "%s decompress", c)
	}
	if len(out) != rawLen {
		return nil, errors.Wrapf(ErrLengthMismatch, "%s: got %d, want %d", c, len(out), rawLen)
	}
	return out, nil
}
