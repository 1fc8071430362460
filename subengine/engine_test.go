package subengine

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	raw := bytes.Repeat([]byte("flatframe vtable "), 64)
	for _, c := range Codecs() {
		t.Run(c.String(), func(t *testing.T) {
			comp, err := Compress(c, nil, raw)
			require.NoError(t, err)
			if c != Raw {
				assert.Less(t, len(comp), len(raw))
			}
			out, err := Decompress(c, nil, comp, len(raw))
			require.NoError(t, err)
			if !bytes.Equal(out, raw) {
				t.Fatalf("%s: round trip changed the data", c)
			}
		})
	}
}

func TestReuseBuffers(t *testing.T) {
	var comp, out []byte
	var err error
	for i := 1; i <= 4; i++ {
		raw := bytes.Repeat([]byte{byte(i)}, 100*i)
		comp, err = Compress(Zstd, comp, raw)
		require.NoError(t, err)
		out, err = Decompress(Zstd, out, comp, len(raw))
		require.NoError(t, err)
		require.Equal(t, raw, out)
	}
}

func TestLengthMismatch(t *testing.T) {
	raw := []byte("0123456789")
	for _, c := range Codecs() {
		comp, err := Compress(c, nil, raw)
		require.NoError(t, err)
		_, err = Decompress(c, nil, comp, len(raw)+1)
		assert.ErrorIs(t, err, ErrLengthMismatch, c.String())
	}
}

func TestUnknownCodec(t *testing.T) {
	_, err := Compress(Codec(0x01), nil, []byte("x"))
	assert.ErrorIs(t, err, ErrUnknownCodec)
	_, err = Decompress(Codec(0x7f), nil, []byte("x"), 1)
	assert.ErrorIs(t, err, ErrUnknownCodec)
	assert.False(t, Codec(0x02).Valid())
	assert.Equal(t, "codec(2)", Codec(0x02).String())
}

func TestCorruptInput(t *testing.T) {
	_, err := Decompress(Zstd, nil, []byte("not zstd at all"), 4)
	assert.Error(t, err)
	_, err = Decompress(Snappy, nil, []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}, 4)
	assert.Error(t, err)
}

func TestParseCodec(t *testing.T) {
	for name, want := range map[string]Codec{
		"":        Raw,
		"none":    Raw,
		"raw":     Raw,
		"ZSTD":    Zstd,
		" snappy": Snappy,
	} {
		got, err := ParseCodec(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}
	_, err := ParseCodec("lz4")
	assert.ErrorIs(t, err, ErrUnknownCodec)
}

func BenchmarkZstd(b *testing.B) {
	raw := bytes.Repeat([]byte("flatframe vtable "), 256)
	var comp, out []byte
	b.SetBytes(int64(len(raw)))
	b.ReportAllocs()
	for b.Loop() {
		comp, _ = Compress(Zstd, comp, raw)
		out, _ = Decompress(Zstd, out, comp, len(raw))
	}
}
