package container

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rawbytedev/flatframe"
)

func buildRecord(t *testing.T, b *flatframe.Builder, v uint64) flatframe.UOffset {
	t.Helper()
	name, err := b.CreateString("record")
	require.NoError(t, err)
	ob, err := b.StartObject(2)
	require.NoError(t, err)
	require.NoError(t, ob.AddUint64(0, v, 0))
	require.NoError(t, ob.AddOffset(1, name))
	root, err := ob.Finish()
	require.NoError(t, err)
	return root
}

func checkRecord(t *testing.T, tab flatframe.Table, want uint64) {
	t.Helper()
	v, err := tab.GetUint64(0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if v != want {
		t.Fatalf("Expected: %d got %d", want, v)
	}
	s, err := tab.GetString(1)
	if err != nil {
		t.Fatal(err)
	}
	if s != "record" {
		t.Fatalf("Expected: record got %q", s)
	}
}

func TestIdentifier(t *testing.T) {
	b := flatframe.NewBuilder(flatframe.Options{})
	root := buildRecord(t, b, 42)
	buf, err := Finish(b, root, "FFR1")
	require.NoError(t, err)

	if !HasIdentifier(buf, "FFR1") {
		id, _ := Identifier(buf)
		t.Fatalf("identifier: got %q", id)
	}
	if HasIdentifier(buf, "XXXX") {
		t.Fatal("matched the wrong identifier")
	}
	require.Zero(t, len(buf)%b.MinAlign())
	tab, err := Root(buf)
	require.NoError(t, err)
	checkRecord(t, tab, 42)
}

func TestNoIdentifier(t *testing.T) {
	b := flatframe.NewBuilder(flatframe.Options{})
	root := buildRecord(t, b, 1)
	buf, err := Finish(b, root, "")
	require.NoError(t, err)
	tab, err := Root(buf)
	require.NoError(t, err)
	checkRecord(t, tab, 1)
}

func TestBadIdentifier(t *testing.T) {
	b := flatframe.NewBuilder(flatframe.Options{})
	root := buildRecord(t, b, 1)
	_, err := Finish(b, root, "TOOLONG")
	require.ErrorIs(t, err, ErrBadIdentifier)
	_, err = FinishSizePrefixed(b, root, "AB")
	require.ErrorIs(t, err, ErrBadIdentifier)

	_, err = Identifier([]byte{1, 2, 3})
	require.ErrorIs(t, err, flatframe.ErrOutOfBounds)
}

func TestSizePrefixedStream(t *testing.T) {
	var stream []byte
	b := flatframe.NewBuilder(flatframe.Options{})
	for i := uint64(1); i <= 3; i++ {
		b.Reset()
		root := buildRecord(t, b, i)
		buf, err := FinishSizePrefixed(b, root, "FFR1")
		require.NoError(t, err)
		n, err := SizePrefix(buf)
		require.NoError(t, err)
		require.Equal(t, len(buf)-SizePrefixSize, int(n))
		stream = append(stream, buf...)
	}

	for want := uint64(1); len(stream) > 0; want++ {
		tab, n, err := SizePrefixedRoot(stream)
		require.NoError(t, err)
		checkRecord(t, tab, want)
		inner, err := Unprefixed(stream)
		require.NoError(t, err)
		require.True(t, HasIdentifier(inner, "FFR1"))
		stream = stream[n:]
	}
}

func TestSizePrefixTruncated(t *testing.T) {
	b := flatframe.NewBuilder(flatframe.Options{})
	root := buildRecord(t, b, 9)
	buf, err := FinishSizePrefixed(b, root, "")
	require.NoError(t, err)

	_, _, err = SizePrefixedRoot(buf[:len(buf)-1])
	require.ErrorIs(t, err, ErrSizePrefix)
	_, err = SizePrefix(buf[:2])
	require.ErrorIs(t, err, flatframe.ErrOutOfBounds)
}
