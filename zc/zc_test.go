package zc

import (
	"testing"
	"unsafe"

	"github.com/rawbytedev/flatframe"
	"github.com/rawbytedev/flatframe/internal/common"
)

// field ids of the test record
const (
	fName = iota
	fTags
	fReadings
	fFlags
	fCounts
)

func makeRecord(t testing.TB) []byte {
	b := flatframe.NewBuilder(flatframe.Options{})
	name, err := b.CreateString("probe-12")
	if err != nil {
		t.Fatal(err)
	}
	var tags []flatframe.UOffset
	for _, s := range []string{"north", "", "roof"} {
		off, err := b.CreateString(s)
		if err != nil {
			t.Fatal(err)
		}
		tags = append(tags, off)
	}
	tagVec, err := b.CreateOffsetVector(tags)
	if err != nil {
		t.Fatal(err)
	}
	readings, err := flatframe.CreateVector(b, []float64{1.5, -2.25, 1e9})
	if err != nil {
		t.Fatal(err)
	}
	flags, err := flatframe.CreateVector(b, []bool{true, false, true})
	if err != nil {
		t.Fatal(err)
	}
	counts, err := flatframe.CreateVector(b, []uint32{})
	if err != nil {
		t.Fatal(err)
	}

	ob, err := b.StartObject(5)
	if err != nil {
		t.Fatal(err)
	}
	for id, off := range []flatframe.UOffset{fName: name, fTags: tagVec, fReadings: readings, fFlags: flags, fCounts: counts} {
		if err := ob.AddOffset(id, off); err != nil {
			t.Fatal(err)
		}
	}
	root, err := ob.Finish()
	if err != nil {
		t.Fatal(err)
	}
	buf, err := b.Finish(root)
	if err != nil {
		t.Fatal(err)
	}
	// a fresh allocation so the data sits on an 8 byte boundary
	out := make([]byte, len(buf))
	copy(out, buf)
	return out
}

func vector(t *testing.T, tab flatframe.Table, id int) flatframe.Vector {
	t.Helper()
	v, ok, err := tab.GetVector(id)
	if err != nil || !ok {
		t.Fatalf("vector %d: ok=%v err=%v", id, ok, err)
	}
	return v
}

func TestStrings(t *testing.T) {
	buf := makeRecord(t)
	tab, err := flatframe.GetRoot(buf)
	if err != nil {
		t.Fatal(err)
	}
	for _, opts := range []Options{{}, {UnsafeStrings: true}} {
		v := NewView(opts)
		name, err := v.String(tab, fName)
		if err != nil {
			t.Fatal(err)
		}
		if name != "probe-12" {
			t.Fatalf("name: got %q", name)
		}
		tags := vector(t, tab, fTags)
		var got []string
		for i := 0; i < tags.Len; i++ {
			s, err := v.StringAt(tags, i)
			if err != nil {
				t.Fatal(err)
			}
			got = append(got, s)
		}
		if len(got) != 3 || got[0] != "north" || got[1] != "" || got[2] != "roof" {
			t.Fatalf("tags: got %q", got)
		}
		if _, err := v.StringAt(tags, 3); err == nil {
			t.Fatal("expected out of range error")
		}
	}

	// unsafe strings point into the buffer
	v := NewView(Options{UnsafeStrings: true})
	name, _ := v.String(tab, fName)
	raw, _ := tab.GetBytes(fName)
	if unsafe.StringData(name) != &raw[0] {
		t.Fatal("unsafe string was copied")
	}
	safe, _ := NewView(Options{}).String(tab, fName)
	if unsafe.StringData(safe) == &raw[0] {
		t.Fatal("safe string aliases the buffer")
	}
}

func TestSliceAlias(t *testing.T) {
	if !common.LittleEndianHost() {
		t.Skip("aliasing needs a little-endian host")
	}
	buf := makeRecord(t)
	tab, _ := flatframe.GetRoot(buf)
	vec := vector(t, tab, fReadings)
	data, err := vec.Data(8)
	if err != nil {
		t.Fatal(err)
	}
	if !common.Aligned(data, 8) {
		t.Skip("float vector is not 8 byte aligned in memory")
	}

	aliased, err := Slice[float64](NewView(Options{UnsafePrimitives: true, CheckAlignment: true}), vec)
	if err != nil {
		t.Fatal(err)
	}
	copied, err := Slice[float64](NewView(Options{}), vec)
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{1.5, -2.25, 1e9}
	for i := range want {
		if aliased[i] != want[i] || copied[i] != want[i] {
			t.Fatalf("element %d: aliased %v copied %v", i, aliased[i], copied[i])
		}
	}
	if &aliased[0] != (*float64)(unsafe.Pointer(&data[0])) {
		t.Fatal("expected an alias")
	}
	if &copied[0] == (*float64)(unsafe.Pointer(&data[0])) {
		t.Fatal("expected a copy")
	}
}

func TestSliceBoolAlwaysCopies(t *testing.T) {
	buf := makeRecord(t)
	tab, _ := flatframe.GetRoot(buf)
	vec := vector(t, tab, fFlags)
	data, _ := vec.Data(1)
	data[2] = 7 // not a valid bool byte

	flags, err := Slice[bool](NewView(Options{UnsafePrimitives: true}), vec)
	if err != nil {
		t.Fatal(err)
	}
	if len(flags) != 3 || !flags[0] || flags[1] || !flags[2] {
		t.Fatalf("flags: got %v", flags)
	}
	if &flags[0] == (*bool)(unsafe.Pointer(&data[0])) {
		t.Fatal("bool vector must not alias")
	}

	var into []bool
	if err := NewView(Options{UnsafePrimitives: true}).SliceInto(vec, &into); err != nil {
		t.Fatal(err)
	}
	if len(into) != 3 || !into[2] {
		t.Fatalf("SliceInto flags: got %v", into)
	}
}

func TestSliceEmpty(t *testing.T) {
	buf := makeRecord(t)
	tab, _ := flatframe.GetRoot(buf)
	vec := vector(t, tab, fCounts)
	for _, opts := range []Options{{}, {UnsafePrimitives: true}} {
		counts, err := Slice[uint32](NewView(opts), vec)
		if err != nil {
			t.Fatal(err)
		}
		if counts == nil || len(counts) != 0 {
			t.Fatalf("counts: got %#v", counts)
		}
	}
}

func TestSliceInto(t *testing.T) {
	buf := makeRecord(t)
	tab, _ := flatframe.GetRoot(buf)
	vec := vector(t, tab, fReadings)

	for _, opts := range []Options{{}, {UnsafePrimitives: true, CheckAlignment: true}} {
		var out []float64
		if err := NewView(opts).SliceInto(vec, &out); err != nil {
			t.Fatal(err)
		}
		if len(out) != 3 || out[1] != -2.25 {
			t.Fatalf("got %v", out)
		}
	}

	var bad []string
	if err := NewView(Options{}).SliceInto(vec, &bad); err == nil {
		t.Fatal("expected error for []string")
	}
	var notPtr []float64
	if err := NewView(Options{}).SliceInto(vec, notPtr); err == nil {
		t.Fatal("expected error for non-pointer")
	}
}
