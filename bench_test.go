package flatframe

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type benchStruct struct {
	Val      []string
	Mod      []int8
	Integers []int16
	Float3   []float32
	Float6   []float64
}

func newBenchStruct() benchStruct {
	return benchStruct{Val: []string{"azerty", "hello", "world", "random"},
		Mod: []int8{12, 10, 13, 1}, Integers: []int16{100, 250, 300},
		Float3: []float32{12.13, 16.23, 75.1}, Float6: []float64{100.5, 165.63, 153.5}}
}

type benchInts struct {
	Int1 uint8
	Int2 int8
	Int3 uint16
	Int4 int16
	Int5 uint32
	Int6 int32
	Int7 uint64
	Int9 int64
}

var benchIntsValue = benchInts{Int1: 1, Int2: 2, Int3: 16, Int4: 18, Int5: 1586, Int6: 15262, Int7: 1547544565, Int9: 15484565656}

func BenchmarkBuilderScalars(b *testing.B) {
	bld := NewBuilder(Options{})
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		bld.Reset()
		ob, _ := bld.StartObject(4)
		_ = ob.AddInt64(0, int64(i), 0)
		_ = ob.AddInt32(1, 7, 0)
		_ = ob.AddInt16(2, 3, 0)
		_ = ob.AddBool(3, true, false)
		root, _ := ob.Finish()
		_, _ = bld.Finish(root)
	}
}

func BenchmarkBuilderVtableReuse(b *testing.B) {
	bld := NewBuilder(Options{})
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if i%1000 == 0 {
			bld.Reset()
		}
		ob, _ := bld.StartObject(2)
		_ = ob.AddUint32(0, uint32(i)+1, 0)
		_, _ = ob.Finish()
	}
}

func BenchmarkTableRead(b *testing.B) {
	f := NewEncoder(Options{})
	data, err := f.Encode(benchIntsValue)
	require.NoError(b, err)
	tab, err := GetRoot(data)
	require.NoError(b, err)
	b.ReportAllocs()
	var sum int64
	for i := 0; i < b.N; i++ {
		v, _ := tab.GetInt64(7, 0)
		sum += v
	}
	require.NotZero(b, sum)
}

func BenchmarkEncoding(b *testing.B) {
	z := newBenchStruct()
	f := NewEncoder(Options{})
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _ = f.Encode(z)
	}
}

func BenchmarkDecoding(b *testing.B) {
	z := newBenchStruct()
	y := &benchStruct{}
	f := NewEncoder(Options{})
	res, err := f.Encode(z)
	require.NoError(b, err)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = f.Decode(res, y)
	}
	require.EqualValues(b, z, *y)
}

func BenchmarkRoundTrip(b *testing.B) {
	z := benchIntsValue
	y := &benchInts{}
	f := NewEncoder(Options{})
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		res, _ := f.Encode(z)
		_ = f.Decode(res, y)
	}
	require.EqualValues(b, z, *y)
}

func BenchmarkYaml(b *testing.B) {
	z := benchIntsValue
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _ = yaml.Marshal(z)
	}
}
