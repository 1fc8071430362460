// Package zc (zero-copy) contains opt-in readers that hand out memory
// aliasing the finished buffer instead of copies. Anything returned here is
// only valid while the buffer is alive and unmodified; releasing a Builder
// back to its pool or calling Reset invalidates it.
package zc

import (
	"reflect"
	"unsafe"

	"github.com/pkg/errors"

	"github.com/rawbytedev/flatframe"
	"github.com/rawbytedev/flatframe/internal/common"
)

// Options contains runtime flags controlling zero-copy behaviour.
type Options struct {
	// UnsafeStrings allows converting []byte -> string without copy.
	UnsafeStrings bool `yaml:"unsafe_strings"`

	// UnsafePrimitives allows aliasing scalar vectors (e.g. []uint32)
	// when the host is little-endian.
	UnsafePrimitives bool `yaml:"unsafe_primitives"`

	// CheckAlignment falls back to copying when a vector's data is not
	// aligned for its element type.
	CheckAlignment bool `yaml:"check_alignment"`
}

// View reads tables according to Options.
type View struct {
	Opts Options
}

func NewView(opts Options) View {
	return View{Opts: opts}
}

func (v View) str(b []byte) string {
	if v.Opts.UnsafeStrings && len(b) > 0 {
		return unsafe.String(&b[0], len(b))
	}
	return string(b)
}

// String returns string field id of t.
func (v View) String(t flatframe.Table, id int) (string, error) {
	b, err := t.GetBytes(id)
	if err != nil {
		return "", err
	}
	return v.str(b), nil
}

// StringAt returns element i of a vector of strings.
func (v View) StringAt(vec flatframe.Vector, i int) (string, error) {
	b, err := vec.StringBytes(i)
	if err != nil {
		return "", err
	}
	return v.str(b), nil
}

func (v View) canAlias(data []byte, align int) bool {
	if !v.Opts.UnsafePrimitives || !common.LittleEndianHost() {
		return false
	}
	return !v.Opts.CheckAlignment || common.Aligned(data, align)
}

// Slice returns the elements of a scalar vector, aliasing the buffer when
// the options and the data allow it and copying otherwise. Bool vectors are
// always copied: a stored byte other than 0 or 1 is not a valid bool.
func Slice[T flatframe.Scalar](v View, vec flatframe.Vector) ([]T, error) {
	var zero T
	w := flatframe.SizeOf[T]()
	data, err := vec.Data(w)
	if err != nil {
		return nil, err
	}
	if reflect.TypeOf(zero).Kind() == reflect.Bool || !v.canAlias(data, w) {
		return flatframe.VectorElements[T](vec)
	}
	if vec.Len == 0 {
		return []T{}, nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&data[0])), vec.Len), nil
}

// SliceInto is Slice for a destination only known at run time: dst must
// point to a slice of a fixed-width kind.
func (v View) SliceInto(vec flatframe.Vector, dst any) error {
	p := reflect.ValueOf(dst)
	if p.Kind() != reflect.Pointer || p.IsNil() || p.Elem().Kind() != reflect.Slice {
		return errors.Wrapf(flatframe.ErrUnsupported, "%T is not a pointer to slice", dst)
	}
	s := p.Elem()
	k := s.Type().Elem().Kind()
	if !common.IsFixedKind(k) {
		return errors.Wrapf(flatframe.ErrUnsupported, "%s", s.Type())
	}
	w := common.FixedSize(k)
	data, err := vec.Data(w)
	if err != nil {
		return err
	}
	if k != reflect.Bool && v.canAlias(data, w) {
		common.SetUnsafeFixed(s, data, vec.Len)
		return nil
	}
	out := reflect.MakeSlice(s.Type(), vec.Len, vec.Len)
	for i := 0; i < vec.Len; i++ {
		common.SetFixed(out.Index(i), data[i*w:], k)
	}
	s.Set(out)
	return nil
}
