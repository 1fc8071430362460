package flatframe

import (
	"bytes"
	"reflect"
	"sort"
	"strconv"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"

	"github.com/rawbytedev/flatframe/internal/common"
)

const (
	planCacheSize = 256
	// deeper nesting is assumed to be a pointer cycle
	maxDepth = 64
)

// Encoder maps Go structs onto tables without generated code. Exported
// fields get ids in declaration order; a `flat:"N"` tag pins a field to id N
// and `flat:"-"` skips it. Zero scalars, empty strings and nil slices,
// pointers are left out of the table and read back as zero values.
//
// An Encoder reuses one Builder and is not safe for concurrent use.
type Encoder struct {
	Opts  Options
	b     *Builder
	plans *lru.Cache[reflect.Type, *plan]
}

type plan struct {
	fields    []fieldInfo
	order     []int // fields by decreasing inline size, for tighter packing
	numFields int
}

type fieldInfo struct {
	idx  int
	id   int
	name string
	kind reflect.Kind
	elem reflect.Kind // slice element or pointer target
	size int          // inline width in the table
}

func (f fieldInfo) isFixed() bool {
	return common.IsFixedKind(f.kind)
}

// NewEncoder returns an Encoder whose Builder is configured by opts.
func NewEncoder(opts Options) *Encoder {
	plans, err := lru.New[reflect.Type, *plan](planCacheSize)
	if err != nil {
		panic(err)
	}
	return &Encoder{Opts: opts, b: NewBuilder(opts), plans: plans}
}

func (e *Encoder) getPlan(t reflect.Type) (*plan, error) {
	if p, ok := e.plans.Get(t); ok {
		return p, nil
	}
	p, err := buildPlan(t)
	if err != nil {
		return nil, err
	}
	e.plans.Add(t, p)
	return p, nil
}

func buildPlan(t reflect.Type) (*plan, error) {
	p := &plan{}
	seen := make(map[int]string)
	next := 0
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		id := next
		if tag, ok := sf.Tag.Lookup("flat"); ok {
			if tag == "-" {
				continue
			}
			n, err := strconv.Atoi(tag)
			if err != nil || n < 0 {
				return nil, errors.Wrapf(ErrInvalidField, "%s.%s: tag %q", t, sf.Name, tag)
			}
			id = n
		}
		// ids run from 0 to maxFields-1
		if id >= maxFields {
			return nil, errors.Wrapf(ErrInvalidField, "%s.%s: id %d, at most %d fields", t, sf.Name, id, maxFields)
		}
		next = id + 1
		if prev, dup := seen[id]; dup {
			return nil, errors.Wrapf(ErrInvalidField, "%s: %s and %s share id %d", t, prev, sf.Name, id)
		}
		seen[id] = sf.Name

		f := fieldInfo{idx: i, id: id, name: sf.Name, kind: sf.Type.Kind()}
		switch {
		case f.isFixed():
			f.size = common.FixedSize(f.kind)
		case f.kind == reflect.String, f.kind == reflect.Struct:
			f.size = SizeUOffset
		case f.kind == reflect.Slice:
			f.elem = sf.Type.Elem().Kind()
			if !supportedElem(sf.Type.Elem()) {
				return nil, errors.Wrapf(ErrUnsupported, "%s.%s: %s", t, sf.Name, sf.Type)
			}
			f.size = SizeUOffset
		case f.kind == reflect.Pointer && sf.Type.Elem().Kind() == reflect.Struct:
			f.elem = reflect.Struct
			f.size = SizeUOffset
		default:
			return nil, errors.Wrapf(ErrUnsupported, "%s.%s: %s", t, sf.Name, sf.Type)
		}
		p.fields = append(p.fields, f)
		if id+1 > p.numFields {
			p.numFields = id + 1
		}
	}
	p.order = make([]int, len(p.fields))
	for i := range p.order {
		p.order[i] = i
	}
	sort.SliceStable(p.order, func(a, b int) bool {
		return p.fields[p.order[a]].size > p.fields[p.order[b]].size
	})
	return p, nil
}

func supportedElem(t reflect.Type) bool {
	k := t.Kind()
	switch {
	case common.IsFixedKind(k), k == reflect.String, k == reflect.Struct:
		return true
	case k == reflect.Pointer:
		return t.Elem().Kind() == reflect.Struct
	}
	return false
}

// Encode serializes val, a struct or pointer to struct, into a finished
// buffer. The result aliases the Encoder's memory until the next Encode.
func (e *Encoder) Encode(val any) ([]byte, error) {
	v := reflect.ValueOf(val)
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil, ErrNotStruct
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil, ErrNotStruct
	}
	e.b.Reset()
	root, err := e.encodeStruct(v, 0)
	if err != nil {
		return nil, err
	}
	return e.b.Finish(root)
}

func (e *Encoder) encodeStruct(v reflect.Value, depth int) (UOffset, error) {
	if depth > maxDepth {
		return 0, errors.Wrapf(ErrUnsupported, "%s nested deeper than %d", v.Type(), maxDepth)
	}
	p, err := e.getPlan(v.Type())
	if err != nil {
		return 0, err
	}

	// children first: nothing can be written while the table is open
	children := make([]UOffset, len(p.fields))
	for i, f := range p.fields {
		if f.isFixed() {
			continue
		}
		if children[i], err = e.encodeChild(f, v.Field(f.idx), depth); err != nil {
			return 0, errors.WithMessagef(err, "field %s", f.name)
		}
	}

	ob, err := e.b.StartObject(p.numFields)
	if err != nil {
		return 0, err
	}
	for _, i := range p.order {
		f := p.fields[i]
		if f.isFixed() {
			err = addFixed(ob, f.id, v.Field(f.idx))
		} else if children[i] != 0 {
			err = ob.AddOffset(f.id, children[i])
		}
		if err != nil {
			return 0, err
		}
	}
	return ob.Finish()
}

// encodeChild writes the out-of-line part of a field and returns its
// offset, or 0 when the field is left out.
func (e *Encoder) encodeChild(f fieldInfo, fv reflect.Value, depth int) (UOffset, error) {
	switch f.kind {
	case reflect.String:
		if fv.Len() == 0 {
			return 0, nil
		}
		return e.b.CreateString(fv.String())
	case reflect.Struct:
		return e.encodeStruct(fv, depth+1)
	case reflect.Pointer:
		if fv.IsNil() {
			return 0, nil
		}
		return e.encodeStruct(fv.Elem(), depth+1)
	case reflect.Slice:
		if fv.IsNil() {
			return 0, nil
		}
		return e.encodeSlice(f, fv, depth)
	}
	return 0, errors.Wrapf(ErrUnsupported, "%s", fv.Type())
}

func (e *Encoder) encodeSlice(f fieldInfo, fv reflect.Value, depth int) (UOffset, error) {
	n := fv.Len()
	switch {
	case f.elem == reflect.Uint8:
		return e.b.CreateByteVector(fv.Bytes())
	case common.IsFixedKind(f.elem):
		size := common.FixedSize(f.elem)
		return e.b.CreateVectorFunc(n, size, common.Alignment(f.elem), func(i int, elem []byte) {
			common.PutFixed(elem, fv.Index(i))
		})
	}

	offs := make([]UOffset, n)
	for i := range offs {
		ev := fv.Index(i)
		var err error
		switch f.elem {
		case reflect.String:
			offs[i], err = e.b.CreateString(ev.String())
		case reflect.Struct:
			offs[i], err = e.encodeStruct(ev, depth+1)
		case reflect.Pointer:
			if ev.IsNil() {
				return 0, errors.Wrapf(ErrUnsupported, "nil element %d", i)
			}
			offs[i], err = e.encodeStruct(ev.Elem(), depth+1)
		}
		if err != nil {
			return 0, err
		}
	}
	return e.b.CreateOffsetVector(offs)
}

func addFixed(ob ObjectBuilder, id int, v reflect.Value) error {
	switch v.Kind() {
	case reflect.Bool:
		return ob.AddBool(id, v.Bool(), false)
	case reflect.Int8:
		return ob.AddInt8(id, int8(v.Int()), 0)
	case reflect.Uint8:
		return ob.AddUint8(id, uint8(v.Uint()), 0)
	case reflect.Int16:
		return ob.AddInt16(id, int16(v.Int()), 0)
	case reflect.Uint16:
		return ob.AddUint16(id, uint16(v.Uint()), 0)
	case reflect.Int32:
		return ob.AddInt32(id, int32(v.Int()), 0)
	case reflect.Uint32:
		return ob.AddUint32(id, uint32(v.Uint()), 0)
	case reflect.Int64:
		return ob.AddInt64(id, v.Int(), 0)
	case reflect.Uint64:
		return ob.AddUint64(id, v.Uint(), 0)
	case reflect.Float32:
		return ob.AddFloat32(id, float32(v.Float()), 0)
	case reflect.Float64:
		return ob.AddFloat64(id, v.Float(), 0)
	}
	return errors.Wrapf(ErrUnsupported, "%s", v.Type())
}

// Decode reads the buffer produced by Encode into out, a pointer to struct.
// Fields missing from the buffer are set to their zero value. Strings and
// byte slices are copied; out does not alias data.
func (e *Encoder) Decode(data []byte, out any) error {
	t, err := GetRoot(data)
	if err != nil {
		return err
	}
	return e.DecodeTable(t, out)
}

// DecodeTable is Decode for a table reached through another accessor.
func (e *Encoder) DecodeTable(t Table, out any) error {
	v := reflect.ValueOf(out)
	if v.Kind() != reflect.Pointer || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return ErrNotStructPtr
	}
	return e.decodeStruct(t, v.Elem(), 0)
}

func (e *Encoder) decodeStruct(t Table, dst reflect.Value, depth int) error {
	if depth > maxDepth {
		return errors.Wrapf(ErrUnsupported, "%s nested deeper than %d", dst.Type(), maxDepth)
	}
	p, err := e.getPlan(dst.Type())
	if err != nil {
		return err
	}
	for _, f := range p.fields {
		if err := e.decodeField(t, f, dst.Field(f.idx), depth); err != nil {
			return errors.WithMessagef(err, "field %s", f.name)
		}
	}
	return nil
}

func (e *Encoder) decodeField(t Table, f fieldInfo, fv reflect.Value, depth int) error {
	if f.isFixed() {
		pos, ok, err := t.field(f.id, f.size)
		if err != nil {
			return err
		}
		if !ok {
			fv.SetZero()
			return nil
		}
		common.SetFixed(fv, t.Buf[pos:], f.kind)
		return nil
	}

	switch f.kind {
	case reflect.String:
		s, err := t.GetString(f.id)
		if err != nil {
			return err
		}
		fv.SetString(s)
	case reflect.Struct, reflect.Pointer:
		child, ok, err := t.GetTable(f.id)
		if err != nil {
			return err
		}
		if !ok {
			fv.SetZero()
			return nil
		}
		if f.kind == reflect.Pointer {
			fv.Set(reflect.New(fv.Type().Elem()))
			fv = fv.Elem()
		}
		return e.decodeStruct(child, fv, depth+1)
	case reflect.Slice:
		vec, ok, err := t.GetVector(f.id)
		if err != nil {
			return err
		}
		if !ok {
			fv.SetZero()
			return nil
		}
		return e.decodeSlice(vec, f, fv, depth)
	}
	return nil
}

func (e *Encoder) decodeSlice(vec Vector, f fieldInfo, fv reflect.Value, depth int) error {
	if f.elem == reflect.Uint8 {
		b, err := vec.Bytes()
		if err != nil {
			return err
		}
		// Clone keeps an empty vector non-nil
		fv.SetBytes(bytes.Clone(b))
		return nil
	}

	// the element bytes must be in the buffer before anything is allocated for them
	size := SizeUOffset
	if common.IsFixedKind(f.elem) {
		size = common.FixedSize(f.elem)
	}
	data, err := vec.Data(size)
	if err != nil {
		return err
	}
	out := reflect.MakeSlice(fv.Type(), vec.Len, vec.Len)
	if common.IsFixedKind(f.elem) {
		for i := 0; i < vec.Len; i++ {
			common.SetFixed(out.Index(i), data[i*size:], f.elem)
		}
		fv.Set(out)
		return nil
	}

	for i := 0; i < vec.Len; i++ {
		ev := out.Index(i)
		switch f.elem {
		case reflect.String:
			s, err := vec.String(i)
			if err != nil {
				return err
			}
			ev.SetString(s)
		case reflect.Struct, reflect.Pointer:
			child, err := vec.Table(i)
			if err != nil {
				return err
			}
			if f.elem == reflect.Pointer {
				ev.Set(reflect.New(ev.Type().Elem()))
				ev = ev.Elem()
			}
			if err := e.decodeStruct(child, ev, depth+1); err != nil {
				return err
			}
		}
	}
	fv.Set(out)
	return nil
}
