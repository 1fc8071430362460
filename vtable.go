package flatframe

import (
	"bytes"
	"math"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// vtablePool remembers every vtable emitted in the current session, keyed by
// a hash of its bytes. Objects with the same fields present at the same
// positions share one vtable.
type vtablePool struct {
	index map[uint64][]UOffset
	count int
}

func (p *vtablePool) init() {
	p.index = make(map[uint64][]UOffset)
}

func (p *vtablePool) reset() {
	clear(p.index)
	p.count = 0
}

// VtableCount returns how many distinct vtables the session wrote.
func (b *Builder) VtableCount() int {
	return b.vtables.count
}

// writeVtable serializes the open object's slots, reusing an identical
// vtable when one exists, and returns the vtable's offset.
//
// Layout: uint16 vtable size, uint16 object size, one uint16 per field id
// holding the field's position from the table start (0 = absent). Trailing
// absent fields are not written; readers treat ids past the end as absent.
func (b *Builder) writeVtable(objectOffset UOffset) (UOffset, error) {
	slots := b.vtable
	n := len(slots)
	for n > 0 && slots[n-1] == 0 {
		n--
	}
	size := vtableHeaderSize + n*SizeVOffset
	objSize := objectOffset - b.objectStart
	if objSize > math.MaxUint16 || size > math.MaxUint16 {
		return 0, errors.Wrapf(ErrBufferFull, "object of %d bytes does not fit a vtable", objSize)
	}

	if cap(b.scratch) < size {
		b.scratch = make([]byte, size)
	}
	vt := b.scratch[:size]
	PutScalar(vt[0:], uint16(size))
	PutScalar(vt[2:], uint16(objSize))
	for i := 0; i < n; i++ {
		var off uint16
		if slots[i] != 0 {
			off = uint16(objectOffset - slots[i])
		}
		PutScalar(vt[vtableHeaderSize+i*SizeVOffset:], off)
	}

	key := xxhash.Sum64(vt)
	for _, existing := range b.vtables.index[key] {
		at := len(b.bytes) - int(existing)
		if ReadScalar[uint16](b.bytes[at:]) != uint16(size) {
			continue
		}
		if bytes.Equal(b.bytes[at:at+size], vt) {
			b.debug("vtable reused", logrus.Fields{"vtable": existing, "object": objectOffset})
			return existing, nil
		}
	}

	off, err := b.allocate(size, SizeVOffset)
	if err != nil {
		return 0, err
	}
	copy(b.bytes[b.head:], vt)
	b.vtables.index[key] = append(b.vtables.index[key], off)
	b.vtables.count++
	return off, nil
}
