package flatframe

import "github.com/pkg/errors"

var (
	// read side
	ErrOutOfBounds     = errors.New("offset out of bounds")
	ErrMalformedVtable = errors.New("malformed vtable")

	// build side
	ErrObjectFinished     = errors.New("object already finished")
	ErrNestedObject       = errors.New("object construction already in progress")
	ErrUnfinishedChild    = errors.New("reference to an object that is not finished")
	ErrBuilderFinished    = errors.New("builder already finished")
	ErrBuilderNotFinished = errors.New("builder not finished")
	ErrBufferFull         = errors.New("buffer exceeds maximum size")
	ErrInvalidField       = errors.New("field id out of range")

	// reflection encoder
	ErrNotStruct    = errors.New("expected struct")
	ErrNotStructPtr = errors.New("expected pointer to struct")
	ErrUnsupported  = errors.New("unsupported type")
)
