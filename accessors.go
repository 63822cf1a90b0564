package od

import "unsafe"

// Scalar enumerates the fixed-width value types the typed accessors handle.
type Scalar interface {
	~int8 | ~int16 | ~int32 | ~int64 |
		~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// Get resolves a sub-entry and reads its whole value as the scalar type T in
// a single transfer:
//
//	interval, res := od.Get[uint16](dict.Find(0x1017), 0)
//
// The declared size of the object must match the width of T exactly,
// otherwise ResultTypeMismatch is reported before any transfer. Bytes travel
// in the host's native representation; multi-byte wire conversion is the
// consumer's job.
func Get[T Scalar](e *Entry, sub uint8) (T, Result) {
	var v T
	se, res := e.Sub(sub)
	if res != ResultOK {
		return v, res
	}
	size := int(unsafe.Sizeof(v))
	if se.Stream.Size != size {
		return v, ResultTypeMismatch
	}
	buf := unsafe.Slice((*byte)(unsafe.Pointer(&v)), size)
	n, res := se.Read(buf)
	if res == ResultOK && n == size {
		return v, ResultOK
	}
	var zero T
	switch {
	case res == ResultPartial:
		return zero, ResultDataTooLong
	case res != ResultOK:
		return zero, res
	default:
		return zero, ResultDataTooShort
	}
}

// Set resolves a sub-entry and writes v as its whole value in a single
// transfer. Size checking mirrors Get: the declared size must match the
// width of T, a writer that wants more bytes reports ResultDataTooShort and
// one that accepts fewer reports ResultDataTooLong.
func Set[T Scalar](e *Entry, sub uint8, v T) Result {
	se, res := e.Sub(sub)
	if res != ResultOK {
		return res
	}
	size := int(unsafe.Sizeof(v))
	if se.Stream.Size != size {
		return ResultTypeMismatch
	}
	data := unsafe.Slice((*byte)(unsafe.Pointer(&v)), size)
	n, res := se.Write(data)
	switch {
	case res == ResultPartial:
		return ResultDataTooShort
	case res != ResultOK:
		return res
	case n != size:
		return ResultDataTooLong
	}
	return ResultOK
}
