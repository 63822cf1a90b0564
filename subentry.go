package od

// Stream is the cursor state of one transfer in progress. Data, Size and
// Object are fixed at resolution time; Offset advances across partial
// transfer calls and is 0 whenever no transfer is underway.
type Stream struct {
	Data   []byte // backing storage; nil if the object has none
	Size   int    // declared byte length, 0 = unspecified
	Offset int    // current transfer position
	Object any    // application object when an extension is installed
}

// SubEntry is a resolved sub-index: access metadata plus a transfer cursor
// bound to the object's reader and writer. It is self-contained; callers may
// cache one and reuse it for repeated transfers instead of resolving again.
// Copies share the storage but carry independent cursors.
type SubEntry struct {
	Index        uint16
	SubIndex     uint8
	MaxSub       uint8
	StorageGroup uint8
	Attr         Attr
	Limit        Limits    // NoLimits when the object declares none
	FlagsPDO     *PDOFlags // nil unless the entry is extended

	Stream Stream

	io IO
}

// Sub resolves a sub-index within the entry. A nil entry reports
// ResultIndexNotFound, so lookup and resolution chain:
//
//	se, res := dict.Find(0x1017).Sub(0)
//
// For an extended entry the binding depends on installation state: before
// Extend the cursor references the original storage and the default copy
// protocol, afterwards the application object and the installed reader and
// writer. Declared metadata (attribute, size, limits) comes from the base
// object either way. The binding is captured at call time: a SubEntry
// resolved before an install keeps accessing the original storage.
func (e *Entry) Sub(sub uint8) (SubEntry, Result) {
	if e == nil {
		return SubEntry{}, ResultIndexNotFound
	}
	se := SubEntry{
		Index:        e.Index,
		SubIndex:     sub,
		MaxSub:       e.MaxSub,
		StorageGroup: e.StorageGroup,
		Limit:        NoLimits,
		io:           defaultIO{},
	}
	obj := e.Object
	x, _ := obj.(*Extended)
	if x != nil {
		se.FlagsPDO = x.FlagsPDO
		obj = x.Orig
	}
	if res := se.bindBase(obj, sub); res != ResultOK {
		return SubEntry{}, res
	}
	if x != nil && x.installed() {
		// The override replaces storage access, not the declared schema.
		se.Stream.Data = nil
		se.Stream.Object = x.ext.object
		se.io = x.ext.io
	}
	return se, ResultOK
}

func (se *SubEntry) bindBase(obj Object, sub uint8) Result {
	switch obj := obj.(type) {
	case Variable:
		if sub != 0 {
			return ResultSubIndexNotFound
		}
		se.bindVar(obj)
	case Array:
		if sub == 0 {
			se.Stream.Data = obj.Count
			se.Stream.Size = 1
			se.Attr = obj.Attr0
			return ResultOK
		}
		if sub > se.MaxSub {
			return ResultSubIndexNotFound
		}
		i := int(sub) - 1
		if obj.Data != nil {
			off := i * obj.stride()
			se.Stream.Data = obj.Data[off : off+obj.ElemSize]
		}
		se.Stream.Size = obj.ElemSize
		se.Attr = obj.Attr
		if obj.Attrs != nil {
			se.Attr = obj.Attrs[i]
		}
		if obj.Limits != nil {
			se.Limit = obj.Limits[i]
		}
	case Record:
		if int(sub) >= len(obj) {
			return ResultSubIndexNotFound
		}
		se.bindVar(obj[sub])
	default:
		return ResultDeviceIncompatible
	}
	return ResultOK
}

func (se *SubEntry) bindVar(v Variable) {
	se.Stream.Data = v.Data
	se.Stream.Size = v.Size
	se.Attr = v.Attr
	if v.Limit != nil {
		se.Limit = *v.Limit
	}
}

// Read copies the next chunk of the value into buf and returns the byte
// count. ResultOK means the value is complete; ResultPartial means buf
// filled up and another call is due.
func (s *SubEntry) Read(buf []byte) (int, Result) {
	return s.io.Read(&s.Stream, s.SubIndex, buf)
}

// Write copies the next chunk of data into the value and returns the byte
// count. ResultPartial means the value expects more bytes in a further call.
func (s *SubEntry) Write(data []byte) (int, Result) {
	return s.io.Write(&s.Stream, s.SubIndex, data)
}

// Restart abandons a partial transfer, positioning the cursor back at the
// start of the value. It is never needed after a completed transfer.
func (s *SubEntry) Restart() {
	s.Stream.Offset = 0
}

// CheckLimits validates a prospective value against the sub-entry's range.
func (s *SubEntry) CheckLimits(v int32) Result {
	return s.Limit.Check(v)
}
