package od

// IO is the reader/writer pair bound to a resolved sub-entry. The package
// supplies the implementation copying against built-in storage; applications
// provide their own through Entry.Extend to take over access to an object.
//
// Implementations own the chunking contract: when a transfer needs further
// calls they advance st.Offset and return ResultPartial, and they reset
// st.Offset to 0 on the call that completes it. The sub-index is passed so
// one implementation can serve a whole entry.
type IO interface {
	Read(st *Stream, sub uint8, buf []byte) (int, Result)
	Write(st *Stream, sub uint8, data []byte) (int, Result)
}

// defaultIO is the default copy protocol over Stream.Data.
type defaultIO struct{}

func (defaultIO) Read(st *Stream, _ uint8, buf []byte) (int, Result) {
	if st.Data == nil {
		return 0, ResultSubIndexNotFound
	}
	if st.Size > len(st.Data) || st.Offset < 0 || st.Offset > st.Size {
		return 0, ResultDeviceIncompatible
	}
	off := st.Offset
	n := st.Size - off
	res := ResultOK
	if len(buf) < n {
		n = len(buf)
		st.Offset = off + n
		res = ResultPartial
	} else {
		st.Offset = 0
	}
	copy(buf, st.Data[off:off+n])
	return n, res
}

func (defaultIO) Write(st *Stream, _ uint8, data []byte) (int, Result) {
	if st.Data == nil {
		return 0, ResultSubIndexNotFound
	}
	if st.Size > len(st.Data) || st.Offset < 0 || st.Offset > st.Size {
		return 0, ResultDeviceIncompatible
	}
	off := st.Offset
	remain := st.Size - off
	if len(data) > remain {
		return 0, ResultDataTooLong
	}
	copy(st.Data[off:], data)
	if len(data) < remain {
		st.Offset = off + len(data)
		return len(data), ResultPartial
	}
	st.Offset = 0
	return remain, ResultOK
}
