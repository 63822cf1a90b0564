package od

import (
	"fmt"
	"iter"
	"sort"
)

// Entry is one object in the dictionary, identified by a 16-bit index.
// MaxSub is the highest valid sub-index: 0 for a Variable, the element
// count for an Array, one less than the field count for a Record.
// StorageGroup tags the entry for group-wise persistence.
type Entry struct {
	Index        uint16
	MaxSub       uint8
	StorageGroup uint8
	Object       Object
}

// Dictionary is an immutable table of entries ordered by strictly ascending
// index. Build one with New, or through the dcf loader, during device
// bring-up; afterwards any number of goroutines may look up and access
// entries concurrently.
type Dictionary struct {
	entries []Entry
}

// New builds a dictionary from entries sorted by strictly ascending index.
// The slice is copied; the object storage it references is shared, that is
// where values live. Shape problems are reported as errors naming the entry.
func New(entries []Entry) (*Dictionary, error) {
	d := &Dictionary{entries: make([]Entry, len(entries))}
	copy(d.entries, entries)
	prev := -1
	for i := range d.entries {
		e := &d.entries[i]
		if int(e.Index) <= prev {
			return nil, entryErrf(e, "index out of order")
		}
		prev = int(e.Index)
		if err := validateEntry(e); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Len returns the number of entries.
func (d *Dictionary) Len() int {
	if d == nil {
		return 0
	}
	return len(d.entries)
}

// Find returns the entry with the given index, or nil if there is none.
// Lookup is a binary search over the ordered table; every 16-bit index is a
// valid argument. A nil dictionary finds nothing.
func (d *Dictionary) Find(index uint16) *Entry {
	if d == nil {
		return nil
	}
	ents := d.entries
	i := sort.Search(len(ents), func(i int) bool { return ents[i].Index >= index })
	if i < len(ents) && ents[i].Index == index {
		return &ents[i]
	}
	return nil
}

// Entries iterates the table in index order.
func (d *Dictionary) Entries() iter.Seq[*Entry] {
	return func(yield func(*Entry) bool) {
		if d == nil {
			return
		}
		for i := range d.entries {
			if !yield(&d.entries[i]) {
				return
			}
		}
	}
}

func entryErrf(e *Entry, format string, args ...any) error {
	return fmt.Errorf("od: entry 0x%04X: %s", e.Index, fmt.Sprintf(format, args...))
}

func validateEntry(e *Entry) error {
	obj := e.Object
	if x, ok := obj.(*Extended); ok {
		if x.Orig == nil {
			return entryErrf(e, "extended object has no base")
		}
		if _, ok := x.Orig.(*Extended); ok {
			return entryErrf(e, "extended object wraps another extended object")
		}
		obj = x.Orig
	}
	switch obj := obj.(type) {
	case Variable:
		if e.MaxSub != 0 {
			return entryErrf(e, "variable entries have max sub-index 0, got %d", e.MaxSub)
		}
		return validateStorage(e, 0, obj.Data, obj.Size)
	case Array:
		n := int(e.MaxSub)
		if n < 1 {
			return entryErrf(e, "array needs at least one element")
		}
		if len(obj.Count) < 1 {
			return entryErrf(e, "array needs a count byte for sub-index 0")
		}
		if obj.ElemSize < 1 {
			return entryErrf(e, "array element size %d, must be at least 1", obj.ElemSize)
		}
		if st := obj.stride(); st < obj.ElemSize {
			return entryErrf(e, "array stride %d smaller than element size %d", st, obj.ElemSize)
		}
		if obj.Data != nil {
			if need := obj.stride()*(n-1) + obj.ElemSize; need > len(obj.Data) {
				return entryErrf(e, "array storage holds %d bytes, %d elements need %d", len(obj.Data), n, need)
			}
		}
		if obj.Attrs != nil && len(obj.Attrs) != n {
			return entryErrf(e, "array has %d per-element attributes for %d elements", len(obj.Attrs), n)
		}
		if obj.Limits != nil && len(obj.Limits) != n {
			return entryErrf(e, "array has %d per-element limits for %d elements", len(obj.Limits), n)
		}
		return nil
	case Record:
		if len(obj) != int(e.MaxSub)+1 {
			return entryErrf(e, "record has %d fields, max sub-index %d needs %d", len(obj), e.MaxSub, int(e.MaxSub)+1)
		}
		for sub, f := range obj {
			if err := validateStorage(e, uint8(sub), f.Data, f.Size); err != nil {
				return err
			}
		}
		return nil
	case nil:
		return entryErrf(e, "entry has no object")
	default:
		return entryErrf(e, "unsupported object layout %T", obj)
	}
}

func validateStorage(e *Entry, sub uint8, data []byte, size int) error {
	if size < 0 {
		return entryErrf(e, "sub 0x%02X: negative declared size %d", sub, size)
	}
	if data != nil && size > len(data) {
		return entryErrf(e, "sub 0x%02X: declared size %d exceeds storage %d", sub, size, len(data))
	}
	return nil
}
