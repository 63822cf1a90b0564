package od

// Limits is an inclusive range on the signed 32-bit value domain. A range
// with Low greater than High disables checking; NoLimits is the canonical
// disabled value.
type Limits struct {
	Low, High int32
}

// NoLimits accepts every value.
var NoLimits = Limits{Low: 1, High: 0}

// Check validates v against the range, returning ResultValueTooLow,
// ResultValueTooHigh or ResultOK.
func (l Limits) Check(v int32) Result {
	if l.Low > l.High {
		return ResultOK
	}
	if v < l.Low {
		return ResultValueTooLow
	}
	if v > l.High {
		return ResultValueTooHigh
	}
	return ResultOK
}

// PDOFlags is the per-object flag word the PDO layer uses to track mapping
// requests and confirmations. The dictionary stores it and hands out the
// reference; the bit assignments belong to the PDO layer.
type PDOFlags uint32

// An Object is one of the closed set of layouts an Entry can hold:
// Variable, Array, Record, or *Extended. The first three are stored by
// value; Extended must be stored by pointer because it carries the mutable
// extension cell.
type Object interface {
	object()
}

func (Variable) object()  {}
func (Array) object()     {}
func (Record) object()    {}
func (*Extended) object() {}

// Variable is a single value of up to Size bytes.
//
// Data is the backing storage; nil means the object has no built-in storage
// (AttrNoInit objects, typically served by an extension). Size is the
// declared transfer length in bytes; 0 means unspecified, a transfer is then
// whatever the bound reader or writer decides. Limit, when non-nil, enables
// range checking for writes the consumer chooses to validate.
type Variable struct {
	Data  []byte
	Attr  Attr
	Size  int
	Limit *Limits
}

// Array holds a one-byte element count at sub-index 0 plus MaxSub elements
// of a uniform scalar layout at sub-indices 1..MaxSub.
//
// Count backs sub-index 0. Element i (sub-index i+1) occupies
// Data[i*Stride : i*Stride+ElemSize]; Stride defaults to ElemSize when zero
// and lets elements sit apart in memory, e.g. inside a slice of structs.
// Attrs and Limits, when non-nil, carry per-element attributes and ranges
// and must cover all MaxSub elements; otherwise Attr applies uniformly and
// no range is checked.
type Array struct {
	Count    []byte
	Data     []byte
	Attr0    Attr
	Attr     Attr
	ElemSize int
	Stride   int
	Attrs    []Attr
	Limits   []Limits
}

func (a Array) stride() int {
	if a.Stride == 0 {
		return a.ElemSize
	}
	return a.Stride
}

// Record is a sequence of heterogeneous fields, one per sub-index. Element 0
// conventionally holds the field count as a single byte.
type Record []Variable

// Extended wraps a base object so an application can take over its access
// with Entry.Extend, and optionally attaches a PDO flag word. Orig must not
// itself be an *Extended.
//
// Store an Extended in an Entry by pointer: the extension cell inside needs
// a stable identity across resolutions.
type Extended struct {
	FlagsPDO *PDOFlags
	Orig     Object

	ext extension
}

// extension is the cell Entry.Extend fills: the application object plus its
// reader/writer pair. Written once during device bring-up, read by every
// later resolution.
type extension struct {
	object any
	io     IO
}

func (x *Extended) installed() bool { return x.ext.io != nil }
