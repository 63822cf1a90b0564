package dcf

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/candevkit/od"
)

// deviceFile is the raw shape of a device description document.
type deviceFile struct {
	Device  deviceBlock   `toml:"device"`
	Objects []objectBlock `toml:"object"`
}

type deviceBlock struct {
	Name string `toml:"name"`
}

type objectBlock struct {
	Index     int64      `toml:"index"`
	Name      string     `toml:"name"`
	Kind      string     `toml:"kind"`
	Type      string     `toml:"type"`
	Size      int        `toml:"size"`
	Access    string     `toml:"access"`
	PDO       string     `toml:"pdo"`
	SRDO      string     `toml:"srdo"`
	Group     int64      `toml:"group"`
	Default   any        `toml:"default"`
	Low       *int64     `toml:"low"`
	High      *int64     `toml:"high"`
	NoInit    bool       `toml:"noinit"`
	Extension bool       `toml:"extension"`
	PDOFlags  bool       `toml:"pdoflags"`
	Count     int        `toml:"count"`
	Subs      []subBlock `toml:"sub"`
}

type subBlock struct {
	Name    string `toml:"name"`
	Type    string `toml:"type"`
	Size    int    `toml:"size"`
	Access  string `toml:"access"`
	PDO     string `toml:"pdo"`
	Default any    `toml:"default"`
	Low     *int64 `toml:"low"`
	High    *int64 `toml:"high"`
	NoInit  bool   `toml:"noinit"`
}

type valueKind int

const (
	kindUint valueKind = iota
	kindInt
	kindFloat
	kindString
	kindRaw
)

type valueType struct {
	kind valueKind
	size int // 0 for str/raw, which take their size from the description
}

var valueTypes = map[string]valueType{
	"u8":  {kindUint, 1},
	"u16": {kindUint, 2},
	"u32": {kindUint, 4},
	"u64": {kindUint, 8},
	"i8":  {kindInt, 1},
	"i16": {kindInt, 2},
	"i32": {kindInt, 4},
	"i64": {kindInt, 8},
	"f32": {kindFloat, 4},
	"f64": {kindFloat, 8},
	"str": {kindString, 0},
	"raw": {kindRaw, 0},
}

func resolveType(name string, size int) (valueType, int, error) {
	vt, ok := valueTypes[name]
	if !ok {
		if name == "" {
			return valueType{}, 0, fmt.Errorf("missing type")
		}
		return valueType{}, 0, fmt.Errorf("unknown type %q", name)
	}
	switch {
	case vt.size > 0 && size != 0 && size != vt.size:
		return valueType{}, 0, fmt.Errorf("size %d conflicts with type %s", size, name)
	case vt.size > 0:
		return vt, vt.size, nil
	case size <= 0:
		return valueType{}, 0, fmt.Errorf("type %s needs an explicit size", name)
	default:
		return vt, size, nil
	}
}

func parseAccess(s string) (od.Attr, error) {
	switch s {
	case "", "rw":
		return od.AttrSDORW, nil
	case "ro", "const":
		return od.AttrSDORead, nil
	case "wo":
		return od.AttrSDOWrite, nil
	}
	return 0, fmt.Errorf("unknown access %q", s)
}

func parsePDO(s string) (od.Attr, error) {
	switch s {
	case "":
		return 0, nil
	case "t":
		return od.AttrTPDO, nil
	case "r":
		return od.AttrRPDO, nil
	case "tr":
		return od.AttrTRPDO, nil
	}
	return 0, fmt.Errorf("unknown pdo direction %q", s)
}

func parseSRDO(s string) (od.Attr, error) {
	switch s {
	case "":
		return 0, nil
	case "t":
		return od.AttrTSRDO, nil
	case "r":
		return od.AttrRSRDO, nil
	case "tr":
		return od.AttrTRSRDO, nil
	}
	return 0, fmt.Errorf("unknown srdo direction %q", s)
}

func buildAttr(access, pdo, srdo string, vt valueType, size int, noinit bool) (od.Attr, error) {
	attr, err := parseAccess(access)
	if err != nil {
		return 0, err
	}
	p, err := parsePDO(pdo)
	if err != nil {
		return 0, err
	}
	sr, err := parseSRDO(srdo)
	if err != nil {
		return 0, err
	}
	attr |= p | sr
	if size > 1 && vt.kind != kindString && vt.kind != kindRaw {
		attr |= od.AttrMultibyte
	}
	if noinit {
		attr |= od.AttrNoInit
	}
	return attr, nil
}

// buildLimits maps optional low/high bounds onto the signed 32-bit limit
// domain. A one-sided bound leaves the other side open.
func buildLimits(low, high *int64, vt valueType) (*od.Limits, error) {
	if low == nil && high == nil {
		return nil, nil
	}
	if vt.kind == kindFloat || vt.kind == kindString || vt.kind == kindRaw || vt.size > 4 {
		return nil, fmt.Errorf("limits unsupported for this type")
	}
	l := od.Limits{Low: math.MinInt32, High: math.MaxInt32}
	if low != nil {
		if *low < math.MinInt32 || *low > math.MaxInt32 {
			return nil, fmt.Errorf("low %d out of the signed 32-bit range", *low)
		}
		l.Low = int32(*low)
	}
	if high != nil {
		if *high < math.MinInt32 || *high > math.MaxInt32 {
			return nil, fmt.Errorf("high %d out of the signed 32-bit range", *high)
		}
		l.High = int32(*high)
	}
	if l.Low > l.High {
		return nil, fmt.Errorf("low %d exceeds high %d", l.Low, l.High)
	}
	return &l, nil
}

// writeDefault stores a description default into freshly allocated storage,
// host-native for numeric types.
func writeDefault(dst []byte, vt valueType, size int, v any) error {
	if v == nil {
		return nil
	}
	switch vt.kind {
	case kindUint, kindInt:
		n, ok := v.(int64)
		if !ok {
			return fmt.Errorf("default must be an integer, got %T", v)
		}
		if !intFits(n, vt) {
			return fmt.Errorf("default %d does not fit the type", n)
		}
		putUint(dst, uint64(n), size)
	case kindFloat:
		var f float64
		switch x := v.(type) {
		case float64:
			f = x
		case int64:
			f = float64(x)
		default:
			return fmt.Errorf("default must be a number, got %T", v)
		}
		if size == 4 {
			binary.NativeEndian.PutUint32(dst, math.Float32bits(float32(f)))
		} else {
			binary.NativeEndian.PutUint64(dst, math.Float64bits(f))
		}
	case kindString, kindRaw:
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("default must be a string, got %T", v)
		}
		if len(s) > size {
			return fmt.Errorf("default of %d bytes exceeds size %d", len(s), size)
		}
		copy(dst, s)
	}
	return nil
}

func intFits(n int64, vt valueType) bool {
	if vt.kind == kindUint {
		if n < 0 {
			return false
		}
		if vt.size == 8 {
			return true
		}
		return uint64(n) <= 1<<(8*vt.size)-1
	}
	if vt.size == 8 {
		return true
	}
	lim := int64(1) << (8*vt.size - 1)
	return n >= -lim && n < lim
}

func putUint(dst []byte, v uint64, size int) {
	switch size {
	case 1:
		dst[0] = byte(v)
	case 2:
		binary.NativeEndian.PutUint16(dst, uint16(v))
	case 4:
		binary.NativeEndian.PutUint32(dst, uint32(v))
	case 8:
		binary.NativeEndian.PutUint64(dst, v)
	}
}
