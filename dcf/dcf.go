// Package dcf loads device descriptions.
//
// A description is a TOML document listing the objects of a device's object
// dictionary: indices, value types, access rights, defaults, limits and
// storage groups. Load builds a ready od.Dictionary plus one contiguous
// block of bytes per storage group, so the result plugs straight into the
// storage package:
//
//	dev, err := dcf.Load("device.toml")
//	...
//	for _, tag := range dev.GroupTags() {
//		block, _ := dev.Group(tag)
//		err := store.Restore(storage.Group{Tag: tag, Data: block})
//		...
//	}
//
// Descriptions declare data, not behavior. Objects served by application
// code are marked extension = true and wired up through od.Entry.Extend
// after loading.
package dcf

import (
	"fmt"
	"math"
	"os"
	"slices"
	"sort"

	"github.com/BurntSushi/toml"

	"github.com/candevkit/od"
)

// Device is a loaded description: the dictionary plus the storage blocks
// its objects live in.
type Device struct {
	Name string
	Dict *od.Dictionary

	groups map[uint8][]byte
	names  map[string]uint16
}

func Load(path string) (*Device, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("dcf: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Device, error) {
	var f deviceFile
	meta, err := toml.Decode(string(data), &f)
	if err != nil {
		return nil, fmt.Errorf("dcf: %w", err)
	}
	if un := meta.Undecoded(); len(un) > 0 {
		return nil, fmt.Errorf("dcf: unknown key %q", un[0].String())
	}
	return build(&f)
}

// Group returns the backing block of one storage group. Groups whose objects
// hold no storage have no block.
func (d *Device) Group(tag uint8) ([]byte, bool) {
	b, ok := d.groups[tag]
	return b, ok
}

// GroupTags lists the device's storage groups in ascending order.
func (d *Device) GroupTags() []uint8 {
	tags := make([]uint8, 0, len(d.groups))
	for t := range d.groups {
		tags = append(tags, t)
	}
	slices.Sort(tags)
	return tags
}

// Named looks an object up by its description name, nil if absent.
func (d *Device) Named(name string) *od.Entry {
	idx, ok := d.names[name]
	if !ok {
		return nil
	}
	return d.Dict.Find(idx)
}

// pendingField is one resolved storage cell: a variable, a record sub, an
// array's count byte or its element prototype.
type pendingField struct {
	vt     valueType
	size   int
	attr   od.Attr
	limit  *od.Limits
	def    any
	store  bool
	offset int
}

type pendingObject struct {
	index  uint16
	name   string
	kind   string
	group  uint8
	maxSub uint8
	count  int
	elem   pendingField
	fields []pendingField
	wrap   bool
	flags  bool
}

func build(f *deviceFile) (*Device, error) {
	if len(f.Objects) == 0 {
		return nil, fmt.Errorf("dcf: description has no objects")
	}

	plans := make([]pendingObject, 0, len(f.Objects))
	for i := range f.Objects {
		o := &f.Objects[i]
		p, err := planObject(o)
		if err != nil {
			idx := uint16(0)
			if o.Index >= 0 && o.Index <= math.MaxUint16 {
				idx = uint16(o.Index)
			}
			return nil, objectErrf(idx, o.Name, err, "")
		}
		plans = append(plans, p)
	}
	sort.SliceStable(plans, func(i, j int) bool { return plans[i].index < plans[j].index })

	dev := &Device{
		Name:   f.Device.Name,
		groups: make(map[uint8][]byte),
		names:  make(map[string]uint16),
	}
	prev := -1
	for i := range plans {
		p := &plans[i]
		if int(p.index) == prev {
			return nil, objectErrf(p.index, p.name, nil, "duplicate index")
		}
		prev = int(p.index)
		if _, dup := dev.names[p.name]; dup {
			return nil, objectErrf(p.index, p.name, nil, "duplicate name")
		}
		dev.names[p.name] = p.index
	}

	// Layout: every stored field gets an offset in its group's block, in
	// index order.
	sizes := make(map[uint8]int)
	for i := range plans {
		p := &plans[i]
		off := sizes[p.group]
		for fi := range p.fields {
			fld := &p.fields[fi]
			if !fld.store {
				fld.offset = -1
				continue
			}
			fld.offset = off
			off += fld.size
		}
		if p.kind == "array" {
			p.elem.offset = off
			off += p.count * p.elem.size
		}
		sizes[p.group] = off
	}
	for g, n := range sizes {
		if n > 0 {
			dev.groups[g] = make([]byte, n)
		}
	}

	entries := make([]od.Entry, len(plans))
	for i := range plans {
		p := &plans[i]
		obj, err := materialize(p, dev.groups[p.group])
		if err != nil {
			return nil, err
		}
		entries[i] = od.Entry{Index: p.index, MaxSub: p.maxSub, StorageGroup: p.group, Object: obj}
	}

	dict, err := od.New(entries)
	if err != nil {
		return nil, fmt.Errorf("dcf: %w", err)
	}
	dev.Dict = dict
	return dev, nil
}

func planObject(o *objectBlock) (pendingObject, error) {
	var p pendingObject
	if o.Index < 0 || o.Index > math.MaxUint16 {
		return p, fmt.Errorf("index %#x out of the 16-bit range", o.Index)
	}
	p.index = uint16(o.Index)
	if o.Name == "" {
		return p, fmt.Errorf("object needs a name")
	}
	p.name = o.Name
	if o.Group < 0 || o.Group > math.MaxUint8 {
		return p, fmt.Errorf("group %d out of range", o.Group)
	}
	p.group = uint8(o.Group)
	p.wrap = o.Extension || o.PDOFlags
	p.flags = o.PDOFlags

	switch o.Kind {
	case "", "var":
		p.kind = "var"
		if len(o.Subs) > 0 {
			return p, fmt.Errorf("sub blocks apply only to records")
		}
		if o.Count != 0 {
			return p, fmt.Errorf("count applies only to arrays")
		}
		fld, err := planField(subBlock{
			Type: o.Type, Size: o.Size, Access: o.Access, PDO: o.PDO,
			Default: o.Default, Low: o.Low, High: o.High, NoInit: o.NoInit,
		}, o.SRDO)
		if err != nil {
			return p, err
		}
		p.fields = []pendingField{fld}

	case "array":
		p.kind = "array"
		if len(o.Subs) > 0 {
			return p, fmt.Errorf("sub blocks apply only to records")
		}
		if o.NoInit {
			return p, fmt.Errorf("noinit applies only to variables")
		}
		if o.Count < 1 || o.Count > 255 {
			return p, fmt.Errorf("array count %d out of range 1..255", o.Count)
		}
		p.count = o.Count
		p.maxSub = uint8(o.Count)
		elem, err := planField(subBlock{
			Type: o.Type, Size: o.Size, Access: o.Access, PDO: o.PDO,
			Default: o.Default, Low: o.Low, High: o.High,
		}, o.SRDO)
		if err != nil {
			return p, err
		}
		p.elem = elem
		// Sub-index 0 is the read-only element count.
		p.fields = []pendingField{{
			vt: valueTypes["u8"], size: 1, attr: od.AttrSDORead,
			def: int64(o.Count), store: true,
		}}

	case "record":
		p.kind = "record"
		if o.Type != "" || o.Size != 0 || o.Count != 0 || o.NoInit ||
			o.Access != "" || o.PDO != "" ||
			o.Default != nil || o.Low != nil || o.High != nil {
			return p, fmt.Errorf("records declare type, access and defaults per sub")
		}
		if n := len(o.Subs); n < 1 || n > 256 {
			return p, fmt.Errorf("record needs 1..256 sub blocks, has %d", len(o.Subs))
		}
		p.maxSub = uint8(len(o.Subs) - 1)
		p.fields = make([]pendingField, len(o.Subs))
		for si, s := range o.Subs {
			fld, err := planField(s, o.SRDO)
			if err != nil {
				return p, fmt.Errorf("sub %d: %w", si, err)
			}
			p.fields[si] = fld
		}

	default:
		return p, fmt.Errorf("unknown kind %q", o.Kind)
	}
	return p, nil
}

func planField(s subBlock, srdo string) (pendingField, error) {
	vt, size, err := resolveType(s.Type, s.Size)
	if err != nil {
		return pendingField{}, err
	}
	attr, err := buildAttr(s.Access, s.PDO, srdo, vt, size, s.NoInit)
	if err != nil {
		return pendingField{}, err
	}
	limit, err := buildLimits(s.Low, s.High, vt)
	if err != nil {
		return pendingField{}, err
	}
	if s.NoInit && s.Default != nil {
		return pendingField{}, fmt.Errorf("noinit object cannot carry a default")
	}
	return pendingField{vt: vt, size: size, attr: attr, limit: limit, def: s.Default, store: !s.NoInit}, nil
}

func materialize(p *pendingObject, arena []byte) (od.Object, error) {
	var obj od.Object
	switch p.kind {
	case "var":
		v, err := buildVariable(&p.fields[0], arena)
		if err != nil {
			return nil, objectErrf(p.index, p.name, err, "")
		}
		obj = v

	case "array":
		cnt := &p.fields[0]
		a := od.Array{
			Count:    arena[cnt.offset : cnt.offset+1],
			Data:     arena[p.elem.offset : p.elem.offset+p.count*p.elem.size],
			Attr0:    cnt.attr,
			Attr:     p.elem.attr,
			ElemSize: p.elem.size,
		}
		a.Count[0] = byte(p.count)
		for e := 0; e < p.count; e++ {
			dst := a.Data[e*p.elem.size : (e+1)*p.elem.size]
			if err := writeDefault(dst, p.elem.vt, p.elem.size, p.elem.def); err != nil {
				return nil, objectErrf(p.index, p.name, err, "")
			}
		}
		if p.elem.limit != nil {
			lims := make([]od.Limits, p.count)
			for e := range lims {
				lims[e] = *p.elem.limit
			}
			a.Limits = lims
		}
		obj = a

	case "record":
		rec := make(od.Record, len(p.fields))
		for fi := range p.fields {
			v, err := buildVariable(&p.fields[fi], arena)
			if err != nil {
				return nil, objectErrf(p.index, p.name, err, "sub %d", fi)
			}
			rec[fi] = v
		}
		obj = rec
	}

	if p.wrap {
		x := &od.Extended{Orig: obj}
		if p.flags {
			x.FlagsPDO = new(od.PDOFlags)
		}
		return x, nil
	}
	return obj, nil
}

func buildVariable(f *pendingField, arena []byte) (od.Variable, error) {
	v := od.Variable{Attr: f.attr, Size: f.size, Limit: f.limit}
	if f.offset >= 0 {
		v.Data = arena[f.offset : f.offset+f.size]
		if err := writeDefault(v.Data, f.vt, f.size, f.def); err != nil {
			return od.Variable{}, err
		}
	}
	return v, nil
}
