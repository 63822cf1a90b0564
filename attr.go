package od

// Attr is the access and mapping bit set of a sub-entry.
type Attr uint8

const (
	AttrSDORead   Attr = 0x01 // readable via SDO
	AttrSDOWrite  Attr = 0x02 // writable via SDO
	AttrSDORW     Attr = AttrSDORead | AttrSDOWrite
	AttrTPDO      Attr = 0x04 // mappable into transmit PDOs
	AttrRPDO      Attr = 0x08 // mappable into receive PDOs
	AttrTRPDO     Attr = AttrTPDO | AttrRPDO
	AttrTSRDO     Attr = 0x10 // mappable into transmit SRDOs
	AttrRSRDO     Attr = 0x20 // mappable into receive SRDOs
	AttrTRSRDO    Attr = AttrTSRDO | AttrRSRDO
	AttrMultibyte Attr = 0x40 // multi-byte value, byte order matters on the wire
	AttrNoInit    Attr = 0x80 // no initial value, the object carries no built-in storage
)

func (a Attr) Has(bits Attr) bool { return a&bits == bits }

// Readable reports whether SDO read access is allowed.
func (a Attr) Readable() bool { return a&AttrSDORead != 0 }

// Writable reports whether SDO write access is allowed.
func (a Attr) Writable() bool { return a&AttrSDOWrite != 0 }

// Mappable reports whether the sub-entry may appear in a PDO mapping.
func (a Attr) Mappable() bool { return a&AttrTRPDO != 0 }
