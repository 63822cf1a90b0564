package dcf

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/candevkit/od"
)

func loadTestDevice(t *testing.T) *Device {
	t.Helper()
	dev, err := Load("testdata/device.toml")
	require.NoError(t, err)
	return dev
}

func TestLoadDevice(t *testing.T) {
	dev := loadTestDevice(t)
	require.Equal(t, "pressure-7", dev.Name)
	require.Equal(t, 9, dev.Dict.Len())
	require.Equal(t, []uint8{0, 1, 2}, dev.GroupTags())

	for tag, size := range map[uint8]int{0: 18, 1: 2, 2: 33} {
		block, ok := dev.Group(tag)
		require.True(t, ok, "group %d", tag)
		require.Len(t, block, size, "group %d", tag)
	}
}

func TestDefaults(t *testing.T) {
	dev := loadTestDevice(t)

	v, res := od.Get[uint32](dev.Dict.Find(0x1000), 0)
	require.Equal(t, od.ResultOK, res)
	require.EqualValues(t, 0x000F0191, v)

	hb, res := od.Get[uint16](dev.Named("producer_heartbeat"), 0)
	require.Equal(t, od.ResultOK, res)
	require.EqualValues(t, 1000, hb)

	vendor, res := od.Get[uint32](dev.Named("identity"), 1)
	require.Equal(t, od.ResultOK, res)
	require.EqualValues(t, 0x2BAD, vendor)

	alpha, res := od.Get[float32](dev.Named("filter_alpha"), 0)
	require.Equal(t, od.ResultOK, res)
	require.EqualValues(t, 0.25, alpha)

	n, res := od.Get[uint8](dev.Named("thresholds"), 0)
	require.Equal(t, od.ResultOK, res)
	require.EqualValues(t, 4, n)
	for sub := uint8(1); sub <= 4; sub++ {
		e, res := od.Get[int16](dev.Named("thresholds"), sub)
		require.Equal(t, od.ResultOK, res)
		require.EqualValues(t, 250, e, "element %d", sub)
	}
}

func TestStringObject(t *testing.T) {
	dev := loadTestDevice(t)
	se, res := dev.Named("station_name").Sub(0)
	require.Equal(t, od.ResultOK, res)
	require.Equal(t, 16, se.Stream.Size)

	buf := make([]byte, 16)
	n, res := se.Read(buf)
	require.Equal(t, od.ResultOK, res)
	require.Equal(t, 16, n)
	require.Equal(t, "PRESSURE-7", string(buf[:10]))
	require.Equal(t, make([]byte, 6), buf[10:])
}

func TestAttributesAndLimits(t *testing.T) {
	dev := loadTestDevice(t)

	se, res := dev.Named("error_register").Sub(0)
	require.Equal(t, od.ResultOK, res)
	require.Equal(t, od.AttrSDORead|od.AttrTPDO, se.Attr)

	se, res = dev.Named("thresholds").Sub(2)
	require.Equal(t, od.ResultOK, res)
	require.Equal(t, od.AttrSDORW|od.AttrRPDO|od.AttrMultibyte, se.Attr)
	require.Equal(t, od.ResultOK, se.CheckLimits(1000))
	require.Equal(t, od.ResultValueTooHigh, se.CheckLimits(1001))
	require.Equal(t, od.ResultValueTooLow, se.CheckLimits(-1001))

	se, res = dev.Named("producer_heartbeat").Sub(0)
	require.Equal(t, od.ResultOK, res)
	require.Equal(t, od.ResultValueTooHigh, se.CheckLimits(40000))
	require.Equal(t, od.ResultOK, se.CheckLimits(0))
}

// sampleIO serves a live reading out of application memory.
type sampleIO struct{}

func (sampleIO) Read(st *od.Stream, _ uint8, buf []byte) (int, od.Result) {
	if len(buf) < 4 {
		return 0, od.ResultDataTooShort
	}
	binary.NativeEndian.PutUint32(buf, uint32(*st.Object.(*int32)))
	return 4, od.ResultOK
}

func (sampleIO) Write(*od.Stream, uint8, []byte) (int, od.Result) {
	return 0, od.ResultReadOnly
}

func TestExtensionObjects(t *testing.T) {
	dev := loadTestDevice(t)

	x, ok := dev.Named("calibration_gain").Object.(*od.Extended)
	require.True(t, ok)
	require.NotNil(t, x.FlagsPDO)

	// live_sample has no storage until application code serves it.
	_, res := od.Get[int32](dev.Named("live_sample"), 0)
	require.Equal(t, od.ResultSubIndexNotFound, res)

	sample := int32(-40)
	res = dev.Named("live_sample").Extend(&sample, sampleIO{})
	require.Equal(t, od.ResultOK, res)
	v, res := od.Get[int32](dev.Named("live_sample"), 0)
	require.Equal(t, od.ResultOK, res)
	require.EqualValues(t, -40, v)

	se, res := dev.Named("live_sample").Sub(0)
	require.Equal(t, od.ResultOK, res)
	require.True(t, se.Attr.Has(od.AttrNoInit))
}

func TestGroupBlocksBackStorage(t *testing.T) {
	dev := loadTestDevice(t)
	block, ok := dev.Group(1)
	require.True(t, ok)

	require.Equal(t, od.ResultOK, od.Set(dev.Named("producer_heartbeat"), 0, uint16(2500)))
	require.EqualValues(t, 2500, binary.NativeEndian.Uint16(block))
}

func TestNamedUnknown(t *testing.T) {
	dev := loadTestDevice(t)
	require.Nil(t, dev.Named("bogus"))

	// Resolution through an unknown name fails cleanly.
	_, res := od.Get[uint8](dev.Named("bogus"), 0)
	require.Equal(t, od.ResultIndexNotFound, res)
}

func TestParseErrors(t *testing.T) {
	o := func(desc, wantSub string) {
		t.Helper()
		_, err := Parse([]byte(desc))
		require.Error(t, err)
		require.Contains(t, err.Error(), wantSub)
	}

	o(``, "no objects")
	o(`[[object]]
index = 0x1000
type = "u32"
`, "needs a name")
	o(`[[object]]
index = 0x70000
name = "x"
type = "u32"
`, "out of the 16-bit range")
	o(`[[object]]
index = 0x1000
name = "x"
type = "u33"
`, `unknown type "u33"`)
	o(`[[object]]
index = 0x1000
name = "x"
type = "str"
`, "needs an explicit size")
	o(`[[object]]
index = 0x1000
name = "x"
type = "u16"
low = 10
high = 5
`, "low 10 exceeds high 5")
	o(`[[object]]
index = 0x1000
name = "x"
type = "f64"
low = 1
`, "limits unsupported")
	o(`[[object]]
index = 0x1000
name = "x"
type = "u8"
default = 300
`, "does not fit")
	o(`[[object]]
index = 0x1000
name = "x"
type = "u16"
default = -1
`, "does not fit")
	o(`[[object]]
index = 0x1000
name = "x"
type = "str"
size = 4
default = "toolong"
`, "exceeds size")
	o(`[[object]]
index = 0x1000
name = "x"
type = "u8"
access = "rwx"
`, `unknown access "rwx"`)
	o(`[[object]]
index = 0x1000
name = "x"
kind = "blob"
`, `unknown kind "blob"`)
	o(`[[object]]
index = 0x1000
name = "x"
kind = "array"
type = "u8"
`, "array count 0 out of range")
	o(`[[object]]
index = 0x1000
name = "x"
kind = "record"
`, "record needs 1..256 sub blocks")
	o(`[[object]]
index = 0x1000
name = "x"
type = "u8"
noinit = true
default = 7
`, "noinit object cannot carry a default")
	o(`[[object]]
index = 0x1000
name = "a"
type = "u8"
[[object]]
index = 0x1000
name = "b"
type = "u8"
`, "duplicate index")
	o(`[[object]]
index = 0x1000
name = "a"
type = "u8"
[[object]]
index = 0x1001
name = "a"
type = "u8"
`, "duplicate name")
	o(`[[object]]
index = 0x1000
name = "x"
type = "u8"
bogus = 1
`, "unknown key")
}

func TestObjectErrorContext(t *testing.T) {
	_, err := Parse([]byte(`[[object]]
index = 0x1017
name = "producer_heartbeat"
type = "u16"
low = 100
high = 5
`))
	require.Error(t, err)
	require.Contains(t, err.Error(), `dcf: object 0x1017 "producer_heartbeat"`)

	var oe *ObjectError
	require.ErrorAs(t, err, &oe)
	require.EqualValues(t, 0x1017, oe.Index)
	require.Equal(t, "producer_heartbeat", oe.Name)
}
