package storage

import (
	"encoding/binary"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"

	"github.com/candevkit/od"
)

// testDevice is a two-group device: group 1 holds communication parameters
// backed by the comm block, group 2 holds a calibration gain served by
// application code.
type testDevice struct {
	dict  *od.Dictionary
	comm  []byte
	calib []byte
	gain  uint32
}

func newTestDevice(t *testing.T) *testDevice {
	t.Helper()
	d := &testDevice{
		comm:  make([]byte, 6),
		calib: make([]byte, 4),
		gain:  0x01020304,
	}
	binary.NativeEndian.PutUint16(d.comm[0:2], 1000)
	binary.NativeEndian.PutUint32(d.comm[2:6], 0x80)

	dict, err := od.New([]od.Entry{
		{Index: 0x1005, StorageGroup: 1, Object: od.Variable{
			Data: d.comm[2:6], Size: 4, Attr: od.AttrSDORW | od.AttrMultibyte,
		}},
		{Index: 0x1017, StorageGroup: 1, Object: od.Variable{
			Data: d.comm[0:2], Size: 2, Attr: od.AttrSDORW | od.AttrMultibyte,
		}},
		{Index: 0x2300, StorageGroup: 2, Object: &od.Extended{Orig: od.Variable{
			Data: d.calib[0:4], Size: 4, Attr: od.AttrSDORW | od.AttrMultibyte,
		}}},
	})
	require.NoError(t, err)
	d.dict = dict

	res := dict.Find(0x2300).Extend(&d.gain, gainIO{})
	require.Equal(t, od.ResultOK, res)
	return d
}

// gainIO serves the gain value out of application memory.
type gainIO struct{}

func (gainIO) Read(st *od.Stream, _ uint8, buf []byte) (int, od.Result) {
	if len(buf) < 4 {
		return 0, od.ResultDataTooShort
	}
	binary.NativeEndian.PutUint32(buf, *st.Object.(*uint32))
	return 4, od.ResultOK
}

func (gainIO) Write(st *od.Stream, _ uint8, data []byte) (int, od.Result) {
	if len(data) != 4 {
		return 0, od.ResultTypeMismatch
	}
	*st.Object.(*uint32) = binary.NativeEndian.Uint32(data)
	return 4, od.ResultOK
}

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "params.db"), Options{NoSync: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSaveRestore(t *testing.T) {
	s := openStore(t)
	d := newTestDevice(t)

	require.Equal(t, od.ResultOK, od.Set(d.dict.Find(0x1017), 0, uint16(500)))
	require.NoError(t, s.Save(d.dict, Group{Tag: 1, Data: d.comm}))

	// Runtime changes after the save are rolled back by the restore.
	require.Equal(t, od.ResultOK, od.Set(d.dict.Find(0x1017), 0, uint16(123)))

	require.NoError(t, s.Restore(Group{Tag: 1, Data: d.comm}))
	v, res := od.Get[uint16](d.dict.Find(0x1017), 0)
	require.Equal(t, od.ResultOK, res)
	require.EqualValues(t, 500, v)
}

func TestRestoreNeverSaved(t *testing.T) {
	s := openStore(t)
	d := newTestDevice(t)

	err := s.Restore(Group{Tag: 1, Data: d.comm})
	require.ErrorIs(t, err, ErrNotSaved)

	v, res := od.Get[uint16](d.dict.Find(0x1017), 0)
	require.Equal(t, od.ResultOK, res)
	require.EqualValues(t, 1000, v)
}

func TestSaveSyncsApplicationValues(t *testing.T) {
	s := openStore(t)
	d := newTestDevice(t)

	d.gain = 0xCAFE0001
	require.NoError(t, s.Save(d.dict, Group{Tag: 2, Data: d.calib}))

	// The snapshot carries the application value, not the stale block.
	d.gain = 0
	clear(d.calib)
	require.NoError(t, s.Restore(Group{Tag: 2, Data: d.calib}))
	require.EqualValues(t, 0xCAFE0001, binary.NativeEndian.Uint32(d.calib))
}

func TestRestoreSizeMismatch(t *testing.T) {
	s := openStore(t)
	d := newTestDevice(t)

	require.NoError(t, s.Save(d.dict, Group{Tag: 1, Data: d.comm}))
	err := s.Restore(Group{Tag: 1, Data: make([]byte, len(d.comm)+2)})
	require.ErrorIs(t, err, ErrMismatch)
}

func TestRestoreCorruptSnapshot(t *testing.T) {
	s := openStore(t)
	d := newTestDevice(t)

	require.NoError(t, s.Save(d.dict, Group{Tag: 1, Data: d.comm}))
	err := s.Bolt().Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(groupsBucket)
		raw := append([]byte(nil), b.Get(groupKey(1))...)
		raw[len(raw)-1] ^= 0xFF
		return b.Put(groupKey(1), raw)
	})
	require.NoError(t, err)

	before := append([]byte(nil), d.comm...)
	err = s.Restore(Group{Tag: 1, Data: d.comm})
	require.ErrorIs(t, err, ErrCorrupt)
	require.Equal(t, before, d.comm)
}

func TestDrop(t *testing.T) {
	s := openStore(t)
	d := newTestDevice(t)

	require.NoError(t, s.Save(d.dict, Group{Tag: 1, Data: d.comm}))
	require.NoError(t, s.Drop(1))
	require.ErrorIs(t, s.Restore(Group{Tag: 1, Data: d.comm}), ErrNotSaved)

	// Dropping an absent group is fine.
	require.NoError(t, s.Drop(77))
}

func TestSaveAllRestoreAll(t *testing.T) {
	s := openStore(t)
	d := newTestDevice(t)
	groups := []Group{{Tag: 1, Data: d.comm}, {Tag: 2, Data: d.calib}}

	n, err := s.SaveAll(d.dict, groups)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	tags, err := s.GroupTags()
	require.NoError(t, err)
	require.Equal(t, []uint8{1, 2}, tags)

	// A dropped group falls back to defaults without failing the restore.
	require.NoError(t, s.Drop(2))
	n, err = s.RestoreAll(groups)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestSavedAt(t *testing.T) {
	s := openStore(t)
	d := newTestDevice(t)

	_, err := s.SavedAt(1)
	require.ErrorIs(t, err, ErrNotSaved)

	require.NoError(t, s.Save(d.dict, Group{Tag: 1, Data: d.comm}))
	at, err := s.SavedAt(1)
	require.NoError(t, err)
	require.WithinDuration(t, time.Now(), at, time.Minute)
}

func TestSaveWithoutBlock(t *testing.T) {
	s := openStore(t)
	d := newTestDevice(t)

	require.Error(t, s.Save(d.dict, Group{Tag: 9}))
	require.Error(t, s.Restore(Group{Tag: 9}))
}

func TestReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "params.db")
	d := newTestDevice(t)

	s, err := Open(path, Options{NoSync: true})
	require.NoError(t, err)
	require.Equal(t, od.ResultOK, od.Set(d.dict.Find(0x1017), 0, uint16(250)))
	require.NoError(t, s.Save(d.dict, Group{Tag: 1, Data: d.comm}))
	require.NoError(t, s.Close())

	require.Equal(t, od.ResultOK, od.Set(d.dict.Find(0x1017), 0, uint16(9)))

	s, err = Open(path, Options{NoSync: true})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Restore(Group{Tag: 1, Data: d.comm}))
	v, res := od.Get[uint16](d.dict.Find(0x1017), 0)
	require.Equal(t, od.ResultOK, res)
	require.EqualValues(t, 250, v)
}
