package od

// SyncGroup copies application-held values back into the original storage of
// every installed extension in the given storage group, so a persistence
// layer can serialize a consistent block afterwards. Entries in other
// groups, non-extended entries and uninstalled extensions are untouched;
// sub-entries without original storage contribute nothing.
//
// The scan always finishes: a reader failure skips that sub-entry and is
// counted in the return value.
func (d *Dictionary) SyncGroup(group uint8) (failed int) {
	if d == nil {
		return 0
	}
	for i := range d.entries {
		e := &d.entries[i]
		if e.StorageGroup != group {
			continue
		}
		x, ok := e.Object.(*Extended)
		if !ok || !x.installed() {
			continue
		}
		for sub := 0; sub <= int(e.MaxSub); sub++ {
			orig := SubEntry{MaxSub: e.MaxSub, Limit: NoLimits}
			if res := orig.bindBase(x.Orig, uint8(sub)); res != ResultOK {
				continue
			}
			size := orig.Stream.Size
			if orig.Stream.Data == nil || size == 0 {
				continue
			}
			st := Stream{Size: size, Object: x.ext.object}
			if _, res := x.ext.io.Read(&st, uint8(sub), orig.Stream.Data[:size]); res != ResultOK {
				failed++
			}
		}
	}
	return failed
}
