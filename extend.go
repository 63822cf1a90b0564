package od

// Extend installs an application object and its reader/writer pair on an
// extended entry. Resolutions taken from then on bind the custom pair and
// reference object instead of the original storage; resolutions taken
// earlier keep the bindings they captured. There is no uninstall.
//
// An application that wants the original storage as well, for initial values
// or write-through, resolves the sub-entries of interest before installing
// and keeps those SubEntry values.
//
// Extend itself takes no lock: install while the entry is not being accessed
// concurrently, normally during device bring-up.
func (e *Entry) Extend(object any, io IO) Result {
	if e == nil {
		return ResultIndexNotFound
	}
	if object == nil || io == nil {
		return ResultDeviceIncompatible
	}
	x, ok := e.Object.(*Extended)
	if !ok {
		return ResultParamIncompatible
	}
	x.ext = extension{object: object, io: io}
	return ResultOK
}
