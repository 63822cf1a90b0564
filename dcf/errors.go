package dcf

import (
	"fmt"
	"strings"
)

// ObjectError names the dictionary object a device description problem
// belongs to.
type ObjectError struct {
	Index uint16
	Name  string
	Msg   string
	Err   error
}

func objectErrf(index uint16, name string, err error, format string, args ...any) error {
	return &ObjectError{index, name, fmt.Sprintf(format, args...), err}
}

func (e *ObjectError) Unwrap() error {
	return e.Err
}

func (e *ObjectError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "dcf: object 0x%04X", e.Index)
	if e.Name != "" {
		fmt.Fprintf(&buf, " %q", e.Name)
	}
	if e.Msg != "" {
		buf.WriteString(": ")
		buf.WriteString(e.Msg)
		if e.Err != nil {
			buf.WriteString(": ")
			buf.WriteString(e.Err.Error())
		}
	} else if e.Err != nil {
		buf.WriteString(": ")
		buf.WriteString(e.Err.Error())
	}
	return buf.String()
}
