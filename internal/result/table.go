package result

import (
	"maps"

	"github.com/Iron-Ham/spatialbridge/internal/native"
)

// Table maps raw native status values onto Codes. Tables are immutable once
// built; Extend returns a copy.
type Table struct {
	codes map[native.Status]Code
}

var base = Table{codes: map[native.Status]Code{
	native.StatusOk:                 Ok,
	native.StatusPending:            Pending,
	native.StatusTimeout:            Timeout,
	native.StatusLocked:             Locked,
	native.StatusUnspecifiedFailure: UnspecifiedFailure,
	native.StatusInvalidParam:       InvalidParam,
	native.StatusAllocFailed:        AllocFailed,
	native.StatusPrivilegeDenied:    PrivilegeDenied,
	native.StatusNotImplemented:     NotImplemented,
}}

// Base returns the table of generic SDK status values.
func Base() Table { return base }

// Extend returns a copy of t with extra mappings. Extended entries override
// existing ones.
func (t Table) Extend(extra map[native.Status]Code) Table {
	codes := make(map[native.Status]Code, len(t.codes)+len(extra))
	maps.Copy(codes, t.codes)
	maps.Copy(codes, extra)
	return Table{codes: codes}
}

// Translate maps status to a Code. Unmapped values translate to
// UnspecifiedFailure with known set to false so the caller can log them.
func (t Table) Translate(status native.Status) (code Code, known bool) {
	if t.codes == nil {
		t = base
	}
	code, known = t.codes[status]
	if !known {
		return UnspecifiedFailure, false
	}
	return code, true
}

// Code is Translate without the known flag.
func (t Table) Code(status native.Status) Code {
	code, _ := t.Translate(status)
	return code
}

// Native returns the status value that maps to c, if any. Used by the
// simulator to produce statuses for a requested code.
func (t Table) Native(c Code) (native.Status, bool) {
	if t.codes == nil {
		t = base
	}
	for status, code := range t.codes {
		if code == c {
			return status, true
		}
	}
	return 0, false
}
