// Package result defines the closed set of result codes the bridge reports
// to callers and the translation from raw native status values into it.
package result

import "fmt"

// Code is a result reported by the bridge. The set is closed: every native
// status is translated into one of these values before it reaches a caller.
type Code int

// Generic codes shared by every feature.
const (
	Ok Code = iota
	Pending
	Timeout
	Locked
	UnspecifiedFailure
	InvalidParam
	AllocFailed
	PrivilegeDenied
	NotImplemented
)

// Feature-specific extended codes.
const (
	FoundObjectsSpaceNotLocalized Code = 100 + iota
	FoundObjectsQueryLimit
	BarcodeCameraUnavailable
	BarcodeUnsupportedType
	IMUSensorStale
)

var codeNames = map[Code]string{
	Ok:                            "Ok",
	Pending:                       "Pending",
	Timeout:                       "Timeout",
	Locked:                        "Locked",
	UnspecifiedFailure:            "UnspecifiedFailure",
	InvalidParam:                  "InvalidParam",
	AllocFailed:                   "AllocFailed",
	PrivilegeDenied:               "PrivilegeDenied",
	NotImplemented:                "NotImplemented",
	FoundObjectsSpaceNotLocalized: "FoundObjectsSpaceNotLocalized",
	FoundObjectsQueryLimit:        "FoundObjectsQueryLimit",
	BarcodeCameraUnavailable:      "BarcodeCameraUnavailable",
	BarcodeUnsupportedType:        "BarcodeUnsupportedType",
	IMUSensorStale:                "IMUSensorStale",
}

// String returns the code name.
func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Code(%d)", int(c))
}

// IsOk reports whether c is Ok.
func (c Code) IsOk() bool { return c == Ok }

// IsError reports whether c is a failure. Pending is neither success nor error.
func (c Code) IsError() bool { return c != Ok && c != Pending }

// Known reports whether c belongs to the closed enumeration.
func (c Code) Known() bool {
	_, ok := codeNames[c]
	return ok
}

// All returns every code in declaration order.
func All() []Code {
	return []Code{
		Ok, Pending, Timeout, Locked, UnspecifiedFailure, InvalidParam,
		AllocFailed, PrivilegeDenied, NotImplemented,
		FoundObjectsSpaceNotLocalized, FoundObjectsQueryLimit,
		BarcodeCameraUnavailable, BarcodeUnsupportedType, IMUSensorStale,
	}
}
