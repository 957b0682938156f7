// Package native describes the boundary to the vendor device SDK.
//
// The SDK is a closed C library. Everything that crosses the boundary is
// either an opaque 64-bit handle, an int32 status, or a fixed-layout record
// encoded by package wire. The interfaces in this package are what a cgo or
// purego binding implements; package sim provides an in-memory stand-in.
package native

import "fmt"

// Handle names a native resource instance or an in-flight query.
type Handle uint64

// InvalidHandle is the SDK's sentinel for "no resource".
const InvalidHandle Handle = 0xFFFFFFFFFFFFFFFF

// Valid reports whether h is not the invalid sentinel.
func (h Handle) Valid() bool { return h != InvalidHandle }

// String formats the handle in hex, or "invalid".
func (h Handle) String() string {
	if !h.Valid() {
		return "invalid"
	}
	return fmt.Sprintf("%#x", uint64(h))
}

// Status is the raw int32 result every native entry point returns.
type Status int32

// Generic SDK status values.
const (
	StatusOk                 Status = 0
	StatusPending            Status = 1
	StatusTimeout            Status = 2
	StatusLocked             Status = 3
	StatusUnspecifiedFailure Status = 4
	StatusInvalidParam       Status = 5
	StatusAllocFailed        Status = 6
	StatusPrivilegeDenied    Status = 7
	StatusNotImplemented     Status = 8
)

// API prefixes for feature-specific extended status values. A feature's
// codes are its prefix plus a small offset.
const (
	PrefixFoundObjects Status = 0x3A1B << 16
	PrefixBarcode      Status = 0x2E5C << 16
	PrefixIMU          Status = 0x1F6D << 16
)

// Privilege is an OS-level permission a feature needs before it may create
// its native resource.
type Privilege uint32

const (
	PrivilegeCamera         Privilege = 26
	PrivilegeSpatialMapping Privilege = 49
	PrivilegeLowLatencyIMU  Privilege = 59
)

var privilegeNames = map[Privilege]string{
	PrivilegeCamera:         "camera",
	PrivilegeSpatialMapping: "spatial_mapping",
	PrivilegeLowLatencyIMU:  "low_latency_imu",
}

func (p Privilege) String() string {
	if name, ok := privilegeNames[p]; ok {
		return name
	}
	return fmt.Sprintf("privilege(%d)", uint32(p))
}

// ParsePrivilege maps a privilege name back to its value.
func ParsePrivilege(name string) (Privilege, bool) {
	for p, n := range privilegeNames {
		if n == name {
			return p, true
		}
	}
	return 0, false
}

// PrivilegeChecker asks the OS whether a privilege has been granted.
type PrivilegeChecker interface {
	// CheckPrivilege returns StatusOk when granted and
	// StatusPrivilegeDenied when not.
	CheckPrivilege(p Privilege) Status
}

// Creator creates and destroys the single native resource of a feature.
type Creator interface {
	Create() (Handle, Status)
	Destroy(h Handle) Status
}

// QueryLibrary is the entry-point table of a query-shaped tracker
// (found objects, barcode scanner). Filters, results and properties travel
// as fixed-layout records.
type QueryLibrary interface {
	Creator

	// BeginQuery starts an asynchronous query and returns its token.
	BeginQuery(tracker Handle, filter []byte) (Handle, Status)
	// ResultCount returns StatusPending until the query has resolved.
	ResultCount(tracker, query Handle) (uint32, Status)
	// Result copies out the record at index.
	Result(tracker, query Handle, index uint32) ([]byte, Status)
	// PropertyCount returns the number of key/value properties of a result.
	PropertyCount(tracker, query Handle, index uint32) (uint32, Status)
	// Property copies out one property record of a result.
	Property(tracker, query Handle, index, property uint32) ([]byte, Status)
}

// SettingsLibrary updates a tracker's persistent settings.
type SettingsLibrary interface {
	UpdateSettings(tracker Handle, settings []byte) Status
}

// StreamLibrary is the entry-point table of a sample stream (IMU). Samples
// accumulated since the previous read are returned and consumed.
type StreamLibrary interface {
	Creator

	SampleCount(stream Handle) (uint32, Status)
	Sample(stream Handle, index uint32) ([]byte, Status)
}

// SymbolError is the panic value raised when an entry point is missing from
// the loaded library, typically because the device runs an older SDK.
type SymbolError struct {
	Symbol string
}

func (e *SymbolError) Error() string {
	return fmt.Sprintf("native symbol not found: %s", e.Symbol)
}
