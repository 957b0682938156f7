// Package sim is an in-memory implementation of the native library
// interfaces. Tests script it directly; the CLI builds it from a scenario
// file.
package sim

import (
	"maps"
	"sync"
	"time"

	"github.com/Iron-Ham/spatialbridge/internal/native"
)

// Entry point names accepted by RemoveSymbol and Calls.
const (
	OpCheckPrivilege = "CheckPrivilege"
	OpCreate         = "Create"
	OpDestroy        = "Destroy"
	OpBeginQuery     = "BeginQuery"
	OpResultCount    = "ResultCount"
	OpResult         = "Result"
	OpPropertyCount  = "PropertyCount"
	OpProperty       = "Property"
	OpUpdateSettings = "UpdateSettings"
	OpSampleCount    = "SampleCount"
	OpSample         = "Sample"
)

// Response scripts how one query resolves.
type Response struct {
	// Latency is the number of ResultCount calls answered with
	// StatusPending before the query resolves.
	Latency int
	// Status is returned by ResultCount once resolved. Anything but
	// StatusOk errors the query.
	Status native.Status
	// Records are the result records, in index order.
	Records [][]byte
	// Properties holds the property records of each result, by index.
	Properties [][][]byte
	// Count, when non-nil, overrides the count ResultCount reports.
	Count *uint32
	// RecordStatus fails individual Result calls.
	RecordStatus map[uint32]native.Status
}

// Responder picks the response for a query from its encoded filter.
type Responder func(filter []byte) Response

type query struct {
	tracker native.Handle
	resp    Response
	polls   int
}

// Library simulates one native feature library. It satisfies
// native.QueryLibrary, native.SettingsLibrary, native.StreamLibrary and
// native.PrivilegeChecker. It is safe for concurrent use.
type Library struct {
	mu sync.Mutex

	symbolPrefix string
	nextHandle   uint64

	createStatus   native.Status
	beginStatus    native.Status
	settingsStatus native.Status
	streamStatus   native.Status
	callDelay      time.Duration

	grants    map[native.Privilege]bool
	missing   map[string]bool
	responder Responder

	trackers map[native.Handle]bool
	queries  map[native.Handle]*query
	settings [][]byte

	pending [][]byte
	reading [][]byte

	calls map[string]int
}

// New creates a Library whose missing-symbol panics name symbolPrefix+op.
// Every privilege is granted until Deny is called.
func New(symbolPrefix string) *Library {
	return &Library{
		symbolPrefix: symbolPrefix,
		nextHandle:   0x100,
		grants:       make(map[native.Privilege]bool),
		missing:      make(map[string]bool),
		trackers:     make(map[native.Handle]bool),
		queries:      make(map[native.Handle]*query),
		calls:        make(map[string]int),
	}
}

// -----------------------------------------------------------------------------
// Scripting
// -----------------------------------------------------------------------------

// SetCreateStatus makes Create fail with s. StatusOk restores success.
func (l *Library) SetCreateStatus(s native.Status) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.createStatus = s
}

// SetBeginStatus makes BeginQuery fail with s.
func (l *Library) SetBeginStatus(s native.Status) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.beginStatus = s
}

// SetSettingsStatus makes UpdateSettings return s.
func (l *Library) SetSettingsStatus(s native.Status) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.settingsStatus = s
}

// SetStreamStatus makes SampleCount fail with s. Queued samples are kept.
func (l *Library) SetStreamStatus(s native.Status) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.streamStatus = s
}

// SetCallDelay makes ResultCount, UpdateSettings and SampleCount block for d,
// standing in for a slow native call.
func (l *Library) SetCallDelay(d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.callDelay = d
}

// SetNextHandle makes the next created tracker or query token equal h.
func (l *Library) SetNextHandle(h native.Handle) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextHandle = uint64(h) - 1
}

// Grant marks p as granted.
func (l *Library) Grant(p native.Privilege) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.grants, p)
}

// Deny marks p as refused.
func (l *Library) Deny(p native.Privilege) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.grants[p] = false
}

// RemoveSymbol makes the named entry point panic with *native.SymbolError.
func (l *Library) RemoveSymbol(op string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.missing[op] = true
}

// RestoreSymbol undoes RemoveSymbol.
func (l *Library) RestoreSymbol(op string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.missing, op)
}

// Respond sets the function that scripts each new query.
func (l *Library) Respond(fn Responder) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.responder = fn
}

// RespondAlways answers every query with resp.
func (l *Library) RespondAlways(resp Response) {
	l.Respond(func([]byte) Response { return resp })
}

// PushSamples queues stream samples for the next SampleCount.
func (l *Library) PushSamples(samples ...[]byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pending = append(l.pending, samples...)
}

// -----------------------------------------------------------------------------
// Inspection
// -----------------------------------------------------------------------------

// Calls returns how many times op was invoked.
func (l *Library) Calls(op string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls[op]
}

// CallLog returns a copy of every call count.
func (l *Library) CallLog() map[string]int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return maps.Clone(l.calls)
}

// LiveTrackers returns the number of created and not yet destroyed handles.
func (l *Library) LiveTrackers() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.trackers)
}

// Settings returns every settings record UpdateSettings accepted.
func (l *Library) Settings() [][]byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([][]byte, len(l.settings))
	copy(out, l.settings)
	return out
}

// -----------------------------------------------------------------------------
// native interfaces
// -----------------------------------------------------------------------------

// enter records the call and panics if op was removed. The caller must hold
// the mutex and must not have deferred the unlock past this call.
func (l *Library) enter(op string) {
	l.calls[op]++
	if l.missing[op] {
		l.mu.Unlock()
		panic(&native.SymbolError{Symbol: l.symbolPrefix + op})
	}
}

func (l *Library) delay() {
	l.mu.Lock()
	d := l.callDelay
	l.mu.Unlock()
	if d > 0 {
		time.Sleep(d)
	}
}

// CheckPrivilege implements native.PrivilegeChecker.
func (l *Library) CheckPrivilege(p native.Privilege) native.Status {
	l.mu.Lock()
	l.enter(OpCheckPrivilege)
	defer l.mu.Unlock()

	if granted, ok := l.grants[p]; ok && !granted {
		return native.StatusPrivilegeDenied
	}
	return native.StatusOk
}

// Create implements native.Creator.
func (l *Library) Create() (native.Handle, native.Status) {
	l.mu.Lock()
	l.enter(OpCreate)
	defer l.mu.Unlock()

	if l.createStatus != native.StatusOk {
		return native.InvalidHandle, l.createStatus
	}
	h := l.newHandle()
	l.trackers[h] = true
	return h, native.StatusOk
}

// The caller must hold the mutex.
func (l *Library) newHandle() native.Handle {
	l.nextHandle++
	return native.Handle(l.nextHandle)
}

// Destroy implements native.Creator.
func (l *Library) Destroy(h native.Handle) native.Status {
	l.mu.Lock()
	l.enter(OpDestroy)
	defer l.mu.Unlock()

	if !l.trackers[h] {
		return native.StatusInvalidParam
	}
	delete(l.trackers, h)
	for token, q := range l.queries {
		if q.tracker == h {
			delete(l.queries, token)
		}
	}
	return native.StatusOk
}

// BeginQuery implements native.QueryLibrary.
func (l *Library) BeginQuery(tracker native.Handle, filter []byte) (native.Handle, native.Status) {
	l.mu.Lock()
	l.enter(OpBeginQuery)
	defer l.mu.Unlock()

	if !l.trackers[tracker] {
		return native.InvalidHandle, native.StatusInvalidParam
	}
	if l.beginStatus != native.StatusOk {
		return native.InvalidHandle, l.beginStatus
	}

	var resp Response
	if l.responder != nil {
		resp = l.responder(filter)
	}
	token := l.newHandle()
	l.queries[token] = &query{tracker: tracker, resp: resp}
	return token, native.StatusOk
}

// The caller must hold the mutex.
func (l *Library) lookup(tracker, token native.Handle) (*query, native.Status) {
	q, ok := l.queries[token]
	if !ok || q.tracker != tracker || !l.trackers[tracker] {
		return nil, native.StatusInvalidParam
	}
	return q, native.StatusOk
}

// ResultCount implements native.QueryLibrary.
func (l *Library) ResultCount(tracker, token native.Handle) (uint32, native.Status) {
	l.delay()

	l.mu.Lock()
	l.enter(OpResultCount)
	defer l.mu.Unlock()

	q, status := l.lookup(tracker, token)
	if status != native.StatusOk {
		return 0, status
	}
	if q.polls < q.resp.Latency {
		q.polls++
		return 0, native.StatusPending
	}
	if q.resp.Status != native.StatusOk {
		return 0, q.resp.Status
	}
	if q.resp.Count != nil {
		return *q.resp.Count, native.StatusOk
	}
	return uint32(len(q.resp.Records)), native.StatusOk
}

// Result implements native.QueryLibrary.
func (l *Library) Result(tracker, token native.Handle, index uint32) ([]byte, native.Status) {
	l.mu.Lock()
	l.enter(OpResult)
	defer l.mu.Unlock()

	q, status := l.lookup(tracker, token)
	if status != native.StatusOk {
		return nil, status
	}
	if s, ok := q.resp.RecordStatus[index]; ok {
		return nil, s
	}
	if int(index) >= len(q.resp.Records) {
		return nil, native.StatusInvalidParam
	}
	return cloneBytes(q.resp.Records[index]), native.StatusOk
}

// PropertyCount implements native.QueryLibrary.
func (l *Library) PropertyCount(tracker, token native.Handle, index uint32) (uint32, native.Status) {
	l.mu.Lock()
	l.enter(OpPropertyCount)
	defer l.mu.Unlock()

	q, status := l.lookup(tracker, token)
	if status != native.StatusOk {
		return 0, status
	}
	if int(index) >= len(q.resp.Properties) {
		return 0, native.StatusOk
	}
	return uint32(len(q.resp.Properties[index])), native.StatusOk
}

// Property implements native.QueryLibrary.
func (l *Library) Property(tracker, token native.Handle, index, property uint32) ([]byte, native.Status) {
	l.mu.Lock()
	l.enter(OpProperty)
	defer l.mu.Unlock()

	q, status := l.lookup(tracker, token)
	if status != native.StatusOk {
		return nil, status
	}
	if int(index) >= len(q.resp.Properties) || int(property) >= len(q.resp.Properties[index]) {
		return nil, native.StatusInvalidParam
	}
	return cloneBytes(q.resp.Properties[index][property]), native.StatusOk
}

// UpdateSettings implements native.SettingsLibrary.
func (l *Library) UpdateSettings(tracker native.Handle, settings []byte) native.Status {
	l.delay()

	l.mu.Lock()
	l.enter(OpUpdateSettings)
	defer l.mu.Unlock()

	if !l.trackers[tracker] {
		return native.StatusInvalidParam
	}
	if l.settingsStatus != native.StatusOk {
		return l.settingsStatus
	}
	l.settings = append(l.settings, cloneBytes(settings))
	return native.StatusOk
}

// SampleCount implements native.StreamLibrary. It moves every queued sample
// into the read window that Sample indexes.
func (l *Library) SampleCount(stream native.Handle) (uint32, native.Status) {
	l.delay()

	l.mu.Lock()
	l.enter(OpSampleCount)
	defer l.mu.Unlock()

	if !l.trackers[stream] {
		return 0, native.StatusInvalidParam
	}
	if l.streamStatus != native.StatusOk {
		return 0, l.streamStatus
	}
	l.reading = l.pending
	l.pending = nil
	return uint32(len(l.reading)), native.StatusOk
}

// Sample implements native.StreamLibrary.
func (l *Library) Sample(stream native.Handle, index uint32) ([]byte, native.Status) {
	l.mu.Lock()
	l.enter(OpSample)
	defer l.mu.Unlock()

	if !l.trackers[stream] {
		return nil, native.StatusInvalidParam
	}
	if int(index) >= len(l.reading) {
		return nil, native.StatusInvalidParam
	}
	return cloneBytes(l.reading[index]), native.StatusOk
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

var (
	_ native.QueryLibrary     = (*Library)(nil)
	_ native.SettingsLibrary  = (*Library)(nil)
	_ native.StreamLibrary    = (*Library)(nil)
	_ native.PrivilegeChecker = (*Library)(nil)
)
