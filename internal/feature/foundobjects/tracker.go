// Package foundobjects is the found-objects feature: queries for the
// persistent objects the device has recognised in the user's space.
package foundobjects

import (
	"github.com/Iron-Ham/spatialbridge/internal/bridge"
	"github.com/Iron-Ham/spatialbridge/internal/feature"
	"github.com/Iron-Ham/spatialbridge/internal/handle"
	"github.com/Iron-Ham/spatialbridge/internal/native"
	"github.com/Iron-Ham/spatialbridge/internal/result"
)

// Name is the feature name used in logs and events.
const Name = "found_objects"

// SymbolPrefix prefixes the native entry point names.
const SymbolPrefix = "MLFoundObjectTracker"

// Extended native status values.
const (
	StatusSpaceNotLocalized = native.PrefixFoundObjects + 1
	StatusQueryLimit        = native.PrefixFoundObjects + 2
)

// Table translates found-objects status values.
var Table = result.Base().Extend(map[native.Status]result.Code{
	StatusSpaceNotLocalized: result.FoundObjectsSpaceNotLocalized,
	StatusQueryLimit:        result.FoundObjectsQueryLimit,
})

// Tracker owns the found-objects native tracker and its queries.
type Tracker struct {
	handles *handle.Manager
	bridge  *bridge.Bridge[Filter, Object]
}

// New creates a stopped Tracker.
func New(lib native.QueryLibrary, deps feature.Deps) *Tracker {
	deps = deps.WithDefaults()
	handles := handle.New(Name, lib,
		handle.WithPrivileges(deps.Privileges, native.PrivilegeSpatialMapping),
		handle.WithTable(Table),
		handle.WithBus(deps.Bus),
		handle.WithLogger(deps.Logger),
	)
	b := bridge.New[Filter, Object](Name, lib, handles, Codec{}, deps.Scheduler,
		bridge.WithTable(Table),
		bridge.WithBus(deps.Bus),
		bridge.WithLogger(deps.Logger),
		bridge.WithMaxResults(MaxResults),
	)
	b.Disable()
	return &Tracker{handles: handles, bridge: b}
}

// Name implements feature.Feature.
func (t *Tracker) Name() string { return Name }

// Start creates the native tracker and enables queries.
func (t *Tracker) Start() error {
	if err := t.handles.Start(); err != nil {
		return err
	}
	t.bridge.Enable()
	return nil
}

// Stop discards outstanding queries and destroys the native tracker.
func (t *Tracker) Stop() error {
	t.bridge.Disable()
	return t.handles.Stop()
}

// Pause releases the tracker while the host is suspended. Outstanding
// queries die with it and their callbacks never run.
func (t *Tracker) Pause() error {
	t.bridge.Disable()
	return t.handles.Pause()
}

// Resume recreates the tracker if it was running when paused.
func (t *Tracker) Resume() error {
	if err := t.handles.Resume(); err != nil {
		return err
	}
	if t.handles.Valid() {
		t.bridge.Enable()
	}
	return nil
}

// Update polls outstanding queries; call once per frame.
func (t *Tracker) Update() { t.bridge.Update() }

// Query submits f from the main context. cb runs on the main context once,
// with the matching objects or the failure code.
func (t *Tracker) Query(f Filter, cb bridge.Callback[Object]) error {
	return t.bridge.SubmitAsync(f, cb)
}

// QuerySync submits f on the calling goroutine and reports submission
// failures directly.
func (t *Tracker) QuerySync(f Filter, cb bridge.Callback[Object]) error {
	return t.bridge.Submit(f, cb)
}

// Running reports whether the native tracker exists.
func (t *Tracker) Running() bool { return t.handles.Valid() }

// Stats returns the query counters.
func (t *Tracker) Stats() bridge.Stats { return t.bridge.Stats() }

// Pending returns the outstanding query tokens.
func (t *Tracker) Pending() []native.Handle { return t.bridge.Pending() }
