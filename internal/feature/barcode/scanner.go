// Package barcode is the barcode scanner feature: camera-based scans for
// QR, EAN-13 and other symbologies, plus the scanner's persistent
// settings.
package barcode

import (
	"github.com/Iron-Ham/spatialbridge/internal/bridge"
	"github.com/Iron-Ham/spatialbridge/internal/feature"
	"github.com/Iron-Ham/spatialbridge/internal/handle"
	"github.com/Iron-Ham/spatialbridge/internal/native"
	"github.com/Iron-Ham/spatialbridge/internal/result"
)

// Name is the feature name used in logs and events.
const Name = "barcode"

// SymbolPrefix prefixes the native entry point names.
const SymbolPrefix = "MLBarcodeScanner"

// Extended native status values.
const (
	StatusCameraUnavailable = native.PrefixBarcode + 1
	StatusUnsupportedType   = native.PrefixBarcode + 2
)

// Table translates barcode status values.
var Table = result.Base().Extend(map[native.Status]result.Code{
	StatusCameraUnavailable: result.BarcodeCameraUnavailable,
	StatusUnsupportedType:   result.BarcodeUnsupportedType,
})

// Library is the native surface the scanner needs.
type Library interface {
	native.QueryLibrary
	native.SettingsLibrary
}

// Scanner owns the native barcode scanner.
type Scanner struct {
	handles  *handle.Manager
	bridge   *bridge.Bridge[ScanFilter, Barcode]
	settings *bridge.Settings[Settings]
}

// New creates a stopped Scanner.
func New(lib Library, deps feature.Deps) *Scanner {
	deps = deps.WithDefaults()
	handles := handle.New(Name, lib,
		handle.WithPrivileges(deps.Privileges, native.PrivilegeCamera),
		handle.WithTable(Table),
		handle.WithBus(deps.Bus),
		handle.WithLogger(deps.Logger),
	)
	opts := []bridge.Option{
		bridge.WithTable(Table),
		bridge.WithBus(deps.Bus),
		bridge.WithLogger(deps.Logger),
		bridge.WithMaxResults(MaxResults),
	}
	b := bridge.New[ScanFilter, Barcode](Name, lib, handles, Codec{}, deps.Scheduler, opts...)
	b.Disable()
	return &Scanner{
		handles:  handles,
		bridge:   b,
		settings: bridge.NewSettings[Settings](Name, lib, handles, Codec{}, deps.Scheduler, opts...),
	}
}

// Name implements feature.Feature.
func (s *Scanner) Name() string { return Name }

// Start creates the native scanner. A new scanner runs with
// DefaultSettings, so any cached settings are forgotten.
func (s *Scanner) Start() error {
	wasRunning := s.handles.Valid()
	if err := s.handles.Start(); err != nil {
		return err
	}
	if !wasRunning {
		s.settings.Reset()
	}
	s.settings.Enable()
	s.bridge.Enable()
	return nil
}

// Stop discards outstanding scans and destroys the native scanner once no
// worker is still using it.
func (s *Scanner) Stop() error {
	s.quiesce()
	return s.handles.Stop()
}

// Pause releases the scanner while the host is suspended.
func (s *Scanner) Pause() error {
	s.quiesce()
	return s.handles.Pause()
}

func (s *Scanner) quiesce() {
	s.bridge.Disable()
	s.settings.Disable()
}

// Resume recreates the scanner if it was running when paused and
// reapplies the last accepted settings.
func (s *Scanner) Resume() error {
	applied, hasApplied := s.settings.Current()
	if err := s.handles.Resume(); err != nil {
		return err
	}
	if !s.handles.Valid() {
		return nil
	}
	s.settings.Reset()
	s.settings.Enable()
	s.bridge.Enable()
	if hasApplied && applied != DefaultSettings() {
		return s.settings.SetAsync(applied, nil)
	}
	return nil
}

// Update polls outstanding scans; call once per frame.
func (s *Scanner) Update() { s.bridge.Update() }

// Scan submits a scan from the main context. A filter with no types scans
// for every symbology the settings enable.
func (s *Scanner) Scan(f ScanFilter, cb bridge.Callback[Barcode]) error {
	return s.bridge.SubmitAsync(s.resolve(f), cb)
}

// ScanSync submits a scan on the calling goroutine.
func (s *Scanner) ScanSync(f ScanFilter, cb bridge.Callback[Barcode]) error {
	return s.bridge.Submit(s.resolve(f), cb)
}

func (s *Scanner) resolve(f ScanFilter) ScanFilter {
	if f.Types == 0 {
		f.Types = s.Settings().Types
	}
	return f
}

// SetSettingsAsync applies new scanner settings. done runs once on the
// main context with the outcome. Applying the most recently requested
// settings again is a no-op reported as Ok.
func (s *Scanner) SetSettingsAsync(v Settings, done func(result.Code)) error {
	return s.settings.SetAsync(v, done)
}

// Settings returns the most recently requested settings, or the defaults.
func (s *Scanner) Settings() Settings {
	if v, ok := s.settings.Future(); ok {
		return v
	}
	return DefaultSettings()
}

// AppliedSettings returns the settings the native scanner accepted.
func (s *Scanner) AppliedSettings() (Settings, bool) { return s.settings.Current() }

// Running reports whether the native scanner exists.
func (s *Scanner) Running() bool { return s.handles.Valid() }

// Stats returns the scan counters.
func (s *Scanner) Stats() bridge.Stats { return s.bridge.Stats() }

// Pending returns the outstanding scan tokens.
func (s *Scanner) Pending() []native.Handle { return s.bridge.Pending() }
