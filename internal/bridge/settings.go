package bridge

import (
	"fmt"
	"sync"

	"github.com/Iron-Ham/spatialbridge/internal/errors"
	"github.com/Iron-Ham/spatialbridge/internal/event"
	"github.com/Iron-Ham/spatialbridge/internal/logging"
	"github.com/Iron-Ham/spatialbridge/internal/native"
	"github.com/Iron-Ham/spatialbridge/internal/result"
)

// Settings applies a tracker's persistent settings through the native
// update-settings call and caches the last applied value.
//
// Updates are compared by value against the most recently submitted one
// ("future"); an equal value is a no-op. When several different values are
// submitted before the workers catch up, the latest wins: each worker
// applies whatever the future value is when it gets the apply lock, so
// intermediate values may never reach the native side.
type Settings[S comparable] struct {
	name    string
	lib     native.SettingsLibrary
	handles Handles
	codec   SettingsCodec[S]
	sched   Scheduler

	bus    *event.Bus
	logger *logging.Logger
	table  result.Table

	mu         sync.Mutex
	current    S
	hasCurrent bool
	future     S
	hasFuture  bool

	// apply serializes native update calls.
	apply sync.Mutex
	// gate is held around the native update call.
	gate Gate
}

// NewSettings creates a settings updater. lib, handles, codec and sched
// must be non-nil.
func NewSettings[S comparable](name string, lib native.SettingsLibrary, handles Handles, codec SettingsCodec[S], sched Scheduler, opts ...Option) *Settings[S] {
	if lib == nil || handles == nil || codec == nil || sched == nil {
		panic("bridge: settings dependencies must not be nil")
	}
	cfg := newConfig(opts)
	return &Settings[S]{
		name:    name,
		lib:     lib,
		handles: handles,
		codec:   codec,
		sched:   sched,
		bus:     cfg.bus,
		logger:  cfg.logger.WithFeature(name).With("component", "settings"),
		table:   cfg.table,
	}
}

// SetAsync submits v. done, if non-nil, is called once on the main context
// with the outcome. Submitting the most recently submitted value makes no
// native call and reports Ok.
//
// A missing native resource or an unencodable value is reported
// synchronously and done is not called.
func (s *Settings[S]) SetAsync(v S, done func(result.Code)) error {
	if !s.handles.Handle().Valid() {
		return errors.NewResultError("update settings", result.InvalidParam, errors.ErrNotStarted).
			WithFeature(s.name)
	}
	if _, err := s.codec.EncodeSettings(v); err != nil {
		return errors.NewResultError("update settings", result.InvalidParam,
			fmt.Errorf("%w: %w", errors.ErrInvalidSettings, err)).WithFeature(s.name)
	}

	s.mu.Lock()
	if s.hasFuture && s.future == v {
		s.mu.Unlock()
		s.logger.Debug("settings unchanged, skipping update")
		s.report(done, result.Ok)
		return nil
	}
	s.future, s.hasFuture = v, true
	s.mu.Unlock()

	if err := s.sched.ScheduleWork(func() { s.report(done, s.applyLatest()) }); err != nil {
		s.mu.Lock()
		if s.future == v {
			s.future, s.hasFuture = s.current, s.hasCurrent
		}
		s.mu.Unlock()
		return err
	}
	return nil
}

// applyLatest pushes the current future value to the native side unless it
// is already applied.
func (s *Settings[S]) applyLatest() result.Code {
	s.apply.Lock()
	defer s.apply.Unlock()

	s.mu.Lock()
	v := s.future
	if s.hasCurrent && s.current == v {
		s.mu.Unlock()
		return result.Ok
	}
	s.mu.Unlock()

	code := s.update(v)

	s.mu.Lock()
	if code == result.Ok {
		s.current, s.hasCurrent = v, true
	} else if s.future == v {
		s.future, s.hasFuture = s.current, s.hasCurrent
	}
	s.mu.Unlock()

	if s.bus != nil {
		s.bus.Publish(event.NewSettingsAppliedEvent(s.name, code))
	}
	return code
}

func (s *Settings[S]) update(v S) result.Code {
	record, err := s.codec.EncodeSettings(v)
	if err != nil {
		s.logger.Warn("settings encode failed", "error", err.Error())
		return result.InvalidParam
	}

	if !s.gate.Enter() {
		s.logger.Warn("settings dropped, feature stopped")
		return result.UnspecifiedFailure
	}
	defer s.gate.Leave()

	tracker := s.handles.Handle()
	if !tracker.Valid() {
		s.logger.Warn("settings dropped, native resource gone")
		return result.UnspecifiedFailure
	}

	var status native.Status
	if err := errors.Guard("update settings", func() {
		status = s.lib.UpdateSettings(tracker, record)
	}); err != nil {
		s.logger.Failure("update settings entry point missing", err)
		return errors.CodeOf(err)
	}

	code, known := s.table.Translate(status)
	if !known {
		s.logger.Warn("unmapped native status", "op", "update settings", "status", int32(status))
	}
	if code != result.Ok {
		s.logger.Warn("settings update failed", "code", code.String())
	} else {
		s.logger.Info("settings applied")
	}
	return code
}

func (s *Settings[S]) report(done func(result.Code), code result.Code) {
	if done == nil {
		return
	}
	if err := s.sched.ScheduleMain(func() { done(code) }); err != nil {
		s.logger.Warn("failed to schedule settings callback", "error", err.Error())
	}
}

// Current returns the last value the native side accepted.
func (s *Settings[S]) Current() (S, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, s.hasCurrent
}

// Future returns the most recently submitted value.
func (s *Settings[S]) Future() (S, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.future, s.hasFuture
}

// Disable waits for an update already calling into the native side, then
// fails every later update until Enable. Call it before destroying the
// resource.
func (s *Settings[S]) Disable() { s.gate.Close() }

// Enable lets updates reach the native side again.
func (s *Settings[S]) Enable() { s.gate.Open() }

// Reset forgets the cached values, for use after the native resource was
// recreated with default settings.
func (s *Settings[S]) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	var zero S
	s.current, s.hasCurrent = zero, false
	s.future, s.hasFuture = zero, false
}
