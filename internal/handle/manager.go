// Package handle owns the single native resource of a feature: it creates
// the resource after checking privileges, destroys it, and follows host
// suspend and resume.
package handle

import (
	"fmt"
	"sync"

	"github.com/Iron-Ham/spatialbridge/internal/errors"
	"github.com/Iron-Ham/spatialbridge/internal/event"
	"github.com/Iron-Ham/spatialbridge/internal/logging"
	"github.com/Iron-Ham/spatialbridge/internal/native"
	"github.com/Iron-Ham/spatialbridge/internal/result"
)

// Option configures a Manager.
type Option func(*Manager)

// WithPrivileges makes Start check each required privilege before creating
// the resource.
func WithPrivileges(checker native.PrivilegeChecker, required ...native.Privilege) Option {
	return func(m *Manager) {
		m.privileges = checker
		m.required = required
	}
}

// WithTable sets the status table used to translate create and destroy
// failures. Defaults to result.Base().
func WithTable(t result.Table) Option {
	return func(m *Manager) { m.table = t }
}

// WithBus publishes feature.started and feature.stopped on bus.
func WithBus(bus *event.Bus) Option {
	return func(m *Manager) { m.bus = bus }
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// Manager holds at most one native handle. It is safe for concurrent use,
// though Start, Stop, Pause and Resume are normally called from the main
// context.
type Manager struct {
	feature    string
	creator    native.Creator
	privileges native.PrivilegeChecker
	required   []native.Privilege
	table      result.Table
	bus        *event.Bus
	logger     *logging.Logger

	mu            sync.Mutex
	handle        native.Handle
	resumeOnFocus bool
}

// New creates a Manager for feature. creator must not be nil.
func New(feature string, creator native.Creator, opts ...Option) *Manager {
	if creator == nil {
		panic("handle: creator must not be nil")
	}
	m := &Manager{
		feature: feature,
		creator: creator,
		table:   result.Base(),
		handle:  native.InvalidHandle,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = logging.NopLogger()
	}
	m.logger = m.logger.WithFeature(feature)
	return m
}

// Feature returns the feature name.
func (m *Manager) Feature() string { return m.feature }

// Handle returns the current handle, or native.InvalidHandle.
func (m *Manager) Handle() native.Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handle
}

// Valid reports whether a native resource exists.
func (m *Manager) Valid() bool {
	return m.Handle().Valid()
}

// Start creates the native resource. It is a no-op when a resource already
// exists. On failure the handle stays invalid and the returned error carries
// the translated code.
func (m *Manager) Start() error {
	m.mu.Lock()
	if m.handle.Valid() {
		m.mu.Unlock()
		return nil
	}
	h, err := m.create()
	if err == nil {
		m.handle = h
	}
	m.mu.Unlock()

	if err != nil {
		return err
	}
	m.logger.Info("native resource created", "handle", h.String())
	m.publish(event.NewFeatureStartedEvent(m.feature, h))
	return nil
}

// The caller must hold the mutex.
func (m *Manager) create() (native.Handle, error) {
	if m.privileges != nil {
		for _, p := range m.required {
			var status native.Status
			if err := errors.Guard("check privilege", func() {
				status = m.privileges.CheckPrivilege(p)
			}); err != nil {
				m.logger.Failure("privilege check unavailable", err)
				return native.InvalidHandle, err
			}
			if status != native.StatusOk {
				m.logger.Warn("privilege not granted", "privilege", p.String(), "status", int32(status))
				return native.InvalidHandle, errors.NewResultError("start", result.PrivilegeDenied,
					fmt.Errorf("%w: %s", errors.ErrPrivilegeDenied, p)).
					WithFeature(m.feature).WithStatus(status)
			}
		}
	}

	h := native.InvalidHandle
	var status native.Status
	if err := errors.Guard("create", func() {
		h, status = m.creator.Create()
	}); err != nil {
		m.logger.Failure("create entry point missing", err)
		return native.InvalidHandle, err
	}

	if status != native.StatusOk || !h.Valid() {
		code, known := m.table.Translate(status)
		if code == result.Ok {
			// Ok with an invalid handle is still a failure to create.
			code = result.UnspecifiedFailure
		}
		if !known {
			m.logger.Warn("unmapped native status", "op", "create", "status", int32(status))
		}
		err := errors.NewResultError("create", code, errors.ErrNativeCall).
			WithFeature(m.feature).WithStatus(status)
		m.logger.Failure("native create failed", err)
		return native.InvalidHandle, err
	}
	return h, nil
}

// Stop destroys the native resource if one exists and resets the handle.
// Calling Stop with no resource is a no-op. The handle is reset even when the
// native destroy fails; the failure is logged and returned.
func (m *Manager) Stop() error {
	m.mu.Lock()
	m.resumeOnFocus = false
	return m.stop("stopped")
}

// stop must be called with the mutex held and releases it before publishing.
func (m *Manager) stop(reason string) error {
	if !m.handle.Valid() {
		m.mu.Unlock()
		return nil
	}
	h := m.handle
	m.handle = native.InvalidHandle
	m.mu.Unlock()

	var status native.Status
	err := errors.Guard("destroy", func() {
		status = m.creator.Destroy(h)
	})
	if err == nil && status != native.StatusOk {
		err = errors.NewResultError("destroy", m.table.Code(status), errors.ErrNativeCall).
			WithFeature(m.feature).WithStatus(status)
	}
	if err != nil {
		m.logger.Failure("native destroy failed", err, "handle", h.String())
	} else {
		m.logger.Info("native resource destroyed", "handle", h.String(), "reason", reason)
	}
	m.publish(event.NewFeatureStoppedEvent(m.feature, reason))
	return err
}

// Pause releases the resource while the host is suspended and remembers
// whether it was running.
func (m *Manager) Pause() error {
	m.mu.Lock()
	m.resumeOnFocus = m.handle.Valid()
	return m.stop("paused")
}

// Resume recreates the resource only if Pause found it running.
func (m *Manager) Resume() error {
	m.mu.Lock()
	if !m.resumeOnFocus || m.handle.Valid() {
		m.mu.Unlock()
		return nil
	}
	m.resumeOnFocus = false
	h, err := m.create()
	if err == nil {
		m.handle = h
	}
	m.mu.Unlock()

	if err != nil {
		return err
	}
	m.logger.Info("native resource recreated", "handle", h.String())
	m.publish(event.NewFeatureStartedEvent(m.feature, h))
	return nil
}

func (m *Manager) publish(e event.Event) {
	if m.bus != nil {
		m.bus.Publish(e)
	}
}
