// Package feature holds what the concrete device features share: the
// dependencies they are built from and the lifecycle they expose to the
// host.
package feature

import (
	"github.com/Iron-Ham/spatialbridge/internal/bridge"
	"github.com/Iron-Ham/spatialbridge/internal/event"
	"github.com/Iron-Ham/spatialbridge/internal/logging"
	"github.com/Iron-Ham/spatialbridge/internal/native"
)

// Feature is the lifecycle every device feature exposes to the host.
type Feature interface {
	Name() string
	Start() error
	Stop() error
	// Update is called once per host frame on the main context.
	Update()
}

// Suspender is implemented by features that follow host application
// suspend and resume.
type Suspender interface {
	Pause() error
	Resume() error
}

// Deps are the collaborators a feature is constructed with.
type Deps struct {
	// Scheduler moves work between the main context and workers. Required.
	Scheduler bridge.Scheduler
	// Privileges answers OS permission checks. Nil skips the checks.
	Privileges native.PrivilegeChecker
	Bus        *event.Bus
	Logger     *logging.Logger
}

// WithDefaults fills in a no-op logger and a private bus.
func (d Deps) WithDefaults() Deps {
	if d.Scheduler == nil {
		panic("feature: Scheduler must not be nil")
	}
	if d.Logger == nil {
		d.Logger = logging.NopLogger()
	}
	if d.Bus == nil {
		d.Bus = event.NewBus()
	}
	return d
}
