package event

import (
	"time"

	"github.com/Iron-Ham/spatialbridge/internal/native"
	"github.com/Iron-Ham/spatialbridge/internal/native/wire"
	"github.com/Iron-Ham/spatialbridge/internal/result"
)

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "feature.started", "query.resolved")
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Event type identifiers.
const (
	TypeFeatureStarted  = "feature.started"
	TypeFeatureStopped  = "feature.stopped"
	TypeQuerySubmitted  = "query.submitted"
	TypeQueryResolved   = "query.resolved"
	TypeSettingsApplied = "settings.applied"
	TypeIMUSample       = "imu.sample"
	TypeHostTick        = "host.tick"
	TypeHostPaused      = "host.paused"
	TypeHostResumed     = "host.resumed"
)

// baseEvent provides common fields for all events.
// Embed this in concrete event types to satisfy the Event interface.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

// newBaseEvent creates a baseEvent with the current time.
func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// -----------------------------------------------------------------------------
// Feature Lifecycle Events
// -----------------------------------------------------------------------------

// FeatureStartedEvent is emitted when a feature's native resource is created.
type FeatureStartedEvent struct {
	baseEvent
	Feature string
	Handle  native.Handle
}

// NewFeatureStartedEvent creates a FeatureStartedEvent.
func NewFeatureStartedEvent(feature string, h native.Handle) FeatureStartedEvent {
	return FeatureStartedEvent{
		baseEvent: newBaseEvent(TypeFeatureStarted),
		Feature:   feature,
		Handle:    h,
	}
}

// FeatureStoppedEvent is emitted when a feature's native resource is destroyed.
type FeatureStoppedEvent struct {
	baseEvent
	Feature string
	Reason  string // "stopped" or "paused"
}

// NewFeatureStoppedEvent creates a FeatureStoppedEvent.
func NewFeatureStoppedEvent(feature, reason string) FeatureStoppedEvent {
	return FeatureStoppedEvent{
		baseEvent: newBaseEvent(TypeFeatureStopped),
		Feature:   feature,
		Reason:    reason,
	}
}

// -----------------------------------------------------------------------------
// Query Events
// -----------------------------------------------------------------------------

// QuerySubmittedEvent is emitted when a native query token is created.
type QuerySubmittedEvent struct {
	baseEvent
	Feature string
	Token   native.Handle
}

// NewQuerySubmittedEvent creates a QuerySubmittedEvent.
func NewQuerySubmittedEvent(feature string, token native.Handle) QuerySubmittedEvent {
	return QuerySubmittedEvent{
		baseEvent: newBaseEvent(TypeQuerySubmitted),
		Feature:   feature,
		Token:     token,
	}
}

// QueryResolvedEvent is emitted on the main context right before a query
// callback runs.
type QueryResolvedEvent struct {
	baseEvent
	Feature string
	Token   native.Handle
	Code    result.Code
	Count   int
}

// NewQueryResolvedEvent creates a QueryResolvedEvent.
func NewQueryResolvedEvent(feature string, token native.Handle, code result.Code, count int) QueryResolvedEvent {
	return QueryResolvedEvent{
		baseEvent: newBaseEvent(TypeQueryResolved),
		Feature:   feature,
		Token:     token,
		Code:      code,
		Count:     count,
	}
}

// SettingsAppliedEvent is emitted when a settings update completes.
type SettingsAppliedEvent struct {
	baseEvent
	Feature string
	Code    result.Code
}

// NewSettingsAppliedEvent creates a SettingsAppliedEvent.
func NewSettingsAppliedEvent(feature string, code result.Code) SettingsAppliedEvent {
	return SettingsAppliedEvent{
		baseEvent: newBaseEvent(TypeSettingsApplied),
		Feature:   feature,
		Code:      code,
	}
}

// -----------------------------------------------------------------------------
// Stream Events
// -----------------------------------------------------------------------------

// IMUSampleEvent carries one decoded inertial sample.
type IMUSampleEvent struct {
	baseEvent
	Feature     string
	SensorTime  time.Duration
	Accel       wire.Vec3 // m/s^2
	Gyro        wire.Vec3 // rad/s
	Temperature float32   // celsius
}

// NewIMUSampleEvent creates an IMUSampleEvent.
func NewIMUSampleEvent(feature string, sensorTime time.Duration, accel, gyro wire.Vec3, temperature float32) IMUSampleEvent {
	return IMUSampleEvent{
		baseEvent:   newBaseEvent(TypeIMUSample),
		Feature:     feature,
		SensorTime:  sensorTime,
		Accel:       accel,
		Gyro:        gyro,
		Temperature: temperature,
	}
}

// -----------------------------------------------------------------------------
// Host Events
// -----------------------------------------------------------------------------

// HostTickEvent is emitted at the end of every host frame.
type HostTickEvent struct {
	baseEvent
	Frame   uint64
	Drained int // main-context closures run this frame
}

// NewHostTickEvent creates a HostTickEvent.
func NewHostTickEvent(frame uint64, drained int) HostTickEvent {
	return HostTickEvent{
		baseEvent: newBaseEvent(TypeHostTick),
		Frame:     frame,
		Drained:   drained,
	}
}

// HostPausedEvent is emitted when the host application is suspended.
type HostPausedEvent struct {
	baseEvent
	Frame uint64
}

// NewHostPausedEvent creates a HostPausedEvent.
func NewHostPausedEvent(frame uint64) HostPausedEvent {
	return HostPausedEvent{baseEvent: newBaseEvent(TypeHostPaused), Frame: frame}
}

// HostResumedEvent is emitted when the host application returns to the foreground.
type HostResumedEvent struct {
	baseEvent
	Frame uint64
}

// NewHostResumedEvent creates a HostResumedEvent.
func NewHostResumedEvent(frame uint64) HostResumedEvent {
	return HostResumedEvent{baseEvent: newBaseEvent(TypeHostResumed), Frame: frame}
}
