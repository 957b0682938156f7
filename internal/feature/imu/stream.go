// Package imu is the low-latency inertial measurement stream. Unlike the
// query features it has no tokens: every frame a worker drains the samples
// the sensor accumulated and fans them out to subscribers on the main
// context.
package imu

import (
	"sync"
	"sync/atomic"

	"github.com/Iron-Ham/spatialbridge/internal/bridge"
	"github.com/Iron-Ham/spatialbridge/internal/errors"
	"github.com/Iron-Ham/spatialbridge/internal/event"
	"github.com/Iron-Ham/spatialbridge/internal/feature"
	"github.com/Iron-Ham/spatialbridge/internal/handle"
	"github.com/Iron-Ham/spatialbridge/internal/logging"
	"github.com/Iron-Ham/spatialbridge/internal/native"
	"github.com/Iron-Ham/spatialbridge/internal/result"
)

// Name is the feature name used in logs and events.
const Name = "imu"

// SymbolPrefix prefixes the native entry point names.
const SymbolPrefix = "MLIMUStream"

// MaxSamplesPerTick caps the samples delivered per frame. When more have
// accumulated, the oldest are dropped.
const MaxSamplesPerTick = 64

// StatusSensorStale is returned while the sensor has produced no fresh data.
const StatusSensorStale = native.PrefixIMU + 1

// Table translates IMU status values.
var Table = result.Base().Extend(map[native.Status]result.Code{
	StatusSensorStale: result.IMUSensorStale,
})

// Stats counts stream activity since creation.
type Stats struct {
	Delivered      uint64 // samples handed to subscribers
	Dropped        uint64 // samples over the per-frame cap
	DecodeFailures uint64
	Failures       uint64 // frames whose sample count call failed
	SkippedTicks   uint64
	Polls          uint64
}

// Stream owns the native IMU stream.
type Stream struct {
	lib     native.StreamLibrary
	handles *handle.Manager
	sched   bridge.Scheduler
	bus     *event.Bus
	logger  *logging.Logger

	mu         sync.Mutex
	enabled    bool
	generation uint64
	lastCode   result.Code

	polling atomic.Bool
	// gate is held while a read calls into the native stream.
	gate bridge.Gate

	delivered      atomic.Uint64
	dropped        atomic.Uint64
	decodeFailures atomic.Uint64
	failures       atomic.Uint64
	skippedTicks   atomic.Uint64
	polls          atomic.Uint64
}

// New creates a stopped Stream.
func New(lib native.StreamLibrary, deps feature.Deps) *Stream {
	deps = deps.WithDefaults()
	return &Stream{
		lib: lib,
		handles: handle.New(Name, lib,
			handle.WithPrivileges(deps.Privileges, native.PrivilegeLowLatencyIMU),
			handle.WithTable(Table),
			handle.WithBus(deps.Bus),
			handle.WithLogger(deps.Logger),
		),
		sched:  deps.Scheduler,
		bus:    deps.Bus,
		logger: deps.Logger.WithFeature(Name),
	}
}

// Name implements feature.Feature.
func (s *Stream) Name() string { return Name }

// Start opens the native stream.
func (s *Stream) Start() error {
	if err := s.handles.Start(); err != nil {
		return err
	}
	s.setEnabled(true)
	return nil
}

// Stop closes the native stream. Samples already read but not yet
// delivered are dropped.
func (s *Stream) Stop() error {
	s.setEnabled(false)
	return s.handles.Stop()
}

// Pause closes the stream while the host is suspended.
func (s *Stream) Pause() error {
	s.setEnabled(false)
	return s.handles.Pause()
}

// Resume reopens the stream if it was open when paused.
func (s *Stream) Resume() error {
	if err := s.handles.Resume(); err != nil {
		return err
	}
	if s.handles.Valid() {
		s.setEnabled(true)
	}
	return nil
}

// setEnabled(false) returns once no read is using the native stream.
func (s *Stream) setEnabled(on bool) {
	if on {
		s.gate.Open()
	}
	s.mu.Lock()
	changed := s.enabled != on
	s.enabled = on
	if changed && !on {
		s.generation++
	}
	s.mu.Unlock()
	if !on {
		s.gate.Close()
	}
}

// Running reports whether the native stream is open.
func (s *Stream) Running() bool { return s.handles.Valid() }

// Subscribe registers fn for every delivered sample. fn runs on the main
// context in sensor order.
func (s *Stream) Subscribe(fn func(Sample)) string {
	return s.bus.Subscribe(event.TypeIMUSample, func(e event.Event) {
		ev, ok := e.(event.IMUSampleEvent)
		if !ok || ev.Feature != Name {
			return
		}
		fn(Sample{
			SensorTime:  ev.SensorTime,
			Accel:       ev.Accel,
			Gyro:        ev.Gyro,
			Temperature: ev.Temperature,
		})
	})
}

// Unsubscribe removes a subscription made with Subscribe.
func (s *Stream) Unsubscribe(id string) bool {
	return s.bus.Unsubscribe(id)
}

// Update schedules one read of the accumulated samples. If the previous
// read has not finished, the frame is skipped.
func (s *Stream) Update() {
	s.mu.Lock()
	enabled := s.enabled
	s.mu.Unlock()
	if !enabled {
		return
	}
	if !s.polling.CompareAndSwap(false, true) {
		s.skippedTicks.Add(1)
		return
	}
	if err := s.sched.ScheduleWork(func() {
		defer s.polling.Store(false)
		s.read()
	}); err != nil {
		s.polling.Store(false)
		s.logger.Warn("failed to schedule stream read", "error", err.Error())
	}
}

func (s *Stream) read() {
	defer s.polls.Add(1)
	if !s.gate.Enter() {
		return
	}
	defer s.gate.Leave()

	s.mu.Lock()
	gen := s.generation
	s.mu.Unlock()

	stream := s.handles.Handle()
	if !stream.Valid() {
		return
	}

	var count uint32
	var status native.Status
	if err := errors.Guard("sample count", func() {
		count, status = s.lib.SampleCount(stream)
	}); err != nil {
		s.logger.Failure("sample count entry point missing", err)
		s.fail(errors.CodeOf(err))
		return
	}
	if status != native.StatusOk {
		code, known := Table.Translate(status)
		if !known {
			s.logger.Warn("unmapped native status", "op", "sample count", "status", int32(status))
		}
		s.logger.Warn("sample count failed", "code", code.String())
		s.fail(code)
		return
	}
	s.setLastCode(result.Ok)

	first := uint32(0)
	if count > MaxSamplesPerTick {
		first = count - MaxSamplesPerTick
		s.dropped.Add(uint64(first))
		s.logger.Warn("imu samples over per-frame cap", "available", count, "dropped", first)
	}

	samples := make([]Sample, 0, count-first)
	for i := first; i < count; i++ {
		sample, err := s.sample(stream, i)
		if err != nil {
			s.decodeFailures.Add(1)
			s.logger.Warn("imu sample unreadable", "index", i, "error", err.Error())
			continue
		}
		samples = append(samples, sample)
	}
	if len(samples) == 0 {
		return
	}

	if err := s.sched.ScheduleMain(func() { s.deliver(gen, samples) }); err != nil {
		s.logger.Warn("failed to schedule sample delivery", "error", err.Error())
	}
}

func (s *Stream) sample(stream native.Handle, index uint32) (Sample, error) {
	var record []byte
	var status native.Status
	if err := errors.Guard("sample", func() {
		record, status = s.lib.Sample(stream, index)
	}); err != nil {
		return Sample{}, err
	}
	if status != native.StatusOk {
		return Sample{}, errors.NewResultError("sample", Table.Code(status), errors.ErrNativeCall).
			WithFeature(Name).WithStatus(status)
	}
	return DecodeSample(record)
}

func (s *Stream) deliver(gen uint64, samples []Sample) {
	s.mu.Lock()
	current := s.enabled && s.generation == gen
	s.mu.Unlock()
	if !current {
		s.dropped.Add(uint64(len(samples)))
		return
	}
	for _, sample := range samples {
		s.bus.Publish(event.NewIMUSampleEvent(Name, sample.SensorTime, sample.Accel, sample.Gyro, sample.Temperature))
	}
	s.delivered.Add(uint64(len(samples)))
}

func (s *Stream) fail(code result.Code) {
	s.failures.Add(1)
	s.setLastCode(code)
}

func (s *Stream) setLastCode(code result.Code) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastCode = code
}

// LastCode returns the outcome of the most recent sample count call.
func (s *Stream) LastCode() result.Code {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastCode
}

// Stats returns the stream counters.
func (s *Stream) Stats() Stats {
	return Stats{
		Delivered:      s.delivered.Load(),
		Dropped:        s.dropped.Load(),
		DecodeFailures: s.decodeFailures.Load(),
		Failures:       s.failures.Load(),
		SkippedTicks:   s.skippedTicks.Load(),
		Polls:          s.polls.Load(),
	}
}
