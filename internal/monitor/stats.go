// Package monitor renders live bridge activity: a counter model fed from
// the event bus and a bubbletea view over it.
package monitor

import (
	"sort"
	"time"

	"github.com/Iron-Ham/spatialbridge/internal/event"
	"github.com/Iron-Ham/spatialbridge/internal/native/wire"
	"github.com/Iron-Ham/spatialbridge/internal/result"
)

// FeatureState is what the monitor knows about one feature.
type FeatureState struct {
	Name      string
	Running   bool
	Reason    string // why it last stopped
	Submitted int
	Resolved  map[result.Code]int
	Results   int // records delivered
	Settings  map[result.Code]int
}

// IMUState summarises the inertial stream.
type IMUState struct {
	Samples     int
	SensorTime  time.Duration
	Accel, Gyro wire.Vec3
	Temperature float32
}

// Stats aggregates bus events. It is not safe for concurrent use; feed it
// from one goroutine.
type Stats struct {
	Frames   uint64
	Drained  int
	Paused   bool
	IMU      IMUState
	features map[string]*FeatureState
}

// NewStats creates empty Stats.
func NewStats() *Stats {
	return &Stats{features: make(map[string]*FeatureState)}
}

func (s *Stats) feature(name string) *FeatureState {
	f, ok := s.features[name]
	if !ok {
		f = &FeatureState{
			Name:     name,
			Resolved: make(map[result.Code]int),
			Settings: make(map[result.Code]int),
		}
		s.features[name] = f
	}
	return f
}

// Apply folds one event into the counters. Unknown events are ignored.
func (s *Stats) Apply(e event.Event) {
	switch ev := e.(type) {
	case event.HostTickEvent:
		s.Frames = ev.Frame
		s.Drained += ev.Drained
	case event.HostPausedEvent:
		s.Paused = true
	case event.HostResumedEvent:
		s.Paused = false
	case event.FeatureStartedEvent:
		f := s.feature(ev.Feature)
		f.Running = true
		f.Reason = ""
	case event.FeatureStoppedEvent:
		f := s.feature(ev.Feature)
		f.Running = false
		f.Reason = ev.Reason
	case event.QuerySubmittedEvent:
		s.feature(ev.Feature).Submitted++
	case event.QueryResolvedEvent:
		f := s.feature(ev.Feature)
		f.Resolved[ev.Code]++
		f.Results += ev.Count
	case event.SettingsAppliedEvent:
		s.feature(ev.Feature).Settings[ev.Code]++
	case event.IMUSampleEvent:
		s.IMU.Samples++
		s.IMU.SensorTime = ev.SensorTime
		s.IMU.Accel = ev.Accel
		s.IMU.Gyro = ev.Gyro
		s.IMU.Temperature = ev.Temperature
	}
}

// Features returns the known features sorted by name.
func (s *Stats) Features() []FeatureState {
	out := make([]FeatureState, 0, len(s.features))
	for _, f := range s.features {
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Feature returns the state of one feature.
func (s *Stats) Feature(name string) (FeatureState, bool) {
	f, ok := s.features[name]
	if !ok {
		return FeatureState{}, false
	}
	return *f, true
}
