package scenario

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/Iron-Ham/spatialbridge/internal/feature/barcode"
	"github.com/Iron-Ham/spatialbridge/internal/feature/foundobjects"
	"github.com/Iron-Ham/spatialbridge/internal/feature/imu"
	"github.com/Iron-Ham/spatialbridge/internal/native"
	"github.com/Iron-Ham/spatialbridge/internal/native/sim"
	"github.com/Iron-Ham/spatialbridge/internal/native/wire"
)

// World is a scenario turned into simulated native libraries and a
// per-frame plan.
type World struct {
	Privileges   *sim.Library
	FoundObjects *sim.Library
	Barcode      *sim.Library
	IMU          *sim.Library

	Queries  []PlannedQuery
	Settings []PlannedSettings

	sampleRateHz int
	sampled      time.Duration
	produced     uint64
}

// PlannedQuery is a query ready to submit. Exactly one filter is set.
type PlannedQuery struct {
	AtTick       uint64
	Feature      string
	FoundObjects *foundobjects.Filter
	Barcode      *barcode.ScanFilter
}

// PlannedSettings is a barcode settings change ready to apply.
type PlannedSettings struct {
	AtTick   uint64
	Settings barcode.Settings
}

// Build creates the simulated libraries. The scenario must be valid.
func (s *Scenario) Build() (*World, error) {
	if errs := s.Validate(); len(errs) > 0 {
		return nil, errs
	}

	w := &World{
		Privileges:   sim.New("MLPrivileges"),
		FoundObjects: sim.New(foundobjects.SymbolPrefix),
		Barcode:      sim.New(barcode.SymbolPrefix),
		IMU:          sim.New(imu.SymbolPrefix),
		sampleRateHz: s.IMU.SampleRateHz,
	}
	for _, name := range s.Privileges.Deny {
		p, _ := native.ParsePrivilege(name)
		w.Privileges.Deny(p)
	}

	objects := make([]foundobjects.Object, 0, len(s.Found.Objects))
	for _, spec := range s.Found.Objects {
		o, err := spec.object()
		if err != nil {
			return nil, err
		}
		objects = append(objects, o)
	}
	w.FoundObjects.Respond(foundobjects.Responder(objects, s.Found.Latency))

	inView := make([]barcode.Barcode, 0, len(s.Barcode.InView))
	for _, spec := range s.Barcode.InView {
		b, err := spec.barcode()
		if err != nil {
			return nil, err
		}
		inView = append(inView, b)
	}
	w.Barcode.Respond(barcode.Responder(inView, s.Barcode.Latency))

	for _, q := range s.Queries {
		pq := PlannedQuery{AtTick: q.AtTick, Feature: q.Feature}
		switch q.Feature {
		case foundobjects.Name:
			f, err := q.foundObjectsFilter()
			if err != nil {
				return nil, err
			}
			pq.FoundObjects = &f
		case barcode.Name:
			f, err := q.scanFilter()
			if err != nil {
				return nil, err
			}
			pq.Barcode = &f
		}
		w.Queries = append(w.Queries, pq)
	}
	sort.SliceStable(w.Queries, func(i, j int) bool { return w.Queries[i].AtTick < w.Queries[j].AtTick })

	for _, c := range s.Settings {
		v, err := c.settings()
		if err != nil {
			return nil, err
		}
		w.Settings = append(w.Settings, PlannedSettings{AtTick: c.AtTick, Settings: v})
	}
	sort.SliceStable(w.Settings, func(i, j int) bool { return w.Settings[i].AtTick < w.Settings[j].AtTick })

	for name, f := range s.Failures {
		w.applyFailure(w.Library(name), f)
	}
	return w, nil
}

// Library returns the simulated library of a feature, or nil.
func (w *World) Library(feature string) *sim.Library {
	switch feature {
	case foundobjects.Name:
		return w.FoundObjects
	case barcode.Name:
		return w.Barcode
	case imu.Name:
		return w.IMU
	}
	return nil
}

func (w *World) applyFailure(lib *sim.Library, f Failure) {
	if lib == nil {
		return
	}
	if s, ok := ParseStatus(f.Create); ok {
		lib.SetCreateStatus(s)
	}
	if s, ok := ParseStatus(f.Begin); ok {
		lib.SetBeginStatus(s)
	}
	if s, ok := ParseStatus(f.Settings); ok {
		lib.SetSettingsStatus(s)
	}
	if s, ok := ParseStatus(f.Stream); ok {
		lib.SetStreamStatus(s)
	}
	if s, ok := ParseStatus(f.Resolve); ok && s != native.StatusOk {
		lib.RespondAlways(sim.Response{Status: s})
	}
	for _, op := range f.MissingSymbols {
		lib.RemoveSymbol(op)
	}
}

// QueriesAt returns the queries planned for frame.
func (w *World) QueriesAt(frame uint64) []PlannedQuery {
	var out []PlannedQuery
	for _, q := range w.Queries {
		if q.AtTick == frame {
			out = append(out, q)
		}
	}
	return out
}

// SettingsAt returns the settings changes planned for frame.
func (w *World) SettingsAt(frame uint64) []PlannedSettings {
	var out []PlannedSettings
	for _, c := range w.Settings {
		if c.AtTick == frame {
			out = append(out, c)
		}
	}
	return out
}

// LastTick returns the last frame that has planned work.
func (w *World) LastTick() uint64 {
	var last uint64
	for _, q := range w.Queries {
		last = max(last, q.AtTick)
	}
	for _, c := range w.Settings {
		last = max(last, c.AtTick)
	}
	return last
}

// Advance lets dt of sensor time pass and queues the IMU samples produced
// in it. It returns the number of samples queued.
func (w *World) Advance(dt time.Duration) int {
	if w.sampleRateHz == 0 || dt <= 0 {
		return 0
	}
	w.sampled += dt
	due := uint64(w.sampled.Seconds() * float64(w.sampleRateHz))
	n := 0
	for ; w.produced < due; w.produced++ {
		rec, err := imu.EncodeSample(syntheticSample(w.produced, w.sampleRateHz))
		if err != nil {
			continue
		}
		w.IMU.PushSamples(rec)
		n++
	}
	return n
}

// syntheticSample models a device at rest with a slow yaw oscillation.
func syntheticSample(i uint64, rateHz int) imu.Sample {
	t := time.Duration(i) * time.Second / time.Duration(rateHz)
	phase := 2 * math.Pi * t.Seconds() * 0.5
	return imu.Sample{
		SensorTime:  t,
		Accel:       wire.Vec3{X: 0.02 * float32(math.Sin(phase)), Y: 0, Z: 9.81},
		Gyro:        wire.Vec3{Z: 0.1 * float32(math.Cos(phase))},
		Temperature: 32,
	}
}

// -----------------------------------------------------------------------------
// Conversions
// -----------------------------------------------------------------------------

func vec3(field string, v []float32) (wire.Vec3, error) {
	switch len(v) {
	case 0:
		return wire.Vec3{}, nil
	case 3:
		return wire.Vec3{X: v[0], Y: v[1], Z: v[2]}, nil
	}
	return wire.Vec3{}, fmt.Errorf("%s needs 3 components, got %d", field, len(v))
}

func quat(field string, v []float32) (wire.Quat, error) {
	switch len(v) {
	case 0:
		return wire.Quat{W: 1}, nil
	case 4:
		return wire.Quat{X: v[0], Y: v[1], Z: v[2], W: v[3]}, nil
	}
	return wire.Quat{}, fmt.Errorf("%s needs 4 components, got %d", field, len(v))
}

func (o ObjectSpec) object() (foundobjects.Object, error) {
	var out foundobjects.Object
	var err error
	if out.ID, err = parseID(o.ID); err != nil {
		return out, fmt.Errorf("invalid id: %w", err)
	}
	if out.ReferenceFrame, err = parseID(o.ReferenceFrame); err != nil {
		return out, fmt.Errorf("invalid reference_frame: %w", err)
	}
	out.Label = o.Label
	if out.Position, err = vec3("position", o.Position); err != nil {
		return out, err
	}
	if out.Rotation, err = quat("rotation", o.Rotation); err != nil {
		return out, err
	}
	if out.Size, err = vec3("size", o.Size); err != nil {
		return out, err
	}

	keys := make([]string, 0, len(o.Properties))
	for k := range o.Properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out.Properties = append(out.Properties, foundobjects.Property{Key: k, Value: o.Properties[k]})
	}

	if _, err := foundobjects.EncodeObject(out); err != nil {
		return out, err
	}
	for _, p := range out.Properties {
		if _, err := foundobjects.EncodeProperty(p); err != nil {
			return out, err
		}
	}
	return out, nil
}

func (b BarcodeSpec) barcode() (barcode.Barcode, error) {
	t, ok := barcode.ParseType(b.Type)
	if !ok {
		return barcode.Barcode{}, fmt.Errorf("unknown barcode type %q", b.Type)
	}
	out := barcode.Barcode{Type: t, Data: b.Data, ReprojectionError: b.ReprojectionError}
	var err error
	if out.Position, err = vec3("position", b.Position); err != nil {
		return out, err
	}
	if out.Rotation, err = quat("rotation", b.Rotation); err != nil {
		return out, err
	}
	if _, err := barcode.EncodeBarcode(out); err != nil {
		return out, err
	}
	return out, nil
}

func (q Query) foundObjectsFilter() (foundobjects.Filter, error) {
	var f foundobjects.Filter
	var err error
	if f.ID, err = parseID(q.ID); err != nil {
		return f, fmt.Errorf("invalid id: %w", err)
	}
	if f.Center, err = vec3("center", q.Center); err != nil {
		return f, err
	}
	f.Label = q.Label
	f.MaxResults = q.MaxResults
	f.MaxDistance = q.MaxDistance
	if _, err := (foundobjects.Codec{}).EncodeFilter(f); err != nil {
		return f, err
	}
	return f, nil
}

func (q Query) scanFilter() (barcode.ScanFilter, error) {
	types, err := barcode.ParseTypes(q.Types)
	if err != nil {
		return barcode.ScanFilter{}, err
	}
	f := barcode.ScanFilter{Types: types, MaxResults: q.MaxResults}
	if _, err := (barcode.Codec{}).EncodeFilter(f); err != nil {
		return f, err
	}
	return f, nil
}

func (c SettingsChange) settings() (barcode.Settings, error) {
	types, err := barcode.ParseTypes(c.Types)
	if err != nil {
		return barcode.Settings{}, err
	}
	v := barcode.Settings{Types: types, FullAnalysis: c.FullAnalysis}
	if _, err := (barcode.Codec{}).EncodeSettings(v); err != nil {
		return v, err
	}
	return v, nil
}

// FinalSettings returns the barcode settings the plan ends on, for
// reapplying a scenario file edited while running.
func (s *Scenario) FinalSettings() (barcode.Settings, bool, error) {
	if len(s.Settings) == 0 {
		return barcode.Settings{}, false, nil
	}
	last := s.Settings[0]
	for _, c := range s.Settings[1:] {
		if c.AtTick >= last.AtTick {
			last = c
		}
	}
	v, err := last.settings()
	if err != nil {
		return barcode.Settings{}, false, err
	}
	return v, true, nil
}
