package imu

import (
	"time"

	"github.com/Iron-Ham/spatialbridge/internal/errors"
	"github.com/Iron-Ham/spatialbridge/internal/native/wire"
)

// Sample record layout.
const (
	SampleVersion = 1
	SampleSize    = 40
)

// Sample is one inertial reading.
type Sample struct {
	SensorTime  time.Duration // sensor clock
	Accel       wire.Vec3     // m/s^2
	Gyro        wire.Vec3     // rad/s
	Temperature float32       // celsius
}

// DecodeSample decodes one sample record.
func DecodeSample(record []byte) (Sample, error) {
	r := wire.NewReader("imu sample", record, SampleSize, SampleVersion)
	s := Sample{
		SensorTime:  time.Duration(r.Uint64("timestamp_ns")),
		Accel:       r.Vec3("accel"),
		Gyro:        r.Vec3("gyro"),
		Temperature: r.Float32("temperature"),
	}
	if err := r.Err(); err != nil {
		return Sample{}, err
	}
	return s, nil
}

// EncodeSample builds a sample record, used by the simulator.
func EncodeSample(s Sample) ([]byte, error) {
	if s.SensorTime < 0 {
		return nil, errors.NewValidationError("sensor time must be non-negative").
			WithField("timestamp_ns").WithValue(s.SensorTime)
	}
	w := wire.NewWriter("imu sample", SampleSize, SampleVersion)
	w.Uint64("timestamp_ns", uint64(s.SensorTime))
	w.Vec3("accel", s.Accel)
	w.Vec3("gyro", s.Gyro)
	w.Float32("temperature", s.Temperature)
	return w.Finish()
}
