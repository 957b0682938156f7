package foundobjects

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/Iron-Ham/spatialbridge/internal/errors"
	"github.com/Iron-Ham/spatialbridge/internal/native/wire"
)

// Record versions and layouts.
const (
	FilterVersion   = 1
	ObjectVersion   = 1
	PropertyVersion = 1

	FilterSize   = 72
	ObjectSize   = 112
	PropertySize = 140

	LabelCapacity = 32
	KeyCapacity   = 64
	ValueCapacity = 64
)

// MaxResults is the most objects one query may return.
const MaxResults = 16

// Filter narrows a found-objects query. The zero ID matches every object;
// an empty Label matches every label; MaxResults 0 means MaxResults;
// MaxDistance 0 means unbounded.
type Filter struct {
	ID          uuid.UUID
	Label       string
	MaxResults  uint32
	Center      wire.Vec3
	MaxDistance float32
}

// Object is a persistent object the device has recognised in its space.
type Object struct {
	ID             uuid.UUID
	Label          string
	Position       wire.Vec3
	Rotation       wire.Quat
	Size           wire.Vec3
	ReferenceFrame uuid.UUID
	Properties     []Property
}

// Property is a key/value annotation of an Object.
type Property struct {
	Key        string
	Value      string
	LastUpdate time.Duration
}

// Codec converts found-objects records. It implements bridge.Codec and
// bridge.PropertyCodec.
type Codec struct{}

// EncodeFilter validates f and builds its filter record.
func (Codec) EncodeFilter(f Filter) ([]byte, error) {
	if f.MaxResults > MaxResults {
		return nil, errors.NewValidationError("max results out of range").
			WithField("max_results").WithValue(f.MaxResults)
	}
	if f.MaxDistance < 0 || math.IsNaN(float64(f.MaxDistance)) {
		return nil, errors.NewValidationError("max distance must be non-negative").
			WithField("max_distance").WithValue(f.MaxDistance)
	}
	maxResults := f.MaxResults
	if maxResults == 0 {
		maxResults = MaxResults
	}

	w := wire.NewWriter("found object filter", FilterSize, FilterVersion)
	w.UUID("id", f.ID)
	w.String("label", f.Label, LabelCapacity)
	w.Uint32("max_results", maxResults)
	w.Vec3("center", f.Center)
	w.Float32("max_distance", f.MaxDistance)
	return w.Finish()
}

// DecodeFilter is the inverse of EncodeFilter, used by the simulator.
func DecodeFilter(record []byte) (Filter, error) {
	r := wire.NewReader("found object filter", record, FilterSize, FilterVersion)
	f := Filter{
		ID:          r.UUID("id"),
		Label:       r.String("label", LabelCapacity),
		MaxResults:  r.Uint32("max_results"),
		Center:      r.Vec3("center"),
		MaxDistance: r.Float32("max_distance"),
	}
	if err := r.Err(); err != nil {
		return Filter{}, err
	}
	return f, nil
}

// DecodeResult decodes one object record. Properties are attached
// separately; the record only carries their count.
func (Codec) DecodeResult(record []byte) (Object, error) {
	r := wire.NewReader("found object", record, ObjectSize, ObjectVersion)
	o := Object{
		ID:    r.UUID("id"),
		Label: r.String("label", LabelCapacity),
	}
	r.Uint32("property_count")
	o.Position = r.Vec3("position")
	o.Rotation = r.Quat("rotation")
	o.Size = r.Vec3("size")
	o.ReferenceFrame = r.UUID("reference_frame")
	if err := r.Err(); err != nil {
		return Object{}, err
	}
	return o, nil
}

// AttachProperty decodes a property record and appends it to o.
func (Codec) AttachProperty(o *Object, record []byte) error {
	p, err := DecodeProperty(record)
	if err != nil {
		return err
	}
	o.Properties = append(o.Properties, p)
	return nil
}

// EncodeObject builds an object record, used by the simulator.
func EncodeObject(o Object) ([]byte, error) {
	w := wire.NewWriter("found object", ObjectSize, ObjectVersion)
	w.UUID("id", o.ID)
	w.String("label", o.Label, LabelCapacity)
	w.Uint32("property_count", uint32(len(o.Properties)))
	w.Vec3("position", o.Position)
	w.Quat("rotation", o.Rotation)
	w.Vec3("size", o.Size)
	w.UUID("reference_frame", o.ReferenceFrame)
	return w.Finish()
}

// EncodeProperty builds a property record.
func EncodeProperty(p Property) ([]byte, error) {
	if p.LastUpdate < 0 {
		return nil, errors.NewValidationError("last update must be non-negative").
			WithField("last_update").WithValue(p.LastUpdate)
	}
	w := wire.NewWriter("found object property", PropertySize, PropertyVersion)
	w.String("key", p.Key, KeyCapacity)
	w.String("value", p.Value, ValueCapacity)
	w.Uint64("last_update_ns", uint64(p.LastUpdate))
	return w.Finish()
}

// DecodeProperty decodes one property record.
func DecodeProperty(record []byte) (Property, error) {
	r := wire.NewReader("found object property", record, PropertySize, PropertyVersion)
	p := Property{
		Key:        r.String("key", KeyCapacity),
		Value:      r.String("value", ValueCapacity),
		LastUpdate: time.Duration(r.Uint64("last_update_ns")),
	}
	if err := r.Err(); err != nil {
		return Property{}, err
	}
	return p, nil
}

// Matches reports whether o satisfies f, ignoring MaxResults. The
// simulator uses it to answer queries.
func (f Filter) Matches(o Object) bool {
	if f.ID != uuid.Nil && f.ID != o.ID {
		return false
	}
	if f.Label != "" && f.Label != o.Label {
		return false
	}
	if f.MaxDistance > 0 {
		dx := o.Position.X - f.Center.X
		dy := o.Position.Y - f.Center.Y
		dz := o.Position.Z - f.Center.Z
		if dx*dx+dy*dy+dz*dz > f.MaxDistance*f.MaxDistance {
			return false
		}
	}
	return true
}
