// Package scenario loads YAML descriptions of a simulated device session:
// what the sensors see, which privileges are granted, how long queries take,
// and which queries and settings changes happen at which frame.
package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/spatialbridge/internal/feature/barcode"
	"github.com/Iron-Ham/spatialbridge/internal/feature/foundobjects"
	"github.com/Iron-Ham/spatialbridge/internal/feature/imu"
	"github.com/Iron-Ham/spatialbridge/internal/native"
)

// Scenario is the YAML document.
type Scenario struct {
	Name        string             `yaml:"name"`
	Description string             `yaml:"description,omitempty"`
	Privileges  Privileges         `yaml:"privileges,omitempty"`
	Found       FoundObjectsWorld  `yaml:"found_objects,omitempty"`
	Barcode     BarcodeWorld       `yaml:"barcode,omitempty"`
	IMU         IMUWorld           `yaml:"imu,omitempty"`
	Queries     []Query            `yaml:"queries,omitempty"`
	Settings    []SettingsChange   `yaml:"settings,omitempty"`
	Failures    map[string]Failure `yaml:"failures,omitempty"`
}

// Privileges lists the OS privileges the user refused.
type Privileges struct {
	Deny []string `yaml:"deny,omitempty"`
}

// FoundObjectsWorld is what the found-objects tracker can see.
type FoundObjectsWorld struct {
	Latency int          `yaml:"latency"`
	Objects []ObjectSpec `yaml:"objects,omitempty"`
}

// ObjectSpec describes one recognised object.
type ObjectSpec struct {
	ID             string            `yaml:"id,omitempty"`
	Label          string            `yaml:"label"`
	Position       []float32         `yaml:"position,omitempty"`
	Rotation       []float32         `yaml:"rotation,omitempty"`
	Size           []float32         `yaml:"size,omitempty"`
	ReferenceFrame string            `yaml:"reference_frame,omitempty"`
	Properties     map[string]string `yaml:"properties,omitempty"`
}

// BarcodeWorld is what the barcode camera can see.
type BarcodeWorld struct {
	Latency int           `yaml:"latency"`
	InView  []BarcodeSpec `yaml:"in_view,omitempty"`
}

// BarcodeSpec describes one barcode in view.
type BarcodeSpec struct {
	Type              string    `yaml:"type"`
	Data              string    `yaml:"data"`
	Position          []float32 `yaml:"position,omitempty"`
	Rotation          []float32 `yaml:"rotation,omitempty"`
	ReprojectionError float32   `yaml:"reprojection_error,omitempty"`
}

// IMUWorld configures the synthetic inertial stream.
type IMUWorld struct {
	// SampleRateHz is how many samples the sensor produces per second.
	SampleRateHz int `yaml:"sample_rate_hz"`
}

// Query is a query issued at a frame.
type Query struct {
	AtTick  uint64 `yaml:"at_tick"`
	Feature string `yaml:"feature"`

	// found_objects filter
	ID          string    `yaml:"id,omitempty"`
	Label       string    `yaml:"label,omitempty"`
	Center      []float32 `yaml:"center,omitempty"`
	MaxDistance float32   `yaml:"max_distance,omitempty"`

	// barcode filter
	Types []string `yaml:"types,omitempty"`

	MaxResults uint32 `yaml:"max_results,omitempty"`
}

// SettingsChange applies barcode settings at a frame.
type SettingsChange struct {
	AtTick       uint64   `yaml:"at_tick"`
	Types        []string `yaml:"types"`
	FullAnalysis bool     `yaml:"full_analysis,omitempty"`
}

// Failure scripts native failures of one feature library.
type Failure struct {
	// Create is the status name returned by the create call.
	Create string `yaml:"create,omitempty"`
	// Begin is the status name returned by begin-query.
	Begin string `yaml:"begin,omitempty"`
	// Resolve is the status name every query resolves with.
	Resolve string `yaml:"resolve,omitempty"`
	// Settings is the status name returned by settings updates.
	Settings string `yaml:"settings,omitempty"`
	// Stream is the status name returned by the sample count call.
	Stream string `yaml:"stream,omitempty"`
	// MissingSymbols lists entry points absent from the library.
	MissingSymbols []string `yaml:"missing_symbols,omitempty"`
}

// Load reads and validates a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse decodes and validates a scenario document. Unknown keys are
// rejected; an empty document is an empty scenario.
func Parse(data []byte) (*Scenario, error) {
	var s Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse scenario: %w", err)
	}
	if errs := s.Validate(); len(errs) > 0 {
		return nil, errs
	}
	return &s, nil
}

// Features lists the feature names the scenario can drive.
func Features() []string {
	return []string{foundobjects.Name, barcode.Name, imu.Name}
}

func knownFeature(name string) bool {
	for _, f := range Features() {
		if f == name {
			return true
		}
	}
	return false
}

var statusNames = map[string]native.Status{
	"ok":                  native.StatusOk,
	"timeout":             native.StatusTimeout,
	"locked":              native.StatusLocked,
	"unspecified_failure": native.StatusUnspecifiedFailure,
	"invalid_param":       native.StatusInvalidParam,
	"alloc_failed":        native.StatusAllocFailed,
	"privilege_denied":    native.StatusPrivilegeDenied,
	"not_implemented":     native.StatusNotImplemented,
	"space_not_localized": foundobjects.StatusSpaceNotLocalized,
	"query_limit":         foundobjects.StatusQueryLimit,
	"camera_unavailable":  barcode.StatusCameraUnavailable,
	"unsupported_type":    barcode.StatusUnsupportedType,
	"sensor_stale":        imu.StatusSensorStale,
}

// ParseStatus maps a status name to its native value.
func ParseStatus(name string) (native.Status, bool) {
	s, ok := statusNames[strings.ToLower(name)]
	return s, ok
}

func parseID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, nil
	}
	return uuid.Parse(s)
}
