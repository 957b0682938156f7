package scenario

import (
	"fmt"
	"strings"

	"github.com/Iron-Ham/spatialbridge/internal/feature/barcode"
	"github.com/Iron-Ham/spatialbridge/internal/feature/foundobjects"
	"github.com/Iron-Ham/spatialbridge/internal/feature/imu"
	"github.com/Iron-Ham/spatialbridge/internal/native"
	"github.com/Iron-Ham/spatialbridge/internal/native/sim"
)

// ValidationError is one problem found in a scenario.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors collects every problem found in a scenario.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation errors:\n", len(e))
	for i, err := range e {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return sb.String()
}

// maxSampleRateHz bounds the synthetic IMU rate.
const maxSampleRateHz = 4000

var knownOps = map[string]bool{
	sim.OpCheckPrivilege: true, sim.OpCreate: true, sim.OpDestroy: true,
	sim.OpBeginQuery: true, sim.OpResultCount: true, sim.OpResult: true,
	sim.OpPropertyCount: true, sim.OpProperty: true, sim.OpUpdateSettings: true,
	sim.OpSampleCount: true, sim.OpSample: true,
}

// Validate checks the scenario and returns every problem found.
func (s *Scenario) Validate() ValidationErrors {
	var errs ValidationErrors
	add := func(field string, value any, msg string) {
		errs = append(errs, ValidationError{Field: field, Value: value, Message: msg})
	}

	for i, p := range s.Privileges.Deny {
		if _, ok := native.ParsePrivilege(p); !ok {
			add(fmt.Sprintf("privileges.deny[%d]", i), p, "unknown privilege")
		}
	}

	if s.Found.Latency < 0 {
		add("found_objects.latency", s.Found.Latency, "must be non-negative")
	}
	for i, o := range s.Found.Objects {
		field := fmt.Sprintf("found_objects.objects[%d]", i)
		if _, err := o.object(); err != nil {
			add(field, o.Label, err.Error())
		}
	}

	if s.Barcode.Latency < 0 {
		add("barcode.latency", s.Barcode.Latency, "must be non-negative")
	}
	for i, b := range s.Barcode.InView {
		field := fmt.Sprintf("barcode.in_view[%d]", i)
		if _, err := b.barcode(); err != nil {
			add(field, b.Type, err.Error())
		}
	}

	if s.IMU.SampleRateHz < 0 || s.IMU.SampleRateHz > maxSampleRateHz {
		add("imu.sample_rate_hz", s.IMU.SampleRateHz, fmt.Sprintf("must be between 0 and %d", maxSampleRateHz))
	}

	for i, q := range s.Queries {
		field := fmt.Sprintf("queries[%d]", i)
		switch q.Feature {
		case foundobjects.Name:
			if _, err := q.foundObjectsFilter(); err != nil {
				add(field, q.Feature, err.Error())
			}
		case barcode.Name:
			if _, err := q.scanFilter(); err != nil {
				add(field, q.Feature, err.Error())
			}
		case imu.Name:
			add(field+".feature", q.Feature, "the imu stream takes no queries")
		default:
			add(field+".feature", q.Feature, "unknown feature")
		}
	}

	for i, c := range s.Settings {
		if _, err := c.settings(); err != nil {
			add(fmt.Sprintf("settings[%d]", i), c.Types, err.Error())
		}
	}

	for name, f := range s.Failures {
		field := "failures." + name
		if !knownFeature(name) {
			add(field, name, "unknown feature")
			continue
		}
		for _, st := range []struct{ key, status string }{
			{"create", f.Create}, {"begin", f.Begin}, {"resolve", f.Resolve},
			{"settings", f.Settings}, {"stream", f.Stream},
		} {
			if st.status == "" {
				continue
			}
			if _, ok := ParseStatus(st.status); !ok {
				add(field+"."+st.key, st.status, "unknown status")
			}
		}
		for _, op := range f.MissingSymbols {
			if !knownOps[op] {
				add(field+".missing_symbols", op, "unknown entry point")
			}
		}
	}

	return errs
}
