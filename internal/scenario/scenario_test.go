package scenario

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Iron-Ham/spatialbridge/internal/feature/barcode"
	"github.com/Iron-Ham/spatialbridge/internal/feature/foundobjects"
	"github.com/Iron-Ham/spatialbridge/internal/native"
	"github.com/Iron-Ham/spatialbridge/internal/native/sim"
)

func TestLoad(t *testing.T) {
	s, err := Load("testdata/living_room.yaml")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if s.Name != "living room" {
		t.Errorf("Name = %q", s.Name)
	}
	if len(s.Found.Objects) != 3 || len(s.Barcode.InView) != 2 {
		t.Errorf("objects = %d, barcodes = %d; want 3, 2", len(s.Found.Objects), len(s.Barcode.InView))
	}
	if s.IMU.SampleRateHz != 500 {
		t.Errorf("SampleRateHz = %d, want 500", s.IMU.SampleRateHz)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("testdata/does-not-exist.yaml"); err == nil {
		t.Error("Load() of a missing file should fail")
	}
}

func TestParse_UnknownField(t *testing.T) {
	_, err := Parse([]byte("name: x\nfound_objekts: {}\n"))
	if err == nil {
		t.Fatal("Parse() should reject unknown keys")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		doc   string
		field string
	}{
		{"unknown privilege", "privileges: {deny: [microphone]}", "privileges.deny[0]"},
		{"negative latency", "found_objects: {latency: -1}", "found_objects.latency"},
		{"bad vector", "found_objects: {objects: [{label: a, position: [1, 2]}]}", "found_objects.objects[0]"},
		{"bad barcode type", "barcode: {in_view: [{type: pdf417, data: x}]}", "barcode.in_view[0]"},
		{"imu rate", "imu: {sample_rate_hz: 100000}", "imu.sample_rate_hz"},
		{"unknown feature", "queries: [{at_tick: 1, feature: eye_tracking}]", "queries[0].feature"},
		{"imu query", "queries: [{at_tick: 1, feature: imu}]", "queries[0].feature"},
		{"too many results", "queries: [{at_tick: 1, feature: found_objects, max_results: 99}]", "queries[0]"},
		{"empty settings", "settings: [{at_tick: 1, types: []}]", "settings[0]"},
		{"unknown status", "failures: {barcode: {create: exploded}}", "failures.barcode.create"},
		{"unknown op", "failures: {imu: {missing_symbols: [Teleport]}}", "failures.imu.missing_symbols"},
		{"unknown failure feature", "failures: {eye_tracking: {create: timeout}}", "failures.eye_tracking"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			var verrs ValidationErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("Parse() error = %v, want ValidationErrors", err)
			}
			for _, v := range verrs {
				if v.Field == tt.field {
					return
				}
			}
			t.Errorf("no error for field %q in %v", tt.field, verrs)
		})
	}
}

func TestValidationErrors_Error(t *testing.T) {
	errs := ValidationErrors{
		{Field: "a", Value: 1, Message: "bad"},
		{Field: "b", Value: 2, Message: "worse"},
	}
	msg := errs.Error()
	if !strings.Contains(msg, "2 validation errors") || !strings.Contains(msg, "b: worse") {
		t.Errorf("Error() = %q", msg)
	}
}

func TestBuild(t *testing.T) {
	s, err := Load("testdata/living_room.yaml")
	if err != nil {
		t.Fatal(err)
	}
	w, err := s.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if len(w.Queries) != 2 || w.Queries[0].Feature != barcode.Name {
		t.Fatalf("queries not sorted by tick: %+v", w.Queries)
	}
	if q := w.QueriesAt(2); len(q) != 1 || q[0].FoundObjects == nil || q[0].FoundObjects.Label != "chair" {
		t.Errorf("QueriesAt(2) = %+v", q)
	}
	if q := w.QueriesAt(1); len(q) != 1 || q[0].Barcode == nil || q[0].Barcode.Types != barcode.QR {
		t.Errorf("QueriesAt(1) = %+v", q)
	}
	if c := w.SettingsAt(3); len(c) != 1 || c[0].Settings != (barcode.Settings{Types: barcode.QR | barcode.EAN13, FullAnalysis: true}) {
		t.Errorf("SettingsAt(3) = %+v", c)
	}
	if w.LastTick() != 3 {
		t.Errorf("LastTick() = %d, want 3", w.LastTick())
	}
	if w.Library(foundobjects.Name) != w.FoundObjects || w.Library("nope") != nil {
		t.Error("Library() returned the wrong simulator")
	}

	// The found-objects simulator answers from the scenario's objects.
	h, _ := w.FoundObjects.Create()
	filter, err := foundobjects.Codec{}.EncodeFilter(foundobjects.Filter{Label: "chair"})
	if err != nil {
		t.Fatal(err)
	}
	token, status := w.FoundObjects.BeginQuery(h, filter)
	if status != native.StatusOk {
		t.Fatalf("BeginQuery() status = %d", status)
	}
	var count uint32
	for range 3 {
		count, status = w.FoundObjects.ResultCount(h, token)
	}
	if status != native.StatusOk || count != 2 {
		t.Errorf("ResultCount() = %d, %d; want 2 chairs", count, status)
	}
}

func TestBuild_Privileges(t *testing.T) {
	s, err := Parse([]byte("privileges: {deny: [camera]}"))
	if err != nil {
		t.Fatal(err)
	}
	w, err := s.Build()
	if err != nil {
		t.Fatal(err)
	}
	if w.Privileges.CheckPrivilege(native.PrivilegeCamera) != native.StatusPrivilegeDenied {
		t.Error("camera should be denied")
	}
	if w.Privileges.CheckPrivilege(native.PrivilegeSpatialMapping) != native.StatusOk {
		t.Error("spatial mapping should be granted")
	}
}

func TestBuild_Failures(t *testing.T) {
	s, err := Parse([]byte(`
failures:
  found_objects:
    create: alloc_failed
  barcode:
    missing_symbols: [UpdateSettings]
`))
	if err != nil {
		t.Fatal(err)
	}
	w, err := s.Build()
	if err != nil {
		t.Fatal(err)
	}
	if _, status := w.FoundObjects.Create(); status != native.StatusAllocFailed {
		t.Errorf("Create() status = %d, want AllocFailed", status)
	}

	h, _ := w.Barcode.Create()
	defer func() {
		r := recover()
		var symErr *native.SymbolError
		if e, ok := r.(error); !ok || !errors.As(e, &symErr) {
			t.Errorf("recover() = %v, want *native.SymbolError", r)
		}
	}()
	w.Barcode.UpdateSettings(h, nil)
}

func TestWorld_Advance(t *testing.T) {
	s, err := Parse([]byte("imu: {sample_rate_hz: 600}"))
	if err != nil {
		t.Fatal(err)
	}
	w, err := s.Build()
	if err != nil {
		t.Fatal(err)
	}

	total := 0
	for range 60 {
		total += w.Advance(time.Second / 60)
	}
	if total < 599 || total > 600 {
		t.Errorf("samples after one second = %d, want ~600", total)
	}

	h, _ := w.IMU.Create()
	n, status := w.IMU.SampleCount(h)
	if status != native.StatusOk || int(n) != total {
		t.Errorf("SampleCount() = %d, %d; want %d", n, status, total)
	}
	if w.IMU.Calls(sim.OpSampleCount) != 1 {
		t.Error("expected one sample count call")
	}
}

func TestParse_Empty(t *testing.T) {
	s, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse(nil) error = %v", err)
	}
	w, err := s.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(w.Queries) != 0 || w.LastTick() != 0 {
		t.Errorf("empty scenario planned work: %+v", w.Queries)
	}
}

func TestScenario_FinalSettings(t *testing.T) {
	s, err := Parse([]byte(`
settings:
  - at_tick: 9
    types: [aztec]
  - at_tick: 4
    types: [qr]
    full_analysis: true
`))
	if err != nil {
		t.Fatal(err)
	}
	got, ok, err := s.FinalSettings()
	if err != nil || !ok {
		t.Fatalf("FinalSettings() = %v, %v, %v", got, ok, err)
	}
	if got != (barcode.Settings{Types: barcode.Aztec}) {
		t.Errorf("FinalSettings() = %+v, want the tick 9 change", got)
	}

	empty := &Scenario{}
	if _, ok, err := empty.FinalSettings(); ok || err != nil {
		t.Errorf("FinalSettings() on empty plan = %v, %v", ok, err)
	}
}
