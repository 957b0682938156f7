package barcode_test

import (
	"sync"
	"testing"

	"github.com/Iron-Ham/spatialbridge/internal/dispatch"
	"github.com/Iron-Ham/spatialbridge/internal/errors"
	"github.com/Iron-Ham/spatialbridge/internal/event"
	"github.com/Iron-Ham/spatialbridge/internal/feature"
	"github.com/Iron-Ham/spatialbridge/internal/feature/barcode"
	"github.com/Iron-Ham/spatialbridge/internal/native"
	"github.com/Iron-Ham/spatialbridge/internal/native/sim"
	"github.com/Iron-Ham/spatialbridge/internal/result"
)

func newScanner(t *testing.T) (*barcode.Scanner, *sim.Library, *dispatch.Dispatcher) {
	t.Helper()
	lib := sim.New(barcode.SymbolPrefix)
	disp := dispatch.New(2, nil)
	t.Cleanup(disp.Close)
	s := barcode.New(lib, feature.Deps{Scheduler: disp, Privileges: lib, Bus: event.NewBus()})
	return s, lib, disp
}

var inView = []barcode.Barcode{
	{Type: barcode.QR, Data: "qr-one"},
	{Type: barcode.EAN13, Data: "4006381333931"},
	{Type: barcode.QR, Data: "qr-two"},
}

func TestScanner_ScanByType(t *testing.T) {
	s, lib, disp := newScanner(t)
	lib.Respond(barcode.Responder(inView, 0))
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	var got []barcode.Barcode
	var code result.Code
	if err := s.Scan(barcode.ScanFilter{Types: barcode.QR}, func(r []barcode.Barcode, c result.Code) {
		got, code = r, c
	}); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	disp.Settle()
	s.Update()
	disp.Settle()

	if code != result.Ok {
		t.Fatalf("code = %v, want Ok", code)
	}
	if len(got) != 2 || got[0].Data != "qr-one" || got[1].Data != "qr-two" {
		t.Errorf("results = %+v, want the two QR codes", got)
	}
}

func TestScanner_EmptyFilterUsesSettings(t *testing.T) {
	s, lib, disp := newScanner(t)
	lib.Respond(barcode.Responder(inView, 0))
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	if err := s.SetSettingsAsync(barcode.Settings{Types: barcode.EAN13}, nil); err != nil {
		t.Fatal(err)
	}
	disp.Settle()

	var got []barcode.Barcode
	if err := s.ScanSync(barcode.ScanFilter{}, func(r []barcode.Barcode, _ result.Code) { got = r }); err != nil {
		t.Fatal(err)
	}
	s.Update()
	disp.Settle()

	if len(got) != 1 || got[0].Type != barcode.EAN13 {
		t.Errorf("results = %+v, want only the EAN-13 code", got)
	}
}

func TestScanner_SettingsTwiceIsOneNativeCall(t *testing.T) {
	s, lib, disp := newScanner(t)
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}

	want := barcode.Settings{Types: barcode.QR, FullAnalysis: true}
	var mu sync.Mutex
	var codes []result.Code
	done := func(c result.Code) {
		mu.Lock()
		codes = append(codes, c)
		mu.Unlock()
	}
	for range 2 {
		if err := s.SetSettingsAsync(want, done); err != nil {
			t.Fatalf("SetSettingsAsync() error = %v", err)
		}
	}
	disp.Settle()

	if n := lib.Calls(sim.OpUpdateSettings); n != 1 {
		t.Errorf("native update calls = %d, want 1", n)
	}
	if len(codes) != 2 || codes[0] != result.Ok || codes[1] != result.Ok {
		t.Errorf("done codes = %v, want [Ok Ok]", codes)
	}
	applied, ok := s.AppliedSettings()
	if !ok || applied != want {
		t.Errorf("AppliedSettings() = %+v, %v; want %+v", applied, ok, want)
	}

	raw := lib.Settings()
	decoded, err := barcode.DecodeSettings(raw[len(raw)-1])
	if err != nil || decoded != want {
		t.Errorf("native saw %+v (%v), want %+v", decoded, err, want)
	}
}

func TestScanner_SettingsRejectedBeforeStart(t *testing.T) {
	s, lib, _ := newScanner(t)

	err := s.SetSettingsAsync(barcode.Settings{Types: barcode.QR}, nil)
	if !errors.Is(err, errors.ErrNotStarted) {
		t.Errorf("SetSettingsAsync() error = %v, want ErrNotStarted", err)
	}
	if lib.Calls(sim.OpUpdateSettings) != 0 {
		t.Error("no native call expected")
	}
}

func TestScanner_ResumeReappliesSettings(t *testing.T) {
	s, lib, disp := newScanner(t)
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	custom := barcode.Settings{Types: barcode.Aztec}
	if err := s.SetSettingsAsync(custom, nil); err != nil {
		t.Fatal(err)
	}
	disp.Settle()

	if err := s.Pause(); err != nil {
		t.Fatalf("Pause() error = %v", err)
	}
	if s.Running() {
		t.Fatal("scanner should be released while paused")
	}
	if err := s.Resume(); err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	disp.Settle()

	if n := lib.Calls(sim.OpUpdateSettings); n != 2 {
		t.Errorf("native update calls = %d, want 2", n)
	}
	if applied, _ := s.AppliedSettings(); applied != custom {
		t.Errorf("AppliedSettings() = %+v, want %+v", applied, custom)
	}
}

func TestScanner_CameraUnavailable(t *testing.T) {
	s, lib, _ := newScanner(t)
	lib.SetCreateStatus(barcode.StatusCameraUnavailable)

	err := s.Start()
	if errors.CodeOf(err) != result.BarcodeCameraUnavailable {
		t.Errorf("Start() code = %v, want BarcodeCameraUnavailable", errors.CodeOf(err))
	}
	if s.Running() {
		t.Error("scanner must not run")
	}
}

func TestScanner_PrivilegeDenied(t *testing.T) {
	s, lib, _ := newScanner(t)
	lib.Deny(native.PrivilegeCamera)

	if err := s.Start(); !errors.Is(err, errors.ErrPrivilegeDenied) {
		t.Errorf("Start() error = %v, want ErrPrivilegeDenied", err)
	}
}
