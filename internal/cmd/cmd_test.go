package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/spatialbridge/internal/config"
	"github.com/Iron-Ham/spatialbridge/internal/logging"
	"github.com/Iron-Ham/spatialbridge/internal/result"
	"github.com/Iron-Ham/spatialbridge/internal/runner"
	"github.com/Iron-Ham/spatialbridge/internal/scenario"
	"github.com/Iron-Ham/spatialbridge/internal/testutil"
)

// executeCommand runs a cobra command with args and returns captured output
func executeCommand(t *testing.T, root *cobra.Command, args ...string) (string, error) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func TestRootCommand(t *testing.T) {
	if rootCmd.Use != "spatialbridge" {
		t.Errorf("rootCmd.Use = %q, want %q", rootCmd.Use, "spatialbridge")
	}

	expected := []string{"run", "monitor", "codes", "config", "logs"}
	cmdMap := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		cmdMap[c.Name()] = true
	}
	for _, name := range expected {
		if !cmdMap[name] {
			t.Errorf("missing subcommand %q", name)
		}
	}
}

func TestRunCommand(t *testing.T) {
	dir := testutil.IsolateConfig(t)
	path := testutil.WriteFile(t, "kitchen.yaml", `name: kitchen
barcode:
  latency: 1
  in_view:
    - type: ean13
      data: "4006381333931"
found_objects:
  objects:
    - label: mug
      position: [0.1, 0.9, -0.4]
queries:
  - at_tick: 1
    feature: barcode
  - at_tick: 2
    feature: found_objects
    label: mug
`)

	out, err := executeCommand(t, rootCmd, "run", path, "--lockstep", "--features", "barcode,found_*")
	if err != nil {
		t.Fatalf("run failed: %v\n%s", err, out)
	}

	for _, want := range []string{"kitchen", `ean13 "4006381333931"`, "mug at (0.10, 0.90, -0.40)", "frames"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "imu") {
		t.Errorf("imu was not enabled but shows up:\n%s", out)
	}

	logPath := filepath.Join(dir, "spatialbridge", "logs", "bridge.log")
	if _, err := os.Stat(logPath); err != nil {
		t.Errorf("run should write %s: %v", logPath, err)
	}
}

func TestRunCommand_NoScenario(t *testing.T) {
	testutil.IsolateConfig(t)
	if _, err := executeCommand(t, rootCmd, "run"); err == nil || !strings.Contains(err.Error(), "no scenario") {
		t.Errorf("run without a scenario error = %v", err)
	}
}

func TestSessionReload_ReportsOnMainContext(t *testing.T) {
	sc, err := scenario.Parse([]byte(`name: kitchen
barcode:
  latency: 1
`))
	if err != nil {
		t.Fatalf("Parse() = %v", err)
	}
	r, err := runner.New(sc, config.Default())
	if err != nil {
		t.Fatalf("runner.New() = %v", err)
	}
	t.Cleanup(func() { _ = r.Stop() })

	s := &session{cfg: config.Default(), runner: r, logger: logging.NopLogger()}
	var reports []error
	reload := s.reload(func(err error) { reports = append(reports, err) })

	done := make(chan struct{})
	go func() {
		defer close(done)
		reload(filepath.Join(t.TempDir(), "missing.yaml"))
	}()
	<-done

	if len(reports) != 0 {
		t.Fatalf("report ran on the watcher goroutine: %v", reports)
	}
	r.Dispatcher().DrainMain()
	if len(reports) != 1 {
		t.Fatalf("reports after drain = %d, want 1", len(reports))
	}
}

func TestCodesCommand_JSON(t *testing.T) {
	testutil.IsolateConfig(t)
	out, err := executeCommand(t, rootCmd, "codes", "--json")
	codesJSON = false
	if err != nil {
		t.Fatalf("codes failed: %v", err)
	}

	var infos []codeInfo
	if err := json.Unmarshal([]byte(out), &infos); err != nil {
		t.Fatalf("codes --json output is not JSON: %v\n%s", err, out)
	}
	if len(infos) != len(result.All()) {
		t.Fatalf("got %d codes, want %d", len(infos), len(result.All()))
	}
	if diff := cmp.Diff(codeInfo{Code: "Ok", Value: 0, Status: "0x0"}, infos[0]); diff != "" {
		t.Errorf("Ok entry mismatch (-want +got):\n%s", diff)
	}
}

func TestDescribeCodes_FeatureScopes(t *testing.T) {
	scopes := map[string]string{}
	for _, info := range describeCodes() {
		if info.Status == "" {
			t.Errorf("%s has no native status", info.Code)
		}
		scopes[info.Code] = info.Feature
	}
	want := map[string]string{
		"BarcodeCameraUnavailable":      "barcode",
		"FoundObjectsSpaceNotLocalized": "found_objects",
		"IMUSensorStale":                "imu",
		"Timeout":                       "",
	}
	for code, feature := range want {
		if scopes[code] != feature {
			t.Errorf("%s scope = %q, want %q", code, scopes[code], feature)
		}
	}
}

func TestFormatOutcome(t *testing.T) {
	got := formatOutcome(runner.Outcome{
		Kind:      runner.KindQuery,
		Feature:   "barcode",
		Submitted: 3,
		Resolved:  5,
		Code:      result.Ok,
		Results:   []string{`qr "a"`, `qr "b"`},
	})
	lines := strings.Split(got, "\n")
	if len(lines) != 3 {
		t.Fatalf("formatOutcome() = %q, want a head line and two results", got)
	}
	for _, want := range []string{"3", "5", "barcode", "query", "Ok"} {
		if !strings.Contains(lines[0], want) {
			t.Errorf("head line %q missing %q", lines[0], want)
		}
	}
	if lines[2] != `    qr "b"` {
		t.Errorf("result line = %q", lines[2])
	}
}

func TestParseConfigValue(t *testing.T) {
	tests := []struct {
		key, value string
		want       any
		wantErr    bool
	}{
		{"host.tick_rate", "90", 90, false},
		{"host.tick_rate", "fast", nil, true},
		{"dispatch.workers", "-1", nil, true},
		{"scenario.watch", "true", true, false},
		{"scenario.watch", "yes", nil, true},
		{"features.enabled", "barcode, imu,", []string{"barcode", "imu"}, false},
		{"logging.level", "debug", "debug", false},
		{"tui.theme", "dark", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			got, err := parseConfigValue(tt.key, tt.value)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseConfigValue() error = %v, wantErr %v", err, tt.wantErr)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("parseConfigValue() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestConfigInitAndShow(t *testing.T) {
	dir := testutil.IsolateConfig(t)

	if out, err := executeCommand(t, rootCmd, "config", "init"); err != nil {
		t.Fatalf("config init failed: %v\n%s", err, out)
	}
	if _, err := os.Stat(filepath.Join(dir, "spatialbridge", "config.yaml")); err != nil {
		t.Fatalf("config init did not create the file: %v", err)
	}
	if _, err := executeCommand(t, rootCmd, "config", "init"); err == nil {
		t.Error("second config init should refuse to overwrite")
	}

	out, err := executeCommand(t, rootCmd, "config", "show")
	if err != nil {
		t.Fatalf("config show failed: %v", err)
	}
	for _, want := range []string{"tick_rate: 60", "workers: 4", "config.yaml"} {
		if !strings.Contains(out, want) {
			t.Errorf("config show missing %q:\n%s", want, out)
		}
	}
}
