package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/Iron-Ham/spatialbridge/internal/config"
	"github.com/Iron-Ham/spatialbridge/internal/host"
	"github.com/Iron-Ham/spatialbridge/internal/logging"
	"github.com/Iron-Ham/spatialbridge/internal/monitor"
	"github.com/Iron-Ham/spatialbridge/internal/result"
	"github.com/Iron-Ham/spatialbridge/internal/runner"
	"github.com/Iron-Ham/spatialbridge/internal/scenario"
)

var runCmd = &cobra.Command{
	Use:   "run [scenario.yaml]",
	Short: "Play a scenario and print every completion",
	Long: `Play a scenario against the simulated device libraries.

The scenario's planned queries and settings changes are submitted on their
frames; every completion is printed as it is delivered on the main context.
Without --frames the run stops once the plan has played out, or runs until
interrupted when --watch is set.

Examples:
  # Play the scenario named in the config file
  spatialbridge run

  # Only the barcode and found-object features, 120 frames
  spatialbridge run scenarios/living_room.yaml --features 'barcode,found_*' --frames 120

  # Keep running and push barcode settings whenever the file is saved
  spatialbridge run scenarios/living_room.yaml --watch`,
	Args:    cobra.MaximumNArgs(1),
	PreRunE: bindRunFlags,
	RunE:    runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
	addRunFlags(runCmd.Flags())
	runCmd.Flags().Bool("watch", false, "watch the scenario file and push edited barcode settings")
}

// addRunFlags adds the flags run and monitor share.
func addRunFlags(flags *pflag.FlagSet) {
	flags.Uint64("frames", 0, "number of frames to run (0 = play the plan out)")
	flags.StringSlice("features", nil, "glob patterns of features to enable (default: all)")
	flags.Int("tick-rate", 0, "frames per second")
	flags.Bool("lockstep", false, "wait for each frame's background work before the next frame")
}

// bindRunFlags binds the invoked command's flags, so run and monitor do not
// overwrite each other's bindings.
func bindRunFlags(cmd *cobra.Command, args []string) error {
	bindings := map[string]string{
		"frames":    "host.frames",
		"features":  "features.enabled",
		"tick-rate": "host.tick_rate",
		"watch":     "scenario.watch",
	}
	for flag, key := range bindings {
		if f := cmd.Flags().Lookup(flag); f != nil {
			if err := viper.BindPFlag(key, f); err != nil {
				return err
			}
		}
	}
	return nil
}

// session is everything a run or monitor command needs.
type session struct {
	cfg      *config.Config
	path     string
	scenario *scenario.Scenario
	logger   *logging.Logger
	runner   *runner.Runner
}

func openSession(cmd *cobra.Command, args []string) (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	path := cfg.Scenario.Path
	if len(args) > 0 {
		path = args[0]
	}
	if path == "" {
		return nil, fmt.Errorf("no scenario given\nPass a scenario file or set scenario.path in %s", config.ConfigFile())
	}
	sc, err := scenario.Load(path)
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open log: %w", err)
	}
	logger = logger.WithSession(uuid.NewString())

	opts := []runner.Option{runner.WithLogger(logger)}
	if lockstep, _ := cmd.Flags().GetBool("lockstep"); lockstep {
		opts = append(opts, runner.WithLockstep())
	}
	r, err := runner.New(sc, cfg, opts...)
	if err != nil {
		_ = logger.Close()
		return nil, err
	}
	return &session{cfg: cfg, path: path, scenario: sc, logger: logger, runner: r}, nil
}

// frames resolves how long the session runs.
func (s *session) frames() uint64 {
	if s.cfg.Host.Frames > 0 || s.cfg.Scenario.Watch {
		return s.cfg.Host.Frames
	}
	return s.runner.PlannedFrames()
}

// watch starts pushing settings from the scenario file when enabled. report
// is called on the main context. The returned stop function is never nil.
func (s *session) watch(report func(error)) (func(), error) {
	if !s.cfg.Scenario.Watch {
		return func() {}, nil
	}
	w, err := host.NewSettingsWatcher(s.path, host.DefaultDebounce, s.logger, s.reload(report))
	if err != nil {
		return nil, err
	}
	w.Start()
	return w.Stop, nil
}

// reload returns the watcher callback. It runs on the watcher's goroutine,
// so failures reach report through the main queue.
func (s *session) reload(report func(error)) func(path string) {
	return func(path string) {
		err := s.runner.ReloadSettings(path)
		if err == nil {
			return
		}
		s.logger.Warn("failed to reload scenario settings", "path", path, "error", err.Error())
		if err := s.runner.Dispatcher().ScheduleMain(func() { report(err) }); err != nil {
			s.logger.Debug("settings reload report dropped", "error", err.Error())
		}
	}
}

func (s *session) close() {
	_ = s.logger.Close()
}

func runRun(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd, args)
	if err != nil {
		return err
	}
	defer s.close()

	out := cmd.OutOrStdout()
	printHeader(out, s)

	width := terminalWidth(out)
	s.runner.OnOutcome(func(o runner.Outcome) {
		_, _ = fmt.Fprintln(out, monitor.FitLines(formatOutcome(o), width))
	})

	if err := s.runner.Start(); err != nil {
		_, _ = fmt.Fprintln(out, monitor.Warning.Render("some features did not start: "+err.Error()))
	}

	stopWatch, err := s.watch(func(err error) {
		_, _ = fmt.Fprintln(out, monitor.Warning.Render("settings reload failed: "+err.Error()))
	})
	if err != nil {
		_ = s.runner.Stop()
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	runErr := s.runner.Run(ctx, s.frames())
	stopWatch()
	stopErr := s.runner.Stop()

	printSummary(out, s.runner.Summary())

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return stopErr
}

// terminalWidth returns the width of w when it is a terminal, or zero.
func terminalWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return 0
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0
	}
	return width
}

func printHeader(w io.Writer, s *session) {
	title := s.scenario.Name
	if title == "" {
		title = s.path
	}
	_, _ = fmt.Fprintln(w, monitor.Title.Render("spatialbridge: "+title))
	if s.scenario.Description != "" {
		_, _ = fmt.Fprintln(w, monitor.Muted.Render(s.scenario.Description))
	}
}

func formatOutcome(o runner.Outcome) string {
	style := monitor.CodeStyle(o.Code == result.Ok, o.Code == result.Pending)
	frames := monitor.Muted.Render(fmt.Sprintf("[%4d → %4d]", o.Submitted, o.Resolved))
	head := fmt.Sprintf("%s %s %s %s",
		frames,
		monitor.Value.Render(o.Feature),
		string(o.Kind),
		style.Render(o.Code.String()))

	if len(o.Results) == 0 {
		return head
	}
	lines := make([]string, 0, len(o.Results)+1)
	lines = append(lines, head)
	for _, r := range o.Results {
		lines = append(lines, "    "+r)
	}
	return strings.Join(lines, "\n")
}

func printSummary(w io.Writer, s runner.Summary) {
	var rows []string
	rows = append(rows, summaryRow("frames", fmt.Sprint(s.Frames)))
	rows = append(rows, summaryRow("features", strings.Join(s.Started, ", ")))

	names := make([]string, 0, len(s.Bridges))
	for name := range s.Bridges {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		st := s.Bridges[name]
		rows = append(rows, summaryRow(name,
			fmt.Sprintf("%d submitted, %d completed, %d errored, %d discarded",
				st.Submitted, st.Completed, st.Errored, st.Discarded)))
	}
	if s.IMU.Delivered > 0 || s.IMU.Dropped > 0 {
		rows = append(rows, summaryRow("imu", fmt.Sprintf("%d delivered, %d dropped", s.IMU.Delivered, s.IMU.Dropped)))
	}

	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, monitor.Panel.Render(lipgloss.JoinVertical(lipgloss.Left, rows...)))
}

func summaryRow(label, value string) string {
	return monitor.Label.Render(label) + monitor.Value.Render(value)
}
