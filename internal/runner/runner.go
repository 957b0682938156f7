// Package runner plays a scenario against the simulated native libraries:
// it starts the enabled features on a host, submits the scenario's planned
// queries and settings changes on their frames, and collects the outcomes.
package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Iron-Ham/spatialbridge/internal/bridge"
	"github.com/Iron-Ham/spatialbridge/internal/config"
	"github.com/Iron-Ham/spatialbridge/internal/dispatch"
	"github.com/Iron-Ham/spatialbridge/internal/errors"
	"github.com/Iron-Ham/spatialbridge/internal/event"
	"github.com/Iron-Ham/spatialbridge/internal/feature"
	"github.com/Iron-Ham/spatialbridge/internal/feature/barcode"
	"github.com/Iron-Ham/spatialbridge/internal/feature/foundobjects"
	"github.com/Iron-Ham/spatialbridge/internal/feature/imu"
	"github.com/Iron-Ham/spatialbridge/internal/host"
	"github.com/Iron-Ham/spatialbridge/internal/logging"
	"github.com/Iron-Ham/spatialbridge/internal/result"
	"github.com/Iron-Ham/spatialbridge/internal/scenario"
)

// tailFrames is how many frames past the last planned one a bounded run
// keeps ticking, on top of the slowest simulated latency.
const tailFrames = 5

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithBus sets the event bus shared by the host and the features.
func WithBus(bus *event.Bus) Option {
	return func(r *Runner) {
		if bus != nil {
			r.bus = bus
		}
	}
}

// WithLockstep makes every frame wait for the background work it started,
// so a run is independent of wall-clock scheduling.
func WithLockstep() Option {
	return func(r *Runner) { r.lockstep = true }
}

// OutcomeKind tells query outcomes from settings outcomes.
type OutcomeKind string

const (
	KindQuery    OutcomeKind = "query"
	KindSettings OutcomeKind = "settings"
)

// Outcome is one completed query or settings change.
type Outcome struct {
	Kind      OutcomeKind
	Feature   string
	Submitted uint64
	Resolved  uint64
	Code      result.Code
	Results   []string
}

// Summary is a snapshot of a run.
type Summary struct {
	Frames   uint64
	Outcomes []Outcome
	Samples  int
	Bridges  map[string]bridge.Stats
	IMU      imu.Stats
	Started  []string
}

// Runner owns the host, the features and the simulated world of one run.
type Runner struct {
	cfg      *config.Config
	scenario *scenario.Scenario
	world    *scenario.World

	disp   *dispatch.Dispatcher
	host   *host.Host
	bus    *event.Bus
	logger *logging.Logger

	tracker *foundobjects.Tracker
	scanner *barcode.Scanner
	stream  *imu.Stream

	lockstep bool
	dt       time.Duration

	mu        sync.Mutex
	outcomes  []Outcome
	samples   int
	onOutcome []func(Outcome)
	started   []string
}

// New builds the world of sc and the features cfg enables.
func New(sc *scenario.Scenario, cfg *config.Config, opts ...Option) (*Runner, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	r := &Runner{
		cfg:      cfg,
		scenario: sc,
		bus:      event.NewBus(),
		logger:   logging.NopLogger(),
		dt:       cfg.Host.FrameInterval(),
	}
	for _, opt := range opts {
		opt(r)
	}
	base := r.logger
	r.logger = base.With("component", "runner")

	world, err := sc.Build()
	if err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	r.world = world

	enabled, err := cfg.Features.FeatureMatcher()
	if err != nil {
		return nil, err
	}

	r.disp = dispatch.New(cfg.Dispatch.Workers, base)
	r.host = host.New(r.disp,
		host.WithBus(r.bus),
		host.WithLogger(base),
		host.WithTickRate(cfg.Host.TickRate),
	)

	deps := feature.Deps{
		Scheduler:  r.disp,
		Privileges: world.Privileges,
		Bus:        r.bus,
		Logger:     base,
	}
	if enabled(foundobjects.Name) {
		r.tracker = foundobjects.New(world.FoundObjects, deps)
		r.register(r.tracker)
	}
	if enabled(barcode.Name) {
		r.scanner = barcode.New(world.Barcode, deps)
		r.register(r.scanner)
	}
	if enabled(imu.Name) {
		r.stream = imu.New(world.IMU, deps)
		r.stream.Subscribe(func(imu.Sample) {
			r.mu.Lock()
			r.samples++
			r.mu.Unlock()
		})
		r.register(r.stream)
	}

	r.host.OnFrame(r.frame)
	return r, nil
}

func (r *Runner) register(f feature.Feature) {
	// Names are unique by construction.
	_ = r.host.Register(f)
}

// Bus returns the event bus of the run.
func (r *Runner) Bus() *event.Bus { return r.bus }

// Host returns the host driving the run.
func (r *Runner) Host() *host.Host { return r.host }

// Dispatcher returns the dispatcher of the run.
func (r *Runner) Dispatcher() *dispatch.Dispatcher { return r.disp }

// World returns the simulated world.
func (r *Runner) World() *scenario.World { return r.world }

// OnOutcome registers fn to be called on the main context with every
// outcome as it completes.
func (r *Runner) OnOutcome(fn func(Outcome)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onOutcome = append(r.onOutcome, fn)
}

// PlannedFrames is how many frames it takes to play the whole plan and
// collect its results.
func (r *Runner) PlannedFrames() uint64 {
	latency := max(r.scenario.Found.Latency, r.scenario.Barcode.Latency)
	return r.world.LastTick() + uint64(latency) + tailFrames
}

// Start starts every enabled feature and applies the configured barcode
// settings. Features that fail to start stay idle and are reported joined;
// the run can still proceed.
func (r *Runner) Start() error {
	err := r.host.StartAll()
	for _, f := range r.host.Features() {
		if running(f) {
			r.started = append(r.started, f.Name())
		}
	}

	if r.scanner != nil && r.scanner.Running() {
		settings, serr := r.cfg.Features.Barcode.BarcodeSettings()
		if serr == nil && settings != barcode.DefaultSettings() {
			r.applySettings(0, settings)
		}
	}
	return err
}

func running(f feature.Feature) bool {
	if r, ok := f.(interface{ Running() bool }); ok {
		return r.Running()
	}
	return false
}

// Run ticks the host for frames frames, or until ctx is done when frames
// is zero. In lockstep mode frames run back to back.
func (r *Runner) Run(ctx context.Context, frames uint64) error {
	if !r.lockstep {
		return r.host.Run(ctx, frames)
	}
	for ran := uint64(0); frames == 0 || ran < frames; {
		if err := ctx.Err(); err != nil {
			return err
		}
		if r.host.Tick() {
			ran++
		}
		r.disp.Wait()
	}
	return nil
}

// Stop stops the features and releases the dispatcher. Callbacks still
// queued are dropped.
func (r *Runner) Stop() error {
	err := r.host.StopAll()
	r.disp.Settle()
	r.disp.Close()
	return err
}

// PushSettings queues a barcode settings change for the next frame. It is
// safe to call from any goroutine.
func (r *Runner) PushSettings(v barcode.Settings) error {
	if r.scanner == nil {
		return fmt.Errorf("barcode feature is not enabled")
	}
	return r.disp.ScheduleMain(func() { r.applySettings(r.host.Frame(), v) })
}

// ReloadSettings reads path as a scenario and pushes the settings its plan
// ends on.
func (r *Runner) ReloadSettings(path string) error {
	sc, err := scenario.Load(path)
	if err != nil {
		return err
	}
	v, ok, err := sc.FinalSettings()
	if err != nil || !ok {
		return err
	}
	r.logger.Info("scenario changed, pushing barcode settings", "path", path, "types", v.Types.String())
	return r.PushSettings(v)
}

// frame runs on the main context before features update.
func (r *Runner) frame(frame uint64) {
	if r.stream != nil {
		r.world.Advance(r.dt)
	}
	for _, c := range r.world.SettingsAt(frame) {
		if r.scanner == nil {
			continue
		}
		r.applySettings(frame, c.Settings)
	}
	for _, q := range r.world.QueriesAt(frame) {
		r.submit(frame, q)
	}
}

func (r *Runner) submit(frame uint64, q scenario.PlannedQuery) {
	log := r.logger.WithFeature(q.Feature).WithFrame(frame)
	var err error
	switch {
	case q.FoundObjects != nil && r.tracker != nil:
		err = r.tracker.Query(*q.FoundObjects, func(objects []foundobjects.Object, code result.Code) {
			r.record(Outcome{Kind: KindQuery, Feature: foundobjects.Name, Submitted: frame, Code: code, Results: describeObjects(objects)})
		})
	case q.Barcode != nil && r.scanner != nil:
		err = r.scanner.Scan(*q.Barcode, func(codes []barcode.Barcode, code result.Code) {
			r.record(Outcome{Kind: KindQuery, Feature: barcode.Name, Submitted: frame, Code: code, Results: describeBarcodes(codes)})
		})
	default:
		log.Debug("feature disabled, skipping planned query")
		return
	}
	if err != nil {
		log.Failure("query rejected", err)
		r.record(Outcome{Kind: KindQuery, Feature: q.Feature, Submitted: frame, Code: errors.CodeOf(err)})
	}
}

func (r *Runner) applySettings(frame uint64, v barcode.Settings) {
	err := r.scanner.SetSettingsAsync(v, func(code result.Code) {
		r.record(Outcome{Kind: KindSettings, Feature: barcode.Name, Submitted: frame, Code: code, Results: []string{describeSettings(v)}})
	})
	if err != nil {
		r.logger.WithFeature(barcode.Name).Failure("settings rejected", err)
		r.record(Outcome{Kind: KindSettings, Feature: barcode.Name, Submitted: frame, Code: errors.CodeOf(err), Results: []string{describeSettings(v)}})
	}
}

// record runs on the main context.
func (r *Runner) record(o Outcome) {
	o.Resolved = r.host.Frame()
	r.mu.Lock()
	r.outcomes = append(r.outcomes, o)
	hooks := make([]func(Outcome), len(r.onOutcome))
	copy(hooks, r.onOutcome)
	r.mu.Unlock()

	for _, fn := range hooks {
		fn(o)
	}
}

// Summary returns a snapshot of the run so far.
func (r *Runner) Summary() Summary {
	r.mu.Lock()
	s := Summary{
		Frames:   r.host.Frame(),
		Outcomes: make([]Outcome, len(r.outcomes)),
		Samples:  r.samples,
		Bridges:  make(map[string]bridge.Stats),
		Started:  append([]string(nil), r.started...),
	}
	copy(s.Outcomes, r.outcomes)
	r.mu.Unlock()

	if r.tracker != nil {
		s.Bridges[foundobjects.Name] = r.tracker.Stats()
	}
	if r.scanner != nil {
		s.Bridges[barcode.Name] = r.scanner.Stats()
	}
	if r.stream != nil {
		s.IMU = r.stream.Stats()
	}
	return s
}
