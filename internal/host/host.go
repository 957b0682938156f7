// Package host drives registered features the way a game engine does: one
// Update per frame on the main goroutine, followed by a drain of the
// callbacks workers queued for it.
package host

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Iron-Ham/spatialbridge/internal/dispatch"
	"github.com/Iron-Ham/spatialbridge/internal/errors"
	"github.com/Iron-Ham/spatialbridge/internal/event"
	"github.com/Iron-Ham/spatialbridge/internal/feature"
	"github.com/Iron-Ham/spatialbridge/internal/logging"
)

// DefaultTickRate is the frame rate Run uses unless configured.
const DefaultTickRate = 60

// Option configures a Host.
type Option func(*Host)

// WithBus sets the bus host events are published on.
func WithBus(bus *event.Bus) Option {
	return func(h *Host) { h.bus = bus }
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(h *Host) { h.logger = logger }
}

// WithTickRate sets the frames per second Run ticks at. Values below 1 keep
// the default.
func WithTickRate(hz int) Option {
	return func(h *Host) {
		if hz > 0 {
			h.interval = time.Second / time.Duration(hz)
		}
	}
}

// Host owns the frame loop. Tick, Run, Pause and Resume must be called from
// one goroutine, which acts as the main context.
type Host struct {
	disp     *dispatch.Dispatcher
	bus      *event.Bus
	logger   *logging.Logger
	interval time.Duration

	mu       sync.Mutex
	features []feature.Feature
	onFrame  []func(frame uint64)
	frame    uint64
	paused   bool
}

// New creates a Host around disp. disp must not be nil.
func New(disp *dispatch.Dispatcher, opts ...Option) *Host {
	if disp == nil {
		panic("host: dispatcher must not be nil")
	}
	h := &Host{
		disp:     disp,
		interval: time.Second / DefaultTickRate,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = logging.NopLogger()
	}
	if h.bus == nil {
		h.bus = event.NewBus()
	}
	return h
}

// Register adds a feature. Names must be unique.
func (h *Host) Register(f feature.Feature) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, existing := range h.features {
		if existing.Name() == f.Name() {
			return fmt.Errorf("feature %q already registered", f.Name())
		}
	}
	h.features = append(h.features, f)
	return nil
}

// Features returns the registered features in registration order.
func (h *Host) Features() []feature.Feature {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]feature.Feature, len(h.features))
	copy(out, h.features)
	return out
}

// OnFrame registers fn to run at the start of every frame, before the
// features update.
func (h *Host) OnFrame(fn func(frame uint64)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onFrame = append(h.onFrame, fn)
}

// Bus returns the host's event bus.
func (h *Host) Bus() *event.Bus { return h.bus }

// Frame returns the number of frames ticked.
func (h *Host) Frame() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.frame
}

// Paused reports whether the host is suspended.
func (h *Host) Paused() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.paused
}

// StartAll starts every feature. A feature that fails to start stays
// registered but idle; the failures are returned joined.
func (h *Host) StartAll() error {
	var errs []error
	for _, f := range h.Features() {
		if err := f.Start(); err != nil {
			h.logger.WithFeature(f.Name()).Warn("feature failed to start", "error", err.Error())
			errs = append(errs, fmt.Errorf("%s: %w", f.Name(), err))
			continue
		}
		h.logger.WithFeature(f.Name()).Info("feature started")
	}
	return errors.Join(errs...)
}

// StopAll stops every feature in reverse registration order.
func (h *Host) StopAll() error {
	features := h.Features()
	var errs []error
	for i := len(features) - 1; i >= 0; i-- {
		f := features[i]
		if err := f.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", f.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Tick runs one frame. It returns false without doing anything while the
// host is paused.
func (h *Host) Tick() bool {
	h.mu.Lock()
	if h.paused {
		h.mu.Unlock()
		return false
	}
	h.frame++
	frame := h.frame
	hooks := make([]func(uint64), len(h.onFrame))
	copy(hooks, h.onFrame)
	features := make([]feature.Feature, len(h.features))
	copy(features, h.features)
	h.mu.Unlock()

	for _, fn := range hooks {
		fn(frame)
	}
	for _, f := range features {
		f.Update()
	}
	drained := h.disp.DrainMain()

	if drained > 0 {
		h.logger.WithFrame(frame).Debug("frame drained callbacks", "drained", drained)
	}
	h.bus.Publish(event.NewHostTickEvent(frame, drained))
	return true
}

// Run ticks at the configured rate until ctx is done or, when frames is
// non-zero, until that many frames have run. It returns ctx.Err() when
// cancelled and nil otherwise.
func (h *Host) Run(ctx context.Context, frames uint64) error {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	h.logger.Info("host loop started", "interval", h.interval.String(), "frames", frames)
	var ran uint64
	for frames == 0 || ran < frames {
		select {
		case <-ctx.Done():
			h.logger.Info("host loop cancelled", "frames", ran)
			return ctx.Err()
		case <-ticker.C:
		}
		if h.Tick() {
			ran++
		}
	}
	h.logger.Info("host loop finished", "frames", ran)
	return nil
}

// Pause suspends the host and every feature that follows suspend and
// resume. Feature failures are returned joined; the host is paused anyway.
func (h *Host) Pause() error {
	h.mu.Lock()
	if h.paused {
		h.mu.Unlock()
		return nil
	}
	h.paused = true
	frame := h.frame
	h.mu.Unlock()

	var errs []error
	for _, f := range h.Features() {
		if s, ok := f.(feature.Suspender); ok {
			if err := s.Pause(); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", f.Name(), err))
			}
		}
	}
	h.logger.WithFrame(frame).Info("host paused")
	h.bus.Publish(event.NewHostPausedEvent(frame))
	return errors.Join(errs...)
}

// Resume resumes every suspended feature and the frame loop.
func (h *Host) Resume() error {
	h.mu.Lock()
	if !h.paused {
		h.mu.Unlock()
		return nil
	}
	frame := h.frame
	h.mu.Unlock()

	var errs []error
	for _, f := range h.Features() {
		if s, ok := f.(feature.Suspender); ok {
			if err := s.Resume(); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", f.Name(), err))
			}
		}
	}

	h.mu.Lock()
	h.paused = false
	h.mu.Unlock()
	h.logger.WithFrame(frame).Info("host resumed")
	h.bus.Publish(event.NewHostResumedEvent(frame))
	return errors.Join(errs...)
}
