package monitor

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Iron-Ham/spatialbridge/internal/event"
	"github.com/Iron-Ham/spatialbridge/internal/native"
	"github.com/Iron-Ham/spatialbridge/internal/native/wire"
	"github.com/Iron-Ham/spatialbridge/internal/result"
)

func TestStats_Apply(t *testing.T) {
	s := NewStats()
	events := []event.Event{
		event.NewFeatureStartedEvent("barcode", native.Handle(0x101)),
		event.NewQuerySubmittedEvent("barcode", native.Handle(0x102)),
		event.NewQuerySubmittedEvent("barcode", native.Handle(0x103)),
		event.NewQueryResolvedEvent("barcode", native.Handle(0x102), result.Ok, 2),
		event.NewQueryResolvedEvent("barcode", native.Handle(0x103), result.Timeout, 0),
		event.NewSettingsAppliedEvent("barcode", result.Ok),
		event.NewIMUSampleEvent("imu", 5*time.Millisecond, wire.Vec3{Z: 9.8}, wire.Vec3{}, 30),
		event.NewHostTickEvent(7, 3),
		event.NewHostPausedEvent(7),
	}
	for _, e := range events {
		s.Apply(e)
	}

	if s.Frames != 7 || s.Drained != 3 || !s.Paused {
		t.Errorf("host stats = frames %d drained %d paused %v", s.Frames, s.Drained, s.Paused)
	}
	f, ok := s.Feature("barcode")
	if !ok {
		t.Fatal("barcode feature missing")
	}
	if !f.Running || f.Submitted != 2 || f.Results != 2 {
		t.Errorf("feature = %+v", f)
	}
	if f.Resolved[result.Ok] != 1 || f.Resolved[result.Timeout] != 1 || f.Settings[result.Ok] != 1 {
		t.Errorf("codes = %v settings = %v", f.Resolved, f.Settings)
	}
	if s.IMU.Samples != 1 || s.IMU.SensorTime != 5*time.Millisecond {
		t.Errorf("imu = %+v", s.IMU)
	}

	s.Apply(event.NewFeatureStoppedEvent("barcode", "paused"))
	f, _ = s.Feature("barcode")
	if f.Running || f.Reason != "paused" {
		t.Errorf("after stop feature = %+v", f)
	}
}

func TestModel_UpdateAndView(t *testing.T) {
	cancelled := false
	var m tea.Model = New("spatialbridge", func() { cancelled = true })

	m, _ = m.Update(EventMsg{Event: event.NewFeatureStartedEvent("found_objects", native.Handle(0x101))})
	m, _ = m.Update(EventMsg{Event: event.NewQueryResolvedEvent("found_objects", native.Handle(0x102), result.Ok, 4)})
	m, _ = m.Update(EventMsg{Event: event.NewHostTickEvent(12, 1)})

	view := m.View()
	for _, want := range []string{"spatialbridge", "found_objects", "12", "Ok 1"} {
		if !strings.Contains(view, want) {
			t.Errorf("View() missing %q:\n%s", want, view)
		}
	}

	m, _ = m.Update(DoneMsg{Err: errors.New("boom")})
	if !strings.Contains(m.View(), "failed: boom") {
		t.Errorf("View() after failure:\n%s", m.View())
	}

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("q should return a quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should quit")
	}
	if !cancelled {
		t.Error("quitting should cancel the run")
	}
}

func TestModel_SpinnerStopsWhenDone(t *testing.T) {
	m := New("spatialbridge", nil)

	start := m.Init()
	if start == nil {
		t.Fatal("Init() should start the spinner")
	}
	msg := start()
	tick, ok := msg.(spinner.TickMsg)
	if !ok {
		t.Fatalf("Init() command produced %T, want spinner.TickMsg", msg)
	}

	next, cmd := m.Update(tick)
	if cmd == nil {
		t.Error("a tick while running should schedule the next tick")
	}
	if !strings.Contains(next.View(), "running") {
		t.Errorf("View() while running:\n%s", next.View())
	}

	next, _ = next.Update(DoneMsg{})
	if _, cmd := next.Update(tick); cmd != nil {
		t.Error("a tick after the run finished should not schedule another")
	}
	if !strings.Contains(next.View(), "finished") {
		t.Errorf("View() after finish:\n%s", next.View())
	}
}

func TestAttach(t *testing.T) {
	bus := event.NewBus()
	var got []tea.Msg
	detach := Attach(bus, func(msg tea.Msg) { got = append(got, msg) })

	bus.Publish(event.NewHostTickEvent(1, 0))
	detach()
	bus.Publish(event.NewHostTickEvent(2, 0))

	if len(got) != 1 {
		t.Fatalf("forwarded %d messages, want 1", len(got))
	}
	if _, ok := got[0].(EventMsg); !ok {
		t.Errorf("message = %T, want EventMsg", got[0])
	}
}
