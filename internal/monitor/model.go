package monitor

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Iron-Ham/spatialbridge/internal/event"
	"github.com/Iron-Ham/spatialbridge/internal/result"
)

// EventMsg carries a bus event into the bubbletea program.
type EventMsg struct{ Event event.Event }

// DoneMsg reports that the run finished, with its error if any.
type DoneMsg struct{ Err error }

// Attach forwards every bus event to send, typically (*tea.Program).Send.
// The returned function detaches.
func Attach(bus *event.Bus, send func(tea.Msg)) func() {
	id := bus.SubscribeAll(func(e event.Event) { send(EventMsg{Event: e}) })
	return func() { bus.Unsubscribe(id) }
}

// Model is the bubbletea model of the live view.
type Model struct {
	title   string
	stats   *Stats
	spinner spinner.Model
	width   int
	done    bool
	err     error
	cancel  func()
}

// New creates a Model. cancel, if non-nil, is called when the user quits.
func New(title string, cancel func()) Model {
	return Model{
		title:   title,
		stats:   NewStats(),
		spinner: spinner.New(spinner.WithSpinner(spinner.MiniDot), spinner.WithStyle(Ok)),
		cancel:  cancel,
	}
}

// Stats returns the aggregated counters.
func (m Model) Stats() *Stats { return m.stats }

// Init implements tea.Model.
func (m Model) Init() tea.Cmd { return m.spinner.Tick }

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case EventMsg:
		m.stats.Apply(msg.Event)
	case DoneMsg:
		m.done = true
		m.err = msg.Err
	case spinner.TickMsg:
		// The spinner stops once the run is over.
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}
	}
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(Title.Render(m.title))
	b.WriteString("\n")

	state := m.spinner.View() + " " + Ok.Render("running")
	switch {
	case m.done && m.err != nil:
		state = Error.Render("failed: " + m.err.Error())
	case m.done:
		state = Muted.Render("finished")
	case m.stats.Paused:
		state = Warning.Render("paused")
	}
	b.WriteString(row("state", state))
	b.WriteString(row("frame", Value.Render(fmt.Sprint(m.stats.Frames))))
	b.WriteString(row("callbacks run", Value.Render(fmt.Sprint(m.stats.Drained))))

	var panels []string
	for _, f := range m.stats.Features() {
		panels = append(panels, Panel.Render(renderFeature(f)))
	}
	if m.stats.IMU.Samples > 0 {
		panels = append(panels, Panel.Render(renderIMU(m.stats.IMU)))
	}
	if len(panels) > 0 {
		b.WriteString("\n")
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, panels...))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(Muted.Render("q to quit"))
	b.WriteString("\n")
	return FitLines(b.String(), m.width)
}

func row(label, value string) string {
	return Label.Render(label) + value + "\n"
}

func renderFeature(f FeatureState) string {
	var b strings.Builder
	b.WriteString(Value.Render(f.Name))
	b.WriteString("\n")
	status := Ok.Render("running")
	if !f.Running {
		status = Muted.Render("stopped")
		if f.Reason != "" {
			status = Muted.Render(f.Reason)
		}
	}
	b.WriteString(row("status", status))
	b.WriteString(row("submitted", fmt.Sprint(f.Submitted)))
	b.WriteString(row("results", fmt.Sprint(f.Results)))
	for _, line := range codeLines(f.Resolved) {
		b.WriteString(row("  resolved", line))
	}
	for _, line := range codeLines(f.Settings) {
		b.WriteString(row("  settings", line))
	}
	return strings.TrimRight(b.String(), "\n")
}

func codeLines(counts map[result.Code]int) []string {
	codes := make([]result.Code, 0, len(counts))
	for c := range counts {
		codes = append(codes, c)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	lines := make([]string, 0, len(codes))
	for _, c := range codes {
		style := CodeStyle(c.IsOk(), c == result.Pending)
		lines = append(lines, fmt.Sprintf("%s %d", style.Render(c.String()), counts[c]))
	}
	return lines
}

func renderIMU(s IMUState) string {
	var b strings.Builder
	b.WriteString(Value.Render("imu"))
	b.WriteString("\n")
	b.WriteString(row("samples", fmt.Sprint(s.Samples)))
	b.WriteString(row("sensor time", s.SensorTime.String()))
	b.WriteString(row("accel m/s²", fmt.Sprintf("%.2f %.2f %.2f", s.Accel.X, s.Accel.Y, s.Accel.Z)))
	b.WriteString(row("gyro rad/s", fmt.Sprintf("%.3f %.3f %.3f", s.Gyro.X, s.Gyro.Y, s.Gyro.Z)))
	b.WriteString(row("temperature", fmt.Sprintf("%.1f°C", s.Temperature)))
	return strings.TrimRight(b.String(), "\n")
}
