// Package testutil provides testing utilities for spatialbridge tests.
package testutil

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Iron-Ham/spatialbridge/internal/event"
)

// WriteFile writes content to name inside a fresh temp directory and
// returns the full path.
func WriteFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create directory for %s: %v", name, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

// IsolateConfig points XDG_CONFIG_HOME at a temp directory so config and
// log files never touch the user's home. It returns that directory.
func IsolateConfig(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	return dir
}

// Recorder collects every event published on a bus. It is safe for
// concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []event.Event
}

// NewRecorder subscribes a Recorder to bus for the rest of the test.
func NewRecorder(t *testing.T, bus *event.Bus) *Recorder {
	t.Helper()

	r := &Recorder{}
	id := bus.SubscribeAll(func(e event.Event) {
		r.mu.Lock()
		r.events = append(r.events, e)
		r.mu.Unlock()
	})
	t.Cleanup(func() { bus.Unsubscribe(id) })
	return r
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []event.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]event.Event, len(r.events))
	copy(out, r.events)
	return out
}

// Types returns the recorded event types, in publish order.
func (r *Recorder) Types() []string {
	events := r.Events()
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.EventType()
	}
	return out
}

// Count returns how many events of eventType were recorded.
func (r *Recorder) Count(eventType string) int {
	n := 0
	for _, e := range r.Events() {
		if e.EventType() == eventType {
			n++
		}
	}
	return n
}

// Eventually polls cond until it holds or timeout passes, failing the test
// with msg in the latter case.
func Eventually(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met within %v: %s", timeout, msg)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
