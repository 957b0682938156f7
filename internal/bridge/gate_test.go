package bridge_test

import (
	"testing"
	"time"

	"github.com/Iron-Ham/spatialbridge/internal/bridge"
)

func TestGate(t *testing.T) {
	t.Run("zero value admits callers", func(t *testing.T) {
		var g bridge.Gate
		if !g.Enter() {
			t.Fatal("Enter() on an open gate = false")
		}
		g.Leave()
		if g.Closed() {
			t.Error("zero Gate reports closed")
		}
	})

	t.Run("close waits for callers inside", func(t *testing.T) {
		var g bridge.Gate
		if !g.Enter() {
			t.Fatal("Enter() = false")
		}

		closed := make(chan struct{})
		go func() {
			g.Close()
			close(closed)
		}()

		select {
		case <-closed:
			t.Fatal("Close returned while a caller was inside")
		case <-time.After(30 * time.Millisecond):
		}

		g.Leave()
		select {
		case <-closed:
		case <-time.After(2 * time.Second):
			t.Fatal("Close did not return after Leave")
		}
	})

	t.Run("closed gate rejects until open", func(t *testing.T) {
		var g bridge.Gate
		g.Close()
		if g.Enter() {
			t.Fatal("Enter() on a closed gate = true")
		}
		g.Open()
		if !g.Enter() {
			t.Fatal("Enter() after Open = false")
		}
		g.Leave()
	})
}
