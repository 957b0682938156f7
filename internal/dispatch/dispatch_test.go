package dispatch

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	bridgeerrors "github.com/Iron-Ham/spatialbridge/internal/errors"
)

func TestMainQueue_DrainRunsInOrder(t *testing.T) {
	q := NewMainQueue(nil)

	var got []int
	for i := range 3 {
		if err := q.Schedule(func() { got = append(got, i) }); err != nil {
			t.Fatal(err)
		}
	}
	if q.Len() != 3 {
		t.Errorf("Len() = %d, want 3", q.Len())
	}

	if n := q.Drain(); n != 3 {
		t.Errorf("Drain() = %d, want 3", n)
	}
	if len(got) != 3 || got[0] != 0 || got[1] != 1 || got[2] != 2 {
		t.Errorf("closures ran out of order: %v", got)
	}
	if q.Drain() != 0 {
		t.Error("second Drain should find nothing")
	}
}

func TestMainQueue_ScheduleDuringDrainDefers(t *testing.T) {
	q := NewMainQueue(nil)

	ranInner := false
	_ = q.Schedule(func() {
		_ = q.Schedule(func() { ranInner = true })
	})

	if n := q.Drain(); n != 1 {
		t.Fatalf("Drain() = %d, want 1", n)
	}
	if ranInner {
		t.Fatal("closure scheduled during a drain must wait for the next drain")
	}
	q.Drain()
	if !ranInner {
		t.Error("inner closure should run on the following drain")
	}
}

func TestMainQueue_PanicDoesNotStopDrain(t *testing.T) {
	q := NewMainQueue(nil)

	ran := false
	_ = q.Schedule(func() { panic("bad callback") })
	_ = q.Schedule(func() { ran = true })

	if n := q.Drain(); n != 2 {
		t.Errorf("Drain() = %d, want 2", n)
	}
	if !ran {
		t.Error("closure after a panicking one should still run")
	}
}

func TestMainQueue_Close(t *testing.T) {
	q := NewMainQueue(nil)
	_ = q.Schedule(func() {})
	q.Close()

	if err := q.Schedule(func() {}); !errors.Is(err, bridgeerrors.ErrClosed) {
		t.Errorf("Schedule after Close = %v, want ErrClosed", err)
	}
	if q.Drain() != 1 {
		t.Error("closures queued before Close should still drain")
	}
}

func TestMainQueue_ConcurrentSchedule(t *testing.T) {
	q := NewMainQueue(nil)

	var count atomic.Int32
	var wg sync.WaitGroup
	for range 50 {
		wg.Go(func() {
			_ = q.Schedule(func() { count.Add(1) })
		})
	}
	wg.Wait()

	q.Drain()
	if count.Load() != 50 {
		t.Errorf("ran %d closures, want 50", count.Load())
	}
}

func TestWorkers_BoundsConcurrency(t *testing.T) {
	w := NewWorkers(2, nil)
	defer w.Close()

	var running, peak atomic.Int32
	for range 10 {
		if err := w.Go(func() {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			running.Add(-1)
		}); err != nil {
			t.Fatal(err)
		}
	}
	w.Wait()

	if peak.Load() > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", peak.Load())
	}
	if w.InFlight() != 0 {
		t.Errorf("InFlight() = %d after Wait", w.InFlight())
	}
}

func TestWorkers_RecoversPanics(t *testing.T) {
	w := NewWorkers(1, nil)
	defer w.Close()

	done := false
	_ = w.Go(func() { panic("native symbol missing") })
	_ = w.Go(func() { done = true })
	w.Wait()

	if w.Panics() != 1 {
		t.Errorf("Panics() = %d, want 1", w.Panics())
	}
	if !done {
		t.Error("pool should keep running after a panic")
	}
}

func TestWorkers_Close(t *testing.T) {
	w := NewWorkers(1, nil)

	release := make(chan struct{})
	started := make(chan struct{})
	_ = w.Go(func() {
		close(started)
		<-release
	})
	<-started

	var dropped atomic.Bool
	dropped.Store(true)
	_ = w.Go(func() { dropped.Store(false) })

	go func() {
		time.Sleep(10 * time.Millisecond)
		close(release)
	}()
	w.Close()

	if !dropped.Load() {
		t.Error("item waiting for a slot should be dropped on Close")
	}
	if err := w.Go(func() {}); !errors.Is(err, bridgeerrors.ErrClosed) {
		t.Errorf("Go after Close = %v, want ErrClosed", err)
	}
	w.Close()
}

func TestWorkers_GoRacingClose(t *testing.T) {
	for round := 0; round < 50; round++ {
		w := NewWorkers(2, nil)

		var accepted, ran atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 10; j++ {
					err := w.Go(func() { ran.Add(1) })
					switch {
					case err == nil:
						accepted.Add(1)
					case !errors.Is(err, bridgeerrors.ErrClosed):
						t.Errorf("Go() = %v, want nil or ErrClosed", err)
					}
				}
			}()
		}
		w.Close()
		wg.Wait()

		if got := w.InFlight(); got != 0 {
			t.Fatalf("round %d: InFlight() after Close = %d, want 0", round, got)
		}
		if ran.Load() > accepted.Load() {
			t.Fatalf("round %d: ran %d items but accepted %d", round, ran.Load(), accepted.Load())
		}
	}
}

func TestWorkers_DefaultSize(t *testing.T) {
	w := NewWorkers(0, nil)
	defer w.Close()
	if w.Size() != DefaultWorkers {
		t.Errorf("Size() = %d, want %d", w.Size(), DefaultWorkers)
	}
}

func TestDispatcher_Settle(t *testing.T) {
	d := New(2, nil)
	defer d.Close()

	var order []string
	_ = d.ScheduleWork(func() {
		_ = d.ScheduleMain(func() {
			order = append(order, "main-1")
			_ = d.ScheduleWork(func() {
				_ = d.ScheduleMain(func() { order = append(order, "main-2") })
			})
		})
	})

	if n := d.Settle(); n != 2 {
		t.Errorf("Settle() ran %d closures, want 2", n)
	}
	if len(order) != 2 || order[0] != "main-1" || order[1] != "main-2" {
		t.Errorf("order = %v", order)
	}
}

func TestDispatcher_Close(t *testing.T) {
	d := New(1, nil)
	d.Close()

	if err := d.ScheduleWork(func() {}); !errors.Is(err, bridgeerrors.ErrClosed) {
		t.Errorf("ScheduleWork after Close = %v", err)
	}
	if err := d.ScheduleMain(func() {}); !errors.Is(err, bridgeerrors.ErrClosed) {
		t.Errorf("ScheduleMain after Close = %v", err)
	}
}
