// Package dispatch provides the two execution contexts the bridge moves work
// between: the host's main goroutine, reached through a MainQueue drained
// once per frame, and a bounded pool of background workers for blocking
// native calls.
package dispatch

import "github.com/Iron-Ham/spatialbridge/internal/logging"

// Dispatcher bundles a MainQueue and a Workers pool.
type Dispatcher struct {
	main    *MainQueue
	workers *Workers
}

// New creates a Dispatcher with the given worker pool size.
func New(workers int, logger *logging.Logger) *Dispatcher {
	return &Dispatcher{
		main:    NewMainQueue(logger),
		workers: NewWorkers(workers, logger),
	}
}

// ScheduleMain queues fn for the next DrainMain.
func (d *Dispatcher) ScheduleMain(fn func()) error {
	return d.main.Schedule(fn)
}

// ScheduleWork runs fn on a background worker.
func (d *Dispatcher) ScheduleWork(fn func()) error {
	return d.workers.Go(fn)
}

// DrainMain runs pending main-context closures. Call it only from the main
// goroutine.
func (d *Dispatcher) DrainMain() int {
	return d.main.Drain()
}

// Wait blocks until all background work has finished.
func (d *Dispatcher) Wait() {
	d.workers.Wait()
}

// Settle waits for background work and drains the main queue until both are
// empty. Tests and the CLI use it to flush a frame deterministically.
func (d *Dispatcher) Settle() int {
	total := 0
	for {
		d.workers.Wait()
		n := d.main.Drain()
		total += n
		if n == 0 && d.workers.InFlight() == 0 {
			return total
		}
	}
}

// Close shuts down the worker pool and rejects new main-context closures.
func (d *Dispatcher) Close() {
	d.workers.Close()
	d.main.Close()
}

// Main returns the main queue.
func (d *Dispatcher) Main() *MainQueue { return d.main }

// Workers returns the worker pool.
func (d *Dispatcher) Workers() *Workers { return d.workers }
