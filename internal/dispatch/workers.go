package dispatch

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/sourcegraph/conc/panics"
	"golang.org/x/sync/semaphore"

	bridgeerrors "github.com/Iron-Ham/spatialbridge/internal/errors"
	"github.com/Iron-Ham/spatialbridge/internal/logging"
)

// DefaultWorkers is the pool size used when a non-positive size is given.
const DefaultWorkers = 4

// Workers runs blocking work off the main goroutine with bounded
// concurrency. Go never blocks the caller; the item waits for a slot on its
// own goroutine.
type Workers struct {
	sem    *semaphore.Weighted
	size   int
	logger *logging.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	// mu orders wg.Add in Go against the closed flip in Close.
	mu     sync.Mutex
	closed bool

	inFlight atomic.Int64
	panics   atomic.Int64
}

// NewWorkers creates a pool that runs at most size items at once.
func NewWorkers(size int, logger *logging.Logger) *Workers {
	if size <= 0 {
		size = DefaultWorkers
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Workers{
		sem:    semaphore.NewWeighted(int64(size)),
		size:   size,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Go schedules fn. Items still waiting for a slot when Close is called are
// dropped.
func (w *Workers) Go(fn func()) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return bridgeerrors.ErrClosed
	}
	w.wg.Add(1)
	w.inFlight.Add(1)
	w.mu.Unlock()

	go func() {
		defer w.wg.Done()
		defer w.inFlight.Add(-1)

		if err := w.sem.Acquire(w.ctx, 1); err != nil {
			w.logger.Debug("work item dropped", "reason", err.Error())
			return
		}
		defer w.sem.Release(1)

		if r := panics.Try(fn); r != nil {
			w.panics.Add(1)
			w.logger.Error("worker panicked",
				"panic", r.Value,
				"stack", string(r.Stack))
		}
	}()
	return nil
}

// Wait blocks until every scheduled item has finished or been dropped.
func (w *Workers) Wait() {
	w.wg.Wait()
}

// Close stops accepting work, drops items still waiting for a slot and
// waits for running items to return. Safe to call more than once.
func (w *Workers) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	w.mu.Unlock()

	w.cancel()
	w.wg.Wait()
}

// Size returns the concurrency limit.
func (w *Workers) Size() int { return w.size }

// InFlight returns the number of items scheduled and not yet finished.
func (w *Workers) InFlight() int { return int(w.inFlight.Load()) }

// Panics returns how many items panicked since the pool was created.
func (w *Workers) Panics() int { return int(w.panics.Load()) }
