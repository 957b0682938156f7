package dispatch

import (
	"sync"

	"github.com/sourcegraph/conc/panics"

	bridgeerrors "github.com/Iron-Ham/spatialbridge/internal/errors"
	"github.com/Iron-Ham/spatialbridge/internal/logging"
)

// MainQueue is a FIFO of closures that must run on the host's main
// goroutine. Schedule may be called from any goroutine; Drain is called by
// the host once per frame.
type MainQueue struct {
	mu     sync.Mutex
	queue  []func()
	closed bool
	logger *logging.Logger
}

// NewMainQueue creates an empty queue.
func NewMainQueue(logger *logging.Logger) *MainQueue {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &MainQueue{logger: logger}
}

// Schedule appends fn. It fails with ErrClosed once the queue is closed.
func (q *MainQueue) Schedule(fn func()) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return bridgeerrors.ErrClosed
	}
	q.queue = append(q.queue, fn)
	return nil
}

// Drain runs every closure queued before the call, in order, and returns how
// many ran. Closures scheduled while draining run on the next Drain. A
// panicking closure is logged and does not stop the rest.
func (q *MainQueue) Drain() int {
	q.mu.Lock()
	batch := q.queue
	q.queue = nil
	q.mu.Unlock()

	for _, fn := range batch {
		if r := panics.Try(fn); r != nil {
			q.logger.Error("main-context closure panicked",
				"panic", r.Value,
				"stack", string(r.Stack))
		}
	}
	return len(batch)
}

// Len returns the number of closures waiting for the next Drain.
func (q *MainQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queue)
}

// Close rejects further closures. Already queued closures can still be
// drained.
func (q *MainQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
}
