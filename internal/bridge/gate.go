package bridge

import "sync"

// Gate orders native calls that use a resource handle against the teardown
// of that handle. Workers hold it shared for the length of their native
// calls; Close waits for them to leave and turns later callers away until
// Open. A feature closes its gates before destroying the handle, so no
// worker can reach the native side with a destroyed handle.
//
// The zero value is open.
type Gate struct {
	mu     sync.RWMutex
	closed bool
}

// Enter reports whether the caller may call into the native side. On true
// the caller must call Leave when its native calls are done. Enter must not
// be nested on one goroutine.
func (g *Gate) Enter() bool {
	g.mu.RLock()
	if g.closed {
		g.mu.RUnlock()
		return false
	}
	return true
}

// Leave ends a section started by a successful Enter.
func (g *Gate) Leave() {
	g.mu.RUnlock()
}

// Close blocks until every caller inside the gate has left, then rejects
// new callers.
func (g *Gate) Close() {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()
}

// Open admits callers again.
func (g *Gate) Open() {
	g.mu.Lock()
	g.closed = false
	g.mu.Unlock()
}

// Closed reports whether the gate turns callers away.
func (g *Gate) Closed() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.closed
}
