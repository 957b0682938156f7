// Package event provides a pub-sub event bus used as the bridge's observer
// registry.
//
// Features publish lifecycle, query and stream events; the host, the CLI and
// the live monitor subscribe to them without holding references to the
// features themselves.
//
// # Main Types
//
//   - [Event]: Interface that all events must implement, providing EventType() and Timestamp()
//   - [Bus]: Synchronous pub-sub event dispatcher with thread-safe operations
//   - [Handler]: Function type for event handlers (func(Event))
//
// # Thread Safety
//
// The [Bus] type is safe for concurrent use. Handlers are called on the
// publishing goroutine and are protected against panics. Query and stream
// events are published from the main context, so handlers for them may touch
// host state without locking.
//
// # Basic Usage
//
//	bus := event.NewBus()
//
//	id := bus.Subscribe(event.TypeQueryResolved, func(e event.Event) {
//	    resolved := e.(event.QueryResolvedEvent)
//	    log.Printf("%s %s -> %s", resolved.Feature, resolved.Token, resolved.Code)
//	})
//	defer bus.Unsubscribe(id)
//
// # Event Type Naming Convention
//
// Event types follow the pattern "category.action":
//   - feature.started, feature.stopped
//   - query.submitted, query.resolved
//   - settings.applied
//   - imu.sample
//   - host.tick, host.paused, host.resumed
package event
