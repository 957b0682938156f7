package event

import (
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/panics"
)

// Handler is a function that handles an event.
type Handler func(Event)

// subscription represents a registered event handler.
type subscription struct {
	id        string
	eventType string
	handler   Handler
}

// Bus is a synchronous pub-sub event bus. Handlers run on the publishing
// goroutine; the bridge publishes callback-related events from the main
// context only.
type Bus struct {
	mu            sync.RWMutex
	subscriptions map[string][]subscription // eventType -> subscriptions
	onPanic       func(Event, *panics.Recovered)
}

// NewBus creates a new event bus.
func NewBus() *Bus {
	return &Bus{
		subscriptions: make(map[string][]subscription),
	}
}

// OnPanic replaces the default panic reporter, which writes to the standard
// logger.
func (b *Bus) OnPanic(fn func(Event, *panics.Recovered)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onPanic = fn
}

// Subscribe registers a handler for a specific event type.
// Returns a subscription ID that can be used to unsubscribe.
func (b *Bus) Subscribe(eventType string, handler Handler) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := subscription{
		id:        uuid.NewString(),
		eventType: eventType,
		handler:   handler,
	}

	b.subscriptions[eventType] = append(b.subscriptions[eventType], sub)
	return sub.id
}

// SubscribeAll registers a handler for all event types.
func (b *Bus) SubscribeAll(handler Handler) string {
	return b.Subscribe("*", handler)
}

// Unsubscribe removes a subscription by ID.
// Returns true if the subscription was found and removed.
func (b *Bus) Unsubscribe(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for eventType, subs := range b.subscriptions {
		for i, sub := range subs {
			if sub.id == id {
				// Copy so an in-flight Publish keeps its snapshot intact.
				next := make([]subscription, 0, len(subs)-1)
				next = append(next, subs[:i]...)
				next = append(next, subs[i+1:]...)
				b.subscriptions[eventType] = next
				return true
			}
		}
	}
	return false
}

// Publish dispatches an event to all registered handlers.
// Specific handlers are called first, then wildcard handlers, each group in
// registration order. A panicking handler is reported and skipped.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	eventType := event.EventType()
	specificSubs := b.subscriptions[eventType]
	wildcardSubs := b.subscriptions["*"]
	onPanic := b.onPanic
	b.mu.RUnlock()

	for _, sub := range specificSubs {
		b.safeCall(sub.handler, event, onPanic)
	}
	for _, sub := range wildcardSubs {
		b.safeCall(sub.handler, event, onPanic)
	}
}

func (b *Bus) safeCall(handler Handler, event Event, onPanic func(Event, *panics.Recovered)) {
	r := panics.Try(func() { handler(event) })
	if r == nil {
		return
	}
	if onPanic != nil {
		onPanic(event, r)
		return
	}
	log.Printf("ERROR: event handler panicked for event %s: %v\n%s",
		event.EventType(), r.Value, r.Stack)
}

// Clear removes all subscriptions.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscriptions = make(map[string][]subscription)
}

// SubscriptionCount returns the total number of active subscriptions.
func (b *Bus) SubscriptionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	count := 0
	for _, subs := range b.subscriptions {
		count += len(subs)
	}
	return count
}
