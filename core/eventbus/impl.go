package eventbus

import (
	"strconv"
	"sync"
	"sync/atomic"

	"webpilot-go/core/event"
)

// subscription represents a single event subscription.
type subscription struct {
	id      string
	handler EventHandler
	pageID  string // Empty string means subscribe to all events
}

// channelEventBus is a channel-based implementation of EventBus.
type channelEventBus struct {
	eventChan     chan event.Event
	subscriptions map[string]*subscription
	mu            sync.RWMutex
	closed        atomic.Bool
	dropped       atomic.Uint64
	wg            sync.WaitGroup
	nextID        atomic.Uint64
}

// New creates a new EventBus with the specified buffer size.
func New(bufferSize int) EventBus {
	if bufferSize <= 0 {
		bufferSize = 100
	}

	bus := &channelEventBus{
		eventChan:     make(chan event.Event, bufferSize),
		subscriptions: make(map[string]*subscription),
	}

	bus.wg.Add(1)
	go bus.dispatch()

	return bus
}

// Publish publishes an event to all subscribers.
func (b *channelEventBus) Publish(e event.Event) {
	if b.closed.Load() {
		return
	}

	// Non-blocking send so a slow subscriber never stalls the driver's
	// event forwarding. A dropped signal only ever delays a waiter until
	// its own timeout.
	select {
	case b.eventChan <- e:
	default:
		b.dropped.Add(1)
	}
}

// Subscribe subscribes to all events.
func (b *channelEventBus) Subscribe(handler EventHandler) string {
	return b.subscribe("", handler)
}

// SubscribePage subscribes to events from a specific page.
func (b *channelEventBus) SubscribePage(pageID string, handler EventHandler) string {
	return b.subscribe(pageID, handler)
}

func (b *channelEventBus) subscribe(pageID string, handler EventHandler) string {
	id := b.generateID()

	b.mu.Lock()
	b.subscriptions[id] = &subscription{
		id:      id,
		handler: handler,
		pageID:  pageID,
	}
	b.mu.Unlock()

	return id
}

// Unsubscribe removes a subscription by its ID.
func (b *channelEventBus) Unsubscribe(subscriptionID string) {
	b.mu.Lock()
	delete(b.subscriptions, subscriptionID)
	b.mu.Unlock()
}

// Dropped returns the number of events dropped due to a full queue.
func (b *channelEventBus) Dropped() uint64 {
	return b.dropped.Load()
}

// Close shuts down the event bus.
func (b *channelEventBus) Close() {
	if b.closed.Swap(true) {
		return // Already closed
	}

	close(b.eventChan)
	b.wg.Wait()
}

// dispatch is the main event dispatch loop.
func (b *channelEventBus) dispatch() {
	defer b.wg.Done()

	for e := range b.eventChan {
		b.deliverEvent(e)
	}
}

// deliverEvent delivers an event to all matching subscribers.
func (b *channelEventBus) deliverEvent(e event.Event) {
	b.mu.RLock()
	// Copy subscriptions to avoid holding lock during handler execution
	subs := make([]*subscription, 0, len(b.subscriptions))
	for _, sub := range b.subscriptions {
		subs = append(subs, sub)
	}
	b.mu.RUnlock()

	// Get page ID if this is a page-scoped event
	var eventPageID string
	if pe, ok := e.(event.PageEvent); ok {
		eventPageID = pe.PageID()
	}

	for _, sub := range subs {
		// Filter by page ID if subscription is page-specific
		if sub.pageID != "" {
			if eventPageID == "" || sub.pageID != eventPageID {
				continue
			}
		}

		// Call handler (catch panics to prevent one bad handler from affecting others)
		func() {
			defer func() {
				if r := recover(); r != nil {
					_ = r
				}
			}()
			sub.handler(e)
		}()
	}
}

// generateID returns the next subscription ID. IDs come straight from
// the counter so they never collide.
func (b *channelEventBus) generateID() string {
	return strconv.FormatUint(b.nextID.Add(1), 10)
}
