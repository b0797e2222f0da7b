// Package eventbus provides the event bus for publishing and subscribing to events.
package eventbus

import (
	"webpilot-go/core/event"
)

// EventBus is the interface for the event bus.
type EventBus interface {
	// Publish publishes an event to all subscribers.
	// This method is non-blocking; events are queued for async dispatch.
	Publish(e event.Event)

	// Subscribe subscribes to all events.
	// Returns a subscription ID that can be used to unsubscribe.
	Subscribe(handler EventHandler) string

	// SubscribePage subscribes to events from a specific page.
	// Only events implementing PageEvent with matching PageID will be delivered.
	// Returns a subscription ID that can be used to unsubscribe.
	SubscribePage(pageID string, handler EventHandler) string

	// Unsubscribe removes a subscription by its ID.
	Unsubscribe(subscriptionID string)

	// Dropped returns the number of events dropped because the internal
	// queue was full.
	Dropped() uint64

	// Close shuts down the event bus and releases resources.
	// After Close is called, Publish will be a no-op.
	Close()
}

// EventHandler is a function that handles an event.
type EventHandler func(e event.Event)
