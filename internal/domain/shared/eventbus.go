package shared

import "context"

// EventHandler consumes domain events delivered by the bus.
type EventHandler interface {
	Handle(ctx context.Context, event DomainEvent) error

	// EventTypes lists the event types the handler wants. An empty
	// slice subscribes it to every event.
	EventTypes() []string
}

// EventPublisher hands domain events to whoever subscribed. The
// interview coordinator publishes through this after each committed
// write, so implementations must tolerate handler failures without
// returning them to the write path.
type EventPublisher interface {
	Publish(ctx context.Context, events ...DomainEvent) error
}

// EventSubscriber manages handler registrations.
type EventSubscriber interface {
	// Subscribe registers a handler. With no explicit types the
	// handler's own EventTypes decide what it receives.
	Subscribe(handler EventHandler, eventTypes ...string)

	// Unsubscribe removes a handler from every type it was
	// registered for.
	Unsubscribe(handler EventHandler)
}

// EventBus is the full pub/sub surface plus lifecycle control.
type EventBus interface {
	EventPublisher
	EventSubscriber

	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
