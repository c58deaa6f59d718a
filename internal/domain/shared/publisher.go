package shared

import "context"

// EventPublisher publishes domain events to interested subscribers.
// Publishing is best-effort: the engine never fails a command because an
// event could not be delivered.
type EventPublisher interface {
	// Publish delivers an event to all subscribers of its type.
	Publish(event Event) error
}

// EventHandler processes a single domain event.
type EventHandler interface {
	// Handle processes the event. Errors are logged by the bus, not propagated.
	Handle(ctx context.Context, event Event) error

	// Name returns a human-readable handler name for logging.
	Name() string
}

// EventHandlerFunc adapts a function to the EventHandler interface.
type EventHandlerFunc struct {
	HandlerName string
	Fn          func(ctx context.Context, event Event) error
}

// Handle implements EventHandler.
func (f EventHandlerFunc) Handle(ctx context.Context, event Event) error {
	return f.Fn(ctx, event)
}

// Name implements EventHandler.
func (f EventHandlerFunc) Name() string {
	return f.HandlerName
}

// NoopPublisher discards all events. Used in tests and when the bus is disabled.
type NoopPublisher struct{}

// Publish implements EventPublisher.
func (NoopPublisher) Publish(Event) error { return nil }
