// Package events carries domain events between modules through an in-process
// bus. Publishers and subscribers only share the event types, never each
// other's services.
package events

import (
	"context"
	"time"
)

// Event is implemented by every domain event.
type Event interface {
	// EventName identifies the event type; subscribers key on it.
	EventName() string
	OccurredAt() time.Time
}

// BaseEvent supplies the timestamp shared by all events. Embed it and
// implement EventName on the concrete type.
type BaseEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

func NewBaseEvent() BaseEvent {
	return BaseEvent{Timestamp: time.Now()}
}

func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }

// Handler consumes events of one type.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(ctx context.Context, event Event) error

func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Bus publishes events to subscribed handlers.
type Bus interface {
	// Publish delivers the event to every handler subscribed to its name.
	// Delivery is asynchronous; a slow handler never blocks the publisher.
	Publish(ctx context.Context, event Event)

	// PublishSync delivers the event and waits for every handler.
	PublishSync(ctx context.Context, event Event) error

	// Subscribe registers a handler for events with the given name.
	Subscribe(eventName string, handler Handler)
}
