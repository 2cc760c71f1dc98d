package docwatch

import "github.com/mesh-intelligence/docwatch/internal/cdc"

// Event is the tagged-union of CDC event variants a durable subscriber
// receives; switch on its concrete type (InsertEvent, UpdateEvent,
// WriteEvent, DeleteEvent) to access before/after state.
type (
	Event       = cdc.Event
	InsertEvent = cdc.InsertEvent
	UpdateEvent = cdc.UpdateEvent
	WriteEvent  = cdc.WriteEvent
	DeleteEvent = cdc.DeleteEvent
)

// Subscriber receives durable CDC events; implementations must be
// idempotent since dispatch is at-least-once.
type Subscriber = cdc.Subscriber

// SubscriberFunc adapts a plain function to Subscriber.
type SubscriberFunc = cdc.SubscriberFunc
