package cdc

import "context"

// Subscriber receives inflated events from a Runner. Implementations must
// be idempotent: dispatch is at-least-once, so the same
// event can be redelivered after a crash between callback and cursor
// advance.
type Subscriber interface {
	HandleEvent(ctx context.Context, ev Event) error
}

// SubscriberFunc adapts a plain function to Subscriber.
type SubscriberFunc func(ctx context.Context, ev Event) error

func (f SubscriberFunc) HandleEvent(ctx context.Context, ev Event) error { return f(ctx, ev) }

// Trigger names what a caller wants to observe: every mutation of On's kind
// on Collection, delivered to Callback. Name identifies the subscription's
// _cursors row: registering with the same Name after a restart resumes
// from the persisted cursor instead of starting over at now(). An empty
// Name mints a fresh, non-resumable subscription.
type Trigger struct {
	Name       string
	Collection string
	On         EventType
	Callback   Subscriber
}
