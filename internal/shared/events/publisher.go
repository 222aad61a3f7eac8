package events

import "context"

// Publisher is the producing side of the bus. Domain modules depend on this
// interface so they can run without a live event store.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopPublisher discards events. Used in static demo mode and in tests.
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, event Event) error { return nil }

var _ Publisher = (*Bus)(nil)
var _ Publisher = NopPublisher{}
