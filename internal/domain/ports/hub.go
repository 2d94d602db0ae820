package ports

import (
	"github.com/brianly1003/stockchat/internal/domain/events"
)

// Subscriber represents one live connection that can receive events.
type Subscriber interface {
	// ID returns a unique identifier for this subscriber.
	ID() string

	// Send queues an event for this subscriber without blocking.
	// Returns domain.ErrSubscriberClosed if the subscriber is gone.
	Send(event events.Event) error

	// Close closes the subscriber.
	Close() error

	// Done returns a channel that's closed when the subscriber is done.
	Done() <-chan struct{}
}

// Pusher accepts server-initiated events for broadcast.
type Pusher interface {
	// Push broadcasts an event to every connection on the bound channel and
	// returns the number of deliveries.
	Push(event events.Event) int
}
