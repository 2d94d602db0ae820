package websocket

import (
	"fmt"

	"github.com/brianly1003/stockchat/internal/domain/events"
	"github.com/brianly1003/stockchat/internal/domain/ports"
)

// ClientSubscriber wraps a WebSocket client as a registry subscriber.
type ClientSubscriber struct {
	client *Client
}

// NewClientSubscriber creates a subscriber from a WebSocket client.
func NewClientSubscriber(client *Client) *ClientSubscriber {
	return &ClientSubscriber{client: client}
}

// ID returns the subscriber's unique identifier.
func (s *ClientSubscriber) ID() string {
	return s.client.ID()
}

// Send frames the event as a JSON-RPC notification and queues it.
func (s *ClientSubscriber) Send(event events.Event) error {
	data, err := event.ToJSON()
	if err != nil {
		return fmt.Errorf("encode %s: %w", event.Type(), err)
	}
	return s.client.Send(data)
}

// Close closes the subscriber.
func (s *ClientSubscriber) Close() error {
	s.client.Close()
	return nil
}

// Done returns a channel that's closed when the subscriber is done.
func (s *ClientSubscriber) Done() <-chan struct{} {
	return s.client.Done()
}

// Ensure ClientSubscriber implements ports.Subscriber.
var _ ports.Subscriber = (*ClientSubscriber)(nil)
