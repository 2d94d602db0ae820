// Package events defines all event types pushed to stockchat clients.
package events

import (
	"encoding/json"
	"time"

	"github.com/brianly1003/stockchat/internal/rpc/message"
)

// EventType represents the type of event. It doubles as the client-side
// handler name, so values match what the browser subscribes to.
type EventType string

const (
	// Chat events
	EventTypeReceiveMessage EventType = "ReceiveMessage"

	// Price events
	EventTypePostStocks EventType = "PostStocks"
)

// Event is the base interface for all events.
type Event interface {
	// Type returns the event type.
	Type() EventType

	// Timestamp returns when the event occurred.
	Timestamp() time.Time

	// Payload returns the typed event payload.
	Payload() interface{}

	// ToJSON serializes the event as a JSON-RPC notification frame.
	ToJSON() ([]byte, error)
}

// BaseEvent contains common fields for all events.
type BaseEvent struct {
	EventType EventType
	EventTime time.Time
	Data      interface{}
}

// Type returns the event type.
func (e *BaseEvent) Type() EventType {
	return e.EventType
}

// Timestamp returns when the event occurred.
func (e *BaseEvent) Timestamp() time.Time {
	return e.EventTime
}

// Payload returns the event payload.
func (e *BaseEvent) Payload() interface{} {
	return e.Data
}

// ToJSON serializes the event to a JSON-RPC notification whose method is the
// event type and whose params are the payload.
func (e *BaseEvent) ToJSON() ([]byte, error) {
	notif, err := message.NewNotification(string(e.EventType), e.Data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(notif)
}

// NewEvent creates a new base event with the given type and payload.
func NewEvent(eventType EventType, payload interface{}) *BaseEvent {
	return &BaseEvent{
		EventType: eventType,
		EventTime: time.Now().UTC(),
		Data:      payload,
	}
}
