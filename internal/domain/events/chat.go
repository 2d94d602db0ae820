package events

import "time"

// ReceiveMessagePayload is the payload for ReceiveMessage events.
type ReceiveMessagePayload struct {
	Sender    string    `json:"sender"`
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"`
}

// NewReceiveMessageEvent creates a chat message event. The body must already
// be validated and escaped.
func NewReceiveMessageEvent(sender, body string) *BaseEvent {
	e := NewEvent(EventTypeReceiveMessage, nil)
	e.Data = ReceiveMessagePayload{
		Sender:    sender,
		Body:      body,
		Timestamp: e.EventTime,
	}
	return e
}
