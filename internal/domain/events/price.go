package events

import "time"

// PriceTick is one generated price sample.
type PriceTick struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// PostStocksPayload is the payload for PostStocks events.
type PostStocksPayload struct {
	Label     string    `json:"label"`
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// NewPostStocksEvent creates a price event from a tick.
func NewPostStocksEvent(tick PriceTick) *BaseEvent {
	e := NewEvent(EventTypePostStocks, nil)
	e.Data = PostStocksPayload{
		Label:     tick.Label,
		Value:     tick.Value,
		Timestamp: e.EventTime,
	}
	return e
}
