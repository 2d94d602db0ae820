package events

import (
	"encoding/json"
	"testing"
	"time"
)

func TestBaseEvent_Type(t *testing.T) {
	tests := []struct {
		name      string
		eventType EventType
	}{
		{"ReceiveMessage", EventTypeReceiveMessage},
		{"PostStocks", EventTypePostStocks},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := NewEvent(tt.eventType, nil)

			if event.Type() != tt.eventType {
				t.Errorf("Type() = %v, want %v", event.Type(), tt.eventType)
			}
		})
	}
}

func TestBaseEvent_Timestamp(t *testing.T) {
	before := time.Now().UTC()
	event := NewEvent(EventTypePostStocks, nil)
	after := time.Now().UTC()

	ts := event.Timestamp()

	if ts.Before(before) {
		t.Errorf("Timestamp() = %v, should be >= %v", ts, before)
	}
	if ts.After(after) {
		t.Errorf("Timestamp() = %v, should be <= %v", ts, after)
	}
}

func TestBaseEvent_ToJSON(t *testing.T) {
	payload := map[string]string{"key": "value"}
	event := NewEvent(EventTypeReceiveMessage, payload)

	jsonBytes, err := event.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal(jsonBytes, &parsed); err != nil {
		t.Fatalf("failed to parse JSON: %v", err)
	}

	if parsed["jsonrpc"] != "2.0" {
		t.Errorf("jsonrpc = %v, want 2.0", parsed["jsonrpc"])
	}
	if parsed["method"] != string(EventTypeReceiveMessage) {
		t.Errorf("method = %v, want %v", parsed["method"], EventTypeReceiveMessage)
	}
	if _, ok := parsed["id"]; ok {
		t.Error("notification must not carry an id")
	}

	params, ok := parsed["params"].(map[string]interface{})
	if !ok {
		t.Fatal("params should be an object")
	}
	if params["key"] != "value" {
		t.Errorf("params[key] = %v, want value", params["key"])
	}
}

func TestNewReceiveMessageEvent(t *testing.T) {
	event := NewReceiveMessageEvent("alice", "hi &amp; bye")

	payload, ok := event.Payload().(ReceiveMessagePayload)
	if !ok {
		t.Fatalf("Payload() type = %T, want ReceiveMessagePayload", event.Payload())
	}
	if payload.Sender != "alice" {
		t.Errorf("Sender = %q, want alice", payload.Sender)
	}
	if payload.Body != "hi &amp; bye" {
		t.Errorf("Body = %q, want escaped body unchanged", payload.Body)
	}
	if !payload.Timestamp.Equal(event.Timestamp()) {
		t.Errorf("payload timestamp %v != event timestamp %v", payload.Timestamp, event.Timestamp())
	}

	data, err := event.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}

	var frame struct {
		Method string                `json:"method"`
		Params ReceiveMessagePayload `json:"params"`
	}
	if err := json.Unmarshal(data, &frame); err != nil {
		t.Fatalf("failed to parse frame: %v", err)
	}
	if frame.Method != "ReceiveMessage" {
		t.Errorf("method = %q, want ReceiveMessage", frame.Method)
	}
	if frame.Params.Sender != "alice" || frame.Params.Body != "hi &amp; bye" {
		t.Errorf("params = %+v", frame.Params)
	}
}

func TestNewPostStocksEvent(t *testing.T) {
	event := NewPostStocksEvent(PriceTick{Label: "PostStocks", Value: 107})

	if event.Type() != EventTypePostStocks {
		t.Errorf("Type() = %v, want PostStocks", event.Type())
	}

	payload, ok := event.Payload().(PostStocksPayload)
	if !ok {
		t.Fatalf("Payload() type = %T, want PostStocksPayload", event.Payload())
	}
	if payload.Label != "PostStocks" || payload.Value != 107 {
		t.Errorf("payload = %+v", payload)
	}

	data, err := event.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("failed to parse JSON: %v", err)
	}
	params := parsed["params"].(map[string]interface{})
	if params["value"] != float64(107) {
		t.Errorf("value = %v, want 107", params["value"])
	}
}
