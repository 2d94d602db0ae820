package testutil

import (
	"errors"
	"testing"

	"github.com/brianly1003/stockchat/internal/domain"
	"github.com/brianly1003/stockchat/internal/domain/events"
)

func TestMockSubscriber_Send(t *testing.T) {
	sub := NewMockSubscriber("test-sub")

	if err := sub.Send(events.NewReceiveMessageEvent("alice", "hi")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sub.EventCount() != 1 {
		t.Fatalf("expected 1 event, got %d", sub.EventCount())
	}
	if sub.Events()[0].Type() != events.EventTypeReceiveMessage {
		t.Errorf("unexpected event type %s", sub.Events()[0].Type())
	}
}

func TestMockSubscriber_SendWithError(t *testing.T) {
	sub := NewMockSubscriber("test-sub")
	expectedErr := errors.New("send failed")
	sub.SetSendError(expectedErr)

	if err := sub.Send(events.NewReceiveMessageEvent("alice", "hi")); err != expectedErr {
		t.Errorf("expected error %v, got %v", expectedErr, err)
	}
	if sub.EventCount() != 0 {
		t.Errorf("event should not be recorded on error, got %d", sub.EventCount())
	}
}

func TestMockSubscriber_SendAfterClose(t *testing.T) {
	sub := NewMockSubscriber("test-sub")
	_ = sub.Close()
	_ = sub.Close()

	select {
	case <-sub.Done():
	default:
		t.Fatal("Done channel should be closed")
	}

	err := sub.Send(events.NewReceiveMessageEvent("alice", "hi"))
	if !errors.Is(err, domain.ErrSubscriberClosed) {
		t.Errorf("expected ErrSubscriberClosed, got %v", err)
	}
}

func TestMockPusher(t *testing.T) {
	p := NewMockPusher(3)

	n := p.Push(events.NewPostStocksEvent(events.PriceTick{Label: "PostStocks", Value: 105}))
	if n != 3 {
		t.Errorf("Push returned %d, want 3", n)
	}
	if p.Count() != 1 {
		t.Errorf("Count = %d, want 1", p.Count())
	}

	select {
	case e := <-p.Pushed():
		if e.Type() != events.EventTypePostStocks {
			t.Errorf("unexpected event type %s", e.Type())
		}
	default:
		t.Error("expected event on Pushed channel")
	}
}

func TestAssertContains(t *testing.T) {
	AssertContains(t, "Message too long (max 500 characters).", "max 500", "contains")
}
