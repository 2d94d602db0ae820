package hub

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/brianly1003/stockchat/internal/domain"
	"github.com/brianly1003/stockchat/internal/domain/events"
	"github.com/brianly1003/stockchat/internal/testutil"
)

func TestRegistry_AddRemove(t *testing.T) {
	r := NewRegistry()
	sub := testutil.NewMockSubscriber("c1")

	if err := r.Add(ChannelChat, sub, "alice"); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if r.Count(ChannelChat) != 1 {
		t.Errorf("Count = %d, want 1", r.Count(ChannelChat))
	}

	conn, ok := r.Lookup(ChannelChat, "c1")
	if !ok {
		t.Fatal("Lookup() did not find c1")
	}
	if conn.Principal != "alice" || conn.Channel != ChannelChat {
		t.Errorf("unexpected connection %+v", conn)
	}

	if !r.Remove(ChannelChat, "c1") {
		t.Error("first Remove() should report true")
	}
	if r.Remove(ChannelChat, "c1") {
		t.Error("second Remove() should be a no-op")
	}
	if r.Remove("missing", "c1") {
		t.Error("Remove() on unknown channel should be a no-op")
	}
	if r.Count(ChannelChat) != 0 {
		t.Errorf("Count = %d, want 0", r.Count(ChannelChat))
	}
}

func TestRegistry_AddDuplicate(t *testing.T) {
	r := NewRegistry()
	sub := testutil.NewMockSubscriber("c1")

	_ = r.Add(ChannelChat, sub, "alice")
	err := r.Add(ChannelChat, sub, "bob")
	if !errors.Is(err, domain.ErrDuplicateConnection) {
		t.Fatalf("expected ErrDuplicateConnection, got %v", err)
	}

	conn, _ := r.Lookup(ChannelChat, "c1")
	if conn.Principal != "alice" {
		t.Errorf("duplicate Add() overwrote principal: %s", conn.Principal)
	}

	// Same ID on another channel is a separate entry
	if err := r.Add(ChannelPrices, sub, "alice"); err != nil {
		t.Errorf("Add() on other channel error = %v", err)
	}
}

func TestRegistry_AnonymousPrincipal(t *testing.T) {
	r := NewRegistry()
	_ = r.Add(ChannelPrices, testutil.NewMockSubscriber("c1"), "")

	conn, _ := r.Lookup(ChannelPrices, "c1")
	if conn.Principal != domain.AnonymousPrincipal {
		t.Errorf("Principal = %q, want %q", conn.Principal, domain.AnonymousPrincipal)
	}
}

func TestRegistry_BroadcastChannelIsolation(t *testing.T) {
	r := NewRegistry()
	chat := testutil.NewMockSubscriber("chat-1")
	prices := testutil.NewMockSubscriber("prices-1")
	_ = r.Add(ChannelChat, chat, "alice")
	_ = r.Add(ChannelPrices, prices, "alice")

	n := r.BroadcastAll(ChannelPrices, events.NewPostStocksEvent(events.PriceTick{Label: "PostStocks", Value: 101}))
	if n != 1 {
		t.Errorf("delivered = %d, want 1", n)
	}
	if chat.EventCount() != 0 {
		t.Error("chat connection received a prices event")
	}
	if prices.EventCount() != 1 {
		t.Errorf("prices connection got %d events, want 1", prices.EventCount())
	}
}

func TestRegistry_BroadcastExceptSender(t *testing.T) {
	r := NewRegistry()
	subs := make([]*testutil.MockSubscriber, 3)
	for i := range subs {
		subs[i] = testutil.NewMockSubscriber(fmt.Sprintf("c%d", i))
		_ = r.Add(ChannelChat, subs[i], "user")
	}

	n := r.BroadcastExceptSender(ChannelChat, "c0", events.NewReceiveMessageEvent("user", "hi"))
	if n != 2 {
		t.Errorf("delivered = %d, want 2", n)
	}
	if subs[0].EventCount() != 0 {
		t.Error("sender should be excluded")
	}
}

func TestRegistry_BroadcastDropsClosedSubscriber(t *testing.T) {
	r := NewRegistry()
	live := testutil.NewMockSubscriber("live")
	gone := testutil.NewMockSubscriber("gone")
	slow := testutil.NewMockSubscriber("slow")
	_ = r.Add(ChannelChat, live, "a")
	_ = r.Add(ChannelChat, gone, "b")
	_ = r.Add(ChannelChat, slow, "c")
	_ = gone.Close()
	slow.SetSendError(domain.ErrSubscriberSlow)

	n := r.BroadcastAll(ChannelChat, events.NewReceiveMessageEvent("a", "hi"))
	if n != 1 {
		t.Errorf("delivered = %d, want 1", n)
	}
	if _, ok := r.Lookup(ChannelChat, "gone"); ok {
		t.Error("closed subscriber should be removed")
	}
	if _, ok := r.Lookup(ChannelChat, "slow"); !ok {
		t.Error("slow subscriber should stay registered")
	}
}

func TestRegistry_BroadcastEmptyChannel(t *testing.T) {
	r := NewRegistry()
	if n := r.BroadcastAll(ChannelChat, events.NewReceiveMessageEvent("a", "hi")); n != 0 {
		t.Errorf("delivered = %d, want 0", n)
	}
}

func TestRegistry_Counts(t *testing.T) {
	r := NewRegistry()
	_ = r.Add(ChannelChat, testutil.NewMockSubscriber("a"), "x")
	_ = r.Add(ChannelChat, testutil.NewMockSubscriber("b"), "x")
	_ = r.Add(ChannelPrices, testutil.NewMockSubscriber("c"), "x")

	counts := r.Counts()
	if counts[ChannelChat] != 2 || counts[ChannelPrices] != 1 {
		t.Errorf("unexpected counts %v", counts)
	}
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("c%d", i)
			_ = r.Add(ChannelChat, testutil.NewMockSubscriber(id), "user")
			r.Remove(ChannelChat, id)
		}(i)
		go func() {
			defer wg.Done()
			r.BroadcastAll(ChannelChat, events.NewReceiveMessageEvent("user", "hi"))
		}()
	}
	wg.Wait()

	if r.Count(ChannelChat) != 0 {
		t.Errorf("Count = %d, want 0", r.Count(ChannelChat))
	}
}
