// Package testutil provides shared test doubles and assertion helpers for stockchat tests.
package testutil

import (
	"strings"
	"sync"
	"testing"

	"github.com/brianly1003/stockchat/internal/domain"
	"github.com/brianly1003/stockchat/internal/domain/events"
	"github.com/brianly1003/stockchat/internal/domain/ports"
)

// MockSubscriber implements ports.Subscriber for testing.
type MockSubscriber struct {
	id       string
	events   []events.Event
	mu       sync.Mutex
	closed   bool
	sendErr  error
	sendFunc func(events.Event) error
	done     chan struct{}
}

// NewMockSubscriber creates a new mock subscriber.
func NewMockSubscriber(id string) *MockSubscriber {
	return &MockSubscriber{
		id:   id,
		done: make(chan struct{}),
	}
}

// ID returns the subscriber ID.
func (m *MockSubscriber) ID() string {
	return m.id
}

// Send records the event. A closed mock reports domain.ErrSubscriberClosed
// the way a real connection does.
func (m *MockSubscriber) Send(e events.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sendFunc != nil {
		return m.sendFunc(e)
	}
	if m.closed {
		return domain.ErrSubscriberClosed
	}
	if m.sendErr != nil {
		return m.sendErr
	}

	m.events = append(m.events, e)
	return nil
}

// Close marks the subscriber as closed.
func (m *MockSubscriber) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.done)
	}
	return nil
}

// Done returns a channel that's closed when the subscriber is done.
func (m *MockSubscriber) Done() <-chan struct{} {
	return m.done
}

// Events returns all received events.
func (m *MockSubscriber) Events() []events.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]events.Event, len(m.events))
	copy(result, m.events)
	return result
}

// EventCount returns the number of received events.
func (m *MockSubscriber) EventCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

// IsClosed returns whether the subscriber was closed.
func (m *MockSubscriber) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// SetSendError configures an error to return on Send.
func (m *MockSubscriber) SetSendError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendErr = err
}

// SetSendFunc sets a custom function for Send behavior.
func (m *MockSubscriber) SetSendFunc(fn func(events.Event) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendFunc = fn
}

// Ensure MockSubscriber implements ports.Subscriber.
var _ ports.Subscriber = (*MockSubscriber)(nil)

// MockPusher implements ports.Pusher and records every pushed event.
type MockPusher struct {
	mu        sync.Mutex
	events    []events.Event
	delivered int
	notify    chan events.Event
}

// NewMockPusher creates a pusher that reports delivered for every push.
// Pushed events are also sent on Pushed() without blocking.
func NewMockPusher(delivered int) *MockPusher {
	return &MockPusher{
		delivered: delivered,
		notify:    make(chan events.Event, 64),
	}
}

// Push records the event.
func (m *MockPusher) Push(e events.Event) int {
	m.mu.Lock()
	m.events = append(m.events, e)
	m.mu.Unlock()

	select {
	case m.notify <- e:
	default:
	}
	return m.delivered
}

// Pushed returns a channel receiving pushed events.
func (m *MockPusher) Pushed() <-chan events.Event {
	return m.notify
}

// Events returns all pushed events.
func (m *MockPusher) Events() []events.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]events.Event, len(m.events))
	copy(result, m.events)
	return result
}

// Count returns the number of pushed events.
func (m *MockPusher) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

// Ensure MockPusher implements ports.Pusher.
var _ ports.Pusher = (*MockPusher)(nil)

// AssertEqual is a simple equality assertion helper.
func AssertEqual(t *testing.T, expected, actual interface{}, msg string) {
	t.Helper()
	if expected != actual {
		t.Errorf("%s: expected %v, got %v", msg, expected, actual)
	}
}

// AssertTrue asserts that a condition is true.
func AssertTrue(t *testing.T, condition bool, msg string) {
	t.Helper()
	if !condition {
		t.Errorf("%s: expected true, got false", msg)
	}
}

// AssertFalse asserts that a condition is false.
func AssertFalse(t *testing.T, condition bool, msg string) {
	t.Helper()
	if condition {
		t.Errorf("%s: expected false, got true", msg)
	}
}

// AssertNoError asserts that an error is nil.
func AssertNoError(t *testing.T, err error, msg string) {
	t.Helper()
	if err != nil {
		t.Errorf("%s: unexpected error: %v", msg, err)
	}
}

// AssertError asserts that an error is not nil.
func AssertError(t *testing.T, err error, msg string) {
	t.Helper()
	if err == nil {
		t.Errorf("%s: expected error, got nil", msg)
	}
}

// AssertContains checks if a string contains a substring.
func AssertContains(t *testing.T, s, substr, msg string) {
	t.Helper()
	if !strings.Contains(s, substr) {
		t.Errorf("%s: string %q does not contain %q", msg, s, substr)
	}
}
