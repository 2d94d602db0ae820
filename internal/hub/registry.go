package hub

import (
	"errors"
	"fmt"
	"time"

	"github.com/brianly1003/stockchat/internal/domain"
	"github.com/brianly1003/stockchat/internal/domain/events"
	"github.com/brianly1003/stockchat/internal/domain/ports"
	"github.com/brianly1003/stockchat/internal/sync"
	"github.com/rs/zerolog/log"
)

// Connection is one live subscriber registered on a channel.
type Connection struct {
	ID          string
	Principal   string
	Channel     string
	ConnectedAt time.Time

	sub ports.Subscriber
}

// Registry tracks live connections per channel. It is the only owner of
// connection references; everything else goes through Add and Remove.
type Registry struct {
	// channels maps channel name -> connection ID -> connection
	channels map[string]map[string]*Connection

	// mu protects channels
	mu sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		channels: make(map[string]map[string]*Connection),
	}
}

// Add registers sub on channel under sub.ID(). An empty principal is
// recorded as domain.AnonymousPrincipal. Existing entries are never overwritten.
func (r *Registry) Add(channel string, sub ports.Subscriber, principal string) error {
	if sub == nil {
		return fmt.Errorf("add to %s: nil subscriber", channel)
	}
	if principal == "" {
		principal = domain.AnonymousPrincipal
	}

	id := sub.ID()

	r.mu.Lock()
	defer r.mu.Unlock()

	conns, ok := r.channels[channel]
	if !ok {
		conns = make(map[string]*Connection)
		r.channels[channel] = conns
	}
	if _, exists := conns[id]; exists {
		return fmt.Errorf("%w: %s on %s", domain.ErrDuplicateConnection, id, channel)
	}

	conns[id] = &Connection{
		ID:          id,
		Principal:   principal,
		Channel:     channel,
		ConnectedAt: time.Now(),
		sub:         sub,
	}
	return nil
}

// Remove unregisters a connection. Removing an absent connection is a no-op.
// It reports whether a connection was removed.
func (r *Registry) Remove(channel, id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns, ok := r.channels[channel]
	if !ok {
		return false
	}
	if _, ok := conns[id]; !ok {
		return false
	}

	delete(conns, id)
	if len(conns) == 0 {
		delete(r.channels, channel)
	}
	return true
}

// Lookup returns a copy of the connection registered under id on channel.
func (r *Registry) Lookup(channel, id string) (Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.channels[channel][id]
	if !ok {
		return Connection{}, false
	}
	return *conn, true
}

// Count returns the number of connections on channel.
func (r *Registry) Count(channel string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels[channel])
}

// Counts returns the connection count of every non-empty channel.
func (r *Registry) Counts() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[string]int, len(r.channels))
	for name, conns := range r.channels {
		counts[name] = len(conns)
	}
	return counts
}

// BroadcastAll delivers event to every connection on channel and returns the
// number of successful deliveries.
func (r *Registry) BroadcastAll(channel string, event events.Event) int {
	return r.broadcast(channel, "", event)
}

// BroadcastExceptSender delivers event to every connection on channel except senderID.
func (r *Registry) BroadcastExceptSender(channel, senderID string, event events.Event) int {
	return r.broadcast(channel, senderID, event)
}

// snapshot copies the current target set so delivery happens outside the lock.
// Connections added after this point do not see the broadcast.
func (r *Registry) snapshot(channel, except string) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := r.channels[channel]
	targets := make([]*Connection, 0, len(conns))
	for id, conn := range conns {
		if id == except {
			continue
		}
		targets = append(targets, conn)
	}
	return targets
}

func (r *Registry) broadcast(channel, except string, event events.Event) int {
	targets := r.snapshot(channel, except)

	delivered := 0
	for _, conn := range targets {
		// Send never blocks: each subscriber owns a bounded queue.
		if err := conn.sub.Send(event); err != nil {
			log.Warn().
				Str("channel", channel).
				Str("connection_id", conn.ID).
				Str("event_type", string(event.Type())).
				Err(err).
				Msg("failed to deliver event")

			if errors.Is(err, domain.ErrSubscriberClosed) {
				r.Remove(channel, conn.ID)
			}
			continue
		}
		delivered++
	}

	log.Trace().
		Str("channel", channel).
		Str("event_type", string(event.Type())).
		Int("targets", len(targets)).
		Int("delivered", delivered).
		Msg("event broadcast")

	return delivered
}
