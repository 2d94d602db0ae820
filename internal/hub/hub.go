// Package hub implements the per-channel broadcast hubs for stockchat.
//
// A Hub binds one channel of a shared Registry to an optional Validator.
// Client messages enter through Receive and are validated before broadcast;
// server events enter through Push and go straight to every connection.
// Sender is included in chat broadcasts so every client renders from the
// same authoritative stream.
package hub

import (
	"context"
	"fmt"

	"github.com/brianly1003/stockchat/internal/domain"
	"github.com/brianly1003/stockchat/internal/domain/events"
	"github.com/brianly1003/stockchat/internal/domain/ports"
	"github.com/rs/zerolog/log"
)

// Channel names.
const (
	ChannelChat   = "chat"
	ChannelPrices = "prices"
)

// Hub is the protocol surface for one channel.
type Hub struct {
	channel   string
	registry  *Registry
	validator *Validator
}

// Option configures a Hub.
type Option func(*Hub)

// WithValidator enables client messages on the hub.
func WithValidator(v *Validator) Option {
	return func(h *Hub) {
		h.validator = v
	}
}

// New creates a hub bound to channel on registry. Without WithValidator the
// hub is push-only.
func New(channel string, registry *Registry, opts ...Option) *Hub {
	h := &Hub{
		channel:  channel,
		registry: registry,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Channel returns the channel name.
func (h *Hub) Channel() string {
	return h.channel
}

// AcceptsMessages reports whether clients may send on this hub.
func (h *Hub) AcceptsMessages() bool {
	return h.validator != nil
}

// OnConnect records an already authorized connection.
func (h *Hub) OnConnect(sub ports.Subscriber, principal *domain.Principal) error {
	name := principal.DisplayName()

	if err := h.registry.Add(h.channel, sub, name); err != nil {
		log.Error().
			Str("channel", h.channel).
			Str("connection_id", sub.ID()).
			Err(err).
			Msg("failed to register connection")
		return err
	}

	log.Info().
		Str("channel", h.channel).
		Str("connection_id", sub.ID()).
		Str("principal", name).
		Msg("client connected")
	return nil
}

// OnDisconnect removes the connection. reason is nil for a graceful close;
// cleanup is identical either way.
func (h *Hub) OnDisconnect(id string, reason error) {
	h.registry.Remove(h.channel, id)

	if reason != nil {
		log.Warn().
			Str("channel", h.channel).
			Str("connection_id", id).
			Err(reason).
			Msg("client disconnected with error")
		return
	}

	log.Info().
		Str("channel", h.channel).
		Str("connection_id", id).
		Msg("client disconnected")
}

// Receive handles a message sent by connection id. Validation failures are
// returned as-is; any other failure is logged and replaced by the generic
// send failure so internal details never reach the client.
func (h *Hub) Receive(ctx context.Context, id, raw string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = h.internalFault(id, fmt.Errorf("panic: %v", r))
		}
	}()

	if h.validator == nil {
		return h.internalFault(id, domain.ErrReceiveNotSupported)
	}
	if err := ctx.Err(); err != nil {
		return h.internalFault(id, err)
	}

	conn, ok := h.registry.Lookup(h.channel, id)
	if !ok {
		return h.internalFault(id, fmt.Errorf("%w: %s", domain.ErrUnknownConnection, id))
	}

	body, err := h.validator.Validate(raw)
	if err != nil {
		log.Debug().
			Str("channel", h.channel).
			Str("connection_id", id).
			Err(err).
			Msg("message rejected")
		return err
	}

	delivered := h.registry.BroadcastAll(h.channel, events.NewReceiveMessageEvent(conn.Principal, body))

	log.Debug().
		Str("channel", h.channel).
		Str("connection_id", id).
		Str("sender", conn.Principal).
		Int("delivered", delivered).
		Msg("message broadcast")
	return nil
}

// Push broadcasts a trusted server event. It skips validation.
func (h *Hub) Push(event events.Event) int {
	return h.registry.BroadcastAll(h.channel, event)
}

// ConnectionCount returns the number of connections on the hub's channel.
func (h *Hub) ConnectionCount() int {
	return h.registry.Count(h.channel)
}

func (h *Hub) internalFault(id string, err error) error {
	log.Error().
		Str("channel", h.channel).
		Str("connection_id", id).
		Err(err).
		Msg("failed to handle message")
	return domain.NewClientError(domain.ErrCodeSendFailed, domain.MsgSendFailed, err)
}

// Ensure Hub implements ports.Pusher.
var _ ports.Pusher = (*Hub)(nil)
