// Package websocket provides the WebSocket endpoints that attach browser
// clients to the stockchat hubs.
//
// Architecture:
//
//	┌──────────────────────────────────────────────────────┐
//	│              hub.Registry (per channel)              │
//	└───────────────┬──────────────────────┬───────────────┘
//	                │                      │
//	                ▼                      ▼
//	      ┌──────────────────┐   ┌──────────────────┐
//	      │ Endpoint (chat)  │   │ Endpoint (prices)│
//	      │ /livechat        │   │ /stocklisting    │
//	      └────────┬─────────┘   └────────┬─────────┘
//	               │                      │
//	        ┌──────┴──────┐        ┌──────┴──────┐
//	        ▼             ▼        ▼             ▼
//	    Client 1 ...  Client N  Client 1 ...  Client N
//
// Each Client manages:
//   - A goroutine for reading incoming frames (readPump)
//   - A goroutine for writing outgoing frames (writePump)
//   - Automatic ping/pong for connection health monitoring
//   - A bounded send buffer; frames are dropped when it is full
//
// Message Flow:
//   - Incoming: WebSocket → readPump → Endpoint.dispatch → Hub.Receive
//   - Outgoing: Registry broadcast → ClientSubscriber.Send → writePump → WebSocket
//
// Thread Safety:
//   - Send() is safe to call from any goroutine and never blocks
//   - Close() is safe to call multiple times
package websocket

import (
	"errors"
	"time"

	"github.com/brianly1003/stockchat/internal/domain"
	"github.com/brianly1003/stockchat/internal/sync"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum frame size allowed from peer. Chat bodies are capped far below this.
	maxMessageSize = 16 * 1024

	// Send buffer size per client.
	sendBufferSize = 256
)

// MessageHandler handles one inbound frame from a client.
type MessageHandler func(c *Client, message []byte)

// CloseHandler is called once when a client's connection ends. err is nil
// for a graceful close.
type CloseHandler func(id string, err error)

// Client represents a WebSocket client connection.
//
// Lifecycle:
//  1. Create with NewClient()
//  2. Start read/write pumps with Start()
//  3. Send frames with Send()
//  4. Close with Close() or wait for the peer to disconnect
type Client struct {
	id      string
	conn    *websocket.Conn
	send    chan []byte
	done    chan struct{}
	handler MessageHandler
	onClose CloseHandler

	mu     sync.Mutex
	closed bool
}

// NewClient creates a new WebSocket client with a fresh connection ID.
func NewClient(conn *websocket.Conn, handler MessageHandler, onClose CloseHandler) *Client {
	return &Client{
		id:      uuid.New().String(),
		conn:    conn,
		send:    make(chan []byte, sendBufferSize),
		done:    make(chan struct{}),
		handler: handler,
		onClose: onClose,
	}
}

// ID returns the client's unique identifier.
func (c *Client) ID() string {
	return c.id
}

// Start starts the client's read and write pumps.
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}

// Send queues a frame to be written to the client. It returns
// domain.ErrSubscriberClosed after Close and domain.ErrSubscriberSlow when
// the send buffer is full; the frame is dropped in both cases.
func (c *Client) Send(message []byte) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return domain.ErrSubscriberClosed
	}

	select {
	case c.send <- message:
		return nil
	default:
		return domain.ErrSubscriberSlow
	}
}

// Close closes the client connection.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	close(c.done)
}

// Done returns a channel that's closed when the client is closed.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// readPump pumps frames from the WebSocket connection to the handler.
func (c *Client) readPump() {
	var reason error
	defer func() {
		c.Close()
		_ = c.conn.Close()
		if c.onClose != nil {
			c.onClose(c.id, reason)
		}
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			reason = closeReason(err, c.isClosed())
			if reason != nil {
				log.Debug().Err(err).Str("client_id", c.id).Msg("websocket read error")
			}
			return
		}

		if c.handler != nil {
			c.handler(c, message)
		}
	}
}

// closeReason maps a read error to nil for graceful closes.
func closeReason(err error, closedLocally bool) error {
	if closedLocally {
		return nil
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return nil
	}
	if errors.Is(err, websocket.ErrCloseSent) {
		return nil
	}
	return err
}

// writePump pumps frames from the send channel to the WebSocket connection.
// Each frame carries exactly one JSON-RPC object.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		_ = c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			return

		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Debug().Err(err).Str("client_id", c.id).Msg("write error")
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug().Err(err).Str("client_id", c.id).Msg("ping error")
				return
			}
		}
	}
}
