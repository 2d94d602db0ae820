package websocket

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/brianly1003/stockchat/internal/domain"
	"github.com/brianly1003/stockchat/internal/domain/ports"
	"github.com/brianly1003/stockchat/internal/rpc/message"
	"github.com/brianly1003/stockchat/internal/security"
	"github.com/brianly1003/stockchat/internal/sync"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// MethodSendMessage is the only client method on a channel that accepts messages.
const MethodSendMessage = "SendMessage"

// AccessTokenParam is the query parameter browsers use to present a token,
// since they cannot set headers on the upgrade request.
const AccessTokenParam = "access_token"

// ChannelHub is the hub surface an endpoint drives.
type ChannelHub interface {
	Channel() string
	OnConnect(sub ports.Subscriber, principal *domain.Principal) error
	OnDisconnect(id string, reason error)
	Receive(ctx context.Context, id, raw string) error
}

// EndpointOptions configures an Endpoint.
type EndpointOptions struct {
	// RequireAuth rejects upgrades without a valid token.
	RequireAuth bool

	// CheckOrigin validates the Origin header. Nil allows every origin.
	CheckOrigin func(r *http.Request) bool
}

// Endpoint upgrades HTTP requests to WebSocket connections on one hub.
// Authorization happens here, before the hub sees the connection.
type Endpoint struct {
	hub         ChannelHub
	tokens      ports.TokenValidator
	requireAuth bool
	upgrader    websocket.Upgrader

	// ctx outlives individual requests and is cancelled by CloseAll.
	ctx    context.Context
	cancel context.CancelFunc

	// mu protects clients and closed. Once closed, no client is admitted.
	mu      sync.RWMutex
	clients map[string]*Client
	closed  bool
}

// NewEndpoint creates an endpoint for hub. tokens may be nil when
// RequireAuth is false.
func NewEndpoint(hub ChannelHub, tokens ports.TokenValidator, opts EndpointOptions) *Endpoint {
	checkOrigin := opts.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Endpoint{
		hub:         hub,
		tokens:      tokens,
		requireAuth: opts.RequireAuth,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		ctx:     ctx,
		cancel:  cancel,
		clients: make(map[string]*Client),
	}
}

// ServeHTTP authorizes and upgrades the request.
func (e *Endpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if e.isClosed() {
		writeJSONStatus(w, http.StatusServiceUnavailable, "Server is shutting down.")
		return
	}

	principal, ok := e.authorize(w, r)
	if !ok {
		return
	}

	conn, err := e.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error
		log.Warn().Err(err).Str("channel", e.hub.Channel()).Msg("failed to upgrade connection")
		return
	}

	client := NewClient(conn, e.dispatch, e.onClientClose)

	if err := e.hub.OnConnect(NewClientSubscriber(client), principal); err != nil {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, ""))
		_ = conn.Close()
		return
	}

	// CloseAll may have run while this upgrade was in flight.
	e.mu.Lock()
	closed := e.closed
	if !closed {
		e.clients[client.ID()] = client
	}
	e.mu.Unlock()

	if closed {
		// The pumps send the close frame and report the disconnect.
		client.Close()
		client.Start()
		return
	}

	log.Debug().
		Str("channel", e.hub.Channel()).
		Str("client_id", client.ID()).
		Str("remote_addr", conn.RemoteAddr().String()).
		Msg("websocket upgraded")

	client.Start()
}

// authorize resolves the principal for r, writing a 401 when the endpoint
// is gated and the token is missing or invalid. Ungated endpoints treat a
// bad token as anonymous.
func (e *Endpoint) authorize(w http.ResponseWriter, r *http.Request) (*domain.Principal, bool) {
	token := TokenFromRequest(r)

	if token == "" {
		if e.requireAuth {
			writeUnauthorized(w, "Missing access token.")
			return nil, false
		}
		return nil, true
	}

	if e.tokens == nil {
		if e.requireAuth {
			writeUnauthorized(w, "Invalid access token.")
			return nil, false
		}
		return nil, true
	}

	principal, err := e.tokens.ValidateToken(token)
	if err != nil {
		log.Debug().
			Err(err).
			Str("channel", e.hub.Channel()).
			Str("remote_addr", r.RemoteAddr).
			Msg("rejected access token")
		if e.requireAuth {
			writeUnauthorized(w, "Invalid access token.")
			return nil, false
		}
		return nil, true
	}
	return principal, true
}

// TokenFromRequest returns the bearer token from the access_token query
// parameter or the Authorization header.
func TokenFromRequest(r *http.Request) string {
	if token := r.URL.Query().Get(AccessTokenParam); token != "" {
		return token
	}
	return security.BearerToken(r)
}

func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="stockchat"`)
	writeJSONStatus(w, http.StatusUnauthorized, msg)
}

func writeJSONStatus(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": msg})
}

// dispatch handles one JSON-RPC frame from c. Errors are answered on the
// same connection; the connection is never closed here.
func (e *Endpoint) dispatch(c *Client, data []byte) {
	req, err := message.ParseRequest(data)
	if err != nil {
		code := message.ErrParseError()
		if json.Valid(data) {
			code = message.NewError(message.InvalidRequest, "invalid request")
		}
		e.reply(c, message.NewErrorResponse(nil, code))
		return
	}

	var rpcErr *message.Error
	switch req.Method {
	case MethodSendMessage:
		rpcErr = e.handleSendMessage(c, req)
	default:
		rpcErr = message.ErrMethodNotFound(req.Method)
	}

	if req.IsNotification() {
		return
	}

	if rpcErr != nil {
		e.reply(c, message.NewErrorResponse(req.ID, rpcErr))
		return
	}

	resp, err := message.NewSuccessResponse(req.ID, struct{}{})
	if err != nil {
		log.Error().Err(err).Msg("failed to build response")
		return
	}
	e.reply(c, resp)
}

func (e *Endpoint) handleSendMessage(c *Client, req *message.Request) *message.Error {
	body, err := message.PositionalString(req.Params, "body")
	if err != nil {
		return message.ErrInvalidParams(err.Error())
	}

	if err := e.hub.Receive(e.ctx, c.ID(), body); err != nil {
		return message.FromClientError(err)
	}
	return nil
}

func (e *Endpoint) reply(c *Client, resp *message.Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal response")
		return
	}
	if err := c.Send(data); err != nil {
		log.Debug().Err(err).Str("client_id", c.ID()).Msg("failed to queue response")
	}
}

func (e *Endpoint) onClientClose(id string, reason error) {
	e.mu.Lock()
	delete(e.clients, id)
	e.mu.Unlock()

	e.hub.OnDisconnect(id, reason)
}

// ClientCount returns the number of connected clients.
func (e *Endpoint) ClientCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.clients)
}

func (e *Endpoint) isClosed() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.closed
}

// CloseAll closes every client connection and cancels in-flight receives.
// Later upgrades are refused.
func (e *Endpoint) CloseAll() {
	e.cancel()

	e.mu.Lock()
	e.closed = true
	clients := make([]*Client, 0, len(e.clients))
	for _, c := range e.clients {
		clients = append(clients, c)
	}
	e.mu.Unlock()

	for _, c := range clients {
		c.Close()
	}

	log.Info().
		Str("channel", e.hub.Channel()).
		Int("clients", len(clients)).
		Msg("websocket endpoint closed")
}
