package api

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/doorkeeper-core/internal/auth"
	"github.com/nerrad567/doorkeeper-core/internal/door"
	"github.com/nerrad567/doorkeeper-core/internal/infrastructure/config"
	"github.com/nerrad567/doorkeeper-core/internal/infrastructure/logging"
)

// WebSocket message types.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeSnapshot    = "snapshot"
	WSTypeResponse    = "response"
	WSTypeError       = "error"
)

// Broadcast channels clients can subscribe to. New connections start
// subscribed to ChannelDoorState.
const (
	ChannelDoorState = "door.state_changed"
	ChannelDoorbell  = "doorbell.pressed"
)

// wsSendBufferSize is the per-client outbound message buffer size.
const wsSendBufferSize = 64

// WSMessage is a message sent to or received from a WebSocket client.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// wsChannelsPayload is the payload of subscribe and unsubscribe messages.
type wsChannelsPayload struct {
	Channels []string `json:"channels"`
}

// Hub tracks connected WebSocket clients and fans events out to them.
type Hub struct {
	cfg     config.WebSocketConfig
	logger  *logging.Logger
	clients map[*WSClient]struct{}
	mu      sync.RWMutex
}

// WSClient is one connected WebSocket client.
type WSClient struct {
	hub           *Hub
	conn          *websocket.Conn
	send          chan []byte
	subscriptions map[string]struct{}
	mu            sync.RWMutex

	// Identity carried over from the ticket.
	email string
	role  auth.Role
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Origin checking is handled by CORS middleware
		return true
	},
}

// NewHub creates a new WebSocket hub.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*WSClient]struct{}),
	}
}

// Run blocks until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// Register adds a client to the hub.
func (h *Hub) Register(client *WSClient) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug("websocket client connected", "email", client.email, "clients", n)
}

// Unregister removes a client from the hub. Only the caller that actually
// removes the client closes its send channel.
func (h *Hub) Unregister(client *WSClient) {
	h.mu.Lock()
	_, existed := h.clients[client]
	delete(h.clients, client)
	n := len(h.clients)
	h.mu.Unlock()

	if existed {
		close(client.send)
		h.logger.Debug("websocket client disconnected", "email", client.email, "clients", n)
	}
}

// Broadcast sends an event to every client subscribed to channel.
// Slow clients whose buffers are full miss the event.
func (h *Hub) Broadcast(channel string, payload any) {
	data, err := encodeWSMessage(WSMessage{
		Type:      WSTypeEvent,
		EventType: channel,
		Payload:   payload,
	})
	if err != nil {
		h.logger.Error("failed to marshal broadcast message", "channel", channel, "error", err)
		return
	}

	h.mu.RLock()
	clients := make([]*WSClient, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, client := range clients {
		if client.isSubscribed(channel) && client.trySend(data) {
			delivered++
		}
	}
	h.logger.Debug("broadcast sent", "channel", channel, "recipients", delivered)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.send)
		if client.conn != nil {
			client.conn.Close()
		}
		delete(h.clients, client)
	}
}

// newWSClient creates a client subscribed to door state changes.
func newWSClient(hub *Hub, conn *websocket.Conn, entry ticketEntry) *WSClient {
	return &WSClient{
		hub:           hub,
		conn:          conn,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: map[string]struct{}{ChannelDoorState: {}},
		email:         entry.email,
		role:          entry.role,
	}
}

// broadcastTransition relays a completed door toggle to subscribed clients.
func (s *Server) broadcastTransition(t door.Transition) {
	s.hub.Broadcast(ChannelDoorState, t)
}

// broadcastPress relays a doorbell press to subscribed clients.
func (s *Server) broadcastPress(p door.Press) {
	s.hub.Broadcast(ChannelDoorbell, p)
}

// handleWebSocket upgrades the connection of a client holding a ticket
// from POST /ws-ticket and sends it the current door state.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ticket := r.URL.Query().Get("ticket")
	if ticket == "" {
		writeUnauthorized(w, "ticket query parameter is required")
		return
	}
	entry, ok := s.tickets.consume(ticket)
	if !ok {
		writeUnauthorized(w, "invalid or expired ticket")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := newWSClient(s.hub, conn, entry)
	s.hub.Register(client)

	if state, err := s.door.State(r.Context()); err == nil {
		client.sendMessage(WSMessage{
			Type:      WSTypeSnapshot,
			EventType: ChannelDoorState,
			Payload:   map[string]door.State{"door": state},
		})
	}

	go client.writePump(s.wsCfg)
	go client.readPump(s.wsCfg)
}

// readPump reads client messages until the connection fails.
func (c *WSClient) readPump(cfg config.WebSocketConfig) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	deadline := time.Duration(cfg.PingInterval+cfg.PongTimeout) * time.Second
	extend := func() error {
		return c.conn.SetReadDeadline(time.Now().Add(deadline))
	}

	c.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	//nolint:errcheck // Best-effort deadline on connection setup
	extend()
	c.conn.SetPongHandler(func(string) error { return extend() })

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "email", c.email, "error", err)
			}
			return
		}
		// Browsers do not always answer protocol pings; any message counts.
		//nolint:errcheck // Best-effort deadline reset
		extend()
		c.handleMessage(message)
	}
}

// writePump drains the send channel and keeps the connection alive with pings.
func (c *WSClient) writePump(cfg config.WebSocketConfig) {
	ticker := time.NewTicker(time.Duration(cfg.PingInterval) * time.Second)
	writeWait := time.Duration(cfg.PongTimeout) * time.Second
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				//nolint:errcheck // Best-effort close message
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			//nolint:errcheck // Best-effort deadline; write error caught below
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			//nolint:errcheck // Best-effort deadline; ping error caught below
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *WSClient) handleMessage(data []byte) {
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError("", "invalid JSON message")
		return
	}

	switch msg.Type {
	case WSTypeSubscribe, WSTypeUnsubscribe:
		channels, err := decodeChannels(msg.Payload)
		if err != nil {
			c.sendError(msg.ID, "invalid "+msg.Type+" payload")
			return
		}
		c.setSubscribed(channels, msg.Type == WSTypeSubscribe)
		c.sendMessage(WSMessage{
			Type:    WSTypeResponse,
			ID:      msg.ID,
			Payload: map[string]any{msg.Type + "d": channels},
		})
	case WSTypePing:
		c.sendMessage(WSMessage{Type: WSTypePong, ID: msg.ID})
	default:
		c.sendError(msg.ID, "unknown message type: "+msg.Type)
	}
}

// decodeChannels extracts the channel list from a generic payload.
func decodeChannels(payload any) ([]string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	var p wsChannelsPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	return slices.Compact(slices.Sorted(slices.Values(p.Channels))), nil
}

func (c *WSClient) setSubscribed(channels []string, on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range channels {
		if on {
			c.subscriptions[ch] = struct{}{}
		} else {
			delete(c.subscriptions, ch)
		}
	}
}

func (c *WSClient) isSubscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.subscriptions[channel]
	return ok
}

// trySend queues data without blocking. It reports false when the buffer
// is full or the client has already been unregistered.
func (c *WSClient) trySend(data []byte) (sent bool) {
	defer func() {
		if recover() != nil { // send on closed channel
			sent = false
		}
	}()

	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *WSClient) sendMessage(msg WSMessage) {
	data, err := encodeWSMessage(msg)
	if err != nil {
		return
	}
	c.trySend(data)
}

func (c *WSClient) sendError(id, message string) {
	c.sendMessage(WSMessage{Type: WSTypeError, ID: id, Payload: map[string]string{"message": message}})
}

// encodeWSMessage stamps msg with the current time and marshals it.
func encodeWSMessage(msg WSMessage) ([]byte, error) {
	msg.Timestamp = time.Now().UTC().Format(time.RFC3339)
	return json.Marshal(msg)
}
