package server

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/wendellddr/Bot-Spotify-sub000/core/music"
	"github.com/wendellddr/Bot-Spotify-sub000/logger"
)

// MessageType identifies a WebSocket message.
type MessageType string

const (
	MsgTypeQueue MessageType = "queue" // Queue snapshot, data is null once the queue is gone
	MsgTypePing  MessageType = "ping"
	MsgTypePong  MessageType = "pong"
	MsgTypeError MessageType = "error"
)

const (
	sendBufferSize = 16
	readLimit      = 4096
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	writeWait      = 10 * time.Second
)

// WSMessage is the envelope of every WebSocket frame.
type WSMessage struct {
	Type      MessageType     `json:"type"`
	GuildID   string          `json:"guildId,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// Presence records which dashboard users watch a guild.
type Presence interface {
	Touch(ctx context.Context, guildID, userID string) error
	Remove(ctx context.Context, guildID, userID string) error
}

// Client is one dashboard WebSocket connection.
type Client struct {
	ID      string
	Hub     *Hub
	Conn    *websocket.Conn
	Send    chan []byte
	GuildID string
	UserID  string
}

// Hub fans queue snapshots out to the sockets watching each guild.
type Hub struct {
	guilds map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *broadcastMessage

	presence Presence

	mu   sync.RWMutex
	done chan struct{}
	once sync.Once
}

type broadcastMessage struct {
	GuildID string
	Message []byte
}

// NewHub creates a hub. presence may be nil.
func NewHub(presence Presence) *Hub {
	return &Hub{
		guilds:     make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *broadcastMessage, 256),
		presence:   presence,
		done:       make(chan struct{}),
	}
}

// NewClient wraps conn for guildID.
func (h *Hub) NewClient(conn *websocket.Conn, guildID, userID string) *Client {
	return &Client{
		ID:      uuid.NewString(),
		Hub:     h,
		Conn:    conn,
		Send:    make(chan []byte, sendBufferSize),
		GuildID: guildID,
		UserID:  userID,
	}
}

// Run is the hub main loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.mu.Lock()
			h.removeClient(client)
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.broadcastToGuild(msg)

		case <-h.done:
			h.cleanup()
			return
		}
	}
}

// Stop stops the hub and closes every client.
func (h *Hub) Stop() {
	h.once.Do(func() { close(h.done) })
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	if h.guilds[client.GuildID] == nil {
		h.guilds[client.GuildID] = make(map[*Client]bool)
	}
	h.guilds[client.GuildID][client] = true
	h.mu.Unlock()

	h.touch(client)
	logger.Info("dashboard client registered",
		logger.Guild(client.GuildID),
		logger.String("user", client.UserID),
		logger.String("client", client.ID))
}

// removeClient must be called with h.mu held.
func (h *Hub) removeClient(client *Client) {
	clients, ok := h.guilds[client.GuildID]
	if !ok || !clients[client] {
		return
	}
	delete(clients, client)
	close(client.Send)
	if len(clients) == 0 {
		delete(h.guilds, client.GuildID)
	}

	if h.presence != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := h.presence.Remove(ctx, client.GuildID, client.UserID); err != nil {
			logger.Warn("failed to remove viewer presence", logger.Guild(client.GuildID), logger.ErrorField(err))
		}
	}

	logger.Info("dashboard client unregistered",
		logger.Guild(client.GuildID),
		logger.String("client", client.ID))
}

func (h *Hub) broadcastToGuild(msg *broadcastMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.guilds[msg.GuildID] {
		select {
		case client.Send <- msg.Message:
		default:
			// Slow consumer; the socket is closed and the client can reconnect.
			h.removeClient(client)
		}
	}
}

func (h *Hub) cleanup() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, clients := range h.guilds {
		for client := range clients {
			close(client.Send)
		}
	}
	h.guilds = make(map[string]map[*Client]bool)
}

func (h *Hub) touch(client *Client) {
	if h.presence == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.presence.Touch(ctx, client.GuildID, client.UserID); err != nil {
		logger.Warn("failed to update viewer presence", logger.Guild(client.GuildID), logger.ErrorField(err))
	}
}

// Register adds client to its guild.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

// Unregister removes client.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// ClientCount returns the number of sockets watching guildID.
func (h *Hub) ClientCount(guildID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.guilds[guildID])
}

// QueueChanged implements music.Observer. It never blocks the engine: when
// the broadcast buffer is full the update is dropped, and the next one
// carries the full state anyway.
func (h *Hub) QueueChanged(guildID string, snap *music.Snapshot) {
	data, err := encodeMessage(MsgTypeQueue, guildID, snap)
	if err != nil {
		logger.Warn("failed to encode snapshot", logger.Guild(guildID), logger.ErrorField(err))
		return
	}

	select {
	case h.broadcast <- &broadcastMessage{GuildID: guildID, Message: data}:
	default:
		logger.Warn("dashboard broadcast buffer full, dropping update", logger.Guild(guildID))
	}
}

func encodeMessage(t MessageType, guildID string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(&WSMessage{
		Type:      t,
		GuildID:   guildID,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	})
}

// ========== Client methods ==========

// ReadPump reads until the socket closes. Clients only send pings.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(readLimit)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("websocket read error",
					logger.ErrorField(err),
					logger.Guild(c.GuildID),
					logger.String("client", c.ID))
			}
			return
		}

		var msg WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			logger.Warn("invalid message format", logger.ErrorField(err), logger.Guild(c.GuildID))
			continue
		}

		if msg.Type == MsgTypePing {
			c.Hub.touch(c)
			c.SendMessage(MsgTypePong, nil)
		}
	}
}

// WritePump writes queued frames and keeps the connection alive.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendMessage queues a message for this client only. Full buffers drop it,
// as do clients the hub has already released.
func (c *Client) SendMessage(t MessageType, payload interface{}) {
	data, err := encodeMessage(t, c.GuildID, payload)
	if err != nil {
		return
	}

	h := c.Hub
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.guilds[c.GuildID][c] {
		return
	}
	select {
	case c.Send <- data:
	default:
	}
}
