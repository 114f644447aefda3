package lavalink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wendellddr/Bot-Spotify-sub000/logger"
)

const (
	clientName     = "bot-spotify/1.0"
	reconnectDelay = 5 * time.Second
)

// NodeConfig holds connection settings for one node.
type NodeConfig struct {
	Name     string
	Host     string
	Port     int
	Password string
	Secure   bool
}

// Node is a single audio node connection (websocket for events, REST for commands).
type Node struct {
	config     NodeConfig
	pool       *Pool
	httpClient *http.Client

	mu        sync.RWMutex
	conn      *websocket.Conn
	sessionID string
	connected bool
	players   int
}

func newNode(cfg NodeConfig, pool *Pool) *Node {
	return &Node{
		config:     cfg,
		pool:       pool,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Name returns the configured node name.
func (n *Node) Name() string {
	return n.config.Name
}

// Connected reports whether the node has a live session.
func (n *Node) Connected() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.connected && n.sessionID != ""
}

func (n *Node) load() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.players
}

func (n *Node) baseURL() string {
	scheme := "http"
	if n.config.Secure {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, n.config.Host, n.config.Port)
}

func (n *Node) wsURL() string {
	scheme := "ws"
	if n.config.Secure {
		scheme = "wss"
	}
	return fmt.Sprintf("%s://%s:%d/v4/websocket", scheme, n.config.Host, n.config.Port)
}

// run keeps the node connected until ctx is done.
func (n *Node) run(ctx context.Context, userID string) {
	for {
		err := n.connectAndRead(ctx, userID)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			n.pool.emitError(n.config.Name, err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

func (n *Node) connectAndRead(ctx context.Context, userID string) error {
	headers := http.Header{}
	headers.Set("Authorization", n.config.Password)
	headers.Set("User-Id", userID)
	headers.Set("Client-Name", clientName)

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, n.wsURL(), headers)
	if err != nil {
		return fmt.Errorf("dial %s: %w", n.config.Name, err)
	}

	n.mu.Lock()
	n.conn = conn
	n.mu.Unlock()

	// Unblock ReadMessage when the pool shuts down.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			code, reason := websocket.CloseAbnormalClosure, err.Error()
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				code, reason = closeErr.Code, closeErr.Text
			}
			n.markClosed()
			if ctx.Err() == nil {
				n.pool.emitClose(n.config.Name, code, reason)
			}
			return nil
		}

		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Warn("invalid node message",
				logger.String("node", n.config.Name),
				logger.ErrorField(err))
			continue
		}
		n.handleMessage(&msg)
	}
}

func (n *Node) markClosed() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.conn != nil {
		n.conn.Close()
		n.conn = nil
	}
	n.connected = false
	n.sessionID = ""
	n.players = 0
}

func (n *Node) handleMessage(msg *wsMessage) {
	switch msg.Op {
	case "ready":
		n.mu.Lock()
		n.sessionID = msg.SessionID
		n.connected = true
		n.mu.Unlock()
		n.pool.emitReady(n.config.Name)

	case "stats":
		n.mu.Lock()
		n.players = msg.Players
		n.mu.Unlock()

	case "playerUpdate":
		var state playerState
		if err := json.Unmarshal(msg.State, &state); err == nil {
			n.pool.updatePosition(msg.GuildID, state)
		}

	case "event":
		n.handleEvent(msg)
	}
}

func (n *Node) handleEvent(msg *wsMessage) {
	var track Track
	if msg.Track != nil {
		track = *msg.Track
	}

	switch msg.Type {
	case "TrackEndEvent":
		n.pool.dispatchEnd(msg.GuildID, track, msg.Reason)
	case "TrackExceptionEvent":
		exc := Exception{Message: "unknown exception"}
		if msg.Exception != nil {
			exc = *msg.Exception
		}
		n.pool.dispatchException(msg.GuildID, track, exc)
	case "TrackStuckEvent":
		n.pool.dispatchException(msg.GuildID, track, Exception{
			Message:  fmt.Sprintf("track stuck for %dms", msg.Threshold),
			Severity: "suspicious",
		})
	case "WebSocketClosedEvent":
		logger.Warn("voice websocket closed",
			logger.String("node", n.config.Name),
			logger.Guild(msg.GuildID),
			logger.Int("code", msg.Code))
	}
}

func (n *Node) session() (string, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if !n.connected || n.sessionID == "" {
		return "", fmt.Errorf("node %s: %w", n.config.Name, ErrNodeDisconnected)
	}
	return n.sessionID, nil
}

func (n *Node) do(ctx context.Context, method, path string, body interface{}) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, n.baseURL()+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", n.config.Password)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("node %s: %w", n.config.Name, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("node %s: %s %s returned %d: %s", n.config.Name, method, path, resp.StatusCode, bytes.TrimSpace(data))
	}
	return data, nil
}

// loadTracks resolves an identifier (URL or "ytsearch:..." query).
func (n *Node) loadTracks(ctx context.Context, identifier string) (LoadResult, error) {
	data, err := n.do(ctx, http.MethodGet, "/v4/loadtracks?identifier="+url.QueryEscape(identifier), nil)
	if err != nil {
		return nil, err
	}
	return DecodeLoadResult(data)
}

// playerUpdate is the PATCH body for /v4/sessions/{sid}/players/{guild}.
type playerUpdate struct {
	Track    *trackUpdate `json:"track,omitempty"`
	Position *int64       `json:"position,omitempty"`
	Paused   *bool        `json:"paused,omitempty"`
	Volume   *int         `json:"volume,omitempty"`
	Voice    *voiceUpdate `json:"voice,omitempty"`
}

type trackUpdate struct {
	Encoded *string `json:"encoded"` // nil stops the player
}

type voiceUpdate struct {
	Token     string `json:"token"`
	Endpoint  string `json:"endpoint"`
	SessionID string `json:"sessionId"`
}

func (n *Node) updatePlayer(ctx context.Context, guildID string, update playerUpdate) error {
	sid, err := n.session()
	if err != nil {
		return err
	}
	_, err = n.do(ctx, http.MethodPatch, fmt.Sprintf("/v4/sessions/%s/players/%s", sid, guildID), update)
	return err
}

func (n *Node) destroyPlayer(ctx context.Context, guildID string) error {
	sid, err := n.session()
	if err != nil {
		return err
	}
	_, err = n.do(ctx, http.MethodDelete, fmt.Sprintf("/v4/sessions/%s/players/%s", sid, guildID), nil)
	return err
}
