package web

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"

	"github.com/prestige-dev/prestige/internal/logger"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 8192
)

// Canceller cancels an active stream by ID.
type Canceller interface {
	Cancel(streamID string) bool
}

// Client represents one connected WebSocket observer
type Client struct {
	ID        string
	hub       *Hub
	conn      *websocket.Conn
	send      chan *Event
	canceller Canceller
	debug     bool
}

// NewClient creates a new WebSocket client
func NewClient(hub *Hub, conn *websocket.Conn, canceller Canceller, debug bool) *Client {
	id, _ := generateClientID()
	return &Client{
		ID:        id,
		hub:       hub,
		conn:      conn,
		send:      make(chan *Event, 256),
		canceller: canceller,
		debug:     debug,
	}
}

// ReadPump pumps messages from the WebSocket connection to the hub
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Error("WebSocket read error: %v", err)
			}
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			logger.Error("Failed to unmarshal message: %v", err)
			continue
		}

		if c.debug {
			logger.Debug("WebSocket received: %s", string(message))
		}

		c.handleMessage(&msg)
	}
}

// WritePump pumps events from the hub to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			data, err := json.Marshal(event)
			if err != nil {
				logger.Error("Failed to marshal event: %v", err)
				continue
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				logger.Error("Failed to write event: %v", err)
				return
			}

			if c.debug {
				logger.Debug("WebSocket sent: %s", string(data))
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage handles incoming messages from the client
func (c *Client) handleMessage(msg *ClientMessage) {
	switch msg.Type {
	case MessageTypeCancel:
		if c.canceller == nil || msg.StreamID == "" {
			return
		}
		cancelled := c.canceller.Cancel(msg.StreamID)
		content := "stream not found"
		if cancelled {
			content = "cancellation requested"
		}
		c.sendEvent(&Event{
			Type:      EventTypeSystem,
			SessionID: msg.StreamID,
			Content:   content,
			Timestamp: time.Now(),
		})

	default:
		logger.Warn("Unknown message type: %s", msg.Type)
	}
}

// sendEvent sends an event to this client only
func (c *Client) sendEvent(event *Event) {
	select {
	case c.send <- event:
	default:
		logger.Warn("Client send channel full, dropping event")
	}
}

// generateClientID generates a random client ID
func generateClientID() (string, error) {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
