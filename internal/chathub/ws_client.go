package chathub

import (
	"chatterbox/backend/internal/models"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	DefaultSendBuffer     = 256
	DefaultMaxMessageSize = 8192
)

// WebSocketClient implements Client over a gorilla websocket connection.
// Outbound events go through a buffered queue drained by the write pump;
// inbound frames are decoded as commands and handed to the hub.
type WebSocketClient struct {
	id             string
	conn           *websocket.Conn
	hub            *ManagerService
	maxMessageSize int64
	log            zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	send   chan models.Event
	closed bool
}

func NewWebSocketClient(conn *websocket.Conn, hub *ManagerService, sendBuffer int, maxMessageSize int64, log zerolog.Logger) *WebSocketClient {
	if sendBuffer <= 0 {
		sendBuffer = DefaultSendBuffer
	}
	if maxMessageSize <= 0 {
		maxMessageSize = DefaultMaxMessageSize
	}
	id := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	return &WebSocketClient{
		id:             id,
		conn:           conn,
		hub:            hub,
		maxMessageSize: maxMessageSize,
		log:            log.With().Str("component", "ws").Str("conn_id", id).Logger(),
		ctx:            ctx,
		cancel:         cancel,
		send:           make(chan models.Event, sendBuffer),
	}
}

func (c *WebSocketClient) ID() string { return c.id }

// Deliver queues event without blocking.
func (c *WebSocketClient) Deliver(event models.Event) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- event:
		return true
	default:
		return false
	}
}

// Close closes the send queue; the write pump then sends a close frame and
// tears the socket down.
func (c *WebSocketClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
	c.cancel()
}

// Run starts the pumps for the connection.
func (c *WebSocketClient) Run() {
	go c.writePump()
	go c.readPump()
}

func (c *WebSocketClient) readPump() {
	defer func() {
		c.hub.Disconnect(context.Background(), c)
		c.Close()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn().Err(err).Msg("read failed")
			}
			return
		}

		var cmd models.Command
		if err := json.Unmarshal(frame, &cmd); err != nil {
			c.Deliver(models.NewErrorEvent(CodeBadRequest, fmt.Errorf("malformed frame: %w", err)))
			continue
		}

		_ = c.hub.Handle(c.ctx, c, cmd)
	}
}

// writePump drains the send queue into the socket. Events queued while a
// frame is being written are appended to it, one JSON object per line.
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			if err := json.NewEncoder(w).Encode(event); err != nil {
				c.log.Error().Err(err).Str("event", string(event.Type)).Msg("encode failed")
			}

			n := len(c.send)
			for i := 0; i < n; i++ {
				next, ok := <-c.send
				if !ok {
					break
				}
				if err := json.NewEncoder(w).Encode(next); err != nil {
					c.log.Error().Err(err).Str("event", string(next.Type)).Msg("encode failed")
				}
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
