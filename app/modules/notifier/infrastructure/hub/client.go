package notifierhub

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Black-And-White-Club/reverse-chorus/internal/observability/attr"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 << 10
	sendBuffer     = 64
)

// MessageHandler receives every text frame read from a client.
type MessageHandler func(ctx context.Context, c *Client, data []byte)

// Client is one websocket connection.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	logger *slog.Logger

	send      chan []byte
	closed    chan struct{}
	closeOnce sync.Once

	mu       sync.RWMutex
	roomCode string
	playerID uuid.UUID
	joined   bool
}

// NewClient wraps an upgraded connection.
func NewClient(hub *Hub, conn *websocket.Conn, logger *slog.Logger) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		logger: logger,
		send:   make(chan []byte, sendBuffer),
		closed: make(chan struct{}),
	}
}

// Identity returns the room and player the client joined as.
func (c *Client) Identity() (string, uuid.UUID, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.roomCode, c.playerID, c.joined
}

func (c *Client) bind(roomCode string, playerID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roomCode = roomCode
	c.playerID = playerID
	c.joined = true
}

// Send queues a frame for this client only.
func (c *Client) Send(frame []byte) bool {
	return c.enqueue(frame)
}

func (c *Client) enqueue(frame []byte) bool {
	select {
	case <-c.closed:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// Close asks the write pump to send a close frame and release the
// connection. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.closed) })
}

// Done is closed once the client has been closed.
func (c *Client) Done() <-chan struct{} {
	return c.closed
}

// Run pumps the connection until it closes. onMessage is called from the
// read loop; onClose runs once after the client left its room.
func (c *Client) Run(ctx context.Context, onMessage MessageHandler, onClose func(*Client)) {
	go c.writePump()

	c.readPump(ctx, onMessage)

	c.hub.Leave(c)
	c.Close()
	if onClose != nil {
		onClose(c)
	}
}

func (c *Client) readPump(ctx context.Context, onMessage MessageHandler) {
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("Websocket read failed", attr.Error(err))
			}
			return
		}
		if messageType != websocket.TextMessage || onMessage == nil {
			continue
		}
		onMessage(ctx, c, data)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
		c.conn.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.closed:
			c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}
