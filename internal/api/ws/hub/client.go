package hub

import (
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	sendBuffer     = 32
	maxMessageSize = 64 * 1024
)

// Conn is the slice of *websocket.Conn the hub relies on; tests plug in
// fakes.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	SetReadLimit(limit int64)
	Close() error
}

type Role string

const (
	RolePlayer    Role = "player"
	RoleSpectator Role = "spectator"
)

// Client is one live socket in a room. At most one exists per
// (room, identity): registering a second closes the first.
type Client struct {
	ID        uuid.UUID
	RoomID    uuid.UUID
	Role      Role
	SessionID string

	conn      Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newClient(conn Conn, roomID, id uuid.UUID, role Role) *Client {
	return &Client{
		ID:        id,
		RoomID:    roomID,
		Role:      role,
		SessionID: uuid.NewString(),
		conn:      conn,
		send:      make(chan []byte, sendBuffer),
		done:      make(chan struct{}),
	}
}

// enqueue is fire-and-forget: a full send buffer drops the frame rather
// than blocking the room worker.
func (c *Client) enqueue(data []byte) {
	select {
	case c.send <- data:
	case <-c.done:
	default:
		zap.L().Warn("Send buffer full, dropping message",
			zap.String("client_id", c.ID.String()),
			zap.String("room_id", c.RoomID.String()))
	}
}

// close tears the socket down exactly once, from any goroutine.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// writePump drains the send channel onto the wire.
func (c *Client) writePump() {
	defer c.close()
	for {
		select {
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				zap.L().Debug("WebSocket write error",
					zap.String("client_id", c.ID.String()), zap.Error(err))
				return
			}
		case <-c.done:
			return
		}
	}
}
