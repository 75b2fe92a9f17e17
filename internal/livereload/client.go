package livereload

import (
	"time"

	"github.com/dreschagin/devserve/pkg/logger"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait = 10 * time.Second

	pongWait = 60 * time.Second

	// Must be shorter than pongWait.
	pingPeriod = 54 * time.Second

	// Clients only ever send pongs; anything bigger is garbage.
	maxMessageSize = 512
)

// Client is one connected reload websocket.
type Client struct {
	id string

	conn *websocket.Conn

	hub *Hub

	send chan Event

	logger *logger.Logger
}

func NewClient(hub *Hub, conn *websocket.Conn, log *logger.Logger) *Client {
	return &Client{
		id:     uuid.NewString(),
		conn:   conn,
		hub:    hub,
		send:   make(chan Event, 16),
		logger: log,
	}
}

// ReadPump drains client frames and enforces the pong deadline.
// Runs in its own goroutine.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error("reload client set read deadline", err, "client_id", c.id)
		return
	}
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.logger.Error("reload client read", err, "client_id", c.id)
			}
			break
		}
	}
}

// WritePump pushes reload events and keepalive pings to the client.
// Runs in its own goroutine.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Error("reload client set write deadline", err, "client_id", c.id)
				return
			}
			if !ok {
				// Hub closed the channel.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(event); err != nil {
				c.logger.Error("reload client write", err, "client_id", c.id)
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Error("reload client set write deadline", err, "client_id", c.id)
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
