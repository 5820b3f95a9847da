package ws

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 4096
	sendBufferSize = 64
)

// Client is one browser connection bound to a project room. The send channel
// is never closed; the hub signals shutdown through done instead, so the read
// goroutine can keep calling Send without racing the hub's teardown.
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	projectID string
	logger    *slog.Logger
}

func NewClient(hub *Hub, conn *websocket.Conn, projectID string, logger *slog.Logger) *Client {
	return &Client{
		hub:       hub,
		conn:      conn,
		send:      make(chan []byte, sendBufferSize),
		done:      make(chan struct{}),
		projectID: projectID,
		logger:    logger,
	}
}

// close signals the write pump to finish. Called by the hub when the client
// is dropped; safe to call more than once.
func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *Client) ProjectID() string {
	return c.projectID
}

// ReadPump reads inbound messages and hands them to handler until the
// connection drops. Pings are answered here; everything else reaches the
// handler. Runs on the connection's goroutine and unregisters on exit.
func (c *Client) ReadPump(handler func(c *Client, msg Message)) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				if c.logger != nil {
					c.logger.Warn("ws read error", "project_id", c.projectID, "error", err)
				}
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			if c.logger != nil {
				c.logger.Warn("ws invalid message", "project_id", c.projectID, "error", err)
			}
			continue
		}

		if msg.Type == MsgPing {
			c.Send(Message{Type: EventPong, Timestamp: time.Now().UnixMilli()})
			continue
		}

		handler(c, msg)
	}
}

// WritePump drains the send channel onto the connection and keeps the
// connection alive with periodic pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case payload := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
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

// Send queues a message for this client only. A full buffer or a dropped
// client discards the message; room-wide events go through the hub instead.
func (c *Client) Send(msg Message) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case <-c.done:
	case c.send <- payload:
	default:
	}
}
