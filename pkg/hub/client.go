package hub

import (
	"time"

	"github.com/gofiber/websocket/v2"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10 // must stay below pongWait

	// Viewers only send control frames.
	maxMessageSize = 4 * 1024

	// Frames a viewer may fall behind before it starts skipping.
	sendBuffer = 4
)

// Client is one websocket viewer of a camera.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan Message
}

// NewClient joins conn to h. When h is already stopped the viewer is
// disconnected at once and Run returns straight away.
func NewClient(h *Hub, conn *websocket.Conn) *Client {
	c := &Client{hub: h, conn: conn, send: make(chan Message, sendBuffer)}
	select {
	case h.register <- c:
	case <-h.quit:
		close(c.send)
	}
	return c
}

// Run streams to the viewer until either side goes away. It blocks, so
// call it from the websocket handler.
func (c *Client) Run() {
	go c.writeLoop()
	c.readLoop()
}

// readLoop leaves the hub when the connection drops. Viewers send nothing
// of interest; reading is what surfaces pongs and disconnects.
func (c *Client) readLoop() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.quit:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writeLoop is the connection's only writer. Frames go out as binary
// messages and status messages as text.
func (c *Client) writeLoop() {
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ping.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Left the hub or the hub stopped.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			kind := websocket.TextMessage
			if msg.Type == FrameMessage {
				kind = websocket.BinaryMessage
			}
			if err := c.conn.WriteMessage(kind, msg.Data); err != nil {
				return
			}
		case <-ping.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
