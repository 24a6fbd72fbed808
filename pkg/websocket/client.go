package websocket

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	defaultWriteWait      = 10 * time.Second
	defaultPongWait       = 60 * time.Second
	defaultMaxMessageSize = 32 * 1024
	defaultSendBuffer     = 256
)

// Options bound the transport behavior of a single client connection.
type Options struct {
	WriteWait      time.Duration
	PongWait       time.Duration
	MaxMessageSize int64
	SendBufferSize int
}

func (o Options) withDefaults() Options {
	if o.WriteWait <= 0 {
		o.WriteWait = defaultWriteWait
	}
	if o.PongWait <= 0 {
		o.PongWait = defaultPongWait
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = defaultMaxMessageSize
	}
	if o.SendBufferSize <= 0 {
		o.SendBufferSize = defaultSendBuffer
	}
	return o
}

// Client couples one websocket connection to the hub. The read pump parses
// inbound envelopes and forwards them to the dispatcher loop; the write pump
// drains the send channel and keeps the connection alive with pings.
type Client struct {
	ID     string
	UserID primitive.ObjectID
	Role   string

	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	opts Options

	// OnPong, when set, is invoked from the read pump on every pong.
	OnPong func()

	rooms  map[string]bool
	closed bool // guarded by hub.mu
}

func NewClient(hub *Hub, conn *websocket.Conn, connectionID string, userID primitive.ObjectID, role string, opts Options) *Client {
	opts = opts.withDefaults()
	return &Client{
		ID:     connectionID,
		UserID: userID,
		Role:   role,
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, opts.SendBufferSize),
		opts:   opts,
		rooms:  make(map[string]bool),
	}
}

// Start launches the pumps. Must be called after the client is registered.
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}

func (c *Client) readPump() {
	reason := "connection closed"
	defer func() {
		c.hub.Disconnect(c, reason)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.opts.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
		if c.OnPong != nil {
			c.OnPong()
		}
		return nil
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				reason = "transport error"
			}
			return
		}

		var event Event
		if err := json.Unmarshal(payload, &event); err != nil || event.Type == "" {
			c.hub.SendToClient(c, NewMessage(EventError, map[string]interface{}{
				"message": "malformed event",
			}))
			continue
		}

		c.hub.Inject(c, &event)
	}
}

func (c *Client) writePump() {
	pingPeriod := (c.opts.PongWait * 9) / 10
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
