package relay

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. SDP with many candidates fits.
	maxMessageSize = 64 * 1024

	sendBufferSize = 256
)

type connState int

const (
	stateUnjoined connState = iota
	stateJoined
	stateLeft
)

func (s connState) String() string {
	switch s {
	case stateUnjoined:
		return "unjoined"
	case stateJoined:
		return "joined"
	default:
		return "left"
	}
}

// Client is one websocket connection to the relay.
type Client struct {
	ID string

	hub    *Hub
	conn   *websocket.Conn
	logger zerolog.Logger

	mu     sync.Mutex
	send   chan []byte
	closed bool

	// Owned by the hub goroutine.
	state       connState
	roomID      string
	participant *Participant
}

// NewClient wraps an upgraded connection. Call Serve to start its pumps.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	id := uuid.NewString()
	return &Client{
		ID:   id,
		hub:  hub,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		logger: log.With().
			Str("client_id", id).
			Str("remote", conn.RemoteAddr().String()).
			Logger(),
	}
}

// Serve registers the client and starts its read and write pumps.
func (c *Client) Serve() {
	if !c.hub.register(c) {
		c.conn.Close()
		return
	}
	go c.WritePump()
	go c.ReadPump()
}

// Send enqueues a frame for the write pump without blocking.
func (c *Client) Send(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrNotWritable
	}
	select {
	case c.send <- frame:
		return nil
	default:
		return ErrNotWritable
	}
}

// closeSend stops the write pump after it flushes queued frames.
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// ReadPump pumps frames from the websocket connection to the hub.
//
// At most one reader runs per connection; all reads happen here.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug().Err(err).Msg("connection dropped")
			}
			return
		}
		if !c.hub.deliver(c, data) {
			return
		}
	}
}

// WritePump pumps frames from the hub to the websocket connection and
// keeps it alive with pings.
//
// At most one writer runs per connection; all writes happen here.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.logger.Debug().Err(err).Msg("write failed")
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
