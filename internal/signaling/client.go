package signaling

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/BioHazard786/Warpcall/internal/dns"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024

	defaultReconnectDelay = 2 * time.Second
	reconnectDialTimeout  = 10 * time.Second
	sendBufferSize        = 64
)

var (
	// ErrNotConnected is returned by Send when the channel is not open.
	ErrNotConnected = errors.New("signaling channel not connected")
	// ErrSendBufferFull is returned when the outgoing queue cannot take more frames.
	ErrSendBufferFull = errors.New("signaling send buffer full")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("signaling client closed")
)

// State is the lifecycle of the signaling channel.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateReconnecting
	StateDisconnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateReconnecting:
		return "reconnecting"
	case StateDisconnected:
		return "disconnected"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Option configures a Client.
type Option func(*Client)

// WithReconnectDelay sets the wait before the single reconnect attempt.
func WithReconnectDelay(d time.Duration) Option {
	return func(c *Client) { c.reconnectDelay = d }
}

// WithDialer replaces the websocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

// Client manages the WebSocket connection to the relay. After an abnormal
// closure of a joined channel it makes exactly one delayed reconnect
// attempt, rejoining with the same room and name.
type Client struct {
	url            string
	dialer         *websocket.Dialer
	reconnectDelay time.Duration
	logger         zerolog.Logger

	mu        sync.Mutex
	state     State
	conn      *websocket.Conn
	outgoing  chan []byte
	connDone  chan struct{}
	room      string
	name      string
	joined    bool
	leaving   bool
	retryUsed bool
	timer     *time.Timer
	closed    bool

	incoming chan *Message
	states   chan State
	done     chan struct{}
}

// NewClient creates a signaling client for the relay at serverURL.
func NewClient(serverURL string, opts ...Option) *Client {
	dialer := *websocket.DefaultDialer
	dialer.NetDialContext = dns.DialContext

	c := &Client{
		url:            serverURL,
		dialer:         &dialer,
		reconnectDelay: defaultReconnectDelay,
		logger:         log.With().Str("component", "signaling").Logger(),
		incoming:       make(chan *Message, 64),
		states:         make(chan State, 32),
		done:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect dials the relay and sends join{room, name}.
func (c *Client) Connect(ctx context.Context, room, name string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.conn != nil || c.timer != nil {
		c.mu.Unlock()
		return errors.New("signaling channel already connected")
	}
	c.room, c.name = room, name
	c.joined = false
	c.leaving = false
	c.retryUsed = false
	c.mu.Unlock()

	return c.dial(ctx)
}

func (c *Client) dial(ctx context.Context) error {
	c.setState(StateConnecting)

	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		c.setState(StateDisconnected)
		return fmt.Errorf("connect to %s: %w", c.url, err)
	}

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	c.mu.Lock()
	room, name := c.room, c.name
	c.mu.Unlock()

	join, err := Encode(NewJoin(room, name))
	if err != nil {
		conn.Close()
		return err
	}
	out := make(chan []byte, sendBufferSize)
	out <- join
	done := make(chan struct{})

	c.mu.Lock()
	if c.leaving || c.closed {
		c.mu.Unlock()
		conn.Close()
		return ErrClosed
	}
	c.conn, c.outgoing, c.connDone = conn, out, done
	c.joined = true
	c.setStateLocked(StateOpen)
	c.mu.Unlock()

	go c.readPump(conn, done)
	go c.writePump(conn, out, done)

	c.logger.Info().Str("room", room).Str("name", name).Msg("signaling channel open")
	return nil
}

// Send queues msg for the relay. It fails with ErrNotConnected unless the
// channel is open.
func (c *Client) Send(msg *Message) error {
	data, err := Encode(msg)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateOpen {
		return ErrNotConnected
	}
	select {
	case c.outgoing <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Ready reports whether Send would currently accept a message.
func (c *Client) Ready() bool {
	return c.State() == StateOpen
}

// State returns the current channel state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Room returns the room this client joins.
func (c *Client) Room() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room
}

// Incoming delivers decoded relay messages. It is never closed; select on
// Done to stop.
func (c *Client) Incoming() <-chan *Message {
	return c.incoming
}

// States delivers every state transition in order.
func (c *Client) States() <-chan State {
	return c.states
}

// Done is closed by Close.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Leave sends leave{room}, closes the connection and cancels any pending
// reconnect. The client can Connect again afterwards.
func (c *Client) Leave() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.leaveLocked()
}

func (c *Client) leaveLocked() {
	c.leaving = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if c.state == StateOpen && c.joined {
		if data, err := Encode(NewLeave(c.room)); err == nil {
			select {
			case c.outgoing <- data:
			default:
				c.logger.Warn().Msg("send buffer full, leave not sent")
			}
		}
	}
	c.teardownLocked()
	if c.state != StateIdle && c.state != StateClosed {
		c.setStateLocked(StateDisconnected)
	}
}

// Close leaves the room and releases the client for good.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.leaveLocked()
	c.closed = true
	c.setStateLocked(StateClosed)
	close(c.done)
}

// teardownLocked stops the pumps of the current connection. The write pump
// flushes queued frames and sends a close frame before closing the socket.
func (c *Client) teardownLocked() {
	if c.conn == nil {
		return
	}
	close(c.connDone)
	c.conn = nil
	c.outgoing = nil
	c.connDone = nil
}

func (c *Client) readPump(conn *websocket.Conn, done chan struct{}) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleDrop(conn, err)
			return
		}

		msg, err := Decode(data)
		if err != nil {
			c.logger.Warn().Err(err).Msg("skipping malformed frame")
			continue
		}
		if msg.Type == MessageTypeJoined {
			// A completed (re)join arms a fresh reconnect budget.
			c.mu.Lock()
			c.retryUsed = false
			c.mu.Unlock()
		}

		select {
		case c.incoming <- msg:
		case <-done:
			return
		case <-c.done:
			return
		}
	}
}

func (c *Client) handleDrop(conn *websocket.Conn, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != conn {
		// Closed locally by Leave or Close.
		return
	}
	c.teardownLocked()

	if c.leaving || c.closed {
		return
	}

	if !isAbnormal(err) {
		c.logger.Info().Err(err).Msg("signaling channel closed")
		c.setStateLocked(StateDisconnected)
		return
	}

	if !c.joined || c.retryUsed {
		c.logger.Warn().Err(err).Msg("signaling channel lost")
		c.setStateLocked(StateDisconnected)
		return
	}

	c.retryUsed = true
	c.setStateLocked(StateReconnecting)
	c.logger.Warn().Err(err).Dur("delay", c.reconnectDelay).Msg("signaling channel dropped, reconnecting")
	c.timer = time.AfterFunc(c.reconnectDelay, c.reconnect)
}

func (c *Client) reconnect() {
	c.mu.Lock()
	if c.leaving || c.closed || c.state != StateReconnecting {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), reconnectDialTimeout)
	defer cancel()

	if err := c.dial(ctx); err != nil {
		c.logger.Error().Err(err).Msg("reconnect failed")
	}
}

func (c *Client) writePump(conn *websocket.Conn, out <-chan []byte, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case data := <-out:
			if err := write(conn, websocket.TextMessage, data); err != nil {
				c.logger.Debug().Err(err).Msg("write failed")
				return
			}

		case <-ticker.C:
			if err := write(conn, websocket.PingMessage, nil); err != nil {
				return
			}

		case <-done:
			if drain(conn, out) == nil {
				write(conn, websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			}
			return
		}
	}
}

// drain writes whatever is still queued, such as a final leave.
func drain(conn *websocket.Conn, out <-chan []byte) error {
	for {
		select {
		case data := <-out:
			if err := write(conn, websocket.TextMessage, data); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

func write(conn *websocket.Conn, messageType int, data []byte) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(messageType, data)
}

// isAbnormal reports whether a read error means the transport dropped rather
// than the relay closing the socket cleanly.
func isAbnormal(err error) bool {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code == websocket.CloseAbnormalClosure
	}
	return true
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setStateLocked(s)
}

func (c *Client) setStateLocked(s State) {
	if c.state == s || c.state == StateClosed {
		return
	}
	c.state = s
	select {
	case c.states <- s:
	default:
		c.logger.Warn().Stringer("state", s).Msg("state listener lagging, transition dropped")
	}
}
