package relay

import (
	"strings"
	"sync"

	"github.com/BioHazard786/Warpcall/internal/signaling"
	"github.com/rs/zerolog/log"
)

type inbound struct {
	client *Client
	data   []byte
}

// Hub routes frames between the connections of each room. A single Run
// goroutine processes every register, unregister and inbound frame in
// arrival order and owns the per-connection state.
type Hub struct {
	registry *Registry
	clients  map[*Client]struct{}

	registerCh   chan *Client
	unregisterCh chan *Client
	inboundCh    chan inbound

	quit     chan struct{}
	stopOnce sync.Once
}

// NewHub creates a hub over registry.
func NewHub(registry *Registry) *Hub {
	return &Hub{
		registry:     registry,
		clients:      make(map[*Client]struct{}),
		registerCh:   make(chan *Client),
		unregisterCh: make(chan *Client),
		inboundCh:    make(chan inbound, 64),
		quit:         make(chan struct{}),
	}
}

// Registry returns the room registry the hub routes through.
func (h *Hub) Registry() *Registry {
	return h.registry
}

func (h *Hub) register(c *Client) bool {
	select {
	case h.registerCh <- c:
		return true
	case <-h.quit:
		return false
	}
}

func (h *Hub) unregister(c *Client) {
	select {
	case h.unregisterCh <- c:
	case <-h.quit:
	}
}

func (h *Hub) deliver(c *Client, data []byte) bool {
	select {
	case h.inboundCh <- inbound{client: c, data: data}:
		return true
	case <-h.quit:
		return false
	}
}

// Stop ends Run and closes every connection.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.quit) })
}

// Run starts the hub's processing loop. It returns after Stop.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.registerCh:
			h.clients[c] = struct{}{}
			c.logger.Debug().Msg("client registered")

		case c := <-h.unregisterCh:
			if _, ok := h.clients[c]; !ok {
				continue
			}
			h.leave(c)
			delete(h.clients, c)
			c.closeSend()
			c.logger.Debug().Msg("client unregistered")

		case in := <-h.inboundCh:
			if _, ok := h.clients[in.client]; !ok {
				continue
			}
			h.handle(in.client, in.data)

		case <-h.quit:
			for c := range h.clients {
				h.leave(c)
				c.closeSend()
				delete(h.clients, c)
			}
			log.Info().Msg("hub stopped")
			return
		}
	}
}

func (h *Hub) handle(c *Client, data []byte) {
	msg, err := signaling.Decode(data)
	if err != nil {
		c.logger.Debug().Err(err).Msg("invalid frame")
		h.reject(c, ErrInvalidFormat)
		return
	}

	switch {
	case msg.Type == signaling.MessageTypeJoin:
		h.join(c, msg)
	case signaling.IsSignal(msg.Type):
		h.forward(c, msg.Type, data)
	case msg.Type == signaling.MessageTypeLeave:
		h.leave(c)
	default:
		c.logger.Debug().Str("type", msg.Type).Msg("unknown message type")
		h.reject(c, ErrUnknownType)
	}
}

func (h *Hub) join(c *Client, msg *signaling.Message) {
	switch c.state {
	case stateJoined:
		h.reject(c, ErrAlreadyJoined)
		return
	case stateLeft:
		h.reject(c, ErrAlreadyLeft)
		return
	}

	if strings.TrimSpace(msg.Room) == "" {
		h.reject(c, ErrRoomIDRequired)
		return
	}

	p := NewParticipant(c.ID, msg.Name, c)
	participants, err := h.registry.Join(msg.Room, p)
	if err != nil {
		c.logger.Info().Err(err).Str("room", msg.Room).Msg("join rejected")
		h.reject(c, err)
		return
	}

	c.state = stateJoined
	c.roomID = msg.Room
	c.participant = p
	c.logger.Info().Str("room", msg.Room).Str("name", p.Name).
		Int("members", len(participants)).Msg("joined room")

	h.reply(c, signaling.NewJoined(msg.Room, participants))
	if frame, err := signaling.Encode(signaling.NewUserJoined(p.Name)); err == nil {
		h.registry.BroadcastExcept(msg.Room, p, frame)
	}
}

// forward relays the original frame to the other member untouched.
func (h *Hub) forward(c *Client, msgType string, frame []byte) {
	if c.state != stateJoined {
		c.logger.Debug().Str("type", msgType).Stringer("state", c.state).Msg("dropping signal outside a room")
		return
	}
	if n := h.registry.BroadcastExcept(c.roomID, c.participant, frame); n == 0 {
		c.logger.Debug().Str("type", msgType).Msg("no peer to receive signal")
	}
}

// leave removes a joined client from its room and tells the remaining
// member. It is a no-op in any other state.
func (h *Hub) leave(c *Client) {
	if c.state != stateJoined {
		return
	}
	c.state = stateLeft

	remaining, ok := h.registry.Leave(c.roomID, c.participant)
	if !ok {
		return
	}
	c.logger.Info().Str("room", c.roomID).Int("remaining", remaining).Msg("left room")
	if remaining == 0 {
		return
	}
	if frame, err := signaling.Encode(signaling.NewUserLeft(c.participant.Name)); err == nil {
		h.registry.BroadcastExcept(c.roomID, c.participant, frame)
	}
}

func (h *Hub) reject(c *Client, err error) {
	h.reply(c, signaling.NewError(WireMessage(err)))
}

func (h *Hub) reply(c *Client, msg *signaling.Message) {
	frame, err := signaling.Encode(msg)
	if err != nil {
		c.logger.Error().Err(err).Msg("encode reply")
		return
	}
	if err := c.Send(frame); err != nil {
		c.logger.Warn().Err(err).Str("type", msg.Type).Msg("reply dropped")
	}
}
