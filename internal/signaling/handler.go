package signaling

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"
)

// Listener receives relay messages and channel state changes, one call at
// a time, in arrival order.
type Listener interface {
	OnJoined(room string, participants []string)
	OnUserJoined(name string)
	OnOffer(offer json.RawMessage)
	OnAnswer(answer json.RawMessage)
	OnICECandidate(candidate json.RawMessage)
	OnUserLeft(name string)
	OnError(message string)
	OnChannelState(state State)
}

// Source is what the Handler drains; *Client implements it.
type Source interface {
	Incoming() <-chan *Message
	States() <-chan State
	Done() <-chan struct{}
}

// Handler routes incoming signaling messages to a Listener.
type Handler struct {
	source   Source
	listener Listener
}

// NewHandler creates a new message handler.
func NewHandler(source Source, listener Listener) *Handler {
	return &Handler{source: source, listener: listener}
}

// Start dispatches until ctx is cancelled or the source is closed.
func (h *Handler) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.source.Done():
			return
		case s := <-h.source.States():
			h.listener.OnChannelState(s)
		case msg := <-h.source.Incoming():
			h.Dispatch(msg)
		}
	}
}

// Dispatch delivers one message to the matching Listener method.
func (h *Handler) Dispatch(msg *Message) {
	switch msg.Type {
	case MessageTypeJoined:
		h.listener.OnJoined(msg.Room, msg.Participants)
	case MessageTypeUserJoined:
		h.listener.OnUserJoined(msg.Name)
	case MessageTypeOffer:
		h.listener.OnOffer(msg.Offer)
	case MessageTypeAnswer:
		h.listener.OnAnswer(msg.Answer)
	case MessageTypeICECandidate:
		h.listener.OnICECandidate(msg.Candidate)
	case MessageTypeUserLeft:
		h.listener.OnUserLeft(msg.Name)
	case MessageTypeError:
		h.listener.OnError(msg.Message)
	default:
		log.Debug().Str("type", msg.Type).Msg("ignoring unknown message type")
	}
}
