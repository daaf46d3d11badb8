package signaling

import (
	"encoding/json"
	"fmt"
)

// Message is the JSON envelope exchanged with the relay. Type selects which
// of the remaining fields are meaningful.
type Message struct {
	Type         string          `json:"type"`
	Room         string          `json:"room,omitempty"`
	Name         string          `json:"name,omitempty"`
	Participants []string        `json:"participants,omitempty"`
	Offer        json.RawMessage `json:"offer,omitempty"`
	Answer       json.RawMessage `json:"answer,omitempty"`
	Candidate    json.RawMessage `json:"candidate,omitempty"`
	Message      string          `json:"message,omitempty"`
}

// Message type constants.
const (
	// client -> relay
	MessageTypeJoin  = "join"
	MessageTypeLeave = "leave"

	// relay -> client
	MessageTypeJoined     = "joined"
	MessageTypeUserJoined = "user-joined"
	MessageTypeUserLeft   = "user-left"
	MessageTypeError      = "error"

	// client -> relay -> other client
	MessageTypeOffer        = "offer"
	MessageTypeAnswer       = "answer"
	MessageTypeICECandidate = "ice-candidate"
)

// IsSignal reports whether t is a negotiation payload the relay forwards.
func IsSignal(t string) bool {
	return t == MessageTypeOffer || t == MessageTypeAnswer || t == MessageTypeICECandidate
}

// Decode parses a single wire frame.
func Decode(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}
	return &msg, nil
}

// Encode serializes msg for the wire.
func Encode(msg *Message) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode %s message: %w", msg.Type, err)
	}
	return data, nil
}

func NewJoin(room, name string) *Message {
	return &Message{Type: MessageTypeJoin, Room: room, Name: name}
}

func NewLeave(room string) *Message {
	return &Message{Type: MessageTypeLeave, Room: room}
}

func NewJoined(room string, participants []string) *Message {
	return &Message{Type: MessageTypeJoined, Room: room, Participants: participants}
}

func NewUserJoined(name string) *Message {
	return &Message{Type: MessageTypeUserJoined, Name: name}
}

func NewUserLeft(name string) *Message {
	return &Message{Type: MessageTypeUserLeft, Name: name}
}

func NewError(message string) *Message {
	return &Message{Type: MessageTypeError, Message: message}
}

// NewSignal wraps an offer, answer or candidate payload. payload is
// marshalled into the field matching t.
func NewSignal(t, room string, payload any) (*Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", t, err)
	}
	msg := &Message{Type: t, Room: room}
	switch t {
	case MessageTypeOffer:
		msg.Offer = raw
	case MessageTypeAnswer:
		msg.Answer = raw
	case MessageTypeICECandidate:
		msg.Candidate = raw
	default:
		return nil, fmt.Errorf("%q is not a signal message type", t)
	}
	return msg, nil
}
