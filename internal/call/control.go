package call

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// ControlLabel is the data channel carrying call control messages.
const ControlLabel = "control"

// Control message types.
const (
	ControlTypeHello      = "hello"
	ControlTypeMediaState = "media-state"
)

// ControlMessage is the msgpack envelope on the control channel.
type ControlMessage struct {
	Type    string             `msgpack:"type"`
	Payload msgpack.RawMessage `msgpack:"payload"`
}

// Hello is sent once the control channel opens.
type Hello struct {
	Name    string `msgpack:"name"`
	Client  string `msgpack:"client"`
	Version string `msgpack:"version"`
}

// MediaState advertises which local sources are live.
type MediaState struct {
	Audio  bool `msgpack:"audio"`
	Video  bool `msgpack:"video"`
	Screen bool `msgpack:"screen"`
}

// DecodePayload decodes the message payload into v.
func (m ControlMessage) DecodePayload(v any) error {
	return msgpack.Unmarshal(m.Payload, v)
}

// EncodeControl builds a wire frame for payload.
func EncodeControl(t string, payload any) ([]byte, error) {
	b, err := msgpack.Marshal(payload)
	if err != nil {
		return nil, NewError("marshal control payload", err)
	}
	data, err := msgpack.Marshal(ControlMessage{Type: t, Payload: b})
	if err != nil {
		return nil, NewError("marshal control message", err)
	}
	return data, nil
}

// DecodeControl parses a wire frame.
func DecodeControl(data []byte) (*ControlMessage, error) {
	var msg ControlMessage
	if err := msgpack.Unmarshal(data, &msg); err != nil {
		return nil, NewError("parse control message", err)
	}
	if msg.Type == "" {
		return nil, WrapError("parse control message", fmt.Errorf("missing type"), fmt.Sprintf("%d bytes", len(data)))
	}
	return &msg, nil
}
