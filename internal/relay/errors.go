package relay

import "errors"

var (
	ErrRoomIDRequired = errors.New("room id is required")
	ErrRoomFull       = errors.New("room is full")
	ErrUnknownType    = errors.New("unknown message type")
	ErrInvalidFormat  = errors.New("invalid message format")
	ErrAlreadyJoined  = errors.New("connection already joined a room")
	ErrAlreadyLeft    = errors.New("connection has left the room")

	// ErrNotWritable means a member's outbound queue is full or closed.
	ErrNotWritable = errors.New("connection not writable")
)

// WireMessage returns the text sent to clients in an error message for err.
func WireMessage(err error) string {
	switch {
	case errors.Is(err, ErrRoomIDRequired):
		return "Room ID is required"
	case errors.Is(err, ErrRoomFull):
		return "Room is full"
	case errors.Is(err, ErrUnknownType):
		return "Unknown message type"
	case errors.Is(err, ErrInvalidFormat):
		return "Invalid message format"
	case errors.Is(err, ErrAlreadyJoined):
		return "Already joined a room"
	case errors.Is(err, ErrAlreadyLeft):
		return "Connection has left the room"
	default:
		return "Internal error"
	}
}
