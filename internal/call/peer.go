package call

import (
	"context"
	"encoding/json"

	"github.com/BioHazard786/Warpcall/internal/media"
)

// Description is a session description as exchanged over signaling.
type Description struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

// Description types.
const (
	DescriptionOffer  = "offer"
	DescriptionAnswer = "answer"
)

// OfferOptions tune CreateOffer.
type OfferOptions struct {
	ICERestart bool
}

// ConnectionState is the aggregate peer connection state.
type ConnectionState string

const (
	ConnectionNew          ConnectionState = "new"
	ConnectionConnecting   ConnectionState = "connecting"
	ConnectionConnected    ConnectionState = "connected"
	ConnectionDisconnected ConnectionState = "disconnected"
	ConnectionFailed       ConnectionState = "failed"
	ConnectionClosed       ConnectionState = "closed"
)

// ICEState is the ICE transport state.
type ICEState string

const (
	ICENew          ICEState = "new"
	ICEChecking     ICEState = "checking"
	ICEConnected    ICEState = "connected"
	ICECompleted    ICEState = "completed"
	ICEDisconnected ICEState = "disconnected"
	ICEFailed       ICEState = "failed"
	ICEClosed       ICEState = "closed"
)

// PeerFactory creates peer connections.
type PeerFactory interface {
	NewPeerConnection() (PeerConnection, error)
}

// PeerConnection is the negotiation subsystem the engine drives. Callbacks
// may fire on any goroutine.
type PeerConnection interface {
	AddTrack(track media.Track) (Sender, error)
	CreateOffer(ctx context.Context, opts OfferOptions) (Description, error)
	CreateAnswer(ctx context.Context) (Description, error)
	SetLocalDescription(desc Description) error
	SetRemoteDescription(desc Description) error
	// AddICECandidate applies a remote candidate in its JSON form.
	AddICECandidate(candidate json.RawMessage) error
	CreateDataChannel(label string) (DataChannel, error)

	// OnICECandidate is called with each gathered local candidate in JSON
	// form. It is not called for the end-of-candidates marker.
	OnICECandidate(f func(candidate json.RawMessage))
	OnConnectionStateChange(f func(ConnectionState))
	OnICEConnectionStateChange(f func(ICEState))
	OnTrack(f func(RemoteTrack))
	OnDataChannel(f func(DataChannel))

	Close() error
}

// Sender feeds one outgoing media slot.
type Sender interface {
	Kind() media.Kind
	Track() media.Track
	// ReplaceTrack swaps the source in place without renegotiation. A nil
	// track leaves the slot empty.
	ReplaceTrack(track media.Track) error
}

// DataChannel is a message channel on the peer connection.
type DataChannel interface {
	Label() string
	Send(data []byte) error
	OnOpen(f func())
	OnMessage(f func(data []byte))
	Close() error
}

// RemoteTrack is media received from the peer.
type RemoteTrack interface {
	ID() string
	Kind() media.Kind
	// BytesReceived is the running payload byte count.
	BytesReceived() uint64
}
