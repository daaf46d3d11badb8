package call

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/BioHazard786/Warpcall/internal/media"
	"github.com/BioHazard786/Warpcall/internal/signaling"
)

// State is the call lifecycle.
type State int

const (
	StateIdle State = iota
	StateAwaitingLocalMedia
	StateSignalingConnecting
	// StateWaiting is in a room with local media held and no peer.
	StateWaiting
	StateOffering
	StateAnswering
	StateConnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingLocalMedia:
		return "awaiting-local-media"
	case StateSignalingConnecting:
		return "signaling-connecting"
	case StateWaiting:
		return "waiting"
	case StateOffering:
		return "offering"
	case StateAnswering:
		return "answering"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Level grades a notice.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// EventKind says what an Event carries beyond its snapshot.
type EventKind int

const (
	EventState EventKind = iota
	EventNotice
	EventStats
)

// Notice is a user-facing message.
type Notice struct {
	Level Level
	Text  string
}

// TrackStats describes one received track.
type TrackStats struct {
	ID      string
	Kind    media.Kind
	Bytes   uint64
	Bitrate float64
}

// Snapshot is a copy of the engine's view of the call.
type Snapshot struct {
	State        State
	Room         string
	Name         string
	Peer         string
	Participants []string
	Signaling    signaling.State
	Connection   ConnectionState
	ConnectedAt  time.Time

	Audio      bool
	Video      bool
	Screen     bool
	BoundVideo media.Source
	Preview    string
	Overlay    string

	// Remote is nil until the peer reports its media state.
	Remote       *MediaState
	RemoteTracks []TrackStats
}

// Event is published on Engine.Events.
type Event struct {
	Kind     EventKind
	Snapshot Snapshot
	Notice   Notice
}

type result struct {
	on  bool
	err error
}

// user actions
type (
	joinRequest struct {
		ctx        context.Context
		room, name string
		reply      chan result
	}
	leaveRequest       struct{ reply chan result }
	screenShareRequest struct {
		ctx   context.Context
		reply chan result
	}
	audioRequest    struct{ reply chan result }
	videoRequest    struct{ reply chan result }
	snapshotRequest struct{ reply chan Snapshot }
)

// relay messages
type (
	joinedMsg struct {
		room         string
		participants []string
	}
	userJoinedMsg   struct{ name string }
	offerMsg        struct{ raw json.RawMessage }
	answerMsg       struct{ raw json.RawMessage }
	candidateMsg    struct{ raw json.RawMessage }
	userLeftMsg     struct{ name string }
	relayErrorMsg   struct{ message string }
	channelStateMsg struct{ state signaling.State }
)

// peer connection callbacks, tagged with their connection so events from a
// torn down connection are discarded
type (
	localCandidate struct {
		pc  PeerConnection
		raw json.RawMessage
	}
	connectionStateChanged struct {
		pc    PeerConnection
		state ConnectionState
	}
	iceStateChanged struct {
		pc    PeerConnection
		state ICEState
	}
	remoteTrackAdded struct {
		pc    PeerConnection
		track RemoteTrack
	}
	dataChannelAdded struct {
		pc PeerConnection
		dc DataChannel
	}
	controlOpened struct {
		pc PeerConnection
	}
	controlReceived struct {
		pc   PeerConnection
		data []byte
	}
)

type (
	screenEnded struct{ trackID string }
	statsTick   struct{ at time.Time }
)
