// Package media tracks the local capture sources of a call and which of
// them currently feed the outgoing connection.
package media

import "context"

// Kind is the media type of a track.
type Kind string

const (
	KindAudio Kind = "audio"
	KindVideo Kind = "video"
)

// Track is a local capture track.
type Track interface {
	ID() string
	Kind() Kind
	Label() string
	Enabled() bool
	// SetEnabled mutes or unmutes the track without stopping capture.
	SetEnabled(enabled bool)
	// Stop ends capture. A stopped track cannot be restarted.
	Stop()
	// OnEnded registers f to run once if the track ends on its own, for
	// example when the user stops a display capture from the system UI.
	OnEnded(f func())
}

// DeviceKind identifies an input device class.
type DeviceKind string

const (
	AudioInput DeviceKind = "audioinput"
	VideoInput DeviceKind = "videoinput"
)

// Device is an enumerated capture device.
type Device struct {
	ID    string
	Label string
	Kind  DeviceKind
}

// VideoConstraints are ideal video settings. Zero values mean "any".
type VideoConstraints struct {
	Width      int
	Height     int
	FacingMode string
}

// AudioConstraints are ideal audio processing settings.
type AudioConstraints struct {
	EchoCancellation bool
	NoiseSuppression bool
}

// Constraints select which kinds to capture. A nil member means the kind
// is not requested.
type Constraints struct {
	Audio *AudioConstraints
	Video *VideoConstraints
}

// Capturer provides camera and microphone capture.
type Capturer interface {
	EnumerateDevices(ctx context.Context) ([]Device, error)
	UserMedia(ctx context.Context, c Constraints) ([]Track, error)
}

// DisplayCapturer provides screen capture.
type DisplayCapturer interface {
	DisplayMedia(ctx context.Context, audio bool) ([]Track, error)
}

// IdealConstraints returns the preferred camera settings, limited to the
// kinds for which a device exists.
func IdealConstraints(hasAudio, hasVideo bool) Constraints {
	var c Constraints
	if hasAudio {
		c.Audio = &AudioConstraints{EchoCancellation: true, NoiseSuppression: true}
	}
	if hasVideo {
		c.Video = &VideoConstraints{Width: 1280, Height: 720, FacingMode: "user"}
	}
	return c
}

// MinimalConstraints requests the given kinds with no settings.
func MinimalConstraints(hasAudio, hasVideo bool) Constraints {
	var c Constraints
	if hasAudio {
		c.Audio = &AudioConstraints{}
	}
	if hasVideo {
		c.Video = &VideoConstraints{}
	}
	return c
}
