package media

import (
	"errors"
	"fmt"
)

// Capture failure categories. Capturer implementations wrap one of these.
var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrNoDevice         = errors.New("no capture device")
	ErrDeviceBusy       = errors.New("device busy")
	ErrOverconstrained  = errors.New("constraints cannot be satisfied")
	ErrAborted          = errors.New("capture aborted")
	ErrUnsupported      = errors.New("capture unsupported")

	// ErrNoTrack is returned by toggles when the source has no track.
	ErrNoTrack = errors.New("no such track")
	// ErrScreenShareActive is returned when starting a share twice.
	ErrScreenShareActive = errors.New("screen share already active")
)

// Operations reported in AccessError.Op.
const (
	OpUserMedia    = "user media"
	OpDisplayMedia = "display media"
)

// AccessError is a categorized media acquisition failure.
type AccessError struct {
	Op  string
	Err error
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *AccessError) Unwrap() error {
	return e.Err
}

// Category returns the sentinel the failure falls under, or nil when it is
// not one of the known categories.
func (e *AccessError) Category() error {
	for _, c := range []error{
		ErrPermissionDenied, ErrNoDevice, ErrDeviceBusy,
		ErrOverconstrained, ErrAborted, ErrUnsupported,
	} {
		if errors.Is(e.Err, c) {
			return c
		}
	}
	return nil
}

// Message returns a user-facing explanation for the failure.
func (e *AccessError) Message() string {
	if e.Op == OpDisplayMedia {
		switch e.Category() {
		case ErrPermissionDenied:
			return "Screen sharing permission denied"
		case ErrNoDevice:
			return "No screen/window available to share"
		case ErrDeviceBusy:
			return "Cannot access screen (may be in use)"
		case ErrAborted:
			return "Screen sharing was cancelled"
		default:
			return fmt.Sprintf("Screen sharing failed: %v", e.Err)
		}
	}

	const prefix = "Failed to access camera/microphone. "
	switch e.Category() {
	case ErrPermissionDenied:
		return prefix + "Please allow camera and microphone access and try again."
	case ErrNoDevice:
		return prefix + "No camera or microphone found. Please connect a device and try again."
	case ErrDeviceBusy:
		return prefix + "Camera or microphone is already in use by another application. Please close other apps and try again."
	case ErrOverconstrained:
		return "Unable to access camera/microphone with any settings. Please check your device permissions."
	case ErrUnsupported:
		return prefix + "Media capture is not supported with the requested settings."
	default:
		return prefix + fmt.Sprintf("Error: %v", e.Err)
	}
}
