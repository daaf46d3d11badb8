package media

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Source is a logical capture source.
type Source string

const (
	CameraVideo Source = "camera-video"
	CameraAudio Source = "camera-audio"
	ScreenVideo Source = "screen-video"
	ScreenAudio Source = "screen-audio"
)

var sourceOrder = []Source{ScreenVideo, ScreenAudio, CameraVideo, CameraAudio}

// IsVideo reports whether s produces video.
func (s Source) IsVideo() bool {
	return s == CameraVideo || s == ScreenVideo
}

// Binding pairs a source with its track.
type Binding struct {
	Source Source
	Track  Track
}

// Preview is what the local user sees: the primary view plus an optional
// camera overlay while the screen is shared.
type Preview struct {
	Primary Track
	Overlay Track
}

// Manager owns the local tracks and records which sources drive the
// outgoing connection. At most one video source is bound at a time.
//
// A Manager is not safe for concurrent use; the call engine owns it.
type Manager struct {
	capturer Capturer
	display  DisplayCapturer
	tracks   map[Source]Track
	bound    map[Source]bool
	logger   zerolog.Logger
}

// NewManager creates a manager over the given capture backends. display may
// be nil when screen capture is unavailable.
func NewManager(capturer Capturer, display DisplayCapturer) *Manager {
	return &Manager{
		capturer: capturer,
		display:  display,
		tracks:   make(map[Source]Track),
		bound:    make(map[Source]bool),
		logger:   log.With().Str("component", "media").Logger(),
	}
}

// AcquireCamera captures camera and microphone. It asks for the ideal
// settings for whichever device kinds exist, and retries once with minimal
// settings if those cannot be satisfied.
func (m *Manager) AcquireCamera(ctx context.Context) error {
	devices, err := m.capturer.EnumerateDevices(ctx)
	if err != nil {
		return &AccessError{Op: OpUserMedia, Err: err}
	}

	var hasAudio, hasVideo bool
	for _, d := range devices {
		switch d.Kind {
		case AudioInput:
			hasAudio = true
		case VideoInput:
			hasVideo = true
		}
	}
	m.logger.Debug().Int("devices", len(devices)).Bool("audio", hasAudio).Bool("video", hasVideo).Msg("enumerated devices")
	if !hasAudio && !hasVideo {
		return &AccessError{Op: OpUserMedia, Err: ErrNoDevice}
	}

	tracks, err := m.capturer.UserMedia(ctx, IdealConstraints(hasAudio, hasVideo))
	if errors.Is(err, ErrOverconstrained) {
		m.logger.Warn().Err(err).Msg("ideal constraints failed, retrying with basic settings")
		tracks, err = m.capturer.UserMedia(ctx, MinimalConstraints(hasAudio, hasVideo))
	}
	if err != nil {
		return &AccessError{Op: OpUserMedia, Err: err}
	}

	m.stopSources(CameraVideo, CameraAudio)
	for _, t := range tracks {
		switch t.Kind() {
		case KindVideo:
			m.keep(CameraVideo, t)
		case KindAudio:
			m.keep(CameraAudio, t)
		}
	}
	if hasVideo && m.tracks[CameraVideo] == nil {
		m.logger.Warn().Msg("no video track received")
	}
	if hasAudio && m.tracks[CameraAudio] == nil {
		m.logger.Warn().Msg("no audio track received")
	}
	return nil
}

// StartScreenShare captures the display, with audio when offered. It
// returns the screen video track.
func (m *Manager) StartScreenShare(ctx context.Context) (Track, error) {
	if m.ScreenSharing() {
		return nil, ErrScreenShareActive
	}
	if m.display == nil {
		return nil, &AccessError{Op: OpDisplayMedia, Err: ErrUnsupported}
	}

	tracks, err := m.display.DisplayMedia(ctx, true)
	if err != nil {
		return nil, &AccessError{Op: OpDisplayMedia, Err: err}
	}

	var video Track
	for _, t := range tracks {
		switch {
		case t.Kind() == KindVideo && video == nil:
			video = t
			m.keep(ScreenVideo, t)
		case t.Kind() == KindAudio && m.tracks[ScreenAudio] == nil:
			m.keep(ScreenAudio, t)
		default:
			t.Stop()
		}
	}
	if video == nil {
		m.stopSources(ScreenAudio)
		return nil, &AccessError{Op: OpDisplayMedia, Err: fmt.Errorf("display capture returned no video: %w", ErrNoDevice)}
	}

	m.logger.Info().Str("track", video.Label()).Msg("screen share started")
	return video, nil
}

// StopScreenShare stops and unbinds the screen tracks. It reports whether a
// share was active.
func (m *Manager) StopScreenShare() bool {
	if !m.ScreenSharing() {
		return false
	}
	m.stopSources(ScreenVideo, ScreenAudio)
	m.logger.Info().Msg("screen share stopped")
	return true
}

// ScreenSharing reports whether a screen video track is held.
func (m *Manager) ScreenSharing() bool {
	return m.tracks[ScreenVideo] != nil
}

// Track returns the track held for src, or nil.
func (m *Manager) Track(src Source) Track {
	return m.tracks[src]
}

// OutgoingVideo returns the source that should drive the outgoing video
// sender: the screen while sharing, otherwise the camera. The track is nil
// when neither exists.
func (m *Manager) OutgoingVideo() (Source, Track) {
	if t := m.tracks[ScreenVideo]; t != nil {
		return ScreenVideo, t
	}
	if t := m.tracks[CameraVideo]; t != nil {
		return CameraVideo, t
	}
	return "", nil
}

// Outgoing lists the tracks a new connection should send: one video
// source, screen audio while sharing, and camera audio.
func (m *Manager) Outgoing() []Binding {
	var out []Binding
	if src, t := m.OutgoingVideo(); t != nil {
		out = append(out, Binding{Source: src, Track: t})
	}
	for _, src := range []Source{ScreenAudio, CameraAudio} {
		if t := m.tracks[src]; t != nil {
			out = append(out, Binding{Source: src, Track: t})
		}
	}
	return out
}

// Bind marks src as driving the outgoing connection. Binding a video source
// unbinds the other one.
func (m *Manager) Bind(src Source) error {
	if m.tracks[src] == nil {
		return fmt.Errorf("bind %s: %w", src, ErrNoTrack)
	}
	if src.IsVideo() {
		m.bound[CameraVideo] = false
		m.bound[ScreenVideo] = false
	}
	m.bound[src] = true
	return nil
}

// UnbindVideo leaves the outgoing video slot empty.
func (m *Manager) UnbindVideo() {
	m.bound[CameraVideo] = false
	m.bound[ScreenVideo] = false
}

// ResetBindings clears all bindings, as when the connection is closed.
func (m *Manager) ResetBindings() {
	clear(m.bound)
}

// BoundVideo returns the bound video source, or "" when the slot is empty.
func (m *Manager) BoundVideo() Source {
	for _, src := range []Source{ScreenVideo, CameraVideo} {
		if m.bound[src] {
			return src
		}
	}
	return ""
}

// Bindings lists the bound sources in a stable order.
func (m *Manager) Bindings() []Binding {
	var out []Binding
	for _, src := range sourceOrder {
		if m.bound[src] && m.tracks[src] != nil {
			out = append(out, Binding{Source: src, Track: m.tracks[src]})
		}
	}
	return out
}

// ToggleAudio mutes or unmutes the microphone and returns the new state.
func (m *Manager) ToggleAudio() (bool, error) {
	return m.toggle(CameraAudio)
}

// ToggleVideo turns the camera on or off and returns the new state.
func (m *Manager) ToggleVideo() (bool, error) {
	return m.toggle(CameraVideo)
}

func (m *Manager) toggle(src Source) (bool, error) {
	t := m.tracks[src]
	if t == nil {
		return false, fmt.Errorf("toggle %s: %w", src, ErrNoTrack)
	}
	t.SetEnabled(!t.Enabled())
	return t.Enabled(), nil
}

// AudioEnabled reports whether the microphone is live.
func (m *Manager) AudioEnabled() bool {
	t := m.tracks[CameraAudio]
	return t != nil && t.Enabled()
}

// VideoEnabled reports whether the camera is live.
func (m *Manager) VideoEnabled() bool {
	t := m.tracks[CameraVideo]
	return t != nil && t.Enabled()
}

// Preview returns the local view. While sharing, the screen is primary and
// an enabled camera is shown as an overlay.
func (m *Manager) Preview() Preview {
	screen, camera := m.tracks[ScreenVideo], m.tracks[CameraVideo]
	if screen == nil {
		return Preview{Primary: camera}
	}
	p := Preview{Primary: screen}
	if camera != nil && camera.Enabled() {
		p.Overlay = camera
	}
	return p
}

// StopAll stops every held track and clears all bindings.
func (m *Manager) StopAll() {
	m.stopSources(sourceOrder...)
	m.ResetBindings()
}

func (m *Manager) keep(src Source, t Track) {
	if old := m.tracks[src]; old != nil && old != t {
		old.Stop()
	}
	m.tracks[src] = t
}

func (m *Manager) stopSources(sources ...Source) {
	for _, src := range sources {
		if t := m.tracks[src]; t != nil {
			t.Stop()
		}
		delete(m.tracks, src)
		delete(m.bound, src)
	}
}
