package webrtc

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	pion "github.com/pion/webrtc/v4"
	pmedia "github.com/pion/webrtc/v4/pkg/media"
	"github.com/rs/zerolog/log"

	"github.com/BioHazard786/Warpcall/internal/media"
)

const streamID = "warpcall"

// Frame pacing and placeholder payloads for synthetic sources. The client is
// headless and does not encode real media; frames exist so the remote side
// sees RTP flowing.
const (
	videoInterval = 33 * time.Millisecond
	audioInterval = 20 * time.Millisecond
)

var (
	opusSilence = []byte{0xf8, 0xff, 0xfe}
	videoFrame  = make([]byte, 1200)
)

// LocalTrack is a synthetic media.Track backed by a pion sample track.
type LocalTrack struct {
	id    string
	kind  media.Kind
	label string
	rtp   *pion.TrackLocalStaticSample

	enabled atomic.Bool

	mu      sync.Mutex
	stopped bool
	onEnded []func()
	stop    chan struct{}
}

// NewLocalTrack creates a track and starts writing frames to it.
func NewLocalTrack(kind media.Kind, label string) (*LocalTrack, error) {
	codec := pion.RTPCodecCapability{MimeType: pion.MimeTypeVP8, ClockRate: 90000}
	if kind == media.KindAudio {
		codec = pion.RTPCodecCapability{MimeType: pion.MimeTypeOpus, ClockRate: 48000, Channels: 2}
	}

	id := fmt.Sprintf("%s-%s", kind, uuid.NewString())
	rtp, err := pion.NewTrackLocalStaticSample(codec, id, streamID)
	if err != nil {
		return nil, fmt.Errorf("create %s track: %w", kind, err)
	}

	t := &LocalTrack{id: id, kind: kind, label: label, rtp: rtp, stop: make(chan struct{})}
	t.enabled.Store(true)
	go t.run()
	return t, nil
}

func (t *LocalTrack) ID() string       { return t.id }
func (t *LocalTrack) Kind() media.Kind { return t.kind }
func (t *LocalTrack) Label() string    { return t.label }
func (t *LocalTrack) Enabled() bool    { return t.enabled.Load() }

func (t *LocalTrack) SetEnabled(enabled bool) {
	t.enabled.Store(enabled)
}

func (t *LocalTrack) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	t.stopped = true
	close(t.stop)
}

func (t *LocalTrack) OnEnded(f func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onEnded = append(t.onEnded, f)
}

// End stops the track as if its source went away and runs the OnEnded
// callbacks.
func (t *LocalTrack) End() {
	t.mu.Lock()
	fns := t.onEnded
	t.onEnded = nil
	t.mu.Unlock()

	t.Stop()
	for _, f := range fns {
		f()
	}
}

func (t *LocalTrack) run() {
	interval, payload := videoInterval, videoFrame
	if t.kind == media.KindAudio {
		interval, payload = audioInterval, opusSilence
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			// muted tracks keep their slot but send nothing
			if !t.enabled.Load() {
				continue
			}
			if err := t.rtp.WriteSample(pmedia.Sample{Data: payload, Duration: interval}); err != nil {
				log.Debug().Err(err).Str("track", t.id).Msg("write sample")
			}
		}
	}
}

// Capturer is a synthetic camera and microphone.
type Capturer struct {
	Camera     bool
	Microphone bool
	// MaxWidth and MaxHeight bound the video constraints the camera accepts.
	MaxWidth  int
	MaxHeight int
}

// NewCapturer returns a capturer with a 720p camera and a microphone.
func NewCapturer() *Capturer {
	return &Capturer{Camera: true, Microphone: true, MaxWidth: 1280, MaxHeight: 720}
}

func (c *Capturer) EnumerateDevices(ctx context.Context) ([]media.Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var devices []media.Device
	if c.Camera {
		devices = append(devices, media.Device{ID: "synthetic-camera", Label: "Synthetic Camera", Kind: media.VideoInput})
	}
	if c.Microphone {
		devices = append(devices, media.Device{ID: "synthetic-microphone", Label: "Synthetic Microphone", Kind: media.AudioInput})
	}
	return devices, nil
}

func (c *Capturer) UserMedia(ctx context.Context, cons media.Constraints) ([]media.Track, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", media.ErrAborted, err)
	}
	if (cons.Video != nil && !c.Camera) || (cons.Audio != nil && !c.Microphone) {
		return nil, media.ErrNoDevice
	}
	if v := cons.Video; v != nil && (v.Width > c.MaxWidth || v.Height > c.MaxHeight) {
		return nil, fmt.Errorf("%dx%d: %w", v.Width, v.Height, media.ErrOverconstrained)
	}

	var tracks []media.Track
	if cons.Video != nil {
		t, err := NewLocalTrack(media.KindVideo, "Synthetic Camera")
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, t)
	}
	if cons.Audio != nil {
		t, err := NewLocalTrack(media.KindAudio, "Synthetic Microphone")
		if err != nil {
			stopAll(tracks)
			return nil, err
		}
		tracks = append(tracks, t)
	}
	return tracks, nil
}

// Display is a synthetic screen with system audio.
type Display struct {
	// Duration ends the share on its own after the given time when set.
	Duration time.Duration
}

func (d *Display) DisplayMedia(ctx context.Context, audio bool) ([]media.Track, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", media.ErrAborted, err)
	}
	video, err := NewLocalTrack(media.KindVideo, "Synthetic Screen")
	if err != nil {
		return nil, err
	}
	tracks := []media.Track{video}
	if audio {
		a, err := NewLocalTrack(media.KindAudio, "Synthetic System Audio")
		if err != nil {
			video.Stop()
			return nil, err
		}
		tracks = append(tracks, a)
	}
	if d.Duration > 0 {
		time.AfterFunc(d.Duration, video.End)
	}
	return tracks, nil
}

func stopAll(tracks []media.Track) {
	for _, t := range tracks {
		t.Stop()
	}
}
