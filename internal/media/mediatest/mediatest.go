// Package mediatest provides in-memory capture backends for tests.
package mediatest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/BioHazard786/Warpcall/internal/media"
)

var nextID atomic.Int64

// Track is an in-memory media.Track.
type Track struct {
	id    string
	kind  media.Kind
	label string

	mu      sync.Mutex
	enabled bool
	stopped bool
	onEnded []func()
}

// NewTrack returns an enabled track.
func NewTrack(kind media.Kind, label string) *Track {
	return &Track{
		id:      fmt.Sprintf("%s-%d", kind, nextID.Add(1)),
		kind:    kind,
		label:   label,
		enabled: true,
	}
}

func (t *Track) ID() string       { return t.id }
func (t *Track) Kind() media.Kind { return t.kind }
func (t *Track) Label() string    { return t.label }

func (t *Track) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

func (t *Track) SetEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = enabled
}

func (t *Track) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
}

// Stopped reports whether Stop was called.
func (t *Track) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

func (t *Track) OnEnded(f func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onEnded = append(t.onEnded, f)
}

// End simulates the track ending outside the application.
func (t *Track) End() {
	t.mu.Lock()
	t.stopped = true
	fns := t.onEnded
	t.onEnded = nil
	t.mu.Unlock()

	for _, f := range fns {
		f()
	}
}

// Capturer is a scripted media.Capturer. Errs are returned by successive
// UserMedia calls before it succeeds.
type Capturer struct {
	Devices []media.Device
	Errs    []error

	mu       sync.Mutex
	Requests []media.Constraints
	Issued   []*Track
}

// NewCapturer returns a capturer with one camera and one microphone.
func NewCapturer() *Capturer {
	return &Capturer{Devices: []media.Device{
		{ID: "cam0", Label: "Test Camera", Kind: media.VideoInput},
		{ID: "mic0", Label: "Test Microphone", Kind: media.AudioInput},
	}}
}

func (c *Capturer) EnumerateDevices(context.Context) ([]media.Device, error) {
	return c.Devices, nil
}

func (c *Capturer) UserMedia(_ context.Context, cons media.Constraints) ([]media.Track, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Requests = append(c.Requests, cons)
	if len(c.Errs) > 0 {
		err := c.Errs[0]
		c.Errs = c.Errs[1:]
		return nil, err
	}

	var tracks []media.Track
	if cons.Video != nil {
		t := NewTrack(media.KindVideo, "Test Camera")
		c.Issued = append(c.Issued, t)
		tracks = append(tracks, t)
	}
	if cons.Audio != nil {
		t := NewTrack(media.KindAudio, "Test Microphone")
		c.Issued = append(c.Issued, t)
		tracks = append(tracks, t)
	}
	return tracks, nil
}

// Display is a scripted media.DisplayCapturer.
type Display struct {
	Err       error
	WithAudio bool

	mu     sync.Mutex
	Issued []*Track
}

func (d *Display) DisplayMedia(_ context.Context, audio bool) ([]media.Track, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.Err != nil {
		return nil, d.Err
	}
	video := NewTrack(media.KindVideo, "Screen 1")
	d.Issued = append(d.Issued, video)
	tracks := []media.Track{video}
	if audio && d.WithAudio {
		a := NewTrack(media.KindAudio, "System Audio")
		d.Issued = append(d.Issued, a)
		tracks = append(tracks, a)
	}
	return tracks, nil
}

// Last returns the most recently issued track of the given kind.
func (d *Display) Last(kind media.Kind) *Track {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := len(d.Issued) - 1; i >= 0; i-- {
		if d.Issued[i].Kind() == kind {
			return d.Issued[i]
		}
	}
	return nil
}
