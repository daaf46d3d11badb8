package call

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/BioHazard786/Warpcall/internal/media"
	"github.com/BioHazard786/Warpcall/internal/signaling"
)

type role int

const (
	roleOfferer role = iota
	roleAnswerer
)

// session is one peer connection and everything tied to its lifetime.
type session struct {
	pc          PeerConnection
	role        role
	remoteSet   bool
	videoSender Sender
	// only set when the connection was created while sharing
	screenAudioSender Sender

	control     DataChannel
	controlOpen bool

	// local candidates held while the relay is unreachable
	pendingLocal []json.RawMessage

	remoteTracks []RemoteTrack
	lastBytes    map[string]uint64
	lastSample   time.Time
	stats        []TrackStats

	conn        ConnectionState
	connectedAt time.Time
}

func (e *Engine) current(pc PeerConnection) bool {
	return e.sess != nil && e.sess.pc == pc
}

// newSession creates the peer connection, attaches the outgoing tracks and
// routes its callbacks into the queue.
func (e *Engine) newSession(r role) error {
	pc, err := e.peers.NewPeerConnection()
	if err != nil {
		return NewError("create peer connection", err)
	}
	s := &session{pc: pc, role: r, conn: ConnectionNew, lastBytes: make(map[string]uint64)}

	pc.OnICECandidate(func(c json.RawMessage) {
		e.queue.push(localCandidate{pc: pc, raw: c})
	})
	pc.OnConnectionStateChange(func(st ConnectionState) {
		e.queue.push(connectionStateChanged{pc: pc, state: st})
	})
	pc.OnICEConnectionStateChange(func(st ICEState) {
		e.queue.push(iceStateChanged{pc: pc, state: st})
	})
	pc.OnTrack(func(t RemoteTrack) {
		e.queue.push(remoteTrackAdded{pc: pc, track: t})
	})
	pc.OnDataChannel(func(dc DataChannel) {
		e.queue.push(dataChannelAdded{pc: pc, dc: dc})
	})

	for _, b := range e.media.Outgoing() {
		sender, err := pc.AddTrack(b.Track)
		if err != nil {
			_ = pc.Close()
			e.media.ResetBindings()
			return WrapError("add track", err, string(b.Source))
		}
		if err := e.media.Bind(b.Source); err != nil {
			e.logger.Warn().Err(err).Msg("bind source")
		}
		switch {
		case b.Source.IsVideo():
			s.videoSender = sender
		case b.Source == media.ScreenAudio:
			s.screenAudioSender = sender
		}
		e.logger.Debug().Str("source", string(b.Source)).Str("track", b.Track.Label()).Msg("track attached")
	}

	e.sess = s
	return nil
}

// teardown closes the peer connection and clears everything that belonged
// to it. Local media is kept.
func (e *Engine) teardown() {
	s := e.sess
	e.remoteCandidates = nil
	e.remoteMedia = nil
	if s == nil {
		return
	}
	e.sess = nil
	if s.control != nil {
		_ = s.control.Close()
	}
	if err := s.pc.Close(); err != nil {
		e.logger.Warn().Err(err).Msg("close peer connection")
	}
	e.media.ResetBindings()
	e.logger.Debug().Msg("peer connection closed")
}

func (e *Engine) sendOffer(ctx context.Context, opts OfferOptions) {
	s := e.sess
	offer, err := s.pc.CreateOffer(ctx, opts)
	if err != nil {
		e.notifyErr(NewError("create offer", err))
		return
	}
	if err := s.pc.SetLocalDescription(offer); err != nil {
		e.notifyErr(NewError("set local offer", err))
		return
	}
	if !opts.ICERestart {
		e.setState(StateOffering)
	}
	e.sendSignal(signaling.MessageTypeOffer, offer)
}

func (e *Engine) onOffer(ctx context.Context, raw json.RawMessage) {
	if !e.inRoom() {
		e.logger.Warn().Stringer("state", e.state).Msg("ignoring offer outside a room")
		return
	}
	if e.state == StateOffering {
		e.logger.Warn().Msg("ignoring offer while offering")
		return
	}
	desc, err := parseDescription(raw, DescriptionOffer)
	if err != nil {
		e.notifyErr(err)
		return
	}

	if e.sess == nil {
		if err := e.newSession(roleAnswerer); err != nil {
			e.notifyErr(err)
			return
		}
	}
	s := e.sess
	if err := s.pc.SetRemoteDescription(desc); err != nil {
		e.notifyErr(NewError("set remote offer", err))
		return
	}
	s.remoteSet = true
	e.flushRemoteCandidates()

	answer, err := s.pc.CreateAnswer(ctx)
	if err != nil {
		e.notifyErr(NewError("create answer", err))
		return
	}
	if err := s.pc.SetLocalDescription(answer); err != nil {
		e.notifyErr(NewError("set local answer", err))
		return
	}
	if s.conn != ConnectionConnected {
		e.setState(StateAnswering)
	}
	e.sendSignal(signaling.MessageTypeAnswer, answer)
}

func (e *Engine) onAnswer(raw json.RawMessage) {
	s := e.sess
	if s == nil {
		e.logger.Warn().Msg("ignoring answer without a peer connection")
		return
	}
	if s.role != roleOfferer {
		e.logger.Warn().Stringer("state", e.state).Msg("ignoring answer as answerer")
		return
	}
	desc, err := parseDescription(raw, DescriptionAnswer)
	if err != nil {
		e.notifyErr(err)
		return
	}
	if err := s.pc.SetRemoteDescription(desc); err != nil {
		e.notifyErr(NewError("set remote answer", err))
		return
	}
	s.remoteSet = true
	e.flushRemoteCandidates()
}

func parseDescription(raw json.RawMessage, want string) (Description, error) {
	var d Description
	if err := json.Unmarshal(raw, &d); err != nil {
		return d, WrapError("parse description", ErrBadDescription, err.Error())
	}
	if d.Type != want || d.SDP == "" {
		return d, WrapError("parse description", ErrBadDescription, fmt.Sprintf("want %s, got %q", want, d.Type))
	}
	return d, nil
}

func (e *Engine) onRemoteCandidate(raw json.RawMessage) {
	if e.sess == nil || !e.sess.remoteSet {
		e.remoteCandidates = append(e.remoteCandidates, raw)
		e.logger.Debug().Int("buffered", len(e.remoteCandidates)).Msg("buffering remote candidate")
		return
	}
	if err := e.sess.pc.AddICECandidate(raw); err != nil {
		e.logger.Warn().Err(err).Msg("add remote candidate")
	}
}

func (e *Engine) flushRemoteCandidates() {
	pending := e.remoteCandidates
	e.remoteCandidates = nil
	for _, c := range pending {
		if err := e.sess.pc.AddICECandidate(c); err != nil {
			e.logger.Warn().Err(err).Msg("add buffered candidate")
		}
	}
	if len(pending) > 0 {
		e.logger.Debug().Int("count", len(pending)).Msg("applied buffered candidates")
	}
}

func (e *Engine) onLocalCandidate(raw json.RawMessage) {
	if e.signal.Ready() {
		e.sendSignal(signaling.MessageTypeICECandidate, raw)
		return
	}
	if e.opts.QueueEarlyCandidates {
		e.sess.pendingLocal = append(e.sess.pendingLocal, raw)
		return
	}
	e.logger.Warn().Msg("signaling not ready, dropping local candidate")
}

func (e *Engine) flushLocalCandidates() {
	if e.sess == nil || len(e.sess.pendingLocal) == 0 {
		return
	}
	pending := e.sess.pendingLocal
	e.sess.pendingLocal = nil
	for _, c := range pending {
		e.sendSignal(signaling.MessageTypeICECandidate, c)
	}
}

func (e *Engine) sendSignal(t string, payload any) {
	msg, err := signaling.NewSignal(t, e.room, payload)
	if err != nil {
		e.notifyErr(NewError("encode "+t, err))
		return
	}
	if err := e.signal.Send(msg); err != nil {
		e.notify(LevelWarning, fmt.Sprintf("Could not send %s: %v", t, err))
	}
}

func (e *Engine) onConnectionState(st ConnectionState) {
	s := e.sess
	prev := s.conn
	s.conn = st
	e.logger.Info().Str("state", string(st)).Msg("peer connection state")

	switch st {
	case ConnectionConnected:
		if s.connectedAt.IsZero() {
			s.connectedAt = time.Now()
		}
		if e.state == StateOffering || e.state == StateAnswering {
			e.setState(StateConnected)
		}
		e.applyVideo()
		e.applyScreenAudio()
		if prev != ConnectionConnected {
			e.notify(LevelSuccess, "Connected")
		}
	case ConnectionDisconnected, ConnectionFailed:
		e.notify(LevelWarning, "Connection lost")
	}
}

func (e *Engine) onICEState(ctx context.Context, st ICEState) {
	e.logger.Debug().Str("state", string(st)).Msg("ice state")
	if st != ICEFailed || e.sess.role != roleOfferer {
		return
	}
	e.logger.Info().Msg("ice failed, restarting")
	e.sendOffer(ctx, OfferOptions{ICERestart: true})
}

// applyVideo points the outgoing video sender at the preferred source,
// or leaves it empty when there is none.
func (e *Engine) applyVideo() {
	if e.sess == nil {
		return
	}
	if e.sess.videoSender == nil {
		return
	}

	src, track := e.media.OutgoingVideo()
	if err := e.sess.videoSender.ReplaceTrack(track); err != nil {
		e.notifyErr(NewError("replace video track", err))
		return
	}
	if track == nil {
		e.media.UnbindVideo()
		return
	}
	if err := e.media.Bind(src); err != nil {
		e.logger.Warn().Err(err).Msg("bind video")
	}
}

// applyScreenAudio points the screen audio sender at the current system
// audio track, or empties it when the share has stopped.
func (e *Engine) applyScreenAudio() {
	if e.sess == nil || e.sess.screenAudioSender == nil {
		return
	}
	track := e.media.Track(media.ScreenAudio)
	if err := e.sess.screenAudioSender.ReplaceTrack(track); err != nil {
		e.notifyErr(NewError("replace screen audio track", err))
		return
	}
	if track != nil {
		if err := e.media.Bind(media.ScreenAudio); err != nil {
			e.logger.Warn().Err(err).Msg("bind screen audio")
		}
	}
}

func (e *Engine) openControl() {
	pc := e.sess.pc
	dc, err := pc.CreateDataChannel(ControlLabel)
	if err != nil {
		e.logger.Warn().Err(err).Msg("create control channel")
		return
	}
	e.attachControl(pc, dc)
}

func (e *Engine) attachControl(pc PeerConnection, dc DataChannel) {
	e.sess.control = dc
	dc.OnOpen(func() {
		e.queue.push(controlOpened{pc: pc})
	})
	dc.OnMessage(func(data []byte) {
		e.queue.push(controlReceived{pc: pc, data: data})
	})
}

func (e *Engine) onControlOpen() {
	e.sess.controlOpen = true
	e.sendControl(ControlTypeHello, Hello{Name: e.name, Client: e.opts.Client, Version: e.opts.Version})
	e.sendMediaState()
}

func (e *Engine) sendMediaState() {
	e.sendControl(ControlTypeMediaState, MediaState{
		Audio:  e.media.AudioEnabled(),
		Video:  e.media.VideoEnabled(),
		Screen: e.media.ScreenSharing(),
	})
}

func (e *Engine) sendControl(t string, payload any) {
	if e.sess == nil || !e.sess.controlOpen {
		return
	}
	data, err := EncodeControl(t, payload)
	if err != nil {
		e.logger.Error().Err(err).Msg("encode control message")
		return
	}
	if err := e.sess.control.Send(data); err != nil {
		e.logger.Warn().Err(err).Str("type", t).Msg("send control message")
	}
}

func (e *Engine) onControlMessage(data []byte) {
	msg, err := DecodeControl(data)
	if err != nil {
		e.logger.Warn().Err(err).Msg("dropping control message")
		return
	}
	switch msg.Type {
	case ControlTypeHello:
		var h Hello
		if err := msg.DecodePayload(&h); err != nil {
			e.logger.Warn().Err(err).Msg("decode hello")
			return
		}
		if h.Name != "" {
			e.peer = h.Name
		}
		e.logger.Info().Str("peer", h.Name).Str("client", h.Client).Str("version", h.Version).Msg("peer hello")
	case ControlTypeMediaState:
		var ms MediaState
		if err := msg.DecodePayload(&ms); err != nil {
			e.logger.Warn().Err(err).Msg("decode media state")
			return
		}
		e.remoteMedia = &ms
	default:
		e.logger.Debug().Str("type", msg.Type).Msg("unknown control message")
	}
}

func (e *Engine) collectStats(now time.Time) {
	s := e.sess
	if s == nil || len(s.remoteTracks) == 0 {
		return
	}
	elapsed := now.Sub(s.lastSample).Seconds()
	first := s.lastSample.IsZero()
	s.lastSample = now

	stats := make([]TrackStats, 0, len(s.remoteTracks))
	for _, t := range s.remoteTracks {
		bytes := t.BytesReceived()
		ts := TrackStats{ID: t.ID(), Kind: t.Kind(), Bytes: bytes}
		if prev, ok := s.lastBytes[t.ID()]; ok && !first && elapsed > 0 && bytes >= prev {
			ts.Bitrate = float64(bytes-prev) * 8 / elapsed
		}
		s.lastBytes[t.ID()] = bytes
		stats = append(stats, ts)
	}
	s.stats = stats
	e.publish(Event{Kind: EventStats})
}
