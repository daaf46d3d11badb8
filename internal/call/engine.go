package call

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/BioHazard786/Warpcall/internal/media"
	"github.com/BioHazard786/Warpcall/internal/signaling"
	"github.com/BioHazard786/Warpcall/internal/version"
)

// Signaler is the relay transport the engine negotiates over.
// *signaling.Client implements it.
type Signaler interface {
	Connect(ctx context.Context, room, name string) error
	Send(msg *signaling.Message) error
	Ready() bool
	Leave()
}

// Options tune an Engine.
type Options struct {
	// QueueEarlyCandidates keeps local ICE candidates gathered while the
	// signaling channel is down and sends them once it reopens. By default
	// they are dropped.
	QueueEarlyCandidates bool

	// StatsInterval is how often remote track statistics are published.
	// Zero disables them.
	StatsInterval time.Duration

	// Client and Version are announced to the peer on the control channel.
	Client  string
	Version string
}

// Engine drives one participant's side of a call. Every transition runs on
// the Run goroutine, which drains a FIFO of user actions, relay messages and
// peer connection callbacks one at a time.
type Engine struct {
	media  *media.Manager
	peers  PeerFactory
	signal Signaler
	opts   Options
	logger zerolog.Logger

	queue   *queue
	events  chan Event
	stopped chan struct{}

	// Owned by the Run goroutine.
	state            State
	room             string
	name             string
	peer             string
	participants     []string
	sigState         signaling.State
	sess             *session
	remoteCandidates []json.RawMessage
	remoteMedia      *MediaState
}

// NewEngine creates an engine. It does nothing until Run is started.
func NewEngine(m *media.Manager, peers PeerFactory, signal Signaler, opts Options) *Engine {
	if opts.Client == "" {
		opts.Client = "warpcall"
	}
	if opts.Version == "" {
		opts.Version = version.Version
	}
	return &Engine{
		media:   m,
		peers:   peers,
		signal:  signal,
		opts:    opts,
		logger:  log.With().Str("component", "call").Logger(),
		queue:   newQueue(),
		events:  make(chan Event, 256),
		stopped: make(chan struct{}),
	}
}

// Events delivers state changes, notices and stats. Events are dropped
// when the reader falls behind.
func (e *Engine) Events() <-chan Event {
	return e.events
}

// Run processes events until ctx is cancelled. On return the call is left.
func (e *Engine) Run(ctx context.Context) error {
	defer close(e.stopped)

	var tick <-chan time.Time
	if e.opts.StatsInterval > 0 {
		ticker := time.NewTicker(e.opts.StatsInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		for {
			ev, ok := e.queue.pop()
			if !ok {
				break
			}
			e.handle(ctx, ev)
		}

		select {
		case <-ctx.Done():
			if e.state != StateIdle {
				e.leave()
			}
			return ctx.Err()
		case <-e.queue.ready():
		case now := <-tick:
			e.handle(ctx, statsTick{at: now})
		}
	}
}

// Join acquires local media, connects to the relay and joins room. It
// returns once the join request is on the wire; the relay's answer arrives
// as events.
func (e *Engine) Join(ctx context.Context, room, name string) error {
	_, err := e.request(ctx, joinRequest{ctx: ctx, room: room, name: name, reply: make(chan result, 1)})
	return err
}

// Leave ends the call from any state.
func (e *Engine) Leave(ctx context.Context) error {
	_, err := e.request(ctx, leaveRequest{reply: make(chan result, 1)})
	return err
}

// ToggleScreenShare starts or stops sharing and reports whether sharing is
// now active.
func (e *Engine) ToggleScreenShare(ctx context.Context) (bool, error) {
	return e.request(ctx, screenShareRequest{ctx: ctx, reply: make(chan result, 1)})
}

// ToggleAudio mutes or unmutes the microphone and reports whether it is live.
func (e *Engine) ToggleAudio(ctx context.Context) (bool, error) {
	return e.request(ctx, audioRequest{reply: make(chan result, 1)})
}

// ToggleVideo turns the camera off or on and reports whether it is live.
func (e *Engine) ToggleVideo(ctx context.Context) (bool, error) {
	return e.request(ctx, videoRequest{reply: make(chan result, 1)})
}

// Snapshot returns the current view of the call, after every event queued
// before it has been handled.
func (e *Engine) Snapshot(ctx context.Context) (Snapshot, error) {
	reply := make(chan Snapshot, 1)
	e.queue.push(snapshotRequest{reply: reply})
	select {
	case s := <-reply:
		return s, nil
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	case <-e.stopped:
		return Snapshot{}, ErrEngineStopped
	}
}

func (e *Engine) request(ctx context.Context, ev any) (bool, error) {
	var reply chan result
	switch r := ev.(type) {
	case joinRequest:
		reply = r.reply
	case leaveRequest:
		reply = r.reply
	case screenShareRequest:
		reply = r.reply
	case audioRequest:
		reply = r.reply
	case videoRequest:
		reply = r.reply
	}

	e.queue.push(ev)
	select {
	case r := <-reply:
		return r.on, r.err
	case <-ctx.Done():
		return false, ctx.Err()
	case <-e.stopped:
		return false, ErrEngineStopped
	}
}

// signaling.Listener

func (e *Engine) OnJoined(room string, participants []string) {
	e.queue.push(joinedMsg{room: room, participants: participants})
}

func (e *Engine) OnUserJoined(name string) {
	e.queue.push(userJoinedMsg{name: name})
}

func (e *Engine) OnOffer(offer json.RawMessage) {
	e.queue.push(offerMsg{raw: offer})
}

func (e *Engine) OnAnswer(answer json.RawMessage) {
	e.queue.push(answerMsg{raw: answer})
}

func (e *Engine) OnICECandidate(candidate json.RawMessage) {
	e.queue.push(candidateMsg{raw: candidate})
}

func (e *Engine) OnUserLeft(name string) {
	e.queue.push(userLeftMsg{name: name})
}

func (e *Engine) OnError(message string) {
	e.queue.push(relayErrorMsg{message: message})
}

func (e *Engine) OnChannelState(state signaling.State) {
	e.queue.push(channelStateMsg{state: state})
}

func (e *Engine) handle(ctx context.Context, ev any) {
	switch ev := ev.(type) {
	case joinRequest:
		ev.reply <- result{err: e.join(ev.ctx, ev.room, ev.name)}
	case leaveRequest:
		e.leave()
		ev.reply <- result{}
	case screenShareRequest:
		on, err := e.toggleScreenShare(ev.ctx)
		ev.reply <- result{on: on, err: err}
	case audioRequest:
		on, err := e.toggleAudio()
		ev.reply <- result{on: on, err: err}
	case videoRequest:
		on, err := e.toggleVideo()
		ev.reply <- result{on: on, err: err}
	case snapshotRequest:
		ev.reply <- e.snapshot()
		return

	case joinedMsg:
		e.onJoined(ev.room, ev.participants)
	case userJoinedMsg:
		e.onUserJoined(ctx, ev.name)
	case offerMsg:
		e.onOffer(ctx, ev.raw)
	case answerMsg:
		e.onAnswer(ev.raw)
	case candidateMsg:
		e.onRemoteCandidate(ev.raw)
		return
	case userLeftMsg:
		e.onUserLeft(ev.name)
	case relayErrorMsg:
		e.onRelayError(ev.message)
	case channelStateMsg:
		e.onChannelState(ev.state)

	case localCandidate:
		if e.current(ev.pc) {
			e.onLocalCandidate(ev.raw)
		}
		return
	case connectionStateChanged:
		if !e.current(ev.pc) {
			return
		}
		e.onConnectionState(ev.state)
	case iceStateChanged:
		if !e.current(ev.pc) {
			return
		}
		e.onICEState(ctx, ev.state)
	case remoteTrackAdded:
		if !e.current(ev.pc) {
			return
		}
		e.sess.remoteTracks = append(e.sess.remoteTracks, ev.track)
		e.logger.Info().Str("track", ev.track.ID()).Str("kind", string(ev.track.Kind())).Msg("remote track added")
	case dataChannelAdded:
		if !e.current(ev.pc) {
			return
		}
		if ev.dc.Label() == ControlLabel {
			e.attachControl(ev.pc, ev.dc)
		}
		return
	case controlOpened:
		if !e.current(ev.pc) {
			return
		}
		e.onControlOpen()
	case controlReceived:
		if !e.current(ev.pc) {
			return
		}
		e.onControlMessage(ev.data)

	case screenEnded:
		if t := e.media.Track(media.ScreenVideo); t != nil && t.ID() == ev.trackID {
			e.stopScreenShare()
			e.notify(LevelInfo, "Screen sharing ended")
		}
	case statsTick:
		e.collectStats(ev.at)
		return

	default:
		e.logger.Error().Type("event", ev).Msg("unhandled event")
		return
	}

	e.publish(Event{Kind: EventState})
}

func (e *Engine) join(ctx context.Context, room, name string) error {
	if e.state != StateIdle && e.state != StateClosed {
		return ErrAlreadyInCall
	}

	e.room, e.name = room, name
	e.peer, e.participants, e.remoteMedia = "", nil, nil
	e.logger = log.With().Str("component", "call").Str("room", room).Logger()

	e.setState(StateAwaitingLocalMedia)
	if err := e.media.AcquireCamera(ctx); err != nil {
		e.setState(StateClosed)
		e.notifyErr(err)
		return err
	}

	e.setState(StateSignalingConnecting)
	if err := e.signal.Connect(ctx, room, name); err != nil {
		e.media.StopAll()
		e.setState(StateClosed)
		err = NewError("connect to relay", err)
		e.notifyErr(err)
		return err
	}
	return nil
}

func (e *Engine) leave() {
	if e.state == StateIdle {
		return
	}
	e.media.StopAll()
	e.teardown()
	e.signal.Leave()
	e.peer, e.participants, e.remoteMedia = "", nil, nil
	e.setState(StateIdle)
	e.notify(LevelInfo, "Left the call")
}

func (e *Engine) inRoom() bool {
	switch e.state {
	case StateWaiting, StateOffering, StateAnswering, StateConnected:
		return true
	}
	return false
}

func (e *Engine) onJoined(room string, participants []string) {
	if e.state != StateSignalingConnecting && !e.inRoom() {
		e.logger.Warn().Stringer("state", e.state).Msg("ignoring joined outside a join")
		return
	}

	if e.sess != nil {
		// The relay dropped us and we rejoined; the peer has already been
		// told we left, so this connection is dead.
		e.logger.Info().Msg("rejoined room, discarding stale peer connection")
		e.teardown()
	}

	e.participants = participants
	e.peer = ""
	if len(participants) > 1 {
		e.peer = participants[0]
	}
	e.setState(StateWaiting)

	if e.peer != "" {
		e.notify(LevelInfo, "Joined "+room+" with "+e.peer)
	} else {
		e.notify(LevelInfo, "Waiting for participant...")
	}
}

func (e *Engine) onUserJoined(ctx context.Context, name string) {
	if !e.inRoom() {
		e.logger.Warn().Stringer("state", e.state).Str("name", name).Msg("ignoring user-joined")
		return
	}
	e.peer = name
	e.participants = append(e.participants, name)
	e.notify(LevelInfo, name+" joined the call")

	if e.sess != nil {
		e.teardown()
	}
	if err := e.newSession(roleOfferer); err != nil {
		e.notifyErr(err)
		return
	}
	e.openControl()
	e.sendOffer(ctx, OfferOptions{})
}

func (e *Engine) onUserLeft(name string) {
	if !e.inRoom() {
		return
	}
	e.notify(LevelInfo, name+" left the call")
	e.teardown()
	e.peer = ""
	e.participants = removeName(e.participants, name)
	e.setState(StateWaiting)
}

func (e *Engine) onRelayError(message string) {
	if e.state == StateSignalingConnecting {
		// The join was refused; nothing else will arrive.
		e.signal.Leave()
		e.media.StopAll()
		e.setState(StateClosed)
		e.notifyErr(WrapError("join", ErrJoinRejected, message))
		return
	}
	e.notify(LevelError, message)
}

func (e *Engine) onChannelState(s signaling.State) {
	e.sigState = s
	switch s {
	case signaling.StateOpen:
		e.flushLocalCandidates()
	case signaling.StateReconnecting:
		if e.inRoom() {
			e.notify(LevelWarning, "Connection to relay lost, reconnecting...")
		}
	case signaling.StateDisconnected:
		// the channel's single retry is spent; the call cannot continue
		if e.inRoom() || e.state == StateSignalingConnecting {
			e.media.StopAll()
			e.teardown()
			e.setState(StateClosed)
			e.notify(LevelError, "Disconnected from relay")
		}
	}
}

func (e *Engine) toggleScreenShare(ctx context.Context) (bool, error) {
	if e.state == StateIdle || e.state == StateClosed || e.state == StateAwaitingLocalMedia {
		return false, ErrNotInCall
	}
	if e.media.ScreenSharing() {
		e.stopScreenShare()
		e.notify(LevelInfo, "Screen sharing stopped")
		return false, nil
	}

	video, err := e.media.StartScreenShare(ctx)
	if err != nil {
		e.notifyErr(err)
		return false, err
	}
	id := video.ID()
	video.OnEnded(func() { e.queue.push(screenEnded{trackID: id}) })

	e.applyVideo()
	e.applyScreenAudio()
	e.sendMediaState()
	if e.sess != nil && e.sess.videoSender == nil {
		e.notify(LevelWarning, "Screen sharing started: "+ErrNoVideoSender.Error()+", shown locally only")
		return true, nil
	}
	e.notify(LevelSuccess, "Screen sharing started")
	return true, nil
}

func (e *Engine) stopScreenShare() {
	e.media.StopScreenShare()
	e.applyVideo()
	e.applyScreenAudio()
	e.sendMediaState()
}

func (e *Engine) toggleAudio() (bool, error) {
	on, err := e.media.ToggleAudio()
	if err != nil {
		return false, err
	}
	e.sendMediaState()
	if on {
		e.notify(LevelInfo, "Microphone unmuted")
	} else {
		e.notify(LevelWarning, "Microphone muted")
	}
	return on, nil
}

func (e *Engine) toggleVideo() (bool, error) {
	on, err := e.media.ToggleVideo()
	if err != nil {
		return false, err
	}
	e.sendMediaState()
	if on {
		e.notify(LevelInfo, "Video turned on")
	} else {
		e.notify(LevelWarning, "Video turned off")
	}
	return on, nil
}

func (e *Engine) setState(s State) {
	if e.state == s {
		return
	}
	e.logger.Info().Stringer("from", e.state).Stringer("to", s).Msg("call state")
	e.state = s
}

func (e *Engine) notify(level Level, text string) {
	ev := e.logger.Info()
	switch level {
	case LevelWarning:
		ev = e.logger.Warn()
	case LevelError:
		ev = e.logger.Error()
	}
	ev.Msg(text)
	e.publish(Event{Kind: EventNotice, Notice: Notice{Level: level, Text: text}})
}

func (e *Engine) notifyErr(err error) {
	var ae *media.AccessError
	if errors.As(err, &ae) {
		e.notify(LevelError, ae.Message())
		return
	}
	e.notify(LevelError, err.Error())
}

func (e *Engine) publish(ev Event) {
	ev.Snapshot = e.snapshot()
	select {
	case e.events <- ev:
	default:
	}
}

func (e *Engine) snapshot() Snapshot {
	s := Snapshot{
		State:        e.state,
		Room:         e.room,
		Name:         e.name,
		Peer:         e.peer,
		Participants: append([]string(nil), e.participants...),
		Signaling:    e.sigState,
		Audio:        e.media.AudioEnabled(),
		Video:        e.media.VideoEnabled(),
		Screen:       e.media.ScreenSharing(),
		BoundVideo:   e.media.BoundVideo(),
	}
	if p := e.media.Preview(); p.Primary != nil {
		s.Preview = p.Primary.Label()
		if p.Overlay != nil {
			s.Overlay = p.Overlay.Label()
		}
	}
	if e.remoteMedia != nil {
		rm := *e.remoteMedia
		s.Remote = &rm
	}
	if e.sess != nil {
		s.Connection = e.sess.conn
		s.ConnectedAt = e.sess.connectedAt
		s.RemoteTracks = append([]TrackStats(nil), e.sess.stats...)
	}
	return s
}

func removeName(names []string, name string) []string {
	for i, n := range names {
		if n == name {
			return append(names[:i:i], names[i+1:]...)
		}
	}
	return names
}
