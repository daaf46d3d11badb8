package call

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/BioHazard786/Warpcall/internal/media"
	"github.com/BioHazard786/Warpcall/internal/signaling"
)

type fakeSignaler struct {
	mu         sync.Mutex
	ready      bool
	connectErr error
	connects   []string
	sent       []*signaling.Message
	leaves     int
}

func (s *fakeSignaler) Connect(_ context.Context, room, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connects = append(s.connects, room+"/"+name)
	if s.connectErr != nil {
		return s.connectErr
	}
	s.ready = true
	return nil
}

func (s *fakeSignaler) Send(msg *signaling.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready {
		return signaling.ErrNotConnected
	}
	s.sent = append(s.sent, msg)
	return nil
}

func (s *fakeSignaler) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

func (s *fakeSignaler) Leave() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leaves++
	s.ready = false
}

func (s *fakeSignaler) setReady(ready bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = ready
}

// sentOf returns the sent messages of type t.
func (s *fakeSignaler) sentOf(t string) []*signaling.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*signaling.Message
	for _, m := range s.sent {
		if m.Type == t {
			out = append(out, m)
		}
	}
	return out
}

type fakeFactory struct {
	mu    sync.Mutex
	err   error
	peers []*fakePeer
}

func (f *fakeFactory) NewPeerConnection() (PeerConnection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	p := &fakePeer{}
	f.peers = append(f.peers, p)
	return p, nil
}

func (f *fakeFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.peers)
}

func (f *fakeFactory) last() *fakePeer {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.peers) == 0 {
		return nil
	}
	return f.peers[len(f.peers)-1]
}

type fakePeer struct {
	mu         sync.Mutex
	senders    []*fakeSender
	channels   []*fakeChannel
	offers     []OfferOptions
	answers    int
	local      []Description
	remote     []Description
	candidates []json.RawMessage
	closed     bool

	onCandidate func(json.RawMessage)
	onConn      func(ConnectionState)
	onICE       func(ICEState)
	onTrack     func(RemoteTrack)
	onDC        func(DataChannel)
}

func (p *fakePeer) AddTrack(t media.Track) (Sender, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := &fakeSender{kind: t.Kind(), track: t}
	p.senders = append(p.senders, s)
	return s, nil
}

func (p *fakePeer) CreateOffer(_ context.Context, opts OfferOptions) (Description, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.offers = append(p.offers, opts)
	return Description{Type: DescriptionOffer, SDP: fmt.Sprintf("v=0 offer %d", len(p.offers))}, nil
}

func (p *fakePeer) CreateAnswer(context.Context) (Description, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.answers++
	return Description{Type: DescriptionAnswer, SDP: fmt.Sprintf("v=0 answer %d", p.answers)}, nil
}

func (p *fakePeer) SetLocalDescription(d Description) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.local = append(p.local, d)
	return nil
}

func (p *fakePeer) SetRemoteDescription(d Description) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.remote = append(p.remote, d)
	return nil
}

func (p *fakePeer) AddICECandidate(c json.RawMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.remote) == 0 {
		return fmt.Errorf("candidate before remote description")
	}
	p.candidates = append(p.candidates, c)
	return nil
}

func (p *fakePeer) CreateDataChannel(label string) (DataChannel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	dc := &fakeChannel{label: label}
	p.channels = append(p.channels, dc)
	return dc, nil
}

func (p *fakePeer) OnICECandidate(f func(json.RawMessage)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onCandidate = f
}

func (p *fakePeer) OnConnectionStateChange(f func(ConnectionState)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onConn = f
}

func (p *fakePeer) OnICEConnectionStateChange(f func(ICEState)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onICE = f
}

func (p *fakePeer) OnTrack(f func(RemoteTrack)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onTrack = f
}

func (p *fakePeer) OnDataChannel(f func(DataChannel)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onDC = f
}

func (p *fakePeer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePeer) emitCandidate(c string) {
	p.mu.Lock()
	f := p.onCandidate
	p.mu.Unlock()
	f(json.RawMessage(c))
}

func (p *fakePeer) emitConn(st ConnectionState) {
	p.mu.Lock()
	f := p.onConn
	p.mu.Unlock()
	f(st)
}

func (p *fakePeer) emitICE(st ICEState) {
	p.mu.Lock()
	f := p.onICE
	p.mu.Unlock()
	f(st)
}

func (p *fakePeer) emitTrack(t RemoteTrack) {
	p.mu.Lock()
	f := p.onTrack
	p.mu.Unlock()
	f(t)
}

func (p *fakePeer) emitDataChannel(dc DataChannel) {
	p.mu.Lock()
	f := p.onDC
	p.mu.Unlock()
	f(dc)
}

func (p *fakePeer) videoSender() *fakeSender {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range p.senders {
		if s.kind == media.KindVideo {
			return s
		}
	}
	return nil
}

type peerView struct {
	senders    []*fakeSender
	channels   []*fakeChannel
	offers     []OfferOptions
	answers    int
	local      []Description
	remote     []Description
	candidates []json.RawMessage
	closed     bool
}

func (p *fakePeer) view() peerView {
	p.mu.Lock()
	defer p.mu.Unlock()
	return peerView{
		senders:    append([]*fakeSender(nil), p.senders...),
		channels:   append([]*fakeChannel(nil), p.channels...),
		offers:     append([]OfferOptions(nil), p.offers...),
		answers:    p.answers,
		local:      append([]Description(nil), p.local...),
		remote:     append([]Description(nil), p.remote...),
		candidates: append([]json.RawMessage(nil), p.candidates...),
		closed:     p.closed,
	}
}

type fakeSender struct {
	kind media.Kind

	mu       sync.Mutex
	track    media.Track
	replaced int
}

func (s *fakeSender) Kind() media.Kind {
	return s.kind
}

func (s *fakeSender) Track() media.Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.track
}

func (s *fakeSender) ReplaceTrack(t media.Track) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.track = t
	s.replaced++
	return nil
}

type fakeChannel struct {
	label string

	mu     sync.Mutex
	sent   [][]byte
	closed bool
	onOpen func()
	onMsg  func([]byte)
}

func (c *fakeChannel) Label() string {
	return c.label
}

func (c *fakeChannel) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, data)
	return nil
}

func (c *fakeChannel) OnOpen(f func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onOpen = f
}

func (c *fakeChannel) OnMessage(f func([]byte)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onMsg = f
}

func (c *fakeChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeChannel) open() {
	c.mu.Lock()
	f := c.onOpen
	c.mu.Unlock()
	f()
}

func (c *fakeChannel) receive(data []byte) {
	c.mu.Lock()
	f := c.onMsg
	c.mu.Unlock()
	f(data)
}

func (c *fakeChannel) messages() []*ControlMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*ControlMessage
	for _, d := range c.sent {
		if m, err := DecodeControl(d); err == nil {
			out = append(out, m)
		}
	}
	return out
}

type fakeRemoteTrack struct {
	id    string
	kind  media.Kind
	bytes atomic.Uint64
}

func (t *fakeRemoteTrack) ID() string {
	return t.id
}

func (t *fakeRemoteTrack) Kind() media.Kind {
	return t.kind
}

func (t *fakeRemoteTrack) BytesReceived() uint64 {
	return t.bytes.Load()
}
