package webrtc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/pion/rtcp"
	pion "github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/BioHazard786/Warpcall/internal/call"
	"github.com/BioHazard786/Warpcall/internal/media"
)

var ErrForeignTrack = errors.New("track was not created by this package")

type peerConnection struct {
	pc *pion.PeerConnection
}

func (p *peerConnection) AddTrack(track media.Track) (call.Sender, error) {
	lt, ok := track.(*LocalTrack)
	if !ok {
		return nil, call.WrapError("add track", ErrForeignTrack, fmt.Sprintf("%T", track))
	}
	rtp, err := p.pc.AddTrack(lt.rtp)
	if err != nil {
		return nil, call.NewError("add track", err)
	}
	go drainRTCP(rtp)
	return &sender{rtp: rtp, kind: lt.Kind(), track: lt}, nil
}

// drainRTCP reads the sender's RTCP so interceptors keep running.
func drainRTCP(rtp *pion.RTPSender) {
	for {
		pkts, _, err := rtp.ReadRTCP()
		if err != nil {
			return
		}
		for _, pkt := range pkts {
			if pli, ok := pkt.(*rtcp.PictureLossIndication); ok {
				log.Debug().Uint32("ssrc", pli.MediaSSRC).Msg("peer requested a keyframe")
			}
		}
	}
}

func (p *peerConnection) CreateOffer(ctx context.Context, opts call.OfferOptions) (call.Description, error) {
	if err := ctx.Err(); err != nil {
		return call.Description{}, err
	}
	offer, err := p.pc.CreateOffer(&pion.OfferOptions{ICERestart: opts.ICERestart})
	if err != nil {
		return call.Description{}, err
	}
	return fromPion(offer), nil
}

func (p *peerConnection) CreateAnswer(ctx context.Context) (call.Description, error) {
	if err := ctx.Err(); err != nil {
		return call.Description{}, err
	}
	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return call.Description{}, err
	}
	return fromPion(answer), nil
}

func (p *peerConnection) SetLocalDescription(desc call.Description) error {
	return p.pc.SetLocalDescription(toPion(desc))
}

func (p *peerConnection) SetRemoteDescription(desc call.Description) error {
	return p.pc.SetRemoteDescription(toPion(desc))
}

func (p *peerConnection) AddICECandidate(candidate json.RawMessage) error {
	var ice pion.ICECandidateInit
	if err := json.Unmarshal(candidate, &ice); err != nil {
		return call.NewError("parse ICE candidate", err)
	}
	if err := p.pc.AddICECandidate(ice); err != nil {
		return call.NewError("add ICE candidate", err)
	}
	return nil
}

func (p *peerConnection) CreateDataChannel(label string) (call.DataChannel, error) {
	ordered := true
	dc, err := p.pc.CreateDataChannel(label, &pion.DataChannelInit{Ordered: &ordered})
	if err != nil {
		return nil, call.NewError("create data channel", err)
	}
	return &dataChannel{dc: dc}, nil
}

func (p *peerConnection) OnICECandidate(f func(json.RawMessage)) {
	p.pc.OnICECandidate(func(c *pion.ICECandidate) {
		if c == nil {
			return
		}
		raw, err := json.Marshal(c.ToJSON())
		if err != nil {
			log.Error().Err(err).Msg("encode local candidate")
			return
		}
		f(raw)
	})
}

func (p *peerConnection) OnConnectionStateChange(f func(call.ConnectionState)) {
	p.pc.OnConnectionStateChange(func(s pion.PeerConnectionState) {
		f(call.ConnectionState(s.String()))
	})
}

func (p *peerConnection) OnICEConnectionStateChange(f func(call.ICEState)) {
	p.pc.OnICEConnectionStateChange(func(s pion.ICEConnectionState) {
		f(call.ICEState(s.String()))
	})
}

func (p *peerConnection) OnTrack(f func(call.RemoteTrack)) {
	p.pc.OnTrack(func(tr *pion.TrackRemote, _ *pion.RTPReceiver) {
		id := tr.ID()
		if id == "" {
			id = uuid.NewString()
		}
		rt := &remoteTrack{id: id, track: tr}
		if tr.Kind() == pion.RTPCodecTypeVideo {
			p.requestKeyframe(tr)
		}
		go rt.consume()
		f(rt)
	})
}

// requestKeyframe sends a picture loss indication for tr.
func (p *peerConnection) requestKeyframe(tr *pion.TrackRemote) {
	pli := &rtcp.PictureLossIndication{MediaSSRC: uint32(tr.SSRC())}
	if err := p.pc.WriteRTCP([]rtcp.Packet{pli}); err != nil {
		log.Debug().Err(err).Msg("request keyframe")
	}
}

func (p *peerConnection) OnDataChannel(f func(call.DataChannel)) {
	p.pc.OnDataChannel(func(dc *pion.DataChannel) {
		f(&dataChannel{dc: dc})
	})
}

func (p *peerConnection) Close() error {
	return p.pc.Close()
}

func fromPion(d pion.SessionDescription) call.Description {
	return call.Description{Type: d.Type.String(), SDP: d.SDP}
}

func toPion(d call.Description) pion.SessionDescription {
	return pion.SessionDescription{Type: pion.NewSDPType(d.Type), SDP: d.SDP}
}

func kindOf(k pion.RTPCodecType) media.Kind {
	if k == pion.RTPCodecTypeAudio {
		return media.KindAudio
	}
	return media.KindVideo
}

type sender struct {
	rtp  *pion.RTPSender
	kind media.Kind

	mu    sync.Mutex
	track media.Track
}

func (s *sender) Kind() media.Kind {
	return s.kind
}

func (s *sender) Track() media.Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.track
}

func (s *sender) ReplaceTrack(track media.Track) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if track == nil {
		if err := s.rtp.ReplaceTrack(nil); err != nil {
			return call.NewError("clear sender track", err)
		}
		s.track = nil
		return nil
	}

	lt, ok := track.(*LocalTrack)
	if !ok {
		return call.WrapError("replace track", ErrForeignTrack, fmt.Sprintf("%T", track))
	}
	if lt.Kind() != s.kind {
		return call.WrapError("replace track", fmt.Errorf("kind mismatch"), fmt.Sprintf("%s sender, %s track", s.kind, lt.Kind()))
	}
	if err := s.rtp.ReplaceTrack(lt.rtp); err != nil {
		return call.NewError("replace track", err)
	}
	s.track = track
	return nil
}

type dataChannel struct {
	dc *pion.DataChannel
}

func (d *dataChannel) Label() string {
	return d.dc.Label()
}

func (d *dataChannel) Send(data []byte) error {
	return d.dc.Send(data)
}

func (d *dataChannel) OnOpen(f func()) {
	d.dc.OnOpen(f)
}

func (d *dataChannel) OnMessage(f func([]byte)) {
	d.dc.OnMessage(func(msg pion.DataChannelMessage) {
		f(msg.Data)
	})
}

func (d *dataChannel) Close() error {
	return d.dc.Close()
}

// remoteTrack counts the payload bytes of an incoming track.
type remoteTrack struct {
	id    string
	track *pion.TrackRemote
	bytes atomic.Uint64
}

func (r *remoteTrack) ID() string {
	return r.id
}

func (r *remoteTrack) Kind() media.Kind {
	return kindOf(r.track.Kind())
}

func (r *remoteTrack) BytesReceived() uint64 {
	return r.bytes.Load()
}

func (r *remoteTrack) consume() {
	for {
		pkt, _, err := r.track.ReadRTP()
		if err != nil {
			return
		}
		r.bytes.Add(uint64(len(pkt.Payload)))
	}
}
