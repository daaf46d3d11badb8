// Package webrtc backs the call engine with pion.
package webrtc

import (
	"github.com/pion/transport/v3"
	pion "github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/BioHazard786/Warpcall/internal/call"
	"github.com/BioHazard786/Warpcall/internal/config"
	"github.com/BioHazard786/Warpcall/internal/utils"
)

// Factory creates pion peer connections for the call engine.
type Factory struct {
	api    *pion.API
	config pion.Configuration
}

type options struct {
	net    transport.Net
	config pion.Configuration
}

type Option func(*options)

// WithNet runs ICE over n instead of the host network.
func WithNet(n transport.Net) Option {
	return func(o *options) { o.net = n }
}

// WithConfig takes the ICE servers and transport policy from cfg.
func WithConfig(cfg *config.Config) Option {
	return func(o *options) { o.config = ICEConfiguration(cfg) }
}

// NewFactory builds a pion API with the default codecs and pion logging
// routed to zerolog.
func NewFactory(opts ...Option) (*Factory, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	se := pion.SettingEngine{LoggerFactory: NewLoggerFactory(log.With().Str("component", "pion").Logger())}
	if o.net != nil {
		se.SetNet(o.net)
	}

	m := &pion.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, call.NewError("register codecs", err)
	}

	return &Factory{
		api:    pion.NewAPI(pion.WithSettingEngine(se), pion.WithMediaEngine(m)),
		config: o.config,
	}, nil
}

// ICEConfiguration builds the ICE server list: STUN always, TURN when
// configured, relay-only when forced or when the host looks like it sits
// behind a VPN or carrier NAT.
func ICEConfiguration(cfg *config.Config) pion.Configuration {
	iceServers := []pion.ICEServer{{URLs: cfg.GetSTUNServers()}}

	turnServers := cfg.GetTURNServers()
	if turnServers != nil {
		username, password := cfg.GetTURNCredentials()
		iceServers = append(iceServers, pion.ICEServer{
			URLs:       turnServers,
			Username:   username,
			Credential: password,
		})
	}

	policy := pion.ICETransportPolicyAll
	if turnServers != nil && (cfg.ForceRelay || utils.ShouldForceRelay()) {
		policy = pion.ICETransportPolicyRelay
	}

	return pion.Configuration{
		ICEServers:         iceServers,
		ICETransportPolicy: policy,
	}
}

func (f *Factory) NewPeerConnection() (call.PeerConnection, error) {
	pc, err := f.api.NewPeerConnection(f.config)
	if err != nil {
		return nil, call.NewError("create peer connection", err)
	}
	return &peerConnection{pc: pc}, nil
}
