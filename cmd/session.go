package cmd

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/BioHazard786/Warpcall/internal/call"
	"github.com/BioHazard786/Warpcall/internal/config"
	"github.com/BioHazard786/Warpcall/internal/media"
	"github.com/BioHazard786/Warpcall/internal/signaling"
	"github.com/BioHazard786/Warpcall/internal/webrtc"
)

// client flags shared by call, rooms and devices
var (
	flagServer      string
	flagSignalURL   string
	flagSTUN        string
	flagTURN        string
	flagTURNUser    string
	flagTURNPass    string
	flagRelay       bool
	flagName        string
	flagQueueEarly  bool
	flagReconnect   time.Duration
	flagNoCamera    bool
	flagNoMic       bool
	flagScreenLimit time.Duration
)

func addServerFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&flagServer, "server", "s", "", "Relay host[:port] (env: SERVER)")
	cmd.Flags().StringVar(&flagSignalURL, "signaling-url", "", "Full relay websocket URL (env: SIGNALING_URL)")
}

func addCallFlags(cmd *cobra.Command) {
	addServerFlags(cmd)
	cmd.Flags().StringVar(&flagSTUN, "stun", "", "Comma separated STUN servers (env: STUN_SERVER)")
	cmd.Flags().StringVar(&flagTURN, "turn", "", "TURN server host (env: TURN_SERVER)")
	cmd.Flags().StringVar(&flagTURNUser, "turn-user", "", "TURN username (env: TURN_USERNAME)")
	cmd.Flags().StringVar(&flagTURNPass, "turn-pass", "", "TURN password (env: TURN_PASSWORD)")
	cmd.Flags().BoolVar(&flagRelay, "relay", false, "Force TURN relay (env: FORCE_RELAY)")
	cmd.Flags().StringVarP(&flagName, "name", "n", "", "Display name (env: DISPLAY_NAME)")
	cmd.Flags().BoolVar(&flagQueueEarly, "queue-early-candidates", false, "Hold ICE candidates while the relay is unreachable (env: QUEUE_EARLY_CANDIDATES)")
	cmd.Flags().DurationVar(&flagReconnect, "reconnect-delay", 0, "Delay before the single relay reconnect attempt (env: RECONNECT_DELAY)")
	cmd.Flags().BoolVar(&flagNoCamera, "no-camera", false, "Pretend no camera is attached")
	cmd.Flags().BoolVar(&flagNoMic, "no-mic", false, "Pretend no microphone is attached")
	cmd.Flags().DurationVar(&flagScreenLimit, "screen-duration", 0, "End screen shares automatically after this long")
}

func LoadConfig() (*config.Config, error) {
	var stun []string
	for _, s := range strings.Split(flagSTUN, ",") {
		if s = strings.TrimSpace(s); s != "" {
			stun = append(stun, s)
		}
	}

	cfg, err := config.Load(config.Options{
		Server:               flagServer,
		SignalingURL:         flagSignalURL,
		STUNServers:          stun,
		TURNServer:           flagTURN,
		TURNUser:             flagTURNUser,
		TURNPass:             flagTURNPass,
		ForceRelay:           flagRelay,
		DisplayName:          flagName,
		ReconnectDelay:       flagReconnect,
		QueueEarlyCandidates: flagQueueEarly,
	})
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if cfg.ForceRelay && cfg.GetTURNServers() == nil {
		return nil, fmt.Errorf("cannot force relay mode without TURN server configured")
	}
	return cfg, nil
}

func newCapturer() *webrtc.Capturer {
	c := webrtc.NewCapturer()
	c.Camera = !flagNoCamera
	c.Microphone = !flagNoMic
	return c
}

// CallSession wires the relay client, the handler and the engine together
// for one call.
type CallSession struct {
	Client *signaling.Client
	Engine *call.Engine

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewCallSession(ctx context.Context, cfg *config.Config) (*CallSession, error) {
	factory, err := webrtc.NewFactory(webrtc.WithConfig(cfg))
	if err != nil {
		return nil, err
	}

	client := signaling.NewClient(cfg.WebSocketURL, signaling.WithReconnectDelay(cfg.ReconnectDelay))
	manager := media.NewManager(newCapturer(), &webrtc.Display{Duration: flagScreenLimit})
	engine := call.NewEngine(manager, factory, client, call.Options{
		QueueEarlyCandidates: cfg.QueueEarlyCandidates,
		StatsInterval:        time.Second,
	})
	handler := signaling.NewHandler(client, engine)

	ctx, cancel := context.WithCancel(ctx)
	s := &CallSession{Client: client, Engine: engine, cancel: cancel}
	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		_ = engine.Run(ctx)
	}()
	go func() {
		defer s.wg.Done()
		handler.Start(ctx)
	}()
	return s, nil
}

// Close leaves the call and waits for the session goroutines.
func (s *CallSession) Close() {
	s.cancel()
	s.wg.Wait()
	s.Client.Close()
}
