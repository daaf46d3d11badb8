package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Default configuration values
const (
	DefaultServer          = "localhost:8080"
	DefaultListenAddr      = ":8080"
	DefaultDisplayName     = "Anonymous"
	DefaultReconnectDelay  = 2 * time.Second
	DefaultShutdownTimeout = 5 * time.Second
)

// DefaultSTUNServers are the public STUN servers used when none are configured.
var DefaultSTUNServers = []string{
	"stun:stun.l.google.com:19302",
	"stun:stun1.l.google.com:19302",
	"stun:stun2.l.google.com:19302",
	"stun:stun3.l.google.com:19302",
	"stun:stun4.l.google.com:19302",
}

// Config holds the calling client's configuration
type Config struct {
	// Server is the relay host[:port]
	Server string

	// WebSocketURL is the relay endpoint, derived from Server unless overridden
	WebSocketURL string

	// ICE servers for WebRTC
	STUNServers []string
	TURNServer  string
	TURNUser    string
	TURNPass    string
	ForceRelay  bool

	// DisplayName is announced to the other participant
	DisplayName string

	// ReconnectDelay is how long the signaling channel waits before its
	// single reconnect attempt after an abnormal closure.
	ReconnectDelay time.Duration

	// QueueEarlyCandidates holds ICE candidates gathered while the signaling
	// channel is not open instead of dropping them.
	QueueEarlyCandidates bool
}

// Options for loading config with CLI flag overrides
type Options struct {
	Server               string
	SignalingURL         string
	STUNServers          []string
	TURNServer           string
	TURNUser             string
	TURNPass             string
	ForceRelay           bool
	DisplayName          string
	ReconnectDelay       time.Duration
	QueueEarlyCandidates bool
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. Hardcoded defaults - lowest priority
func Load(opts Options) (*Config, error) {
	server := firstNonEmpty(opts.Server, os.Getenv("SERVER"), DefaultServer)

	wsURL := firstNonEmpty(opts.SignalingURL, os.Getenv("SIGNALING_URL"))
	if wsURL == "" {
		wsURL = fmt.Sprintf("%s://%s/ws", wsScheme(server), server)
	}
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid signaling URL: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("invalid signaling URL %q: scheme must be ws or wss", wsURL)
	}

	stun := opts.STUNServers
	if len(stun) == 0 {
		stun = splitList(os.Getenv("STUN_SERVER"))
	}
	if len(stun) == 0 {
		stun = append([]string(nil), DefaultSTUNServers...)
	}

	forceRelay := opts.ForceRelay
	if !forceRelay {
		if forceRelay, err = envBool("FORCE_RELAY"); err != nil {
			return nil, err
		}
	}

	queueEarly := opts.QueueEarlyCandidates
	if !queueEarly {
		if queueEarly, err = envBool("QUEUE_EARLY_CANDIDATES"); err != nil {
			return nil, err
		}
	}

	delay := opts.ReconnectDelay
	if delay == 0 {
		if delay, err = envDuration("RECONNECT_DELAY", DefaultReconnectDelay); err != nil {
			return nil, err
		}
	}
	if delay < 0 {
		return nil, fmt.Errorf("reconnect delay must not be negative, got %s", delay)
	}

	name := strings.TrimSpace(firstNonEmpty(opts.DisplayName, os.Getenv("DISPLAY_NAME")))
	if name == "" {
		name = DefaultDisplayName
	}

	return &Config{
		Server:               server,
		WebSocketURL:         u.String(),
		STUNServers:          stun,
		TURNServer:           firstNonEmpty(opts.TURNServer, os.Getenv("TURN_SERVER")),
		TURNUser:             firstNonEmpty(opts.TURNUser, os.Getenv("TURN_USERNAME")),
		TURNPass:             firstNonEmpty(opts.TURNPass, os.Getenv("TURN_PASSWORD")),
		ForceRelay:           forceRelay,
		DisplayName:          name,
		ReconnectDelay:       delay,
		QueueEarlyCandidates: queueEarly,
	}, nil
}

// APIURL returns the relay's HTTP URL for the given path, sharing the
// host and security of the websocket endpoint.
func (c *Config) APIURL(path string) string {
	u, err := url.Parse(c.WebSocketURL)
	if err != nil {
		return ""
	}
	if u.Scheme == "wss" {
		u.Scheme = "https"
	} else {
		u.Scheme = "http"
	}
	u.Path = path
	u.RawQuery = ""
	return u.String()
}

// GetSTUNServers returns STUN server URLs as strings
func (c *Config) GetSTUNServers() []string {
	return c.STUNServers
}

// GetTURNServers returns TURN server URLs if configured
func (c *Config) GetTURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}
	return []string{
		fmt.Sprintf("turn:%s:3478?transport=udp", c.TURNServer),
		fmt.Sprintf("turn:%s:3478?transport=tcp", c.TURNServer),
		fmt.Sprintf("turns:%s:5349?transport=tcp", c.TURNServer),
	}
}

// GetTURNCredentials returns TURN username and password
func (c *Config) GetTURNCredentials() (string, string) {
	return c.TURNUser, c.TURNPass
}

// ServerConfig holds the relay's configuration
type ServerConfig struct {
	ListenAddr      string
	ShutdownTimeout time.Duration
}

// ServerOptions carries flag overrides for the relay
type ServerOptions struct {
	ListenAddr      string
	ShutdownTimeout time.Duration
}

// LoadServer resolves the relay configuration: flags, then LISTEN_ADDR,
// then PORT, then defaults.
func LoadServer(opts ServerOptions) (*ServerConfig, error) {
	addr := firstNonEmpty(opts.ListenAddr, os.Getenv("LISTEN_ADDR"))
	if addr == "" {
		if port := os.Getenv("PORT"); port != "" {
			addr = ":" + port
		}
	}
	if addr == "" {
		addr = DefaultListenAddr
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return nil, fmt.Errorf("invalid listen address %q: %w", addr, err)
	}

	timeout := opts.ShutdownTimeout
	if timeout == 0 {
		var err error
		if timeout, err = envDuration("SHUTDOWN_TIMEOUT", DefaultShutdownTimeout); err != nil {
			return nil, err
		}
	}

	return &ServerConfig{ListenAddr: addr, ShutdownTimeout: timeout}, nil
}

func wsScheme(server string) string {
	host := server
	if h, _, err := net.SplitHostPort(server); err == nil {
		host = h
	}
	if host == "localhost" {
		return "ws"
	}
	if ip := net.ParseIP(strings.Trim(host, "[]")); ip != nil && ip.IsLoopback() {
		return "ws"
	}
	return "wss"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func envBool(key string) (bool, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return b, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}
