package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"
)

// Config represents the full configuration of an echo client
type Config struct {
	// Namespace prefixes every channel subject ("<namespace>.<channel>"). Empty means none.
	Namespace string `yaml:"namespace"`
	// StrictChannelMatch drops messages whose envelope names a different channel.
	StrictChannelMatch bool          `yaml:"strict_channel_match"`
	NATS               NATSConfig    `yaml:"nats"`
	Auth               AuthConfig    `yaml:"auth"`
	Logging            LoggingConfig `yaml:"logging"`
}

// NATSConfig contains broker connection settings
type NATSConfig struct {
	Servers   []string `yaml:"servers"`   // Explicit server URLs; overrides host/port
	Host      string   `yaml:"host"`      // default: localhost
	Port      int      `yaml:"port"`      // default: 4222
	TLS       bool     `yaml:"tls"`       // tls:// or wss://
	WebSocket bool     `yaml:"websocket"` // ws:// or wss://

	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Token    string `yaml:"token"`
	Name     string `yaml:"name"` // Connection name; derived from the socket id if empty

	Reconnect            bool          `yaml:"reconnect"`              // default: true
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts"` // default: 10
	ReconnectBaseDelay   time.Duration `yaml:"reconnect_base_delay"`   // default: 1s
	ReconnectMaxDelay    time.Duration `yaml:"reconnect_max_delay"`    // default: 10s
	ConnectTimeout       time.Duration `yaml:"connect_timeout"`        // default: 10s
	PingInterval         time.Duration `yaml:"ping_interval"`          // default: 60s

	Debug bool `yaml:"debug"`
}

// AuthConfig contains the channel authorization endpoint settings
type AuthConfig struct {
	// Endpoint receives POST {"channel_name","socket_id"}. Empty disables authorization.
	Endpoint string            `yaml:"endpoint"`
	Headers  map[string]string `yaml:"headers"`
	Timeout  time.Duration     `yaml:"timeout"` // default: 10s
	// PreAuthorized channels skip the endpoint call (full names, e.g. "private-orders").
	PreAuthorized []string `yaml:"pre_authorized"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		NATS: NATSConfig{
			Host:                 "localhost",
			Port:                 4222,
			Reconnect:            true,
			MaxReconnectAttempts: 10,
			ReconnectBaseDelay:   time.Second,
			ReconnectMaxDelay:    10 * time.Second,
			ConnectTimeout:       10 * time.Second,
			PingInterval:         60 * time.Second,
		},
		Auth: AuthConfig{
			Timeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// ServerURLs returns the broker URLs to dial, explicit servers first.
func (n NATSConfig) ServerURLs() []string {
	if len(n.Servers) > 0 {
		out := make([]string, len(n.Servers))
		copy(out, n.Servers)
		return out
	}

	host := n.Host
	if host == "" {
		host = "localhost"
	}
	port := n.Port
	if port == 0 {
		port = 4222
	}

	return []string{fmt.Sprintf("%s://%s", n.scheme(), net.JoinHostPort(host, strconv.Itoa(port)))}
}

func (n NATSConfig) scheme() string {
	switch {
	case n.WebSocket && n.TLS:
		return "wss"
	case n.WebSocket:
		return "ws"
	case n.TLS:
		return "tls"
	default:
		return "nats"
	}
}

// IsPreAuthorized reports whether channel is listed in auth.pre_authorized.
func (a AuthConfig) IsPreAuthorized(channel string) bool {
	for _, name := range a.PreAuthorized {
		if name == channel {
			return true
		}
	}
	return false
}

// Load reads a YAML config file, applies defaults and then the environment overlay.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file %s: %w", path, err)
		}
		defer f.Close()

		if err := DecodeStrict(f, cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}
