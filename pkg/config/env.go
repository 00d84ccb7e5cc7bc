package config

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// LookupFunc matches os.LookupEnv so tests can supply their own environment.
type LookupFunc func(key string) (string, bool)

// DecodeStrict decodes YAML from a reader and rejects any unknown fields.
func DecodeStrict(r io.Reader, out interface{}) error {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(out); err != nil && err != io.EOF {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// ApplyEnv overlays NATS_* and ECHO_* environment variables onto the config.
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	if v, ok := lookup("NATS_SERVERS"); ok && v != "" {
		var servers []string
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				servers = append(servers, s)
			}
		}
		c.NATS.Servers = servers
	}
	if v, ok := lookup("NATS_HOST"); ok && v != "" {
		c.NATS.Host = v
	}
	if v, ok := lookup("NATS_PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("NATS_PORT: %w", err)
		}
		c.NATS.Port = port
	}
	if v, ok := lookup("NATS_TLS"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("NATS_TLS: %w", err)
		}
		c.NATS.TLS = b
	}
	if v, ok := lookup("NATS_USER"); ok {
		c.NATS.User = v
	}
	if v, ok := lookup("NATS_PASS"); ok {
		c.NATS.Password = v
	}
	if v, ok := lookup("NATS_TOKEN"); ok {
		c.NATS.Token = v
	}
	if v, ok := lookup("NATS_DEBUG"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("NATS_DEBUG: %w", err)
		}
		c.NATS.Debug = b
	}
	if v, ok := lookup("NATS_MAX_RECONNECT_ATTEMPTS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("NATS_MAX_RECONNECT_ATTEMPTS: %w", err)
		}
		c.NATS.MaxReconnectAttempts = n
	}
	if v, ok := lookup("ECHO_AUTH_ENDPOINT"); ok {
		c.Auth.Endpoint = v
	}
	if v, ok := lookup("ECHO_NAMESPACE"); ok {
		c.Namespace = v
	}
	return nil
}
