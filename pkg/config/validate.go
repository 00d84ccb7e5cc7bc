package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError represents a single validation error with context.
type ValidationError struct {
	Path    string // e.g., "nats.servers[0]"
	Message string // e.g., "unsupported scheme"
	Hint    string // e.g., "expected nats://, tls://, ws:// or wss://"
}

func (e ValidationError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s: %s; %s", e.Path, e.Message, e.Hint)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

var validSchemes = map[string]bool{"nats": true, "tls": true, "ws": true, "wss": true}

// Validate performs validation of the entire config.
// It aggregates all errors so the caller can print every issue at once.
func (c *Config) Validate() []error {
	var errs []error

	errs = append(errs, c.validateNATS()...)
	errs = append(errs, c.validateAuth()...)
	errs = append(errs, c.validateLogging()...)

	if strings.ContainsAny(c.Namespace, " *>") || strings.HasSuffix(c.Namespace, ".") {
		errs = append(errs, ValidationError{
			Path:    "namespace",
			Message: fmt.Sprintf("invalid subject prefix %q", c.Namespace),
			Hint:    "no spaces, wildcards or trailing dot",
		})
	}

	return errs
}

func (c *Config) validateNATS() []error {
	var errs []error
	n := c.NATS

	for i, server := range n.Servers {
		path := fmt.Sprintf("nats.servers[%d]", i)
		u, err := url.Parse(server)
		if err != nil || u.Host == "" {
			errs = append(errs, ValidationError{
				Path:    path,
				Message: fmt.Sprintf("invalid server URL %q", server),
				Hint:    "expected scheme://host:port",
			})
			continue
		}
		if !validSchemes[u.Scheme] {
			errs = append(errs, ValidationError{
				Path:    path,
				Message: fmt.Sprintf("unsupported scheme %q", u.Scheme),
				Hint:    "expected nats://, tls://, ws:// or wss://",
			})
		}
	}

	if len(n.Servers) == 0 && (n.Port < 1 || n.Port > 65535) {
		errs = append(errs, ValidationError{
			Path:    "nats.port",
			Message: fmt.Sprintf("must be between 1 and 65535, got %d", n.Port),
		})
	}

	if n.Token != "" && (n.User != "" || n.Password != "") {
		errs = append(errs, ValidationError{
			Path:    "nats.token",
			Message: "token and user/password are mutually exclusive",
		})
	}
	if n.Password != "" && n.User == "" {
		errs = append(errs, ValidationError{
			Path:    "nats.user",
			Message: "must be set when a password is configured",
		})
	}

	if n.MaxReconnectAttempts < 1 {
		errs = append(errs, ValidationError{
			Path:    "nats.max_reconnect_attempts",
			Message: fmt.Sprintf("must be >= 1, got %d", n.MaxReconnectAttempts),
		})
	}
	if n.ReconnectBaseDelay <= 0 {
		errs = append(errs, ValidationError{
			Path:    "nats.reconnect_base_delay",
			Message: "must be positive",
		})
	}
	if n.ReconnectMaxDelay < n.ReconnectBaseDelay {
		errs = append(errs, ValidationError{
			Path:    "nats.reconnect_max_delay",
			Message: "must be >= reconnect_base_delay",
		})
	}
	if n.ConnectTimeout <= 0 {
		errs = append(errs, ValidationError{
			Path:    "nats.connect_timeout",
			Message: "must be positive",
		})
	}
	if n.PingInterval < 0 {
		errs = append(errs, ValidationError{
			Path:    "nats.ping_interval",
			Message: "must not be negative",
		})
	}

	return errs
}

func (c *Config) validateAuth() []error {
	var errs []error
	a := c.Auth

	if a.Endpoint != "" {
		u, err := url.Parse(a.Endpoint)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, ValidationError{
				Path:    "auth.endpoint",
				Message: fmt.Sprintf("invalid URL %q", a.Endpoint),
				Hint:    "expected http(s)://host/broadcasting/auth",
			})
		}
	}
	if a.Timeout < 0 {
		errs = append(errs, ValidationError{
			Path:    "auth.timeout",
			Message: "must not be negative",
		})
	}
	for i, name := range a.PreAuthorized {
		if !strings.HasPrefix(name, "private-") && !strings.HasPrefix(name, "presence-") {
			errs = append(errs, ValidationError{
				Path:    fmt.Sprintf("auth.pre_authorized[%d]", i),
				Message: fmt.Sprintf("%q is not a private or presence channel", name),
			})
		}
	}

	return errs
}

func (c *Config) validateLogging() []error {
	var errs []error

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, ValidationError{
			Path:    "logging.level",
			Message: fmt.Sprintf("invalid value %q", c.Logging.Level),
			Hint:    "expected one of debug, info, warn, error",
		})
	}

	switch c.Logging.Format {
	case "json", "console":
	default:
		errs = append(errs, ValidationError{
			Path:    "logging.format",
			Message: fmt.Sprintf("invalid value %q", c.Logging.Format),
			Hint:    "expected one of json, console",
		})
	}

	return errs
}
